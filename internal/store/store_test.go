package store

import (
	"path/filepath"
	"testing"

	"github.com/3gx/ccslack/internal/activity"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "relay.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOffsetRoundTrip(t *testing.T) {
	s := openStore(t)

	off, err := s.Offset("C1|/tmp/a.jsonl")
	if err != nil {
		t.Fatalf("offset: %v", err)
	}
	if off != 0 {
		t.Errorf("unknown conversation offset = %d, want 0", off)
	}

	if err := s.SetOffset("C1|/tmp/a.jsonl", "/tmp/a.jsonl", 4096); err != nil {
		t.Fatalf("set offset: %v", err)
	}
	if err := s.SetOffset("C1|/tmp/a.jsonl", "/tmp/a.jsonl", 8192); err != nil {
		t.Fatalf("advance offset: %v", err)
	}

	off, err = s.Offset("C1|/tmp/a.jsonl")
	if err != nil {
		t.Fatalf("offset: %v", err)
	}
	if off != 8192 {
		t.Errorf("offset = %d, want 8192", off)
	}
}

func TestDeliveredSet_CompositeKeys(t *testing.T) {
	s := openStore(t)
	conv := "C1|/tmp/a.jsonl"

	if err := s.RecordDelivered(conv, "u1", Ref{Channel: "C1", MessageTS: "1.001"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.RecordDelivered(conv, CompositeKey("u1", "a1"), Ref{}); err != nil {
		t.Fatalf("record composite: %v", err)
	}
	if err := s.RecordDelivered(conv, ActivityKey("u1"), Ref{Channel: "C1", MessageTS: "1.002"}); err != nil {
		t.Fatalf("record activity ref: %v", err)
	}

	set, err := s.Delivered(conv)
	if err != nil {
		t.Fatalf("delivered: %v", err)
	}
	if !set.Contains("u1") {
		t.Error("plain key missing")
	}
	if !set.Contains("a1") {
		t.Error("composite key did not resolve to its record part")
	}
	if set.Contains("a2") {
		t.Error("undelivered record reported as delivered")
	}

	// Another conversation sees none of it.
	other, err := s.Delivered("C2|/tmp/b.jsonl")
	if err != nil {
		t.Fatalf("delivered: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("other conversation set = %v, want empty", other)
	}
}

func TestDeliveredSet_ActivityRefDoesNotMarkRecords(t *testing.T) {
	s := openStore(t)
	conv := "C1|/tmp/a.jsonl"

	// Only the activity message ref exists; the user input itself was
	// never delivered.
	if err := s.RecordDelivered(conv, ActivityKey("u1"), Ref{Channel: "C1", MessageTS: "1.002"}); err != nil {
		t.Fatalf("record: %v", err)
	}

	set, err := s.Delivered(conv)
	if err != nil {
		t.Fatalf("delivered: %v", err)
	}
	if set.Contains("u1") {
		t.Error("activity ref key leaked u1 into the delivered set")
	}
}

func TestDeliveredRef(t *testing.T) {
	s := openStore(t)
	conv := "C1|/tmp/a.jsonl"

	_, ok, err := s.DeliveredRef(conv, ActivityKey("u1"))
	if err != nil {
		t.Fatalf("ref: %v", err)
	}
	if ok {
		t.Error("missing ref reported present")
	}

	want := Ref{Channel: "C1", MessageTS: "1.002"}
	if err := s.RecordDelivered(conv, ActivityKey("u1"), want); err != nil {
		t.Fatalf("record: %v", err)
	}
	got, ok, err := s.DeliveredRef(conv, ActivityKey("u1"))
	if err != nil {
		t.Fatalf("ref: %v", err)
	}
	if !ok || got != want {
		t.Errorf("ref = %+v ok=%v, want %+v", got, ok, want)
	}
}

func TestSinkOriginated(t *testing.T) {
	s := openStore(t)
	conv := "C1|/tmp/a.jsonl"

	ok, err := s.IsSinkOriginated(conv, "u1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if ok {
		t.Error("unmarked record reported sink-originated")
	}

	if err := s.MarkSinkOriginated(conv, "u1"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	ok, err = s.IsSinkOriginated(conv, "u1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !ok {
		t.Error("marked record not reported sink-originated")
	}
}

func TestActivityLog_MergeIdempotent(t *testing.T) {
	s := openStore(t)
	conv := "C1|/tmp/a.jsonl"

	entries := []activity.Entry{
		{Kind: activity.KindToolComplete, TimestampMS: 1000, DurationMS: 500, ToolName: "Read"},
		{Kind: activity.KindThinking, TimestampMS: 2000, Preview: "hmm", FullLength: 3},
	}
	if err := s.MergeActivityLog(conv, "u1", entries); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if err := s.MergeActivityLog(conv, "u1", entries); err != nil {
		t.Fatalf("re-merge: %v", err)
	}

	got, err := s.ActivityLog(conv, "u1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("log = %d entries after double merge, want 2", len(got))
	}
	if got[0].ToolName != "Read" || got[1].Preview != "hmm" {
		t.Errorf("log = %+v", got)
	}

	// A later window merges in without disturbing the earlier one.
	if err := s.MergeActivityLog(conv, "u1", []activity.Entry{
		{Kind: activity.KindToolComplete, TimestampMS: 3000, DurationMS: 100, ToolName: "Grep"},
	}); err != nil {
		t.Fatalf("merge window: %v", err)
	}
	got, err = s.ActivityLog(conv, "u1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 3 || got[2].ToolName != "Grep" {
		t.Errorf("merged log = %+v, want Grep appended", got)
	}

	// Other turns keep their own logs.
	other, err := s.ActivityLog(conv, "u2")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("turn u2 log = %+v, want empty", other)
	}
}

func TestConversations(t *testing.T) {
	s := openStore(t)

	if err := s.SetOffset("C1|/tmp/a.jsonl", "/tmp/a.jsonl", 100); err != nil {
		t.Fatalf("set offset: %v", err)
	}
	if err := s.RecordDelivered("C1|/tmp/a.jsonl", "u1", Ref{}); err != nil {
		t.Fatalf("record: %v", err)
	}

	infos, err := s.Conversations()
	if err != nil {
		t.Fatalf("conversations: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("conversations = %d, want 1", len(infos))
	}
	ci := infos[0]
	if ci.Key != "C1|/tmp/a.jsonl" || ci.Offset != 100 || ci.Delivered != 1 {
		t.Errorf("info = %+v", ci)
	}
}
