package activity

import (
	"strings"
	"testing"

	"github.com/3gx/ccslack/internal/events"
	"github.com/3gx/ccslack/internal/session"
)

func TestBuild_FiltersStructuralEvents(t *testing.T) {
	evs := []events.Event{
		{Type: events.TypeInit, TimestampMS: 1000, SessionID: "sess-1"},
		{Type: events.TypeThinkingStart, TimestampMS: 2000},
		{Type: events.TypeThinkingComplete, TimestampMS: 2000, Text: "pondering"},
		{Type: events.TypeTurnEnd, TimestampMS: 9000, TurnDurationMS: 8000},
	}

	entries := Build(evs, BuildOptions{})
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Kind != KindThinking || entries[0].Preview != "pondering" {
		t.Errorf("entry = %+v, want thinking/pondering", entries[0])
	}
}

func TestBuild_CompletedSuppressesStart(t *testing.T) {
	evs := []events.Event{
		{Type: events.TypeToolStart, TimestampMS: 1000, ToolName: "Read", ToolID: "t1"},
		{Type: events.TypeToolComplete, TimestampMS: 4000, ToolName: "Read", ToolID: "t1", DurationMS: 3000},
		{Type: events.TypeToolStart, TimestampMS: 5000, ToolName: "Grep", ToolID: "t2"},
	}

	entries := Build(evs, BuildOptions{})
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Kind != KindToolComplete || entries[0].DurationMS != 3000 {
		t.Errorf("entry 0 = %+v, want completed Read", entries[0])
	}
	if entries[1].Kind != KindToolStart || entries[1].ToolName != "Grep" {
		t.Errorf("entry 1 = %+v, want running Grep", entries[1])
	}
}

func TestBuild_PreviewPolicies(t *testing.T) {
	long := strings.Repeat("a", 200) + strings.Repeat("b", 400)
	ev := []events.Event{{Type: events.TypeText, TimestampMS: 1000, Text: long, CharCount: 600}}

	completed := Build(ev, BuildOptions{})[0]
	if got := []rune(completed.Preview); len(got) != PreviewLimit+1 {
		t.Fatalf("completed preview runes = %d, want %d", len(got), PreviewLimit+1)
	}
	if !strings.HasPrefix(completed.Preview, "aaa") || !strings.HasSuffix(completed.Preview, "…") {
		t.Error("completed preview should keep the head and end with an ellipsis")
	}
	if completed.FullLength != 600 || completed.Content != long {
		t.Error("full content and length must survive truncation")
	}

	inProgress := Build(ev, BuildOptions{InProgress: true})[0]
	if !strings.HasPrefix(inProgress.Preview, "…") || !strings.HasSuffix(inProgress.Preview, "bbb") {
		t.Error("in-progress preview should be a rolling tail")
	}
	if got := []rune(inProgress.Preview); len(got) != PreviewLimit+1 {
		t.Fatalf("in-progress preview runes = %d, want %d", len(got), PreviewLimit+1)
	}

	tail := Build(ev, BuildOptions{PreserveTail: true})[0]
	if tail.Preview != inProgress.Preview {
		t.Error("PreserveTail should keep the conclusion like the rolling tail does")
	}
}

func TestBuild_ShortContentUnmarked(t *testing.T) {
	ev := []events.Event{{Type: events.TypeText, TimestampMS: 1000, Text: "brief", CharCount: 5}}
	entry := Build(ev, BuildOptions{InProgress: true})[0]
	if entry.Preview != "brief" {
		t.Errorf("preview = %q, want the content verbatim", entry.Preview)
	}
}

func TestTruncate_RuneSafe(t *testing.T) {
	s := strings.Repeat("é", 10)
	if got := TruncateHead(s, 4); got != strings.Repeat("é", 4)+"…" {
		t.Errorf("TruncateHead = %q", got)
	}
	if got := TruncateTail(s, 4); got != "…"+strings.Repeat("é", 4) {
		t.Errorf("TruncateTail = %q", got)
	}
}

func TestCompact_AcrossMergedWindows(t *testing.T) {
	entries := []Entry{
		{Kind: KindToolStart, TimestampMS: 1000, ToolName: "Bash"},
		{Kind: KindThinking, TimestampMS: 2000, Preview: "x"},
		{Kind: KindToolComplete, TimestampMS: 3000, ToolName: "Bash", DurationMS: 2000},
	}

	got := Compact(entries)
	if len(got) != 2 {
		t.Fatalf("compacted = %d entries, want 2", len(got))
	}
	if got[0].Kind != KindThinking || got[1].Kind != KindToolComplete {
		t.Errorf("compacted = %+v", got)
	}

	// Input slice must be untouched.
	if len(entries) != 3 || entries[0].Kind != KindToolStart {
		t.Error("Compact mutated its input")
	}
}

func TestStructuralEntries_TransitionsAndOrder(t *testing.T) {
	parseLine := func(line string) session.Record {
		rec, err := session.ParseLine([]byte(line))
		if err != nil {
			t.Fatalf("parse fixture line: %v", err)
		}
		return rec
	}

	recs := []session.Record{
		parseLine(`{"type":"user","uuid":"u1","sessionId":"sess-1","timestamp":"2025-06-01T10:00:00Z","message":{"role":"user","content":"hi"}}`),
		parseLine(`{"type":"system","subtype":"compact_boundary","uuid":"s1","sessionId":"sess-2","timestamp":"2025-06-01T10:05:00Z"}`),
	}

	entries := StructuralEntries(recs)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	// Same timestamp: the session change renders before the context clear.
	if entries[0].Kind != KindSessionChanged || entries[1].Kind != KindContextCleared {
		t.Errorf("order = %s, %s; want session_changed, context_cleared", entries[0].Kind, entries[1].Kind)
	}
	if entries[0].Detail != "sess-2" {
		t.Errorf("session change detail = %q, want sess-2", entries[0].Detail)
	}
}

func TestEntryKey_Stable(t *testing.T) {
	e := Entry{Kind: KindToolComplete, TimestampMS: 1234, ToolName: "Read"}
	if e.Key() != "1234:tool_complete:Read" {
		t.Errorf("Key = %q", e.Key())
	}
	if e.Separator() {
		t.Error("tool_complete is not a separator")
	}
	if !(Entry{Kind: KindSessionChanged}).Separator() {
		t.Error("session_changed is a separator")
	}
}
