package session

import (
	"errors"
	"testing"
)

func TestParseLine_PlainUserInput(t *testing.T) {
	line := []byte(`{"type":"user","uuid":"u1","sessionId":"sess-1","timestamp":"2025-06-01T10:00:00Z","message":{"role":"user","content":"hello"}}`)

	rec, err := ParseLine(line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rec.IsUserInput() {
		t.Error("expected plain-string user record to be user input")
	}
	if rec.UserText() != "hello" {
		t.Errorf("UserText = %q, want hello", rec.UserText())
	}
	if rec.EpochMS() == 0 {
		t.Error("expected non-zero epoch timestamp")
	}
}

func TestParseLine_BlockContent(t *testing.T) {
	line := []byte(`{"type":"assistant","uuid":"a1","timestamp":"2025-06-01T10:00:05Z","message":{"id":"msg1","role":"assistant","content":[{"type":"thinking","thinking":"hmm"},{"type":"tool_use","id":"t1","name":"Read","input":{}},{"type":"text","text":"done"}]}}`)

	rec, err := ParseLine(line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.IsUserInput() {
		t.Error("assistant record classified as user input")
	}
	blocks := rec.Message.Content.Blocks
	if len(blocks) != 3 {
		t.Fatalf("blocks = %d, want 3", len(blocks))
	}
	if blocks[0].Thinking != "hmm" || blocks[1].Name != "Read" || blocks[2].Text != "done" {
		t.Errorf("blocks decoded wrong: %+v", blocks)
	}
	if !rec.HasText() || rec.AssistantText() != "done" {
		t.Errorf("AssistantText = %q, want done", rec.AssistantText())
	}
}

func TestParseLine_ToolResults(t *testing.T) {
	line := []byte(`{"type":"user","uuid":"u2","timestamp":"2025-06-01T10:00:08Z","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","content":"ok"}]}}`)

	rec, err := ParseLine(line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.IsUserInput() {
		t.Error("tool-result record classified as user input")
	}
	results := rec.ToolResults()
	if len(results) != 1 || results[0].ToolUseID != "t1" {
		t.Errorf("ToolResults = %+v, want one result for t1", results)
	}
}

func TestParseLine_SkipsIrrelevantTypes(t *testing.T) {
	for _, line := range []string{
		`{"type":"progress","data":{}}`,
		`{"type":"summary","summary":"something"}`,
		``,
		`   `,
	} {
		_, err := ParseLine([]byte(line))
		if !errors.Is(err, ErrSkip) {
			t.Errorf("ParseLine(%q) err = %v, want ErrSkip", line, err)
		}
	}
}

func TestParseLine_MalformedIsError(t *testing.T) {
	_, err := ParseLine([]byte(`{"type":"user","uuid":`))
	if err == nil || errors.Is(err, ErrSkip) {
		t.Errorf("malformed line err = %v, want parse error", err)
	}
}

func TestRecordType_IgnoresNestedTypeKeys(t *testing.T) {
	// The top-level type comes after a nested content block carrying its
	// own "type" field.
	line := []byte(`{"message":{"content":[{"type":"text","text":"hi"}]},"type":"assistant","uuid":"a9","timestamp":"2025-06-01T10:00:00Z"}`)

	rec, err := ParseLine(line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rec.IsAssistant() {
		t.Errorf("Type = %q, want assistant", rec.Type)
	}
}
