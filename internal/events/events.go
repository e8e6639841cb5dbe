// Package events reconstructs canonical semantic events from raw session
// records: a strictly time-ordered stream of init, thinking, tool, text,
// and turn-end events.
package events

import (
	"log"

	"github.com/3gx/ccslack/internal/session"
)

// Type identifies a canonical event.
type Type string

// Canonical event types.
const (
	TypeInit             Type = "init"
	TypeThinkingStart    Type = "thinking_start"
	TypeThinkingComplete Type = "thinking_complete"
	TypeToolStart        Type = "tool_start"
	TypeToolComplete     Type = "tool_complete"
	TypeText             Type = "text"
	TypeTurnEnd          Type = "turn_end"
)

// Event is one canonical event. Fields beyond Type and TimestampMS are
// type-specific; unused ones stay zero.
type Event struct {
	Type        Type
	TimestampMS int64

	SessionID string // init

	ToolName   string // tool_start, tool_complete
	ToolID     string // tool_start, tool_complete
	DurationMS int64  // tool_complete

	Text      string // thinking_complete, text (full content)
	CharCount int    // text

	TurnDurationMS int64 // turn_end
}

type pendingTool struct {
	name        string
	id          string
	timestampMS int64
}

// Reconstructor performs a stateful single pass over ordered records.
// Feed records in log order; call Flush once at end of input.
type Reconstructor struct {
	started bool

	// Outstanding tool invocations, consumed FIFO by tool results.
	pending []pendingTool

	turnOpen    bool
	sawOutput   bool // assistant produced anything since the turn opened
	userInputMS int64
	lastSeenMS  int64

	mismatches int
}

// NewReconstructor returns a reconstructor with no open turn.
func NewReconstructor() *Reconstructor {
	return &Reconstructor{}
}

// Reconstruct runs a full batch pass over records.
func Reconstruct(records []session.Record) []Event {
	r := NewReconstructor()
	var out []Event
	for i := range records {
		out = append(out, r.Feed(records[i])...)
	}
	return append(out, r.Flush()...)
}

// Feed consumes one record and returns the events it produced, in document
// order when several derive from the same record.
func (r *Reconstructor) Feed(rec session.Record) []Event {
	ts := rec.EpochMS()
	if ts > r.lastSeenMS {
		r.lastSeenMS = ts
	}

	var out []Event

	if !r.started {
		r.started = true
		out = append(out, Event{Type: TypeInit, TimestampMS: ts, SessionID: rec.SessionID})
	}

	switch {
	case rec.IsUserInput():
		// A plain-string user record after assistant output closes the
		// previous turn before opening the new one.
		if r.turnOpen && r.sawOutput {
			out = append(out, Event{
				Type:           TypeTurnEnd,
				TimestampMS:    ts,
				TurnDurationMS: ts - r.userInputMS,
			})
		}
		r.turnOpen = true
		r.sawOutput = false
		r.userInputMS = ts

	case rec.IsUser():
		out = append(out, r.completeTools(rec, ts)...)

	case rec.IsAssistant() && rec.Message != nil:
		r.sawOutput = true
		for _, b := range rec.Message.Content.Blocks {
			switch b.Type {
			case session.BlockThinking:
				out = append(out,
					Event{Type: TypeThinkingStart, TimestampMS: ts},
					Event{Type: TypeThinkingComplete, TimestampMS: ts, Text: b.Thinking},
				)
			case session.BlockToolUse:
				out = append(out, Event{
					Type:        TypeToolStart,
					TimestampMS: ts,
					ToolName:    b.Name,
					ToolID:      b.ID,
				})
				r.pending = append(r.pending, pendingTool{name: b.Name, id: b.ID, timestampMS: ts})
			case session.BlockText:
				if len(b.Text) > 0 {
					out = append(out, Event{Type: TypeText, TimestampMS: ts, Text: b.Text, CharCount: len([]rune(b.Text))})
				}
			}
		}
	}

	return out
}

// completeTools resolves tool_result blocks against the FIFO queue. The n-th
// result resolves the n-th outstanding invocation regardless of tool kind;
// a carried tool_use_id that disagrees with queue order is counted and
// logged but does not change the match.
func (r *Reconstructor) completeTools(rec session.Record, ts int64) []Event {
	var out []Event
	for _, b := range rec.ToolResults() {
		if len(r.pending) == 0 {
			break
		}
		p := r.pending[0]
		r.pending = r.pending[1:]

		if b.ToolUseID != "" && p.id != "" && b.ToolUseID != p.id {
			r.mismatches++
			log.Printf("ccslack: tool_result %s resolved out of invocation order (matched %s %q)",
				b.ToolUseID, p.id, p.name)
		}

		out = append(out, Event{
			Type:        TypeToolComplete,
			TimestampMS: ts,
			ToolName:    p.name,
			ToolID:      p.id,
			DurationMS:  ts - p.timestampMS,
		})
	}
	return out
}

// Flush closes the open turn at end of input. A turn with no assistant
// output yet produces nothing; the turn is still in progress.
func (r *Reconstructor) Flush() []Event {
	if !r.turnOpen || !r.sawOutput {
		return nil
	}
	r.turnOpen = false
	return []Event{{
		Type:           TypeTurnEnd,
		TimestampMS:    r.lastSeenMS,
		TurnDurationMS: r.lastSeenMS - r.userInputMS,
	}}
}

// ToolMismatches reports how many tool results carried an id that
// disagreed with FIFO order.
func (r *Reconstructor) ToolMismatches() int { return r.mismatches }
