// Package activity projects canonical events into displayable activity
// entries with bounded previews.
package activity

import (
	"fmt"
	"sort"

	"github.com/3gx/ccslack/internal/events"
	"github.com/3gx/ccslack/internal/session"
)

// Kind identifies an activity entry.
type Kind string

// Activity entry kinds.
const (
	KindThinking       Kind = "thinking"
	KindToolStart      Kind = "tool_start"
	KindToolComplete   Kind = "tool_complete"
	KindGenerating     Kind = "generating"
	KindError          Kind = "error"
	KindAborted        Kind = "aborted"
	KindModeChanged    Kind = "mode_changed"
	KindContextCleared Kind = "context_cleared"
	KindSessionChanged Kind = "session_changed"
)

// PreviewLimit bounds entry previews, in runes.
const PreviewLimit = 500

// Entry is one user-visible unit of progress.
type Entry struct {
	Kind        Kind
	TimestampMS int64
	DurationMS  int64
	ToolName    string
	Content     string // full content, preserved alongside the preview
	Preview     string
	FullLength  int // rune length of the original content
	Detail      string
}

// Separator reports whether the entry renders as a structural divider.
func (e Entry) Separator() bool {
	switch e.Kind {
	case KindModeChanged, KindContextCleared, KindSessionChanged:
		return true
	}
	return false
}

// Key is a stable dedupe key used when merging entries into the store.
func (e Entry) Key() string {
	return fmt.Sprintf("%d:%s:%s", e.TimestampMS, e.Kind, e.ToolName)
}

// BuildOptions selects the preview policy.
type BuildOptions struct {
	// InProgress content previews as a rolling tail (the most recent
	// text); completed content previews from the front.
	InProgress bool
	// PreserveTail makes completed content preview its conclusion
	// instead of its opening. Ignored when InProgress is set.
	PreserveTail bool
}

// Build projects events 1:1 into entries, dropping structural-only events
// (init, thinking_start, turn_end) and zero-length text. A tool_complete
// suppresses the tool_start for the same invocation within the window:
// completed wins.
func Build(evs []events.Event, opts BuildOptions) []Entry {
	completed := make(map[string]bool)
	for _, ev := range evs {
		if ev.Type == events.TypeToolComplete {
			completed[toolKey(ev)] = true
		}
	}

	var out []Entry
	for _, ev := range evs {
		switch ev.Type {
		case events.TypeThinkingComplete:
			out = append(out, Entry{
				Kind:        KindThinking,
				TimestampMS: ev.TimestampMS,
				Content:     ev.Text,
				Preview:     preview(ev.Text, opts),
				FullLength:  len([]rune(ev.Text)),
			})
		case events.TypeToolStart:
			if completed[toolKey(ev)] {
				continue
			}
			out = append(out, Entry{
				Kind:        KindToolStart,
				TimestampMS: ev.TimestampMS,
				ToolName:    ev.ToolName,
			})
		case events.TypeToolComplete:
			out = append(out, Entry{
				Kind:        KindToolComplete,
				TimestampMS: ev.TimestampMS,
				DurationMS:  ev.DurationMS,
				ToolName:    ev.ToolName,
			})
		case events.TypeText:
			if ev.CharCount == 0 {
				continue
			}
			out = append(out, Entry{
				Kind:        KindGenerating,
				TimestampMS: ev.TimestampMS,
				Content:     ev.Text,
				Preview:     preview(ev.Text, opts),
				FullLength:  ev.CharCount,
				Detail:      fmt.Sprintf("%d chars", ev.CharCount),
			})
		}
	}
	return out
}

func toolKey(ev events.Event) string {
	if ev.ToolID != "" {
		return ev.ToolID
	}
	return ev.ToolName
}

// preview bounds content per the liveness policy consumers expect: a live
// viewer wants the most recent output of a running block; a finished
// block's opening (or, on request, its conclusion) is the informative part.
func preview(s string, opts BuildOptions) string {
	if opts.InProgress || opts.PreserveTail {
		return TruncateTail(s, PreviewLimit)
	}
	return TruncateHead(s, PreviewLimit)
}

// TruncateHead keeps the first n runes, marking the cut with a trailing
// ellipsis.
func TruncateHead(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

// TruncateTail keeps the last n runes, marking the cut with a leading
// ellipsis.
func TruncateTail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return "…" + string(r[len(r)-n:])
}

// Compact drops tool_start entries whose completion is also present,
// applying the completed-wins rule across merged windows where the start
// and the completion were delivered on different passes.
func Compact(entries []Entry) []Entry {
	done := make(map[string]bool)
	for _, e := range entries {
		if e.Kind == KindToolComplete {
			done[e.ToolName] = true
		}
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Kind == KindToolStart && done[e.ToolName] {
			continue
		}
		out = append(out, e)
	}
	return out
}

// separatorRank orders co-occurring structural entries: session change
// renders before context clear before mode change.
func separatorRank(k Kind) int {
	switch k {
	case KindSessionChanged:
		return 0
	case KindContextCleared:
		return 1
	case KindModeChanged:
		return 2
	}
	return 3
}

// StructuralEntries derives separator entries from record metadata
// transitions: a session identity change and compaction boundaries.
// Entries sharing a timestamp are ordered by separator rank.
func StructuralEntries(records []session.Record) []Entry {
	var out []Entry
	var lastSession string

	for i := range records {
		rec := records[i]
		if rec.SessionID != "" {
			if lastSession != "" && rec.SessionID != lastSession {
				out = append(out, Entry{
					Kind:        KindSessionChanged,
					TimestampMS: rec.EpochMS(),
					Detail:      rec.SessionID,
				})
			}
			lastSession = rec.SessionID
		}
		if rec.Type == "system" && rec.Subtype == "compact_boundary" {
			out = append(out, Entry{
				Kind:        KindContextCleared,
				TimestampMS: rec.EpochMS(),
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TimestampMS != out[j].TimestampMS {
			return out[i].TimestampMS < out[j].TimestampMS
		}
		return separatorRank(out[i].Kind) < separatorRank(out[j].Kind)
	})
	return out
}
