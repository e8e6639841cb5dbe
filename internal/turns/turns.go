// Package turns partitions a flat session record stream into logical turns:
// one user input plus everything the agent produced in response.
package turns

import (
	"github.com/3gx/ccslack/internal/session"
)

// Segment is one activity-then-text cycle within a turn.
type Segment struct {
	// Activity holds the records between the previous boundary and the
	// text output: assistant activity plus the tool-result records that
	// resolved it.
	Activity []session.Record
	// TextOutput is the assistant record that terminated the segment.
	TextOutput session.Record
}

// Turn is anchored on one user-input record.
type Turn struct {
	UserInput session.Record
	Segments  []Segment
	// TrailingActivity holds records after the last segment with no
	// terminating text yet. No upper timestamp bound: the turn is still
	// in progress.
	TrailingActivity []session.Record
}

// Complete reports whether the turn has finished: at least one segment and
// nothing trailing.
func (t *Turn) Complete() bool {
	return len(t.Segments) > 0 && len(t.TrailingActivity) == 0
}

// AllMessageUUIDs returns the ordered union of every record identifier that
// contributed to the turn. This is the unit of idempotency tracking for
// delivery.
func (t *Turn) AllMessageUUIDs() []string {
	uuids := []string{t.UserInput.UUID}
	for _, seg := range t.Segments {
		for _, rec := range seg.Activity {
			uuids = append(uuids, rec.UUID)
		}
		uuids = append(uuids, seg.TextOutput.UUID)
	}
	for _, rec := range t.TrailingActivity {
		uuids = append(uuids, rec.UUID)
	}
	return uuids
}

// Group partitions records into turns. A user record starts a new turn iff
// its content is a plain string; all other records join the open turn.
// Records before the first user input are dropped. Grouping the same record
// list twice yields identical turns.
func Group(records []session.Record) []Turn {
	var (
		out     []Turn
		current *Turn
	)

	for i := range records {
		rec := records[i]

		if rec.IsUserInput() {
			if current != nil {
				out = append(out, *current)
			}
			current = &Turn{UserInput: rec}
			continue
		}
		if current == nil {
			continue
		}

		if rec.HasText() {
			current.Segments = append(current.Segments, Segment{
				Activity:   current.TrailingActivity,
				TextOutput: rec,
			})
			current.TrailingActivity = nil
			continue
		}

		current.TrailingActivity = append(current.TrailingActivity, rec)
	}

	if current != nil {
		out = append(out, *current)
	}
	return out
}
