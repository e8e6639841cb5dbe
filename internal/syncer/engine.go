// Package syncer delivers new session turns to the chat sink exactly once,
// in order, resumable from a persisted byte offset after crashes and
// partial failures.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/3gx/ccslack/internal/activity"
	"github.com/3gx/ccslack/internal/events"
	"github.com/3gx/ccslack/internal/render"
	"github.com/3gx/ccslack/internal/session"
	"github.com/3gx/ccslack/internal/sink"
	"github.com/3gx/ccslack/internal/store"
	"github.com/3gx/ccslack/internal/tail"
	"github.com/3gx/ccslack/internal/turns"
)

// errAborted flows up when the abort predicate fires; it is translated
// into Result.WasAborted, never surfaced to callers.
var errAborted = errors.New("syncer: aborted")

// Sink is the delivery surface the engine posts to.
type Sink interface {
	Post(ctx context.Context, text string) (sink.MessageRef, error)
	Update(ctx context.Context, ref sink.MessageRef, text string) (sink.MessageRef, error)
	Upload(ctx context.Context, content, previewPrefix string) (sink.MessageRef, error)
}

// MappingStore persists the sync cursor and delivered-identifier map.
type MappingStore interface {
	Delivered(conversationKey string) (store.DeliveredSet, error)
	RecordDelivered(conversationKey, recordKey string, ref store.Ref) error
	DeliveredRef(conversationKey, recordKey string) (store.Ref, bool, error)
	IsSinkOriginated(conversationKey, recordUUID string) (bool, error)
	MergeActivityLog(conversationKey, turnUUID string, entries []activity.Entry) error
	ActivityLog(conversationKey, turnUUID string) ([]activity.Entry, error)
	SetOffset(conversationKey, logPath string, offset int64) error
}

// Options configures one sync call. All fields are optional.
type Options struct {
	// IsAborted is checked between items; when it returns true the sync
	// stops with WasAborted set and partial progress kept.
	IsAborted func() bool
	// OnProgress is invoked after each delivered item.
	OnProgress func(done, total int, lastItem string)
	// CharLimit bounds any single delivered text; 0 means unbounded.
	// User inputs over the limit are uploaded in full instead.
	CharLimit int
	// PostText, when set, replaces the default text delivery path.
	PostText func(ctx context.Context, text string) (sink.MessageRef, error)
	// PostActivity, when set, replaces the default activity delivery path
	// (including its update-vs-post handling).
	PostActivity func(ctx context.Context, turnUUID string, entries []activity.Entry) (sink.MessageRef, error)
	// InfiniteRetry switches transient-failure retries from bounded to
	// unbounded backoff, for syncs that must eventually land.
	InfiniteRetry bool
}

// Result reports what one sync call did.
type Result struct {
	// NewOffset is the tailer's read offset. Advances past already-
	// delivered content even when nothing new was synced; stays at the
	// caller's offset on failure or abort so a retry is safe.
	NewOffset    int64
	SyncedCount  int
	TotalToSync  int
	WasAborted   bool
	AllSucceeded bool
}

// Engine drives incremental delivery for one conversation.
type Engine struct {
	store           MappingStore
	sink            Sink
	conversationKey string
}

// New returns an engine bound to a conversation.
func New(st MappingStore, sk Sink, conversationKey string) *Engine {
	return &Engine{store: st, sink: sk, conversationKey: conversationKey}
}

// Sync reads new records past fromOffset, regroups the full log into turns,
// and delivers everything not yet recorded as delivered, in order. Each
// item is recorded immediately after its send is confirmed, so a crash
// mid-turn resumes cleanly from the identifier diff on the next call.
func (e *Engine) Sync(ctx context.Context, logPath string, fromOffset int64, opts Options) (Result, error) {
	res := Result{NewOffset: fromOffset}

	head, err := tail.ReadFrom(logPath, fromOffset)
	if err != nil {
		return res, fmt.Errorf("reading %s: %w", logPath, err)
	}
	if len(head.Records) == 0 {
		// Nothing new; the offset may still advance past blank or
		// malformed bytes.
		res.NewOffset = head.Offset
		res.AllSucceeded = true
		if head.Offset != fromOffset {
			if err := e.store.SetOffset(e.conversationKey, logPath, head.Offset); err != nil {
				return res, err
			}
		}
		return res, nil
	}

	// Turns can span the offset, so grouping runs over the full log.
	full, err := tail.ReadFrom(logPath, 0)
	if err != nil {
		return res, fmt.Errorf("reading %s: %w", logPath, err)
	}
	allTurns := turns.Group(full.Records)

	delivered, err := e.store.Delivered(e.conversationKey)
	if err != nil {
		return res, fmt.Errorf("loading delivered set: %w", err)
	}

	var pending []turns.Turn
	for _, t := range allTurns {
		if hasUndelivered(&t, delivered) {
			pending = append(pending, t)
		}
	}
	res.TotalToSync = len(pending)

	retrier := sink.DefaultRetrier()
	retrier.Infinite = opts.InfiniteRetry

	run := syncRun{
		engine:    e,
		ctx:       ctx,
		opts:      opts,
		retrier:   retrier,
		delivered: delivered,
		res:       &res,
	}

	for i := range pending {
		if err := run.deliverTurn(&pending[i]); err != nil {
			if errors.Is(err, errAborted) {
				res.WasAborted = true
				return res, nil
			}
			return res, err
		}
		res.SyncedCount++
	}

	res.NewOffset = full.Offset
	res.AllSucceeded = true
	if err := e.store.SetOffset(e.conversationKey, logPath, full.Offset); err != nil {
		return res, err
	}
	return res, nil
}

func hasUndelivered(t *turns.Turn, delivered store.DeliveredSet) bool {
	for _, uuid := range t.AllMessageUUIDs() {
		if !delivered.Contains(uuid) {
			return true
		}
	}
	return false
}

// syncRun carries the per-call state through one delivery pass.
type syncRun struct {
	engine    *Engine
	ctx       context.Context
	opts      Options
	retrier   sink.Retrier
	delivered store.DeliveredSet
	res       *Result
}

func (r *syncRun) checkAbort() error {
	if r.opts.IsAborted != nil && r.opts.IsAborted() {
		return errAborted
	}
	return nil
}

func (r *syncRun) progress(item string) {
	if r.opts.OnProgress != nil {
		r.opts.OnProgress(r.res.SyncedCount, r.res.TotalToSync, item)
	}
}

// deliverTurn delivers a turn's missing pieces in the fixed order: user
// input, then per segment activity + text, then trailing activity.
//
// Activity windows are sliced by timestamp from one event reconstruction
// over the whole turn, so a tool started in one segment and resolved in
// the next keeps its pairing.
func (r *syncRun) deliverTurn(t *turns.Turn) error {
	if err := r.checkAbort(); err != nil {
		return err
	}
	if err := r.deliverUserInput(t); err != nil {
		return err
	}

	turnEvs := events.Reconstruct(turnRecords(t))
	lower := int64(-1 << 62)

	for si := range t.Segments {
		seg := &t.Segments[si]
		upper := seg.TextOutput.EpochMS()

		if err := r.checkAbort(); err != nil {
			return err
		}
		// Window boundary: past the previous segment's text, up to and
		// including this one's timestamp. The terminating text itself is
		// delivered separately below, not as activity.
		if err := r.deliverActivity(t, seg.Activity, windowEvents(turnEvs, lower, upper), false); err != nil {
			return err
		}

		if err := r.checkAbort(); err != nil {
			return err
		}
		if err := r.deliverTextOutput(t, seg.TextOutput); err != nil {
			return err
		}
		lower = upper
	}

	if len(t.TrailingActivity) > 0 {
		if err := r.checkAbort(); err != nil {
			return err
		}
		// No upper bound: the turn is still in progress.
		if err := r.deliverActivity(t, t.TrailingActivity, windowEvents(turnEvs, lower, 1<<62), true); err != nil {
			return err
		}
	}
	return nil
}

// turnRecords flattens a turn back into log order.
func turnRecords(t *turns.Turn) []session.Record {
	recs := []session.Record{t.UserInput}
	for _, seg := range t.Segments {
		recs = append(recs, seg.Activity...)
		recs = append(recs, seg.TextOutput)
	}
	return append(recs, t.TrailingActivity...)
}

// windowEvents selects turn events in (lower, upper], dropping text
// events: within a segment the only text event is the terminating output.
func windowEvents(evs []events.Event, lower, upper int64) []events.Event {
	var out []events.Event
	for _, ev := range evs {
		if ev.TimestampMS <= lower || ev.TimestampMS > upper {
			continue
		}
		if ev.Type == events.TypeText {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func (r *syncRun) deliverUserInput(t *turns.Turn) error {
	e := r.engine
	uuid := t.UserInput.UUID
	if r.delivered.Contains(uuid) {
		return nil
	}

	fromSink, err := e.store.IsSinkOriginated(e.conversationKey, uuid)
	if err != nil {
		return err
	}

	var ref sink.MessageRef
	if !fromSink {
		text := t.UserInput.UserText()
		switch {
		case r.opts.CharLimit > 0 && len([]rune(text)) > r.opts.CharLimit:
			// A long prompt is worth more than its first N chars;
			// attach it whole.
			preview := render.UserInputMessage(activity.TruncateHead(text, 200))
			err = r.retrier.Do(r.ctx, func() error {
				ref, err = e.sink.Upload(r.ctx, text, preview)
				return err
			})
		default:
			ref, err = r.postText(render.UserInputMessage(text))
		}
		if err != nil {
			return fmt.Errorf("delivering user input %s: %w", uuid, err)
		}
	}

	if err := r.record(uuid, ref); err != nil {
		return err
	}
	r.progress("user input " + uuid)
	return nil
}

// deliverActivity posts or updates the turn's activity message from the
// merged per-turn log, then records every contributing record under a
// composite key. Records with nothing to display (e.g. a bare tool-result
// record whose events rendered elsewhere) are still recorded: the
// identifier diff must account for every contributor or the turn is
// reprocessed forever.
func (r *syncRun) deliverActivity(t *turns.Turn, window []session.Record, winEvs []events.Event, inProgress bool) error {
	entries := activity.Build(winEvs, activity.BuildOptions{InProgress: inProgress})
	entries = append(entries, activity.StructuralEntries(window)...)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TimestampMS < entries[j].TimestampMS
	})
	if len(entries) == 0 && len(window) == 0 {
		return nil
	}
	e := r.engine
	turnUUID := t.UserInput.UUID

	if err := e.store.MergeActivityLog(e.conversationKey, turnUUID, entries); err != nil {
		return err
	}
	merged, err := e.store.ActivityLog(e.conversationKey, turnUUID)
	if err != nil {
		return err
	}
	merged = activity.Compact(merged)

	var ref sink.MessageRef
	if len(merged) > 0 {
		if r.opts.PostActivity != nil {
			ref, err = r.opts.PostActivity(r.ctx, turnUUID, merged)
		} else {
			ref, err = r.postOrUpdateActivity(turnUUID, render.ActivityMessage(merged))
		}
		if err != nil {
			return fmt.Errorf("delivering activity for turn %s: %w", turnUUID, err)
		}
		if err := e.store.RecordDelivered(e.conversationKey, store.ActivityKey(turnUUID), toStoreRef(ref)); err != nil {
			return err
		}
	}
	for _, rec := range window {
		if r.delivered.Contains(rec.UUID) {
			continue
		}
		if err := r.record(store.CompositeKey(turnUUID, rec.UUID), ref); err != nil {
			return err
		}
		r.delivered[rec.UUID] = struct{}{}
	}
	r.progress("activity for turn " + turnUUID)
	return nil
}

// postOrUpdateActivity updates the turn's existing activity message when a
// prior partial delivery exists, posting fresh otherwise. Only a vanished
// message may fall back from update to post; any other failure propagates,
// so transient errors cannot double-deliver.
func (r *syncRun) postOrUpdateActivity(turnUUID, body string) (sink.MessageRef, error) {
	e := r.engine

	prior, ok, err := e.store.DeliveredRef(e.conversationKey, store.ActivityKey(turnUUID))
	if err != nil {
		return sink.MessageRef{}, err
	}

	var ref sink.MessageRef
	if ok && prior.MessageTS != "" {
		target := sink.MessageRef{Channel: prior.Channel, Timestamp: prior.MessageTS}
		err = r.retrier.Do(r.ctx, func() error {
			ref, err = e.sink.Update(r.ctx, target, body)
			return err
		})
		if err == nil {
			return ref, nil
		}
		if !errors.Is(err, sink.ErrNotFound) {
			return sink.MessageRef{}, err
		}
	}

	err = r.retrier.Do(r.ctx, func() error {
		ref, err = e.sink.Post(r.ctx, body)
		return err
	})
	return ref, err
}

func (r *syncRun) deliverTextOutput(t *turns.Turn, rec session.Record) error {
	if r.delivered.Contains(rec.UUID) {
		return nil
	}

	body := render.Truncate(rec.AssistantText(), r.opts.CharLimit)
	ref, err := r.postText(body)
	if err != nil {
		return fmt.Errorf("delivering text output %s: %w", rec.UUID, err)
	}
	if err := r.record(rec.UUID, ref); err != nil {
		return err
	}
	r.progress("text output " + rec.UUID)
	return nil
}

func (r *syncRun) postText(text string) (sink.MessageRef, error) {
	if r.opts.PostText != nil {
		return r.opts.PostText(r.ctx, text)
	}
	var ref sink.MessageRef
	err := r.retrier.Do(r.ctx, func() error {
		var err error
		ref, err = r.engine.sink.Post(r.ctx, text)
		return err
	})
	return ref, err
}

// record persists one delivered identifier and mirrors it into the
// in-memory set so later items in the same pass see it.
func (r *syncRun) record(recordKey string, ref sink.MessageRef) error {
	if err := r.engine.store.RecordDelivered(r.engine.conversationKey, recordKey, toStoreRef(ref)); err != nil {
		return err
	}
	r.delivered[recordKey] = struct{}{}
	return nil
}

func toStoreRef(ref sink.MessageRef) store.Ref {
	return store.Ref{Channel: ref.Channel, MessageTS: ref.Timestamp}
}
