// Package store persists per-conversation sync cursors: the byte offset,
// the delivered-identifier map, and the merged activity log.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/3gx/ccslack/internal/activity"

	_ "modernc.org/sqlite" // register sqlite driver
)

// Store is the SQLite-backed mapping and offset store.
type Store struct {
	db *sql.DB
}

// Open opens or creates the store database at the given path.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("opening store db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the store database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CompositeKey builds the delivered key for a record folded into a shared
// delivered item, keyed by the turn it belongs to. One mapping per raw
// record: composites keep activity records from overwriting each other.
func CompositeKey(turnUUID, recordUUID string) string {
	return turnUUID + ":" + recordUUID
}

// ActivityKey is the delivered key holding the sink ref of a turn's
// activity message, keyed by the turn's user-input identifier.
func ActivityKey(turnUUID string) string {
	return "activity:" + turnUUID
}

// DeliveredSet answers "was this raw record already delivered", with
// composite keys resolving to their record part.
type DeliveredSet map[string]struct{}

// Contains reports whether the raw-record identifier was delivered under
// any key form.
func (d DeliveredSet) Contains(uuid string) bool {
	_, ok := d[uuid]
	return ok
}

// Ref is a persisted sink message reference.
type Ref struct {
	Channel   string
	MessageTS string
}

// Offset returns the persisted byte offset for a conversation, 0 when the
// conversation is unknown.
func (s *Store) Offset(conversationKey string) (int64, error) {
	var off int64
	err := s.db.QueryRow(
		"SELECT byte_offset FROM conversations WHERE conversation_key = ?",
		conversationKey).Scan(&off)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return off, err
}

// SetOffset advances the persisted byte offset.
func (s *Store) SetOffset(conversationKey, logPath string, offset int64) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`INSERT INTO conversations (conversation_key, log_path, byte_offset, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(conversation_key) DO UPDATE SET
			log_path = excluded.log_path,
			byte_offset = excluded.byte_offset,
			updated_at = excluded.updated_at`,
		conversationKey, logPath, offset, now)
	return err
}

// Delivered returns the set of delivered raw-record identifiers for a
// conversation. Composite keys contribute their record part so containment
// checks stay uniform.
func (s *Store) Delivered(conversationKey string) (DeliveredSet, error) {
	rows, err := s.db.Query(
		"SELECT record_key FROM delivered WHERE conversation_key = ?",
		conversationKey)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	set := make(DeliveredSet)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		if strings.HasPrefix(key, "activity:") {
			// Sink ref for a turn's activity message, not a record id.
			continue
		}
		set[key] = struct{}{}
		if i := strings.LastIndexByte(key, ':'); i >= 0 {
			set[key[i+1:]] = struct{}{}
		}
	}
	return set, rows.Err()
}

// RecordDelivered stores one delivered identifier with its sink ref. Must
// be called only after the external send has been confirmed.
func (s *Store) RecordDelivered(conversationKey, recordKey string, ref Ref) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`INSERT OR REPLACE INTO delivered
		(conversation_key, record_key, channel, message_ts, delivered_at)
		VALUES (?, ?, ?, ?, ?)`,
		conversationKey, recordKey, ref.Channel, ref.MessageTS, now)
	return err
}

// DeliveredRef looks up the sink ref recorded for a key.
func (s *Store) DeliveredRef(conversationKey, recordKey string) (Ref, bool, error) {
	var ref Ref
	err := s.db.QueryRow(
		"SELECT channel, message_ts FROM delivered WHERE conversation_key = ? AND record_key = ?",
		conversationKey, recordKey).Scan(&ref.Channel, &ref.MessageTS)
	if err == sql.ErrNoRows {
		return Ref{}, false, nil
	}
	if err != nil {
		return Ref{}, false, err
	}
	return ref, true, nil
}

// MarkSinkOriginated marks a record identifier as injected by the sink
// itself, so the relay does not echo it back.
func (s *Store) MarkSinkOriginated(conversationKey, recordUUID string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`INSERT OR REPLACE INTO sink_inputs
		(conversation_key, record_uuid, marked_at) VALUES (?, ?, ?)`,
		conversationKey, recordUUID, now)
	return err
}

// IsSinkOriginated reports whether the record came from the sink.
func (s *Store) IsSinkOriginated(conversationKey, recordUUID string) (bool, error) {
	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sink_inputs WHERE conversation_key = ? AND record_uuid = ?",
		conversationKey, recordUUID).Scan(&n)
	return n > 0, err
}

// MergeActivityLog upserts a turn's activity entries into the merged log.
// Re-merging the same entries is a no-op, which is what makes cross-run
// activity deduplication work.
func (s *Store) MergeActivityLog(conversationKey, turnUUID string, entries []activity.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range entries {
		_, err = tx.Exec(`INSERT OR REPLACE INTO activity_log
			(conversation_key, turn_uuid, entry_key, kind, timestamp_ms, duration_ms, tool_name, preview, full_length, detail)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			conversationKey, turnUUID, e.Key(), string(e.Kind), e.TimestampMS, e.DurationMS,
			e.ToolName, e.Preview, e.FullLength, e.Detail)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ActivityLog loads a turn's merged activity log in timestamp order. A
// replayed entry replaces its earlier version, so a segment window merged
// twice renders once.
func (s *Store) ActivityLog(conversationKey, turnUUID string) ([]activity.Entry, error) {
	rows, err := s.db.Query(`SELECT kind, timestamp_ms, duration_ms, tool_name, preview, full_length, detail
		FROM activity_log WHERE conversation_key = ? AND turn_uuid = ? ORDER BY timestamp_ms`,
		conversationKey, turnUUID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []activity.Entry
	for rows.Next() {
		var e activity.Entry
		var kind string
		if err := rows.Scan(&kind, &e.TimestampMS, &e.DurationMS, &e.ToolName, &e.Preview, &e.FullLength, &e.Detail); err != nil {
			return nil, err
		}
		e.Kind = activity.Kind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ConversationInfo is one row of cursor state for status display.
type ConversationInfo struct {
	Key       string
	LogPath   string
	Offset    int64
	UpdatedAt string
	Delivered int
}

// Conversations lists cursor state for all known conversations.
func (s *Store) Conversations() ([]ConversationInfo, error) {
	rows, err := s.db.Query(`SELECT c.conversation_key, COALESCE(c.log_path, ''), c.byte_offset, c.updated_at,
		(SELECT COUNT(*) FROM delivered d WHERE d.conversation_key = c.conversation_key)
		FROM conversations c ORDER BY c.conversation_key`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []ConversationInfo
	for rows.Next() {
		var ci ConversationInfo
		if err := rows.Scan(&ci.Key, &ci.LogPath, &ci.Offset, &ci.UpdatedAt, &ci.Delivered); err != nil {
			return nil, err
		}
		out = append(out, ci)
	}
	return out, rows.Err()
}
