// Package relay provides the long-running per-conversation watch service:
// a polling sync loop with HTTP status and event endpoints.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/3gx/ccslack/internal/syncer"
)

// SyncFunc runs one incremental sync pass from the persisted offset.
type SyncFunc func(ctx context.Context) (syncer.Result, error)

// Config controls the relay runtime behavior.
type Config struct {
	ConversationKey string
	LogPath         string
	Interval        time.Duration
	Addr            string
	EventsBuffer    int
	Sync            SyncFunc
}

// Event is emitted whenever a sync pass delivers something.
type Event struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Synced    int       `json:"synced"`
	Total     int       `json:"total"`
	NewOffset int64     `json:"new_offset"`
	Aborted   bool      `json:"aborted,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time `json:"started_at"`
	LastSyncAt      time.Time `json:"last_sync_at"`
	PollIntervalSec float64   `json:"poll_interval_sec"`
	SyncCount       int64     `json:"sync_count"`
	Conversation    string    `json:"conversation"`
	LogPath         string    `json:"log_path"`
	Offset          int64     `json:"offset"`
	SyncedTotal     int64     `json:"synced_total"`
	LastError       string    `json:"last_error,omitempty"`
	EventCount      int       `json:"event_count"`
}

// Service is one conversation's relay runtime. Each conversation owns an
// independent service with its own offset cursor; start with Run, stop by
// canceling the context.
type Service struct {
	cfg Config

	mu          sync.RWMutex
	startedAt   time.Time
	lastSyncAt  time.Time
	syncCount   int64
	syncedTotal int64
	offset      int64
	lastError   string
	nextEventID int64
	events      []Event
}

// New returns a relay service with the provided config.
func New(cfg Config) *Service {
	if cfg.Interval < 500*time.Millisecond {
		cfg.Interval = 1500 * time.Millisecond
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8791"
	}

	return &Service{
		cfg:       cfg,
		startedAt: time.Now(),
	}
}

// Run starts the HTTP endpoints and the sync loop until ctx is canceled.
// The loop is single-flight: one pass finishes before the next begins,
// which is what keeps partial-progress resume sound.
func (s *Service) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/v1/events", s.handleEvents)

	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Seed an initial pass so status is useful immediately.
	s.syncOnce(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case <-ticker.C:
			s.syncOnce(ctx)
		case err := <-errCh:
			return fmt.Errorf("relay http server: %w", err)
		}
	}
}

func (s *Service) syncOnce(ctx context.Context) {
	res, err := s.cfg.Sync(ctx)
	now := time.Now()

	s.mu.Lock()
	s.lastSyncAt = now
	s.syncCount++
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = ""
		s.offset = res.NewOffset
		s.syncedTotal += int64(res.SyncedCount)
	}

	if err != nil || res.SyncedCount > 0 || res.WasAborted {
		s.nextEventID++
		ev := Event{
			ID:        s.nextEventID,
			Timestamp: now,
			Synced:    res.SyncedCount,
			Total:     res.TotalToSync,
			NewOffset: res.NewOffset,
			Aborted:   res.WasAborted,
		}
		if err != nil {
			ev.Error = err.Error()
		}
		s.events = append(s.events, ev)
		if len(s.events) > s.cfg.EventsBuffer {
			s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
		}
	}
	s.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("ccslack relay sync error: %v", err)
	}
}

func (s *Service) snapshotStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		StartedAt:       s.startedAt,
		LastSyncAt:      s.lastSyncAt,
		PollIntervalSec: s.cfg.Interval.Seconds(),
		SyncCount:       s.syncCount,
		Conversation:    s.cfg.ConversationKey,
		LogPath:         s.cfg.LogPath,
		Offset:          s.offset,
		SyncedTotal:     s.syncedTotal,
		LastError:       s.lastError,
		EventCount:      len(s.events),
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.snapshotStatus())
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events)
}
