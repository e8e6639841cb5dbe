// Package tail reads session log files incrementally from byte offsets.
package tail

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"os"
	"time"

	"github.com/3gx/ccslack/internal/session"
)

// DefaultPollInterval is the watch poll cadence when none is configured.
const DefaultPollInterval = 1500 * time.Millisecond

// ReadResult holds the records read from one pass over a log file.
type ReadResult struct {
	Records []session.Record
	// Offset points past the last fully-read line. A trailing line with
	// no newline is not consumed; the next read resumes at its start.
	Offset  int64
	Skipped int // malformed lines dropped
}

// ReadFrom reads all complete lines at or after offset. A missing file is
// not an error: it yields an empty result at the given offset. Malformed
// lines are skipped individually and never abort the read.
func ReadFrom(path string, offset int64) (ReadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ReadResult{Offset: offset}, nil
		}
		return ReadResult{Offset: offset}, err
	}
	defer func() { _ = f.Close() }()

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return ReadResult{Offset: offset}, err
		}
	}

	res := ReadResult{Offset: offset}
	r := bufio.NewReaderSize(f, 256*1024)

	for {
		line, err := r.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Partial final line stays unconsumed.
				return res, nil
			}
			return res, err
		}

		res.Offset += int64(len(line))

		rec, perr := session.ParseLine(line)
		if perr != nil {
			if !errors.Is(perr, session.ErrSkip) {
				res.Skipped++
				log.Printf("ccslack: skipping malformed log line at offset %d: %v", res.Offset-int64(len(line)), perr)
			}
			continue
		}
		res.Records = append(res.Records, rec)
	}
}

// WatchOptions configures a polling watch.
type WatchOptions struct {
	FromOffset   int64
	PollInterval time.Duration
}

// Watch polls path for growth and emits newly completed records until ctx is
// canceled. Only the new bytes are read on each growth; the channel is
// closed when the watch stops. Restartable from any byte offset.
func Watch(ctx context.Context, path string, opts WatchOptions) <-chan session.Record {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	out := make(chan session.Record)

	go func() {
		defer close(out)

		offset := opts.FromOffset
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			info, err := os.Stat(path)
			if err == nil && info.Size() > offset {
				res, rerr := ReadFrom(path, offset)
				if rerr != nil {
					log.Printf("ccslack: watch read %s: %v", path, rerr)
				}
				offset = res.Offset
				for _, rec := range res.Records {
					select {
					case out <- rec:
					case <-ctx.Done():
						return
					}
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return out
}
