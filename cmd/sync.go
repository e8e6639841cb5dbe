package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/3gx/ccslack/internal/config"
	"github.com/3gx/ccslack/internal/syncer"
)

var flagSyncInfiniteRetry bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one incremental sync pass",
	RunE:  runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&flagSyncInfiniteRetry, "infinite-retry", false, "Retry transient delivery failures until interrupted")
	rootCmd.AddCommand(syncCmd)
}

func runSync(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	st, engine, key, logPath, err := openRelay(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	offset, err := st.Offset(key)
	if err != nil {
		return err
	}

	// SIGINT aborts between items; partial progress stays delivered.
	var aborted atomic.Bool
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		aborted.Store(true)
	}()

	opts := syncer.Options{
		IsAborted:     aborted.Load,
		CharLimit:     cfg.General.CharLimit,
		InfiniteRetry: flagSyncInfiniteRetry || cfg.Relay.InfiniteRetry,
	}
	if !flagQuiet {
		opts.OnProgress = func(done, total int, lastItem string) {
			fmt.Fprintf(os.Stderr, "\r  Syncing [%d/%d] %s", done, total, lastItem)
		}
	}

	res, err := engine.Sync(context.Background(), logPath, offset, opts)
	if !flagQuiet {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return fmt.Errorf("sync failed after %d/%d turns (safe to re-run): %w",
			res.SyncedCount, res.TotalToSync, err)
	}

	if !flagQuiet {
		switch {
		case res.WasAborted:
			fmt.Printf("  Aborted after %d/%d turns; re-run to continue.\n", res.SyncedCount, res.TotalToSync)
		case res.SyncedCount == 0:
			fmt.Println("  Nothing new to sync.")
		default:
			fmt.Printf("  Synced %d turns (offset %d).\n", res.SyncedCount, res.NewOffset)
		}
	}
	return nil
}
