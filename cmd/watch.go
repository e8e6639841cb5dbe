package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/3gx/ccslack/internal/config"
	"github.com/3gx/ccslack/internal/relay"
	"github.com/3gx/ccslack/internal/syncer"
)

var (
	flagWatchAddr     string
	flagWatchInterval time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously mirror the session until interrupted",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&flagWatchAddr, "addr", "", "HTTP status listen address")
	watchCmd.Flags().DurationVar(&flagWatchInterval, "interval", 0, "Polling interval (default from config)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	st, engine, key, logPath, err := openRelay(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	interval := flagWatchInterval
	if interval <= 0 {
		interval = time.Duration(cfg.General.PollIntervalMS) * time.Millisecond
	}
	addr := flagWatchAddr
	if addr == "" {
		addr = cfg.Relay.Addr
	}

	opts := syncer.Options{
		CharLimit:     cfg.General.CharLimit,
		InfiniteRetry: cfg.Relay.InfiniteRetry,
	}

	svc := relay.New(relay.Config{
		ConversationKey: key,
		LogPath:         logPath,
		Interval:        interval,
		Addr:            addr,
		EventsBuffer:    cfg.Relay.EventsBuffer,
		Sync: func(ctx context.Context) (syncer.Result, error) {
			offset, err := st.Offset(key)
			if err != nil {
				return syncer.Result{}, err
			}
			return engine.Sync(ctx, logPath, offset, opts)
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if !flagQuiet {
		fmt.Printf("  Watching %s\n", logPath)
		fmt.Printf("  Status at http://%s/v1/status\n", addr)
	}
	return svc.Run(ctx)
}
