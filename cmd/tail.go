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
	"github.com/3gx/ccslack/internal/events"
	"github.com/3gx/ccslack/internal/render"
	"github.com/3gx/ccslack/internal/tail"
)

var flagTailFromStart bool

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print reconstructed session events live (no delivery)",
	RunE:  runTail,
}

func init() {
	tailCmd.Flags().BoolVar(&flagTailFromStart, "from-start", false, "Replay the whole log before following")
	rootCmd.AddCommand(tailCmd)
}

func runTail(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logPath, err := resolveLogPath(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	var offset int64
	if !flagTailFromStart {
		res, err := tail.ReadFrom(logPath, 0)
		if err != nil {
			return err
		}
		offset = res.Offset
	}

	rec := events.NewReconstructor()
	records := tail.Watch(ctx, logPath, tail.WatchOptions{
		FromOffset:   offset,
		PollInterval: time.Duration(cfg.General.PollIntervalMS) * time.Millisecond,
	})

	for r := range records {
		for _, ev := range rec.Feed(r) {
			fmt.Println(render.TerminalEvent(ev))
		}
	}
	return nil
}
