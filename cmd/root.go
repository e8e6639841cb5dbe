// Package cmd implements the ccslack CLI commands.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/3gx/ccslack/internal/config"
	"github.com/3gx/ccslack/internal/session"
	"github.com/3gx/ccslack/internal/sink"
	"github.com/3gx/ccslack/internal/store"
	"github.com/3gx/ccslack/internal/syncer"
)

var (
	flagSession   string
	flagLogFile   string
	flagDataDir   string
	flagChannel   string
	flagStorePath string
	flagQuiet     bool
)

var rootCmd = &cobra.Command{
	Use:   "ccslack",
	Short: "Mirror Claude Code sessions into Slack",
	Long:  "Relay an agent session log into a chat channel: turns, tool activity, and text, delivered exactly once.",
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	homeDir, _ := os.UserHomeDir()
	defaultDataDir := filepath.Join(homeDir, ".claude")

	rootCmd.PersistentFlags().StringVarP(&flagSession, "session", "s", "", "Session id to mirror (resolved under the data dir)")
	rootCmd.PersistentFlags().StringVarP(&flagLogFile, "log-file", "f", "", "Session JSONL file (overrides --session)")
	rootCmd.PersistentFlags().StringVarP(&flagDataDir, "data-dir", "d", defaultDataDir, "Claude data directory")
	rootCmd.PersistentFlags().StringVarP(&flagChannel, "channel", "c", "", "Sink channel (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagStorePath, "store", "", "Mapping store database path")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
}

// resolveLogPath picks the session log from flags.
func resolveLogPath(cfg config.Config) (string, error) {
	if flagLogFile != "" {
		return flagLogFile, nil
	}
	if flagSession == "" {
		return "", fmt.Errorf("either --session or --log-file is required")
	}
	dataDir := flagDataDir
	if cfg.General.ClaudeDir != "" && !rootCmd.PersistentFlags().Changed("data-dir") {
		dataDir = cfg.General.ClaudeDir
	}
	return session.FindSessionFile(dataDir, flagSession)
}

// conversationKey identifies the conversation in the mapping store: the
// channel plus the log path, so re-pointing a channel at another session
// starts a fresh cursor.
func conversationKey(channel, logPath string) string {
	return channel + "|" + logPath
}

func storePath() string {
	if flagStorePath != "" {
		return flagStorePath
	}
	return config.StorePath()
}

// openRelay wires the store, sink, and engine shared by sync and watch.
func openRelay(cfg config.Config) (*store.Store, *syncer.Engine, string, string, error) {
	logPath, err := resolveLogPath(cfg)
	if err != nil {
		return nil, nil, "", "", err
	}

	channel := flagChannel
	if channel == "" {
		channel = cfg.Sink.Channel
	}
	client := sink.NewClient(cfg.Sink.BaseURL, config.GetToken(cfg), channel)
	if client == nil {
		return nil, nil, "", "", fmt.Errorf("sink not configured: set sink token and channel (see `ccslack config`)")
	}

	st, err := store.Open(storePath())
	if err != nil {
		return nil, nil, "", "", err
	}

	key := conversationKey(channel, logPath)
	return st, syncer.New(st, client, key), key, logPath, nil
}
