package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/3gx/ccslack/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Printf("  Config file: %s\n", config.Path())
	if config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [General]")
	fmt.Printf("    Poll interval:  %d ms\n", cfg.General.PollIntervalMS)
	fmt.Printf("    Char limit:     %d\n", cfg.General.CharLimit)
	if cfg.General.ClaudeDir != "" {
		fmt.Printf("    Claude dir:     %s\n", cfg.General.ClaudeDir)
	}
	fmt.Println()

	fmt.Println("  [Sink]")
	token := config.GetToken(cfg)
	if token != "" {
		fmt.Printf("    Token:   %s\n", maskToken(token))
	} else {
		fmt.Println("    Token:   not configured")
	}
	if cfg.Sink.Channel != "" {
		fmt.Printf("    Channel: %s\n", cfg.Sink.Channel)
	} else {
		fmt.Println("    Channel: not configured")
	}
	if cfg.Sink.BaseURL != "" {
		fmt.Printf("    API:     %s\n", cfg.Sink.BaseURL)
	}
	fmt.Println()

	fmt.Println("  [Relay]")
	fmt.Printf("    Status addr:    %s\n", cfg.Relay.Addr)
	fmt.Printf("    Events buffer:  %d\n", cfg.Relay.EventsBuffer)
	fmt.Printf("    Infinite retry: %v\n", cfg.Relay.InfiniteRetry)

	return nil
}

func maskToken(token string) string {
	if len(token) > 16 {
		return token[:8] + "..." + token[len(token)-4:]
	}
	if len(token) > 4 {
		return token[:4] + "..."
	}
	return "****"
}
