// Package config loads and saves the relay configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all ccslack configuration.
type Config struct {
	General GeneralConfig `toml:"general"`
	Sink    SinkConfig    `toml:"sink"`
	Relay   RelayConfig   `toml:"relay"`
}

// GeneralConfig holds general preferences.
type GeneralConfig struct {
	ClaudeDir      string `toml:"claude_dir,omitempty"`
	PollIntervalMS int    `toml:"poll_interval_ms"`
	CharLimit      int    `toml:"char_limit"`
}

// SinkConfig holds chat sink credentials and destination.
type SinkConfig struct {
	BaseURL string `toml:"base_url,omitempty"`
	Token   string `toml:"token,omitempty"`
	Channel string `toml:"channel,omitempty"`
}

// RelayConfig holds watch-service settings.
type RelayConfig struct {
	Addr          string `toml:"addr,omitempty"`
	EventsBuffer  int    `toml:"events_buffer"`
	InfiniteRetry bool   `toml:"infinite_retry"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			PollIntervalMS: 1500,
			CharLimit:      4000,
		},
		Relay: RelayConfig{
			Addr:         "127.0.0.1:8791",
			EventsBuffer: 200,
		},
	}
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ccslack")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "ccslack")
}

// Path returns the full path to the config file.
func Path() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Exists reports whether a config file is present.
func Exists() bool {
	_, err := os.Stat(Path())
	return err == nil
}

// Load reads the config file, returning defaults when it is absent.
func Load() (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(Path())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes the config file, creating the directory if needed.
func Save(cfg Config) error {
	if err := os.MkdirAll(ConfigDir(), 0o750); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(Path(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	defer func() { _ = f.Close() }()

	return toml.NewEncoder(f).Encode(cfg)
}

// GetToken resolves the sink token, preferring the environment.
func GetToken(cfg Config) string {
	if v := os.Getenv("CCSLACK_TOKEN"); v != "" {
		return v
	}
	return cfg.Sink.Token
}

// StateDir returns the platform-appropriate state directory.
func StateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "ccslack")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "ccslack")
}

// StorePath returns the full path to the mapping store database.
func StorePath() string {
	return filepath.Join(StateDir(), "relay.db")
}
