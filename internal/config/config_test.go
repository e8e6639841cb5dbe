package config

import (
	"path/filepath"
	"testing"
)

func TestLoad_DefaultsWhenAbsent(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.General.PollIntervalMS != 1500 || cfg.General.CharLimit != 4000 {
		t.Errorf("general = %+v", cfg.General)
	}
	if cfg.Relay.Addr != "127.0.0.1:8791" || cfg.Relay.EventsBuffer != 200 {
		t.Errorf("relay = %+v", cfg.Relay)
	}
	if Exists() {
		t.Error("Exists() = true with no config file")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.Sink.Channel = "C123"
	cfg.Sink.Token = "xoxb-secret"
	cfg.General.CharLimit = 2000

	if err := Save(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !Exists() {
		t.Fatal("Exists() = false after save")
	}

	got, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Sink.Channel != "C123" || got.Sink.Token != "xoxb-secret" {
		t.Errorf("sink = %+v", got.Sink)
	}
	if got.General.CharLimit != 2000 {
		t.Errorf("char limit = %d, want 2000", got.General.CharLimit)
	}
}

func TestGetToken_PrefersEnvironment(t *testing.T) {
	cfg := Config{Sink: SinkConfig{Token: "from-file"}}

	t.Setenv("CCSLACK_TOKEN", "")
	if got := GetToken(cfg); got != "from-file" {
		t.Errorf("token = %q, want from-file", got)
	}

	t.Setenv("CCSLACK_TOKEN", "from-env")
	if got := GetToken(cfg); got != "from-env" {
		t.Errorf("token = %q, want from-env", got)
	}
}

func TestStorePath_UnderStateDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", dir)

	want := filepath.Join(dir, "ccslack", "relay.db")
	if got := StorePath(); got != want {
		t.Errorf("store path = %q, want %q", got, want)
	}
}
