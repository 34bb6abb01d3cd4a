package config

import (
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBBackend != DatabaseSQLite {
		t.Fatalf("expected sqlite default backend, got %q", cfg.DBBackend)
	}
	if cfg.MPDAddr() != "localhost:6600" {
		t.Fatalf("unexpected MPD addr: %q", cfg.MPDAddr())
	}
	if cfg.ReconnectBaseDelay != 5*time.Second || cfg.ReconnectMaxDelay != 60*time.Second {
		t.Fatalf("unexpected reconnect delays: %s / %s", cfg.ReconnectBaseDelay, cfg.ReconnectMaxDelay)
	}
}

func TestLoadReadsEnvOverrides(t *testing.T) {
	t.Setenv("JUKE_MPD_HOST", "jukebox.local")
	t.Setenv("JUKE_MPD_PORT", "6601")
	t.Setenv("JUKE_MPD_POLL_INTERVAL", "500ms")
	t.Setenv("JUKE_TRACING_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.MPDAddr() != "jukebox.local:6601" {
		t.Fatalf("unexpected MPD addr: %q", cfg.MPDAddr())
	}
	if cfg.MPDPollInterval != 500*time.Millisecond {
		t.Fatalf("unexpected poll interval: %s", cfg.MPDPollInterval)
	}
	if !cfg.TracingEnabled {
		t.Fatal("expected tracing enabled")
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("JUKE_DB_BACKEND", "mongodb")
	if _, err := Load(); err == nil {
		t.Fatal("expected load to fail for unknown backend")
	}
}

func TestLoadRejectsInvertedReconnectDelays(t *testing.T) {
	t.Setenv("JUKE_RECONNECT_BASE_DELAY", "2m")
	t.Setenv("JUKE_RECONNECT_MAX_DELAY", "30s")
	if _, err := Load(); err == nil {
		t.Fatal("expected load to fail when base delay exceeds max delay")
	}
}
