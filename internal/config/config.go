/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int

	// Persistence. The store is optional: an empty DSN or an unreachable
	// database degrades to in-memory defaults, it never aborts startup.
	DBBackend DatabaseBackend
	DBDSN     string

	// Sequencer backend (MPD protocol).
	MPDHost            string
	MPDPort            int
	MPDPollInterval    time.Duration
	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration

	// Video playback.
	YtdlpBin      string
	PlayerBin     string
	VideoFetchMax int

	// Announcements.
	PiperBin         string
	PiperVoiceModel  string
	AnnounceCacheDir string
	DuckVolume       int

	// Shared knobs.
	CommandQueueSize   int
	VolumeCallTimeout  time.Duration
	FullVolume         int
	SourcesFile        string
	SourceSaveDebounce time.Duration
	WorkerJoinTimeout  time.Duration

	// Event fanout. Both bridges are optional and independent.
	NATSURL   string
	RedisAddr string

	// Tracing configuration.
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("JUKE_ENV", "development"),
		HTTPBind:    getEnv("JUKE_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("JUKE_HTTP_PORT", 8080),

		DBBackend: DatabaseBackend(getEnv("JUKE_DB_BACKEND", string(DatabaseSQLite))),
		DBDSN:     getEnv("JUKE_DB_DSN", "data/jukebox.db"),

		MPDHost:            getEnv("JUKE_MPD_HOST", "localhost"),
		MPDPort:            getEnvInt("JUKE_MPD_PORT", 6600),
		MPDPollInterval:    getEnvDuration("JUKE_MPD_POLL_INTERVAL", 1500*time.Millisecond),
		ReconnectBaseDelay: getEnvDuration("JUKE_RECONNECT_BASE_DELAY", 5*time.Second),
		ReconnectMaxDelay:  getEnvDuration("JUKE_RECONNECT_MAX_DELAY", 60*time.Second),

		YtdlpBin:      getEnv("JUKE_YTDLP_BIN", "yt-dlp"),
		PlayerBin:     getEnv("JUKE_PLAYER_BIN", "mpv"),
		VideoFetchMax: getEnvInt("JUKE_VIDEO_FETCH_MAX", 50),

		PiperBin:         getEnv("JUKE_PIPER_BIN", "piper"),
		PiperVoiceModel:  getEnv("JUKE_PIPER_VOICE_MODEL", ""),
		AnnounceCacheDir: getEnv("JUKE_ANNOUNCE_CACHE_DIR", "data/announce"),
		DuckVolume:       getEnvInt("JUKE_DUCK_VOLUME", 30),

		CommandQueueSize:   getEnvInt("JUKE_COMMAND_QUEUE_SIZE", 32),
		VolumeCallTimeout:  getEnvDuration("JUKE_VOLUME_CALL_TIMEOUT", 2*time.Second),
		FullVolume:         getEnvInt("JUKE_FULL_VOLUME", 100),
		SourcesFile:        getEnv("JUKE_SOURCES_FILE", "data/sources.yaml"),
		SourceSaveDebounce: getEnvDuration("JUKE_SOURCE_SAVE_DEBOUNCE", 2*time.Second),
		WorkerJoinTimeout:  getEnvDuration("JUKE_WORKER_JOIN_TIMEOUT", 5*time.Second),

		NATSURL:   getEnv("JUKE_NATS_URL", ""),
		RedisAddr: getEnv("JUKE_REDIS_ADDR", ""),

		TracingEnabled:    getEnvBool("JUKE_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("JUKE_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("JUKE_TRACING_SAMPLE_RATE", 1.0),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid JUKE_HTTP_PORT %d", cfg.HTTPPort)
	}

	if cfg.CommandQueueSize <= 0 {
		return nil, fmt.Errorf("JUKE_COMMAND_QUEUE_SIZE must be positive")
	}

	if cfg.ReconnectBaseDelay > cfg.ReconnectMaxDelay {
		return nil, fmt.Errorf("JUKE_RECONNECT_BASE_DELAY exceeds JUKE_RECONNECT_MAX_DELAY")
	}

	if cfg.FullVolume < 0 || cfg.FullVolume > 100 {
		return nil, fmt.Errorf("JUKE_FULL_VOLUME must be within 0..100")
	}

	return cfg, nil
}

// MPDAddr returns the sequencer backend address in host:port form.
func (c *Config) MPDAddr() string {
	return fmt.Sprintf("%s:%d", c.MPDHost, c.MPDPort)
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(strings.TrimSpace(val))
		if val == "true" || val == "1" || val == "yes" {
			return true
		}
		if val == "false" || val == "0" || val == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return def
}
