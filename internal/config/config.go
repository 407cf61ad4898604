// Package config owns NetPulse's persisted runtime configuration: global
// alert thresholds, the listen address, data directory, and the REST API
// key. Configuration lives as JSON on disk, written atomically, and is
// overlaid from environment variables and an optional .env file the way the
// teacher repo layers PULSE_* env vars over its own persisted config.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
	"github.com/rcourtman/netpulse/internal/logging"
)

var log = logging.Component("config")

// Mu guards every field of Config read or written outside of Load/Save, so
// a concurrent hot-reload from the file watcher never races a handler's read.
var Mu sync.RWMutex

// Config is NetPulse's full runtime configuration.
type Config struct {
	DataDir    string `json:"dataDir"`
	ListenAddr string `json:"listenAddr"`

	PingIntervalSeconds int `json:"pingIntervalSeconds"`

	LatencyWarningMs           int64   `json:"latencyWarningMs"`
	LatencyCriticalMs          int64   `json:"latencyCriticalMs"`
	PacketLossWarningPercent   float64 `json:"packetLossWarningPercent"`
	PacketLossCriticalPercent  float64 `json:"packetLossCriticalPercent"`
	ConsecutiveFailuresForDown int     `json:"consecutiveFailuresForDown"`

	RetentionDays  int  `json:"retentionDays"`
	AutoCleanup    bool `json:"autoCleanup"`

	LogLevel string `json:"logLevel"`

	// MetricsAddr serves the additive /metrics and /api/ws surface over a
	// plain net/http server, separate from the hand-rolled REST listener.
	MetricsAddr string `json:"metricsAddr"`

	// AllowedOrigins is a wildcard allow-list (e.g. "*.example.com")
	// checked against a request's Origin header; "*" allows everything.
	AllowedOrigins []string `json:"allowedOrigins"`

	WebhookEndpoints []WebhookConfig `json:"webhookEndpoints"`
}

// WebhookConfig is a persisted notification sink.
type WebhookConfig struct {
	URL     string `json:"url"`
	Enabled bool   `json:"enabled"`
	Secret  string `json:"secret,omitempty"`
}

// Default returns the baseline configuration applied before env overrides
// and the persisted file are layered on.
func Default() *Config {
	return &Config{
		DataDir:                    "/data",
		ListenAddr:                 ":8443",
		PingIntervalSeconds:        30,
		LatencyWarningMs:           150,
		LatencyCriticalMs:          500,
		PacketLossWarningPercent:   5,
		PacketLossCriticalPercent:  20,
		ConsecutiveFailuresForDown: 3,
		RetentionDays:              30,
		AutoCleanup:                true,
		LogLevel:                   "info",
		MetricsAddr:                ":9100",
		AllowedOrigins:             []string{"*"},
	}
}

const configFileName = "netpulse.json"

// Load builds a Config by layering, lowest to highest precedence: built-in
// defaults, the persisted JSON file, and finally environment variables. An
// optional .env file in dataDir (dev convenience, per the teacher's PULSE_*
// dotenv overlay) is loaded into the process environment first, without
// replacing variables already set, so its values override the JSON file but
// not the real environment.
func Load(dataDir string) (*Config, error) {
	if dataDir == "" {
		dataDir = Default().DataDir
	}

	if envPath := filepath.Join(dataDir, ".env"); fileExists(envPath) {
		if err := godotenv.Load(envPath); err != nil {
			log.Warn().Err(err).Str("path", envPath).Msg("failed to load .env overlay")
		}
	}

	cfg := Default()
	cfg.DataDir = dataDir

	path := filepath.Join(dataDir, configFileName)
	if fileExists(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse %q: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Save persists cfg to dataDir/netpulse.json, writing to a temp file and
// renaming into place so a crash mid-write never leaves a truncated file.
func Save(cfg *Config) error {
	Mu.RLock()
	data, err := json.MarshalIndent(cfg, "", "  ")
	Mu.RUnlock()
	if err != nil {
		return fmt.Errorf("config.Save: marshal: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("config.Save: create data directory %q: %w", cfg.DataDir, err)
	}

	path := filepath.Join(cfg.DataDir, configFileName)
	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, data, 0o600); err != nil {
		return fmt.Errorf("config.Save: write temp file %q: %w", tempPath, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		removeErr := os.Remove(tempPath)
		renameErr := fmt.Errorf("config.Save: rename %q to %q: %w", tempPath, path, err)
		if removeErr != nil && !os.IsNotExist(removeErr) {
			return errors.Join(renameErr, fmt.Errorf("config.Save: remove temp file %q: %w", tempPath, removeErr))
		}
		return renameErr
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NETPULSE_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("NETPULSE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v, ok := envInt(os.Getenv("NETPULSE_PING_INTERVAL_SECONDS")); ok {
		cfg.PingIntervalSeconds = v
	}
	if v, ok := envInt64(os.Getenv("NETPULSE_LATENCY_WARNING_MS")); ok {
		cfg.LatencyWarningMs = v
	}
	if v, ok := envInt64(os.Getenv("NETPULSE_LATENCY_CRITICAL_MS")); ok {
		cfg.LatencyCriticalMs = v
	}
	if v, ok := envInt(os.Getenv("NETPULSE_RETENTION_DAYS")); ok {
		cfg.RetentionDays = v
	}
	if v := os.Getenv("NETPULSE_AUTO_CLEANUP"); v != "" {
		cfg.AutoCleanup = v == "true" || v == "1"
	}
}

func envInt(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

func envInt64(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
