// Package config holds two independent configuration surfaces:
//
//   - ProcessConfig: process-level settings (listen address, log level,
//     file-tree roots, feed endpoints) loaded once at startup from
//     environment variables, exactly like the teacher's internal/config
//     package (caarlos0/env + godotenv + CLI-flag overrides).
//   - DomainConfig (domain.go): the spec's hot-reloadable JSON
//     configuration (§4.2) — filters, thresholds, mutes — re-read on
//     every tick only when its backing file's mtime changes.
//
// Keeping these separate mirrors §4.2's contract precisely: the domain
// config is not environment-based, so it gets its own loader rather than
// folding into the env-parsed struct.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ProcessConfig holds settings that do not change for the life of the
// process.
type ProcessConfig struct {
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8089"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"40"`

	// CORSOrigins is a comma-separated allowlist; empty allows any origin.
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`

	// StaleTickThreshold is how long since the scheduler's last minute
	// tick before /api/v1/health reports unhealthy rather than healthy.
	StaleTickThreshold time.Duration `env:"STALE_TICK_THRESHOLD" envDefault:"2m"`

	LogOutputDir     string `env:"LOGGER_OUTPUT_DIR" envDefault:"logger_output"`
	CatalogDir       string `env:"TREMOR_CATALOG_DIR" envDefault:"tremor_catalog"`
	DomainConfigPath string `env:"DOMAIN_CONFIG_PATH" envDefault:"config.json"`
	AlertConfigPath  string `env:"ALERT_CONFIG_PATH" envDefault:"alert_config.json"`

	// MQTT waveform feed (§4.4's acquisition endpoint; "subscribe-style
	// feed", see SPEC_FULL.md's DOMAIN STACK section).
	MQTTBrokerURL string `env:"MQTT_BROKER_URL"`
	MQTTClientID  string `env:"MQTT_CLIENT_ID" envDefault:"tremor-monitor"`
	MQTTUsername  string `env:"MQTT_USERNAME"`
	MQTTPassword  string `env:"MQTT_PASSWORD"`

	// Acquisition timeout (§5's "bounded timeout (default 5s)").
	AcquisitionTimeout time.Duration `env:"ACQUISITION_TIMEOUT" envDefault:"5s"`

	// Alarm hook (§1, §4.10's "opaque effectful callback").
	AlarmHookPath    string        `env:"ALARM_HOOK_PATH"`
	AlarmHookTimeout time.Duration `env:"ALARM_HOOK_TIMEOUT" envDefault:"10s"`

	// Simulated acquisition feed (no live seismometer network required).
	SimulateFeed bool `env:"SIMULATE_FEED" envDefault:"false"`
}

// Overrides holds CLI flag values that take priority over env vars,
// mirroring the teacher's Overrides struct.
type Overrides struct {
	EnvFile     string
	HTTPAddr    string
	LogLevel    string
	MQTTBrokerURL string
}

// LoadProcess reads ProcessConfig from a .env file, environment variables,
// and CLI overrides. Priority: CLI flags > env vars > .env file > defaults.
// A read error here is fatal to the caller (§4.2: "read errors on initial
// load are fatal").
func LoadProcess(overrides Overrides) (*ProcessConfig, error) {
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &ProcessConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse process config: %w", err)
	}

	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.MQTTBrokerURL != "" {
		cfg.MQTTBrokerURL = overrides.MQTTBrokerURL
	}

	return cfg, nil
}
