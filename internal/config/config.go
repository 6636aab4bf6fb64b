// Package config loads the per-upstream rate/backoff/circuit table of
// §6 E4 from YAML. Grounded directly on cryptorun's
// internal/config/providers.go ProvidersConfig/ProviderConfig/
// BackoffConfig/CircuitConfig shape, generalized from exchange
// providers to hoopvalue's Markets/GameLog/TeamForm upstreams.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// UpstreamsConfig is the root document: one entry per upstream plus
// global orchestrator settings.
type UpstreamsConfig struct {
	Upstreams map[string]UpstreamConfig `yaml:"upstreams"`
	Orchestrator OrchestratorConfig     `yaml:"orchestrator"`
	Archive      ArchiveConfig          `yaml:"archive"`
	Redis        RedisConfig            `yaml:"redis"`
	Metrics      MetricsConfig          `yaml:"metrics"`
}

// ArchiveConfig configures the optional Postgres run archive
// (internal/store). Empty DSN means archival stays disabled even when
// a run requests it via RunInput.ArchiveRun.
type ArchiveConfig struct {
	DSN        string `yaml:"dsn"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// RedisConfig configures the optional Redis-backed run-output cache
// (internal/cacheredis). Empty Addr means it stays disabled.
type RedisConfig struct {
	Addr       string `yaml:"addr"`
	DB         int    `yaml:"db"`
	TTLHours   int    `yaml:"ttl_hours"`
}

// MetricsConfig configures the optional health/metrics HTTP server
// (internal/httpapi). Empty Addr means it stays disabled.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// UpstreamConfig is one row of §6 E4's table.
type UpstreamConfig struct {
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	BaseDelayMS       int           `yaml:"base_delay_ms"`
	MaxAttempts       int           `yaml:"max_attempts"`
	Backoff           BackoffConfig `yaml:"backoff"`
	Circuit           CircuitConfig `yaml:"circuit"`
	RequestTimeoutSec int           `yaml:"request_timeout_sec"`
	CacheTTLHours     int           `yaml:"cache_ttl_hours"`
}

// BackoffConfig is the retry executor's exponential-with-full-jitter
// parameters, per §4.3/internal/retry.
type BackoffConfig struct {
	Factor float64 `yaml:"factor"`
}

// CircuitConfig maps directly onto internal/breaker.Config.
type CircuitConfig struct {
	ConsecutiveFailures int `yaml:"consecutive_failures"`
	WindowSec           int `yaml:"window_sec"`
	CooldownSec         int `yaml:"cooldown_sec"`
}

// OrchestratorConfig holds §5's worker pool settings as read from the
// config file. Validate requires Workers to be positive; nothing else
// reads these fields: Analyze takes its pool width from
// RunInput.Workers and applies no run timeout or inter-unit delay.
type OrchestratorConfig struct {
	Workers         int `yaml:"workers"`
	RunTimeoutSec   int `yaml:"run_timeout_sec"`
	InterUnitDelayMS int `yaml:"inter_unit_delay_ms"`
}

// Load reads and parses an UpstreamsConfig from path.
func Load(path string) (*UpstreamsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read upstreams config: %w", err)
	}

	var cfg UpstreamsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse upstreams config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid upstreams config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the document is internally consistent.
func (c *UpstreamsConfig) Validate() error {
	if c.Orchestrator.Workers <= 0 {
		return fmt.Errorf("orchestrator.workers must be positive")
	}
	for name, u := range c.Upstreams {
		if u.RequestsPerSecond <= 0 {
			return fmt.Errorf("upstream %q: requests_per_second must be positive", name)
		}
		if u.MaxAttempts <= 0 {
			return fmt.Errorf("upstream %q: max_attempts must be positive", name)
		}
	}
	return nil
}

// Default returns the §6 E4 table's built-in defaults. Load does not
// fall back to it, and pkg/hoopvalue.New always reads a config file.
func Default() *UpstreamsConfig {
	return &UpstreamsConfig{
		Upstreams: map[string]UpstreamConfig{
			"markets": {
				RequestsPerSecond: 0.1, Burst: 1, BaseDelayMS: 1000, MaxAttempts: 3,
				Backoff: BackoffConfig{Factor: 2}, Circuit: CircuitConfig{ConsecutiveFailures: 5, WindowSec: 60, CooldownSec: 30},
				RequestTimeoutSec: 60, CacheTTLHours: 24,
			},
			"game_log": {
				RequestsPerSecond: 0.333, Burst: 2, BaseDelayMS: 1000, MaxAttempts: 5,
				Backoff: BackoffConfig{Factor: 2}, Circuit: CircuitConfig{ConsecutiveFailures: 5, WindowSec: 60, CooldownSec: 30},
				RequestTimeoutSec: 60, CacheTTLHours: 24,
			},
			"team_form": {
				RequestsPerSecond: 0.333, Burst: 2, BaseDelayMS: 1000, MaxAttempts: 5,
				Backoff: BackoffConfig{Factor: 2}, Circuit: CircuitConfig{ConsecutiveFailures: 5, WindowSec: 60, CooldownSec: 30},
				RequestTimeoutSec: 5, CacheTTLHours: 24,
			},
		},
		Orchestrator: OrchestratorConfig{Workers: 3, RunTimeoutSec: 300},
	}
}

// RequestTimeout returns the configured per-upstream request timeout
// as a time.Duration.
func (u UpstreamConfig) RequestTimeout() time.Duration {
	return time.Duration(u.RequestTimeoutSec) * time.Second
}

// CacheTTL returns the configured cache TTL as a time.Duration.
func (u UpstreamConfig) CacheTTL() time.Duration {
	return time.Duration(u.CacheTTLHours) * time.Hour
}

// Timeout returns the archive's per-query timeout as a time.Duration.
func (a ArchiveConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSec) * time.Second
}

// TTL returns the Redis cache's default entry TTL as a time.Duration.
func (r RedisConfig) TTL() time.Duration {
	return time.Duration(r.TTLHours) * time.Hour
}
