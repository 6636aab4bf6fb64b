package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefault_MatchesE4Table(t *testing.T) {
	cfg := Default()

	require.InDelta(t, 0.1, cfg.Upstreams["markets"].RequestsPerSecond, 1e-9)
	require.Equal(t, 1, cfg.Upstreams["markets"].Burst)
	require.Equal(t, 3, cfg.Upstreams["markets"].MaxAttempts)
	require.Equal(t, 5, cfg.Upstreams["game_log"].MaxAttempts)
	require.Equal(t, 3, cfg.Orchestrator.Workers)
	require.NoError(t, cfg.Validate())
}

func TestLoad_ParsesYAMLDocument(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/upstreams.yaml"
	yamlDoc := `
upstreams:
  markets:
    requests_per_second: 0.2
    burst: 2
    base_delay_ms: 500
    max_attempts: 4
    backoff:
      factor: 2.5
    circuit:
      consecutive_failures: 4
      window_sec: 45
      cooldown_sec: 20
    request_timeout_sec: 30
    cache_ttl_hours: 12
orchestrator:
  workers: 5
  run_timeout_sec: 120
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))

	cfg, err := Load(path)

	require.NoError(t, err)
	require.Equal(t, 5, cfg.Orchestrator.Workers)
	require.Equal(t, 4, cfg.Upstreams["markets"].MaxAttempts)
}

func TestValidate_RejectsNonPositiveWorkers(t *testing.T) {
	cfg := Default()
	cfg.Orchestrator.Workers = 0

	require.Error(t, cfg.Validate())
}
