package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Note: t.Parallel() is intentionally omitted in this package.
// These tests share process-global environment variables.

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.Project.Root)
	assert.Equal(t, ".env", cfg.Project.EnvFile)
	assert.Equal(t, "docker compose", cfg.Compose.Command)
	assert.Equal(t, "local", cfg.DVC.RemoteType)
	assert.Equal(t, int64(1<<20), cfg.DVC.TrackThreshold)
	assert.Equal(t, 42, cfg.Data.Seed)
	assert.Equal(t, 30, cfg.Readiness.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Readiness.Interval)
	assert.Equal(t, 1.0, cfg.Readiness.Multiplier)
	assert.Equal(t, uint64(10), cfg.Prereq.MinDiskGB)
	assert.Equal(t, "", cfg.Telemetry.OTLPEndpoint)
	assert.Equal(t, "logs/bringup.log", cfg.Telemetry.LogFile)
	assert.Equal(t, 10*time.Second, cfg.Telemetry.ExportInterval)
	assert.Len(t, cfg.Readiness.Services, len(DefaultServices()))
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("BRINGUP_READINESS_MAX_ATTEMPTS", "5")
	t.Setenv("BRINGUP_COMPOSE_FILE", "compose.dev.yml")
	t.Setenv("BRINGUP_DVC_REMOTE_TYPE", "s3")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Readiness.MaxAttempts)
	assert.Equal(t, "compose.dev.yml", cfg.Compose.File)
	assert.Equal(t, "s3", cfg.DVC.RemoteType)
}

func TestLoad_FileServicesReplaceDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bringup.yaml")
	body := `
readiness:
  interval: 500ms
  services:
    - name: api
      kind: http
      url: http://localhost:9999/health
      critical: true
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Readiness.Services, 1)
	assert.Equal(t, "api", cfg.Readiness.Services[0].Name)
	assert.True(t, cfg.Readiness.Services[0].Critical)
	assert.Equal(t, 500*time.Millisecond, cfg.Readiness.Interval)
}

func TestLoad_InvalidFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestCriticalServices(t *testing.T) {
	rc := ReadinessConfig{Services: DefaultServices()}

	critical := rc.CriticalServices()

	names := make([]string, 0, len(critical))
	for _, s := range critical {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"ml-service", "rag-service", "agent-service", "mlflow"}, names)
}
