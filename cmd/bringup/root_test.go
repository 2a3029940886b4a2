package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentorchita/ecommerce-start/internal/config"
	"github.com/mentorchita/ecommerce-start/internal/console"
	"github.com/mentorchita/ecommerce-start/internal/dvc"
	"github.com/mentorchita/ecommerce-start/internal/orchestrator"
	"github.com/mentorchita/ecommerce-start/internal/shell/shelltest"
)

func TestRootCmd_UnknownFlagIsUsageError(t *testing.T) {
	cmd := newRootCmd()
	var stderr bytes.Buffer
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--turbo"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag")
	assert.Contains(t, stderr.String(), "--skip-build")
}

func TestRootCmd_RunFlags(t *testing.T) {
	t.Cleanup(func() { runCfg = orchestrator.RunConfiguration{} })

	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--quick", "--skip-data"}))
	assert.Equal(t, orchestrator.RunConfiguration{QuickMode: true, SkipData: true}, runCfg)
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()
	for _, path := range [][]string{{"verify"}, {"serve"}, {"dvc", "init"}, {"dvc", "track"}} {
		found, _, err := cmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], found.Name())
	}
}

func TestAlreadyReported(t *testing.T) {
	t.Parallel()

	assert.True(t, alreadyReported(fmt.Errorf("%w: docker", orchestrator.ErrPrerequisitesNotMet)))
	assert.True(t, alreadyReported(fmt.Errorf("%w: exit 1", orchestrator.ErrBuildFailed)))
	assert.True(t, alreadyReported(fmt.Errorf("dvc: %w", dvc.ErrRemoteURLRequired)))
	assert.False(t, alreadyReported(fmt.Errorf("loading config: boom")))
}

func TestAppContext_Path(t *testing.T) {
	t.Parallel()

	a := &AppContext{cfg: &config.Config{Project: config.ProjectConfig{Root: "/srv/course"}}}
	assert.Equal(t, filepath.Join("/srv/course", "logs", "bringup.log"), a.path("logs/bringup.log"))
	assert.Equal(t, "/var/log/bringup.log", a.path("/var/log/bringup.log"))
	assert.Equal(t, "", a.path(""))
}

func TestVerifyCmd(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer up.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	prev := cfg
	t.Cleanup(func() { cfg = prev })

	tests := []struct {
		name     string
		services []config.ServiceConfig
		wantErr  bool
		wantLine string
	}{
		{
			name: "all healthy",
			services: []config.ServiceConfig{
				{Name: "ml-service", Kind: "http", URL: up.URL},
				{Name: "grafana", Kind: "http", URL: up.URL},
			},
			wantLine: "Healthy: 2/2",
		},
		{
			name: "one unhealthy",
			services: []config.ServiceConfig{
				{Name: "ml-service", Kind: "http", URL: up.URL},
				{Name: "qdrant", Kind: "http", URL: down.URL},
			},
			wantErr:  true,
			wantLine: "Healthy: 1/2",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg = &config.Config{Readiness: config.ReadinessConfig{
				MaxAttempts: 5,
				Interval:    time.Millisecond,
				CallTimeout: time.Second,
				Concurrency: 2,
				Services:    tc.services,
			}}

			cmd := newVerifyCmd()
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetArgs([]string{"--attempts", "2"})

			err := cmd.ExecuteContext(context.Background())
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, out.String(), "unhealthy after 2 attempt(s)")
			} else {
				require.NoError(t, err)
			}
			assert.Contains(t, out.String(), tc.wantLine)
		})
	}
}

func TestVerifyCmd_DefaultIsOneCheckPerService(t *testing.T) {
	var hits atomic.Int32
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	prev := cfg
	t.Cleanup(func() { cfg = prev })
	cfg = &config.Config{Readiness: config.ReadinessConfig{
		MaxAttempts: 30,
		Interval:    time.Second,
		CallTimeout: time.Second,
		Concurrency: 1,
		Services:    []config.ServiceConfig{{Name: "qdrant", Kind: "http", URL: down.URL}},
	}}

	cmd := newVerifyCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(nil)

	start := time.Now()
	err := cmd.ExecuteContext(context.Background())

	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
	assert.Less(t, time.Since(start), time.Second)
	assert.Contains(t, out.String(), "unhealthy after 1 attempt(s)")
}

func TestPipeline_UnknownCriticalKindIsConfigError(t *testing.T) {
	bad := &AppContext{
		cfg: &config.Config{Readiness: config.ReadinessConfig{Services: []config.ServiceConfig{
			{Name: "ml-service", Kind: "http", URL: "http://localhost:8001/health", Critical: true},
			{Name: "rag-service", Kind: "grpc", URL: "localhost:8002", Critical: true},
		}}},
		runner: shelltest.New(),
	}

	orch, err := bad.Pipeline(console.Discard())
	require.Error(t, err)
	assert.Nil(t, orch)
	assert.Contains(t, err.Error(), "unknown check kind")

	prev := app
	t.Cleanup(func() { app = prev })
	app = bad

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	err = runPipeline(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "readiness targets")
	assert.False(t, alreadyReported(err))
}
