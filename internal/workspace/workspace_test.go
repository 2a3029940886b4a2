package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMaterializer(root string) *Materializer {
	return &Materializer{
		Root:        root,
		Directories: []string{"data/raw", "data/processed", "models"},
		EnvFile:     ".env",
		EnvTemplate: ".env.example",
	}
}

func TestEnsure_WritesDefaultEnvWithoutTemplate(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	res := newMaterializer(root).Ensure(context.Background())

	require.Empty(t, res.Errors)
	assert.Equal(t, []string{"data/raw", "data/processed", "models"}, res.Created)
	assert.Equal(t, EnvDefault, res.EnvSource)

	body, err := os.ReadFile(filepath.Join(root, ".env"))
	require.NoError(t, err)
	env := ParseEnv(string(body))
	for _, key := range []string{
		"POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB", "REDIS_PASSWORD",
		"MLFLOW_TRACKING_URI", "OLLAMA_HOST", "API_KEY", "GRAFANA_ADMIN_PASSWORD",
		"ML_SERVICE_URL", "RAG_SERVICE_URL", "AGENT_SERVICE_URL", "LOG_LEVEL",
	} {
		assert.Contains(t, env, key)
	}
}

func TestEnsure_CopiesTemplate(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env.example"), []byte("API_KEY=from-template\n"), 0o644))

	res := newMaterializer(root).Ensure(context.Background())

	assert.Equal(t, EnvTemplate, res.EnvSource)
	body, err := os.ReadFile(filepath.Join(root, ".env"))
	require.NoError(t, err)
	assert.Equal(t, "API_KEY=from-template\n", string(body))
}

func TestEnsure_NeverOverwritesExistingEnv(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	envPath := filepath.Join(root, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("API_KEY=mine\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env.example"), []byte("API_KEY=template\n"), 0o644))

	res := newMaterializer(root).Ensure(context.Background())

	assert.Equal(t, EnvExisting, res.EnvSource)
	body, err := os.ReadFile(envPath)
	require.NoError(t, err)
	assert.Equal(t, "API_KEY=mine\n", string(body))
}

func TestEnsure_SecondRunIsNoop(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	m := newMaterializer(root)

	first := m.Ensure(context.Background())
	require.Empty(t, first.Errors)
	require.True(t, first.Changed())

	envPath := filepath.Join(root, ".env")
	before, err := os.Stat(envPath)
	require.NoError(t, err)

	// Make any rewrite observable through the modification time.
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(envPath, old, old))

	second := m.Ensure(context.Background())

	assert.Empty(t, second.Errors)
	assert.False(t, second.Changed())
	assert.Empty(t, second.Created)
	assert.ElementsMatch(t, m.Directories, second.Existing)

	after, err := os.Stat(envPath)
	require.NoError(t, err)
	assert.Equal(t, before.Size(), after.Size())
	assert.WithinDuration(t, old, after.ModTime(), time.Second)
}

func TestEnsure_FileInPlaceOfDirectoryIsRecorded(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "models"), []byte("x"), 0o644))

	res := newMaterializer(root).Ensure(context.Background())

	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Error(), "not a directory")
	assert.Equal(t, EnvDefault, res.EnvSource)
}

func TestParseEnv(t *testing.T) {
	t.Parallel()

	env := ParseEnv("# comment\n\nA=1\nB = \"two\"\nbroken\n")
	assert.Equal(t, map[string]string{"A": "1", "B": "two"}, env)
}

func TestEnsure_ReportsMissingEnvKeys(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	partial := "# local overrides\nPOSTGRES_USER=me\nPOSTGRES_PASSWORD=secret\nAPI_KEY=k\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte(partial), 0o600))

	res := newMaterializer(root).Ensure(context.Background())

	require.Empty(t, res.Errors)
	assert.Equal(t, EnvExisting, res.EnvSource)
	assert.Equal(t, []string{
		"POSTGRES_DB", "REDIS_PASSWORD", "MLFLOW_TRACKING_URI", "OLLAMA_HOST",
		"GRAFANA_ADMIN_PASSWORD", "ML_SERVICE_URL", "RAG_SERVICE_URL", "AGENT_SERVICE_URL", "LOG_LEVEL",
	}, res.MissingKeys)

	body, err := os.ReadFile(filepath.Join(root, ".env"))
	require.NoError(t, err)
	assert.Equal(t, partial, string(body))
}

func TestEnsure_DefaultEnvHasEveryKey(t *testing.T) {
	t.Parallel()

	res := newMaterializer(t.TempDir()).Ensure(context.Background())
	require.Empty(t, res.Errors)
	assert.Empty(t, res.MissingKeys)
	assert.Len(t, requiredEnvKeys(), 12)
}
