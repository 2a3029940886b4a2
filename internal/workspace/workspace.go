// Package workspace materializes the project directories and the .env file
// the compose stack reads. It never overwrites anything that already exists.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mentorchita/ecommerce-start/internal/config"
)

// DefaultEnv is written when neither the env file nor its template exist.
const DefaultEnv = `# Generated by bringup. Edit freely; bringup never overwrites this file.
POSTGRES_USER=mlops
POSTGRES_PASSWORD=mlops
POSTGRES_DB=ecommerce
REDIS_PASSWORD=redis
MLFLOW_TRACKING_URI=http://mlflow:5000
OLLAMA_HOST=http://ollama:11434
API_KEY=change-me
GRAFANA_ADMIN_PASSWORD=admin
ML_SERVICE_URL=http://ml-service:8001
RAG_SERVICE_URL=http://rag-service:8002
AGENT_SERVICE_URL=http://agent-service:8003
LOG_LEVEL=INFO
`

// EnvSource says where the env file came from on this run.
type EnvSource string

const (
	EnvExisting EnvSource = "existing"
	EnvTemplate EnvSource = "template"
	EnvDefault  EnvSource = "default"
	EnvFailed   EnvSource = "failed"
)

// Result lists what Ensure did. Errors are collected, not returned, so a bad
// directory never stops the bring-up.
type Result struct {
	Created   []string
	Existing  []string
	EnvFile   string
	EnvSource EnvSource
	// MissingKeys are DefaultEnv keys absent from the env file, in
	// DefaultEnv order. Existing files are reported, never patched.
	MissingKeys []string
	Errors      []error
}

// Changed reports whether anything was written.
func (r Result) Changed() bool {
	return len(r.Created) > 0 || r.EnvSource == EnvTemplate || r.EnvSource == EnvDefault
}

// Materializer creates missing directories and the env file under Root.
type Materializer struct {
	Root        string
	Directories []string
	EnvFile     string
	EnvTemplate string
}

// NewMaterializer builds a Materializer from the project config.
func NewMaterializer(cfg config.ProjectConfig) *Materializer {
	return &Materializer{
		Root:        cfg.Root,
		Directories: cfg.Directories,
		EnvFile:     cfg.EnvFile,
		EnvTemplate: cfg.EnvTemplate,
	}
}

// Ensure is idempotent: a second call creates nothing and modifies nothing.
func (m *Materializer) Ensure(ctx context.Context) Result {
	var res Result

	for _, dir := range m.Directories {
		path := m.path(dir)
		info, err := os.Stat(path)
		switch {
		case err == nil && info.IsDir():
			res.Existing = append(res.Existing, dir)
			continue
		case err == nil:
			res.Errors = append(res.Errors, fmt.Errorf("%s exists and is not a directory", dir))
			continue
		case !errors.Is(err, fs.ErrNotExist):
			res.Errors = append(res.Errors, fmt.Errorf("stat %s: %w", dir, err))
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("creating %s: %w", dir, err))
			continue
		}
		slog.DebugContext(ctx, "created directory", "dir", path)
		res.Created = append(res.Created, dir)
	}

	res.EnvFile = m.EnvFile
	src, err := m.ensureEnv()
	res.EnvSource = src
	if err != nil {
		res.Errors = append(res.Errors, err)
		return res
	}
	if m.EnvFile != "" {
		missing, err := m.missingKeys()
		if err != nil {
			res.Errors = append(res.Errors, err)
		}
		res.MissingKeys = missing
	}
	return res
}

// requiredEnvKeys lists the keys of DefaultEnv in file order.
func requiredEnvKeys() []string {
	var keys []string
	for _, line := range strings.Split(DefaultEnv, "\n") {
		if k, _, ok := envLine(line); ok {
			keys = append(keys, k)
		}
	}
	return keys
}

func (m *Materializer) missingKeys() ([]string, error) {
	body, err := os.ReadFile(m.path(m.EnvFile))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", m.EnvFile, err)
	}
	env := ParseEnv(string(body))
	var missing []string
	for _, k := range requiredEnvKeys() {
		if _, ok := env[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing, nil
}

func (m *Materializer) ensureEnv() (EnvSource, error) {
	if m.EnvFile == "" {
		return EnvExisting, nil
	}
	target := m.path(m.EnvFile)
	if _, err := os.Stat(target); err == nil {
		return EnvExisting, nil
	}

	content := []byte(DefaultEnv)
	src := EnvDefault
	if m.EnvTemplate != "" {
		tmpl, err := os.ReadFile(m.path(m.EnvTemplate))
		switch {
		case err == nil:
			content, src = tmpl, EnvTemplate
		case !errors.Is(err, fs.ErrNotExist):
			return EnvFailed, fmt.Errorf("reading %s: %w", m.EnvTemplate, err)
		}
	}

	if err := writeExclusive(target, content); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return EnvExisting, nil
		}
		return EnvFailed, fmt.Errorf("writing %s: %w", m.EnvFile, err)
	}
	return src, nil
}

// writeExclusive creates path only if absent.
func writeExclusive(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(content); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return f.Close()
}

func (m *Materializer) path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(m.Root, rel)
}

// ParseEnv reads KEY=VALUE lines, skipping blanks and comments.
func ParseEnv(content string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		if k, v, ok := envLine(line); ok {
			out[k] = v
		}
	}
	return out
}

func envLine(line string) (key, value string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	k, v, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	return strings.TrimSpace(k), strings.Trim(strings.TrimSpace(v), `"'`), true
}
