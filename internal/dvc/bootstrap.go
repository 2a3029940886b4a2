// Package dvc bootstraps the data version-control subsystem of the project:
// git + dvc init, remote registration, a best-effort pull and auto-tracking of
// large files. Every sub-step detects existing state and skips it, so the
// bootstrapper can run on every bring-up.
package dvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mentorchita/ecommerce-start/internal/config"
	"github.com/mentorchita/ecommerce-start/internal/shell"
)

// ErrRemoteURLRequired is returned for non-local remotes without a URL.
var ErrRemoteURLRequired = errors.New("remote URL required for non-local remote type")

const RemoteLocal = "local"

type StepStatus string

const (
	StepDone     StepStatus = "done"
	StepSkipped  StepStatus = "skipped"
	StepDegraded StepStatus = "degraded"
)

// Step is the outcome of one bootstrap sub-step.
type Step struct {
	Name   string     `json:"name"`
	Status StepStatus `json:"status"`
	Detail string     `json:"detail,omitempty"`
}

// Result aggregates the sub-steps of one Bootstrap call.
type Result struct {
	Steps      []Step `json:"steps"`
	RemoteType string `json:"remoteType"`
	RemoteName string `json:"remoteName"`
	RemoteURL  string `json:"remoteUrl"`
}

// Degraded reports whether any sub-step fell back.
func (r *Result) Degraded() bool {
	for _, s := range r.Steps {
		if s.Status == StepDegraded {
			return true
		}
	}
	return false
}

// Step returns the named step, if recorded.
func (r *Result) Step(name string) (Step, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return Step{}, false
}

func (r *Result) add(name string, status StepStatus, detail string) {
	r.Steps = append(r.Steps, Step{Name: name, Status: status, Detail: detail})
}

// Options selects the remote. Empty fields fall back to the bootstrapper
// defaults.
type Options struct {
	RemoteType string
	RemoteURL  string
	RemoteName string
}

// Bootstrapper drives git/dvc in the project root.
type Bootstrapper struct {
	root       string
	markerFile string
	defaults   Options
	runner     shell.Runner
	now        func() time.Time
}

// NewBootstrapper builds a Bootstrapper for cfg.
func NewBootstrapper(root string, cfg config.DVCConfig, runner shell.Runner) *Bootstrapper {
	return &Bootstrapper{
		root:       root,
		markerFile: cfg.MarkerFile,
		defaults: Options{
			RemoteType: cfg.RemoteType,
			RemoteURL:  cfg.RemoteURL,
			RemoteName: cfg.RemoteName,
		},
		runner: runner,
		now:    time.Now,
	}
}

// Bootstrap moves the project through uninitialized → initialized → remote
// configured → data pulled. Pull failures are degraded, not errors.
func (b *Bootstrapper) Bootstrap(ctx context.Context, opts Options) (*Result, error) {
	opts = b.resolve(opts)
	res := &Result{RemoteType: opts.RemoteType, RemoteName: opts.RemoteName, RemoteURL: opts.RemoteURL}

	needsURL := opts.RemoteType != RemoteLocal && opts.RemoteURL == ""
	initialized := b.exists(".dvc")

	// No remote can exist before init, so fail before touching anything.
	if needsURL && !initialized {
		return res, fmt.Errorf("%w: %s (pass --remote-url)", ErrRemoteURLRequired, opts.RemoteType)
	}

	if err := b.ensureInit(ctx, res, initialized); err != nil {
		return res, err
	}
	if err := b.ensureRemote(ctx, res, opts, needsURL); err != nil {
		return res, err
	}
	b.pull(ctx, res)

	if err := b.writeMarker(res); err != nil {
		slog.WarnContext(ctx, "writing dvc marker failed", "err", err)
		res.add("marker", StepDegraded, err.Error())
	} else {
		res.add("marker", StepDone, b.markerFile)
	}
	return res, nil
}

func (b *Bootstrapper) resolve(opts Options) Options {
	if opts.RemoteType == "" {
		opts.RemoteType = b.defaults.RemoteType
	}
	if opts.RemoteType == "" {
		opts.RemoteType = RemoteLocal
	}
	if opts.RemoteName == "" {
		opts.RemoteName = b.defaults.RemoteName
	}
	if opts.RemoteName == "" {
		opts.RemoteName = "storage"
	}
	if opts.RemoteURL == "" && opts.RemoteType == b.defaults.RemoteType {
		opts.RemoteURL = b.defaults.RemoteURL
	}
	return opts
}

func (b *Bootstrapper) ensureInit(ctx context.Context, res *Result, initialized bool) error {
	if initialized {
		res.add("init", StepSkipped, "already initialized")
		return nil
	}

	if !b.exists(".git") {
		if _, err := b.runner.Output(ctx, b.root, "git", "init"); err != nil {
			return fmt.Errorf("git init: %w", err)
		}
		res.add("git-init", StepDone, "")
	}

	if _, err := b.runner.Output(ctx, b.root, "dvc", "init"); err != nil {
		return fmt.Errorf("dvc init: %w", err)
	}

	if err := b.commit(ctx, "Initialize DVC", ".dvc", ".dvcignore"); err != nil {
		slog.InfoContext(ctx, "committing dvc init skipped", "err", err)
		res.add("init", StepDegraded, "initialized, commit skipped: "+err.Error())
		return nil
	}
	res.add("init", StepDone, "")
	return nil
}

func (b *Bootstrapper) ensureRemote(ctx context.Context, res *Result, opts Options, needsURL bool) error {
	remotes, err := b.Remotes(ctx)
	if err != nil {
		return err
	}
	if url, ok := remotes[opts.RemoteName]; ok {
		res.RemoteURL = url
		res.add("remote", StepSkipped, fmt.Sprintf("remote %s already configured", opts.RemoteName))
		return nil
	}
	if needsURL {
		return fmt.Errorf("%w: %s (pass --remote-url)", ErrRemoteURLRequired, opts.RemoteType)
	}

	url := opts.RemoteURL
	if opts.RemoteType == RemoteLocal && url == "" {
		url, err = b.defaultLocalURL()
		if err != nil {
			return err
		}
	}
	if opts.RemoteType == RemoteLocal {
		if err := os.MkdirAll(url, 0o755); err != nil {
			return fmt.Errorf("creating local remote %s: %w", url, err)
		}
	}

	if _, err := b.runner.Output(ctx, b.root, "dvc", "remote", "add", "-d", opts.RemoteName, url); err != nil {
		return fmt.Errorf("dvc remote add %s: %w", opts.RemoteName, err)
	}
	res.RemoteURL = url

	if err := b.commit(ctx, "Configure DVC remote "+opts.RemoteName, filepath.Join(".dvc", "config")); err != nil {
		res.add("remote", StepDegraded, "remote added, commit skipped: "+err.Error())
		return nil
	}
	res.add("remote", StepDone, url)
	return nil
}

func (b *Bootstrapper) pull(ctx context.Context, res *Result) {
	if _, err := b.runner.Output(ctx, b.root, "dvc", "pull"); err != nil {
		// First-time setups have nothing stored remotely yet.
		slog.InfoContext(ctx, "dvc pull failed", "err", err)
		res.add("pull", StepDegraded, "nothing pulled (expected on first setup)")
		return
	}
	res.add("pull", StepDone, "")
}

// Remotes parses `dvc remote list` into name → url.
func (b *Bootstrapper) Remotes(ctx context.Context) (map[string]string, error) {
	out, err := b.runner.Output(ctx, b.root, "dvc", "remote", "list")
	if err != nil {
		return nil, fmt.Errorf("dvc remote list: %w", err)
	}
	return ParseRemoteList(out), nil
}

// ParseRemoteList parses lines of "name<ws>url[<ws>(default)]".
func ParseRemoteList(out string) map[string]string {
	remotes := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		remotes[fields[0]] = fields[1]
	}
	return remotes
}

func (b *Bootstrapper) defaultLocalURL() (string, error) {
	abs, err := filepath.Abs(b.root)
	if err != nil {
		return "", fmt.Errorf("resolving project root: %w", err)
	}
	return filepath.Join(filepath.Dir(abs), filepath.Base(abs)+"-dvc-storage"), nil
}

func (b *Bootstrapper) commit(ctx context.Context, msg string, paths ...string) error {
	args := append([]string{"add"}, paths...)
	if _, err := b.runner.Output(ctx, b.root, "git", args...); err != nil {
		return err
	}
	_, err := b.runner.Output(ctx, b.root, "git", "commit", "-m", msg)
	return err
}

func (b *Bootstrapper) writeMarker(res *Result) error {
	if b.markerFile == "" {
		return nil
	}
	body := fmt.Sprintf("completed_at=%s\nremote_type=%s\nremote_name=%s\nremote_url=%s\n",
		b.now().UTC().Format(time.RFC3339), res.RemoteType, res.RemoteName, res.RemoteURL)
	return os.WriteFile(filepath.Join(b.root, b.markerFile), []byte(body), 0o644)
}

func (b *Bootstrapper) exists(rel string) bool {
	_, err := os.Stat(filepath.Join(b.root, rel))
	return err == nil
}
