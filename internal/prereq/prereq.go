// Package prereq verifies the tools and host resources the course stack needs
// before anything is built or started.
package prereq

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/mentorchita/ecommerce-start/internal/config"
	"github.com/mentorchita/ecommerce-start/internal/shell"
)

const gib = 1 << 30

type Kind string

const (
	KindTool     Kind = "tool"
	KindResource Kind = "resource"
)

// Check is the outcome of one prerequisite.
type Check struct {
	Name         string `json:"name"`
	Kind         Kind   `json:"kind"`
	Found        bool   `json:"found"`
	Version      string `json:"version,omitempty"`
	Minimum      string `json:"minimum,omitempty"`
	MeetsMinimum bool   `json:"meetsMinimum"`
	Required     bool   `json:"required"`
	Detail       string `json:"detail,omitempty"`
	Hint         string `json:"hint,omitempty"`
}

// OK reports whether the check passed outright.
func (c Check) OK() bool {
	return c.Found && c.MeetsMinimum
}

// Blocking reports whether this check alone must stop the run. A missing
// required tool blocks; an old version does not. A required resource blocks
// only when it was measured and came in below the threshold.
func (c Check) Blocking() bool {
	if !c.Required {
		return false
	}
	if c.Kind == KindTool {
		return !c.Found
	}
	return c.Found && !c.MeetsMinimum
}

// Report aggregates every check. Checks are never short-circuited.
type Report struct {
	AllMet bool    `json:"allMet"`
	Checks []Check `json:"checks"`
}

// Failures returns checks that are not OK, blocking or not.
func (r Report) Failures() []Check {
	var out []Check
	for _, c := range r.Checks {
		if !c.OK() {
			out = append(out, c)
		}
	}
	return out
}

// NewReport computes AllMet over checks.
func NewReport(checks []Check) Report {
	allMet := true
	for _, c := range checks {
		if c.Blocking() {
			allMet = false
		}
	}
	return Report{AllMet: allMet, Checks: checks}
}

// Tool describes one required executable. VersionArgs may be empty when only
// presence matters. Alternates are tried in order when Binary is absent.
type Tool struct {
	Name        string
	Binary      string
	VersionArgs []string
	Minimum     string
	Hint        string
	Alternates  []Tool
}

// Verifier runs tool and resource checks with injectable OS seams.
type Verifier struct {
	tools       []Tool
	diskPath    string
	minDisk     uint64
	minMemory   uint64
	lookPath    func(string) (string, error)
	runner      shell.Runner
	freeDisk    func(path string) (uint64, error)
	totalMemory func() (uint64, error)
}

// NewVerifier builds the verifier for the course stack from cfg.
func NewVerifier(cfg *config.Config, runner shell.Runner) *Verifier {
	return &Verifier{
		tools:       DefaultTools(cfg),
		diskPath:    cfg.Project.Root,
		minDisk:     cfg.Prereq.MinDiskGB * gib,
		minMemory:   cfg.Prereq.MinMemoryGB * gib,
		lookPath:    exec.LookPath,
		runner:      runner,
		freeDisk:    freeDiskBytes,
		totalMemory: totalMemoryBytes,
	}
}

// DefaultTools lists container engine, compose, python, git and dvc.
func DefaultTools(cfg *config.Config) []Tool {
	composeFields := strings.Fields(cfg.Compose.Command)
	compose := Tool{
		Name:    "docker compose",
		Minimum: cfg.Prereq.MinComposeVersion,
		Hint:    "Install the Docker Compose plugin: https://docs.docker.com/compose/install/",
		Alternates: []Tool{{
			Name:        "docker-compose",
			Binary:      "docker-compose",
			VersionArgs: []string{"--version"},
			Minimum:     cfg.Prereq.MinComposeVersion,
		}},
	}
	if len(composeFields) > 0 {
		compose.Binary = composeFields[0]
		compose.VersionArgs = append(append([]string{}, composeFields[1:]...), "version")
	}

	return []Tool{
		{
			Name:        "docker",
			Binary:      "docker",
			VersionArgs: []string{"--version"},
			Minimum:     cfg.Prereq.MinDockerVersion,
			Hint:        "Install Docker: https://docs.docker.com/get-docker/",
		},
		compose,
		{
			Name:        "python",
			Binary:      cfg.Data.Interpreter,
			VersionArgs: []string{"--version"},
			Minimum:     cfg.Prereq.MinPythonVersion,
			Hint:        "Install Python 3.9+: https://www.python.org/downloads/",
		},
		{
			Name:   "git",
			Binary: "git",
			Hint:   "Install git: https://git-scm.com/downloads",
		},
		{
			Name:        "dvc",
			Binary:      "dvc",
			VersionArgs: []string{"version"},
			Hint:        "Install DVC: pip install 'dvc[s3]'",
		},
	}
}

// Verify runs every check and aggregates them.
func (v *Verifier) Verify(ctx context.Context) Report {
	checks := make([]Check, 0, len(v.tools)+2)
	for _, t := range v.tools {
		checks = append(checks, v.checkTool(ctx, t))
	}
	checks = append(checks, v.checkDisk(), v.checkMemory())
	return NewReport(checks)
}

func (v *Verifier) checkTool(ctx context.Context, t Tool) Check {
	c := v.probeTool(ctx, t)
	if c.Found {
		return c
	}
	for _, alt := range t.Alternates {
		ac := v.probeTool(ctx, alt)
		if ac.Found {
			ac.Name = t.Name
			ac.Detail = fmt.Sprintf("using %s", alt.Name)
			return ac
		}
	}
	return c
}

func (v *Verifier) probeTool(ctx context.Context, t Tool) Check {
	c := Check{
		Name:     t.Name,
		Kind:     KindTool,
		Minimum:  t.Minimum,
		Required: true,
		Hint:     t.Hint,
	}

	path, err := v.lookPath(t.Binary)
	if err != nil {
		c.Detail = fmt.Sprintf("%s not found in PATH", t.Binary)
		return c
	}
	c.Found = true
	c.Detail = path

	if len(t.VersionArgs) == 0 {
		c.MeetsMinimum = true
		return c
	}

	out, err := v.runner.Output(ctx, "", t.Binary, t.VersionArgs...)
	if err != nil {
		c.Detail = fmt.Sprintf("version query failed: %v", err)
		if len(t.Alternates) > 0 {
			// docker without the compose plugin exits non-zero here.
			c.Found = false
		}
		return c
	}

	c.Version = ExtractVersion(out)
	if t.Minimum == "" {
		c.MeetsMinimum = true
		return c
	}
	ok, err := MeetsMinimum(c.Version, t.Minimum)
	if err != nil {
		c.Detail = err.Error()
		return c
	}
	c.MeetsMinimum = ok
	if !ok {
		c.Detail = fmt.Sprintf("version %s is older than %s", c.Version, t.Minimum)
	}
	return c
}

func (v *Verifier) checkDisk() Check {
	c := Check{
		Name:     "disk space",
		Kind:     KindResource,
		Minimum:  formatGB(v.minDisk),
		Required: true,
		Hint:     "Free up disk space; images and datasets need at least " + formatGB(v.minDisk),
	}
	free, err := v.freeDisk(v.diskPath)
	if err != nil {
		c.Detail = fmt.Sprintf("could not determine free space: %v", err)
		return c
	}
	c.Found = true
	c.Version = formatGB(free)
	c.MeetsMinimum = free >= v.minDisk
	c.Detail = fmt.Sprintf("%s available", formatGB(free))
	return c
}

func (v *Verifier) checkMemory() Check {
	c := Check{
		Name:    "memory",
		Kind:    KindResource,
		Minimum: formatGB(v.minMemory),
		Hint:    "Services may be slow or crash with less than " + formatGB(v.minMemory) + " RAM",
	}
	total, err := v.totalMemory()
	if err != nil {
		c.Detail = fmt.Sprintf("could not determine memory: %v", err)
		return c
	}
	c.Found = true
	c.Version = formatGB(total)
	c.MeetsMinimum = total >= v.minMemory
	c.Detail = fmt.Sprintf("%s total", formatGB(total))
	return c
}

var versionRe = regexp.MustCompile(`\d+\.\d+(\.\d+)?`)

// ExtractVersion returns the first dotted version token in out, e.g.
// "24.0.7" from "Docker version 24.0.7, build afdd53b".
func ExtractVersion(out string) string {
	return versionRe.FindString(out)
}

// MeetsMinimum compares major.minor(.patch) numerically.
func MeetsMinimum(got, minimum string) (bool, error) {
	if got == "" {
		return false, fmt.Errorf("no version reported")
	}
	have, err := version.NewVersion(got)
	if err != nil {
		return false, fmt.Errorf("parsing version %q: %w", got, err)
	}
	want, err := version.NewVersion(minimum)
	if err != nil {
		return false, fmt.Errorf("parsing minimum version %q: %w", minimum, err)
	}
	return have.GreaterThanOrEqual(want), nil
}

func formatGB(b uint64) string {
	return fmt.Sprintf("%.1f GB", float64(b)/gib)
}
