// Package datagen produces the synthetic dataset the course services load.
// Generation itself is delegated to an external script; when that is not
// available a minimal placeholder keeps the downstream stages working.
package datagen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/mentorchita/ecommerce-start/internal/config"
	"github.com/mentorchita/ecommerce-start/internal/shell"
)

// Sizes is the number of records per entity.
type Sizes struct {
	Products      int `json:"products"`
	Customers     int `json:"customers"`
	Orders        int `json:"orders"`
	Conversations int `json:"conversations"`
}

var (
	QuickSizes = Sizes{Products: 100, Customers: 1000, Orders: 2000, Conversations: 500}
	FullSizes  = Sizes{Products: 500, Customers: 5000, Orders: 10000, Conversations: 2000}
)

// PresetFor returns the preset for the run mode.
func PresetFor(quick bool) Sizes {
	if quick {
		return QuickSizes
	}
	return FullSizes
}

type Status string

const (
	StatusSuccess  Status = "success"
	StatusDegraded Status = "degraded"
	StatusFailed   Status = "failed"
)

// Outcome is the result of one strategy, or of the whole chain.
type Outcome struct {
	Strategy string   `json:"strategy"`
	Status   Status   `json:"status"`
	Detail   string   `json:"detail,omitempty"`
	Files    []string `json:"files,omitempty"`
	Err      error    `json:"-"`
}

// Strategy is one way of producing the dataset.
type Strategy interface {
	Name() string
	Generate(ctx context.Context, sizes Sizes) Outcome
}

// Generator tries its strategies in order; the first outcome that is not
// Failed wins.
type Generator struct {
	strategies []Strategy
}

// New returns a Generator over the given strategies.
func New(strategies ...Strategy) *Generator {
	return &Generator{strategies: strategies}
}

// NewDefault builds the script-then-placeholder chain from cfg.
func NewDefault(root string, cfg config.DataConfig, runner shell.Runner) *Generator {
	out := filepath.Join(root, cfg.OutputDir)
	return New(
		&ScriptStrategy{
			Root:        root,
			Script:      cfg.GeneratorScript,
			Interpreter: cfg.Interpreter,
			OutputDir:   cfg.OutputDir,
			Seed:        cfg.Seed,
			runner:      runner,
			lookPath:    exec.LookPath,
		},
		&PlaceholderStrategy{OutputDir: out},
	)
}

// Generate runs the chain. With no usable strategy the last failure is
// returned.
func (g *Generator) Generate(ctx context.Context, sizes Sizes) Outcome {
	last := Outcome{Strategy: "none", Status: StatusFailed, Detail: "no generation strategy configured"}
	for _, s := range g.strategies {
		if err := ctx.Err(); err != nil {
			return Outcome{Strategy: s.Name(), Status: StatusFailed, Detail: "cancelled", Err: err}
		}
		out := s.Generate(ctx, sizes)
		if out.Status != StatusFailed {
			return out
		}
		slog.InfoContext(ctx, "data generation strategy failed", "strategy", s.Name(), "detail", out.Detail, "err", out.Err)
		last = out
	}
	return last
}

// ScriptStrategy runs the external generator script.
type ScriptStrategy struct {
	Root        string
	Script      string
	Interpreter string
	OutputDir   string
	Seed        int

	runner   shell.Runner
	lookPath func(string) (string, error)
}

func (s *ScriptStrategy) Name() string { return "script" }

func (s *ScriptStrategy) Generate(ctx context.Context, sizes Sizes) Outcome {
	fail := func(detail string, err error) Outcome {
		return Outcome{Strategy: s.Name(), Status: StatusFailed, Detail: detail, Err: err}
	}

	if s.Script == "" {
		return fail("no generator script configured", nil)
	}
	if _, err := os.Stat(filepath.Join(s.Root, s.Script)); err != nil {
		return fail("generator script not found: "+s.Script, err)
	}
	if _, err := s.lookPath(s.Interpreter); err != nil {
		return fail(s.Interpreter+" not found", err)
	}

	args := []string{
		s.Script,
		"--products", strconv.Itoa(sizes.Products),
		"--customers", strconv.Itoa(sizes.Customers),
		"--orders", strconv.Itoa(sizes.Orders),
		"--conversations", strconv.Itoa(sizes.Conversations),
		"--output", s.OutputDir,
		"--seed", strconv.Itoa(s.Seed),
	}
	if out, err := s.runner.Output(ctx, s.Root, s.Interpreter, args...); err != nil {
		slog.DebugContext(ctx, "generator output", "output", out)
		return fail(fmt.Sprintf("generator exited with code %d", shell.ExitCode(err)), err)
	}
	return Outcome{
		Strategy: s.Name(),
		Status:   StatusSuccess,
		Detail: fmt.Sprintf("%d products, %d customers, %d orders, %d conversations",
			sizes.Products, sizes.Customers, sizes.Orders, sizes.Conversations),
	}
}

// PlaceholderRows is the body of the fallback products.csv.
const PlaceholderRows = "product_id,name,category,price\n" +
	"P0001,Sample Product A,electronics,19.99\n" +
	"P0002,Sample Product B,home,34.50\n"

// PlaceholderStrategy writes a minimal products.csv so later stages have an
// input. An existing file is left untouched.
type PlaceholderStrategy struct {
	OutputDir string
}

func (p *PlaceholderStrategy) Name() string { return "placeholder" }

func (p *PlaceholderStrategy) Generate(ctx context.Context, _ Sizes) Outcome {
	path := filepath.Join(p.OutputDir, "products.csv")
	out := Outcome{Strategy: p.Name(), Status: StatusDegraded, Files: []string{path}}

	if err := os.MkdirAll(p.OutputDir, 0o755); err != nil {
		return Outcome{Strategy: p.Name(), Status: StatusFailed, Detail: "creating output dir", Err: err}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		out.Detail = "existing products.csv kept"
		return out
	}
	if err != nil {
		return Outcome{Strategy: p.Name(), Status: StatusFailed, Detail: "writing placeholder", Err: err}
	}
	if _, err := f.WriteString(PlaceholderRows); err != nil {
		f.Close() //nolint:errcheck
		return Outcome{Strategy: p.Name(), Status: StatusFailed, Detail: "writing placeholder", Err: err}
	}
	if err := f.Close(); err != nil {
		return Outcome{Strategy: p.Name(), Status: StatusFailed, Detail: "writing placeholder", Err: err}
	}
	slog.InfoContext(ctx, "wrote placeholder dataset", "path", path)
	out.Detail = "wrote placeholder products.csv"
	return out
}
