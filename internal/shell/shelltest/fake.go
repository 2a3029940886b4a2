// Package shelltest provides a scripted shell.Runner for tests.
package shelltest

import (
	"context"
	"strings"
	"sync"

	"github.com/mentorchita/ecommerce-start/internal/shell"
)

// Response is the canned result for a command.
type Response struct {
	Output string
	Err    error
	// Do runs before the response is returned, e.g. to create files the real
	// tool would have created.
	Do func()
}

// Call records one invocation.
type Call struct {
	Dir  string
	Line string
}

// Runner answers commands by longest matching prefix of the rendered command
// line. Unmatched commands succeed with empty output.
type Runner struct {
	mu        sync.Mutex
	responses map[string]Response
	calls     []Call
}

var _ shell.Runner = (*Runner)(nil)

// New returns an empty fake.
func New() *Runner {
	return &Runner{responses: make(map[string]Response)}
}

// On registers resp for every command line starting with prefix.
func (r *Runner) On(prefix string, resp Response) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[prefix] = resp
	return r
}

func (r *Runner) Output(ctx context.Context, dir string, name string, args ...string) (string, error) {
	resp := r.record(dir, shell.CommandLine(name, args...))
	if resp.Do != nil {
		resp.Do()
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return resp.Output, resp.Err
}

func (r *Runner) Run(ctx context.Context, dir string, name string, args ...string) error {
	_, err := r.Output(ctx, dir, name, args...)
	return err
}

// Calls returns the recorded command lines in order.
func (r *Runner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.Line
	}
	return out
}

// Count returns how many recorded command lines start with prefix.
func (r *Runner) Count(prefix string) int {
	n := 0
	for _, line := range r.Calls() {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}

func (r *Runner) record(dir, line string) Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Dir: dir, Line: line})

	best := ""
	for prefix := range r.responses {
		if strings.HasPrefix(line, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return Response{}
	}
	return r.responses[best]
}
