// Package compose drives the docker compose stack: build, a clean relaunch and
// a running-container count matched against the services the compose file
// declares.
package compose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mentorchita/ecommerce-start/internal/config"
	"github.com/mentorchita/ecommerce-start/internal/shell"
)

// LaunchResult compares what is running after `up` with what is declared.
type LaunchResult struct {
	Running         int         `json:"running"`
	Total           int         `json:"total"`
	RunningServices []string    `json:"runningServices"`
	Missing         []string    `json:"missing,omitempty"`
	Containers      []Container `json:"containers,omitempty"`
}

// Complete reports whether every declared service has a running container.
func (r LaunchResult) Complete() bool {
	return r.Total > 0 && r.Running == r.Total
}

// Client runs compose commands against one compose file.
type Client struct {
	root        string
	command     []string
	file        string
	projectName string
	settle      time.Duration
	runner      shell.Runner
	sleep       func(context.Context, time.Duration) error
}

// New builds a Client from cfg. The compose command may be a plugin
// invocation ("docker compose") or the legacy binary ("docker-compose").
func New(root string, cfg config.ComposeConfig, runner shell.Runner) *Client {
	command := strings.Fields(cfg.Command)
	if len(command) == 0 {
		command = []string{"docker", "compose"}
	}
	return &Client{
		root:        root,
		command:     command,
		file:        cfg.File,
		projectName: cfg.ProjectName,
		settle:      cfg.SettleDelay,
		runner:      runner,
		sleep:       sleepCtx,
	}
}

func (c *Client) args(sub ...string) []string {
	args := slices.Clone(c.command[1:])
	if c.file != "" {
		args = append(args, "-f", c.file)
	}
	if c.projectName != "" {
		args = append(args, "-p", c.projectName)
	}
	return append(args, sub...)
}

// Build builds every image. Output streams to the runner's writers.
func (c *Client) Build(ctx context.Context, useCache bool) error {
	sub := []string{"build"}
	if !useCache {
		sub = append(sub, "--no-cache")
	}
	if err := c.runner.Run(ctx, c.root, c.command[0], c.args(sub...)...); err != nil {
		return fmt.Errorf("compose build: %w", err)
	}
	return nil
}

// Launch stops any previous stack, starts it detached, waits for the settle
// delay and counts the running containers. A failing `up` is returned, but the
// result still reflects whatever is running.
func (c *Client) Launch(ctx context.Context) (LaunchResult, error) {
	if err := c.runner.Run(ctx, c.root, c.command[0], c.args("down")...); err != nil {
		slog.InfoContext(ctx, "compose down failed, continuing", "err", err)
	}

	upErr := c.runner.Run(ctx, c.root, c.command[0], c.args("up", "-d")...)
	if upErr != nil {
		upErr = fmt.Errorf("compose up: %w", upErr)
	} else if c.settle > 0 {
		if err := c.sleep(ctx, c.settle); err != nil {
			return LaunchResult{}, err
		}
	}

	res, err := c.Status(ctx)
	if err != nil {
		return res, errors.Join(upErr, err)
	}
	return res, upErr
}

// Status reports running containers against the declared services.
func (c *Client) Status(ctx context.Context) (LaunchResult, error) {
	out, err := c.runner.Output(ctx, c.root, c.command[0], c.args("ps", "--all", "--format", "json")...)
	if err != nil {
		return LaunchResult{}, fmt.Errorf("compose ps: %w", err)
	}
	containers, err := ParsePS(out)
	if err != nil {
		return LaunchResult{}, err
	}

	declared, err := DeclaredServices(c.composePath())
	if err != nil {
		slog.InfoContext(ctx, "reading declared services failed, counting containers only", "err", err)
	}
	return Match(declared, containers), nil
}

// Match pairs declared services with running containers by service name.
// Without declared services the total is the number of containers seen.
func Match(declared []string, containers []Container) LaunchResult {
	running := make(map[string]bool)
	for _, ct := range containers {
		if ct.IsRunning() {
			running[ct.Service] = true
		}
	}

	res := LaunchResult{Containers: containers}
	if len(declared) == 0 {
		res.Total = len(containers)
		for _, ct := range containers {
			if ct.IsRunning() {
				res.Running++
				res.RunningServices = append(res.RunningServices, ct.Service)
			}
		}
		return res
	}

	res.Total = len(declared)
	for _, svc := range declared {
		if running[svc] {
			res.Running++
			res.RunningServices = append(res.RunningServices, svc)
		} else {
			res.Missing = append(res.Missing, svc)
		}
	}
	return res
}

func (c *Client) composePath() string {
	file := c.file
	if file == "" {
		file = "docker-compose.yml"
	}
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(c.root, file)
}

type composeFile struct {
	Services map[string]yaml.Node `yaml:"services"`
}

// DeclaredServices returns the sorted top-level service names of a compose
// file.
func DeclaredServices(path string) ([]string, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading compose file: %w", err)
	}
	var f composeFile
	if err := yaml.Unmarshal(body, &f); err != nil {
		return nil, fmt.Errorf("parsing compose file %s: %w", path, err)
	}
	names := make([]string, 0, len(f.Services))
	for name := range f.Services {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
