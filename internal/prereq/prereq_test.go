package prereq

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentorchita/ecommerce-start/internal/config"
	"github.com/mentorchita/ecommerce-start/internal/shell"
	"github.com/mentorchita/ecommerce-start/internal/shell/shelltest"
)

func testConfig() *config.Config {
	return &config.Config{
		Project: config.ProjectConfig{Root: "."},
		Prereq: config.PrereqConfig{
			MinDockerVersion:  "20.10",
			MinComposeVersion: "2.0",
			MinPythonVersion:  "3.9",
			MinDiskGB:         10,
			MinMemoryGB:       8,
		},
		Compose: config.ComposeConfig{Command: "docker compose"},
		Data:    config.DataConfig{Interpreter: "python3"},
	}
}

func happyRunner() *shelltest.Runner {
	return shelltest.New().
		On("docker --version", shelltest.Response{Output: "Docker version 24.0.7, build afdd53b\n"}).
		On("docker compose version", shelltest.Response{Output: "Docker Compose version v2.23.0\n"}).
		On("python3 --version", shelltest.Response{Output: "Python 3.11.4\n"}).
		On("dvc version", shelltest.Response{Output: "DVC version: 3.30.1 (pip)\n"})
}

func newTestVerifier(lookPath func(string) (string, error), runner shell.Runner, disk, mem uint64) *Verifier {
	v := NewVerifier(testConfig(), runner)
	v.lookPath = lookPath
	v.freeDisk = func(string) (uint64, error) { return disk, nil }
	v.totalMemory = func() (uint64, error) { return mem, nil }
	return v
}

func allFound(name string) (string, error) { return "/usr/bin/" + name, nil }

func missing(names ...string) func(string) (string, error) {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(name string) (string, error) {
		if set[name] {
			return "", errors.New("executable file not found in $PATH")
		}
		return "/usr/bin/" + name, nil
	}
}

func checkByName(t *testing.T, r Report, name string) Check {
	t.Helper()
	for _, c := range r.Checks {
		if c.Name == name {
			return c
		}
	}
	require.Failf(t, "check not found", "no check named %q", name)
	return Check{}
}

func TestVerify_AllPass(t *testing.T) {
	t.Parallel()

	v := newTestVerifier(allFound, happyRunner(), 50*gib, 16*gib)
	report := v.Verify(context.Background())

	assert.True(t, report.AllMet)
	assert.Empty(t, report.Failures())
	assert.Len(t, report.Checks, 7)
	assert.Equal(t, "24.0.7", checkByName(t, report, "docker").Version)
	assert.Equal(t, "2.23.0", checkByName(t, report, "docker compose").Version)
	assert.Equal(t, "3.11.4", checkByName(t, report, "python").Version)
}

func TestVerify_AllMetSemantics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		lookPath   func(string) (string, error)
		runner     *shelltest.Runner
		disk, mem  uint64
		wantAllMet bool
		wantFailed []string
	}{
		{
			name:       "missing git blocks",
			lookPath:   missing("git"),
			runner:     happyRunner(),
			disk:       50 * gib,
			mem:        16 * gib,
			wantAllMet: false,
			wantFailed: []string{"git"},
		},
		{
			name:       "every failure reported in one pass",
			lookPath:   missing("docker", "git", "dvc"),
			runner:     happyRunner(),
			disk:       2 * gib,
			mem:        16 * gib,
			wantAllMet: false,
			wantFailed: []string{"docker", "docker compose", "git", "dvc", "disk space"},
		},
		{
			name:       "low RAM is advisory only",
			lookPath:   allFound,
			runner:     happyRunner(),
			disk:       50 * gib,
			mem:        4 * gib,
			wantAllMet: true,
			wantFailed: []string{"memory"},
		},
		{
			name:       "low disk blocks",
			lookPath:   allFound,
			runner:     happyRunner(),
			disk:       9 * gib,
			mem:        16 * gib,
			wantAllMet: false,
			wantFailed: []string{"disk space"},
		},
		{
			name:     "old docker is a warning",
			lookPath: allFound,
			runner: happyRunner().
				On("docker --version", shelltest.Response{Output: "Docker version 19.03.8, build afacb8b\n"}),
			disk:       50 * gib,
			mem:        16 * gib,
			wantAllMet: true,
			wantFailed: []string{"docker"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			v := newTestVerifier(tc.lookPath, tc.runner, tc.disk, tc.mem)
			report := v.Verify(context.Background())

			assert.Equal(t, tc.wantAllMet, report.AllMet)
			failed := make([]string, 0)
			for _, c := range report.Failures() {
				failed = append(failed, c.Name)
			}
			assert.ElementsMatch(t, tc.wantFailed, failed)
		})
	}
}

func TestVerify_ComposeFallsBackToLegacyBinary(t *testing.T) {
	t.Parallel()

	runner := happyRunner().
		On("docker compose version", shelltest.Response{Err: &shell.ExitError{Command: "docker compose version", Code: 125}}).
		On("docker-compose --version", shelltest.Response{Output: "docker-compose version 2.20.2\n"})

	v := newTestVerifier(allFound, runner, 50*gib, 16*gib)
	report := v.Verify(context.Background())

	c := checkByName(t, report, "docker compose")
	assert.True(t, c.Found)
	assert.Equal(t, "2.20.2", c.Version)
	assert.Contains(t, c.Detail, "docker-compose")
	assert.True(t, report.AllMet)
}

func TestVerify_UnmeasurableResourcesDoNotBlock(t *testing.T) {
	t.Parallel()

	v := newTestVerifier(allFound, happyRunner(), 0, 0)
	v.freeDisk = func(string) (uint64, error) { return 0, errors.New("statfs failed") }
	v.totalMemory = func() (uint64, error) { return 0, errors.New("unsupported") }

	report := v.Verify(context.Background())

	assert.True(t, report.AllMet)
	assert.False(t, checkByName(t, report, "disk space").Found)
}

func TestMeetsMinimum(t *testing.T) {
	t.Parallel()

	tests := []struct {
		got, minimum string
		want         bool
		wantErr      bool
	}{
		{got: "24.0.7", minimum: "20.10", want: true},
		{got: "20.10", minimum: "20.10", want: true},
		{got: "20.9", minimum: "20.10", want: false},
		{got: "3.8.10", minimum: "3.9", want: false},
		{got: "3.12.1", minimum: "3.9", want: true},
		{got: "", minimum: "2.0", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.got+">="+tc.minimum, func(t *testing.T) {
			t.Parallel()
			ok, err := MeetsMinimum(tc.got, tc.minimum)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestExtractVersion(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "24.0.7", ExtractVersion("Docker version 24.0.7, build afdd53b"))
	assert.Equal(t, "2.23.0", ExtractVersion("Docker Compose version v2.23.0"))
	assert.Equal(t, "3.11", ExtractVersion("Python 3.11"))
	assert.Equal(t, "", ExtractVersion("no version here"))
}
