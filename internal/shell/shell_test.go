package shell

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cmd  string
		args []string
		want string
	}{
		{name: "plain", cmd: "docker", args: []string{"compose", "ps"}, want: "docker compose ps"},
		{name: "space quoted", cmd: "git", args: []string{"commit", "-m", "Initialize DVC"}, want: "git commit -m 'Initialize DVC'"},
		{name: "empty arg", cmd: "echo", args: []string{""}, want: "echo ''"},
		{name: "single quote", cmd: "echo", args: []string{"it's"}, want: `echo 'it'"'"'s'`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, CommandLine(tc.cmd, tc.args...))
		})
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 3, ExitCode(fmt.Errorf("wrapped: %w", &ExitError{Command: "x", Code: 3})))
	assert.Equal(t, -1, ExitCode(errors.New("not started")))
}

func TestExec_Output(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	e := NewExec()

	out, err := e.Output(context.Background(), t.TempDir(), "sh", "-c", "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)

	_, err = e.Output(context.Background(), "", "sh", "-c", "echo boom; exit 4")
	require.Error(t, err)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 4, exitErr.Code)
	assert.Contains(t, exitErr.Error(), "boom")
}
