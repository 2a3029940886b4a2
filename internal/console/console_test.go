package console

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrinter_LabelsEveryLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := New(&buf)

	p.Success("docker %s", "24.0.7")
	p.Failure("git not found")
	p.Hint("install git")
	p.Warning("low memory")
	p.Info("pull skipped")
	p.Skipped("build")

	out := buf.String()
	for _, want := range []string{"[OK]", "docker 24.0.7", "[FAIL]", "git not found", "install git", "[WARN]", "[INFO]", "[SKIP]"} {
		assert.Contains(t, out, want)
	}
}
