package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunResult_Stage(t *testing.T) {
	t.Parallel()

	var r RunResult
	r.record(StageBuild, StatusSkipped, "--skip-build")

	got, ok := r.Stage(StageBuild)
	assert.True(t, ok)
	assert.Equal(t, StageResult{Stage: StageBuild, Status: StatusSkipped, Detail: "--skip-build"}, got)

	_, ok = r.Stage(StageLaunch)
	assert.False(t, ok)
}
