package orchestrator

import (
	"time"

	"github.com/mentorchita/ecommerce-start/internal/compose"
	"github.com/mentorchita/ecommerce-start/internal/prereq"
	"github.com/mentorchita/ecommerce-start/internal/readiness"
)

// Status is the outcome of one stage.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusFailure  Status = "failure"
	StatusSkipped  Status = "skipped"
	StatusDegraded Status = "degraded"
)

// Stage identifiers, in pipeline order.
const (
	StagePrerequisites = "prerequisites"
	StageEnvironment   = "environment"
	StageDVC           = "dvc"
	StageData          = "data"
	StageBuild         = "build"
	StageLaunch        = "launch"
	StageReadiness     = "readiness"
)

// StageResult is an immutable record of one stage.
type StageResult struct {
	Stage  string `json:"stage"`
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// RunConfiguration is parsed once from the command line and passed by value.
type RunConfiguration struct {
	QuickMode bool `json:"quickMode"`
	SkipBuild bool `json:"skipBuild"`
	SkipData  bool `json:"skipData"`
}

// RunResult is everything one pipeline run produced.
type RunResult struct {
	RunID         string                  `json:"runId"`
	StartedAt     time.Time               `json:"startedAt"`
	FinishedAt    time.Time               `json:"finishedAt"`
	Config        RunConfiguration        `json:"config"`
	Stages        []StageResult           `json:"stages"`
	Prerequisites prereq.Report           `json:"prerequisites"`
	Launch        compose.LaunchResult    `json:"launch"`
	Probes        []readiness.ProbeResult `json:"probes,omitempty"`
}

// Stage returns the result recorded for id.
func (r *RunResult) Stage(id string) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Stage == id {
			return s, true
		}
	}
	return StageResult{}, false
}

func (r *RunResult) record(id string, status Status, detail string) StageResult {
	s := StageResult{Stage: id, Status: status, Detail: detail}
	r.Stages = append(r.Stages, s)
	return s
}
