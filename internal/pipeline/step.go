// Package pipeline executes an ordered list of transformation steps over
// a frame, recording per-step metrics. Steps are pure: each receives the
// current frame and returns the next one; the prior frame is never
// mutated. Retry lives in the runner, not in steps.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/workdatahub/workdatahub/internal/frame"
	"github.com/workdatahub/workdatahub/internal/validation"
)

// ErrSkipped is returned by optional steps that have nothing to do; the
// runner logs and proceeds with the unchanged frame.
var ErrSkipped = errors.New("pipeline: step skipped")

// ErrorMode selects how step failures are handled.
type ErrorMode int

const (
	// StopOnError aborts the run at the first failing step.
	StopOnError ErrorMode = iota
	// CollectErrors moves a step's failed rows to the rejection sink and
	// continues with the remainder.
	CollectErrors
)

// Step is one unit of the domain pipeline.
type Step interface {
	Name() string
	// Execute transforms the frame. Optional steps return ErrSkipped when
	// they have nothing to do.
	Execute(ctx context.Context, f *frame.Frame, rc *RunContext) (*frame.Frame, error)
}

// OptionalStep marks steps the runner may skip without failing the run.
type OptionalStep interface {
	Step
	Optional() bool
}

// RowErrors is returned by steps that can isolate failures to individual
// rows; under CollectErrors the runner reroutes those rows to the
// rejection sink.
type RowErrors struct {
	Frame      *frame.Frame // surviving rows
	Rejections []validation.RejectionRecord
}

func (e *RowErrors) Error() string {
	return "pipeline: step rejected rows"
}

// StepMetrics is recorded for every executed step.
type StepMetrics struct {
	Name         string        `json:"name"`
	Duration     time.Duration `json:"duration"`
	InputRows    int           `json:"input_rows"`
	OutputRows   int           `json:"output_rows"`
	RejectedRows int           `json:"rejected_rows"`
	Retries      int           `json:"retries"`
	Skipped      bool          `json:"skipped,omitempty"`
}

// RunContext carries run identity and accumulates step metrics.
type RunContext struct {
	RunID     string
	Domain    string
	Period    string
	StartedAt time.Time

	Metrics    []StepMetrics
	Rejections []validation.RejectionRecord
}

// NewRunContext creates a context for one domain run.
func NewRunContext(runID, domain, period string) *RunContext {
	return &RunContext{
		RunID:     runID,
		Domain:    domain,
		Period:    period,
		StartedAt: time.Now().UTC(),
	}
}
