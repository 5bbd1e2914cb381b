package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/workdatahub/workdatahub/internal/frame"
	"github.com/workdatahub/workdatahub/internal/resilience"
)

// StepError reports which step failed and with what.
type StepError struct {
	StepName  string
	StepIndex int
	Err       error
}

func (e *StepError) Error() string {
	return "pipeline: step " + e.StepName + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error { return e.Err }

// Runner executes steps sequentially against a frame.
type Runner struct {
	steps     []Step
	errorMode ErrorMode
}

// NewRunner builds a runner over an immutable step sequence.
func NewRunner(steps []Step, mode ErrorMode) *Runner {
	owned := make([]Step, len(steps))
	copy(owned, steps)
	return &Runner{steps: owned, errorMode: mode}
}

// Run executes every step in order. The input frame is cloned once up
// front so callers keep their original; steps then hand frames forward.
func (r *Runner) Run(ctx context.Context, f *frame.Frame, rc *RunContext) (*frame.Frame, error) {
	current := f.Clone()

	for i, step := range r.steps {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "pipeline: cancelled")
		}

		log := zap.L().With(
			zap.String("run_id", rc.RunID),
			zap.String("domain", rc.Domain),
			zap.String("step", step.Name()),
		)

		start := time.Now()
		metrics := StepMetrics{Name: step.Name(), InputRows: current.NumRows()}

		var next *frame.Frame
		retryRes, err := resilience.Do(ctx, rc.Domain+"."+step.Name(), func(ctx context.Context) error {
			out, stepErr := step.Execute(ctx, current, rc)
			if stepErr != nil {
				return stepErr
			}
			next = out
			return nil
		})
		metrics.Retries = retryRes.Attempts - 1
		metrics.Duration = time.Since(start)

		switch {
		case err == nil:
			current = next

		case eris.Is(err, ErrSkipped):
			if opt, ok := step.(OptionalStep); !ok || !opt.Optional() {
				rc.Metrics = append(rc.Metrics, metrics)
				return nil, &StepError{StepName: step.Name(), StepIndex: i,
					Err: eris.New("non-optional step signalled skip")}
			}
			metrics.Skipped = true
			log.Info("step skipped")

		default:
			var rowErrs *RowErrors
			if eris.As(err, &rowErrs) && r.errorMode == CollectErrors {
				for j := range rowErrs.Rejections {
					if rowErrs.Rejections[j].PipelineStage == "" {
						rowErrs.Rejections[j].PipelineStage = step.Name()
					}
				}
				rc.Rejections = append(rc.Rejections, rowErrs.Rejections...)
				metrics.RejectedRows = len(rowErrs.Rejections)
				current = rowErrs.Frame
				log.Warn("step rejected rows",
					zap.Int("rejected", metrics.RejectedRows),
					zap.Int("remaining", current.NumRows()),
				)
			} else {
				metrics.OutputRows = 0
				rc.Metrics = append(rc.Metrics, metrics)
				if retryRes.Tier != resilience.TierNone {
					log.Error("step failed after retries",
						zap.String("tier", string(retryRes.Tier)),
						zap.Int("attempts", retryRes.Attempts),
						zap.Error(err),
					)
				}
				return nil, &StepError{StepName: step.Name(), StepIndex: i, Err: err}
			}
		}

		metrics.OutputRows = current.NumRows()
		rc.Metrics = append(rc.Metrics, metrics)

		log.Debug("step complete",
			zap.Int("in", metrics.InputRows),
			zap.Int("out", metrics.OutputRows),
			zap.Duration("elapsed", metrics.Duration),
		)
	}

	return current, nil
}
