package orchestrator

import (
	"github.com/rotisserie/eris"

	"github.com/workdatahub/workdatahub/internal/discovery"
)

// Process exit codes. Scripts driving the CLI branch on these.
const (
	ExitOK         = 0
	ExitConfig     = 2
	ExitDiscovery  = 3
	ExitValidation = 4
	ExitLoad       = 5
	ExitUnexpected = 6
)

// Stage identifies where in the run graph a failure occurred.
type Stage string

const (
	StageConfig     Stage = "config"
	StageDiscovery  Stage = "discovery"
	StageValidation Stage = "validation"
	StageProcessing Stage = "processing"
	StageBackfill   Stage = "backfill"
	StageLoad       Stage = "load"
)

// RunError wraps a failure with the run stage that produced it.
type RunError struct {
	Stage Stage
	Err   error
}

func (e *RunError) Error() string {
	return "run: " + string(e.Stage) + ": " + e.Err.Error()
}

func (e *RunError) Unwrap() error { return e.Err }

// ExitCode maps the stage onto the process exit code.
func (e *RunError) ExitCode() int {
	switch e.Stage {
	case StageConfig:
		return ExitConfig
	case StageDiscovery:
		return ExitDiscovery
	case StageValidation, StageProcessing:
		return ExitValidation
	case StageBackfill, StageLoad:
		return ExitLoad
	default:
		return ExitUnexpected
	}
}

func fail(stage Stage, err error) error {
	return &RunError{Stage: stage, Err: err}
}

// ExitCodeFor classifies any error into an exit code.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	var re *RunError
	if eris.As(err, &re) {
		return re.ExitCode()
	}
	var de *discovery.Error
	if eris.As(err, &de) {
		return ExitDiscovery
	}
	return ExitUnexpected
}
