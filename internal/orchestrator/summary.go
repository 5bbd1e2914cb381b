package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/workdatahub/workdatahub/internal/backfill"
	"github.com/workdatahub/workdatahub/internal/enrichment"
	"github.com/workdatahub/workdatahub/internal/pipeline"
)

// Run statuses recorded in the summary artifact.
const (
	StatusPlanned        = "planned"
	StatusSucceeded      = "succeeded"
	StatusSucceededHooks = "succeeded_with_hook_failures"
	StatusFailed         = "failed"
)

// Summary is the per-run artifact written alongside the logs.
type Summary struct {
	RunID      string    `json:"run_id"`
	Domain     string    `json:"domain"`
	Period     string    `json:"period"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	File       string   `json:"file,omitempty"`
	Files      []string `json:"files,omitempty"`
	VersionTag string   `json:"version_tag,omitempty"`

	RowsRead     int `json:"rows_read"`
	RowsRejected int `json:"rows_rejected"`
	RowsLoaded   int `json:"rows_loaded"`
	Batches      int `json:"batches"`

	Steps      []pipeline.StepMetrics `json:"steps,omitempty"`
	Backfill   []backfill.RuleReport  `json:"backfill,omitempty"`
	Enrichment *enrichment.Stats      `json:"enrichment,omitempty"`

	PlannedSQL   []string `json:"planned_sql,omitempty"`
	HookFailures []string `json:"hook_failures,omitempty"`

	RejectionCSV string `json:"rejection_csv,omitempty"`
	UnknownsCSV  string `json:"unknowns_csv,omitempty"`

	Error string `json:"error,omitempty"`
}

// Write stores the summary as JSON under dir and returns the path.
func (s *Summary) Write(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "summary: create dir %s", dir)
	}
	name := fmt.Sprintf("run_summary_%s_%s.json", s.Domain, s.StartedAt.UTC().Format("20060102T150405"))
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "summary: marshal")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "summary: write %s", path)
	}
	return path, nil
}

// LogLine emits the single-line outcome the operator sees on exit.
func (s *Summary) LogLine() string {
	switch s.Status {
	case StatusFailed:
		line := fmt.Sprintf("%s %s: %s", s.Domain, s.Period, s.Error)
		if s.RejectionCSV != "" {
			line += " (see " + s.RejectionCSV + ")"
		}
		return line
	case StatusPlanned:
		return fmt.Sprintf("%s %s: plan only, %d rows, %d batches, no writes",
			s.Domain, s.Period, s.RowsRead, s.Batches)
	default:
		return fmt.Sprintf("%s %s: %s, %d rows loaded, %d rejected",
			s.Domain, s.Period, s.Status, s.RowsLoaded, s.RowsRejected)
	}
}

// logFields renders the summary for the structured stream.
func (s *Summary) logFields() []zap.Field {
	return []zap.Field{
		zap.String("run_id", s.RunID),
		zap.String("domain", s.Domain),
		zap.String("period", s.Period),
		zap.String("status", s.Status),
		zap.Int("rows_read", s.RowsRead),
		zap.Int("rows_rejected", s.RowsRejected),
		zap.Int("rows_loaded", s.RowsLoaded),
		zap.Duration("elapsed", s.FinishedAt.Sub(s.StartedAt)),
	}
}
