package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/workdatahub/workdatahub/internal/discovery"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestRunError_ExitCodes(t *testing.T) {
	tests := []struct {
		stage Stage
		want  int
	}{
		{StageConfig, ExitConfig},
		{StageDiscovery, ExitDiscovery},
		{StageValidation, ExitValidation},
		{StageProcessing, ExitValidation},
		{StageBackfill, ExitLoad},
		{StageLoad, ExitLoad},
		{Stage("unknown"), ExitUnexpected},
	}
	for _, tt := range tests {
		re := &RunError{Stage: tt.stage, Err: errors.New("x")}
		assert.Equal(t, tt.want, re.ExitCode(), "stage %s", tt.stage)
	}
}

func TestExitCodeFor(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCodeFor(nil))
	assert.Equal(t, ExitValidation, ExitCodeFor(fail(StageValidation, errors.New("x"))))
	assert.Equal(t, ExitDiscovery, ExitCodeFor(&discovery.Error{Stage: discovery.StageFileMatching, Err: errors.New("x")}))
	assert.Equal(t, ExitUnexpected, ExitCodeFor(errors.New("plain")))
}

func TestSummary_Write(t *testing.T) {
	dir := t.TempDir()
	s := &Summary{
		RunID:     "r1",
		Domain:    "annuity_performance",
		Period:    "202501",
		Status:    StatusSucceeded,
		StartedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		RowsRead:  950,
	}

	path, err := s.Write(dir)
	require.NoError(t, err)
	assert.Contains(t, path, "run_summary_annuity_performance_20250102T030405.json")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var back Summary
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, 950, back.RowsRead)
	assert.Equal(t, StatusSucceeded, back.Status)
}

func TestSummary_LogLine(t *testing.T) {
	ok := &Summary{Domain: "d", Period: "202501", Status: StatusSucceeded, RowsLoaded: 950, RowsRejected: 3}
	assert.Equal(t, "d 202501: succeeded, 950 rows loaded, 3 rejected", ok.LogLine())

	planned := &Summary{Domain: "d", Period: "202501", Status: StatusPlanned, RowsRead: 10, Batches: 1}
	assert.Contains(t, planned.LogLine(), "no writes")

	failed := &Summary{Domain: "d", Period: "202501", Status: StatusFailed, Error: "boom", RejectionCSV: "/tmp/rej.csv"}
	line := failed.LogLine()
	assert.True(t, strings.Contains(line, "boom") && strings.Contains(line, "/tmp/rej.csv"))
}

func TestRunHooks_StopsAtFirstFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE a").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE b").WillReturnError(assert.AnError)
	// Hook c must never run.

	hooks := []Hook{
		&SQLHook{HookName: "a", SQL: "UPDATE a SET x = 1"},
		&SQLHook{HookName: "b", SQL: "UPDATE b SET x = 1"},
		&SQLHook{HookName: "c", SQL: "UPDATE c SET x = 1"},
	}

	failed := runHooks(context.Background(), mock, hooks)
	assert.Equal(t, []string{"b"}, failed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHookRegistry_Order(t *testing.T) {
	r := NewHookRegistry()
	r.Register("d", &SQLHook{HookName: "first"})
	r.Register("d", &SQLHook{HookName: "second"})

	hooks := r.For("d")
	require.Len(t, hooks, 2)
	assert.Equal(t, "first", hooks[0].Name())
	assert.Equal(t, "second", hooks[1].Name())
	assert.Empty(t, r.For("other"))
}

func TestRegisterDefaultHooks(t *testing.T) {
	r := NewHookRegistry()
	RegisterDefaultHooks(r)

	hooks := r.For("annuity_performance")
	require.Len(t, hooks, 1)
	assert.Equal(t, "refresh_plan_snapshot", hooks[0].Name())
}
