// Package loader writes Gold frames into the warehouse transactionally.
// One transaction spans the whole run's write; a failure in any batch
// rolls back everything written so far.
package loader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/workdatahub/workdatahub/internal/frame"
	"github.com/workdatahub/workdatahub/internal/resilience"
	"github.com/workdatahub/workdatahub/internal/warehouse"
)

// Load modes.
type Mode string

const (
	ModeAppend       Mode = "append"
	ModeUpsert       Mode = "upsert"
	ModeDeleteInsert Mode = "delete_insert"
)

// ParseMode validates a CLI-supplied mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAppend, ModeUpsert, ModeDeleteInsert:
		return Mode(s), nil
	default:
		return "", eris.Errorf("loader: unknown mode %q (append, upsert, delete_insert)", s)
	}
}

// DefaultBatchSize is the number of rows per INSERT statement.
const DefaultBatchSize = 1000

// droppedColumnWarnLimit triggers a warning when projection removes more
// columns than this.
const droppedColumnWarnLimit = 5

// Target describes the destination table and its keys.
type Target struct {
	Schema    string
	Table     string
	PK        []string
	DeleteKey []string
}

// Result reports the write outcome.
type Result struct {
	RowsInserted    int           `json:"rows_inserted"`
	RowsUpdated     int           `json:"rows_updated"`
	RowsSkipped     int           `json:"rows_skipped"`
	BatchesExecuted int           `json:"batches_executed"`
	Duration        time.Duration `json:"duration"`
	PlannedSQL      []string      `json:"planned_sql,omitempty"`
}

// Loader writes frames into one target table.
type Loader struct {
	db        warehouse.DB
	batchSize int
}

// New creates a loader over an open pool. batchSize <= 0 uses the default.
func New(db warehouse.DB, batchSize int) *Loader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Loader{db: db, batchSize: batchSize}
}

// Load writes the frame per the mode. Introspection runs once; the frame
// is projected to the table's insertable columns before writing.
func (l *Loader) Load(ctx context.Context, f *frame.Frame, target Target, mode Mode) (*Result, error) {
	start := time.Now()

	columns, err := l.projectColumns(ctx, f, target)
	if err != nil {
		return nil, err
	}
	projected, err := f.Project(columns)
	if err != nil {
		return nil, eris.Wrap(err, "loader: project frame")
	}

	res := &Result{}
	_, err = resilience.Do(ctx, "loader."+target.Table, func(ctx context.Context) error {
		r, txErr := l.loadOnce(ctx, projected, columns, target, mode)
		if txErr != nil {
			return txErr
		}
		*res = *r
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "loader: write %s.%s", target.Schema, target.Table)
	}

	res.Duration = time.Since(start)
	zap.L().Info("fact load complete",
		zap.String("table", target.Table),
		zap.String("mode", string(mode)),
		zap.Int("inserted", res.RowsInserted),
		zap.Int("batches", res.BatchesExecuted),
		zap.Duration("elapsed", res.Duration),
	)
	return res, nil
}

// loadOnce performs the whole write in a single transaction.
func (l *Loader) loadOnce(ctx context.Context, f *frame.Frame, columns []string, target Target, mode Mode) (*Result, error) {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx)

	res := &Result{}

	if mode == ModeDeleteInsert {
		scopes := deleteScopes(f, target.DeleteKey)
		delSQL := warehouse.BuildDelete(target.Schema, target.Table, target.DeleteKey)
		for _, scope := range scopes {
			tag, err := tx.Exec(ctx, delSQL, scope...)
			if err != nil {
				return nil, eris.Wrap(err, "delete scope")
			}
			res.RowsSkipped += int(tag.RowsAffected())
		}
	}

	for offset := 0; offset < f.NumRows(); offset += l.batchSize {
		end := offset + l.batchSize
		if end > f.NumRows() {
			end = f.NumRows()
		}
		batch := f.Rows[offset:end]

		var sql string
		switch mode {
		case ModeUpsert:
			sql = warehouse.BuildUpsert(target.Schema, target.Table, columns, target.PK, len(batch))
		default:
			sql = warehouse.BuildInsert(target.Schema, target.Table, columns, len(batch))
		}

		args := make([]any, 0, len(batch)*len(columns))
		for _, row := range batch {
			for _, col := range columns {
				args = append(args, normalizeArg(row[col]))
			}
		}

		tag, err := tx.Exec(ctx, sql, args...)
		if err != nil {
			return nil, eris.Wrapf(err, "batch at row %d", offset)
		}
		res.RowsInserted += int(tag.RowsAffected())
		res.BatchesExecuted++
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "commit tx")
	}
	return res, nil
}

// Plan performs introspection and projection and emits the planned SQL
// without writing anything.
func (l *Loader) Plan(ctx context.Context, f *frame.Frame, target Target, mode Mode) (*Result, error) {
	columns, err := l.projectColumns(ctx, f, target)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	if mode == ModeDeleteInsert {
		res.PlannedSQL = append(res.PlannedSQL,
			warehouse.BuildDelete(target.Schema, target.Table, target.DeleteKey))
	}
	batch := l.batchSize
	if f.NumRows() < batch {
		batch = f.NumRows()
	}
	if batch > 0 {
		switch mode {
		case ModeUpsert:
			res.PlannedSQL = append(res.PlannedSQL,
				warehouse.BuildUpsert(target.Schema, target.Table, columns, target.PK, 1))
		default:
			res.PlannedSQL = append(res.PlannedSQL,
				warehouse.BuildInsert(target.Schema, target.Table, columns, 1))
		}
	}
	res.BatchesExecuted = (f.NumRows() + l.batchSize - 1) / l.batchSize
	return res, nil
}

// PlanOffline renders the plan without any introspection, for plan-only
// runs where no database connection may be opened. The frame's own
// columns stand in for the table's.
func PlanOffline(f *frame.Frame, target Target, mode Mode, batchSize int) *Result {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	res := &Result{}
	if mode == ModeDeleteInsert && len(target.DeleteKey) > 0 {
		res.PlannedSQL = append(res.PlannedSQL,
			warehouse.BuildDelete(target.Schema, target.Table, target.DeleteKey))
	}
	if f.NumRows() > 0 && len(f.Columns) > 0 {
		switch mode {
		case ModeUpsert:
			res.PlannedSQL = append(res.PlannedSQL,
				warehouse.BuildUpsert(target.Schema, target.Table, f.Columns, target.PK, 1))
		default:
			res.PlannedSQL = append(res.PlannedSQL,
				warehouse.BuildInsert(target.Schema, target.Table, f.Columns, 1))
		}
	}
	res.BatchesExecuted = (f.NumRows() + batchSize - 1) / batchSize
	return res
}

// projectColumns introspects the target and intersects the frame's
// columns with the table's insertable set, preserving frame order.
func (l *Loader) projectColumns(ctx context.Context, f *frame.Frame, target Target) ([]string, error) {
	tableCols, err := warehouse.TableColumns(ctx, l.db, target.Schema, target.Table)
	if err != nil {
		return nil, err
	}
	allowed := make(map[string]bool, len(tableCols))
	for _, c := range tableCols {
		allowed[c] = true
	}

	var kept, dropped []string
	for _, c := range f.Columns {
		if allowed[c] {
			kept = append(kept, c)
		} else {
			dropped = append(dropped, c)
		}
	}
	if len(kept) == 0 {
		return nil, eris.Errorf("loader: no frame column matches table %s.%s", target.Schema, target.Table)
	}
	if len(dropped) > droppedColumnWarnLimit {
		zap.L().Warn("projection removed many columns",
			zap.String("table", target.Table),
			zap.Int("dropped", len(dropped)),
			zap.String("columns", strings.Join(dropped, ", ")),
		)
	}
	return kept, nil
}

// deleteScopes returns the distinct delete-key tuples present in the
// frame, in first-seen order.
func deleteScopes(f *frame.Frame, keyCols []string) [][]any {
	seen := make(map[string]bool)
	var scopes [][]any
	for _, row := range f.Rows {
		fp := make([]string, len(keyCols))
		tuple := make([]any, len(keyCols))
		for i, col := range keyCols {
			tuple[i] = normalizeArg(row[col])
			fp[i] = frame.String(row[col])
		}
		key := strings.Join(fp, "|")
		if !seen[key] {
			seen[key] = true
			scopes = append(scopes, tuple)
		}
	}
	return scopes
}

// normalizeArg maps empty strings to NULL so optional text columns do
// not store empty strings, and passes timestamps and numbers through.
func normalizeArg(v any) any {
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return nil
	}
	return v
}

// DescribeTarget renders the destination for run summaries.
func DescribeTarget(t Target) string {
	return fmt.Sprintf("%s.%s (pk %s)", t.Schema, t.Table, strings.Join(t.PK, ","))
}
