// Package backfill inserts missing reference-table rows before the fact
// load. Rules run in dependency order, each in its own transaction, so a
// failure stays localized to one rule and the run aborts before any fact
// row is written.
package backfill

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/workdatahub/workdatahub/internal/config"
	"github.com/workdatahub/workdatahub/internal/frame"
	"github.com/workdatahub/workdatahub/internal/resilience"
	"github.com/workdatahub/workdatahub/internal/validation"
	"github.com/workdatahub/workdatahub/internal/warehouse"
)

// RuleReport summarizes one executed rule.
type RuleReport struct {
	RuleName   string `json:"rule_name"`
	Considered int    `json:"considered"`
	Inserted   int    `json:"inserted"`
}

// Engine executes the ordered rule list for one domain.
type Engine struct {
	db warehouse.DB
}

// NewEngine creates a backfill engine over an open pool.
func NewEngine(db warehouse.DB) *Engine {
	return &Engine{db: db}
}

// Run executes every rule in order against the Gold frame. The rule list
// must already be topologically sorted (config.ForeignKeyStore does so).
func (e *Engine) Run(ctx context.Context, f *frame.Frame, rules []config.ForeignKeyRule) ([]RuleReport, error) {
	reports := make([]RuleReport, 0, len(rules))
	for _, rule := range rules {
		report, err := e.runRule(ctx, f, rule)
		if err != nil {
			return reports, eris.Wrapf(err, "backfill: rule %s", rule.Name)
		}
		reports = append(reports, report)
		zap.L().Info("backfill rule complete",
			zap.String("rule", rule.Name),
			zap.Int("considered", report.Considered),
			zap.Int("inserted", report.Inserted),
		)
	}
	return reports, nil
}

// candidate is the projected parent row for one distinct source value.
type candidate struct {
	key    string
	values map[string]any
}

// runRule computes the candidate parent rows and upserts them with
// insert-missing semantics inside one transaction.
func (e *Engine) runRule(ctx context.Context, f *frame.Frame, rule config.ForeignKeyRule) (RuleReport, error) {
	report := RuleReport{RuleName: rule.Name}

	candidates, err := collectCandidates(f, rule)
	if err != nil {
		return report, err
	}
	report.Considered = len(candidates)
	if len(candidates) == 0 {
		return report, nil
	}

	columns := targetColumns(rule)
	rows := make([][]any, len(candidates))
	for i, c := range candidates {
		args := make([]any, len(columns))
		for j, col := range columns {
			v := c.values[col]
			if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
				v = nil
			}
			args[j] = v
		}
		rows[i] = args
	}

	inserted, _, err := resilience.DoVal(ctx, "backfill."+rule.Name, func(ctx context.Context) (int, error) {
		return e.insertMissing(ctx, rule, columns, rows)
	})
	if err != nil {
		return report, err
	}
	report.Inserted = inserted
	return report, nil
}

func (e *Engine) insertMissing(ctx context.Context, rule config.ForeignKeyRule, columns []string, rows [][]any) (int, error) {
	tx, err := e.db.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx)

	sql := warehouse.BuildInsertMissing(rule.TargetSchema, rule.TargetTable, columns, []string{rule.TargetKey}, len(rows))
	args := make([]any, 0, len(rows)*len(columns))
	for _, r := range rows {
		args = append(args, r...)
	}

	tag, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "insert into %s.%s", rule.TargetSchema, rule.TargetTable)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "commit tx")
	}
	return int(tag.RowsAffected()), nil
}

// collectCandidates groups fact rows by the rule's source column and
// applies the per-column aggregations.
func collectCandidates(f *frame.Frame, rule config.ForeignKeyRule) ([]candidate, error) {
	if !f.HasColumn(rule.SourceColumn) {
		return nil, eris.Errorf("source column %q not in frame", rule.SourceColumn)
	}

	groups := make(map[string][]frame.Row)
	var order []string
	for _, row := range f.Rows {
		key := strings.TrimSpace(frame.String(row[rule.SourceColumn]))
		if key == "" && rule.SkipBlankValues {
			continue
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], row)
	}

	candidates := make([]candidate, 0, len(order))
	for _, key := range order {
		rows := groups[key]
		values := make(map[string]any, len(rule.BackfillColumns))
		for _, bc := range rule.BackfillColumns {
			v, err := aggregate(rows, bc)
			if err != nil {
				return nil, eris.Wrapf(err, "column %s", bc.Target)
			}
			if isBlank(v) && !bc.Optional {
				return nil, eris.Errorf("required column %s has no value for key %q", bc.Source, key)
			}
			values[bc.Target] = v
		}
		candidates = append(candidates, candidate{key: key, values: values})
	}
	return candidates, nil
}

// aggregate derives one target value from the group's rows.
func aggregate(rows []frame.Row, bc config.BackfillColumn) (any, error) {
	agg := bc.Aggregation
	if agg == nil || agg.Type == config.AggFirst {
		for _, row := range rows {
			if v, ok := row[bc.Source]; ok && !isBlank(v) {
				return v, nil
			}
		}
		return nil, nil
	}

	switch agg.Type {
	case config.AggMaxBy:
		var best frame.Row
		bestVal := 0.0
		for _, row := range rows {
			v, ok, err := validation.ParseDecimal(row[agg.OrderColumn])
			if err != nil || !ok {
				continue
			}
			// Strict greater-than keeps the first occurrence on ties.
			if best == nil || v > bestVal {
				best = row
				bestVal = v
			}
		}
		if best == nil {
			return nil, nil
		}
		return best[bc.Source], nil

	case config.AggConcatDistinct:
		seen := make(map[string]bool)
		var parts []string
		for _, row := range rows {
			s := strings.TrimSpace(frame.String(row[bc.Source]))
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			parts = append(parts, s)
		}
		if agg.Sort {
			sort.Strings(parts)
		}
		return strings.Join(parts, agg.Separator), nil

	default:
		return nil, eris.Errorf("unknown aggregation %q", agg.Type)
	}
}

// targetColumns lists the insert columns, target key first.
func targetColumns(rule config.ForeignKeyRule) []string {
	cols := make([]string, 0, len(rule.BackfillColumns))
	seen := make(map[string]bool)
	for _, bc := range rule.BackfillColumns {
		if !seen[bc.Target] {
			seen[bc.Target] = true
			cols = append(cols, bc.Target)
		}
	}
	return cols
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
