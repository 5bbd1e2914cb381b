package validation

import (
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/workdatahub/workdatahub/internal/frame"
)

// DefaultFailureThreshold aborts the run when this fraction of rows is
// invalid, on the assumption the drop itself is broken.
const DefaultFailureThreshold = 0.10

// ColumnRule constrains one Bronze column.
type ColumnRule struct {
	Name            string
	MinNonNullRatio float64
}

// BronzeSchema gates a raw frame before any transformation runs.
type BronzeSchema struct {
	Domain           string
	RequiredColumns  []string
	ColumnRules      []ColumnRule
	FailureThreshold float64 // fraction of invalid rows that is fatal; 0 means default
}

// BronzeResult reports the gate outcome.
type BronzeResult struct {
	Frame      *frame.Frame
	Rejections []RejectionRecord
}

// Validate checks required columns and per-column non-null ratios, then
// screens rows through the domain's RowIn parser when one is supplied.
// Rejections below the threshold are collected and removed from the
// frame; at or above it the whole frame is rejected as a likely systemic
// issue.
func (s *BronzeSchema) Validate(f *frame.Frame, rowIn RowValidator) (*BronzeResult, error) {
	var missing []string
	for _, col := range s.RequiredColumns {
		if !f.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("validation: %s: missing required columns: %s",
			s.Domain, strings.Join(missing, ", "))
	}

	if f.NumRows() == 0 {
		return nil, eris.Errorf("validation: %s: input frame has no rows", s.Domain)
	}

	for _, rule := range s.ColumnRules {
		if rule.MinNonNullRatio <= 0 {
			continue
		}
		nonNull := 0
		for _, row := range f.Rows {
			if strings.TrimSpace(frame.String(row[rule.Name])) != "" {
				nonNull++
			}
		}
		ratio := float64(nonNull) / float64(f.NumRows())
		if ratio < rule.MinNonNullRatio {
			return nil, eris.Errorf("validation: %s: column %s non-null ratio %.2f below required %.2f",
				s.Domain, rule.Name, ratio, rule.MinNonNullRatio)
		}
	}

	out := frame.New(f.Columns)
	var rejections []RejectionRecord

	for i, row := range f.Rows {
		if rowIn == nil {
			out.Rows = append(out.Rows, row)
			continue
		}
		parsed, err := rowIn.ValidateRow(row)
		if err != nil {
			var fe *FieldError
			if eris.As(err, &fe) {
				rejections = append(rejections, RejectionRecord{
					RowIndex:      i,
					Row:           row,
					ErrorType:     "validation",
					ErrorField:    fe.Field,
					ErrorMessage:  fe.Message,
					PipelineStage: "bronze",
				})
				continue
			}
			return nil, eris.Wrapf(err, "validation: %s: row %d", s.Domain, i)
		}
		out.Rows = append(out.Rows, parsed)
	}

	threshold := s.FailureThreshold
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	badRatio := float64(len(rejections)) / float64(f.NumRows())
	if badRatio > threshold {
		return nil, eris.Errorf(
			"validation: %s: %.0f%% of rows invalid (threshold %.0f%%), likely systemic issue",
			s.Domain, badRatio*100, threshold*100)
	}

	if len(rejections) > 0 {
		zap.L().Warn("bronze validation collected rejections",
			zap.String("domain", s.Domain),
			zap.Int("rejected", len(rejections)),
			zap.Int("passed", out.NumRows()),
		)
	}

	return &BronzeResult{Frame: out, Rejections: rejections}, nil
}
