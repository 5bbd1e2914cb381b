package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/workdatahub/workdatahub/internal/cleansing"
	"github.com/workdatahub/workdatahub/internal/frame"
	"github.com/workdatahub/workdatahub/internal/validation"
)

// MappingStep renames columns.
type MappingStep struct {
	StepName string
	Renames  map[string]string
}

func (s *MappingStep) Name() string { return s.StepName }

func (s *MappingStep) Execute(_ context.Context, f *frame.Frame, _ *RunContext) (*frame.Frame, error) {
	return f.Rename(s.Renames)
}

// ReplacementStep substitutes cell values in one column via a lookup map.
// Values absent from the map pass through unchanged.
type ReplacementStep struct {
	StepName string
	Column   string
	Values   map[string]string
}

func (s *ReplacementStep) Name() string { return s.StepName }

func (s *ReplacementStep) Execute(_ context.Context, f *frame.Frame, _ *RunContext) (*frame.Frame, error) {
	if !f.HasColumn(s.Column) {
		return nil, eris.Errorf("replacement: column %q not present", s.Column)
	}
	out := f.Clone()
	for _, row := range out.Rows {
		if to, ok := s.Values[frame.String(row[s.Column])]; ok {
			row[s.Column] = to
		}
	}
	return out, nil
}

// CleansingStep applies the registry's configured rules per field.
type CleansingStep struct {
	StepName string
	Registry *cleansing.Registry
	Fields   cleansing.DomainConfig
}

func (s *CleansingStep) Name() string { return s.StepName }

func (s *CleansingStep) Execute(_ context.Context, f *frame.Frame, _ *RunContext) (*frame.Frame, error) {
	out := f.Clone()
	for field, rules := range s.Fields {
		if !out.HasColumn(field) {
			continue
		}
		for _, row := range out.Rows {
			cleaned, err := s.Registry.Apply(frame.String(row[field]), rules)
			if err != nil {
				return nil, err
			}
			row[field] = cleaned
		}
	}
	return out, nil
}

// CalculationStep derives one column from the whole row.
type CalculationStep struct {
	StepName string
	Target   string
	Fn       func(frame.Row) (any, error)
}

func (s *CalculationStep) Name() string { return s.StepName }

func (s *CalculationStep) Execute(_ context.Context, f *frame.Frame, _ *RunContext) (*frame.Frame, error) {
	out := f.Clone()
	if !out.HasColumn(s.Target) {
		out.Columns = append(out.Columns, s.Target)
	}
	for i, row := range out.Rows {
		v, err := s.Fn(row)
		if err != nil {
			return nil, eris.Wrapf(err, "calculation %s: row %d", s.StepName, i)
		}
		row[s.Target] = v
	}
	return out, nil
}

// DropStep removes columns.
type DropStep struct {
	StepName string
	Columns  []string
}

func (s *DropStep) Name() string { return s.StepName }

func (s *DropStep) Execute(_ context.Context, f *frame.Frame, _ *RunContext) (*frame.Frame, error) {
	return f.Drop(s.Columns), nil
}

// SchemaValidationStep runs a RowValidator over every row, producing
// RowErrors so CollectErrors mode can isolate bad rows.
type SchemaValidationStep struct {
	StepName  string
	Validator validation.RowValidator
	Stage     string
}

func (s *SchemaValidationStep) Name() string { return s.StepName }

func (s *SchemaValidationStep) Execute(_ context.Context, f *frame.Frame, _ *RunContext) (*frame.Frame, error) {
	out := frame.New(f.Columns)
	var rejections []validation.RejectionRecord

	for i, row := range f.Rows {
		validated, err := s.Validator.ValidateRow(row)
		if err != nil {
			var fe *validation.FieldError
			if eris.As(err, &fe) {
				rejections = append(rejections, validation.RejectionRecord{
					RowIndex:      i,
					Row:           row,
					ErrorType:     "validation",
					ErrorField:    fe.Field,
					ErrorMessage:  fe.Message,
					PipelineStage: s.Stage,
				})
				continue
			}
			return nil, err
		}
		out.Rows = append(out.Rows, validated)
	}

	if len(rejections) > 0 {
		return nil, &RowErrors{Frame: out, Rejections: rejections}
	}
	return out, nil
}

// GoldProjectionStep projects the frame to the output column set.
type GoldProjectionStep struct {
	StepName string
	Columns  []string
}

func (s *GoldProjectionStep) Name() string { return s.StepName }

func (s *GoldProjectionStep) Execute(_ context.Context, f *frame.Frame, _ *RunContext) (*frame.Frame, error) {
	return f.Project(s.Columns)
}
