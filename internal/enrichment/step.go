package enrichment

import (
	"context"

	"github.com/workdatahub/workdatahub/internal/frame"
	"github.com/workdatahub/workdatahub/internal/pipeline"
)

// ColumnMap names the frame columns feeding the resolution request.
// Empty entries are skipped.
type ColumnMap struct {
	PlanCode      string
	CustomerName  string
	AccountName   string
	AccountNumber string
	CompanyID     string // target column; also read as the existing id
}

// DefaultColumnMap matches the annuity domain headers.
func DefaultColumnMap() ColumnMap {
	return ColumnMap{
		PlanCode:      "计划代码",
		CustomerName:  "客户名称",
		AccountName:   "年金账户名",
		AccountNumber: "年金账户号",
		CompanyID:     "company_id",
	}
}

// ResolutionStep is the pipeline step that stamps company_id onto every
// row. It is the only pipeline step allowed to block on network I/O.
type ResolutionStep struct {
	StepName string
	Resolver *Resolver
	Columns  ColumnMap
	Skip     bool // domains without enrichment support skip this step
}

func (s *ResolutionStep) Name() string { return s.StepName }

func (s *ResolutionStep) Optional() bool { return true }

func (s *ResolutionStep) Execute(ctx context.Context, f *frame.Frame, _ *pipeline.RunContext) (*frame.Frame, error) {
	if s.Skip || s.Resolver == nil {
		return nil, pipeline.ErrSkipped
	}

	out := f.Clone()
	if !out.HasColumn(s.Columns.CompanyID) {
		out.Columns = append(out.Columns, s.Columns.CompanyID)
	}

	for _, row := range out.Rows {
		req := Request{
			PlanCode:      frame.String(row[s.Columns.PlanCode]),
			CustomerName:  frame.String(row[s.Columns.CustomerName]),
			AccountName:   frame.String(row[s.Columns.AccountName]),
			AccountNumber: frame.String(row[s.Columns.AccountNumber]),
			ExistingID:    frame.String(row[s.Columns.CompanyID]),
		}
		res, err := s.Resolver.Resolve(ctx, req)
		if err != nil {
			return nil, err
		}
		row[s.Columns.CompanyID] = res.CompanyID
	}
	return out, nil
}
