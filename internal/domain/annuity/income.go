package annuity

import (
	"time"

	"github.com/workdatahub/workdatahub/internal/cleansing"
	"github.com/workdatahub/workdatahub/internal/enrichment"
	"github.com/workdatahub/workdatahub/internal/frame"
	"github.com/workdatahub/workdatahub/internal/pipeline"
	"github.com/workdatahub/workdatahub/internal/registry"
	"github.com/workdatahub/workdatahub/internal/validation"
)

// DomainIncome is the registry key for the income facts.
const DomainIncome = "annuity_income"

// Income-specific column names. Plan, customer and org columns are
// shared with the performance facts.
const (
	ColAssessedIncome = "考核口径收入"
	ColReceivedIncome = "实收收入"
)

var incomeMonetary = []string{ColAssessedIncome, ColReceivedIncome}

var incomeOutput = []string{
	ColMonth, ColBusinessType, ColPlanCode, ColPlanName, ColCustomerName,
	ColAssessedIncome, ColReceivedIncome,
	ColOrgCode, ColOrgName, ColProductLine, ColCompanyID,
}

// IncomeService is the annuity_income domain service. Income sheets
// aggregate at plan level, so the composite key has no portfolio code.
type IncomeService struct{}

// NewIncomeService creates the service. It is stateless.
func NewIncomeService() *IncomeService { return &IncomeService{} }

func (s *IncomeService) Bronze() *validation.BronzeSchema {
	return &validation.BronzeSchema{
		Domain:          DomainIncome,
		RequiredColumns: []string{ColMonth, ColPlanCode},
		ColumnRules: []validation.ColumnRule{
			{Name: ColMonth, MinNonNullRatio: 0.95},
			{Name: ColPlanCode, MinNonNullRatio: 0.95},
		},
	}
}

func (s *IncomeService) RowIn() validation.RowValidator {
	return &incomeRowIn{}
}

func (s *IncomeService) Steps(deps registry.StepDeps) []pipeline.Step {
	fields := cleansing.DomainConfig{
		ColPlanCode:     {cleansing.RuleTrimWhitespace},
		ColCustomerName: {cleansing.RuleTrimWhitespace, cleansing.RuleNormalizeCompanyName},
		ColOrgCode:      {cleansing.RuleTrimWhitespace},
	}
	for _, col := range incomeMonetary {
		fields[col] = []string{cleansing.RuleRemoveCurrencySymbols, cleansing.RuleCleanCommaNumber}
	}

	return []pipeline.Step{
		&pipeline.MappingStep{StepName: "map_headers", Renames: headerRenames},
		&pipeline.ReplacementStep{StepName: "fold_business_type", Column: ColBusinessType, Values: businessTypeReplacements},
		&pipeline.CleansingStep{StepName: "cleanse_fields", Registry: deps.Cleansing, Fields: fields},
		&enrichment.ResolutionStep{
			StepName: "resolve_company_id",
			Resolver: deps.Resolver,
			Columns:  enrichment.DefaultColumnMap(),
		},
		&pipeline.SchemaValidationStep{StepName: "validate_rows", Validator: &incomeRowOut{}, Stage: "silver"},
		&pipeline.GoldProjectionStep{StepName: "project_gold", Columns: incomeOutput},
	}
}

func (s *IncomeService) Gold() *validation.GoldSchema {
	return &validation.GoldSchema{
		Domain:          DomainIncome,
		RequiredColumns: []string{ColMonth, ColPlanCode, ColCompanyID},
		MonetaryColumns: incomeMonetary,
		CompositeKey:    []string{ColMonth, ColPlanCode, ColCompanyID},
	}
}

type incomeRowIn struct{}

func (v *incomeRowIn) Name() string { return "annuity_income.row_in" }

func (v *incomeRowIn) ValidateRow(row frame.Row) (frame.Row, error) {
	month, err := validation.ParseReportMonth(row[ColMonth])
	if err != nil {
		return nil, &validation.FieldError{Field: ColMonth, Value: row[ColMonth], Message: err.Error()}
	}
	if frame.String(row[ColPlanCode]) == "" {
		return nil, &validation.FieldError{Field: ColPlanCode, Value: row[ColPlanCode], Message: "plan code is required"}
	}
	out := cloneRow(row)
	out[ColMonth] = month
	return out, nil
}

type incomeRowOut struct{}

func (v *incomeRowOut) Name() string { return "annuity_income.row_out" }

func (v *incomeRowOut) ValidateRow(row frame.Row) (frame.Row, error) {
	out := cloneRow(row)

	if _, ok := out[ColMonth].(time.Time); !ok {
		month, err := validation.ParseReportMonth(out[ColMonth])
		if err != nil {
			return nil, &validation.FieldError{Field: ColMonth, Value: out[ColMonth], Message: err.Error()}
		}
		out[ColMonth] = month
	}
	if frame.String(out[ColPlanCode]) == "" {
		return nil, &validation.FieldError{Field: ColPlanCode, Value: out[ColPlanCode], Message: "plan code is required"}
	}
	if frame.String(out[ColCompanyID]) == "" {
		return nil, &validation.FieldError{Field: ColCompanyID, Value: out[ColCompanyID], Message: "company id missing after resolution"}
	}

	for _, col := range incomeMonetary {
		val, ok, err := validation.ParseDecimal(out[col])
		if err != nil {
			return nil, &validation.FieldError{Field: col, Value: out[col], Message: err.Error()}
		}
		if !ok {
			out[col] = nil
			continue
		}
		if val < 0 {
			return nil, &validation.FieldError{Field: col, Value: out[col], Message: "monetary value is negative"}
		}
		out[col] = val
	}

	return out, nil
}
