// Package annuity implements the enterprise-annuity domains: monthly
// performance facts and income facts. Each domain exposes a service the
// orchestrator dispatches through the registry; no run code branches on
// domain names.
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

// DomainPerformance is the registry key for the performance facts.
const DomainPerformance = "annuity_performance"

// Fact-table column names for annuity performance.
const (
	ColMonth          = "月度"
	ColBusinessType   = "业务类型"
	ColPlanType       = "计划类型"
	ColPlanCode       = "计划代码"
	ColPlanName       = "计划名称"
	ColPortfolioType  = "组合类型"
	ColPortfolioCode  = "组合代码"
	ColPortfolioName  = "组合名称"
	ColCustomerName   = "客户名称"
	ColOpeningAssets  = "期初资产规模"
	ColClosingAssets  = "期末资产规模"
	ColContributions  = "供款"
	ColOutflow        = "流失"
	ColOutflowInclPay = "流失_含待遇支付"
	ColBenefitPay     = "待遇支付"
	ColInvestReturn   = "投资收益"
	ColPeriodYield    = "当期收益率"
	ColOrgCode        = "机构代码"
	ColOrgName        = "机构名称"
	ColProductLine    = "产品线代码"
	ColAccountNumber  = "年金账户号"
	ColAccountName    = "年金账户名"
	ColCompanyID      = "company_id"
)

// performanceMonetary lists the columns that must parse as non-negative
// decimals. Yield is excluded: it may legitimately be negative.
var performanceMonetary = []string{
	ColOpeningAssets, ColClosingAssets, ColContributions,
	ColOutflow, ColOutflowInclPay, ColBenefitPay,
}

// performanceOutput is the Gold column set, in warehouse order.
var performanceOutput = []string{
	ColMonth, ColBusinessType, ColPlanType, ColPlanCode, ColPlanName,
	ColPortfolioType, ColPortfolioCode, ColPortfolioName, ColCustomerName,
	ColOpeningAssets, ColClosingAssets, ColContributions,
	ColOutflow, ColOutflowInclPay, ColBenefitPay,
	ColInvestReturn, ColPeriodYield,
	ColOrgCode, ColOrgName, ColProductLine,
	ColAccountNumber, ColAccountName, ColCompanyID,
}

// headerRenames maps the header variants seen in monthly drops to the
// canonical fact columns.
var headerRenames = map[string]string{
	"月份":        ColMonth,
	"计划号":       ColPlanCode,
	"组合号":       ColPortfolioCode,
	"客户名":       ColCustomerName,
	"流失(含待遇支付)": ColOutflowInclPay,
}

// businessTypeReplacements folds legacy business-type labels into the
// current vocabulary.
var businessTypeReplacements = map[string]string{
	"企年受托": "企业年金受托",
	"企年投资": "企业年金投资",
	"职年受托": "职业年金受托",
	"职年投资": "职业年金投资",
}

// PerformanceService is the annuity_performance domain service.
type PerformanceService struct{}

// NewPerformanceService creates the service. It is stateless.
func NewPerformanceService() *PerformanceService { return &PerformanceService{} }

func (s *PerformanceService) Bronze() *validation.BronzeSchema {
	return &validation.BronzeSchema{
		Domain:          DomainPerformance,
		RequiredColumns: []string{ColMonth, ColPlanCode},
		ColumnRules: []validation.ColumnRule{
			{Name: ColMonth, MinNonNullRatio: 0.95},
			{Name: ColPlanCode, MinNonNullRatio: 0.95},
		},
	}
}

func (s *PerformanceService) RowIn() validation.RowValidator {
	return &performanceRowIn{}
}

func (s *PerformanceService) Steps(deps registry.StepDeps) []pipeline.Step {
	fields := cleansing.DomainConfig{
		ColPlanCode:      {cleansing.RuleTrimWhitespace},
		ColPortfolioCode: {cleansing.RuleTrimWhitespace},
		ColCustomerName:  {cleansing.RuleTrimWhitespace, cleansing.RuleNormalizeCompanyName},
		ColAccountName:   {cleansing.RuleTrimWhitespace, cleansing.RuleNormalizeCompanyName},
		ColAccountNumber: {cleansing.RuleTrimWhitespace},
		ColOrgCode:       {cleansing.RuleTrimWhitespace},
	}
	for _, col := range performanceMonetary {
		fields[col] = []string{cleansing.RuleRemoveCurrencySymbols, cleansing.RuleCleanCommaNumber}
	}

	return []pipeline.Step{
		&pipeline.MappingStep{StepName: "map_headers", Renames: headerRenames},
		&pipeline.ReplacementStep{StepName: "fold_business_type", Column: ColBusinessType, Values: businessTypeReplacements},
		&pipeline.CleansingStep{StepName: "cleanse_fields", Registry: deps.Cleansing, Fields: fields},
		&pipeline.CalculationStep{StepName: "derive_outflow_incl_pay", Target: ColOutflowInclPay, Fn: deriveOutflowInclPay},
		&enrichment.ResolutionStep{
			StepName: "resolve_company_id",
			Resolver: deps.Resolver,
			Columns:  enrichment.DefaultColumnMap(),
		},
		&pipeline.SchemaValidationStep{StepName: "validate_rows", Validator: &performanceRowOut{}, Stage: "silver"},
		&pipeline.GoldProjectionStep{StepName: "project_gold", Columns: performanceOutput},
	}
}

func (s *PerformanceService) Gold() *validation.GoldSchema {
	return &validation.GoldSchema{
		Domain:          DomainPerformance,
		RequiredColumns: []string{ColMonth, ColPlanCode, ColCompanyID},
		MonetaryColumns: performanceMonetary,
		CompositeKey:    []string{ColMonth, ColPlanCode, ColPortfolioCode, ColCompanyID},
	}
}

// deriveOutflowInclPay fills the combined outflow column when the source
// sheet omits it.
func deriveOutflowInclPay(row frame.Row) (any, error) {
	if existing, ok, err := validation.ParseDecimal(row[ColOutflowInclPay]); err == nil && ok {
		return existing, nil
	}
	outflow, ok1, err := validation.ParseDecimal(row[ColOutflow])
	if err != nil {
		return nil, err
	}
	pay, ok2, err := validation.ParseDecimal(row[ColBenefitPay])
	if err != nil {
		return nil, err
	}
	if !ok1 && !ok2 {
		return nil, nil
	}
	return outflow + pay, nil
}

// performanceRowIn is the loose Bronze parser: the month must parse and
// the plan code must be present; everything else passes through.
type performanceRowIn struct{}

func (v *performanceRowIn) Name() string { return "annuity_performance.row_in" }

func (v *performanceRowIn) ValidateRow(row frame.Row) (frame.Row, error) {
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

// performanceRowOut is the strict Silver validator: fully typed values,
// monetary columns coerced to decimals, company id stamped.
type performanceRowOut struct{}

func (v *performanceRowOut) Name() string { return "annuity_performance.row_out" }

func (v *performanceRowOut) ValidateRow(row frame.Row) (frame.Row, error) {
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

	for _, col := range performanceMonetary {
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

	// Yield may be negative; coerce without the sign check.
	for _, col := range []string{ColInvestReturn, ColPeriodYield} {
		val, ok, err := validation.ParseDecimal(out[col])
		if err != nil {
			return nil, &validation.FieldError{Field: col, Value: out[col], Message: err.Error()}
		}
		if ok {
			out[col] = val
		} else {
			out[col] = nil
		}
	}

	return out, nil
}

func cloneRow(row frame.Row) frame.Row {
	out := make(frame.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
