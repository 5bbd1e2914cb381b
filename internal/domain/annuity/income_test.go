package annuity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workdatahub/workdatahub/internal/frame"
	"github.com/workdatahub/workdatahub/internal/registry"
	"github.com/workdatahub/workdatahub/internal/validation"
)

func validIncomeRow() frame.Row {
	return frame.Row{
		ColMonth:          "2025年1月",
		ColPlanCode:       "P0190",
		ColCustomerName:   "甲公司",
		ColCompanyID:      "C1",
		ColAssessedIncome: "1,234.56",
		ColReceivedIncome: "1000",
	}
}

func TestIncomeRowIn(t *testing.T) {
	out, err := (&incomeRowIn{}).ValidateRow(validIncomeRow())
	require.NoError(t, err)

	month, ok := out[ColMonth].(time.Time)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), month)
}

func TestIncomeRowOut(t *testing.T) {
	out, err := (&incomeRowOut{}).ValidateRow(validIncomeRow())
	require.NoError(t, err)

	assert.Equal(t, 1234.56, out[ColAssessedIncome])
	assert.Equal(t, 1000.0, out[ColReceivedIncome])
}

func TestIncomeRowOut_NegativeIncome(t *testing.T) {
	row := validIncomeRow()
	row[ColReceivedIncome] = "-1"

	_, err := (&incomeRowOut{}).ValidateRow(row)
	var fe *validation.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, ColReceivedIncome, fe.Field)
}

func TestIncomeGold_NoPortfolioInKey(t *testing.T) {
	g := NewIncomeService().Gold()
	assert.Equal(t, []string{ColMonth, ColPlanCode, ColCompanyID}, g.CompositeKey)
}

func TestIncomeSteps_NoDerivation(t *testing.T) {
	steps := NewIncomeService().Steps(registry.StepDeps{})

	var names []string
	for _, s := range steps {
		names = append(names, s.Name())
	}
	assert.NotContains(t, names, "derive_outflow_incl_pay")
	assert.Contains(t, names, "resolve_company_id")
}
