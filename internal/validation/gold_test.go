package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workdatahub/workdatahub/internal/frame"
)

func goldFrame(rows ...frame.Row) *frame.Frame {
	f := frame.New([]string{"月度", "计划代码", "company_id", "期末资产规模"})
	f.Rows = rows
	return f
}

func validGoldSchema() *GoldSchema {
	return &GoldSchema{
		Domain:          "annuity_performance",
		RequiredColumns: []string{"月度", "计划代码", "company_id"},
		MonetaryColumns: []string{"期末资产规模"},
		CompositeKey:    []string{"月度", "计划代码", "company_id"},
	}
}

func TestGold_Passes(t *testing.T) {
	f := goldFrame(
		frame.Row{"月度": "2025-01-01", "计划代码": "P1", "company_id": "C1", "期末资产规模": 100.0},
		frame.Row{"月度": "2025-01-01", "计划代码": "P2", "company_id": "C1", "期末资产规模": 0.0},
	)
	assert.NoError(t, validGoldSchema().Validate(f))
}

func TestGold_NullRequired(t *testing.T) {
	f := goldFrame(frame.Row{"月度": "2025-01-01", "计划代码": "", "company_id": "C1"})
	err := validGoldSchema().Validate(f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "计划代码")
}

func TestGold_NegativeMonetary(t *testing.T) {
	f := goldFrame(frame.Row{"月度": "2025-01-01", "计划代码": "P1", "company_id": "C1", "期末资产规模": -5.0})
	err := validGoldSchema().Validate(f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative")
}

func TestGold_DuplicateCompositeKey(t *testing.T) {
	dup := frame.Row{"月度": "2025-01-01", "计划代码": "P1", "company_id": "C1", "期末资产规模": 1.0}
	f := goldFrame(dup, dup)
	err := validGoldSchema().Validate(f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not unique")
	assert.Contains(t, err.Error(), "P1")
}

func TestGold_CollisionListCapped(t *testing.T) {
	f := frame.New([]string{"月度", "计划代码", "company_id"})
	for i := 0; i < 30; i++ {
		row := frame.Row{"月度": "2025-01-01", "计划代码": "P" + string(rune('A'+i%15)), "company_id": "C1"}
		f.Rows = append(f.Rows, row, row)
	}
	s := &GoldSchema{Domain: "d", CompositeKey: []string{"月度", "计划代码", "company_id"}}
	err := s.Validate(f)
	require.Error(t, err)
}
