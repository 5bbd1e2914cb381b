package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const validDataSources = `
domains:
  annuity_performance:
    base_path: "ref/monthly/{YYYYMM}/in"
    file_patterns: ["*年金*.xlsx"]
    exclude_patterns: ["~$*"]
    sheet_name: "规模明细"
    requires_backfill: true
    supports_enrichment: true
    output:
      table: "规模明细"
      pk: ["月度", "计划代码", "组合代码", "company_id"]
      delete_key: ["月度", "计划代码", "company_id"]
`

func TestParseDataSources(t *testing.T) {
	ds, err := ParseDataSources([]byte(validDataSources))
	require.NoError(t, err)

	dc, err := ds.Domain("annuity_performance")
	require.NoError(t, err)
	assert.Equal(t, "ref/monthly/{YYYYMM}/in", dc.BasePath)
	assert.True(t, dc.RequiresBackfill)

	// Defaults applied during parsing.
	assert.Equal(t, StrategyHighestNumber, dc.VersionStrategy)
	assert.Equal(t, FallbackError, dc.Fallback)
	assert.Equal(t, "public", dc.Output.SchemaName)
	assert.Equal(t, 1, dc.MaxFiles)
	assert.Equal(t, []string{"月度", "计划代码", "company_id"}, dc.Output.DeleteKey)
}

func TestParseDataSources_DeleteKeyDefaultsToPK(t *testing.T) {
	raw := `
domains:
  d:
    base_path: "x"
    file_patterns: ["*.csv"]
    sheet_name: "s"
    output:
      table: "t"
      pk: ["a", "b"]
`
	ds, err := ParseDataSources([]byte(raw))
	require.NoError(t, err)
	dc, _ := ds.Domain("d")
	assert.Equal(t, []string{"a", "b"}, dc.Output.DeleteKey)
}

func TestParseDataSources_UnknownKeyRejected(t *testing.T) {
	raw := `
domains:
  d:
    base_path: "x"
    file_patterns: ["*.csv"]
    sheet_name: "s"
    file_pattens: ["typo"]
    output:
      table: "t"
      pk: ["a"]
`
	_, err := ParseDataSources([]byte(raw))
	require.Error(t, err)
}

func TestParseDataSources_BadStrategyDottedPath(t *testing.T) {
	raw := `
domains:
  d:
    base_path: "x"
    file_patterns: ["*.csv"]
    sheet_name: "s"
    version_strategy: "newest"
    output:
      table: "t"
      pk: ["a"]
`
	_, err := ParseDataSources([]byte(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version_strategy")
	assert.Contains(t, err.Error(), "highest_number")
}

func TestParseDataSources_SheetRequired(t *testing.T) {
	raw := `
domains:
  d:
    base_path: "x"
    file_patterns: ["*.csv"]
    output:
      table: "t"
      pk: ["a"]
`
	_, err := ParseDataSources([]byte(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sheet_name")
}

func TestParseDataSources_UnknownDomain(t *testing.T) {
	ds, err := ParseDataSources([]byte(validDataSources))
	require.NoError(t, err)
	_, err = ds.Domain("nope")
	require.Error(t, err)
}

const validForeignKeys = `
annuity_performance:
  - name: "年金客户"
    source_column: "计划代码"
    target_table: "年金客户"
    target_key: "计划代码"
    depends_on: ["年金计划"]
    backfill_columns:
      - source: "计划代码"
        target: "计划代码"
      - source: "主拓机构代码"
        target: "主拓机构代码"
        optional: true
        aggregation:
          type: max_by
          order_column: "期末资产规模"
  - name: "年金计划"
    source_column: "计划代码"
    target_table: "年金计划"
    target_key: "计划代码"
    skip_blank_values: true
    backfill_columns:
      - source: "计划代码"
        target: "计划代码"
      - source: "组合代码"
        target: "组合列表"
        optional: true
        aggregation:
          type: concat_distinct
          sort: true
`

func TestParseForeignKeys_TopoOrder(t *testing.T) {
	fk, err := ParseForeignKeys([]byte(validForeignKeys))
	require.NoError(t, err)

	rules := fk.RulesFor("annuity_performance")
	require.Len(t, rules, 2)
	assert.Equal(t, "年金计划", rules[0].Name, "dependency runs first")
	assert.Equal(t, "年金客户", rules[1].Name)

	// Defaults.
	assert.Equal(t, "insert_missing", rules[0].Mode)
	assert.Equal(t, "public", rules[0].TargetSchema)
	assert.Equal(t, ",", rules[0].BackfillColumns[1].Aggregation.Separator)
}

func TestParseForeignKeys_Cycle(t *testing.T) {
	raw := `
d:
  - name: a
    source_column: s
    target_table: t
    target_key: k
    depends_on: [b]
    backfill_columns: [{source: s, target: k}]
  - name: b
    source_column: s
    target_table: t2
    target_key: k
    depends_on: [a]
    backfill_columns: [{source: s, target: k}]
`
	_, err := ParseForeignKeys([]byte(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestParseForeignKeys_UnknownDependency(t *testing.T) {
	raw := `
d:
  - name: a
    source_column: s
    target_table: t
    target_key: k
    depends_on: [ghost]
    backfill_columns: [{source: s, target: k}]
`
	_, err := ParseForeignKeys([]byte(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestParseForeignKeys_MaxByNeedsOrderColumn(t *testing.T) {
	raw := `
d:
  - name: a
    source_column: s
    target_table: t
    target_key: k
    backfill_columns:
      - source: s
        target: k
        aggregation:
          type: max_by
`
	_, err := ParseForeignKeys([]byte(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order_column")
}

func TestParseCompanyMapping(t *testing.T) {
	raw := `
plan_code:
  "P0190": "C1"
customer_name:
  "平安银行": "C2"
`
	m, err := ParseCompanyMapping([]byte(raw))
	require.NoError(t, err)

	id, ok := m.Lookup(LookupPlanCode, "P0190")
	require.True(t, ok)
	assert.Equal(t, "C1", id)

	_, ok = m.Lookup(LookupCustomerName, "missing")
	assert.False(t, ok)
	assert.Equal(t, 2, m.Size())
}

func TestParseCompanyMapping_UnknownLookupType(t *testing.T) {
	_, err := ParseCompanyMapping([]byte("made_up_type:\n  k: v\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "made_up_type")
}

func TestParseConfidence(t *testing.T) {
	raw := `
eqc_match_confidence:
  exact: 0.98
  fuzzy: 0.75
default: 0.65
min_confidence_for_cache: 0.60
`
	c, err := ParseConfidence([]byte(raw))
	require.NoError(t, err)
	assert.InDelta(t, 0.98, c.Confidence("exact"), 1e-9)
	assert.InDelta(t, 0.65, c.Confidence("unlisted"), 1e-9)
	assert.InDelta(t, 0.60, c.MinForCache, 1e-9)
}

func TestParseConfidence_OutOfRange(t *testing.T) {
	_, err := ParseConfidence([]byte("eqc_match_confidence:\n  exact: 1.5\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exact")
}

func TestLookupPriorityOrder(t *testing.T) {
	assert.Equal(t, []string{
		LookupPlanCode, LookupAccountName, LookupAccountNumber,
		LookupCustomerName, LookupPlanCustomer,
	}, LookupPriority)
}
