package reader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"trim and collapse", []string{"  计划 代码  ", "a\tb", "x\ny"}, []string{"计划 代码", "a b", "x y"}},
		{"full width space", []string{"客户　名称"}, []string{"客户 名称"}},
		{"empty becomes unnamed", []string{"a", "", "c"}, []string{"a", "Unnamed_1", "c"}},
		{"duplicates suffixed", []string{"月度", "月度", "月度"}, []string{"月度", "月度_1", "月度_2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeHeader(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadCSV(t *testing.T) {
	path := writeCSV(t, "月度,计划代码\n202501,P1\n,\n202501,P2\n")
	f, err := ReadCSV(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"月度", "计划代码"}, f.Columns)
	require.Equal(t, 2, f.NumRows(), "fully empty record skipped")
	assert.Equal(t, "P2", f.Rows[1]["计划代码"])
}

func TestReadCSV_StripsBOM(t *testing.T) {
	path := writeCSV(t, "\xEF\xBB\xBF月度,计划代码\n202501,P1\n")
	f, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, "月度", f.Columns[0])
}

func TestReadCSV_Empty(t *testing.T) {
	path := writeCSV(t, "")
	_, err := ReadCSV(path)
	require.Error(t, err)
}

func writeWorkbook(t *testing.T, sheetName string, rows [][]string) string {
	t.Helper()
	wb := xlsx.NewFile()
	sheet, err := wb.AddSheet(sheetName)
	require.NoError(t, err)
	for _, cells := range rows {
		row := sheet.AddRow()
		for _, v := range cells {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "input.xlsx")
	require.NoError(t, wb.Save(path))
	return path
}

func TestReadXLSX_ByName(t *testing.T) {
	path := writeWorkbook(t, "规模明细", [][]string{
		{"", ""},
		{"月度", "计划代码"},
		{"202501", "P1"},
	})

	f, err := ReadXLSX(path, SheetSelector{Name: "规模明细"})
	require.NoError(t, err)
	assert.Equal(t, []string{"月度", "计划代码"}, f.Columns)
	require.Equal(t, 1, f.NumRows())
	assert.Equal(t, "P1", f.Rows[0]["计划代码"])
}

func TestReadXLSX_SheetNotFound(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", [][]string{{"a"}, {"1"}})
	_, err := ReadXLSX(path, SheetSelector{Name: "规模明细"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "规模明细")
}

func TestReadXLSX_ByIndex(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", [][]string{{"a"}, {"1"}})

	f, err := ReadXLSX(path, SheetSelector{Index: 0})
	require.NoError(t, err)
	assert.Equal(t, 1, f.NumRows())

	_, err = ReadXLSX(path, SheetSelector{Index: 5})
	require.Error(t, err)
}
