// Package reader parses the monthly Excel and CSV drops into raw frames.
// Header normalization lives here so every downstream component sees the
// same canonical column names.
package reader

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/workdatahub/workdatahub/internal/frame"
)

// SheetSelector picks a worksheet by name or, when Name is empty, by index.
type SheetSelector struct {
	Name  string
	Index int
}

// ReadXLSX reads one sheet of an Excel workbook into a frame. The first
// non-empty row is the header; fully empty rows are skipped.
func ReadXLSX(path string, sel SheetSelector) (*frame.Frame, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "reader: open workbook %s", path)
	}

	sheet, err := pickSheet(f, sel)
	if err != nil {
		return nil, err
	}

	var header []string
	var records [][]string
	for _, row := range sheet.Rows {
		cells := rowToStrings(row)
		if isEmptyRecord(cells) {
			continue
		}
		if header == nil {
			header = cells
			continue
		}
		records = append(records, cells)
	}
	if header == nil {
		return nil, eris.Errorf("reader: sheet %q is empty", sheet.Name)
	}

	normalized, err := NormalizeHeader(header)
	if err != nil {
		return nil, err
	}
	return frame.FromRecords(normalized, records), nil
}

func pickSheet(f *xlsx.File, sel SheetSelector) (*xlsx.Sheet, error) {
	if sel.Name != "" {
		sheet, ok := f.Sheet[sel.Name]
		if !ok {
			return nil, eris.Errorf("reader: sheet %q not found", sel.Name)
		}
		return sheet, nil
	}
	if sel.Index >= len(f.Sheets) || sel.Index < 0 {
		return nil, eris.Errorf("reader: sheet index %d out of range (file has %d sheets)", sel.Index, len(f.Sheets))
	}
	return f.Sheets[sel.Index], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func isEmptyRecord(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
