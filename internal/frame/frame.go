// Package frame provides the in-memory tabular structure passed between
// pipeline steps. A Frame preserves column order and row order; steps
// that transform a frame return a new one rather than mutating their input.
package frame

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// Row is a single record keyed by column name.
type Row map[string]any

// Frame holds an ordered set of columns and the rows read from one input
// file (or produced by a pipeline step).
type Frame struct {
	Columns []string
	Rows    []Row
}

// New creates an empty frame with the given column order.
func New(columns []string) *Frame {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Frame{Columns: cols}
}

// FromRecords builds a frame from a header row and string records, as
// produced by the xlsx/csv readers. Records shorter than the header are
// padded with empty strings; longer records are truncated.
func FromRecords(header []string, records [][]string) *Frame {
	f := New(header)
	f.Rows = make([]Row, 0, len(records))
	for _, rec := range records {
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		f.Rows = append(f.Rows, row)
	}
	return f
}

// NumRows returns the row count.
func (f *Frame) NumRows() int {
	return len(f.Rows)
}

// HasColumn reports whether the frame declares the column.
func (f *Frame) HasColumn(name string) bool {
	for _, c := range f.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Clone returns a copy of the frame with independent row maps. Values are
// copied shallowly; steps treat cell values as immutable.
func (f *Frame) Clone() *Frame {
	out := New(f.Columns)
	out.Rows = make([]Row, len(f.Rows))
	for i, row := range f.Rows {
		nr := make(Row, len(row))
		for k, v := range row {
			nr[k] = v
		}
		out.Rows[i] = nr
	}
	return out
}

// Rename returns a new frame with columns renamed per the mapping.
// Columns absent from the mapping keep their names. Renaming onto an
// existing column name is an error.
func (f *Frame) Rename(mapping map[string]string) (*Frame, error) {
	seen := make(map[string]bool, len(f.Columns))
	cols := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		name := c
		if to, ok := mapping[c]; ok {
			name = to
		}
		if seen[name] {
			return nil, eris.Errorf("frame: rename collision on column %q", name)
		}
		seen[name] = true
		cols[i] = name
	}

	out := New(cols)
	out.Rows = make([]Row, len(f.Rows))
	for i, row := range f.Rows {
		nr := make(Row, len(row))
		for k, v := range row {
			if to, ok := mapping[k]; ok {
				nr[to] = v
			} else {
				nr[k] = v
			}
		}
		out.Rows[i] = nr
	}
	return out, nil
}

// Project returns a new frame containing only the requested columns, in
// the requested order. Missing columns are an error.
func (f *Frame) Project(columns []string) (*Frame, error) {
	for _, c := range columns {
		if !f.HasColumn(c) {
			return nil, eris.Errorf("frame: project: column %q not present", c)
		}
	}
	out := New(columns)
	out.Rows = make([]Row, len(f.Rows))
	for i, row := range f.Rows {
		nr := make(Row, len(columns))
		for _, c := range columns {
			nr[c] = row[c]
		}
		out.Rows[i] = nr
	}
	return out, nil
}

// Drop returns a new frame without the named columns. Unknown names are
// ignored so config-driven drops stay tolerant of already-projected frames.
func (f *Frame) Drop(columns []string) *Frame {
	dropped := make(map[string]bool, len(columns))
	for _, c := range columns {
		dropped[c] = true
	}
	var cols []string
	for _, c := range f.Columns {
		if !dropped[c] {
			cols = append(cols, c)
		}
	}
	out := New(cols)
	out.Rows = make([]Row, len(f.Rows))
	for i, row := range f.Rows {
		nr := make(Row, len(cols))
		for _, c := range cols {
			nr[c] = row[c]
		}
		out.Rows[i] = nr
	}
	return out
}

// Filter returns a new frame with the rows for which keep returns true,
// preserving order.
func (f *Frame) Filter(keep func(Row) bool) *Frame {
	out := New(f.Columns)
	for _, row := range f.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// String returns the string form of a cell value; nil becomes "".
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case time.Time:
		return t.Format("2006-01-02")
	default:
		return fmt.Sprintf("%v", t)
	}
}
