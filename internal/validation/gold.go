package validation

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/workdatahub/workdatahub/internal/frame"
)

// maxReportedCollisions caps how many colliding keys a uniqueness
// violation enumerates.
const maxReportedCollisions = 10

// GoldSchema is the warehouse-ready contract checked after the pipeline.
type GoldSchema struct {
	Domain          string
	RequiredColumns []string // no-null columns
	MonetaryColumns []string // must be non-negative when present
	CompositeKey    []string // uniqueness tuple
}

// Validate enforces no-null, non-negative and composite-key uniqueness.
// Gold failures are fatal: by this point every row should have survived
// Bronze and the pipeline, so violations indicate a transformation bug.
func (s *GoldSchema) Validate(f *frame.Frame) error {
	for _, col := range s.RequiredColumns {
		if !f.HasColumn(col) {
			return eris.Errorf("validation: %s: gold frame missing column %s", s.Domain, col)
		}
		for i, row := range f.Rows {
			if isNullValue(row[col]) {
				return eris.Errorf("validation: %s: row %d: column %s must not be null", s.Domain, i, col)
			}
		}
	}

	for _, col := range s.MonetaryColumns {
		if !f.HasColumn(col) {
			continue
		}
		for i, row := range f.Rows {
			v, ok, err := ParseDecimal(row[col])
			if err != nil {
				return eris.Wrapf(err, "validation: %s: row %d: column %s", s.Domain, i, col)
			}
			if ok && v < 0 {
				return eris.Errorf("validation: %s: row %d: column %s is negative (%v)", s.Domain, i, col, v)
			}
		}
	}

	if len(s.CompositeKey) > 0 {
		seen := make(map[string]int, f.NumRows())
		var collisions []string
		for _, row := range f.Rows {
			key := compositeKeyOf(row, s.CompositeKey)
			seen[key]++
			if seen[key] == 2 && len(collisions) < maxReportedCollisions {
				collisions = append(collisions, key)
			}
		}
		if len(collisions) > 0 {
			return eris.Errorf("validation: %s: composite key (%s) not unique; colliding keys: %s",
				s.Domain, strings.Join(s.CompositeKey, ", "), strings.Join(collisions, "; "))
		}
	}

	return nil
}

func compositeKeyOf(row frame.Row, cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = frame.String(row[c])
	}
	return strings.Join(parts, "|")
}

func isNullValue(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// Describe renders the schema for plan-only summaries.
func (s *GoldSchema) Describe() string {
	return fmt.Sprintf("gold[%s] not-null=%v monetary=%v key=%v",
		s.Domain, s.RequiredColumns, s.MonetaryColumns, s.CompositeKey)
}
