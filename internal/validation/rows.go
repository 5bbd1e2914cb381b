package validation

import (
	"fmt"

	"github.com/workdatahub/workdatahub/internal/frame"
)

// RejectionRecord snapshots one rejected row for export.
type RejectionRecord struct {
	RowIndex      int
	Row           frame.Row
	ErrorType     string
	ErrorField    string
	ErrorMessage  string
	PipelineStage string
}

// FieldError describes a single field-level failure inside a row.
type FieldError struct {
	Field   string
	Value   any
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s: %s (value %v)", e.Field, e.Message, e.Value)
}

// RowValidator converts a loose input row into a strict output row. Each
// domain registers one; the engine parses, cleanses and coerces through
// it. The returned row replaces the input row in the frame.
type RowValidator interface {
	// Name identifies the validator in logs and rejection exports.
	Name() string
	// ValidateRow coerces one row. A *FieldError marks a per-row
	// rejection; any other error aborts the frame.
	ValidateRow(row frame.Row) (frame.Row, error)
}
