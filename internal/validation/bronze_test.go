package validation

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/workdatahub/workdatahub/internal/frame"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// evenRowsValidator rejects rows whose "n" cell parses to an odd number.
type evenRowsValidator struct{}

func (evenRowsValidator) Name() string { return "even_rows" }

func (evenRowsValidator) ValidateRow(row frame.Row) (frame.Row, error) {
	n, err := strconv.Atoi(frame.String(row["n"]))
	if err != nil || n%2 != 0 {
		return nil, &FieldError{Field: "n", Value: row["n"], Message: "must be even"}
	}
	return row, nil
}

func numberedFrame(values ...string) *frame.Frame {
	records := make([][]string, len(values))
	for i, v := range values {
		records[i] = []string{v}
	}
	return frame.FromRecords([]string{"n"}, records)
}

func TestBronze_MissingColumnsFatal(t *testing.T) {
	s := &BronzeSchema{Domain: "d", RequiredColumns: []string{"n", "missing"}}
	_, err := s.Validate(numberedFrame("2"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestBronze_EmptyFrameFatal(t *testing.T) {
	s := &BronzeSchema{Domain: "d", RequiredColumns: []string{"n"}}
	_, err := s.Validate(frame.New([]string{"n"}), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no rows")
}

func TestBronze_NonNullRatio(t *testing.T) {
	s := &BronzeSchema{
		Domain:          "d",
		RequiredColumns: []string{"n"},
		ColumnRules:     []ColumnRule{{Name: "n", MinNonNullRatio: 0.80}},
	}
	_, err := s.Validate(numberedFrame("2", "", "", "8"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-null ratio")
}

func TestBronze_CollectsRejectionsBelowThreshold(t *testing.T) {
	// 1 bad row out of 20 stays under the 10% default.
	values := make([]string, 20)
	for i := range values {
		values[i] = strconv.Itoa(i * 2)
	}
	values[3] = "7"

	s := &BronzeSchema{Domain: "d", RequiredColumns: []string{"n"}}
	res, err := s.Validate(numberedFrame(values...), evenRowsValidator{})
	require.NoError(t, err)

	assert.Equal(t, 19, res.Frame.NumRows())
	require.Len(t, res.Rejections, 1)
	assert.Equal(t, 3, res.Rejections[0].RowIndex)
	assert.Equal(t, "n", res.Rejections[0].ErrorField)
	assert.Equal(t, "bronze", res.Rejections[0].PipelineStage)
}

func TestBronze_ThresholdAborts(t *testing.T) {
	// 3 bad rows out of 10 exceeds the 10% default.
	s := &BronzeSchema{Domain: "d", RequiredColumns: []string{"n"}}
	_, err := s.Validate(numberedFrame("2", "1", "3", "5", "4", "6", "8", "10", "12", "14"), evenRowsValidator{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "likely systemic issue")
}

func TestBronze_CustomThreshold(t *testing.T) {
	s := &BronzeSchema{Domain: "d", RequiredColumns: []string{"n"}, FailureThreshold: 0.50}
	res, err := s.Validate(numberedFrame("2", "1", "3", "4", "6", "8", "10", "12", "14", "16"), evenRowsValidator{})
	require.NoError(t, err)
	assert.Len(t, res.Rejections, 2)
}
