package frame

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRecords_PadsAndTruncates(t *testing.T) {
	f := FromRecords([]string{"a", "b", "c"}, [][]string{
		{"1", "2", "3", "extra"},
		{"4"},
	})

	require.Equal(t, 2, f.NumRows())
	assert.Equal(t, "3", f.Rows[0]["c"])
	assert.Equal(t, "4", f.Rows[1]["a"])
	assert.Equal(t, "", f.Rows[1]["b"])
	assert.Equal(t, "", f.Rows[1]["c"])
}

func TestClone_Independent(t *testing.T) {
	f := FromRecords([]string{"a"}, [][]string{{"x"}})
	c := f.Clone()
	c.Rows[0]["a"] = "changed"

	assert.Equal(t, "x", f.Rows[0]["a"])
}

func TestRename(t *testing.T) {
	f := FromRecords([]string{"old", "keep"}, [][]string{{"1", "2"}})
	out, err := f.Rename(map[string]string{"old": "new"})
	require.NoError(t, err)

	assert.Equal(t, []string{"new", "keep"}, out.Columns)
	assert.Equal(t, "1", out.Rows[0]["new"])
	assert.Equal(t, "2", out.Rows[0]["keep"])
	assert.True(t, f.HasColumn("old"), "input frame unchanged")
}

func TestRename_Collision(t *testing.T) {
	f := New([]string{"a", "b"})
	_, err := f.Rename(map[string]string{"a": "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collision")
}

func TestProject(t *testing.T) {
	f := FromRecords([]string{"a", "b", "c"}, [][]string{{"1", "2", "3"}})
	out, err := f.Project([]string{"c", "a"})
	require.NoError(t, err)

	assert.Equal(t, []string{"c", "a"}, out.Columns)
	assert.Equal(t, "3", out.Rows[0]["c"])
	_, present := out.Rows[0]["b"]
	assert.False(t, present)
}

func TestProject_MissingColumn(t *testing.T) {
	f := New([]string{"a"})
	_, err := f.Project([]string{"a", "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestDrop_IgnoresUnknown(t *testing.T) {
	f := FromRecords([]string{"a", "b"}, [][]string{{"1", "2"}})
	out := f.Drop([]string{"b", "missing"})

	assert.Equal(t, []string{"a"}, out.Columns)
	assert.Equal(t, 1, out.NumRows())
}

func TestFilter(t *testing.T) {
	f := FromRecords([]string{"a"}, [][]string{{"keep"}, {"drop"}, {"keep"}})
	out := f.Filter(func(r Row) bool { return r["a"] == "keep" })
	assert.Equal(t, 2, out.NumRows())
}

func TestString(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "x", "x"},
		{"float", 1234.5, "1234.5"},
		{"float integral", 1000.0, "1000"},
		{"int", 42, "42"},
		{"int64", int64(7), "7"},
		{"time", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), "2025-01-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, String(tt.in))
		})
	}
}
