package enrichment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  ACME  Corp ", "acme corp"},
		{"新公司xyz", "新公司xyz"},
		{"新公司 XYZ", "新公司 xyz"},
		{"a\t b\nc", "a b c"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeName(tt.in))
	}
}

func TestTempID_Stable(t *testing.T) {
	a := TempID("testsalt", NormalizeName("新公司xyz"))
	b := TempID("testsalt", NormalizeName(" 新公司XYZ "))

	assert.Equal(t, a, b, "same normalized name yields same id")
	assert.Regexp(t, TempIDPattern, a)
}

func TestTempID_SaltSensitive(t *testing.T) {
	a := TempID("salt1", "新公司xyz")
	b := TempID("salt2", "新公司xyz")
	assert.NotEqual(t, a, b)
}

func TestIsTempID(t *testing.T) {
	assert.True(t, IsTempID(TempID("s", "n")))
	assert.False(t, IsTempID("C12345"))
	assert.False(t, IsTempID("INshort"))
	assert.False(t, IsTempID("IN0123456789ABCDEF"), "0 and 1 are outside base32")
}
