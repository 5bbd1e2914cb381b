package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/workdatahub/workdatahub/internal/config"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestResolveTemplate(t *testing.T) {
	tests := []struct {
		tpl  string
		want string
	}{
		{"ref/monthly/{YYYYMM}/in", "ref/monthly/202501/in"},
		{"ref/{YYYY}/{MM}/in", "ref/2025/01/in"},
		{"ref/static", "ref/static"},
	}
	for _, tt := range tests {
		got, err := ResolveTemplate(tt.tpl, "202501")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestResolveTemplate_BadPeriod(t *testing.T) {
	for _, period := range []string{"2025", "20250a", "2025011"} {
		_, err := ResolveTemplate("x/{YYYYMM}", period)
		require.Error(t, err, "period %q", period)
	}
}

// writeDrop creates base/<version>/<name> CSV files for discovery tests.
func writeDrop(t *testing.T, base string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(base, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

const sampleCSV = "月度,计划代码\n202501,P1\n"

func testConfig(base string) config.DomainConfig {
	return config.DomainConfig{
		BasePath:        filepath.Join(base, "{YYYYMM}", "in"),
		FilePatterns:    []string{"*年金*.csv"},
		ExcludePatterns: []string{"~$*"},
		VersionStrategy: config.StrategyHighestNumber,
		Fallback:        config.FallbackError,
		MaxFiles:        1,
	}
}

func TestDiscover_HighestNumberIsNumeric(t *testing.T) {
	base := t.TempDir()
	writeDrop(t, base, map[string]string{
		"202501/in/V1/年金.csv":  sampleCSV,
		"202501/in/V2/年金.csv":  sampleCSV,
		"202501/in/V10/年金.csv": sampleCSV,
	})

	res, err := NewService("d", testConfig(base)).Discover("202501")
	require.NoError(t, err)

	// V10 beats V2 numerically, not lexically.
	assert.Equal(t, "V10", res.VersionTag)
	assert.Contains(t, res.FilePath, filepath.Join("V10", "年金.csv"))
	assert.Equal(t, 1, res.RowCount)
}

func TestDiscover_NoVersionFolders(t *testing.T) {
	base := t.TempDir()
	writeDrop(t, base, map[string]string{"202501/in/年金.csv": sampleCSV})

	res, err := NewService("d", testConfig(base)).Discover("202501")
	require.NoError(t, err)
	assert.Empty(t, res.VersionTag)
}

func TestDiscover_AmbiguousMatch(t *testing.T) {
	base := t.TempDir()
	writeDrop(t, base, map[string]string{
		"202501/in/年金A.csv": sampleCSV,
		"202501/in/年金B.csv": sampleCSV,
	})

	_, err := NewService("d", testConfig(base)).Discover("202501")
	require.Error(t, err)

	var de *Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, StageFileMatching, de.Stage)
	assert.Contains(t, de.Error(), "ambiguous")
}

func TestDiscover_ExcludePatterns(t *testing.T) {
	base := t.TempDir()
	writeDrop(t, base, map[string]string{
		"202501/in/年金.csv":   sampleCSV,
		"202501/in/~$年金.csv": sampleCSV,
	})

	res, err := NewService("d", testConfig(base)).Discover("202501")
	require.NoError(t, err)
	assert.NotContains(t, res.FilePath, "~$")
}

func TestDiscover_NoMatch(t *testing.T) {
	base := t.TempDir()
	writeDrop(t, base, map[string]string{"202501/in/other.csv": sampleCSV})

	_, err := NewService("d", testConfig(base)).Discover("202501")
	var de *Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, StageFileMatching, de.Stage)
}

func TestDiscover_ManualStrategy(t *testing.T) {
	base := t.TempDir()
	writeDrop(t, base, map[string]string{
		"202501/in/V1/年金.csv": sampleCSV,
		"202501/in/V2/年金.csv": sampleCSV,
	})

	cfg := testConfig(base)
	cfg.VersionStrategy = config.StrategyManual

	_, err := NewService("d", cfg).Discover("202501")
	var de *Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, StageVersionDetection, de.Stage)
	assert.Contains(t, de.Error(), "--file")
}

func TestDiscover_MultiFileConcatenated(t *testing.T) {
	base := t.TempDir()
	writeDrop(t, base, map[string]string{
		"202501/in/年金A.csv": "月度,计划代码\n202501,P1\n",
		"202501/in/年金B.csv": "月度,计划代码\n202501,P2\n",
	})

	cfg := testConfig(base)
	cfg.MaxFiles = 2

	res, err := NewService("d", cfg).Discover("202501")
	require.NoError(t, err)
	assert.Len(t, res.FilePaths, 2)
	assert.Equal(t, 2, res.RowCount)
}

func TestDiscover_MultiFileHeaderMismatch(t *testing.T) {
	base := t.TempDir()
	writeDrop(t, base, map[string]string{
		"202501/in/年金A.csv": "月度,计划代码\n202501,P1\n",
		"202501/in/年金B.csv": "月度,组合代码\n202501,G1\n",
	})

	cfg := testConfig(base)
	cfg.MaxFiles = 2

	_, err := NewService("d", cfg).Discover("202501")
	var de *Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, StageNormalization, de.Stage)
}

func TestDiscoverFile_Override(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "manual.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	res, err := NewService("d", testConfig(base)).DiscoverFile(path, "")
	require.NoError(t, err)
	assert.Equal(t, path, res.FilePath)
	assert.Equal(t, 1, res.RowCount)
}

func TestDiscoverFile_Missing(t *testing.T) {
	_, err := NewService("d", testConfig(t.TempDir())).DiscoverFile("/nonexistent.csv", "")
	var de *Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, StageFileMatching, de.Stage)
}
