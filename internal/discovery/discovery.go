// Package discovery resolves per-domain base paths, selects a version
// folder, matches filename patterns and reads the chosen input into a
// frame with provenance.
package discovery

import (
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/workdatahub/workdatahub/internal/config"
	"github.com/workdatahub/workdatahub/internal/frame"
	"github.com/workdatahub/workdatahub/internal/reader"
)

// Stages tagged on discovery failures.
const (
	StageConfigResolution = "config_resolution"
	StageVersionDetection = "version_detection"
	StageFileMatching     = "file_matching"
	StageSheetReading     = "sheet_reading"
	StageNormalization    = "normalization"
)

// Error carries the domain and failed stage alongside the original error.
type Error struct {
	Domain string
	Stage  string
	Err    error
}

func (e *Error) Error() string {
	return "discovery: " + e.Domain + ": " + e.Stage + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func fail(domain, stage string, err error) error {
	return &Error{Domain: domain, Stage: stage, Err: err}
}

// Result is the frame plus provenance for one discovered input.
type Result struct {
	Frame        *frame.Frame
	FilePath     string
	FilePaths    []string // all files read; len > 1 only for multi-file domains
	VersionTag   string   // empty when no version folder exists
	SheetOrTable string
	RowCount     int
	Duration     time.Duration
}

// Service locates and loads domain inputs.
type Service struct {
	domain string
	cfg    config.DomainConfig
}

// NewService creates a discovery service for one domain.
func NewService(domain string, cfg config.DomainConfig) *Service {
	return &Service{domain: domain, cfg: cfg}
}

var versionDirRe = regexp.MustCompile(`^V(\d+)$`)

// Discover runs the full algorithm: template resolution, version
// selection, pattern matching and reading.
func (s *Service) Discover(period string) (*Result, error) {
	start := time.Now()

	base, err := ResolveTemplate(s.cfg.BasePath, period)
	if err != nil {
		return nil, fail(s.domain, StageConfigResolution, err)
	}

	dir, tag, err := s.selectVersion(base)
	if err != nil {
		return nil, err
	}

	files, err := s.matchFiles(dir)
	if err != nil {
		return nil, err
	}

	f, err := s.readFiles(files)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Frame:        f,
		FilePath:     files[0],
		FilePaths:    files,
		VersionTag:   tag,
		SheetOrTable: s.sheetLabel(),
		RowCount:     f.NumRows(),
		Duration:     time.Since(start),
	}
	zap.L().Info("input discovered",
		zap.String("domain", s.domain),
		zap.String("file", res.FilePath),
		zap.String("version", tag),
		zap.Int("rows", res.RowCount),
		zap.Duration("elapsed", res.Duration),
	)
	return res, nil
}

// DiscoverFile loads an operator-supplied file directly, skipping path
// resolution, version selection and matching. sheetOverride, when
// non-empty, replaces the configured sheet name.
func (s *Service) DiscoverFile(filePath, sheetOverride string) (*Result, error) {
	start := time.Now()

	if _, err := os.Stat(filePath); err != nil {
		return nil, fail(s.domain, StageFileMatching, eris.Wrap(err, "override file"))
	}

	sel := s.sheetSelector()
	if sheetOverride != "" {
		sel = reader.SheetSelector{Name: sheetOverride}
	}
	f, err := s.readOne(filePath, sel)
	if err != nil {
		return nil, err
	}

	return &Result{
		Frame:        f,
		FilePath:     filePath,
		FilePaths:    []string{filePath},
		SheetOrTable: s.sheetLabel(),
		RowCount:     f.NumRows(),
		Duration:     time.Since(start),
	}, nil
}

// templateRe matches {YYYYMM}, {YYYY} and {MM} placeholders.
var templateRe = regexp.MustCompile(`\{(YYYYMM|YYYY|MM)\}`)

// ResolveTemplate substitutes period placeholders into a base path. The
// period must be a six-digit YYYYMM tag.
func ResolveTemplate(tpl, period string) (string, error) {
	if len(period) != 6 {
		return "", eris.Errorf("period %q is not YYYYMM", period)
	}
	if _, err := strconv.Atoi(period); err != nil {
		return "", eris.Errorf("period %q is not YYYYMM", period)
	}
	return templateRe.ReplaceAllStringFunc(tpl, func(m string) string {
		switch m {
		case "{YYYYMM}":
			return period
		case "{YYYY}":
			return period[:4]
		default:
			return period[4:]
		}
	}), nil
}

// selectVersion picks the version folder under base per the configured
// strategy, or returns base itself when no V<digits> folder exists.
func (s *Service) selectVersion(base string) (dir, tag string, err error) {
	entries, err := os.ReadDir(base)
	if err != nil {
		return "", "", fail(s.domain, StageVersionDetection, eris.Wrapf(err, "list %s", base))
	}

	type version struct {
		name    string
		number  int
		modTime time.Time
	}
	var versions []version
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m := versionDirRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		info, err := e.Info()
		if err != nil {
			return "", "", fail(s.domain, StageVersionDetection, eris.Wrapf(err, "stat %s", e.Name()))
		}
		versions = append(versions, version{name: e.Name(), number: n, modTime: info.ModTime()})
	}

	if len(versions) == 0 {
		return base, "", nil
	}

	switch s.cfg.VersionStrategy {
	case config.StrategyManual:
		names := make([]string, len(versions))
		for i, v := range versions {
			names[i] = v.name
		}
		sort.Strings(names)
		return "", "", fail(s.domain, StageVersionDetection,
			eris.Errorf("manual version strategy: choose one of %s and pass --file", strings.Join(names, ", ")))

	case config.StrategyLatestModified:
		sort.Slice(versions, func(i, j int) bool { return versions[i].modTime.After(versions[j].modTime) })
		if len(versions) > 1 && versions[0].modTime.Equal(versions[1].modTime) {
			if s.cfg.Fallback == config.FallbackUseLatestModified {
				// Deterministic tiebreak on the larger version number.
				sort.Slice(versions, func(i, j int) bool {
					if !versions[i].modTime.Equal(versions[j].modTime) {
						return versions[i].modTime.After(versions[j].modTime)
					}
					return versions[i].number > versions[j].number
				})
			} else {
				return "", "", fail(s.domain, StageVersionDetection,
					eris.Errorf("ambiguous versions %s and %s modified at the same time", versions[0].name, versions[1].name))
			}
		}
		chosen := versions[0]
		return filepath.Join(base, chosen.name), chosen.name, nil

	default: // highest_number
		sort.Slice(versions, func(i, j int) bool { return versions[i].number > versions[j].number })
		chosen := versions[0]
		return filepath.Join(base, chosen.name), chosen.name, nil
	}
}

// matchFiles lists the directory and keeps candidates matching at least
// one include pattern and no exclude pattern. Exactly one candidate must
// remain for single-file domains; multi-file domains may keep up to
// MaxFiles, sorted by name for determinism.
func (s *Service) matchFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fail(s.domain, StageFileMatching, eris.Wrapf(err, "list %s", dir))
	}

	var candidates []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !matchesAny(name, s.cfg.FilePatterns) {
			continue
		}
		if matchesAny(name, s.cfg.ExcludePatterns) {
			continue
		}
		candidates = append(candidates, filepath.Join(dir, name))
	}
	sort.Strings(candidates)

	if len(candidates) == 0 {
		return nil, fail(s.domain, StageFileMatching,
			eris.Errorf("no file in %s matches patterns %v", dir, s.cfg.FilePatterns))
	}
	if s.cfg.MaxFiles <= 1 && len(candidates) > 1 {
		return nil, fail(s.domain, StageFileMatching,
			eris.Errorf("ambiguous match in %s: %s", dir, strings.Join(candidates, ", ")))
	}
	if len(candidates) > s.cfg.MaxFiles {
		return nil, fail(s.domain, StageFileMatching,
			eris.Errorf("%d files match in %s but max_files is %d: %s",
				len(candidates), dir, s.cfg.MaxFiles, strings.Join(candidates, ", ")))
	}
	return candidates, nil
}

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, err := path.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

// readFiles reads every matched file and concatenates rows into a single
// frame. Multi-file inputs must share a header.
func (s *Service) readFiles(files []string) (*frame.Frame, error) {
	sel := s.sheetSelector()

	var combined *frame.Frame
	for _, file := range files {
		f, err := s.readOne(file, sel)
		if err != nil {
			return nil, err
		}
		if combined == nil {
			combined = f
			continue
		}
		if !sameColumns(combined.Columns, f.Columns) {
			return nil, fail(s.domain, StageNormalization,
				eris.Errorf("file %s has a different header than %s", file, files[0]))
		}
		combined.Rows = append(combined.Rows, f.Rows...)
	}
	return combined, nil
}

func (s *Service) readOne(file string, sel reader.SheetSelector) (*frame.Frame, error) {
	var f *frame.Frame
	var err error
	if strings.EqualFold(filepath.Ext(file), ".csv") {
		f, err = reader.ReadCSV(file)
	} else {
		f, err = reader.ReadXLSX(file, sel)
	}
	if err != nil {
		return nil, fail(s.domain, StageSheetReading, err)
	}
	return f, nil
}

func (s *Service) sheetSelector() reader.SheetSelector {
	sel := reader.SheetSelector{Name: s.cfg.SheetName}
	if s.cfg.SheetIndex != nil {
		sel.Index = *s.cfg.SheetIndex
	}
	return sel
}

func (s *Service) sheetLabel() string {
	if s.cfg.SheetName != "" {
		return s.cfg.SheetName
	}
	if s.cfg.SheetIndex != nil {
		return "sheet#" + strconv.Itoa(*s.cfg.SheetIndex)
	}
	return "sheet#0"
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
