// Package validation enforces the Bronze and Gold frame contracts, hosts
// the per-domain row validators and exports rejected rows.
package validation

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// acceptedDateFormats is enumerated in parse failures so operators can
// fix the input instead of guessing.
var acceptedDateFormats = []string{
	"YYYYMM (e.g. 202501)",
	"YYYY-MM (e.g. 2025-01)",
	"YYYY年M月 (e.g. 2025年1月)",
	"YY年M月 (e.g. 25年1月)",
	"native date cell",
}

const (
	minReportYear = 2000
	maxReportYear = 2030
)

var (
	yyyymmRe  = regexp.MustCompile(`^(\d{4})(\d{2})$`)
	isoRe     = regexp.MustCompile(`^(\d{4})-(\d{1,2})$`)
	chineseRe = regexp.MustCompile(`^(\d{2}|\d{4})年(\d{1,2})月$`)
)

// ParseReportMonth parses a report-month cell into the first day of that
// month (UTC). Two-digit years 00-49 map to the 2000s, 50-99 to the
// 1900s; anything outside 2000-2030 is rejected.
func ParseReportMonth(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return checkRange(v.Year(), int(v.Month()), value)
	case int:
		return parseMonthString(strconv.Itoa(v), value)
	case int64:
		return parseMonthString(strconv.FormatInt(v, 10), value)
	case float64:
		// Excel numeric cells arrive as floats; only integral values are months.
		if v != float64(int64(v)) {
			return time.Time{}, formatError(value)
		}
		return parseMonthString(strconv.FormatInt(int64(v), 10), value)
	case string:
		return parseMonthString(v, value)
	default:
		return time.Time{}, formatError(value)
	}
}

func parseMonthString(s string, original any) (time.Time, error) {
	s = strings.TrimSpace(s)

	if m := yyyymmRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		return checkRange(year, month, original)
	}
	if m := isoRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		return checkRange(year, month, original)
	}
	if m := chineseRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if len(m[1]) == 2 {
			if year <= 49 {
				year += 2000
			} else {
				year += 1900
			}
		}
		return checkRange(year, month, original)
	}

	// Full dates pasted from other sheets ("2025-01-15").
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return checkRange(t.Year(), int(t.Month()), original)
	}

	return time.Time{}, formatError(original)
}

func checkRange(year, month int, original any) (time.Time, error) {
	if month < 1 || month > 12 {
		return time.Time{}, formatError(original)
	}
	if year < minReportYear || year > maxReportYear {
		return time.Time{}, eris.Errorf(
			"validation: month %v: year %d outside %d-%d; accepted formats: %s",
			original, year, minReportYear, maxReportYear, strings.Join(acceptedDateFormats, "; "))
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), nil
}

func formatError(original any) error {
	return eris.Errorf("validation: cannot parse %v as a report month; accepted formats: %s",
		original, strings.Join(acceptedDateFormats, "; "))
}

// ParseDecimal parses a numeric cell that may carry currency symbols or
// thousands separators into a float64. Empty values return (0, false, nil).
func ParseDecimal(value any) (float64, bool, error) {
	switch v := value.(type) {
	case nil:
		return 0, false, nil
	case float64:
		return v, true, nil
	case int:
		return float64(v), true, nil
	case int64:
		return float64(v), true, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false, nil
		}
		s = strings.ReplaceAll(s, ",", "")
		s = strings.ReplaceAll(s, "，", "")
		s = strings.TrimPrefix(s, "¥")
		s = strings.TrimPrefix(s, "￥")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, eris.Errorf("validation: cannot parse %q as a decimal", v)
		}
		return f, true, nil
	default:
		return 0, false, eris.Errorf("validation: cannot parse %v as a decimal", value)
	}
}
