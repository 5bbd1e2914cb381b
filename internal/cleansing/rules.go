package cleansing

import (
	"strings"

	"golang.org/x/text/width"
)

// Standard rule names referenced by domain configs.
const (
	RuleTrimWhitespace        = "trim_whitespace"
	RuleNormalizeCompanyName  = "normalize_company_name"
	RuleStandardizeNullValues = "standardize_null_values"
	RuleRemoveCurrencySymbols = "remove_currency_symbols"
	RuleCleanCommaNumber      = "clean_comma_separated_number"
	RuleCollapseWhitespace    = "collapse_whitespace"
	RuleNormalizeFullWidth    = "normalize_full_width"
)

var builtins = map[string]Rule{
	RuleTrimWhitespace:        TrimWhitespace,
	RuleNormalizeCompanyName:  NormalizeCompanyName,
	RuleStandardizeNullValues: StandardizeNullValues,
	RuleRemoveCurrencySymbols: RemoveCurrencySymbols,
	RuleCleanCommaNumber:      CleanCommaSeparatedNumber,
	RuleCollapseWhitespace:    CollapseWhitespace,
	RuleNormalizeFullWidth:    NormalizeFullWidth,
}

// nullTokens are the literal values mapped to empty by
// standardize_null_values. The final entry is a full-width space.
var nullTokens = map[string]bool{
	"":     true,
	" ":    true,
	"N/A":  true,
	"NA":   true,
	"nan":  true,
	"None": true,
	"　": true,
}

// corporateSuffixes are decorations stripped from company names before
// matching. Both parenthesis styles appear in the input files.
var corporateSuffixes = []string{
	"有限责任公司",
	"股份有限公司",
	"有限公司",
	"（有限合伙）",
	"(有限合伙)",
	"（集团）",
	"(集团)",
}

// TrimWhitespace trims leading and trailing spaces, tabs and newlines.
func TrimWhitespace(v string) string {
	return strings.TrimSpace(v)
}

// CollapseWhitespace converts runs of whitespace (including tabs and
// newlines) into a single space, then trims.
func CollapseWhitespace(v string) string {
	return strings.Join(strings.Fields(v), " ")
}

// NormalizeFullWidth folds full-width characters (spaces, digits,
// punctuation) to their half-width forms.
func NormalizeFullWidth(v string) string {
	return width.Narrow.String(v)
}

// StandardizeNullValues maps the known null-ish tokens to the empty string.
func StandardizeNullValues(v string) string {
	if nullTokens[strings.TrimSpace(v)] {
		return ""
	}
	return v
}

// NormalizeCompanyName strips corporate suffix decorations and collapses
// internal spacing so variants of the same customer name compare equal.
func NormalizeCompanyName(v string) string {
	s := CollapseWhitespace(strings.ReplaceAll(NormalizeFullWidth(v), "　", " "))
	for _, suffix := range corporateSuffixes {
		s = strings.TrimSuffix(s, suffix)
	}
	return strings.TrimSpace(s)
}

// RemoveCurrencySymbols strips currency markers commonly pasted into
// numeric cells.
func RemoveCurrencySymbols(v string) string {
	replacer := strings.NewReplacer("¥", "", "￥", "", "$", "", "元", "")
	return strings.TrimSpace(replacer.Replace(v))
}

// CleanCommaSeparatedNumber removes thousands separators so the value can
// be parsed as a decimal. Non-numeric values pass through unchanged.
func CleanCommaSeparatedNumber(v string) string {
	s := strings.TrimSpace(v)
	if s == "" {
		return s
	}
	cleaned := strings.ReplaceAll(s, ",", "")
	cleaned = strings.ReplaceAll(cleaned, "，", "")
	for _, r := range cleaned {
		if (r < '0' || r > '9') && r != '.' && r != '-' && r != '+' {
			return v
		}
	}
	return cleaned
}
