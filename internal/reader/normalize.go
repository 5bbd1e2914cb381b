package reader

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// NormalizeHeader canonicalizes raw column names: trims, folds full-width
// spaces to half-width, converts newlines and tabs to spaces, collapses
// runs of whitespace, names empty columns Unnamed_N and suffixes
// duplicates with _1, _2. Duplicate headers are logged as warnings since
// they usually indicate a malformed drop.
func NormalizeHeader(raw []string) ([]string, error) {
	out := make([]string, len(raw))
	seen := make(map[string]int, len(raw))

	for i, name := range raw {
		s := strings.ReplaceAll(name, "　", " ")
		s = strings.ReplaceAll(s, "\n", " ")
		s = strings.ReplaceAll(s, "\t", " ")
		s = strings.Join(strings.Fields(s), " ")

		if s == "" {
			s = fmt.Sprintf("Unnamed_%d", i)
		}

		if n, dup := seen[s]; dup {
			seen[s] = n + 1
			deduped := fmt.Sprintf("%s_%d", s, n)
			zap.L().Warn("duplicate column header renamed",
				zap.String("column", s),
				zap.String("renamed_to", deduped),
				zap.Int("position", i),
			)
			s = deduped
		} else {
			seen[s] = 1
		}
		out[i] = s
	}
	return out, nil
}
