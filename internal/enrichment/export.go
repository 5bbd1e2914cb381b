package enrichment

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// unknownCompanyRow is one line of the unknown-companies export.
type unknownCompanyRow struct {
	CustomerName string `csv:"customer_name"`
	Occurrences  int    `csv:"occurrences"`
	TempID       string `csv:"temp_id"`
}

// ExportUnknowns writes the customer names that received temporary ids,
// with occurrence counts, to a timestamped CSV under dir. Returns the
// path, or "" when there is nothing to export.
func ExportUnknowns(dir, domain, salt string, unknowns map[string]int) (string, error) {
	if len(unknowns) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "enrichment: create export dir %s", dir)
	}

	rows := make([]unknownCompanyRow, 0, len(unknowns))
	for name, n := range unknowns {
		rows = append(rows, unknownCompanyRow{
			CustomerName: name,
			Occurrences:  n,
			TempID:       TempID(salt, NormalizeName(name)),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Occurrences != rows[j].Occurrences {
			return rows[i].Occurrences > rows[j].Occurrences
		}
		return rows[i].CustomerName < rows[j].CustomerName
	})

	name := fmt.Sprintf("unknown_companies_%s_%s.csv", domain, time.Now().UTC().Format("20060102T150405"))
	path := filepath.Join(dir, name)

	data, err := csvutil.Marshal(rows)
	if err != nil {
		return "", eris.Wrap(err, "enrichment: marshal unknowns")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "enrichment: write %s", path)
	}

	zap.L().Info("unknown companies exported",
		zap.String("domain", domain),
		zap.Int("names", len(rows)),
		zap.String("path", path),
	)
	return path, nil
}
