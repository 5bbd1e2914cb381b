package validation

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/workdatahub/workdatahub/internal/frame"
)

// exportMeta is the trailing error-description block of each exported row.
type exportMeta struct {
	ErrorType     string `csv:"error_type"`
	ErrorField    string `csv:"error_field"`
	ErrorMessage  string `csv:"error_message"`
	PipelineStage string `csv:"pipeline_stage"`
}

// ExportRejections writes the rejected rows plus their error details to
// a timestamped CSV under dir and returns the file path. The original
// row columns come first, in frame order, followed by the error block.
func ExportRejections(dir, domain string, columns []string, rejections []RejectionRecord) (string, error) {
	if len(rejections) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "validation: create export dir %s", dir)
	}

	name := fmt.Sprintf("failed_rows_%s_%s.csv", domain, time.Now().UTC().Format("20060102T150405"))
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", eris.Wrapf(err, "validation: create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	metaHeader, err := csvutil.Header(exportMeta{}, "csv")
	if err != nil {
		return "", eris.Wrap(err, "validation: build export header")
	}
	header := append(append([]string{}, columns...), metaHeader...)
	if err := w.Write(header); err != nil {
		return "", eris.Wrap(err, "validation: write export header")
	}

	for _, rej := range rejections {
		record := make([]string, 0, len(header))
		for _, col := range columns {
			record = append(record, frame.String(rej.Row[col]))
		}
		record = append(record,
			rej.ErrorType, rej.ErrorField, rej.ErrorMessage, rej.PipelineStage)
		if err := w.Write(record); err != nil {
			return "", eris.Wrap(err, "validation: write export row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", eris.Wrap(err, "validation: flush export")
	}

	zap.L().Info("rejected rows exported",
		zap.String("domain", domain),
		zap.Int("rows", len(rejections)),
		zap.String("path", path),
	)
	return path, nil
}
