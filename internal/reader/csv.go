package reader

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/workdatahub/workdatahub/internal/frame"
)

// utf8BOM is stripped from the start of CSV files exported by Excel.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV reads a UTF-8 CSV file (optional BOM) into a frame. The first
// record is the header; fully empty records are skipped.
func ReadCSV(path string) (*frame.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "reader: open csv %s", path)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if bom, err := br.Peek(3); err == nil && string(bom) == string(utf8BOM) {
		if _, err := br.Discard(3); err != nil {
			return nil, eris.Wrap(err, "reader: discard BOM")
		}
	}

	r := csv.NewReader(br)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var header []string
	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "reader: read csv %s", path)
		}
		if isEmptyRecord(rec) {
			continue
		}
		if header == nil {
			header = rec
			continue
		}
		records = append(records, rec)
	}
	if header == nil {
		return nil, eris.Errorf("reader: csv %s is empty", path)
	}

	normalized, err := NormalizeHeader(header)
	if err != nil {
		return nil, err
	}
	return frame.FromRecords(normalized, records), nil
}
