package logstore

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const timestampLayout = time.RFC3339

// formatValue renders a cell the way the source's tabular logs do: the
// literal float with at least one decimal place, so a missing cell reads
// back as "0.0" rather than "0" (§3, §6).
func formatValue(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// document is the in-memory form of one log file: a header (station
// codes, sorted) and the data rows read so far.
type document struct {
	header []string
	rows   []row
}

type row struct {
	timestamp time.Time
	values    []float64 // aligned with document.header
}

// readDocument parses an existing log file. The caller is expected to
// have already confirmed the file exists.
func readDocument(path string) (*document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("log file %s has no header", path)
	}

	header := records[0][1:] // drop "TIMESTAMP"
	doc := &document{header: header}
	for _, rec := range records[1:] {
		if len(rec) == 0 {
			continue
		}
		ts, err := time.Parse(timestampLayout, rec[0])
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q in %s: %w", rec[0], path, err)
		}
		values := make([]float64, len(header))
		for i := range header {
			if i+1 >= len(rec) {
				values[i] = 0
				continue
			}
			v, err := strconv.ParseFloat(rec[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("parse value %q in %s: %w", rec[i+1], path, err)
			}
			values[i] = v
		}
		doc.rows = append(doc.rows, row{timestamp: ts, values: values})
	}
	return doc, nil
}

// encode renders doc as CSV bytes with LF line endings (§6).
func (doc *document) encode() []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = false

	headerRec := make([]string, 0, len(doc.header)+1)
	headerRec = append(headerRec, "TIMESTAMP")
	headerRec = append(headerRec, doc.header...)
	_ = w.Write(headerRec)

	for _, r := range doc.rows {
		rec := make([]string, 0, len(r.values)+1)
		rec = append(rec, r.timestamp.UTC().Format(timestampLayout))
		for _, v := range r.values {
			rec = append(rec, formatValue(v))
		}
		_ = w.Write(rec)
	}
	w.Flush()
	return buf.Bytes()
}
