package catalog

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tremornet/tremor-monitor/internal/model"
)

const catalogTimestampLayout = time.RFC3339

// catalogRow is one line of a monthly catalog file (§4.9, §6).
type catalogRow struct {
	EventID     int
	TriggerTime time.Time
	Filter      model.Filter
	Stations    model.StationSet
}

// catalogDoc is the in-memory form of one monthly catalog file.
type catalogDoc struct {
	rows []catalogRow
}

// loadOrCreate reads path if it exists, or returns an empty document
// (no rows yet) if it does not — a catalog file is created lazily by
// its first event, same as a log file (§4.9: "created on demand").
func loadOrCreate(path string) (*catalogDoc, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &catalogDoc{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if len(records) == 0 {
		return &catalogDoc{}, nil // empty/corrupt header treated as missing, matches §4.6's analogous rule
	}

	doc := &catalogDoc{}
	for _, rec := range records[1:] {
		if len(rec) < 4 {
			continue
		}
		id, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("parse EventID %q in %s: %w", rec[0], path, err)
		}
		ts, err := time.Parse(catalogTimestampLayout, rec[1])
		if err != nil {
			return nil, fmt.Errorf("parse TriggerTime %q in %s: %w", rec[1], path, err)
		}
		filter, err := model.ParseFilter(rec[2])
		if err != nil {
			return nil, fmt.Errorf("parse Filter %q in %s: %w", rec[2], path, err)
		}
		var stations model.StationSet
		if rec[3] != "" {
			stations = model.NewStationSet(strings.Split(rec[3], ","))
		}
		doc.rows = append(doc.rows, catalogRow{EventID: id, TriggerTime: ts, Filter: filter, Stations: stations})
	}
	return doc, nil
}

// encode renders doc as TAB-delimited CSV bytes with LF line endings
// (§6).
func (doc *catalogDoc) encode() []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = '\t'
	w.UseCRLF = false

	_ = w.Write([]string{"EventID", "TriggerTime", "Filter", "Stations"})
	for _, row := range doc.rows {
		_ = w.Write([]string{
			strconv.Itoa(row.EventID),
			row.TriggerTime.UTC().Format(catalogTimestampLayout),
			"[" + row.Filter.String() + "]",
			strings.Join(row.Stations, ","),
		})
	}
	w.Flush()
	return buf.Bytes()
}

// maxEventID returns the highest EventID in doc, or 0 if it has no rows
// (so the next event allocated is ID 1).
func (doc *catalogDoc) maxEventID() int {
	max := 0
	for _, row := range doc.rows {
		if row.EventID > max {
			max = row.EventID
		}
	}
	return max
}

// findByID returns a pointer to the row with the given EventID, or nil.
func (doc *catalogDoc) findByID(id int) *catalogRow {
	for i := range doc.rows {
		if doc.rows[i].EventID == id {
			return &doc.rows[i]
		}
	}
	return nil
}
