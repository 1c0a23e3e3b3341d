// Package logstore implements C6, the Tabular Log Store — described in
// §4.6 as "the single most subtle component." Every append, whether or
// not it needs a schema change, goes through the same atomic
// temp-file-plus-rename rewrite (internal/fsutil), which is a
// deliberate simplification: it trades the cheap per-minute append the
// prose implies for uniformly satisfying §8's "a crash leaves either
// the pre- or post-append state, never a truncated file" invariant on
// every single write, not only the ones that reconcile the schema. A
// day's file tops out around 1440 rows, so the cost is negligible.
package logstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tremornet/tremor-monitor/internal/fsutil"
	"github.com/tremornet/tremor-monitor/internal/model"
)

// Store manages the per-(date,filter,channel) CSV log files under
// baseDir (logger_output/ in the default layout).
type Store struct {
	baseDir string
	log     zerolog.Logger
	mu      sync.Mutex
}

// New returns a Store rooted at baseDir, creating it if necessary.
func New(baseDir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log store root %s: %w", baseDir, err)
	}
	return &Store{baseDir: baseDir, log: log}, nil
}

// Append writes one minute's RSAM values for a (date, filter, channel)
// log file, per §4.6's five-step contract: lazy creation with
// midnight-to-now zero-fill, schema reconciliation for newly seen
// stations, gap zero-fill, the row itself, and at-most-once-per-minute
// idempotence.
func (s *Store) Append(date, minute time.Time, filter model.Filter, channel model.Channel, values map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := pathFor(s.baseDir, date, filter, channel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	_, statErr := os.Stat(path)
	switch {
	case os.IsNotExist(statErr):
		return s.create(path, date, minute, values)
	case statErr != nil:
		return fmt.Errorf("stat %s: %w", path, statErr)
	}

	doc, err := readDocument(path)
	if err != nil {
		return fmt.Errorf("read existing log %s: %w", path, err)
	}

	if n := len(doc.rows); n > 0 && doc.rows[n-1].timestamp.Equal(minute) {
		return nil // §4.6 step 5: repeat call for the same minute is a no-op
	}

	newStations := model.NewStationSet(keysOf(values))
	header := model.NewStationSet(doc.header)
	if !isSubset(newStations, header) {
		added := newStations.Subtract(header)
		header = header.Union(added)
		doc = reindexHeader(doc, header)
		s.log.Info().Str("file", path).Strs("added", []string(added)).Msg("log schema extended for new station")
	}

	baseline := model.StartOfDay(minute)
	if n := len(doc.rows); n > 0 {
		baseline = doc.rows[n-1].timestamp
	}
	for t := baseline.Add(time.Minute); t.Before(minute); t = t.Add(time.Minute) {
		doc.rows = append(doc.rows, row{timestamp: t, values: make([]float64, len(doc.header))})
	}
	doc.rows = append(doc.rows, row{timestamp: minute, values: valuesForHeader(doc.header, values)})

	if err := fsutil.AtomicRewrite(path, doc.encode()); err != nil {
		return fmt.Errorf("rewrite log %s: %w", path, err)
	}
	return nil
}

// create handles §4.6 step 1: a brand-new file, pre-filled with zero
// rows from midnight up to (not including) minute, then the minute's
// own row.
func (s *Store) create(path string, date, minute time.Time, values map[string]float64) error {
	header := model.NewStationSet(keysOf(values))
	doc := &document{header: header}

	startOfDay := model.StartOfDay(date)
	for t := startOfDay; t.Before(minute); t = t.Add(time.Minute) {
		doc.rows = append(doc.rows, row{timestamp: t, values: make([]float64, len(header))})
	}
	doc.rows = append(doc.rows, row{timestamp: minute, values: valuesForHeader(header, values)})

	if err := fsutil.AtomicRewrite(path, doc.encode()); err != nil {
		return fmt.Errorf("create log %s: %w", path, err)
	}
	return nil
}

// Read returns the full day-so-far for one (date, filter, channel) log
// file: aligned timestamps and a per-station value array of the same
// length. A file that does not exist yet reads as empty, not an error.
func (s *Store) Read(date time.Time, filter model.Filter, channel model.Channel) ([]time.Time, map[string][]float64, error) {
	path := pathFor(s.baseDir, date, filter, channel)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, map[string][]float64{}, nil
	} else if err != nil {
		return nil, nil, fmt.Errorf("stat %s: %w", path, err)
	}

	doc, err := readDocument(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read log %s: %w", path, err)
	}

	timestamps := make([]time.Time, len(doc.rows))
	perStation := make(map[string][]float64, len(doc.header))
	for _, code := range doc.header {
		perStation[code] = make([]float64, len(doc.rows))
	}
	for ri, r := range doc.rows {
		timestamps[ri] = r.timestamp
		for ci, code := range doc.header {
			perStation[code][ri] = r.values[ci]
		}
	}
	return timestamps, perStation, nil
}

// reindexHeader remaps every existing row onto newHeader, preserving
// values for columns that already existed and padding new columns with
// 0.0 for every historical row (§4.6 step 2).
func reindexHeader(doc *document, newHeader model.StationSet) *document {
	oldIdx := make(map[string]int, len(doc.header))
	for i, code := range doc.header {
		oldIdx[code] = i
	}

	newRows := make([]row, len(doc.rows))
	for ri, r := range doc.rows {
		values := make([]float64, len(newHeader))
		for ci, code := range newHeader {
			if i, ok := oldIdx[code]; ok {
				values[ci] = r.values[i]
			}
		}
		newRows[ri] = row{timestamp: r.timestamp, values: values}
	}
	return &document{header: []string(newHeader), rows: newRows}
}

func valuesForHeader(header []string, values map[string]float64) []float64 {
	out := make([]float64, len(header))
	for i, code := range header {
		out[i] = values[code] // zero value for an absent station, matching step 4
	}
	return out
}

func keysOf(values map[string]float64) []string {
	out := make([]string, 0, len(values))
	for k := range values {
		out = append(out, k)
	}
	return out
}

func isSubset(s, h model.StationSet) bool {
	for _, c := range s {
		if !h.Contains(c) {
			return false
		}
	}
	return true
}
