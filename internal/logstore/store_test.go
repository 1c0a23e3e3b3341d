package logstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tremornet/tremor-monitor/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

var testFilter = model.Filter{Lo: 0.5, Hi: 2.0}
var testChannel = model.ChannelZ

func TestAppend_CreatesFileWithMidnightZeroFill(t *testing.T) {
	s := newTestStore(t)
	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	minute := date.Add(3 * time.Minute)

	if err := s.Append(date, minute, testFilter, testChannel, map[string]float64{"REF": 1.5}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	timestamps, perStation, err := s.Read(date, testFilter, testChannel)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(timestamps) != 4 {
		t.Fatalf("len(timestamps) = %d, want 4 (00:00-00:03)", len(timestamps))
	}
	want := []float64{0, 0, 0, 1.5}
	for i, v := range want {
		if perStation["REF"][i] != v {
			t.Errorf("REF[%d] = %v, want %v", i, perStation["REF"][i], v)
		}
	}
	if !timestamps[0].Equal(date) {
		t.Errorf("first timestamp = %v, want midnight %v", timestamps[0], date)
	}
	if !timestamps[3].Equal(minute) {
		t.Errorf("last timestamp = %v, want %v", timestamps[3], minute)
	}
}

func TestAppend_GapZeroFill(t *testing.T) {
	s := newTestStore(t)
	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	if err := s.Append(date, date, testFilter, testChannel, map[string]float64{"REF": 1.0}); err != nil {
		t.Fatalf("Append 1: %v", err)
	}
	// Skip three minutes.
	later := date.Add(4 * time.Minute)
	if err := s.Append(date, later, testFilter, testChannel, map[string]float64{"REF": 2.0}); err != nil {
		t.Fatalf("Append 2: %v", err)
	}

	timestamps, perStation, err := s.Read(date, testFilter, testChannel)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(timestamps) != 5 {
		t.Fatalf("len(timestamps) = %d, want 5 (gap-filled)", len(timestamps))
	}
	want := []float64{1.0, 0, 0, 0, 2.0}
	for i, v := range want {
		if perStation["REF"][i] != v {
			t.Errorf("REF[%d] = %v, want %v", i, perStation["REF"][i], v)
		}
	}
}

func TestAppend_IdempotentRepeatIsNoOp(t *testing.T) {
	s := newTestStore(t)
	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	minute := date.Add(time.Minute)

	if err := s.Append(date, minute, testFilter, testChannel, map[string]float64{"REF": 1.0}); err != nil {
		t.Fatalf("Append 1: %v", err)
	}
	path := pathFor(s.baseDir, date, testFilter, testChannel)
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}

	if err := s.Append(date, minute, testFilter, testChannel, map[string]float64{"REF": 999.0}); err != nil {
		t.Fatalf("Append 2 (repeat): %v", err)
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(before) != string(after) {
		t.Errorf("repeat append for the same minute changed the file:\nbefore: %q\nafter:  %q", before, after)
	}
}

func TestAppend_SchemaReconciliationAddsStationWithHistoricalZeros(t *testing.T) {
	s := newTestStore(t)
	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	if err := s.Append(date, date, testFilter, testChannel, map[string]float64{"REF": 1.0}); err != nil {
		t.Fatalf("Append 1: %v", err)
	}
	next := date.Add(time.Minute)
	if err := s.Append(date, next, testFilter, testChannel, map[string]float64{"REF": 2.0, "ABC": 3.0}); err != nil {
		t.Fatalf("Append 2: %v", err)
	}

	_, perStation, err := s.Read(date, testFilter, testChannel)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(perStation["ABC"]) != 2 {
		t.Fatalf("len(ABC) = %d, want 2", len(perStation["ABC"]))
	}
	if perStation["ABC"][0] != 0 {
		t.Errorf("ABC historical row = %v, want 0.0", perStation["ABC"][0])
	}
	if perStation["ABC"][1] != 3.0 {
		t.Errorf("ABC new row = %v, want 3.0", perStation["ABC"][1])
	}
	if perStation["REF"][0] != 1.0 || perStation["REF"][1] != 2.0 {
		t.Errorf("REF column disturbed by reconciliation: %v", perStation["REF"])
	}
}

func TestAppend_StationGoneRetainedAsZero(t *testing.T) {
	s := newTestStore(t)
	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	if err := s.Append(date, date, testFilter, testChannel, map[string]float64{"REF": 1.0, "ABC": 2.0}); err != nil {
		t.Fatalf("Append 1: %v", err)
	}
	next := date.Add(time.Minute)
	if err := s.Append(date, next, testFilter, testChannel, map[string]float64{"REF": 5.0}); err != nil {
		t.Fatalf("Append 2: %v", err)
	}

	_, perStation, err := s.Read(date, testFilter, testChannel)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(perStation["ABC"]) != 2 {
		t.Fatalf("len(ABC) = %d, want 2 (column retained)", len(perStation["ABC"]))
	}
	if perStation["ABC"][1] != 0 {
		t.Errorf("ABC row for minute it did not report = %v, want 0.0", perStation["ABC"][1])
	}
}

func TestAppend_CrashDuringRewriteLeavesPreStateByteIdentical(t *testing.T) {
	s := newTestStore(t)
	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	if err := s.Append(date, date, testFilter, testChannel, map[string]float64{"REF": 1.0}); err != nil {
		t.Fatalf("Append 1: %v", err)
	}
	path := pathFor(s.baseDir, date, testFilter, testChannel)
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}

	// Simulate a crash that leaves only the temp file behind, never
	// reaching the first rename: the live file must be untouched.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte("garbage-partial-write"), 0o644); err != nil {
		t.Fatalf("write fake temp file: %v", err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file after simulated crash: %v", err)
	}
	if string(before) != string(after) {
		t.Errorf("live file changed despite crash before rename:\nbefore: %q\nafter:  %q", before, after)
	}
	if _, err := os.Stat(path + ".old"); !os.IsNotExist(err) {
		t.Errorf("expected no .old file to exist, got err = %v", err)
	}
}

func TestPathFor(t *testing.T) {
	date := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	got := pathFor("logger_output", date, model.Filter{Lo: 0.5, Hi: 1.0}, model.ChannelZ)
	want := filepath.Join("logger_output", "2026", "3", "2026.3.5_0.5,1.0_z.csv")
	if got != want {
		t.Errorf("pathFor = %q, want %q", got, want)
	}
}

func TestRead_MissingFileReturnsEmpty(t *testing.T) {
	s := newTestStore(t)
	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	timestamps, perStation, err := s.Read(date, testFilter, testChannel)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(timestamps) != 0 || len(perStation) != 0 {
		t.Errorf("expected empty result for missing file, got %d timestamps, %d stations", len(timestamps), len(perStation))
	}
}
