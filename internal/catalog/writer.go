// Package catalog implements C9, the Catalog Writer: the per-filter
// {Idle, Open} event state machine (§4.9) backed by monthly TSV files,
// edited with the same atomic-rewrite protocol as C6.
package catalog

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tremornet/tremor-monitor/internal/fsutil"
	"github.com/tremornet/tremor-monitor/internal/model"
)

type mode int

const (
	modeIdle mode = iota
	modeOpen
)

// filterState is one filter's in-memory machine state: §9's Design
// Notes call for "a values-typed struct owned by the catalog writer"
// replacing the source's process-wide singleton, and a real sum type
// (model.LastEvent) replacing its try/except "do we have a previous
// event" check.
type filterState struct {
	mode     mode
	current  *model.LastEvent
	previous *model.LastEvent
}

// Writer owns every filter's catalog state machine and the on-disk
// monthly files they edit.
type Writer struct {
	baseDir string
	log     zerolog.Logger

	mu        sync.Mutex
	states    map[string]*filterState
	filterMus map[string]*sync.Mutex
}

// New returns a Writer rooted at baseDir (tremor_catalog/ by default).
func New(baseDir string, log zerolog.Logger) (*Writer, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create catalog root %s: %w", baseDir, err)
	}
	return &Writer{
		baseDir:   baseDir,
		log:       log,
		states:    make(map[string]*filterState),
		filterMus: make(map[string]*sync.Mutex),
	}, nil
}

// Step advances one filter's state machine for minute t, given this
// minute's trigger decision and the set of stations that voted True
// (§4.9). It returns whether this minute should ring the alarm (true
// only when a brand-new event opens — merges and continuations never
// ring). minBetweenEvents is the filter's minimum_min_between_events
// window.
func (w *Writer) Step(filter model.Filter, t time.Time, triggered bool, trueStations model.StationSet, minBetweenEvents time.Duration) (bool, error) {
	lock := w.filterLock(filter)
	lock.Lock()
	defer lock.Unlock()

	st := w.stateFor(filter)

	switch st.mode {
	case modeIdle:
		if !triggered {
			return false, nil
		}
		return w.onIdleTrigger(filter, t, trueStations, minBetweenEvents, st)
	default: // modeOpen
		if triggered {
			return false, w.onOpenContinue(st, trueStations)
		}
		return false, w.onOpenEnd(st)
	}
}

// onIdleTrigger implements the Idle+True transition (§4.9): merge into
// a recently-closed previous event within the merge window, or open a
// brand-new one.
func (w *Writer) onIdleTrigger(filter model.Filter, t time.Time, trueStations model.StationSet, minBetweenEvents time.Duration, st *filterState) (bool, error) {
	prev := st.previous
	if prev != nil && !prev.Time.Add(minBetweenEvents).Before(t) {
		path := pathFor(w.baseDir, prev.Time)
		if err := w.unionStations(path, prev.ID, trueStations); err != nil {
			return false, err
		}
		st.current = prev
		st.previous = nil
		st.mode = modeOpen
		return false, nil // merges do not ring (§4.9)
	}

	path := pathFor(w.baseDir, t)
	doc, err := loadOrCreate(path)
	if err != nil {
		return false, err
	}
	id := doc.maxEventID() + 1
	doc.rows = append(doc.rows, catalogRow{EventID: id, TriggerTime: t, Filter: filter, Stations: model.NewStationSet(trueStations)})
	if err := fsutil.AtomicRewrite(path, doc.encode()); err != nil {
		return false, fmt.Errorf("write new catalog event: %w", err)
	}

	st.current = &model.LastEvent{ID: id, Time: t}
	st.mode = modeOpen
	w.log.Info().Str("filter", filter.String()).Int("event_id", id).Msg("tremor catalog event opened")
	return true, nil
}

// onOpenContinue implements Open+True: union newly-true stations into
// the current event's row.
func (w *Writer) onOpenContinue(st *filterState, trueStations model.StationSet) error {
	path := pathFor(w.baseDir, st.current.Time)
	return w.unionStations(path, st.current.ID, trueStations)
}

// onOpenEnd implements Open+False: promote current to previous and
// return to Idle. No file write is needed — the row already holds the
// final station union from the event's last True minute.
func (w *Writer) onOpenEnd(st *filterState) error {
	st.previous = st.current
	st.current = nil
	st.mode = modeIdle
	return nil
}

// unionStations rewrites the row identified by id in path's file so its
// Stations field is the sorted union of its current value and
// newStations.
func (w *Writer) unionStations(path string, id int, newStations model.StationSet) error {
	doc, err := loadOrCreate(path)
	if err != nil {
		return err
	}
	row := doc.findByID(id)
	if row == nil {
		return fmt.Errorf("catalog event %d not found in %s", id, path)
	}
	row.Stations = row.Stations.Union(newStations)
	if err := fsutil.AtomicRewrite(path, doc.encode()); err != nil {
		return fmt.Errorf("rewrite catalog event %d: %w", id, err)
	}
	return nil
}

func (w *Writer) stateFor(filter model.Filter) *filterState {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, ok := w.states[filter.Key()]
	if !ok {
		st = &filterState{mode: modeIdle}
		w.states[filter.Key()] = st
	}
	return st
}

// OpenEventCount returns the number of filters currently in the Open
// state, for the metrics Collector's live gauge. This is a best-effort
// snapshot, consistent with how metrics gauges are read elsewhere in
// this tree (§4.1's scheduler counters).
func (w *Writer) OpenEventCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, st := range w.states {
		if st.mode == modeOpen {
			n++
		}
	}
	return n
}

// filterLock returns the per-filter mutex serializing this filter's
// catalog edits, resolving §9's Open Question about simultaneous
// same-previous-event merges across filters.
func (w *Writer) filterLock(filter model.Filter) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	mu, ok := w.filterMus[filter.Key()]
	if !ok {
		mu = &sync.Mutex{}
		w.filterMus[filter.Key()] = mu
	}
	return mu
}
