package catalog

import (
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tremornet/tremor-monitor/internal/model"
)

var testFilter = model.Filter{Lo: 1.0, Hi: 2.0}

func newTestWriter(t *testing.T) *Writer {
	t.Helper()
	w, err := New(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

func TestStep_IdleToOpen_NewEvent(t *testing.T) {
	w := newTestWriter(t)
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	alarm, err := w.Step(testFilter, t0, true, model.StationSet{"A", "B"}, 10*time.Minute)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !alarm {
		t.Error("expected alarm True for a brand new event")
	}

	events, err := w.Range(t0.Add(-time.Hour), t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if events[0].ID != 1 {
		t.Errorf("EventID = %d, want 1", events[0].ID)
	}
	if len(events[0].Stations) != 2 {
		t.Errorf("Stations = %v, want [A B]", events[0].Stations)
	}
}

func TestStep_OpenContinueUnionsStationsNoAlarm(t *testing.T) {
	w := newTestWriter(t)
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	if _, err := w.Step(testFilter, t0, true, model.StationSet{"A"}, 10*time.Minute); err != nil {
		t.Fatalf("Step 1: %v", err)
	}
	t1 := t0.Add(time.Minute)
	alarm, err := w.Step(testFilter, t1, true, model.StationSet{"A", "E"}, 10*time.Minute)
	if err != nil {
		t.Fatalf("Step 2: %v", err)
	}
	if alarm {
		t.Error("expected no alarm for a continuing event")
	}

	events, err := w.Range(t0.Add(-time.Hour), t1.Add(time.Hour))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1 (no new row)", len(events))
	}
	if len(events[0].Stations) != 2 {
		t.Errorf("Stations = %v, want union [A E]", events[0].Stations)
	}
}

func TestStep_OpenEndClosesEventWithoutAlarm(t *testing.T) {
	w := newTestWriter(t)
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	if _, err := w.Step(testFilter, t0, true, model.StationSet{"A"}, 10*time.Minute); err != nil {
		t.Fatalf("Step 1: %v", err)
	}
	t1 := t0.Add(time.Minute)
	alarm, err := w.Step(testFilter, t1, false, nil, 10*time.Minute)
	if err != nil {
		t.Fatalf("Step 2: %v", err)
	}
	if alarm {
		t.Error("expected no alarm when an event closes")
	}
}

func TestStep_MergeWithinWindowReopensAndDoesNotAlarm(t *testing.T) {
	w := newTestWriter(t)
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	if _, err := w.Step(testFilter, t0, true, model.StationSet{"A"}, 10*time.Minute); err != nil {
		t.Fatalf("Step 1 (open): %v", err)
	}
	t1 := t0.Add(time.Minute)
	if _, err := w.Step(testFilter, t1, false, nil, 10*time.Minute); err != nil {
		t.Fatalf("Step 2 (close): %v", err)
	}
	// Re-trigger 5 minutes later, well within the 10-minute merge window.
	t2 := t1.Add(5 * time.Minute)
	alarm, err := w.Step(testFilter, t2, true, model.StationSet{"A", "B"}, 10*time.Minute)
	if err != nil {
		t.Fatalf("Step 3 (merge): %v", err)
	}
	if alarm {
		t.Error("expected no alarm for a merge into the previous event")
	}

	events, err := w.Range(t0.Add(-time.Hour), t2.Add(time.Hour))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1 (merged, not a new event)", len(events))
	}
	if events[0].ID != 1 {
		t.Errorf("EventID = %d, want 1 (merge keeps original ID)", events[0].ID)
	}
	if len(events[0].Stations) != 2 {
		t.Errorf("Stations after merge = %v, want union [A B]", events[0].Stations)
	}
}

func TestStep_OutsideMergeWindowOpensNewEvent(t *testing.T) {
	w := newTestWriter(t)
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	if _, err := w.Step(testFilter, t0, true, model.StationSet{"A"}, 5*time.Minute); err != nil {
		t.Fatalf("Step 1 (open): %v", err)
	}
	t1 := t0.Add(time.Minute)
	if _, err := w.Step(testFilter, t1, false, nil, 5*time.Minute); err != nil {
		t.Fatalf("Step 2 (close): %v", err)
	}
	// Re-trigger 10 minutes later, outside the 5-minute merge window.
	t2 := t1.Add(10 * time.Minute)
	alarm, err := w.Step(testFilter, t2, true, model.StationSet{"B"}, 5*time.Minute)
	if err != nil {
		t.Fatalf("Step 3 (new event): %v", err)
	}
	if !alarm {
		t.Error("expected alarm for a genuinely new event outside the merge window")
	}

	events, err := w.Range(t0.Add(-time.Hour), t2.Add(time.Hour))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[1].ID != 2 {
		t.Errorf("second EventID = %d, want 2 (strictly increasing)", events[1].ID)
	}
}

func TestStep_MonthRolloverEditsOriginMonthFile(t *testing.T) {
	w := newTestWriter(t)
	endOfMonth := time.Date(2026, 3, 31, 23, 59, 0, 0, time.UTC)

	if _, err := w.Step(testFilter, endOfMonth, true, model.StationSet{"A"}, 10*time.Minute); err != nil {
		t.Fatalf("Step 1: %v", err)
	}
	nextMinute := endOfMonth.Add(time.Minute) // rolls into April
	if _, err := w.Step(testFilter, nextMinute, true, model.StationSet{"A", "B"}, 10*time.Minute); err != nil {
		t.Fatalf("Step 2 (post-rollover continue): %v", err)
	}

	marchPath := pathFor(w.baseDir, endOfMonth)
	aprilPath := pathFor(w.baseDir, nextMinute)
	if _, err := os.Stat(marchPath); err != nil {
		t.Errorf("expected March catalog file to exist: %v", err)
	}
	if _, err := os.Stat(aprilPath); err == nil {
		t.Errorf("expected no April catalog file, edits should stay in March's file")
	}

	events, err := w.Range(endOfMonth.Add(-time.Hour), nextMinute.Add(time.Hour))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(events) != 1 || len(events[0].Stations) != 2 {
		t.Errorf("events = %+v, want one event with union [A B]", events)
	}
}

func TestStep_FreshMonthRestartsEventIDAt1(t *testing.T) {
	w := newTestWriter(t)
	march := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	april := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	if _, err := w.Step(testFilter, march, true, model.StationSet{"A"}, 1*time.Minute); err != nil {
		t.Fatalf("Step march open: %v", err)
	}
	if _, err := w.Step(testFilter, march.Add(time.Minute), false, nil, 1*time.Minute); err != nil {
		t.Fatalf("Step march close: %v", err)
	}
	if _, err := w.Step(testFilter, april, true, model.StationSet{"B"}, 1*time.Minute); err != nil {
		t.Fatalf("Step april open: %v", err)
	}

	events, err := w.Range(april.Add(-time.Hour), april.Add(time.Hour))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(events) != 1 || events[0].ID != 1 {
		t.Errorf("events = %+v, want a single event with EventID 1 in the fresh month", events)
	}
}

func TestRange_InvertedRangeIsEmpty(t *testing.T) {
	w := newTestWriter(t)
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	events, err := w.Range(t0.Add(time.Hour), t0)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected empty result for inverted range, got %v", events)
	}
}
