// Package window implements C7, the Window Assembler: given a target
// minute, it reads back the STA, LTA, and ramp windows from the log
// store and hands the Trigger Engine (C8) plain per-station slices to
// judge (§4.7).
package window

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tremornet/tremor-monitor/internal/logstore"
	"github.com/tremornet/tremor-monitor/internal/model"
)

// Windows is one minute's assembled view for every requested station.
type Windows struct {
	CurrentVelocity map[string]float64   // RSAM at t itself
	STA             map[string][]float64 // L_s most recent minutes ending at t, inclusive
	LTA             map[string][]float64 // L_l minutes before the STA window, 60s guard gap
	Ramp            map[string][]float64 // K contiguous W-minute averages, oldest to newest
}

// Assembler reads C6's per-day log files to build Windows for C8.
type Assembler struct {
	store *logstore.Store
	log   zerolog.Logger
}

// New returns an Assembler reading from store.
func New(store *logstore.Store, log zerolog.Logger) *Assembler {
	return &Assembler{store: store, log: log}
}

// Assemble builds the STA, LTA, ramp, and current-velocity views for t,
// for each station in stations (callers exclude remove_stations before
// calling, per §4.7). staLen and ltaLen are in minutes; rampW is the
// ramp interval width in minutes and rampK the number of intervals.
func (a *Assembler) Assemble(filter model.Filter, channel model.Channel, t time.Time, staLen, ltaLen, rampW, rampK int, stations model.StationSet) (*Windows, error) {
	if staLen < 1 || ltaLen < 1 || rampW < 1 || rampK < 1 {
		return nil, fmt.Errorf("window lengths must all be >= 1 (sta=%d lta=%d rampW=%d rampK=%d)", staLen, ltaLen, rampW, rampK)
	}

	staStart := t.Add(-time.Duration(staLen-1) * time.Minute)
	ltaEnd := staStart.Add(-time.Minute) // 60s guard gap (§4.7)
	ltaStart := ltaEnd.Add(-time.Duration(ltaLen-1) * time.Minute)
	rampStart := t.Add(-time.Duration(rampW*rampK-1) * time.Minute)

	earliest := ltaStart
	if rampStart.Before(earliest) {
		earliest = rampStart
	}

	index, err := a.buildIndex(filter, channel, earliest, t)
	if err != nil {
		return nil, err
	}

	out := &Windows{
		CurrentVelocity: make(map[string]float64, len(stations)),
		STA:             make(map[string][]float64, len(stations)),
		LTA:             make(map[string][]float64, len(stations)),
		Ramp:            make(map[string][]float64, len(stations)),
	}
	for _, station := range stations {
		out.CurrentVelocity[station] = valueAt(index, t, station)
		out.STA[station] = collect(index, staStart, t, station)
		out.LTA[station] = collect(index, ltaStart, ltaEnd, station)
		out.Ramp[station] = rampAverages(index, rampStart, rampW, rampK, station)
	}
	return out, nil
}

// buildIndex reads every day-file the [start, end] range touches — at
// most two, per §4.7 — into a minute -> station -> value lookup. A
// minute absent from the index (not read back from any file) is 0.0,
// matching "missing minutes read as 0.0".
func (a *Assembler) buildIndex(filter model.Filter, channel model.Channel, start, end time.Time) (map[int64]map[string]float64, error) {
	index := make(map[int64]map[string]float64)
	for _, day := range daysBetween(start, end) {
		timestamps, perStation, err := a.store.Read(day, filter, channel)
		if err != nil {
			return nil, fmt.Errorf("read log for %s: %w", day.Format("2006-01-02"), err)
		}
		for i, ts := range timestamps {
			row, ok := index[ts.Unix()]
			if !ok {
				row = make(map[string]float64, len(perStation))
				index[ts.Unix()] = row
			}
			for station, values := range perStation {
				row[station] = values[i]
			}
		}
	}
	return index, nil
}

func daysBetween(start, end time.Time) []time.Time {
	day := model.StartOfDay(start)
	last := model.StartOfDay(end)
	var days []time.Time
	for !day.After(last) {
		days = append(days, day)
		day = day.AddDate(0, 0, 1)
	}
	return days
}

func valueAt(index map[int64]map[string]float64, minute time.Time, station string) float64 {
	row, ok := index[minute.Unix()]
	if !ok {
		return 0
	}
	return row[station]
}

// collect returns one value per minute in [start, end] inclusive.
func collect(index map[int64]map[string]float64, start, end time.Time, station string) []float64 {
	n := model.MinutesBetween(start, end) + 1
	out := make([]float64, 0, n)
	for m := start; !m.After(end); m = m.Add(time.Minute) {
		out = append(out, valueAt(index, m, station))
	}
	return out
}

// rampAverages computes the K contiguous W-minute averages starting at
// rampStart, oldest interval first.
func rampAverages(index map[int64]map[string]float64, rampStart time.Time, w, k int, station string) []float64 {
	out := make([]float64, k)
	for i := 0; i < k; i++ {
		intervalStart := rampStart.Add(time.Duration(i*w) * time.Minute)
		var sum float64
		for j := 0; j < w; j++ {
			sum += valueAt(index, intervalStart.Add(time.Duration(j)*time.Minute), station)
		}
		out[i] = sum / float64(w)
	}
	return out
}
