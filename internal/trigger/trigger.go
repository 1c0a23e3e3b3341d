// Package trigger implements C8, the Trigger Engine: per-station STA/LTA
// voting and per-filter vote aggregation (§4.8).
package trigger

import (
	"github.com/tremornet/tremor-monitor/internal/model"
	"github.com/tremornet/tremor-monitor/internal/window"
)

// Params bundles the per-minute trigger configuration for one filter
// (§4.2's trigger_ratio, min_velocity, percentage_data, station_votes,
// and the ramp_min_avg floor documented in DESIGN.md's ambiguity
// section).
type Params struct {
	PercentageData float64
	TriggerRatio   float64
	MinVelocity    float64
	RampMinAvg     float64
	StationVotes   int
}

// StationVote is one station's verdict for one filter, carrying enough
// detail for the Alarm Gate and for diagnostics.
type StationVote struct {
	Station string
	Voted   bool
}

// FilterResult is the per-filter outcome of a minute's vote.
type FilterResult struct {
	Filter    model.Filter
	Votes     []StationVote // every station that voted True
	Triggered bool
}

// Evaluate votes every station in windows for one filter and aggregates
// the filter-level trigger decision (§4.8).
func Evaluate(filter model.Filter, windows *window.Windows, params Params, stations model.StationSet) FilterResult {
	result := FilterResult{Filter: filter}
	for _, station := range stations {
		if stationVotes(windows, station, params) {
			result.Votes = append(result.Votes, StationVote{Station: station, Voted: true})
		}
	}
	result.Triggered = len(result.Votes) >= params.StationVotes
	return result
}

// stationVotes implements §4.8 steps 1-3 for a single station.
func stationVotes(windows *window.Windows, station string, params Params) bool {
	currentVelocity := windows.CurrentVelocity[station]
	if currentVelocity < params.MinVelocity {
		return false
	}

	staMean, staOK := meanExcludingZero(windows.STA[station], params.PercentageData)
	ltaMean, ltaOK := meanExcludingZero(windows.LTA[station], params.PercentageData)
	if !staOK || !ltaOK || ltaMean == 0 {
		return false
	}
	ratio := staMean / ltaMean
	if ratio < params.TriggerRatio {
		return false
	}

	return rampConfirms(windows.Ramp[station], params.RampMinAvg)
}

// meanExcludingZero computes the mean of x, treating 0.0 samples as
// missing (§4.8 step 1). If the retained fraction falls below
// percentageData, the mean is undefined.
func meanExcludingZero(x []float64, percentageData float64) (float64, bool) {
	if len(x) == 0 {
		return 0, false
	}
	var sum float64
	var kept int
	for _, v := range x {
		if v == 0 {
			continue
		}
		sum += v
		kept++
	}
	if float64(kept)/float64(len(x)) < percentageData {
		return 0, false
	}
	return sum / float64(kept), true
}

// rampConfirms implements the ramp check per §4.8 step 3 and §9's
// explicit correction of the source's off-by-one: the K ramp averages
// must be strictly increasing across every adjacent pair (equal
// adjacent values do not satisfy it), and the newest interval's average
// must clear rampMinAvg.
func rampConfirms(ramp []float64, rampMinAvg float64) bool {
	if len(ramp) == 0 {
		return false
	}
	for i := 1; i < len(ramp); i++ {
		if ramp[i] <= ramp[i-1] {
			return false
		}
	}
	return ramp[len(ramp)-1] >= rampMinAvg
}
