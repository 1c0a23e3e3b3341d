// Package rsam implements C5, the RSAM Pipeline: the fixed signal chain
// (§4.5) that reduces one minute's raw station traces down to one RSAM
// value per (filter, station).
package rsam

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/tremornet/tremor-monitor/internal/acquisition"
	"github.com/tremornet/tremor-monitor/internal/dsp"
	"github.com/tremornet/tremor-monitor/internal/metadata"
	"github.com/tremornet/tremor-monitor/internal/model"
)

const (
	lowpassCutoffHz  = 10.0
	lowpassOrder     = 2
	decimateFactor   = 5
	bandpassOrder    = 4
)

// Result is the per-filter, per-station RSAM output of one minute's
// pipeline run. Stations absent from the fetch or with no known
// instrument response are simply absent from the inner map; callers
// (C6) treat a missing station as 0.0 (§4.5: "Stations absent from the
// fetch or the metadata yield 0.0").
type Result map[model.Filter]map[string]float64

// Compute runs the fixed chain (§4.5, steps 1-6) over traces for every
// configured filter. inv supplies each station's counts_to_um; a
// station with no response has its trace dropped entirely, not just
// zeroed, per step 4.
func Compute(traces map[string]acquisition.Trace, filters []model.Filter, inv *metadata.Inventory, log zerolog.Logger) Result {
	result := make(Result, len(filters))
	for _, f := range filters {
		result[f] = make(map[string]float64)
	}

	for station, trace := range traces {
		cleaned, ok := preprocess(station, trace, inv, log)
		if !ok {
			continue
		}
		for _, f := range filters {
			sections := dsp.DesignBandpass(bandpassOrder, f.Lo, f.Hi, cleaned.sampleRate)
			filtered := dsp.ZeroPhase(sections, cleaned.samples)
			if n := int(cleaned.sampleRate * 60); len(filtered) > n {
				filtered = filtered[:n]
			}
			result[f][station] = meanAbs(filtered)
		}
	}
	return result
}

// cleanedTrace is a station's trace after steps 1-4: low-passed,
// decimated, demeaned, and response-corrected.
type cleanedTrace struct {
	sampleRate float64
	samples    []float64
}

// preprocess runs §4.5 steps 1-4 on a single station's raw trace. The
// second return value is false if the station has no response and the
// trace must be dropped.
func preprocess(station string, trace acquisition.Trace, inv *metadata.Inventory, log zerolog.Logger) (cleanedTrace, bool) {
	lowpass := dsp.DesignLowpass(lowpassOrder, lowpassCutoffHz, trace.SampleRate)
	filtered := dsp.ZeroPhase(lowpass, trace.Samples)

	decimated, err := dsp.Decimate(filtered, decimateFactor)
	if err != nil {
		log.Error().Err(err).Str("station", station).Msg("decimation failed")
		return cleanedTrace{}, false
	}
	demeaned := dsp.Demean(decimated)

	countsToUm, ok := inv.CountsToUm(station)
	if !ok {
		log.Warn().Str("station", station).Msg("no instrument response, dropping trace")
		return cleanedTrace{}, false
	}

	corrected := make([]float64, len(demeaned))
	for i, v := range demeaned {
		corrected[i] = v / countsToUm
	}

	return cleanedTrace{
		sampleRate: trace.SampleRate / decimateFactor,
		samples:    corrected,
	}, true
}

// meanAbs is §4.5 step 6: RSAM = mean(|x|). Compute first trims x to
// sampleRate*60 samples. A short trace (e.g. a station that reported
// fewer samples than a full minute) is averaged over what it actually
// has rather than padded; nothing upstream checks a trace's sample count.
func meanAbs(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += math.Abs(v)
	}
	return sum / float64(len(x))
}
