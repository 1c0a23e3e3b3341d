package acquisition

import (
	"context"
	"math"
	"sync"
	"time"
)

// SimulatedFeed is a deterministic synthetic waveform source for tests and
// the process's -simulate mode, mirroring the Simulate-flag pattern used
// elsewhere in the retrieved corpus to let the process run end to end
// without a live upstream. Traces are generated on demand from the
// requested minute's own timestamp, so repeated Fetch calls for the same
// window are reproducible.
type SimulatedFeed struct {
	mu         sync.Mutex
	stations   []string
	sampleRate float64
	amplitude  float64
	unreachable map[int64]bool // minutes to report as fetch failures
}

// NewSimulatedFeed builds a feed that reports traces for the given
// stations at sampleRate Hz, with a baseline sine + noise amplitude.
func NewSimulatedFeed(stations []string, sampleRate, amplitude float64) *SimulatedFeed {
	return &SimulatedFeed{
		stations:    append([]string(nil), stations...),
		sampleRate:  sampleRate,
		amplitude:   amplitude,
		unreachable: make(map[int64]bool),
	}
}

// DropMinute makes a future Fetch for that minute return an error, for
// exercising the "feed unreachable" skip-the-minute path (§4.4, §7).
func (f *SimulatedFeed) DropMinute(minuteStart time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unreachable[minuteStart.UTC().Truncate(time.Minute).Unix()] = true
}

func (f *SimulatedFeed) Fetch(ctx context.Context, start, end time.Time) (map[string]Trace, error) {
	if err := ValidateWindow(start, end); err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	key := start.UTC().Truncate(time.Minute).Unix()
	f.mu.Lock()
	drop := f.unreachable[key]
	f.mu.Unlock()
	if drop {
		return nil, errUnreachable
	}

	n := int(f.sampleRate * 60)
	out := make(map[string]Trace, len(f.stations))
	for i, station := range f.stations {
		samples := make([]float64, n)
		// Distinct phase per station and per minute so the series is
		// deterministic but not identical across stations or ticks.
		phase := float64(key%3600) / 3600 * 2 * math.Pi
		for j := 0; j < n; j++ {
			t := float64(j) / f.sampleRate
			samples[j] = f.amplitude*math.Sin(2*math.Pi*0.5*t+phase+float64(i)) + pseudoNoise(key, i, j)
		}
		out[station] = Trace{Station: station, SampleRate: f.sampleRate, Samples: samples}
	}
	return out, nil
}

// pseudoNoise is a cheap deterministic stand-in for measurement noise:
// no randomness source is needed since the same (minute, station,
// sample) always produces the same value.
func pseudoNoise(minuteKey int64, stationIdx, sampleIdx int) float64 {
	x := float64((minuteKey*1000003+int64(stationIdx)*9973+int64(sampleIdx))%997) / 997
	return (x - 0.5) * 0.01
}

type unreachableErr struct{}

func (unreachableErr) Error() string { return "simulated feed: minute marked unreachable" }

var errUnreachable = unreachableErr{}
