// Package acquisition implements C4: a one-minute waveform fetch from an
// external, "subscribe-style" feed (§1, §4.4). The production
// implementation subscribes to an MQTT broker (mqttfeed.go); tests and
// the -simulate mode use SimulatedFeed (simulated.go).
package acquisition

import (
	"context"
	"fmt"
	"time"
)

// Trace is one station's raw waveform samples for a one-minute window,
// nominally sampled at 100Hz (§4.4).
type Trace struct {
	Station    string
	SampleRate float64 // Hz
	Samples    []float64
}

// Feed is the out-of-scope waveform-source collaborator, specified only
// by its interface (§1, §4.4).
type Feed interface {
	// Fetch returns one trace per reporting station for the closed-open
	// minute [start, end). end-start must equal 60s.
	Fetch(ctx context.Context, start, end time.Time) (map[string]Trace, error)
}

// ValidateWindow enforces §4.4's "Requires minute_end - minute_start ==
// 60 s" precondition.
func ValidateWindow(start, end time.Time) error {
	if d := end.Sub(start); d != time.Minute {
		return fmt.Errorf("acquisition window must be exactly 60s, got %s", d)
	}
	return nil
}
