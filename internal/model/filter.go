package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Filter is an ordered pair (Lo, Hi) of Hz band-pass bounds, Lo < Hi.
type Filter struct {
	Lo float64 `json:"lo"`
	Hi float64 `json:"hi"`
}

// String renders the filter the way the log file path and catalog rows
// expect: the literal floats joined by a comma, e.g. "0.5,1.0" (§6).
func (f Filter) String() string {
	return formatHz(f.Lo) + "," + formatHz(f.Hi)
}

// Key is a comparable identity for use as a map key.
func (f Filter) Key() string {
	return f.String()
}

// formatHz renders a float the way the source's literal-float filenames do:
// no trailing zeros beyond one decimal place, e.g. 0.5, 1.0, 2.25.
func formatHz(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// ParseFilter parses a "lo,hi" string (as found in catalog rows and log
// paths) back into a Filter.
func ParseFilter(s string) (Filter, error) {
	s = strings.Trim(s, "[]")
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Filter{}, fmt.Errorf("invalid filter %q: want \"lo,hi\"", s)
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Filter{}, fmt.Errorf("invalid filter lo %q: %w", parts[0], err)
	}
	hi, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Filter{}, fmt.Errorf("invalid filter hi %q: %w", parts[1], err)
	}
	return Filter{Lo: lo, Hi: hi}, nil
}

// MarshalJSON renders the filter as a two-element array, the form §4.2's
// "filters" config option uses: [f_lo, f_hi].
func (f Filter) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{f.Lo, f.Hi})
}

// UnmarshalJSON accepts the [f_lo, f_hi] array form from configuration.
func (f *Filter) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("filter must be a [f_lo, f_hi] pair: %w", err)
	}
	f.Lo, f.Hi = pair[0], pair[1]
	return nil
}

// Validate checks the f_lo < f_hi invariant from §3.
func (f Filter) Validate() error {
	if f.Lo >= f.Hi {
		return fmt.Errorf("filter %s: f_lo must be < f_hi", f.String())
	}
	if f.Lo < 0 {
		return fmt.Errorf("filter %s: f_lo must be >= 0", f.String())
	}
	return nil
}
