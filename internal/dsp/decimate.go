package dsp

import "fmt"

// Decimate downsamples x by factor, keeping every factor-th sample
// starting at index 0. §4.5 decimates only after the 10Hz low-pass has
// already run, so — matching the retrieved corpus's "no_filter=True" —
// no anti-aliasing filter runs here; that's the low-pass step's job.
func Decimate(x []float64, factor int) ([]float64, error) {
	if factor <= 0 {
		return nil, fmt.Errorf("decimate: factor must be positive, got %d", factor)
	}
	out := make([]float64, 0, (len(x)+factor-1)/factor)
	for i := 0; i < len(x); i += factor {
		out = append(out, x[i])
	}
	return out, nil
}

// Demean subtracts the arithmetic mean of x from every sample.
func Demean(x []float64) []float64 {
	if len(x) == 0 {
		return nil
	}
	var sum float64
	for _, v := range x {
		sum += v
	}
	mean := sum / float64(len(x))

	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v - mean
	}
	return out
}
