// Package dsp implements the fixed signal-processing primitives the RSAM
// pipeline chains together (§4.5): a zero-phase Butterworth low-pass, a
// decimator, a demeaner, and zero-phase Butterworth band-passes. No
// signal-processing library appears anywhere in the retrieved corpus
// (§1 treats these as "assumed available from a signal-processing
// toolkit" and out of scope in detail), so this package is hand-rolled
// rather than grounded on an existing dependency.
package dsp

// Biquad is one second-order IIR section in Direct Form II Transposed,
// the standard building block cascaded to realize higher-order
// Butterworth filters.
type Biquad struct {
	B0, B1, B2 float64
	A1, A2     float64 // a0 is normalized to 1
}

// Filter runs x through the section once, left to right, with zero
// initial state, and returns a new slice.
func (bq Biquad) Filter(x []float64) []float64 {
	y := make([]float64, len(x))
	var z1, z2 float64
	for i, xn := range x {
		yn := bq.B0*xn + z1
		z1 = bq.B1*xn - bq.A1*yn + z2
		z2 = bq.B2*xn - bq.A2*yn
		y[i] = yn
	}
	return y
}

// Cascade runs x through each section in turn.
func Cascade(sections []Biquad, x []float64) []float64 {
	out := x
	for _, bq := range sections {
		out = bq.Filter(out)
	}
	return out
}

// reverse returns a new slice with x's elements in reverse order.
func reverse(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[len(x)-1-i] = v
	}
	return out
}
