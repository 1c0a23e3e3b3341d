package dsp

import "math"

// DesignLowpass returns the cascade of second-order sections realizing an
// order-order Butterworth low-pass at cutoffHz, sampled at sampleRate.
// Each section shares the RBJ low-pass biquad topology but with its own
// Q derived from the Butterworth pole angles, the standard way to build
// a higher-order Butterworth filter from cascaded biquads:
//
//	theta_k = (2k-1)*pi/(2*order),  Q_k = 1 / (2*cos(theta_k))
//
// order must be even (§4.5 only ever asks for 2nd- and 4th-order
// filters).
func DesignLowpass(order int, cutoffHz, sampleRate float64) []Biquad {
	sections := make([]Biquad, 0, order/2)
	for k := 1; k <= order/2; k++ {
		theta := (2*float64(k) - 1) * math.Pi / (2 * float64(order))
		q := 1 / (2 * math.Cos(theta))
		sections = append(sections, lowpassBiquad(cutoffHz, sampleRate, q))
	}
	return sections
}

// DesignBandpass returns the cascade of second-order sections realizing
// an order-order Butterworth band-pass between loHz and hiHz, sampled at
// sampleRate. Each section is an RBJ constant-skirt-gain band-pass
// biquad centered at the geometric mean of the passband edges, with a Q
// set from the same Butterworth pole-angle progression used for the
// low-pass cascade.
func DesignBandpass(order int, loHz, hiHz, sampleRate float64) []Biquad {
	center := math.Sqrt(loHz * hiHz)
	bandwidth := hiHz - loHz

	sections := make([]Biquad, 0, order/2)
	for k := 1; k <= order/2; k++ {
		theta := (2*float64(k) - 1) * math.Pi / (2 * float64(order))
		q := center / (bandwidth * 2 * math.Cos(theta))
		sections = append(sections, bandpassBiquad(center, sampleRate, q))
	}
	return sections
}

// lowpassBiquad computes an RBJ-cookbook low-pass biquad at cutoffHz/fs
// with the given Q.
func lowpassBiquad(cutoffHz, fs, q float64) Biquad {
	omega := 2 * math.Pi * cutoffHz / fs
	sinW, cosW := math.Sin(omega), math.Cos(omega)
	alpha := sinW / (2 * q)

	a0 := 1 + alpha
	return Biquad{
		B0: ((1 - cosW) / 2) / a0,
		B1: (1 - cosW) / a0,
		B2: ((1 - cosW) / 2) / a0,
		A1: (-2 * cosW) / a0,
		A2: (1 - alpha) / a0,
	}
}

// bandpassBiquad computes an RBJ-cookbook constant-skirt-gain band-pass
// biquad centered at centerHz/fs with the given Q.
func bandpassBiquad(centerHz, fs, q float64) Biquad {
	omega := 2 * math.Pi * centerHz / fs
	sinW, cosW := math.Sin(omega), math.Cos(omega)
	alpha := sinW / (2 * q)

	a0 := 1 + alpha
	return Biquad{
		B0: (sinW / 2) / a0,
		B1: 0,
		B2: (-sinW / 2) / a0,
		A1: (-2 * cosW) / a0,
		A2: (1 - alpha) / a0,
	}
}

// ZeroPhase runs sections over x forward, then runs them again over the
// time-reversed result and reverses that back — the
// forward-backward technique §4.5 calls "zero-phase" filtering, which
// cancels the net phase delay a causal IIR filter would otherwise
// introduce.
func ZeroPhase(sections []Biquad, x []float64) []float64 {
	forward := Cascade(sections, x)
	backward := Cascade(sections, reverse(forward))
	return reverse(backward)
}
