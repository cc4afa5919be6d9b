package filters

import (
	"fmt"
	"math"
)

// PreEmphasis implements the first-order high-pass y[n] = x[n] - α*x[n-1].
//
// Phonetic analysis usually specifies the filter by the frequency above
// which the spectrum is boosted by 6 dB/octave; α = exp(-2π F / fs).
//
// References:
//   - L.R. Rabiner, R.W. Schafer, "Digital Processing of Speech Signals",
//     Prentice-Hall, 1978, Chapter 4
type PreEmphasis struct {
	coefficient float64
}

// NewPreEmphasis creates a pre-emphasis filter with coefficient α in [0,1).
func NewPreEmphasis(coefficient float64) (*PreEmphasis, error) {
	if coefficient < 0 || coefficient >= 1 {
		return nil, fmt.Errorf("pre-emphasis coefficient %v outside [0, 1)", coefficient)
	}
	return &PreEmphasis{coefficient: coefficient}, nil
}

// NewPreEmphasisFromFrequency derives α from a corner frequency.
func NewPreEmphasisFromFrequency(fromHz float64, sampleRate int) (*PreEmphasis, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if fromHz < 0 {
		return nil, fmt.Errorf("negative pre-emphasis frequency %v", fromHz)
	}
	return NewPreEmphasis(math.Exp(-2 * math.Pi * fromHz / float64(sampleRate)))
}

// Coefficient returns α.
func (pe *PreEmphasis) Coefficient() float64 {
	return pe.coefficient
}

// Process returns the filtered signal; the sample before x[0] is taken as
// zero.
func (pe *PreEmphasis) Process(signal []float64) []float64 {
	out := make([]float64, len(signal))
	prev := 0.0
	for i, x := range signal {
		out[i] = x - pe.coefficient*prev
		prev = x
	}
	return out
}

// ProcessInPlace filters signal in place, walking backwards so each input
// sample is still available when its successor is computed.
func (pe *PreEmphasis) ProcessInPlace(signal []float64) {
	for i := len(signal) - 1; i > 0; i-- {
		signal[i] -= pe.coefficient * signal[i-1]
	}
}
