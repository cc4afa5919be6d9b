package temporal

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Envelope provides amplitude envelope extraction
type Envelope struct{}

// NewEnvelope creates a new envelope extractor
func NewEnvelope() *Envelope {
	return &Envelope{}
}

// AnalyticSignal returns x + j*H{x}, computed by zeroing the negative half
// of the spectrum and doubling the positive half.
func (e *Envelope) AnalyticSignal(signal []float64) []complex128 {
	n := len(signal)
	if n == 0 {
		return []complex128{}
	}

	spectrum := fft.FFTReal(signal)
	h := make([]float64, n)
	h[0] = 1
	if n%2 == 0 {
		h[n/2] = 1
		for i := 1; i < n/2; i++ {
			h[i] = 2
		}
	} else {
		for i := 1; i < (n+1)/2; i++ {
			h[i] = 2
		}
	}
	for i := range spectrum {
		spectrum[i] *= complex(h[i], 0)
	}
	return fft.IFFT(spectrum)
}

// ComputeHilbert returns the per-sample amplitude envelope |x + j*H{x}|.
func (e *Envelope) ComputeHilbert(signal []float64) []float64 {
	analytic := e.AnalyticSignal(signal)
	envelope := make([]float64, len(analytic))
	for i, c := range analytic {
		envelope[i] = cmplx.Abs(c)
	}
	return envelope
}

// ComputeSmoothed computes smoothed envelope using moving average
func (e *Envelope) ComputeSmoothed(envelope []float64, windowSize int) []float64 {
	if len(envelope) == 0 || windowSize <= 0 {
		return envelope
	}
	windowSize = min(windowSize, len(envelope))

	smoothed := make([]float64, len(envelope))
	halfWindow := windowSize / 2
	for i := range envelope {
		sum := 0.0
		count := 0
		for j := max(0, i-halfWindow); j <= i+halfWindow && j < len(envelope); j++ {
			sum += envelope[j]
			count++
		}
		smoothed[i] = sum / float64(count)
	}
	return smoothed
}
