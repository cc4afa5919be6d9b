package common

import (
	"errors"
	"fmt"
	"math"
)

// ErrSignalTooShort is returned when a signal cannot hold a single
// analysis window.
var ErrSignalTooShort = errors.New("signal shorter than analysis window")

// FrameLayout places short-term analysis frames symmetrically over a
// signal: as many frames as fit, spaced Step apart, centred as a group on
// the middle of the signal. Sample i is taken to sit at time (i+0.5)/rate.
type FrameLayout struct {
	Count      int     `json:"count"`
	Start      float64 `json:"start"` // time of the first frame centre in seconds
	Step       float64 `json:"step"`
	Window     float64 `json:"window"` // window duration in seconds
	SampleRate int     `json:"sample_rate"`
}

// NewFrameLayout lays out frames of windowDuration seconds every step
// seconds over numSamples samples.
func NewFrameLayout(numSamples, sampleRate int, windowDuration, step float64) (FrameLayout, error) {
	if sampleRate <= 0 {
		return FrameLayout{}, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if !(step > 0) || !(windowDuration > 0) {
		return FrameLayout{}, fmt.Errorf("invalid frame step %v or window %v", step, windowDuration)
	}

	duration := float64(numSamples) / float64(sampleRate)
	if windowDuration > duration {
		return FrameLayout{}, fmt.Errorf("%w: %.4fs window, %.4fs signal", ErrSignalTooShort, windowDuration, duration)
	}

	// the epsilon keeps exact fits from losing a frame to rounding
	count := int(math.Floor((duration-windowDuration)/step+1e-9)) + 1
	return FrameLayout{
		Count:      count,
		Start:      0.5*duration - 0.5*float64(count-1)*step,
		Step:       step,
		Window:     windowDuration,
		SampleRate: sampleRate,
	}, nil
}

// Time returns the centre time of frame i.
func (l FrameLayout) Time(i int) float64 {
	return l.Start + float64(i)*l.Step
}

// CentreSample returns the index of the sample nearest to the centre of
// frame i.
func (l FrameLayout) CentreSample(i int) int {
	return int(math.Round(l.Time(i)*float64(l.SampleRate) - 0.5))
}

// WindowSamples returns the window length in samples, at least 1.
func (l FrameLayout) WindowSamples() int {
	return max(int(math.Round(l.Window*float64(l.SampleRate))), 1)
}

// Extract copies size samples centred on frame i. Samples beyond the
// signal are zero.
func (l FrameLayout) Extract(signal []float64, i, size int) []float64 {
	return ExtractAt(signal, l.CentreSample(i)-size/2, size)
}

// ExtractAt copies size samples starting at index start, zero filling
// whatever lies outside signal.
func ExtractAt(signal []float64, start, size int) []float64 {
	out := make([]float64, size)
	for j := range out {
		k := start + j
		if k >= 0 && k < len(signal) {
			out[j] = signal[k]
		}
	}
	return out
}
