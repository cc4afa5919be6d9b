// Package audio holds the decoded waveform and time-interval types every
// extractor and engine operates on.
package audio

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmptyWaveform is returned when a waveform has no samples.
var ErrEmptyWaveform = errors.New("waveform has no samples")

// Waveform is an immutable mono signal. Construct it with NewWaveform;
// Samples returns the backing slice and callers must not modify it.
type Waveform struct {
	samples    []float64
	sampleRate int
	source     string
}

// NewWaveform copies samples into a new waveform.
func NewWaveform(samples []float64, sampleRate int, source string) (*Waveform, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if len(samples) == 0 {
		return nil, ErrEmptyWaveform
	}

	owned := make([]float64, len(samples))
	copy(owned, samples)

	return &Waveform{
		samples:    owned,
		sampleRate: sampleRate,
		source:     source,
	}, nil
}

// Samples returns the sample data.
func (w *Waveform) Samples() []float64 { return w.samples }

// SampleRate in Hz.
func (w *Waveform) SampleRate() int { return w.sampleRate }

// Source is the path the waveform was loaded from, if any.
func (w *Waveform) Source() string { return w.source }

// Len returns the number of samples.
func (w *Waveform) Len() int { return len(w.samples) }

// Duration in seconds.
func (w *Waveform) Duration() float64 {
	return float64(len(w.samples)) / float64(w.sampleRate)
}

// DurationTime returns Duration as a time.Duration.
func (w *Waveform) DurationTime() time.Duration {
	return time.Duration(w.Duration() * float64(time.Second))
}

// Full is the interval covering the whole waveform.
func (w *Waveform) Full() Interval {
	return Interval{Start: 0, End: w.Duration()}
}

// Slice returns the samples covering iv, clamped to the waveform bounds.
func (w *Waveform) Slice(iv Interval) []float64 {
	lo := w.sampleIndex(iv.Start)
	hi := w.sampleIndex(iv.End)
	if hi < lo {
		hi = lo
	}
	return w.samples[lo:hi]
}

func (w *Waveform) sampleIndex(t float64) int {
	i := int(t*float64(w.sampleRate) + 0.5)
	if i < 0 {
		return 0
	}
	if i > len(w.samples) {
		return len(w.samples)
	}
	return i
}
