package audio

import (
	"fmt"
	"math"
)

// boundsTolerance absorbs float rounding when an interval end is computed
// from sample counts, e.g. End = n/sr.
const boundsTolerance = 1e-9

// Interval is a time range [Start, End) in seconds.
type Interval struct {
	Start float64 `json:"start" yaml:"start" msgpack:"start"`
	End   float64 `json:"end" yaml:"end" msgpack:"end"`
}

// Length returns End - Start.
func (iv Interval) Length() float64 { return iv.End - iv.Start }

// At maps a fractional offset in [0,1] to an absolute time inside the interval.
func (iv Interval) At(fraction float64) float64 {
	return iv.Start + fraction*iv.Length()
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%.3f, %.3f)", iv.Start, iv.End)
}

// Validate checks iv against a waveform of the given duration. Zero-length
// intervals are accepted only when allowDegenerate is set.
func (iv Interval) Validate(duration float64, allowDegenerate bool) error {
	fail := func(reason string) error {
		return &InvalidIntervalError{Interval: iv, Duration: duration, Reason: reason}
	}

	switch {
	case math.IsNaN(iv.Start) || math.IsNaN(iv.End) || math.IsInf(iv.Start, 0) || math.IsInf(iv.End, 0):
		return fail("bounds must be finite")
	case iv.Start < 0:
		return fail("start is negative")
	case iv.End > duration+boundsTolerance:
		return fail("end is past the end of the waveform")
	case iv.Start > iv.End:
		return fail("start is after end")
	case iv.Start == iv.End && !allowDegenerate:
		return fail("interval is empty")
	}
	return nil
}

// InvalidIntervalError reports an interval outside the waveform bounds or
// with start after end.
type InvalidIntervalError struct {
	Interval Interval
	Duration float64
	Reason   string
}

func (e *InvalidIntervalError) Error() string {
	return fmt.Sprintf("invalid interval %s for waveform of %.3fs: %s", e.Interval, e.Duration, e.Reason)
}
