package series

import (
	"errors"
	"fmt"
	"math"
)

// Lookup is anything that can be queried for a measurement at a time in
// seconds.
type Lookup interface {
	ValueAt(t float64) Measurement
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(t float64) Measurement

func (f LookupFunc) ValueAt(t float64) Measurement { return f(t) }

// Contour is a property sampled on evenly spaced frames. Frame i is centred
// at Start + i*Step.
type Contour struct {
	start   float64
	step    float64
	values  []float64
	defined []bool
}

// NewContour builds a contour. A nil defined slice marks every finite value
// as defined.
func NewContour(start, step float64, values []float64, defined []bool) (*Contour, error) {
	if step <= 0 || math.IsNaN(step) {
		return nil, fmt.Errorf("contour step must be positive, got %v", step)
	}
	if defined != nil && len(defined) != len(values) {
		return nil, errors.New("contour values and defined flags differ in length")
	}

	c := &Contour{
		start:   start,
		step:    step,
		values:  make([]float64, len(values)),
		defined: make([]bool, len(values)),
	}
	copy(c.values, values)
	for i, v := range values {
		ok := !math.IsNaN(v) && !math.IsInf(v, 0)
		if defined != nil {
			ok = ok && defined[i]
		}
		c.defined[i] = ok
	}
	return c, nil
}

// FromMeasurements builds a contour from explicit measurements.
func FromMeasurements(start, step float64, ms []Measurement) (*Contour, error) {
	values := make([]float64, len(ms))
	defined := make([]bool, len(ms))
	for i, m := range ms {
		values[i] = m.Value
		defined[i] = m.Defined
	}
	return NewContour(start, step, values, defined)
}

// WithSentinel returns a copy where frames equal to sentinel are undefined.
// Engines that signal "no value" with a magic number (-200 dB for
// harmonicity) go through this before anything samples them.
func (c *Contour) WithSentinel(sentinel float64) *Contour {
	out := &Contour{
		start:   c.start,
		step:    c.step,
		values:  c.values,
		defined: make([]bool, len(c.defined)),
	}
	for i, ok := range c.defined {
		out.defined[i] = ok && c.values[i] != sentinel
	}
	return out
}

func (c *Contour) Len() int          { return len(c.values) }
func (c *Contour) Start() float64    { return c.start }
func (c *Contour) Step() float64     { return c.step }
func (c *Contour) Time(i int) float64 { return c.start + float64(i)*c.step }

// At returns frame i.
func (c *Contour) At(i int) Measurement {
	if i < 0 || i >= len(c.values) || !c.defined[i] {
		return Undefined
	}
	return Measurement{Value: c.values[i], Defined: true}
}

// Measurements returns every frame.
func (c *Contour) Measurements() []Measurement {
	out := make([]Measurement, len(c.values))
	for i := range c.values {
		out[i] = c.At(i)
	}
	return out
}

// ValueAt linearly interpolates between the two frames around t. The result
// is undefined if either neighbour is undefined, or if t lies more than
// half a step outside the frame span.
func (c *Contour) ValueAt(t float64) Measurement {
	n := len(c.values)
	if n == 0 || math.IsNaN(t) {
		return Undefined
	}

	pos := (t - c.start) / c.step
	if pos < -0.5 || pos > float64(n-1)+0.5 {
		return Undefined
	}
	if pos <= 0 {
		return c.At(0)
	}
	if pos >= float64(n-1) {
		return c.At(n - 1)
	}

	i := int(math.Floor(pos))
	frac := pos - float64(i)
	left, right := c.At(i), c.At(i+1)
	if frac == 0 {
		return left
	}
	if !left.Defined || !right.Defined {
		return Undefined
	}
	return Measurement{Value: left.Value + frac*(right.Value-left.Value), Defined: true}
}

// FrameRange returns the indices [lo, hi] of frames whose centres fall in
// [from, to]. ok is false when no frame does.
func (c *Contour) FrameRange(from, to float64) (lo, hi int, ok bool) {
	n := len(c.values)
	if n == 0 || to < from {
		return 0, 0, false
	}
	lo = int(math.Ceil((from - c.start) / c.step))
	hi = int(math.Floor((to - c.start) / c.step))
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}
	if lo > hi {
		return 0, 0, false
	}
	return lo, hi, true
}

// Span returns the frames centred inside [from, to]. When none are, the
// frame nearest the midpoint is returned so short intervals still yield a
// value.
func (c *Contour) Span(from, to float64) []Measurement {
	if lo, hi, ok := c.FrameRange(from, to); ok {
		out := make([]Measurement, 0, hi-lo+1)
		for i := lo; i <= hi; i++ {
			out = append(out, c.At(i))
		}
		return out
	}
	if len(c.values) == 0 {
		return nil
	}
	mid := (from + to) / 2
	i := int(math.Round((mid - c.start) / c.step))
	if i < 0 {
		i = 0
	}
	if i > len(c.values)-1 {
		i = len(c.values) - 1
	}
	return []Measurement{c.At(i)}
}
