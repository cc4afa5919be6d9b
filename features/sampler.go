// Package features reduces engine output to flat records of named
// measurements: contours are sampled at fixed fractional offsets inside an
// interval, and extractors' outputs are merged by the Assembler.
package features

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/sonido-voice/audio"
	"github.com/RyanBlaney/sonido-voice/series"
)

// SamplingConfig places samples inside an interval. Offsets are fractions
// of the interval length; TrimHead and TrimTail drop that many samples from
// either end of the result.
type SamplingConfig struct {
	Offsets  []float64 `json:"offsets" yaml:"offsets" mapstructure:"offsets"`
	TrimHead int       `json:"trim_head" yaml:"trim_head" mapstructure:"trim_head"`
	TrimTail int       `json:"trim_tail" yaml:"trim_tail" mapstructure:"trim_tail"`
}

// DefaultSamplingConfig samples at 3%, 6%, ..., 99% and keeps samples 11
// through 22 of the 33.
func DefaultSamplingConfig() SamplingConfig {
	return SamplingConfig{
		Offsets:  PercentOffsets(3, 99, 3),
		TrimHead: 10,
		TrimTail: 11,
	}
}

// PercentOffsets returns start/100, (start+step)/100, ... up to stop
// inclusive.
func PercentOffsets(start, stop, step int) []float64 {
	if step <= 0 {
		return nil
	}
	var offsets []float64
	for p := start; p <= stop; p += step {
		offsets = append(offsets, float64(p)/100)
	}
	return offsets
}

// Len is the number of samples kept.
func (c SamplingConfig) Len() int {
	return len(c.Offsets) - c.TrimHead - c.TrimTail
}

// Validate checks that offsets lie in (0, 1) in increasing order and that
// the trims leave at least one sample.
func (c SamplingConfig) Validate() error {
	if len(c.Offsets) == 0 {
		return fmt.Errorf("no sampling offsets")
	}
	for i, o := range c.Offsets {
		if !(o > 0 && o < 1) {
			return fmt.Errorf("sampling offset %d is %v, want a fraction in (0, 1)", i, o)
		}
		if i > 0 && o <= c.Offsets[i-1] {
			return fmt.Errorf("sampling offsets must increase: %v after %v", o, c.Offsets[i-1])
		}
	}
	if c.TrimHead < 0 || c.TrimTail < 0 {
		return fmt.Errorf("negative trim %d/%d", c.TrimHead, c.TrimTail)
	}
	if c.Len() <= 0 {
		return fmt.Errorf("trimming %d+%d of %d samples leaves nothing", c.TrimHead, c.TrimTail, len(c.Offsets))
	}
	return nil
}

// Sampler takes a fixed-size set of samples of a contour inside an
// interval. The output length depends only on the configuration.
type Sampler struct {
	offsets []float64 // kept offsets only
}

// NewSampler validates config and creates a sampler.
func NewSampler(config SamplingConfig) (*Sampler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sampling config: %w", err)
	}
	kept := config.Offsets[config.TrimHead : len(config.Offsets)-config.TrimTail]
	offsets := make([]float64, len(kept))
	copy(offsets, kept)
	return &Sampler{offsets: offsets}, nil
}

// Len is the number of measurements Sample returns.
func (s *Sampler) Len() int { return len(s.offsets) }

// Times returns the absolute times Sample queries inside iv.
func (s *Sampler) Times(iv audio.Interval) []float64 {
	times := make([]float64, len(s.offsets))
	for i, o := range s.offsets {
		times[i] = iv.At(o)
	}
	return times
}

// Sample queries lookup at every kept offset of iv. A zero-length interval
// repeats the value at its start. Undefined values are passed through.
func (s *Sampler) Sample(lookup series.Lookup, iv audio.Interval) []series.Measurement {
	out := make([]series.Measurement, len(s.offsets))
	for i, t := range s.Times(iv) {
		out[i] = lookup.ValueAt(t)
	}
	return out
}

// Mean averages the defined measurements; it is undefined when none are.
func Mean(ms []series.Measurement) series.Measurement {
	values := series.DefinedValues(ms)
	if len(values) == 0 {
		return series.Undefined
	}
	return series.Of(stat.Mean(values, nil))
}
