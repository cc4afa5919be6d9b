package phonetics

import (
	"sort"

	"github.com/RyanBlaney/sonido-voice/algorithms/speech"
	"github.com/RyanBlaney/sonido-voice/algorithms/tonal"
)

// PointProcess is the sequence of glottal pulse times of a sound.
type PointProcess struct {
	sound  *Sound
	pulses []float64
}

// PointProcess places glottal pulses in the voiced parts of the sound,
// using a pitch track between Floor and Ceiling to predict each period.
func (s *Sound) PointProcess(p PointProcessParams) (*PointProcess, error) {
	params := tonal.DefaultPitchTrackerParams()
	params.Floor = p.Floor
	params.Ceiling = p.Ceiling

	track, err := s.track("periodicity analysis", params)
	if err != nil {
		return nil, err
	}
	return &PointProcess{
		sound:  s,
		pulses: tonal.Pulses(s.samples, s.sampleRate, track),
	}, nil
}

// Len returns the number of pulses.
func (pp *PointProcess) Len() int { return len(pp.pulses) }

// Times returns a copy of the pulse times in seconds.
func (pp *PointProcess) Times() []float64 {
	out := make([]float64, len(pp.pulses))
	copy(out, pp.pulses)
	return out
}

// Jitter measures period perturbation over the pulses in [from, to]. A
// range with to <= from covers the whole sound. Measures that cannot be
// computed are NaN.
func (pp *PointProcess) Jitter(from, to float64, params speech.PerturbationParams) speech.Jitter {
	periods := speech.Periods(pp.within(from, to), params)
	return speech.ComputeJitter(periods, params)
}

// Shimmer measures peak-to-peak amplitude perturbation over the pulses in
// [from, to], with the same range convention as Jitter.
func (pp *PointProcess) Shimmer(from, to float64, params speech.PerturbationParams) speech.Shimmer {
	pulses := pp.within(from, to)
	periods := speech.Periods(pulses, params)
	amplitudes := tonal.PeriodAmplitudes(pp.sound.samples, pp.sound.sampleRate, pulses)
	return speech.ComputeShimmer(periods, amplitudes, params)
}

func (pp *PointProcess) within(from, to float64) []float64 {
	if to <= from {
		return pp.pulses
	}
	lo := sort.SearchFloat64s(pp.pulses, from)
	hi := sort.Search(len(pp.pulses), func(i int) bool { return pp.pulses[i] > to })
	return pp.pulses[lo:hi]
}
