package phonetics

import (
	"errors"
	"math"

	"github.com/RyanBlaney/sonido-voice/algorithms/common"
	"github.com/RyanBlaney/sonido-voice/algorithms/filters"
	"github.com/RyanBlaney/sonido-voice/audio"
	"github.com/RyanBlaney/sonido-voice/engines"
)

// Sound is a waveform ready for phonetic analysis. Analyses never modify
// it.
type Sound struct {
	samples    []float64
	sampleRate int
	source     string
}

// NewSound checks that w can be analysed.
func NewSound(w *audio.Waveform) (*Sound, error) {
	if w == nil || w.Len() == 0 {
		return nil, engines.Unavailable(engines.Phonetics, "no audio", audio.ErrEmptyWaveform)
	}
	for _, v := range w.Samples() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, engines.Unavailable(engines.Phonetics, "waveform contains non-finite samples", nil)
		}
	}
	return &Sound{
		samples:    w.Samples(),
		sampleRate: w.SampleRate(),
		source:     w.Source(),
	}, nil
}

// SampleRate in Hz.
func (s *Sound) SampleRate() int { return s.sampleRate }

// Duration in seconds.
func (s *Sound) Duration() float64 {
	return float64(len(s.samples)) / float64(s.sampleRate)
}

// Samples returns the sample data; callers must not modify it.
func (s *Sound) Samples() []float64 { return s.samples }

// PreEmphasis returns a copy boosted by 6 dB/octave above fromHz.
func (s *Sound) PreEmphasis(fromHz float64) (*Sound, error) {
	pe, err := filters.NewPreEmphasisFromFrequency(fromHz, s.sampleRate)
	if err != nil {
		return nil, err
	}
	return &Sound{
		samples:    pe.Process(s.samples),
		sampleRate: s.sampleRate,
		source:     s.source,
	}, nil
}

// layout places analysis frames over the sound. A sound too short for a
// single window cannot be analysed at all.
func (s *Sound) layout(analysis string, window, step float64) (common.FrameLayout, error) {
	l, err := common.NewFrameLayout(len(s.samples), s.sampleRate, window, step)
	if errors.Is(err, common.ErrSignalTooShort) {
		return l, engines.Unavailable(engines.Phonetics, "sound too short for "+analysis, err)
	}
	return l, err
}
