package phonetics

import (
	"errors"
	"fmt"

	"github.com/RyanBlaney/sonido-voice/algorithms/common"
	"github.com/RyanBlaney/sonido-voice/algorithms/speech"
	"github.com/RyanBlaney/sonido-voice/algorithms/tonal"
	"github.com/RyanBlaney/sonido-voice/engines"
	"github.com/RyanBlaney/sonido-voice/series"
)

// HarmonicitySentinel is the value harmonicity contours carry in silent or
// unvoiced frames.
const HarmonicitySentinel = -200.0

// PitchTrack runs the autocorrelation pitch tracker over the whole sound.
func (s *Sound) PitchTrack(p PitchParams) (*tonal.PitchTrack, error) {
	params := tonal.DefaultPitchTrackerParams()
	params.TimeStep = p.TimeStep
	params.Floor = p.Floor
	params.Ceiling = p.Ceiling
	return s.track("pitch analysis", params)
}

// Pitch returns the fundamental frequency contour in Hz. Unvoiced frames
// are undefined.
func (s *Sound) Pitch(p PitchParams) (*series.Contour, error) {
	track, err := s.PitchTrack(p)
	if err != nil {
		return nil, err
	}
	freqs := track.Frequencies()
	defined := make([]bool, len(freqs))
	for i, f := range freqs {
		defined[i] = f > 0
	}
	return series.NewContour(track.Start, track.Step, freqs, defined)
}

// Harmonicity returns the harmonics-to-noise ratio contour in dB. Frames
// without periodicity hold HarmonicitySentinel; callers map it to undefined
// with WithSentinel.
func (s *Sound) Harmonicity(p HarmonicityParams) (*series.Contour, error) {
	periods := p.PeriodsPerWindow
	if periods <= 0 {
		periods = 1
		if p.Method == tonal.PitchAutocorrelation {
			periods = 4.5
		}
	}

	params := tonal.PitchTrackerParams{
		Method:           p.Method,
		TimeStep:         p.TimeStep,
		Floor:            p.MinPitch,
		Ceiling:          float64(s.sampleRate) / 2,
		PeriodsPerWindow: periods,
		MaxCandidates:    15,
		SilenceThreshold: p.SilenceThreshold,
	}
	track, err := s.track("harmonicity analysis", params)
	if err != nil {
		return nil, err
	}

	values := make([]float64, len(track.Frames))
	for i, f := range track.Frames {
		values[i] = harmonicityDB(f)
	}
	return series.NewContour(track.Start, track.Step, values, nil)
}

func harmonicityDB(f tonal.PitchFrame) float64 {
	if !f.Voiced() {
		return HarmonicitySentinel
	}
	r := f.Strength()
	switch {
	case r <= 1e-15:
		return -150
	case r > 1-1e-15:
		return 150
	}
	return speech.HarmonicsToNoise(r)
}

func (s *Sound) track(analysis string, params tonal.PitchTrackerParams) (*tonal.PitchTrack, error) {
	tracker, err := tonal.NewPitchTracker(s.sampleRate, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", analysis, err)
	}
	track, err := tracker.Track(s.samples)
	if errors.Is(err, common.ErrSignalTooShort) {
		return nil, engines.Unavailable(engines.Phonetics, "sound too short for "+analysis, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", analysis, err)
	}
	return track, nil
}
