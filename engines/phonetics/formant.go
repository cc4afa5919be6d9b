package phonetics

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-voice/algorithms/speech"
	"github.com/RyanBlaney/sonido-voice/series"
)

// Formants holds one contour per formant number.
type Formants struct {
	tracks []*series.Contour
}

// Count returns how many formant tracks exist.
func (f *Formants) Count() int { return len(f.tracks) }

// Formant returns the contour of formant n, counting from 1.
func (f *Formants) Formant(n int) (*series.Contour, error) {
	if n < 1 || n > len(f.tracks) {
		return nil, fmt.Errorf("formant %d out of range 1..%d", n, len(f.tracks))
	}
	return f.tracks[n-1], nil
}

// ValueAt returns formant n at time t in Hz.
func (f *Formants) ValueAt(n int, t float64) series.Measurement {
	track, err := f.Formant(n)
	if err != nil {
		return series.Undefined
	}
	return track.ValueAt(t)
}

// Formants tracks vocal tract resonances with Burg LPC on Gaussian-windowed
// frames of twice WindowLength, after pre-emphasis. Frame i's formant k is
// the k-th lowest resonance; frames with fewer resonances leave the higher
// formants undefined.
func (s *Sound) Formants(p FormantParams) (*Formants, error) {
	emphasised, err := s.PreEmphasis(p.PreEmphasisFrom)
	if err != nil {
		return nil, fmt.Errorf("formant pre-emphasis: %w", err)
	}

	layout, err := s.layout("formant analysis", 2*p.WindowLength, p.TimeStep)
	if err != nil {
		return nil, err
	}
	size := layout.WindowSamples()

	analyzer, err := speech.NewFormantAnalyzer(s.sampleRate, speech.FormantParams{
		MaxFormants: p.MaxFormants,
		MaxFormant:  p.MaxFormant,
		WindowSize:  size,
	})
	if err != nil {
		return nil, fmt.Errorf("formant analysis: %w", err)
	}

	numTracks := int(math.Ceil(p.MaxFormants))
	values := make([][]float64, numTracks)
	defined := make([][]bool, numTracks)
	for k := range values {
		values[k] = make([]float64, layout.Count)
		defined[k] = make([]bool, layout.Count)
	}

	for i := 0; i < layout.Count; i++ {
		resonances, err := analyzer.Analyze(layout.Extract(emphasised.samples, i, size))
		if err != nil {
			return nil, fmt.Errorf("formant analysis at %.3fs: %w", layout.Time(i), err)
		}
		for k := 0; k < numTracks && k < len(resonances); k++ {
			values[k][i] = resonances[k].Frequency
			defined[k][i] = true
		}
	}

	out := &Formants{tracks: make([]*series.Contour, numTracks)}
	for k := range out.tracks {
		track, err := series.NewContour(layout.Start, layout.Step, values[k], defined[k])
		if err != nil {
			return nil, err
		}
		out.tracks[k] = track
	}
	return out, nil
}
