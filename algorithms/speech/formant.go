package speech

import (
	"errors"
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-voice/algorithms/windowing"
)

// FormantAnalyzer estimates vocal tract resonances for one analysis frame
// with Burg LPC. F1 and F2 primarily determine vowel identity.
type FormantAnalyzer struct {
	sampleRate int
	maxFormant float64
	minFreq    float64
	window     *windowing.Window
	lpc        *LPCAnalyzer
}

// FormantParams configures the analyzer.
type FormantParams struct {
	MaxFormants float64 // Formants expected below MaxFormant, e.g. 4.5 for an adult male
	MaxFormant  float64 // Ceiling of the formant search range in Hz
	WindowSize  int     // Samples per frame
}

// NewFormantAnalyzer derives the LPC order from how many formants are
// expected below MaxFormant, scaled to the full band since the signal is
// not downsampled to 2*MaxFormant first.
func NewFormantAnalyzer(sampleRate int, params FormantParams) (*FormantAnalyzer, error) {
	if params.MaxFormants <= 0 || params.MaxFormant <= 0 {
		return nil, fmt.Errorf("invalid formant params %+v", params)
	}
	if params.WindowSize < 8 {
		return nil, fmt.Errorf("formant window of %d samples too short", params.WindowSize)
	}

	nyquist := float64(sampleRate) / 2
	maxFormant := math.Min(params.MaxFormant, nyquist)
	order := int(math.Round(2 * params.MaxFormants * nyquist / maxFormant))
	order = max(order, 2)

	return &FormantAnalyzer{
		sampleRate: sampleRate,
		maxFormant: maxFormant,
		minFreq:    50,
		window:     windowing.NewGaussian(params.WindowSize),
		lpc:        NewLPCAnalyzer(sampleRate, order, LPCBurg),
	}, nil
}

// Order returns the LPC order in use.
func (f *FormantAnalyzer) Order() int { return f.lpc.Order() }

// WindowSize returns the expected frame length.
func (f *FormantAnalyzer) WindowSize() int { return f.window.Size() }

// Analyze windows frame, which should already be pre-emphasised, and
// returns the resonances between 50 Hz and MaxFormant-50 Hz in ascending
// order. A silent frame yields no formants and no error.
func (f *FormantAnalyzer) Analyze(frame []float64) ([]Resonance, error) {
	windowed := f.window.Apply(frame)
	if windowed == nil {
		return nil, fmt.Errorf("frame of %d samples, want %d", len(frame), f.window.Size())
	}

	res, err := f.lpc.Analyze(windowed)
	if errors.Is(err, ErrZeroEnergy) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LPC analysis failed: %w", err)
	}

	return f.lpc.Resonances(res.Coefficients, f.minFreq, f.maxFormant-f.minFreq)
}
