package phonetics

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-voice/algorithms/spectral"
	"github.com/RyanBlaney/sonido-voice/algorithms/windowing"
	"github.com/RyanBlaney/sonido-voice/series"
)

// MFCC is a cepstral coefficient matrix with its frame times.
// Coefficients[i] holds c1..cN of frame i; c0 is not kept.
type MFCC struct {
	Start        float64     `json:"start"`
	Step         float64     `json:"step"`
	Times        []float64   `json:"times"`
	Coefficients [][]float64 `json:"coefficients"`
}

// NumFrames returns the number of analysis frames.
func (m *MFCC) NumFrames() int { return len(m.Coefficients) }

// NumCoefficients returns the coefficients per frame.
func (m *MFCC) NumCoefficients() int {
	if len(m.Coefficients) == 0 {
		return 0
	}
	return len(m.Coefficients[0])
}

// FrameAt returns the last frame whose left edge lies strictly before t,
// or frame 0 when none does.
func (m *MFCC) FrameAt(t float64) int {
	n := len(m.Times)
	if n == 0 {
		return 0
	}
	firstEdge := m.Start - 0.5*m.Step
	before := int(math.Ceil((t - firstEdge) / m.Step))
	before = min(max(before, 0), n)
	return max(before-1, 0)
}

// Mean averages every coefficient over the frames FrameAt(from) through
// FrameAt(to) inclusive.
func (m *MFCC) Mean(from, to float64) []series.Measurement {
	out := make([]series.Measurement, m.NumCoefficients())
	if len(out) == 0 {
		return out
	}
	lo, hi := m.FrameAt(from), m.FrameAt(to)
	if hi < lo {
		lo, hi = hi, lo
	}
	for k := range out {
		sum := 0.0
		for i := lo; i <= hi; i++ {
			sum += m.Coefficients[i][k]
		}
		out[k] = series.Of(sum / float64(hi-lo+1))
	}
	return out
}

// MFCC computes mel cepstra on Hamming-windowed frames of WindowLength.
func (s *Sound) MFCC(p MFCCParams) (*MFCC, error) {
	layout, err := s.layout("MFCC analysis", p.WindowLength, p.TimeStep)
	if err != nil {
		return nil, err
	}
	size := layout.WindowSamples()
	nfft := spectral.NextPowerOfTwo(size)

	// c0 is computed and dropped
	cepstrum, err := spectral.NewMFCC(s.sampleRate, nfft, spectral.MFCCParams{
		NumCoefficients: p.NumCoefficients + 1,
		NumMelFilters:   max(26, p.NumCoefficients+1),
		HighFreq:        p.MaxFrequency,
	})
	if err != nil {
		return nil, fmt.Errorf("MFCC analysis: %w", err)
	}

	window := windowing.NewHamming(size, true)
	fft := spectral.NewFFT()

	out := &MFCC{
		Start:        layout.Start,
		Step:         layout.Step,
		Times:        make([]float64, layout.Count),
		Coefficients: make([][]float64, layout.Count),
	}
	for i := range out.Coefficients {
		frame := layout.Extract(s.samples, i, size)
		window.ApplyInPlace(frame)

		mag := spectral.Magnitude(fft.ComputePadded(frame, nfft), nfft)
		for k, v := range mag {
			mag[k] = v * v
		}

		out.Times[i] = layout.Time(i)
		out.Coefficients[i] = cepstrum.Compute(mag)[1:]
	}
	return out, nil
}
