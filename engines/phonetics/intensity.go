package phonetics

import (
	"math"

	"github.com/RyanBlaney/sonido-voice/algorithms/common"
	"github.com/RyanBlaney/sonido-voice/algorithms/windowing"
	"github.com/RyanBlaney/sonido-voice/series"
)

// intensityReference is the squared auditory threshold, (2e-5 Pa)^2.
const intensityReference = 4e-10

// Intensity returns the intensity contour in dB. Each frame is the
// Kaiser-weighted mean square over 6.4 periods of MinPitch; silent frames
// are undefined.
func (s *Sound) Intensity(p IntensityParams) (*series.Contour, error) {
	layout, err := s.layout("intensity analysis", 6.4/p.MinPitch, p.TimeStep)
	if err != nil {
		return nil, err
	}
	size := layout.WindowSamples()
	window := windowing.NewKaiser(size, 2*math.Pi*math.Pi+0.5, true).Coefficients()

	sumW := 0.0
	for _, w := range window {
		sumW += w
	}

	values := make([]float64, layout.Count)
	defined := make([]bool, layout.Count)
	for i := range values {
		frame := layout.Extract(s.samples, i, size)
		if p.SubtractMean {
			frame = common.SubtractMean(frame)
		}
		sum := 0.0
		for j, x := range frame {
			sum += x * x * window[j]
		}
		if power := sum / sumW; power > 0 {
			values[i] = 10 * math.Log10(power/intensityReference)
			defined[i] = true
		}
	}
	return series.NewContour(layout.Start, layout.Step, values, defined)
}
