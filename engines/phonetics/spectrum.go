package phonetics

import (
	"math"

	"github.com/RyanBlaney/sonido-voice/algorithms/spectral"
	"github.com/RyanBlaney/sonido-voice/algorithms/stats"
	"github.com/RyanBlaney/sonido-voice/series"
)

// Spectrum is the long-term spectrum of a whole sound.
type Spectrum struct {
	frequencies []float64
	bins        []complex128
}

// Spectrum transforms the whole sound, zero-padded to a power of two.
func (s *Sound) Spectrum() *Spectrum {
	nfft := spectral.NextPowerOfTwo(len(s.samples))
	full := spectral.NewFFT().ComputePadded(s.samples, nfft)
	return &Spectrum{
		frequencies: spectral.FrequencyBins(s.sampleRate, nfft),
		bins:        full[:nfft/2+1],
	}
}

// Moments treats |X(f)|^power as a distribution over frequency.
func (sp *Spectrum) Moments(power float64) (stats.MomentResult, error) {
	weights := make([]float64, len(sp.bins))
	for i, c := range sp.bins {
		weights[i] = math.Pow(real(c)*real(c)+imag(c)*imag(c), power/2)
	}
	return stats.WeightedMoments(sp.frequencies, weights)
}

// CentreOfGravity returns the mean frequency in Hz.
func (sp *Spectrum) CentreOfGravity(power float64) series.Measurement {
	return sp.moment(power, func(m stats.MomentResult) float64 { return m.Mean })
}

// StandardDeviation returns the spread around the centre of gravity in Hz.
func (sp *Spectrum) StandardDeviation(power float64) series.Measurement {
	return sp.moment(power, func(m stats.MomentResult) float64 { return m.StdDev })
}

// Skewness returns the normalised third central moment.
func (sp *Spectrum) Skewness(power float64) series.Measurement {
	return sp.moment(power, func(m stats.MomentResult) float64 { return m.Skewness })
}

// Kurtosis returns the excess normalised fourth central moment.
func (sp *Spectrum) Kurtosis(power float64) series.Measurement {
	return sp.moment(power, func(m stats.MomentResult) float64 { return m.Kurtosis })
}

func (sp *Spectrum) moment(power float64, pick func(stats.MomentResult) float64) series.Measurement {
	m, err := sp.Moments(power)
	if err != nil {
		// silence has no spectral distribution
		return series.Undefined
	}
	return series.Of(pick(m))
}
