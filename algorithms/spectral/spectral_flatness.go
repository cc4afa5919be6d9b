package spectral

import (
	"math"
)

// SpectralFlatness computes the ratio of geometric to arithmetic mean of a
// power spectrum (Wiener entropy). Values near 1 are noise-like.
type SpectralFlatness struct {
	amin float64
}

// NewSpectralFlatness creates a calculator flooring power at 1e-10.
func NewSpectralFlatness() *SpectralFlatness {
	return &SpectralFlatness{amin: 1e-10}
}

// Compute calculates flatness for a single power spectrum
func (sf *SpectralFlatness) Compute(powerSpectrum []float64) float64 {
	if len(powerSpectrum) == 0 {
		return 0
	}

	logSum := 0.0
	sum := 0.0
	for _, p := range powerSpectrum {
		v := math.Max(p, sf.amin)
		logSum += math.Log(v)
		sum += v
	}

	n := float64(len(powerSpectrum))
	return math.Exp(logSum/n) / (sum / n)
}

// ComputeFrames processes multiple frames
func (sf *SpectralFlatness) ComputeFrames(powerSpectrogram [][]float64) []float64 {
	flatness := make([]float64, len(powerSpectrogram))
	for t, spectrum := range powerSpectrogram {
		flatness[t] = sf.Compute(spectrum)
	}
	return flatness
}
