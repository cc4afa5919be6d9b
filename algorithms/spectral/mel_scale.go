package spectral

import (
	"math"
)

// HzToMel converts frequency in Hz to mel scale
func HzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// MelToHz converts mel scale to frequency in Hz
func MelToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// MelFilterBank is a bank of triangular filters equally spaced on the mel
// scale, laid over the nfft/2+1 bins of a power spectrum.
type MelFilterBank struct {
	filters [][]float64
}

// NewMelFilterBank creates numFilters triangles between lowFreq and
// highFreq. highFreq is clamped to Nyquist.
func NewMelFilterBank(numFilters, fftSize, sampleRate int, lowFreq, highFreq float64) *MelFilterBank {
	if numFilters <= 0 || fftSize <= 0 {
		return &MelFilterBank{}
	}
	nyquist := float64(sampleRate) / 2
	if highFreq <= 0 || highFreq > nyquist {
		highFreq = nyquist
	}

	lowMel := HzToMel(lowFreq)
	highMel := HzToMel(highFreq)
	melStep := (highMel - lowMel) / float64(numFilters+1)

	// Edges are kept in Hz rather than rounded to bins so narrow low
	// filters still get non-zero weights.
	edges := make([]float64, numFilters+2)
	for i := range edges {
		edges[i] = MelToHz(lowMel + float64(i)*melStep)
	}

	bins := FrequencyBins(sampleRate, fftSize)
	filters := make([][]float64, numFilters)
	for m := range filters {
		left, centre, right := edges[m], edges[m+1], edges[m+2]
		filters[m] = make([]float64, len(bins))
		for k, f := range bins {
			switch {
			case f > left && f <= centre:
				filters[m][k] = (f - left) / (centre - left)
			case f > centre && f < right:
				filters[m][k] = (right - f) / (right - centre)
			}
		}
	}
	return &MelFilterBank{filters: filters}
}

// NumFilters returns the number of filters in the bank.
func (fb *MelFilterBank) NumFilters() int { return len(fb.filters) }

// Apply applies the bank to a power spectrum.
func (fb *MelFilterBank) Apply(powerSpectrum []float64) []float64 {
	melSpectrum := make([]float64, len(fb.filters))
	for i, filter := range fb.filters {
		sum := 0.0
		for j := 0; j < len(filter) && j < len(powerSpectrum); j++ {
			sum += powerSpectrum[j] * filter[j]
		}
		melSpectrum[i] = sum
	}
	return melSpectrum
}
