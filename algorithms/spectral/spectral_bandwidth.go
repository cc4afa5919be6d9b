package spectral

import (
	"math"
)

// SpectralBandwidth computes the p-th order spread of a spectrum around its
// centroid, with magnitudes normalised to sum to one per frame.
type SpectralBandwidth struct {
	freqBins []float64
	p        float64
}

// NewSpectralBandwidth creates a bandwidth calculator of order p (2 gives
// the weighted standard deviation).
func NewSpectralBandwidth(sampleRate, nfft int, p float64) *SpectralBandwidth {
	if p <= 0 {
		p = 2
	}
	return &SpectralBandwidth{freqBins: FrequencyBins(sampleRate, nfft), p: p}
}

// Compute calculates the bandwidth of a spectrum given its centroid
func (sb *SpectralBandwidth) Compute(spectrum []float64, centroid float64) float64 {
	total := 0.0
	for _, v := range spectrum {
		total += v
	}
	if total == 0 {
		return 0
	}

	sum := 0.0
	for i := 0; i < len(spectrum) && i < len(sb.freqBins); i++ {
		diff := math.Abs(sb.freqBins[i] - centroid)
		sum += spectrum[i] / total * math.Pow(diff, sb.p)
	}
	return math.Pow(sum, 1/sb.p)
}

// ComputeFrames processes multiple frames with their corresponding centroids
func (sb *SpectralBandwidth) ComputeFrames(spectrogram [][]float64, centroids []float64) []float64 {
	if len(centroids) != len(spectrogram) {
		return []float64{}
	}
	bandwidths := make([]float64, len(spectrogram))
	for t, spectrum := range spectrogram {
		bandwidths[t] = sb.Compute(spectrum, centroids[t])
	}
	return bandwidths
}
