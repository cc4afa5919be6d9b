package spectral

// SpectralCentroid computes the magnitude-weighted mean frequency of a
// spectrum.
type SpectralCentroid struct {
	freqBins []float64
}

// NewSpectralCentroid creates a calculator for spectra of nfft/2+1 bins.
func NewSpectralCentroid(sampleRate, nfft int) *SpectralCentroid {
	return &SpectralCentroid{freqBins: FrequencyBins(sampleRate, nfft)}
}

// Compute returns the centroid in Hz, 0 for an all-zero spectrum.
func (sc *SpectralCentroid) Compute(spectrum []float64) float64 {
	numerator := 0.0
	denominator := 0.0
	for i := 0; i < len(spectrum) && i < len(sc.freqBins); i++ {
		numerator += sc.freqBins[i] * spectrum[i]
		denominator += spectrum[i]
	}
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

// ComputeFrames processes multiple frames
func (sc *SpectralCentroid) ComputeFrames(spectrogram [][]float64) []float64 {
	centroids := make([]float64, len(spectrogram))
	for t, spectrum := range spectrogram {
		centroids[t] = sc.Compute(spectrum)
	}
	return centroids
}
