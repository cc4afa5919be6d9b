package spectral

// SpectralRolloff finds the frequency below which a given fraction of the
// spectral magnitude lies.
type SpectralRolloff struct {
	freqBins []float64
	percent  float64
}

// NewSpectralRolloff creates a rolloff calculator. percent is typically
// 0.85.
func NewSpectralRolloff(sampleRate, nfft int, percent float64) *SpectralRolloff {
	return &SpectralRolloff{freqBins: FrequencyBins(sampleRate, nfft), percent: percent}
}

// Compute returns the rolloff frequency of one magnitude spectrum, 0 for an
// all-zero spectrum.
func (sr *SpectralRolloff) Compute(spectrum []float64) float64 {
	n := min(len(spectrum), len(sr.freqBins))
	total := 0.0
	for i := range n {
		total += spectrum[i]
	}
	if total == 0 {
		return 0
	}

	threshold := sr.percent * total
	cumulative := 0.0
	for i := range n {
		cumulative += spectrum[i]
		if cumulative >= threshold {
			return sr.freqBins[i]
		}
	}
	return sr.freqBins[n-1]
}

// ComputeFrames processes multiple frames
func (sr *SpectralRolloff) ComputeFrames(spectrogram [][]float64) []float64 {
	rolloffs := make([]float64, len(spectrogram))
	for t, spectrum := range spectrogram {
		rolloffs[t] = sr.Compute(spectrum)
	}
	return rolloffs
}
