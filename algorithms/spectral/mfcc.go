package spectral

import (
	"fmt"
	"math"
)

// MFCC computes Mel-Frequency Cepstral Coefficients from power spectra.
// An MFCC is immutable once built and safe for concurrent use.
type MFCC struct {
	params     MFCCParams
	filterBank *MelFilterBank
	dctMatrix  [][]float64
}

// MFCCParams contains parameters for MFCC computation
type MFCCParams struct {
	NumCoefficients int     `json:"num_coefficients"` // Coefficients including c0 (default: 13)
	NumMelFilters   int     `json:"num_mel_filters"`  // Number of mel filter bank filters (default: 26)
	LowFreq         float64 `json:"low_freq"`         // Low frequency bound (default: 0)
	HighFreq        float64 `json:"high_freq"`        // High frequency bound (default: sampleRate/2)
	UseLiftering    bool    `json:"use_liftering"`    // Apply sinusoidal liftering
	LifterCoeff     float64 `json:"lifter_coeff"`     // Liftering coefficient (default: 22)
}

// DefaultMFCCParams returns 13 coefficients over 26 filters, no liftering.
func DefaultMFCCParams() MFCCParams {
	return MFCCParams{
		NumCoefficients: 13,
		NumMelFilters:   26,
		LifterCoeff:     22.0,
	}
}

// NewMFCC prepares filter bank and DCT matrix for spectra of the given FFT
// size.
func NewMFCC(sampleRate, fftSize int, params MFCCParams) (*MFCC, error) {
	if fftSize <= 0 {
		return nil, fmt.Errorf("invalid FFT size: %d", fftSize)
	}
	if params.NumCoefficients <= 0 {
		params.NumCoefficients = 13
	}
	if params.NumMelFilters <= 0 {
		params.NumMelFilters = 26
	}
	if params.NumCoefficients > params.NumMelFilters {
		return nil, fmt.Errorf("%d coefficients requested from %d filters", params.NumCoefficients, params.NumMelFilters)
	}
	if params.HighFreq <= 0 || params.HighFreq > float64(sampleRate)/2 {
		params.HighFreq = float64(sampleRate) / 2
	}
	if params.LifterCoeff <= 0 {
		params.LifterCoeff = 22.0
	}

	m := &MFCC{
		params:     params,
		filterBank: NewMelFilterBank(params.NumMelFilters, fftSize, sampleRate, params.LowFreq, params.HighFreq),
	}
	m.createDCTMatrix()
	return m, nil
}

// Compute returns the cepstral coefficients of one power spectrum. Row 0
// is c0, the log energy term.
func (m *MFCC) Compute(powerSpectrum []float64) []float64 {
	melSpectrum := m.filterBank.Apply(powerSpectrum)

	logMel := make([]float64, len(melSpectrum))
	for i, v := range melSpectrum {
		logMel[i] = math.Log(math.Max(v, 1e-10))
	}

	coeffs := m.applyDCT(logMel)
	if m.params.UseLiftering {
		coeffs = m.applyLiftering(coeffs)
	}
	return coeffs
}

// ComputeFrames processes multiple frames of power spectra
func (m *MFCC) ComputeFrames(powerSpectrogram [][]float64) [][]float64 {
	frames := make([][]float64, len(powerSpectrogram))
	for t, spectrum := range powerSpectrogram {
		frames[t] = m.Compute(spectrum)
	}
	return frames
}

// createDCTMatrix builds an orthonormal DCT-II matrix
func (m *MFCC) createDCTMatrix() {
	n := m.params.NumMelFilters
	m.dctMatrix = make([][]float64, m.params.NumCoefficients)

	for k := range m.dctMatrix {
		m.dctMatrix[k] = make([]float64, n)
		scale := math.Sqrt(2.0 / float64(n))
		if k == 0 {
			scale = math.Sqrt(1.0 / float64(n))
		}
		for j := range n {
			m.dctMatrix[k][j] = scale * math.Cos(math.Pi*float64(k)*(float64(j)+0.5)/float64(n))
		}
	}
}

func (m *MFCC) applyDCT(logMel []float64) []float64 {
	coeffs := make([]float64, len(m.dctMatrix))
	for k, row := range m.dctMatrix {
		sum := 0.0
		for j := 0; j < len(logMel) && j < len(row); j++ {
			sum += logMel[j] * row[j]
		}
		coeffs[k] = sum
	}
	return coeffs
}

// applyLiftering leaves c0 alone
func (m *MFCC) applyLiftering(coeffs []float64) []float64 {
	liftered := make([]float64, len(coeffs))
	liftered[0] = coeffs[0]
	for i := 1; i < len(coeffs); i++ {
		lifter := 1.0 + (m.params.LifterCoeff/2.0)*math.Sin(math.Pi*float64(i)/m.params.LifterCoeff)
		liftered[i] = coeffs[i] * lifter
	}
	return liftered
}

// Params returns the effective parameters after defaults were applied.
func (m *MFCC) Params() MFCCParams {
	return m.params
}
