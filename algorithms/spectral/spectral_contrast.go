package spectral

import (
	"math"
	"slices"
)

// SpectralContrast measures, per octave band, the level difference in dB
// between spectral peaks and valleys. Band 0 spans [0, fmin]; band k spans
// [fmin*2^(k-1), fmin*2^k]; the last band extends to Nyquist.
type SpectralContrast struct {
	numBands int
	quantile float64
	bands    [][2]int // bin ranges [lo, hi) per band
	peakEnd  []bool   // whether the band's top bin is dropped before sorting
}

// NewSpectralContrast creates a calculator with numBands+1 rows.
func NewSpectralContrast(sampleRate, nfft, numBands int, fmin, quantile float64) *SpectralContrast {
	if numBands <= 0 {
		numBands = 6
	}
	if fmin <= 0 {
		fmin = 200
	}
	if quantile <= 0 || quantile >= 1 {
		quantile = 0.02
	}

	freqs := FrequencyBins(sampleRate, nfft)
	sc := &SpectralContrast{numBands: numBands, quantile: quantile}

	edges := make([]float64, numBands+2)
	for k := 1; k < len(edges); k++ {
		edges[k] = fmin * math.Pow(2, float64(k-1))
	}

	for k := 0; k <= numBands; k++ {
		lo, hi := -1, -1
		for i, f := range freqs {
			if f >= edges[k] && f <= edges[k+1] {
				if lo < 0 {
					lo = i
				}
				hi = i + 1
			}
		}
		if lo < 0 {
			sc.bands = append(sc.bands, [2]int{0, 0})
			sc.peakEnd = append(sc.peakEnd, false)
			continue
		}
		if k > 0 && lo > 0 {
			lo--
		}
		if k == numBands {
			hi = len(freqs)
		}
		sc.bands = append(sc.bands, [2]int{lo, hi})
		sc.peakEnd = append(sc.peakEnd, k < numBands)
	}
	return sc
}

// NumRows returns numBands+1.
func (sc *SpectralContrast) NumRows() int { return sc.numBands + 1 }

// Compute returns one contrast value per band for a magnitude spectrum.
func (sc *SpectralContrast) Compute(magnitude []float64) []float64 {
	contrast := make([]float64, len(sc.bands))

	for k, band := range sc.bands {
		lo, hi := band[0], min(band[1], len(magnitude))
		if lo >= hi {
			continue
		}
		count := hi - lo
		sub := slices.Clone(magnitude[lo:hi])
		if sc.peakEnd[k] && len(sub) > 1 {
			sub = sub[:len(sub)-1]
		}
		slices.Sort(sub)

		idx := max(int(math.Round(sc.quantile*float64(count))), 1)
		idx = min(idx, len(sub))

		valley := mean(sub[:idx])
		peak := mean(sub[len(sub)-idx:])
		contrast[k] = powerToDB(peak) - powerToDB(valley)
	}
	return contrast
}

// ComputeFrames returns a bands x frames matrix.
func (sc *SpectralContrast) ComputeFrames(spectrogram [][]float64) [][]float64 {
	rows := make([][]float64, len(sc.bands))
	for k := range rows {
		rows[k] = make([]float64, len(spectrogram))
	}
	for t, spectrum := range spectrogram {
		for k, v := range sc.Compute(spectrum) {
			rows[k][t] = v
		}
	}
	return rows
}

func powerToDB(v float64) float64 {
	return 10 * math.Log10(math.Max(v, 1e-10))
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}
