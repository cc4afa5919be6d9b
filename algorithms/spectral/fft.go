package spectral

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// FFT wraps mjibson/go-dsp with the helpers the engines need.
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute returns the full complex spectrum of a real signal.
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.FFTReal(x)
}

// ComputePadded zero-pads x to size before transforming.
func (f *FFT) ComputePadded(x []float64, size int) []complex128 {
	if size <= len(x) {
		return f.Compute(x)
	}
	padded := make([]float64, size)
	copy(padded, x)
	return fft.FFTReal(padded)
}

// ComputeInverse computes inverse FFT
func (f *FFT) ComputeInverse(x []complex128) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.IFFT(x)
}

// ComputeInverseReal computes inverse FFT and returns real part only
func (f *FFT) ComputeInverseReal(x []complex128) []float64 {
	if len(x) == 0 {
		return []float64{}
	}

	result := fft.IFFT(x)
	realResult := make([]float64, len(result))
	for i, val := range result {
		realResult[i] = real(val)
	}
	return realResult
}

// Autocorrelation returns the unnormalised autocorrelation r[0..maxLag] of
// x, computed through a zero-padded power spectrum so the result is linear,
// not circular.
func (f *FFT) Autocorrelation(x []float64, maxLag int) []float64 {
	if len(x) == 0 {
		return []float64{}
	}
	maxLag = min(maxLag, len(x)-1)

	size := NextPowerOfTwo(len(x) + maxLag + 1)
	spectrum := f.ComputePadded(x, size)
	for i, c := range spectrum {
		spectrum[i] = complex(real(c)*real(c)+imag(c)*imag(c), 0)
	}

	full := f.ComputeInverseReal(spectrum)
	return full[:maxLag+1]
}

// Magnitude returns |X[k]| for the positive-frequency half of a spectrum of
// length nfft.
func Magnitude(spectrum []complex128, nfft int) []float64 {
	bins := min(nfft/2+1, len(spectrum))
	mag := make([]float64, bins)
	for i := range bins {
		mag[i] = cmplx.Abs(spectrum[i])
	}
	return mag
}

// FrequencyBins returns the centre frequency of each of the nfft/2+1
// positive-frequency bins.
func FrequencyBins(sampleRate, nfft int) []float64 {
	bins := make([]float64, nfft/2+1)
	for i := range bins {
		bins[i] = float64(i) * float64(sampleRate) / float64(nfft)
	}
	return bins
}

// NextPowerOfTwo returns the smallest power of two >= n.
func NextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << uint(math.Ceil(math.Log2(float64(n))))
}
