// Package windowing provides the analysis windows used by the phonetics and
// spectral engines.
package windowing

import (
	"fmt"
	"math"
)

// Window is a precomputed set of window coefficients.
type Window struct {
	kind         string
	coefficients []float64
}

// NewHann creates a Hann window. Symmetric windows reach zero at both ends;
// periodic ones (librosa's default for STFT) do not reach it at the end.
func NewHann(size int, symmetric bool) *Window {
	return build("hann", size, symmetric, func(x float64) float64 {
		return 0.5 * (1.0 - math.Cos(2*math.Pi*x))
	})
}

// NewHamming creates a Hamming window.
func NewHamming(size int, symmetric bool) *Window {
	return build("hamming", size, symmetric, func(x float64) float64 {
		return 0.54 - 0.46*math.Cos(2*math.Pi*x)
	})
}

// NewKaiser creates a Kaiser window with shape parameter beta.
func NewKaiser(size int, beta float64, symmetric bool) *Window {
	i0Beta := besselI0(beta)
	return build("kaiser", size, symmetric, func(x float64) float64 {
		arg := 2.0*x - 1.0
		return besselI0(beta*math.Sqrt(math.Max(0, 1-arg*arg))) / i0Beta
	})
}

// NewGaussian creates the Gaussian window Praat uses for formant and
// harmonicity analysis: exp(-12 (x-0.5)^2) shifted and rescaled so the
// edges are exactly zero.
func NewGaussian(size int) *Window {
	edge := math.Exp(-12.0 * 0.25)
	return build("gaussian", size, true, func(x float64) float64 {
		d := x - 0.5
		return (math.Exp(-12.0*d*d) - edge) / (1 - edge)
	})
}

func build(kind string, size int, symmetric bool, shape func(x float64) float64) *Window {
	w := &Window{kind: kind, coefficients: make([]float64, max(size, 0))}
	if size == 1 {
		w.coefficients[0] = 1
		return w
	}

	denominator := float64(size)
	if symmetric {
		denominator = float64(size - 1)
	}
	for i := range w.coefficients {
		w.coefficients[i] = shape(float64(i) / denominator)
	}
	return w
}

// besselI0 computes the zero-order modified Bessel function of the first kind
func besselI0(x float64) float64 {
	sum := 1.0
	term := 1.0
	for i := 1; i < 50; i++ {
		term *= (x / (2.0 * float64(i))) * (x / (2.0 * float64(i)))
		sum += term
		if term < 1e-12*sum {
			break
		}
	}
	return sum
}

// Apply returns a windowed copy of signal, or nil on a size mismatch.
func (w *Window) Apply(signal []float64) []float64 {
	if len(signal) != len(w.coefficients) {
		return nil
	}
	windowed := make([]float64, len(signal))
	for i, c := range w.coefficients {
		windowed[i] = signal[i] * c
	}
	return windowed
}

// ApplyInPlace windows signal in place.
func (w *Window) ApplyInPlace(signal []float64) error {
	if len(signal) != len(w.coefficients) {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), len(w.coefficients))
	}
	for i, c := range w.coefficients {
		signal[i] *= c
	}
	return nil
}

// Coefficients returns a copy of the window coefficients
func (w *Window) Coefficients() []float64 {
	coeffs := make([]float64, len(w.coefficients))
	copy(coeffs, w.coefficients)
	return coeffs
}

func (w *Window) Size() int    { return len(w.coefficients) }
func (w *Window) Type() string { return w.kind }

// SumOfSquares is the window energy, used to normalise power spectra.
func (w *Window) SumOfSquares() float64 {
	sum := 0.0
	for _, c := range w.coefficients {
		sum += c * c
	}
	return sum
}
