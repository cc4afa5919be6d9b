package speech

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// ErrZeroEnergy is returned when a frame has no energy to model.
var ErrZeroEnergy = errors.New("zero energy signal")

// LPCMethod selects how predictor coefficients are estimated.
type LPCMethod int

const (
	// LPCBurg minimises forward and backward prediction error jointly.
	LPCBurg LPCMethod = iota
	// LPCAutocorrelation solves the normal equations with Levinson-Durbin.
	LPCAutocorrelation
)

// LPCAnalyzer performs Linear Predictive Coding analysis.
// Coefficients follow the prediction-error filter convention
// A(z) = 1 + a1*z^-1 + ... + ap*z^-p, so a[0] is always 1.
type LPCAnalyzer struct {
	sampleRate int
	order      int
	method     LPCMethod
}

// LPCResult contains LPC analysis results
type LPCResult struct {
	Coefficients   []float64 `json:"coefficients"`    // a0..ap with a0 = 1
	ResidualEnergy float64   `json:"residual_energy"` // Mean squared prediction error
	Gain           float64   `json:"gain"`            // sqrt(ResidualEnergy)
	Order          int       `json:"order"`
}

// NewLPCAnalyzer creates a new LPC analyzer. A non-positive order selects
// the usual speech rule of thumb, 2 + fs/1000.
func NewLPCAnalyzer(sampleRate, order int, method LPCMethod) *LPCAnalyzer {
	if order <= 0 {
		order = 2 + sampleRate/1000
	}
	return &LPCAnalyzer{
		sampleRate: sampleRate,
		order:      order,
		method:     method,
	}
}

// Order returns the predictor order.
func (lpc *LPCAnalyzer) Order() int { return lpc.order }

// Analyze estimates predictor coefficients for one (already windowed)
// frame.
func (lpc *LPCAnalyzer) Analyze(frame []float64) (*LPCResult, error) {
	if len(frame) <= lpc.order {
		return nil, fmt.Errorf("frame of %d samples too short for LPC order %d", len(frame), lpc.order)
	}

	var (
		coeffs []float64
		energy float64
		err    error
	)
	switch lpc.method {
	case LPCAutocorrelation:
		coeffs, energy, err = Levinson(Autocorrelate(frame, lpc.order), lpc.order)
		energy /= float64(len(frame))
	default:
		coeffs, energy, err = Burg(frame, lpc.order)
	}
	if err != nil {
		return nil, err
	}

	return &LPCResult{
		Coefficients:   coeffs,
		ResidualEnergy: energy,
		Gain:           math.Sqrt(energy),
		Order:          lpc.order,
	}, nil
}

// Autocorrelate returns r[0..maxLag] computed directly.
func Autocorrelate(x []float64, maxLag int) []float64 {
	r := make([]float64, maxLag+1)
	for lag := 0; lag <= maxLag && lag < len(x); lag++ {
		sum := 0.0
		for i := 0; i+lag < len(x); i++ {
			sum += x[i] * x[i+lag]
		}
		r[lag] = sum
	}
	return r
}

// Levinson solves for the prediction-error filter from autocorrelation
// values r[0..order] and returns it with the final error energy.
func Levinson(r []float64, order int) ([]float64, float64, error) {
	if len(r) < order+1 {
		return nil, 0, fmt.Errorf("need %d autocorrelation values, got %d", order+1, len(r))
	}
	if r[0] <= 0 {
		return nil, 0, ErrZeroEnergy
	}

	a := make([]float64, order+1)
	a[0] = 1
	energy := r[0]
	prev := make([]float64, order+1)

	for i := 1; i <= order; i++ {
		acc := r[i]
		for j := 1; j < i; j++ {
			acc += a[j] * r[i-j]
		}
		k := -acc / energy

		copy(prev, a)
		for j := 1; j < i; j++ {
			a[j] = prev[j] + k*prev[i-j]
		}
		a[i] = k

		energy *= 1 - k*k
		if energy <= 0 {
			return nil, 0, errors.New("levinson recursion became unstable")
		}
	}
	return a, energy, nil
}

// Burg estimates the prediction-error filter with Burg's method, following
// Collomb's formulation. The returned energy is the mean squared forward
// and backward error.
func Burg(x []float64, order int) ([]float64, float64, error) {
	n := len(x)
	if n <= order {
		return nil, 0, fmt.Errorf("signal of %d samples too short for order %d", n, order)
	}

	a := make([]float64, order+1)
	a[0] = 1
	f := make([]float64, n)
	b := make([]float64, n)
	copy(f, x)
	copy(b, x)

	power := 0.0
	for _, v := range x {
		power += v * v
	}
	if power == 0 {
		return nil, 0, ErrZeroEnergy
	}
	energy := power / float64(n)

	dk := 2*power - f[0]*f[0] - b[n-1]*b[n-1]

	for k := 0; k < order; k++ {
		if dk <= 0 {
			break
		}

		mu := 0.0
		for i := 0; i <= n-k-2; i++ {
			mu += f[i+k+1] * b[i]
		}
		mu *= -2 / dk

		for i := 0; i <= (k+1)/2; i++ {
			t1 := a[i] + mu*a[k+1-i]
			t2 := a[k+1-i] + mu*a[i]
			a[i] = t1
			a[k+1-i] = t2
		}

		for i := 0; i <= n-k-2; i++ {
			t1 := f[i+k+1] + mu*b[i]
			t2 := b[i] + mu*f[i+k+1]
			f[i+k+1] = t1
			b[i] = t2
		}

		energy *= 1 - mu*mu
		dk = (1-mu*mu)*dk - f[k+1]*f[k+1] - b[n-k-2]*b[n-k-2]
	}

	return a, energy, nil
}

// InverseFilter applies A(z) to signal, producing the prediction residual.
func InverseFilter(signal, coeffs []float64) []float64 {
	residual := make([]float64, len(signal))
	for i := range signal {
		sum := signal[i]
		for k := 1; k < len(coeffs) && k <= i; k++ {
			sum += coeffs[k] * signal[i-k]
		}
		residual[i] = sum
	}
	return residual
}

// Roots returns the zeros of A(z), i.e. the poles of the all-pole model,
// as eigenvalues of the polynomial's companion matrix.
func Roots(coeffs []float64) ([]complex128, error) {
	p := len(coeffs) - 1
	for p > 0 && coeffs[p] == 0 {
		p--
	}
	if p < 1 {
		return nil, nil
	}

	companion := mat.NewDense(p, p, nil)
	for j := 0; j < p; j++ {
		companion.Set(0, j, -coeffs[j+1]/coeffs[0])
	}
	for i := 1; i < p; i++ {
		companion.Set(i, i-1, 1)
	}

	var eig mat.Eigen
	if ok := eig.Factorize(companion, mat.EigenNone); !ok {
		return nil, errors.New("eigen decomposition of companion matrix failed")
	}
	return eig.Values(nil), nil
}

// Resonance is one pole pair of an all-pole model.
type Resonance struct {
	Frequency float64 `json:"frequency"` // Hz
	Bandwidth float64 `json:"bandwidth"` // Hz
}

// Resonances converts LPC coefficients to resonances sorted by frequency.
// Poles outside the unit circle are reflected inside first; only poles with
// positive frequency in (minFreq, maxFreq) are kept.
func (lpc *LPCAnalyzer) Resonances(coeffs []float64, minFreq, maxFreq float64) ([]Resonance, error) {
	roots, err := Roots(coeffs)
	if err != nil {
		return nil, err
	}

	fs := float64(lpc.sampleRate)
	var out []Resonance
	for _, r := range roots {
		if imag(r) < 0 {
			continue
		}
		mag := cmplx.Abs(r)
		if mag == 0 {
			continue
		}
		if mag > 1 {
			r = 1 / cmplx.Conj(r)
			mag = cmplx.Abs(r)
		}

		freq := math.Atan2(imag(r), real(r)) * fs / (2 * math.Pi)
		if freq <= minFreq || freq >= maxFreq {
			continue
		}
		out = append(out, Resonance{
			Frequency: freq,
			Bandwidth: -math.Log(mag) * fs / math.Pi,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Frequency < out[j].Frequency })
	return out, nil
}

// SpectralEnvelope evaluates gain/|A(e^jω)| on nfft/2+1 frequencies.
func SpectralEnvelope(coeffs []float64, gain float64, nfft int) []float64 {
	if nfft <= 0 {
		nfft = 512
	}
	envelope := make([]float64, nfft/2+1)

	for k := range envelope {
		omega := 2 * math.Pi * float64(k) / float64(nfft)
		var re, im float64
		for i, c := range coeffs {
			re += c * math.Cos(float64(i)*omega)
			im -= c * math.Sin(float64(i)*omega)
		}
		if mag := math.Hypot(re, im); mag > 0 {
			envelope[k] = gain / mag
		}
	}
	return envelope
}
