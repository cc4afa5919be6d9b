package speech

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-voice/algorithms/filters"
	"github.com/RyanBlaney/sonido-voice/algorithms/spectral"
	"github.com/RyanBlaney/sonido-voice/algorithms/windowing"
)

// GlottalAnalyzer recovers the glottal source from a voiced frame by LPC
// inverse filtering and measures its cycles.
type GlottalAnalyzer struct {
	sampleRate int
	lpc        *LPCAnalyzer
	leak       float64
	fft        *spectral.FFT
}

// GlottalCycle holds the measures of one glottal cycle.
type GlottalCycle struct {
	Start  int     `json:"start"`  // sample index of the opening GCI
	Length int     `json:"length"` // samples to the next GCI
	NAQ    float64 `json:"naq"`    // normalised amplitude quotient
	QOQ    float64 `json:"qoq"`    // quasi-open quotient
}

// NewGlottalAnalyzer creates an analyzer using an LPC vocal tract model of
// order 2 + fs/1000.
func NewGlottalAnalyzer(sampleRate int) *GlottalAnalyzer {
	return &GlottalAnalyzer{
		sampleRate: sampleRate,
		lpc:        NewLPCAnalyzer(sampleRate, 0, LPCAutocorrelation),
		leak:       0.99,
		fft:        spectral.NewFFT(),
	}
}

// InverseFilter removes the vocal tract from frame and returns the glottal
// flow and its derivative. The tract model is fitted on a pre-emphasised,
// Hamming-windowed copy so the source's spectral tilt does not bias it.
func (g *GlottalAnalyzer) InverseFilter(frame []float64) (flow, derivative []float64, err error) {
	if len(frame) <= g.lpc.Order()*2 {
		return nil, nil, fmt.Errorf("frame of %d samples too short", len(frame))
	}

	clean := filters.NewDCRemoval(0.995).Process(frame)

	pe, err := filters.NewPreEmphasis(0.97)
	if err != nil {
		return nil, nil, err
	}
	fit := windowing.NewHamming(len(clean), true).Apply(pe.Process(clean))

	model, err := g.lpc.Analyze(fit)
	if err != nil {
		return nil, nil, fmt.Errorf("vocal tract model: %w", err)
	}

	derivative = InverseFilter(clean, model.Coefficients)
	flow = filters.Integrate(derivative, g.leak)
	return flow, derivative, nil
}

// ClosureInstants finds glottal closure instants as the most negative
// peaks of the flow derivative, one per period. period is in samples.
func (g *GlottalAnalyzer) ClosureInstants(derivative []float64, period float64) []int {
	if period < 2 || len(derivative) < int(period) {
		return nil
	}

	var gcis []int
	first := argMin(derivative, 0, int(period))
	gcis = append(gcis, first)

	for {
		last := gcis[len(gcis)-1]
		lo := last + int(math.Round(0.7*period))
		hi := last + int(math.Round(1.3*period))
		if hi >= len(derivative) {
			break
		}
		gcis = append(gcis, argMin(derivative, lo, hi+1))
	}
	return gcis
}

// Cycles measures NAQ and QOQ for every pair of consecutive closures.
func (g *GlottalAnalyzer) Cycles(flow, derivative []float64, gcis []int) []GlottalCycle {
	var cycles []GlottalCycle
	for i := 0; i+1 < len(gcis); i++ {
		lo, hi := gcis[i], gcis[i+1]
		n := hi - lo
		if n < 2 {
			continue
		}

		fMin, fMax := math.Inf(1), math.Inf(-1)
		dMin := math.Inf(1)
		for j := lo; j < hi; j++ {
			fMin = math.Min(fMin, flow[j])
			fMax = math.Max(fMax, flow[j])
			dMin = math.Min(dMin, derivative[j])
		}
		acFlow := fMax - fMin
		if acFlow <= 0 || dMin >= 0 {
			continue
		}

		half := fMin + 0.5*acFlow
		open := 0
		for j := lo; j < hi; j++ {
			if flow[j] > half {
				open++
			}
		}

		cycles = append(cycles, GlottalCycle{
			Start:  lo,
			Length: n,
			// derivative is per sample, so d_peak*T reduces to |dMin|*n
			NAQ: acFlow / (-dMin * float64(n)),
			QOQ: float64(open) / float64(n),
		})
	}
	return cycles
}

// HarmonicLevels returns the H1-H2 difference and the harmonic richness
// factor, both in dB, for a flow segment with fundamental f0. HRF sums the
// harmonics 2..n below 5 kHz relative to the first.
func (g *GlottalAnalyzer) HarmonicLevels(flow []float64, f0 float64) (h1h2, hrf float64, err error) {
	if f0 <= 0 || len(flow) < 4 {
		return 0, 0, fmt.Errorf("cannot measure harmonics at f0 %v over %d samples", f0, len(flow))
	}

	nfft := max(spectral.NextPowerOfTwo(len(flow)), 4096)
	windowed := windowing.NewHann(len(flow), true).Apply(flow)
	mag := spectral.Magnitude(g.fft.ComputePadded(windowed, nfft), nfft)
	binHz := float64(g.sampleRate) / float64(nfft)

	harmonic := func(k int) float64 {
		centre := float64(k) * f0 / binHz
		lo := max(int(centre-0.1*f0/binHz), 0)
		hi := min(int(centre+0.1*f0/binHz)+1, len(mag)-1)
		peak := 0.0
		for i := lo; i <= hi; i++ {
			peak = math.Max(peak, mag[i])
		}
		return peak
	}

	h1 := harmonic(1)
	h2 := harmonic(2)
	if h1 <= 0 || h2 <= 0 {
		return 0, 0, fmt.Errorf("no harmonic energy at f0 %v", f0)
	}

	upper := 0.0
	limit := math.Min(5000, float64(g.sampleRate)/2-f0)
	for k := 2; float64(k)*f0 <= limit; k++ {
		h := harmonic(k)
		upper += h * h
	}

	h1h2 = 20 * math.Log10(h1/h2)
	hrf = 10 * math.Log10(upper/(h1*h1))
	return h1h2, hrf, nil
}

func argMin(x []float64, lo, hi int) int {
	lo = max(lo, 0)
	hi = min(hi, len(x))
	best := lo
	for i := lo; i < hi; i++ {
		if x[i] < x[best] {
			best = i
		}
	}
	return best
}
