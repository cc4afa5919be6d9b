package speech

import (
	"errors"
	"math"
	"math/cmplx"
	"math/rand"
	"sort"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// ar2 generates x[n] = -a1*x[n-1] - a2*x[n-2] + e[n].
func ar2(a1, a2 float64, n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	x := make([]float64, n)
	for i := range x {
		v := rng.NormFloat64()
		if i >= 1 {
			v -= a1 * x[i-1]
		}
		if i >= 2 {
			v -= a2 * x[i-2]
		}
		x[i] = v
	}
	return x
}

func TestBurgRecoversAR2(t *testing.T) {
	x := ar2(-1.6, 0.8, 20000, 1)

	a, energy, err := Burg(x, 2)
	if err != nil {
		t.Fatal(err)
	}
	if a[0] != 1 || !almostEqual(a[1], -1.6, 0.03) || !almostEqual(a[2], 0.8, 0.03) {
		t.Fatalf("Burg coefficients = %v, want [1 -1.6 0.8]", a)
	}
	if !almostEqual(energy, 1, 0.1) {
		t.Errorf("residual energy = %v, want ~1", energy)
	}
}

func TestLevinsonAgreesWithBurg(t *testing.T) {
	x := ar2(-1.2, 0.5, 20000, 2)

	lev, _, err := Levinson(Autocorrelate(x, 2), 2)
	if err != nil {
		t.Fatal(err)
	}
	burg, _, _ := Burg(x, 2)
	for i := range lev {
		if !almostEqual(lev[i], burg[i], 0.02) {
			t.Fatalf("levinson %v vs burg %v", lev, burg)
		}
	}
}

func TestZeroEnergy(t *testing.T) {
	if _, _, err := Burg(make([]float64, 100), 4); !errors.Is(err, ErrZeroEnergy) {
		t.Errorf("Burg on silence: %v", err)
	}
	if _, _, err := Levinson(make([]float64, 5), 4); !errors.Is(err, ErrZeroEnergy) {
		t.Errorf("Levinson on silence: %v", err)
	}
	if _, _, err := Burg(make([]float64, 3), 4); err == nil {
		t.Error("short signal accepted")
	}
}

func TestRoots(t *testing.T) {
	// (1 - 0.5 z^-1)(1 + 0.25 z^-1) = 1 - 0.25 z^-1 - 0.125 z^-2
	roots, err := Roots([]float64{1, -0.25, -0.125})
	if err != nil {
		t.Fatal(err)
	}
	got := []float64{real(roots[0]), real(roots[1])}
	sort.Float64s(got)
	if !almostEqual(got[0], -0.25, 1e-9) || !almostEqual(got[1], 0.5, 1e-9) {
		t.Fatalf("roots = %v", roots)
	}
}

func TestResonancesFromPolePair(t *testing.T) {
	const fs = 16000
	freq, bw := 700.0, 80.0
	r := math.Exp(-math.Pi * bw / fs)
	pole := cmplx.Rect(r, 2*math.Pi*freq/fs)
	// A(z) = 1 - 2 Re(p) z^-1 + |p|^2 z^-2
	coeffs := []float64{1, -2 * real(pole), r * r}

	res, err := NewLPCAnalyzer(fs, 2, LPCBurg).Resonances(coeffs, 50, 7950)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 {
		t.Fatalf("resonances = %v", res)
	}
	if !almostEqual(res[0].Frequency, freq, 1e-6) || !almostEqual(res[0].Bandwidth, bw, 1e-6) {
		t.Errorf("resonance = %+v, want %v Hz / %v Hz", res[0], freq, bw)
	}
}

func TestFormantAnalyzerFindsResonance(t *testing.T) {
	const fs = 16000
	// a noise-excited two-pole resonator at 1000 Hz
	r := math.Exp(-math.Pi * 60 / fs)
	theta := 2 * math.Pi * 1000 / fs
	x := ar2(-2*r*math.Cos(theta), r*r, 4000, 3)

	fa, err := NewFormantAnalyzer(fs, FormantParams{MaxFormants: 4.5, MaxFormant: 4700, WindowSize: 800})
	if err != nil {
		t.Fatal(err)
	}
	formants, err := fa.Analyze(x[1000:1800])
	if err != nil {
		t.Fatal(err)
	}

	found := false
	for _, f := range formants {
		if math.Abs(f.Frequency-1000) < 60 {
			found = true
		}
		if f.Frequency <= 50 || f.Frequency >= 4650 {
			t.Errorf("formant %v outside search range", f.Frequency)
		}
	}
	if !found {
		t.Errorf("no formant near 1000 Hz in %v", formants)
	}

	silent, err := fa.Analyze(make([]float64, 800))
	if err != nil || len(silent) != 0 {
		t.Errorf("silent frame = %v, %v", silent, err)
	}
	if _, err := fa.Analyze(make([]float64, 10)); err == nil {
		t.Error("wrong frame size accepted")
	}
}

func TestJitterOfAlternatingPeriods(t *testing.T) {
	params := DefaultPerturbationParams()
	pulses := []float64{0}
	for i := range 10 {
		p := 0.010
		if i%2 == 1 {
			p = 0.011
		}
		pulses = append(pulses, pulses[len(pulses)-1]+p)
	}

	periods := Periods(pulses, params)
	j := ComputeJitter(periods, params)

	if !almostEqual(j.LocalAbsolute, 0.001, 1e-12) {
		t.Errorf("local absolute = %v", j.LocalAbsolute)
	}
	if !almostEqual(j.Local, 0.001/0.0105, 1e-9) {
		t.Errorf("local = %v", j.Local)
	}
	if !almostEqual(j.DDP, 3*j.RAP, 1e-12) {
		t.Errorf("ddp %v != 3*rap %v", j.DDP, j.RAP)
	}
	if math.IsNaN(j.PPQ5) {
		t.Error("ppq5 undefined")
	}
}

func TestJitterRespectsLimits(t *testing.T) {
	params := DefaultPerturbationParams()

	// periods above the 20 ms ceiling are all discarded
	slow := Periods([]float64{0, 0.03, 0.06, 0.09, 0.12}, params)
	if j := ComputeJitter(slow, params); !math.IsNaN(j.Local) {
		t.Errorf("jitter over invalid periods = %v", j.Local)
	}

	// a 2x jump exceeds the period factor, leaving no valid pair
	jump := []float64{0.005, 0.010}
	if j := ComputeJitter(jump, params); !math.IsNaN(j.LocalAbsolute) {
		t.Errorf("jitter across a jump = %v", j.LocalAbsolute)
	}

	if j := ComputeJitter(nil, params); !math.IsNaN(j.Local) || !math.IsNaN(j.DDP) {
		t.Errorf("jitter of nothing = %+v", j)
	}
}

func TestShimmer(t *testing.T) {
	params := DefaultPerturbationParams()
	periods := []float64{0.01, 0.01, 0.01, 0.01, 0.01, 0.01}
	amps := []float64{1, 0.8, 1, 0.8, 1, 0.8}

	s := ComputeShimmer(periods, amps, params)
	if !almostEqual(s.Local, 0.2/0.9, 1e-12) {
		t.Errorf("local = %v", s.Local)
	}
	if !almostEqual(s.LocalDB, 20*math.Log10(1/0.8), 1e-12) {
		t.Errorf("local dB = %v", s.LocalDB)
	}
	if !almostEqual(s.DDA, 3*s.APQ3, 1e-12) {
		t.Errorf("dda %v != 3*apq3 %v", s.DDA, s.APQ3)
	}
	if !math.IsNaN(s.APQ11) {
		t.Errorf("apq11 over 6 cycles = %v, want NaN", s.APQ11)
	}

	constant := ComputeShimmer(periods, []float64{1, 1, 1, 1, 1, 1}, params)
	if constant.Local != 0 || constant.LocalDB != 0 {
		t.Errorf("constant amplitude shimmer = %+v", constant)
	}

	silent := ComputeShimmer(periods, make([]float64, 6), params)
	if !math.IsNaN(silent.Local) || !math.IsNaN(silent.LocalDB) {
		t.Errorf("zero amplitude shimmer = %+v", silent)
	}
}

func TestHarmonicsToNoise(t *testing.T) {
	if got := HarmonicsToNoise(0.5); !almostEqual(got, 0, 1e-12) {
		t.Errorf("HNR(0.5) = %v", got)
	}
	if got := HarmonicsToNoise(0.99); !almostEqual(got, 10*math.Log10(99), 1e-9) {
		t.Errorf("HNR(0.99) = %v", got)
	}
	if !math.IsNaN(HarmonicsToNoise(0)) {
		t.Error("HNR(0) should be NaN")
	}
	if math.IsInf(HarmonicsToNoise(1), 0) {
		t.Error("HNR(1) should be finite")
	}
}

func TestGlottalCycles(t *testing.T) {
	g := NewGlottalAnalyzer(16000)

	// a sawtooth-like derivative with a sharp negative spike every 100 samples
	derivative := make([]float64, 1000)
	for i := range derivative {
		if i%100 == 60 {
			derivative[i] = -1
		} else {
			derivative[i] = 0.01
		}
	}

	gcis := g.ClosureInstants(derivative, 100)
	if len(gcis) < 8 {
		t.Fatalf("gcis = %v", gcis)
	}
	for i, gci := range gcis {
		if gci%100 != 60 {
			t.Fatalf("gci %d at %d", i, gci)
		}
	}

	flow := make([]float64, len(derivative))
	acc := 0.0
	for i, d := range derivative {
		acc += d
		flow[i] = acc
	}
	cycles := g.Cycles(flow, derivative, gcis)
	if len(cycles) != len(gcis)-1 {
		t.Fatalf("cycles = %d", len(cycles))
	}
	for _, c := range cycles {
		if c.NAQ <= 0 || c.QOQ <= 0 || c.QOQ > 1 {
			t.Errorf("cycle %+v out of range", c)
		}
	}
}

func TestHarmonicLevels(t *testing.T) {
	const fs = 16000
	flow := make([]float64, 3200)
	for i := range flow {
		ts := float64(i) / fs
		flow[i] = math.Sin(2*math.Pi*200*ts) + 0.5*math.Sin(2*math.Pi*400*ts)
	}

	h1h2, hrf, err := NewGlottalAnalyzer(fs).HarmonicLevels(flow, 200)
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(h1h2, 20*math.Log10(2), 1) {
		t.Errorf("H1-H2 = %v, want ~6 dB", h1h2)
	}
	if !almostEqual(hrf, 10*math.Log10(0.25), 1.5) {
		t.Errorf("HRF = %v, want ~-6 dB", hrf)
	}

	if _, _, err := NewGlottalAnalyzer(fs).HarmonicLevels(flow, 0); err == nil {
		t.Error("zero f0 accepted")
	}
}

func TestInverseFilterShapes(t *testing.T) {
	const fs = 16000
	x := ar2(-1.6, 0.8, 3200, 9)
	flow, derivative, err := NewGlottalAnalyzer(fs).InverseFilter(x)
	if err != nil {
		t.Fatal(err)
	}
	if len(flow) != len(x) || len(derivative) != len(x) {
		t.Fatalf("lengths %d/%d", len(flow), len(derivative))
	}
	if _, _, err := NewGlottalAnalyzer(fs).InverseFilter(x[:10]); err == nil {
		t.Error("short frame accepted")
	}
}
