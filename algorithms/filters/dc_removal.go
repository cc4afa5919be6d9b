package filters

// DCRemoval implements the DC blocker y[n] = x[n] - x[n-1] + R*y[n-1].
//
// References:
//   - Julius O. Smith III, "Introduction to Digital Filters with Audio Applications"
//     https://ccrma.stanford.edu/~jos/filters/DC_Blocker.html
type DCRemoval struct {
	poleLocation float64
}

// NewDCRemoval creates a DC blocker with pole R (0.995 when R is out of
// range).
func NewDCRemoval(r float64) *DCRemoval {
	if r <= 0 || r >= 1 {
		r = 0.995
	}
	return &DCRemoval{poleLocation: r}
}

// Process returns the filtered signal.
func (dc *DCRemoval) Process(signal []float64) []float64 {
	out := make([]float64, len(signal))
	var x1, y1 float64
	for i, x := range signal {
		y := x - x1 + dc.poleLocation*y1
		out[i] = y
		x1, y1 = x, y
	}
	return out
}

// Integrate applies the leaky integrator y[n] = x[n] + ρ*y[n-1], the
// inverse of a pre-emphasis with the same coefficient. Glottal flow is
// recovered from its derivative this way.
func Integrate(signal []float64, rho float64) []float64 {
	out := make([]float64, len(signal))
	prev := 0.0
	for i, x := range signal {
		prev = x + rho*prev
		out[i] = prev
	}
	return out
}
