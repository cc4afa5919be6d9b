package speech

import (
	"math"
)

// PerturbationParams bounds which glottal cycles take part in jitter and
// shimmer measurements, following the usual phonetic conventions.
type PerturbationParams struct {
	PeriodFloor        float64 `json:"period_floor"`         // Shortest accepted period in seconds (0.0001)
	PeriodCeiling      float64 `json:"period_ceiling"`       // Longest accepted period in seconds (0.02)
	MaxPeriodFactor    float64 `json:"max_period_factor"`    // Largest ratio between consecutive periods (1.3)
	MaxAmplitudeFactor float64 `json:"max_amplitude_factor"` // Largest ratio between consecutive amplitudes (1.6)
}

// DefaultPerturbationParams returns 0.0001 / 0.02 / 1.3 / 1.6.
func DefaultPerturbationParams() PerturbationParams {
	return PerturbationParams{
		PeriodFloor:        0.0001,
		PeriodCeiling:      0.02,
		MaxPeriodFactor:    1.3,
		MaxAmplitudeFactor: 1.6,
	}
}

// Jitter holds cycle-to-cycle period perturbation measures. Each value is
// NaN when too few valid cycles exist.
type Jitter struct {
	Local         float64 `json:"local"`
	LocalAbsolute float64 `json:"local_absolute"`
	RAP           float64 `json:"rap"`
	PPQ5          float64 `json:"ppq5"`
	DDP           float64 `json:"ddp"`
}

// Shimmer holds cycle-to-cycle amplitude perturbation measures. Each value
// is NaN when too few valid cycles exist.
type Shimmer struct {
	Local   float64 `json:"local"`
	LocalDB float64 `json:"local_db"`
	APQ3    float64 `json:"apq3"`
	APQ5    float64 `json:"apq5"`
	APQ11   float64 `json:"apq11"`
	DDA     float64 `json:"dda"`
}

// Periods converts glottal pulse times to periods. Periods outside
// [floor, ceiling] are returned as NaN so they break runs of consecutive
// cycles.
func Periods(pulses []float64, params PerturbationParams) []float64 {
	if len(pulses) < 2 {
		return nil
	}
	periods := make([]float64, len(pulses)-1)
	for i := range periods {
		p := pulses[i+1] - pulses[i]
		if p < params.PeriodFloor || p > params.PeriodCeiling {
			p = math.NaN()
		}
		periods[i] = p
	}
	return periods
}

// ComputeJitter measures period perturbation.
func ComputeJitter(periods []float64, params PerturbationParams) Jitter {
	mean := meanValid(periods)
	absolute := neighbourhoodDeviation(periods, 2, params.MaxPeriodFactor)

	return Jitter{
		Local:         absolute / mean,
		LocalAbsolute: absolute,
		RAP:           neighbourhoodDeviation(periods, 3, params.MaxPeriodFactor) / mean,
		PPQ5:          neighbourhoodDeviation(periods, 5, params.MaxPeriodFactor) / mean,
		DDP:           secondDifference(periods, params.MaxPeriodFactor) / mean,
	}
}

// ComputeShimmer measures amplitude perturbation. amplitudes[i] is the
// peak amplitude of the cycle with period periods[i]; cycles with invalid
// periods are ignored.
func ComputeShimmer(periods, amplitudes []float64, params PerturbationParams) Shimmer {
	n := min(len(periods), len(amplitudes))
	amps := make([]float64, n)
	for i := range n {
		if math.IsNaN(periods[i]) || !(amplitudes[i] > 0) {
			amps[i] = math.NaN()
		} else {
			amps[i] = amplitudes[i]
		}
	}
	if n > 0 && params.MaxPeriodFactor > 0 {
		// a cycle whose period jumps too far is not part of the same run
		for i := 1; i < n; i++ {
			if !withinFactor(periods[i-1], periods[i], params.MaxPeriodFactor) && !math.IsNaN(periods[i-1]) && !math.IsNaN(periods[i]) {
				amps[i] = math.NaN()
			}
		}
	}

	mean := meanValid(amps)

	dbSum, dbCount := 0.0, 0
	for i := 1; i < n; i++ {
		if withinFactor(amps[i-1], amps[i], params.MaxAmplitudeFactor) {
			dbSum += math.Abs(20 * math.Log10(amps[i]/amps[i-1]))
			dbCount++
		}
	}
	localDB := math.NaN()
	if dbCount > 0 {
		localDB = dbSum / float64(dbCount)
	}

	return Shimmer{
		Local:   neighbourhoodDeviation(amps, 2, params.MaxAmplitudeFactor) / mean,
		LocalDB: localDB,
		APQ3:    neighbourhoodDeviation(amps, 3, params.MaxAmplitudeFactor) / mean,
		APQ5:    neighbourhoodDeviation(amps, 5, params.MaxAmplitudeFactor) / mean,
		APQ11:   neighbourhoodDeviation(amps, 11, params.MaxAmplitudeFactor) / mean,
		DDA:     secondDifference(amps, params.MaxAmplitudeFactor) / mean,
	}
}

// HarmonicsToNoise converts a normalised autocorrelation peak r in (0,1)
// to dB.
func HarmonicsToNoise(r float64) float64 {
	if r <= 0 {
		return math.NaN()
	}
	r = math.Min(r, 1-1e-15)
	return 10 * math.Log10(r/(1-r))
}

// neighbourhoodDeviation averages how far each value departs from its
// k-point neighbourhood. k = 2 compares consecutive values directly;
// odd k compares the centre value with the neighbourhood mean.
func neighbourhoodDeviation(values []float64, k int, maxFactor float64) float64 {
	sum, count := 0.0, 0
	for start := 0; start+k <= len(values); start++ {
		window := values[start : start+k]
		if !validRun(window, maxFactor) {
			continue
		}
		if k == 2 {
			sum += math.Abs(window[1] - window[0])
		} else {
			centre := window[k/2]
			sum += math.Abs(centre - meanValid(window))
		}
		count++
	}
	if count == 0 {
		return math.NaN()
	}
	return sum / float64(count)
}

// secondDifference averages |(v[i+1]-v[i]) - (v[i]-v[i-1])|.
func secondDifference(values []float64, maxFactor float64) float64 {
	sum, count := 0.0, 0
	for i := 1; i+1 < len(values); i++ {
		if !validRun(values[i-1:i+2], maxFactor) {
			continue
		}
		sum += math.Abs((values[i+1] - values[i]) - (values[i] - values[i-1]))
		count++
	}
	if count == 0 {
		return math.NaN()
	}
	return sum / float64(count)
}

func validRun(window []float64, maxFactor float64) bool {
	for i, v := range window {
		if math.IsNaN(v) {
			return false
		}
		if i > 0 && !withinFactor(window[i-1], v, maxFactor) {
			return false
		}
	}
	return true
}

func withinFactor(a, b, factor float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) || a <= 0 || b <= 0 {
		return false
	}
	if factor <= 0 {
		return true
	}
	ratio := a / b
	return ratio <= factor && 1/ratio <= factor
}

func meanValid(values []float64) float64 {
	sum, count := 0.0, 0
	for _, v := range values {
		if !math.IsNaN(v) {
			sum += v
			count++
		}
	}
	if count == 0 {
		return math.NaN()
	}
	return sum / float64(count)
}
