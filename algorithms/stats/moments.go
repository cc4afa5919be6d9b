package stats

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrNoWeight is returned when the weights sum to zero.
var ErrNoWeight = errors.New("weights sum to zero")

// MomentResult holds the shape of a weighted distribution.
type MomentResult struct {
	Mean     float64 `json:"mean"`     // first raw moment
	Variance float64 `json:"variance"` // second central moment
	StdDev   float64 `json:"std_dev"`
	Skewness float64 `json:"skewness"` // m3 / m2^1.5
	Kurtosis float64 `json:"kurtosis"` // excess, m4 / m2^2 - 3
}

// WeightedMoments treats weights as a distribution over x, e.g. spectral
// power over bin frequencies. Skewness and kurtosis are NaN for a
// distribution without spread.
func WeightedMoments(x, weights []float64) (MomentResult, error) {
	if len(x) == 0 || len(x) != len(weights) {
		return MomentResult{}, errors.New("values and weights must be non-empty and equal in length")
	}
	if floats.Sum(weights) <= 0 {
		return MomentResult{}, ErrNoWeight
	}

	mean := stat.Mean(x, weights)
	m2 := stat.Moment(2, x, weights)
	m3 := stat.Moment(3, x, weights)
	m4 := stat.Moment(4, x, weights)

	res := MomentResult{
		Mean:     mean,
		Variance: m2,
		StdDev:   math.Sqrt(m2),
		Skewness: math.NaN(),
		Kurtosis: math.NaN(),
	}
	if m2 > 0 {
		res.Skewness = m3 / (m2 * math.Sqrt(m2))
		res.Kurtosis = m4/(m2*m2) - 3
	}
	return res, nil
}

// MeanStdDev returns the mean and sample standard deviation of the finite
// values in data. Both are NaN without values; the deviation is NaN for a
// single value.
func MeanStdDev(data []float64) (mean, std float64) {
	finite := Finite(data)
	switch len(finite) {
	case 0:
		return math.NaN(), math.NaN()
	case 1:
		return finite[0], math.NaN()
	}
	return stat.MeanStdDev(finite, nil)
}

// Finite returns the values of data that are neither NaN nor infinite.
func Finite(data []float64) []float64 {
	out := make([]float64, 0, len(data))
	for _, v := range data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}
