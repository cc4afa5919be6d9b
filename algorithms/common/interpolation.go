package common

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ParabolicPeak fits a parabola through three equally spaced points around
// a local maximum at y1. It returns the peak offset from the middle point in
// (-0.5, 0.5) and the interpolated height.
func ParabolicPeak(y0, y1, y2 float64) (offset, height float64) {
	denom := y0 - 2*y1 + y2
	if denom == 0 {
		return 0, y1
	}
	offset = 0.5 * (y0 - y2) / denom
	height = y1 - 0.25*(y0-y2)*offset
	return offset, height
}

// Interpolate performs linear interpolation of the samples (x, y) at xi.
// x must be increasing; values outside the range are clamped.
func Interpolate(x, y []float64, xi float64) float64 {
	if len(x) != len(y) || len(x) == 0 {
		return 0
	}
	if xi <= x[0] {
		return y[0]
	}
	if xi >= x[len(x)-1] {
		return y[len(y)-1]
	}

	// Binary search for the interval
	left, right := 0, len(x)-1
	for right-left > 1 {
		mid := (left + right) / 2
		if x[mid] <= xi {
			left = mid
		} else {
			right = mid
		}
	}

	t := (xi - x[left]) / (x[right] - x[left])
	return y[left] + t*(y[right]-y[left])
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// SubtractMean returns a copy of data with its mean removed.
func SubtractMean(data []float64) []float64 {
	out := make([]float64, len(data))
	copy(out, data)
	floats.AddConst(-Mean(data), out)
	return out
}

// AbsMax returns the largest absolute value in data.
func AbsMax(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return max(floats.Max(data), -floats.Min(data))
}

// Clamp constrains a value to a range
func Clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
