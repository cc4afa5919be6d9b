package temporal

import (
	"math"

	"github.com/RyanBlaney/sonido-voice/algorithms/spectral"
)

// Energy computes frame-wise energy features
type Energy struct {
	frameSize int
	hopSize   int
	center    bool
}

// NewEnergy creates a new energy calculator. Centred frames are
// zero-padded by frameSize/2 on both sides.
func NewEnergy(frameSize, hopSize int, center bool) *Energy {
	return &Energy{
		frameSize: frameSize,
		hopSize:   hopSize,
		center:    center,
	}
}

// RMS returns the root mean square of one frame.
func RMS(frame []float64) float64 {
	if len(frame) == 0 {
		return 0
	}
	sumSquares := 0.0
	for _, v := range frame {
		sumSquares += v * v
	}
	return math.Sqrt(sumSquares / float64(len(frame)))
}

// ComputeRMS calculates RMS energy for overlapping frames
func (e *Energy) ComputeRMS(signal []float64) []float64 {
	if len(signal) == 0 || e.hopSize <= 0 || e.frameSize <= 0 {
		return []float64{}
	}

	padded := signal
	if e.center {
		padded = spectral.Pad(signal, e.frameSize/2, spectral.PadConstant)
	}
	if len(padded) < e.frameSize {
		return []float64{}
	}

	numFrames := (len(padded)-e.frameSize)/e.hopSize + 1
	energies := make([]float64, numFrames)
	for i := range numFrames {
		start := i * e.hopSize
		energies[i] = RMS(padded[start : start+e.frameSize])
	}
	return energies
}

// ComputeLogEnergy converts RMS frames to dB, flooring at floor.
func (e *Energy) ComputeLogEnergy(signal []float64, floor float64) []float64 {
	energies := e.ComputeRMS(signal)
	logEnergies := make([]float64, len(energies))
	for i, energy := range energies {
		logEnergies[i] = 20 * math.Log10(math.Max(energy, floor))
	}
	return logEnergies
}
