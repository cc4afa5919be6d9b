package spectral

import (
	"math"
)

// ZeroCrossingRate computes the fraction of sign changes per frame.
// High ZCR indicates fricatives/unvoiced speech, low ZCR voiced speech.
type ZeroCrossingRate struct {
	frameSize int
	hopSize   int
	center    bool
	threshold float64
}

// NewZeroCrossingRate creates a framed ZCR calculator. Centred frames are
// edge-padded by frameSize/2 so frame i is centred on sample i*hopSize.
func NewZeroCrossingRate(frameSize, hopSize int, center bool) *ZeroCrossingRate {
	return &ZeroCrossingRate{
		frameSize: frameSize,
		hopSize:   hopSize,
		center:    center,
		threshold: 1e-10,
	}
}

// Compute returns crossings / len(frame) for a single frame. Samples within
// the threshold of zero count as zero, and zero counts as positive.
func (zcr *ZeroCrossingRate) Compute(frame []float64) float64 {
	if len(frame) < 2 {
		return 0.0
	}

	crossings := 0
	prev := zcr.positive(frame[0])
	for _, v := range frame[1:] {
		cur := zcr.positive(v)
		if cur != prev {
			crossings++
		}
		prev = cur
	}
	return float64(crossings) / float64(len(frame))
}

func (zcr *ZeroCrossingRate) positive(v float64) bool {
	if math.Abs(v) <= zcr.threshold {
		return true
	}
	return v >= 0
}

// ComputeFrames calculates ZCR for overlapping frames of a signal
func (zcr *ZeroCrossingRate) ComputeFrames(signal []float64) []float64 {
	if len(signal) == 0 || zcr.frameSize <= 0 || zcr.hopSize <= 0 {
		return []float64{}
	}

	padded := signal
	if zcr.center {
		padded = Pad(signal, zcr.frameSize/2, PadEdge)
	}
	if len(padded) < zcr.frameSize {
		return []float64{}
	}

	numFrames := (len(padded)-zcr.frameSize)/zcr.hopSize + 1
	rates := make([]float64, numFrames)
	for i := range numFrames {
		start := i * zcr.hopSize
		rates[i] = zcr.Compute(padded[start : start+zcr.frameSize])
	}
	return rates
}
