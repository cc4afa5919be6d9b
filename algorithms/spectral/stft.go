package spectral

import (
	"fmt"
	"math/cmplx"
	"runtime"
	"sync"
)

// PadMode controls how a centred STFT extends the signal at its edges.
type PadMode int

const (
	// PadConstant pads with zeros (librosa's default).
	PadConstant PadMode = iota
	// PadReflect mirrors the signal around its first and last sample.
	PadReflect
	// PadEdge repeats the first and last sample.
	PadEdge
)

// STFT provides Short-Time Fourier Transform functionality
type STFT struct {
	fft *FFT
}

// STFTParams configures a transform. FFTSize defaults to WindowSize and
// may be larger, in which case each windowed frame is zero-padded.
type STFTParams struct {
	WindowSize int
	HopSize    int
	FFTSize    int
	Center     bool
	PadMode    PadMode
}

// STFTResult holds the result of STFT analysis
type STFTResult struct {
	Magnitude      [][]float64 `json:"magnitude"`       // Time x Frequency magnitude matrix
	TimeFrames     int         `json:"time_frames"`     // Number of time frames
	FreqBins       int         `json:"freq_bins"`       // Number of frequency bins
	SampleRate     int         `json:"sample_rate"`     // Sample rate
	FFTSize        int         `json:"fft_size"`        // FFT size
	HopSize        int         `json:"hop_size"`        // Hop size between frames
	Centered       bool        `json:"centered"`        // Frame i is centred on sample i*HopSize
	FreqResolution float64     `json:"freq_resolution"` // Frequency resolution (Hz/bin)
	TimeResolution float64     `json:"time_resolution"` // Time resolution (seconds/frame)
}

// Window interface for windowing functions
type Window interface {
	ApplyInPlace(signal []float64) error
	Size() int
}

// NewSTFT creates a new STFT calculator
func NewSTFT() *STFT {
	return &STFT{
		fft: NewFFT(),
	}
}

// FrameTime returns the time in seconds of frame i's centre.
func (r *STFTResult) FrameTime(i int) float64 {
	centre := i * r.HopSize
	if !r.Centered {
		centre += r.FFTSize / 2
	}
	return float64(centre) / float64(r.SampleRate)
}

// Power returns |X|^2 for every frame.
func (r *STFTResult) Power() [][]float64 {
	power := make([][]float64, len(r.Magnitude))
	for t, frame := range r.Magnitude {
		power[t] = make([]float64, len(frame))
		for k, m := range frame {
			power[t][k] = m * m
		}
	}
	return power
}

// Compute runs the transform over signal using window, spreading frames
// across a worker pool.
func (s *STFT) Compute(signal []float64, sampleRate int, params STFTParams, window Window) (*STFTResult, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}
	if params.WindowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}
	if params.HopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive")
	}
	if params.FFTSize == 0 {
		params.FFTSize = params.WindowSize
	}
	if params.FFTSize < params.WindowSize {
		return nil, fmt.Errorf("fft size %d smaller than window size %d", params.FFTSize, params.WindowSize)
	}
	if window != nil && window.Size() != params.WindowSize {
		return nil, fmt.Errorf("window has %d coefficients, want %d", window.Size(), params.WindowSize)
	}

	padded := signal
	if params.Center {
		padded = Pad(signal, params.FFTSize/2, params.PadMode)
	}

	numFrames := (len(padded)-params.FFTSize)/params.HopSize + 1
	if len(padded) < params.FFTSize || numFrames <= 0 {
		return nil, fmt.Errorf("signal too short for given window size and hop size")
	}

	freqBins := params.FFTSize/2 + 1
	magnitude := make([][]float64, numFrames)
	for i := range numFrames {
		magnitude[i] = make([]float64, freqBins)
	}

	// The window sits in the middle of each FFT-sized frame, as librosa
	// does when win_length < n_fft.
	offset := (params.FFTSize - params.WindowSize) / 2

	numWorkers := s.getOptimalWorkerCount(numFrames)
	jobs := make(chan int, numFrames)

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			segment := make([]float64, params.WindowSize)
			frameBuffer := make([]float64, params.FFTSize)

			for frameIdx := range jobs {
				start := frameIdx*params.HopSize + offset
				copy(segment, padded[start:start+params.WindowSize])
				if window != nil {
					// sizes were checked above
					_ = window.ApplyInPlace(segment)
				}

				clear(frameBuffer)
				copy(frameBuffer[offset:], segment)

				fftResult := s.fft.Compute(frameBuffer)
				for k := range freqBins {
					magnitude[frameIdx][k] = cmplx.Abs(fftResult[k])
				}
			}
		}()
	}

	for frameIdx := range numFrames {
		jobs <- frameIdx
	}
	close(jobs)
	wg.Wait()

	return &STFTResult{
		Magnitude:      magnitude,
		TimeFrames:     numFrames,
		FreqBins:       freqBins,
		SampleRate:     sampleRate,
		FFTSize:        params.FFTSize,
		HopSize:        params.HopSize,
		Centered:       params.Center,
		FreqResolution: float64(sampleRate) / float64(params.FFTSize),
		TimeResolution: float64(params.HopSize) / float64(sampleRate),
	}, nil
}

// Pad extends signal by n samples on both sides.
func Pad(signal []float64, n int, mode PadMode) []float64 {
	out := make([]float64, len(signal)+2*n)
	copy(out[n:], signal)
	last := len(signal) - 1

	for i := range n {
		switch mode {
		case PadReflect:
			// mirror without repeating the edge sample
			if idx := n - i; idx <= last {
				out[i] = signal[idx]
			}
			if idx := last - 1 - (n - 1 - i); idx >= 0 {
				out[len(out)-n+(n-1-i)] = signal[idx]
			}
		case PadEdge:
			out[i] = signal[0]
			out[len(out)-1-i] = signal[last]
		}
	}
	return out
}

// getOptimalWorkerCount determines the optimal number of workers based on workload
func (s *STFT) getOptimalWorkerCount(numFrames int) int {
	numCPU := runtime.NumCPU()

	if numFrames < 100 {
		return max(1, min(numCPU/2, numFrames))
	}
	if numFrames < 1000 {
		return min(numCPU, 8)
	}
	return numCPU
}
