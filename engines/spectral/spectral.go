// Package spectral is the frame-based spectral engine. It resamples audio
// to a fixed analysis rate and returns every descriptor as a contour of
// centred STFT frames.
package spectral

import (
	"context"
	"fmt"

	"github.com/RyanBlaney/sonido-voice/algorithms/spectral"
	"github.com/RyanBlaney/sonido-voice/algorithms/temporal"
	"github.com/RyanBlaney/sonido-voice/algorithms/windowing"
	"github.com/RyanBlaney/sonido-voice/audio"
	"github.com/RyanBlaney/sonido-voice/engines"
	"github.com/RyanBlaney/sonido-voice/logging"
	"github.com/RyanBlaney/sonido-voice/series"
	"github.com/RyanBlaney/sonido-voice/transcode"
)

// Feature names accepted by Analysis.Feature.
const (
	Centroid     = "Centroid"
	Bandwidth    = "Bandwidth"
	Contrast     = "Contrast"
	Flatness     = "Flatness"
	Rolloff      = "Rolloff"
	ZeroCrossing = "Zero-Crossing"
	RMS          = "RMS"
	Envelope     = "Envelope"
)

// FeatureNames lists every series the engine produces.
var FeatureNames = []string{Centroid, Bandwidth, Contrast, Flatness, Rolloff, ZeroCrossing, RMS, Envelope}

// Config holds the analysis parameters.
type Config struct {
	SampleRate       int     `json:"sample_rate" yaml:"sample_rate" mapstructure:"sample_rate"`
	FFTSize          int     `json:"fft_size" yaml:"fft_size" mapstructure:"fft_size"`
	HopSize          int     `json:"hop_size" yaml:"hop_size" mapstructure:"hop_size"`
	Center           bool    `json:"center" yaml:"center" mapstructure:"center"`
	RolloffPercent   float64 `json:"rolloff_percent" yaml:"rolloff_percent" mapstructure:"rolloff_percent"`
	ContrastBands    int     `json:"contrast_bands" yaml:"contrast_bands" mapstructure:"contrast_bands"`
	ContrastFMin     float64 `json:"contrast_fmin" yaml:"contrast_fmin" mapstructure:"contrast_fmin"`
	ContrastQuantile float64 `json:"contrast_quantile" yaml:"contrast_quantile" mapstructure:"contrast_quantile"`
}

// DefaultConfig returns librosa's defaults.
func DefaultConfig() Config {
	return Config{
		SampleRate:       22050,
		FFTSize:          2048,
		HopSize:          512,
		Center:           true,
		RolloffPercent:   0.85,
		ContrastBands:    6,
		ContrastFMin:     200,
		ContrastQuantile: 0.02,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("invalid sample rate: %d", c.SampleRate)
	case c.FFTSize <= 0 || c.FFTSize&(c.FFTSize-1) != 0:
		return fmt.Errorf("fft size must be a positive power of two, got %d", c.FFTSize)
	case c.HopSize <= 0 || c.HopSize > c.FFTSize:
		return fmt.Errorf("invalid hop size: %d", c.HopSize)
	case c.RolloffPercent <= 0 || c.RolloffPercent >= 1:
		return fmt.Errorf("rolloff percent must be in (0, 1), got %v", c.RolloffPercent)
	case c.ContrastBands <= 0:
		return fmt.Errorf("invalid contrast band count: %d", c.ContrastBands)
	case c.ContrastFMin <= 0 || c.ContrastFMin*float64(int(1)<<(c.ContrastBands-1)) >= float64(c.SampleRate)/2:
		return fmt.Errorf("contrast bands from %v Hz exceed the Nyquist frequency", c.ContrastFMin)
	case c.ContrastQuantile <= 0 || c.ContrastQuantile >= 1:
		return fmt.Errorf("contrast quantile must be in (0, 1), got %v", c.ContrastQuantile)
	}
	return nil
}

// Analysis holds the frame-aligned descriptors of one waveform. All frame
// contours share start and step; Envelope runs at the sample rate.
type Analysis struct {
	SampleRate   int
	Centroid     *series.Contour
	Bandwidth    *series.Contour
	Flatness     *series.Contour
	Rolloff      *series.Contour
	ZeroCrossing *series.Contour
	RMS          *series.Contour
	Envelope     *series.Contour
	// Contrast holds one contour per octave band plus the residual band.
	Contrast []*series.Contour
}

// Feature returns the named series. Contrast resolves to the lowest band.
func (a *Analysis) Feature(name string) (*series.Contour, error) {
	switch name {
	case Centroid:
		return a.Centroid, nil
	case Bandwidth:
		return a.Bandwidth, nil
	case Contrast:
		return a.Contrast[0], nil
	case Flatness:
		return a.Flatness, nil
	case Rolloff:
		return a.Rolloff, nil
	case ZeroCrossing:
		return a.ZeroCrossing, nil
	case RMS:
		return a.RMS, nil
	case Envelope:
		return a.Envelope, nil
	}
	return nil, fmt.Errorf("unknown spectral feature %q", name)
}

// Engine runs the analysis. It is safe for concurrent use.
type Engine struct {
	config Config
	logger logging.Logger
}

// New creates an engine.
func New(config Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid spectral config: %w", err)
	}
	return &Engine{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "spectral_engine",
		}),
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.config }

// Analyze computes every descriptor of w.
func (e *Engine) Analyze(ctx context.Context, w *audio.Waveform) (*Analysis, error) {
	if w == nil || w.Len() == 0 {
		return nil, engines.Unavailable(engines.Spectral, "no audio", audio.ErrEmptyWaveform)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resampled, err := transcode.ResampleWaveform(w, e.config.SampleRate)
	if err != nil {
		return nil, engines.Unavailable(engines.Spectral, "cannot resample", err)
	}
	signal := resampled.Samples()
	sr := e.config.SampleRate
	nfft := e.config.FFTSize

	stft, err := spectral.NewSTFT().Compute(signal, sr, spectral.STFTParams{
		WindowSize: nfft,
		HopSize:    e.config.HopSize,
		FFTSize:    nfft,
		Center:     e.config.Center,
		PadMode:    spectral.PadConstant,
	}, windowing.NewHann(nfft, false))
	if err != nil {
		return nil, engines.Unavailable(engines.Spectral, "stft failed", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mag := stft.Magnitude
	centroids := spectral.NewSpectralCentroid(sr, nfft).ComputeFrames(mag)
	bandwidths := spectral.NewSpectralBandwidth(sr, nfft, 2).ComputeFrames(mag, centroids)
	flatness := spectral.NewSpectralFlatness().ComputeFrames(stft.Power())
	rolloff := spectral.NewSpectralRolloff(sr, nfft, e.config.RolloffPercent).ComputeFrames(mag)
	contrast := spectral.NewSpectralContrast(sr, nfft, e.config.ContrastBands, e.config.ContrastFMin, e.config.ContrastQuantile).ComputeFrames(mag)
	zcr := spectral.NewZeroCrossingRate(nfft, e.config.HopSize, e.config.Center).ComputeFrames(signal)
	rms := temporal.NewEnergy(nfft, e.config.HopSize, e.config.Center).ComputeRMS(signal)
	envelope := temporal.NewEnvelope().ComputeHilbert(signal)

	start := stft.FrameTime(0)
	step := float64(e.config.HopSize) / float64(sr)
	frames := func(values []float64) *series.Contour {
		// ZCR and RMS frame the signal themselves; align them to the STFT
		aligned := make([]series.Measurement, stft.TimeFrames)
		for i := range aligned {
			if i < len(values) {
				aligned[i] = series.Of(values[i])
			}
		}
		// step is positive, so construction cannot fail
		c, _ := series.FromMeasurements(start, step, aligned)
		return c
	}

	analysis := &Analysis{
		SampleRate:   sr,
		Centroid:     frames(centroids),
		Bandwidth:    frames(bandwidths),
		Flatness:     frames(flatness),
		Rolloff:      frames(rolloff),
		ZeroCrossing: frames(zcr),
		RMS:          frames(rms),
	}
	analysis.Envelope, _ = series.NewContour(0, 1/float64(sr), envelope, nil)
	for _, row := range contrast {
		analysis.Contrast = append(analysis.Contrast, frames(row))
	}

	e.logger.Debug("Spectral analysis complete", logging.Fields{
		"function":    "Analyze",
		"source":      w.Source(),
		"frames":      stft.TimeFrames,
		"sample_rate": sr,
		"duration":    resampled.Duration(),
	})
	return analysis, nil
}
