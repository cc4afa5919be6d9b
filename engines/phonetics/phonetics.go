// Package phonetics is a native phonetic analysis engine: pitch, formants,
// intensity, harmonicity, MFCC, glottal pulses with jitter and shimmer, and
// long-term spectrum moments, computed the way phoneticians' tools compute
// them so the numbers are comparable.
package phonetics

import (
	"context"
	"fmt"

	"github.com/RyanBlaney/sonido-voice/algorithms/speech"
	"github.com/RyanBlaney/sonido-voice/algorithms/tonal"
	"github.com/RyanBlaney/sonido-voice/audio"
	"github.com/RyanBlaney/sonido-voice/engines"
	"github.com/RyanBlaney/sonido-voice/logging"
)

// PitchParams configures pitch tracking.
type PitchParams struct {
	TimeStep float64 `json:"time_step" yaml:"time_step" mapstructure:"time_step"`
	Floor    float64 `json:"floor" yaml:"floor" mapstructure:"floor"`
	Ceiling  float64 `json:"ceiling" yaml:"ceiling" mapstructure:"ceiling"`
}

// FormantParams configures Burg formant analysis. WindowLength is half the
// duration of the Gaussian analysis window.
type FormantParams struct {
	TimeStep        float64 `json:"time_step" yaml:"time_step" mapstructure:"time_step"`
	MaxFormants     float64 `json:"max_formants" yaml:"max_formants" mapstructure:"max_formants"`
	MaxFormant      float64 `json:"max_formant" yaml:"max_formant" mapstructure:"max_formant"`
	WindowLength    float64 `json:"window_length" yaml:"window_length" mapstructure:"window_length"`
	PreEmphasisFrom float64 `json:"pre_emphasis_from" yaml:"pre_emphasis_from" mapstructure:"pre_emphasis_from"`
}

// IntensityParams configures the intensity contour.
type IntensityParams struct {
	TimeStep     float64 `json:"time_step" yaml:"time_step" mapstructure:"time_step"`
	MinPitch     float64 `json:"min_pitch" yaml:"min_pitch" mapstructure:"min_pitch"`
	SubtractMean bool    `json:"subtract_mean" yaml:"subtract_mean" mapstructure:"subtract_mean"`
}

// HarmonicityParams configures HNR analysis. A zero PeriodsPerWindow
// selects 4.5 for the ac method and 1 for cc.
type HarmonicityParams struct {
	TimeStep         float64           `json:"time_step" yaml:"time_step" mapstructure:"time_step"`
	Method           tonal.PitchMethod `json:"method" yaml:"method" mapstructure:"method"`
	MinPitch         float64           `json:"min_pitch" yaml:"min_pitch" mapstructure:"min_pitch"`
	SilenceThreshold float64           `json:"silence_threshold" yaml:"silence_threshold" mapstructure:"silence_threshold"`
	PeriodsPerWindow float64           `json:"periods_per_window" yaml:"periods_per_window" mapstructure:"periods_per_window"`
}

// MFCCParams configures cepstral analysis. NumCoefficients excludes c0.
type MFCCParams struct {
	TimeStep        float64 `json:"time_step" yaml:"time_step" mapstructure:"time_step"`
	WindowLength    float64 `json:"window_length" yaml:"window_length" mapstructure:"window_length"`
	NumCoefficients int     `json:"num_coefficients" yaml:"num_coefficients" mapstructure:"num_coefficients"`
	MaxFrequency    float64 `json:"max_frequency" yaml:"max_frequency" mapstructure:"max_frequency"`
}

// PointProcessParams bounds the pitch search behind pulse placement.
type PointProcessParams struct {
	Floor   float64 `json:"floor" yaml:"floor" mapstructure:"floor"`
	Ceiling float64 `json:"ceiling" yaml:"ceiling" mapstructure:"ceiling"`
}

// SpectrumParams configures the long-term spectrum moments.
type SpectrumParams struct {
	PreEmphasisFrom float64 `json:"pre_emphasis_from" yaml:"pre_emphasis_from" mapstructure:"pre_emphasis_from"`
	Power           float64 `json:"power" yaml:"power" mapstructure:"power"`
}

// Config groups the parameters of every analysis.
type Config struct {
	Pitch        PitchParams               `json:"pitch" yaml:"pitch" mapstructure:"pitch"`
	Formant      FormantParams             `json:"formant" yaml:"formant" mapstructure:"formant"`
	Intensity    IntensityParams           `json:"intensity" yaml:"intensity" mapstructure:"intensity"`
	Harmonicity  HarmonicityParams         `json:"harmonicity" yaml:"harmonicity" mapstructure:"harmonicity"`
	MFCC         MFCCParams                `json:"mfcc" yaml:"mfcc" mapstructure:"mfcc"`
	PointProcess PointProcessParams        `json:"point_process" yaml:"point_process" mapstructure:"point_process"`
	Perturbation speech.PerturbationParams `json:"perturbation" yaml:"perturbation" mapstructure:"perturbation"`
	Spectrum     SpectrumParams            `json:"spectrum" yaml:"spectrum" mapstructure:"spectrum"`
}

// DefaultConfig returns settings for 16 kHz speech with a 160 sample hop
// and a 400 sample window.
func DefaultConfig() Config {
	const (
		timeStep = 160.0 / 16000
		window   = 400.0 / 16000
	)
	return Config{
		Pitch: PitchParams{TimeStep: timeStep, Floor: 75, Ceiling: 600},
		Formant: FormantParams{
			TimeStep:        timeStep,
			MaxFormants:     4.5,
			MaxFormant:      4700,
			WindowLength:    window,
			PreEmphasisFrom: 50,
		},
		Intensity: IntensityParams{TimeStep: timeStep, MinPitch: 100, SubtractMean: true},
		Harmonicity: HarmonicityParams{
			TimeStep:         timeStep,
			Method:           tonal.PitchCrossCorrelation,
			MinPitch:         75,
			SilenceThreshold: 0.1,
		},
		MFCC: MFCCParams{
			TimeStep:        timeStep,
			WindowLength:    window,
			NumCoefficients: 12,
			MaxFrequency:    7600,
		},
		PointProcess: PointProcessParams{Floor: 75, Ceiling: 600},
		Perturbation: speech.DefaultPerturbationParams(),
		Spectrum:     SpectrumParams{PreEmphasisFrom: 80, Power: 2},
	}
}

// Validate checks the settings that cannot be corrected per call.
func (c Config) Validate() error {
	steps := map[string]float64{
		"pitch":       c.Pitch.TimeStep,
		"formant":     c.Formant.TimeStep,
		"intensity":   c.Intensity.TimeStep,
		"harmonicity": c.Harmonicity.TimeStep,
		"mfcc":        c.MFCC.TimeStep,
	}
	for name, step := range steps {
		if !(step > 0) {
			return fmt.Errorf("%s time step must be positive, got %v", name, step)
		}
	}
	switch {
	case !(c.Pitch.Floor > 0) || !(c.Pitch.Ceiling > c.Pitch.Floor):
		return fmt.Errorf("invalid pitch range %v-%v Hz", c.Pitch.Floor, c.Pitch.Ceiling)
	case !(c.PointProcess.Floor > 0) || !(c.PointProcess.Ceiling > c.PointProcess.Floor):
		return fmt.Errorf("invalid point process range %v-%v Hz", c.PointProcess.Floor, c.PointProcess.Ceiling)
	case !(c.Formant.MaxFormants > 0) || !(c.Formant.MaxFormant > 0) || !(c.Formant.WindowLength > 0):
		return fmt.Errorf("invalid formant settings %+v", c.Formant)
	case !(c.Intensity.MinPitch > 0):
		return fmt.Errorf("intensity minimum pitch must be positive, got %v", c.Intensity.MinPitch)
	case !(c.Harmonicity.MinPitch > 0):
		return fmt.Errorf("harmonicity minimum pitch must be positive, got %v", c.Harmonicity.MinPitch)
	case c.MFCC.NumCoefficients <= 0 || !(c.MFCC.WindowLength > 0):
		return fmt.Errorf("invalid MFCC settings %+v", c.MFCC)
	case !(c.Spectrum.Power > 0):
		return fmt.Errorf("spectrum power must be positive, got %v", c.Spectrum.Power)
	}
	return nil
}

// pulseMemoSize bounds the waveforms whose point processes are kept.
const pulseMemoSize = 8

// Engine turns waveforms into Sounds carrying the engine's configuration.
// It may be shared between goroutines.
type Engine struct {
	config Config
	pulses *engines.Memo[*audio.Waveform, *PointProcess]
	logger logging.Logger
}

// New creates an engine with a validated configuration.
func New(config Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("phonetics config: %w", err)
	}
	return &Engine{
		config: config,
		pulses: engines.NewMemo[*audio.Waveform, *PointProcess](pulseMemoSize),
		logger: logging.WithFields(logging.Fields{
			"component": "phonetics_engine",
		}),
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.config }

// Load prepares w for analysis.
func (e *Engine) Load(w *audio.Waveform) (*Sound, error) {
	s, err := NewSound(w)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("Sound loaded", logging.Fields{
		"function":    "Load",
		"source":      w.Source(),
		"sample_rate": w.SampleRate(),
		"duration":    w.Duration(),
	})
	return s, nil
}

// PointProcess returns the glottal pulses of w under the engine's point
// process parameters. The result is shared by callers asking for the same
// waveform, so jitter and shimmer of one waveform track pitch once.
func (e *Engine) PointProcess(ctx context.Context, w *audio.Waveform) (*PointProcess, error) {
	return e.pulses.Get(ctx, w, func() (*PointProcess, error) {
		sound, err := e.Load(w)
		if err != nil {
			return nil, err
		}
		return sound.PointProcess(e.config.PointProcess)
	})
}
