// Package config holds the settings of a feature extraction run and maps
// them onto the engine, sampler and loader configurations.
package config

import (
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-voice/algorithms/speech"
	"github.com/RyanBlaney/sonido-voice/algorithms/tonal"
	"github.com/RyanBlaney/sonido-voice/engines/glottal"
	"github.com/RyanBlaney/sonido-voice/engines/phonetics"
	"github.com/RyanBlaney/sonido-voice/engines/spectral"
	"github.com/RyanBlaney/sonido-voice/features"
	"github.com/RyanBlaney/sonido-voice/features/extractors"
	"github.com/RyanBlaney/sonido-voice/logging"
	"github.com/RyanBlaney/sonido-voice/transcode"
)

// Config is the full run configuration.
type Config struct {
	Audio    AudioConfig     `json:"audio" yaml:"audio" mapstructure:"audio"`
	Analysis AnalysisConfig  `json:"analysis" yaml:"analysis" mapstructure:"analysis"`
	Sampling SamplingConfig  `json:"sampling" yaml:"sampling" mapstructure:"sampling"`
	Features FeaturesConfig  `json:"features" yaml:"features" mapstructure:"features"`
	Spectral spectral.Config `json:"spectral" yaml:"spectral" mapstructure:"spectral"`
	Glottal  GlottalConfig   `json:"glottal" yaml:"glottal" mapstructure:"glottal"`
	Output   OutputConfig    `json:"output" yaml:"output" mapstructure:"output"`
	Cache    CacheConfig     `json:"cache" yaml:"cache" mapstructure:"cache"`
	Store    StoreConfig     `json:"store" yaml:"store" mapstructure:"store"`
	Batch    BatchConfig     `json:"batch" yaml:"batch" mapstructure:"batch"`
	Log      LogConfig       `json:"log" yaml:"log" mapstructure:"log"`
}

// AudioConfig controls decoding.
type AudioConfig struct {
	SampleRate  int           `json:"sample_rate" yaml:"sample_rate" mapstructure:"sample_rate"`
	FFmpegPath  string        `json:"ffmpeg_path" yaml:"ffmpeg_path" mapstructure:"ffmpeg_path"`
	FFprobePath string        `json:"ffprobe_path" yaml:"ffprobe_path" mapstructure:"ffprobe_path"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	MaxDuration time.Duration `json:"max_duration" yaml:"max_duration" mapstructure:"max_duration"`
}

// AnalysisConfig holds the phonetic analysis constants. Window and hop are
// in samples at Audio.SampleRate.
type AnalysisConfig struct {
	WindowSamples int     `json:"window_samples" yaml:"window_samples" mapstructure:"window_samples"`
	HopSamples    int     `json:"hop_samples" yaml:"hop_samples" mapstructure:"hop_samples"`
	PitchFloor    float64 `json:"pitch_floor" yaml:"pitch_floor" mapstructure:"pitch_floor"`
	PitchCeiling  float64 `json:"pitch_ceiling" yaml:"pitch_ceiling" mapstructure:"pitch_ceiling"`

	MaxFormants        float64 `json:"max_formants" yaml:"max_formants" mapstructure:"max_formants"`
	MaxFormant         float64 `json:"max_formant" yaml:"max_formant" mapstructure:"max_formant"`
	FormantPreEmphasis float64 `json:"formant_pre_emphasis" yaml:"formant_pre_emphasis" mapstructure:"formant_pre_emphasis"`

	IntensityMinPitch     float64 `json:"intensity_min_pitch" yaml:"intensity_min_pitch" mapstructure:"intensity_min_pitch"`
	IntensitySubtractMean bool    `json:"intensity_subtract_mean" yaml:"intensity_subtract_mean" mapstructure:"intensity_subtract_mean"`

	HNRMethod           string  `json:"hnr_method" yaml:"hnr_method" mapstructure:"hnr_method"` // "ac" or "cc"
	HNRMinPitch         float64 `json:"hnr_min_pitch" yaml:"hnr_min_pitch" mapstructure:"hnr_min_pitch"`
	HNRSilenceThreshold float64 `json:"hnr_silence_threshold" yaml:"hnr_silence_threshold" mapstructure:"hnr_silence_threshold"`

	MFCCCoefficients int     `json:"mfcc_coefficients" yaml:"mfcc_coefficients" mapstructure:"mfcc_coefficients"`
	MFCCMaxFrequency float64 `json:"mfcc_max_frequency" yaml:"mfcc_max_frequency" mapstructure:"mfcc_max_frequency"`

	PeriodFloor        float64 `json:"period_floor" yaml:"period_floor" mapstructure:"period_floor"`
	PeriodCeiling      float64 `json:"period_ceiling" yaml:"period_ceiling" mapstructure:"period_ceiling"`
	MaxPeriodFactor    float64 `json:"max_period_factor" yaml:"max_period_factor" mapstructure:"max_period_factor"`
	MaxAmplitudeFactor float64 `json:"max_amplitude_factor" yaml:"max_amplitude_factor" mapstructure:"max_amplitude_factor"`

	SpectrumPreEmphasis float64 `json:"spectrum_pre_emphasis" yaml:"spectrum_pre_emphasis" mapstructure:"spectrum_pre_emphasis"`
	SpectrumPower       float64 `json:"spectrum_power" yaml:"spectrum_power" mapstructure:"spectrum_power"`
}

// SamplingConfig places samples at OffsetStart, OffsetStart+OffsetStep, ...
// up to OffsetStop percent of an interval.
type SamplingConfig struct {
	OffsetStart int `json:"offset_start" yaml:"offset_start" mapstructure:"offset_start"`
	OffsetStop  int `json:"offset_stop" yaml:"offset_stop" mapstructure:"offset_stop"`
	OffsetStep  int `json:"offset_step" yaml:"offset_step" mapstructure:"offset_step"`
	TrimHead    int `json:"trim_head" yaml:"trim_head" mapstructure:"trim_head"`
	TrimTail    int `json:"trim_tail" yaml:"trim_tail" mapstructure:"trim_tail"`
}

// FeaturesConfig selects extractors.
type FeaturesConfig struct {
	Enabled          []string `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	MissingPolicy    string   `json:"missing_policy" yaml:"missing_policy" mapstructure:"missing_policy"`
	HNRMean          bool     `json:"hnr_mean" yaml:"hnr_mean" mapstructure:"hnr_mean"`
	SpectralFeatures []string `json:"spectral_features" yaml:"spectral_features" mapstructure:"spectral_features"`
	SpectralSampled  bool     `json:"spectral_sampled" yaml:"spectral_sampled" mapstructure:"spectral_sampled"`
}

// GlottalConfig selects the glottal analyzer.
type GlottalConfig struct {
	Engine  string                `json:"engine" yaml:"engine" mapstructure:"engine"` // "native" or "command"
	Native  glottal.NativeConfig  `json:"native" yaml:"native" mapstructure:"native"`
	Command glottal.CommandConfig `json:"command" yaml:"command" mapstructure:"command"`
}

// OutputConfig controls record serialization.
type OutputConfig struct {
	Format string `json:"format" yaml:"format" mapstructure:"format"` // json, yaml or msgpack
}

// CacheConfig controls the record cache.
type CacheConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Dir     string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

// StoreConfig controls the SQLite sink. An empty DSN disables it.
type StoreConfig struct {
	DSN string `json:"dsn" yaml:"dsn" mapstructure:"dsn"`
}

// BatchConfig controls parallel extraction.
type BatchConfig struct {
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `json:"level" yaml:"level" mapstructure:"level"`
}

// Output formats.
const (
	FormatJSON    = "json"
	FormatYAML    = "yaml"
	FormatMsgpack = "msgpack"
)

// Default returns the settings of the reference scripts: 16 kHz audio,
// 400 sample windows every 160 samples, pitch 75-600 Hz and 12 of 33
// samples per contour.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate:  16000,
			FFmpegPath:  "ffmpeg",
			FFprobePath: "ffprobe",
			Timeout:     30 * time.Second,
		},
		Analysis: AnalysisConfig{
			WindowSamples:         400,
			HopSamples:            160,
			PitchFloor:            75,
			PitchCeiling:          600,
			MaxFormants:           4.5,
			MaxFormant:            4700,
			FormantPreEmphasis:    50,
			IntensityMinPitch:     100,
			IntensitySubtractMean: true,
			HNRMethod:             tonal.PitchCrossCorrelation.String(),
			HNRMinPitch:           75,
			HNRSilenceThreshold:   0.1,
			MFCCCoefficients:      12,
			MFCCMaxFrequency:      7600,
			PeriodFloor:           0.0001,
			PeriodCeiling:         0.02,
			MaxPeriodFactor:       1.3,
			MaxAmplitudeFactor:    1.6,
			SpectrumPreEmphasis:   80,
			SpectrumPower:         2,
		},
		Sampling: SamplingConfig{
			OffsetStart: 3,
			OffsetStop:  99,
			OffsetStep:  3,
			TrimHead:    10,
			TrimTail:    11,
		},
		Features: FeaturesConfig{
			Enabled:       append([]string(nil), extractors.All...),
			MissingPolicy: features.FailRecord.String(),
			HNRMean:       true,
		},
		Spectral: spectral.DefaultConfig(),
		Glottal: GlottalConfig{
			Engine:  "native",
			Native:  glottal.DefaultNativeConfig(),
			Command: glottal.CommandConfig{Timeout: 5 * time.Minute},
		},
		Output: OutputConfig{Format: FormatJSON},
		Cache:  CacheConfig{Dir: ".voicefeat-cache"},
		Batch:  BatchConfig{Workers: 4},
		Log:    LogConfig{Level: "info"},
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Analysis.WindowSamples <= 0 || c.Analysis.HopSamples <= 0 {
		return fmt.Errorf("analysis window %d / hop %d must be positive", c.Analysis.WindowSamples, c.Analysis.HopSamples)
	}
	if _, err := tonal.ParsePitchMethod(c.Analysis.HNRMethod); err != nil {
		return fmt.Errorf("analysis.hnr_method: %w", err)
	}
	if err := c.PhoneticsConfig().Validate(); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}
	if err := c.SamplingConfig().Validate(); err != nil {
		return fmt.Errorf("sampling: %w", err)
	}
	if err := c.Spectral.Validate(); err != nil {
		return fmt.Errorf("spectral: %w", err)
	}
	if _, err := features.ParseMissingPolicy(c.Features.MissingPolicy); err != nil {
		return fmt.Errorf("features: %w", err)
	}
	for _, name := range c.Features.Enabled {
		if !extractors.Known(name) {
			return fmt.Errorf("features.enabled: unknown extractor %q", name)
		}
	}
	switch c.Glottal.Engine {
	case "native":
		if err := c.Glottal.Native.Validate(); err != nil {
			return fmt.Errorf("glottal.native: %w", err)
		}
	case "command":
		if c.Glottal.Command.Path == "" {
			return fmt.Errorf("glottal.command.path is required for the command engine")
		}
	default:
		return fmt.Errorf("glottal.engine must be native or command, got %q", c.Glottal.Engine)
	}
	switch c.Output.Format {
	case FormatJSON, FormatYAML, FormatMsgpack:
	default:
		return fmt.Errorf("output.format must be json, yaml or msgpack, got %q", c.Output.Format)
	}
	if c.Cache.Enabled && c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir is required when the cache is enabled")
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("batch.workers must be positive, got %d", c.Batch.Workers)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// PhoneticsConfig maps the analysis section onto the phonetics engine.
func (c *Config) PhoneticsConfig() phonetics.Config {
	a := c.Analysis
	rate := float64(c.Audio.SampleRate)
	step := float64(a.HopSamples) / rate
	window := float64(a.WindowSamples) / rate
	method, _ := tonal.ParsePitchMethod(a.HNRMethod)

	return phonetics.Config{
		Pitch: phonetics.PitchParams{TimeStep: step, Floor: a.PitchFloor, Ceiling: a.PitchCeiling},
		Formant: phonetics.FormantParams{
			TimeStep:        step,
			MaxFormants:     a.MaxFormants,
			MaxFormant:      a.MaxFormant,
			WindowLength:    window,
			PreEmphasisFrom: a.FormantPreEmphasis,
		},
		Intensity: phonetics.IntensityParams{
			TimeStep:     step,
			MinPitch:     a.IntensityMinPitch,
			SubtractMean: a.IntensitySubtractMean,
		},
		Harmonicity: phonetics.HarmonicityParams{
			TimeStep:         step,
			Method:           method,
			MinPitch:         a.HNRMinPitch,
			SilenceThreshold: a.HNRSilenceThreshold,
		},
		MFCC: phonetics.MFCCParams{
			TimeStep:        step,
			WindowLength:    window,
			NumCoefficients: a.MFCCCoefficients,
			MaxFrequency:    a.MFCCMaxFrequency,
		},
		PointProcess: phonetics.PointProcessParams{Floor: a.PitchFloor, Ceiling: a.PitchCeiling},
		Perturbation: speech.PerturbationParams{
			PeriodFloor:        a.PeriodFloor,
			PeriodCeiling:      a.PeriodCeiling,
			MaxPeriodFactor:    a.MaxPeriodFactor,
			MaxAmplitudeFactor: a.MaxAmplitudeFactor,
		},
		Spectrum: phonetics.SpectrumParams{PreEmphasisFrom: a.SpectrumPreEmphasis, Power: a.SpectrumPower},
	}
}

// SamplingConfig maps the sampling section onto the sampler.
func (c *Config) SamplingConfig() features.SamplingConfig {
	s := c.Sampling
	return features.SamplingConfig{
		Offsets:  features.PercentOffsets(s.OffsetStart, s.OffsetStop, s.OffsetStep),
		TrimHead: s.TrimHead,
		TrimTail: s.TrimTail,
	}
}

// DecoderConfig maps the audio section onto the loader.
func (c *Config) DecoderConfig() *transcode.DecoderConfig {
	return &transcode.DecoderConfig{
		TargetSampleRate: c.Audio.SampleRate,
		TargetChannels:   1,
		MaxDuration:      c.Audio.MaxDuration,
		FFmpegPath:       c.Audio.FFmpegPath,
		FFprobePath:      c.Audio.FFprobePath,
		Timeout:          c.Audio.Timeout,
	}
}
