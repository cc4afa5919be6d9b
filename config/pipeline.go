package config

import (
	"fmt"

	"github.com/RyanBlaney/sonido-voice/engines/glottal"
	"github.com/RyanBlaney/sonido-voice/engines/phonetics"
	"github.com/RyanBlaney/sonido-voice/engines/spectral"
	"github.com/RyanBlaney/sonido-voice/features"
	"github.com/RyanBlaney/sonido-voice/features/extractors"
	"github.com/RyanBlaney/sonido-voice/logging"
	"github.com/RyanBlaney/sonido-voice/transcode"
)

// Loader creates the audio loader.
func (c *Config) Loader() (*transcode.FileLoader, error) {
	return transcode.NewFileLoader(c.DecoderConfig())
}

// GlottalAnalyzer creates the configured glottal analyzer. The native
// analyzer reads files through loader.
func (c *Config) GlottalAnalyzer(loader transcode.Loader) (glottal.Analyzer, error) {
	switch c.Glottal.Engine {
	case "command":
		cmd, err := glottal.NewCommand(c.Glottal.Command)
		if err != nil {
			return nil, err
		}
		return cmd, nil
	case "native", "":
		native, err := glottal.NewNative(loader, c.Glottal.Native)
		if err != nil {
			return nil, err
		}
		return native, nil
	default:
		return nil, fmt.Errorf("unknown glottal engine %q", c.Glottal.Engine)
	}
}

// Assembler builds the engines and the enabled extractors.
func (c *Config) Assembler(loader transcode.Loader, logger logging.Logger) (*features.Assembler, error) {
	policy, err := features.ParseMissingPolicy(c.Features.MissingPolicy)
	if err != nil {
		return nil, err
	}

	set, err := c.engines(loader)
	if err != nil {
		return nil, err
	}

	exs, err := extractors.Build(c.Features.Enabled, set)
	if err != nil {
		return nil, fmt.Errorf("failed to build extractors: %w", err)
	}

	opts := []features.AssemblerOption{features.WithMissingPolicy(policy)}
	if logger != nil {
		opts = append(opts, features.WithLogger(logger))
	}
	return features.NewAssembler(exs, opts...)
}

// engines creates only the engines an enabled extractor needs.
func (c *Config) engines(loader transcode.Loader) (extractors.Set, error) {
	set := extractors.Set{
		HNRWithMean:      c.Features.HNRMean,
		SpectralFeatures: c.Features.SpectralFeatures,
		SpectralSampled:  c.Features.SpectralSampled,
	}

	sampler, err := features.NewSampler(c.SamplingConfig())
	if err != nil {
		return set, fmt.Errorf("failed to create sampler: %w", err)
	}
	set.Sampler = sampler

	for _, name := range c.Features.Enabled {
		switch name {
		case extractors.SpectralExtractor:
			if set.Spectral == nil {
				if set.Spectral, err = spectral.New(c.Spectral); err != nil {
					return set, fmt.Errorf("failed to create spectral engine: %w", err)
				}
			}
		case extractors.GlottalExtractor:
			if set.Glottal == nil {
				if set.Glottal, err = c.GlottalAnalyzer(loader); err != nil {
					return set, fmt.Errorf("failed to create glottal analyzer: %w", err)
				}
			}
		default:
			if set.Phonetics == nil {
				if set.Phonetics, err = phonetics.New(c.PhoneticsConfig()); err != nil {
					return set, fmt.Errorf("failed to create phonetics engine: %w", err)
				}
			}
		}
	}
	return set, nil
}
