// Package extractors binds the analysis engines to feature names. Each
// extractor owns a fixed set of output names and calls exactly one engine.
package extractors

import (
	"errors"
	"fmt"
	"slices"

	"github.com/RyanBlaney/sonido-voice/engines/glottal"
	"github.com/RyanBlaney/sonido-voice/engines/phonetics"
	"github.com/RyanBlaney/sonido-voice/engines/spectral"
	"github.com/RyanBlaney/sonido-voice/features"
)

// Extractor names accepted by Build.
const (
	PitchExtractor         = "pitch"
	FormantsExtractor      = "formants"
	IntensityExtractor     = "intensity"
	HarmonicityExtractor   = "hnr"
	MFCCExtractor          = "mfcc"
	JitterExtractor        = "jitter"
	ShimmerExtractor       = "shimmer"
	SpectrumShapeExtractor = "spectrum"
	SpectralExtractor      = "spectral"
	GlottalExtractor       = "glottal"
)

// All lists every extractor in the order records are usually built.
var All = []string{
	PitchExtractor,
	FormantsExtractor,
	IntensityExtractor,
	HarmonicityExtractor,
	MFCCExtractor,
	JitterExtractor,
	ShimmerExtractor,
	SpectrumShapeExtractor,
	SpectralExtractor,
	GlottalExtractor,
}

// Set holds the engines and options extractors are built from. Engines an
// unrequested extractor would need may be nil.
type Set struct {
	Phonetics *phonetics.Engine
	Spectral  *spectral.Engine
	Glottal   glottal.Analyzer
	Sampler   *features.Sampler

	// HNRWithMean adds hnr_mean to the harmonicity output.
	HNRWithMean bool
	// SpectralFeatures restricts the spectral series; empty means all.
	SpectralFeatures []string
	// SpectralSampled samples spectral series like the phonetic contours
	// instead of averaging them over the interval.
	SpectralSampled bool
}

// Default builds every extractor.
func Default(set Set) ([]features.Extractor, error) {
	return Build(All, set)
}

// Build creates the named extractors in order.
func Build(names []string, set Set) ([]features.Extractor, error) {
	var out []features.Extractor
	for _, name := range names {
		ex, err := build(name, set)
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, nil
}

func build(name string, set Set) (features.Extractor, error) {
	needPhonetics := func() error {
		if set.Phonetics == nil {
			return fmt.Errorf("extractor %s needs the phonetics engine", name)
		}
		return nil
	}
	needSampler := func() error {
		if set.Sampler == nil {
			return fmt.Errorf("extractor %s needs a sampler", name)
		}
		return nil
	}

	switch name {
	case PitchExtractor, FormantsExtractor, IntensityExtractor, HarmonicityExtractor:
		if err := errors.Join(needPhonetics(), needSampler()); err != nil {
			return nil, err
		}
	case MFCCExtractor, JitterExtractor, ShimmerExtractor, SpectrumShapeExtractor:
		if err := needPhonetics(); err != nil {
			return nil, err
		}
	}

	switch name {
	case PitchExtractor:
		return NewPitch(set.Phonetics, set.Sampler), nil
	case FormantsExtractor:
		return NewFormants(set.Phonetics, set.Sampler), nil
	case IntensityExtractor:
		return NewIntensity(set.Phonetics, set.Sampler), nil
	case HarmonicityExtractor:
		return NewHarmonicity(set.Phonetics, set.Sampler, set.HNRWithMean), nil
	case MFCCExtractor:
		return NewMFCC(set.Phonetics), nil
	case JitterExtractor:
		return NewJitter(set.Phonetics), nil
	case ShimmerExtractor:
		return NewShimmer(set.Phonetics), nil
	case SpectrumShapeExtractor:
		return NewSpectrumShape(set.Phonetics), nil
	case SpectralExtractor:
		if set.Spectral == nil {
			return nil, fmt.Errorf("extractor %s needs the spectral engine", name)
		}
		if set.SpectralSampled {
			if err := needSampler(); err != nil {
				return nil, err
			}
		}
		return NewSpectralSeries(set.Spectral, set.SpectralFeatures, set.SpectralSampled, set.Sampler)
	case GlottalExtractor:
		if set.Glottal == nil {
			return nil, fmt.Errorf("extractor %s needs a glottal analyzer", name)
		}
		return NewGlottal(set.Glottal), nil
	}
	return nil, fmt.Errorf("unknown extractor %q (known: %v)", name, All)
}

// Known reports whether name is an extractor name.
func Known(name string) bool {
	return slices.Contains(All, name)
}
