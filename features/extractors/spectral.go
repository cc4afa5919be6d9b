package extractors

import (
	"context"
	"fmt"
	"slices"

	"github.com/RyanBlaney/sonido-voice/engines/spectral"
	"github.com/RyanBlaney/sonido-voice/features"
)

// SpectralSeries summarises the spectral engine's frame series over the
// interval: the mean of the frames inside it, or the sampled sequence.
type SpectralSeries struct {
	engine  *spectral.Engine
	names   []string
	sampled bool
	sampler *features.Sampler
}

// NewSpectralSeries creates the extractor for names, all series when
// names is empty. sampler is required when sampled is set.
func NewSpectralSeries(engine *spectral.Engine, names []string, sampled bool, sampler *features.Sampler) (*SpectralSeries, error) {
	if len(names) == 0 {
		names = spectral.FeatureNames
	}
	for _, n := range names {
		if !slices.Contains(spectral.FeatureNames, n) {
			return nil, fmt.Errorf("unknown spectral feature %q", n)
		}
	}
	if sampled && sampler == nil {
		return nil, fmt.Errorf("sampled spectral series need a sampler")
	}
	return &SpectralSeries{
		engine:  engine,
		names:   slices.Clone(names),
		sampled: sampled,
		sampler: sampler,
	}, nil
}

func (s *SpectralSeries) Name() string    { return SpectralExtractor }
func (s *SpectralSeries) Names() []string { return slices.Clone(s.names) }

// Shapes is empty unless the series are sampled.
func (s *SpectralSeries) Shapes() map[string]int {
	shapes := make(map[string]int)
	if !s.sampled {
		return shapes
	}
	for _, name := range s.names {
		shapes[name] = s.sampler.Len()
	}
	return shapes
}

func (s *SpectralSeries) Extract(ctx context.Context, in features.Input) (map[string]features.Value, error) {
	analysis, err := s.engine.Analyze(ctx, in.Waveform)
	if err != nil {
		return nil, err
	}

	out := make(map[string]features.Value, len(s.names))
	for _, name := range s.names {
		contour, err := analysis.Feature(name)
		if err != nil {
			return nil, err
		}
		if s.sampled {
			out[name] = features.Sequence(s.sampler.Sample(contour, in.Interval))
			continue
		}
		out[name] = features.Scalar(features.Mean(contour.Span(in.Interval.Start, in.Interval.End)))
	}
	return out, nil
}
