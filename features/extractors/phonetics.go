package extractors

import (
	"context"

	"github.com/RyanBlaney/sonido-voice/engines/phonetics"
	"github.com/RyanBlaney/sonido-voice/features"
	"github.com/RyanBlaney/sonido-voice/series"
)

// Pitch samples the fundamental frequency contour.
type Pitch struct {
	engine  *phonetics.Engine
	sampler *features.Sampler
}

// NewPitch creates the pitch extractor.
func NewPitch(engine *phonetics.Engine, sampler *features.Sampler) *Pitch {
	return &Pitch{engine: engine, sampler: sampler}
}

func (p *Pitch) Name() string    { return PitchExtractor }
func (p *Pitch) Names() []string { return []string{"pitch"} }

func (p *Pitch) Shapes() map[string]int {
	return map[string]int{"pitch": p.sampler.Len()}
}

func (p *Pitch) Extract(ctx context.Context, in features.Input) (map[string]features.Value, error) {
	sound, err := p.engine.Load(in.Waveform)
	if err != nil {
		return nil, err
	}
	contour, err := sound.Pitch(p.engine.Config().Pitch)
	if err != nil {
		return nil, err
	}
	return map[string]features.Value{
		"pitch": features.Sequence(p.sampler.Sample(contour, in.Interval)),
	}, nil
}

// Formants samples F1 to F3.
type Formants struct {
	engine  *phonetics.Engine
	sampler *features.Sampler
}

// NewFormants creates the formant extractor.
func NewFormants(engine *phonetics.Engine, sampler *features.Sampler) *Formants {
	return &Formants{engine: engine, sampler: sampler}
}

func (f *Formants) Name() string    { return FormantsExtractor }
func (f *Formants) Names() []string { return []string{"f1", "f2", "f3"} }

func (f *Formants) Shapes() map[string]int {
	n := f.sampler.Len()
	return map[string]int{"f1": n, "f2": n, "f3": n}
}

func (f *Formants) Extract(ctx context.Context, in features.Input) (map[string]features.Value, error) {
	sound, err := f.engine.Load(in.Waveform)
	if err != nil {
		return nil, err
	}
	formants, err := sound.Formants(f.engine.Config().Formant)
	if err != nil {
		return nil, err
	}

	out := make(map[string]features.Value, 3)
	for i, name := range f.Names() {
		n := i + 1
		lookup := series.LookupFunc(func(t float64) series.Measurement {
			return formants.ValueAt(n, t)
		})
		out[name] = features.Sequence(f.sampler.Sample(lookup, in.Interval))
	}
	return out, nil
}

// Intensity samples the intensity contour in dB.
type Intensity struct {
	engine  *phonetics.Engine
	sampler *features.Sampler
}

// NewIntensity creates the intensity extractor.
func NewIntensity(engine *phonetics.Engine, sampler *features.Sampler) *Intensity {
	return &Intensity{engine: engine, sampler: sampler}
}

func (x *Intensity) Name() string    { return IntensityExtractor }
func (x *Intensity) Names() []string { return []string{"intensity"} }

func (x *Intensity) Shapes() map[string]int {
	return map[string]int{"intensity": x.sampler.Len()}
}

func (x *Intensity) Extract(ctx context.Context, in features.Input) (map[string]features.Value, error) {
	sound, err := x.engine.Load(in.Waveform)
	if err != nil {
		return nil, err
	}
	contour, err := sound.Intensity(x.engine.Config().Intensity)
	if err != nil {
		return nil, err
	}
	return map[string]features.Value{
		"intensity": features.Sequence(x.sampler.Sample(contour, in.Interval)),
	}, nil
}

// Harmonicity samples the harmonics-to-noise ratio. Frames without
// periodicity are missing rather than -200 dB, and never reach hnr_mean.
type Harmonicity struct {
	engine   *phonetics.Engine
	sampler  *features.Sampler
	withMean bool
}

// NewHarmonicity creates the HNR extractor. withMean adds hnr_mean, the
// mean of the defined samples.
func NewHarmonicity(engine *phonetics.Engine, sampler *features.Sampler, withMean bool) *Harmonicity {
	return &Harmonicity{engine: engine, sampler: sampler, withMean: withMean}
}

func (h *Harmonicity) Name() string { return HarmonicityExtractor }

func (h *Harmonicity) Names() []string {
	if h.withMean {
		return []string{"hnr", "hnr_mean"}
	}
	return []string{"hnr"}
}

// Shapes leaves out hnr_mean, a scalar.
func (h *Harmonicity) Shapes() map[string]int {
	return map[string]int{"hnr": h.sampler.Len()}
}

func (h *Harmonicity) Extract(ctx context.Context, in features.Input) (map[string]features.Value, error) {
	sound, err := h.engine.Load(in.Waveform)
	if err != nil {
		return nil, err
	}
	raw, err := sound.Harmonicity(h.engine.Config().Harmonicity)
	if err != nil {
		return nil, err
	}

	samples := h.sampler.Sample(raw.WithSentinel(phonetics.HarmonicitySentinel), in.Interval)
	out := map[string]features.Value{"hnr": features.Sequence(samples)}
	if h.withMean {
		out["hnr_mean"] = features.Scalar(features.Mean(samples))
	}
	return out, nil
}

// MFCC averages each cepstral coefficient over the frames of the interval.
type MFCC struct {
	engine *phonetics.Engine
}

// NewMFCC creates the MFCC extractor.
func NewMFCC(engine *phonetics.Engine) *MFCC {
	return &MFCC{engine: engine}
}

func (m *MFCC) Name() string    { return MFCCExtractor }
func (m *MFCC) Names() []string { return []string{"mfcc"} }

func (m *MFCC) Shapes() map[string]int {
	return map[string]int{"mfcc": m.engine.Config().MFCC.NumCoefficients}
}

func (m *MFCC) Extract(ctx context.Context, in features.Input) (map[string]features.Value, error) {
	sound, err := m.engine.Load(in.Waveform)
	if err != nil {
		return nil, err
	}
	cepstra, err := sound.MFCC(m.engine.Config().MFCC)
	if err != nil {
		return nil, err
	}
	means := cepstra.Mean(in.Interval.Start, in.Interval.End)
	if len(means) == 0 {
		// no frames
		return map[string]features.Value{"mfcc": features.Missing(m.engine.Config().MFCC.NumCoefficients)}, nil
	}
	return map[string]features.Value{"mfcc": features.Sequence(means)}, nil
}

// Jitter measures period perturbation over the interval's pulses.
type Jitter struct {
	engine *phonetics.Engine
}

// NewJitter creates the jitter extractor.
func NewJitter(engine *phonetics.Engine) *Jitter {
	return &Jitter{engine: engine}
}

func (j *Jitter) Name() string { return JitterExtractor }

func (j *Jitter) Names() []string {
	return []string{"jitter_local", "jitter_local_absolute", "jitter_rap", "jitter_ppq5", "jitter_ddp"}
}

func (j *Jitter) Extract(ctx context.Context, in features.Input) (map[string]features.Value, error) {
	pp, err := j.engine.PointProcess(ctx, in.Waveform)
	if err != nil {
		return nil, err
	}
	v := pp.Jitter(in.Interval.Start, in.Interval.End, j.engine.Config().Perturbation)
	return map[string]features.Value{
		"jitter_local":          scalar(v.Local),
		"jitter_local_absolute": scalar(v.LocalAbsolute),
		"jitter_rap":            scalar(v.RAP),
		"jitter_ppq5":           scalar(v.PPQ5),
		"jitter_ddp":            scalar(v.DDP),
	}, nil
}

// Shimmer measures amplitude perturbation over the interval's pulses.
type Shimmer struct {
	engine *phonetics.Engine
}

// NewShimmer creates the shimmer extractor.
func NewShimmer(engine *phonetics.Engine) *Shimmer {
	return &Shimmer{engine: engine}
}

func (s *Shimmer) Name() string { return ShimmerExtractor }

func (s *Shimmer) Names() []string {
	return []string{"shimmer_local", "shimmer_local_db", "shimmer_apq3", "shimmer_apq5", "shimmer_apq11", "shimmer_dda"}
}

func (s *Shimmer) Extract(ctx context.Context, in features.Input) (map[string]features.Value, error) {
	pp, err := s.engine.PointProcess(ctx, in.Waveform)
	if err != nil {
		return nil, err
	}
	v := pp.Shimmer(in.Interval.Start, in.Interval.End, s.engine.Config().Perturbation)
	return map[string]features.Value{
		"shimmer_local":    scalar(v.Local),
		"shimmer_local_db": scalar(v.LocalDB),
		"shimmer_apq3":     scalar(v.APQ3),
		"shimmer_apq5":     scalar(v.APQ5),
		"shimmer_apq11":    scalar(v.APQ11),
		"shimmer_dda":      scalar(v.DDA),
	}, nil
}

// SpectrumShape describes the long-term spectrum of the whole waveform by
// its first four moments, after pre-emphasis.
type SpectrumShape struct {
	engine *phonetics.Engine
}

// NewSpectrumShape creates the spectral moment extractor.
func NewSpectrumShape(engine *phonetics.Engine) *SpectrumShape {
	return &SpectrumShape{engine: engine}
}

func (s *SpectrumShape) Name() string    { return SpectrumShapeExtractor }
func (s *SpectrumShape) Names() []string { return []string{"COG", "SD", "SkW", "KUR"} }

func (s *SpectrumShape) Extract(ctx context.Context, in features.Input) (map[string]features.Value, error) {
	sound, err := s.engine.Load(in.Waveform)
	if err != nil {
		return nil, err
	}
	params := s.engine.Config().Spectrum
	emphasised, err := sound.PreEmphasis(params.PreEmphasisFrom)
	if err != nil {
		return nil, err
	}
	spectrum := emphasised.Spectrum()
	return map[string]features.Value{
		"COG": features.Scalar(spectrum.CentreOfGravity(params.Power)),
		"SD":  features.Scalar(spectrum.StandardDeviation(params.Power)),
		"SkW": features.Scalar(spectrum.Skewness(params.Power)),
		"KUR": features.Scalar(spectrum.Kurtosis(params.Power)),
	}, nil
}

func scalar(v float64) features.Value {
	return features.Scalar(series.Of(v))
}
