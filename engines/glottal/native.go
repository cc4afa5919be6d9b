package glottal

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/RyanBlaney/sonido-voice/algorithms/common"
	"github.com/RyanBlaney/sonido-voice/algorithms/speech"
	"github.com/RyanBlaney/sonido-voice/algorithms/stats"
	"github.com/RyanBlaney/sonido-voice/algorithms/tonal"
	"github.com/RyanBlaney/sonido-voice/audio"
	"github.com/RyanBlaney/sonido-voice/engines"
	"github.com/RyanBlaney/sonido-voice/logging"
	"github.com/RyanBlaney/sonido-voice/series"
	"github.com/RyanBlaney/sonido-voice/transcode"
)

// NativeConfig configures the in-process analyzer.
type NativeConfig struct {
	FrameLength float64 `json:"frame_length" yaml:"frame_length" mapstructure:"frame_length"` // seconds
	FrameStep   float64 `json:"frame_step" yaml:"frame_step" mapstructure:"frame_step"`
	PitchFloor  float64 `json:"pitch_floor" yaml:"pitch_floor" mapstructure:"pitch_floor"`
	PitchCeil   float64 `json:"pitch_ceiling" yaml:"pitch_ceiling" mapstructure:"pitch_ceiling"`
	// HarmonicCycles is the number of cycles per H1-H2 / HRF measurement.
	HarmonicCycles int `json:"harmonic_cycles" yaml:"harmonic_cycles" mapstructure:"harmonic_cycles"`
}

// DefaultNativeConfig uses 200 ms frames every 50 ms.
func DefaultNativeConfig() NativeConfig {
	return NativeConfig{
		FrameLength:    0.2,
		FrameStep:      0.05,
		PitchFloor:     60,
		PitchCeil:      500,
		HarmonicCycles: 4,
	}
}

// Validate checks the configuration.
func (c NativeConfig) Validate() error {
	switch {
	case !(c.FrameLength > 0) || !(c.FrameStep > 0):
		return fmt.Errorf("invalid glottal frame %v / step %v", c.FrameLength, c.FrameStep)
	case !(c.PitchFloor > 0) || c.PitchCeil <= c.PitchFloor:
		return fmt.Errorf("invalid glottal pitch range %v-%v Hz", c.PitchFloor, c.PitchCeil)
	case c.HarmonicCycles < 2:
		return fmt.Errorf("harmonic cycles must be at least 2, got %d", c.HarmonicCycles)
	}
	return nil
}

// Native analyzes glottal flow in process: LPC inverse filtering of each
// voiced frame, closure instants from the flow derivative, then NAQ and
// QOQ per cycle and harmonic levels per group of cycles.
type Native struct {
	loader transcode.Loader
	config NativeConfig
	logger logging.Logger
}

// NewNative creates an analyzer reading files through loader.
func NewNative(loader transcode.Loader, config NativeConfig) (*Native, error) {
	if loader == nil {
		return nil, errors.New("glottal analyzer needs a loader")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Native{
		loader: loader,
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "glottal_native",
		}),
	}, nil
}

// AnalyzeFile loads path and analyzes it.
func (n *Native) AnalyzeFile(ctx context.Context, path string) (Table, error) {
	w, err := n.loader.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	return n.Analyze(ctx, w)
}

// Analyze computes the glottal statistics of w. A recording without voiced
// frames yields a table of undefined values.
func (n *Native) Analyze(ctx context.Context, w *audio.Waveform) (Table, error) {
	if w == nil || w.Len() == 0 {
		return nil, engines.Unavailable(engines.Glottal, "no audio", audio.ErrEmptyWaveform)
	}
	samples := w.Samples()
	sr := w.SampleRate()

	layout, err := common.NewFrameLayout(len(samples), sr, n.config.FrameLength, n.config.FrameStep)
	if err != nil {
		return nil, engines.Unavailable(engines.Glottal, "recording shorter than one frame", err)
	}

	params := tonal.DefaultPitchTrackerParams()
	params.Floor = n.config.PitchFloor
	params.Ceiling = n.config.PitchCeil
	tracker, err := tonal.NewPitchTracker(sr, params)
	if err != nil {
		return nil, fmt.Errorf("glottal pitch tracker: %w", err)
	}
	track, err := tracker.Track(samples)
	if err != nil {
		if errors.Is(err, common.ErrSignalTooShort) {
			return nil, engines.Unavailable(engines.Glottal, "recording too short for pitch analysis", err)
		}
		return nil, err
	}

	analyzer := speech.NewGlottalAnalyzer(sr)
	perFeature := make(map[string][]float64, len(FrameFeatures))
	voiced := 0

	for i := range layout.Count {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		half := 0.5 * layout.Window
		f0 := medianPitch(track, layout.Time(i)-half, layout.Time(i)+half)
		if f0 == 0 {
			continue
		}
		frame := layout.Extract(samples, i, layout.WindowSamples())
		features, ok := n.frameFeatures(analyzer, frame, sr, f0)
		if !ok {
			continue
		}
		voiced++
		for name, v := range features {
			if !math.IsNaN(v) {
				perFeature[name] = append(perFeature[name], v)
			}
		}
	}

	n.logger.Debug("Glottal analysis complete", logging.Fields{
		"function":      "Analyze",
		"source":        w.Source(),
		"frames":        layout.Count,
		"voiced_frames": voiced,
	})

	table := make(Table, 2*len(FrameFeatures))
	for _, name := range FrameFeatures {
		values := perFeature[name]
		if len(values) == 0 {
			table[GlobalAvg(name)] = series.Undefined
			table[GlobalStd(name)] = series.Undefined
			continue
		}
		mean, std := stats.MeanStdDev(values)
		table[GlobalAvg(name)] = series.Of(mean)
		table[GlobalStd(name)] = series.Of(std)
	}
	return table, nil
}

// frameFeatures measures one frame at fundamental f0. ok is false when the
// frame holds fewer than two glottal cycles.
func (n *Native) frameFeatures(g *speech.GlottalAnalyzer, frame []float64, sr int, f0 float64) (map[string]float64, bool) {
	flow, derivative, err := g.InverseFilter(frame)
	if err != nil {
		return nil, false
	}
	period := float64(sr) / f0
	gcis := g.ClosureInstants(derivative, period)
	cycles := g.Cycles(flow, derivative, gcis)
	if len(cycles) < 2 {
		return nil, false
	}

	intervals := make([]float64, 0, len(gcis)-1)
	for k := 1; k < len(gcis); k++ {
		intervals = append(intervals, 1000*float64(gcis[k]-gcis[k-1])/float64(sr))
	}
	_, gciStd := stats.MeanStdDev(intervals)

	naq := make([]float64, len(cycles))
	qoq := make([]float64, len(cycles))
	for k, c := range cycles {
		naq[k] = c.NAQ
		qoq[k] = c.QOQ
	}

	var h1h2, hrf []float64
	group := n.config.HarmonicCycles
	for k := 0; k+group <= len(cycles); k += max(group/2, 1) {
		lo := cycles[k].Start
		last := cycles[k+group-1]
		a, b, err := g.HarmonicLevels(flow[lo:last.Start+last.Length], f0)
		if err != nil {
			continue
		}
		h1h2 = append(h1h2, a)
		hrf = append(hrf, b)
	}

	out := map[string]float64{VarGCI: gciStd * gciStd}
	out[AvgNAQ], out[StdNAQ] = stats.MeanStdDev(naq)
	out[AvgQOQ], out[StdQOQ] = stats.MeanStdDev(qoq)
	out[AvgH1H2], out[StdH1H2] = stats.MeanStdDev(h1h2)
	out[AvgHRF], out[StdHRF] = stats.MeanStdDev(hrf)
	return out, true
}

// medianPitch returns the median voiced frequency of the track frames
// centred in [from, to], or 0 when fewer than half of them are voiced.
func medianPitch(track *tonal.PitchTrack, from, to float64) float64 {
	var voiced []float64
	total := 0
	for i, f := range track.Frames {
		if t := track.Time(i); t < from || t > to {
			continue
		}
		total++
		if f.Voiced() {
			voiced = append(voiced, f.Frequency())
		}
	}
	if total == 0 || 2*len(voiced) < total {
		return 0
	}
	sort.Float64s(voiced)
	return voiced[len(voiced)/2]
}
