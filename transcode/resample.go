package transcode

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/RyanBlaney/sonido-voice/audio"
)

// Resample converts mono samples from one rate to another. The output has
// round(len(samples) * to / from) samples.
func Resample(samples []float64, from, to int) ([]float64, error) {
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("invalid resample rates %d -> %d", from, to)
	}
	if from == to || len(samples) == 0 {
		out := make([]float64, len(samples))
		copy(out, samples)
		return out, nil
	}

	resampler, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}

	want := int(float64(len(samples))*float64(to)/float64(from) + 0.5)

	// zero tail drains the filter delay line
	input := make([]float64, len(samples)+from/10)
	copy(input, samples)

	output, err := resampler.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}

	out := make([]float64, want)
	copy(out, output)
	return out, nil
}

// ResampleWaveform returns w at rate, or w itself when it already is.
func ResampleWaveform(w *audio.Waveform, rate int) (*audio.Waveform, error) {
	if w.SampleRate() == rate {
		return w, nil
	}
	samples, err := Resample(w.Samples(), w.SampleRate(), rate)
	if err != nil {
		return nil, err
	}
	return audio.NewWaveform(samples, rate, w.Source())
}
