package spectral

import (
	"context"
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-voice/audio"
	"github.com/RyanBlaney/sonido-voice/engines"
)

func tone(t *testing.T, freq float64, rate int, seconds float64) *audio.Waveform {
	t.Helper()
	x := make([]float64, int(seconds*float64(rate)))
	for i := range x {
		x[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	w, err := audio.NewWaveform(x, rate, "tone.wav")
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func TestAnalyzeFrameLayout(t *testing.T) {
	e, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	a, err := e.Analyze(context.Background(), tone(t, 1000, 22050, 1))
	if err != nil {
		t.Fatal(err)
	}

	// centred frames: 1 + n/hop
	wantFrames := 1 + 22050/512
	for _, name := range FeatureNames {
		c, err := a.Feature(name)
		if err != nil {
			t.Fatal(err)
		}
		if name == Envelope {
			if c.Len() != 22050 || c.Step() != 1.0/22050 {
				t.Errorf("envelope: %d samples, step %v", c.Len(), c.Step())
			}
			continue
		}
		if c.Len() != wantFrames {
			t.Errorf("%s: %d frames, want %d", name, c.Len(), wantFrames)
		}
		if c.Start() != 0 || c.Step() != 512.0/22050 {
			t.Errorf("%s: start %v step %v", name, c.Start(), c.Step())
		}
	}
	if len(a.Contrast) != 7 {
		t.Errorf("contrast bands = %d, want 7", len(a.Contrast))
	}

	if _, err := a.Feature("Loudness"); err == nil {
		t.Error("unknown feature accepted")
	}
}

func TestAnalyzeToneValues(t *testing.T) {
	e, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	// 16 kHz input is resampled to 22050
	a, err := e.Analyze(context.Background(), tone(t, 1000, 16000, 1))
	if err != nil {
		t.Fatal(err)
	}
	if a.SampleRate != 22050 {
		t.Fatalf("sample rate = %d", a.SampleRate)
	}

	mid := 0.5
	if m := a.Centroid.ValueAt(mid); !m.Defined || math.Abs(m.Value-1000) > 60 {
		t.Errorf("centroid = %v", m)
	}
	if m := a.RMS.ValueAt(mid); !m.Defined || math.Abs(m.Value-0.5/math.Sqrt2) > 0.02 {
		t.Errorf("rms = %v", m)
	}
	// two crossings per period
	if m := a.ZeroCrossing.ValueAt(mid); !m.Defined || math.Abs(m.Value-2000.0/22050) > 0.005 {
		t.Errorf("zcr = %v", m)
	}
	if m := a.Flatness.ValueAt(mid); !m.Defined || m.Value > 0.05 {
		t.Errorf("flatness of a tone = %v", m)
	}
	if m := a.Envelope.ValueAt(mid); !m.Defined || math.Abs(m.Value-0.5) > 0.02 {
		t.Errorf("envelope = %v", m)
	}
}

func TestAnalyzeRejectsEmpty(t *testing.T) {
	e, _ := New(DefaultConfig())
	if _, err := e.Analyze(context.Background(), nil); !engines.IsUnavailable(err) {
		t.Errorf("nil waveform: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Analyze(ctx, tone(t, 200, 22050, 0.1)); err != context.Canceled {
		t.Errorf("cancelled: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"fft not power of two", func(c *Config) { c.FFTSize = 1000 }},
		{"hop larger than fft", func(c *Config) { c.HopSize = 4096 }},
		{"rolloff", func(c *Config) { c.RolloffPercent = 1 }},
		{"bands past nyquist", func(c *Config) { c.ContrastBands = 8 }},
		{"quantile", func(c *Config) { c.ContrastQuantile = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if _, err := New(cfg); err == nil {
				t.Error("accepted")
			}
		})
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Error(err)
	}
}
