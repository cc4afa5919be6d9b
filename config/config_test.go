package config

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-voice/engines/phonetics"
	"github.com/RyanBlaney/sonido-voice/features"
	"github.com/RyanBlaney/sonido-voice/logging"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

func TestDefaultMatchesEngineDefaults(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	got := cfg.PhoneticsConfig()
	want := phonetics.DefaultConfig()
	if !almostEqual(got.Pitch.TimeStep, want.Pitch.TimeStep) || !almostEqual(got.MFCC.WindowLength, want.MFCC.WindowLength) {
		t.Errorf("time step %v window %v", got.Pitch.TimeStep, got.MFCC.WindowLength)
	}
	// same values modulo float rounding of the step
	got.Pitch.TimeStep, got.Formant.TimeStep = want.Pitch.TimeStep, want.Formant.TimeStep
	got.Intensity.TimeStep, got.Harmonicity.TimeStep, got.MFCC.TimeStep = want.Intensity.TimeStep, want.Harmonicity.TimeStep, want.MFCC.TimeStep
	got.Formant.WindowLength, got.MFCC.WindowLength = want.Formant.WindowLength, want.MFCC.WindowLength
	if !reflect.DeepEqual(got, want) {
		t.Errorf("phonetics config\n got %+v\nwant %+v", got, want)
	}

	if !reflect.DeepEqual(cfg.SamplingConfig(), features.DefaultSamplingConfig()) {
		t.Errorf("sampling = %+v", cfg.SamplingConfig())
	}
	if n := cfg.SamplingConfig().Len(); n != 12 {
		t.Errorf("%d samples per contour", n)
	}
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"sample rate":    func(c *Config) { c.Audio.SampleRate = 0 },
		"hop":            func(c *Config) { c.Analysis.HopSamples = 0 },
		"hnr method":     func(c *Config) { c.Analysis.HNRMethod = "xx" },
		"pitch range":    func(c *Config) { c.Analysis.PitchCeiling = 50 },
		"sampling":       func(c *Config) { c.Sampling.TrimHead = 40 },
		"spectral fft":   func(c *Config) { c.Spectral.FFTSize = 1000 },
		"policy":         func(c *Config) { c.Features.MissingPolicy = "ignore" },
		"extractor":      func(c *Config) { c.Features.Enabled = []string{"loudness"} },
		"glottal engine": func(c *Config) { c.Glottal.Engine = "matlab" },
		"glottal path":   func(c *Config) { c.Glottal.Engine = "command" },
		"format":         func(c *Config) { c.Output.Format = "xml" },
		"cache dir":      func(c *Config) { c.Cache.Enabled, c.Cache.Dir = true, "" },
		"workers":        func(c *Config) { c.Batch.Workers = 0 },
		"log level":      func(c *Config) { c.Log.Level = "loud" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("accepted")
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	assertSameYAML(t, cfg, Default())
}

// assertSameYAML compares configs by their dump, where nil and empty
// slices coincide.
func assertSameYAML(t *testing.T, got, want *Config) {
	t.Helper()
	g, err := got.YAML()
	if err != nil {
		t.Fatal(err)
	}
	w, err := want.YAML()
	if err != nil {
		t.Fatal(err)
	}
	if string(g) != string(w) {
		t.Errorf("config differs\n got:\n%s\nwant:\n%s", g, w)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voicefeat.yaml")
	yml := `
audio:
  timeout: 5s
analysis:
  pitch_floor: 60
features:
  enabled: [pitch, jitter]
  missing_policy: missing
output:
  format: yaml
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VOICEFEAT_BATCH_WORKERS", "9")
	t.Setenv("VOICEFEAT_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Audio.Timeout != 5*time.Second || cfg.Audio.SampleRate != 16000 {
		t.Errorf("audio = %+v", cfg.Audio)
	}
	if cfg.Analysis.PitchFloor != 60 || cfg.Analysis.PitchCeiling != 600 {
		t.Errorf("pitch range %v-%v", cfg.Analysis.PitchFloor, cfg.Analysis.PitchCeiling)
	}
	if !reflect.DeepEqual(cfg.Features.Enabled, []string{"pitch", "jitter"}) {
		t.Errorf("enabled = %v", cfg.Features.Enabled)
	}
	if cfg.Output.Format != FormatYAML || cfg.Batch.Workers != 9 || cfg.Log.Level != "debug" {
		t.Errorf("output %q workers %d level %q", cfg.Output.Format, cfg.Batch.Workers, cfg.Log.Level)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("batch:\n  workers: -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("negative workers accepted")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestAssemblerFromConfig(t *testing.T) {
	cfg := Default()
	loader, err := cfg.Loader()
	if err != nil {
		t.Fatal(err)
	}
	a, err := cfg.Assembler(loader, &logging.NoOpLogger{})
	if err != nil {
		t.Fatal(err)
	}
	if n := len(a.Names()); n != 36 {
		t.Errorf("%d feature names", n)
	}

	cfg.Features.Enabled = []string{"glottal"}
	cfg.Glottal.Engine = "command"
	cfg.Glottal.Command.Path = "/usr/bin/true"
	a, err = cfg.Assembler(loader, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.Names(), []string{"GCI", "H1H2", "HRF", "NAQ", "QOQ"}) {
		t.Errorf("names = %v", a.Names())
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	data, err := Default().YAML()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "dump.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	assertSameYAML(t, cfg, Default())
}
