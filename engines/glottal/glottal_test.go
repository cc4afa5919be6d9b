package glottal

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-voice/audio"
	"github.com/RyanBlaney/sonido-voice/engines"
)

const rate = 16000

// mapLoader serves waveforms by path.
type mapLoader map[string]*audio.Waveform

func (m mapLoader) Load(_ context.Context, path string) (*audio.Waveform, error) {
	w, ok := m[path]
	if !ok {
		return nil, engines.Unavailable(engines.Loader, "cannot read "+path, os.ErrNotExist)
	}
	return w, nil
}

func waveform(t *testing.T, x []float64) *audio.Waveform {
	t.Helper()
	w, err := audio.NewWaveform(x, rate, "")
	if err != nil {
		t.Fatal(err)
	}
	return w
}

// voice sums harmonics of f0 with a -12 dB/octave source tilt.
func voice(f0, seconds float64) []float64 {
	x := make([]float64, int(seconds*rate))
	for i := range x {
		ts := float64(i) / rate
		for k := 1; float64(k)*f0 < 4000; k++ {
			x[i] += 0.5 / float64(k*k) * math.Sin(2*math.Pi*float64(k)*f0*ts)
		}
	}
	return x
}

func TestStaticNames(t *testing.T) {
	names := StaticNames()
	if len(names) != 2*len(FrameFeatures) {
		t.Fatalf("names = %d", len(names))
	}
	for _, want := range []string{
		"global avg var GCI", "global avg std NAQ", "global avg std QOQ",
		"global avg std H1H2", "global avg std HRF",
	} {
		found := false
		for _, n := range names {
			found = found || n == want
		}
		if !found {
			t.Errorf("missing %q", want)
		}
	}
}

func TestNativeVoiced(t *testing.T) {
	loader := mapLoader{"voice.wav": waveform(t, voice(150, 1))}
	n, err := NewNative(loader, DefaultNativeConfig())
	if err != nil {
		t.Fatal(err)
	}

	table, err := n.AnalyzeFile(context.Background(), "voice.wav")
	if err != nil {
		t.Fatal(err)
	}
	if len(table) != len(StaticNames()) {
		t.Fatalf("table has %d entries", len(table))
	}

	naq, ok := table.Get(GlobalAvg(AvgNAQ))
	if !ok || !naq.Defined || naq.Value <= 0 {
		t.Errorf("NAQ = %v", naq)
	}
	qoq, _ := table.Get(GlobalAvg(AvgQOQ))
	if !qoq.Defined || qoq.Value <= 0 || qoq.Value > 1 {
		t.Errorf("QOQ = %v", qoq)
	}
	if m, _ := table.Get(GlobalAvg(VarGCI)); !m.Defined || m.Value < 0 {
		t.Errorf("var GCI = %v", m)
	}
}

func TestNativeSilence(t *testing.T) {
	loader := mapLoader{"silence.wav": waveform(t, make([]float64, rate))}
	n, _ := NewNative(loader, DefaultNativeConfig())

	table, err := n.AnalyzeFile(context.Background(), "silence.wav")
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range table.Names() {
		if table[name].Defined {
			t.Errorf("%s = %v in silence", name, table[name])
		}
	}
}

func TestNativeUnavailable(t *testing.T) {
	loader := mapLoader{"short.wav": waveform(t, make([]float64, 100))}
	n, _ := NewNative(loader, DefaultNativeConfig())

	if _, err := n.AnalyzeFile(context.Background(), "short.wav"); !engines.IsUnavailable(err) {
		t.Errorf("short file: %v", err)
	}
	if _, err := n.AnalyzeFile(context.Background(), "missing.wav"); !engines.IsUnavailable(err) {
		t.Errorf("missing file: %v", err)
	}
	if _, err := NewNative(nil, DefaultNativeConfig()); err == nil {
		t.Error("nil loader accepted")
	}
	bad := DefaultNativeConfig()
	bad.HarmonicCycles = 1
	if _, err := NewNative(loader, bad); err == nil {
		t.Error("one harmonic cycle accepted")
	}
}

func TestParseCSV(t *testing.T) {
	in := ",global avg var GCI, global avg std NAQ,global avg std QOQ\n0,0.25, nan,\n"
	table, err := ParseCSV(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(table) != 3 {
		t.Fatalf("table = %v", table)
	}
	if m := table["global avg var GCI"]; !m.Defined || m.Value != 0.25 {
		t.Errorf("GCI = %v", m)
	}
	if m := table["global avg std NAQ"]; m.Defined {
		t.Errorf("nan parsed as %v", m)
	}
	if m := table["global avg std QOQ"]; m.Defined {
		t.Errorf("empty cell parsed as %v", m)
	}

	if _, err := ParseCSV(strings.NewReader("a,b\n")); err == nil {
		t.Error("missing value row accepted")
	}
}

func TestCommandMissingBinary(t *testing.T) {
	c, err := NewCommand(CommandConfig{Path: filepath.Join(t.TempDir(), "no-such-analyzer")})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.AnalyzeFile(context.Background(), "x.wav")
	var unavailable *engines.EngineUnavailableError
	if !errors.As(err, &unavailable) || unavailable.Engine != engines.Glottal {
		t.Errorf("err = %v", err)
	}

	if _, err := NewCommand(CommandConfig{}); err == nil {
		t.Error("empty path accepted")
	}
}

func TestCommandScript(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script analyzer")
	}
	script := filepath.Join(t.TempDir(), "analyzer.sh")
	body := "#!/bin/sh\necho 'global avg var GCI,global avg std HRF'\necho \"1.5,$1\"\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}

	c, _ := NewCommand(CommandConfig{Path: script, Timeout: 10 * time.Second})
	table, err := c.AnalyzeFile(context.Background(), "42")
	if err != nil {
		t.Fatal(err)
	}
	if m := table["global avg var GCI"]; m.Value != 1.5 {
		t.Errorf("GCI = %v", m)
	}
	// the path argument is echoed back as the second value
	if m := table["global avg std HRF"]; m.Value != 42 {
		t.Errorf("HRF = %v", m)
	}

	failing := filepath.Join(t.TempDir(), "fail.sh")
	os.WriteFile(failing, []byte("#!/bin/sh\necho boom >&2\nexit 3\n"), 0o755)
	c, _ = NewCommand(CommandConfig{Path: failing})
	if _, err := c.AnalyzeFile(context.Background(), "x.wav"); !engines.IsUnavailable(err) || !strings.Contains(err.Error(), "boom") {
		t.Errorf("failing analyzer: %v", err)
	}
}
