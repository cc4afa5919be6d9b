package tonal

import (
	"math"
	"math/rand"
	"testing"
)

func sine(freq float64, sampleRate, n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return x
}

func trackerFor(t *testing.T, method PitchMethod) *PitchTracker {
	t.Helper()
	params := DefaultPitchTrackerParams()
	params.Method = method
	params.TimeStep = 0.01
	if method == PitchCrossCorrelation {
		params.PeriodsPerWindow = 1
	}
	pt, err := NewPitchTracker(16000, params)
	if err != nil {
		t.Fatal(err)
	}
	return pt
}

func TestTrackSine(t *testing.T) {
	for _, method := range []PitchMethod{PitchAutocorrelation, PitchCrossCorrelation} {
		t.Run(method.String(), func(t *testing.T) {
			track, err := trackerFor(t, method).Track(sine(220, 16000, 16000))
			if err != nil {
				t.Fatal(err)
			}
			if len(track.Frames) < 90 {
				t.Fatalf("frames = %d", len(track.Frames))
			}
			for i, f := range track.Frames {
				if !f.Voiced() {
					t.Fatalf("frame %d at %.3fs unvoiced", i, f.Time)
				}
				if math.Abs(f.Frequency()-220) > 2 {
					t.Fatalf("frame %d frequency %v, want ~220", i, f.Frequency())
				}
				if f.Strength() < 0.9 || f.Strength() > 1 {
					t.Fatalf("frame %d strength %v", i, f.Strength())
				}
			}
		})
	}
}

func TestTrackSilence(t *testing.T) {
	track, err := trackerFor(t, PitchAutocorrelation).Track(make([]float64, 16000))
	if err != nil {
		t.Fatal(err)
	}
	for i, f := range track.Frames {
		if f.Voiced() {
			t.Fatalf("silent frame %d voiced at %v Hz", i, f.Frequency())
		}
	}
	if runs := track.VoicedRuns(); len(runs) != 0 {
		t.Errorf("voiced runs in silence: %v", runs)
	}
}

func TestTrackVoicingBoundary(t *testing.T) {
	// half a second of tone followed by half a second of silence
	x := sine(150, 16000, 16000)
	for i := 8000; i < len(x); i++ {
		x[i] = 0
	}
	track, err := trackerFor(t, PitchAutocorrelation).Track(x)
	if err != nil {
		t.Fatal(err)
	}

	runs := track.VoicedRuns()
	if len(runs) != 1 {
		t.Fatalf("runs = %v", runs)
	}
	if end := track.Time(runs[0][1]); end > 0.55 {
		t.Errorf("voicing extends to %.3fs", end)
	}
	if start := track.Time(runs[0][0]); start > 0.05 {
		t.Errorf("voicing starts at %.3fs", start)
	}
}

func TestTrackNoiseIsMostlyUnvoiced(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	x := make([]float64, 16000)
	for i := range x {
		x[i] = rng.NormFloat64() * 0.1
	}
	track, err := trackerFor(t, PitchAutocorrelation).Track(x)
	if err != nil {
		t.Fatal(err)
	}
	voiced := 0
	for _, f := range track.Frames {
		if f.Voiced() {
			voiced++
		}
	}
	if voiced > len(track.Frames)/4 {
		t.Errorf("%d of %d noise frames voiced", voiced, len(track.Frames))
	}
}

func TestTrackErrors(t *testing.T) {
	if _, err := trackerFor(t, PitchAutocorrelation).Track(make([]float64, 100)); err == nil {
		t.Error("signal shorter than a window accepted")
	}

	bad := DefaultPitchTrackerParams()
	bad.Ceiling = 50
	if _, err := NewPitchTracker(16000, bad); err == nil {
		t.Error("ceiling below floor accepted")
	}
	if _, err := NewPitchTracker(0, DefaultPitchTrackerParams()); err == nil {
		t.Error("zero sample rate accepted")
	}
}

func TestParsePitchMethod(t *testing.T) {
	tests := map[string]PitchMethod{"ac": PitchAutocorrelation, "CC": PitchCrossCorrelation, " cc ": PitchCrossCorrelation}
	for in, want := range tests {
		got, err := ParsePitchMethod(in)
		if err != nil || got != want {
			t.Errorf("ParsePitchMethod(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParsePitchMethod("yin"); err == nil {
		t.Error("unknown method accepted")
	}
}

func TestPulsesFollowPeriod(t *testing.T) {
	x := sine(200, 16000, 16000)
	track, err := trackerFor(t, PitchAutocorrelation).Track(x)
	if err != nil {
		t.Fatal(err)
	}

	pulses := Pulses(x, 16000, track)
	if len(pulses) < 150 {
		t.Fatalf("pulses = %d, want about 190", len(pulses))
	}
	for i := 1; i < len(pulses); i++ {
		if d := pulses[i] - pulses[i-1]; math.Abs(d-0.005) > 1e-4 {
			t.Fatalf("pulse gap %d = %v, want 0.005", i, d)
		}
	}

	amps := PeriodAmplitudes(x, 16000, pulses)
	if len(amps) != len(pulses)-1 {
		t.Fatalf("amplitudes = %d", len(amps))
	}
	for _, a := range amps {
		if math.Abs(a-1) > 0.01 {
			t.Fatalf("peak-to-peak %v, want ~1", a)
		}
	}
}

func TestPulsesOfSilence(t *testing.T) {
	x := make([]float64, 16000)
	track, err := trackerFor(t, PitchAutocorrelation).Track(x)
	if err != nil {
		t.Fatal(err)
	}
	if p := Pulses(x, 16000, track); len(p) != 0 {
		t.Errorf("pulses in silence: %d", len(p))
	}
	if a := PeriodAmplitudes(x, 16000, nil); a != nil {
		t.Errorf("amplitudes without pulses: %v", a)
	}
}
