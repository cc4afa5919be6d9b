package common

import (
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestFrameLayout(t *testing.T) {
	tests := []struct {
		name      string
		samples   int
		window    float64
		step      float64
		wantCount int
		wantStart float64
	}{
		{"pitch over one second", 16000, 0.04, 0.01, 97, 0.02},
		{"window fills signal", 1600, 0.1, 0.01, 1, 0.05},
		{"odd remainder", 16000, 0.025, 0.01, 98, 0.015},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewFrameLayout(tt.samples, 16000, tt.window, tt.step)
			if err != nil {
				t.Fatal(err)
			}
			if l.Count != tt.wantCount {
				t.Errorf("count = %d, want %d", l.Count, tt.wantCount)
			}
			if !almostEqual(l.Start, tt.wantStart, 1e-9) {
				t.Errorf("start = %v, want %v", l.Start, tt.wantStart)
			}
			// frames are symmetric about the middle of the signal
			mid := 0.5 * float64(tt.samples) / 16000
			if !almostEqual(l.Time(0)+l.Time(l.Count-1), 2*mid, 1e-9) {
				t.Errorf("layout not centred: %v .. %v", l.Time(0), l.Time(l.Count-1))
			}
		})
	}
}

func TestFrameLayoutErrors(t *testing.T) {
	if _, err := NewFrameLayout(100, 16000, 0.04, 0.01); !errors.Is(err, ErrSignalTooShort) {
		t.Errorf("short signal: %v", err)
	}
	if _, err := NewFrameLayout(16000, 16000, 0.04, 0); err == nil {
		t.Error("zero step accepted")
	}
	if _, err := NewFrameLayout(16000, 0, 0.04, 0.01); err == nil {
		t.Error("zero sample rate accepted")
	}
}

func TestExtract(t *testing.T) {
	signal := []float64{1, 2, 3, 4, 5}
	got := ExtractAt(signal, -2, 4)
	want := []float64{0, 0, 1, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ExtractAt = %v, want %v", got, want)
		}
	}
	if tail := ExtractAt(signal, 4, 3); tail[0] != 5 || tail[1] != 0 {
		t.Errorf("tail = %v", tail)
	}
}

func TestParabolicPeak(t *testing.T) {
	// y = -(x-0.3)^2 + 1 sampled at -1, 0, 1
	f := func(x float64) float64 { return 1 - (x-0.3)*(x-0.3) }
	offset, height := ParabolicPeak(f(-1), f(0), f(1))
	if !almostEqual(offset, 0.3, 1e-12) || !almostEqual(height, 1, 1e-12) {
		t.Errorf("peak = %v, %v", offset, height)
	}

	if offset, height := ParabolicPeak(1, 1, 1); offset != 0 || height != 1 {
		t.Errorf("flat peak = %v, %v", offset, height)
	}
}

func TestHelpers(t *testing.T) {
	if got := Interpolate([]float64{0, 1, 2}, []float64{0, 10, 0}, 0.5); got != 5 {
		t.Errorf("Interpolate = %v", got)
	}
	if got := AbsMax([]float64{0.5, -2, 1}); got != 2 {
		t.Errorf("AbsMax = %v", got)
	}
	centred := SubtractMean([]float64{1, 2, 3})
	if centred[0] != -1 || centred[2] != 1 {
		t.Errorf("SubtractMean = %v", centred)
	}
	if Clamp(5, 0, 1) != 1 || Clamp(-1, 0, 1) != 0 {
		t.Error("Clamp")
	}
}
