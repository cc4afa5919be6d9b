package tonal

import (
	"math"
	"sort"

	"github.com/RyanBlaney/sonido-voice/algorithms/common"
)

// Pulses places one glottal pulse per period inside every voiced stretch of
// track. Starting from the strongest peak near the middle of a stretch it
// walks outwards, looking for the next waveform maximum between 0.8 and 1.2
// local periods away. Times are in seconds and sorted.
func Pulses(signal []float64, sampleRate int, track *PitchTrack) []float64 {
	if track == nil || sampleRate <= 0 || len(signal) == 0 {
		return nil
	}
	fs := float64(sampleRate)
	duration := float64(len(signal)) / fs

	var pulses []float64
	for _, run := range track.VoicedRuns() {
		times := make([]float64, 0, run[1]-run[0]+1)
		freqs := make([]float64, 0, run[1]-run[0]+1)
		for i := run[0]; i <= run[1]; i++ {
			times = append(times, track.Time(i))
			freqs = append(freqs, track.Frames[i].Frequency())
		}
		period := func(t float64) float64 {
			return 1 / common.Interpolate(times, freqs, t)
		}

		left := math.Max(track.Time(run[0])-0.5*track.Step, 0)
		right := math.Min(track.Time(run[1])+0.5*track.Step, duration)
		mid := 0.5 * (left + right)

		first, ok := peakBetween(signal, fs, mid-0.5*period(mid), mid+0.5*period(mid))
		if !ok {
			continue
		}

		stretch := []float64{first}
		for t := first; ; {
			T := period(t)
			next, ok := peakBetween(signal, fs, t+0.8*T, math.Min(t+1.2*T, right))
			if !ok || next <= t {
				break
			}
			stretch = append(stretch, next)
			t = next
		}
		for t := first; ; {
			T := period(t)
			prev, ok := peakBetween(signal, fs, math.Max(t-1.2*T, left), t-0.8*T)
			if !ok || prev >= t {
				break
			}
			stretch = append(stretch, prev)
			t = prev
		}

		pulses = append(pulses, stretch...)
	}

	sort.Float64s(pulses)
	return pulses
}

// PeriodAmplitudes returns the peak-to-peak amplitude of the waveform
// between each pair of consecutive pulses.
func PeriodAmplitudes(signal []float64, sampleRate int, pulses []float64) []float64 {
	if len(pulses) < 2 {
		return nil
	}
	fs := float64(sampleRate)
	amps := make([]float64, len(pulses)-1)
	for i := range amps {
		lo := max(int(math.Floor(pulses[i]*fs-0.5)), 0)
		hi := min(int(math.Ceil(pulses[i+1]*fs-0.5)), len(signal)-1)
		if lo > hi {
			continue
		}
		top, bottom := math.Inf(-1), math.Inf(1)
		for _, v := range signal[lo : hi+1] {
			top = math.Max(top, v)
			bottom = math.Min(bottom, v)
		}
		amps[i] = top - bottom
	}
	return amps
}

// peakBetween returns the time of the largest sample in [from, to],
// refined by parabolic interpolation.
func peakBetween(signal []float64, fs, from, to float64) (float64, bool) {
	lo := max(int(math.Ceil(from*fs-0.5)), 0)
	hi := min(int(math.Floor(to*fs-0.5)), len(signal)-1)
	if lo > hi {
		return 0, false
	}

	best := lo
	for i := lo + 1; i <= hi; i++ {
		if signal[i] > signal[best] {
			best = i
		}
	}

	offset := 0.0
	if best > 0 && best+1 < len(signal) {
		offset, _ = common.ParabolicPeak(signal[best-1], signal[best], signal[best+1])
	}
	return (float64(best) + 0.5 + offset) / fs, true
}
