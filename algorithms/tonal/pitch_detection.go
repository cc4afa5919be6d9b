package tonal

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/RyanBlaney/sonido-voice/algorithms/common"
	"github.com/RyanBlaney/sonido-voice/algorithms/spectral"
	"github.com/RyanBlaney/sonido-voice/algorithms/windowing"
)

// PitchMethod selects how periodicity is measured in each frame.
type PitchMethod int

const (
	// PitchAutocorrelation uses the Hann-windowed autocorrelation, corrected
	// for the window's own autocorrelation.
	PitchAutocorrelation PitchMethod = iota
	// PitchCrossCorrelation uses the normalised cross-correlation between a
	// window and its lagged copy.
	PitchCrossCorrelation
)

func (m PitchMethod) String() string {
	switch m {
	case PitchAutocorrelation:
		return "ac"
	case PitchCrossCorrelation:
		return "cc"
	default:
		return fmt.Sprintf("PitchMethod(%d)", int(m))
	}
}

// ParsePitchMethod accepts "ac" or "cc".
func ParsePitchMethod(s string) (PitchMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ac", "autocorrelation":
		return PitchAutocorrelation, nil
	case "cc", "crosscorrelation", "cross-correlation":
		return PitchCrossCorrelation, nil
	default:
		return 0, fmt.Errorf("unknown pitch method %q", s)
	}
}

func (m PitchMethod) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *PitchMethod) UnmarshalText(text []byte) error {
	parsed, err := ParsePitchMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// PitchTrackerParams configures candidate search and path finding.
type PitchTrackerParams struct {
	Method             PitchMethod `json:"method"`
	TimeStep           float64     `json:"time_step"`            // seconds; 0 selects 0.75/Floor
	Floor              float64     `json:"floor"`                // Hz
	Ceiling            float64     `json:"ceiling"`              // Hz
	PeriodsPerWindow   float64     `json:"periods_per_window"`   // window length in periods of Floor
	MaxCandidates      int         `json:"max_candidates"`       // including the unvoiced candidate
	SilenceThreshold   float64     `json:"silence_threshold"`    // relative to the global peak
	VoicingThreshold   float64     `json:"voicing_threshold"`    // minimum periodicity strength
	OctaveCost         float64     `json:"octave_cost"`          // per octave, favours high candidates
	OctaveJumpCost     float64     `json:"octave_jump_cost"`     // per octave between frames
	VoicedUnvoicedCost float64     `json:"voiced_unvoiced_cost"` // per voicing transition
}

// DefaultPitchTrackerParams returns the customary autocorrelation settings
// for speech with a 75-600 Hz range.
func DefaultPitchTrackerParams() PitchTrackerParams {
	return PitchTrackerParams{
		Method:             PitchAutocorrelation,
		TimeStep:           0,
		Floor:              75,
		Ceiling:            600,
		PeriodsPerWindow:   3,
		MaxCandidates:      15,
		SilenceThreshold:   0.03,
		VoicingThreshold:   0.45,
		OctaveCost:         0.01,
		OctaveJumpCost:     0.35,
		VoicedUnvoicedCost: 0.14,
	}
}

// Validate checks the parameters for consistency.
func (p PitchTrackerParams) Validate() error {
	switch {
	case !(p.Floor > 0):
		return fmt.Errorf("pitch floor must be positive, got %v", p.Floor)
	case !(p.Ceiling > p.Floor):
		return fmt.Errorf("pitch ceiling %v must exceed floor %v", p.Ceiling, p.Floor)
	case !(p.PeriodsPerWindow > 0):
		return fmt.Errorf("periods per window must be positive, got %v", p.PeriodsPerWindow)
	case p.MaxCandidates < 2:
		return fmt.Errorf("need at least 2 candidates, got %d", p.MaxCandidates)
	case p.TimeStep < 0:
		return fmt.Errorf("negative time step %v", p.TimeStep)
	}
	return nil
}

// Step returns the effective frame step in seconds.
func (p PitchTrackerParams) Step() float64 {
	if p.TimeStep > 0 {
		return p.TimeStep
	}
	return 0.75 / p.Floor
}

// WindowDuration returns the analysis window length in seconds.
func (p PitchTrackerParams) WindowDuration() float64 {
	return p.PeriodsPerWindow / p.Floor
}

// PitchCandidate is one periodicity hypothesis. Frequency 0 marks the
// unvoiced hypothesis.
type PitchCandidate struct {
	Frequency float64 `json:"frequency"`
	Strength  float64 `json:"strength"`
}

// PitchFrame holds the candidates of one frame and the one chosen by path
// finding. Candidates[0] is always the unvoiced candidate.
type PitchFrame struct {
	Time       float64          `json:"time"`
	Intensity  float64          `json:"intensity"` // local peak relative to the global peak
	Candidates []PitchCandidate `json:"candidates"`
	Selected   int              `json:"selected"`
}

// Frequency returns the selected frequency, 0 when unvoiced.
func (f PitchFrame) Frequency() float64 {
	return f.Candidates[f.Selected].Frequency
}

// Strength returns the periodicity strength of the selected candidate.
func (f PitchFrame) Strength() float64 {
	return f.Candidates[f.Selected].Strength
}

// Voiced reports whether a periodic candidate was selected.
func (f PitchFrame) Voiced() bool {
	return f.Frequency() > 0
}

// PitchTrack is the result of tracking a whole signal.
type PitchTrack struct {
	Start    float64      `json:"start"`
	Step     float64      `json:"step"`
	Duration float64      `json:"duration"`
	Frames   []PitchFrame `json:"frames"`
}

// Time returns the centre time of frame i.
func (t *PitchTrack) Time(i int) float64 {
	return t.Start + float64(i)*t.Step
}

// Frequencies returns the selected frequency of every frame, 0 where
// unvoiced.
func (t *PitchTrack) Frequencies() []float64 {
	out := make([]float64, len(t.Frames))
	for i, f := range t.Frames {
		out[i] = f.Frequency()
	}
	return out
}

// VoicedRuns returns the inclusive frame ranges of consecutive voiced
// frames.
func (t *PitchTrack) VoicedRuns() [][2]int {
	var runs [][2]int
	for i := 0; i < len(t.Frames); i++ {
		if !t.Frames[i].Voiced() {
			continue
		}
		j := i
		for j+1 < len(t.Frames) && t.Frames[j+1].Voiced() {
			j++
		}
		runs = append(runs, [2]int{i, j})
		i = j
	}
	return runs
}

// PitchTracker estimates fundamental frequency frame by frame and picks the
// cheapest path through the candidates with dynamic programming.
type PitchTracker struct {
	sampleRate int
	params     PitchTrackerParams
	fft        *spectral.FFT
}

// NewPitchTracker creates a tracker for signals at sampleRate.
func NewPitchTracker(sampleRate int, params PitchTrackerParams) (*PitchTracker, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if params.Ceiling > float64(sampleRate)/2 {
		params.Ceiling = float64(sampleRate) / 2
	}
	return &PitchTracker{
		sampleRate: sampleRate,
		params:     params,
		fft:        spectral.NewFFT(),
	}, nil
}

// Params returns the effective parameters.
func (pt *PitchTracker) Params() PitchTrackerParams { return pt.params }

// Track analyses the whole signal.
func (pt *PitchTracker) Track(signal []float64) (*PitchTrack, error) {
	p := pt.params
	fs := float64(pt.sampleRate)
	window := p.WindowDuration()

	layoutWindow := window
	if p.Method == PitchCrossCorrelation {
		// the lagged copy reaches one longest period past the window
		layoutWindow += 1 / p.Floor
	}
	layout, err := common.NewFrameLayout(len(signal), pt.sampleRate, layoutWindow, p.Step())
	if err != nil {
		return nil, fmt.Errorf("pitch analysis: %w", err)
	}

	windowSamples := max(int(math.Round(window*fs)), 4)
	minLag := max(int(math.Floor(fs/p.Ceiling)), 2)
	maxLag := int(math.Ceil(fs / p.Floor))
	if p.Method == PitchAutocorrelation {
		maxLag = min(maxLag, windowSamples/2)
	}

	centred := common.SubtractMean(signal)
	globalPeak := common.AbsMax(centred)

	var analyse func(i int) ([]float64, float64)
	switch p.Method {
	case PitchCrossCorrelation:
		analyse = func(i int) ([]float64, float64) {
			start := layout.CentreSample(i) - windowSamples/2
			segment := common.SubtractMean(common.ExtractAt(centred, start, windowSamples+maxLag+1))
			return crossCorrelation(segment, windowSamples, maxLag+1), common.AbsMax(segment)
		}
	default:
		hann := windowing.NewHann(windowSamples, true)
		windowR := pt.fft.Autocorrelation(hann.Coefficients(), maxLag+1)
		analyse = func(i int) ([]float64, float64) {
			frame := common.SubtractMean(layout.Extract(centred, i, windowSamples))
			peak := common.AbsMax(frame)
			hann.ApplyInPlace(frame)
			return pt.normalisedAutocorrelation(frame, windowR, maxLag+1), peak
		}
	}

	frames := make([]PitchFrame, layout.Count)
	for i := range frames {
		r, localPeak := analyse(i)

		intensity := 0.0
		if globalPeak > 0 {
			intensity = math.Min(localPeak/globalPeak, 1)
		}

		unvoiced := p.VoicingThreshold
		if p.SilenceThreshold > 0 {
			unvoiced += math.Max(0, 2-intensity/(p.SilenceThreshold/(1+p.VoicingThreshold)))
		}

		candidates := []PitchCandidate{{Frequency: 0, Strength: unvoiced}}
		if r != nil {
			candidates = append(candidates, pt.candidates(r, minLag, maxLag)...)
		}
		frames[i] = PitchFrame{
			Time:       layout.Time(i),
			Intensity:  intensity,
			Candidates: candidates,
		}
	}

	pt.findPath(frames)

	return &PitchTrack{
		Start:    layout.Start,
		Step:     layout.Step,
		Duration: float64(len(signal)) / fs,
		Frames:   frames,
	}, nil
}

// normalisedAutocorrelation divides the frame's autocorrelation by that of
// the window. It returns nil for a frame without energy.
func (pt *PitchTracker) normalisedAutocorrelation(frame, windowR []float64, maxLag int) []float64 {
	r := pt.fft.Autocorrelation(frame, maxLag)
	if r[0] <= 0 {
		return nil
	}
	out := make([]float64, len(r))
	for lag := range r {
		if windowR[lag] > 0 {
			out[lag] = (r[lag] / r[0]) / (windowR[lag] / windowR[0])
		}
	}
	return out
}

// crossCorrelation correlates the first n samples of segment with the n
// samples starting at each lag up to maxLag.
func crossCorrelation(segment []float64, n, maxLag int) []float64 {
	ex := 0.0
	for _, v := range segment[:n] {
		ex += v * v
	}
	if ex <= 0 {
		return nil
	}

	r := make([]float64, maxLag+1)
	ey := ex
	for lag := 0; lag <= maxLag && lag+n <= len(segment); lag++ {
		if lag > 0 {
			ey += segment[lag+n-1]*segment[lag+n-1] - segment[lag-1]*segment[lag-1]
		}
		if ey <= 0 {
			continue
		}
		sum := 0.0
		for j := 0; j < n; j++ {
			sum += segment[j] * segment[j+lag]
		}
		r[lag] = sum / math.Sqrt(ex*ey)
	}
	return r
}

// candidates returns the strongest local maxima of r between minLag and
// maxLag, at most MaxCandidates-1 of them.
func (pt *PitchTracker) candidates(r []float64, minLag, maxLag int) []PitchCandidate {
	p := pt.params
	fs := float64(pt.sampleRate)

	var out []PitchCandidate
	for lag := max(minLag, 1); lag <= maxLag && lag+1 < len(r); lag++ {
		if !(r[lag] > 0.5*p.VoicingThreshold) || r[lag] <= r[lag-1] || r[lag] < r[lag+1] {
			continue
		}
		offset, strength := common.ParabolicPeak(r[lag-1], r[lag], r[lag+1])
		freq := fs / (float64(lag) + offset)
		if freq < p.Floor || freq > p.Ceiling {
			continue
		}
		if strength > 1 {
			strength = 1 / strength
		}
		out = append(out, PitchCandidate{Frequency: freq, Strength: strength})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return pt.localScore(out[i]) > pt.localScore(out[j])
	})
	if len(out) > p.MaxCandidates-1 {
		out = out[:p.MaxCandidates-1]
	}
	return out
}

func (pt *PitchTracker) localScore(c PitchCandidate) float64 {
	if c.Frequency == 0 {
		return c.Strength
	}
	return c.Strength - pt.params.OctaveCost*math.Log2(pt.params.Ceiling/c.Frequency)
}

// findPath selects one candidate per frame, maximising the summed local
// scores minus the transition costs.
func (pt *PitchTracker) findPath(frames []PitchFrame) {
	if len(frames) == 0 {
		return
	}
	p := pt.params
	correction := 0.01 / p.Step()
	voicedUnvoiced := p.VoicedUnvoicedCost * correction
	octaveJump := p.OctaveJumpCost * correction

	transition := func(a, b PitchCandidate) float64 {
		switch {
		case a.Frequency == 0 && b.Frequency == 0:
			return 0
		case a.Frequency == 0 || b.Frequency == 0:
			return voicedUnvoiced
		default:
			return octaveJump * math.Abs(math.Log2(a.Frequency/b.Frequency))
		}
	}

	score := make([][]float64, len(frames))
	back := make([][]int, len(frames))
	score[0] = make([]float64, len(frames[0].Candidates))
	for j, c := range frames[0].Candidates {
		score[0][j] = pt.localScore(c)
	}

	for i := 1; i < len(frames); i++ {
		prev := frames[i-1].Candidates
		score[i] = make([]float64, len(frames[i].Candidates))
		back[i] = make([]int, len(frames[i].Candidates))
		for j, cur := range frames[i].Candidates {
			best, arg := math.Inf(-1), 0
			for k, c := range prev {
				if v := score[i-1][k] - transition(c, cur); v > best {
					best, arg = v, k
				}
			}
			score[i][j] = best + pt.localScore(cur)
			back[i][j] = arg
		}
	}

	last := len(frames) - 1
	sel := 0
	for j, v := range score[last] {
		if v > score[last][sel] {
			sel = j
		}
	}
	for i := last; i >= 0; i-- {
		frames[i].Selected = sel
		if i > 0 {
			sel = back[i][sel]
		}
	}
}
