package features

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"reflect"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/RyanBlaney/sonido-voice/audio"
	"github.com/RyanBlaney/sonido-voice/engines"
	"github.com/RyanBlaney/sonido-voice/logging"
	"github.com/RyanBlaney/sonido-voice/series"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func defaultSampler(t *testing.T) *Sampler {
	t.Helper()
	s, err := NewSampler(DefaultSamplingConfig())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func waveform(t *testing.T, seconds float64) *audio.Waveform {
	t.Helper()
	w, err := audio.NewWaveform(make([]float64, int(seconds*16000)), 16000, "clip.wav")
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func TestDefaultSamplingConfig(t *testing.T) {
	cfg := DefaultSamplingConfig()
	if len(cfg.Offsets) != 33 || cfg.Offsets[0] != 0.03 || cfg.Offsets[32] != 0.99 {
		t.Fatalf("offsets = %v", cfg.Offsets)
	}
	if cfg.Len() != 12 {
		t.Fatalf("Len = %d", cfg.Len())
	}
}

func TestSamplerLengthIsConstant(t *testing.T) {
	s := defaultSampler(t)
	identity := series.LookupFunc(func(t float64) series.Measurement { return series.Of(t) })

	for _, iv := range []audio.Interval{
		{Start: 0, End: 0.01},
		{Start: 0, End: 1},
		{Start: 2.5, End: 600},
		{Start: 0.4, End: 0.4},
	} {
		if got := len(s.Sample(identity, iv)); got != 12 {
			t.Errorf("%v: %d samples, want 12", iv, got)
		}
	}
}

func TestSamplerTimes(t *testing.T) {
	s := defaultSampler(t)
	times := s.Times(audio.Interval{Start: 1, End: 2})

	// samples 11..22 of 33 sit at 33% .. 66%
	if !almostEqual(times[0], 1.33, 1e-12) || !almostEqual(times[11], 1.66, 1e-12) {
		t.Errorf("times = %v", times)
	}
	for i := 1; i < len(times); i++ {
		if !almostEqual(times[i]-times[i-1], 0.03, 1e-12) {
			t.Fatalf("uneven spacing at %d: %v", i, times)
		}
	}
}

func TestSamplerDegenerateInterval(t *testing.T) {
	s := defaultSampler(t)
	calls := 0
	lookup := series.LookupFunc(func(t float64) series.Measurement {
		calls++
		return series.Of(100 + t)
	})

	got := s.Sample(lookup, audio.Interval{Start: 0.4, End: 0.4})
	if len(got) != 12 || calls != 12 {
		t.Fatalf("len = %d, calls = %d", len(got), calls)
	}
	for i, m := range got {
		if m != got[0] || !almostEqual(m.Value, 100.4, 1e-12) {
			t.Fatalf("sample %d = %v, want repeated 100.4", i, m)
		}
	}
}

func TestSamplerPassesUndefined(t *testing.T) {
	s := defaultSampler(t)
	lookup := series.LookupFunc(func(t float64) series.Measurement {
		if t < 0.5 {
			return series.Undefined
		}
		return series.Of(1)
	})
	got := s.Sample(lookup, audio.Interval{Start: 0, End: 1})
	if got[0].Defined || !got[11].Defined {
		t.Errorf("got %v", got)
	}
}

func TestSamplingConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  SamplingConfig
		ok   bool
	}{
		{"default", DefaultSamplingConfig(), true},
		{"untrimmed", SamplingConfig{Offsets: PercentOffsets(3, 99, 3)}, true},
		{"empty", SamplingConfig{}, false},
		{"offset at 1", SamplingConfig{Offsets: []float64{0.5, 1}}, false},
		{"offset at 0", SamplingConfig{Offsets: []float64{0, 0.5}}, false},
		{"decreasing", SamplingConfig{Offsets: []float64{0.6, 0.5}}, false},
		{"trimmed away", SamplingConfig{Offsets: []float64{0.2, 0.4}, TrimHead: 1, TrimTail: 1}, false},
		{"negative trim", SamplingConfig{Offsets: []float64{0.2, 0.4}, TrimHead: -1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSampler(tt.cfg)
			if (err == nil) != tt.ok {
				t.Errorf("err = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestMean(t *testing.T) {
	const sentinel = -200.0
	raw := []float64{sentinel, 10, sentinel, 20, 30}
	c, err := series.NewContour(0, 1, raw, nil)
	if err != nil {
		t.Fatal(err)
	}

	m := Mean(c.WithSentinel(sentinel).Measurements())
	if !m.Defined || m.Value != 20 {
		t.Errorf("mean = %v, want 20", m)
	}

	allSentinel, _ := series.NewContour(0, 1, []float64{sentinel, sentinel}, nil)
	if m := Mean(allSentinel.WithSentinel(sentinel).Measurements()); m.Defined {
		t.Errorf("all-sentinel mean = %v, want missing", m)
	}
	if m := Mean(nil); m.Defined {
		t.Errorf("empty mean = %v", m)
	}
}

// fakeExtractor returns fixed values and counts calls.
type fakeExtractor struct {
	name   string
	values map[string]Value
	err    error
	calls  *atomic.Int32
}

func (f *fakeExtractor) Name() string { return f.name }

func (f *fakeExtractor) Names() []string {
	var names []string
	for n := range f.values {
		names = append(names, n)
	}
	return names
}

func (f *fakeExtractor) Extract(ctx context.Context, in Input) (map[string]Value, error) {
	if f.calls != nil {
		f.calls.Add(1)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.values, nil
}

func scalar(v float64) Value { return Scalar(series.Of(v)) }

func TestAssemblerDuplicateNames(t *testing.T) {
	var calls atomic.Int32
	a := &fakeExtractor{name: "pitch", values: map[string]Value{"pitch": scalar(1)}, calls: &calls}
	b := &fakeExtractor{name: "other", values: map[string]Value{"f1": scalar(2), "pitch": scalar(3)}, calls: &calls}

	_, err := NewAssembler([]Extractor{a, b})
	var dup *DuplicateFeatureNameError
	if !errors.As(err, &dup) {
		t.Fatalf("err = %v", err)
	}
	if dup.Name != "pitch" || dup.First != "pitch" || dup.Second != "other" {
		t.Errorf("dup = %+v", dup)
	}
	if calls.Load() != 0 {
		t.Errorf("engines called %d times before the duplicate was reported", calls.Load())
	}
}

func TestAssembleIsOrderIndependent(t *testing.T) {
	extractors := []Extractor{
		&fakeExtractor{name: "a", values: map[string]Value{"pitch": Sequence(series.Measurements([]float64{1, 2}))}},
		&fakeExtractor{name: "b", values: map[string]Value{"f1": scalar(500), "f2": scalar(1500)}},
		&fakeExtractor{name: "c", values: map[string]Value{"COG": scalar(900)}},
		&fakeExtractor{name: "d", values: map[string]Value{"hnr": Scalar(series.Undefined)}},
	}
	in := Input{Waveform: waveform(t, 1), Interval: audio.Interval{Start: 0.1, End: 0.9}, Label: "a"}

	first, err := mustAssembler(t, extractors).Assemble(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Features) != 5 || first.Source != "clip.wav" || first.Label != "a" {
		t.Fatalf("record = %+v", first)
	}

	rng := rand.New(rand.NewSource(7))
	for range 10 {
		shuffled := append([]Extractor(nil), extractors...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got, err := mustAssembler(t, shuffled).Assemble(context.Background(), in)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got, first) {
			t.Fatalf("shuffled record differs:\n%+v\n%+v", got, first)
		}
	}
}

func mustAssembler(t *testing.T, extractors []Extractor, opts ...AssemblerOption) *Assembler {
	t.Helper()
	opts = append(opts, WithLogger(&logging.NoOpLogger{}))
	a, err := NewAssembler(extractors, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestAssembleRejectsBadIntervalFirst(t *testing.T) {
	var calls atomic.Int32
	a := mustAssembler(t, []Extractor{
		&fakeExtractor{name: "a", values: map[string]Value{"x": scalar(1)}, calls: &calls},
	})
	w := waveform(t, 1)

	for _, iv := range []audio.Interval{
		{Start: 0.6, End: 0.5},
		{Start: -0.1, End: 0.5},
		{Start: 0.5, End: 1.5},
	} {
		_, err := a.Assemble(context.Background(), Input{Waveform: w, Interval: iv})
		var invalid *audio.InvalidIntervalError
		if !errors.As(err, &invalid) {
			t.Errorf("%v: err = %v", iv, err)
		}
	}
	if calls.Load() != 0 {
		t.Errorf("extractor called %d times", calls.Load())
	}

	// zero-length intervals are accepted unless disabled
	if _, err := a.Assemble(context.Background(), Input{Waveform: w, Interval: audio.Interval{Start: 0.4, End: 0.4}}); err != nil {
		t.Errorf("degenerate interval: %v", err)
	}
	strict := mustAssembler(t, nil, WithDegenerateIntervals(false))
	if _, err := strict.Assemble(context.Background(), Input{Waveform: w, Interval: audio.Interval{Start: 0.4, End: 0.4}}); err == nil {
		t.Error("strict assembler accepted a degenerate interval")
	}

	if _, err := a.Assemble(context.Background(), Input{}); !errors.Is(err, ErrNoWaveform) {
		t.Errorf("no waveform: %v", err)
	}
}

func TestAssembleFailurePolicy(t *testing.T) {
	failure := engines.Unavailable(engines.Glottal, "analyzer not found", nil)
	extractors := []Extractor{
		&fakeExtractor{name: "ok", values: map[string]Value{"pitch": scalar(120)}},
		&fakeExtractor{name: "glottal", values: map[string]Value{"GCI": scalar(1), "NAQ": scalar(2)}, err: failure},
	}
	in := Input{Waveform: waveform(t, 1), Interval: audio.Interval{Start: 0, End: 1}}

	_, err := mustAssembler(t, extractors).Assemble(context.Background(), in)
	if !engines.IsUnavailable(err) {
		t.Errorf("fail policy: err = %v", err)
	}

	rec, err := mustAssembler(t, extractors, WithMissingPolicy(RecordMissing)).Assemble(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"GCI", "NAQ"} {
		v, ok := rec.Get(name)
		if !ok || v.Defined() {
			t.Errorf("%s = %v, %v; want recorded missing", name, v, ok)
		}
	}
	if v, _ := rec.Get("pitch"); !v.Defined() {
		t.Error("successful extractor's value lost")
	}
}

// liar emits a name it did not declare.
type liar struct{ fakeExtractor }

func (l *liar) Names() []string { return []string{"declared"} }

func TestAssembleRejectsUndeclared(t *testing.T) {
	l := &liar{fakeExtractor{name: "liar", values: map[string]Value{"declared": scalar(1), "extra": scalar(2)}}}
	_, err := mustAssembler(t, []Extractor{l}).Assemble(context.Background(), Input{
		Waveform: waveform(t, 1), Interval: audio.Interval{Start: 0, End: 1},
	})
	if err == nil || !strings.Contains(err.Error(), "extra") {
		t.Errorf("err = %v", err)
	}
}

func TestAssembleCancelled(t *testing.T) {
	a := mustAssembler(t, []Extractor{&fakeExtractor{name: "a", values: map[string]Value{"x": scalar(1)}}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Assemble(ctx, Input{Waveform: waveform(t, 1), Interval: audio.Interval{Start: 0, End: 1}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

func TestRecordJSON(t *testing.T) {
	rec := &Record{
		Source:   "a.wav",
		Interval: audio.Interval{Start: 0, End: 1},
		Features: map[string]Value{
			"pitch": Sequence([]series.Measurement{series.Of(120), series.Undefined}),
			"hnr":   Scalar(series.Undefined),
			"COG":   scalar(900.5),
		},
	}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"source":"a.wav","interval":{"start":0,"end":1},"features":{"COG":900.5,"hnr":null,"pitch":[120,null]}}`
	if string(data) != want {
		t.Errorf("json = %s", data)
	}

	var back Record
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(back.Features, rec.Features) {
		t.Errorf("round trip = %+v", back.Features)
	}

	flat := rec.Flatten()
	if len(flat) != 4 || flat["pitch_1"].Value != 120 || flat["pitch_2"].Defined {
		t.Errorf("flatten = %v", flat)
	}
	if names := rec.Names(); !reflect.DeepEqual(names, []string{"COG", "hnr", "pitch"}) {
		t.Errorf("names = %v", names)
	}
}

// shaped declares sequence lengths for its outputs.
type shaped struct {
	fakeExtractor
	shapes map[string]int
}

func (s *shaped) Shapes() map[string]int { return s.shapes }

func TestMissingKeepsColumns(t *testing.T) {
	contour := Sequence(series.Measurements([]float64{110, 120, 130}))
	ok := &shaped{
		fakeExtractor: fakeExtractor{name: "pitch", values: map[string]Value{"pitch": contour, "hnr_mean": scalar(12)}},
		shapes:        map[string]int{"pitch": 3},
	}
	broken := &shaped{
		fakeExtractor: fakeExtractor{name: "pitch", values: map[string]Value{"pitch": contour, "hnr_mean": scalar(12)}, err: errors.New("too short")},
		shapes:        map[string]int{"pitch": 3},
	}
	in := Input{Waveform: waveform(t, 1), Interval: audio.Interval{Start: 0, End: 1}}

	good, err := mustAssembler(t, []Extractor{ok}).Assemble(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	a := mustAssembler(t, []Extractor{broken}, WithMissingPolicy(RecordMissing))
	if a.Width("pitch") != 3 || a.Width("hnr_mean") != 0 {
		t.Fatalf("widths = %d, %d", a.Width("pitch"), a.Width("hnr_mean"))
	}
	bad, err := a.Assemble(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}

	columns := func(r *Record) []string {
		var names []string
		for name := range r.Flatten() {
			names = append(names, name)
		}
		sort.Strings(names)
		return names
	}
	want := []string{"hnr_mean", "pitch_1", "pitch_2", "pitch_3"}
	if got := columns(good); !reflect.DeepEqual(got, want) {
		t.Errorf("successful columns = %v", got)
	}
	if got := columns(bad); !reflect.DeepEqual(got, want) {
		t.Errorf("missing columns = %v", got)
	}
	if v, _ := bad.Get("pitch"); !v.IsSeq || v.Defined() {
		t.Errorf("missing pitch = %+v", v)
	}
}

func TestAssembleRejectsWrongWidth(t *testing.T) {
	short := &shaped{
		fakeExtractor: fakeExtractor{name: "pitch", values: map[string]Value{"pitch": Sequence(series.Measurements([]float64{1, 2}))}},
		shapes:        map[string]int{"pitch": 3},
	}
	_, err := mustAssembler(t, []Extractor{short}).Assemble(context.Background(), Input{
		Waveform: waveform(t, 1), Interval: audio.Interval{Start: 0, End: 1},
	})
	if err == nil || !strings.Contains(err.Error(), "want 3") {
		t.Errorf("err = %v", err)
	}

	stray := &shaped{
		fakeExtractor: fakeExtractor{name: "pitch", values: map[string]Value{"pitch": scalar(1)}},
		shapes:        map[string]int{"f1": 3},
	}
	if _, err := NewAssembler([]Extractor{stray}); err == nil {
		t.Error("shape of an undeclared feature accepted")
	}
}

func TestMissingValue(t *testing.T) {
	if v := Missing(0); v.IsSeq || v.Defined() {
		t.Errorf("Missing(0) = %+v", v)
	}
	if v := Missing(12); !v.IsSeq || len(v.Sequence) != 12 || v.Defined() {
		t.Errorf("Missing(12) = %+v", v)
	}
}

func TestParseMissingPolicy(t *testing.T) {
	for in, want := range map[string]MissingPolicy{"fail": FailRecord, "": FailRecord, "Missing": RecordMissing} {
		got, err := ParseMissingPolicy(in)
		if err != nil || got != want {
			t.Errorf("%q = %v, %v", in, got, err)
		}
	}
	if _, err := ParseMissingPolicy("skip"); err == nil {
		t.Error("unknown policy accepted")
	}
}
