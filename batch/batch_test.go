package batch

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/RyanBlaney/sonido-voice/audio"
	"github.com/RyanBlaney/sonido-voice/engines"
	"github.com/RyanBlaney/sonido-voice/features"
	"github.com/RyanBlaney/sonido-voice/logging"
	"github.com/RyanBlaney/sonido-voice/series"
	"github.com/RyanBlaney/sonido-voice/store"
	"github.com/RyanBlaney/sonido-voice/transcode"
)

// durationExtractor reports the interval length and counts its calls.
type durationExtractor struct {
	calls atomic.Int32
}

func (d *durationExtractor) Name() string    { return "duration" }
func (d *durationExtractor) Names() []string { return []string{"duration"} }

func (d *durationExtractor) Extract(ctx context.Context, in features.Input) (map[string]features.Value, error) {
	d.calls.Add(1)
	return map[string]features.Value{"duration": features.Scalar(series.Of(in.Interval.Length()))}, nil
}

// countingLoader counts loads per path.
type countingLoader struct {
	transcode.Loader
	mu    sync.Mutex
	loads map[string]int
}

func (l *countingLoader) Load(ctx context.Context, path string) (*audio.Waveform, error) {
	l.mu.Lock()
	l.loads[path]++
	l.mu.Unlock()
	return l.Loader.Load(ctx, path)
}

type memorySink struct {
	mu   sync.Mutex
	runs map[string]int
}

func (s *memorySink) Save(ctx context.Context, runID string, rec *features.Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[runID]++
	return int64(s.runs[runID]), nil
}

func writeTone(t *testing.T, dir, name string, seconds float64) string {
	t.Helper()
	x := make([]float64, int(seconds*16000))
	for i := range x {
		x[i] = 0.3 * math.Sin(2*math.Pi*200*float64(i)/16000)
	}
	path := filepath.Join(dir, name)
	if err := transcode.WriteWAV(path, x, 16000); err != nil {
		t.Fatal(err)
	}
	return path
}

func newRunner(t *testing.T) (*Runner, *durationExtractor, *countingLoader) {
	t.Helper()
	ex := &durationExtractor{}
	a, err := features.NewAssembler([]features.Extractor{ex})
	if err != nil {
		t.Fatal(err)
	}
	fl, err := transcode.NewFileLoader(nil)
	if err != nil {
		t.Fatal(err)
	}
	loader := &countingLoader{Loader: fl, loads: map[string]int{}}
	return &Runner{
		Assembler: a,
		Loader:    loader,
		Workers:   3,
		Logger:    &logging.NoOpLogger{},
	}, ex, loader
}

func TestRunIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	a := writeTone(t, dir, "a.wav", 1)
	b := writeTone(t, dir, "b.wav", 2)
	missing := filepath.Join(dir, "missing.wav")

	r, _, loader := newRunner(t)
	sink := &memorySink{runs: map[string]int{}}
	r.Sink = sink

	tasks := []Task{
		{Path: a},
		{Path: missing},
		{Path: b, Label: "x", Interval: &audio.Interval{Start: 0.5, End: 1.5}},
		{Path: b, Label: "y", Interval: &audio.Interval{Start: 1.5, End: 3}},
		{Path: b, Label: "z", Interval: &audio.Interval{Start: 0, End: 1}},
	}
	report := r.Run(context.Background(), tasks)

	if report.RunID == "" || len(report.Results) != len(tasks) {
		t.Fatalf("report = %+v", report)
	}
	if report.Failed != 2 {
		t.Errorf("failed = %d, want 2", report.Failed)
	}

	wantDur := []float64{1, -1, 1, -1, 1}
	for i, res := range report.Results {
		if res.Task.Path != tasks[i].Path {
			t.Errorf("result %d out of order", i)
		}
		if wantDur[i] < 0 {
			if res.Err == nil || res.Record != nil {
				t.Errorf("result %d: want error, got %+v", i, res)
			}
			continue
		}
		if res.Err != nil {
			t.Errorf("result %d: %v", i, res.Err)
			continue
		}
		if m := res.Record.Features["duration"].Scalar; math.Abs(m.Value-wantDur[i]) > 1e-9 {
			t.Errorf("result %d duration = %v", i, m)
		}
	}

	if !engines.IsUnavailable(report.Results[1].Err) {
		t.Errorf("missing file: %v", report.Results[1].Err)
	}
	var bad *audio.InvalidIntervalError
	if !errors.As(report.Results[3].Err, &bad) {
		t.Errorf("interval past the end: %v", report.Results[3].Err)
	}
	if report.Results[2].Record.Label != "x" {
		t.Errorf("label = %q", report.Results[2].Record.Label)
	}

	if loader.loads[b] != 1 {
		t.Errorf("b.wav loaded %d times", loader.loads[b])
	}
	if sink.runs[report.RunID] != 3 {
		t.Errorf("sink got %d records", sink.runs[report.RunID])
	}
}

func TestRunUsesCache(t *testing.T) {
	dir := t.TempDir()
	a := writeTone(t, dir, "a.wav", 1)

	cache, err := store.OpenCache(store.CacheOptions{InMemory: true, Logger: &logging.NoOpLogger{}})
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	r, ex, loader := newRunner(t)
	r.Cache = cache
	r.Fingerprint = store.Fingerprint([]byte("cfg"))

	tasks := []Task{{Path: a, Label: "first", Interval: &audio.Interval{Start: 0, End: 0.5}}}
	first := r.Run(context.Background(), tasks)
	if first.Failed != 0 || first.Results[0].Cached {
		t.Fatalf("first run = %+v", first.Results[0])
	}

	tasks[0].Label = "second"
	second := r.Run(context.Background(), tasks)
	res := second.Results[0]
	if !res.Cached || res.Err != nil {
		t.Fatalf("second run = %+v", res)
	}
	if res.Record.Label != "second" || first.RunID == second.RunID {
		t.Errorf("label %q, run ids %s %s", res.Record.Label, first.RunID, second.RunID)
	}
	if ex.calls.Load() != 1 || loader.loads[a] != 1 {
		t.Errorf("extractor called %d times, loaded %d times", ex.calls.Load(), loader.loads[a])
	}

	r.Fingerprint = store.Fingerprint([]byte("other"))
	if third := r.Run(context.Background(), tasks); third.Results[0].Cached {
		t.Error("hit under another configuration")
	}
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	a := writeTone(t, dir, "a.wav", 1)
	r, ex, _ := newRunner(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := r.Run(ctx, []Task{{Path: a}, {Path: a}})
	if report.Failed != 2 {
		t.Errorf("failed = %d", report.Failed)
	}
	for _, res := range report.Results {
		if !errors.Is(res.Err, context.Canceled) {
			t.Errorf("err = %v", res.Err)
		}
	}
	if ex.calls.Load() != 0 {
		t.Error("extractor ran after cancellation")
	}
}
