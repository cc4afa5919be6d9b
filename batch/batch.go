// Package batch extracts feature records for many files in parallel. A
// failure affects only the task it belongs to.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/sonido-voice/audio"
	"github.com/RyanBlaney/sonido-voice/features"
	"github.com/RyanBlaney/sonido-voice/logging"
	"github.com/RyanBlaney/sonido-voice/store"
	"github.com/RyanBlaney/sonido-voice/transcode"
)

// Task asks for one record. A nil Interval covers the whole file.
type Task struct {
	Path     string
	Label    string
	Interval *audio.Interval
}

// Result is the outcome of one task. Exactly one of Record and Err is set.
type Result struct {
	Task   Task
	Record *features.Record
	Err    error
	Cached bool
}

// Report collects the results of one run in task order.
type Report struct {
	RunID    string
	Results  []Result
	Failed   int
	Duration time.Duration
}

// Assembler builds records from waveforms.
type Assembler interface {
	Assemble(ctx context.Context, in features.Input) (*features.Record, error)
}

// Cache stores finished records.
type Cache interface {
	Get(ctx context.Context, key string) (*features.Record, bool, error)
	Put(ctx context.Context, key string, rec *features.Record) error
}

// Sink receives every successful record.
type Sink interface {
	Save(ctx context.Context, runID string, rec *features.Record) (int64, error)
}

// Runner runs tasks with at most Workers files in flight.
type Runner struct {
	Assembler Assembler
	Loader    transcode.Loader
	Workers   int

	// Cache and Sink are optional.
	Cache Cache
	Sink  Sink
	// Fingerprint identifies the extraction settings in cache keys.
	Fingerprint string

	Logger logging.Logger
}

// Run executes tasks. Tasks on the same file share one decoded waveform.
func (r *Runner) Run(ctx context.Context, tasks []Task) *Report {
	started := time.Now()
	report := &Report{
		RunID:   uuid.New().String(),
		Results: make([]Result, len(tasks)),
	}
	logger := r.logger().WithFields(logging.Fields{
		"function": "Run",
		"run_id":   report.RunID,
	})

	byPath := map[string][]int{}
	var order []string
	for i, t := range tasks {
		report.Results[i].Task = t
		if _, seen := byPath[t.Path]; !seen {
			order = append(order, t.Path)
		}
		byPath[t.Path] = append(byPath[t.Path], i)
	}

	workers := r.Workers
	if workers <= 0 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for _, path := range order {
		indexes := byPath[path]
		g.Go(func() error {
			r.runFile(ctx, report.RunID, path, indexes, report.Results, logger)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range report.Results {
		if res.Err != nil {
			report.Failed++
		}
	}
	report.Duration = time.Since(started)

	logger.Info("Batch finished", logging.Fields{
		"tasks":    len(tasks),
		"failed":   report.Failed,
		"duration": report.Duration.String(),
	})
	return report
}

// runFile fills results[i] for every i in indexes. Each index is written by
// exactly one goroutine.
func (r *Runner) runFile(ctx context.Context, runID, path string, indexes []int, results []Result, logger logging.Logger) {
	logger = logger.WithFields(logging.Fields{"file": path})

	var w *audio.Waveform
	for _, i := range indexes {
		task := results[i].Task
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}

		key := r.cacheKey(path, task, logger)
		if key != "" {
			rec, ok, err := r.Cache.Get(ctx, key)
			if err != nil {
				logger.Warn("Cache read failed", logging.Fields{"error": err.Error()})
			}
			if ok {
				rec.Source, rec.Label = path, task.Label
				results[i].Record, results[i].Cached = rec, true
				r.save(ctx, runID, rec, logger)
				continue
			}
		}

		if w == nil {
			loaded, err := r.Loader.Load(ctx, path)
			if err != nil {
				// every remaining task of this file fails the same way
				for _, j := range indexes {
					if results[j].Record == nil && results[j].Err == nil {
						results[j].Err = err
					}
				}
				logger.Error(err, "Failed to load audio")
				return
			}
			w = loaded
		}

		iv := w.Full()
		if task.Interval != nil {
			iv = *task.Interval
		}
		rec, err := r.Assembler.Assemble(ctx, features.Input{Waveform: w, Interval: iv, Label: task.Label})
		if err != nil {
			results[i].Err = fmt.Errorf("%s %s: %w", path, iv, err)
			logger.Error(err, "Extraction failed", logging.Fields{"interval": iv.String()})
			continue
		}
		results[i].Record = rec

		if key != "" {
			if err := r.Cache.Put(ctx, key, rec); err != nil {
				logger.Warn("Cache write failed", logging.Fields{"error": err.Error()})
			}
		}
		r.save(ctx, runID, rec, logger)
	}
}

// cacheKey returns "" when caching is off or the key cannot be computed.
// Whole-file tasks have no interval before loading, so they are not cached.
func (r *Runner) cacheKey(path string, task Task, logger logging.Logger) string {
	if r.Cache == nil || task.Interval == nil {
		return ""
	}
	key, err := store.Key(path, *task.Interval, r.Fingerprint)
	if err != nil {
		logger.Debug("No cache key", logging.Fields{"error": err.Error()})
		return ""
	}
	return key
}

func (r *Runner) save(ctx context.Context, runID string, rec *features.Record, logger logging.Logger) {
	if r.Sink == nil {
		return
	}
	if _, err := r.Sink.Save(ctx, runID, rec); err != nil {
		logger.Error(err, "Failed to store record")
	}
}

func (r *Runner) logger() logging.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return logging.WithFields(logging.Fields{"component": "batch_runner"})
}
