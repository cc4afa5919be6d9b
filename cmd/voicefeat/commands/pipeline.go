package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-voice/batch"
	"github.com/RyanBlaney/sonido-voice/config"
	"github.com/RyanBlaney/sonido-voice/engines/spectral"
	"github.com/RyanBlaney/sonido-voice/features"
	"github.com/RyanBlaney/sonido-voice/logging"
	"github.com/RyanBlaney/sonido-voice/store"
)

// pipeline owns the runner and whatever it opened.
type pipeline struct {
	runner  *batch.Runner
	closers []io.Closer
}

func (p *pipeline) Close() {
	for _, c := range p.closers {
		c.Close()
	}
}

// newPipeline builds a runner from cfg. dsn overrides the configured store.
func newPipeline(cfg *config.Config, dsn string, workers int) (*pipeline, error) {
	logger := logging.WithFields(logging.Fields{"component": "voicefeat"})

	loader, err := cfg.Loader()
	if err != nil {
		return nil, err
	}
	assembler, err := cfg.Assembler(loader, logger)
	if err != nil {
		return nil, err
	}
	fingerprint, err := analysisFingerprint(cfg)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = cfg.Batch.Workers
	}

	p := &pipeline{runner: &batch.Runner{
		Assembler:   assembler,
		Loader:      loader,
		Workers:     workers,
		Fingerprint: fingerprint,
		Logger:      logger,
	}}

	if cfg.Cache.Enabled {
		cache, err := store.OpenCache(store.CacheOptions{Dir: cfg.Cache.Dir})
		if err != nil {
			return nil, err
		}
		p.runner.Cache = cache
		p.closers = append(p.closers, cache)
	}

	if dsn == "" {
		dsn = cfg.Store.DSN
	}
	if dsn != "" {
		db, err := store.OpenSQLite(dsn)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.runner.Sink = db
		p.closers = append(p.closers, db)
	}
	return p, nil
}

// analysisFingerprint hashes the settings that change extracted values.
func analysisFingerprint(cfg *config.Config) (string, error) {
	data, err := yaml.Marshal(struct {
		Audio    config.AudioConfig
		Analysis config.AnalysisConfig
		Sampling config.SamplingConfig
		Features config.FeaturesConfig
		Spectral spectral.Config
		Glottal  config.GlottalConfig
	}{cfg.Audio, cfg.Analysis, cfg.Sampling, cfg.Features, cfg.Spectral, cfg.Glottal})
	if err != nil {
		return "", err
	}
	return store.Fingerprint(data), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeRecords encodes records to w in format.
func writeRecords(w io.Writer, format string, records []*features.Record) error {
	switch format {
	case config.FormatJSON, "":
		return printJSON(w, records)
	case config.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return err
		}
		return enc.Close()
	case config.FormatMsgpack:
		return msgpack.NewEncoder(w).Encode(records)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// report prints the successful records and returns an error naming the
// failures, if any.
func report(rep *batch.Report, format string) error {
	var records []*features.Record
	var firstErr error
	for _, res := range rep.Results {
		if res.Err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", res.Task.Path, res.Err)
			if firstErr == nil {
				firstErr = res.Err
			}
			continue
		}
		records = append(records, res.Record)
	}
	if err := writeRecords(os.Stdout, format, records); err != nil {
		return err
	}
	if rep.Failed > 0 {
		return fmt.Errorf("%d of %d tasks failed (run %s), first: %w", rep.Failed, len(rep.Results), rep.RunID, firstErr)
	}
	return nil
}
