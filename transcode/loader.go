package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RyanBlaney/sonido-voice/audio"
	"github.com/RyanBlaney/sonido-voice/engines"
	"github.com/RyanBlaney/sonido-voice/logging"
)

// Loader turns an audio file into a waveform.
type Loader interface {
	Load(ctx context.Context, path string) (*audio.Waveform, error)
}

// FileLoader reads WAV files natively and hands every other format, or a
// WAV the native reader rejects, to ffmpeg. The result is resampled to the
// decoder's target rate. Every failure is an *engines.EngineUnavailableError.
type FileLoader struct {
	decoder *Decoder
	logger  logging.Logger
}

// NewFileLoader creates a loader around config; nil means defaults.
func NewFileLoader(config *DecoderConfig) (*FileLoader, error) {
	decoder := NewDecoder(config)
	if err := decoder.ValidateConfig(); err != nil {
		return nil, err
	}
	return &FileLoader{
		decoder: decoder,
		logger: logging.WithFields(logging.Fields{
			"component": "file_loader",
		}),
	}, nil
}

// SampleRate is the rate every loaded waveform has.
func (l *FileLoader) SampleRate() int { return l.decoder.config.TargetSampleRate }

// Load reads path.
func (l *FileLoader) Load(ctx context.Context, path string) (*audio.Waveform, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, engines.Unavailable(engines.Loader, "cannot read "+path, err)
	}

	samples, rate, err := l.read(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, engines.Unavailable(engines.Loader, "cannot decode "+path, err)
	}

	w, err := audio.NewWaveform(samples, rate, path)
	if err != nil {
		return nil, engines.Unavailable(engines.Loader, "no audio in "+path, err)
	}
	w, err = ResampleWaveform(w, l.SampleRate())
	if err != nil {
		return nil, engines.Unavailable(engines.Loader, "cannot resample "+path, err)
	}

	l.logger.Debug("Audio loaded", logging.Fields{
		"function":    "Load",
		"path":        path,
		"source_rate": rate,
		"sample_rate": w.SampleRate(),
		"duration":    w.Duration(),
	})
	return w, nil
}

func (l *FileLoader) read(ctx context.Context, path string) ([]float64, int, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		pcm, err := LoadWAV(path)
		if err == nil {
			return pcm.Samples, pcm.SampleRate, nil
		}
		if !errors.Is(err, ErrNotPCMWAV) {
			return nil, 0, err
		}
		l.logger.Debug("Native WAV reader declined file, using ffmpeg", logging.Fields{
			"path":  path,
			"error": err.Error(),
		})
	}

	data, err := l.decoder.DecodeFile(ctx, path)
	if err != nil {
		return nil, 0, fmt.Errorf("decode: %w", err)
	}
	return data.PCM, data.SampleRate, nil
}
