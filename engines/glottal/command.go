package glottal

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-voice/engines"
	"github.com/RyanBlaney/sonido-voice/logging"
	"github.com/RyanBlaney/sonido-voice/series"
)

// CommandConfig configures an external analyzer. The audio path is
// appended to Args.
type CommandConfig struct {
	Path    string        `json:"path" yaml:"path" mapstructure:"path"`
	Args    []string      `json:"args" yaml:"args" mapstructure:"args"`
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// Command runs an external glottal analyzer that prints a CSV table, a
// header row and one row of values, on stdout.
type Command struct {
	config CommandConfig
	logger logging.Logger
}

// NewCommand creates a subprocess analyzer.
func NewCommand(config CommandConfig) (*Command, error) {
	if config.Path == "" {
		return nil, errors.New("glottal command path is empty")
	}
	return &Command{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "glottal_command",
			"command":   config.Path,
		}),
	}, nil
}

// AnalyzeFile runs the analyzer on path.
func (c *Command) AnalyzeFile(ctx context.Context, path string) (Table, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, c.config.Args...), path)
	cmd := exec.CommandContext(ctx, c.config.Path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	c.logger.Debug("Running glottal analyzer", logging.Fields{
		"function": "AnalyzeFile",
		"args":     strings.Join(args, " "),
	})

	output, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, engines.Unavailable(engines.Glottal, "analyzer not found", err)
		}
		if ctx.Err() != nil {
			return nil, engines.Unavailable(engines.Glottal, "analyzer timed out", ctx.Err())
		}
		c.logger.Error(err, "Glottal analyzer failed", logging.Fields{
			"stderr": stderr.String(),
		})
		return nil, engines.Unavailable(engines.Glottal, "analyzer failed on "+path,
			fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String())))
	}

	table, err := ParseCSV(bytes.NewReader(output))
	if err != nil {
		return nil, engines.Unavailable(engines.Glottal, "unreadable analyzer output", err)
	}
	return table, nil
}

// ParseCSV reads a header row and one value row. Empty cells and values
// that do not parse as finite numbers are undefined.
func ParseCSV(r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	row, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read values: %w", err)
	}

	table := make(Table, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			// index column written by pandas
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
		if err != nil {
			table[name] = series.Undefined
			continue
		}
		table[name] = series.Of(v)
	}
	return table, nil
}
