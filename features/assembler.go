package features

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/RyanBlaney/sonido-voice/audio"
	"github.com/RyanBlaney/sonido-voice/logging"
)

// Input is one waveform interval to describe.
type Input struct {
	Waveform *audio.Waveform
	Interval audio.Interval
	Label    string
}

// Extractor computes a fixed set of named features for an input. Names
// must be known before any engine is called.
type Extractor interface {
	Name() string
	Names() []string
	Extract(ctx context.Context, in Input) (map[string]Value, error)
}

// Shaper is implemented by extractors with sequence outputs. Shapes maps
// each sequence feature to its length, which must not depend on the input.
// Names it leaves out are scalars.
type Shaper interface {
	Shapes() map[string]int
}

// MissingPolicy decides what an extractor error does to a record.
type MissingPolicy int

const (
	// FailRecord aborts the record on the first extractor error.
	FailRecord MissingPolicy = iota
	// RecordMissing logs the error and records the extractor's features as
	// missing.
	RecordMissing
)

func (p MissingPolicy) String() string {
	switch p {
	case FailRecord:
		return "fail"
	case RecordMissing:
		return "missing"
	}
	return fmt.Sprintf("MissingPolicy(%d)", int(p))
}

// ParseMissingPolicy accepts "fail" and "missing".
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fail", "":
		return FailRecord, nil
	case "missing":
		return RecordMissing, nil
	}
	return FailRecord, fmt.Errorf("unknown missing policy %q", s)
}

// DuplicateFeatureNameError reports two extractors declaring one name.
type DuplicateFeatureNameError struct {
	Name   string
	First  string
	Second string
}

func (e *DuplicateFeatureNameError) Error() string {
	return fmt.Sprintf("feature %q declared by both %s and %s", e.Name, e.First, e.Second)
}

// ErrNoWaveform is returned by Assemble for an input without audio.
var ErrNoWaveform = errors.New("input has no waveform")

// Assembler runs a fixed set of extractors and merges their outputs into
// one record. It is safe for concurrent use when its extractors are.
type Assembler struct {
	extractors      []Extractor
	declared        []map[string]bool
	widths          map[string]int
	names           []string
	policy          MissingPolicy
	allowDegenerate bool
	logger          logging.Logger
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithMissingPolicy sets the failure policy. The default is FailRecord.
func WithMissingPolicy(p MissingPolicy) AssemblerOption {
	return func(a *Assembler) { a.policy = p }
}

// WithLogger replaces the component logger.
func WithLogger(l logging.Logger) AssemblerOption {
	return func(a *Assembler) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithDegenerateIntervals controls whether zero-length intervals are
// accepted. They are by default.
func WithDegenerateIntervals(allow bool) AssemblerOption {
	return func(a *Assembler) { a.allowDegenerate = allow }
}

// NewAssembler checks that every feature name is declared exactly once.
func NewAssembler(extractors []Extractor, opts ...AssemblerOption) (*Assembler, error) {
	a := &Assembler{
		policy:          FailRecord,
		allowDegenerate: true,
		widths:          make(map[string]int),
		logger: logging.WithFields(logging.Fields{
			"component": "feature_assembler",
		}),
	}
	for _, opt := range opts {
		opt(a)
	}

	owner := make(map[string]string)
	for _, ex := range extractors {
		if ex == nil {
			return nil, errors.New("nil extractor")
		}
		declared := make(map[string]bool)
		for _, name := range ex.Names() {
			if name == "" {
				return nil, fmt.Errorf("extractor %s declares an empty feature name", ex.Name())
			}
			if first, ok := owner[name]; ok {
				return nil, &DuplicateFeatureNameError{Name: name, First: first, Second: ex.Name()}
			}
			owner[name] = ex.Name()
			declared[name] = true
			a.names = append(a.names, name)
		}
		if sh, ok := ex.(Shaper); ok {
			for name, n := range sh.Shapes() {
				if !declared[name] {
					return nil, fmt.Errorf("extractor %s shapes undeclared feature %q", ex.Name(), name)
				}
				if n <= 0 {
					return nil, fmt.Errorf("extractor %s gives %q length %d", ex.Name(), name, n)
				}
				a.widths[name] = n
			}
		}
		a.extractors = append(a.extractors, ex)
		a.declared = append(a.declared, declared)
	}
	sort.Strings(a.names)
	return a, nil
}

// Width returns the sequence length of the named feature, 0 for scalars.
func (a *Assembler) Width(name string) int { return a.widths[name] }

// Names returns every feature name a record will hold, sorted.
func (a *Assembler) Names() []string {
	out := make([]string, len(a.names))
	copy(out, a.names)
	return out
}

// Assemble validates the interval, then runs every extractor in order and
// merges the results. Under FailRecord the first extractor error is
// returned and no record is produced.
func (a *Assembler) Assemble(ctx context.Context, in Input) (*Record, error) {
	if in.Waveform == nil {
		return nil, ErrNoWaveform
	}
	if err := in.Interval.Validate(in.Waveform.Duration(), a.allowDegenerate); err != nil {
		return nil, err
	}

	logger := a.logger.WithFields(logging.Fields{
		"function": "Assemble",
		"source":   in.Waveform.Source(),
		"interval": in.Interval.String(),
	})

	record := &Record{
		Source:   in.Waveform.Source(),
		Label:    in.Label,
		Interval: in.Interval,
		Features: make(map[string]Value, len(a.names)),
	}

	for i, ex := range a.extractors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		values, err := ex.Extract(ctx, in)
		if err != nil {
			if a.policy == FailRecord || ctx.Err() != nil {
				return nil, fmt.Errorf("extractor %s: %w", ex.Name(), err)
			}
			logger.Error(err, "Extractor failed, recording missing values", logging.Fields{
				"extractor": ex.Name(),
			})
			for name := range a.declared[i] {
				record.Features[name] = Missing(a.widths[name])
			}
			continue
		}

		for name, v := range values {
			if !a.declared[i][name] {
				return nil, fmt.Errorf("extractor %s returned undeclared feature %q", ex.Name(), name)
			}
			if n := a.widths[name]; n > 0 && (!v.IsSeq || len(v.Sequence) != n) {
				return nil, fmt.Errorf("extractor %s returned %d values for %q, want %d", ex.Name(), len(v.Measurements()), name, n)
			}
			record.Features[name] = v
		}
		for name := range a.declared[i] {
			if _, ok := values[name]; !ok {
				record.Features[name] = Missing(a.widths[name])
			}
		}
	}

	logger.Debug("Record assembled", logging.Fields{
		"features": len(record.Features),
	})
	return record, nil
}
