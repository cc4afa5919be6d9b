// Package engines defines what the analysis engines share: the errors they
// report and the engine names used in logs and error messages.
package engines

import (
	"errors"
	"fmt"
)

// Engine names.
const (
	Phonetics = "phonetics"
	Spectral  = "spectral"
	Glottal   = "glottal"

	// Loader reports audio files that cannot be read or decoded.
	Loader = "loader"
)

// ErrUndefined marks a measurement the engine cannot define at the queried
// time or range, e.g. pitch in an unvoiced frame. It is never fatal.
var ErrUndefined = errors.New("measurement undefined")

// EngineUnavailableError reports that an engine could not be run at all:
// missing binary, unreadable or unsupported waveform.
type EngineUnavailableError struct {
	Engine string
	Reason string
	Err    error
}

func (e *EngineUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s engine unavailable: %s: %v", e.Engine, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s engine unavailable: %s", e.Engine, e.Reason)
}

func (e *EngineUnavailableError) Unwrap() error { return e.Err }

// Unavailable wraps err as an EngineUnavailableError for engine.
func Unavailable(engine, reason string, err error) error {
	return &EngineUnavailableError{Engine: engine, Reason: reason, Err: err}
}

// IsUnavailable reports whether err is, or wraps, an EngineUnavailableError.
func IsUnavailable(err error) bool {
	var target *EngineUnavailableError
	return errors.As(err, &target)
}
