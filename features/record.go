package features

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/RyanBlaney/sonido-voice/audio"
	"github.com/RyanBlaney/sonido-voice/series"
)

// Value is either a scalar measurement or a fixed-length sequence of them.
type Value struct {
	Scalar   series.Measurement   `msgpack:"s"`
	Sequence []series.Measurement `msgpack:"q,omitempty"`
	IsSeq    bool                 `msgpack:"k"`
}

// Scalar wraps one measurement.
func Scalar(m series.Measurement) Value { return Value{Scalar: m} }

// Sequence wraps ms, which is not copied.
func Sequence(ms []series.Measurement) Value {
	if ms == nil {
		ms = []series.Measurement{}
	}
	return Value{Sequence: ms, IsSeq: true}
}

// Missing is the value recorded for a feature whose extractor failed: an
// undefined scalar when width is 0, else width undefined measurements.
func Missing(width int) Value {
	if width <= 0 {
		return Value{}
	}
	ms := make([]series.Measurement, width)
	for i := range ms {
		ms[i] = series.Undefined
	}
	return Sequence(ms)
}

// Defined reports whether the value holds at least one defined measurement.
func (v Value) Defined() bool {
	if !v.IsSeq {
		return v.Scalar.Defined
	}
	for _, m := range v.Sequence {
		if m.Defined {
			return true
		}
	}
	return false
}

// Measurements returns the sequence, or the scalar as a sequence of one.
func (v Value) Measurements() []series.Measurement {
	if v.IsSeq {
		return v.Sequence
	}
	return []series.Measurement{v.Scalar}
}

func (v Value) String() string {
	if !v.IsSeq {
		return v.Scalar.String()
	}
	return fmt.Sprint(v.Sequence)
}

// MarshalJSON writes a number, an array, or null for undefined parts.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsSeq {
		return json.Marshal(v.Sequence)
	}
	return json.Marshal(v.Scalar)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var seq []series.Measurement
	if err := json.Unmarshal(data, &seq); err == nil && seq != nil {
		*v = Sequence(seq)
		return nil
	}
	var m series.Measurement
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*v = Scalar(m)
	return nil
}

// MarshalYAML mirrors MarshalJSON.
func (v Value) MarshalYAML() (any, error) {
	if v.IsSeq {
		out := make([]*float64, len(v.Sequence))
		for i, m := range v.Sequence {
			out[i] = m.Ptr()
		}
		return out, nil
	}
	return v.Scalar.Ptr(), nil
}

// Record is the flat set of named features of one waveform interval.
type Record struct {
	Source   string           `json:"source" yaml:"source" msgpack:"source"`
	Label    string           `json:"label,omitempty" yaml:"label,omitempty" msgpack:"label,omitempty"`
	Interval audio.Interval   `json:"interval" yaml:"interval" msgpack:"interval"`
	Features map[string]Value `json:"features" yaml:"features" msgpack:"features"`
}

// Names returns the feature names in sorted order.
func (r *Record) Names() []string {
	names := make([]string, 0, len(r.Features))
	for name := range r.Features {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the named feature.
func (r *Record) Get(name string) (Value, bool) {
	v, ok := r.Features[name]
	return v, ok
}

// Flatten expands sequences into name_1 ... name_n columns.
func (r *Record) Flatten() map[string]series.Measurement {
	out := make(map[string]series.Measurement, len(r.Features))
	for name, v := range r.Features {
		if !v.IsSeq {
			out[name] = v.Scalar
			continue
		}
		for i, m := range v.Sequence {
			out[fmt.Sprintf("%s_%d", name, i+1)] = m
		}
	}
	return out
}
