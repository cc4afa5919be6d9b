// Package series provides explicit optional measurements and frame-based
// property contours queried at arbitrary times.
package series

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Measurement is a value that may be undefined, e.g. pitch in an unvoiced
// frame. Undefined measurements never carry a numeric stand-in.
type Measurement struct {
	Value   float64
	Defined bool
}

// Undefined is the zero Measurement.
var Undefined = Measurement{}

// Of wraps v. NaN and infinities become Undefined.
func Of(v float64) Measurement {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Undefined
	}
	return Measurement{Value: v, Defined: true}
}

// Ptr returns nil for undefined measurements.
func (m Measurement) Ptr() *float64 {
	if !m.Defined {
		return nil
	}
	v := m.Value
	return &v
}

// FromPtr is the inverse of Ptr.
func FromPtr(p *float64) Measurement {
	if p == nil {
		return Undefined
	}
	return Of(*p)
}

func (m Measurement) String() string {
	if !m.Defined {
		return "--undefined--"
	}
	return strconv.FormatFloat(m.Value, 'g', -1, 64)
}

// MarshalJSON writes null for undefined values.
func (m Measurement) MarshalJSON() ([]byte, error) {
	if !m.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(m.Value)
}

func (m *Measurement) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = Undefined
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = Of(v)
	return nil
}

// MarshalYAML writes null for undefined values.
func (m Measurement) MarshalYAML() (any, error) {
	if !m.Defined {
		return nil, nil
	}
	return m.Value, nil
}

// Measurements converts raw values, mapping NaN to Undefined.
func Measurements(values []float64) []Measurement {
	out := make([]Measurement, len(values))
	for i, v := range values {
		out[i] = Of(v)
	}
	return out
}

// DefinedValues returns the numeric values of the defined measurements.
func DefinedValues(ms []Measurement) []float64 {
	out := make([]float64, 0, len(ms))
	for _, m := range ms {
		if m.Defined {
			out = append(out, m.Value)
		}
	}
	return out
}
