// Package glottal measures glottal source features of a recording: closure
// instant variability, NAQ, QOQ, H1-H2 and the harmonic richness factor.
//
// Features are computed per analysis frame and summarised over the file
// as "global avg <frame feature>" and "global std <frame feature>", where a
// frame feature is e.g. "var GCI" or "std NAQ".
package glottal

import (
	"context"
	"slices"
	"sort"

	"github.com/RyanBlaney/sonido-voice/series"
)

// Frame feature names.
const (
	VarGCI  = "var GCI"
	AvgNAQ  = "avg NAQ"
	StdNAQ  = "std NAQ"
	AvgQOQ  = "avg QOQ"
	StdQOQ  = "std QOQ"
	AvgH1H2 = "avg H1H2"
	StdH1H2 = "std H1H2"
	AvgHRF  = "avg HRF"
	StdHRF  = "std HRF"
)

// FrameFeatures lists the per-frame features in output order.
var FrameFeatures = []string{VarGCI, AvgNAQ, StdNAQ, AvgQOQ, StdQOQ, AvgH1H2, StdH1H2, AvgHRF, StdHRF}

// GlobalAvg names the file average of a frame feature.
func GlobalAvg(feature string) string { return "global avg " + feature }

// GlobalStd names the file standard deviation of a frame feature.
func GlobalStd(feature string) string { return "global std " + feature }

// Table maps statistic names to values. Statistics the analyzer could not
// compute are undefined.
type Table map[string]series.Measurement

// Get returns the named statistic and whether the table has it.
func (t Table) Get(name string) (series.Measurement, bool) {
	m, ok := t[name]
	return m, ok
}

// Names returns the statistic names in sorted order.
func (t Table) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StaticNames returns every statistic name an analyzer reports.
func StaticNames() []string {
	var names []string
	for _, f := range FrameFeatures {
		names = append(names, GlobalAvg(f), GlobalStd(f))
	}
	return slices.Clip(names)
}

// Analyzer computes the glottal statistics of an audio file.
type Analyzer interface {
	AnalyzeFile(ctx context.Context, path string) (Table, error)
}
