package extractors

import (
	"context"
	"fmt"
	"os"

	"github.com/RyanBlaney/sonido-voice/engines"
	"github.com/RyanBlaney/sonido-voice/engines/glottal"
	"github.com/RyanBlaney/sonido-voice/features"
)

// glottalColumns maps output names to the analyzer statistics they report.
var glottalColumns = []struct{ name, stat string }{
	{"GCI", glottal.GlobalAvg(glottal.VarGCI)},
	{"NAQ", glottal.GlobalAvg(glottal.StdNAQ)},
	{"QOQ", glottal.GlobalAvg(glottal.StdQOQ)},
	{"H1H2", glottal.GlobalAvg(glottal.StdH1H2)},
	{"HRF", glottal.GlobalAvg(glottal.StdHRF)},
}

// glottalMemoSize bounds the files whose analyses are kept.
const glottalMemoSize = 16

// fileVersion identifies the contents of a file analysed by path.
type fileVersion struct {
	path    string
	size    int64
	modTime int64
}

// Glottal reports file-level glottal source variability. The analyzer reads
// the waveform's source file, so the interval does not narrow it, and every
// interval of one file shares one analysis.
type Glottal struct {
	analyzer glottal.Analyzer
	tables   *engines.Memo[fileVersion, glottal.Table]
}

// NewGlottal creates the glottal extractor.
func NewGlottal(analyzer glottal.Analyzer) *Glottal {
	return &Glottal{
		analyzer: analyzer,
		tables:   engines.NewMemo[fileVersion, glottal.Table](glottalMemoSize),
	}
}

func (g *Glottal) Name() string { return GlottalExtractor }

func (g *Glottal) Names() []string {
	names := make([]string, len(glottalColumns))
	for i, c := range glottalColumns {
		names[i] = c.name
	}
	return names
}

func (g *Glottal) Extract(ctx context.Context, in features.Input) (map[string]features.Value, error) {
	path := in.Waveform.Source()
	if path == "" {
		return nil, engines.Unavailable(engines.Glottal, "waveform has no source file", nil)
	}

	table, err := g.analyze(ctx, path)
	if err != nil {
		return nil, err
	}

	out := make(map[string]features.Value, len(glottalColumns))
	for _, c := range glottalColumns {
		m, ok := table.Get(c.stat)
		if !ok {
			return nil, engines.Unavailable(engines.Glottal, fmt.Sprintf("analyzer output lacks %q", c.stat), nil)
		}
		out[c.name] = features.Scalar(m)
	}
	return out, nil
}

// analyze runs the analyzer once per file version. Files that cannot be
// stated go straight to the analyzer, which reports them.
func (g *Glottal) analyze(ctx context.Context, path string) (glottal.Table, error) {
	info, err := os.Stat(path)
	if err != nil {
		return g.analyzer.AnalyzeFile(ctx, path)
	}
	key := fileVersion{path: path, size: info.Size(), modTime: info.ModTime().UnixNano()}
	return g.tables.Get(ctx, key, func() (glottal.Table, error) {
		return g.analyzer.AnalyzeFile(ctx, path)
	})
}
