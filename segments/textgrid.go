// Package segments reads labelled time intervals from Praat TextGrid files.
package segments

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/RyanBlaney/sonido-voice/audio"
)

// Tier classes.
const (
	IntervalTier = "IntervalTier"
	PointTier    = "TextTier"
)

// ErrNoTier is returned when a requested tier does not exist.
var ErrNoTier = errors.New("tier not found")

// Segment is a labelled interval. Points carry a degenerate interval.
type Segment struct {
	Label    string         `json:"label" yaml:"label"`
	Interval audio.Interval `json:"interval" yaml:"interval"`
}

// Tier is one annotation tier.
type Tier struct {
	Name     string
	Class    string
	Segments []Segment
}

// Labelled returns the segments whose label is not blank, with the label
// trimmed.
func (t *Tier) Labelled() []Segment {
	var out []Segment
	for _, s := range t.Segments {
		label := strings.TrimSpace(s.Label)
		if label == "" {
			continue
		}
		out = append(out, Segment{Label: label, Interval: s.Interval})
	}
	return out
}

// TextGrid is a parsed annotation file.
type TextGrid struct {
	Start, End float64
	Tiers      []Tier
}

// Tier returns the tier called name. An empty name selects the first
// interval tier.
func (g *TextGrid) Tier(name string) (*Tier, error) {
	for i := range g.Tiers {
		t := &g.Tiers[i]
		if name == "" && t.Class == IntervalTier {
			return t, nil
		}
		if name != "" && t.Name == name {
			return t, nil
		}
	}
	if name == "" {
		return nil, fmt.Errorf("%w: no interval tier", ErrNoTier)
	}
	return nil, fmt.Errorf("%w: %q", ErrNoTier, name)
}

// ReadTextGrid parses the TextGrid at path.
func ReadTextGrid(path string) (*TextGrid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	g, err := ParseTextGrid(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// ParseTextGrid parses a TextGrid in Praat's long text format.
func ParseTextGrid(r io.Reader) (*TextGrid, error) {
	p := &parser{scanner: bufio.NewScanner(r)}
	p.scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return p.parse()
}

type parser struct {
	scanner *bufio.Scanner
	line    int

	grid    TextGrid
	tier    *Tier
	segment *Segment
	header  bool
}

func (p *parser) parse() (*TextGrid, error) {
	for p.scanner.Scan() {
		p.line++
		line := strings.TrimSpace(strings.TrimPrefix(p.scanner.Text(), "\ufeff"))
		if line == "" {
			continue
		}
		if err := p.handle(line); err != nil {
			return nil, fmt.Errorf("line %d: %w", p.line, err)
		}
	}
	if err := p.scanner.Err(); err != nil {
		return nil, err
	}
	if !p.header {
		return nil, errors.New("not a TextGrid file")
	}
	if err := p.closeSegment(); err != nil {
		return nil, err
	}
	return &p.grid, nil
}

func (p *parser) handle(line string) error {
	switch {
	case line == "item []:":
		return nil
	case strings.HasPrefix(line, "item [") && strings.HasSuffix(line, ":"):
		if err := p.closeSegment(); err != nil {
			return err
		}
		p.grid.Tiers = append(p.grid.Tiers, Tier{})
		p.tier = &p.grid.Tiers[len(p.grid.Tiers)-1]
		return nil
	case strings.HasPrefix(line, "intervals [") || strings.HasPrefix(line, "points ["):
		if p.tier == nil {
			return errors.New("segment outside a tier")
		}
		if err := p.closeSegment(); err != nil {
			return err
		}
		p.segment = &Segment{Interval: audio.Interval{Start: -1, End: -1}}
		return nil
	}

	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return nil
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	if strings.HasPrefix(value, `"`) {
		text, err := p.quoted(value)
		if err != nil {
			return err
		}
		return p.setText(key, text)
	}
	return p.setNumber(key, value)
}

// quoted reads a Praat string, which may span lines and escapes quotes by
// doubling them.
func (p *parser) quoted(value string) (string, error) {
	var b strings.Builder
	rest := value[1:]
	for {
		for i := 0; i < len(rest); i++ {
			if rest[i] != '"' {
				b.WriteByte(rest[i])
				continue
			}
			if i+1 < len(rest) && rest[i+1] == '"' {
				b.WriteByte('"')
				i++
				continue
			}
			return b.String(), nil
		}
		if !p.scanner.Scan() {
			return "", errors.New("unterminated string")
		}
		p.line++
		b.WriteByte('\n')
		rest = p.scanner.Text()
	}
}

func (p *parser) setText(key, text string) error {
	switch key {
	case "File type":
		if text != "ooTextFile" {
			return fmt.Errorf("unsupported file type %q", text)
		}
	case "Object class":
		if !strings.HasPrefix(text, "TextGrid") {
			return fmt.Errorf("object class %q is not a TextGrid", text)
		}
		p.header = true
	case "class":
		if p.tier != nil {
			p.tier.Class = text
		}
	case "name":
		if p.tier != nil {
			p.tier.Name = text
		}
	case "text", "mark":
		if p.segment != nil {
			p.segment.Label = text
		}
	}
	return nil
}

func (p *parser) setNumber(key, value string) error {
	switch key {
	case "xmin", "xmax", "number", "time":
	default:
		return nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("bad %s %q", key, value)
	}

	switch {
	case p.segment != nil:
		switch key {
		case "xmin":
			p.segment.Interval.Start = v
		case "xmax":
			p.segment.Interval.End = v
		default:
			p.segment.Interval = audio.Interval{Start: v, End: v}
		}
	case p.tier == nil:
		if key == "xmin" {
			p.grid.Start = v
		} else if key == "xmax" {
			p.grid.End = v
		}
	}
	return nil
}

func (p *parser) closeSegment() error {
	if p.segment == nil {
		return nil
	}
	s := *p.segment
	p.segment = nil
	if s.Interval.Start < 0 || s.Interval.End < s.Interval.Start {
		return fmt.Errorf("invalid segment %s", s.Interval)
	}
	p.tier.Segments = append(p.tier.Segments, s)
	return nil
}
