// Package radar lays out indicator scores as a radar chart and renders the
// layout to SVG, PNG and PDF surfaces.
package radar

import (
	"errors"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/hyperifyio/comtesta/internal/indicators"
)

// ErrInsufficientAxes is returned by Layout for fewer than MinAxes items. A
// closed polygon needs at least three vertices.
var ErrInsufficientAxes = errors.New("radar: at least 3 indicators required")

// MinAxes is the smallest number of indicators Layout accepts.
const MinAxes = 3

// Config sizes the chart. Distances are in surface units (SVG user units,
// pixels for PNG, millimetres for PDF after scaling).
type Config struct {
	Size          float64
	Padding       float64
	Levels        int
	MaxScore      float64
	LabelGap      float64
	LabelInset    float64
	CenterEpsilon float64
	LineHeight    float64
	WrapMinWords  int
	WrapMinChars  int
}

// DefaultConfig returns the dashboard chart settings.
func DefaultConfig() Config {
	return Config{
		Size:          600,
		Padding:       110,
		Levels:        5,
		MaxScore:      indicators.MaxScore,
		LabelGap:      18,
		LabelInset:    4,
		CenterEpsilon: 1,
		LineHeight:    14,
		WrapMinWords:  3,
		WrapMinChars:  16,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Size <= 0 {
		c.Size = d.Size
	}
	if c.Padding < 0 || c.Padding*2 >= c.Size {
		c.Padding = c.Size * d.Padding / d.Size
	}
	if c.Levels <= 0 {
		c.Levels = d.Levels
	}
	if c.MaxScore <= 0 {
		c.MaxScore = d.MaxScore
	}
	if c.CenterEpsilon <= 0 {
		c.CenterEpsilon = d.CenterEpsilon
	}
	if c.LineHeight <= 0 {
		c.LineHeight = d.LineHeight
	}
	if c.WrapMinWords <= 0 {
		c.WrapMinWords = d.WrapMinWords
	}
	if c.WrapMinChars <= 0 {
		c.WrapMinChars = d.WrapMinChars
	}
	return c
}

// Point is a surface coordinate with y growing downwards.
type Point struct {
	X, Y float64
}

// Circle is one concentric grid level around the chart center.
type Circle struct {
	Level  int
	Radius float64
}

// Anchor is the horizontal alignment of a label relative to its position.
type Anchor string

const (
	AnchorMiddle Anchor = "middle"
	AnchorStart  Anchor = "start"
	AnchorEnd    Anchor = "end"
)

// Label is an axis caption of one or two lines. Pos is the baseline of the
// first line.
type Label struct {
	Lines  []string
	Pos    Point
	Anchor Anchor
}

// Axis is the spoke of one indicator.
type Axis struct {
	Index  int
	Angle  float64
	End    Point
	Label  Label
	Title  string
	Score  float64
	Vertex Point
}

// Geometry is the full, surface-independent layout of a chart.
type Geometry struct {
	Size       float64
	Center     Point
	MaxRadius  float64
	MaxScore   float64
	LineHeight float64
	Grid       []Circle
	Axes       []Axis
	Polygon    []Point
}

// Layout computes grid, axes, labels and the score polygon for items in the
// order given. Axis k points at 2πk/N − π/2 so the first axis points up.
func Layout(items []indicators.Item, cfg Config) (Geometry, error) {
	if len(items) < MinAxes {
		return Geometry{}, ErrInsufficientAxes
	}
	cfg = cfg.withDefaults()
	c := cfg.Size / 2
	g := Geometry{
		Size:       cfg.Size,
		Center:     Point{X: c, Y: c},
		MaxRadius:  c - cfg.Padding,
		MaxScore:   cfg.MaxScore,
		LineHeight: cfg.LineHeight,
	}
	for l := 1; l <= cfg.Levels; l++ {
		g.Grid = append(g.Grid, Circle{Level: l, Radius: g.MaxRadius * float64(l) / float64(cfg.Levels)})
	}

	n := float64(len(items))
	for k, it := range items {
		angle := 2*math.Pi*float64(k)/n - math.Pi/2
		cos, sin := math.Cos(angle), math.Sin(angle)
		r := g.MaxRadius * clamp(it.Score, 0, cfg.MaxScore) / cfg.MaxScore
		ax := Axis{
			Index:  k,
			Angle:  angle,
			End:    Point{X: c + g.MaxRadius*cos, Y: c + g.MaxRadius*sin},
			Title:  it.Title,
			Score:  it.Score,
			Vertex: Point{X: c + r*cos, Y: c + r*sin},
		}
		ax.Label = placeLabel(cfg, g, cos, sin, it.Title)
		g.Axes = append(g.Axes, ax)
		g.Polygon = append(g.Polygon, ax.Vertex)
	}
	return g, nil
}

func placeLabel(cfg Config, g Geometry, cos, sin float64, title string) Label {
	lr := g.MaxRadius + cfg.LabelGap
	pos := Point{X: g.Center.X + lr*cos, Y: g.Center.Y + lr*sin}
	lbl := Label{Lines: WrapLabel(title, cfg.WrapMinWords, cfg.WrapMinChars)}
	switch dx := pos.X - g.Center.X; {
	case math.Abs(dx) <= cfg.CenterEpsilon:
		lbl.Anchor = AnchorMiddle
	case dx > 0:
		lbl.Anchor = AnchorStart
		pos.X -= cfg.LabelInset
	default:
		lbl.Anchor = AnchorEnd
		pos.X += cfg.LabelInset
	}
	// Multi-line labels above the center grow upwards, away from the grid.
	if pos.Y < g.Center.Y-cfg.CenterEpsilon {
		pos.Y -= float64(len(lbl.Lines)-1) * cfg.LineHeight
	}
	lbl.Pos = pos
	return lbl
}

// WrapLabel splits a title with at least minWords words and at least minChars
// characters into two lines at the middle of its word list.
func WrapLabel(title string, minWords, minChars int) []string {
	words := strings.Fields(title)
	if len(words) < minWords || utf8.RuneCountInString(strings.Join(words, " ")) < minChars {
		return []string{strings.Join(words, " ")}
	}
	mid := (len(words) + 1) / 2
	return []string{strings.Join(words[:mid], " "), strings.Join(words[mid:], " ")}
}

// Radius returns the distance of p from the chart center.
func (g Geometry) Radius(p Point) float64 {
	return math.Hypot(p.X-g.Center.X, p.Y-g.Center.Y)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
