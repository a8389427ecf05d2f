package radar

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/hyperifyio/comtesta/internal/indicators"
)

// Palette shared by all surfaces.
const (
	colorGrid   = "#e5e7eb"
	colorAxis   = "#d1d5db"
	colorTick   = "#9ca3af"
	colorLabel  = "#374151"
	colorStroke = "rgb(99,102,241)"
	colorFill   = "rgba(99,102,241,0.2)"
)

// SVGRenderer emits a standalone SVG document. Vertices carry <title>
// tooltips of the form "Title: 4.5/5" and grow on hover.
type SVGRenderer struct {
	// AriaLabel is the accessible name of the chart.
	AriaLabel string
}

func (SVGRenderer) MediaType() string { return MediaSVG }

func (r SVGRenderer) Render(g Geometry) (*Chart, error) {
	if len(g.Axes) < MinAxes {
		return nil, renderFailure("svg", ErrInsufficientAxes)
	}
	return newChart(MediaSVG, []byte(r.Markup(g))), nil
}

// Markup returns the SVG element for g, suitable for inline embedding.
func (r SVGRenderer) Markup(g Geometry) string {
	label := r.AriaLabel
	if label == "" {
		label = "Mapa de fragilidades argumentativas"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" class="radar-chart" viewBox="0 0 %s %s" width="%s" height="%s" role="img" aria-label="%s">`,
		num(g.Size), num(g.Size), num(g.Size), num(g.Size), esc(label))
	sb.WriteString(`<style>.radar-vertex{cursor:pointer;transition:r .15s}.radar-vertex:hover{r:8px}.radar-label{font:12px sans-serif;fill:` + colorLabel + `}.radar-tick{font:10px sans-serif;fill:` + colorTick + `}</style>`)

	sb.WriteString(`<g class="radar-grid">`)
	for _, c := range g.Grid {
		fmt.Fprintf(&sb, `<circle cx="%s" cy="%s" r="%s" fill="none" stroke="%s" stroke-width="1"/>`,
			num(g.Center.X), num(g.Center.Y), num(c.Radius), colorGrid)
	}
	for _, a := range g.Axes {
		fmt.Fprintf(&sb, `<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s" stroke-width="1"/>`,
			num(g.Center.X), num(g.Center.Y), num(a.End.X), num(a.End.Y), colorAxis)
	}
	for _, c := range g.Grid {
		fmt.Fprintf(&sb, `<text class="radar-tick" x="%s" y="%s">%s</text>`,
			num(g.Center.X+4), num(g.Center.Y-c.Radius-2), tickLabel(g, c))
	}
	sb.WriteString(`</g>`)

	pts := make([]string, len(g.Polygon))
	for i, p := range g.Polygon {
		pts[i] = num(p.X) + "," + num(p.Y)
	}
	fmt.Fprintf(&sb, `<polygon class="radar-area" points="%s" fill="%s" stroke="%s" stroke-width="2" stroke-linejoin="round"/>`,
		strings.Join(pts, " "), colorFill, colorStroke)

	for _, a := range g.Axes {
		fmt.Fprintf(&sb, `<circle class="radar-vertex" cx="%s" cy="%s" r="5" fill="%s" stroke="#fff" stroke-width="2"><title>%s</title></circle>`,
			num(a.Vertex.X), num(a.Vertex.Y), colorStroke, esc(Tooltip(a)))
	}

	for _, a := range g.Axes {
		fmt.Fprintf(&sb, `<text class="radar-label" x="%s" y="%s" text-anchor="%s">`,
			num(a.Label.Pos.X), num(a.Label.Pos.Y), a.Label.Anchor)
		for i, line := range a.Label.Lines {
			dy := "0"
			if i > 0 {
				dy = num(g.LineHeight)
			}
			fmt.Fprintf(&sb, `<tspan x="%s" dy="%s">%s</tspan>`, num(a.Label.Pos.X), dy, esc(line))
		}
		sb.WriteString(`</text>`)
	}
	sb.WriteString(`</svg>`)
	return sb.String()
}

// Tooltip is the hover text of an axis vertex.
func Tooltip(a Axis) string {
	return a.Title + ": " + indicators.FormatScore(a.Score) + "/5"
}

func tickLabel(g Geometry, c Circle) string {
	levels := len(g.Grid)
	if levels == 0 {
		return ""
	}
	return strconv.FormatFloat(g.MaxScore*float64(c.Level)/float64(levels), 'f', -1, 64)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func esc(s string) string {
	return html.EscapeString(s)
}
