package radar

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strings"
	"unicode"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	rgbaGrid   = color.NRGBA{0xe5, 0xe7, 0xeb, 0xff}
	rgbaAxis   = color.NRGBA{0xd1, 0xd5, 0xdb, 0xff}
	rgbaTick   = color.NRGBA{0x9c, 0xa3, 0xaf, 0xff}
	rgbaLabel  = color.NRGBA{0x37, 0x41, 0x51, 0xff}
	rgbaStroke = color.NRGBA{99, 102, 241, 0xff}
	rgbaFill   = color.NRGBA{99, 102, 241, 51}
)

// PNGRenderer rasterizes the chart onto a white background. Scale multiplies
// the geometry size; zero means 1.
type PNGRenderer struct {
	Scale float64
}

func (PNGRenderer) MediaType() string { return MediaPNG }

func (r PNGRenderer) Render(g Geometry) (*Chart, error) {
	if len(g.Axes) < MinAxes {
		return nil, renderFailure("png", ErrInsufficientAxes)
	}
	img, err := r.Image(g)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, renderFailure("png", err)
	}
	return newChart(MediaPNG, buf.Bytes()), nil
}

// Image draws g into a new RGBA image.
func (r PNGRenderer) Image(g Geometry) (*image.RGBA, error) {
	s := r.Scale
	if s <= 0 {
		s = 1
	}
	side := int(math.Ceil(g.Size * s))
	if side <= 0 || side > 8192 {
		return nil, renderFailure("png", fmt.Errorf("invalid surface size %d", side))
	}
	img := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	p := &painter{img: img, z: vector.NewRasterizer(side, side), s: s}
	for _, c := range g.Grid {
		p.ring(g.Center, c.Radius, 1, rgbaGrid)
	}
	for _, a := range g.Axes {
		p.line(g.Center, a.End, 1, rgbaAxis)
	}
	p.polygon(g.Polygon, rgbaFill)
	for i := range g.Polygon {
		p.line(g.Polygon[i], g.Polygon[(i+1)%len(g.Polygon)], 2, rgbaStroke)
	}
	for _, a := range g.Axes {
		p.disc(a.Vertex, 5, rgbaStroke)
	}
	for _, c := range g.Grid {
		p.text(tickLabel(g, c), Point{X: g.Center.X + 4, Y: g.Center.Y - c.Radius - 2}, AnchorStart, rgbaTick)
	}
	for _, a := range g.Axes {
		for i, line := range a.Label.Lines {
			pos := a.Label.Pos
			pos.Y += float64(i) * g.LineHeight
			p.text(line, pos, a.Label.Anchor, rgbaLabel)
		}
	}
	return img, nil
}

type painter struct {
	img *image.RGBA
	z   *vector.Rasterizer
	s   float64
}

func (p *painter) pt(q Point) (float32, float32) {
	return float32(q.X * p.s), float32(q.Y * p.s)
}

func (p *painter) fill(c color.Color) {
	p.z.Draw(p.img, p.img.Bounds(), image.NewUniform(c), image.Point{})
	b := p.img.Bounds()
	p.z.Reset(b.Dx(), b.Dy())
}

func (p *painter) polygon(pts []Point, c color.Color) {
	if len(pts) < 3 {
		return
	}
	p.z.MoveTo(p.pt(pts[0]))
	for _, q := range pts[1:] {
		p.z.LineTo(p.pt(q))
	}
	p.z.ClosePath()
	p.fill(c)
}

// line strokes a segment as a filled quad of the given width.
func (p *painter) line(a, b Point, width float64, c color.Color) {
	dx, dy := b.X-a.X, b.Y-a.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return
	}
	nx, ny := -dy/l*width/2, dx/l*width/2
	p.polygon([]Point{
		{a.X + nx, a.Y + ny},
		{b.X + nx, b.Y + ny},
		{b.X - nx, b.Y - ny},
		{a.X - nx, a.Y - ny},
	}, c)
}

const circleSegments = 72

func circlePoints(center Point, r float64, reverse bool) []Point {
	pts := make([]Point, circleSegments)
	for i := range pts {
		t := 2 * math.Pi * float64(i) / circleSegments
		if reverse {
			t = -t
		}
		pts[i] = Point{center.X + r*math.Cos(t), center.Y + r*math.Sin(t)}
	}
	return pts
}

func (p *painter) disc(center Point, r float64, c color.Color) {
	p.polygon(circlePoints(center, r, false), c)
}

// ring fills the band between two circles wound in opposite directions.
func (p *painter) ring(center Point, r, width float64, c color.Color) {
	outer := circlePoints(center, r+width/2, false)
	inner := circlePoints(center, r-width/2, true)
	p.z.MoveTo(p.pt(outer[0]))
	for _, q := range outer[1:] {
		p.z.LineTo(p.pt(q))
	}
	p.z.ClosePath()
	p.z.MoveTo(p.pt(inner[0]))
	for _, q := range inner[1:] {
		p.z.LineTo(p.pt(q))
	}
	p.z.ClosePath()
	p.fill(c)
}

func (p *painter) text(s string, pos Point, anchor Anchor, c color.Color) {
	s = asciiFold(s)
	face := basicfont.Face7x13
	w := font.MeasureString(face, s)
	x := fixed.Int26_6(pos.X * p.s * 64)
	switch anchor {
	case AnchorMiddle:
		x -= w / 2
	case AnchorEnd:
		x -= w
	}
	d := &font.Drawer{
		Dst:  p.img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: x, Y: fixed.Int26_6(pos.Y * p.s * 64)},
	}
	d.DrawString(s)
}

// asciiFold strips accents and replaces what remains outside ASCII with '?',
// since the bitmap face only covers ASCII.
func asciiFold(s string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(fold, s)
	if err != nil {
		out = s
	}
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return '?'
		}
		return r
	}, out)
}
