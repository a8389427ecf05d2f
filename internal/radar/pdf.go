package radar

import (
	"bytes"
	"errors"

	"github.com/jung-kurt/gofpdf"
)

// PDFRenderer emits a one-page PDF holding only the chart, in points.
type PDFRenderer struct{}

func (PDFRenderer) MediaType() string { return MediaPDF }

func (PDFRenderer) Render(g Geometry) (*Chart, error) {
	if len(g.Axes) < MinAxes {
		return nil, renderFailure("pdf", ErrInsufficientAxes)
	}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: g.Size, Ht: g.Size},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	if err := DrawPDF(pdf, g, 0, 0, g.Size); err != nil {
		return nil, renderFailure("pdf", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, renderFailure("pdf", err)
	}
	return newChart(MediaPDF, buf.Bytes()), nil
}

// DrawPDF draws g into the current page of pdf inside the square at (x, y)
// with side width, in the document's units. Labels go through the document's
// cp1252 translator.
func DrawPDF(pdf *gofpdf.Fpdf, g Geometry, x, y, width float64) error {
	if len(g.Axes) < MinAxes {
		return ErrInsufficientAxes
	}
	if g.Size <= 0 {
		return errors.New("radar: empty geometry")
	}
	k := width / g.Size
	at := func(p Point) (float64, float64) { return x + p.X*k, y + p.Y*k }
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetLineWidth(0.6 * k)
	pdf.SetDrawColor(0xe5, 0xe7, 0xeb)
	cx, cy := at(g.Center)
	for _, c := range g.Grid {
		pdf.Circle(cx, cy, c.Radius*k, "D")
	}
	pdf.SetDrawColor(0xd1, 0xd5, 0xdb)
	for _, a := range g.Axes {
		ex, ey := at(a.End)
		pdf.Line(cx, cy, ex, ey)
	}

	pts := make([]gofpdf.PointType, len(g.Polygon))
	for i, p := range g.Polygon {
		px, py := at(p)
		pts[i] = gofpdf.PointType{X: px, Y: py}
	}
	pdf.SetFillColor(99, 102, 241)
	pdf.SetAlpha(0.2, "Normal")
	pdf.Polygon(pts, "F")
	pdf.SetAlpha(1, "Normal")
	pdf.SetDrawColor(99, 102, 241)
	pdf.SetLineWidth(2 * k)
	pdf.Polygon(pts, "D")
	for _, p := range pts {
		pdf.Circle(p.X, p.Y, 4*k, "F")
	}

	pdf.SetFont("Helvetica", "", pdf.UnitToPointConvert(11*k))
	pdf.SetTextColor(0x9c, 0xa3, 0xaf)
	for _, c := range g.Grid {
		pdf.Text(cx+4*k, cy-c.Radius*k-2*k, tickLabel(g, c))
	}
	pdf.SetTextColor(0x37, 0x41, 0x51)
	for _, a := range g.Axes {
		for i, line := range a.Label.Lines {
			s := tr(line)
			lx, ly := at(Point{X: a.Label.Pos.X, Y: a.Label.Pos.Y + float64(i)*g.LineHeight})
			w := pdf.GetStringWidth(s)
			switch a.Label.Anchor {
			case AnchorMiddle:
				lx -= w / 2
			case AnchorEnd:
				lx -= w
			}
			pdf.Text(lx, ly, s)
		}
	}
	return pdf.Error()
}
