package render

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/hyperifyio/comtesta/internal/blocks"
	"github.com/hyperifyio/comtesta/internal/indicators"
	"github.com/hyperifyio/comtesta/internal/radar"
	"github.com/hyperifyio/comtesta/internal/report"
)

const (
	pdfPageHeight = 297.0
	pdfMargin     = 15.0
	pdfChartWidth = 120.0
)

// PDF writes r as an A4 document to w. The radar chart is drawn as vectors;
// text goes through the cp1252 translator of the core fonts.
func PDF(r *report.Report, now time.Time, w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.SetTitle("ComTesta - Dashboard Epistemológico", true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 10, "ComTesta", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(0x71, 0x80, 0x96)
	pdf.CellFormat(0, 6, tr("Dashboard de Coerência Epistemológica"), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, tr("Gerado em "+LongDate(now)), "", 1, "C", false, 0, "")
	pdf.SetTextColor(0x2d, 0x37, 0x48)
	pdf.Ln(4)

	for _, idx := range textSections {
		pdfSection(pdf, tr, r, idx)
	}

	pdfHeading(pdf, tr, Headings[report.SectionMap])
	if r.IsMissing(report.SectionMap) {
		pdfMissing(pdf, tr)
	} else {
		if err := pdfChart(pdf, tr, r); err != nil {
			return err
		}
		for _, it := range r.MapItems {
			pdf.SetFont("Helvetica", "B", 11)
			pdf.MultiCell(0, 5, tr(fmt.Sprintf("%s: Nota %s/5", it.Title, indicators.FormatScore(it.Score))), "", "L", false)
			if it.Detail != "" {
				pdf.SetFont("Helvetica", "", 10)
				pdf.MultiCell(0, 5, tr(it.Detail), "", "L", false)
			}
			pdf.Ln(1)
		}
		if r.MapAverage != nil {
			pdf.SetFont("Helvetica", "B", 12)
			pdf.CellFormat(0, 8, tr(AverageLabel+" "+indicators.FormatScore(*r.MapAverage)+"/5"), "", 1, "C", false, 0, "")
		}
		pdf.Ln(3)
	}

	pdfSection(pdf, tr, r, report.SectionConclusion)

	pdf.Ln(4)
	pdf.SetFillColor(0xff, 0xf3, 0xcd)
	pdf.SetTextColor(0x85, 0x64, 0x04)
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 5, tr("Nota importante: "+Disclaimer), "", "L", true)
	pdf.SetTextColor(0x71, 0x80, 0x96)
	pdf.Ln(6)
	pdf.CellFormat(0, 5, tr("Dashboard gerado por ComTesta - Agente Pensante de Feedback"), "", 1, "C", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func pdfHeading(pdf *gofpdf.Fpdf, tr func(string) string, title string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.SetTextColor(0x1a, 0x20, 0x2c)
	pdf.MultiCell(0, 7, tr(title), "", "L", false)
	pdf.SetTextColor(0x2d, 0x37, 0x48)
	pdf.Ln(1)
}

func pdfMissing(pdf *gofpdf.Fpdf, tr func(string) string) {
	pdf.SetFont("Helvetica", "I", 11)
	pdf.MultiCell(0, 5, tr(MissingPlaceholder), "", "L", false)
	pdf.Ln(3)
}

func pdfSection(pdf *gofpdf.Fpdf, tr func(string) string, r *report.Report, idx int) {
	pdfHeading(pdf, tr, Headings[idx])
	if r.IsMissing(idx) {
		pdfMissing(pdf, tr)
		return
	}
	pdf.SetFont("Helvetica", "", 11)
	for _, b := range blocks.ToBlocks(r.Section(idx)) {
		if b.Kind == blocks.Paragraph {
			pdf.MultiCell(0, 5, tr(b.Text), "", "L", false)
			pdf.Ln(2)
			continue
		}
		for i, it := range b.Items {
			marker := "- "
			if b.Ordered {
				marker = fmt.Sprintf("%d. ", i+1)
			}
			pdf.MultiCell(0, 5, tr(marker+it), "", "L", false)
		}
		pdf.Ln(2)
	}
	pdf.Ln(2)
}

func pdfChart(pdf *gofpdf.Fpdf, tr func(string) string, r *report.Report) error {
	if !r.Chartable() {
		pdf.SetFont("Helvetica", "I", 11)
		pdf.MultiCell(0, 5, tr(InsufficientNotice), "", "L", false)
		pdf.Ln(3)
		return nil
	}
	g, err := radar.Layout(r.MapItems, radar.DefaultConfig())
	if err != nil {
		return err
	}
	if pdf.GetY()+pdfChartWidth > pdfPageHeight-pdfMargin {
		pdf.AddPage()
	}
	pageW, _ := pdf.GetPageSize()
	x := (pageW - pdfChartWidth) / 2
	y := pdf.GetY()
	if err := radar.DrawPDF(pdf, g, x, y, pdfChartWidth); err != nil {
		return fmt.Errorf("draw chart: %w", err)
	}
	pdf.SetXY(pdfMargin, y+pdfChartWidth+4)
	pdf.SetTextColor(0x2d, 0x37, 0x48)
	return nil
}
