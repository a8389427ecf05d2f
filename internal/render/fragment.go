package render

import (
	"encoding/base64"
	"strings"

	"github.com/hyperifyio/comtesta/internal/blocks"
	"github.com/hyperifyio/comtesta/internal/indicators"
	"github.com/hyperifyio/comtesta/internal/radar"
	"github.com/hyperifyio/comtesta/internal/report"
)

// Fragment renders the dashboard body for v: six section cards, the map with
// its chart and indicator list. All report text is escaped.
func Fragment(v View) string {
	if v.Empty() {
		return `<p class="dashboard-empty">` + blocks.Escape(EmptyState) + `</p>`
	}
	r := v.Report
	var sb strings.Builder
	for _, idx := range textSections {
		class := "dashboard-section"
		tag := "h3"
		if idx == report.SectionStatement {
			class += " statement-card"
			tag = "h2"
		}
		writeCard(&sb, "article", class, tag, r, idx)
	}

	sb.WriteString(`<article class="dashboard-section map-section">`)
	sb.WriteString(`<h3>` + blocks.Escape(Headings[report.SectionMap]) + `</h3>`)
	if r.IsMissing(report.SectionMap) {
		sb.WriteString(missing())
	} else {
		sb.WriteString(`<div class="radar-container">`)
		sb.WriteString(chartHTML(r, v.Chart, v.ChartErr))
		sb.WriteString(`</div>`)
		sb.WriteString(indicatorList(r))
	}
	sb.WriteString(`</article>`)

	writeCard(&sb, "article", "dashboard-section synthesis-card", "h3", r, report.SectionConclusion)
	return sb.String()
}

func writeCard(sb *strings.Builder, elem, class, tag string, r *report.Report, idx int) {
	sb.WriteString(`<` + elem + ` class="` + class + `">`)
	sb.WriteString(`<` + tag + `>` + blocks.Escape(Headings[idx]) + `</` + tag + `>`)
	sb.WriteString(sectionBody(r, idx))
	sb.WriteString(`</` + elem + `>`)
}

func sectionBody(r *report.Report, idx int) string {
	if r.IsMissing(idx) {
		return missing()
	}
	return blocks.Format(r.Section(idx))
}

func missing() string {
	return `<p class="section-missing">` + blocks.Escape(MissingPlaceholder) + `</p>`
}

// chartHTML embeds chart: SVG inline, PNG as a data URL. Without a chart it
// explains why.
func chartHTML(r *report.Report, chart *radar.Chart, chartErr error) string {
	if chartErr != nil {
		return `<div class="chart-error" role="alert"><strong>` + blocks.Escape(ChartFailure) +
			`</strong><p>` + blocks.Escape(chartErr.Error()) + `</p></div>`
	}
	if !r.Chartable() || chart == nil {
		return `<p class="chart-insufficient">` + blocks.Escape(InsufficientNotice) + `</p>`
	}
	data, err := chart.Bytes()
	if err != nil {
		return chartHTML(r, nil, err)
	}
	switch chart.MediaType() {
	case radar.MediaSVG:
		return `<div class="radar-chart-wrapper">` + string(data) + `</div>`
	case radar.MediaPNG:
		return `<div class="radar-chart-wrapper"><img src="` + DataURL(radar.MediaPNG, data) +
			`" alt="Gráfico de Radar - Mapa de Fragilidades"></div>`
	default:
		return `<p class="chart-insufficient">` + blocks.Escape(InsufficientNotice) + `</p>`
	}
}

// DataURL encodes data as a base64 data URL.
func DataURL(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func indicatorList(r *report.Report) string {
	var sb strings.Builder
	sb.WriteString(`<div class="indicators-list">`)
	if len(r.MapItems) > 0 {
		sb.WriteString(`<ul>`)
		for _, it := range r.MapItems {
			sb.WriteString(`<li class="indicator severity-` + string(indicators.SeverityOf(it.Score)) + `">`)
			sb.WriteString(`<strong>` + blocks.Escape(it.Title) + `:</strong> Nota ` + indicators.FormatScore(it.Score) + `/5`)
			if it.Detail != "" {
				sb.WriteString(`<div class="indicator-detail">` + blocks.Format(it.Detail) + `</div>`)
			}
			sb.WriteString(`</li>`)
		}
		sb.WriteString(`</ul>`)
	}
	if r.MapAverage != nil {
		sb.WriteString(`<p class="score-average"><strong>` + blocks.Escape(AverageLabel) + `</strong> ` +
			indicators.FormatScore(*r.MapAverage) + `/5</p>`)
	}
	sb.WriteString(`</div>`)
	return sb.String()
}
