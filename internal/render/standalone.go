package render

import (
	"strings"
	"time"

	"github.com/hyperifyio/comtesta/internal/blocks"
	"github.com/hyperifyio/comtesta/internal/radar"
	"github.com/hyperifyio/comtesta/internal/report"
)

const standaloneCSS = `* { box-sizing: border-box; margin: 0; padding: 0; }
body { font-family: system-ui, -apple-system, sans-serif; line-height: 1.6; color: #2D3748; background: #F5F7FA; padding: 2rem; }
.container { max-width: 1200px; margin: 0 auto; }
h1 { font-size: 2.5rem; margin-bottom: 0.5rem; text-align: center; }
h2 { font-size: 1.75rem; margin: 2rem 0 1rem; color: #1A202C; }
h3 { font-size: 1.35rem; margin: 1.5rem 0 0.75rem; color: #2D3748; }
p { margin: 0.75rem 0; }
ul, ol { margin: 1rem 0; padding-left: 2rem; }
li { margin: 0.5rem 0; }
.header { text-align: center; background: white; padding: 2rem; border-radius: 12px; margin-bottom: 2rem; box-shadow: 0 2px 8px rgba(0,0,0,0.05); }
.subtitle { color: #718096; font-size: 1rem; }
.timestamp { color: #A0AEC0; font-size: 0.9rem; margin-top: 0.5rem; }
.section { background: white; padding: 2rem; margin: 1.5rem 0; border-radius: 12px; box-shadow: 0 2px 8px rgba(0,0,0,0.05); }
.section-missing { color: #A0AEC0; font-style: italic; }
.map-section { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 3rem 2rem; border-radius: 16px; }
.map-section h3 { color: white; }
.chart-container { background: white; border-radius: 16px; padding: 2rem; margin: 2rem auto; max-width: 650px; text-align: center; }
.chart-container img, .chart-container svg { max-width: 100%; height: auto; display: block; margin: 0 auto; }
.chart-insufficient { text-align: center; font-style: italic; }
.indicators-list { background: rgba(255, 255, 255, 0.1); border-radius: 12px; padding: 2rem; margin: 2rem auto; max-width: 600px; }
.indicators-list ul { list-style: none; padding: 0; margin: 0 0 1rem 0; }
.indicators-list li { padding: 0.75rem 0; border-bottom: 1px solid rgba(255, 255, 255, 0.2); font-size: 1.05rem; }
.indicators-list li:last-child { border-bottom: none; }
.indicator-detail { font-size: 0.95rem; opacity: 0.9; }
.severity-critical strong { color: #FED7D7; }
.severity-warning strong { color: #FEFCBF; }
.severity-good strong { color: #C6F6D5; }
.score-average { margin-top: 1.5rem; padding-top: 1.5rem; border-top: 2px solid rgba(255, 255, 255, 0.3); font-size: 1.2rem; text-align: center; }
.disclaimer { background: #FFF3CD; border-left: 4px solid #FFC107; border-radius: 8px; padding: 2rem; margin: 2rem 0; color: #856404; }
.footer { text-align: center; color: #718096; margin-top: 3rem; padding-top: 2rem; border-top: 1px solid #E2E8F0; font-size: 0.9rem; }
@media print { body { background: white; padding: 0; } .section, .header { box-shadow: none; } }
`

// Standalone renders a self-contained HTML document for r with no external
// references. snapshot, when non-nil, is embedded as inline SVG or as a PNG
// data URL.
func Standalone(r *report.Report, snapshot *radar.Chart, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"pt-BR\">\n<head>\n<meta charset=\"UTF-8\">\n")
	sb.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	sb.WriteString("<title>ComTesta - Dashboard Epistemológico</title>\n<style>\n")
	sb.WriteString(standaloneCSS)
	sb.WriteString("</style>\n</head>\n<body>\n<div class=\"container\">\n")
	sb.WriteString("<div class=\"header\"><h1>ComTesta</h1><p class=\"subtitle\">Dashboard de Coerência Epistemológica</p>")
	sb.WriteString("<p class=\"timestamp\">Gerado em " + blocks.Escape(LongDate(now)) + "</p></div>\n")

	for _, idx := range textSections {
		tag := "h3"
		if idx == report.SectionStatement {
			tag = "h2"
		}
		writeCard(&sb, "div", "section", tag, r, idx)
		sb.WriteString("\n")
	}

	sb.WriteString(`<div class="section map-section">`)
	sb.WriteString(`<h3>` + blocks.Escape(Headings[report.SectionMap]) + `</h3>`)
	if r.IsMissing(report.SectionMap) {
		sb.WriteString(missing())
	} else {
		if snapshot != nil || !r.Chartable() {
			sb.WriteString(`<div class="chart-container">`)
			sb.WriteString(chartHTML(r, snapshot, nil))
			sb.WriteString(`</div>`)
		}
		sb.WriteString(indicatorList(r))
	}
	sb.WriteString("</div>\n")

	writeCard(&sb, "div", "section", "h3", r, report.SectionConclusion)
	sb.WriteString("\n<div class=\"disclaimer\"><p><strong>Nota importante:</strong> " + blocks.Escape(Disclaimer) + "</p></div>\n")
	sb.WriteString("<div class=\"footer\"><p>Dashboard gerado por <strong>ComTesta</strong> - Agente Pensante de Feedback</p>")
	sb.WriteString("<p>Auditoria de coerência epistemológica para decisões reais</p></div>\n")
	sb.WriteString("</div>\n</body>\n</html>\n")
	return sb.String()
}
