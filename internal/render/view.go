// Package render turns a parsed Report and its chart into HTML fragments,
// standalone documents, Markdown, terminal output and PDF.
package render

import (
	"time"

	"github.com/hyperifyio/comtesta/internal/inbound"
	"github.com/hyperifyio/comtesta/internal/radar"
	"github.com/hyperifyio/comtesta/internal/report"
)

// View is one published dashboard state: the report, its rendered chart (or
// the reason there is none) and where the payload came from.
type View struct {
	Report     *report.Report
	Chart      *radar.Chart
	ChartErr   error
	Source     inbound.Source
	ReceivedAt time.Time
}

// Empty reports whether the view holds no report.
func (v View) Empty() bool { return v.Report == nil }

// Section headings as shown on the dashboard.
var Headings = map[int]string{
	report.SectionStatement:       "[1] Enunciado analisado",
	report.SectionPremises:        "[2] Decomposição de Premissas",
	report.SectionEvidence:        "[3] Verificabilidade e Bases de Evidência",
	report.SectionInconsistencies: "[4] Inconsistências Lógicas e Riscos Epistemológicos",
	report.SectionMap:             "[5] Mapa de Fragilidades Argumentativas - Indicadores",
	report.SectionConclusion:      "[6] Síntese Conclusiva",
}

const (
	// MissingPlaceholder replaces the body of a section absent from the input.
	MissingPlaceholder = "Seção não identificada na resposta."
	// InsufficientNotice replaces the chart when fewer than three indicators
	// were recovered.
	InsufficientNotice = "Dados insuficientes para gerar o gráfico de radar (mínimo de 3 indicadores)."
	// ChartFailure titles the panel shown when drawing the chart failed.
	ChartFailure = "Falha ao renderizar o gráfico"
	// AverageLabel prefixes the stated map average.
	AverageLabel = "Pontuação Média do Mapa:"
	// Disclaimer closes exported documents.
	Disclaimer = "Esta análise refere-se à coerência do pensamento, não ao conteúdo ou aos resultados práticos das ações."
	// EmptyState is shown before any report has arrived.
	EmptyState = "Aguardando relatório do agente."
)

// textSections are the sections rendered as plain formatted text, in order.
var textSections = []int{
	report.SectionStatement,
	report.SectionPremises,
	report.SectionEvidence,
	report.SectionInconsistencies,
}
