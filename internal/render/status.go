package render

import (
	"strings"
	"time"

	"github.com/hyperifyio/comtesta/internal/inbound"
)

var sourceLabels = map[inbound.Source]string{
	inbound.SourceAgent: "Dados recebidos automaticamente do agente",
	inbound.SourceSaved: "Último relatório salvo carregado",
	inbound.SourcePaste: "Relatório colado manualmente",
	inbound.SourceInbox: "Relatório lido da caixa de entrada",
}

// StatusTimeLayout is the short pt-BR date and time layout.
const StatusTimeLayout = "02/01/2006 15:04"

// Status builds the dashboard status line, for example
// "Dados recebidos automaticamente do agente • 05/03/2025 14:07".
// A zero ts means now.
func Status(source inbound.Source, ts time.Time) string {
	label, ok := sourceLabels[source]
	if !ok {
		label = "Análise carregada"
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	return label + " • " + ts.Format(StatusTimeLayout)
}

// ExportFilename returns ComTesta_Dashboard_YYYYMMDD_HHMM.<ext>.
func ExportFilename(now time.Time, ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = "html"
	}
	return "ComTesta_Dashboard_" + now.Format("20060102_1504") + "." + ext
}

var months = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// LongDate formats t as "5 de março de 2025 às 14:07".
func LongDate(t time.Time) string {
	return t.Format("2") + " de " + months[t.Month()-1] + " de " + t.Format("2006") + " às " + t.Format("15:04")
}
