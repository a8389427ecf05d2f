package render

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/hyperifyio/comtesta/internal/indicators"
	"github.com/hyperifyio/comtesta/internal/report"
)

// Markdown renders r as a Markdown document.
func Markdown(r *report.Report) string {
	var sb strings.Builder
	sb.WriteString("# ComTesta\n\n")
	for _, idx := range textSections {
		writeMarkdownSection(&sb, r, idx)
	}

	sb.WriteString("## " + Headings[report.SectionMap] + "\n\n")
	if r.IsMissing(report.SectionMap) {
		sb.WriteString("_" + MissingPlaceholder + "_\n\n")
	} else {
		if !r.Chartable() {
			sb.WriteString("_" + InsufficientNotice + "_\n\n")
		}
		for _, it := range r.MapItems {
			fmt.Fprintf(&sb, "- **%s**: %s/5 (%s)\n", it.Title, indicators.FormatScore(it.Score), indicators.SeverityOf(it.Score))
			for _, line := range strings.Split(it.Detail, "\n") {
				if line = strings.TrimSpace(line); line != "" {
					sb.WriteString("  " + line + "\n")
				}
			}
		}
		if len(r.MapItems) > 0 {
			sb.WriteString("\n")
		}
		if r.MapAverage != nil {
			sb.WriteString("**" + AverageLabel + "** " + indicators.FormatScore(*r.MapAverage) + "/5\n\n")
		}
	}

	writeMarkdownSection(&sb, r, report.SectionConclusion)
	sb.WriteString("> **Nota importante:** " + Disclaimer + "\n")
	return sb.String()
}

func writeMarkdownSection(sb *strings.Builder, r *report.Report, idx int) {
	sb.WriteString("## " + Headings[idx] + "\n\n")
	if r.IsMissing(idx) {
		sb.WriteString("_" + MissingPlaceholder + "_\n\n")
		return
	}
	sb.WriteString(strings.TrimSpace(r.Section(idx)) + "\n\n")
}

// TerminalOptions control Terminal.
type TerminalOptions struct {
	// Width wraps text; 0 means 80 columns.
	Width int
	// Color enables ANSI styling.
	Color bool
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Terminal renders r for a terminal: the Markdown document through glamour,
// followed by a score bar per indicator.
func Terminal(r *report.Report, opts TerminalOptions) (string, error) {
	width := opts.Width
	if width <= 0 {
		width = 80
	}
	style := glamour.WithStandardStyle(styles.AsciiStyle)
	if opts.Color {
		style = glamour.WithAutoStyle()
	}
	tr, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("terminal renderer: %w", err)
	}
	out, err := tr.Render(Markdown(r))
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	if len(r.MapItems) == 0 {
		return out, nil
	}
	return out + "\n" + ScoreBars(r.MapItems, opts.Color) + "\n", nil
}

var severityColors = map[indicators.Severity]lipgloss.Color{
	indicators.SeverityCritical: lipgloss.Color("#DC2626"),
	indicators.SeverityWarning:  lipgloss.Color("#D97706"),
	indicators.SeverityGood:     lipgloss.Color("#059669"),
}

// ScoreBars draws one "title  ███░░ 3.0/5" line per item, colored by severity
// when color is set.
func ScoreBars(items []indicators.Item, color bool) string {
	titleWidth := 0
	for _, it := range items {
		if w := lipgloss.Width(it.Title); w > titleWidth {
			titleWidth = w
		}
	}
	titleStyle := lipgloss.NewStyle().Width(titleWidth + 2)
	lines := make([]string, 0, len(items))
	for _, it := range items {
		filled := int(it.Score*2 + 0.5)
		bar := strings.Repeat("█", filled) + strings.Repeat("░", int(indicators.MaxScore*2)-filled)
		if color {
			bar = lipgloss.NewStyle().Foreground(severityColors[indicators.SeverityOf(it.Score)]).Render(bar)
		}
		lines = append(lines, titleStyle.Render(it.Title)+bar+" "+indicators.FormatScore(it.Score)+"/5")
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
