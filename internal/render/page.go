package render

import (
	"strconv"
	"strings"

	"github.com/hyperifyio/comtesta/internal/blocks"
)

const pageScript = `(function () {
  var version = document.body.getAttribute('data-version');
  function poll() {
    fetch('api/report/version', { cache: 'no-store' })
      .then(function (r) { return r.json(); })
      .then(function (v) { if (String(v.version) !== version) { location.reload(); } })
      .catch(function () {});
  }
  setInterval(poll, 2000);
  var form = document.querySelector('[data-paste-form]');
  if (form) {
    form.addEventListener('submit', function (ev) {
      ev.preventDefault();
      var text = form.querySelector('textarea').value;
      fetch('api/paste', { method: 'POST', headers: { 'Content-Type': 'text/plain; charset=utf-8' }, body: text })
        .then(function () { poll(); });
    });
  }
  var reset = document.querySelector('[data-reset]');
  if (reset) {
    reset.addEventListener('click', function () {
      if (!confirm('Limpar o relatório atual e os dados salvos?')) { return; }
      fetch('api/reset', { method: 'POST' }).then(function () { location.reload(); });
    });
  }
})();
`

const pageCSS = `.dashboard-section { background: white; padding: 1.5rem 2rem; margin: 1rem 0; border-radius: 12px; }
.statement-card { border-left: 4px solid #6366F1; }
.synthesis-card { border-left: 4px solid #10B981; }
.dashboard-status { color: #718096; text-align: center; }
.dashboard-actions { display: flex; gap: 1rem; justify-content: center; margin: 1rem 0; }
.dashboard-empty { text-align: center; color: #A0AEC0; padding: 4rem 0; }
.chart-error { background: #FFF5F5; color: #C53030; border-radius: 8px; padding: 1rem; }
.radar-chart-wrapper { max-width: 600px; margin: 0 auto; background: white; border-radius: 16px; }
textarea { width: 100%; min-height: 8rem; font-family: monospace; }
`

// Page renders the live dashboard document around v. version is the session
// version the page polls against to know when to reload.
func Page(v View, version uint64) string {
	status := ""
	if !v.Empty() {
		status = Status(v.Source, v.ReceivedAt)
	}
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"pt-BR\">\n<head>\n<meta charset=\"UTF-8\">\n")
	sb.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	sb.WriteString("<title>ComTesta - Dashboard</title>\n<style>\n")
	sb.WriteString(standaloneCSS)
	sb.WriteString(pageCSS)
	sb.WriteString("</style>\n</head>\n")
	sb.WriteString(`<body data-version="` + strconv.FormatUint(version, 10) + "\">\n<div class=\"container\">\n")
	sb.WriteString("<div class=\"header\"><h1>ComTesta</h1><p class=\"subtitle\">Dashboard de Coerência Epistemológica</p>")
	sb.WriteString(`<p class="dashboard-status" data-dashboard-status>` + blocks.Escape(status) + "</p>")
	sb.WriteString(`<div class="dashboard-actions">`)
	if !v.Empty() {
		sb.WriteString(`<a href="api/export" download>⬇ Download Dashboard</a><a href="api/export.pdf" download>PDF</a>`)
	}
	sb.WriteString(`<button type="button" data-reset>Limpar</button></div></div>` + "\n")
	sb.WriteString(`<main data-dashboard-output>` + Fragment(v) + "</main>\n")
	sb.WriteString(`<form class="section" data-paste-form><h3>Colar relatório</h3><textarea name="text"></textarea><button type="submit">Analisar</button></form>` + "\n")
	sb.WriteString("</div>\n<script>\n" + pageScript + "</script>\n</body>\n</html>\n")
	return sb.String()
}
