// Package extract turns chat-widget HTML into the plain text the report
// parser expects.
package extract

import (
	"bytes"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Document is the text recovered from an HTML payload.
type Document struct {
	Title string
	Text  string
}

// FromHTML extracts text from HTML, preferring <main> or <article> and
// falling back to <body>. List items keep a "- " or "N. " marker and block
// elements keep their line breaks so section markers and indicator lines
// survive. Widget chrome (scripts, buttons, inputs, branding) is skipped.
func FromHTML(input []byte) Document {
	node, err := html.Parse(bytes.NewReader(input))
	if err != nil || node == nil {
		return Document{}
	}
	title := strings.TrimSpace(findTitle(node))
	content := findFirst(node, "main")
	if content == nil {
		content = findFirst(node, "article")
	}
	if content == nil {
		content = findFirst(node, "body")
	}
	var w textWriter
	if content != nil {
		collectText(&w, content, false)
	}
	return Document{Title: title, Text: normalizeWhitespace(w.b.String())}
}

// LooksLikeHTML reports whether s starts with markup.
func LooksLikeHTML(s string) bool {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "<") {
		return false
	}
	lower := strings.ToLower(t)
	for _, p := range []string{"<!doctype", "<html", "<body", "<div", "<p", "<ul", "<ol", "<main", "<article", "<span", "<section"} {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

func findTitle(n *html.Node) string {
	head := findFirst(n, "head")
	if head == nil {
		return ""
	}
	t := findFirst(head, "title")
	if t == nil || t.FirstChild == nil {
		return ""
	}
	return t.FirstChild.Data
}

func findFirst(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && strings.EqualFold(n.Data, tag) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if res := findFirst(c, tag); res != nil {
			return res
		}
	}
	return nil
}

// textWriter accumulates extracted text. breaks ensures the output ends with
// at least n line breaks, ignoring trailing spaces, so nested blocks do not
// stack blank lines.
type textWriter struct {
	b strings.Builder
}

func (w *textWriter) write(s string) { w.b.WriteString(s) }

func (w *textWriter) breaks(n int) {
	cur := strings.TrimRight(w.b.String(), " ")
	if strings.TrimSpace(cur) == "" {
		return
	}
	have := strings.Count(cur[len(strings.TrimRight(cur, "\n ")):], "\n")
	for ; have < n; have++ {
		w.b.WriteString("\n")
	}
}

func collectText(w *textWriter, n *html.Node, inPre bool) {
	if n.Type == html.TextNode {
		data := n.Data
		if !inPre {
			data = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ").Replace(data)
		}
		w.write(data)
		return
	}
	if n.Type != html.ElementNode {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collectText(w, c, inPre)
		}
		return
	}
	if isChrome(n) {
		return
	}
	name := strings.ToLower(n.Data)
	switch name {
	case "script", "style", "noscript", "nav", "footer", "aside", "iframe", "button", "input", "textarea", "svg", "img":
		return
	case "br":
		w.write("\n")
		return
	case "hr":
		w.breaks(1)
		w.write("---")
		w.breaks(1)
		return
	case "pre":
		inPre = true
		w.breaks(1)
	case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol", "section", "blockquote", "table", "tr":
		w.breaks(1)
	case "li":
		w.breaks(1)
		w.write(listMarker(n))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(w, c, inPre)
	}
	switch name {
	case "p", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote":
		w.breaks(2)
	case "div", "li", "pre", "ul", "ol", "section", "tr", "table":
		w.breaks(1)
	}
}

// listMarker returns "N. " for items of an ordered list and "- " otherwise.
func listMarker(li *html.Node) string {
	p := li.Parent
	if p == nil || !strings.EqualFold(p.Data, "ol") {
		return "- "
	}
	n := 1
	for _, a := range p.Attr {
		if a.Key == "start" {
			if v, err := strconv.Atoi(a.Val); err == nil {
				n = v
			}
		}
	}
	for s := p.FirstChild; s != nil && s != li; s = s.NextSibling {
		if s.Type == html.ElementNode && strings.EqualFold(s.Data, "li") {
			n++
		}
	}
	return strconv.Itoa(n) + ". "
}

// isChrome matches widget furniture by id, class, role or data attributes.
func isChrome(n *html.Node) bool {
	for _, attr := range n.Attr {
		key := strings.ToLower(attr.Key)
		if key != "id" && key != "class" && key != "role" && !strings.HasPrefix(key, "data-") {
			continue
		}
		val := strings.ToLower(attr.Val)
		if containsAny(val, []string{"powered-by", "poweredby", "chat-input", "typing", "cookie", "consent", "toolbar"}) {
			return true
		}
	}
	return false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// normalizeWhitespace collapses space runs, trims lines and keeps at most one
// blank line in a row.
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if len(out) > 0 && out[len(out)-1] == "" {
				continue
			}
			out = append(out, "")
			continue
		}
		out = append(out, strings.Join(strings.Fields(trimmed), " "))
	}
	for len(out) > 0 && out[0] == "" {
		out = out[1:]
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
