// Package blocks turns section text into paragraph and list blocks and
// renders them as escaped HTML.
package blocks

import (
	"html"
	"regexp"
	"strings"
)

// Kind tags a Block.
type Kind int

const (
	Paragraph Kind = iota
	List
)

func (k Kind) String() string {
	if k == List {
		return "list"
	}
	return "paragraph"
}

// Block is either a paragraph (Text) or a list (Ordered, Items).
type Block struct {
	Kind    Kind
	Text    string
	Ordered bool
	Items   []string
}

var (
	segmentBreak = regexp.MustCompile(`\n[ ]*\n`)
	bullet       = regexp.MustCompile(`^[-*][ ]+`)
	numbered     = regexp.MustCompile(`^\d+\.[ ]+`)
)

// ToBlocks splits text on blank lines. A segment whose non-empty lines all
// start with a bullet becomes an unordered list, one whose lines all start
// with "N." becomes an ordered list, and anything else is one paragraph with
// its lines joined by spaces.
func ToBlocks(text string) []Block {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var out []Block
	for _, seg := range segmentBreak.Split(text, -1) {
		var lines []string
		for _, l := range strings.Split(seg, "\n") {
			if l = strings.TrimSpace(l); l != "" {
				lines = append(lines, l)
			}
		}
		if len(lines) == 0 {
			continue
		}
		switch {
		case all(lines, bullet):
			out = append(out, Block{Kind: List, Items: strip(lines, bullet)})
		case all(lines, numbered):
			out = append(out, Block{Kind: List, Ordered: true, Items: strip(lines, numbered)})
		default:
			out = append(out, Block{Kind: Paragraph, Text: strings.Join(lines, " ")})
		}
	}
	return out
}

func all(lines []string, re *regexp.Regexp) bool {
	for _, l := range lines {
		if !re.MatchString(l) {
			return false
		}
	}
	return true
}

func strip(lines []string, re *regexp.Regexp) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.TrimSpace(re.ReplaceAllString(l, ""))
	}
	return out
}

// Escape escapes & < > " and ' for HTML text and attribute values.
func Escape(s string) string {
	return html.EscapeString(s)
}

// HTML renders blocks as <p>, <ul> and <ol> elements. All text is escaped.
func HTML(blocks []Block) string {
	var sb strings.Builder
	for _, b := range blocks {
		if b.Kind == Paragraph {
			sb.WriteString("<p>")
			sb.WriteString(Escape(b.Text))
			sb.WriteString("</p>")
			continue
		}
		tag := "ul"
		if b.Ordered {
			tag = "ol"
		}
		sb.WriteString("<" + tag + ">")
		for _, it := range b.Items {
			sb.WriteString("<li>")
			sb.WriteString(Escape(it))
			sb.WriteString("</li>")
		}
		sb.WriteString("</" + tag + ">")
	}
	return sb.String()
}

// Format is ToBlocks followed by HTML.
func Format(text string) string {
	return HTML(ToBlocks(text))
}
