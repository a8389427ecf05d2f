// Package normalize canonicalizes raw audit text before it is split into
// sections.
package normalize

import (
	"regexp"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// DefaultFooter is the chat-widget branding line appended to agent replies.
const DefaultFooter = "Powered by Flowise"

// TabWidth is the number of spaces a tab expands to.
const TabWidth = 2

var (
	bulletReplacer = strings.NewReplacer(
		"\u2022", "-",
		"\u25E6", "-",
		"\u25AA", "-",
		"\u25AB", "-",
		"\u25CF", "-",
		"\u2023", "-",
		"\u2043", "-",
		"\u2219", "-",
	)
	trailingRule = regexp.MustCompile(`(?:^|\n)[ ]*-{3,}[ ]*$`)
)

// Normalizer carries the set of boilerplate footers to strip. The zero value
// strips DefaultFooter.
type Normalizer struct {
	Footers []string

	once     sync.Once
	patterns []*regexp.Regexp
}

// New returns a Normalizer for the given footers. Empty strings are ignored.
func New(footers ...string) *Normalizer {
	n := &Normalizer{Footers: footers}
	n.once.Do(n.compile)
	return n
}

var defaultNormalizer = New(DefaultFooter)

// Normalize applies the default Normalizer.
func Normalize(raw string) string {
	return defaultNormalizer.Normalize(raw)
}

func (n *Normalizer) compile() {
	footers := n.Footers
	if len(footers) == 0 {
		footers = []string{DefaultFooter}
	}
	for _, f := range footers {
		fields := strings.Fields(f)
		if len(fields) == 0 {
			continue
		}
		quoted := make([]string, len(fields))
		for i, w := range fields {
			quoted[i] = regexp.QuoteMeta(w)
		}
		n.patterns = append(n.patterns, regexp.MustCompile(`(?i)`+strings.Join(quoted, `\s+`)))
	}
}

// Normalize unifies line endings and Unicode composition, replaces bullet
// glyphs with '-', expands tabs, strips trailing rules and footer lines and
// trims the result. It is total and idempotent.
func (n *Normalizer) Normalize(raw string) string {
	n.once.Do(n.compile)
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = norm.NFC.String(s)
	s = bulletReplacer.Replace(s)
	s = strings.ReplaceAll(s, "\t", strings.Repeat(" ", TabWidth))
	s = strings.TrimSpace(s)

	// Each removal can expose another candidate at the new tail, so iterate
	// until nothing changes.
	for {
		next := n.stripOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func (n *Normalizer) stripOnce(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if n.isFooterLine(line) {
			continue
		}
		kept = append(kept, line)
	}
	if len(kept) > 0 {
		last := kept[len(kept)-1]
		kept[len(kept)-1] = n.trimFooterSuffix(last)
	}
	s = strings.TrimSpace(strings.Join(kept, "\n"))
	s = trailingRule.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func (n *Normalizer) isFooterLine(line string) bool {
	t := strings.TrimSpace(line)
	if t == "" {
		return false
	}
	for _, p := range n.patterns {
		if loc := p.FindStringIndex(t); loc != nil && loc[0] == 0 && loc[1] == len(t) {
			return true
		}
	}
	return false
}

func (n *Normalizer) trimFooterSuffix(line string) string {
	t := strings.TrimRight(line, " ")
	for _, p := range n.patterns {
		locs := p.FindAllStringIndex(t, -1)
		if len(locs) == 0 {
			continue
		}
		loc := locs[len(locs)-1]
		if loc[1] == len(t) {
			return strings.TrimRight(t[:loc[0]], " ")
		}
	}
	return line
}
