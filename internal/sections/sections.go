// Package sections splits a normalized audit report into its six numbered
// sections.
package sections

import (
	"regexp"
	"sort"
	"strings"
)

// Count is the number of sections an audit report carries.
const Count = 6

// MinPrimary is the number of sections the primary strategy must find before
// the line-scan fallback is skipped.
const MinPrimary = 3

// Strategy names the extraction strategy that produced a Result.
type Strategy string

const (
	StrategyPrimary  Strategy = "primary"
	StrategyFallback Strategy = "fallback"
)

// Result holds the extracted section bodies keyed by index 1..6. Sections with
// empty bodies are absent.
type Result struct {
	Sections map[int]string
	Titles   map[int]string
	Strategy Strategy
}

// Get returns the body of section idx.
func (r Result) Get(idx int) (string, bool) {
	s, ok := r.Sections[idx]
	return s, ok
}

// Found reports how many of the six sections were recovered.
func (r Result) Found() int {
	n := 0
	for i := 1; i <= Count; i++ {
		if _, ok := r.Sections[i]; ok {
			n++
		}
	}
	return n
}

// Missing lists the section indexes that were not recovered, ascending.
func (r Result) Missing() []int {
	var out []int
	for i := 1; i <= Count; i++ {
		if _, ok := r.Sections[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}

var (
	primaryMarker  = regexp.MustCompile(`\[([1-9])\]\s`)
	fallbackMarker = regexp.MustCompile(`^[ ]*\[([1-9])\][ ]*`)
)

// Extract runs the primary marker strategy and falls back to a line scan when
// fewer than MinPrimary sections were found. The fallback result is used only
// when it recovers more sections.
func Extract(text string) Result {
	primary := extractPrimary(text)
	if primary.Found() >= MinPrimary {
		return primary
	}
	fallback := extractFallback(text)
	if fallback.Found() > primary.Found() {
		return fallback
	}
	return primary
}

type marker struct {
	idx   int
	start int // offset of '['
	body  int // offset just past the marker's trailing whitespace
}

func extractPrimary(text string) Result {
	res := newResult(StrategyPrimary)
	var marks []marker
	for _, loc := range primaryMarker.FindAllStringSubmatchIndex(text, -1) {
		start := loc[0]
		// The first marker may sit anywhere. Later ones must open a line.
		if len(marks) > 0 && start > 0 && text[start-1] != '\n' {
			continue
		}
		marks = append(marks, marker{
			idx:   int(text[loc[2]] - '0'),
			start: start,
			body:  loc[1] - 1,
		})
	}
	for i, m := range marks {
		end := len(text)
		if i+1 < len(marks) {
			end = marks[i+1].start
		}
		title, body := splitHeader(text[m.body:end])
		res.set(m.idx, title, body)
	}
	return res
}

// splitHeader separates the title token on the marker line from the section
// body. The title ends at the first ':' on that line or at the line break.
func splitHeader(s string) (title, body string) {
	s = strings.TrimLeft(s, " \t")
	if strings.HasPrefix(s, "\n") {
		return "", s
	}
	line := s
	rest := ""
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		line, rest = s[:nl], s[nl+1:]
	}
	if colon := strings.IndexByte(line, ':'); colon >= 0 {
		return cleanTitle(line[:colon]), line[colon+1:] + "\n" + rest
	}
	return cleanTitle(line), rest
}

func cleanTitle(s string) string {
	return strings.Trim(strings.TrimSpace(s), "*_ ")
}

func extractFallback(text string) Result {
	res := newResult(StrategyFallback)
	cur := 0
	var title string
	var buf []string
	flush := func() {
		if cur != 0 {
			res.set(cur, title, strings.Join(buf, "\n"))
		}
	}
	for _, line := range strings.Split(text, "\n") {
		loc := fallbackMarker.FindStringSubmatchIndex(line)
		if loc == nil {
			if cur != 0 {
				buf = append(buf, line)
			}
			continue
		}
		flush()
		cur = int(line[loc[2]] - '0')
		rest := line[loc[1]:]
		title = ""
		if colon := strings.IndexByte(rest, ':'); colon >= 0 {
			title = cleanTitle(rest[:colon])
			rest = rest[colon+1:]
		} else {
			title = cleanTitle(rest)
			rest = ""
		}
		buf = []string{rest}
	}
	flush()
	return res
}

func newResult(s Strategy) Result {
	return Result{Sections: map[int]string{}, Titles: map[int]string{}, Strategy: s}
}

// set records a section body. Indexes outside 1..6 are dropped. A later
// non-empty occurrence replaces an earlier one.
func (r Result) set(idx int, title, body string) {
	if idx < 1 || idx > Count {
		return
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return
	}
	r.Sections[idx] = body
	if title != "" {
		r.Titles[idx] = title
	}
}

// Indexes returns the recovered section indexes in ascending order.
func (r Result) Indexes() []int {
	out := make([]int, 0, len(r.Sections))
	for k := range r.Sections {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
