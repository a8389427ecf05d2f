package indicators

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	averageLabel = regexp.MustCompile(`(?i)pontua[çc][ãa]o\s+m[ée]dia\s+do\s+mapa`)
	averageValue = regexp.MustCompile(`^[*_ ]*:?[*_ ]*([^\s/]+?)[*_]*\s*/\s*5\b`)

	strictItem = regexp.MustCompile(
		`^[ ]*-[ ]*(.+?)\s*>>\s*[*_]*Nota[*_]*\s*:?\s*[*_]*\s*(\S+?)\s*/\s*5\b[*_]*(.*)$`)
	fallbackItem = regexp.MustCompile(
		`^[ ]*(?:\d+[.)][ ]+|[-*][ ]+)?(.+?)\s*(?:>>|—|–|:)\s*[*_]*(?:Nota[*_]*\s*:?\s*[*_]*)?\s*(\S+?)\s*/\s*5\b[*_]*(.*)$`)
	salvageItem = regexp.MustCompile(
		`^[ ]*(?:\d+[.)][ ]+|[-*][ ]+)?(.+?)\s*(?:>>|—|–|-|:|=|\|)\s*(?:[*_]*Nota[*_]*\s*:?\s*)?[*_]*(\d+(?:[.,]\d+)?)[*_]*\s*/\s*5\b`)
	salvageLeftover = regexp.MustCompile(`(?i)>>|\bnota\b`)
)

// tier is one parsing strategy. An empty result is a no-match and hands the
// text to the next tier.
type tier struct {
	name Strategy
	run  func(lines []string, tr *Trace) []Item
}

var tiers = []tier{
	{StrategyStrict, strict},
	{StrategyFallback, fallback},
	{StrategySalvage, salvage},
}

func strict(lines []string, tr *Trace) []Item {
	return collect(StrategyStrict, lines, classifyStrict, tr)
}

func fallback(lines []string, tr *Trace) []Item {
	return collect(StrategyFallback, lines, classifyFallback, tr)
}

// ParseMap extracts the stated average and the indicator items from the body
// of the map section. The tiers run in order and the first one that yields at
// least one item wins. Parsing never fails; an empty Items slice means the
// map is unparsable (see Map.Err).
func ParseMap(text string) Map {
	m := Map{Strategy: StrategyNone}
	work := text
	if loc := averageLabel.FindStringIndex(text); loc != nil {
		lineStart := strings.LastIndexByte(text[:loc[0]], '\n') + 1
		lineEnd := len(text)
		if nl := strings.IndexByte(text[loc[1]:], '\n'); nl >= 0 {
			lineEnd = loc[1] + nl
		}
		work = text[:lineStart]
		if v := averageValue.FindStringSubmatch(text[loc[1]:lineEnd]); v != nil {
			if avg, err := parseScore(v[1]); err == nil {
				m.Average = &avg
				m.Trace.add(Event{Kind: EventAverageFound, Text: v[1]})
			} else {
				m.Trace.add(Event{Kind: EventAverageInvalid, Text: v[1], Err: err})
			}
		} else {
			m.Trace.add(Event{Kind: EventAverageInvalid, Text: strings.TrimSpace(text[lineStart:lineEnd])})
		}
	} else {
		m.Trace.add(Event{Kind: EventAverageMissing})
	}

	lines := strings.Split(work, "\n")
	for _, t := range tiers {
		items := t.run(lines, &m.Trace)
		if len(items) == 0 {
			m.Trace.add(Event{Tier: t.name, Kind: EventNoMatch})
			continue
		}
		m.Trace.add(Event{Tier: t.name, Kind: EventMatched, Text: strconv.Itoa(len(items))})
		m.Items = items
		m.Strategy = t.name
		break
	}
	return m
}

type lineKind int

const (
	lineText lineKind = iota
	lineItem
	lineBoundary
)

type classified struct {
	kind  lineKind
	title string
	score string
	tail  string
}

func classifyStrict(line string) classified {
	if !strings.HasPrefix(strings.TrimSpace(line), "-") {
		return classified{kind: lineText}
	}
	if g := strictItem.FindStringSubmatch(line); g != nil {
		return classified{kind: lineItem, title: g[1], score: g[2], tail: g[3]}
	}
	return classified{kind: lineBoundary}
}

func classifyFallback(line string) classified {
	if g := fallbackItem.FindStringSubmatch(line); g != nil {
		return classified{kind: lineItem, title: g[1], score: g[2], tail: g[3]}
	}
	return classified{kind: lineText}
}

// collect groups item lines with the detail lines that follow them. A
// candidate with an invalid score or empty title is dropped together with its
// detail lines.
func collect(name Strategy, lines []string, classify func(string) classified, tr *Trace) []Item {
	var items []Item
	var cur *Item
	var details []string
	finish := func() {
		if cur == nil {
			return
		}
		cur.Order = len(items) + 1
		cur.Detail = strings.Join(details, "\n")
		items = append(items, *cur)
		cur, details = nil, nil
	}
	for i, line := range lines {
		c := classify(line)
		switch c.kind {
		case lineItem:
			finish()
			score, err := parseScore(c.score)
			if err != nil {
				tr.add(Event{Tier: name, Kind: EventInvalidScore, Line: i + 1, Text: strings.TrimSpace(line), Err: err})
				continue
			}
			title := cleanTitle(c.title)
			if title == "" {
				tr.add(Event{Tier: name, Kind: EventEmptyTitle, Line: i + 1, Text: strings.TrimSpace(line)})
				continue
			}
			cur = &Item{Title: title, Score: score}
			if tail := cleanTail(c.tail); tail != "" {
				details = append(details, tail)
			}
		case lineBoundary:
			finish()
			tr.add(Event{Tier: name, Kind: EventSkippedLine, Line: i + 1, Text: strings.TrimSpace(line)})
		default:
			if cur == nil {
				continue
			}
			if t := strings.TrimSpace(line); t != "" {
				details = append(details, t)
			}
		}
	}
	finish()
	return items
}

// salvage accepts any single line carrying a title, a separator and a numeric
// score over 5. Items have no detail. A score preceded by a sign or by another
// number ("-1/5", "3-4/5") is a candidate the earlier tiers rejected and stays
// invalid here.
func salvage(lines []string, tr *Trace) []Item {
	var items []Item
	for i, line := range lines {
		g := salvageItem.FindStringSubmatchIndex(line)
		if g == nil {
			continue
		}
		rawTitle, rawScore := line[g[2]:g[3]], line[g[4]:g[5]]
		score, err := parseScore(rawScore)
		if err == nil && signedOrRange(line[:g[4]]) {
			err = fmt.Errorf("%w: %q is not a plain score", ErrInvalidScore, strings.TrimSpace(line[g[3]:g[5]]))
		}
		if err == nil && salvageLeftover.MatchString(rawTitle) {
			err = fmt.Errorf("%w: score follows %q", ErrInvalidScore, strings.TrimSpace(rawTitle))
		}
		if err != nil {
			tr.add(Event{Tier: StrategySalvage, Kind: EventInvalidScore, Line: i + 1, Text: strings.TrimSpace(line), Err: err})
			continue
		}
		title := cleanTitle(rawTitle)
		if title == "" {
			continue
		}
		items = append(items, Item{Order: len(items) + 1, Title: title, Score: score})
	}
	return items
}

// signedOrRange reports whether the text before a score ends in a minus sign
// that belongs to the number: directly after another separator, a digit or
// the start of the line.
func signedOrRange(before string) bool {
	before = strings.TrimRight(before, " *_")
	if !strings.HasSuffix(before, "-") {
		return false
	}
	rest := strings.TrimRight(strings.TrimSuffix(before, "-"), " *_")
	if rest == "" {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(rest)
	return unicode.IsDigit(r) || strings.ContainsRune(">:=|—–-", r)
}

func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "*_ ")
	s = strings.TrimRight(s, " :")
	return strings.TrimSpace(s)
}

func cleanTail(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "-—–:;,.) ")
	return strings.TrimSpace(s)
}
