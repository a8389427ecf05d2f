package indicators

import "fmt"

// EventKind classifies a trace entry.
type EventKind string

const (
	EventAverageFound   EventKind = "average_found"
	EventAverageMissing EventKind = "average_missing"
	EventAverageInvalid EventKind = "average_invalid"
	EventMatched        EventKind = "matched"
	EventNoMatch        EventKind = "no_match"
	EventInvalidScore   EventKind = "invalid_score"
	EventEmptyTitle     EventKind = "empty_title"
	EventSkippedLine    EventKind = "skipped_line"
)

// Event is one diagnostic step recorded while parsing. Line is 1-based within
// the section text, or 0 when the event is not tied to a line.
type Event struct {
	Tier Strategy
	Kind EventKind
	Line int
	Text string
	Err  error
}

func (e Event) String() string {
	s := fmt.Sprintf("%s/%s", e.Tier, e.Kind)
	if e.Line > 0 {
		s += fmt.Sprintf(" line %d", e.Line)
	}
	if e.Text != "" {
		s += fmt.Sprintf(" %q", e.Text)
	}
	return s
}

// Trace is the ordered list of parse events.
type Trace []Event

func (t *Trace) add(e Event) { *t = append(*t, e) }

// Count returns how many events of kind k were recorded.
func (t Trace) Count(k EventKind) int {
	n := 0
	for _, e := range t {
		if e.Kind == k {
			n++
		}
	}
	return n
}
