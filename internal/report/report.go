// Package report assembles normalized audit text into an immutable Report.
package report

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hyperifyio/comtesta/internal/indicators"
	"github.com/hyperifyio/comtesta/internal/normalize"
	"github.com/hyperifyio/comtesta/internal/radar"
	"github.com/hyperifyio/comtesta/internal/sections"
)

var (
	// ErrEmptyInput is the only hard failure in the default mode: nothing is
	// left to parse after normalization.
	ErrEmptyInput = errors.New("empty input")
	// ErrMissingSections is wrapped by *MissingSectionsError in strict mode.
	ErrMissingSections = errors.New("missing sections")
)

// MissingSectionsError lists the section numbers that could not be found.
type MissingSectionsError struct {
	Sections []int
}

func (e *MissingSectionsError) Error() string {
	parts := make([]string, len(e.Sections))
	for i, s := range e.Sections {
		parts[i] = strconv.Itoa(s)
	}
	return "missing sections: " + strings.Join(parts, ", ")
}

func (e *MissingSectionsError) Unwrap() error { return ErrMissingSections }

// Diagnostic codes attached to degraded reports.
const (
	CodeMissingSections  = "missing_sections"
	CodeUnparsableMap    = "unparsable_map"
	CodeInvalidScore     = "invalid_score"
	CodeInsufficientAxes = "insufficient_axes"
	CodeAverageInvalid   = "average_invalid"
)

// Diagnostic is a recovered, non-fatal parse problem.
type Diagnostic struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Section indexes.
const (
	SectionStatement       = 1
	SectionPremises        = 2
	SectionEvidence        = 3
	SectionInconsistencies = 4
	SectionMap             = 5
	SectionConclusion      = 6
)

// Report is the typed form of one audit response. Values are never mutated
// after Parse returns; use Clone to hand out independent copies.
type Report struct {
	ID              string              `json:"id"`
	Statement       string              `json:"statement"`
	Premises        string              `json:"premises"`
	Evidence        string              `json:"evidence"`
	Inconsistencies string              `json:"inconsistencies"`
	MapItems        []indicators.Item   `json:"mapItems"`
	MapAverage      *float64            `json:"mapAverage"`
	Conclusion      string              `json:"conclusion"`
	Missing         []int               `json:"missing,omitempty"`
	SectionStrategy sections.Strategy   `json:"sectionStrategy"`
	MapStrategy     indicators.Strategy `json:"mapStrategy"`
	Diagnostics     []Diagnostic        `json:"diagnostics,omitempty"`
	ParsedAt        time.Time           `json:"parsedAt"`
	Trace           indicators.Trace    `json:"-"`
}

// Section returns the body shown for section idx, which for the conclusion is
// the trimmed first paragraph.
func (r *Report) Section(idx int) string {
	switch idx {
	case SectionStatement:
		return r.Statement
	case SectionPremises:
		return r.Premises
	case SectionEvidence:
		return r.Evidence
	case SectionInconsistencies:
		return r.Inconsistencies
	case SectionConclusion:
		return r.Conclusion
	}
	return ""
}

// IsMissing reports whether section idx was not found in the input.
func (r *Report) IsMissing(idx int) bool {
	for _, m := range r.Missing {
		if m == idx {
			return true
		}
	}
	return false
}

// Chartable reports whether the indicators can be drawn as a radar chart.
func (r *Report) Chartable() bool {
	return len(r.MapItems) >= radar.MinAxes
}

// HasDiagnostic reports whether a diagnostic with code was recorded.
func (r *Report) HasDiagnostic(code string) bool {
	for _, d := range r.Diagnostics {
		if d.Code == code {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	c := *r
	c.MapItems = append([]indicators.Item(nil), r.MapItems...)
	c.Missing = append([]int(nil), r.Missing...)
	c.Diagnostics = append([]Diagnostic(nil), r.Diagnostics...)
	c.Trace = append(indicators.Trace(nil), r.Trace...)
	if r.MapAverage != nil {
		v := *r.MapAverage
		c.MapAverage = &v
	}
	return &c
}

// Assembler runs normalization, section extraction and map parsing. Its zero
// value degrades on missing sections and uses the default normalizer.
type Assembler struct {
	Normalizer *normalize.Normalizer
	// Strict turns missing sections into a *MissingSectionsError.
	Strict bool
	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

// Parse builds a Report from raw text. It fails only with ErrEmptyInput, or
// with *MissingSectionsError when Strict is set. Every other problem is
// recorded as a Diagnostic.
func (a *Assembler) Parse(raw string) (*Report, error) {
	var text string
	if a.Normalizer != nil {
		text = a.Normalizer.Normalize(raw)
	} else {
		text = normalize.Normalize(raw)
	}
	if text == "" {
		return nil, ErrEmptyInput
	}

	res := sections.Extract(text)
	missing := res.Missing()
	if a.Strict && len(missing) > 0 {
		return nil, &MissingSectionsError{Sections: missing}
	}

	body, _ := res.Get(SectionMap)
	m := indicators.ParseMap(body)
	conclusion, _ := res.Get(SectionConclusion)

	r := &Report{
		ID:              a.newID(),
		Statement:       res.Sections[SectionStatement],
		Premises:        res.Sections[SectionPremises],
		Evidence:        res.Sections[SectionEvidence],
		Inconsistencies: res.Sections[SectionInconsistencies],
		MapItems:        m.Items,
		MapAverage:      m.Average,
		Conclusion:      sections.FirstParagraph(conclusion),
		Missing:         missing,
		SectionStrategy: res.Strategy,
		MapStrategy:     m.Strategy,
		ParsedAt:        a.now(),
		Trace:           m.Trace,
	}
	if r.MapItems == nil {
		r.MapItems = []indicators.Item{}
	}

	if len(missing) > 0 {
		r.Diagnostics = append(r.Diagnostics, Diagnostic{
			Code:    CodeMissingSections,
			Message: (&MissingSectionsError{Sections: missing}).Error(),
		})
	}
	if n := m.Trace.Count(indicators.EventInvalidScore); n > 0 {
		r.Diagnostics = append(r.Diagnostics, Diagnostic{
			Code:    CodeInvalidScore,
			Message: fmt.Sprintf("%d indicator(s) dropped: %v", n, indicators.ErrInvalidScore),
		})
	}
	if m.Trace.Count(indicators.EventAverageInvalid) > 0 {
		r.Diagnostics = append(r.Diagnostics, Diagnostic{
			Code:    CodeAverageInvalid,
			Message: "stated map average could not be read",
		})
	}
	switch {
	case m.Err() != nil:
		r.Diagnostics = append(r.Diagnostics, Diagnostic{Code: CodeUnparsableMap, Message: m.Err().Error()})
	case !r.Chartable():
		r.Diagnostics = append(r.Diagnostics, Diagnostic{
			Code:    CodeInsufficientAxes,
			Message: fmt.Sprintf("%d indicator(s): %v", len(r.MapItems), radar.ErrInsufficientAxes),
		})
	}
	return r, nil
}

func (a *Assembler) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Assembler) newID() string {
	if a.NewID != nil {
		return a.NewID()
	}
	return uuid.NewString()
}
