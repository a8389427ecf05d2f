// Package indicators parses the indicator map section of an audit report into
// scored items and the stated overall average.
package indicators

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxScore is the top of the scoring scale.
const MaxScore = 5.0

var (
	// ErrUnparsableMap means no tier recovered a single indicator.
	ErrUnparsableMap = errors.New("indicator map unparsable")
	// ErrInvalidScore marks a candidate whose score is not a finite number in
	// [0, MaxScore].
	ErrInvalidScore = errors.New("invalid indicator score")
)

// Item is one scored indicator. Order is the 1-based rank among accepted items
// of the tier that produced it.
type Item struct {
	Order  int     `json:"order"`
	Title  string  `json:"title"`
	Score  float64 `json:"score"`
	Detail string  `json:"detail"`
}

// Strategy names the parsing tier that produced the items.
type Strategy string

const (
	StrategyNone     Strategy = "none"
	StrategyStrict   Strategy = "strict"
	StrategyFallback Strategy = "fallback"
	StrategySalvage  Strategy = "salvage"
)

// Map is the result of ParseMap.
type Map struct {
	Items    []Item   `json:"items"`
	Average  *float64 `json:"average"`
	Strategy Strategy `json:"strategy"`
	Trace    Trace    `json:"-"`
}

// Err returns ErrUnparsableMap when no items were recovered.
func (m Map) Err() error {
	if len(m.Items) == 0 {
		return ErrUnparsableMap
	}
	return nil
}

// Mean is the arithmetic mean of the item scores, independent of the stated
// Average. ok is false when there are no items.
func (m Map) Mean() (mean float64, ok bool) {
	if len(m.Items) == 0 {
		return 0, false
	}
	var sum float64
	for _, it := range m.Items {
		sum += it.Score
	}
	return sum / float64(len(m.Items)), true
}

// Severity classifies a score for presentation.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityGood     Severity = "good"
)

// SeverityOf maps a score to critical (<= 2.5), warning (< 4) or good.
func SeverityOf(score float64) Severity {
	switch {
	case math.IsNaN(score):
		return SeverityGood
	case score <= 2.5:
		return SeverityCritical
	case score < 4:
		return SeverityWarning
	default:
		return SeverityGood
	}
}

// FormatScore renders a score with one decimal, as shown in tooltips and lists.
func FormatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// parseScore accepts '.' or ',' as the decimal separator.
func parseScore(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "*_")
	s = strings.Replace(s, ",", ".", 1)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidScore, raw)
	}
	if v < 0 || v > MaxScore {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidScore, raw)
	}
	return v, nil
}
