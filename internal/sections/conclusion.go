package sections

import (
	"regexp"
	"strings"
)

var (
	// A rule line or a run of three or more line breaks ends the conclusion.
	conclusionDelimiter = regexp.MustCompile(`\n[ ]*(?:-{3,}|={3,}|\*{3,}|_{3,})[ ]*(?:\n|$)|\n(?:[ ]*\n){2,}`)
	paragraphBreak      = regexp.MustCompile(`\n[ ]*\n`)
)

// FirstParagraph reduces a conclusion section to its first paragraph. Text is
// cut at the earliest delimiter, then the first non-empty paragraph is
// returned trimmed.
func FirstParagraph(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if loc := conclusionDelimiter.FindStringIndex(text); loc != nil {
		text = text[:loc[0]]
	}
	for _, p := range paragraphBreak.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			return p
		}
	}
	return ""
}
