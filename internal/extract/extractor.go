package extract

// Extractor converts an HTML payload into a Document.
type Extractor interface {
	Extract(input []byte) Document
}

// HeuristicExtractor uses FromHTML.
type HeuristicExtractor struct{}

func (HeuristicExtractor) Extract(input []byte) Document {
	return FromHTML(input)
}

// TextFromHTML returns only the text of FromHTML.
func TextFromHTML(s string) string {
	return FromHTML([]byte(s)).Text
}
