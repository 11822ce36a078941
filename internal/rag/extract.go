package rag

import (
	"bytes"
	"strings"
)

// Page is one unit of extracted document text. Plain-text inputs split
// on form feeds; single-page inputs produce one page.
type Page struct {
	Number int
	Text   string
}

// Extractor converts an uploaded document into pages of text.
type Extractor interface {
	Extract(data []byte) ([]Page, error)
}

// TextExtractor handles plain-text and markdown uploads. Form feeds act
// as page breaks.
type TextExtractor struct{}

func (TextExtractor) Extract(data []byte) ([]Page, error) {
	text := string(bytes.ToValidUTF8(data, nil))
	parts := strings.Split(text, "\f")

	pages := []Page{}
	for i, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		pages = append(pages, Page{Number: i + 1, Text: part})
	}
	return pages, nil
}
