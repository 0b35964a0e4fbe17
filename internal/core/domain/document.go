package domain

import "strings"

const (
	DefaultTitle = "-"
	DefaultLink  = ""
)

// Document is one page of the remote corpus as fetched by the crawler.
type Document struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Link    string `json:"link"`
}

// IsEmpty reports whether the document carries no indexable text.
func (d Document) IsEmpty() bool {
	return strings.TrimSpace(d.Content) == ""
}

type PassageMetadata struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// Passage is a retrieval-sized excerpt of a single document.
type Passage struct {
	Text     string          `json:"text"`
	Metadata PassageMetadata `json:"metadata"`
}

// NewPassage attaches the source document's title and link to text,
// falling back to the default title when the document has none.
func NewPassage(doc Document, text string) Passage {
	title := doc.Title
	if title == "" {
		title = DefaultTitle
	}
	return Passage{
		Text: text,
		Metadata: PassageMetadata{
			Title: title,
			Link:  doc.Link,
		},
	}
}

type CrawlReport struct {
	Documents []Document `json:"-"`
	Listed    int        `json:"listed"`
	Fetched   int        `json:"fetched"`
	Empty     int        `json:"empty"`
	Failed    int        `json:"failed"`
}
