package domain

import (
	"fmt"
	"strings"
)

// VectorEntry is a passage together with its embedding as stored in a collection.
type VectorEntry struct {
	Passage Passage
	Vector  []float32
}

// ScoredEntry is a nearest-neighbour candidate returned by a collection search.
// Score is the cosine similarity to the query vector.
type ScoredEntry struct {
	Passage Passage
	Vector  []float32
	Score   float64
}

type RetrievedPassage struct {
	Text  string  `json:"text"`
	Title string  `json:"title"`
	Link  string  `json:"link"`
	Score float64 `json:"score"`
}

type Answer struct {
	Text    string             `json:"text"`
	Sources []RetrievedPassage `json:"sources"`
}

// CitationsMarkdown renders the sources as a numbered markdown list of links.
func (a Answer) CitationsMarkdown() string {
	var b strings.Builder
	for i, src := range a.Sources {
		title := src.Title
		if title == "" {
			title = DefaultTitle
		}
		b.WriteString(fmt.Sprintf("%d. [%s](%s)\n", i+1, title, src.Link))
	}
	return b.String()
}
