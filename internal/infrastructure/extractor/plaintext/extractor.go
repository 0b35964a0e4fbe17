package plaintext

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	spaceRun     = regexp.MustCompile(`[ \t\f\r\v]+`)
	paragraphRun = regexp.MustCompile(`\n{3,}`)
)

// Extractor turns HTML page extracts into plain text, keeping paragraph
// boundaries as blank lines so the chunker can split on them.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	root, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parse html extract: %w", err)
	}

	var b strings.Builder
	walk(&b, root)
	return normalize(b.String()), nil
}

func walk(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Sup:
			return
		case atom.Br:
			b.WriteString("\n")
			return
		}
	}

	block := isBlock(n)
	if block {
		b.WriteString("\n\n")
	}
	if n.Type == html.ElementNode && n.DataAtom == atom.Li {
		b.WriteString("- ")
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		walk(b, child)
	}
	if block {
		b.WriteString("\n\n")
	}
}

func isBlock(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.P, atom.Div, atom.Section, atom.Article, atom.Blockquote, atom.Pre,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Ul, atom.Ol, atom.Li, atom.Dl, atom.Dt, atom.Dd,
		atom.Table, atom.Tr:
		return true
	default:
		return false
	}
}

func normalize(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
	}
	joined := strings.Join(lines, "\n")
	joined = paragraphRun.ReplaceAllString(joined, "\n\n")
	return strings.TrimSpace(joined)
}
