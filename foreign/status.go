package foreign

import (
	"strings"
	"unicode/utf8"

	xhtml "golang.org/x/net/html"
)

const (
	statusLimit     = 140
	truncatedLength = 125
	ellipsis        = "… "
)

// htmlToText strips tags and decodes entities.
func htmlToText(content string) string {
	doc, err := xhtml.Parse(strings.NewReader(content))
	if err != nil {
		return content
	}

	var traverse func(n *xhtml.Node, b *strings.Builder)
	traverse = func(n *xhtml.Node, b *strings.Builder) {
		switch n.Type {
		case xhtml.TextNode:
			b.WriteString(n.Data)
		case xhtml.ElementNode:
			switch n.Data {
			case "br":
				b.WriteString("\n")
			case "p":
				if b.Len() > 0 {
					b.WriteString("\n\n")
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c, b)
		}
	}

	var b strings.Builder
	traverse(doc, &b)
	return strings.TrimSpace(b.String())
}

// StatusText turns note content into a status that fits the length limit.
// Longer text is cut and followed by a link to the original note.
func StatusText(content, link string) string {
	text := htmlToText(content)
	if utf8.RuneCountInString(text) <= statusLimit {
		return text
	}
	runes := []rune(text)
	return string(runes[:truncatedLength]) + ellipsis + link
}
