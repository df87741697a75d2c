// Package extract turns markup into the plain text the matcher scans.
package extract

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skipped elements never contribute visible text
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Iframe:   true,
	atom.Template: true,
	atom.Svg:      true,
}

// block elements end a run of text
var block = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Tr: true, atom.Td: true, atom.Th: true, atom.Section: true, atom.Article: true,
	atom.Blockquote: true, atom.Figcaption: true, atom.Title: true,
}

// Text returns the visible text of an HTML document or fragment. Inline
// markup is dropped without adding spaces; block elements end a line so
// keywords never span two paragraphs. Whitespace runs collapse to one space.
func Text(htmlContent string) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.ElementNode && skipped[n.DataAtom]:
			return
		case n.Type == html.TextNode:
			buf.WriteString(n.Data)
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && block[n.DataAtom] {
			buf.WriteByte('\n')
		}
	}
	walk(doc)

	var lines []string
	for _, line := range strings.Split(buf.String(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// LooksLikeHTML reports whether s appears to contain markup
func LooksLikeHTML(s string) bool {
	i := strings.IndexByte(s, '<')
	if i < 0 || i+1 >= len(s) {
		return false
	}
	next := s[i+1]
	isLetter := (next >= 'a' && next <= 'z') || (next >= 'A' && next <= 'Z')
	return (isLetter || next == '!' || next == '/') && strings.IndexByte(s[i:], '>') > 0
}
