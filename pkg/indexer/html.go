package indexer

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// htmlText returns the unescaped title of an HTML document and the text of
// its other nodes, whitespace collapsed. Script, style and template
// contents are dropped.
func htmlText(data []byte) (string, string, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", "", err
	}

	var title string
	var text []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Template, atom.Noscript:
				return
			case atom.Title:
				if title == "" {
					title = collapse(nodeText(n))
				}
				return
			}
		}
		if n.Type == html.TextNode {
			text = append(text, n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return title, collapse(strings.Join(text, " ")), nil
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
