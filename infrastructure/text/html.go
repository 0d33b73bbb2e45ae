package text

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a parsed HTML page.
type Document struct {
	root *html.Node
}

// ParseHTML parses an HTML document.
func ParseHTML(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return &Document{root: root}, nil
}

// Title returns the text of the first title element.
func (d *Document) Title() string {
	if n := find(d.root, func(n *html.Node) bool { return n.DataAtom == atom.Title }); n != nil {
		return collapse(nodeText(n))
	}
	return ""
}

// Description returns the content of meta[name=description].
func (d *Document) Description() string {
	n := find(d.root, func(n *html.Node) bool {
		return n.DataAtom == atom.Meta && strings.EqualFold(attr(n, "name"), "description")
	})
	if n == nil {
		return ""
	}
	return strings.TrimSpace(attr(n, "content"))
}

// BodyText returns the whitespace-collapsed text of the body element.
func (d *Document) BodyText() string {
	if n := find(d.root, func(n *html.Node) bool { return n.DataAtom == atom.Body }); n != nil {
		return collapse(nodeText(n))
	}
	return ""
}

// Text returns the whitespace-collapsed text of the whole document.
func (d *Document) Text() string {
	return collapse(nodeText(d.root))
}

func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, match); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
