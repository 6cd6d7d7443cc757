package probe

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// page is what the HTTP prober extracts from a document.
type page struct {
	name          string // h1[itemprop=name], else first h1
	text          string // visible text, whitespace collapsed
	selectorFound bool
}

func inspect(doc *html.Node, selector string) page {
	var (
		p        page
		itemName string
		firstH1  string
		sb       strings.Builder
	)
	match := compileSelector(selector)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			case atom.H1:
				t := nodeText(n)
				if itemName == "" && attr(n, "itemprop") == "name" {
					itemName = t
				}
				if firstH1 == "" {
					firstH1 = t
				}
			}
			if match != nil && match(n) {
				p.selectorFound = true
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	p.name = itemName
	if p.name == "" {
		p.name = firstH1
	}
	p.text = strings.Join(strings.Fields(sb.String()), " ")
	return p
}

// compileSelector supports "#id", ".class" and "tag".
func compileSelector(sel string) func(*html.Node) bool {
	sel = strings.TrimSpace(sel)
	switch {
	case sel == "":
		return nil
	case strings.HasPrefix(sel, "#"):
		id := sel[1:]
		return func(n *html.Node) bool { return attr(n, "id") == id }
	case strings.HasPrefix(sel, "."):
		class := sel[1:]
		return func(n *html.Node) bool {
			for _, c := range strings.Fields(attr(n, "class")) {
				if c == class {
					return true
				}
			}
			return false
		}
	default:
		tag := strings.ToLower(sel)
		return func(n *html.Node) bool { return n.Data == tag }
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
