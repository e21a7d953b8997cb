// Package document exposes the small slice of DOM querying the crawler needs:
// selecting nodes, reading attributes and flattening text.
package document

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// Node is a navigable fragment of an HTML document.
type Node interface {
	// Find returns every descendant matching selector, in document order.
	Find(selector string) []Node
	// Attr returns the attribute of the first node matching selector. An
	// empty selector addresses the node itself.
	Attr(selector, name string) (string, bool)
	// Text concatenates all text fragments under the first node matching
	// selector, with no separator. An empty selector addresses the node itself.
	Text(selector string) string
	// HTML renders the node as markup.
	HTML() string
}

type selectionNode struct {
	sel *goquery.Selection
}

// Parse builds a Node from a full page or an HTML fragment.
func Parse(body []byte) (Node, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "document: parse html")
	}
	return &selectionNode{sel: doc.Selection}, nil
}

// ParseString is Parse for string input, used for continuation fragments.
func ParseString(html string) (Node, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "document: parse html fragment")
	}
	return &selectionNode{sel: doc.Selection}, nil
}

func (n *selectionNode) scope(selector string) *goquery.Selection {
	if selector == "" {
		return n.sel.First()
	}
	return n.sel.Find(selector).First()
}

func (n *selectionNode) Find(selector string) []Node {
	var nodes []Node
	n.sel.Find(selector).Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, &selectionNode{sel: s})
	})
	return nodes
}

func (n *selectionNode) Attr(selector, name string) (string, bool) {
	return n.scope(selector).Attr(name)
}

func (n *selectionNode) Text(selector string) string {
	return n.scope(selector).Text()
}

func (n *selectionNode) HTML() string {
	html, err := goquery.OuterHtml(n.sel.First())
	if err != nil {
		return ""
	}
	return html
}
