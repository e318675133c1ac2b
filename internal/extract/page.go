package extract

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Page is a parsed document together with the location it was loaded from.
type Page struct {
	URL *url.URL
	Doc *goquery.Document
}

// NewPage parses markup read from r. rawURL is the document's own location
// and is used to resolve relative references.
func NewPage(rawURL string, r io.Reader) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	doc.Url = u
	return &Page{URL: u, Doc: doc}, nil
}

// ParsePage is NewPage over an in-memory string.
func ParsePage(rawURL, markup string) (*Page, error) {
	return NewPage(rawURL, strings.NewReader(markup))
}

// Origin returns the page location as a string, or "" when unknown.
func (p *Page) Origin() string {
	if p.URL == nil {
		return ""
	}
	return p.URL.String()
}

// Title returns the trimmed document title.
func (p *Page) Title() string {
	return cleanText(p.Doc.Find("title").First().Text())
}

// cleanText trims and collapses runs of whitespace.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// visibleText concatenates the text under n, skipping script-like elements.
func visibleText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// contains reports whether child is n or one of its descendants.
func contains(n, child *html.Node) bool {
	for c := child; c != nil; c = c.Parent {
		if c == n {
			return true
		}
	}
	return false
}

// textBefore returns the text of parent's children that precede child.
func textBefore(parent, child *html.Node) string {
	var b strings.Builder
	for c := parent.FirstChild; c != nil && c != child; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		} else {
			b.WriteString(visibleText(c))
		}
		b.WriteByte(' ')
	}
	return cleanText(b.String())
}
