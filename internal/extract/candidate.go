package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	versionTagRe = regexp.MustCompile(`(?i)^v\d+(\.\d+)*$`)
	schemeRe     = regexp.MustCompile(`(?i)^[a-z][a-z0-9+.-]*://`)
)

// Candidate is a text fragment considered while resolving a field, annotated
// with the shape flags the prompt heuristics look at.
type Candidate struct {
	Text          string
	Node          *html.Node
	Length        int
	HasComma      bool
	IsVersionTag  bool
	HasScheme     bool
	IsPlaceholder bool
}

func (e *Engine) candidate(s *goquery.Selection) Candidate {
	text := cleanText(s.Text())
	c := Candidate{
		Text:         text,
		Length:       utf8.RuneCountInString(text),
		HasComma:     strings.Contains(text, ","),
		IsVersionTag: versionTagRe.MatchString(text),
		HasScheme:    schemeRe.MatchString(text),
	}
	if e.h.Placeholder != "" {
		c.IsPlaceholder = strings.EqualFold(text, e.h.Placeholder)
	}
	if s.Length() > 0 {
		c.Node = s.Get(0)
	}
	return c
}

// usable is the common gate for prompt candidates.
func (c Candidate) usable() bool {
	return c.Length > 0 && !c.IsPlaceholder && !c.IsVersionTag && !c.HasScheme
}

// echoesTitle reports whether the text is the title or a short superset of it.
func (c Candidate) echoesTitle(title string) bool {
	if title == "" {
		return false
	}
	if c.Text == title {
		return true
	}
	return strings.Contains(c.Text, title) && c.Length <= 2*utf8.RuneCountInString(title)
}
