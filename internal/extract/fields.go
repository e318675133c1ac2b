package extract

import (
	"net/url"
	"path"
	"slices"
	"strings"

	"github.com/FranksOps/stylus/internal/storage"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// FieldContext is what a field strategy sees for one locator.
type FieldContext struct {
	Page    *Page
	Locator string
	// Anchor is nil when no element carrying the locator was found.
	Anchor *goquery.Selection
	// Container is nil when the anchor has no row-like ancestor.
	Container *goquery.Selection
	// Title is the resolved title, set before prompt strategies run.
	Title string
	// Current is true when Locator is the page's own location.
	Current bool
}

// FieldStrategy yields a field value or reports no match.
type FieldStrategy struct {
	Name string
	Try  func(e *Engine, fc *FieldContext) (string, bool)
}

// DefaultTitleStrategies returns the title chain.
func DefaultTitleStrategies() []FieldStrategy {
	return []FieldStrategy{
		{Name: "anchor-text", Try: titleFromAnchor},
		{Name: "leading-text", Try: titleFromLeadingText},
		{Name: "page-title", Try: titleFromPageTitle},
	}
}

// DefaultPromptStrategies returns the container-scoped prompt passes.
func DefaultPromptStrategies() []FieldStrategy {
	return []FieldStrategy{
		{Name: "class-fingerprint", Try: promptFromFingerprint},
		{Name: "semantic", Try: promptFromSemantic},
		{Name: "text-scan", Try: promptFromTextScan},
		{Name: "siblings", Try: promptFromSiblings},
	}
}

// DefaultImageStrategies returns the container-scoped image chain.
func DefaultImageStrategies() []FieldStrategy {
	return []FieldStrategy{
		{Name: "container-images", Try: func(e *Engine, fc *FieldContext) (string, bool) {
			return e.imageIn(fc.Container, fc.Page)
		}},
	}
}

// DefaultPageTitleStrategies returns the page-wide title chain.
func DefaultPageTitleStrategies() []FieldStrategy {
	return []FieldStrategy{
		{Name: "page-heading", Try: func(e *Engine, fc *FieldContext) (string, bool) {
			v := e.firstText(fc.Page.Doc.Selection, e.pageTitleSel, cleanText)
			return v, v != ""
		}},
		{Name: "og-title", Try: func(e *Engine, fc *FieldContext) (string, bool) {
			v := strings.TrimSpace(strings.TrimSuffix(metaContent(fc.Page, "og:title"), e.h.TitleSuffix))
			return v, v != ""
		}},
	}
}

// DefaultPagePromptStrategies returns the page-wide prompt chain.
func DefaultPagePromptStrategies() []FieldStrategy {
	return []FieldStrategy{
		{Name: "page-semantic", Try: func(e *Engine, fc *FieldContext) (string, bool) {
			return e.firstPrompt(fc, fc.Page.Doc.Selection, e.promptSel, func(Candidate) bool { return true })
		}},
		{Name: "page-fingerprint", Try: func(e *Engine, fc *FieldContext) (string, bool) {
			return e.firstPrompt(fc, fc.Page.Doc.Selection, e.fingerprintSel, e.fingerprintShape)
		}},
	}
}

// DefaultPageImageStrategies returns the page-wide image chain.
func DefaultPageImageStrategies() []FieldStrategy {
	return []FieldStrategy{
		{Name: "og-image", Try: func(e *Engine, fc *FieldContext) (string, bool) {
			if u, ok := absoluteURL(metaContent(fc.Page, "og:image"), fc.Page); ok {
				return HighRes(u), true
			}
			return "", false
		}},
		{Name: "page-images", Try: func(e *Engine, fc *FieldContext) (string, bool) {
			return e.imageIn(fc.Page.Doc.Selection, fc.Page)
		}},
	}
}

func (e *Engine) extractFields(p *Page, loc string, anchor *goquery.Selection, current bool, d *Diagnostics) storage.Record {
	fc := &FieldContext{Page: p, Locator: loc, Current: current}
	if anchor != nil && anchor.Length() > 0 {
		fc.Anchor = anchor
		fc.Container = e.container(anchor)
	}

	rec := storage.Record{Locator: loc}
	rec.Title = e.runChain("title", e.Title, fc, d)
	fc.Title = rec.Title

	if fc.Container != nil {
		rec.Prompt = e.runChain("prompt", e.Prompt, fc, d)
		rec.ImageURL = e.runChain("image", e.Image, fc, d)
	} else {
		d.Containerless++
	}

	if current && rec.ImageURL == "" {
		d.PageFallback = true
		if rec.Title == "" {
			rec.Title = e.runChain("title", e.PageTitle, fc, d)
			fc.Title = rec.Title
		}
		if rec.Prompt == "" {
			rec.Prompt = e.runChain("prompt", e.PagePrompt, fc, d)
		}
		rec.ImageURL = e.runChain("image", e.PageImage, fc, d)
	}
	return rec
}

func (e *Engine) runChain(field string, chain []FieldStrategy, fc *FieldContext, d *Diagnostics) string {
	for _, s := range chain {
		var v string
		var ok bool
		e.guard(d, field+":"+s.Name, func() { v, ok = s.Try(e, fc) })
		if ok && v != "" {
			d.FieldHits[field+":"+s.Name]++
			return v
		}
	}
	return ""
}

// container returns the nearest row-like ancestor of anchor, or nil.
func (e *Engine) container(anchor *goquery.Selection) *goquery.Selection {
	c := anchor.First().Parents().FilterFunction(func(_ int, s *goquery.Selection) bool {
		return e.isContainer(s.Get(0))
	}).First()
	if c.Length() == 0 {
		return nil
	}
	return c
}

func (e *Engine) isContainer(n *html.Node) bool {
	if n.Type != html.ElementNode || n.Data == "body" || n.Data == "html" {
		return false
	}
	if role := attr(n, "role"); role != "" && slices.Contains(e.h.ContainerRoles, role) {
		return true
	}
	if containsAny(attr(n, "class"), e.h.ContainerClassHints) {
		return true
	}
	return containsAny(attr(n, "data-testid"), e.h.ContainerTestIDHints)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func containsAny(s string, fragments []string) bool {
	if s == "" {
		return false
	}
	for _, f := range fragments {
		if f != "" && strings.Contains(s, f) {
			return true
		}
	}
	return false
}

// excluded rejects elements that wrap the anchor, a button, an icon or any
// song link, since their text is not a prompt.
func (e *Engine) excluded(fc *FieldContext, s *goquery.Selection) bool {
	n := s.Get(0)
	if fc.Anchor != nil && contains(n, fc.Anchor.Get(0)) {
		return true
	}
	if has(s, e.buttonSel) || has(s, e.iconSel) {
		return true
	}
	return e.hasRecordLink(s, fc.Page)
}

func (e *Engine) hasRecordLink(s *goquery.Selection, p *Page) bool {
	if e.anchorSel == nil {
		return false
	}
	links := s.FindMatcher(e.anchorSel).AddSelection(s.FilterMatcher(e.anchorSel))
	found := false
	links.EachWithBreak(func(_ int, l *goquery.Selection) bool {
		for _, a := range linkAttrs {
			if v, ok := l.Attr(a); ok {
				if _, ok := e.norm.Normalize(v, p.Origin()); ok {
					found = true
					return false
				}
			}
		}
		return true
	})
	return found
}

func titleFromAnchor(e *Engine, fc *FieldContext) (string, bool) {
	if fc.Anchor == nil {
		return "", false
	}
	if text := cleanText(fc.Anchor.Text()); text != "" {
		return text, true
	}
	for _, key := range []string{"title", "aria-label"} {
		if v, ok := fc.Anchor.Attr(key); ok {
			if v = cleanText(v); v != "" {
				return v, true
			}
		}
	}
	return "", false
}

func titleFromLeadingText(e *Engine, fc *FieldContext) (string, bool) {
	if fc.Anchor == nil || fc.Container == nil {
		return "", false
	}
	n := fc.Anchor.Get(0)
	if n.Parent == nil {
		return "", false
	}
	v := textBefore(n.Parent, n)
	return v, v != ""
}

func titleFromPageTitle(e *Engine, fc *FieldContext) (string, bool) {
	if !fc.Current {
		return "", false
	}
	v := strings.TrimSpace(strings.TrimSuffix(fc.Page.Title(), e.h.TitleSuffix))
	return v, v != ""
}

func (e *Engine) hasFingerprint(class string) bool {
	return containsAny(class, e.h.PromptClassFragments)
}

func (e *Engine) fingerprintShape(c Candidate) bool {
	return c.Length > e.h.MinClassPromptLen || c.HasComma
}

func promptFromFingerprint(e *Engine, fc *FieldContext) (string, bool) {
	var found string
	fc.Container.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		if !e.hasFingerprint(class) || e.excluded(fc, s) {
			return true
		}
		if c := e.candidate(s); c.usable() && e.fingerprintShape(c) {
			found = c.Text
			return false
		}
		return true
	})
	return found, found != ""
}

func promptFromSemantic(e *Engine, fc *FieldContext) (string, bool) {
	return e.firstPrompt(fc, fc.Container, e.promptSel, func(Candidate) bool { return true })
}

// firstPrompt walks sels in order and returns the first usable candidate
// under scope that also satisfies accept.
func (e *Engine) firstPrompt(fc *FieldContext, scope *goquery.Selection, sels []compiledSelector, accept func(Candidate) bool) (string, bool) {
	for _, c := range sels {
		var found string
		scope.FindMatcher(c.m).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if e.excluded(fc, s) {
				return true
			}
			if cand := e.candidate(s); cand.usable() && accept(cand) {
				found = cand.Text
				return false
			}
			return true
		})
		if found != "" {
			return found, true
		}
	}
	return "", false
}

func promptFromTextScan(e *Engine, fc *FieldContext) (string, bool) {
	var found string
	fc.Container.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if e.excluded(fc, s) {
			return true
		}
		c := e.candidate(s)
		if c.usable() && c.HasComma && c.Length > e.h.MinScanPromptLen && !c.echoesTitle(fc.Title) {
			found = c.Text
			return false
		}
		return true
	})
	return found, found != ""
}

func promptFromSiblings(e *Engine, fc *FieldContext) (string, bool) {
	if fc.Anchor == nil {
		return "", false
	}
	var found string
	walked := 0
	fc.Anchor.First().Parent().NextAll().EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if walked >= e.h.MaxSiblingWalk {
			return false
		}
		walked++
		if has(s, e.interactiveSel) {
			return true
		}
		c := e.candidate(s)
		if c.usable() && c.HasComma && c.Length > e.h.MinSiblingPromptLen {
			found = c.Text
			return false
		}
		return true
	})
	return found, found != ""
}

func (e *Engine) imageIn(scope *goquery.Selection, p *Page) (string, bool) {
	if scope == nil {
		return "", false
	}
	for _, c := range e.imageSel {
		var found string
		scope.FindMatcher(c.m).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			v, _ := s.Attr(c.attr)
			if u, ok := absoluteURL(v, p); ok {
				found = HighRes(u)
				return false
			}
			return true
		})
		if found != "" {
			return found, true
		}
	}
	return "", false
}

// absoluteURL accepts http(s) URLs and scheme-relative ones, which take the
// page's scheme.
func absoluteURL(v string, p *Page) (string, bool) {
	v = strings.TrimSpace(v)
	lower := strings.ToLower(v)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return v, true
	case strings.HasPrefix(v, "//") && len(v) > 2:
		scheme := "https"
		if p != nil && p.URL != nil && p.URL.Scheme != "" {
			scheme = p.URL.Scheme
		}
		return scheme + ":" + v, true
	}
	return "", false
}

func metaContent(p *Page, property string) string {
	v, _ := p.Doc.Find(`meta[property="` + property + `"]`).First().Attr("content")
	return strings.TrimSpace(v)
}

// HighRes rewrites a thumbnail URL to its large variant: the width query
// parameter is dropped and image_ or image_small_ file names become
// image_large_.
func HighRes(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	q := u.Query()
	if q.Has("width") {
		q.Del("width")
		u.RawQuery = q.Encode()
	}

	dir, file := path.Split(u.Path)
	switch {
	case strings.HasPrefix(file, "image_large_"):
	case strings.HasPrefix(file, "image_small_"):
		file = "image_large_" + strings.TrimPrefix(file, "image_small_")
	case strings.HasPrefix(file, "image_"):
		file = "image_large_" + strings.TrimPrefix(file, "image_")
	}
	u.Path = dir + file
	u.RawPath = ""
	return u.String()
}
