package extract

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// LocatorStrategy contributes locators found on a page. emit receives
// canonical locators; duplicates are filtered by the caller.
type LocatorStrategy struct {
	Name string
	Find func(e *Engine, p *Page, d *Diagnostics, emit func(locator string))
}

// DefaultLocatorStrategies returns the locator strategies in the order they run.
func DefaultLocatorStrategies() []LocatorStrategy {
	return []LocatorStrategy{
		{Name: "anchors", Find: locateAnchors},
		{Name: "scripts", Find: locateScripts},
		{Name: "document-text", Find: locateDocumentText},
		{Name: "attributes", Find: locateAttributes},
		{Name: "app-root", Find: locateAppRoot},
	}
}

// FindLocators returns the ordered set of song locators on the page.
func (e *Engine) FindLocators(p *Page) []string {
	d := newDiagnostics(p)
	return e.findLocators(p, &d)
}

func (e *Engine) findLocators(p *Page, d *Diagnostics) []string {
	var order []string
	seen := map[string]bool{}

	for _, s := range e.Locators {
		found := 0
		e.guard(d, "locator:"+s.Name, func() {
			s.Find(e, p, d, func(loc string) {
				if loc == "" || seen[loc] {
					return
				}
				seen[loc] = true
				order = append(order, loc)
				found++
			})
		})
		if found > 0 {
			d.LocatorHits[s.Name] += found
		}
	}
	return order
}

func locateAnchors(e *Engine, p *Page, _ *Diagnostics, emit func(string)) {
	if e.anchorSel == nil {
		return
	}
	origin := p.Origin()
	p.Doc.FindMatcher(e.anchorSel).Each(func(_ int, s *goquery.Selection) {
		for _, attr := range linkAttrs {
			if v, ok := s.Attr(attr); ok {
				if loc, ok := e.norm.Normalize(v, origin); ok {
					emit(loc)
				}
			}
		}
	})
}

func locateScripts(e *Engine, p *Page, d *Diagnostics, emit func(string)) {
	origin := p.Origin()
	p.Doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, external := s.Attr("src"); external {
			return
		}
		raw := s.Text()
		if strings.TrimSpace(raw) == "" {
			return
		}

		var payload any
		if err := json.Unmarshal([]byte(raw), &payload); err == nil {
			d.ScriptsJSON++
			var b strings.Builder
			collectStrings(payload, &b)
			e.norm.Extract(b.String(), origin, emit)
			return
		}
		d.ScriptsRaw++
		e.norm.Extract(raw, origin, emit)
	})
}

// collectStrings writes every string key and value in v, one per line.
// Object keys are visited in sorted order so results are stable.
func collectStrings(v any, b *strings.Builder) {
	switch t := v.(type) {
	case string:
		b.WriteString(t)
		b.WriteByte('\n')
	case []any:
		for _, item := range t {
			collectStrings(item, b)
		}
	case map[string]any:
		for _, k := range slices.Sorted(maps.Keys(t)) {
			b.WriteString(k)
			b.WriteByte('\n')
			collectStrings(t[k], b)
		}
	}
}

func locateDocumentText(e *Engine, p *Page, _ *Diagnostics, emit func(string)) {
	root := p.Doc.Find("body")
	if root.Length() == 0 {
		root = p.Doc.Selection
	}
	for _, n := range root.Nodes {
		e.norm.Extract(visibleText(n), p.Origin(), emit)
	}
}

func locateAttributes(e *Engine, p *Page, _ *Diagnostics, emit func(string)) {
	origin := p.Origin()
	prefix := e.norm.Prefix()
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, a := range n.Attr {
				if a.Key != "href" && a.Key != "src" && !strings.HasPrefix(a.Key, "data-") {
					continue
				}
				if !strings.Contains(a.Val, prefix) {
					continue
				}
				if loc, ok := e.norm.Normalize(a.Val, origin); ok {
					emit(loc)
					continue
				}
				e.norm.Extract(a.Val, origin, emit)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range p.Doc.Nodes {
		walk(n)
	}
}

// hookPresent looks for traces of a client-side framework that renders the
// page after load.
func (e *Engine) hookPresent(p *Page) bool {
	found := false
	p.Doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if id, _ := s.Attr("id"); id != "" && slices.Contains(e.h.HookMarkers, id) {
			found = true
			return false
		}
		text := s.Text()
		for _, m := range e.h.HookMarkers {
			if m != "" && strings.Contains(text, m) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

func locateAppRoot(e *Engine, p *Page, d *Diagnostics, emit func(string)) {
	if !e.hookPresent(p) {
		return
	}
	d.HookDetected = true
	origin := p.Origin()
	for _, c := range e.appRootSel {
		p.Doc.FindMatcher(c.m).Each(func(_ int, s *goquery.Selection) {
			markup, err := goquery.OuterHtml(s)
			if err != nil {
				d.Failures = append(d.Failures, "app-root: "+err.Error())
				return
			}
			e.norm.Extract(markup, origin, emit)
		})
	}
}
