// Package extract finds song records in rendered suno.com markup.
//
// The engine never fails a scrape: every heuristic degrades to "no match"
// and anything unexpected is recorded in the returned Diagnostics. Records
// come back in the order their locators were first discovered.
package extract

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/FranksOps/stylus/internal/storage"
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Result is the outcome of one ScrapeAll call.
type Result struct {
	Records     []storage.Record `json:"records"`
	Diagnostics Diagnostics      `json:"diagnostics"`
}

// Diagnostics describes how a scrape went. It is returned by value so callers
// can log or count it after the records have been handed back.
type Diagnostics struct {
	URL           string         `json:"url"`
	Locators      int            `json:"locators"`
	LocatorHits   map[string]int `json:"locatorHits"`
	FieldHits     map[string]int `json:"fieldHits"`
	ScriptsJSON   int            `json:"scriptsJson"`
	ScriptsRaw    int            `json:"scriptsRaw"`
	HookDetected  bool           `json:"hookDetected"`
	Containerless int            `json:"containerless"`
	PageFallback  bool           `json:"pageFallback"`
	Failures      []string       `json:"failures,omitempty"`
	Duration      time.Duration  `json:"duration"`
}

func newDiagnostics(p *Page) Diagnostics {
	return Diagnostics{
		URL:         p.Origin(),
		LocatorHits: map[string]int{},
		FieldHits:   map[string]int{},
	}
}

type compiledSelector struct {
	src string
	m   cascadia.Selector
}

type compiledImage struct {
	compiledSelector
	attr string
}

// Engine runs the locator and field strategy chains over a Page. An Engine is
// safe for concurrent use once built; the strategy slices must not be
// modified after the first scrape.
type Engine struct {
	h      Heuristics
	norm   *Normalizer
	logger *slog.Logger

	// Locators all run and their results are unioned.
	Locators []LocatorStrategy
	// Field chains stop at the first strategy that yields a value.
	Title  []FieldStrategy
	Prompt []FieldStrategy
	Image  []FieldStrategy
	// Page-wide chains used for the current page's own record.
	PageTitle  []FieldStrategy
	PagePrompt []FieldStrategy
	PageImage  []FieldStrategy

	promptSel      []compiledSelector
	fingerprintSel []compiledSelector
	pageTitleSel   []compiledSelector
	imageSel       []compiledImage
	appRootSel     []compiledSelector
	songTitleSel   []compiledSelector
	songLyricsSel  []compiledSelector
	songStyleSel   []compiledSelector
	tagSel         cascadia.Selector
	iconSel        cascadia.Selector
	interactiveSel cascadia.Selector
	buttonSel      cascadia.Selector
	anchorSel      cascadia.Selector
}

// New builds an engine from h. Selectors that do not compile are skipped with
// a warning. A nil logger falls back to slog.Default().
func New(h Heuristics, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		h:      h,
		norm:   NewNormalizer(h.Hosts, h.PathPrefix),
		logger: logger,

		Locators:   DefaultLocatorStrategies(),
		Title:      DefaultTitleStrategies(),
		Prompt:     DefaultPromptStrategies(),
		Image:      DefaultImageStrategies(),
		PageTitle:  DefaultPageTitleStrategies(),
		PagePrompt: DefaultPagePromptStrategies(),
		PageImage:  DefaultPageImageStrategies(),
	}

	e.promptSel = e.compile(h.PromptSelectors)
	fingerprints := make([]string, 0, len(h.PromptClassFragments))
	for _, f := range h.PromptClassFragments {
		fingerprints = append(fingerprints, fmt.Sprintf(`[class*=%q]`, f))
	}
	e.fingerprintSel = e.compile(fingerprints)
	e.pageTitleSel = e.compile(h.PageTitleSelectors)
	e.appRootSel = e.compile(h.AppRootSelectors)
	e.songTitleSel = e.compile(h.SongTitleSelectors)
	e.songLyricsSel = e.compile(h.SongLyricsSelectors)
	e.songStyleSel = e.compile(h.SongStyleSelectors)
	for _, src := range h.ImageSources {
		for _, c := range e.compile([]string{src.Selector}) {
			e.imageSel = append(e.imageSel, compiledImage{compiledSelector: c, attr: src.Attr})
		}
	}
	e.tagSel = e.compileOne(h.SongTagSelector)
	e.iconSel = e.compileOne(h.IconSelector)
	e.interactiveSel = e.compileOne(h.InteractiveSelector)
	e.buttonSel = e.compileOne(`button, [role="button"]`)
	e.anchorSel = e.compileOne(`a, [data-href], [data-url]`)
	return e
}

// Heuristics returns the values the engine was built with.
func (e *Engine) Heuristics() Heuristics { return e.h }

// Normalizer returns the engine's locator normalizer.
func (e *Engine) Normalizer() *Normalizer { return e.norm }

func (e *Engine) compile(list []string) []compiledSelector {
	out := make([]compiledSelector, 0, len(list))
	for _, s := range list {
		m, err := cascadia.Compile(s)
		if err != nil {
			e.logger.Warn("skipping invalid selector", "selector", s, "err", err)
			continue
		}
		out = append(out, compiledSelector{src: s, m: m})
	}
	return out
}

func (e *Engine) compileOne(s string) cascadia.Selector {
	if s == "" {
		return nil
	}
	c := e.compile([]string{s})
	if len(c) == 0 {
		return nil
	}
	return c[0].m
}

// has reports whether s or any of its descendants matches m.
func has(s *goquery.Selection, m cascadia.Selector) bool {
	if m == nil || s.Length() == 0 {
		return false
	}
	return s.IsMatcher(m) || s.FindMatcher(m).Length() > 0
}

// guard runs fn and turns a panic into a recorded failure.
func (e *Engine) guard(d *Diagnostics, stage string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.Failures = append(d.Failures, fmt.Sprintf("%s: %v", stage, r))
			e.logger.Debug("heuristic step failed", "stage", stage, "err", r)
		}
	}()
	fn()
}

// currentLocator is the locator of the page itself, if it is a song page.
func (e *Engine) currentLocator(p *Page) string {
	loc, ok := e.norm.Normalize(p.Origin(), "")
	if !ok {
		return ""
	}
	return loc
}

// ScrapeAll finds every song locator on the page and extracts one record per
// locator. It always returns, with an empty record list when nothing matched.
func (e *Engine) ScrapeAll(p *Page) Result {
	start := time.Now()
	d := newDiagnostics(p)

	locators := e.findLocators(p, &d)
	d.Locators = len(locators)

	var pr *probe
	e.guard(&d, "probe", func() { pr = e.newProbe(p) })

	current := e.currentLocator(p)
	records := make([]storage.Record, 0, len(locators))
	for _, loc := range locators {
		var anchor *goquery.Selection
		if pr != nil {
			e.guard(&d, "probe", func() { anchor = pr.resolve(loc) })
		}
		rec := storage.Record{Locator: loc}
		e.guard(&d, "fields", func() { rec = e.extractFields(p, loc, anchor, loc == current, &d) })
		rec.Locator = loc
		records = append(records, rec)
	}

	d.Duration = time.Since(start)
	return Result{Records: records, Diagnostics: d}
}

// ExtractFields resolves title, prompt and image for one locator. anchor may
// be nil when the locator came from a text-only strategy.
func (e *Engine) ExtractFields(p *Page, locator string, anchor *goquery.Selection) storage.Record {
	d := newDiagnostics(p)
	return e.extractFields(p, locator, anchor, locator == e.currentLocator(p), &d)
}

// ExtractSong captures the detailed snapshot of the song page currently open.
func (e *Engine) ExtractSong(p *Page) storage.SongRecord {
	song := storage.SongRecord{
		URL:       p.Origin(),
		Tags:      []string{},
		Timestamp: time.Now().UTC(),
	}
	root := p.Doc.Selection

	song.Title = strings.TrimSuffix(e.firstText(root, e.songTitleSel, cleanText), e.h.TitleSuffix)
	song.Lyrics = e.firstText(root, e.songLyricsSel, strings.TrimSpace)
	song.StylePrompt = e.firstText(root, e.songStyleSel, cleanText)

	if e.tagSel != nil {
		seen := map[string]bool{}
		root.FindMatcher(e.tagSel).Each(func(_ int, s *goquery.Selection) {
			tag := cleanText(s.Text())
			if tag != "" && !seen[tag] {
				seen[tag] = true
				song.Tags = append(song.Tags, tag)
			}
		})
	}
	return song
}

func (e *Engine) firstText(root *goquery.Selection, sels []compiledSelector, clean func(string) string) string {
	for _, c := range sels {
		var found string
		root.FindMatcher(c.m).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := clean(s.Text())
			if text == "" || strings.EqualFold(cleanText(text), e.h.Placeholder) {
				return true
			}
			found = text
			return false
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// probe re-resolves a concrete anchor element for a locator.
type probe struct {
	e      *Engine
	refs   []anchorRef
	exact  map[string][]int
	origin string
}

type anchorRef struct {
	sel     *goquery.Selection
	values  []string
	hasText bool
}

var linkAttrs = []string{"href", "data-href", "data-url"}

func (e *Engine) newProbe(p *Page) *probe {
	pr := &probe{e: e, exact: map[string][]int{}, origin: p.Origin()}
	if e.anchorSel == nil {
		return pr
	}
	p.Doc.FindMatcher(e.anchorSel).Each(func(_ int, s *goquery.Selection) {
		ref := anchorRef{sel: s, hasText: cleanText(s.Text()) != ""}
		for _, attr := range linkAttrs {
			if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
				ref.values = append(ref.values, v)
			}
		}
		if len(ref.values) == 0 {
			return
		}
		idx := len(pr.refs)
		pr.refs = append(pr.refs, ref)
		for _, v := range ref.values {
			if loc, deeper, ok := e.norm.normalize(v, pr.origin); ok && !deeper {
				pr.exact[loc] = append(pr.exact[loc], idx)
				break
			}
		}
	})
	return pr
}

// resolve prefers anchors pointing exactly at the locator over anchors that
// merely contain its path. Within a tier the first anchor with text wins.
func (pr *probe) resolve(loc string) *goquery.Selection {
	if idx := pr.exact[loc]; len(idx) > 0 {
		return pr.pick(idx)
	}

	path := loc[strings.Index(loc, "://")+3:]
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[i:]
	}
	var idx []int
	for i, ref := range pr.refs {
		for _, v := range ref.values {
			if containsPath(v, path) {
				idx = append(idx, i)
				break
			}
		}
	}
	if len(idx) == 0 {
		return nil
	}
	return pr.pick(idx)
}

func (pr *probe) pick(idx []int) *goquery.Selection {
	for _, i := range idx {
		if pr.refs[i].hasText {
			return pr.refs[i].sel
		}
	}
	return pr.refs[idx[0]].sel
}

// containsPath matches path inside v only at an identifier boundary, so
// /song/abc does not match /song/abc123.
func containsPath(v, path string) bool {
	for off := 0; ; {
		i := strings.Index(v[off:], path)
		if i < 0 {
			return false
		}
		end := off + i + len(path)
		if end == len(v) || !isIDByte(v[end]) {
			return true
		}
		off = off + i + 1
	}
}
