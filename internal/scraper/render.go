package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/FranksOps/stylus/internal/bypass"
	"github.com/FranksOps/stylus/internal/extract"
	"github.com/FranksOps/stylus/internal/metrics"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// DefaultWaitTimeout bounds the wait for RenderConfig.WaitSelector.
const DefaultWaitTimeout = 10 * time.Second

// RenderConfig configures the headless browser.
type RenderConfig struct {
	Headless   bool
	NoSandbox  bool
	BrowserBin string
	// ControlURL attaches to an already running browser instead of
	// launching one, e.g. a Chrome started with --remote-debugging-port.
	ControlURL string
	Proxy      string

	Timeout time.Duration
	// WaitSelector, when set, is awaited for at most WaitTimeout before the
	// DOM is captured. A miss is logged and the page captured as it is.
	WaitSelector string
	WaitTimeout  time.Duration
	// Scrolls is how many times the page is scrolled to the bottom so the
	// workspace list loads more rows.
	Scrolls     int
	ScrollPause time.Duration

	UserAgent string
	// Cookie is a Cookie header value applied to every loaded URL.
	Cookie string
}

// RenderLoader loads client-rendered pages in a stealth headless browser.
type RenderLoader struct {
	cfg       RenderConfig
	browser   *rod.Browser
	launcher  *launcher.Launcher
	detectors []bypass.Detector
	logger    *slog.Logger
}

// withDefaults fills unset durations. The selector wait never takes more
// than half of the page timeout so the capture keeps the rest.
func (c RenderConfig) withDefaults() RenderConfig {
	if c.Timeout <= 0 {
		c.Timeout = 45 * time.Second
	}
	if c.ScrollPause <= 0 {
		c.ScrollPause = 750 * time.Millisecond
	}
	if c.WaitTimeout <= 0 || c.WaitTimeout > c.Timeout/2 {
		c.WaitTimeout = min(DefaultWaitTimeout, c.Timeout/2)
	}
	return c
}

// NewRenderLoader launches (or attaches to) a browser.
func NewRenderLoader(cfg RenderConfig, logger *slog.Logger) (*RenderLoader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	r := &RenderLoader{cfg: cfg, detectors: bypass.DefaultDetectors(), logger: logger}

	controlURL := cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().
			Headless(cfg.Headless).
			NoSandbox(cfg.NoSandbox)
		if cfg.BrowserBin != "" {
			l = l.Bin(cfg.BrowserBin)
		}
		if cfg.Proxy != "" {
			l = l.Proxy(cfg.Proxy)
		}
		l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
		l.Delete(flags.Flag("enable-automation"))
		l.Set(flags.Flag("disable-dev-shm-usage"))
		l.Set(flags.Flag("no-first-run"))

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
		r.launcher = l
		logger.Info("browser launched", "controlURL", controlURL)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		if r.launcher != nil {
			r.launcher.Kill()
		}
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	r.browser = browser
	return r, nil
}

// Load implements Loader.
func (r *RenderLoader) Load(ctx context.Context, location string) (*extract.Page, error) {
	start := time.Now()
	page, status, err := r.render(ctx, location)
	metrics.RecordFetch("render", status, time.Since(start), err)
	return page, err
}

func (r *RenderLoader) render(ctx context.Context, location string) (*extract.Page, int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	tab, err := stealth.Page(r.browser)
	if err != nil {
		return nil, 0, fmt.Errorf("open tab: %w", err)
	}
	defer func() {
		if err := tab.Close(); err != nil {
			r.logger.Debug("close tab", "err", err)
		}
	}()
	p := tab.Context(ctx)

	if r.cfg.UserAgent != "" {
		if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: r.cfg.UserAgent}); err != nil {
			return nil, 0, fmt.Errorf("set user agent: %w", err)
		}
	}
	if r.cfg.Cookie != "" {
		params, err := cookieParams(r.cfg.Cookie, location)
		if err != nil {
			return nil, 0, err
		}
		if err := p.SetCookies(params); err != nil {
			return nil, 0, fmt.Errorf("set cookies: %w", err)
		}
	}

	if err := p.Navigate(location); err != nil {
		return nil, 0, fmt.Errorf("navigate %s: %w", location, err)
	}
	if err := p.WaitLoad(); err != nil {
		return nil, 0, fmt.Errorf("wait load %s: %w", location, err)
	}
	if r.cfg.WaitSelector != "" {
		err := waitBounded(ctx, r.cfg.WaitTimeout, func(wctx context.Context) error {
			_, err := p.Context(wctx).Element(r.cfg.WaitSelector)
			return err
		})
		if err != nil {
			r.logger.Debug("wait selector never matched, capturing anyway", "url", location, "selector", r.cfg.WaitSelector, "err", err)
		}
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		r.logger.Debug("DOM did not settle, capturing current state", "url", location, "err", err)
	}
	r.scroll(ctx, p)

	status := 0
	if res, err := p.Eval(`() => {
		try {
			const nav = performance.getEntriesByType("navigation");
			if (nav.length > 0) return nav[0].responseStatus || 0;
		} catch (e) {}
		return 0;
	}`); err == nil {
		status = res.Value.Int()
	}

	markup, err := p.HTML()
	if err != nil {
		return nil, status, fmt.Errorf("capture html: %w", err)
	}
	final := location
	if info, err := p.Info(); err == nil && info.URL != "" {
		final = info.URL
	}

	if src, ok := bypass.Analyze(&bypass.Response{
		StatusCode: status,
		Header:     http.Header{},
		Body:       []byte(markup),
		FinalURL:   final,
	}, r.detectors); ok {
		metrics.RecordChallenge(src)
		return nil, status, fmt.Errorf("%w: %s (%s)", ErrChallenged, location, src)
	}
	if status >= 400 {
		return nil, status, &StatusError{URL: location, StatusCode: status}
	}

	page, err := extract.ParsePage(final, markup)
	if err != nil {
		return nil, status, fmt.Errorf("parse %s: %w", location, err)
	}
	return page, status, nil
}

// waitBounded runs wait on a child of ctx that expires after d, leaving ctx
// usable for the capture that follows.
func waitBounded(ctx context.Context, d time.Duration, wait func(context.Context) error) error {
	wctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return wait(wctx)
}

// scroll nudges infinite lists into loading further rows.
func (r *RenderLoader) scroll(ctx context.Context, p *rod.Page) {
	for i := 0; i < r.cfg.Scrolls; i++ {
		if _, err := p.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
			r.logger.Debug("scroll failed", "err", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.cfg.ScrollPause):
		}
	}
}

// Close shuts the browser down, killing it if we launched it.
func (r *RenderLoader) Close() error {
	var err error
	if r.browser != nil {
		err = r.browser.Close()
	}
	if r.launcher != nil {
		r.launcher.Kill()
	}
	return err
}

func cookieParams(header, location string) ([]*proto.NetworkCookieParam, error) {
	cookies, err := http.ParseCookie(strings.TrimSpace(header))
	if err != nil {
		return nil, fmt.Errorf("parse cookie: %w", err)
	}
	if len(cookies) == 0 {
		return nil, errors.New("parse cookie: no cookies")
	}
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:  c.Name,
			Value: c.Value,
			URL:   location,
		})
	}
	return params, nil
}
