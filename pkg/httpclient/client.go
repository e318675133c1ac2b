// Package httpclient wraps net/http with the redirect, cookie and header
// policy stylus uses for every outbound request.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/FranksOps/stylus/pkg/useragent"
)

// Config defines the setup for the HTTP Client.
type Config struct {
	Timeout time.Duration
	// MaxRedirects caps followed redirects; negative disables following.
	MaxRedirects int
	UseCookieJar bool
	// Transport overrides the default, e.g. for uTLS fingerprinting.
	Transport http.RoundTripper
	// UserAgents supplies the User-Agent for requests that do not set one.
	UserAgents *useragent.Pool
}

// Client wraps http.Client with browser-like default headers.
type Client struct {
	*http.Client
	agents *useragent.Pool
}

// New creates a client from cfg. A zero Timeout means 30 seconds.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := &http.Client{Timeout: cfg.Timeout}
	if cfg.MaxRedirects >= 0 {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", cfg.MaxRedirects)
			}
			return nil
		}
	} else {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	if cfg.UseCookieJar {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		c.Jar = jar
	}
	if cfg.Transport != nil {
		c.Transport = cfg.Transport
	}

	agents := cfg.UserAgents
	if agents == nil {
		agents = useragent.NewPool(nil, useragent.RotateSequential)
	}
	return &Client{Client: c, agents: agents}, nil
}

// SeedCookies parses a Cookie header value (as copied from a logged-in
// browser) into the jar for rawURL.
func (c *Client) SeedCookies(rawURL, header string) error {
	if c.Jar == nil {
		return errors.New("seed cookies: client has no cookie jar")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("seed cookies: %w", err)
	}
	cookies, err := http.ParseCookie(header)
	if err != nil {
		return fmt.Errorf("seed cookies: %w", err)
	}
	c.Jar.SetCookies(u, cookies)
	return nil
}

// Do executes req under ctx, filling browser headers the caller left unset.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		return nil, errors.New("context cannot be nil")
	}

	r := req.Clone(ctx)
	if r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", c.agents.Next())
	}
	if r.Header.Get("Accept") == "" {
		r.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	}
	if r.Header.Get("Accept-Language") == "" {
		r.Header.Set("Accept-Language", "en-US,en;q=0.9")
	}

	resp, err := c.Client.Do(r)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", r.Method, r.URL, err)
	}
	return resp, nil
}
