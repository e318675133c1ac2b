// Package bypass recognises responses that are bot challenges or login walls
// rather than the requested page.
package bypass

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"
)

// Response is the subset of a fetch the detectors inspect.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// FinalURL is the URL after redirects.
	FinalURL string
}

// Detector reports whether res is a challenge and which mechanism issued it.
type Detector func(res *Response) (detected bool, source string)

// DefaultDetectors returns the detectors run on every fetch, in order.
func DefaultDetectors() []Detector {
	return []Detector{
		detectCloudflare,
		detectDataDome,
		detectSignInWall,
	}
}

// Analyze runs res through detectors and returns the first source that
// triggers, or "" when none does.
func Analyze(res *Response, detectors []Detector) (string, bool) {
	if res == nil {
		return "", false
	}
	for _, d := range detectors {
		if detected, source := d(res); detected {
			return source, true
		}
	}
	return "", false
}

func detectCloudflare(res *Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden && res.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	if strings.Contains(strings.ToLower(res.Header.Get("Server")), "cloudflare") {
		return true, "Cloudflare"
	}
	if res.Header.Get("Cf-Mitigated") == "challenge" {
		return true, "Cloudflare"
	}
	for _, sig := range [][]byte{
		[]byte("cf-browser-verification"),
		[]byte("cf-turnstile"),
		[]byte("challenge-platform"),
		[]byte("Attention Required! | Cloudflare"),
	} {
		if bytes.Contains(res.Body, sig) {
			return true, "Cloudflare"
		}
	}
	return false, ""
}

func detectDataDome(res *Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(strings.ToLower(res.Header.Get("Server")), "datadome") ||
		res.Header.Get("X-DataDome") != "" {
		return true, "DataDome"
	}
	if bytes.Contains(res.Body, []byte("geo.captcha-delivery.com")) {
		return true, "DataDome"
	}
	return false, ""
}

// detectSignInWall catches the workspace redirecting an anonymous session to
// the account login.
func detectSignInWall(res *Response) (bool, string) {
	if res.StatusCode == http.StatusUnauthorized {
		return true, "SignIn"
	}
	if res.FinalURL == "" {
		return false, ""
	}
	u, err := url.Parse(res.FinalURL)
	if err != nil {
		return false, ""
	}
	if strings.HasPrefix(u.Path, "/sign-in") || strings.HasPrefix(u.Host, "accounts.") {
		return true, "SignIn"
	}
	return false, ""
}
