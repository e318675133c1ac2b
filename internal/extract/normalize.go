package extract

import (
	"net/url"
	"regexp"
	"slices"
	"strings"
)

const idChars = `[A-Za-z0-9-]+`

// Normalizer turns raw song references into canonical locators of the form
// scheme://host/<prefix><id>.
type Normalizer struct {
	hosts  []string
	prefix string

	absolute *regexp.Regexp
	hostPath *regexp.Regexp
	bare     *regexp.Regexp
}

// NewNormalizer builds a normalizer for the given hosts and path prefix.
func NewNormalizer(hosts []string, prefix string) *Normalizer {
	lower := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			lower = append(lower, h)
		}
	}
	p := regexp.QuoteMeta(prefix)
	return &Normalizer{
		hosts:    lower,
		prefix:   prefix,
		absolute: regexp.MustCompile(`(?i)https?://[A-Za-z0-9.-]+(?::\d+)?` + p + idChars),
		// Group 1 is the match; the leading class stops matches inside a longer URL.
		hostPath: regexp.MustCompile(`(?:^|[^A-Za-z0-9/.:-])([A-Za-z0-9-]+(?:\.[A-Za-z0-9-]+)+(?::\d+)?` + p + idChars + `)`),
		bare:     regexp.MustCompile(`(?:^|[^A-Za-z0-9/.:-])(` + p + idChars + `)`),
	}
}

// Prefix returns the record path prefix.
func (n *Normalizer) Prefix() string { return n.prefix }

func (n *Normalizer) hostAllowed(host string) bool {
	if host == "" {
		return false
	}
	if len(n.hosts) == 0 {
		return true
	}
	for _, h := range n.hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// Normalize resolves raw against origin and returns the canonical locator.
// It reports false when the result is not a song URL on an accepted host.
func (n *Normalizer) Normalize(raw, origin string) (string, bool) {
	loc, _, ok := n.normalize(raw, origin)
	return loc, ok
}

// normalize also reports whether the path continued past the identifier.
func (n *Normalizer) normalize(raw, origin string) (loc string, deeper bool, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false, false
	}
	if !u.IsAbs() && origin != "" {
		base, err := url.Parse(origin)
		if err != nil {
			return "", false, false
		}
		u = base.ResolveReference(u)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false, false
	}
	if !n.hostAllowed(strings.ToLower(u.Hostname())) {
		return "", false, false
	}

	rest, ok := strings.CutPrefix(u.Path, n.prefix)
	if !ok {
		return "", false, false
	}
	end := 0
	for end < len(rest) && isIDByte(rest[end]) {
		end++
	}
	if end == 0 || (end < len(rest) && rest[end] != '/') {
		return "", false, false
	}

	deeper = strings.TrimRight(rest[end:], "/") != ""
	return scheme + "://" + canonicalHost(scheme, u) + n.prefix + rest[:end], deeper, true
}

// canonicalHost lower-cases the host and drops the scheme's default port.
func canonicalHost(scheme string, u *url.URL) string {
	host := strings.ToLower(u.Host)
	if port := u.Port(); (scheme == "https" && port == "443") || (scheme == "http" && port == "80") {
		host = strings.TrimSuffix(host, ":"+port)
	}
	return host
}

func isIDByte(c byte) bool {
	return c == '-' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

type textMatch struct {
	pos int
	raw string
}

// Extract finds every song reference in free text, in order of appearance,
// and calls emit with each one that normalizes. Malformed matches are dropped.
func (n *Normalizer) Extract(text, origin string, emit func(string)) {
	if !strings.Contains(text, n.prefix) {
		return
	}

	var matches []textMatch
	for _, loc := range n.absolute.FindAllStringIndex(text, -1) {
		matches = append(matches, textMatch{pos: loc[0], raw: text[loc[0]:loc[1]]})
	}
	for _, loc := range n.hostPath.FindAllStringSubmatchIndex(text, -1) {
		matches = append(matches, textMatch{pos: loc[2], raw: "https://" + text[loc[2]:loc[3]]})
	}
	for _, loc := range n.bare.FindAllStringSubmatchIndex(text, -1) {
		matches = append(matches, textMatch{pos: loc[2], raw: text[loc[2]:loc[3]]})
	}
	slices.SortStableFunc(matches, func(a, b textMatch) int { return a.pos - b.pos })

	for _, m := range matches {
		if loc, ok := n.Normalize(m.raw, origin); ok {
			emit(loc)
		}
	}
}
