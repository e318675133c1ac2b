package scraper

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrChallenged means the site answered with a bot challenge or a login
	// wall instead of the requested page. Retrying will not help.
	ErrChallenged = errors.New("challenged by site")
	// ErrDisallowed means robots.txt forbids the URL for our user agent.
	ErrDisallowed = errors.New("disallowed by robots.txt")
)

// StatusError is returned for HTTP error statuses that are not challenges.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Temporary reports whether a later retry might succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsTemporary reports whether err wraps a StatusError worth retrying.
func IsTemporary(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Temporary()
}
