package main

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/FranksOps/stylus/internal/export"
	"github.com/FranksOps/stylus/internal/messaging"
	"github.com/FranksOps/stylus/internal/scraper"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#4ECDC4")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)
)

// newTable returns a bordered table with the shared header style.
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// truncate shortens s to n runes with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

// notice explains what the user can do about err, or returns "".
func notice(err error) string {
	var status *scraper.StatusError
	switch {
	case errors.Is(err, messaging.ErrNoListener):
		return "Nothing is listening on the other side. Load a suno.com page (or pass a saved snapshot) and retry, or start `stylus serve` for log commands."
	case errors.Is(err, scraper.ErrChallenged):
		return "suno.com answered with a bot challenge. Retry with --loader render, or pass a logged-in session cookie with --cookie."
	case errors.Is(err, scraper.ErrDisallowed):
		return "robots.txt disallows this page. Set fetch.respect_robots to false only if you are allowed to fetch it."
	case errors.Is(err, export.ErrNoClipboard):
		return "No clipboard utility found. Install xclip, xsel or wl-clipboard, or use `stylus export` instead."
	case errors.As(err, &status) && (status.StatusCode == http.StatusUnauthorized || status.StatusCode == http.StatusForbidden):
		return "The page requires a signed-in session. Pass your suno.com Cookie header with --cookie."
	}
	return ""
}
