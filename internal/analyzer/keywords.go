// Package analyzer mines the style prompts of collected records: which
// style keywords recur, and which records mention a set of terms.
package analyzer

import (
	"cmp"
	"slices"
	"strings"
	"unicode"

	"github.com/FranksOps/stylus/internal/storage"
)

// KeywordCount is how many prompts use a style keyword.
type KeywordCount struct {
	Keyword string  `json:"keyword"`
	Count   int     `json:"count"`
	Share   float64 `json:"share"`
}

// splitKeywords breaks a prompt into its comma-style fragments, lowercased
// with internal whitespace collapsed.
func splitKeywords(prompt string) []string {
	parts := strings.FieldsFunc(prompt, func(r rune) bool {
		return r == ',' || r == ';' || r == '|' || r == '/' || r == '\n'
	})
	out := parts[:0]
	for _, p := range parts {
		k := strings.Join(strings.Fields(strings.ToLower(p)), " ")
		k = strings.TrimFunc(k, func(r rune) bool { return unicode.IsPunct(r) && r != '&' })
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

// Keywords counts the style keywords across prompts, each keyword at most
// once per prompt, and returns the top n by count (all when n <= 0). Ties are
// ordered alphabetically.
func Keywords(prompts []string, n int) []KeywordCount {
	counts := map[string]int{}
	withPrompt := 0
	for _, p := range prompts {
		seen := map[string]bool{}
		for _, k := range splitKeywords(p) {
			if !seen[k] {
				seen[k] = true
				counts[k]++
			}
		}
		if len(seen) > 0 {
			withPrompt++
		}
	}

	out := make([]KeywordCount, 0, len(counts))
	for k, c := range counts {
		out = append(out, KeywordCount{Keyword: k, Count: c, Share: float64(c) / float64(withPrompt)})
	}
	slices.SortFunc(out, func(a, b KeywordCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Keyword, b.Keyword)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Prompts collects the non-empty prompts of records and songs.
func Prompts(records []storage.Record, songs []storage.SongRecord) []string {
	out := make([]string, 0, len(records)+len(songs))
	for _, r := range records {
		if r.Prompt != "" {
			out = append(out, r.Prompt)
		}
	}
	for _, s := range songs {
		if s.StylePrompt != "" {
			out = append(out, s.StylePrompt)
		}
	}
	return out
}
