package analyzer

import (
	"strings"

	"github.com/FranksOps/stylus/internal/storage"
)

// TermMatch is one search term found in a record.
type TermMatch struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
	// Fragments are the prompt keywords (or the title) containing the term.
	Fragments []string `json:"fragments"`
}

// RecordMatch is a record with the terms it matched.
type RecordMatch struct {
	Record  storage.Record `json:"record"`
	Matches []TermMatch    `json:"matches"`
}

// FindTermMatches scans a record's title and prompt for each term,
// case-insensitively.
func FindTermMatches(rec storage.Record, terms []string) []TermMatch {
	lowerTitle := strings.ToLower(rec.Title)
	lowerPrompt := strings.ToLower(rec.Prompt)
	fragments := splitKeywords(rec.Prompt)

	var results []TermMatch
	for _, term := range terms {
		lt := strings.ToLower(strings.TrimSpace(term))
		if lt == "" {
			continue
		}
		count := strings.Count(lowerTitle, lt) + strings.Count(lowerPrompt, lt)
		if count == 0 {
			continue
		}

		var matched []string
		if strings.Contains(lowerTitle, lt) {
			matched = append(matched, rec.Title)
		}
		for _, f := range fragments {
			if strings.Contains(f, lt) {
				matched = append(matched, f)
			}
		}
		results = append(results, TermMatch{Term: term, Count: count, Fragments: matched})
	}
	return results
}

// Search returns records matching any term, or every term when all is set,
// in their stored order.
func Search(records []storage.Record, terms []string, all bool) []RecordMatch {
	want := 0
	for _, t := range terms {
		if strings.TrimSpace(t) != "" {
			want++
		}
	}
	if want == 0 {
		return nil
	}

	var out []RecordMatch
	for _, r := range records {
		m := FindTermMatches(r, terms)
		if len(m) == 0 || (all && len(m) < want) {
			continue
		}
		out = append(out, RecordMatch{Record: r, Matches: m})
	}
	return out
}
