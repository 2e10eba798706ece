// Package author matches author search queries against paper bylines.
package author

import (
	"strings"
	"unicode"

	"github.com/matsen/paperlib/internal/reference"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Query is a parsed author filter. Last is required for a query to match
// anything.
type Query struct {
	First string
	Last  string
}

// ParseQuery reads "Last", "First Last" or "Last, First". With several
// space-separated words the final word is the last name.
func ParseQuery(input string) Query {
	input = strings.TrimSpace(input)
	if input == "" {
		return Query{}
	}
	if last, first, ok := strings.Cut(input, ","); ok && strings.TrimSpace(last) != "" {
		return Query{First: strings.Join(strings.Fields(first), " "), Last: strings.TrimSpace(last)}
	}
	words := strings.Fields(input)
	n := len(words)
	return Query{First: strings.Join(words[:n-1], " "), Last: words[n-1]}
}

// ParseQueries parses each non-empty input.
func ParseQueries(inputs []string) []Query {
	var qs []Query
	for _, in := range inputs {
		if q := ParseQuery(in); q.Last != "" {
			qs = append(qs, q)
		}
	}
	return qs
}

// IsZero reports whether the query is empty.
func (q Query) IsZero() bool { return q.Last == "" }

// Matches compares the last name exactly and the first name by prefix,
// ignoring case and diacritics. "Tim Yu" matches "Timothy C. Yu" but "Yu"
// does not match "Yujia Zhou".
func (q Query) Matches(a reference.Author) bool {
	if q.IsZero() || fold(q.Last) != fold(a.Last) {
		return false
	}
	return q.First == "" || strings.HasPrefix(fold(a.First), fold(q.First))
}

// MatchesAny reports whether q matches one of the authors.
func (q Query) MatchesAny(authors []reference.Author) bool {
	for _, a := range authors {
		if q.Matches(a) {
			return true
		}
	}
	return false
}

// AllMatch reports whether every query matches some author.
func AllMatch(queries []Query, authors []reference.Author) bool {
	for _, q := range queries {
		if !q.MatchesAny(authors) {
			return false
		}
	}
	return true
}

// Filter keeps the papers whose authors satisfy every query.
func Filter(papers []reference.Paper, queries []Query) []reference.Paper {
	if len(queries) == 0 {
		return papers
	}
	kept := papers[:0:0]
	for _, p := range papers {
		if AllMatch(queries, p.Authors) {
			kept = append(kept, p)
		}
	}
	return kept
}

func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}
