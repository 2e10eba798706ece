package author

import (
	"testing"

	"github.com/matsen/paperlib/internal/reference"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		input string
		want  Query
	}{
		{"Matsen", Query{Last: "Matsen"}},
		{"Erick Matsen", Query{First: "Erick", Last: "Matsen"}},
		{"Frederick A Matsen", Query{First: "Frederick A", Last: "Matsen"}},
		{"Matsen, Frederick  A", Query{First: "Frederick A", Last: "Matsen"}},
		{"  Bloom ", Query{Last: "Bloom"}},
		{"", Query{}},
		{"   ", Query{}},
	}

	for _, tt := range tests {
		if got := ParseQuery(tt.input); got != tt.want {
			t.Errorf("ParseQuery(%q) = %+v, want %+v", tt.input, got, tt.want)
		}
	}
}

func TestQuery_Matches(t *testing.T) {
	tim := reference.Author{First: "Timothy C.", Last: "Yu"}
	tests := []struct {
		name  string
		query string
		a     reference.Author
		want  bool
	}{
		{"last only", "Yu", tim, true},
		{"first prefix", "Tim Yu", tim, true},
		{"comma form", "yu, timothy", tim, true},
		{"last is not a prefix match", "Yu", reference.Author{First: "Zhou", Last: "Yujia"}, false},
		{"wrong first", "Tom Yu", tim, false},
		{"diacritics ignored", "Muller", reference.Author{First: "Jörg", Last: "Müller"}, true},
		{"diacritics in query", "Jörg Müller", reference.Author{First: "Jorg", Last: "Muller"}, true},
		{"empty query", "", tim, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseQuery(tt.query).Matches(tt.a); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilter(t *testing.T) {
	papers := []reference.Paper{
		{Title: "A", Authors: []reference.Author{{First: "Erick", Last: "Matsen"}, {First: "Jesse", Last: "Bloom"}}},
		{Title: "B", Authors: []reference.Author{{First: "Erick", Last: "Matsen"}}},
		{Title: "C", Authors: []reference.Author{{First: "Jesse", Last: "Bloomfield"}}},
	}

	got := Filter(papers, ParseQueries([]string{"Matsen", "Bloom", " "}))
	if len(got) != 1 || got[0].Title != "A" {
		t.Errorf("Filter(Matsen AND Bloom) = %+v, want only A", got)
	}

	got = Filter(papers, ParseQueries([]string{"Bloom"}))
	if len(got) != 1 || got[0].Title != "A" {
		t.Errorf("Filter(Bloom) = %+v, want only A", got)
	}

	if got := Filter(papers, nil); len(got) != 3 {
		t.Errorf("Filter(nil) returned %d papers, want 3", len(got))
	}
}
