package reference

import "strings"

// Author represents a paper author.
type Author struct {
	First string `json:"first,omitempty"` // First/given name(s)
	Last  string `json:"last"`            // Last/family name
}

// ParseAuthor parses "Last, First" or "First Last" into an Author.
// A single token is treated as a last name.
func ParseAuthor(name string) Author {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return Author{}
	}

	if last, first, ok := strings.Cut(name, ","); ok {
		return Author{First: strings.TrimSpace(first), Last: strings.TrimSpace(last)}
	}

	idx := strings.LastIndex(name, " ")
	if idx == -1 {
		return Author{Last: name}
	}
	return Author{First: name[:idx], Last: name[idx+1:]}
}

// String formats the author as "Last, First".
func (a Author) String() string {
	if a.First == "" {
		return a.Last
	}
	return a.Last + ", " + a.First
}

// FullName formats the author as "First Last".
func (a Author) FullName() string {
	if a.First == "" {
		return a.Last
	}
	return a.First + " " + a.Last
}

// AuthorNames formats every author with String.
func AuthorNames(authors []Author) []string {
	names := make([]string, len(authors))
	for i, a := range authors {
		names[i] = a.String()
	}
	return names
}
