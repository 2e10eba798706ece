// Package citation scores candidate bibliography entries for plausibility.
//
// A structured-document parser regularly mistakes pseudocode, equations,
// figure captions and author biographies for references. Score assigns each
// candidate a garbage score in [0,100]; callers discard anything above
// DiscardThreshold.
package citation

// Entry is one candidate reference as recovered by the document parser.
// Zero values mean the field was not parsed: Year == 0 is an absent year.
type Entry struct {
	Title   string   `json:"title,omitempty"`
	Authors []string `json:"authors,omitempty"`
	Year    int      `json:"year,omitempty"`
	Venue   string   `json:"venue,omitempty"`
	Volume  string   `json:"volume,omitempty"`
	Issue   string   `json:"issue,omitempty"`
	Pages   string   `json:"pages,omitempty"`
	DOI     string   `json:"doi,omitempty"`
	Raw     string   `json:"raw_text,omitempty"`
}

// HasAuthors reports whether at least one author name was parsed.
func (e Entry) HasAuthors() bool {
	return len(e.Authors) > 0
}
