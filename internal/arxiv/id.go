// Package arxiv fetches paper metadata and PDFs from arXiv.
package arxiv

import (
	"regexp"
	"strings"
)

var (
	newStyleID = regexp.MustCompile(`(\d{4}\.\d{4,5})(v\d+)?`)
	oldStyleID = regexp.MustCompile(`([a-z\-]+(?:\.[A-Z]+)?/\d{7})(v\d+)?`)
	urlID      = regexp.MustCompile(`arxiv\.org/(?:abs|pdf)/([^\s?#]+)`)
	schemeID   = regexp.MustCompile(`(?i)^arxiv:`)
)

// ParseID extracts an arXiv identifier without its version suffix.
// Accepted forms include "2312.12345", "1706.03762v2", "arXiv:1706.03762",
// "hep-th/9901001", and abs or pdf URLs on arxiv.org.
func ParseID(text string) (string, bool) {
	text = strings.TrimSpace(text)

	if strings.Contains(text, "arxiv.org") {
		if m := urlID.FindStringSubmatch(text); m != nil {
			text = strings.Replace(m[1], ".pdf", "", 1)
		}
	}
	text = schemeID.ReplaceAllString(text, "")

	if m := newStyleID.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	if m := oldStyleID.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	return "", false
}

// PDFFilename is the vault file name for an arXiv paper's PDF.
func PDFFilename(id string) string {
	return "arxiv_" + strings.ReplaceAll(id, "/", "_") + ".pdf"
}
