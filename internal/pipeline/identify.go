package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/matsen/paperlib/internal/arxiv"
	"github.com/matsen/paperlib/internal/reference"
	"github.com/matsen/paperlib/internal/web"
)

// DOIResolverURL resolves bare DOIs to the publisher's landing page.
const DOIResolverURL = "https://doi.org/"

var bareDOI = regexp.MustCompile(`^(?i:doi:\s*)?(10\.\d{4,9}/\S+)$`)

// Target is a classified identifier.
type Target struct {
	// Input is the identifier as given.
	Input string `json:"input"`
	// Key is the normalized form recorded in the ledger.
	Key string `json:"key"`
	// Source is one of the reference.Source constants.
	Source string `json:"source"`
}

// Classify decides how an identifier is fetched. Existing local PDFs are
// checked first so that file names containing arXiv-like numbers are not
// mistaken for arXiv IDs.
func Classify(identifier string) (Target, error) {
	input := strings.TrimSpace(identifier)
	if input == "" {
		return Target{}, fmt.Errorf("%w: empty identifier", ErrUnknownIdentifier)
	}

	if strings.EqualFold(filepath.Ext(input), ".pdf") && !web.IsURL(input) {
		if info, err := os.Stat(input); err == nil && !info.IsDir() {
			abs, err := filepath.Abs(input)
			if err != nil {
				return Target{}, fmt.Errorf("resolving %s: %w", input, err)
			}
			return Target{Input: input, Key: abs, Source: reference.SourceLocal}, nil
		}
	}

	if web.IsURL(input) {
		if strings.Contains(strings.ToLower(input), "arxiv.org/") {
			if id, ok := arxiv.ParseID(input); ok {
				return Target{Input: input, Key: id, Source: reference.SourceArXiv}, nil
			}
		}
		u := input
		if strings.HasPrefix(u, "www.") {
			u = "https://" + u
		}
		return Target{Input: input, Key: u, Source: reference.SourceWeb}, nil
	}

	if m := bareDOI.FindStringSubmatch(input); m != nil {
		return Target{Input: input, Key: strings.ToLower(m[1]), Source: reference.SourceDOI}, nil
	}

	if id, ok := arxiv.ParseID(input); ok {
		return Target{Input: input, Key: id, Source: reference.SourceArXiv}, nil
	}

	if strings.EqualFold(filepath.Ext(input), ".pdf") {
		return Target{}, fmt.Errorf("%w: %s", ErrFileNotFound, input)
	}
	return Target{}, fmt.Errorf("%w: %s (supported: arXiv ID or URL, DOI, local PDF path, web URL)",
		ErrUnknownIdentifier, input)
}
