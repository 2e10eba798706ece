package export

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/matsen/paperlib/internal/reference"
)

var (
	entryStartRegex = regexp.MustCompile(`^\s*@\w+\s*\{\s*([^,\s]+)\s*,`)
	doiFieldRegex   = regexp.MustCompile(`(?i)^\s*doi\s*=\s*[\{"]([^\}"]+)[\}"]`)
)

// BibIndex records the keys and DOIs already present in a .bib file.
type BibIndex struct {
	keys map[string]bool
	dois map[string]string
}

// NewBibIndex creates an empty index.
func NewBibIndex() *BibIndex {
	return &BibIndex{
		keys: make(map[string]bool),
		dois: make(map[string]string),
	}
}

// Len is the number of entries indexed.
func (idx *BibIndex) Len() int {
	return len(idx.keys)
}

// Add records an entry.
func (idx *BibIndex) Add(key, doi string) {
	idx.keys[key] = true
	if d := normalizeDOI(doi); d != "" {
		idx.dois[d] = key
	}
}

// Contains reports whether p is already present. DOI is the primary match;
// the citation key is the fallback.
func (idx *BibIndex) Contains(p reference.Paper) bool {
	if d := normalizeDOI(p.DOI); d != "" {
		if _, ok := idx.dois[d]; ok {
			return true
		}
	}
	return idx.keys[CiteKey(p)]
}

// LoadBibIndex indexes an existing .bib file. A missing file yields an
// empty index.
func LoadBibIndex(path string) (*BibIndex, error) {
	idx := NewBibIndex()

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return idx, nil
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var current string
	for scanner.Scan() {
		line := scanner.Text()
		if m := entryStartRegex.FindStringSubmatch(line); m != nil {
			current = m[1]
			idx.Add(current, "")
			continue
		}
		if m := doiFieldRegex.FindStringSubmatch(line); m != nil && current != "" {
			idx.Add(current, m[1])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return idx, nil
}

// normalizeDOI lowercases a DOI and strips resolver prefixes.
func normalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "doi.org/", "doi:"} {
		if len(doi) >= len(prefix) && strings.EqualFold(doi[:len(prefix)], prefix) {
			doi = doi[len(prefix):]
			break
		}
	}
	return strings.ToLower(strings.TrimSpace(doi))
}

// AppendBibTeX appends the papers not already in the .bib file at path and
// returns how many were written. Duplicates within papers are written once.
func AppendBibTeX(path string, papers []reference.Paper) (int, error) {
	idx, err := LoadBibIndex(path)
	if err != nil {
		return 0, err
	}

	var fresh []reference.Paper
	for _, p := range papers {
		if idx.Contains(p) {
			continue
		}
		idx.Add(CiteKey(p), p.DOI)
		fresh = append(fresh, p)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", path, err)
	}

	_, werr := file.WriteString("\n" + ToBibTeXList(fresh))
	cerr := file.Close()
	if werr != nil {
		return 0, fmt.Errorf("writing %s: %w", path, werr)
	}
	if cerr != nil {
		return 0, fmt.Errorf("closing %s: %w", path, cerr)
	}
	return len(fresh), nil
}
