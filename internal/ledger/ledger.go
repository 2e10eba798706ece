// Package ledger tracks which identifiers have been processed into the
// vault so they are not processed twice.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/matsen/paperlib/internal/reference"
)

// ErrCorrupt indicates the state file could not be parsed. Load still
// returns a usable empty ledger alongside it.
var ErrCorrupt = errors.New("processing state file is corrupt")

// state is the on-disk form.
type state struct {
	ProcessedDOIs     []string          `json:"processed_dois"`
	ProcessedArXivIDs []string          `json:"processed_arxiv_ids"`
	ProcessedURLs     []string          `json:"processed_urls"`
	ProcessedFiles    []string          `json:"processed_files"`
	Failed            map[string]string `json:"failed"`
	LastUpdated       time.Time         `json:"last_updated"`
}

// Stats counts processed identifiers by source.
type Stats struct {
	ArXiv  int `json:"arxiv"`
	DOI    int `json:"doi"`
	Web    int `json:"web"`
	Local  int `json:"local"`
	Failed int `json:"failed"`
	Total  int `json:"total"`
}

// Ledger is the in-memory processing state bound to a file. It is safe for
// concurrent use.
type Ledger struct {
	mu          sync.Mutex
	path        string
	sets        map[string]map[string]bool
	failed      map[string]string
	lastUpdated time.Time
	now         func() time.Time
}

func newLedger(path string) *Ledger {
	return &Ledger{
		path: path,
		sets: map[string]map[string]bool{
			reference.SourceArXiv: {},
			reference.SourceDOI:   {},
			reference.SourceWeb:   {},
			reference.SourceLocal: {},
		},
		failed: map[string]string{},
		now:    time.Now,
	}
}

// Load reads the ledger at path. A missing file yields an empty ledger. A
// corrupt file yields an empty ledger and an error wrapping ErrCorrupt.
func Load(path string) (*Ledger, error) {
	l := newLedger(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return l, fmt.Errorf("reading %s: %w", path, err)
	}

	var s state
	if err := json.Unmarshal(data, &s); err != nil {
		return l, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	fill := func(source string, ids []string) {
		for _, id := range ids {
			l.sets[source][id] = true
		}
	}
	fill(reference.SourceDOI, s.ProcessedDOIs)
	fill(reference.SourceArXiv, s.ProcessedArXivIDs)
	fill(reference.SourceWeb, s.ProcessedURLs)
	fill(reference.SourceLocal, s.ProcessedFiles)
	for id, msg := range s.Failed {
		l.failed[id] = msg
	}
	l.lastUpdated = s.LastUpdated
	return l, nil
}

// Path returns the file the ledger saves to.
func (l *Ledger) Path() string {
	return l.path
}

// IsProcessed reports whether id is recorded under any source.
func (l *Ledger) IsProcessed(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, set := range l.sets {
		if set[id] {
			return true
		}
	}
	return false
}

// MarkProcessed records id under source and clears any earlier failure.
// Unknown sources are ignored.
func (l *Ledger) MarkProcessed(id, source string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	set, ok := l.sets[source]
	if !ok {
		return
	}
	set[id] = true
	delete(l.failed, id)
	l.lastUpdated = l.now()
}

// MarkFailed records the error message for id.
func (l *Ledger) MarkFailed(id string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failed[id] = err.Error()
	l.lastUpdated = l.now()
}

// Failed returns a copy of the failure map.
func (l *Ledger) Failed() map[string]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]string, len(l.failed))
	for k, v := range l.failed {
		out[k] = v
	}
	return out
}

// Stats counts processed identifiers.
func (l *Ledger) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := Stats{
		ArXiv:  len(l.sets[reference.SourceArXiv]),
		DOI:    len(l.sets[reference.SourceDOI]),
		Web:    len(l.sets[reference.SourceWeb]),
		Local:  len(l.sets[reference.SourceLocal]),
		Failed: len(l.failed),
	}
	s.Total = s.ArXiv + s.DOI + s.Web + s.Local
	return s
}

// LastUpdated returns when the ledger last changed.
func (l *Ledger) LastUpdated() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastUpdated
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Save writes the ledger atomically via a temp file and rename.
func (l *Ledger) Save() error {
	l.mu.Lock()
	s := state{
		ProcessedDOIs:     sortedKeys(l.sets[reference.SourceDOI]),
		ProcessedArXivIDs: sortedKeys(l.sets[reference.SourceArXiv]),
		ProcessedURLs:     sortedKeys(l.sets[reference.SourceWeb]),
		ProcessedFiles:    sortedKeys(l.sets[reference.SourceLocal]),
		Failed:            l.failed,
		LastUpdated:       l.lastUpdated,
	}
	data, err := json.MarshalIndent(s, "", "  ")
	l.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-state-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	success = true
	return nil
}
