// Package tracker keeps running notes about a project: decisions, things
// built, open questions and their resolutions. Each subsystem has its own
// JSON state file.
package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// ProjectFile is the state file of the main project.
const ProjectFile = "project.json"

// Kind is the section an entry is added to.
type Kind string

const (
	KindDecided  Kind = "decided"
	KindBuilt    Kind = "built"
	KindQuestion Kind = "question"
	KindFile     Kind = "file"
	KindContext  Kind = "context"
	KindResolve  Kind = "resolve"
)

// Kinds lists the kinds accepted by Add.
var Kinds = []Kind{KindDecided, KindBuilt, KindQuestion, KindFile, KindContext}

// SubsystemPattern is the pattern for valid subsystem names.
var SubsystemPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

var (
	ErrUnknownKind      = errors.New("unknown entry kind")
	ErrInvalidSubsystem = errors.New("subsystem must be lowercase alphanumeric, hyphens, underscores; must start with alphanumeric")
	ErrEmptyText        = errors.New("entry text is required")
	ErrNoMatch          = errors.New("no open question matches")
)

// AmbiguousError is returned by Resolve when several questions match.
type AmbiguousError struct {
	Query   string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("%d open questions match %q; be more specific", len(e.Matches), e.Query)
}

// State is one subsystem's record.
type State struct {
	Subsystem string   `json:"subsystem,omitempty"`
	Decided   []string `json:"what_we_decided"`
	Built     []string `json:"what_we_built"`
	Questions []string `json:"what_we_need_to_decide"`
	Resolved  []string `json:"what_we_resolved"`
	Files     []string `json:"important_files"`
	Context   []string `json:"context"`
}

// ParseKind splits "decided:tracking" into its kind and subsystem. The
// subsystem is empty for the main project.
func ParseKind(arg string) (Kind, string, error) {
	name, subsystem, _ := strings.Cut(strings.TrimSpace(arg), ":")
	kind := Kind(strings.ToLower(name))

	if kind != KindResolve && !validKind(kind) {
		return "", "", fmt.Errorf("%w %q (valid: %s)", ErrUnknownKind, name, kindList())
	}
	if subsystem != "" && !SubsystemPattern.MatchString(subsystem) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidSubsystem, subsystem)
	}
	return kind, subsystem, nil
}

func validKind(k Kind) bool {
	for _, v := range Kinds {
		if v == k {
			return true
		}
	}
	return false
}

func kindList() string {
	names := make([]string, len(Kinds))
	for i, k := range Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

// Filename returns the state file name of subsystem.
func Filename(subsystem string) string {
	if subsystem == "" {
		return ProjectFile
	}
	return subsystem + "-state.json"
}

// Load reads the state of subsystem from dir. A missing file yields an
// empty state.
func Load(dir, subsystem string) (*State, error) {
	path := filepath.Join(dir, Filename(subsystem))
	s := &State{Subsystem: subsystem}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if s.Subsystem == "" {
		s.Subsystem = subsystem
	}
	return s, nil
}

// Save writes the state into dir.
func (s *State) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(s.normalized(), "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(dir, Filename(s.Subsystem))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming %s: %w", tmp, err)
	}
	return nil
}

// normalized replaces nil sections with empty ones so the file always
// carries every key.
func (s *State) normalized() *State {
	c := *s
	for _, sec := range []*[]string{&c.Decided, &c.Built, &c.Questions, &c.Resolved, &c.Files, &c.Context} {
		if *sec == nil {
			*sec = []string{}
		}
	}
	return &c
}

func entry(date time.Time, text string) string {
	return date.Format("2006-01-02") + " - " + text
}

// Add appends a dated entry to the section for kind and returns it.
func (s *State) Add(kind Kind, text string, date time.Time) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}

	var section *[]string
	switch kind {
	case KindDecided:
		section = &s.Decided
	case KindBuilt:
		section = &s.Built
	case KindQuestion:
		section = &s.Questions
	case KindFile:
		section = &s.Files
	case KindContext:
		section = &s.Context
	default:
		return "", fmt.Errorf("%w %q (valid: %s)", ErrUnknownKind, kind, kindList())
	}

	e := entry(date, text)
	*section = append(*section, e)
	return e, nil
}

// Resolve moves the one open question containing partial
// (case-insensitively) to the resolved list, recording decision. It
// returns the resolution entry.
func (s *State) Resolve(partial, decision string, date time.Time) (string, error) {
	query := strings.ToLower(strings.TrimSpace(partial))
	if query == "" || strings.TrimSpace(decision) == "" {
		return "", ErrEmptyText
	}

	var idx []int
	for i, q := range s.Questions {
		if strings.Contains(strings.ToLower(q), query) {
			idx = append(idx, i)
		}
	}

	switch len(idx) {
	case 0:
		return "", fmt.Errorf("%w %q", ErrNoMatch, partial)
	case 1:
	default:
		matches := make([]string, len(idx))
		for i, j := range idx {
			matches[i] = s.Questions[j]
		}
		return "", &AmbiguousError{Query: partial, Matches: matches}
	}

	question := s.Questions[idx[0]]
	text := question
	if _, rest, ok := strings.Cut(question, " - "); ok {
		text = rest
	}

	resolution := entry(date, text+" → Decided: "+strings.TrimSpace(decision))
	s.Questions = append(s.Questions[:idx[0]], s.Questions[idx[0]+1:]...)
	s.Resolved = append(s.Resolved, resolution)
	return resolution, nil
}

// Subsystems lists the subsystems with state files in dir, the main
// project first as "".
func Subsystems(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var out []string
	hasProject := false
	for _, e := range entries {
		name := e.Name()
		switch {
		case e.IsDir():
		case name == ProjectFile:
			hasProject = true
		case strings.HasSuffix(name, "-state.json"):
			out = append(out, strings.TrimSuffix(name, "-state.json"))
		}
	}
	sort.Strings(out)
	if hasProject {
		out = append([]string{""}, out...)
	}
	return out, nil
}
