// Package template loads, validates, and indexes baseline screen templates.
package template

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// Metadata carries optional provenance about a template.
type Metadata struct {
	App     string `yaml:"app,omitempty" json:"app,omitempty"`
	Version string `yaml:"version,omitempty" json:"version,omitempty"`
	Source  string `yaml:"source,omitempty" json:"source,omitempty"`
}

// Template is a declarative baseline describing an expected screen.
type Template struct {
	ScreenID           string    `yaml:"screen_id" json:"screen_id"`
	RequiredNodes      []string  `yaml:"required_nodes,omitempty" json:"required_nodes,omitempty"`
	StructureSignature string    `yaml:"structure_signature,omitempty" json:"structure_signature,omitempty"`
	ValidTransitions   []string  `yaml:"valid_transitions,omitempty" json:"valid_transitions,omitempty"`
	Metadata           *Metadata `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// Validate enforces the structural requirements of a template and returns
// every violation joined into one error ("; "-separated), or nil.
func Validate(t *Template) error {
	errs := ValidateWithErrors(t)
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s", strings.Join(errs, "; "))
}

// ValidateWithErrors returns every diagnostic, not just the first.
func ValidateWithErrors(t *Template) []string {
	var errs []string
	if t == nil {
		return []string{"template is nil"}
	}
	if strings.TrimSpace(t.ScreenID) == "" {
		errs = append(errs, "screen_id must be a non-empty string")
	}
	for _, tr := range t.ValidTransitions {
		if tr == "" {
			continue
		}
		if !strings.Contains(tr, " -> ") {
			errs = append(errs, fmt.Sprintf("valid_transitions entry %q must be empty or contain \" -> \"", tr))
		}
	}
	if t.Metadata != nil && t.Metadata.Version != "" {
		if _, err := semver.NewVersion(t.Metadata.Version); err != nil {
			errs = append(errs, fmt.Sprintf("metadata.version %q is not a valid semantic version: %v", t.Metadata.Version, err))
		}
	}
	return errs
}

// Store loads templates from a directory and indexes them by screen_id.
// Reload atomically swaps the index; readers holding a previous snapshot
// are unaffected.
type Store struct {
	mu  sync.RWMutex
	dir string
	idx map[string]*Template
}

// NewStore constructs an empty store rooted at dir. Call Reload to
// populate it from disk.
func NewStore(dir string) *Store {
	return &Store{dir: dir, idx: map[string]*Template{}}
}

// Reload re-reads every *.yaml / *.yml file under the store's directory,
// validates each, and atomically swaps the index. A template that fails
// validation is skipped and its diagnostics returned, but does not abort
// the reload of the other templates.
func (s *Store) Reload() (errs map[string][]string, err error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("template: glob: %w", err)
	}
	ymlMatches, err := filepath.Glob(filepath.Join(s.dir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("template: glob: %w", err)
	}
	matches = append(matches, ymlMatches...)

	newIdx := map[string]*Template{}
	diagnostics := map[string][]string{}

	for _, path := range matches {
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			diagnostics[path] = []string{readErr.Error()}
			continue
		}
		if shapeErr := ValidateShape(data); shapeErr != nil {
			diagnostics[path] = []string{shapeErr.Error()}
			continue
		}
		var t Template
		if unmarshalErr := yaml.Unmarshal(data, &t); unmarshalErr != nil {
			diagnostics[path] = []string{unmarshalErr.Error()}
			continue
		}
		if verrs := ValidateWithErrors(&t); len(verrs) > 0 {
			diagnostics[path] = verrs
			continue
		}
		newIdx[t.ScreenID] = &t
	}

	s.mu.Lock()
	s.idx = newIdx
	s.mu.Unlock()

	if len(diagnostics) > 0 {
		return diagnostics, nil
	}
	return nil, nil
}

// Get returns the template for screenID, if loaded.
func (s *Store) Get(screenID string) (*Template, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.idx[screenID]
	return t, ok
}

// List returns every loaded screen_id.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.idx))
	for id := range s.idx {
		out = append(out, id)
	}
	return out
}

// All returns a snapshot slice of every loaded template.
func (s *Store) All() []*Template {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Template, 0, len(s.idx))
	for _, t := range s.idx {
		out = append(out, t)
	}
	return out
}

// Count returns the number of loaded templates.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.idx)
}

// Dir returns the directory the store loads templates from.
func (s *Store) Dir() string {
	return s.dir
}
