package questionnaire

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store exposes template retrieval for the orchestrator and handlers.
type Store interface {
	List() []Template
	FindByID(id string) (Template, bool)
	FindByCondition(condition string) (Template, bool)
}

// MemoryStore implements Store over an immutable in-memory slice.
type MemoryStore struct {
	items []Template
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied templates.
func NewMemoryStore(items []Template) *MemoryStore {
	return &MemoryStore{items: append([]Template(nil), items...)}
}

// List returns the loaded templates.
func (s *MemoryStore) List() []Template {
	return append([]Template(nil), s.items...)
}

// FindByID looks up a template by identifier.
func (s *MemoryStore) FindByID(id string) (Template, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Template{}, false
}

// FindByCondition picks the template for a patient condition tag, falling
// back to the "general" template when no condition-specific one exists.
func (s *MemoryStore) FindByCondition(condition string) (Template, bool) {
	var general Template
	var haveGeneral bool
	for _, item := range s.items {
		if strings.EqualFold(item.Condition, condition) {
			return item, true
		}
		if item.Condition == "general" {
			general, haveGeneral = item, true
		}
	}
	return general, haveGeneral
}

// LoadDir reads every *.yaml template under dir. Templates failing validation
// reject the whole load so a misconfigured deploy fails fast.
func LoadDir(dir string) ([]Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read template dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := filepath.Ext(e.Name()); ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	templates := make([]Template, 0, len(names))
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", name, err)
		}
		var t Template
		if err := yaml.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("template %s: %w", name, err)
		}
		templates = append(templates, t)
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("no templates found in %s", dir)
	}
	return templates, nil
}
