package query

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/oxhq/codegraph/lang"
)

// ErrQueryNotFound is returned when a caller asks for an unregistered query
// name. This is a programmer error, not a runtime condition.
var ErrQueryNotFound = errors.New("query not found")

// Entry is one registered query: a named tree-sitter pattern, the languages
// it applies to, and the processor that types its matches.
type Entry struct {
	Name      string
	Languages []lang.Language
	Priority  int
	Pattern   string
	Processor Processor
	ResultKey string
}

// AppliesTo reports whether the entry is registered for the language.
func (e Entry) AppliesTo(l lang.Language) bool {
	for _, candidate := range e.Languages {
		if candidate == l {
			return true
		}
	}
	return false
}

type compiledKey struct {
	name     string
	language lang.Language
}

// Registry holds query entries keyed by name and caches compiled patterns
// per (name, language).
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]Entry
	compiled map[compiledKey]*sitter.Query
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries:  make(map[string]Entry),
		compiled: make(map[compiledKey]*sitter.Query),
	}
}

// Register inserts or replaces an entry. Replacing drops any compiled
// patterns cached for the old entry.
func (r *Registry) Register(e Entry) error {
	if e.Name == "" {
		return fmt.Errorf("query entry has no name")
	}
	if len(e.Languages) == 0 {
		return fmt.Errorf("query %q has no languages", e.Name)
	}
	if e.Processor == nil {
		return fmt.Errorf("query %q has no processor", e.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range e.Languages {
		delete(r.compiled, compiledKey{e.Name, l})
	}
	r.entries[e.Name] = e
	return nil
}

// Get returns the entry for name.
func (r *Registry) Get(name string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrQueryNotFound, name)
	}
	return e, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// QueriesFor returns all entries registered for the language, ordered by
// descending priority then name so execution order is deterministic.
func (r *Registry) QueriesFor(l lang.Language) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Entry
	for _, e := range r.entries {
		if e.AppliesTo(l) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Names returns all registered query names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// compile returns the compiled pattern for (entry, language), caching it.
func (r *Registry) compile(e Entry, l lang.Language) (*sitter.Query, error) {
	key := compiledKey{e.Name, l}

	r.mu.RLock()
	q, ok := r.compiled[key]
	r.mu.RUnlock()
	if ok {
		return q, nil
	}

	grammar := l.Grammar()
	if grammar == nil {
		return nil, fmt.Errorf("language %q has no tree-sitter grammar", l)
	}
	q, err := sitter.NewQuery([]byte(e.Pattern), grammar)
	if err != nil {
		return nil, fmt.Errorf("compiling query %q for %s: %w", e.Name, l, err)
	}

	r.mu.Lock()
	r.compiled[key] = q
	r.mu.Unlock()
	return q, nil
}
