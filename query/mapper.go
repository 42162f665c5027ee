package query

import (
	"fmt"
	"sort"

	"github.com/oxhq/codegraph/lang"
	"github.com/oxhq/codegraph/parser"
)

// Mapping composes registered queries under caller-chosen keys. The
// predefined mappings below are plain values of this type, not privileged.
type Mapping map[string]string

// InvalidEntry describes one rejected mapping entry.
type InvalidEntry struct {
	UserKey   string
	QueryName string
	Reason    string
}

func (e InvalidEntry) String() string {
	return fmt.Sprintf("%s -> %s: %s", e.UserKey, e.QueryName, e.Reason)
}

// KeyMapper executes mappings against parsed trees.
type KeyMapper struct {
	engine *Engine
}

// NewKeyMapper wires a mapper to an engine.
func NewKeyMapper(engine *Engine) *KeyMapper {
	return &KeyMapper{engine: engine}
}

// Validate checks that every query in the mapping exists and applies to the
// language. A nil return means the mapping is executable.
func (m *KeyMapper) Validate(mapping Mapping, language lang.Language) []InvalidEntry {
	var invalid []InvalidEntry
	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, userKey := range keys {
		name := mapping[userKey]
		entry, err := m.engine.Registry().Get(name)
		if err != nil {
			invalid = append(invalid, InvalidEntry{userKey, name, "not registered"})
			continue
		}
		if !entry.AppliesTo(language) {
			invalid = append(invalid, InvalidEntry{userKey, name, fmt.Sprintf("not registered for %s", language)})
		}
	}
	return invalid
}

// Execute validates the mapping and runs each query, returning records
// keyed by the caller's field names.
func (m *KeyMapper) Execute(mapping Mapping, res *parser.Result) (map[string][]Record, error) {
	if invalid := m.Validate(mapping, res.Language); len(invalid) > 0 {
		return nil, fmt.Errorf("invalid mapping: %v", invalid)
	}
	out := make(map[string][]Record, len(mapping))
	for userKey, name := range mapping {
		records, err := m.engine.Execute(name, res)
		if err != nil {
			return nil, fmt.Errorf("mapping key %q: %w", userKey, err)
		}
		out[userKey] = records
	}
	return out, nil
}

// ExecuteBestEffort runs each mapping entry, collecting a warning instead
// of failing when one query errors. Unregistered or mismatched entries are
// reported the same way; their keys get empty result lists.
func (m *KeyMapper) ExecuteBestEffort(mapping Mapping, res *parser.Result) (map[string][]Record, []string) {
	out := make(map[string][]Record, len(mapping))
	var warnings []string
	for userKey, name := range mapping {
		records, err := m.engine.Execute(name, res)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("mapping key %q (%s): %v", userKey, name, err))
			out[userKey] = nil
			continue
		}
		out[userKey] = records
	}
	return out, warnings
}

// ModuleStructure is the predefined mapping used for per-file dependency
// analysis: imports and declarations, plus exports for TypeScript and
// JavaScript.
func ModuleStructure(l lang.Language) Mapping {
	prefix := namePrefix(l)
	m := Mapping{
		"imports":      prefix + "-import-sources",
		"declarations": prefix + "-declarations",
	}
	switch l {
	case lang.TypeScript, lang.JavaScript:
		m["exports"] = prefix + "-export-declarations"
	}
	return m
}

// ClassAnalysis is the predefined mapping for type-hierarchy extraction.
// Go carries no heritage clauses, so its mapping is declarations only.
func ClassAnalysis(l lang.Language) Mapping {
	prefix := namePrefix(l)
	m := Mapping{"declarations": prefix + "-declarations"}
	switch l {
	case lang.TypeScript, lang.JavaScript, lang.Java, lang.Python:
		m["relations"] = prefix + "-class-relations"
	}
	return m
}

// AnalysisMapping is the full mapping the file dependency analyzer
// executes: module structure plus class relations and call sites where the
// language has them.
func AnalysisMapping(l lang.Language) Mapping {
	m := ModuleStructure(l)
	prefix := namePrefix(l)
	m["calls"] = prefix + "-call-expressions"
	switch l {
	case lang.TypeScript, lang.JavaScript, lang.Java, lang.Python:
		m["relations"] = prefix + "-class-relations"
	}
	return m
}

func namePrefix(l lang.Language) string {
	switch l {
	case lang.TypeScript:
		return "ts"
	case lang.JavaScript:
		return "js"
	case lang.Java:
		return "java"
	case lang.Python:
		return "py"
	case lang.Go:
		return "go"
	default:
		return string(l)
	}
}
