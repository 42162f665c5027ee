package query

import (
	"errors"
	"fmt"
	"log/slog"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/oxhq/codegraph/parser"
)

// ErrLanguageMismatch is returned when a query is executed against a tree
// whose language is not in the query's language set.
var ErrLanguageMismatch = errors.New("language mismatch")

// Engine executes registered queries against parsed trees.
type Engine struct {
	registry *Registry
	logger   *slog.Logger
}

// NewEngine wires an engine to a registry.
func NewEngine(registry *Registry, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{registry: registry, logger: logger}
}

// Registry returns the engine's registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Execute runs one named query against the parse result and returns its
// typed records.
func (e *Engine) Execute(name string, res *parser.Result) ([]Record, error) {
	entry, err := e.registry.Get(name)
	if err != nil {
		return nil, err
	}
	if !entry.AppliesTo(res.Language) {
		return nil, fmt.Errorf("%w: query %q does not apply to %s", ErrLanguageMismatch, name, res.Language)
	}
	return e.run(entry, res)
}

// ExecuteForLanguage runs every query registered for the tree's language.
// Execution is best-effort per query: a failing query contributes an empty
// result list under its name and a warning; siblings still run.
func (e *Engine) ExecuteForLanguage(res *parser.Result) (map[string][]Record, []string) {
	results := make(map[string][]Record)
	var warnings []string
	for _, entry := range e.registry.QueriesFor(res.Language) {
		records, err := e.run(entry, res)
		if err != nil {
			e.logger.Warn("query failed", "query", entry.Name, "path", res.Path, "error", err)
			warnings = append(warnings, fmt.Sprintf("query %s: %v", entry.Name, err))
			results[entry.Name] = nil
			continue
		}
		results[entry.Name] = records
	}
	return results, warnings
}

func (e *Engine) run(entry Entry, res *parser.Result) (records []Record, err error) {
	q, err := e.registry.compile(entry, res.Language)
	if err != nil {
		return nil, err
	}

	matches := collectMatches(q, res.Tree.RootNode(), res.Source)

	// A panicking processor is a ProcessorFailure: logged by the caller,
	// empty result, siblings unaffected.
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = fmt.Errorf("processor for %q panicked: %v", entry.Name, r)
		}
	}()

	ctx := Context{Path: res.Path, Language: res.Language, Source: res.Source}
	out := entry.Processor(matches, ctx)
	for i := range out {
		if out[i].ResultKey == "" {
			out[i].ResultKey = entry.ResultKey
		}
	}
	return out, nil
}

func collectMatches(q *sitter.Query, root *sitter.Node, source []byte) []Match {
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, root)

	var matches []Match
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		m = qc.FilterPredicates(m, source)
		if len(m.Captures) == 0 {
			continue
		}
		captures := make(map[string]*sitter.Node, len(m.Captures))
		for _, c := range m.Captures {
			captures[q.CaptureNameForId(c.Index)] = c.Node
		}
		matches = append(matches, Match{Captures: captures})
	}
	return matches
}
