// Package query holds the registry of named tree-sitter query patterns, the
// engine that executes them against parsed trees, and the custom-key mapper
// that composes query results into caller-shaped bundles.
package query

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/oxhq/codegraph/lang"
)

// Result-type keys. Every registered query declares the shape of the
// records its processor emits by naming one of these.
const (
	ResultImport      = "import"
	ResultExport      = "export"
	ResultDeclaration = "declaration"
	ResultCall        = "call"
	ResultRelation    = "relation"
	ResultHeading     = "heading"
	ResultReference   = "reference"
)

// Location is a half-open source span in one-based lines and zero-based
// columns, the way tree-sitter reports points.
type Location struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn"`
	EndLine     int `json:"endLine"`
	EndColumn   int `json:"endColumn"`
}

// Record is one typed extraction result. Which fields are populated depends
// on the query's result-type key: imports carry Specifier, declarations
// carry Name/Symbol kind, relations carry Name and Target.
type Record struct {
	ResultKey string            `json:"resultKey"`
	Name      string            `json:"name,omitempty"`
	Specifier string            `json:"specifier,omitempty"`
	Symbol    string            `json:"symbol,omitempty"`
	Scope     string            `json:"scope,omitempty"`
	Target    string            `json:"target,omitempty"`
	Location  Location          `json:"location"`
	Text      string            `json:"text,omitempty"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

// Match is one query match handed to a processor: the capture nodes keyed by
// capture name. The source being parsed travels in Context.
type Match struct {
	Captures map[string]*sitter.Node
}

// Capture returns the named capture's node, or nil.
func (m Match) Capture(name string) *sitter.Node {
	return m.Captures[name]
}

// Text returns the named capture's source text, or "".
func (m Match) Text(name string, source []byte) string {
	n := m.Captures[name]
	if n == nil {
		return ""
	}
	return n.Content(source)
}

// Context carries per-execution state into processors.
type Context struct {
	Path     string
	Language lang.Language
	Source   []byte
}

// Processor turns raw matches into typed records. Processors must be
// deterministic: the same matches and context produce the same records.
type Processor func(matches []Match, ctx Context) []Record

// LocationOf converts a node's span into a Location.
func LocationOf(n *sitter.Node) Location {
	if n == nil {
		return Location{}
	}
	return Location{
		StartLine:   int(n.StartPoint().Row) + 1,
		StartColumn: int(n.StartPoint().Column),
		EndLine:     int(n.EndPoint().Row) + 1,
		EndColumn:   int(n.EndPoint().Column),
	}
}
