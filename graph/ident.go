// Package graph owns the persisted knowledge graph: stable node
// identifiers, the edge-type hierarchy, the upsert-based store, the
// inference engine and the read-side facade.
package graph

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/oxhq/codegraph/models"
)

const (
	identSep        = "::"
	librarySentinel = "library"

	// LibrarySourceFile is the source_file sentinel for nodes that do not
	// live in a project file (libraries, builtins, external resources).
	LibrarySourceFile = "<library>"
)

// Generator produces identifiers: the stable, globally-unique strings that
// key nodes.
//
// Formats:
//
//	<file-path>::<node-type>::<name>
//	<file-path>::<scope>::<node-type>::<name>
//	library::<library-name>
//
// File paths are project-relative with forward slashes; the generator pins
// that convention so re-analysis yields byte-identical identifiers.
type Generator struct {
	projectRoot string
}

// NewGenerator creates a generator anchored at the project root. Paths
// under the root are emitted project-relative; paths outside it are kept
// as given, slash-normalized.
func NewGenerator(projectRoot string) *Generator {
	return &Generator{projectRoot: filepath.Clean(projectRoot)}
}

// Normalize converts a path to the identifier convention.
func (g *Generator) Normalize(path string) string {
	if g.projectRoot != "" && g.projectRoot != "." {
		if rel, err := filepath.Rel(g.projectRoot, path); err == nil && !strings.HasPrefix(rel, "..") {
			path = rel
		}
	}
	return filepath.ToSlash(path)
}

// File returns the identifier for a source file node.
func (g *Generator) File(path string) string {
	norm := g.Normalize(path)
	return norm + identSep + models.NodeFile + identSep + filepath.Base(norm)
}

// Export returns the identifier for an exported symbol.
func (g *Generator) Export(path, name string) string {
	return g.Symbol(path, models.NodeExport, name)
}

// Import returns the identifier for the local reference node of an import.
func (g *Generator) Import(path, importedName string) string {
	return g.Symbol(path, models.NodeImport, importedName)
}

// Library returns the identifier for an external package or builtin.
func (g *Generator) Library(name string) string {
	return librarySentinel + identSep + name
}

// Class returns the identifier for a class declared in path.
func (g *Generator) Class(path, className string) string {
	return g.Symbol(path, models.NodeClass, className)
}

// Method returns the identifier for a method scoped to its class.
func (g *Generator) Method(path, className, methodName string) string {
	return g.Scoped(path, className, models.NodeMethod, methodName)
}

// Function returns the identifier for a top-level function.
func (g *Generator) Function(path, name string) string {
	return g.Symbol(path, models.NodeFunction, name)
}

// Heading returns the identifier for a markdown heading symbol.
func (g *Generator) Heading(path, text string) string {
	return g.Symbol(path, models.NodeHeadingSymbol, text)
}

// Symbol returns the identifier for an unscoped symbol of any node type.
func (g *Generator) Symbol(path, nodeType, name string) string {
	return g.Normalize(path) + identSep + nodeType + identSep + name
}

// Scoped returns the identifier for a symbol nested in an enclosing entity.
func (g *Generator) Scoped(path, scope, nodeType, name string) string {
	return g.Normalize(path) + identSep + scope + identSep + nodeType + identSep + name
}

// Parsed is the decomposition of an identifier.
type Parsed struct {
	Path      string
	Scope     string
	Type      string
	Name      string
	IsLibrary bool
}

// ParseIdentifier is the inverse of the generator, used by inspection and
// diagnostic code.
func ParseIdentifier(identifier string) (Parsed, error) {
	if rest, ok := strings.CutPrefix(identifier, librarySentinel+identSep); ok {
		if rest == "" {
			return Parsed{}, fmt.Errorf("empty library identifier %q", identifier)
		}
		return Parsed{Type: models.NodeLibrary, Name: rest, IsLibrary: true}, nil
	}
	parts := strings.Split(identifier, identSep)
	switch len(parts) {
	case 3:
		return Parsed{Path: parts[0], Type: parts[1], Name: parts[2]}, nil
	case 4:
		return Parsed{Path: parts[0], Scope: parts[1], Type: parts[2], Name: parts[3]}, nil
	default:
		return Parsed{}, fmt.Errorf("malformed identifier %q", identifier)
	}
}
