package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/emirpasic/gods/sets/treeset"
)

// Edge type names seeded into every registry.
const (
	EdgeContains       = "contains"
	EdgeDeclares       = "declares"
	EdgeBelongsTo      = "belongs_to"
	EdgeDependsOn      = "depends_on"
	EdgeImports        = "imports"
	EdgeImportsLibrary = "imports_library"
	EdgeImportsFile    = "imports_file"
	EdgeExportsTo      = "exports_to"
	EdgeCalls          = "calls"
	EdgeInstantiates   = "instantiates"
	EdgeUses           = "uses"
	EdgeAccesses       = "accesses"
	EdgeExtends        = "extends"
	EdgeImplements     = "implements"
	EdgeHasType        = "has_type"
	EdgeReturns        = "returns"
	EdgeThrows         = "throws"
	EdgeOverrides      = "overrides"
	EdgeShadows        = "shadows"
	EdgeAssignsTo      = "assigns_to"
	EdgeAnnotatedWith  = "annotated_with"
	EdgeReferences     = "references"
)

// ErrHierarchyInvalid is returned by Validate when the parent forest is
// broken. Startup should abort on it.
var ErrHierarchyInvalid = errors.New("edge-type hierarchy invalid")

// EdgeTypeDef describes one edge type and its inference flags.
type EdgeTypeDef struct {
	Name         string
	Parent       string
	Transitive   bool
	Inheritable  bool
	Hierarchical bool
	Description  string
}

// CoreEdgeTypes returns the seed set present in every registry. Parents are
// listed before children.
func CoreEdgeTypes() []EdgeTypeDef {
	return []EdgeTypeDef{
		{Name: EdgeContains, Transitive: true, Inheritable: true, Hierarchical: true, Description: "structural containment"},
		{Name: EdgeDeclares, Inheritable: true, Description: "file declares a symbol"},
		{Name: EdgeBelongsTo, Transitive: true, Description: "membership in a larger unit"},
		{Name: EdgeDependsOn, Transitive: true, Description: "generic dependency"},
		{Name: EdgeImports, Parent: EdgeDependsOn, Description: "import of another module"},
		{Name: EdgeImportsLibrary, Parent: EdgeImports, Description: "import of an external package"},
		{Name: EdgeImportsFile, Parent: EdgeImports, Description: "import of a project file"},
		{Name: EdgeExportsTo, Description: "symbol exported from a file"},
		{Name: EdgeCalls, Parent: EdgeDependsOn, Description: "call site"},
		{Name: EdgeInstantiates, Parent: EdgeDependsOn, Description: "constructor use"},
		{Name: EdgeUses, Parent: EdgeDependsOn, Description: "general use of a symbol"},
		{Name: EdgeAccesses, Parent: EdgeDependsOn, Description: "member access"},
		{Name: EdgeExtends, Parent: EdgeDependsOn, Inheritable: true, Description: "subtype relation"},
		{Name: EdgeImplements, Parent: EdgeDependsOn, Inheritable: true, Description: "interface implementation"},
		{Name: EdgeHasType, Description: "declared type of a value"},
		{Name: EdgeReturns, Description: "return type"},
		{Name: EdgeThrows, Description: "raised error type"},
		{Name: EdgeOverrides, Description: "member override"},
		{Name: EdgeShadows, Description: "name shadowing"},
		{Name: EdgeAssignsTo, Description: "assignment target"},
		{Name: EdgeAnnotatedWith, Description: "decorator or annotation"},
		{Name: EdgeReferences, Parent: EdgeDependsOn, Description: "generic reference"},
	}
}

// EdgeTypeRegistry is the single source of truth for edge types and their
// parent/child forest. It is constructed once at startup and read-only
// thereafter.
type EdgeTypeRegistry struct {
	defs     map[string]EdgeTypeDef
	children map[string][]string
}

// NewEdgeTypeRegistry creates a registry seeded with the core edge types.
func NewEdgeTypeRegistry() *EdgeTypeRegistry {
	r := &EdgeTypeRegistry{
		defs:     make(map[string]EdgeTypeDef),
		children: make(map[string][]string),
	}
	for _, def := range CoreEdgeTypes() {
		// The seed is well-formed; Register cannot fail here.
		if err := r.Register(def); err != nil {
			panic(fmt.Sprintf("core edge type seed: %v", err))
		}
	}
	return r
}

// Register adds a new edge type. The parent must already exist; duplicate
// names fail.
func (r *EdgeTypeRegistry) Register(def EdgeTypeDef) error {
	if def.Name == "" {
		return fmt.Errorf("edge type has no name")
	}
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("edge type %q already registered", def.Name)
	}
	if def.Parent != "" {
		if _, ok := r.defs[def.Parent]; !ok {
			return fmt.Errorf("edge type %q references unknown parent %q", def.Name, def.Parent)
		}
	}
	r.defs[def.Name] = def
	if def.Parent != "" {
		r.children[def.Parent] = append(r.children[def.Parent], def.Name)
		sort.Strings(r.children[def.Parent])
	}
	return nil
}

// Get returns the definition for name.
func (r *EdgeTypeRegistry) Get(name string) (EdgeTypeDef, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// Has reports whether name is a registered edge type.
func (r *EdgeTypeRegistry) Has(name string) bool {
	_, ok := r.defs[name]
	return ok
}

// Names returns every registered edge type name, sorted.
func (r *EdgeTypeRegistry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate confirms every parent resolves, the parent forest is acyclic,
// and the core entries are present and unmodified.
func (r *EdgeTypeRegistry) Validate() error {
	for name, def := range r.defs {
		if def.Parent == "" {
			continue
		}
		if _, ok := r.defs[def.Parent]; !ok {
			return fmt.Errorf("%w: %q has unresolved parent %q", ErrHierarchyInvalid, name, def.Parent)
		}
		seen := map[string]bool{name: true}
		for cur := def.Parent; cur != ""; cur = r.defs[cur].Parent {
			if seen[cur] {
				return fmt.Errorf("%w: cycle through %q", ErrHierarchyInvalid, cur)
			}
			seen[cur] = true
		}
	}
	for _, core := range CoreEdgeTypes() {
		got, ok := r.defs[core.Name]
		if !ok {
			return fmt.Errorf("%w: core edge type %q missing", ErrHierarchyInvalid, core.Name)
		}
		if got.Parent != core.Parent || got.Transitive != core.Transitive ||
			got.Inheritable != core.Inheritable || got.Hierarchical != core.Hierarchical {
			return fmt.Errorf("%w: core edge type %q modified", ErrHierarchyInvalid, core.Name)
		}
	}
	return nil
}

// Children returns the immediate children of name, sorted.
func (r *EdgeTypeRegistry) Children(name string) []string {
	out := make([]string, len(r.children[name]))
	copy(out, r.children[name])
	return out
}

// Descendants returns name and all transitive children, sorted.
func (r *EdgeTypeRegistry) Descendants(name string) []string {
	return r.descendantsAtDepth(name, -1)
}

// DescendantsAtDepth bounds the hierarchy traversal distance; a negative
// maxDepth means unbounded.
func (r *EdgeTypeRegistry) DescendantsAtDepth(name string, maxDepth int) []string {
	return r.descendantsAtDepth(name, maxDepth)
}

func (r *EdgeTypeRegistry) descendantsAtDepth(name string, maxDepth int) []string {
	if !r.Has(name) {
		return nil
	}
	set := treeset.NewWithStringComparator()
	var walk func(cur string, depth int)
	walk = func(cur string, depth int) {
		set.Add(cur)
		if maxDepth >= 0 && depth >= maxDepth {
			return
		}
		for _, child := range r.children[cur] {
			walk(child, depth+1)
		}
	}
	walk(name, 0)
	out := make([]string, 0, set.Size())
	for _, v := range set.Values() {
		out = append(out, v.(string))
	}
	return out
}

// Ancestors returns the strict ancestors of name, nearest first.
func (r *EdgeTypeRegistry) Ancestors(name string) []string {
	var out []string
	def, ok := r.defs[name]
	if !ok {
		return nil
	}
	for cur := def.Parent; cur != ""; cur = r.defs[cur].Parent {
		out = append(out, cur)
	}
	return out
}

// Path returns the ancestry from root to name, name included.
func (r *EdgeTypeRegistry) Path(name string) []string {
	if !r.Has(name) {
		return nil
	}
	ancestors := r.Ancestors(name)
	out := make([]string, 0, len(ancestors)+1)
	for i := len(ancestors) - 1; i >= 0; i-- {
		out = append(out, ancestors[i])
	}
	return append(out, name)
}

// IsDescendantOf reports whether name equals ancestor or lies below it.
func (r *EdgeTypeRegistry) IsDescendantOf(name, ancestor string) bool {
	if name == ancestor {
		return r.Has(name)
	}
	for _, a := range r.Ancestors(name) {
		if a == ancestor {
			return true
		}
	}
	return false
}
