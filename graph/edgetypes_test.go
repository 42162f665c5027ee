package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoreSeedValidates(t *testing.T) {
	r := NewEdgeTypeRegistry()
	require.NoError(t, r.Validate())
}

func TestRegisterRejectsDuplicatesAndUnknownParents(t *testing.T) {
	r := NewEdgeTypeRegistry()

	err := r.Register(EdgeTypeDef{Name: EdgeImports})
	assert.Error(t, err, "duplicate name must fail")

	err = r.Register(EdgeTypeDef{Name: "custom_edge", Parent: "no_such_type"})
	assert.Error(t, err, "unknown parent must fail")

	err = r.Register(EdgeTypeDef{Name: "custom_edge", Parent: EdgeDependsOn})
	require.NoError(t, err)
	assert.True(t, r.IsDescendantOf("custom_edge", EdgeDependsOn))
}

func TestDescendantsContainment(t *testing.T) {
	r := NewEdgeTypeRegistry()
	for _, name := range r.Names() {
		desc := r.Descendants(name)
		assert.Contains(t, desc, name, "type must be in its own descendants")
		for _, child := range r.Children(name) {
			assert.Contains(t, desc, child)
		}
	}
}

func TestDescendantsOfImports(t *testing.T) {
	r := NewEdgeTypeRegistry()
	assert.Equal(t, []string{EdgeImports, EdgeImportsFile, EdgeImportsLibrary}, r.Descendants(EdgeImports))
}

func TestDescendantsAtDepth(t *testing.T) {
	r := NewEdgeTypeRegistry()
	atZero := r.DescendantsAtDepth(EdgeDependsOn, 0)
	assert.Equal(t, []string{EdgeDependsOn}, atZero)

	atOne := r.DescendantsAtDepth(EdgeDependsOn, 1)
	assert.Contains(t, atOne, EdgeImports)
	assert.NotContains(t, atOne, EdgeImportsLibrary)
}

func TestPath(t *testing.T) {
	r := NewEdgeTypeRegistry()
	assert.Equal(t, []string{EdgeDependsOn, EdgeImports, EdgeImportsLibrary}, r.Path(EdgeImportsLibrary))
	assert.Equal(t, []string{EdgeContains}, r.Path(EdgeContains))
	assert.Nil(t, r.Path("no_such_type"))
}

func TestValidateDetectsModifiedCore(t *testing.T) {
	r := NewEdgeTypeRegistry()
	// Reach in the way a buggy caller could: flip a core flag.
	def := r.defs[EdgeContains]
	def.Transitive = false
	r.defs[EdgeContains] = def
	assert.ErrorIs(t, r.Validate(), ErrHierarchyInvalid)
}

func TestValidateDetectsCycle(t *testing.T) {
	r := NewEdgeTypeRegistry()
	require.NoError(t, r.Register(EdgeTypeDef{Name: "a", Parent: EdgeDependsOn}))
	require.NoError(t, r.Register(EdgeTypeDef{Name: "b", Parent: "a"}))
	// Corrupt the parent links directly; Register refuses to build cycles.
	defA := r.defs["a"]
	defA.Parent = "b"
	r.defs["a"] = defA
	assert.ErrorIs(t, r.Validate(), ErrHierarchyInvalid)
}

func TestAncestors(t *testing.T) {
	r := NewEdgeTypeRegistry()
	assert.Equal(t, []string{EdgeImports, EdgeDependsOn}, r.Ancestors(EdgeImportsFile))
	assert.Empty(t, r.Ancestors(EdgeDependsOn))
}
