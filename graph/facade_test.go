package graph

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/codegraph/models"
)

func newTestFacade(t *testing.T) (*Store, *Facade, *Generator) {
	t.Helper()
	s := newTestStore(t)
	engine := NewInferenceEngine(s, noCache(), slog.Default())
	ident := NewGenerator("/project")
	return s, NewFacade(s, engine, ident), ident
}

func fileNode(t *testing.T, s *Store, ident *Generator, path string) *models.Node {
	t.Helper()
	node, _, err := s.UpsertNode(&models.Node{
		Identifier: ident.File(path),
		Type:       models.NodeFile,
		Name:       path,
		SourceFile: ident.Normalize(path),
		Language:   "typescript",
	})
	require.NoError(t, err)
	return node
}

func TestListAllNodes(t *testing.T) {
	s, f, ident := newTestFacade(t)
	fileNode(t, s, ident, "/project/a.ts")
	mustNode(t, s, "a.ts::function::f", models.NodeFunction, "f")

	listing, err := f.ListAllNodes()
	require.NoError(t, err)
	assert.Len(t, listing.Nodes, 2)
	assert.Len(t, listing.NodesByType[models.NodeFile], 1)
	assert.Len(t, listing.NodesByType[models.NodeFunction], 1)
	assert.EqualValues(t, 2, listing.Stats.TotalNodes)
}

func TestFileDependenciesAndDependents(t *testing.T) {
	s, f, ident := newTestFacade(t)
	a := fileNode(t, s, ident, "/project/a.ts")
	b := fileNode(t, s, ident, "/project/b.ts")
	lib := mustNode(t, s, ident.Library("lodash"), models.NodeLibrary, "lodash")

	mustEdge(t, s, a.ID, b.ID, EdgeImportsFile)
	mustEdge(t, s, a.ID, lib.ID, EdgeImportsLibrary)

	deps, err := f.FileDependencies("/project/a.ts")
	require.NoError(t, err)
	require.Len(t, deps, 2)

	dependents, err := f.FileDependents("/project/b.ts")
	require.NoError(t, err)
	require.Len(t, dependents, 1)
	assert.Equal(t, a.ID, dependents[0].ID)

	none, err := f.FileDependents("/project/a.ts")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFileDependenciesUnknownFile(t *testing.T) {
	_, f, _ := newTestFacade(t)
	_, err := f.FileDependencies("/project/missing.ts")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestCircularDependenciesThreeFiles(t *testing.T) {
	s, f, ident := newTestFacade(t)
	a := fileNode(t, s, ident, "/project/a.ts")
	b := fileNode(t, s, ident, "/project/b.ts")
	c := fileNode(t, s, ident, "/project/c.ts")
	mustEdge(t, s, a.ID, b.ID, EdgeImports)
	mustEdge(t, s, b.ID, c.ID, EdgeImports)
	mustEdge(t, s, c.ID, a.ID, EdgeImports)

	cycles, err := f.CircularDependencies(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, cycles)

	names := map[string]bool{}
	for _, n := range cycles[0].Nodes {
		names[n.Name] = true
	}
	for _, want := range []string{"/project/a.ts", "/project/b.ts", "/project/c.ts"} {
		assert.True(t, names[want], "cycle must traverse %s", want)
	}
}

func TestCircularDependenciesEmptyForChain(t *testing.T) {
	s, f, ident := newTestFacade(t)
	a := fileNode(t, s, ident, "/project/a.ts")
	b := fileNode(t, s, ident, "/project/b.ts")
	mustEdge(t, s, a.ID, b.ID, EdgeImports)

	cycles, err := f.CircularDependencies(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cycles)
}
