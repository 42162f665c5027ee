package graph

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/oxhq/codegraph/db"
	"github.com/oxhq/codegraph/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	gormDB, err := db.Connect(":memory:", db.Options{PoolSize: 1})
	require.NoError(t, err)
	types := NewEdgeTypeRegistry()
	require.NoError(t, types.Validate())
	return NewStore(gormDB, types, slog.Default())
}

func mustNode(t *testing.T, s *Store, identifier, nodeType, name string) *models.Node {
	t.Helper()
	node, _, err := s.UpsertNode(&models.Node{
		Identifier: identifier,
		Type:       nodeType,
		Name:       name,
		SourceFile: "test.ts",
		Language:   "typescript",
	})
	require.NoError(t, err)
	return node
}

func mustEdge(t *testing.T, s *Store, from, to uint, edgeType string) *models.Edge {
	t.Helper()
	edge, _, err := s.UpsertEdge(&models.Edge{FromNodeID: from, ToNodeID: to, Type: edgeType})
	require.NoError(t, err)
	return edge
}

func TestUpsertNodeInsertThenUpdate(t *testing.T) {
	s := newTestStore(t)

	first, created, err := s.UpsertNode(&models.Node{
		Identifier: "a.ts::file::a.ts",
		Type:       models.NodeFile,
		Name:       "a.ts",
		SourceFile: "a.ts",
		Language:   "typescript",
		Metadata:   datatypes.JSONMap{"extension": ".ts"},
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, first.ID)

	line := 12
	second, created, err := s.UpsertNode(&models.Node{
		Identifier: "a.ts::file::a.ts",
		Type:       models.NodeFile,
		Name:       "a.ts",
		SourceFile: "a.ts",
		Language:   "typescript",
		StartLine:  &line,
		Metadata:   datatypes.JSONMap{"isEntry": true},
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID, "upsert must match on identifier")
	require.NotNil(t, second.StartLine)
	assert.Equal(t, 12, *second.StartLine)
	assert.Equal(t, ".ts", second.Metadata["extension"], "metadata merges, not replaces")
	assert.Equal(t, true, second.Metadata["isEntry"])
}

func TestUpsertNodeRoundTrip(t *testing.T) {
	s := newTestStore(t)
	mustNode(t, s, "b.ts::file::b.ts", models.NodeFile, "b.ts")

	found, err := s.FindNodes(NodeFilter{Identifiers: []string{"b.ts::file::b.ts"}})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, models.NodeFile, found[0].Type)
	assert.Equal(t, "b.ts", found[0].Name)
}

func TestUpsertEdgeUniqueness(t *testing.T) {
	s := newTestStore(t)
	a := mustNode(t, s, "a", models.NodeFile, "a")
	b := mustNode(t, s, "b", models.NodeFile, "b")

	first, created, err := s.UpsertEdge(&models.Edge{FromNodeID: a.ID, ToNodeID: b.ID, Type: EdgeImports})
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := s.UpsertEdge(&models.Edge{
		FromNodeID: a.ID, ToNodeID: b.ID, Type: EdgeImports,
		Metadata: datatypes.JSONMap{"specifier": "./b"},
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	edges, err := s.FindEdges(EdgeFilter{FromIDs: []uint{a.ID}})
	require.NoError(t, err)
	assert.Len(t, edges, 1)
}

func TestUpsertEdgeRejectsUnknownType(t *testing.T) {
	s := newTestStore(t)
	a := mustNode(t, s, "a", models.NodeFile, "a")
	b := mustNode(t, s, "b", models.NodeFile, "b")

	_, _, err := s.UpsertEdge(&models.Edge{FromNodeID: a.ID, ToNodeID: b.ID, Type: "made_up"})
	assert.ErrorIs(t, err, ErrEdgeTypeUnknown)
}

func TestDeleteEdgesFromIsSelective(t *testing.T) {
	s := newTestStore(t)
	file := mustNode(t, s, "f", models.NodeFile, "f")
	libA := mustNode(t, s, "library::a", models.NodeLibrary, "a")
	libB := mustNode(t, s, "library::b", models.NodeLibrary, "b")
	exported := mustNode(t, s, "f::export::x", models.NodeExport, "x")

	mustEdge(t, s, file.ID, libA.ID, EdgeImportsLibrary)
	mustEdge(t, s, file.ID, libB.ID, EdgeImportsLibrary)
	mustEdge(t, s, file.ID, exported.ID, EdgeExportsTo)
	// Incoming edge into the file must survive any cleanup.
	other := mustNode(t, s, "g", models.NodeFile, "g")
	mustEdge(t, s, other.ID, file.ID, EdgeImportsFile)

	count, err := s.DeleteEdgesFrom(file.ID, []string{EdgeImports, EdgeImportsLibrary, EdgeImportsFile, EdgeDependsOn})
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	remaining, err := s.FindEdges(EdgeFilter{FromIDs: []uint{file.ID}})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, EdgeExportsTo, remaining[0].Type)

	incoming, err := s.FindEdges(EdgeFilter{ToIDs: []uint{file.ID}})
	require.NoError(t, err)
	assert.Len(t, incoming, 1, "edges from other files are preserved")
}

func TestWithTxRollsBack(t *testing.T) {
	s := newTestStore(t)
	a := mustNode(t, s, "a", models.NodeFile, "a")
	b := mustNode(t, s, "b", models.NodeFile, "b")
	mustEdge(t, s, a.ID, b.ID, EdgeImports)

	err := s.WithTx(func(tx *Store) error {
		if _, err := tx.DeleteEdgesFrom(a.ID, []string{EdgeImports}); err != nil {
			return err
		}
		if _, _, err := tx.UpsertEdge(&models.Edge{FromNodeID: a.ID, ToNodeID: b.ID, Type: EdgeUses}); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.Error(t, err)

	edges, err := s.FindEdges(EdgeFilter{FromIDs: []uint{a.ID}})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, EdgeImports, edges[0].Type, "pre-transaction state is restored")
}

func TestFindNodesFilters(t *testing.T) {
	s := newTestStore(t)
	mustNode(t, s, "a.ts::file::a.ts", models.NodeFile, "a.ts")
	lib, _, err := s.UpsertNode(&models.Node{
		Identifier: "library::fs",
		Type:       models.NodeLibrary,
		Name:       "fs",
		SourceFile: LibrarySourceFile,
		Language:   "external",
		Metadata:   datatypes.JSONMap{"isExternal": true},
	})
	require.NoError(t, err)

	byType, err := s.FindNodes(NodeFilter{Types: []string{models.NodeLibrary}})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, lib.ID, byType[0].ID)

	byLanguage, err := s.FindNodes(NodeFilter{Language: "typescript"})
	require.NoError(t, err)
	assert.Len(t, byLanguage, 1)

	byMetadata, err := s.FindNodes(NodeFilter{Metadata: map[string]any{"isExternal": true}})
	require.NoError(t, err)
	require.Len(t, byMetadata, 1)
	assert.Equal(t, "fs", byMetadata[0].Name)
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	a := mustNode(t, s, "a", models.NodeFile, "a")
	b := mustNode(t, s, "b", models.NodeFile, "b")
	mustNode(t, s, "a::function::f", models.NodeFunction, "f")
	mustEdge(t, s, a.ID, b.ID, EdgeImports)

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.TotalNodes)
	assert.EqualValues(t, 1, stats.TotalEdges)
	assert.EqualValues(t, 2, stats.ByNodeType[models.NodeFile])
	assert.EqualValues(t, 1, stats.ByEdgeType[EdgeImports])
	assert.EqualValues(t, 3, stats.ByLanguage["typescript"])
}

func TestSaveEdgeTypes(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveEdgeTypes())

	var rows []models.EdgeType
	require.NoError(t, s.DB().Find(&rows).Error)
	assert.Len(t, rows, len(CoreEdgeTypes()))
}
