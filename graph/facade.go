package graph

import (
	"context"

	"github.com/oxhq/codegraph/models"
)

// Facade exposes the read-side queries the hosting CLI/service consumes.
type Facade struct {
	store     *Store
	types     *EdgeTypeRegistry
	inference *InferenceEngine
	ident     *Generator
}

// NewFacade wires the read surface.
func NewFacade(store *Store, inference *InferenceEngine, ident *Generator) *Facade {
	return &Facade{store: store, types: store.EdgeTypes(), inference: inference, ident: ident}
}

// NodeListing is the result of ListAllNodes.
type NodeListing struct {
	Nodes       []models.Node            `json:"nodes"`
	NodesByType map[string][]models.Node `json:"nodesByType"`
	Stats       *Stats                   `json:"stats"`
}

// ListAllNodes returns every node, grouped by type, with store stats.
func (f *Facade) ListAllNodes() (*NodeListing, error) {
	nodes, err := f.store.FindNodes(NodeFilter{})
	if err != nil {
		return nil, err
	}
	stats, err := f.store.Stats()
	if err != nil {
		return nil, err
	}
	byType := make(map[string][]models.Node)
	for _, n := range nodes {
		byType[n.Type] = append(byType[n.Type], n)
	}
	return &NodeListing{Nodes: nodes, NodesByType: byType, Stats: stats}, nil
}

// ListNodesByType returns every node of one type.
func (f *Facade) ListNodesByType(nodeType string) ([]models.Node, error) {
	return f.store.FindNodes(NodeFilter{Types: []string{nodeType}})
}

// dependencyTypes is the edge-type set that defines "depends on" for the
// file-level queries: depends_on and everything below it.
func (f *Facade) dependencyTypes() []string {
	return f.types.Descendants(EdgeDependsOn)
}

// FileDependencies returns the targets of the file's outgoing dependency
// edges.
func (f *Facade) FileDependencies(path string) ([]models.Node, error) {
	fileNode, err := f.store.NodeByIdentifier(f.ident.File(path))
	if err != nil {
		return nil, err
	}
	edges, err := f.store.FindEdges(EdgeFilter{FromIDs: []uint{fileNode.ID}, Types: f.dependencyTypes()})
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.ToNodeID)
	}
	return f.store.NodesByID(ids)
}

// FileDependents returns the sources of incoming dependency edges into the
// file node.
func (f *Facade) FileDependents(path string) ([]models.Node, error) {
	fileNode, err := f.store.NodeByIdentifier(f.ident.File(path))
	if err != nil {
		return nil, err
	}
	edges, err := f.store.FindEdges(EdgeFilter{ToIDs: []uint{fileNode.ID}, Types: f.dependencyTypes()})
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.FromNodeID)
	}
	return f.store.NodesByID(ids)
}

// CyclePath is one dependency cycle as an ordered node list; the first node
// repeats at the end.
type CyclePath struct {
	Nodes []models.Node `json:"nodes"`
}

// CircularDependencies returns the dependency cycles in the graph,
// discovered by transitive traversal of depends_on with cycle paths
// emitted instead of suppressed.
func (f *Facade) CircularDependencies(ctx context.Context) ([]CyclePath, error) {
	idPaths, err := f.inference.CollectCycles(ctx, EdgeDependsOn, 0)
	if err != nil {
		return nil, err
	}
	out := make([]CyclePath, 0, len(idPaths))
	for _, path := range idPaths {
		nodes, err := f.store.NodesByID(path)
		if err != nil {
			return nil, err
		}
		byID := make(map[uint]models.Node, len(nodes))
		for _, n := range nodes {
			byID[n.ID] = n
		}
		ordered := make([]models.Node, 0, len(path))
		for _, id := range path {
			ordered = append(ordered, byID[id])
		}
		out = append(out, CyclePath{Nodes: ordered})
	}
	return out, nil
}

// ProjectStats returns node/edge totals and type and language breakdowns.
func (f *Facade) ProjectStats() (*Stats, error) {
	return f.store.Stats()
}
