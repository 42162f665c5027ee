package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"gorm.io/datatypes"

	"github.com/oxhq/codegraph/models"
)

// Inference modes.
const (
	InferenceHierarchical = "hierarchical"
	InferenceTransitive   = "transitive"
	InferenceInheritable  = "inheritable"
)

// CacheStrategy selects when materialized inferred edges are refreshed.
type CacheStrategy string

const (
	// CacheEager recomputes cached keys on every edge change.
	CacheEager CacheStrategy = "eager"
	// CacheLazy recomputes on the first read after a change.
	CacheLazy CacheStrategy = "lazy"
	// CacheManual serves cached rows again only after SyncCache; until
	// then every read after a change recomputes.
	CacheManual CacheStrategy = "manual"
)

// InferenceConfig carries engine-level defaults.
type InferenceConfig struct {
	CacheEnabled               bool
	CacheStrategy              CacheStrategy
	DefaultMaxPathLength       int
	DefaultMaxInheritanceDepth int
	DetectCycles               bool
}

// DefaultInferenceConfig returns the stock configuration.
func DefaultInferenceConfig() InferenceConfig {
	return InferenceConfig{
		CacheEnabled:               true,
		CacheStrategy:              CacheLazy,
		DefaultMaxPathLength:       10,
		DefaultMaxInheritanceDepth: 5,
		DetectCycles:               true,
	}
}

// InferencePath explains how an inferred edge was derived.
type InferencePath struct {
	EdgeIDs       []uint `json:"edgeIds"`
	Depth         int    `json:"depth"`
	InferenceType string `json:"inferenceType"`
	Description   string `json:"description"`
}

// InferredEdge is a relationship computed by walking existing edges rather
// than stored directly.
type InferredEdge struct {
	FromNodeID uint          `json:"fromNodeId"`
	ToNodeID   uint          `json:"toNodeId"`
	Type       string        `json:"type"`
	Path       InferencePath `json:"path"`
}

// InferenceEngine computes hierarchical, transitive and inheritable
// relationships over the store. All computations are read-only apart from
// the optional materialized cache.
type InferenceEngine struct {
	store  *Store
	types  *EdgeTypeRegistry
	cfg    InferenceConfig
	logger *slog.Logger

	mu    sync.Mutex
	dirty bool
}

// NewInferenceEngine wires an engine to a store and registers its cache
// invalidation hook.
func NewInferenceEngine(store *Store, cfg InferenceConfig, logger *slog.Logger) *InferenceEngine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &InferenceEngine{store: store, types: store.EdgeTypes(), cfg: cfg, logger: logger}
	if cfg.CacheEnabled {
		store.OnEdgesChanged(e.onEdgesChanged)
	}
	return e
}

func (e *InferenceEngine) onEdgesChanged() {
	e.mu.Lock()
	e.dirty = true
	strategy := e.cfg.CacheStrategy
	e.mu.Unlock()

	if strategy == CacheEager {
		if err := e.SyncCache(context.Background()); err != nil {
			e.logger.Warn("eager cache refresh failed", "error", err)
		}
	}
}

// HierarchicalOptions controls edge-type hierarchy expansion.
type HierarchicalOptions struct {
	IncludeChildren bool
	IncludeParents  bool
	// MaxDepth bounds the type-hierarchy traversal distance; zero or
	// negative means unbounded.
	MaxDepth int
}

// QueryHierarchical returns direct edges whose type lies in the hierarchy
// neighborhood of edgeType: its descendants when IncludeChildren, plus its
// ancestors when IncludeParents.
func (e *InferenceEngine) QueryHierarchical(edgeType string, opts HierarchicalOptions) ([]models.Edge, error) {
	if !e.types.Has(edgeType) {
		return nil, fmt.Errorf("%w: %s", ErrEdgeTypeUnknown, edgeType)
	}
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = -1
	}
	typeSet := map[string]bool{edgeType: true}
	if opts.IncludeChildren {
		for _, t := range e.types.DescendantsAtDepth(edgeType, maxDepth) {
			typeSet[t] = true
		}
	}
	if opts.IncludeParents {
		ancestors := e.types.Ancestors(edgeType)
		for i, t := range ancestors {
			if maxDepth >= 0 && i >= maxDepth {
				break
			}
			typeSet[t] = true
		}
	}
	types := make([]string, 0, len(typeSet))
	for t := range typeSet {
		types = append(types, t)
	}
	sort.Strings(types)
	return e.store.FindEdges(EdgeFilter{Types: types})
}

// TransitiveOptions controls chain traversal.
type TransitiveOptions struct {
	// MaxPathLength caps traversal depth; zero applies the engine default.
	MaxPathLength int
	// DetectCycles terminates any path that would revisit a node.
	DetectCycles bool
	// RelationshipTypes overrides the followed edge types; defaults to
	// edgeType and its descendants.
	RelationshipTypes []string
}

// QueryTransitive walks chains of edgeType (or its descendants) starting at
// fromID and returns every reachable node as an inferred edge carrying its
// derivation path. The outer type must carry the transitive flag.
func (e *InferenceEngine) QueryTransitive(ctx context.Context, fromID uint, edgeType string, opts TransitiveOptions) ([]InferredEdge, error) {
	def, ok := e.types.Get(edgeType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEdgeTypeUnknown, edgeType)
	}
	if !def.Transitive {
		return nil, fmt.Errorf("edge type %q is not transitive", edgeType)
	}
	maxLen := opts.MaxPathLength
	if maxLen <= 0 {
		maxLen = e.cfg.DefaultMaxPathLength
	}

	if e.cfg.CacheEnabled {
		if cached, ok, err := e.readCache(fromID, edgeType, InferenceTransitive); err != nil {
			e.logger.Warn("inference cache read failed", "error", err)
		} else if ok {
			return cached, nil
		}
	}

	follow := opts.RelationshipTypes
	if len(follow) == 0 {
		follow = e.types.Descendants(edgeType)
	}

	// Shortest derivation per target wins when several paths reach it.
	best := make(map[uint]InferredEdge)
	visited := map[uint]bool{fromID: true}

	var walk func(node uint, depth int, pathEdges []uint) error
	walk = func(node uint, depth int, pathEdges []uint) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if depth > maxLen {
			return nil
		}
		edges, err := e.store.FindEdges(EdgeFilter{FromIDs: []uint{node}, Types: follow})
		if err != nil {
			return err
		}
		for _, edge := range edges {
			if opts.DetectCycles && visited[edge.ToNodeID] {
				// Cycle: truncate this path, keep walking siblings.
				continue
			}
			path := append(append([]uint{}, pathEdges...), edge.ID)
			candidate := InferredEdge{
				FromNodeID: fromID,
				ToNodeID:   edge.ToNodeID,
				Type:       edgeType,
				Path: InferencePath{
					EdgeIDs:       path,
					Depth:         depth,
					InferenceType: InferenceTransitive,
					Description:   fmt.Sprintf("%s chain of length %d", edgeType, depth),
				},
			}
			if prev, ok := best[edge.ToNodeID]; !ok || candidate.Path.Depth < prev.Path.Depth {
				best[edge.ToNodeID] = candidate
			}
			if depth < maxLen && edge.ToNodeID != fromID {
				visited[edge.ToNodeID] = true
				if err := walk(edge.ToNodeID, depth+1, path); err != nil {
					return err
				}
				delete(visited, edge.ToNodeID)
			}
		}
		return nil
	}
	if err := walk(fromID, 1, nil); err != nil {
		return nil, err
	}

	out := make([]InferredEdge, 0, len(best))
	for _, ie := range best {
		out = append(out, ie)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path.Depth != out[j].Path.Depth {
			return out[i].Path.Depth < out[j].Path.Depth
		}
		return out[i].ToNodeID < out[j].ToNodeID
	})

	if e.cfg.CacheEnabled {
		if err := e.writeCache(fromID, edgeType, InferenceTransitive, out); err != nil {
			e.logger.Warn("inference cache write failed", "error", err)
		}
	}
	return out, nil
}

// InheritableOptions controls containment propagation.
type InheritableOptions struct {
	// MaxInheritanceDepth caps the parent chain; zero applies the engine
	// default.
	MaxInheritanceDepth int
}

// QueryInheritable propagates inheritableType relations along parentType
// chains: for each B reachable from fromID via parentType, every
// (B -inheritableType-> X) yields an inferred (fromID -inheritableType-> X).
func (e *InferenceEngine) QueryInheritable(ctx context.Context, fromID uint, parentType, inheritableType string, opts InheritableOptions) ([]InferredEdge, error) {
	parentDef, ok := e.types.Get(parentType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEdgeTypeUnknown, parentType)
	}
	if !parentDef.Inheritable {
		return nil, fmt.Errorf("edge type %q is not inheritable", parentType)
	}
	if !e.types.Has(inheritableType) {
		return nil, fmt.Errorf("%w: %s", ErrEdgeTypeUnknown, inheritableType)
	}
	maxDepth := opts.MaxInheritanceDepth
	if maxDepth <= 0 {
		maxDepth = e.cfg.DefaultMaxInheritanceDepth
	}

	parentTypes := e.types.Descendants(parentType)
	targetTypes := e.types.Descendants(inheritableType)

	var out []InferredEdge
	seen := map[uint]bool{}
	visited := map[uint]bool{fromID: true}

	type hop struct {
		node  uint
		depth int
		path  []uint
	}
	queue := []hop{{node: fromID, depth: 0}}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		parents, err := e.store.FindEdges(EdgeFilter{FromIDs: []uint{cur.node}, Types: parentTypes})
		if err != nil {
			return nil, err
		}
		for _, pe := range parents {
			if visited[pe.ToNodeID] {
				continue
			}
			visited[pe.ToNodeID] = true
			chain := append(append([]uint{}, cur.path...), pe.ID)

			inherited, err := e.store.FindEdges(EdgeFilter{FromIDs: []uint{pe.ToNodeID}, Types: targetTypes})
			if err != nil {
				return nil, err
			}
			for _, ie := range inherited {
				if seen[ie.ToNodeID] {
					continue
				}
				seen[ie.ToNodeID] = true
				out = append(out, InferredEdge{
					FromNodeID: fromID,
					ToNodeID:   ie.ToNodeID,
					Type:       inheritableType,
					Path: InferencePath{
						EdgeIDs:       append(append([]uint{}, chain...), ie.ID),
						Depth:         cur.depth + 1,
						InferenceType: InferenceInheritable,
						Description:   fmt.Sprintf("%s inherited through %s", inheritableType, parentType),
					},
				})
			}
			queue = append(queue, hop{node: pe.ToNodeID, depth: cur.depth + 1, path: chain})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path.Depth != out[j].Path.Depth {
			return out[i].Path.Depth < out[j].Path.Depth
		}
		return out[i].ToNodeID < out[j].ToNodeID
	})
	return out, nil
}

// InferenceResult is the complete picture for one node.
type InferenceResult struct {
	Direct       []models.Edge    `json:"direct"`
	Hierarchical []models.Edge    `json:"hierarchical"`
	Transitive   []InferredEdge   `json:"transitive"`
	Inheritable  []InferredEdge   `json:"inheritable"`
	Statistics   InferenceStats   `json:"statistics"`
}

// InferenceStats summarizes one InferAll call.
type InferenceStats struct {
	DirectCount       int           `json:"directCount"`
	HierarchicalCount int           `json:"hierarchicalCount"`
	TransitiveCount   int           `json:"transitiveCount"`
	InheritableCount  int           `json:"inheritableCount"`
	Elapsed           time.Duration `json:"elapsed"`
}

// InferAll runs every applicable inference mode for one node.
func (e *InferenceEngine) InferAll(ctx context.Context, fromID uint) (*InferenceResult, error) {
	start := time.Now()
	res := &InferenceResult{}

	direct, err := e.store.FindEdges(EdgeFilter{FromIDs: []uint{fromID}})
	if err != nil {
		return nil, err
	}
	res.Direct = direct

	// Hierarchical view of the node's direct edges: expand each distinct
	// type to its descendants, filtered back to this node.
	typeSet := map[string]bool{}
	for _, edge := range direct {
		for _, t := range e.types.Descendants(edge.Type) {
			typeSet[t] = true
		}
	}
	if len(typeSet) > 0 {
		types := make([]string, 0, len(typeSet))
		for t := range typeSet {
			types = append(types, t)
		}
		sort.Strings(types)
		expanded, err := e.store.FindEdges(EdgeFilter{FromIDs: []uint{fromID}, Types: types})
		if err != nil {
			return nil, err
		}
		res.Hierarchical = expanded
	}

	for _, name := range e.types.Names() {
		def, _ := e.types.Get(name)
		if def.Transitive && def.Parent == "" {
			inferred, err := e.QueryTransitive(ctx, fromID, name, TransitiveOptions{DetectCycles: e.cfg.DetectCycles})
			if err != nil {
				return nil, err
			}
			res.Transitive = append(res.Transitive, inferred...)
		}
		if def.Inheritable {
			inferred, err := e.QueryInheritable(ctx, fromID, name, EdgeDependsOn, InheritableOptions{})
			if err != nil {
				return nil, err
			}
			res.Inheritable = append(res.Inheritable, inferred...)
		}
	}

	res.Statistics = InferenceStats{
		DirectCount:       len(res.Direct),
		HierarchicalCount: len(res.Hierarchical),
		TransitiveCount:   len(res.Transitive),
		InheritableCount:  len(res.Inheritable),
		Elapsed:           time.Since(start),
	}
	return res, nil
}

// CollectCycles walks edgeType chains from every node with outgoing edges
// and returns the node-id paths of the cycles it finds. Unlike
// QueryTransitive, a revisited start node is emitted, not suppressed.
func (e *InferenceEngine) CollectCycles(ctx context.Context, edgeType string, maxLen int) ([][]uint, error) {
	if maxLen <= 0 {
		maxLen = e.cfg.DefaultMaxPathLength
	}
	follow := e.types.Descendants(edgeType)
	edges, err := e.store.FindEdges(EdgeFilter{Types: follow})
	if err != nil {
		return nil, err
	}
	adjacency := make(map[uint][]uint)
	for _, edge := range edges {
		adjacency[edge.FromNodeID] = append(adjacency[edge.FromNodeID], edge.ToNodeID)
	}

	var cycles [][]uint
	seenCycle := map[string]bool{}
	for start := range adjacency {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		onPath := map[uint]bool{start: true}
		var walk func(node uint, path []uint)
		walk = func(node uint, path []uint) {
			if len(path) > maxLen {
				return
			}
			for _, next := range adjacency[node] {
				if next == start {
					cycle := append(append([]uint{}, path...), start)
					if key := cycleKey(cycle); !seenCycle[key] {
						seenCycle[key] = true
						cycles = append(cycles, cycle)
					}
					continue
				}
				if onPath[next] {
					continue
				}
				onPath[next] = true
				walk(next, append(path, next))
				delete(onPath, next)
			}
		}
		walk(start, []uint{start})
	}
	sort.Slice(cycles, func(i, j int) bool { return cycleKey(cycles[i]) < cycleKey(cycles[j]) })
	return cycles, nil
}

// cycleKey canonicalizes a cycle so rotations of the same loop dedupe.
func cycleKey(cycle []uint) string {
	if len(cycle) < 2 {
		return fmt.Sprint(cycle)
	}
	body := cycle[:len(cycle)-1]
	minIdx := 0
	for i := range body {
		if body[i] < body[minIdx] {
			minIdx = i
		}
	}
	rotated := make([]uint, 0, len(body))
	for i := 0; i < len(body); i++ {
		rotated = append(rotated, body[(minIdx+i)%len(body)])
	}
	return fmt.Sprint(rotated)
}

// readCache returns the cached inferred edges for a key, if the cache is
// clean and the key is present.
func (e *InferenceEngine) readCache(fromID uint, edgeType, inferenceType string) ([]InferredEdge, bool, error) {
	e.mu.Lock()
	dirty := e.dirty
	e.mu.Unlock()
	if dirty {
		if e.cfg.CacheStrategy != CacheLazy {
			return nil, false, nil
		}
		// Lazy: first read after a change drops stale rows, then the
		// caller recomputes and repopulates.
		if err := e.clearCache(); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	var rows []models.InferenceCache
	err := e.store.DB().
		Where("from_node_id = ? AND edge_type = ? AND inference_type = ?", fromID, edgeType, inferenceType).
		Order("to_node_id").Find(&rows).Error
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	out := make([]InferredEdge, 0, len(rows))
	for _, row := range rows {
		out = append(out, InferredEdge{
			FromNodeID: row.FromNodeID,
			ToNodeID:   row.ToNodeID,
			Type:       row.EdgeType,
			Path: InferencePath{
				EdgeIDs:       row.PathEdges,
				Depth:         row.PathDepth,
				InferenceType: row.InferenceType,
				Description:   fmt.Sprintf("%s chain of length %d", row.EdgeType, row.PathDepth),
			},
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path.Depth != out[j].Path.Depth {
			return out[i].Path.Depth < out[j].Path.Depth
		}
		return out[i].ToNodeID < out[j].ToNodeID
	})
	return out, true, nil
}

func (e *InferenceEngine) writeCache(fromID uint, edgeType, inferenceType string, edges []InferredEdge) error {
	db := e.store.DB()
	err := db.Where("from_node_id = ? AND edge_type = ? AND inference_type = ?",
		fromID, edgeType, inferenceType).Delete(&models.InferenceCache{}).Error
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	stamp := now()
	for _, ie := range edges {
		row := models.InferenceCache{
			FromNodeID:    ie.FromNodeID,
			EdgeType:      edgeType,
			InferenceType: inferenceType,
			ToNodeID:      ie.ToNodeID,
			PathDepth:     ie.Path.Depth,
			PathEdges:     datatypes.NewJSONSlice(ie.Path.EdgeIDs),
			ComputedAt:    stamp,
		}
		if err := db.Create(&row).Error; err != nil {
			return fmt.Errorf("%w: %v", ErrStorage, err)
		}
	}
	return nil
}

func (e *InferenceEngine) clearCache() error {
	if err := e.store.DB().Where("1 = 1").Delete(&models.InferenceCache{}).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	e.mu.Lock()
	e.dirty = false
	e.mu.Unlock()
	return nil
}

// SyncCache recomputes every previously cached key. Under the manual
// strategy this is the only way back to serving cached rows after a change.
func (e *InferenceEngine) SyncCache(ctx context.Context) error {
	type key struct {
		FromNodeID    uint
		EdgeType      string
		InferenceType string
	}
	var keys []key
	err := e.store.DB().Model(&models.InferenceCache{}).
		Distinct("from_node_id", "edge_type", "inference_type").Find(&keys).Error
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := e.clearCache(); err != nil {
		return err
	}
	for _, k := range keys {
		if k.InferenceType != InferenceTransitive {
			continue
		}
		if _, err := e.QueryTransitive(ctx, k.FromNodeID, k.EdgeType, TransitiveOptions{DetectCycles: e.cfg.DetectCycles}); err != nil {
			return err
		}
	}
	return nil
}
