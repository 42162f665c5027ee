package graph

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/oxhq/codegraph/models"
)

var (
	// ErrEdgeTypeUnknown is returned when an edge upsert references a type
	// that is not in the edge-type registry.
	ErrEdgeTypeUnknown = errors.New("unknown edge type")

	// ErrStorage wraps failures of the underlying store.
	ErrStorage = errors.New("storage error")

	// ErrNodeNotFound is returned by lookups that require an existing node.
	ErrNodeNotFound = errors.New("node not found")
)

// Store owns node and edge records. All multi-row writes belonging to one
// file analysis run inside a single transaction via WithTx.
type Store struct {
	db     *gorm.DB
	types  *EdgeTypeRegistry
	logger *slog.Logger

	// edge-change hooks, used by the inference cache. Shared with
	// transactional child stores so invalidation survives WithTx.
	hooks *[]func()

	// txPending is set on transactional child stores; edge changes are
	// noted there and the hooks fire once after commit.
	txPending *bool
}

// NewStore wires a store to a migrated database handle and a validated
// edge-type registry.
func NewStore(db *gorm.DB, types *EdgeTypeRegistry, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	hooks := make([]func(), 0)
	return &Store{db: db, types: types, logger: logger, hooks: &hooks}
}

// DB exposes the underlying handle for read-side helpers.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// EdgeTypes returns the registry the store validates edge writes against.
func (s *Store) EdgeTypes() *EdgeTypeRegistry {
	return s.types
}

// OnEdgesChanged registers a hook invoked after any edge insert, update or
// delete commits.
func (s *Store) OnEdgesChanged(fn func()) {
	*s.hooks = append(*s.hooks, fn)
}

func (s *Store) fireEdgeHooks() {
	if s.txPending != nil {
		*s.txPending = true
		return
	}
	for _, fn := range *s.hooks {
		fn()
	}
}

// WithTx runs fn against a transactional child store. On error everything
// the callback wrote is rolled back. Edge-change hooks fire once, after
// commit, never inside the transaction.
func (s *Store) WithTx(fn func(tx *Store) error) error {
	pending := false
	err := s.db.Transaction(func(txdb *gorm.DB) error {
		child := &Store{db: txdb, types: s.types, logger: s.logger, hooks: s.hooks, txPending: &pending}
		return fn(child)
	})
	if err != nil {
		return err
	}
	if pending {
		for _, fn := range *s.hooks {
			fn()
		}
	}
	return nil
}

// UpsertNode inserts the node if its identifier is new, otherwise updates
// the mutable fields. Identifier and type never change on upsert. The
// second return reports whether a new row was created.
func (s *Store) UpsertNode(node *models.Node) (*models.Node, bool, error) {
	if node.Identifier == "" {
		return nil, false, fmt.Errorf("%w: node has no identifier", ErrStorage)
	}
	var existing models.Node
	err := s.db.Where("identifier = ?", node.Identifier).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.db.Create(node).Error; err != nil {
			return nil, false, fmt.Errorf("%w: creating node %s: %v", ErrStorage, node.Identifier, err)
		}
		return node, true, nil
	case err != nil:
		return nil, false, fmt.Errorf("%w: looking up node %s: %v", ErrStorage, node.Identifier, err)
	}

	updates := map[string]any{
		"name":        node.Name,
		"source_file": node.SourceFile,
		"language":    node.Language,
	}
	if node.StartLine != nil {
		updates["start_line"] = *node.StartLine
		updates["start_column"] = derefInt(node.StartColumn)
		updates["end_line"] = derefInt(node.EndLine)
		updates["end_column"] = derefInt(node.EndColumn)
	}
	if node.Metadata != nil {
		updates["metadata"] = mergeMetadata(existing.Metadata, node.Metadata)
	}
	if node.SemanticTags != nil {
		updates["semantic_tags"] = node.SemanticTags
	}
	if err := s.db.Model(&existing).Updates(updates).Error; err != nil {
		return nil, false, fmt.Errorf("%w: updating node %s: %v", ErrStorage, node.Identifier, err)
	}
	if err := s.db.Where("identifier = ?", node.Identifier).First(&existing).Error; err != nil {
		return nil, false, fmt.Errorf("%w: rereading node %s: %v", ErrStorage, node.Identifier, err)
	}
	return &existing, false, nil
}

// UpsertEdge inserts the edge if (from, to, type) is new, otherwise updates
// its metadata. The edge type must be registered. The second return reports
// whether a new row was created.
func (s *Store) UpsertEdge(edge *models.Edge) (*models.Edge, bool, error) {
	if !s.types.Has(edge.Type) {
		return nil, false, fmt.Errorf("%w: %s", ErrEdgeTypeUnknown, edge.Type)
	}
	if edge.FromNodeID == 0 || edge.ToNodeID == 0 {
		return nil, false, fmt.Errorf("%w: edge endpoints must reference stored nodes", ErrStorage)
	}
	var existing models.Edge
	err := s.db.Where("from_node_id = ? AND to_node_id = ? AND type = ?",
		edge.FromNodeID, edge.ToNodeID, edge.Type).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.db.Create(edge).Error; err != nil {
			return nil, false, fmt.Errorf("%w: creating edge: %v", ErrStorage, err)
		}
		s.fireEdgeHooks()
		return edge, true, nil
	case err != nil:
		return nil, false, fmt.Errorf("%w: looking up edge: %v", ErrStorage, err)
	}

	if edge.Metadata != nil {
		if err := s.db.Model(&existing).Update("metadata", mergeMetadata(existing.Metadata, edge.Metadata)).Error; err != nil {
			return nil, false, fmt.Errorf("%w: updating edge metadata: %v", ErrStorage, err)
		}
		s.fireEdgeHooks()
	}
	return &existing, false, nil
}

// NodeFilter selects nodes in FindNodes. Zero-valued fields are ignored.
type NodeFilter struct {
	Types       []string
	SourceFiles []string
	Identifiers []string
	Language    string
	Metadata    map[string]any
}

// FindNodes returns nodes matching every set filter field. The metadata
// filter is applied in memory after the indexed filters narrow the set.
func (s *Store) FindNodes(f NodeFilter) ([]models.Node, error) {
	q := s.db.Model(&models.Node{})
	if len(f.Types) > 0 {
		q = q.Where("type IN ?", f.Types)
	}
	if len(f.SourceFiles) > 0 {
		q = q.Where("source_file IN ?", f.SourceFiles)
	}
	if len(f.Identifiers) > 0 {
		q = q.Where("identifier IN ?", f.Identifiers)
	}
	if f.Language != "" {
		q = q.Where("language = ?", f.Language)
	}
	var nodes []models.Node
	if err := q.Order("id").Find(&nodes).Error; err != nil {
		return nil, fmt.Errorf("%w: finding nodes: %v", ErrStorage, err)
	}
	if len(f.Metadata) == 0 {
		return nodes, nil
	}
	out := nodes[:0]
	for _, n := range nodes {
		if metadataMatches(n.Metadata, f.Metadata) {
			out = append(out, n)
		}
	}
	return out, nil
}

// NodeByIdentifier returns the node keyed by identifier.
func (s *Store) NodeByIdentifier(identifier string) (*models.Node, error) {
	var node models.Node
	err := s.db.Where("identifier = ?", identifier).First(&node).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, identifier)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return &node, nil
}

// NodesByID returns nodes for the given store-assigned ids.
func (s *Store) NodesByID(ids []uint) ([]models.Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var nodes []models.Node
	if err := s.db.Where("id IN ?", ids).Order("id").Find(&nodes).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nodes, nil
}

// EdgeFilter selects edges in FindEdges. Zero-valued fields are ignored.
type EdgeFilter struct {
	Types    []string
	FromIDs  []uint
	ToIDs    []uint
	Metadata map[string]any
}

// FindEdges returns edges matching every set filter field.
func (s *Store) FindEdges(f EdgeFilter) ([]models.Edge, error) {
	q := s.db.Model(&models.Edge{})
	if len(f.Types) > 0 {
		q = q.Where("type IN ?", f.Types)
	}
	if len(f.FromIDs) > 0 {
		q = q.Where("from_node_id IN ?", f.FromIDs)
	}
	if len(f.ToIDs) > 0 {
		q = q.Where("to_node_id IN ?", f.ToIDs)
	}
	var edges []models.Edge
	if err := q.Order("id").Find(&edges).Error; err != nil {
		return nil, fmt.Errorf("%w: finding edges: %v", ErrStorage, err)
	}
	if len(f.Metadata) == 0 {
		return edges, nil
	}
	out := edges[:0]
	for _, e := range edges {
		if metadataMatches(e.Metadata, f.Metadata) {
			out = append(out, e)
		}
	}
	return out, nil
}

// DeleteEdgesFrom removes all edges leaving fromID whose type is in types.
// Run inside WithTx when followed by re-inserts so the cleanup and the new
// edges commit atomically.
func (s *Store) DeleteEdgesFrom(fromID uint, types []string) (int64, error) {
	if len(types) == 0 {
		return 0, nil
	}
	res := s.db.Where("from_node_id = ? AND type IN ?", fromID, types).Delete(&models.Edge{})
	if res.Error != nil {
		return 0, fmt.Errorf("%w: deleting edges from %d: %v", ErrStorage, fromID, res.Error)
	}
	if res.RowsAffected > 0 {
		s.fireEdgeHooks()
	}
	return res.RowsAffected, nil
}

// Stats summarizes the store.
type Stats struct {
	TotalNodes int64            `json:"totalNodes"`
	TotalEdges int64            `json:"totalEdges"`
	ByNodeType map[string]int64 `json:"byNodeType"`
	ByEdgeType map[string]int64 `json:"byEdgeType"`
	ByLanguage map[string]int64 `json:"byLanguage"`
}

// Stats computes node/edge totals and per-type, per-language breakdowns.
func (s *Store) Stats() (*Stats, error) {
	out := &Stats{
		ByNodeType: make(map[string]int64),
		ByEdgeType: make(map[string]int64),
		ByLanguage: make(map[string]int64),
	}
	if err := s.db.Model(&models.Node{}).Count(&out.TotalNodes).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := s.db.Model(&models.Edge{}).Count(&out.TotalEdges).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	type bucket struct {
		Key   string
		Count int64
	}
	var buckets []bucket
	if err := s.db.Model(&models.Node{}).Select("type AS key, COUNT(*) AS count").Group("type").Scan(&buckets).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	for _, b := range buckets {
		out.ByNodeType[b.Key] = b.Count
	}
	buckets = nil
	if err := s.db.Model(&models.Edge{}).Select("type AS key, COUNT(*) AS count").Group("type").Scan(&buckets).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	for _, b := range buckets {
		out.ByEdgeType[b.Key] = b.Count
	}
	buckets = nil
	if err := s.db.Model(&models.Node{}).Select("language AS key, COUNT(*) AS count").Group("language").Scan(&buckets).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	for _, b := range buckets {
		out.ByLanguage[b.Key] = b.Count
	}
	return out, nil
}

// SaveEdgeTypes mirrors the registry into the edge_types table.
func (s *Store) SaveEdgeTypes() error {
	for _, name := range s.types.Names() {
		def, _ := s.types.Get(name)
		row := models.EdgeType{
			Name:           def.Name,
			Parent:         def.Parent,
			IsTransitive:   def.Transitive,
			IsInheritable:  def.Inheritable,
			IsHierarchical: def.Hierarchical,
			Description:    def.Description,
		}
		if err := s.db.Save(&row).Error; err != nil {
			return fmt.Errorf("%w: saving edge type %s: %v", ErrStorage, def.Name, err)
		}
	}
	return nil
}

func derefInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func mergeMetadata(existing, incoming datatypes.JSONMap) datatypes.JSONMap {
	if existing == nil {
		return incoming
	}
	merged := make(datatypes.JSONMap, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}
	return merged
}

func metadataMatches(have map[string]any, want map[string]any) bool {
	for k, v := range want {
		got, ok := have[k]
		if !ok || fmt.Sprintf("%v", got) != fmt.Sprintf("%v", v) {
			return false
		}
	}
	return true
}

// now is indirected for tests.
var now = func() int64 { return time.Now().Unix() }
