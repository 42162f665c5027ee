package models

import (
	"time"

	"gorm.io/datatypes"
)

// Node types recognized by the graph. The Type column is plain text and is
// not checked against this list.
const (
	NodeFile            = "file"
	NodeClass           = "class"
	NodeInterface       = "interface"
	NodeFunction        = "function"
	NodeMethod          = "method"
	NodeProperty        = "property"
	NodeVariable        = "variable"
	NodeConstant        = "constant"
	NodeType            = "type"
	NodeEnum            = "enum"
	NodeEnumMember      = "enum_member"
	NodeConstructor     = "constructor"
	NodeExport          = "export"
	NodeImport          = "import"
	NodeLibrary         = "library"
	NodePackage         = "package"
	NodeExternal        = "external-resource"
	NodeMissingFile     = "missing-file"
	NodeHeadingSymbol   = "heading-symbol"
	NodeSymbol          = "symbol"
	NodeFileNotFound    = "file_not_found"
	NodeBrokenReference = "broken_reference"
)

// Node is a persisted record for a file, symbol, library or other code
// entity. Identifier is the global uniqueness key; ID is store-assigned.
type Node struct {
	ID         uint   `gorm:"primaryKey"`
	Identifier string `gorm:"uniqueIndex;not null;type:text"`
	Type       string `gorm:"index;not null;type:varchar(50)"`
	Name       string `gorm:"not null;type:text"`
	SourceFile string `gorm:"index;not null;type:text"`
	Language   string `gorm:"not null;type:varchar(50)"`

	StartLine   *int
	StartColumn *int
	EndLine     *int
	EndColumn   *int

	Metadata     datatypes.JSONMap           `gorm:"type:jsonb"`
	SemanticTags datatypes.JSONSlice[string] `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Edge is a persisted relationship between two nodes. The tuple
// (FromNodeID, ToNodeID, Type) is unique.
type Edge struct {
	ID         uint   `gorm:"primaryKey"`
	FromNodeID uint   `gorm:"not null;index;uniqueIndex:idx_edges_from_to_type"`
	ToNodeID   uint   `gorm:"not null;index;uniqueIndex:idx_edges_from_to_type"`
	Type       string `gorm:"not null;index;uniqueIndex:idx_edges_from_to_type;type:varchar(50)"`

	Metadata datatypes.JSONMap `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"autoCreateTime"`

	FromNode *Node `gorm:"foreignKey:FromNodeID"`
	ToNode   *Node `gorm:"foreignKey:ToNodeID"`
}

// EdgeType mirrors the in-memory edge-type registry into the store so the
// hierarchy survives restarts and external tools can join against it.
type EdgeType struct {
	Name          string `gorm:"primaryKey;type:varchar(50)"`
	Parent        string `gorm:"type:varchar(50)"`
	IsTransitive  bool   `gorm:"default:false"`
	IsInheritable bool   `gorm:"default:false"`
	IsHierarchical bool  `gorm:"default:false"`
	Description   string `gorm:"type:text"`
}

// InferenceCache materializes inferred edges keyed by
// (from, edge type, inference mode, to).
type InferenceCache struct {
	FromNodeID    uint   `gorm:"primaryKey;autoIncrement:false"`
	EdgeType      string `gorm:"primaryKey;type:varchar(50)"`
	InferenceType string `gorm:"primaryKey;type:varchar(20)"`
	ToNodeID      uint   `gorm:"primaryKey;autoIncrement:false"`

	PathDepth  int
	PathEdges  datatypes.JSONSlice[uint] `gorm:"type:jsonb"`
	ComputedAt int64
}

// TableName customizations for cleaner names
func (Node) TableName() string           { return "nodes" }
func (Edge) TableName() string           { return "edges" }
func (EdgeType) TableName() string       { return "edge_types" }
func (InferenceCache) TableName() string { return "inference_cache" }
