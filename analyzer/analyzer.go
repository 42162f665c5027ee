// Package analyzer glues a file path to persisted nodes and edges: read,
// parse, extract, resolve, upsert, all inside one transaction per file.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/oxhq/codegraph/graph"
	"github.com/oxhq/codegraph/lang"
	"github.com/oxhq/codegraph/models"
	"github.com/oxhq/codegraph/parser"
	"github.com/oxhq/codegraph/query"
)

// DefaultCleanupEdgeTypes is the edge-type set cleared from a file's
// outgoing edges before its imports are re-created.
func DefaultCleanupEdgeTypes() []string {
	return []string{
		graph.EdgeImports,
		graph.EdgeImportsLibrary,
		graph.EdgeImportsFile,
		graph.EdgeDependsOn,
	}
}

// markdownCleanupEdgeTypes is the analogous set for markdown files, whose
// outgoing edges are containment and references rather than imports.
func markdownCleanupEdgeTypes() []string {
	return []string{graph.EdgeContains, graph.EdgeReferences}
}

// Options adjusts one analysis call.
type Options struct {
	// Language overrides extension-based detection.
	Language lang.Language
	// CleanupEdgeTypes overrides the edge-type set cleared before the
	// file's new edges are written.
	CleanupEdgeTypes []string
}

// Result is the per-file analysis outcome.
type Result struct {
	Path                 string        `json:"path"`
	Language             lang.Language `json:"language"`
	NodesCreated         int           `json:"nodesCreated"`
	RelationshipsCreated int           `json:"relationshipsCreated"`
	Warnings             []string      `json:"warnings,omitempty"`
	// UnresolvedInternal lists internal import targets for which no source
	// file has been found yet.
	UnresolvedInternal []string      `json:"unresolvedInternal,omitempty"`
	ParseDuration      time.Duration `json:"parseDuration"`
	NodeCount          int           `json:"nodeCount"`
}

// FileAnalyzer orchestrates parse, extraction, identifier generation and
// upserts for single files.
type FileAnalyzer struct {
	pool     *parser.Pool
	mapper   *query.KeyMapper
	store    *graph.Store
	types    *graph.EdgeTypeRegistry
	ident    *graph.Generator
	resolver *Resolver
	logger   *slog.Logger
	cleanup  []string
}

// Config wires a FileAnalyzer.
type Config struct {
	Pool      *parser.Pool
	Mapper    *query.KeyMapper
	Store     *graph.Store
	Generator *graph.Generator
	Resolver  *Resolver
	Logger    *slog.Logger
	// CleanupEdgeTypes is the default edge-type set cleared on
	// re-analysis; nil applies DefaultCleanupEdgeTypes.
	CleanupEdgeTypes []string
}

// New creates a FileAnalyzer.
func New(cfg Config) *FileAnalyzer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cleanup := cfg.CleanupEdgeTypes
	if cleanup == nil {
		cleanup = DefaultCleanupEdgeTypes()
	}
	return &FileAnalyzer{
		pool:     cfg.Pool,
		mapper:   cfg.Mapper,
		store:    cfg.Store,
		types:    cfg.Store.EdgeTypes(),
		ident:    cfg.Generator,
		resolver: cfg.Resolver,
		logger:   logger,
		cleanup:  cleanup,
	}
}

// AnalyzeFile reads, parses and persists one source file. All writes run
// in a single transaction; on failure nothing is stored.
func (a *FileAnalyzer) AnalyzeFile(ctx context.Context, path string, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return a.AnalyzeSource(ctx, path, source, opts)
}

// AnalyzeSource analyzes source text under the given path without touching
// the filesystem, which also serves callers holding unsaved buffers.
func (a *FileAnalyzer) AnalyzeSource(ctx context.Context, path string, source []byte, opts Options) (*Result, error) {
	language := opts.Language
	if language == "" {
		detected, ok := lang.FromPath(path)
		if !ok {
			return nil, fmt.Errorf("%w: no language for %s", parser.ErrParse, path)
		}
		language = detected
	}

	if language == lang.Markdown {
		return a.analyzeMarkdown(ctx, path, source, opts)
	}

	parsed, err := a.pool.Parse(ctx, source, language, path)
	if err != nil {
		return nil, err
	}
	defer parsed.Close()

	records, warnings := a.mapper.ExecuteBestEffort(query.AnalysisMapping(language), parsed)

	res := &Result{
		Path:          path,
		Language:      language,
		Warnings:      warnings,
		ParseDuration: parsed.ParseDuration,
		NodeCount:     parsed.NodeCount,
	}
	if parsed.HasErrors {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: syntax tree contains error nodes", path))
	}

	err = a.store.WithTx(func(tx *graph.Store) error {
		return a.persist(ctx, tx, path, language, records, opts, res)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// persist writes the file node, symbols and edges for one analysis.
func (a *FileAnalyzer) persist(ctx context.Context, tx *graph.Store, path string, language lang.Language, records map[string][]query.Record, opts Options, res *Result) error {
	fileNode, err := a.upsertFileNode(tx, path, language, res)
	if err != nil {
		return err
	}

	cleanup := opts.CleanupEdgeTypes
	if cleanup == nil {
		cleanup = a.cleanup
	}
	if _, err := tx.DeleteEdgesFrom(fileNode.ID, cleanup); err != nil {
		return err
	}

	if err := a.persistImports(ctx, tx, fileNode, path, language, records["imports"], res); err != nil {
		return err
	}
	declared, err := a.persistDeclarations(tx, fileNode, path, language, records["declarations"], res)
	if err != nil {
		return err
	}
	if err := a.persistExports(tx, fileNode, path, language, records["exports"], res); err != nil {
		return err
	}
	if err := a.persistRelations(tx, path, language, records["relations"], declared, res); err != nil {
		return err
	}
	if err := a.persistCalls(tx, fileNode, records["calls"], declared, res); err != nil {
		return err
	}
	return nil
}

func (a *FileAnalyzer) upsertFileNode(tx *graph.Store, path string, language lang.Language, res *Result) (*models.Node, error) {
	norm := a.ident.Normalize(path)
	node := &models.Node{
		Identifier: a.ident.File(path),
		Type:       models.NodeFile,
		Name:       filepath.Base(norm),
		SourceFile: norm,
		Language:   string(language),
		Metadata: datatypes.JSONMap{
			"extension": filepath.Ext(norm),
		},
	}
	stored, created, err := tx.UpsertNode(node)
	if err != nil {
		return nil, err
	}
	if created {
		res.NodesCreated++
	}
	return stored, nil
}

func (a *FileAnalyzer) persistImports(ctx context.Context, tx *graph.Store, fileNode *models.Node, path string, language lang.Language, imports []query.Record, res *Result) error {
	for _, rec := range imports {
		if err := ctx.Err(); err != nil {
			return err
		}
		resolution := a.resolver.Resolve(path, rec.Specifier, language)

		var target *models.Node
		var edgeType string
		if resolution.Internal {
			norm := a.ident.Normalize(resolution.Path)
			node := &models.Node{
				Identifier: a.ident.File(resolution.Path),
				Type:       models.NodeFile,
				Name:       filepath.Base(norm),
				SourceFile: norm,
				Language:   string(language),
				Metadata:   datatypes.JSONMap{"originalImport": rec.Specifier},
			}
			edgeType = graph.EdgeImportsFile
			if !resolution.Exists {
				node.Metadata["unresolved"] = true
				edgeType = graph.EdgeImports
				res.UnresolvedInternal = append(res.UnresolvedInternal, norm)
			}
			stored, created, err := tx.UpsertNode(node)
			if err != nil {
				return err
			}
			if created {
				res.NodesCreated++
			}
			target = stored
		} else {
			node := &models.Node{
				Identifier: a.ident.Library(resolution.Path),
				Type:       models.NodeLibrary,
				Name:       resolution.Path,
				SourceFile: graph.LibrarySourceFile,
				Language:   string(lang.External),
				Metadata: datatypes.JSONMap{
					"isExternal":     true,
					"originalImport": rec.Specifier,
				},
			}
			edgeType = graph.EdgeImportsLibrary
			stored, created, err := tx.UpsertNode(node)
			if err != nil {
				return err
			}
			if created {
				res.NodesCreated++
			}
			target = stored
		}

		edge := &models.Edge{
			FromNodeID: fileNode.ID,
			ToNodeID:   target.ID,
			Type:       edgeType,
			Metadata: datatypes.JSONMap{
				"specifier": rec.Specifier,
				"startLine": rec.Location.StartLine,
			},
		}
		_, created, err := tx.UpsertEdge(edge)
		if err != nil {
			return err
		}
		if created {
			res.RelationshipsCreated++
		}
	}
	return nil
}

// symbolNodeType maps a declaration record's symbol kind onto a node type.
var symbolNodeType = map[string]string{
	"function":    models.NodeFunction,
	"method":      models.NodeMethod,
	"class":       models.NodeClass,
	"interface":   models.NodeInterface,
	"type":        models.NodeType,
	"enum":        models.NodeEnum,
	"enum_member": models.NodeEnumMember,
	"constant":    models.NodeConstant,
	"variable":    models.NodeVariable,
	"property":    models.NodeProperty,
	"constructor": models.NodeConstructor,
}

func (a *FileAnalyzer) persistDeclarations(tx *graph.Store, fileNode *models.Node, path string, language lang.Language, decls []query.Record, res *Result) (map[string]*models.Node, error) {
	declared := make(map[string]*models.Node, len(decls))
	for _, rec := range decls {
		nodeType, ok := symbolNodeType[rec.Symbol]
		if !ok {
			nodeType = models.NodeSymbol
		}
		var identifier string
		if rec.Scope != "" {
			identifier = a.ident.Scoped(path, rec.Scope, nodeType, rec.Name)
		} else {
			identifier = a.ident.Symbol(path, nodeType, rec.Name)
		}
		node := &models.Node{
			Identifier:  identifier,
			Type:        nodeType,
			Name:        rec.Name,
			SourceFile:  a.ident.Normalize(path),
			Language:    string(language),
			StartLine:   intPtr(rec.Location.StartLine),
			StartColumn: intPtr(rec.Location.StartColumn),
			EndLine:     intPtr(rec.Location.EndLine),
			EndColumn:   intPtr(rec.Location.EndColumn),
		}
		stored, created, err := tx.UpsertNode(node)
		if err != nil {
			return nil, err
		}
		if created {
			res.NodesCreated++
		}
		declared[rec.Name] = stored

		edge := &models.Edge{FromNodeID: fileNode.ID, ToNodeID: stored.ID, Type: graph.EdgeDeclares}
		if _, created, err := tx.UpsertEdge(edge); err != nil {
			return nil, err
		} else if created {
			res.RelationshipsCreated++
		}
	}
	return declared, nil
}

func (a *FileAnalyzer) persistExports(tx *graph.Store, fileNode *models.Node, path string, language lang.Language, exports []query.Record, res *Result) error {
	for _, rec := range exports {
		node := &models.Node{
			Identifier: a.ident.Export(path, rec.Name),
			Type:       models.NodeExport,
			Name:       rec.Name,
			SourceFile: a.ident.Normalize(path),
			Language:   string(language),
			StartLine:  intPtr(rec.Location.StartLine),
		}
		stored, created, err := tx.UpsertNode(node)
		if err != nil {
			return err
		}
		if created {
			res.NodesCreated++
		}
		edge := &models.Edge{FromNodeID: fileNode.ID, ToNodeID: stored.ID, Type: graph.EdgeExportsTo}
		if _, created, err := tx.UpsertEdge(edge); err != nil {
			return err
		} else if created {
			res.RelationshipsCreated++
		}
	}
	return nil
}

// persistRelations records extends/implements edges between type symbols
// declared in or referenced from this file.
func (a *FileAnalyzer) persistRelations(tx *graph.Store, path string, language lang.Language, relations []query.Record, declared map[string]*models.Node, res *Result) error {
	for _, rec := range relations {
		from, ok := declared[rec.Name]
		if !ok {
			continue
		}
		target, ok := declared[rec.Target]
		if !ok {
			// Referenced type is not declared here; record it as a symbol
			// of this file so the edge has an endpoint.
			node := &models.Node{
				Identifier: a.ident.Symbol(path, models.NodeSymbol, rec.Target),
				Type:       models.NodeSymbol,
				Name:       rec.Target,
				SourceFile: a.ident.Normalize(path),
				Language:   string(language),
				Metadata:   datatypes.JSONMap{"declaredElsewhere": true},
			}
			stored, created, err := tx.UpsertNode(node)
			if err != nil {
				return err
			}
			if created {
				res.NodesCreated++
			}
			target = stored
		}
		edgeType := graph.EdgeExtends
		if rec.Attrs["relation"] == "implements" {
			edgeType = graph.EdgeImplements
		}
		edge := &models.Edge{FromNodeID: from.ID, ToNodeID: target.ID, Type: edgeType}
		if _, created, err := tx.UpsertEdge(edge); err != nil {
			return err
		} else if created {
			res.RelationshipsCreated++
		}
	}
	return nil
}

// persistCalls records calls edges from the file to symbols it declares.
// Callees that resolve to nothing in this file are skipped; cross-file
// call linking is a resolver concern, not a parser one.
func (a *FileAnalyzer) persistCalls(tx *graph.Store, fileNode *models.Node, calls []query.Record, declared map[string]*models.Node, res *Result) error {
	seen := make(map[uint]bool)
	for _, rec := range calls {
		callee, ok := declared[rec.Name]
		if !ok || seen[callee.ID] {
			continue
		}
		seen[callee.ID] = true
		edge := &models.Edge{FromNodeID: fileNode.ID, ToNodeID: callee.ID, Type: graph.EdgeCalls}
		if _, created, err := tx.UpsertEdge(edge); err != nil {
			return err
		} else if created {
			res.RelationshipsCreated++
		}
	}
	return nil
}

// analyzeMarkdown persists the heading outline and link references of a
// markdown file.
func (a *FileAnalyzer) analyzeMarkdown(ctx context.Context, path string, source []byte, opts Options) (*Result, error) {
	start := time.Now()
	extraction, err := extractMarkdown(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", parser.ErrParse, path, err)
	}

	res := &Result{Path: path, Language: lang.Markdown, ParseDuration: time.Since(start)}

	err = a.store.WithTx(func(tx *graph.Store) error {
		fileNode, err := a.upsertFileNode(tx, path, lang.Markdown, res)
		if err != nil {
			return err
		}

		cleanup := opts.CleanupEdgeTypes
		if cleanup == nil {
			cleanup = markdownCleanupEdgeTypes()
		}
		if _, err := tx.DeleteEdgesFrom(fileNode.ID, cleanup); err != nil {
			return err
		}

		// Headings hang off the file, nested under the nearest shallower
		// heading.
		type level struct {
			depth int
			node  *models.Node
		}
		stack := []level{}
		for _, rec := range extraction.Headings {
			if err := ctx.Err(); err != nil {
				return err
			}
			depth, _ := strconv.Atoi(rec.Attrs["level"])
			node := &models.Node{
				Identifier: a.ident.Heading(path, rec.Name),
				Type:       models.NodeHeadingSymbol,
				Name:       rec.Name,
				SourceFile: a.ident.Normalize(path),
				Language:   string(lang.Markdown),
				StartLine:  intPtr(rec.Location.StartLine),
				Metadata:   datatypes.JSONMap{"level": depth},
			}
			stored, created, err := tx.UpsertNode(node)
			if err != nil {
				return err
			}
			if created {
				res.NodesCreated++
			}

			for len(stack) > 0 && stack[len(stack)-1].depth >= depth {
				stack = stack[:len(stack)-1]
			}
			parentID := fileNode.ID
			if len(stack) > 0 {
				parentID = stack[len(stack)-1].node.ID
			}
			edge := &models.Edge{FromNodeID: parentID, ToNodeID: stored.ID, Type: graph.EdgeContains}
			if _, created, err := tx.UpsertEdge(edge); err != nil {
				return err
			} else if created {
				res.RelationshipsCreated++
			}
			stack = append(stack, level{depth: depth, node: stored})
		}

		for _, rec := range extraction.Links {
			target, created, err := a.upsertLinkTarget(tx, path, rec.Specifier)
			if err != nil {
				return err
			}
			if created {
				res.NodesCreated++
			}
			if target == nil {
				continue
			}
			edge := &models.Edge{
				FromNodeID: fileNode.ID,
				ToNodeID:   target.ID,
				Type:       graph.EdgeReferences,
				Metadata:   datatypes.JSONMap{"linkText": rec.Name},
			}
			if _, created, err := tx.UpsertEdge(edge); err != nil {
				return err
			} else if created {
				res.RelationshipsCreated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (a *FileAnalyzer) upsertLinkTarget(tx *graph.Store, path, dest string) (*models.Node, bool, error) {
	if isExternalLink(dest) {
		node := &models.Node{
			Identifier: a.ident.Library(dest),
			Type:       models.NodeExternal,
			Name:       dest,
			SourceFile: graph.LibrarySourceFile,
			Language:   string(lang.External),
			Metadata:   datatypes.JSONMap{"isExternal": true},
		}
		return tx.UpsertNode(node)
	}
	if !strings.HasPrefix(dest, ".") && !strings.HasPrefix(dest, "/") {
		// Intra-document anchors and bare fragments carry no graph value.
		return nil, false, nil
	}
	dest = strings.SplitN(dest, "#", 2)[0]
	if dest == "" {
		return nil, false, nil
	}
	resolution := a.resolver.Resolve(path, dest, lang.Markdown)
	norm := a.ident.Normalize(resolution.Path)
	node := &models.Node{
		Identifier: a.ident.File(resolution.Path),
		Type:       models.NodeFile,
		Name:       filepath.Base(norm),
		SourceFile: norm,
		Language:   string(lang.Markdown),
	}
	if !resolution.Exists {
		node.Metadata = datatypes.JSONMap{"unresolved": true}
	}
	return tx.UpsertNode(node)
}

func intPtr(v int) *int {
	return &v
}
