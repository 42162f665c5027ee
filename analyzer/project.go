package analyzer

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/oxhq/codegraph/lang"
)

// skipDirs are directory names never descended into during project walks.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	"dist":         true,
	"build":        true,
	".idea":        true,
}

// ProjectOptions controls a multi-file analysis run.
type ProjectOptions struct {
	// Include globs (doublestar syntax, relative to the root); empty
	// means every file of a supported language.
	Include []string
	// Exclude globs applied after Include.
	Exclude []string
	// Languages restricts analysis; empty means all supported.
	Languages []lang.Language
	// Workers bounds concurrent file analyses; zero or negative means
	// sequential.
	Workers int
}

// FileOutcome pairs a path with its analysis result or error.
type FileOutcome struct {
	Path    string   `json:"path"`
	Result  *Result  `json:"result,omitempty"`
	Err     error    `json:"-"`
	Failure string   `json:"failure,omitempty"`
}

// ProjectResult aggregates a run.
type ProjectResult struct {
	Files                []FileOutcome `json:"files"`
	FilesAnalyzed        int           `json:"filesAnalyzed"`
	FilesFailed          int           `json:"filesFailed"`
	NodesCreated         int           `json:"nodesCreated"`
	RelationshipsCreated int           `json:"relationshipsCreated"`
	Warnings             []string      `json:"warnings,omitempty"`
}

// ProjectAnalyzer fans a directory tree out over file analyses.
type ProjectAnalyzer struct {
	analyzer *FileAnalyzer
	root     string
	logger   *slog.Logger
}

// NewProjectAnalyzer creates a project analyzer rooted at root.
func NewProjectAnalyzer(analyzer *FileAnalyzer, root string, logger *slog.Logger) *ProjectAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectAnalyzer{analyzer: analyzer, root: root, logger: logger}
}

// Discover walks the root and returns the analyzable files matching the
// options, sorted for deterministic processing order.
func (p *ProjectAnalyzer) Discover(ctx context.Context, opts ProjectOptions) ([]string, error) {
	wanted := make(map[lang.Language]bool)
	for _, l := range opts.Languages {
		wanted[l] = true
	}

	var files []string
	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if skipDirs[d.Name()] && path != p.root {
				return filepath.SkipDir
			}
			return nil
		}
		language, ok := lang.FromPath(path)
		if !ok {
			return nil
		}
		if len(wanted) > 0 && !wanted[language] {
			return nil
		}
		rel, err := filepath.Rel(p.root, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)
		if len(opts.Include) > 0 && !matchAny(opts.Include, rel) {
			return nil
		}
		if matchAny(opts.Exclude, rel) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// AnalyzeProject discovers and analyzes every matching file. Per-file
// failures do not halt the run; cancellation does, keeping already
// committed per-file transactions.
func (p *ProjectAnalyzer) AnalyzeProject(ctx context.Context, opts ProjectOptions) (*ProjectResult, error) {
	files, err := p.Discover(ctx, opts)
	if err != nil {
		return nil, err
	}

	outcomes := make([]FileOutcome, len(files))
	g, gctx := errgroup.WithContext(ctx)
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	var mu sync.Mutex
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				// Cancellation halts the run; per-file errors below don't.
				return err
			}
			res, err := p.analyzer.AnalyzeFile(gctx, path, Options{})
			mu.Lock()
			defer mu.Unlock()
			outcome := FileOutcome{Path: path, Result: res, Err: err}
			if err != nil {
				outcome.Failure = err.Error()
				p.logger.Warn("file analysis failed", "path", path, "error", err)
			}
			outcomes[i] = outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	agg := &ProjectResult{Files: outcomes}
	for _, o := range outcomes {
		if o.Err != nil {
			agg.FilesFailed++
			continue
		}
		if o.Result == nil {
			continue
		}
		agg.FilesAnalyzed++
		agg.NodesCreated += o.Result.NodesCreated
		agg.RelationshipsCreated += o.Result.RelationshipsCreated
		agg.Warnings = append(agg.Warnings, o.Result.Warnings...)
	}
	return agg, nil
}

func matchAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}
