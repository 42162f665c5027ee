// Package parser owns reusable tree-sitter parser instances, one per
// language, and recovers from parser-state corruption after long reuse.
package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/oxhq/codegraph/lang"
)

// ErrParse is wrapped by every parse failure surfaced by the pool.
var ErrParse = errors.New("parse error")

// DefaultMaxSuccessiveUses bounds how many parses a single parser instance
// serves before it is discarded and recreated.
const DefaultMaxSuccessiveUses = 100

// Result describes a successful parse. The caller owns the tree for the
// duration of extraction and must Close it when done.
type Result struct {
	Tree          *sitter.Tree
	Language      lang.Language
	Path          string
	Source        []byte
	NodeCount     int
	ParseDuration time.Duration
	HasErrors     bool
}

// Close releases the underlying syntax tree.
func (r *Result) Close() {
	if r.Tree != nil {
		r.Tree.Close()
	}
}

type entry struct {
	parser *sitter.Parser
	uses   int
}

// Pool hands out one reusable parser per language. Parser instances are not
// thread-safe, so the pool serializes access to each instance; use one pool
// per worker for parallel parsing.
type Pool struct {
	mu      sync.Mutex
	parsers map[lang.Language]*entry
	maxUses int
	logger  *slog.Logger
}

// Option configures a Pool.
type Option func(*Pool)

// WithMaxSuccessiveUses overrides the reuse bound per parser instance.
func WithMaxSuccessiveUses(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.maxUses = n
		}
	}
}

// WithLogger sets the pool's logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

// NewPool creates an empty pool; parsers are constructed on first use.
func NewPool(opts ...Option) *Pool {
	p := &Pool{
		parsers: make(map[lang.Language]*entry),
		maxUses: DefaultMaxSuccessiveUses,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse parses source text for the given language. The returned tree may
// contain error nodes; that is reported through Result.HasErrors and is a
// warning, not a failure. A nil root node on accepted input indicates
// parser-state corruption: the pool recreates the parser and retries once.
func (p *Pool) Parse(ctx context.Context, source []byte, language lang.Language, path string) (*Result, error) {
	grammar := language.Grammar()
	if grammar == nil {
		return nil, fmt.Errorf("%w: unsupported language %q", ErrParse, language)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	e := p.checkout(language, grammar)

	start := time.Now()
	tree, err := e.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}
	if tree == nil || tree.RootNode() == nil {
		// Parser state corruption: recreate the instance and retry once.
		p.logger.Warn("parser returned no root node, recreating",
			"language", string(language), "path", path)
		if tree != nil {
			tree.Close()
		}
		e = p.recreate(language, grammar)
		tree, err = e.parser.ParseCtx(ctx, nil, source)
		if err != nil || tree == nil || tree.RootNode() == nil {
			if tree != nil {
				tree.Close()
			}
			return nil, fmt.Errorf("%w: %s: no syntax tree after retry", ErrParse, path)
		}
	}
	elapsed := time.Since(start)

	e.uses++
	if e.uses >= p.maxUses {
		p.recreate(language, grammar)
	}

	root := tree.RootNode()
	return &Result{
		Tree:          tree,
		Language:      language,
		Path:          path,
		Source:        source,
		NodeCount:     countNodes(root),
		ParseDuration: elapsed,
		HasErrors:     root.HasError(),
	}, nil
}

// checkout returns the language's parser, constructing it on first use.
// Caller must hold p.mu.
func (p *Pool) checkout(language lang.Language, grammar *sitter.Language) *entry {
	if e, ok := p.parsers[language]; ok {
		return e
	}
	return p.recreate(language, grammar)
}

// recreate discards the language's parser and builds a fresh one.
// Caller must hold p.mu.
func (p *Pool) recreate(language lang.Language, grammar *sitter.Language) *entry {
	sp := sitter.NewParser()
	sp.SetLanguage(grammar)
	e := &entry{parser: sp}
	p.parsers[language] = e
	return e
}

// Uses reports the successive-use count of the language's current parser
// instance. Zero when no parser has been constructed yet.
func (p *Pool) Uses(language lang.Language) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.parsers[language]; ok {
		return e.uses
	}
	return 0
}

func countNodes(root *sitter.Node) int {
	if root == nil {
		return 0
	}
	count := 0
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		count++
		for i := 0; i < int(n.ChildCount()); i++ {
			stack = append(stack, n.Child(i))
		}
	}
	return count
}
