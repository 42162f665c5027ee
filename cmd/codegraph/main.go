// Command codegraph is the CLI host for the code knowledge graph engine:
// analyze files into the graph, then query dependencies, dependents,
// cycles and inferred relationships.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/oxhq/codegraph/analyzer"
	"github.com/oxhq/codegraph/config"
	"github.com/oxhq/codegraph/db"
	"github.com/oxhq/codegraph/graph"
	"github.com/oxhq/codegraph/parser"
	"github.com/oxhq/codegraph/query"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles the wired engine for the subcommands.
type app struct {
	cfg       *config.Config
	store     *graph.Store
	facade    *graph.Facade
	inference *graph.InferenceEngine
	analyzer  *analyzer.FileAnalyzer
	project   *analyzer.ProjectAnalyzer
	ident     *graph.Generator
}

func newRootCmd() *cobra.Command {
	var (
		dbPath string
		root   string
		debug  bool
	)

	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "codegraph",
		Short:         "Code knowledge graph over multi-language source analysis",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if dbPath != "" {
				cfg.DatabaseDSN = dbPath
			}
			if root != "" {
				cfg.ProjectRoot = root
			}
			if debug {
				cfg.Debug = true
			}
			return a.wire(cfg)
		},
	}
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path or libsql URL (default from CODEGRAPH_DB)")
	rootCmd.PersistentFlags().StringVar(&root, "root", "", "project root (default from CODEGRAPH_PROJECT_ROOT)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable SQL logging")

	rootCmd.AddCommand(
		newAnalyzeCmd(a),
		newStatsCmd(a),
		newDepsCmd(a),
		newDependentsCmd(a),
		newCyclesCmd(a),
		newInferCmd(a),
		newNodesCmd(a),
	)
	return rootCmd
}

// wire builds the engine stack from configuration.
func (a *app) wire(cfg *config.Config) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	gormDB, err := db.Connect(cfg.DatabaseDSN, db.Options{Debug: cfg.Debug, PoolSize: cfg.ConnectionPoolSize})
	if err != nil {
		return err
	}

	types := graph.NewEdgeTypeRegistry()
	if err := types.Validate(); err != nil {
		return err
	}

	store := graph.NewStore(gormDB, types, logger)
	if err := store.SaveEdgeTypes(); err != nil {
		return err
	}

	registry := query.NewRegistry()
	if err := query.RegisterBuiltins(registry); err != nil {
		return err
	}
	engine := query.NewEngine(registry, logger)
	mapper := query.NewKeyMapper(engine)

	pool := parser.NewPool(
		parser.WithMaxSuccessiveUses(cfg.ParserMaxSuccessiveUses),
		parser.WithLogger(logger),
	)
	ident := graph.NewGenerator(cfg.ProjectRoot)
	inference := graph.NewInferenceEngine(store, cfg.InferenceConfig(), logger)

	fileAnalyzer := analyzer.New(analyzer.Config{
		Pool:             pool,
		Mapper:           mapper,
		Store:            store,
		Generator:        ident,
		Resolver:         analyzer.NewResolver(cfg.ProjectRoot),
		Logger:           logger,
		CleanupEdgeTypes: cfg.AnalyzerCleanupEdgeTypes,
	})

	a.cfg = cfg
	a.store = store
	a.facade = graph.NewFacade(store, inference, ident)
	a.inference = inference
	a.analyzer = fileAnalyzer
	a.project = analyzer.NewProjectAnalyzer(fileAnalyzer, cfg.ProjectRoot, logger)
	a.ident = ident
	return nil
}
