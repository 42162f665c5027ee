package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oxhq/codegraph/analyzer"
	"github.com/oxhq/codegraph/lang"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		include  []string
		exclude  []string
		langs    []string
		workers  int
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "analyze [paths...]",
		Short: "Analyze files or the whole project into the graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) > 0 {
				for _, path := range args {
					res, err := a.analyzer.AnalyzeFile(ctx, path, analyzer.Options{})
					if err != nil {
						return err
					}
					printResult(res, asJSON)
				}
				return nil
			}

			opts := analyzer.ProjectOptions{
				Include: include,
				Exclude: exclude,
				Workers: workers,
			}
			for _, name := range langs {
				l := lang.Language(name)
				if !lang.Valid(l) {
					return fmt.Errorf("unsupported language %q", name)
				}
				opts.Languages = append(opts.Languages, l)
			}
			if len(opts.Languages) == 0 {
				opts.Languages = a.cfg.SupportedLanguages
			}
			if opts.Workers == 0 {
				opts.Workers = a.cfg.ProjectWorkers
			}
			res, err := a.project.AnalyzeProject(ctx, opts)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(res)
			}
			fmt.Printf("analyzed %d files (%d failed): %d nodes, %d relationships created\n",
				res.FilesAnalyzed, res.FilesFailed, res.NodesCreated, res.RelationshipsCreated)
			for _, w := range res.Warnings {
				fmt.Fprintf(os.Stderr, "warning: %s\n", w)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&include, "include", nil, "include globs (doublestar)")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "exclude globs (doublestar)")
	cmd.Flags().StringSliceVar(&langs, "lang", nil, "restrict to languages")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent file analyses")
	cmd.Flags().BoolVar(&asJSON, "json", false, "JSON output")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print graph totals and breakdowns",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := a.facade.ProjectStats()
			if err != nil {
				return err
			}
			return printJSON(stats)
		},
	}
}

func newDepsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deps <file>",
		Short: "List the targets of a file's dependency edges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nodes, err := a.facade.FileDependencies(args[0])
			if err != nil {
				return err
			}
			for _, n := range nodes {
				fmt.Printf("%s\t%s\t%s\n", n.Type, n.Name, n.Identifier)
			}
			return nil
		},
	}
}

func newDependentsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dependents <file>",
		Short: "List the files that depend on a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nodes, err := a.facade.FileDependents(args[0])
			if err != nil {
				return err
			}
			for _, n := range nodes {
				fmt.Printf("%s\t%s\t%s\n", n.Type, n.Name, n.Identifier)
			}
			return nil
		},
	}
}

func newCyclesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cycles",
		Short: "Detect circular dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cycles, err := a.facade.CircularDependencies(cmd.Context())
			if err != nil {
				return err
			}
			if len(cycles) == 0 {
				fmt.Println("no circular dependencies")
				return nil
			}
			for _, cycle := range cycles {
				for i, n := range cycle.Nodes {
					if i > 0 {
						fmt.Print(" -> ")
					}
					fmt.Print(n.Name)
				}
				fmt.Println()
			}
			return nil
		},
	}
}

func newInferCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "infer <identifier>",
		Short: "Run every inference mode for a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := a.store.NodeByIdentifier(args[0])
			if err != nil {
				return err
			}
			res, err := a.inference.InferAll(cmd.Context(), node.ID)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
}

func newNodesCmd(a *app) *cobra.Command {
	var byType string
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "List nodes, optionally filtered by type",
		RunE: func(cmd *cobra.Command, args []string) error {
			if byType != "" {
				nodes, err := a.facade.ListNodesByType(byType)
				if err != nil {
					return err
				}
				for _, n := range nodes {
					fmt.Printf("%s\t%s\t%s\n", n.Type, n.Name, n.Identifier)
				}
				return nil
			}
			listing, err := a.facade.ListAllNodes()
			if err != nil {
				return err
			}
			for _, n := range listing.Nodes {
				fmt.Printf("%s\t%s\t%s\n", n.Type, n.Name, n.Identifier)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&byType, "type", "", "node type filter")
	return cmd
}

func printResult(res *analyzer.Result, asJSON bool) {
	if asJSON {
		_ = printJSON(res)
		return
	}
	fmt.Printf("%s: %d nodes, %d relationships created\n", res.Path, res.NodesCreated, res.RelationshipsCreated)
	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	for _, u := range res.UnresolvedInternal {
		fmt.Fprintf(os.Stderr, "unresolved: %s\n", u)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
