// ABOUTME: The render command: load a problem file, abstract it once, and write the graph in a chosen format.
// ABOUTME: Display checkboxes are set from repeated --check flags before the abstraction runs.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/2389-research/conceptgraph/graph"
	"github.com/2389-research/conceptgraph/oracle"
	"github.com/2389-research/conceptgraph/problem"
	"github.com/2389-research/conceptgraph/render"
)

const formatText = "text"

type renderOptions struct {
	format string
	output string
	bound  int
	checks []string
}

func newRenderCmd(g *globals) *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render PROBLEM.yaml",
		Short: "Abstract a problem file and print its concept graph",
		Long: `Abstract a problem file once and write the concept graph.

Formats: text (default), dot, json, svg, png. svg and png need the graphviz
dot command. Use --check CONCEPT=INDEX to turn on a display checkbox; edge
indexes are 0 all_to_all, 1 edge_unknown, 2 none_to_none, 3 transitive and
label indexes are 0 necessarily, 1 maybe, 2 necessarily not.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, g, opts, args[0])
		},
	}
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatText, "output format: text, dot, json, svg, png")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write to a file instead of stdout")
	cmd.Flags().IntVar(&opts.bound, "bound", 0, "universe size per sort (overrides configuration)")
	cmd.Flags().StringArrayVar(&opts.checks, "check", nil, "turn on a display checkbox, as CONCEPT=INDEX")
	return cmd
}

func runRender(cmd *cobra.Command, g *globals, opts *renderOptions, path string) error {
	cfg, log, err := g.load(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if opts.bound > 0 {
		cfg.Oracle.Bound = opts.bound
	}

	compiled, err := problem.Load(path)
	if err != nil {
		return err
	}
	o := oracle.NewBounded(
		oracle.WithBound(cfg.Oracle.Bound),
		oracle.WithTimeout(cfg.Oracle.Timeout),
		oracle.WithLogger(log),
	)
	ctx := cmd.Context()
	gr, err := compiled.NewGraph(ctx, o, graph.WithLogger(log))
	if err != nil {
		return err
	}
	for _, c := range opts.checks {
		name, idx, err := parseCheck(c)
		if err != nil {
			return err
		}
		if err := gr.SetCheckbox(name, idx, true); err != nil {
			return err
		}
	}
	if err := gr.Recompute(ctx); err != nil {
		return err
	}
	out, err := gr.Render()
	if err != nil {
		return err
	}

	var data []byte
	if opts.format == formatText {
		data = []byte(summarize(compiled.Name, out))
	} else if data, err = render.Render(ctx, out, opts.format); err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), opts.output, data)
}

// parseCheck splits CONCEPT=INDEX at the last '='; concept names contain '=' themselves.
func parseCheck(s string) (string, int, error) {
	i := strings.LastIndex(s, "=")
	if i <= 0 {
		return "", 0, fmt.Errorf("--check %q: want CONCEPT=INDEX", s)
	}
	idx, err := strconv.Atoi(strings.TrimSpace(s[i+1:]))
	if err != nil {
		return "", 0, fmt.Errorf("--check %q: index: %w", s, err)
	}
	return strings.TrimSpace(s[:i]), idx, nil
}

func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
