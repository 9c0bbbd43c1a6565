// ABOUTME: CLI entrypoint for the concept graph engine with render, serve, and version commands.
// ABOUTME: Loads .env files and configuration, then dispatches to the cobra command tree.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/2389-research/conceptgraph/config"
)

var version = "dev"

// globals holds flags shared by every subcommand.
type globals struct {
	configPath string
	verbose    bool
}

func main() {
	config.LoadDotEnvAuto()
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "conceptgraph",
		Short: "Explore finite abstractions of first-order constraints as concept graphs",
		Long: `conceptgraph builds a graph of concepts from a problem file, asks a bounded
model finder which combinations of concepts are valid, unsatisfiable, or unknown,
and renders the result as DOT, Cytoscape JSON, SVG, PNG, or a text summary.`,
		SilenceUsage: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", config.DefaultPath(), "configuration file")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newRenderCmd(g), newServeCmd(g), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "conceptgraph %s\n", version)
		},
	}
}

// load reads the configuration and builds the logger it describes.
func (g *globals) load(stderr io.Writer) (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	log := cfg.Log.Logger()
	log.SetOutput(stderr)
	if g.verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return cfg, log, nil
}
