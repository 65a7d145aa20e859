// Package cmd implements the memgraph command line interface.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var configFlag string

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memgraph",
		Short: "Memory knowledge graph for conversational agents",
		Long:  "memgraph ingests memories, links them into a knowledge graph, and serves similarity and graph queries over them.",
	}
	cmd.PersistentFlags().StringVar(&configFlag, "config", "", "path to config file")

	cmd.AddCommand(ingestCmd())
	cmd.AddCommand(importCmd())
	cmd.AddCommand(relatedCmd())
	cmd.AddCommand(searchCmd())
	cmd.AddCommand(migrateCmd())
	cmd.AddCommand(configCmd())
	return cmd
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolveConfigPath picks the config file: --config flag, then
// MEMGRAPH_CONFIG, then ~/.memgraph/config.json5.
func resolveConfigPath() string {
	if configFlag != "" {
		return configFlag
	}
	if env := os.Getenv("MEMGRAPH_CONFIG"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.json5"
	}
	return filepath.Join(home, ".memgraph", "config.json5")
}
