package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/companionlabs/memgraph/internal/knowledge"
)

func ingestCmd() *cobra.Command {
	var attrsJSON string
	cmd := &cobra.Command{
		Use:   "ingest <owner> <text>",
		Short: "Ingest a memory and link it into the knowledge graph",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()

			var attrs knowledge.Attributes
			if attrsJSON != "" {
				if err := json.Unmarshal([]byte(attrsJSON), &attrs); err != nil {
					fmt.Fprintf(os.Stderr, "Invalid --attrs: %s\n", err)
					os.Exit(1)
				}
			}

			svc, st, err := openService(cfg)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			defer st.Close()

			owner := resolveOwner(args[0])
			result, err := svc.Ingest(context.Background(), owner, args[1], attrs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Ingest failed: %s\n", err)
				os.Exit(1)
			}

			printIngestResult(result)
		},
	}
	cmd.Flags().StringVar(&attrsJSON, "attrs", "", "memory attributes as JSON")
	return cmd
}

func printIngestResult(result *knowledge.IngestResult) {
	out := map[string]any{
		"memory":       result.Record.View(),
		"deduplicated": result.Deduplicated,
	}
	// Edges is nil on the dedup path: existing knowledge is not re-linked.
	if result.Edges != nil {
		out["edgesCreated"] = len(result.Edges.Created)
		out["edgesSkipped"] = result.Edges.Skipped
		if result.Edges.Err != nil {
			out["edgeError"] = result.Edges.Err.Error()
		}
		if len(result.Edges.Failures) > 0 {
			var failures []string
			for _, f := range result.Edges.Failures {
				failures = append(failures, f.Error())
			}
			out["edgeFailures"] = failures
		}
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(data))
}
