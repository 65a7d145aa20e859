package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/companionlabs/memgraph/internal/knowledge"
)

func relatedCmd() *cobra.Command {
	var relationType string
	var minScore float64
	cmd := &cobra.Command{
		Use:   "related <owner> <memory-id>",
		Short: "List memories connected to a memory in the knowledge graph",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()

			memoryID, err := uuid.Parse(args[1])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Invalid memory id %q: %s\n", args[1], err)
				os.Exit(1)
			}

			svc, st, err := openService(cfg)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			defer st.Close()

			owner := resolveOwner(args[0])
			opts := knowledge.ConnectedOptions{RelationType: relationType}
			if cmd.Flags().Changed("min-score") {
				opts.MinScore = &minScore
			}
			connected, err := svc.ConnectedMemories(context.Background(), owner, memoryID, opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Query failed: %s\n", err)
				os.Exit(1)
			}

			data, _ := json.MarshalIndent(connected, "", "  ")
			fmt.Println(string(data))
		},
	}
	cmd.Flags().StringVar(&relationType, "relation", "", "only edges carrying this relation tag")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "similarity floor (defaults to the configured value)")
	return cmd
}
