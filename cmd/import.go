package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/companionlabs/memgraph/internal/config"
	"github.com/companionlabs/memgraph/internal/knowledge"
)

// importCmd bulk-ingests memories from stdin, one JSON object per line:
//
//	{"text": "...", "attrs": {...}}
//
// Imports can run for a long time, so the config file is watched while the
// command runs: graph-tuning changes (threshold, topK, edge-score floor)
// take effect for the records that follow the reload.
func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <owner>",
		Short: "Bulk-ingest memories from stdin (JSON lines)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()

			svc, st, err := openService(cfg)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			defer st.Close()

			watcher, err := config.WatchConfig(resolveConfigPath())
			if err != nil {
				// Imports still work without hot reload, e.g. when no
				// config file exists yet.
				slog.Warn("config watch unavailable, tuning is fixed for this import", "error", err)
			} else {
				defer watcher.Close()
			}

			owner := resolveOwner(args[0])
			imported, deduplicated, failed := runImport(svc, watcher, owner, os.Stdin)
			fmt.Printf("imported %d, deduplicated %d, failed %d\n", imported, deduplicated, failed)
			if failed > 0 {
				os.Exit(1)
			}
		},
	}
	return cmd
}

type importLine struct {
	Text  string               `json:"text"`
	Attrs knowledge.Attributes `json:"attrs"`
}

func runImport(svc *knowledge.Service, watcher *config.Watcher, owner string, in io.Reader) (imported, deduplicated, failed int) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if watcher != nil {
			select {
			case newCfg := <-watcher.C:
				svc.Reconfigure(knowledge.Config{
					SimilarityThreshold: newCfg.Graph.SimilarityThreshold,
					TopK:                newCfg.Graph.TopK,
					MinEdgeScore:        newCfg.Graph.MinEdgeScore,
				})
				slog.Info("graph tuning updated mid-import",
					"threshold", newCfg.Graph.SimilarityThreshold,
					"top_k", newCfg.Graph.TopK)
			default:
			}
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var item importLine
		if err := json.Unmarshal(line, &item); err != nil {
			fmt.Fprintf(os.Stderr, "skipping malformed line: %s\n", err)
			failed++
			continue
		}

		result, err := svc.Ingest(context.Background(), owner, item.Text, item.Attrs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ingest failed: %s\n", err)
			failed++
			continue
		}
		if result.Deduplicated {
			deduplicated++
		} else {
			imported++
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "read stdin: %s\n", err)
		failed++
	}
	return imported, deduplicated, failed
}
