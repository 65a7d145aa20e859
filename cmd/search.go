package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/companionlabs/memgraph/internal/knowledge"
)

func searchCmd() *cobra.Command {
	var limit int
	var preset string
	var style string
	var topics []string
	cmd := &cobra.Command{
		Use:   "search <owner> <query>",
		Short: "Similarity search over an owner's memories",
		Long: `Similarity search over an owner's memories.

Presets narrow the result with a fixed filter chain:
  intensity, latest, momentum, context, mood, surface,
  rituals, boundaries, self-awareness, topics`,
		Args: cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()

			svc, st, err := openService(cfg)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			defer st.Close()

			ctx := context.Background()
			owner := resolveOwner(args[0])
			query := args[1]

			records, err := runSearch(ctx, svc, preset, owner, query, style, topics, limit)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Search failed: %s\n", err)
				os.Exit(1)
			}

			views := make([]map[string]any, len(records))
			for i, rec := range records {
				views[i] = rec.View()
			}
			data, _ := json.MarshalIndent(views, "", "  ")
			fmt.Println(string(data))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "max results (0 uses the default)")
	cmd.Flags().StringVar(&preset, "preset", "", "retrieval preset")
	cmd.Flags().StringVar(&style, "style", "", "language style for the mood preset")
	cmd.Flags().StringSliceVar(&topics, "topic", nil, "topic tags for the topics preset")
	return cmd
}

func runSearch(ctx context.Context, svc *knowledge.Service, preset, owner, query, style string, topics []string, limit int) ([]knowledge.MemoryRecord, error) {
	switch strings.ToLower(preset) {
	case "":
		return svc.Search(ctx, owner, query, limit)
	case "intensity":
		return svc.EmotionalIntensity(ctx, owner, query, limit)
	case "latest":
		return svc.LatestMemories(ctx, owner, query, limit)
	case "momentum":
		return svc.EmotionalMomentum(ctx, owner, query, limit)
	case "context":
		return svc.ContextWeighted(ctx, owner, query, limit)
	case "mood":
		if style == "" {
			return nil, fmt.Errorf("--style is required for the mood preset")
		}
		return svc.MoodLanguage(ctx, owner, query, style, limit)
	case "surface":
		return svc.MemorySurface(ctx, owner, query, limit)
	case "rituals":
		return svc.Rituals(ctx, owner, query, limit)
	case "boundaries":
		return svc.Boundaries(ctx, owner, query, limit)
	case "self-awareness":
		return svc.SelfAwareness(ctx, owner, query, limit)
	case "topics":
		if len(topics) == 0 {
			return nil, fmt.Errorf("--topic is required for the topics preset")
		}
		return svc.Topics(ctx, owner, query, topics, limit)
	default:
		return nil, fmt.Errorf("unknown preset %q", preset)
	}
}
