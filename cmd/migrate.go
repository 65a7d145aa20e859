package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/companionlabs/memgraph/internal/store/pg"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply Postgres schema migrations (managed mode)",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()

			if cfg.Database.Mode != "managed" {
				fmt.Fprintln(os.Stderr, "Error: migrate only applies to managed (Postgres) mode.")
				fmt.Fprintln(os.Stderr, "Standalone SQLite migrates itself on open.")
				os.Exit(1)
			}

			db, err := pg.OpenDB(cfg.Database.PostgresDSN)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error connecting to Postgres: %s\n", err)
				os.Exit(1)
			}
			defer db.Close()

			if err := pg.Migrate(db, cfg.Embedding.Dims); err != nil {
				fmt.Fprintf(os.Stderr, "Migration failed: %s\n", err)
				os.Exit(1)
			}
			fmt.Println("Migrations applied.")
		},
	}
}
