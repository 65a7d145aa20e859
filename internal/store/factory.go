package store

import (
	"fmt"

	"github.com/companionlabs/memgraph/internal/knowledge"
	"github.com/companionlabs/memgraph/internal/store/pg"
	"github.com/companionlabs/memgraph/internal/store/sqlite"
)

// Open returns the knowledge store for the configured mode: Postgres with
// pgvector in managed mode, SQLite in standalone mode. Managed mode runs
// pending schema migrations on open.
func Open(cfg Config) (knowledge.Store, error) {
	if cfg.IsManaged() {
		db, err := pg.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(db, cfg.EmbeddingDims); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return pg.NewKnowledgeStore(db), nil
	}

	if cfg.SQLitePath == "" {
		return nil, fmt.Errorf("standalone mode requires a sqlite path")
	}
	return sqlite.NewKnowledgeStore(cfg.SQLitePath)
}
