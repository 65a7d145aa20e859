package pg

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// SchemaEmbeddingDims is the vector dimensionality baked into the managed
// schema. Changing it requires a new migration, not a config edit.
const SchemaEmbeddingDims = 1536

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies pending schema migrations. dims, when non-zero, must match
// the schema's vector dimensionality; a mismatch is a deploy-time
// configuration error, caught here before any embedding is written.
func Migrate(db *sql.DB, dims int) error {
	if dims != 0 && dims != SchemaEmbeddingDims {
		return fmt.Errorf("embedding dims %d does not match schema vector(%d)", dims, SchemaEmbeddingDims)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	drv, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", drv)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}
