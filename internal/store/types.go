// Package store provides the persistence layer behind the knowledge graph:
// shared configuration, owner-scoped context helpers, and a factory choosing
// between the standalone (SQLite) and managed (Postgres+pgvector) backends.
package store

// Config configures the store layer.
type Config struct {
	// PostgresDSN is the Postgres connection string. If empty, standalone
	// (SQLite) mode is used.
	PostgresDSN string

	// Mode: "standalone" (default) or "managed".
	Mode string

	// SQLitePath is the database file path for standalone mode.
	SQLitePath string

	// EmbeddingDims is the fixed embedding dimensionality agreed at deploy
	// time. The managed schema's vector columns are sized to it.
	EmbeddingDims int
}

// IsManaged returns true if the system is in managed (Postgres) mode.
func (c Config) IsManaged() bool {
	return c.PostgresDSN != "" && c.Mode == "managed"
}
