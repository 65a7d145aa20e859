// Package sqlite implements the standalone knowledge store on a local
// SQLite database. Embeddings are stored as JSON and similarity search is an
// in-process cosine scan, which is plenty for single-tenant deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/companionlabs/memgraph/internal/knowledge"
)

// KnowledgeStore implements knowledge.Store backed by SQLite.
type KnowledgeStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewKnowledgeStore opens (or creates) a SQLite database at the given path
// and initializes the schema.
func NewKnowledgeStore(dbPath string) (*KnowledgeStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &KnowledgeStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Info("knowledge store opened", "path", dbPath)
	return s, nil
}

func (s *KnowledgeStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS user_memories (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			knowledge_text TEXT NOT NULL,
			embedding TEXT NOT NULL DEFAULT '[]',
			attributes TEXT NOT NULL DEFAULT '{}',
			mention_count INTEGER NOT NULL DEFAULT 1,
			last_updated INTEGER NOT NULL DEFAULT (strftime('%s','now')),
			created_at INTEGER NOT NULL DEFAULT (strftime('%s','now')),
			UNIQUE (owner_id, knowledge_text)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_memories_owner ON user_memories(owner_id)`,
		`CREATE TABLE IF NOT EXISTS knowledge_edges (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			source_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			similarity_score REAL NOT NULL,
			relation_type TEXT NOT NULL DEFAULT '["semantic_similarity"]',
			created_at INTEGER NOT NULL DEFAULT (strftime('%s','now')),
			UNIQUE (owner_id, source_id, target_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_knowledge_edges_source ON knowledge_edges(owner_id, source_id)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:min(len(stmt), 60)], err)
		}
	}
	return nil
}

func (s *KnowledgeStore) FindByOwnerAndText(ctx context.Context, ownerID, text string) (*knowledge.MemoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, knowledge_text, embedding, attributes, mention_count, last_updated, created_at
		 FROM user_memories WHERE owner_id = ? AND knowledge_text = ?`,
		ownerID, text)

	rec, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *KnowledgeStore) InsertMemory(ctx context.Context, rec *knowledge.MemoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == uuid.Nil {
		rec.ID = uuid.Must(uuid.NewV7())
	}
	emb, err := json.Marshal(rec.Embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	attrs, err := json.Marshal(rec.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_memories (id, owner_id, knowledge_text, embedding, attributes, mention_count, last_updated, created_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		 ON CONFLICT (owner_id, knowledge_text)
		 DO UPDATE SET attributes = excluded.attributes,
		               mention_count = mention_count + 1,
		               last_updated = excluded.last_updated`,
		rec.ID.String(), rec.OwnerID, rec.Text, string(emb), string(attrs), now.Unix(), now.Unix())
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}

	// The upsert may have landed on an existing row; read back the
	// authoritative id and counters.
	row := s.db.QueryRowContext(ctx,
		`SELECT id, mention_count, created_at FROM user_memories WHERE owner_id = ? AND knowledge_text = ?`,
		rec.OwnerID, rec.Text)
	var idStr string
	var createdAt int64
	if err := row.Scan(&idStr, &rec.MentionCount, &createdAt); err != nil {
		return fmt.Errorf("read back memory: %w", err)
	}
	if id, err := uuid.Parse(idStr); err == nil {
		rec.ID = id
	}
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	rec.LastUpdated = now
	return nil
}

func (s *KnowledgeStore) UpdateMemory(ctx context.Context, id uuid.UUID, patch knowledge.MemoryPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	attrs, err := json.Marshal(patch.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE user_memories SET attributes = ?, mention_count = ?, last_updated = ? WHERE id = ?`,
		string(attrs), patch.MentionCount, patch.LastUpdated.Unix(), id.String())
	if err != nil {
		return fmt.Errorf("update memory: %w", err)
	}
	return nil
}

func (s *KnowledgeStore) ListByOwner(ctx context.Context, ownerID string, excludeID uuid.UUID) ([]knowledge.MemoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, knowledge_text, embedding, attributes, mention_count, last_updated, created_at
		 FROM user_memories WHERE owner_id = ? AND id <> ?`,
		ownerID, excludeID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemories(rows)
}

// SimilaritySearch loads the owner's memories and ranks them by cosine
// similarity in process.
func (s *KnowledgeStore) SimilaritySearch(ctx context.Context, ownerID string, query []float32, k int) ([]knowledge.MemoryRecord, error) {
	records, err := s.ListByOwner(ctx, ownerID, uuid.Nil)
	if err != nil {
		return nil, err
	}

	scored := records[:0]
	for _, rec := range records {
		if len(rec.Embedding) == 0 {
			continue
		}
		rec.Similarity = knowledge.CosineSimilarity(query, rec.Embedding)
		scored = append(scored, rec)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func (s *KnowledgeStore) GetMemoriesByIDs(ctx context.Context, ids []uuid.UUID) ([]knowledge.MemoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := ""
	args := make([]any, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args[i] = id.String()
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, knowledge_text, embedding, attributes, mention_count, last_updated, created_at
		 FROM user_memories WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemories(rows)
}

func (s *KnowledgeStore) EdgeExists(ctx context.Context, ownerID string, sourceID, targetID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM knowledge_edges WHERE owner_id = ? AND source_id = ? AND target_id = ?`,
		ownerID, sourceID.String(), targetID.String()).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *KnowledgeStore) InsertEdge(ctx context.Context, edge *knowledge.KnowledgeEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if edge.SourceID == edge.TargetID {
		return fmt.Errorf("self edge rejected: %s", edge.SourceID)
	}
	if edge.ID == uuid.Nil {
		edge.ID = uuid.Must(uuid.NewV7())
	}
	relations, err := json.Marshal(edge.RelationType)
	if err != nil {
		return fmt.Errorf("marshal relation types: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO knowledge_edges (id, owner_id, source_id, target_id, similarity_score, relation_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		edge.ID.String(), edge.OwnerID, edge.SourceID.String(), edge.TargetID.String(),
		edge.SimilarityScore, string(relations), now.Unix())
	if err != nil {
		return fmt.Errorf("insert edge: %w", err)
	}
	edge.CreatedAt = now
	return nil
}

func (s *KnowledgeStore) FindEdges(ctx context.Context, ownerID string, sourceID uuid.UUID, relationType string, minScore float64) ([]knowledge.KnowledgeEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, source_id, target_id, similarity_score, relation_type, created_at
		 FROM knowledge_edges
		 WHERE owner_id = ? AND source_id = ? AND similarity_score >= ?
		 ORDER BY similarity_score DESC`,
		ownerID, sourceID.String(), minScore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []knowledge.KnowledgeEdge
	for rows.Next() {
		var e knowledge.KnowledgeEdge
		var idStr, srcStr, dstStr, relations string
		var createdAt int64
		if err := rows.Scan(&idStr, &e.OwnerID, &srcStr, &dstStr,
			&e.SimilarityScore, &relations, &createdAt); err != nil {
			return nil, err
		}
		e.ID, _ = uuid.Parse(idStr)
		e.SourceID, _ = uuid.Parse(srcStr)
		e.TargetID, _ = uuid.Parse(dstStr)
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		json.Unmarshal([]byte(relations), &e.RelationType)

		if relationType != "" && !containsTag(e.RelationType, relationType) {
			continue
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func (s *KnowledgeStore) Close() error { return s.db.Close() }

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// --- scanning ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*knowledge.MemoryRecord, error) {
	var rec knowledge.MemoryRecord
	var idStr, emb, attrs string
	var lastUpdated, createdAt int64
	if err := row.Scan(&idStr, &rec.OwnerID, &rec.Text, &emb, &attrs,
		&rec.MentionCount, &lastUpdated, &createdAt); err != nil {
		return nil, err
	}
	rec.ID, _ = uuid.Parse(idStr)
	rec.LastUpdated = time.Unix(lastUpdated, 0).UTC()
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	json.Unmarshal([]byte(emb), &rec.Embedding)
	if err := json.Unmarshal([]byte(attrs), &rec.Attributes); err != nil {
		return nil, fmt.Errorf("unmarshal attributes for %s: %w", idStr, err)
	}
	return &rec, nil
}

func scanMemories(rows *sql.Rows) ([]knowledge.MemoryRecord, error) {
	var records []knowledge.MemoryRecord
	for rows.Next() {
		rec, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}
