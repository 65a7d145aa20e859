package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/companionlabs/memgraph/internal/knowledge"
)

// KnowledgeStore implements knowledge.Store backed by Postgres + pgvector.
type KnowledgeStore struct {
	db *sql.DB
}

func NewKnowledgeStore(db *sql.DB) *KnowledgeStore {
	return &KnowledgeStore{db: db}
}

const memoryColumns = `id, owner_id, knowledge_text, embedding::text, attributes, mention_count, last_updated, created_at`

func (s *KnowledgeStore) FindByOwnerAndText(ctx context.Context, ownerID, text string) (*knowledge.MemoryRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memoryColumns+` FROM user_memories WHERE owner_id = $1 AND knowledge_text = $2`,
		ownerID, text)

	rec, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// InsertMemory upserts on the (owner_id, knowledge_text) unique key:
// concurrent ingests of the same text degrade to mention-count increments
// instead of constraint failures.
func (s *KnowledgeStore) InsertMemory(ctx context.Context, rec *knowledge.MemoryRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.Must(uuid.NewV7())
	}
	attrs, err := json.Marshal(rec.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}

	now := nowUTC()
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO user_memories (id, owner_id, knowledge_text, embedding, attributes, mention_count, last_updated, created_at)
		 VALUES ($1, $2, $3, $4::vector, $5, 1, $6, $6)
		 ON CONFLICT (owner_id, knowledge_text)
		 DO UPDATE SET attributes = EXCLUDED.attributes,
		               mention_count = user_memories.mention_count + 1,
		               last_updated = EXCLUDED.last_updated
		 RETURNING id, mention_count, created_at`,
		rec.ID, rec.OwnerID, rec.Text, vectorToString(rec.Embedding), attrs, now,
	).Scan(&rec.ID, &rec.MentionCount, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	rec.LastUpdated = now
	return nil
}

func (s *KnowledgeStore) UpdateMemory(ctx context.Context, id uuid.UUID, patch knowledge.MemoryPatch) error {
	attrs, err := json.Marshal(patch.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE user_memories SET attributes = $1, mention_count = $2, last_updated = $3 WHERE id = $4`,
		attrs, patch.MentionCount, patch.LastUpdated, id)
	if err != nil {
		return fmt.Errorf("update memory: %w", err)
	}
	return nil
}

func (s *KnowledgeStore) ListByOwner(ctx context.Context, ownerID string, excludeID uuid.UUID) ([]knowledge.MemoryRecord, error) {
	var rows *sql.Rows
	var err error
	if excludeID == uuid.Nil {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+memoryColumns+` FROM user_memories WHERE owner_id = $1`, ownerID)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+memoryColumns+` FROM user_memories WHERE owner_id = $1 AND id <> $2`,
			ownerID, excludeID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemories(rows)
}

func (s *KnowledgeStore) SimilaritySearch(ctx context.Context, ownerID string, query []float32, k int) ([]knowledge.MemoryRecord, error) {
	vecStr := vectorToString(query)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memoryColumns+`, 1 - (embedding <=> $2::vector) AS similarity
		 FROM user_memories
		 WHERE owner_id = $1 AND embedding IS NOT NULL
		 ORDER BY embedding <=> $2::vector
		 LIMIT $3`,
		ownerID, vecStr, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []knowledge.MemoryRecord
	for rows.Next() {
		var rec knowledge.MemoryRecord
		var embText sql.NullString
		var attrs []byte
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.Text, &embText, &attrs,
			&rec.MentionCount, &rec.LastUpdated, &rec.CreatedAt, &rec.Similarity); err != nil {
			return nil, err
		}
		if embText.Valid {
			rec.Embedding = parseVector(embText.String)
		}
		if err := json.Unmarshal(attrs, &rec.Attributes); err != nil {
			return nil, fmt.Errorf("unmarshal attributes for %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *KnowledgeStore) GetMemoriesByIDs(ctx context.Context, ids []uuid.UUID) ([]knowledge.MemoryRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memoryColumns+` FROM user_memories WHERE id = ANY($1::uuid[])`,
		pqUUIDArray(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemories(rows)
}

func (s *KnowledgeStore) Close() error { return s.db.Close() }

// --- scanning ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*knowledge.MemoryRecord, error) {
	var rec knowledge.MemoryRecord
	var embText sql.NullString
	var attrs []byte
	if err := row.Scan(&rec.ID, &rec.OwnerID, &rec.Text, &embText, &attrs,
		&rec.MentionCount, &rec.LastUpdated, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if embText.Valid {
		rec.Embedding = parseVector(embText.String)
	}
	if err := json.Unmarshal(attrs, &rec.Attributes); err != nil {
		return nil, fmt.Errorf("unmarshal attributes for %s: %w", rec.ID, err)
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
