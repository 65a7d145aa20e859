package pg

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/companionlabs/memgraph/internal/knowledge"
)

func (s *KnowledgeStore) EdgeExists(ctx context.Context, ownerID string, sourceID, targetID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM knowledge_edges
			WHERE owner_id = $1 AND source_id = $2 AND target_id = $3
		 )`,
		ownerID, sourceID, targetID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// InsertEdge persists an edge. ON CONFLICT DO NOTHING keeps the operation
// idempotent under the (owner_id, source_id, target_id) unique key.
func (s *KnowledgeStore) InsertEdge(ctx context.Context, edge *knowledge.KnowledgeEdge) error {
	if edge.SourceID == edge.TargetID {
		return fmt.Errorf("self edge rejected: %s", edge.SourceID)
	}
	if edge.ID == uuid.Nil {
		edge.ID = uuid.Must(uuid.NewV7())
	}
	now := nowUTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO knowledge_edges (id, owner_id, source_id, target_id, similarity_score, relation_type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (owner_id, source_id, target_id) DO NOTHING`,
		edge.ID, edge.OwnerID, edge.SourceID, edge.TargetID,
		edge.SimilarityScore, pqStringArray(edge.RelationType), now)
	if err != nil {
		return fmt.Errorf("insert edge: %w", err)
	}
	edge.CreatedAt = now
	return nil
}

func (s *KnowledgeStore) FindEdges(ctx context.Context, ownerID string, sourceID uuid.UUID, relationType string, minScore float64) ([]knowledge.KnowledgeEdge, error) {
	q := `SELECT id, owner_id, source_id, target_id, similarity_score, relation_type, created_at
	      FROM knowledge_edges
	      WHERE owner_id = $1 AND source_id = $2 AND similarity_score >= $3`
	args := []any{ownerID, sourceID, minScore}

	if relationType != "" {
		args = append(args, relationType)
		q += fmt.Sprintf(" AND $%d = ANY(relation_type)", len(args))
	}
	q += " ORDER BY similarity_score DESC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []knowledge.KnowledgeEdge
	for rows.Next() {
		var e knowledge.KnowledgeEdge
		var relations []byte
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.SourceID, &e.TargetID,
			&e.SimilarityScore, &relations, &e.CreatedAt); err != nil {
			return nil, err
		}
		scanStringArray(relations, &e.RelationType)
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
