package knowledge

import (
	"context"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// EdgeBatchResult reports one edge-building pass for a new memory.
type EdgeBatchResult struct {
	Created  []KnowledgeEdge
	Skipped  int // candidates that already had an edge from this source
	Failures []EdgeFailure
	// Err is set when the pass itself failed wholesale (candidate scan or
	// cancellation), as opposed to per-target Failures. Created/Skipped still
	// describe whatever completed before the failure.
	Err error
}

// PartialFailure returns a non-fatal summary error when any edge insert
// failed, or nil when the batch was clean.
func (r *EdgeBatchResult) PartialFailure(ownerID string, sourceID uuid.UUID) *PartialEdgeFailure {
	if r == nil || len(r.Failures) == 0 {
		return nil
	}
	return &PartialEdgeFailure{OwnerID: ownerID, SourceID: sourceID, Failures: r.Failures}
}

// scoredCandidate pairs a candidate memory with its similarity to the source.
type scoredCandidate struct {
	record MemoryRecord
	score  float64
}

// BuildEdges links a newly stored memory to its most similar existing
// memories. Candidates below the similarity threshold are discarded, the
// survivors are ranked and capped at TopK, and each kept pair is classified
// by the relation rule table before insert.
//
// Edge inserts are best-effort: a failure for one target is logged and
// accumulated without blocking the rest of the batch. Fetching the candidate
// pool is the only fatal path.
func (s *Service) BuildEdges(ctx context.Context, ownerID string, sourceID uuid.UUID, sourceEmbedding []float32, sourceAttrs Attributes) (*EdgeBatchResult, error) {
	ctx, span := tracer.Start(ctx, "knowledge.BuildEdges",
		trace.WithAttributes(
			attribute.String("owner_id", ownerID),
			attribute.String("source_id", sourceID.String()),
		))
	defer span.End()

	cfg := s.config()

	candidates, err := s.store.ListByOwner(ctx, ownerID, sourceID)
	if err != nil {
		return nil, &StorageError{Op: "list memories", Err: err}
	}

	var scored []scoredCandidate
	for _, cand := range candidates {
		if cand.ID == sourceID {
			// ListByOwner excludes the source, but never trust the pool:
			// a self-edge must be impossible.
			continue
		}
		score := CosineSimilarity(sourceEmbedding, cand.Embedding)
		if score < cfg.SimilarityThreshold {
			continue
		}
		scored = append(scored, scoredCandidate{record: cand, score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if len(scored) > cfg.TopK {
		scored = scored[:cfg.TopK]
	}

	result := &EdgeBatchResult{}
	for _, cand := range scored {
		if err := ctx.Err(); err != nil {
			// Cancellation propagates; it is not a per-edge failure.
			return result, &StorageError{Op: "edge batch", Err: err}
		}

		exists, err := s.store.EdgeExists(ctx, ownerID, sourceID, cand.record.ID)
		if err != nil {
			slog.Warn("edge existence check failed", "owner_id", ownerID,
				"source_id", sourceID, "target_id", cand.record.ID, "error", err)
			result.Failures = append(result.Failures, EdgeFailure{TargetID: cand.record.ID, Err: err})
			continue
		}
		if exists {
			result.Skipped++
			continue
		}

		edge := &KnowledgeEdge{
			OwnerID:         ownerID,
			SourceID:        sourceID,
			TargetID:        cand.record.ID,
			SimilarityScore: cand.score,
			RelationType:    ClassifyRelation(sourceAttrs, cand.record.Attributes),
		}
		if err := s.store.InsertEdge(ctx, edge); err != nil {
			slog.Warn("edge insert failed", "owner_id", ownerID,
				"source_id", sourceID, "target_id", cand.record.ID, "error", err)
			result.Failures = append(result.Failures, EdgeFailure{TargetID: cand.record.ID, Err: err})
			continue
		}
		result.Created = append(result.Created, *edge)
	}

	if pf := result.PartialFailure(ownerID, sourceID); pf != nil {
		slog.Warn("edge batch completed with failures", "owner_id", ownerID,
			"source_id", sourceID, "created", len(result.Created), "failed", len(result.Failures))
	}
	return result, nil
}
