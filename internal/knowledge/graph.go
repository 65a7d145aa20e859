package knowledge

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ConnectedOptions narrows a connected-memories query.
type ConnectedOptions struct {
	// RelationType, when non-empty, requires the tag to appear in the edge's
	// relation list.
	RelationType string
	// MinScore overrides the configured similarity floor. nil keeps the
	// default; a pointer so an explicit 0 floor is expressible.
	MinScore *float64
}

// ConnectedMemories returns the memories one hop away from sourceID,
// projected to (date, text). Absence of neighbors is a normal outcome: the
// result is an empty slice, not an error. No multi-hop traversal.
func (s *Service) ConnectedMemories(ctx context.Context, ownerID string, sourceID uuid.UUID, opts ConnectedOptions) ([]ConnectedMemory, error) {
	ctx, span := tracer.Start(ctx, "knowledge.ConnectedMemories",
		trace.WithAttributes(
			attribute.String("owner_id", ownerID),
			attribute.String("source_id", sourceID.String()),
		))
	defer span.End()

	if ownerID == "" {
		return nil, &ValidationError{Field: "owner_id", Reason: "must not be empty"}
	}

	minScore := s.config().MinEdgeScore
	if opts.MinScore != nil {
		minScore = *opts.MinScore
	}

	edges, err := s.store.FindEdges(ctx, ownerID, sourceID, opts.RelationType, minScore)
	if err != nil {
		return nil, &StorageError{Op: "find edges", Err: err}
	}
	if len(edges) == 0 {
		return []ConnectedMemory{}, nil
	}

	targetIDs := make([]uuid.UUID, 0, len(edges))
	for _, e := range edges {
		targetIDs = append(targetIDs, e.TargetID)
	}

	records, err := s.store.GetMemoriesByIDs(ctx, targetIDs)
	if err != nil {
		return nil, &StorageError{Op: "get memories", Err: err}
	}

	connected := make([]ConnectedMemory, 0, len(records))
	for _, rec := range records {
		connected = append(connected, ConnectedMemory{
			Date: humanDate(rec.Attributes.Timestamp),
			Text: rec.Text,
		})
	}
	return connected, nil
}
