package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("memgraph/knowledge")

// Service wires the memory store and embedding provider into the graph
// operations. One instance is safe for concurrent use across owners; the
// only mutable state is the graph tuning, which Reconfigure may swap.
type Service struct {
	store    Store
	embedder Embedder

	mu  sync.RWMutex
	cfg Config
}

// NewService creates a Service. An all-zero cfg selects DefaultConfig;
// any other value is taken as explicit, so a literal 0 threshold or floor
// is honored. TopK is the exception: it must be positive, and a
// non-positive value falls back to the default.
func NewService(store Store, embedder Embedder, cfg Config) *Service {
	return &Service{store: store, embedder: embedder, cfg: normalizeConfig(cfg)}
}

// Reconfigure swaps the graph tuning at runtime, e.g. on a config reload
// during a long import. In-flight operations keep the tuning they started
// with; the same zero-value rules as NewService apply.
func (s *Service) Reconfigure(cfg Config) {
	cfg = normalizeConfig(cfg)
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *Service) config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func normalizeConfig(cfg Config) Config {
	if cfg == (Config{}) {
		return DefaultConfig()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultConfig().TopK
	}
	return cfg
}

// IngestResult reports the outcome of one ingest call.
type IngestResult struct {
	Record *MemoryRecord
	// Deduplicated is true when the text matched an existing record and only
	// its mention count and attributes were refreshed.
	Deduplicated bool
	// Edges is the edge-batch outcome for newly inserted records; nil on dedup.
	Edges *EdgeBatchResult
}

// Ingest embeds the text, dedups it against the owner's existing memories,
// and persists it. New records trigger synchronous edge building; dedup hits
// only bump the mention count (already-linked knowledge is not re-linked).
//
// Edge-insert failures do not fail the call: they are summarized in
// IngestResult.Edges. A store failure on the memory write itself aborts.
func (s *Service) Ingest(ctx context.Context, ownerID, text string, attrs Attributes) (*IngestResult, error) {
	ctx, span := tracer.Start(ctx, "knowledge.Ingest",
		trace.WithAttributes(attribute.String("owner_id", ownerID)))
	defer span.End()

	if ownerID == "" {
		return nil, &ValidationError{Field: "owner_id", Reason: "must not be empty"}
	}
	if text == "" {
		return nil, &ValidationError{Field: "text", Reason: "must not be empty"}
	}
	if attrs.Importance < 0 || attrs.Importance > 1 {
		return nil, &ValidationError{
			Field:  "importance",
			Reason: fmt.Sprintf("%v outside [0,1]", attrs.Importance),
		}
	}

	// Embed before any write: if this fails, nothing is stored.
	embedding, err := s.embedText(ctx, text)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.FindByOwnerAndText(ctx, ownerID, text)
	if err != nil {
		return nil, &StorageError{Op: "find memory", Err: err}
	}

	if existing != nil {
		patch := MemoryPatch{
			Attributes:   attrs,
			MentionCount: existing.MentionCount + 1,
			LastUpdated:  time.Now().UTC(),
		}
		if err := s.store.UpdateMemory(ctx, existing.ID, patch); err != nil {
			return nil, &StorageError{Op: "update memory", Err: err}
		}
		existing.Attributes = patch.Attributes
		existing.MentionCount = patch.MentionCount
		existing.LastUpdated = patch.LastUpdated
		slog.Debug("memory dedup hit", "owner_id", ownerID, "id", existing.ID, "mentions", existing.MentionCount)
		return &IngestResult{Record: existing, Deduplicated: true}, nil
	}

	rec := &MemoryRecord{
		OwnerID:      ownerID,
		Text:         text,
		Embedding:    embedding,
		Attributes:   attrs,
		MentionCount: 1,
		LastUpdated:  time.Now().UTC(),
	}
	if err := s.store.InsertMemory(ctx, rec); err != nil {
		return nil, &StorageError{Op: "insert memory", Err: err}
	}
	slog.Info("memory stored", "owner_id", ownerID, "id", rec.ID)

	// Edge building only starts once the insert above has been acknowledged:
	// edges reference the new id.
	edges, err := s.BuildEdges(ctx, ownerID, rec.ID, embedding, attrs)
	if err != nil {
		// The memory itself is durable, so a wholesale edge-building failure
		// (candidate scan, cancellation) does not fail the call. It is kept
		// on the result so callers can tell it apart from "no neighbors".
		slog.Warn("edge building failed", "owner_id", ownerID, "source_id", rec.ID, "error", err)
		if edges == nil {
			edges = &EdgeBatchResult{}
		}
		edges.Err = err
	}

	return &IngestResult{Record: rec, Edges: edges}, nil
}

func (s *Service) embedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, &EmbeddingError{Err: err}
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, &EmbeddingError{Err: fmt.Errorf("provider %s returned no embedding", s.embedder.Name())}
	}
	return vecs[0], nil
}
