// Package knowledge implements the memory knowledge graph: ingestion of
// extracted memories with owner-scoped deduplication, similarity-based edge
// building with typed relations, and 1-hop relational queries over the
// resulting graph.
package knowledge

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EmotionalIntensity levels produced by upstream extraction.
const (
	IntensityLow    = "low"
	IntensityMedium = "medium"
	IntensityHigh   = "high"
)

// Attributes is the structured metadata extracted from a memory's text.
type Attributes struct {
	SentimentScore     float64  `json:"sentiment_score"`
	Topics             []string `json:"topics"`
	EmotionalIntensity string   `json:"emotional_intensity"`
	Importance         float64  `json:"importance"`
	Disclosure         bool     `json:"disclosure"`
	RecurringTheme     bool     `json:"recurring_theme"`
	BoundaryDiscussion bool     `json:"boundary_discussion"`
	Ritual             bool     `json:"ritual"`
	SelfAwareness      bool     `json:"self_awareness"`
	LanguageStyle      string   `json:"language_style"`
	Timestamp          string   `json:"timestamp"` // ISO-8601
}

// MemoryRecord is one piece of extracted knowledge about an owner.
// At most one record exists per (OwnerID, Text) pair; repeats increment
// MentionCount instead of creating duplicates.
type MemoryRecord struct {
	ID           uuid.UUID  `json:"id"`
	OwnerID      string     `json:"owner_id"`
	Text         string     `json:"knowledge_text"`
	Embedding    []float32  `json:"embedding,omitempty"`
	Attributes   Attributes `json:"attributes"`
	MentionCount int        `json:"mention_count"`
	Similarity   float64    `json:"similarity,omitempty"` // populated by similarity search
	LastUpdated  time.Time  `json:"last_updated"`
	CreatedAt    time.Time  `json:"created_at"`
}

// View flattens a record into the map shape the memfilter engine consumes.
// This is the single normalization point between typed records and the
// filter's field lookup.
func (m *MemoryRecord) View() map[string]any {
	return map[string]any{
		"id":                  m.ID.String(),
		"knowledge_text":      m.Text,
		"mention_count":       m.MentionCount,
		"similarity":          m.Similarity,
		"sentiment_score":     m.Attributes.SentimentScore,
		"topics":              m.Attributes.Topics,
		"emotional_intensity": m.Attributes.EmotionalIntensity,
		"importance":          m.Attributes.Importance,
		"disclosure":          m.Attributes.Disclosure,
		"recurring_theme":     m.Attributes.RecurringTheme,
		"boundary_discussion": m.Attributes.BoundaryDiscussion,
		"ritual":              m.Attributes.Ritual,
		"self_awareness":      m.Attributes.SelfAwareness,
		"language_style":      m.Attributes.LanguageStyle,
		"timestamp":           m.Attributes.Timestamp,
	}
}

// KnowledgeEdge is a directed, typed link between two memories of the same
// owner. Edges are insert-only: created once by the edge builder, never
// updated in place.
type KnowledgeEdge struct {
	ID              uuid.UUID `json:"id"`
	OwnerID         string    `json:"owner_id"`
	SourceID        uuid.UUID `json:"source_id"`
	TargetID        uuid.UUID `json:"target_id"`
	SimilarityScore float64   `json:"similarity_score"`
	RelationType    []string  `json:"relation_type"`
	CreatedAt       time.Time `json:"created_at"`
}

// ConnectedMemory is the compact projection returned by graph queries.
type ConnectedMemory struct {
	Date string `json:"date"` // human-readable, empty if the timestamp was unparseable
	Text string `json:"text"`
}

// MemoryPatch is the set of fields a dedup hit may update.
type MemoryPatch struct {
	Attributes   Attributes
	MentionCount int
	LastUpdated  time.Time
}

// Embedder generates vector embeddings for text.
type Embedder interface {
	Name() string
	Model() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Store is the durable memory + edge store. All operations are owner-scoped.
type Store interface {
	// FindByOwnerAndText returns the record for (owner, text), or nil if absent.
	FindByOwnerAndText(ctx context.Context, ownerID, text string) (*MemoryRecord, error)
	// InsertMemory persists a new record, assigning ID and CreatedAt on it.
	// Implementations must upsert atomically on the (owner_id, knowledge_text)
	// unique key so concurrent ingests of the same text degrade to
	// mention-count increments rather than constraint failures.
	InsertMemory(ctx context.Context, rec *MemoryRecord) error
	UpdateMemory(ctx context.Context, id uuid.UUID, patch MemoryPatch) error
	// ListByOwner returns all records for the owner, embeddings included,
	// excluding excludeID when non-nil.
	ListByOwner(ctx context.Context, ownerID string, excludeID uuid.UUID) ([]MemoryRecord, error)
	// SimilaritySearch returns up to k records ordered by decreasing cosine
	// similarity to the query vector, with Similarity populated.
	SimilaritySearch(ctx context.Context, ownerID string, query []float32, k int) ([]MemoryRecord, error)

	EdgeExists(ctx context.Context, ownerID string, sourceID, targetID uuid.UUID) (bool, error)
	InsertEdge(ctx context.Context, edge *KnowledgeEdge) error
	// FindEdges returns edges from sourceID with similarity >= minScore,
	// optionally restricted to those carrying relationType.
	FindEdges(ctx context.Context, ownerID string, sourceID uuid.UUID, relationType string, minScore float64) ([]KnowledgeEdge, error)
	GetMemoriesByIDs(ctx context.Context, ids []uuid.UUID) ([]MemoryRecord, error)

	Close() error
}

// Config holds the graph tuning constants. The defaults match the reference
// deployment; changing them changes which memories get linked.
type Config struct {
	// SimilarityThreshold is the cosine similarity floor for edge creation.
	SimilarityThreshold float64
	// TopK caps how many candidates receive edges per new memory.
	TopK int
	// MinEdgeScore is the default similarity floor for graph queries.
	MinEdgeScore float64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.8,
		TopK:                5,
		MinEdgeScore:        0.75,
	}
}
