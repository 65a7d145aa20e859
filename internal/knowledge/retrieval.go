package knowledge

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/companionlabs/memgraph/internal/memfilter"
)

// DefaultSearchLimit caps similarity search when the caller passes k <= 0.
const DefaultSearchLimit = 30

// Search embeds the free-text query and returns the owner's nearest
// memories, ordered by decreasing similarity.
func (s *Service) Search(ctx context.Context, ownerID, query string, k int) ([]MemoryRecord, error) {
	ctx, span := tracer.Start(ctx, "knowledge.Search",
		trace.WithAttributes(attribute.String("owner_id", ownerID)))
	defer span.End()

	if ownerID == "" {
		return nil, &ValidationError{Field: "owner_id", Reason: "must not be empty"}
	}
	if query == "" {
		return nil, &ValidationError{Field: "query", Reason: "must not be empty"}
	}
	if k <= 0 {
		k = DefaultSearchLimit
	}

	vec, err := s.embedText(ctx, query)
	if err != nil {
		return nil, err
	}

	records, err := s.store.SimilaritySearch(ctx, ownerID, vec, k)
	if err != nil {
		return nil, &StorageError{Op: "similarity search", Err: err}
	}
	return records, nil
}

// SearchFiltered runs Search and narrows the result with the given filter.
// The filter sees each record through its flattened View.
func (s *Service) SearchFiltered(ctx context.Context, ownerID, query string, k int, filter *memfilter.Filter) ([]MemoryRecord, error) {
	records, err := s.Search(ctx, ownerID, query, k)
	if err != nil {
		return nil, err
	}
	return applyFilter(records, filter), nil
}

func applyFilter(records []MemoryRecord, filter *memfilter.Filter) []MemoryRecord {
	if filter == nil {
		return records
	}

	byID := make(map[string]MemoryRecord, len(records))
	views := make([]map[string]any, len(records))
	for i, rec := range records {
		byID[rec.ID.String()] = rec
		views[i] = rec.View()
	}

	kept := filter.Apply(views)
	out := make([]MemoryRecord, 0, len(kept))
	for _, view := range kept {
		id, _ := view["id"].(string)
		if rec, ok := byID[id]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// The preset retrievals below mirror the conversational layer's memory
// tools: each is a similarity search narrowed by a fixed filter chain.

// EmotionalIntensity surfaces high-intensity memories near the query.
func (s *Service) EmotionalIntensity(ctx context.Context, ownerID, query string, k int) ([]MemoryRecord, error) {
	return s.SearchFiltered(ctx, ownerID, query, k,
		memfilter.New().Match("emotional_intensity", IntensityHigh))
}

// LatestMemories returns recent memories sorted newest first.
func (s *Service) LatestMemories(ctx context.Context, ownerID, query string, k int) ([]MemoryRecord, error) {
	return s.SearchFiltered(ctx, ownerID, query, k,
		memfilter.New().
			LessThanOrEqual("timestamp", time.Now().UTC().Format(time.RFC3339)).
			SortByDate(memfilter.Desc))
}

// EmotionalMomentum surfaces high-intensity memories with strongly negative
// sentiment, indicating an emotional swing.
func (s *Service) EmotionalMomentum(ctx context.Context, ownerID, query string, k int) ([]MemoryRecord, error) {
	return s.SearchFiltered(ctx, ownerID, query, k,
		memfilter.New().
			Match("emotional_intensity", IntensityHigh).
			LessThanOrEqual("sentiment_score", -0.7))
}

// ContextWeighted surfaces first-time disclosures of high importance.
func (s *Service) ContextWeighted(ctx context.Context, ownerID, query string, k int) ([]MemoryRecord, error) {
	return s.SearchFiltered(ctx, ownerID, query, k,
		memfilter.New().
			Match("disclosure", true).
			GreaterThanOrEqual("importance", 0.7))
}

// MoodLanguage surfaces memories with a given language style.
func (s *Service) MoodLanguage(ctx context.Context, ownerID, query, style string, k int) ([]MemoryRecord, error) {
	return s.SearchFiltered(ctx, ownerID, query, k,
		memfilter.New().Match("language_style", style))
}

// MemorySurface returns medium-intensity ritual memories of high importance,
// used to reinforce thematic continuity.
func (s *Service) MemorySurface(ctx context.Context, ownerID, query string, k int) ([]MemoryRecord, error) {
	return s.SearchFiltered(ctx, ownerID, query, k,
		memfilter.New().
			Match("ritual", true).
			Match("emotional_intensity", IntensityMedium).
			GreaterThanOrEqual("importance", 0.7))
}

// Rituals returns memories tied to recurring personal routines.
func (s *Service) Rituals(ctx context.Context, ownerID, query string, k int) ([]MemoryRecord, error) {
	return s.SearchFiltered(ctx, ownerID, query, k,
		memfilter.New().Match("ritual", true))
}

// Boundaries returns memories flagged as boundary or consent discussions.
func (s *Service) Boundaries(ctx context.Context, ownerID, query string, k int) ([]MemoryRecord, error) {
	return s.SearchFiltered(ctx, ownerID, query, k,
		memfilter.New().Match("boundary_discussion", true))
}

// SelfAwareness returns memories reflecting on the assistant's own role.
func (s *Service) SelfAwareness(ctx context.Context, ownerID, query string, k int) ([]MemoryRecord, error) {
	return s.SearchFiltered(ctx, ownerID, query, k,
		memfilter.New().Match("self_awareness", true))
}

// Topics returns memories whose topic tags intersect the given list.
func (s *Service) Topics(ctx context.Context, ownerID, query string, topics []string, k int) ([]MemoryRecord, error) {
	items := make([]any, len(topics))
	for i, t := range topics {
		items[i] = t
	}
	return s.SearchFiltered(ctx, ownerID, query, k,
		memfilter.New().ContainsAny("topics", items))
}
