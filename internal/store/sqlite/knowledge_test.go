package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/companionlabs/memgraph/internal/knowledge"
)

func openTestStore(t *testing.T) *KnowledgeStore {
	t.Helper()
	st, err := NewKnowledgeStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewKnowledgeStore() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func insertTestMemory(t *testing.T, st *KnowledgeStore, ownerID, text string, embedding []float32, attrs knowledge.Attributes) *knowledge.MemoryRecord {
	t.Helper()
	rec := &knowledge.MemoryRecord{
		OwnerID:    ownerID,
		Text:       text,
		Embedding:  embedding,
		Attributes: attrs,
	}
	if err := st.InsertMemory(context.Background(), rec); err != nil {
		t.Fatalf("InsertMemory(%q) error = %v", text, err)
	}
	return rec
}

func TestInsertAndFindMemory(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	attrs := knowledge.Attributes{
		SentimentScore:     0.7,
		Topics:             []string{"music", "vinyl"},
		EmotionalIntensity: knowledge.IntensityMedium,
		Importance:         0.8,
		Timestamp:          "2025-04-07T10:00:00",
	}
	rec := insertTestMemory(t, st, "user1", "bought a new record", []float32{0.1, 0.2, 0.3}, attrs)

	if rec.ID == uuid.Nil {
		t.Fatal("insert did not assign an id")
	}
	if rec.MentionCount != 1 {
		t.Errorf("mention count = %d, want 1", rec.MentionCount)
	}

	found, err := st.FindByOwnerAndText(ctx, "user1", "bought a new record")
	if err != nil {
		t.Fatalf("FindByOwnerAndText() error = %v", err)
	}
	if found == nil {
		t.Fatal("FindByOwnerAndText() = nil for an existing record")
	}
	if found.ID != rec.ID {
		t.Errorf("id = %s, want %s", found.ID, rec.ID)
	}
	if len(found.Embedding) != 3 {
		t.Errorf("embedding dims = %d, want 3", len(found.Embedding))
	}
	if found.Attributes.SentimentScore != 0.7 {
		t.Errorf("sentiment = %v, want 0.7", found.Attributes.SentimentScore)
	}
	if len(found.Attributes.Topics) != 2 {
		t.Errorf("topics = %v, want 2 entries", found.Attributes.Topics)
	}
}

func TestFindMemory_AbsentIsNil(t *testing.T) {
	st := openTestStore(t)

	found, err := st.FindByOwnerAndText(context.Background(), "user1", "never stored")
	if err != nil {
		t.Fatalf("FindByOwnerAndText() error = %v", err)
	}
	if found != nil {
		t.Errorf("FindByOwnerAndText() = %+v, want nil", found)
	}
}

func TestInsertMemory_UpsertOnDuplicate(t *testing.T) {
	st := openTestStore(t)

	first := insertTestMemory(t, st, "user1", "same text", []float32{1, 0},
		knowledge.Attributes{SentimentScore: 0.5})
	second := insertTestMemory(t, st, "user1", "same text", []float32{1, 0},
		knowledge.Attributes{SentimentScore: 0.9})

	if second.ID != first.ID {
		t.Errorf("upsert id = %s, want original %s", second.ID, first.ID)
	}
	if second.MentionCount != 2 {
		t.Errorf("mention count = %d, want 2", second.MentionCount)
	}

	found, err := st.FindByOwnerAndText(context.Background(), "user1", "same text")
	if err != nil {
		t.Fatalf("FindByOwnerAndText() error = %v", err)
	}
	if found.Attributes.SentimentScore != 0.9 {
		t.Errorf("sentiment = %v, want refreshed 0.9", found.Attributes.SentimentScore)
	}
}

func TestUpdateMemory(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	rec := insertTestMemory(t, st, "user1", "text", []float32{1, 0}, knowledge.Attributes{})

	patch := knowledge.MemoryPatch{
		Attributes:   knowledge.Attributes{SentimentScore: -0.4, EmotionalIntensity: knowledge.IntensityHigh},
		MentionCount: 5,
		LastUpdated:  rec.LastUpdated.Add(1),
	}
	if err := st.UpdateMemory(ctx, rec.ID, patch); err != nil {
		t.Fatalf("UpdateMemory() error = %v", err)
	}

	found, err := st.FindByOwnerAndText(ctx, "user1", "text")
	if err != nil {
		t.Fatalf("FindByOwnerAndText() error = %v", err)
	}
	if found.MentionCount != 5 {
		t.Errorf("mention count = %d, want 5", found.MentionCount)
	}
	if found.Attributes.EmotionalIntensity != knowledge.IntensityHigh {
		t.Errorf("intensity = %q, want high", found.Attributes.EmotionalIntensity)
	}
}

func TestListByOwner(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	a := insertTestMemory(t, st, "user1", "a", []float32{1, 0}, knowledge.Attributes{})
	insertTestMemory(t, st, "user1", "b", []float32{0, 1}, knowledge.Attributes{})
	insertTestMemory(t, st, "user2", "c", []float32{1, 1}, knowledge.Attributes{})

	all, err := st.ListByOwner(ctx, "user1", uuid.Nil)
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("ListByOwner() = %d records, want 2", len(all))
	}

	excluded, err := st.ListByOwner(ctx, "user1", a.ID)
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	if len(excluded) != 1 || excluded[0].Text != "b" {
		t.Errorf("ListByOwner(exclude a) = %d records, want only b", len(excluded))
	}
}

func TestSimilaritySearch_OrderAndCap(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	insertTestMemory(t, st, "user1", "exact", []float32{1, 0}, knowledge.Attributes{})
	insertTestMemory(t, st, "user1", "close", []float32{4, 3}, knowledge.Attributes{})
	insertTestMemory(t, st, "user1", "orthogonal", []float32{0, 1}, knowledge.Attributes{})

	results, err := st.SimilaritySearch(ctx, "user1", []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("SimilaritySearch() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (k cap)", len(results))
	}
	if results[0].Text != "exact" || results[1].Text != "close" {
		t.Errorf("order = [%s %s], want [exact close]", results[0].Text, results[1].Text)
	}
	if results[0].Similarity <= results[1].Similarity {
		t.Errorf("similarities not descending: %v, %v", results[0].Similarity, results[1].Similarity)
	}
	if results[0].Similarity < 0.999 {
		t.Errorf("exact match similarity = %v, want ~1.0", results[0].Similarity)
	}
}

func TestEdges(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	src := insertTestMemory(t, st, "user1", "source", []float32{1, 0}, knowledge.Attributes{})
	dst := insertTestMemory(t, st, "user1", "target", []float32{1, 0}, knowledge.Attributes{})

	edge := &knowledge.KnowledgeEdge{
		OwnerID:         "user1",
		SourceID:        src.ID,
		TargetID:        dst.ID,
		SimilarityScore: 0.92,
		RelationType:    []string{"habitual", "topic_cluster"},
	}
	if err := st.InsertEdge(ctx, edge); err != nil {
		t.Fatalf("InsertEdge() error = %v", err)
	}

	exists, err := st.EdgeExists(ctx, "user1", src.ID, dst.ID)
	if err != nil {
		t.Fatalf("EdgeExists() error = %v", err)
	}
	if !exists {
		t.Error("EdgeExists() = false after insert")
	}

	// Reverse direction is a different edge
	reverse, err := st.EdgeExists(ctx, "user1", dst.ID, src.ID)
	if err != nil {
		t.Fatalf("EdgeExists() error = %v", err)
	}
	if reverse {
		t.Error("EdgeExists() = true for the reverse direction")
	}

	// Duplicate insert is idempotent
	dup := &knowledge.KnowledgeEdge{
		OwnerID: "user1", SourceID: src.ID, TargetID: dst.ID,
		SimilarityScore: 0.5, RelationType: []string{"semantic_similarity"},
	}
	if err := st.InsertEdge(ctx, dup); err != nil {
		t.Fatalf("duplicate InsertEdge() error = %v", err)
	}
	edges, err := st.FindEdges(ctx, "user1", src.ID, "", 0)
	if err != nil {
		t.Fatalf("FindEdges() error = %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("got %d edges after duplicate insert, want 1", len(edges))
	}
	if edges[0].SimilarityScore != 0.92 {
		t.Errorf("score = %v, want original 0.92 (edges are insert-only)", edges[0].SimilarityScore)
	}
	if len(edges[0].RelationType) != 2 {
		t.Errorf("relation types = %v, want the original pair", edges[0].RelationType)
	}
}

func TestInsertEdge_SelfEdgeRejected(t *testing.T) {
	st := openTestStore(t)

	id := uuid.Must(uuid.NewV7())
	err := st.InsertEdge(context.Background(), &knowledge.KnowledgeEdge{
		OwnerID: "user1", SourceID: id, TargetID: id, SimilarityScore: 1.0,
	})
	if err == nil {
		t.Error("InsertEdge() accepted a self edge")
	}
}

func TestFindEdges_Filters(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	src := insertTestMemory(t, st, "user1", "source", []float32{1, 0}, knowledge.Attributes{})
	strong := insertTestMemory(t, st, "user1", "strong", []float32{1, 0}, knowledge.Attributes{})
	weak := insertTestMemory(t, st, "user1", "weak", []float32{1, 0}, knowledge.Attributes{})

	st.InsertEdge(ctx, &knowledge.KnowledgeEdge{
		OwnerID: "user1", SourceID: src.ID, TargetID: strong.ID,
		SimilarityScore: 0.95, RelationType: []string{"habitual"},
	})
	st.InsertEdge(ctx, &knowledge.KnowledgeEdge{
		OwnerID: "user1", SourceID: src.ID, TargetID: weak.ID,
		SimilarityScore: 0.76, RelationType: []string{"semantic_similarity"},
	})

	edges, err := st.FindEdges(ctx, "user1", src.ID, "", 0.9)
	if err != nil {
		t.Fatalf("FindEdges() error = %v", err)
	}
	if len(edges) != 1 || edges[0].TargetID != strong.ID {
		t.Errorf("minScore filter returned %d edges, want only the strong one", len(edges))
	}

	edges, err = st.FindEdges(ctx, "user1", src.ID, "habitual", 0)
	if err != nil {
		t.Fatalf("FindEdges() error = %v", err)
	}
	if len(edges) != 1 || edges[0].TargetID != strong.ID {
		t.Errorf("relation filter returned %d edges, want only the habitual one", len(edges))
	}
}

func TestGetMemoriesByIDs(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	a := insertTestMemory(t, st, "user1", "a", []float32{1, 0}, knowledge.Attributes{})
	insertTestMemory(t, st, "user1", "b", []float32{0, 1}, knowledge.Attributes{})

	records, err := st.GetMemoriesByIDs(ctx, []uuid.UUID{a.ID, uuid.Must(uuid.NewV7())})
	if err != nil {
		t.Fatalf("GetMemoriesByIDs() error = %v", err)
	}
	if len(records) != 1 || records[0].Text != "a" {
		t.Errorf("got %d records, want only a", len(records))
	}

	none, err := st.GetMemoriesByIDs(ctx, nil)
	if err != nil {
		t.Fatalf("GetMemoriesByIDs(nil) error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("got %d records for empty id list, want 0", len(none))
	}
}
