package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
)

// fakeStore is an in-memory Store with failure injection for exercising the
// service paths without a database.
type fakeStore struct {
	mu       sync.Mutex
	memories []*MemoryRecord
	edges    []*KnowledgeEdge

	findErr       error
	insertErr     error
	updateErr     error
	listErr       error
	edgeExistsErr error
	insertEdgeErr error

	listCalls     int
	getByIDsCalls int
	lastMinScore  float64
	lastRelation  string
}

func newFakeStore() *fakeStore { return &fakeStore{} }

func (f *fakeStore) FindByOwnerAndText(_ context.Context, ownerID, text string) (*MemoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, m := range f.memories {
		if m.OwnerID == ownerID && m.Text == text {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) InsertMemory(_ context.Context, rec *MemoryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.Must(uuid.NewV7())
	}
	cp := *rec
	f.memories = append(f.memories, &cp)
	return nil
}

func (f *fakeStore) UpdateMemory(_ context.Context, id uuid.UUID, patch MemoryPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	for _, m := range f.memories {
		if m.ID == id {
			m.Attributes = patch.Attributes
			m.MentionCount = patch.MentionCount
			m.LastUpdated = patch.LastUpdated
			return nil
		}
	}
	return fmt.Errorf("memory %s not found", id)
}

func (f *fakeStore) ListByOwner(_ context.Context, ownerID string, excludeID uuid.UUID) ([]MemoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []MemoryRecord
	for _, m := range f.memories {
		if m.OwnerID == ownerID && m.ID != excludeID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeStore) SimilaritySearch(ctx context.Context, ownerID string, query []float32, k int) ([]MemoryRecord, error) {
	records, err := f.ListByOwner(ctx, ownerID, uuid.Nil)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].Similarity = CosineSimilarity(query, records[i].Embedding)
	}
	if k > 0 && len(records) > k {
		records = records[:k]
	}
	return records, nil
}

func (f *fakeStore) EdgeExists(_ context.Context, ownerID string, sourceID, targetID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.edgeExistsErr != nil {
		return false, f.edgeExistsErr
	}
	for _, e := range f.edges {
		if e.OwnerID == ownerID && e.SourceID == sourceID && e.TargetID == targetID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) InsertEdge(_ context.Context, edge *KnowledgeEdge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertEdgeErr != nil {
		return f.insertEdgeErr
	}
	if edge.SourceID == edge.TargetID {
		return fmt.Errorf("self edge rejected: %s", edge.SourceID)
	}
	if edge.ID == uuid.Nil {
		edge.ID = uuid.Must(uuid.NewV7())
	}
	cp := *edge
	f.edges = append(f.edges, &cp)
	return nil
}

func (f *fakeStore) FindEdges(_ context.Context, ownerID string, sourceID uuid.UUID, relationType string, minScore float64) ([]KnowledgeEdge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastMinScore = minScore
	f.lastRelation = relationType
	var out []KnowledgeEdge
	for _, e := range f.edges {
		if e.OwnerID != ownerID || e.SourceID != sourceID || e.SimilarityScore < minScore {
			continue
		}
		if relationType != "" && !hasTag(e.RelationType, relationType) {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (f *fakeStore) GetMemoriesByIDs(_ context.Context, ids []uuid.UUID) ([]MemoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getByIDsCalls++
	var out []MemoryRecord
	for _, id := range ids {
		for _, m := range f.memories {
			if m.ID == id {
				out = append(out, *m)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) Close() error { return nil }

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// staticEmbedder returns a fixed vector per text.
type staticEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (e *staticEmbedder) Name() string  { return "static" }
func (e *staticEmbedder) Model() string { return "test" }

func (e *staticEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := e.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = []float32{1, 0, 0}
		}
	}
	return out, nil
}

func newTestService(st Store, emb Embedder) *Service {
	return NewService(st, emb, DefaultConfig())
}

func TestIngest_Validation(t *testing.T) {
	svc := newTestService(newFakeStore(), &staticEmbedder{})

	tests := []struct {
		name  string
		owner string
		text  string
		attrs Attributes
	}{
		{"empty_owner", "", "some text", Attributes{}},
		{"empty_text", "user1", "", Attributes{}},
		{"importance_too_low", "user1", "text", Attributes{Importance: -0.1}},
		{"importance_too_high", "user1", "text", Attributes{Importance: 1.1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Ingest(context.Background(), tt.owner, tt.text, tt.attrs)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Ingest() error = %v, want ValidationError", err)
			}
		})
	}
}

func TestIngest_EmbedFailureAborts(t *testing.T) {
	st := newFakeStore()
	svc := newTestService(st, &staticEmbedder{err: errors.New("provider down")})

	_, err := svc.Ingest(context.Background(), "user1", "hello", Attributes{})
	var eerr *EmbeddingError
	if !errors.As(err, &eerr) {
		t.Fatalf("Ingest() error = %v, want EmbeddingError", err)
	}
	if len(st.memories) != 0 {
		t.Errorf("store has %d memories after failed embed, want 0", len(st.memories))
	}
}

func TestIngest_NewMemory(t *testing.T) {
	st := newFakeStore()
	svc := newTestService(st, &staticEmbedder{})

	attrs := Attributes{Topics: []string{"work"}, Importance: 0.5, Timestamp: "2025-04-07T10:00:00"}
	result, err := svc.Ingest(context.Background(), "user1", "I started a new job", attrs)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if result.Deduplicated {
		t.Error("Deduplicated = true for a first ingest")
	}
	if result.Record.ID == uuid.Nil {
		t.Error("record was not assigned an id")
	}
	if result.Record.MentionCount != 1 {
		t.Errorf("mention count = %d, want 1", result.Record.MentionCount)
	}
	if result.Edges == nil {
		t.Fatal("Edges = nil for a new memory")
	}
	if len(st.memories) != 1 {
		t.Errorf("store has %d memories, want 1", len(st.memories))
	}
}

func TestIngest_DedupIncrementsMentionCount(t *testing.T) {
	st := newFakeStore()
	svc := newTestService(st, &staticEmbedder{})

	ctx := context.Background()
	first, err := svc.Ingest(ctx, "user1", "I love hiking", Attributes{SentimentScore: 0.8})
	if err != nil {
		t.Fatalf("first Ingest() error = %v", err)
	}

	second, err := svc.Ingest(ctx, "user1", "I love hiking", Attributes{SentimentScore: 0.9})
	if err != nil {
		t.Fatalf("second Ingest() error = %v", err)
	}

	if !second.Deduplicated {
		t.Error("Deduplicated = false for a repeated text")
	}
	if second.Record.ID != first.Record.ID {
		t.Errorf("dedup returned id %s, want original %s", second.Record.ID, first.Record.ID)
	}
	if second.Record.MentionCount != 2 {
		t.Errorf("mention count = %d, want 2", second.Record.MentionCount)
	}
	if second.Record.Attributes.SentimentScore != 0.9 {
		t.Errorf("sentiment = %v, want refreshed 0.9", second.Record.Attributes.SentimentScore)
	}
	if second.Edges != nil {
		t.Error("dedup hit built edges; already-linked knowledge must not re-link")
	}
	if len(st.memories) != 1 {
		t.Errorf("store has %d memories, want 1", len(st.memories))
	}
}

func TestIngest_SameTextDifferentOwners(t *testing.T) {
	st := newFakeStore()
	svc := newTestService(st, &staticEmbedder{})

	ctx := context.Background()
	if _, err := svc.Ingest(ctx, "user1", "I love hiking", Attributes{}); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	result, err := svc.Ingest(ctx, "user2", "I love hiking", Attributes{})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if result.Deduplicated {
		t.Error("dedup fired across owners; records must be owner-scoped")
	}
	if len(st.memories) != 2 {
		t.Errorf("store has %d memories, want 2", len(st.memories))
	}
}

func TestIngest_EdgeInsertFailureDoesNotFailIngest(t *testing.T) {
	st := newFakeStore()
	emb := &staticEmbedder{vectors: map[string][]float32{
		"first":  {1, 0, 0},
		"second": {1, 0, 0},
	}}
	svc := newTestService(st, emb)

	ctx := context.Background()
	if _, err := svc.Ingest(ctx, "user1", "first", Attributes{}); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	st.insertEdgeErr = errors.New("disk full")
	result, err := svc.Ingest(ctx, "user1", "second", Attributes{})
	if err != nil {
		t.Fatalf("Ingest() error = %v, edge failures must not fail the ingest", err)
	}
	if len(result.Edges.Failures) != 1 {
		t.Errorf("edge failures = %d, want 1", len(result.Edges.Failures))
	}
	if pf := result.Edges.PartialFailure("user1", result.Record.ID); pf == nil {
		t.Error("PartialFailure() = nil, want summary error")
	}
	if len(st.memories) != 2 {
		t.Errorf("store has %d memories, want 2 (memory write is durable)", len(st.memories))
	}
}

func TestIngest_CandidateScanFailureRecordedOnResult(t *testing.T) {
	st := newFakeStore()
	st.listErr = errors.New("connection reset")
	svc := newTestService(st, &staticEmbedder{})

	result, err := svc.Ingest(context.Background(), "user1", "hello", Attributes{})
	if err != nil {
		t.Fatalf("Ingest() error = %v, want nil when only edge building fails", err)
	}
	if len(st.memories) != 1 {
		t.Fatalf("store has %d memories, want 1 (memory write is durable)", len(st.memories))
	}
	if result.Edges == nil {
		t.Fatal("Edges = nil, want a batch carrying the scan failure")
	}
	// An empty batch with no error would be indistinguishable from
	// "no similar memories"; the scan failure must be visible.
	var serr *StorageError
	if !errors.As(result.Edges.Err, &serr) {
		t.Errorf("Edges.Err = %v, want StorageError", result.Edges.Err)
	}
	if len(result.Edges.Created) != 0 {
		t.Errorf("created %d edges despite failed scan, want 0", len(result.Edges.Created))
	}
}

func TestIngest_CancellationDistinguishable(t *testing.T) {
	st := newFakeStore()
	emb := &staticEmbedder{vectors: map[string][]float32{
		"first":  {1, 0, 0},
		"second": {1, 0, 0},
	}}
	svc := newTestService(st, emb)

	if _, err := svc.Ingest(context.Background(), "user1", "first", Attributes{}); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	// The deadline hits during the candidate scan, after the memory insert.
	st.listErr = context.DeadlineExceeded
	result, err := svc.Ingest(context.Background(), "user1", "second", Attributes{})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if !errors.Is(result.Edges.Err, context.DeadlineExceeded) {
		t.Errorf("Edges.Err = %v, want to wrap context.DeadlineExceeded", result.Edges.Err)
	}
}
