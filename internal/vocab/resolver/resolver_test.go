package resolver

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/epigraph-ai/epigraph-backend/internal/domain"
	"github.com/epigraph-ai/epigraph-backend/internal/platform/logger"
	"github.com/epigraph-ai/epigraph-backend/internal/vocab/normalizer"
)

type fakeStore struct {
	byName map[string]*domain.VocabularyType
}

func newFakeStore(names ...string) *fakeStore {
	s := &fakeStore{byName: map[string]*domain.VocabularyType{}}
	for _, name := range names {
		s.byName[name] = &domain.VocabularyType{
			ID:             uuid.New(),
			Name:           name,
			Category:       "causal",
			CategorySource: domain.CategorySourceClassified,
		}
	}
	return s
}

func (s *fakeStore) ListAll(ctx context.Context, tx *gorm.DB) ([]*domain.VocabularyType, error) {
	var out []*domain.VocabularyType
	for _, r := range s.byName {
		out = append(out, r)
	}
	return out, nil
}

func (s *fakeStore) CreateIfAbsent(ctx context.Context, tx *gorm.DB, row *domain.VocabularyType) (*domain.VocabularyType, bool, error) {
	if existing, ok := s.byName[row.Name]; ok {
		return existing, false, nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	s.byName[row.Name] = row
	return row, true, nil
}

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedModel() string { return "fake" }

func (f *fakeEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func newResolver(store *fakeStore, embedder *fakeEmbedder) *Resolver {
	return New(logger.NewNop(), store, embedder, normalizer.DefaultConfig())
}

func TestResolveMatchesExisting(t *testing.T) {
	store := newFakeStore("CAUSES", "PREVENTS")
	r := newResolver(store, &fakeEmbedder{})

	out, err := r.Resolve(context.Background(), "causes")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !out.Matched || out.Created {
		t.Fatalf("outcome = %+v, want matched", out)
	}
	if out.Type == nil || out.Type.Name != "CAUSES" {
		t.Fatalf("resolved type = %+v", out.Type)
	}
	if len(store.byName) != 2 {
		t.Fatalf("match must not create entries, have %d", len(store.byName))
	}
}

func TestResolveRejectsReversedDirection(t *testing.T) {
	store := newFakeStore("CAUSES")
	r := newResolver(store, &fakeEmbedder{})

	out, err := r.Resolve(context.Background(), "CAUSED_BY")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.Rejection != "reversed_direction" {
		t.Fatalf("outcome = %+v, want reversed_direction rejection", out)
	}
	if out.Type != nil || out.Created {
		t.Fatalf("rejected token must not create or return an entry: %+v", out)
	}
	if _, ok := store.byName["CAUSED_BY"]; ok {
		t.Fatal("reversed token entered the vocabulary")
	}
}

func TestResolveRejectsAmbiguous(t *testing.T) {
	store := newFakeStore("AFFECTS_X", "AFFECTS_Y")
	r := newResolver(store, &fakeEmbedder{})

	out, err := r.Resolve(context.Background(), "AFFECTS_Z")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.Rejection != "ambiguous" {
		t.Fatalf("outcome = %+v, want ambiguous rejection", out)
	}
	if _, ok := store.byName["AFFECTS_Z"]; ok {
		t.Fatal("ambiguous token entered the vocabulary")
	}
}

func TestResolveRejectsEmpty(t *testing.T) {
	r := newResolver(newFakeStore("CAUSES"), &fakeEmbedder{})

	out, err := r.Resolve(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.Rejection != "empty" {
		t.Fatalf("outcome = %+v, want empty rejection", out)
	}
}

func TestResolveProposesNovelToken(t *testing.T) {
	store := newFakeStore("CAUSES")
	embedder := &fakeEmbedder{}
	r := newResolver(store, embedder)

	out, err := r.Resolve(context.Background(), "quantum entangles")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !out.Created || out.Matched {
		t.Fatalf("outcome = %+v, want created", out)
	}
	row := store.byName["QUANTUM_ENTANGLES"]
	if row == nil {
		t.Fatal("novel token not admitted under its canonical form")
	}
	if row.CategorySource != domain.CategorySourceProposed {
		t.Fatalf("category_source = %q, want proposed", row.CategorySource)
	}
	if row.EmbeddingVector() == nil {
		t.Fatal("admission should embed when the provider is healthy")
	}
	if embedder.calls != 1 {
		t.Fatalf("embedder calls = %d, want 1", embedder.calls)
	}
}

func TestResolveProposesWithoutEmbeddingOnProviderFailure(t *testing.T) {
	store := newFakeStore("CAUSES")
	r := newResolver(store, &fakeEmbedder{err: fmt.Errorf("provider down")})

	out, err := r.Resolve(context.Background(), "MODULATES")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !out.Created {
		t.Fatalf("outcome = %+v, want created despite embedding failure", out)
	}
	row := store.byName["MODULATES"]
	if row == nil || row.EmbeddingVector() != nil {
		t.Fatalf("row = %+v, want stored without embedding", row)
	}
}

func TestResolveConvergesWithConcurrentProposer(t *testing.T) {
	store := newFakeStore("CAUSES")
	r := newResolver(store, &fakeEmbedder{})

	first, err := r.Resolve(context.Background(), "MODULATES")
	if err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	second, err := r.Resolve(context.Background(), "MODULATES")
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if !first.Created {
		t.Fatalf("first outcome = %+v, want created", first)
	}
	if second.Type == nil || first.Type == nil || second.Type.ID != first.Type.ID {
		t.Fatalf("resolutions diverged: %+v vs %+v", first.Type, second.Type)
	}
}
