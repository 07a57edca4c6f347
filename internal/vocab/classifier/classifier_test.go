package classifier

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/epigraph-ai/epigraph-backend/internal/domain"
	"github.com/epigraph-ai/epigraph-backend/internal/platform/logger"
	"github.com/epigraph-ai/epigraph-backend/internal/vocab/seeds"
)

type fakeStore struct {
	rows map[uuid.UUID]*domain.VocabularyType
}

func newFakeStore(rows ...*domain.VocabularyType) *fakeStore {
	s := &fakeStore{rows: map[uuid.UUID]*domain.VocabularyType{}}
	for _, r := range rows {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		s.rows[r.ID] = r
	}
	return s
}

func (s *fakeStore) ListByCategorySource(ctx context.Context, tx *gorm.DB, source string) ([]*domain.VocabularyType, error) {
	var out []*domain.VocabularyType
	for _, r := range s.rows {
		if r.CategorySource == source {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *fakeStore) ListSeeds(ctx context.Context, tx *gorm.DB) ([]*domain.VocabularyType, error) {
	var out []*domain.VocabularyType
	for _, r := range s.rows {
		if r.IsSeed {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *fakeStore) SetEmbedding(ctx context.Context, tx *gorm.DB, id uuid.UUID, vec []float32) error {
	if r, ok := s.rows[id]; ok {
		r.SetEmbeddingVector(vec)
	}
	return nil
}

func (s *fakeStore) Classify(ctx context.Context, tx *gorm.DB, id uuid.UUID, category string) (bool, error) {
	r, ok := s.rows[id]
	if !ok || r.CategorySource != domain.CategorySourceProposed {
		return false, nil
	}
	r.Category = category
	r.CategorySource = domain.CategorySourceClassified
	return true, nil
}

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) EmbedModel() string { return "fake" }

func (f *fakeEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(inputs))
	for i, text := range inputs {
		vec, ok := f.vectors[text]
		if !ok {
			return nil, fmt.Errorf("no fake vector for %q", text)
		}
		out[i] = vec
	}
	return out, nil
}

func seedRow(name, category string, vec []float32) *domain.VocabularyType {
	row := &domain.VocabularyType{
		ID:             uuid.New(),
		Name:           name,
		Category:       category,
		CategorySource: domain.CategorySourceClassified,
		IsSeed:         true,
	}
	row.SetEmbeddingVector(vec)
	return row
}

func proposedRow(name string, vec []float32) *domain.VocabularyType {
	row := &domain.VocabularyType{
		ID:             uuid.New(),
		Name:           name,
		CategorySource: domain.CategorySourceProposed,
	}
	if vec != nil {
		row.SetEmbeddingVector(vec)
	}
	return row
}

func twoCategorySet(t *testing.T) *seeds.SeedSet {
	t.Helper()
	set, err := seeds.Parse([]byte(`
categories:
  - name: causal
    seeds: [{name: CAUSES}, {name: PREVENTS}]
  - name: evidential
    seeds: [{name: SUPPORTS}]
`))
	if err != nil {
		t.Fatalf("parse seed set: %v", err)
	}
	return set
}

func TestRunAssignsBestCategory(t *testing.T) {
	store := newFakeStore(
		seedRow("CAUSES", "causal", []float32{1, 0, 0}),
		seedRow("PREVENTS", "causal", []float32{0.9, 0.1, 0}),
		seedRow("SUPPORTS", "evidential", []float32{0, 1, 0}),
		proposedRow("TRIGGERS", []float32{0.95, 0.05, 0}),
		proposedRow("CORROBORATES", []float32{0.05, 0.95, 0}),
	)
	c := New(logger.NewNop(), store, twoCategorySet(t), &fakeEmbedder{})

	summary, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 2 || summary.Skipped != 0 || summary.Failed != 0 {
		t.Fatalf("summary = %+v", summary)
	}

	for name, want := range map[string]string{"TRIGGERS": "causal", "CORROBORATES": "evidential"} {
		row := findByName(t, store, name)
		if row.Category != want {
			t.Errorf("%s category = %q, want %q", name, row.Category, want)
		}
		if row.CategorySource != domain.CategorySourceClassified {
			t.Errorf("%s category_source = %q, want classified", name, row.CategorySource)
		}
	}
}

func TestRunUsesMaxNotMeanSimilarity(t *testing.T) {
	// The candidate is nearly identical to one causal seed and orthogonal to
	// the other; averaging across seeds would prefer the evidential anchor.
	store := newFakeStore(
		seedRow("CAUSES", "causal", []float32{1, 0, 0}),
		seedRow("PREVENTS", "causal", []float32{0, 0, 1}),
		seedRow("SUPPORTS", "evidential", []float32{0.5, 0.5, 0.7}),
		proposedRow("BLOCKS", []float32{0, 0, 1}),
	)
	c := New(logger.NewNop(), store, twoCategorySet(t), &fakeEmbedder{})

	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := findByName(t, store, "BLOCKS").Category; got != "causal" {
		t.Fatalf("category = %q, want causal (max similarity, not mean)", got)
	}
}

func TestRunIsIdempotentAndOneWay(t *testing.T) {
	store := newFakeStore(
		seedRow("CAUSES", "causal", []float32{1, 0, 0}),
		seedRow("PREVENTS", "causal", []float32{0.9, 0.1, 0}),
		seedRow("SUPPORTS", "evidential", []float32{0, 1, 0}),
		proposedRow("TRIGGERS", []float32{0.95, 0.05, 0}),
	)
	c := New(logger.NewNop(), store, twoCategorySet(t), &fakeEmbedder{})

	first, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if first.Processed != 1 {
		t.Fatalf("first summary = %+v", first)
	}
	classified := findByName(t, store, "TRIGGERS")
	wantCategory := classified.Category

	second, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.Processed != 0 || second.Failed != 0 {
		t.Fatalf("second summary = %+v, want no work", second)
	}
	after := findByName(t, store, "TRIGGERS")
	if after.Category != wantCategory || after.CategorySource != domain.CategorySourceClassified {
		t.Fatalf("classified entry changed on re-run: %+v", after)
	}
}

func TestRunBackfillsMissingEmbeddings(t *testing.T) {
	store := newFakeStore(
		seedRow("CAUSES", "causal", []float32{1, 0, 0}),
		seedRow("PREVENTS", "causal", []float32{0.9, 0.1, 0}),
		seedRow("SUPPORTS", "evidential", []float32{0, 1, 0}),
		proposedRow("TRIGGERS", nil),
	)
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"TRIGGERS": {0.95, 0.05, 0},
	}}
	c := New(logger.NewNop(), store, twoCategorySet(t), embedder)

	summary, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if got := findByName(t, store, "TRIGGERS").Category; got != "causal" {
		t.Fatalf("category = %q, want causal", got)
	}
}

func TestRunSkipsWhenEmbeddingUnavailable(t *testing.T) {
	store := newFakeStore(
		seedRow("CAUSES", "causal", []float32{1, 0, 0}),
		seedRow("PREVENTS", "causal", []float32{0.9, 0.1, 0}),
		seedRow("SUPPORTS", "evidential", []float32{0, 1, 0}),
		proposedRow("TRIGGERS", nil),
	)
	c := New(logger.NewNop(), store, twoCategorySet(t), &fakeEmbedder{err: fmt.Errorf("provider down")})

	summary, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Skipped != 1 || summary.Processed != 0 {
		t.Fatalf("summary = %+v, want 1 skipped", summary)
	}
	row := findByName(t, store, "TRIGGERS")
	if row.CategorySource != domain.CategorySourceProposed {
		t.Fatalf("type classified on missing embedding: %+v", row)
	}
}

func TestRunDefersWhenSeedEmbeddingsMissing(t *testing.T) {
	store := newFakeStore(
		seedRow("CAUSES", "causal", []float32{1, 0, 0}),
		// evidential seed present but without an embedding
		seedRow("SUPPORTS", "evidential", nil),
		proposedRow("TRIGGERS", []float32{1, 0, 0}),
	)
	c := New(logger.NewNop(), store, twoCategorySet(t), &fakeEmbedder{})

	if _, err := c.Run(context.Background()); err == nil {
		t.Fatal("expected pass to defer with unembedded seed category")
	}
	row := findByName(t, store, "TRIGGERS")
	if row.CategorySource != domain.CategorySourceProposed {
		t.Fatalf("type classified against partial seed set: %+v", row)
	}
}

func findByName(t *testing.T, s *fakeStore, name string) *domain.VocabularyType {
	t.Helper()
	for _, r := range s.rows {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("row %q not found", name)
	return nil
}
