package vocab

import (
	"context"
	"testing"

	"github.com/epigraph-ai/epigraph-backend/internal/data/repos/testutil"
	"github.com/epigraph-ai/epigraph-backend/internal/domain"
)

func TestVocabularyTypeRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewVocabularyTypeRepo(db, testutil.Logger(t))

	row := &domain.VocabularyType{Name: "CAUSES"}
	stored, created, err := repo.CreateIfAbsent(ctx, tx, row)
	if err != nil || !created || stored == nil {
		t.Fatalf("CreateIfAbsent: stored=%v created=%v err=%v", stored, created, err)
	}
	if stored.CategorySource != domain.CategorySourceProposed {
		t.Fatalf("new row category_source = %q, want proposed", stored.CategorySource)
	}

	// Second insert under the same name converges on the first record.
	again, created, err := repo.CreateIfAbsent(ctx, tx, &domain.VocabularyType{Name: "CAUSES"})
	if err != nil || created {
		t.Fatalf("CreateIfAbsent duplicate: created=%v err=%v", created, err)
	}
	if again == nil || again.ID != stored.ID {
		t.Fatalf("duplicate insert diverged: %v vs %v", again, stored)
	}

	got, err := repo.GetByName(ctx, tx, "CAUSES")
	if err != nil || got == nil || got.ID != stored.ID {
		t.Fatalf("GetByName: got=%v err=%v", got, err)
	}
	if missing, err := repo.GetByName(ctx, tx, "NOPE"); err != nil || missing != nil {
		t.Fatalf("GetByName missing: got=%v err=%v", missing, err)
	}

	if err := repo.SetEmbedding(ctx, tx, stored.ID, []float32{0.1, 0.2}); err != nil {
		t.Fatalf("SetEmbedding: %v", err)
	}
	got, err = repo.GetByName(ctx, tx, "CAUSES")
	if err != nil || got.EmbeddingVector() == nil {
		t.Fatalf("embedding not persisted: got=%v err=%v", got, err)
	}

	// One-way transition: first call wins, repeat is a no-op.
	moved, err := repo.Classify(ctx, tx, stored.ID, "causal")
	if err != nil || !moved {
		t.Fatalf("Classify: moved=%v err=%v", moved, err)
	}
	moved, err = repo.Classify(ctx, tx, stored.ID, "structural")
	if err != nil || moved {
		t.Fatalf("Classify repeat: moved=%v err=%v", moved, err)
	}
	got, _ = repo.GetByName(ctx, tx, "CAUSES")
	if got.Category != "causal" || got.CategorySource != domain.CategorySourceClassified {
		t.Fatalf("classified row = %+v", got)
	}

	empirical := "well_supported"
	conf := 0.9
	err = repo.SetValidation(ctx, tx, stored.ID, domain.ValidationAnnotations{
		SemanticRole:        domain.RoleWellSupported,
		SemanticConfidence:  0.85,
		EmpiricalRole:       &empirical,
		EmpiricalConfidence: &conf,
		ValidationStatus:    domain.ValidationValidated,
		RoleDistribution:    map[string]float64{domain.RoleWellSupported: 0.9, domain.RoleContested: 0.1},
		UsageCount:          42,
	})
	if err != nil {
		t.Fatalf("SetValidation: %v", err)
	}
	got, _ = repo.GetByName(ctx, tx, "CAUSES")
	if got.ValidationStatus == nil || *got.ValidationStatus != domain.ValidationValidated {
		t.Fatalf("validation_status = %v", got.ValidationStatus)
	}
	if got.UsageCount != 42 || got.LastValidatedAt == nil {
		t.Fatalf("annotations = %+v", got)
	}
	// Annotation writes never touch classification fields.
	if got.Category != "causal" || got.CategorySource != domain.CategorySourceClassified {
		t.Fatalf("validation write changed classification: %+v", got)
	}
	if ratios := got.RoleRatios(); ratios[domain.RoleWellSupported] != 0.9 {
		t.Fatalf("role_distribution = %v", ratios)
	}

	if _, _, err := repo.CreateIfAbsent(ctx, tx, &domain.VocabularyType{
		Name:           "PART_OF",
		Category:       "structural",
		CategorySource: domain.CategorySourceClassified,
		IsSeed:         true,
	}); err != nil {
		t.Fatalf("seed insert: %v", err)
	}

	all, err := repo.ListAll(ctx, tx)
	if err != nil || len(all) != 2 {
		t.Fatalf("ListAll: len=%d err=%v", len(all), err)
	}
	seeds, err := repo.ListSeeds(ctx, tx)
	if err != nil || len(seeds) != 1 || seeds[0].Name != "PART_OF" {
		t.Fatalf("ListSeeds: %v err=%v", seeds, err)
	}
	classified, err := repo.ListByCategorySource(ctx, tx, domain.CategorySourceClassified)
	if err != nil || len(classified) != 2 {
		t.Fatalf("ListByCategorySource: len=%d err=%v", len(classified), err)
	}

	filtered, err := repo.List(ctx, tx, ListFilter{Category: "structural"})
	if err != nil || len(filtered) != 1 || filtered[0].Name != "PART_OF" {
		t.Fatalf("List by category: %v err=%v", filtered, err)
	}
	filtered, err = repo.List(ctx, tx, ListFilter{ValidationStatus: domain.ValidationValidated})
	if err != nil || len(filtered) != 1 || filtered[0].Name != "CAUSES" {
		t.Fatalf("List by validation_status: %v err=%v", filtered, err)
	}
}

func TestRolePrototypeRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewRolePrototypeRepo(db, testutil.Logger(t))

	row := &domain.RolePrototype{Name: domain.RoleWellSupported}
	stored, created, err := repo.CreateIfAbsent(ctx, tx, row)
	if err != nil || !created {
		t.Fatalf("CreateIfAbsent: created=%v err=%v", created, err)
	}

	again, created, err := repo.CreateIfAbsent(ctx, tx, &domain.RolePrototype{Name: domain.RoleWellSupported})
	if err != nil || created || again.ID != stored.ID {
		t.Fatalf("CreateIfAbsent duplicate: again=%v created=%v err=%v", again, created, err)
	}

	if err := repo.SetEmbedding(ctx, tx, stored.ID, []float32{1, 0}); err != nil {
		t.Fatalf("SetEmbedding: %v", err)
	}

	all, err := repo.GetAll(ctx, tx)
	if err != nil || len(all) != 1 {
		t.Fatalf("GetAll: len=%d err=%v", len(all), err)
	}
	if all[0].EmbeddingVector() == nil {
		t.Fatalf("embedding not persisted: %+v", all[0])
	}
}
