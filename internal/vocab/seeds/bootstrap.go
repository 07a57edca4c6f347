package seeds

import (
	"context"
	"fmt"

	"github.com/epigraph-ai/epigraph-backend/internal/data/repos/vocab"
	"github.com/epigraph-ai/epigraph-backend/internal/domain"
	"github.com/epigraph-ai/epigraph-backend/internal/platform/logger"
	"github.com/epigraph-ai/epigraph-backend/internal/vocab/embedding"
)

// Role prototype reference texts. Embedded once at bootstrap and persisted,
// so the four archetype vectors stay stable across runs.
var rolePrototypeTexts = map[string]string{
	domain.RoleWellSupported: "a relationship consistently corroborated by strong, independent supporting evidence",
	domain.RoleContested:     "a relationship with conflicting evidence, actively disputed or contradicted by other sources",
	domain.RoleOutdated:      "a relationship that was once well supported but has been superseded by newer findings",
	domain.RoleRefuted:       "a relationship contradicted by the overwhelming weight of available evidence",
}

type BootstrapDeps struct {
	Log        *logger.Logger
	Types      vocab.VocabularyTypeRepo
	Prototypes vocab.RolePrototypeRepo
	Embedder   embedding.Provider
}

// Bootstrap upserts the curator seed set as classified, is_seed vocabulary
// rows and ensures the four role prototypes exist with embeddings. Safe to
// re-run; embedding failures are logged and left for the next boot rather
// than failing startup.
func Bootstrap(ctx context.Context, set *SeedSet, deps BootstrapDeps) error {
	if set == nil {
		return fmt.Errorf("seed set required")
	}
	log := deps.Log.With("component", "SeedBootstrap")

	created := 0
	var (
		missingRows  []*domain.VocabularyType
		missingTexts []string
	)

	for _, cat := range set.Categories {
		for _, seed := range cat.Seeds {
			row := &domain.VocabularyType{
				Name:           seed.Name,
				Category:       cat.Name,
				CategorySource: domain.CategorySourceClassified,
				IsSeed:         true,
			}
			stored, didCreate, err := deps.Types.CreateIfAbsent(ctx, nil, row)
			if err != nil {
				return fmt.Errorf("bootstrap seed %s: %w", seed.Name, err)
			}
			if didCreate {
				created++
			}
			if stored != nil && stored.EmbeddingVector() == nil {
				missingRows = append(missingRows, stored)
				missingTexts = append(missingTexts, EmbeddingText(seed))
			}
		}
	}

	if len(missingTexts) > 0 {
		vecs, err := deps.Embedder.Embed(ctx, missingTexts)
		if err != nil {
			log.Warn("Seed embedding backfill failed; will retry on next boot", "count", len(missingTexts), "error", err)
		} else {
			for i, row := range missingRows {
				if err := deps.Types.SetEmbedding(ctx, nil, row.ID, vecs[i]); err != nil {
					return fmt.Errorf("persist seed embedding %s: %w", row.Name, err)
				}
			}
		}
	}

	if err := ensurePrototypes(ctx, deps, log); err != nil {
		return err
	}

	log.Info("Seed bootstrap complete",
		"seed_set_version", set.Version,
		"categories", len(set.Categories),
		"seeds", set.SeedCount(),
		"seeds_created", created,
		"embeddings_backfilled", len(missingTexts),
	)
	return nil
}

func ensurePrototypes(ctx context.Context, deps BootstrapDeps, log *logger.Logger) error {
	for _, role := range domain.Roles() {
		row, _, err := deps.Prototypes.CreateIfAbsent(ctx, nil, &domain.RolePrototype{Name: role})
		if err != nil {
			return fmt.Errorf("bootstrap role prototype %s: %w", role, err)
		}
		if row == nil || row.EmbeddingVector() != nil {
			continue
		}
		vec, err := embedding.EmbedOne(ctx, deps.Embedder, rolePrototypeTexts[role])
		if err != nil {
			log.Warn("Role prototype embedding failed; will retry on next boot", "role", role, "error", err)
			continue
		}
		if err := deps.Prototypes.SetEmbedding(ctx, nil, row.ID, vec); err != nil {
			return fmt.Errorf("persist role prototype embedding %s: %w", role, err)
		}
	}
	return nil
}
