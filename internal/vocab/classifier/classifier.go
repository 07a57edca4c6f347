package classifier

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/epigraph-ai/epigraph-backend/internal/domain"
	"github.com/epigraph-ai/epigraph-backend/internal/platform/logger"
	"github.com/epigraph-ai/epigraph-backend/internal/vocab/embedding"
	"github.com/epigraph-ai/epigraph-backend/internal/vocab/seeds"
)

// TypeStore is the slice of the vocabulary store the classifier needs. The
// pass reads proposed entries and commits the one-way proposed -> classified
// transition; it never touches classified records, so it cannot oscillate
// and is safe to run concurrently with grounding validation.
type TypeStore interface {
	ListByCategorySource(ctx context.Context, tx *gorm.DB, source string) ([]*domain.VocabularyType, error)
	ListSeeds(ctx context.Context, tx *gorm.DB) ([]*domain.VocabularyType, error)
	SetEmbedding(ctx context.Context, tx *gorm.DB, id uuid.UUID, vec []float32) error
	Classify(ctx context.Context, tx *gorm.DB, id uuid.UUID, category string) (bool, error)
}

type Summary struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

type Classifier struct {
	log      *logger.Logger
	store    TypeStore
	seedSet  *seeds.SeedSet
	embedder embedding.Provider
}

func New(baseLog *logger.Logger, store TypeStore, seedSet *seeds.SeedSet, embedder embedding.Provider) *Classifier {
	return &Classifier{
		log:      baseLog.With("component", "CategoryClassifier"),
		store:    store,
		seedSet:  seedSet,
		embedder: embedder,
	}
}

// Run executes one classification pass over all proposed entries. Per-item
// failures never abort the batch; items skipped for missing vectors are
// picked up by the next scheduled run.
func (c *Classifier) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	seedVecs, err := c.seedVectorsByCategory(ctx)
	if err != nil {
		return summary, err
	}

	proposed, err := c.store.ListByCategorySource(ctx, nil, domain.CategorySourceProposed)
	if err != nil {
		return summary, fmt.Errorf("list proposed types: %w", err)
	}
	if len(proposed) == 0 {
		return summary, nil
	}

	proposed = c.backfillEmbeddings(ctx, proposed, &summary)

	categories := make([]string, 0, len(seedVecs))
	for cat := range seedVecs {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	for _, row := range proposed {
		vec := row.EmbeddingVector()
		if vec == nil {
			summary.Skipped++
			continue
		}

		category := bestCategory(vec, categories, seedVecs)
		transitioned, err := c.store.Classify(ctx, nil, row.ID, category)
		if err != nil {
			c.log.Error("Classify write failed", "type", row.Name, "category", category, "error", err)
			summary.Failed++
			continue
		}
		if !transitioned {
			// A concurrent pass already committed this type.
			summary.Skipped++
			continue
		}
		c.log.Debug("Type classified", "type", row.Name, "category", category)
		summary.Processed++
	}

	c.log.Info("Classifier pass complete",
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	return summary, nil
}

// seedVectorsByCategory loads seed embeddings grouped by category. Every
// configured category must have at least one embedded seed; otherwise the
// whole pass is deferred rather than classifying against a partial anchor
// set.
func (c *Classifier) seedVectorsByCategory(ctx context.Context) (map[string][][]float32, error) {
	seedRows, err := c.store.ListSeeds(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list seeds: %w", err)
	}

	out := map[string][][]float32{}
	for _, row := range seedRows {
		vec := row.EmbeddingVector()
		if vec == nil || row.Category == "" {
			continue
		}
		out[row.Category] = append(out[row.Category], vec)
	}

	for _, cat := range c.seedSet.CategoryNames() {
		if len(out[cat]) == 0 {
			return nil, fmt.Errorf("category %q has no embedded seeds; deferring classification pass", cat)
		}
	}
	return out, nil
}

const embedBatchSize = 128

// backfillEmbeddings embeds every proposed type that has no vector yet,
// batching provider calls with bounded concurrency. Embedding failure skips
// those items for this pass only.
func (c *Classifier) backfillEmbeddings(ctx context.Context, rows []*domain.VocabularyType, summary *Summary) []*domain.VocabularyType {
	var missing []*domain.VocabularyType
	for _, row := range rows {
		if row.EmbeddingVector() == nil {
			missing = append(missing, row)
		}
	}
	if len(missing) == 0 {
		return rows
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for start := 0; start < len(missing); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[start:end]

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, row := range batch {
				texts[i] = row.Name
			}
			vecs, err := c.embedder.Embed(gctx, texts)
			if err != nil {
				return err
			}
			for i, row := range batch {
				if err := c.store.SetEmbedding(gctx, nil, row.ID, vecs[i]); err != nil {
					c.log.Error("Persist embedding failed", "type", row.Name, "error", err)
					mu.Lock()
					summary.Failed++
					mu.Unlock()
					continue
				}
				row.SetEmbeddingVector(vecs[i])
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		c.log.Warn("Embedding backfill failed; skipping unembedded types this pass",
			"count", len(missing),
			"error", err,
		)
	}
	return rows
}

// bestCategory scores each category as the maximum similarity across its
// seeds: a type need only resemble one anchor strongly, not the category
// centroid. Ties break on category name for determinism.
func bestCategory(vec []float32, categories []string, seedVecs map[string][][]float32) string {
	best := ""
	bestScore := math.Inf(-1)
	for _, cat := range categories {
		score := math.Inf(-1)
		for _, sv := range seedVecs[cat] {
			if s := cosineSimilarity(vec, sv); s > score {
				score = s
			}
		}
		if score > bestScore {
			best = cat
			bestScore = score
		}
	}
	return best
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		av := float64(a[i])
		bv := float64(b[i])
		dot += av * bv
		na += av * av
		nb += bv * bv
	}
	if na <= 0 || nb <= 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
