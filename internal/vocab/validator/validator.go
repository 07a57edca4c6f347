package validator

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/epigraph-ai/epigraph-backend/internal/data/graph"
	"github.com/epigraph-ai/epigraph-backend/internal/domain"
	"github.com/epigraph-ai/epigraph-backend/internal/platform/logger"
)

const (
	// CoverageCutoff is the cumulative-ratio threshold for the persisted role
	// distribution: buckets are kept, largest first, until their ratios cover
	// this much of the edge population.
	CoverageCutoff = 0.95

	// CrossValidationMargin is the confidence gap one signal must hold over
	// the other before it overrides a disagreement. Below it the disagreement
	// is surfaced as AMBIGUOUS for a curator.
	CrossValidationMargin = 0.20
)

// TypeStore is the slice of the vocabulary store the validator needs. The
// pass reads classified entries and writes annotation columns only, so it
// can never race the classifier's category transition.
type TypeStore interface {
	ListByCategorySource(ctx context.Context, tx *gorm.DB, source string) ([]*domain.VocabularyType, error)
	SetValidation(ctx context.Context, tx *gorm.DB, id uuid.UUID, a domain.ValidationAnnotations) error
}

type PrototypeStore interface {
	GetAll(ctx context.Context, tx *gorm.DB) ([]*domain.RolePrototype, error)
}

// GroundingSource supplies the per-type bucket histogram from the graph
// store. One call covers every type in the pass.
type GroundingSource interface {
	GroundingHistogram(ctx context.Context) (map[string]graph.BucketCounts, error)
}

type Summary struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

type Validator struct {
	log        *logger.Logger
	types      TypeStore
	prototypes PrototypeStore
	grounding  GroundingSource
}

func New(baseLog *logger.Logger, types TypeStore, prototypes PrototypeStore, grounding GroundingSource) *Validator {
	return &Validator{
		log:        baseLog.With("component", "GroundingValidator"),
		types:      types,
		prototypes: prototypes,
		grounding:  grounding,
	}
}

// Run executes one validation pass over all classified entries. The graph is
// traversed once up front; everything after is per-row arithmetic, so the
// pass costs O(edges + types). Re-running against unchanged data rewrites
// identical annotations.
func (v *Validator) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	protoVecs, err := v.prototypeVectors(ctx)
	if err != nil {
		return summary, err
	}

	hist, err := v.grounding.GroundingHistogram(ctx)
	if err != nil {
		return summary, fmt.Errorf("grounding histogram: %w", err)
	}

	rows, err := v.types.ListByCategorySource(ctx, nil, domain.CategorySourceClassified)
	if err != nil {
		return summary, fmt.Errorf("list classified types: %w", err)
	}

	for _, row := range rows {
		vec := row.EmbeddingVector()
		if vec == nil {
			// No embedding yet; the classifier backfills these.
			summary.Skipped++
			continue
		}

		semRole, semConf := semanticRole(vec, protoVecs)
		annotations := domain.ValidationAnnotations{
			SemanticRole:       semRole,
			SemanticConfidence: semConf,
			RoleDistribution:   map[string]float64{},
			ValidationStatus:   domain.ValidationInsufficientData,
		}

		counts := hist[row.Name]
		if counts.Total > 0 {
			dist, empRole, empConf := empiricalDistribution(counts)
			annotations.RoleDistribution = dist
			annotations.EmpiricalRole = &empRole
			annotations.EmpiricalConfidence = &empConf
			annotations.UsageCount = counts.Total
			annotations.ValidationStatus = CrossValidate(semRole, semConf, empRole, empConf)
		}

		if err := v.types.SetValidation(ctx, nil, row.ID, annotations); err != nil {
			v.log.Error("Validation write failed", "type", row.Name, "error", err)
			summary.Failed++
			continue
		}
		v.log.Debug("Type validated",
			"type", row.Name,
			"status", annotations.ValidationStatus,
			"semantic_role", semRole,
		)
		summary.Processed++
	}

	v.log.Info("Validator pass complete",
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	return summary, nil
}

// prototypeVectors loads the four archetype embeddings. A pass against a
// partial prototype set would skew every semantic role, so it is deferred
// instead.
func (v *Validator) prototypeVectors(ctx context.Context) (map[string][]float32, error) {
	rows, err := v.prototypes.GetAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list role prototypes: %w", err)
	}

	out := map[string][]float32{}
	for _, row := range rows {
		if vec := row.EmbeddingVector(); vec != nil {
			out[row.Name] = vec
		}
	}
	for _, role := range domain.Roles() {
		if out[role] == nil {
			return nil, fmt.Errorf("role prototype %q has no embedding; deferring validation pass", role)
		}
	}
	return out, nil
}

// semanticRole scores the type embedding against each prototype and returns
// the closest role with its similarity as confidence. Ties break on the
// fixed role rank order.
func semanticRole(vec []float32, protoVecs map[string][]float32) (string, float64) {
	best := ""
	bestScore := math.Inf(-1)
	for _, role := range domain.Roles() {
		if s := cosineSimilarity(vec, protoVecs[role]); s > bestScore {
			best = role
			bestScore = s
		}
	}
	return best, bestScore
}

// empiricalDistribution converts bucket counts into the persisted ratio map.
// Buckets are ranked largest first and kept until cumulative coverage
// reaches the cutoff; the remainder is dropped as noise, not zeroed. The
// top bucket is the empirical role and its ratio the confidence.
func empiricalDistribution(counts graph.BucketCounts) (map[string]float64, string, float64) {
	byRole := counts.ByRole()
	total := float64(counts.Total)

	ranked := domain.Roles()
	sort.SliceStable(ranked, func(i, j int) bool {
		return byRole[ranked[i]] > byRole[ranked[j]]
	})

	dist := map[string]float64{}
	cum := 0.0
	for _, role := range ranked {
		ratio := float64(byRole[role]) / total
		if ratio <= 0 {
			break
		}
		dist[role] = ratio
		cum += ratio
		if cum >= CoverageCutoff {
			break
		}
	}

	top := ranked[0]
	return dist, top, float64(byRole[top]) / total
}

// CrossValidate reconciles the semantic and empirical role signals into a
// validation status. Agreement validates; disagreement resolves to whichever
// signal leads by the margin, or to AMBIGUOUS when neither does.
func CrossValidate(semRole string, semConf float64, empRole string, empConf float64) string {
	if semRole == empRole {
		return domain.ValidationValidated
	}
	switch {
	case semConf-empConf >= CrossValidationMargin:
		return domain.ValidationSemanticOverride
	case empConf-semConf >= CrossValidationMargin:
		return domain.ValidationEmpiricalOverride
	default:
		return domain.ValidationAmbiguous
	}
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
