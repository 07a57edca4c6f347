package resolver

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/epigraph-ai/epigraph-backend/internal/domain"
	"github.com/epigraph-ai/epigraph-backend/internal/platform/logger"
	"github.com/epigraph-ai/epigraph-backend/internal/vocab/embedding"
	"github.com/epigraph-ai/epigraph-backend/internal/vocab/normalizer"
)

// TypeStore is the slice of the vocabulary store resolution needs.
type TypeStore interface {
	ListAll(ctx context.Context, tx *gorm.DB) ([]*domain.VocabularyType, error)
	CreateIfAbsent(ctx context.Context, tx *gorm.DB, row *domain.VocabularyType) (*domain.VocabularyType, bool, error)
}

// Outcome of one resolution. Exactly one of Matched/Created/Rejected styles
// applies: a matched token returns the canonical entry, a novel one returns
// the freshly proposed entry, and a rejected one returns only the reason.
type Outcome struct {
	Type *domain.VocabularyType `json:"type,omitempty"`

	// Matched reports the token collapsed onto an existing canonical name.
	Matched bool `json:"matched"`
	// Created reports a new proposed entry was made for a novel token.
	Created bool `json:"created"`

	Stage string  `json:"stage,omitempty"`
	Score float64 `json:"score,omitempty"`

	// Rejection is the stable reason code for tokens that must not enter
	// the vocabulary ("reversed_direction", "ambiguous", "empty").
	Rejection string `json:"rejection,omitempty"`
}

type Resolver struct {
	log      *logger.Logger
	store    TypeStore
	embedder embedding.Provider
	cfg      normalizer.Config
}

func New(baseLog *logger.Logger, store TypeStore, embedder embedding.Provider, cfg normalizer.Config) *Resolver {
	return &Resolver{
		log:      baseLog.With("component", "TypeResolver"),
		store:    store,
		embedder: embedder,
		cfg:      cfg,
	}
}

// Resolve maps a free-form extractor token onto the vocabulary: match it to
// an existing canonical name, reject it, or admit it as a new proposed type.
// Concurrent resolvers of the same novel token converge on a single record.
func (r *Resolver) Resolve(ctx context.Context, raw string) (Outcome, error) {
	existing, err := r.store.ListAll(ctx, nil)
	if err != nil {
		return Outcome{}, fmt.Errorf("snapshot vocabulary: %w", err)
	}

	canon := make([]normalizer.Canonical, 0, len(existing))
	byName := make(map[string]*domain.VocabularyType, len(existing))
	for _, row := range existing {
		canon = append(canon, normalizer.Canonical{Name: row.Name, Category: row.Category})
		byName[row.Name] = row
	}

	res, err := normalizer.Normalize(raw, canon, r.cfg)
	switch {
	case err == nil:
		r.log.Debug("Token matched", "raw", raw, "canonical", res.Name, "stage", res.Stage)
		return Outcome{Type: byName[res.Name], Matched: true, Stage: res.Stage, Score: res.Score}, nil

	case errors.Is(err, normalizer.ErrEmptyToken):
		return Outcome{Rejection: "empty"}, nil

	case errors.Is(err, normalizer.ErrReversedDirection):
		r.log.Debug("Token rejected as reversed direction", "raw", raw)
		return Outcome{Rejection: "reversed_direction"}, nil

	case errors.Is(err, normalizer.ErrAmbiguousMatch):
		r.log.Warn("Token rejected as ambiguous", "raw", raw)
		return Outcome{Rejection: "ambiguous"}, nil

	case errors.Is(err, normalizer.ErrNoMatch):
		return r.propose(ctx, normalizer.CanonicalToken(raw))

	default:
		return Outcome{}, err
	}
}

// propose admits a genuinely novel token as a proposed type. The embedding is
// best effort: on failure the entry is stored without one and the classifier
// backfills it later.
func (r *Resolver) propose(ctx context.Context, token string) (Outcome, error) {
	row := &domain.VocabularyType{
		Name:           token,
		CategorySource: domain.CategorySourceProposed,
	}

	if vec, err := embedding.EmbedOne(ctx, r.embedder, token); err != nil {
		r.log.Warn("Embedding on admission failed; deferring to classifier backfill",
			"type", token,
			"error", err,
		)
	} else {
		row.SetEmbeddingVector(vec)
	}

	stored, created, err := r.store.CreateIfAbsent(ctx, nil, row)
	if err != nil {
		return Outcome{}, fmt.Errorf("admit proposed type %q: %w", token, err)
	}
	if created {
		r.log.Info("New type proposed", "type", token)
	}
	return Outcome{Type: stored, Created: created, Matched: !created}, nil
}
