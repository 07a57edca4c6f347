package vocab

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/epigraph-ai/epigraph-backend/internal/domain"
	"github.com/epigraph-ai/epigraph-backend/internal/platform/logger"
)

type ListFilter struct {
	Category         string
	CategorySource   string
	ValidationStatus string
}

type VocabularyTypeRepo interface {
	// CreateIfAbsent inserts the row unless a type with the same name already
	// exists. Concurrent proposers of the same name converge on one record;
	// the second return value reports whether this call created it.
	CreateIfAbsent(ctx context.Context, tx *gorm.DB, row *domain.VocabularyType) (*domain.VocabularyType, bool, error)

	GetByName(ctx context.Context, tx *gorm.DB, name string) (*domain.VocabularyType, error)
	ListAll(ctx context.Context, tx *gorm.DB) ([]*domain.VocabularyType, error)
	ListByCategorySource(ctx context.Context, tx *gorm.DB, source string) ([]*domain.VocabularyType, error)
	ListSeeds(ctx context.Context, tx *gorm.DB) ([]*domain.VocabularyType, error)
	List(ctx context.Context, tx *gorm.DB, filter ListFilter) ([]*domain.VocabularyType, error)

	SetEmbedding(ctx context.Context, tx *gorm.DB, id uuid.UUID, vec []float32) error

	// Classify commits the one-way proposed -> classified transition. The
	// update is guarded on category_source so re-invocation (or a concurrent
	// winner) is a no-op; the return value reports whether this call
	// performed the transition.
	Classify(ctx context.Context, tx *gorm.DB, id uuid.UUID, category string) (bool, error)

	// SetValidation writes grounding-validation annotations only. It never
	// touches category or category_source.
	SetValidation(ctx context.Context, tx *gorm.DB, id uuid.UUID, a domain.ValidationAnnotations) error
}

type vocabularyTypeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVocabularyTypeRepo(db *gorm.DB, baseLog *logger.Logger) VocabularyTypeRepo {
	return &vocabularyTypeRepo{db: db, log: baseLog.With("repo", "VocabularyTypeRepo")}
}

func (r *vocabularyTypeRepo) CreateIfAbsent(ctx context.Context, tx *gorm.DB, row *domain.VocabularyType) (*domain.VocabularyType, bool, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.Name == "" {
		return nil, false, nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CategorySource == "" {
		row.CategorySource = domain.CategorySourceProposed
	}

	res := t.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).
		Create(row)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected > 0 {
		return row, true, nil
	}

	// Lost the race (or the type already existed): read back the winner.
	existing, err := r.GetByName(ctx, tx, row.Name)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *vocabularyTypeRepo) GetByName(ctx context.Context, tx *gorm.DB, name string) (*domain.VocabularyType, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if name == "" {
		return nil, nil
	}
	var row domain.VocabularyType
	err := t.WithContext(ctx).
		Where("name = ?", name).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *vocabularyTypeRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]*domain.VocabularyType, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*domain.VocabularyType
	if err := t.WithContext(ctx).
		Order("name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *vocabularyTypeRepo) ListByCategorySource(ctx context.Context, tx *gorm.DB, source string) ([]*domain.VocabularyType, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*domain.VocabularyType
	if source == "" {
		return out, nil
	}
	if err := t.WithContext(ctx).
		Where("category_source = ?", source).
		Order("name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *vocabularyTypeRepo) ListSeeds(ctx context.Context, tx *gorm.DB) ([]*domain.VocabularyType, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*domain.VocabularyType
	if err := t.WithContext(ctx).
		Where("is_seed = ?", true).
		Order("name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *vocabularyTypeRepo) List(ctx context.Context, tx *gorm.DB, filter ListFilter) ([]*domain.VocabularyType, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	q := t.WithContext(ctx)
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.CategorySource != "" {
		q = q.Where("category_source = ?", filter.CategorySource)
	}
	if filter.ValidationStatus != "" {
		q = q.Where("validation_status = ?", filter.ValidationStatus)
	}
	var out []*domain.VocabularyType
	if err := q.Order("name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *vocabularyTypeRepo) SetEmbedding(ctx context.Context, tx *gorm.DB, id uuid.UUID, vec []float32) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil || len(vec) == 0 {
		return nil
	}
	b, err := json.Marshal(vec)
	if err != nil {
		return err
	}
	return t.WithContext(ctx).
		Model(&domain.VocabularyType{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"embedding":  datatypes.JSON(b),
			"updated_at": time.Now(),
		}).Error
}

func (r *vocabularyTypeRepo) Classify(ctx context.Context, tx *gorm.DB, id uuid.UUID, category string) (bool, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil || category == "" {
		return false, nil
	}
	res := t.WithContext(ctx).
		Model(&domain.VocabularyType{}).
		Where("id = ? AND category_source = ?", id, domain.CategorySourceProposed).
		Updates(map[string]interface{}{
			"category":        category,
			"category_source": domain.CategorySourceClassified,
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *vocabularyTypeRepo) SetValidation(ctx context.Context, tx *gorm.DB, id uuid.UUID, a domain.ValidationAnnotations) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil
	}

	dist := a.RoleDistribution
	if dist == nil {
		dist = map[string]float64{}
	}
	b, err := json.Marshal(dist)
	if err != nil {
		return err
	}

	now := time.Now()
	return t.WithContext(ctx).
		Model(&domain.VocabularyType{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"semantic_role":        a.SemanticRole,
			"semantic_confidence":  a.SemanticConfidence,
			"empirical_role":       a.EmpiricalRole,
			"empirical_confidence": a.EmpiricalConfidence,
			"validation_status":    a.ValidationStatus,
			"role_distribution":    datatypes.JSON(b),
			"usage_count":          a.UsageCount,
			"last_validated_at":    now,
			"updated_at":           now,
		}).Error
}
