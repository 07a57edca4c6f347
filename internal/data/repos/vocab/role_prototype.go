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

type RolePrototypeRepo interface {
	GetAll(ctx context.Context, tx *gorm.DB) ([]*domain.RolePrototype, error)
	CreateIfAbsent(ctx context.Context, tx *gorm.DB, row *domain.RolePrototype) (*domain.RolePrototype, bool, error)
	SetEmbedding(ctx context.Context, tx *gorm.DB, id uuid.UUID, vec []float32) error
}

type rolePrototypeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRolePrototypeRepo(db *gorm.DB, baseLog *logger.Logger) RolePrototypeRepo {
	return &rolePrototypeRepo{db: db, log: baseLog.With("repo", "RolePrototypeRepo")}
}

func (r *rolePrototypeRepo) GetAll(ctx context.Context, tx *gorm.DB) ([]*domain.RolePrototype, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*domain.RolePrototype
	if err := t.WithContext(ctx).
		Order("name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *rolePrototypeRepo) CreateIfAbsent(ctx context.Context, tx *gorm.DB, row *domain.RolePrototype) (*domain.RolePrototype, bool, error) {
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

	var existing domain.RolePrototype
	err := t.WithContext(ctx).
		Where("name = ?", row.Name).
		Limit(1).
		Find(&existing).Error
	if err != nil {
		return nil, false, err
	}
	if existing.ID == uuid.Nil {
		return nil, false, nil
	}
	return &existing, false, nil
}

func (r *rolePrototypeRepo) SetEmbedding(ctx context.Context, tx *gorm.DB, id uuid.UUID, vec []float32) error {
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
		Model(&domain.RolePrototype{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"embedding":  datatypes.JSON(b),
			"updated_at": time.Now(),
		}).Error
}
