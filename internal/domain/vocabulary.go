package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CategorySource is a one-way state machine: a type is created as proposed
// and transitions to classified exactly once. No automated process may move
// it back or change its category afterwards.
const (
	CategorySourceProposed   = "proposed"
	CategorySourceClassified = "classified"
)

// Semantic roles. Bucket boundaries over average endpoint grounding strength
// map [0,1] onto these four, highest support first.
const (
	RoleWellSupported = "well_supported"
	RoleContested     = "contested"
	RoleOutdated      = "outdated"
	RoleRefuted       = "refuted"
)

// Roles returns the four roles in fixed rank order (strongest grounding
// first). The order doubles as the deterministic tie-break for ranking.
func Roles() []string {
	return []string{RoleWellSupported, RoleContested, RoleOutdated, RoleRefuted}
}

// Validation statuses produced by cross-checking the semantic role against
// the empirical role. Surfaced to curator tooling; never acted on
// automatically.
const (
	ValidationValidated         = "VALIDATED"
	ValidationAmbiguous         = "AMBIGUOUS"
	ValidationSemanticOverride  = "SEMANTIC_OVERRIDE"
	ValidationEmpiricalOverride = "EMPIRICAL_OVERRIDE"
	ValidationInsufficientData  = "INSUFFICIENT_DATA"
)

// VocabularyType is one canonical relationship type. Name is immutable once
// created. Validation annotations live in their own columns and are never
// merged into the classification fields.
type VocabularyType struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	Name      string         `gorm:"column:name;not null;uniqueIndex:idx_vocabulary_type_name" json:"name"`
	Embedding datatypes.JSON `gorm:"column:embedding;type:jsonb" json:"-"`

	Category       string `gorm:"column:category;not null;default:'';index" json:"category"`
	CategorySource string `gorm:"column:category_source;not null;default:'proposed';index" json:"category_source"`
	IsSeed         bool   `gorm:"column:is_seed;not null;default:false" json:"is_seed"`

	UsageCount int64 `gorm:"column:usage_count;not null;default:0" json:"usage_count"`

	// Grounding-validation annotations.
	RoleDistribution    datatypes.JSON `gorm:"column:role_distribution;type:jsonb" json:"role_distribution,omitempty"`
	SemanticRole        *string        `gorm:"column:semantic_role" json:"semantic_role,omitempty"`
	SemanticConfidence  *float64       `gorm:"column:semantic_confidence" json:"semantic_confidence,omitempty"`
	EmpiricalRole       *string        `gorm:"column:empirical_role" json:"empirical_role,omitempty"`
	EmpiricalConfidence *float64       `gorm:"column:empirical_confidence" json:"empirical_confidence,omitempty"`
	ValidationStatus    *string        `gorm:"column:validation_status;index" json:"validation_status,omitempty"`
	LastValidatedAt     *time.Time     `gorm:"column:last_validated_at" json:"last_validated_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (VocabularyType) TableName() string { return "vocabulary_type" }

// EmbeddingVector decodes the stored jsonb vector. Returns nil when no
// embedding has been generated yet.
func (v *VocabularyType) EmbeddingVector() []float32 {
	if len(v.Embedding) == 0 {
		return nil
	}
	var vec []float32
	if err := json.Unmarshal(v.Embedding, &vec); err != nil {
		return nil
	}
	if len(vec) == 0 {
		return nil
	}
	return vec
}

func (v *VocabularyType) SetEmbeddingVector(vec []float32) {
	if len(vec) == 0 {
		v.Embedding = nil
		return
	}
	b, _ := json.Marshal(vec)
	v.Embedding = datatypes.JSON(b)
}

// RoleRatios decodes role_distribution. Ratios sum to at most 1.0; buckets
// past the satisficing cutoff are absent, not zero.
func (v *VocabularyType) RoleRatios() map[string]float64 {
	if len(v.RoleDistribution) == 0 {
		return map[string]float64{}
	}
	out := map[string]float64{}
	if err := json.Unmarshal(v.RoleDistribution, &out); err != nil {
		return map[string]float64{}
	}
	return out
}

// RolePrototype is one of the four fixed usage-pattern archetypes with its
// persisted embedding; generated once at bootstrap, stable across runs.
type RolePrototype struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name      string         `gorm:"column:name;not null;uniqueIndex:idx_role_prototype_name" json:"name"`
	Embedding datatypes.JSON `gorm:"column:embedding;type:jsonb" json:"-"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (RolePrototype) TableName() string { return "role_prototype" }

func (p *RolePrototype) EmbeddingVector() []float32 {
	if len(p.Embedding) == 0 {
		return nil
	}
	var vec []float32
	if err := json.Unmarshal(p.Embedding, &vec); err != nil {
		return nil
	}
	if len(vec) == 0 {
		return nil
	}
	return vec
}

func (p *RolePrototype) SetEmbeddingVector(vec []float32) {
	if len(vec) == 0 {
		p.Embedding = nil
		return
	}
	b, _ := json.Marshal(vec)
	p.Embedding = datatypes.JSON(b)
}

// ValidationAnnotations is the full annotation set written by one validator
// run over one type. Applying it twice with unchanged graph data yields the
// same stored row.
type ValidationAnnotations struct {
	SemanticRole        string
	SemanticConfidence  float64
	EmpiricalRole       *string
	EmpiricalConfidence *float64
	ValidationStatus    string
	RoleDistribution    map[string]float64
	UsageCount          int64
}
