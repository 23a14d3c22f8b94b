package mastery

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type KnowledgePrimitive struct {
	ID              uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	PrimitiveID     string                      `gorm:"column:primitive_id;not null;uniqueIndex" json:"primitive_id"`
	UserID          uuid.UUID                   `gorm:"type:uuid;not null;index" json:"user_id"`
	BlueprintID     *uuid.UUID                  `gorm:"type:uuid;index" json:"blueprint_id,omitempty"`
	Title           string                      `gorm:"column:title;not null" json:"title"`
	PrerequisiteIDs datatypes.JSONSlice[string] `gorm:"column:prerequisite_ids" json:"prerequisite_ids"`
	RelatedIDs      datatypes.JSONSlice[string] `gorm:"column:related_ids" json:"related_ids"`
	CreatedAt       time.Time                   `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time                   `gorm:"not null" json:"updated_at"`
}

func (KnowledgePrimitive) TableName() string { return "knowledge_primitive" }

func (p *KnowledgePrimitive) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

type MasteryCriterion struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CriterionID string    `gorm:"column:criterion_id;not null;uniqueIndex" json:"criterion_id"`
	PrimitiveID string    `gorm:"column:primitive_id;not null;index" json:"primitive_id"`
	Title       string    `gorm:"column:title" json:"title"`
	// Weight is nil for the default weight of 1.
	Weight    *float64  `gorm:"column:weight" json:"weight,omitempty"`
	UUEStage  UUEStage  `gorm:"column:uue_stage;not null" json:"uue_stage"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (MasteryCriterion) TableName() string { return "mastery_criterion" }

func (c *MasteryCriterion) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// EffectiveWeight applies the default weight of 1.
func (c *MasteryCriterion) EffectiveWeight() float64 {
	if c == nil || c.Weight == nil {
		return 1
	}
	return *c.Weight
}
