package mastery

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserPrimitiveProgress is the source-of-truth review state for one (user, primitive,
// blueprint). Version is bumped on every outcome write and checked on update.
type UserPrimitiveProgress struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_progress_user_primitive_blueprint,priority:1" json:"user_id"`
	PrimitiveID       string     `gorm:"column:primitive_id;not null;uniqueIndex:idx_progress_user_primitive_blueprint,priority:2" json:"primitive_id"`
	BlueprintID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_progress_user_primitive_blueprint,priority:3" json:"blueprint_id"`
	ReviewCount       int        `gorm:"column:review_count;not null" json:"review_count"`
	SuccessfulReviews int        `gorm:"column:successful_reviews;not null" json:"successful_reviews"`
	IntervalStep      int        `gorm:"column:interval_step;not null" json:"interval_step"`
	LastReviewedAt    *time.Time `gorm:"column:last_reviewed_at;index" json:"last_reviewed_at,omitempty"`
	NextReviewAt      *time.Time `gorm:"column:next_review_at" json:"next_review_at,omitempty"`
	MasteryLevel      string     `gorm:"column:mastery_level;not null" json:"mastery_level"`
	Version           int64      `gorm:"column:version;not null" json:"version"`
	CreatedAt         time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"not null" json:"updated_at"`
}

func (UserPrimitiveProgress) TableName() string { return "user_primitive_progress" }

func (p *UserPrimitiveProgress) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.MasteryLevel == "" {
		p.MasteryLevel = MasteryLevelNotStarted
	}
	return nil
}

// UserCriterionMastery tracks attempts against one criterion. IsMastered is sticky.
type UserCriterionMastery struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID             uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_criterion_mastery_key,priority:1" json:"user_id"`
	CriterionID        string     `gorm:"column:criterion_id;not null;uniqueIndex:idx_criterion_mastery_key,priority:2" json:"criterion_id"`
	PrimitiveID        string     `gorm:"column:primitive_id;not null;uniqueIndex:idx_criterion_mastery_key,priority:3" json:"primitive_id"`
	BlueprintID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_criterion_mastery_key,priority:4" json:"blueprint_id"`
	AttemptCount       int        `gorm:"column:attempt_count;not null" json:"attempt_count"`
	SuccessfulAttempts int        `gorm:"column:successful_attempts;not null" json:"successful_attempts"`
	IsMastered         bool       `gorm:"column:is_mastered;not null" json:"is_mastered"`
	MasteredAt         *time.Time `gorm:"column:mastered_at" json:"mastered_at,omitempty"`
	LastAttemptedAt    *time.Time `gorm:"column:last_attempted_at" json:"last_attempted_at,omitempty"`
	CreatedAt          time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"not null" json:"updated_at"`
}

func (UserCriterionMastery) TableName() string { return "user_criterion_mastery" }

func (m *UserCriterionMastery) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
