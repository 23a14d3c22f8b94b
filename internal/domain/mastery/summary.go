package mastery

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserPrimitiveDailySummary is the denormalized read model, written only by summary
// maintenance.
type UserPrimitiveDailySummary struct {
	ID                   uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID               uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_summary_user_primitive,priority:1" json:"user_id"`
	PrimitiveID          string     `gorm:"column:primitive_id;not null;uniqueIndex:idx_summary_user_primitive,priority:2" json:"primitive_id"`
	PrimitiveTitle       string     `gorm:"column:primitive_title" json:"primitive_title"`
	MasteryLevel         string     `gorm:"column:mastery_level;not null" json:"mastery_level"`
	WeightedMasteryScore float64    `gorm:"column:weighted_mastery_score;not null;index" json:"weighted_mastery_score"`
	TotalCriteria        int        `gorm:"column:total_criteria;not null" json:"total_criteria"`
	MasteredCriteria     int        `gorm:"column:mastered_criteria;not null" json:"mastered_criteria"`
	NextReviewAt         *time.Time `gorm:"column:next_review_at;index" json:"next_review_at,omitempty"`
	CanProgressToNext    bool       `gorm:"column:can_progress_to_next;not null" json:"can_progress_to_next"`
	LastCalculated       time.Time  `gorm:"column:last_calculated;not null;index" json:"last_calculated"`
	CreatedAt            time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"not null" json:"updated_at"`
}

func (UserPrimitiveDailySummary) TableName() string { return "user_primitive_daily_summary" }

func (s *UserPrimitiveDailySummary) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

type UserBucketPreferences struct {
	ID                    uuid.UUID             `gorm:"type:uuid;primaryKey" json:"id"`
	UserID                uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	MasteryThresholdLevel MasteryThresholdLevel `gorm:"column:mastery_threshold_level;not null" json:"mastery_threshold_level"`
	TrackingIntensity     TrackingIntensity     `gorm:"column:tracking_intensity;not null" json:"tracking_intensity"`
	MaxDailyLimit         int                   `gorm:"column:max_daily_limit;not null" json:"max_daily_limit"`
	AddMoreIncrements     int                   `gorm:"column:add_more_increments;not null" json:"add_more_increments"`
	CriticalSize          int                   `gorm:"column:critical_size;not null" json:"critical_size"`
	CoreSize              int                   `gorm:"column:core_size;not null" json:"core_size"`
	PlusSize              int                   `gorm:"column:plus_size;not null" json:"plus_size"`
	CreatedAt             time.Time             `gorm:"not null" json:"created_at"`
	UpdatedAt             time.Time             `gorm:"not null" json:"updated_at"`
}

func (UserBucketPreferences) TableName() string { return "user_bucket_preferences" }

func (p *UserBucketPreferences) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// DefaultBucketPreferences is used when a user has no stored preferences row.
func DefaultBucketPreferences(userID uuid.UUID) UserBucketPreferences {
	return UserBucketPreferences{
		UserID:                userID,
		MasteryThresholdLevel: ThresholdProficient,
		TrackingIntensity:     IntensityNormal,
		MaxDailyLimit:         30,
		AddMoreIncrements:     5,
		CriticalSize:          10,
		CoreSize:              15,
		PlusSize:              5,
	}
}
