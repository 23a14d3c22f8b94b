package db

import (
	"fmt"

	types "github.com/yungbote/neurobridge-mastery/internal/domain/mastery"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		// Content
		&types.KnowledgePrimitive{},
		&types.MasteryCriterion{},

		// Per-user source of truth
		&types.UserPrimitiveProgress{},
		&types.UserCriterionMastery{},
		&types.UserBucketPreferences{},

		// Read model
		&types.UserPrimitiveDailySummary{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}
