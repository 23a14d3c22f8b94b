package mastery

import (
	"errors"

	"github.com/google/uuid"
	types "github.com/yungbote/neurobridge-mastery/internal/domain/mastery"
	"github.com/yungbote/neurobridge-mastery/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserBucketPreferencesRepo interface {
	GetByUserID(dbc dbctx.Context, userID uuid.UUID) (*types.UserBucketPreferences, error)
	Upsert(dbc dbctx.Context, row *types.UserBucketPreferences) error
}

type userBucketPreferencesRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserBucketPreferencesRepo(db *gorm.DB, baseLog *logger.Logger) UserBucketPreferencesRepo {
	return &userBucketPreferencesRepo{db: db, log: baseLog.With("repo", "UserBucketPreferencesRepo")}
}

// GetByUserID returns nil without error when the user has no preferences row.
func (r *userBucketPreferencesRepo) GetByUserID(dbc dbctx.Context, userID uuid.UUID) (*types.UserBucketPreferences, error) {
	var row types.UserBucketPreferences
	err := dbc.DB(r.db).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *userBucketPreferencesRepo) Upsert(dbc dbctx.Context, row *types.UserBucketPreferences) error {
	if row == nil {
		return nil
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"mastery_threshold_level",
				"tracking_intensity",
				"max_daily_limit",
				"add_more_increments",
				"critical_size",
				"core_size",
				"plus_size",
				"updated_at",
			}),
		}).
		Create(row).Error
}
