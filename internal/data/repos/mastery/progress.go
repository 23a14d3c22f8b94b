package mastery

import (
	"errors"
	"time"

	"github.com/google/uuid"
	types "github.com/yungbote/neurobridge-mastery/internal/domain/mastery"
	"github.com/yungbote/neurobridge-mastery/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
	"gorm.io/gorm"
)

type UserPrimitiveProgressRepo interface {
	Create(dbc dbctx.Context, rows []*types.UserPrimitiveProgress) ([]*types.UserPrimitiveProgress, error)
	GetByKeys(dbc dbctx.Context, userID uuid.UUID, keys []ProgressKey) ([]*types.UserPrimitiveProgress, error)
	GetLatestForPrimitive(dbc dbctx.Context, userID uuid.UUID, primitiveID string) (*types.UserPrimitiveProgress, error)
	ListByUserID(dbc dbctx.Context, userID uuid.UUID) ([]*types.UserPrimitiveProgress, error)
	ListUserIDsReviewedSince(dbc dbctx.Context, since time.Time) ([]uuid.UUID, error)
	// UpdateIfVersion writes the review fields of row only when the stored version still
	// equals expectedVersion. It reports whether a row was written.
	UpdateIfVersion(dbc dbctx.Context, row *types.UserPrimitiveProgress, expectedVersion int64) (bool, error)
	SetNextReviewAt(dbc dbctx.Context, userID uuid.UUID, key ProgressKey, at time.Time) (int64, error)
	// SetMasteryLevelIfVersion is UpdateIfVersion for the mastery level alone.
	SetMasteryLevelIfVersion(dbc dbctx.Context, id uuid.UUID, level string, expectedVersion int64, at time.Time) (bool, error)
}

type userPrimitiveProgressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserPrimitiveProgressRepo(db *gorm.DB, baseLog *logger.Logger) UserPrimitiveProgressRepo {
	return &userPrimitiveProgressRepo{db: db, log: baseLog.With("repo", "UserPrimitiveProgressRepo")}
}

func (r *userPrimitiveProgressRepo) Create(dbc dbctx.Context, rows []*types.UserPrimitiveProgress) ([]*types.UserPrimitiveProgress, error) {
	if len(rows) == 0 {
		return []*types.UserPrimitiveProgress{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *userPrimitiveProgressRepo) GetByKeys(dbc dbctx.Context, userID uuid.UUID, keys []ProgressKey) ([]*types.UserPrimitiveProgress, error) {
	var results []*types.UserPrimitiveProgress
	if len(keys) == 0 {
		return results, nil
	}
	cond, args := progressKeyCondition(keys)
	if err := dbc.DB(r.db).
		Where("user_id = ?", userID).
		Where(cond, args...).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *userPrimitiveProgressRepo) GetLatestForPrimitive(dbc dbctx.Context, userID uuid.UUID, primitiveID string) (*types.UserPrimitiveProgress, error) {
	var row types.UserPrimitiveProgress
	err := dbc.DB(r.db).
		Where("user_id = ? AND primitive_id = ?", userID, primitiveID).
		Order("updated_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *userPrimitiveProgressRepo) ListByUserID(dbc dbctx.Context, userID uuid.UUID) ([]*types.UserPrimitiveProgress, error) {
	var results []*types.UserPrimitiveProgress
	if err := dbc.DB(r.db).
		Where("user_id = ?", userID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *userPrimitiveProgressRepo) ListUserIDsReviewedSince(dbc dbctx.Context, since time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := dbc.DB(r.db).
		Model(&types.UserPrimitiveProgress{}).
		Where("last_reviewed_at >= ?", since).
		Distinct("user_id").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *userPrimitiveProgressRepo) UpdateIfVersion(dbc dbctx.Context, row *types.UserPrimitiveProgress, expectedVersion int64) (bool, error) {
	if row == nil {
		return false, nil
	}
	res := dbc.DB(r.db).
		Model(&types.UserPrimitiveProgress{}).
		Where("id = ? AND version = ?", row.ID, expectedVersion).
		Updates(map[string]interface{}{
			"review_count":       row.ReviewCount,
			"successful_reviews": row.SuccessfulReviews,
			"interval_step":      row.IntervalStep,
			"last_reviewed_at":   row.LastReviewedAt,
			"next_review_at":     row.NextReviewAt,
			"version":            expectedVersion + 1,
			"updated_at":         row.UpdatedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	row.Version = expectedVersion + 1
	return true, nil
}

func (r *userPrimitiveProgressRepo) SetNextReviewAt(dbc dbctx.Context, userID uuid.UUID, key ProgressKey, at time.Time) (int64, error) {
	res := dbc.DB(r.db).
		Model(&types.UserPrimitiveProgress{}).
		Where("user_id = ? AND primitive_id = ? AND blueprint_id = ?", userID, key.PrimitiveID, key.BlueprintID).
		Updates(map[string]interface{}{
			"next_review_at": at,
			"version":        gorm.Expr("version + 1"),
			"updated_at":     time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *userPrimitiveProgressRepo) SetMasteryLevelIfVersion(dbc dbctx.Context, id uuid.UUID, level string, expectedVersion int64, at time.Time) (bool, error) {
	res := dbc.DB(r.db).
		Model(&types.UserPrimitiveProgress{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"mastery_level": level,
			"version":       expectedVersion + 1,
			"updated_at":    at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
