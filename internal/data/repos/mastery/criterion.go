package mastery

import (
	"github.com/google/uuid"
	types "github.com/yungbote/neurobridge-mastery/internal/domain/mastery"
	"github.com/yungbote/neurobridge-mastery/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
	"gorm.io/gorm"
)

type MasteryCriterionRepo interface {
	Create(dbc dbctx.Context, rows []*types.MasteryCriterion) ([]*types.MasteryCriterion, error)
	ListByPrimitiveID(dbc dbctx.Context, primitiveID string) ([]*types.MasteryCriterion, error)
}

type masteryCriterionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMasteryCriterionRepo(db *gorm.DB, baseLog *logger.Logger) MasteryCriterionRepo {
	return &masteryCriterionRepo{db: db, log: baseLog.With("repo", "MasteryCriterionRepo")}
}

func (r *masteryCriterionRepo) Create(dbc dbctx.Context, rows []*types.MasteryCriterion) ([]*types.MasteryCriterion, error) {
	if len(rows) == 0 {
		return []*types.MasteryCriterion{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *masteryCriterionRepo) ListByPrimitiveID(dbc dbctx.Context, primitiveID string) ([]*types.MasteryCriterion, error) {
	var results []*types.MasteryCriterion
	if err := dbc.DB(r.db).
		Where("primitive_id = ?", primitiveID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

type UserCriterionMasteryRepo interface {
	Create(dbc dbctx.Context, rows []*types.UserCriterionMastery) ([]*types.UserCriterionMastery, error)
	GetByKeys(dbc dbctx.Context, userID uuid.UUID, keys []CriterionKey) ([]*types.UserCriterionMastery, error)
	ListByUserAndPrimitive(dbc dbctx.Context, userID uuid.UUID, primitiveID string) ([]*types.UserCriterionMastery, error)
	ApplyAttempt(dbc dbctx.Context, row *types.UserCriterionMastery) error
}

type userCriterionMasteryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserCriterionMasteryRepo(db *gorm.DB, baseLog *logger.Logger) UserCriterionMasteryRepo {
	return &userCriterionMasteryRepo{db: db, log: baseLog.With("repo", "UserCriterionMasteryRepo")}
}

func (r *userCriterionMasteryRepo) Create(dbc dbctx.Context, rows []*types.UserCriterionMastery) ([]*types.UserCriterionMastery, error) {
	if len(rows) == 0 {
		return []*types.UserCriterionMastery{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *userCriterionMasteryRepo) GetByKeys(dbc dbctx.Context, userID uuid.UUID, keys []CriterionKey) ([]*types.UserCriterionMastery, error) {
	var results []*types.UserCriterionMastery
	if len(keys) == 0 {
		return results, nil
	}
	cond, args := criterionKeyCondition(keys)
	if err := dbc.DB(r.db).
		Where("user_id = ?", userID).
		Where(cond, args...).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *userCriterionMasteryRepo) ListByUserAndPrimitive(dbc dbctx.Context, userID uuid.UUID, primitiveID string) ([]*types.UserCriterionMastery, error) {
	var results []*types.UserCriterionMastery
	if err := dbc.DB(r.db).
		Where("user_id = ? AND primitive_id = ?", userID, primitiveID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *userCriterionMasteryRepo) ApplyAttempt(dbc dbctx.Context, row *types.UserCriterionMastery) error {
	if row == nil {
		return nil
	}
	return dbc.DB(r.db).
		Model(&types.UserCriterionMastery{}).
		Where("id = ?", row.ID).
		Updates(map[string]interface{}{
			"attempt_count":       row.AttemptCount,
			"successful_attempts": row.SuccessfulAttempts,
			"is_mastered":         row.IsMastered,
			"mastered_at":         row.MasteredAt,
			"last_attempted_at":   row.LastAttemptedAt,
			"updated_at":          row.UpdatedAt,
		}).Error
}
