package mastery

import (
	"time"

	"github.com/google/uuid"
	types "github.com/yungbote/neurobridge-mastery/internal/domain/mastery"
	"github.com/yungbote/neurobridge-mastery/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrphanSummary is a summary row whose primitive no longer exists.
type OrphanSummary struct {
	ID     uuid.UUID
	UserID uuid.UUID
}

// SummaryAggregate is the table-wide shape reported by maintenance stats.
type SummaryAggregate struct {
	Total                  int64
	RecentlyUpdated        int64
	Stale                  int64
	AverageWeightedMastery float64
}

type UserPrimitiveDailySummaryRepo interface {
	Upsert(dbc dbctx.Context, row *types.UserPrimitiveDailySummary) error
	ListByUserID(dbc dbctx.Context, userID uuid.UUID) ([]*types.UserPrimitiveDailySummary, error)
	ListDue(dbc dbctx.Context, userID uuid.UUID, now time.Time) ([]*types.UserPrimitiveDailySummary, error)
	ListScheduledBetween(dbc dbctx.Context, userID uuid.UUID, start, end time.Time) ([]*types.UserPrimitiveDailySummary, error)
	ListOverdue(dbc dbctx.Context, userID uuid.UUID, now time.Time) ([]*types.UserPrimitiveDailySummary, error)
	ListOrphans(dbc dbctx.Context) ([]OrphanSummary, error)
	ListUserIDsCalculatedBefore(dbc dbctx.Context, cutoff time.Time) ([]uuid.UUID, error)
	DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) (int64, error)
	Aggregate(dbc dbctx.Context, freshSince time.Time) (SummaryAggregate, error)
}

type userPrimitiveDailySummaryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserPrimitiveDailySummaryRepo(db *gorm.DB, baseLog *logger.Logger) UserPrimitiveDailySummaryRepo {
	return &userPrimitiveDailySummaryRepo{db: db, log: baseLog.With("repo", "UserPrimitiveDailySummaryRepo")}
}

func (r *userPrimitiveDailySummaryRepo) Upsert(dbc dbctx.Context, row *types.UserPrimitiveDailySummary) error {
	if row == nil {
		return nil
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "primitive_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"primitive_title",
				"mastery_level",
				"weighted_mastery_score",
				"total_criteria",
				"mastered_criteria",
				"next_review_at",
				"can_progress_to_next",
				"last_calculated",
				"updated_at",
			}),
		}).
		Create(row).Error
}

func (r *userPrimitiveDailySummaryRepo) ListByUserID(dbc dbctx.Context, userID uuid.UUID) ([]*types.UserPrimitiveDailySummary, error) {
	var results []*types.UserPrimitiveDailySummary
	if err := dbc.DB(r.db).
		Where("user_id = ?", userID).
		Order("weighted_mastery_score ASC").
		Order("next_review_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *userPrimitiveDailySummaryRepo) ListDue(dbc dbctx.Context, userID uuid.UUID, now time.Time) ([]*types.UserPrimitiveDailySummary, error) {
	var results []*types.UserPrimitiveDailySummary
	if err := dbc.DB(r.db).
		Where("user_id = ? AND next_review_at IS NOT NULL AND next_review_at <= ?", userID, now).
		Order("next_review_at ASC").
		Order("weighted_mastery_score ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *userPrimitiveDailySummaryRepo) ListScheduledBetween(dbc dbctx.Context, userID uuid.UUID, start, end time.Time) ([]*types.UserPrimitiveDailySummary, error) {
	var results []*types.UserPrimitiveDailySummary
	if err := dbc.DB(r.db).
		Where("user_id = ? AND next_review_at >= ? AND next_review_at <= ?", userID, start, end).
		Order("next_review_at ASC").
		Order("weighted_mastery_score ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *userPrimitiveDailySummaryRepo) ListOverdue(dbc dbctx.Context, userID uuid.UUID, now time.Time) ([]*types.UserPrimitiveDailySummary, error) {
	var results []*types.UserPrimitiveDailySummary
	if err := dbc.DB(r.db).
		Where("user_id = ? AND (next_review_at IS NULL OR next_review_at < ?)", userID, now).
		Order("weighted_mastery_score ASC").
		Order("next_review_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *userPrimitiveDailySummaryRepo) ListOrphans(dbc dbctx.Context) ([]OrphanSummary, error) {
	var results []OrphanSummary
	if err := dbc.DB(r.db).
		Table("user_primitive_daily_summary AS s").
		Select("s.id AS id, s.user_id AS user_id").
		Joins("LEFT JOIN knowledge_primitive kp ON kp.primitive_id = s.primitive_id").
		Where("kp.id IS NULL").
		Scan(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *userPrimitiveDailySummaryRepo) ListUserIDsCalculatedBefore(dbc dbctx.Context, cutoff time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := dbc.DB(r.db).
		Model(&types.UserPrimitiveDailySummary{}).
		Where("last_calculated < ?", cutoff).
		Distinct("user_id").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *userPrimitiveDailySummaryRepo) DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := dbc.DB(r.db).
		Where("id IN ?", ids).
		Delete(&types.UserPrimitiveDailySummary{})
	return res.RowsAffected, res.Error
}

func (r *userPrimitiveDailySummaryRepo) Aggregate(dbc dbctx.Context, freshSince time.Time) (SummaryAggregate, error) {
	var out SummaryAggregate
	db := dbc.DB(r.db)
	if err := db.Model(&types.UserPrimitiveDailySummary{}).Count(&out.Total).Error; err != nil {
		return out, err
	}
	if err := db.Model(&types.UserPrimitiveDailySummary{}).
		Where("last_calculated >= ?", freshSince).
		Count(&out.RecentlyUpdated).Error; err != nil {
		return out, err
	}
	out.Stale = out.Total - out.RecentlyUpdated
	if err := db.Model(&types.UserPrimitiveDailySummary{}).
		Select("COALESCE(AVG(weighted_mastery_score), 0)").
		Row().Scan(&out.AverageWeightedMastery); err != nil {
		return out, err
	}
	return out, nil
}
