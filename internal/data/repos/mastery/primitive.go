package mastery

import (
	"github.com/google/uuid"
	types "github.com/yungbote/neurobridge-mastery/internal/domain/mastery"
	"github.com/yungbote/neurobridge-mastery/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
	"gorm.io/gorm"
)

type KnowledgePrimitiveRepo interface {
	Create(dbc dbctx.Context, rows []*types.KnowledgePrimitive) ([]*types.KnowledgePrimitive, error)
	GetByPrimitiveIDs(dbc dbctx.Context, primitiveIDs []string) ([]*types.KnowledgePrimitive, error)
	ListByUserID(dbc dbctx.Context, userID uuid.UUID) ([]*types.KnowledgePrimitive, error)
	DeleteByPrimitiveIDs(dbc dbctx.Context, primitiveIDs []string) error
}

type knowledgePrimitiveRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewKnowledgePrimitiveRepo(db *gorm.DB, baseLog *logger.Logger) KnowledgePrimitiveRepo {
	return &knowledgePrimitiveRepo{db: db, log: baseLog.With("repo", "KnowledgePrimitiveRepo")}
}

func (r *knowledgePrimitiveRepo) Create(dbc dbctx.Context, rows []*types.KnowledgePrimitive) ([]*types.KnowledgePrimitive, error) {
	if len(rows) == 0 {
		return []*types.KnowledgePrimitive{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *knowledgePrimitiveRepo) GetByPrimitiveIDs(dbc dbctx.Context, primitiveIDs []string) ([]*types.KnowledgePrimitive, error) {
	var results []*types.KnowledgePrimitive
	if len(primitiveIDs) == 0 {
		return results, nil
	}
	if err := dbc.DB(r.db).
		Where("primitive_id IN ?", primitiveIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *knowledgePrimitiveRepo) ListByUserID(dbc dbctx.Context, userID uuid.UUID) ([]*types.KnowledgePrimitive, error) {
	var results []*types.KnowledgePrimitive
	if err := dbc.DB(r.db).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// DeleteByPrimitiveIDs removes primitives and their criteria and per-user progress. Daily
// summaries are left behind on purpose; stale-data cleanup reclaims them.
func (r *knowledgePrimitiveRepo) DeleteByPrimitiveIDs(dbc dbctx.Context, primitiveIDs []string) error {
	if len(primitiveIDs) == 0 {
		return nil
	}
	db := dbc.DB(r.db)
	for _, model := range []interface{}{
		&types.UserCriterionMastery{},
		&types.UserPrimitiveProgress{},
		&types.MasteryCriterion{},
		&types.KnowledgePrimitive{},
	} {
		if err := db.Where("primitive_id IN ?", primitiveIDs).Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}
