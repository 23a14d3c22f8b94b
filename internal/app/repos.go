package app

import (
	"gorm.io/gorm"

	repos "github.com/yungbote/neurobridge-mastery/internal/data/repos/mastery"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

type Repos struct {
	Primitive        repos.KnowledgePrimitiveRepo
	Criterion        repos.MasteryCriterionRepo
	CriterionMastery repos.UserCriterionMasteryRepo
	Progress         repos.UserPrimitiveProgressRepo
	Summary          repos.UserPrimitiveDailySummaryRepo
	Preferences      repos.UserBucketPreferencesRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Primitive:        repos.NewKnowledgePrimitiveRepo(db, log),
		Criterion:        repos.NewMasteryCriterionRepo(db, log),
		CriterionMastery: repos.NewUserCriterionMasteryRepo(db, log),
		Progress:         repos.NewUserPrimitiveProgressRepo(db, log),
		Summary:          repos.NewUserPrimitiveDailySummaryRepo(db, log),
		Preferences:      repos.NewUserBucketPreferencesRepo(db, log),
	}
}
