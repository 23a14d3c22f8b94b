package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	types "github.com/yungbote/neurobridge-mastery/internal/domain/mastery"
	"gorm.io/gorm"
)

func SeedPrimitive(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, primitiveID string) *types.KnowledgePrimitive {
	tb.Helper()
	p := &types.KnowledgePrimitive{
		PrimitiveID: primitiveID,
		UserID:      userID,
		Title:       "primitive " + primitiveID,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed primitive: %v", err)
	}
	return p
}

func SeedCriterion(tb testing.TB, ctx context.Context, tx *gorm.DB, primitiveID, criterionID string, weight *float64) *types.MasteryCriterion {
	tb.Helper()
	c := &types.MasteryCriterion{
		CriterionID: criterionID,
		PrimitiveID: primitiveID,
		Title:       "criterion " + criterionID,
		Weight:      weight,
		UUEStage:    types.StageUnderstand,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed criterion: %v", err)
	}
	return c
}

func SeedProgress(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, primitiveID string, blueprintID uuid.UUID, reviewCount int) *types.UserPrimitiveProgress {
	tb.Helper()
	p := &types.UserPrimitiveProgress{
		UserID:       userID,
		PrimitiveID:  primitiveID,
		BlueprintID:  blueprintID,
		ReviewCount:  reviewCount,
		IntervalStep: reviewCount,
		MasteryLevel: types.MasteryLevelUnderstand,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed progress: %v", err)
	}
	return p
}

func SeedCriterionMastery(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, criterionID, primitiveID string, blueprintID uuid.UUID, successful int, mastered bool) *types.UserCriterionMastery {
	tb.Helper()
	m := &types.UserCriterionMastery{
		UserID:             userID,
		CriterionID:        criterionID,
		PrimitiveID:        primitiveID,
		BlueprintID:        blueprintID,
		AttemptCount:       successful,
		SuccessfulAttempts: successful,
		IsMastered:         mastered,
	}
	if mastered {
		m.MasteredAt = PtrTime(time.Now().UTC())
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed criterion mastery: %v", err)
	}
	return m
}

func SeedPreferences(tb testing.TB, ctx context.Context, tx *gorm.DB, prefs types.UserBucketPreferences) *types.UserBucketPreferences {
	tb.Helper()
	row := prefs
	if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
		tb.Fatalf("seed preferences: %v", err)
	}
	return &row
}

func PtrFloat(v float64) *float64 { return &v }

func PtrTime(v time.Time) *time.Time { return &v }

// UniqueID returns a readable id that stays unique across tests sharing one database.
func UniqueID(prefix string) string {
	return prefix + "_" + uuid.NewString()[:8]
}
