package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	repos "github.com/yungbote/neurobridge-mastery/internal/data/repos/mastery"
	types "github.com/yungbote/neurobridge-mastery/internal/domain/mastery"
	apperrors "github.com/yungbote/neurobridge-mastery/internal/pkg/errors"
	"github.com/yungbote/neurobridge-mastery/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

type PreferencesService interface {
	// GetBucketPreferences never returns nil; users without a row get the defaults.
	GetBucketPreferences(ctx context.Context, userID uuid.UUID) (types.UserBucketPreferences, error)
	SaveBucketPreferences(ctx context.Context, prefs types.UserBucketPreferences) (types.UserBucketPreferences, error)
}

type preferencesService struct {
	log       *logger.Logger
	prefsRepo repos.UserBucketPreferencesRepo
}

func NewPreferencesService(log *logger.Logger, prefsRepo repos.UserBucketPreferencesRepo) PreferencesService {
	return &preferencesService{
		log:       log.With("service", "PreferencesService"),
		prefsRepo: prefsRepo,
	}
}

func (s *preferencesService) GetBucketPreferences(ctx context.Context, userID uuid.UUID) (types.UserBucketPreferences, error) {
	row, err := s.prefsRepo.GetByUserID(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		return types.UserBucketPreferences{}, fmt.Errorf("load bucket preferences: %w", err)
	}
	if row == nil {
		return types.DefaultBucketPreferences(userID), nil
	}
	return normalizePreferences(*row), nil
}

func (s *preferencesService) SaveBucketPreferences(ctx context.Context, prefs types.UserBucketPreferences) (types.UserBucketPreferences, error) {
	if prefs.UserID == uuid.Nil {
		return types.UserBucketPreferences{}, fmt.Errorf("save bucket preferences: %w: missing user id", apperrors.ErrInvalidArgument)
	}
	prefs = normalizePreferences(prefs)
	if err := s.prefsRepo.Upsert(dbctx.Context{Ctx: ctx}, &prefs); err != nil {
		return types.UserBucketPreferences{}, fmt.Errorf("save bucket preferences: %w", err)
	}
	s.log.Info("Bucket preferences saved",
		"user_id", prefs.UserID,
		"threshold", prefs.MasteryThresholdLevel,
		"intensity", prefs.TrackingIntensity,
	)
	return prefs, nil
}

// normalizePreferences maps unknown enum values and non-positive sizes back to defaults.
func normalizePreferences(p types.UserBucketPreferences) types.UserBucketPreferences {
	def := types.DefaultBucketPreferences(p.UserID)
	p.MasteryThresholdLevel = types.ParseThresholdLevel(string(p.MasteryThresholdLevel))
	p.TrackingIntensity = types.ParseTrackingIntensity(string(p.TrackingIntensity))
	if p.MaxDailyLimit <= 0 {
		p.MaxDailyLimit = def.MaxDailyLimit
	}
	if p.AddMoreIncrements <= 0 {
		p.AddMoreIncrements = def.AddMoreIncrements
	}
	if p.CriticalSize <= 0 {
		p.CriticalSize = def.CriticalSize
	}
	if p.CoreSize <= 0 {
		p.CoreSize = def.CoreSize
	}
	if p.PlusSize <= 0 {
		p.PlusSize = def.PlusSize
	}
	return p
}
