// Package scoring holds the pure mastery arithmetic shared by summary maintenance, task
// generation and stats: weighted mastery, bucket classification and progression thresholds.
package scoring

import (
	types "github.com/yungbote/neurobridge-mastery/internal/domain/mastery"
)

const (
	criticalUpperBound = 0.4
	coreUpperBound     = 0.8
)

// CriterionState is one criterion's weight and whether the user has mastered it.
type CriterionState struct {
	Weight   float64
	Mastered bool
}

// WeightedResult is the outcome of scoring one primitive's criteria.
type WeightedResult struct {
	Score            float64
	TotalCriteria    int
	MasteredCriteria int
}

// WeightedMastery returns sum(weight | mastered) / sum(weight). A zero total weight scores 0.
func WeightedMastery(criteria []CriterionState) WeightedResult {
	var total, mastered float64
	res := WeightedResult{TotalCriteria: len(criteria)}
	for _, c := range criteria {
		total += c.Weight
		if c.Mastered {
			mastered += c.Weight
			res.MasteredCriteria++
		}
	}
	if total <= 0 {
		return res
	}
	res.Score = clamp01(mastered / total)
	return res
}

// ClassifyBucket: critical < 0.4, core < 0.8, otherwise plus.
func ClassifyBucket(score float64) types.Bucket {
	switch {
	case score < criticalUpperBound:
		return types.BucketCritical
	case score < coreUpperBound:
		return types.BucketCore
	default:
		return types.BucketPlus
	}
}

// Threshold returns the minimum weighted score needed to progress at the given level.
func Threshold(level types.MasteryThresholdLevel) float64 {
	switch level {
	case types.ThresholdSurvey:
		return 0.6
	case types.ThresholdExpert:
		return 0.95
	default:
		return 0.8
	}
}

func CanProgress(score float64, level types.MasteryThresholdLevel) bool {
	return score >= Threshold(level)
}

// NextLevel walks NOT_STARTED, UNDERSTAND, USE, EXPLORE. EXPLORE has no successor.
func NextLevel(level string) (string, bool) {
	switch level {
	case types.MasteryLevelNotStarted, "":
		return types.MasteryLevelUnderstand, true
	case types.MasteryLevelUnderstand:
		return types.MasteryLevelUse, true
	case types.MasteryLevelUse:
		return types.MasteryLevelExplore, true
	default:
		return "", false
	}
}

// StageOf maps a mastery level to the criterion stage a learner must master to hold it.
func StageOf(level string) types.UUEStage {
	switch level {
	case types.MasteryLevelUse:
		return types.StageUse
	case types.MasteryLevelExplore:
		return types.StageExplore
	default:
		return types.StageUnderstand
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
