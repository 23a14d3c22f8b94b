package mastery

import "strings"

type MasteryThresholdLevel string

const (
	ThresholdSurvey     MasteryThresholdLevel = "SURVEY"
	ThresholdProficient MasteryThresholdLevel = "PROFICIENT"
	ThresholdExpert     MasteryThresholdLevel = "EXPERT"
)

type TrackingIntensity string

const (
	IntensityDense  TrackingIntensity = "DENSE"
	IntensityNormal TrackingIntensity = "NORMAL"
	IntensitySparse TrackingIntensity = "SPARSE"
)

// UUEStage is the Understand/Use/Explore progression stage of a criterion.
type UUEStage string

const (
	StageUnderstand UUEStage = "UNDERSTAND"
	StageUse        UUEStage = "USE"
	StageExplore    UUEStage = "EXPLORE"
)

const (
	MasteryLevelNotStarted = "NOT_STARTED"
	MasteryLevelUnderstand = "UNDERSTAND"
	MasteryLevelUse        = "USE"
	MasteryLevelExplore    = "EXPLORE"
)

// Bucket is the coarse priority tier derived from a weighted mastery score.
type Bucket string

const (
	BucketCritical Bucket = "critical"
	BucketCore     Bucket = "core"
	BucketPlus     Bucket = "plus"
)

// ParseTrackingIntensity is lenient: unknown or empty values map to NORMAL.
func ParseTrackingIntensity(raw string) TrackingIntensity {
	switch TrackingIntensity(strings.ToUpper(strings.TrimSpace(raw))) {
	case IntensityDense:
		return IntensityDense
	case IntensitySparse:
		return IntensitySparse
	default:
		return IntensityNormal
	}
}

// ParseThresholdLevel maps unknown or empty values to PROFICIENT.
func ParseThresholdLevel(raw string) MasteryThresholdLevel {
	switch MasteryThresholdLevel(strings.ToUpper(strings.TrimSpace(raw))) {
	case ThresholdSurvey:
		return ThresholdSurvey
	case ThresholdExpert:
		return ThresholdExpert
	default:
		return ThresholdProficient
	}
}
