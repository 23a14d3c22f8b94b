package mastery

import (
	"strings"

	"github.com/google/uuid"
)

// ProgressKey identifies a progress row for a fixed user.
type ProgressKey struct {
	PrimitiveID string
	BlueprintID uuid.UUID
}

// CriterionKey identifies a criterion mastery row for a fixed user.
type CriterionKey struct {
	CriterionID string
	PrimitiveID string
	BlueprintID uuid.UUID
}

// progressKeyCondition renders an OR-of-tuples predicate. Row-value IN lists are not
// portable to SQLite, so each key becomes its own parenthesized conjunction.
func progressKeyCondition(keys []ProgressKey) (string, []interface{}) {
	seen := make(map[ProgressKey]struct{}, len(keys))
	parts := make([]string, 0, len(keys))
	args := make([]interface{}, 0, len(keys)*2)
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		parts = append(parts, "(primitive_id = ? AND blueprint_id = ?)")
		args = append(args, k.PrimitiveID, k.BlueprintID)
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

func criterionKeyCondition(keys []CriterionKey) (string, []interface{}) {
	seen := make(map[CriterionKey]struct{}, len(keys))
	parts := make([]string, 0, len(keys))
	args := make([]interface{}, 0, len(keys)*3)
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		parts = append(parts, "(criterion_id = ? AND primitive_id = ? AND blueprint_id = ?)")
		args = append(args, k.CriterionID, k.PrimitiveID, k.BlueprintID)
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}
