package cache

import (
	"time"

	"github.com/google/uuid"
)

type Namespace string

const (
	NamespaceDailyTasks   Namespace = "daily-tasks"
	NamespaceDailySummary Namespace = "daily-summary"
	NamespaceUserStats    Namespace = "user-stats"
)

// DateLayout formats the Date component of dated keys.
const DateLayout = "2006-01-02"

// Key is a structured cache key. Date is empty for undated namespaces.
type Key struct {
	Namespace Namespace
	UserID    uuid.UUID
	Date      string
}

func (k Key) String() string {
	s := string(k.Namespace) + ":" + k.UserID.String()
	if k.Date != "" {
		s += ":" + k.Date
	}
	return s
}

func DailyTasksKey(userID uuid.UUID, day time.Time) Key {
	return Key{Namespace: NamespaceDailyTasks, UserID: userID, Date: day.UTC().Format(DateLayout)}
}

func DailySummaryKey(userID uuid.UUID, day time.Time) Key {
	return Key{Namespace: NamespaceDailySummary, UserID: userID, Date: day.UTC().Format(DateLayout)}
}

func UserStatsKey(userID uuid.UUID) Key {
	return Key{Namespace: NamespaceUserStats, UserID: userID}
}
