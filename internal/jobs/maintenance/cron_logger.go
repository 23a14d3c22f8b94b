package maintenance

import (
	"github.com/robfig/cron/v3"

	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

// cronLogger routes robfig/cron's internal logging through our logger.
type cronLogger struct {
	log *logger.Logger
}

var _ cron.Logger = cronLogger{}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
