package notifier

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskbot/domain"
)

// LogSender writes reminders to the log. Used when no transport credential is configured.
type LogSender struct {
	lead   time.Duration
	logger *zap.Logger
}

func NewLogSender(lead time.Duration, logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{lead: lead, logger: logger}
}

func (s *LogSender) Send(_ context.Context, reminder Reminder) error {
	s.logger.Info("reminder",
		zap.Int64("owner_id", reminder.OwnerID),
		zap.String("deadline", domain.FormatDeadline(reminder.Deadline)),
		zap.String("text", FormatText(reminder, s.lead)))
	return nil
}

var _ Sender = (*LogSender)(nil)
