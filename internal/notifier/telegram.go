package notifier

import (
	"context"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// MessageAPI is the part of tgbotapi.BotAPI used to push messages.
type MessageAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// NewTelegramAPI authorizes token against endpoint. Every Bot API request,
// including the initial getMe, is bounded by timeout so that a send abandoned
// by Deliver cannot hang on a stalled connection.
func NewTelegramAPI(token, endpoint string, timeout time.Duration) (*tgbotapi.BotAPI, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	return tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: timeout})
}

// TelegramSender delivers reminders as chat messages, throttled to stay
// under the Bot API flood limits.
type TelegramSender struct {
	api     MessageAPI
	limiter *rate.Limiter
	lead    time.Duration
	logger  *zap.Logger
}

func NewTelegramSender(api MessageAPI, limiter *rate.Limiter, lead time.Duration, logger *zap.Logger) *TelegramSender {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramSender{
		api:     api,
		limiter: limiter,
		lead:    lead,
		logger:  logger,
	}
}

func (s *TelegramSender) Send(ctx context.Context, reminder Reminder) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(reminder.OwnerID, FormatText(reminder, s.lead))
	if _, err := s.api.Send(msg); err != nil {
		return err
	}
	s.logger.Debug("reminder sent", zap.Int64("owner_id", reminder.OwnerID))
	return nil
}

var _ Sender = (*TelegramSender)(nil)
