package notifier

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/fastygo/taskbot/domain"
)

func testReminder() Reminder {
	return Reminder{
		OwnerID:     42,
		Description: "Buy bread",
		Deadline:    time.Date(2025, 9, 20, 18, 0, 0, 0, time.Local),
	}
}

func TestDeliverSuccess(t *testing.T) {
	var got Reminder
	sender := SenderFunc(func(ctx context.Context, r Reminder) error {
		got = r
		return nil
	})
	if err := Deliver(context.Background(), sender, testReminder(), time.Second); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if got != testReminder() {
		t.Fatalf("unexpected reminder delivered: %+v", got)
	}
}

func TestDeliverWrapsTransportError(t *testing.T) {
	cause := errors.New("chat not found")
	sender := SenderFunc(func(ctx context.Context, r Reminder) error { return cause })

	err := Deliver(context.Background(), sender, testReminder(), time.Second)
	if !domain.IsDelivery(err) {
		t.Fatalf("expected delivery error, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}
}

func TestDeliverTimesOutWhenTransportIgnoresContext(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	sender := SenderFunc(func(ctx context.Context, r Reminder) error {
		<-release
		return nil
	})

	start := time.Now()
	err := Deliver(context.Background(), sender, testReminder(), 20*time.Millisecond)
	if !domain.IsDelivery(err) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected timed out delivery error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("deliver blocked for %v", elapsed)
	}
}

func TestDeliverRecoversPanic(t *testing.T) {
	sender := SenderFunc(func(ctx context.Context, r Reminder) error { panic("boom") })
	if err := Deliver(context.Background(), sender, testReminder(), time.Second); !domain.IsDelivery(err) {
		t.Fatalf("expected delivery error, got %v", err)
	}
}

func TestDeliverWithoutSender(t *testing.T) {
	if err := Deliver(context.Background(), nil, testReminder(), time.Second); !domain.IsDelivery(err) {
		t.Fatalf("expected delivery error, got %v", err)
	}
}

func TestFormatText(t *testing.T) {
	cases := []struct {
		lead time.Duration
		want string
	}{
		{lead: 10 * time.Minute, want: "Deadline in 10 minutes: 2025-09-20 18:00"},
		{lead: time.Minute, want: "Deadline in 1 minute: 2025-09-20 18:00"},
		{lead: 2 * time.Hour, want: "Deadline in 2 hours: 2025-09-20 18:00"},
		{lead: 90 * time.Second, want: "Deadline in 1m30s: 2025-09-20 18:00"},
	}
	for _, tc := range cases {
		text := FormatText(testReminder(), tc.lead)
		if !strings.HasPrefix(text, "Reminder! Task: Buy bread\n") {
			t.Fatalf("unexpected header: %q", text)
		}
		if !strings.HasSuffix(text, tc.want) {
			t.Fatalf("lead %v: got %q, want suffix %q", tc.lead, text, tc.want)
		}
	}
}

type stubMessageAPI struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (s *stubMessageAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		s.sent = append(s.sent, msg)
	}
	return tgbotapi.Message{}, s.err
}

func TestTelegramSenderSendsToOwnerChat(t *testing.T) {
	api := &stubMessageAPI{}
	sender := NewTelegramSender(api, rate.NewLimiter(rate.Inf, 1), 10*time.Minute, nil)

	if err := sender.Send(context.Background(), testReminder()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(api.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(api.sent))
	}
	if api.sent[0].ChatID != 42 {
		t.Fatalf("unexpected chat id %d", api.sent[0].ChatID)
	}
	if !strings.Contains(api.sent[0].Text, "Buy bread") {
		t.Fatalf("unexpected text %q", api.sent[0].Text)
	}
}

func TestTelegramSenderReportsFailure(t *testing.T) {
	api := &stubMessageAPI{err: errors.New("Forbidden: bot was blocked by the user")}
	sender := NewTelegramSender(api, nil, 10*time.Minute, nil)

	err := Deliver(context.Background(), sender, testReminder(), time.Second)
	if !domain.IsDelivery(err) {
		t.Fatalf("expected delivery error, got %v", err)
	}
}

func TestTelegramSenderRespectsCancelledLimiterWait(t *testing.T) {
	api := &stubMessageAPI{}
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	limiter.Allow()
	sender := NewTelegramSender(api, limiter, 10*time.Minute, nil)

	err := Deliver(context.Background(), sender, testReminder(), 20*time.Millisecond)
	if !domain.IsDelivery(err) {
		t.Fatalf("expected delivery error, got %v", err)
	}
	if len(api.sent) != 0 {
		t.Fatalf("throttled message must not be sent")
	}
}
