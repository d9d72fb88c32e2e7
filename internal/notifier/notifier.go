package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/fastygo/taskbot/domain"
)

// Reminder is the payload delivered to a task owner.
type Reminder struct {
	OwnerID     int64
	Description string
	Deadline    time.Time
}

// FromTask builds the reminder for a due task.
func FromTask(task domain.Task) Reminder {
	return Reminder{
		OwnerID:     task.OwnerID,
		Description: task.Description,
		Deadline:    task.Deadline,
	}
}

// Sender attempts delivery of one reminder through an external transport.
type Sender interface {
	Send(ctx context.Context, reminder Reminder) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, reminder Reminder) error

func (f SenderFunc) Send(ctx context.Context, reminder Reminder) error {
	return f(ctx, reminder)
}

// Deliver runs one send bounded by timeout. It returns as soon as the timeout
// elapses even when the transport ignores ctx, and converts every failure,
// panics included, into a DeliveryError.
func Deliver(ctx context.Context, sender Sender, reminder Reminder, timeout time.Duration) error {
	if sender == nil {
		return domain.DeliveryError(fmt.Errorf("no sender configured"))
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("sender panic: %v", r)
			}
		}()
		done <- sender.Send(ctx, reminder)
	}()

	select {
	case err := <-done:
		if err != nil {
			if domain.IsDelivery(err) {
				return err
			}
			return domain.DeliveryError(err)
		}
		return nil
	case <-ctx.Done():
		return domain.DeliveryError(ctx.Err())
	}
}

// FormatText renders the message body sent to the owner.
func FormatText(reminder Reminder, lead time.Duration) string {
	return fmt.Sprintf("Reminder! Task: %s\nDeadline in %s: %s",
		reminder.Description,
		humanizeLead(lead),
		domain.FormatDeadline(reminder.Deadline),
	)
}

func humanizeLead(lead time.Duration) string {
	switch {
	case lead <= 0:
		return "a moment"
	case lead%time.Hour == 0:
		return plural(int(lead/time.Hour), "hour")
	case lead%time.Minute == 0:
		return plural(int(lead/time.Minute), "minute")
	default:
		return lead.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
