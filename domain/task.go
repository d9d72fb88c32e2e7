package domain

import (
	"regexp"
	"strings"
	"time"
)

// DeadlineLayout is the canonical textual form of a deadline, both on input and in storage.
const DeadlineLayout = "2006-01-02 15:04"

var deadlinePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}$`)

// Task represents a user-owned item tracked for a single reminder before its deadline.
type Task struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"owner_id"`
	Description string    `json:"description"`
	Deadline    time.Time `json:"deadline"`
	Reminded    bool      `json:"reminded"`
}

// ParseDeadline parses text in DeadlineLayout using the local wall clock.
func ParseDeadline(text string) (time.Time, error) {
	if !deadlinePattern.MatchString(text) {
		return time.Time{}, ErrInvalidDeadline
	}
	deadline, err := time.ParseInLocation(DeadlineLayout, text, time.Local)
	if err != nil {
		return time.Time{}, WrapError(ErrCodeInvalid, ErrInvalidDeadline.Message, err)
	}
	return deadline, nil
}

// FormatDeadline renders a deadline in DeadlineLayout.
func FormatDeadline(deadline time.Time) string {
	return deadline.In(time.Local).Format(DeadlineLayout)
}

// NormalizeDeadline drops everything below minute resolution.
func NormalizeDeadline(deadline time.Time) time.Time {
	return deadline.In(time.Local).Truncate(time.Minute)
}

// ValidateNew checks the fields a caller supplies when creating a task.
func ValidateNew(description string, deadline time.Time) error {
	if strings.TrimSpace(description) == "" {
		return ErrEmptyDescription
	}
	if deadline.IsZero() {
		return ErrInvalidDeadline
	}
	return nil
}

// WindowStart is the first instant at which the task becomes eligible for a reminder.
func (t *Task) WindowStart(lead time.Duration) time.Time {
	return t.Deadline.Add(-lead)
}

// IsDue reports whether now falls inside the half-open window [deadline-lead, deadline).
func (t *Task) IsDue(now time.Time, lead time.Duration) bool {
	if t == nil || t.Reminded {
		return false
	}
	return !now.Before(t.WindowStart(lead)) && now.Before(t.Deadline)
}

// IsMissed reports whether the window already closed. A missed task stays pending.
func (t *Task) IsMissed(now time.Time) bool {
	return t != nil && !t.Reminded && !now.Before(t.Deadline)
}
