package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fastygo/taskbot/domain"
	taskUC "github.com/fastygo/taskbot/usecase/task"
)

const (
	helpText = "Hi! I keep your tasks and remind you before the deadline.\n" +
		"Send a task as:\n<description> ; <YYYY-MM-DD HH:MM>\n" +
		"Example: Buy bread ; 2025-09-20 18:00\n\n" +
		"Commands:\n/tasks - list your tasks\n/done <id> - remove a task"
	unknownText    = "Unknown command. Use /start for help."
	noTasksText    = "You have no tasks."
	addedText      = "Task added!"
	doneUsageText  = "Usage: /done <task id>"
	removedText    = "Task removed."
	notFoundText   = "Task not found."
	badFormatText  = "Format: <description> ; <YYYY-MM-DD HH:MM>"
	badDateText    = "Invalid date format. Example: 2025-09-20 18:00"
	emptyDescText  = "Task description is empty."
	storageErrText = "Something went wrong, please try again later."
)

// UpdatesAPI is the part of tgbotapi.BotAPI used by the bot front end.
type UpdatesAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot translates chat messages into task commands.
type Bot struct {
	api         UpdatesAPI
	tasks       *taskUC.UseCase
	limiter     *rate.Limiter
	pollTimeout int
	logger      *zap.Logger
	commands    commands
}

func New(api UpdatesAPI, tasks *taskUC.UseCase, limiter *rate.Limiter, pollTimeout int, logger *zap.Logger) *Bot {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bot{
		api:         api,
		tasks:       tasks,
		limiter:     limiter,
		pollTimeout: pollTimeout,
		logger:      logger,
		commands:    commands{},
	}
	b.commands.register(func(context.Context, int64, string) string { return helpText }, "/start", "/help")
	b.commands.register(b.list, "/tasks")
	b.commands.register(b.done, "/done")
	return b
}

// Run long-polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handle(ctx, update)
		}
	}
}

func (b *Bot) handle(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}

	reply := b.Reply(ctx, msg.From.ID, msg.Text)
	if err := b.limiter.Wait(ctx); err != nil {
		return
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(msg.Chat.ID, reply)); err != nil {
		b.logger.Warn("failed to send reply", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
	}
}

// Reply executes the command in text on behalf of ownerID and returns the answer.
func (b *Bot) Reply(ctx context.Context, ownerID int64, text string) string {
	text = strings.TrimSpace(text)
	command, args, _ := strings.Cut(text, " ")

	if handler, ok := b.commands.lookup(command); ok {
		return handler(ctx, ownerID, args)
	}
	if strings.HasPrefix(text, "/") {
		return unknownText
	}
	return b.add(ctx, ownerID, text)
}

func (b *Bot) list(ctx context.Context, ownerID int64, _ string) string {
	tasks, err := b.tasks.List(ctx, ownerID)
	if err != nil {
		return storageErrText
	}
	if len(tasks) == 0 {
		return noTasksText
	}
	var sb strings.Builder
	sb.WriteString("Your tasks:\n")
	for _, t := range tasks {
		fmt.Fprintf(&sb, "%d. %s (due %s)\n", t.ID, t.Description, domain.FormatDeadline(t.Deadline))
	}
	return sb.String()
}

func (b *Bot) done(ctx context.Context, ownerID int64, args string) string {
	fields := strings.Fields(args)
	if len(fields) != 1 {
		return doneUsageText
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return doneUsageText
	}
	removed, err := b.tasks.Complete(ctx, ownerID, id)
	switch {
	case err != nil:
		return storageErrText
	case removed:
		return removedText
	default:
		return notFoundText
	}
}

func (b *Bot) add(ctx context.Context, ownerID int64, text string) string {
	_, err := b.tasks.Add(ctx, ownerID, text)
	switch {
	case err == nil:
		return addedText
	case errors.Is(err, domain.ErrEmptyDescription):
		return emptyDescText
	case errors.Is(err, domain.ErrMissingSeparator):
		return badFormatText
	case domain.IsValidation(err):
		return badDateText
	default:
		return storageErrText
	}
}
