package task

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/repository"
)

// UseCase is the command surface served to front ends: add, list and complete.
type UseCase struct {
	tasks  repository.TaskRepository
	logger *zap.Logger
}

func New(tasks repository.TaskRepository, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		tasks:  tasks,
		logger: logger,
	}
}

// ParseAddCommand splits raw text on the first ';' into a description and a deadline.
func ParseAddCommand(raw string) (string, string, error) {
	desc, deadline, found := strings.Cut(raw, ";")
	if !found {
		return "", "", domain.ErrMissingSeparator
	}
	desc = strings.TrimSpace(desc)
	deadline = strings.TrimSpace(deadline)
	if desc == "" {
		return "", "", domain.ErrEmptyDescription
	}
	return desc, deadline, nil
}

func (uc *UseCase) Add(ctx context.Context, ownerID int64, raw string) (*domain.Task, error) {
	desc, deadlineText, err := ParseAddCommand(raw)
	if err != nil {
		return nil, err
	}
	deadline, err := domain.ParseDeadline(deadlineText)
	if err != nil {
		return nil, err
	}

	id, err := uc.tasks.Insert(ctx, ownerID, desc, deadline)
	if err != nil {
		if !domain.IsValidation(err) {
			uc.logger.Error("failed to add task", zap.Int64("owner_id", ownerID), zap.Error(err))
		}
		return nil, err
	}

	uc.logger.Info("task added",
		zap.Int64("task_id", id),
		zap.Int64("owner_id", ownerID),
		zap.String("deadline", deadlineText))

	return &domain.Task{
		ID:          id,
		OwnerID:     ownerID,
		Description: desc,
		Deadline:    deadline,
	}, nil
}

func (uc *UseCase) List(ctx context.Context, ownerID int64) ([]domain.Task, error) {
	tasks, err := uc.tasks.ListByOwner(ctx, ownerID)
	if err != nil {
		uc.logger.Error("failed to list tasks", zap.Int64("owner_id", ownerID), zap.Error(err))
		return nil, err
	}
	return tasks, nil
}

func (uc *UseCase) Complete(ctx context.Context, ownerID, id int64) (bool, error) {
	deleted, err := uc.tasks.Delete(ctx, id, ownerID)
	if err != nil {
		uc.logger.Error("failed to complete task",
			zap.Int64("task_id", id),
			zap.Int64("owner_id", ownerID),
			zap.Error(err))
		return false, err
	}
	if deleted {
		uc.logger.Info("task completed", zap.Int64("task_id", id), zap.Int64("owner_id", ownerID))
	}
	return deleted, nil
}
