package repository

import (
	"context"
	"time"

	"github.com/fastygo/taskbot/domain"
)

// TaskRepository is the sole authority over task persistence.
// Implementations must make MarkReminded an atomic compare-and-set.
type TaskRepository interface {
	Insert(ctx context.Context, ownerID int64, description string, deadline time.Time) (int64, error)
	Delete(ctx context.Context, id, ownerID int64) (bool, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]domain.Task, error)
	ListUnreminded(ctx context.Context) ([]domain.Task, error)
	MarkReminded(ctx context.Context, id int64) (bool, error)
	Ping(ctx context.Context) error
}
