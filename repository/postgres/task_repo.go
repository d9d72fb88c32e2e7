package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/repository"
)

type taskRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewTaskRepository returns a Postgres-backed implementation of TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool, logger *zap.Logger) repository.TaskRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &taskRepository{pool: pool, logger: logger}
}

func (r *taskRepository) Insert(ctx context.Context, ownerID int64, description string, deadline time.Time) (int64, error) {
	if err := domain.ValidateNew(description, deadline); err != nil {
		return 0, err
	}

	const query = `
	INSERT INTO tasks (owner_id, description, deadline, reminded)
	VALUES ($1, $2, $3, FALSE)
	RETURNING id
	`

	var id int64
	if err := r.pool.QueryRow(ctx, query, ownerID, description, domain.FormatDeadline(deadline)).Scan(&id); err != nil {
		return 0, domain.StorageError("insert task", err)
	}
	return id, nil
}

func (r *taskRepository) Delete(ctx context.Context, id, ownerID int64) (bool, error) {
	const query = `DELETE FROM tasks WHERE id = $1 AND owner_id = $2`
	tag, err := r.pool.Exec(ctx, query, id, ownerID)
	if err != nil {
		return false, domain.StorageError("delete task", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *taskRepository) ListByOwner(ctx context.Context, ownerID int64) ([]domain.Task, error) {
	const query = `
	SELECT id, owner_id, description, deadline, reminded
	FROM tasks
	WHERE owner_id = $1
	ORDER BY deadline ASC, id ASC
	`
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, domain.StorageError("list tasks", err)
	}
	defer rows.Close()

	tasks, err := r.scanTasks(rows)
	if err != nil {
		return nil, domain.StorageError("list tasks", err)
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return tasks, nil
}

func (r *taskRepository) ListUnreminded(ctx context.Context) ([]domain.Task, error) {
	const query = `
	SELECT id, owner_id, description, deadline, reminded
	FROM tasks
	WHERE reminded = FALSE
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, domain.StorageError("list unreminded tasks", err)
	}
	defer rows.Close()

	tasks, err := r.scanTasks(rows)
	if err != nil {
		return nil, domain.StorageError("list unreminded tasks", err)
	}
	return tasks, nil
}

// MarkReminded relies on the row lock taken by UPDATE: concurrent callers
// re-evaluate the predicate after the winner commits and affect zero rows.
func (r *taskRepository) MarkReminded(ctx context.Context, id int64) (bool, error) {
	const query = `UPDATE tasks SET reminded = TRUE WHERE id = $1 AND reminded = FALSE`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, domain.StorageError("mark task reminded", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *taskRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanTasks skips rows whose deadline no longer parses; one bad row must not
// hide the rest of the table from the scanner.
func (r *taskRepository) scanTasks(rows rowScanner) ([]domain.Task, error) {
	var tasks []domain.Task
	for rows.Next() {
		var (
			task     domain.Task
			deadline string
		)
		if err := rows.Scan(&task.ID, &task.OwnerID, &task.Description, &deadline, &task.Reminded); err != nil {
			return nil, err
		}
		parsed, err := domain.ParseDeadline(deadline)
		if err != nil {
			r.logger.Warn("skipping task with unreadable deadline",
				zap.Int64("task_id", task.ID),
				zap.String("deadline", deadline),
				zap.Error(err))
			continue
		}
		task.Deadline = parsed
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}
