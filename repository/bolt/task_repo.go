package bolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"sort"
	"time"

	bbolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/repository"
)

var (
	tasksBucket  = []byte("tasks")
	ownerIndex   = []byte("owner_index")
	pendingIndex = []byte("pending_index")
)

// BucketNames lists the buckets the repository expects to exist.
var BucketNames = []string{string(tasksBucket), string(ownerIndex), string(pendingIndex)}

type record struct {
	ID          int64  `json:"id"`
	OwnerID     int64  `json:"owner_id"`
	Description string `json:"description"`
	Deadline    string `json:"deadline"`
	Reminded    bool   `json:"reminded"`
}

type taskRepository struct {
	db     *bbolt.DB
	logger *zap.Logger
}

// NewTaskRepository returns a BoltDB-backed implementation of TaskRepository.
// The database must already contain BucketNames. Records that no longer decode
// are logged and left out of listings.
func NewTaskRepository(db *bbolt.DB, logger *zap.Logger) repository.TaskRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &taskRepository{db: db, logger: logger}
}

func (r *taskRepository) Insert(ctx context.Context, ownerID int64, description string, deadline time.Time) (int64, error) {
	if err := domain.ValidateNew(description, deadline); err != nil {
		return 0, err
	}
	if err := r.ready(ctx); err != nil {
		return 0, domain.StorageError("insert task", err)
	}

	var id int64
	err := r.db.Update(func(tx *bbolt.Tx) error {
		tasks := tx.Bucket(tasksBucket)
		seq, err := tasks.NextSequence()
		if err != nil {
			return err
		}
		id = int64(seq)

		payload, err := json.Marshal(record{
			ID:          id,
			OwnerID:     ownerID,
			Description: description,
			Deadline:    domain.FormatDeadline(deadline),
		})
		if err != nil {
			return err
		}
		if err := tasks.Put(itob(id), payload); err != nil {
			return err
		}
		if err := tx.Bucket(ownerIndex).Put(ownerKey(ownerID, id), nil); err != nil {
			return err
		}
		return tx.Bucket(pendingIndex).Put(itob(id), nil)
	})
	if err != nil {
		return 0, domain.StorageError("insert task", err)
	}
	return id, nil
}

func (r *taskRepository) Delete(ctx context.Context, id, ownerID int64) (bool, error) {
	if err := r.ready(ctx); err != nil {
		return false, domain.StorageError("delete task", err)
	}

	var deleted bool
	err := r.db.Update(func(tx *bbolt.Tx) error {
		tasks := tx.Bucket(tasksBucket)
		rec, err := loadRecord(tasks, id)
		if err != nil || rec == nil || rec.OwnerID != ownerID {
			return err
		}
		if err := tasks.Delete(itob(id)); err != nil {
			return err
		}
		if err := tx.Bucket(ownerIndex).Delete(ownerKey(ownerID, id)); err != nil {
			return err
		}
		if err := tx.Bucket(pendingIndex).Delete(itob(id)); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, domain.StorageError("delete task", err)
	}
	return deleted, nil
}

func (r *taskRepository) ListByOwner(ctx context.Context, ownerID int64) ([]domain.Task, error) {
	if err := r.ready(ctx); err != nil {
		return nil, domain.StorageError("list tasks", err)
	}

	tasks := []domain.Task{}
	err := r.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(tasksBucket)
		prefix := itob(ownerID)
		c := tx.Bucket(ownerIndex).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			task, ok := r.decode(bucket, btoi(k[len(prefix):]))
			if ok {
				tasks = append(tasks, task)
			}
		}
		return nil
	})
	if err != nil {
		return nil, domain.StorageError("list tasks", err)
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Deadline.Equal(tasks[j].Deadline) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].Deadline.Before(tasks[j].Deadline)
	})
	return tasks, nil
}

func (r *taskRepository) ListUnreminded(ctx context.Context) ([]domain.Task, error) {
	if err := r.ready(ctx); err != nil {
		return nil, domain.StorageError("list unreminded tasks", err)
	}

	var tasks []domain.Task
	err := r.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(tasksBucket)
		return tx.Bucket(pendingIndex).ForEach(func(k, _ []byte) error {
			task, ok := r.decode(bucket, btoi(k))
			if ok && !task.Reminded {
				tasks = append(tasks, task)
			}
			return nil
		})
	})
	if err != nil {
		return nil, domain.StorageError("list unreminded tasks", err)
	}
	return tasks, nil
}

// MarkReminded flips the flag inside a single write transaction; bbolt allows
// one writer at a time, which makes the check-and-set atomic.
func (r *taskRepository) MarkReminded(ctx context.Context, id int64) (bool, error) {
	if err := r.ready(ctx); err != nil {
		return false, domain.StorageError("mark task reminded", err)
	}

	var changed bool
	err := r.db.Update(func(tx *bbolt.Tx) error {
		tasks := tx.Bucket(tasksBucket)
		rec, err := loadRecord(tasks, id)
		if err != nil || rec == nil || rec.Reminded {
			return err
		}
		rec.Reminded = true
		payload, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := tasks.Put(itob(id), payload); err != nil {
			return err
		}
		if err := tx.Bucket(pendingIndex).Delete(itob(id)); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, domain.StorageError("mark task reminded", err)
	}
	return changed, nil
}

func (r *taskRepository) Ping(ctx context.Context) error {
	if err := r.ready(ctx); err != nil {
		return err
	}
	return r.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(tasksBucket) == nil {
			return bbolt.ErrBucketNotFound
		}
		return nil
	})
}

func (r *taskRepository) ready(ctx context.Context) error {
	if r == nil || r.db == nil {
		return bbolt.ErrDatabaseNotOpen
	}
	if ctx != nil {
		return ctx.Err()
	}
	return nil
}

// decode reads one task for a listing. A corrupt record is skipped so it cannot
// block every other task.
func (r *taskRepository) decode(bucket *bbolt.Bucket, id int64) (domain.Task, bool) {
	rec, err := loadRecord(bucket, id)
	if err == nil && rec == nil {
		return domain.Task{}, false
	}
	var task domain.Task
	if err == nil {
		task, err = rec.toDomain()
	}
	if err != nil {
		r.logger.Warn("skipping unreadable task record", zap.Int64("task_id", id), zap.Error(err))
		return domain.Task{}, false
	}
	return task, true
}

func loadRecord(bucket *bbolt.Bucket, id int64) (*record, error) {
	raw := bucket.Get(itob(id))
	if raw == nil {
		return nil, nil
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (rec record) toDomain() (domain.Task, error) {
	deadline, err := domain.ParseDeadline(rec.Deadline)
	if err != nil {
		return domain.Task{}, err
	}
	return domain.Task{
		ID:          rec.ID,
		OwnerID:     rec.OwnerID,
		Description: rec.Description,
		Deadline:    deadline,
		Reminded:    rec.Reminded,
	}, nil
}

func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func btoi(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}

func ownerKey(ownerID, id int64) []byte {
	return append(itob(ownerID), itob(id)...)
}
