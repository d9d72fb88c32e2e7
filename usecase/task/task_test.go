package task

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/internal/infrastructure/boltdb"
	"github.com/fastygo/taskbot/repository"
	boltRepo "github.com/fastygo/taskbot/repository/bolt"
)

func newUseCase(t *testing.T) (*UseCase, repository.TaskRepository) {
	t.Helper()
	db, err := boltdb.Open(filepath.Join(t.TempDir(), "tasks.db"), nil, boltRepo.BucketNames...)
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	repo := boltRepo.NewTaskRepository(db, nil)
	return New(repo, nil), repo
}

func TestParseAddCommand(t *testing.T) {
	cases := []struct {
		raw      string
		desc     string
		deadline string
		err      error
	}{
		{raw: "Buy bread ; 2025-09-20 18:00", desc: "Buy bread", deadline: "2025-09-20 18:00"},
		{raw: "  Buy bread;2025-09-20 18:00  ", desc: "Buy bread", deadline: "2025-09-20 18:00"},
		{raw: "a;b ; 2025-09-20 18:00", desc: "a", deadline: "b ; 2025-09-20 18:00"},
		{raw: "Buy bread 2025-09-20 18:00", err: domain.ErrMissingSeparator},
		{raw: " ; 2025-09-20 18:00", err: domain.ErrEmptyDescription},
	}
	for _, tc := range cases {
		desc, deadline, err := ParseAddCommand(tc.raw)
		if tc.err != nil {
			if !errors.Is(err, tc.err) {
				t.Fatalf("%q: expected %v, got %v", tc.raw, tc.err, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", tc.raw, err)
		}
		if desc != tc.desc || deadline != tc.deadline {
			t.Fatalf("%q: got (%q, %q)", tc.raw, desc, deadline)
		}
	}
}

func TestAddListComplete(t *testing.T) {
	uc, _ := newUseCase(t)
	ctx := context.Background()

	task, err := uc.Add(ctx, 42, "Buy bread ; 2025-09-20 18:00")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	want := time.Date(2025, 9, 20, 18, 0, 0, 0, time.Local)
	if task.Description != "Buy bread" || !task.Deadline.Equal(want) || task.Reminded {
		t.Fatalf("unexpected task: %+v", task)
	}

	tasks, err := uc.List(ctx, 42)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != task.ID {
		t.Fatalf("unexpected list: %+v", tasks)
	}

	if ok, err := uc.Complete(ctx, 7, task.ID); err != nil || ok {
		t.Fatalf("foreign complete: ok=%v err=%v", ok, err)
	}
	if ok, err := uc.Complete(ctx, 42, task.ID); err != nil || !ok {
		t.Fatalf("complete: ok=%v err=%v", ok, err)
	}
	if ok, err := uc.Complete(ctx, 42, task.ID); err != nil || ok {
		t.Fatalf("repeat complete: ok=%v err=%v", ok, err)
	}
	tasks, _ = uc.List(ctx, 42)
	if len(tasks) != 0 {
		t.Fatalf("expected empty list after complete, got %+v", tasks)
	}
}

func TestAddRejectsInvalidInputWithoutWriting(t *testing.T) {
	uc, repo := newUseCase(t)
	ctx := context.Background()

	inputs := []string{
		"Buy bread 2025-09-20 18:00",
		"Buy bread ; 20-09-2025 18:00",
		"Buy bread ; 2025-09-20",
		" ; 2025-09-20 18:00",
		"",
	}
	for _, raw := range inputs {
		if _, err := uc.Add(ctx, 42, raw); !domain.IsValidation(err) {
			t.Fatalf("%q: expected validation error, got %v", raw, err)
		}
	}

	pending, err := repo.ListUnreminded(ctx)
	if err != nil {
		t.Fatalf("list unreminded: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("rejected commands created rows: %+v", pending)
	}
}

type failingRepository struct {
	repository.TaskRepository
	err error
}

func (r failingRepository) Insert(context.Context, int64, string, time.Time) (int64, error) {
	return 0, r.err
}

func (r failingRepository) ListByOwner(context.Context, int64) ([]domain.Task, error) {
	return nil, r.err
}

func (r failingRepository) Delete(context.Context, int64, int64) (bool, error) {
	return false, r.err
}

func TestStorageErrorsPropagate(t *testing.T) {
	storageErr := domain.StorageError("insert task", errors.New("database is locked"))
	uc := New(failingRepository{err: storageErr}, nil)
	ctx := context.Background()

	if _, err := uc.Add(ctx, 1, "x ; 2025-09-20 18:00"); !domain.IsStorage(err) {
		t.Fatalf("add: expected storage error, got %v", err)
	}
	if _, err := uc.List(ctx, 1); !domain.IsStorage(err) {
		t.Fatalf("list: expected storage error, got %v", err)
	}
	if _, err := uc.Complete(ctx, 1, 1); !domain.IsStorage(err) {
		t.Fatalf("complete: expected storage error, got %v", err)
	}
}
