package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/internal/infrastructure/boltdb"
	"github.com/fastygo/taskbot/repository"
)

func newTestRepository(t *testing.T) repository.TaskRepository {
	t.Helper()
	db, err := boltdb.Open(filepath.Join(t.TempDir(), "tasks.db"), nil, BucketNames...)
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewTaskRepository(db, nil)
}

func deadline(t *testing.T, text string) time.Time {
	t.Helper()
	d, err := domain.ParseDeadline(text)
	if err != nil {
		t.Fatalf("parse deadline %q: %v", text, err)
	}
	return d
}

func TestInsertThenListByOwner(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	due := deadline(t, "2025-09-20 18:00")

	id, err := repo.Insert(ctx, 42, "Buy bread", due)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected positive id, got %d", id)
	}

	tasks, err := repo.ListByOwner(ctx, 42)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	got := tasks[0]
	if got.ID != id || got.OwnerID != 42 || got.Description != "Buy bread" || !got.Deadline.Equal(due) || got.Reminded {
		t.Fatalf("unexpected task: %+v", got)
	}
}

func TestInsertValidation(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if _, err := repo.Insert(ctx, 1, "  ", deadline(t, "2025-09-20 18:00")); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for empty description, got %v", err)
	}
	if _, err := repo.Insert(ctx, 1, "Call mom", time.Time{}); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for zero deadline, got %v", err)
	}
	tasks, err := repo.ListByOwner(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("rejected inserts must not create rows, got %d", len(tasks))
	}
}

func TestListByOwnerOrderingAndIsolation(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	inputs := []struct {
		owner int64
		desc  string
		due   string
	}{
		{owner: 1, desc: "late", due: "2025-09-22 09:00"},
		{owner: 2, desc: "other owner", due: "2025-09-19 09:00"},
		{owner: 1, desc: "early", due: "2025-09-20 09:00"},
		{owner: 1, desc: "middle", due: "2025-09-21 09:00"},
		{owner: -100, desc: "group chat", due: "2025-09-21 09:00"},
	}
	for _, in := range inputs {
		if _, err := repo.Insert(ctx, in.owner, in.desc, deadline(t, in.due)); err != nil {
			t.Fatalf("insert %s: %v", in.desc, err)
		}
	}

	tasks, err := repo.ListByOwner(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"early", "middle", "late"}
	if len(tasks) != len(want) {
		t.Fatalf("expected %d tasks, got %d", len(want), len(tasks))
	}
	for i, task := range tasks {
		if task.Description != want[i] {
			t.Fatalf("position %d: got %q, want %q", i, task.Description, want[i])
		}
		if task.OwnerID != 1 {
			t.Fatalf("leaked task of owner %d", task.OwnerID)
		}
	}

	empty, err := repo.ListByOwner(ctx, 3)
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", empty)
	}

	group, err := repo.ListByOwner(ctx, -100)
	if err != nil {
		t.Fatalf("list negative owner: %v", err)
	}
	if len(group) != 1 || group[0].Description != "group chat" {
		t.Fatalf("unexpected tasks for negative owner: %+v", group)
	}
}

func TestDeleteSemantics(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	id, err := repo.Insert(ctx, 42, "Buy bread", deadline(t, "2025-09-20 18:00"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	if deleted, err := repo.Delete(ctx, id+100, 42); err != nil || deleted {
		t.Fatalf("missing id: deleted=%v err=%v", deleted, err)
	}
	if deleted, err := repo.Delete(ctx, id, 7); err != nil || deleted {
		t.Fatalf("foreign owner: deleted=%v err=%v", deleted, err)
	}
	if tasks, _ := repo.ListByOwner(ctx, 42); len(tasks) != 1 {
		t.Fatalf("store must be unchanged, got %d tasks", len(tasks))
	}

	if deleted, err := repo.Delete(ctx, id, 42); err != nil || !deleted {
		t.Fatalf("owner delete: deleted=%v err=%v", deleted, err)
	}
	if deleted, err := repo.Delete(ctx, id, 42); err != nil || deleted {
		t.Fatalf("second delete: deleted=%v err=%v", deleted, err)
	}
	pending, err := repo.ListUnreminded(ctx)
	if err != nil {
		t.Fatalf("list unreminded: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("deleted task still pending: %+v", pending)
	}
}

func TestIDsAreNeverReused(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	due := deadline(t, "2025-09-20 18:00")

	first, err := repo.Insert(ctx, 1, "first", due)
	if err != nil {
		t.Fatalf("insert first: %v", err)
	}
	if _, err := repo.Delete(ctx, first, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	second, err := repo.Insert(ctx, 1, "second", due)
	if err != nil {
		t.Fatalf("insert second: %v", err)
	}
	if second <= first {
		t.Fatalf("expected increasing ids, got %d then %d", first, second)
	}
}

func TestMarkRemindedIsMonotonic(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	due := deadline(t, "2025-09-20 18:00")

	id, err := repo.Insert(ctx, 1, "pay rent", due)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	other, err := repo.Insert(ctx, 2, "walk dog", due)
	if err != nil {
		t.Fatalf("insert other: %v", err)
	}

	changed, err := repo.MarkReminded(ctx, id)
	if err != nil || !changed {
		t.Fatalf("first mark: changed=%v err=%v", changed, err)
	}
	changed, err = repo.MarkReminded(ctx, id)
	if err != nil || changed {
		t.Fatalf("second mark: changed=%v err=%v", changed, err)
	}
	if changed, err := repo.MarkReminded(ctx, 9999); err != nil || changed {
		t.Fatalf("missing id: changed=%v err=%v", changed, err)
	}

	pending, err := repo.ListUnreminded(ctx)
	if err != nil {
		t.Fatalf("list unreminded: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != other {
		t.Fatalf("unexpected pending tasks: %+v", pending)
	}

	tasks, err := repo.ListByOwner(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 || !tasks[0].Reminded {
		t.Fatalf("reminded task must stay listed with flag set: %+v", tasks)
	}
}

func TestConcurrentMarkRemindedHasSingleWinner(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	id, err := repo.Insert(ctx, 1, "race", deadline(t, "2025-09-20 18:00"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	const workers = 16
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
		start   = make(chan struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			changed, err := repo.MarkReminded(ctx, id)
			if err != nil {
				t.Errorf("mark: %v", err)
				return
			}
			if changed {
				winners.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := winners.Load(); got != 1 {
		t.Fatalf("expected exactly one winner, got %d", got)
	}
}

func TestCancelledContextIsStorageError(t *testing.T) {
	repo := newTestRepository(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.ListUnreminded(ctx)
	if !domain.IsStorage(err) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected wrapped context.Canceled, got %v", err)
	}
}

func TestListingsSkipCorruptRecords(t *testing.T) {
	db, err := boltdb.Open(filepath.Join(t.TempDir(), "tasks.db"), nil, BucketNames...)
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	repo := NewTaskRepository(db, nil)
	ctx := context.Background()

	good, err := repo.Insert(ctx, 42, "Buy bread", deadline(t, "2025-09-20 18:00"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		bad, _ := json.Marshal(record{ID: 100, OwnerID: 42, Description: "Broken", Deadline: "garbage"})
		if err := tx.Bucket(tasksBucket).Put(itob(100), bad); err != nil {
			return err
		}
		if err := tx.Bucket(tasksBucket).Put(itob(101), []byte("{not json")); err != nil {
			return err
		}
		for _, id := range []int64{100, 101} {
			if err := tx.Bucket(ownerIndex).Put(ownerKey(42, id), nil); err != nil {
				return err
			}
			if err := tx.Bucket(pendingIndex).Put(itob(id), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("write corrupt records: %v", err)
	}

	pending, err := repo.ListUnreminded(ctx)
	if err != nil {
		t.Fatalf("list unreminded: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != good {
		t.Fatalf("expected only task %d, got %+v", good, pending)
	}

	owned, err := repo.ListByOwner(ctx, 42)
	if err != nil {
		t.Fatalf("list by owner: %v", err)
	}
	if len(owned) != 1 || owned[0].ID != good {
		t.Fatalf("expected only task %d, got %+v", good, owned)
	}
}
