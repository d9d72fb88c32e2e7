package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/internal/notifier"
	"github.com/fastygo/taskbot/repository"
)

const markTimeout = 5 * time.Second

// ScannerConfig controls the reminder cadence.
type ScannerConfig struct {
	Interval    time.Duration
	Lead        time.Duration
	SendTimeout time.Duration
	LockTTL     time.Duration
}

// TickResult summarises one pass over the pending tasks.
type TickResult struct {
	Skipped  bool
	Pending  int
	Due      int
	Sent     int
	Failed   int
	Missed   int
	Duration time.Duration
}

// Scanner periodically reminds owners of tasks entering their notification window.
type Scanner struct {
	store   repository.TaskRepository
	sender  notifier.Sender
	locker  repository.TickLocker
	metrics *ScannerMetrics
	logger  *zap.Logger
	cfg     ScannerConfig
	now     func() time.Time

	running sync.Mutex
	wg      sync.WaitGroup
	cron    *cron.Cron
	job     cron.Job
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewScanner(
	store repository.TaskRepository,
	sender notifier.Sender,
	locker repository.TickLocker,
	metrics *ScannerMetrics,
	logger *zap.Logger,
	cfg ScannerConfig,
) *Scanner {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Lead <= 0 {
		cfg.Lead = 10 * time.Minute
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * cfg.Interval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Scanner{
		store:   store,
		sender:  sender,
		locker:  locker,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	cronLog := cronLogger{logger: logger.Sugar()}
	s.cron = cron.New(cron.WithLogger(cronLog))
	s.job = cron.NewChain(cron.SkipIfStillRunning(cronLog)).Then(cron.FuncJob(s.scheduledTick))
	s.cron.Schedule(cron.Every(cfg.Interval), s.job)

	return s
}

// Start runs a first tick right away and schedules the following ones.
func (s *Scanner) Start() {
	if s == nil || s.cron == nil {
		return
	}
	s.cron.Start()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.job.Run()
	}()
	s.logger.Info("deadline scanner started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Duration("lead", s.cfg.Lead))
}

// Stop halts scheduling and waits for an in-flight tick or ctx, whichever ends first.
func (s *Scanner) Stop(ctx context.Context) {
	if s == nil || s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-stopCtx.Done()
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	s.cancel()
	s.logger.Info("deadline scanner stopped")
}

func (s *Scanner) scheduledTick() {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.Interval)
	defer cancel()
	if _, err := s.Tick(ctx); err != nil {
		s.logger.Error("scanner tick failed", zap.Error(err))
	}
}

// Tick performs one scan. Concurrent calls do not overlap: a call made while
// another tick is in flight returns immediately with Skipped set.
func (s *Scanner) Tick(ctx context.Context) (TickResult, error) {
	if !s.running.TryLock() {
		s.logger.Debug("scanner tick skipped (previous tick still running)")
		return TickResult{Skipped: true}, nil
	}
	defer s.running.Unlock()

	if s.locker != nil {
		release, acquired, err := s.locker.TryLock(ctx, s.cfg.LockTTL)
		if err != nil {
			s.metrics.observeTickError()
			return TickResult{}, domain.StorageError("acquire scan lock", err)
		}
		if !acquired {
			s.logger.Debug("scanner tick skipped (lease held by another instance)")
			return TickResult{Skipped: true}, nil
		}
		defer func() {
			if err := release(context.Background()); err != nil {
				s.logger.Warn("failed to release scan lock", zap.Error(err))
			}
		}()
	}

	start := time.Now()
	result, err := s.scan(ctx, s.now())
	result.Duration = time.Since(start)
	s.metrics.observeTick(result)
	if err != nil {
		s.metrics.observeTickError()
		return result, err
	}

	if result.Due > 0 {
		s.logger.Info("scanner tick completed",
			zap.Int("pending", result.Pending),
			zap.Int("due", result.Due),
			zap.Int("sent", result.Sent),
			zap.Int("failed", result.Failed))
	}
	return result, nil
}

func (s *Scanner) scan(ctx context.Context, now time.Time) (TickResult, error) {
	var result TickResult

	tasks, err := s.store.ListUnreminded(ctx)
	if err != nil {
		return result, err
	}
	result.Pending = len(tasks)

	for _, task := range tasks {
		if task.IsMissed(now) {
			result.Missed++
			s.logger.Debug("task window closed before it was scanned",
				zap.Int64("task_id", task.ID),
				zap.String("deadline", domain.FormatDeadline(task.Deadline)))
			continue
		}
		if !task.IsDue(now, s.cfg.Lead) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("scan interrupted: %w", err)
		}
		result.Due++

		delivered, err := s.remind(ctx, task)
		if err != nil {
			return result, err
		}
		if delivered {
			result.Sent++
		} else {
			result.Failed++
		}
	}
	return result, nil
}

// remind dispatches first and marks afterwards regardless of the delivery
// outcome. A failed delivery is never retried; only a failure to mark is returned.
// The mark runs detached from ctx: once a send was attempted the task must be
// marked even if the tick deadline or shutdown cancelled the send.
func (s *Scanner) remind(ctx context.Context, task domain.Task) (bool, error) {
	deliveryErr := notifier.Deliver(ctx, s.sender, notifier.FromTask(task), s.cfg.SendTimeout)

	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markTimeout)
	defer cancel()
	if deliveryErr != nil {
		s.metrics.observeDeliveryFailure()
		s.logger.Warn("reminder delivery failed",
			zap.Int64("task_id", task.ID),
			zap.Int64("owner_id", task.OwnerID),
			zap.Error(deliveryErr))
	} else {
		s.metrics.observeSent()
	}

	changed, err := s.store.MarkReminded(markCtx, task.ID)
	if err != nil {
		s.logger.Error("failed to mark task reminded", zap.Int64("task_id", task.ID), zap.Error(err))
		return deliveryErr == nil, err
	}
	if !changed {
		s.metrics.observeAlreadyMarked()
		s.logger.Warn("task already reminded or removed", zap.Int64("task_id", task.ID))
	}
	return deliveryErr == nil, nil
}

type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
