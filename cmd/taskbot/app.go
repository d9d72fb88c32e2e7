package main

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fastygo/taskbot/internal/config"
	"github.com/fastygo/taskbot/internal/infrastructure/boltdb"
	"github.com/fastygo/taskbot/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/taskbot/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/taskbot/internal/infrastructure/redis"
	"github.com/fastygo/taskbot/internal/notifier"
	"github.com/fastygo/taskbot/internal/services"
	"github.com/fastygo/taskbot/internal/services/lifecycle"
	"github.com/fastygo/taskbot/pkg/logger"
	"github.com/fastygo/taskbot/repository"
	boltRepo "github.com/fastygo/taskbot/repository/bolt"
	pgRepo "github.com/fastygo/taskbot/repository/postgres"
	redisRepo "github.com/fastygo/taskbot/repository/redis"
)

// app holds the dependencies shared by the serve and scan commands.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	manager  *lifecycle.Manager
	registry *prometheus.Registry
	monitor  *monitor.Monitor

	store    repository.TaskRepository
	locker   repository.TickLocker
	telegram *tgbotapi.BotAPI
	pushAPI  *tgbotapi.BotAPI
	limiter  *rate.Limiter
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &app{
		cfg:      cfg,
		logger:   zapLogger.With(zap.String("app", cfg.AppName), zap.String("env", cfg.Environment)),
		manager:  lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger),
		registry: registry,
		monitor:  monitor.New(0, zapLogger),
		limiter:  rate.NewLimiter(rate.Limit(cfg.Telegram.RateLimit), cfg.Telegram.RateBurst),
	}, nil
}

// openStore connects the configured task store and registers it for shutdown.
func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.Store.Driver {
	case config.DriverPostgres:
		if err := pgInfra.RunMigrations(a.cfg, a.logger); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		pool, err := pgInfra.NewPool(ctx, a.cfg.Database, a.logger)
		if err != nil {
			return err
		}
		a.manager.Register("postgres", func(context.Context) error {
			pgInfra.Close(pool, a.logger)
			return nil
		})
		a.store = pgRepo.NewTaskRepository(pool, a.logger)
	default:
		db, err := boltdb.Open(a.cfg.Store.BoltPath, a.logger, boltRepo.BucketNames...)
		if err != nil {
			return err
		}
		a.manager.Register("bolt", func(context.Context) error {
			return boltdb.Close(db, a.logger)
		})
		a.store = boltRepo.NewTaskRepository(db, a.logger)
	}
	a.monitor.Add("store", a.store)
	return nil
}

// openLock connects Redis when configured so several processes can share one store.
func (a *app) openLock(ctx context.Context) error {
	if !a.cfg.Redis.LockEnabled() {
		return nil
	}
	client, err := redisInfra.NewClient(ctx, a.cfg.Redis, a.logger)
	if err != nil {
		return err
	}
	a.manager.Register("redis", func(context.Context) error {
		return client.Close()
	})
	a.locker = redisRepo.NewTickLock(client, a.cfg.Redis.LockKey)
	a.monitor.Add("redis", monitor.RedisPinger(client))
	return nil
}

// openTelegram authorizes the bot when a token is configured.
func (a *app) openTelegram() error {
	if !a.cfg.Telegram.Enabled() {
		a.logger.Warn("TELEGRAM_BOT_TOKEN not set, reminders are written to the log")
		return nil
	}
	// Long polls hold the request open for PollTimeout, so the bot front end
	// gets its own client; reminders go through one bounded by SendTimeout.
	pollTimeout := time.Duration(a.cfg.Telegram.PollTimeout)*time.Second + a.cfg.Scanner.SendTimeout
	api, err := notifier.NewTelegramAPI(a.cfg.Telegram.Token, tgbotapi.APIEndpoint, pollTimeout)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	push, err := notifier.NewTelegramAPI(a.cfg.Telegram.Token, tgbotapi.APIEndpoint, a.cfg.Scanner.SendTimeout)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	api.Debug = a.cfg.Telegram.Debug
	push.Debug = a.cfg.Telegram.Debug
	a.logger.Info("telegram bot authorized", zap.String("username", api.Self.UserName))
	a.telegram = api
	a.pushAPI = push
	return nil
}

func (a *app) sender() notifier.Sender {
	if a.pushAPI == nil {
		return notifier.NewLogSender(a.cfg.Scanner.Lead, a.logger)
	}
	return notifier.NewTelegramSender(a.pushAPI, a.limiter, a.cfg.Scanner.Lead, a.logger)
}

func (a *app) scanner() *services.Scanner {
	return services.NewScanner(
		a.store,
		a.sender(),
		a.locker,
		services.NewScannerMetrics(a.registry),
		a.logger,
		services.ScannerConfig{
			Interval:    a.cfg.Scanner.Interval,
			Lead:        a.cfg.Scanner.Lead,
			SendTimeout: a.cfg.Scanner.SendTimeout,
			LockTTL:     a.cfg.Scanner.LockTTL,
		},
	)
}

func (a *app) shutdown() {
	if err := a.manager.Shutdown(context.Background()); err != nil {
		a.logger.Error("graceful shutdown error", zap.Error(err))
	}
	_ = a.logger.Sync()
}
