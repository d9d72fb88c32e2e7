package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/taskbot/api/handler"
	"github.com/fastygo/taskbot/internal/bot"
	"github.com/fastygo/taskbot/internal/config"
	pgInfra "github.com/fastygo/taskbot/internal/infrastructure/postgres"
	"github.com/fastygo/taskbot/internal/middleware"
	"github.com/fastygo/taskbot/internal/router"
	"github.com/fastygo/taskbot/pkg/httpcontext"
	"github.com/fastygo/taskbot/pkg/logger"
	taskUC "github.com/fastygo/taskbot/usecase/task"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scanner, the Telegram bot and the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func newScanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run a single scanner tick and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScanOnce()
		},
	}
}

func newMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Postgres schema migrations",
	}
	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all up migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(pgInfra.Up)
		},
	})
	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Revert all migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(pgInfra.Down)
		},
	})
	return migrateCmd
}

func runServe() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.shutdown()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.manager.Listen(cancel)

	if err := a.openStore(appCtx); err != nil {
		return err
	}
	if err := a.openLock(appCtx); err != nil {
		return err
	}
	if err := a.openTelegram(); err != nil {
		return err
	}

	a.monitor.Start()
	a.manager.Register("monitor", func(context.Context) error {
		a.monitor.Stop()
		return nil
	})

	scanner := a.scanner()
	scanner.Start()
	a.manager.Register("scanner", func(ctx context.Context) error {
		scanner.Stop(ctx)
		return nil
	})

	tasks := taskUC.New(a.store, a.logger)

	if a.telegram != nil {
		b := bot.New(a.telegram, tasks, a.limiter, a.cfg.Telegram.PollTimeout, a.logger)
		a.manager.Go(appCtx, "telegram_bot", b.Run)
	}

	if a.cfg.HTTP.Enabled {
		server := newHTTPServer(a, tasks)
		a.manager.Go(appCtx, "http_server", func(ctx context.Context) error {
			a.logger.Info("server started", zap.String("address", a.cfg.Address()))
			return server.ListenAndServe(a.cfg.Address())
		})
		a.manager.Register("http_server", func(ctx context.Context) error {
			return server.ShutdownWithContext(ctx)
		})
	}

	<-appCtx.Done()

	select {
	case <-a.manager.Failed():
		return a.manager.Wait()
	default:
		return nil
	}
}

func newHTTPServer(a *app, tasks *taskUC.UseCase) *fasthttp.Server {
	ctxAdapter := httpcontext.NewAdapter(a.cfg.Context.RequestTimeout)
	handlers := router.Handlers{
		Task:    apiHandler.NewTaskHandler(tasks, ctxAdapter, a.logger),
		Health:  apiHandler.NewHealthHandler(a.monitor, ctxAdapter, a.logger),
		Metrics: apiHandler.MetricsHandler(a.registry),
	}
	r := router.New(handlers, middleware.Owner(a.logger))

	return &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
		Concurrency:  a.cfg.HTTP.MaxConn,
		Name:         a.cfg.AppName,
	}
}

func runScanOnce() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Scanner.Interval+a.cfg.Scanner.SendTimeout)
	defer cancel()

	if err := a.openStore(ctx); err != nil {
		return err
	}
	if err := a.openLock(ctx); err != nil {
		return err
	}
	if err := a.openTelegram(); err != nil {
		return err
	}

	result, err := a.scanner().Tick(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("scan finished",
		zap.Bool("skipped", result.Skipped),
		zap.Int("pending", result.Pending),
		zap.Int("due", result.Due),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
		zap.Int("missed", result.Missed),
		zap.Duration("duration", result.Duration))
	return nil
}

func runMigration(dir pgInfra.Direction) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Store.Driver != config.DriverPostgres {
		return errors.New("migrations apply to STORE_DRIVER=postgres only")
	}
	zapLogger, err := logger.New(logger.Config{Level: cfg.Logger.Level, Encoding: cfg.Logger.Encoding})
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	start := time.Now()
	if err := pgInfra.Migrate(cfg.Database, cfg.Migrations.Path, dir, zapLogger); err != nil {
		return err
	}
	zapLogger.Info("migration finished", zap.Duration("took", time.Since(start)))
	return nil
}
