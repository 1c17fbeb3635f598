package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/docopt/docopt-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/Rawcherry/To-Do-App/internal/apidocs"
	"github.com/Rawcherry/To-Do-App/internal/config"
	handlers "github.com/Rawcherry/To-Do-App/internal/http"
	metricsMiddleware "github.com/Rawcherry/To-Do-App/internal/middleware"
	"github.com/Rawcherry/To-Do-App/internal/migrations"
	"github.com/Rawcherry/To-Do-App/internal/repository"
	"github.com/Rawcherry/To-Do-App/internal/service"
	"github.com/Rawcherry/To-Do-App/shared/logger"
	"github.com/Rawcherry/To-Do-App/shared/middleware"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const usage = `tasks is a small task-tracking HTTP API.

usage:
  tasks serve [--config=<file>]
  tasks migrate (up|down|version) [--config=<file>]
  tasks -h | --help
  tasks --version

options:
  --config=<file>  YAML configuration file, overridden by environment variables.
  -h --help        Show this screen.
  --version        Show version.
`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	configPath, _ := opts.String("--config")

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	logrusLogger := logger.Init("tasks", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if isMigrate, _ := opts.Bool("migrate"); isMigrate {
		if err := runMigrate(ctx, opts, cfg, logrusLogger); err != nil {
			logrusLogger.WithError(err).Fatal("migration failed")
		}
		return
	}
	if err := serve(ctx, cfg, logrusLogger); err != nil {
		logrusLogger.WithError(err).Fatal("server failed")
	}
}

func runMigrate(ctx context.Context, opts docopt.Opts, cfg *config.Config, log *logrus.Logger) error {
	repo, err := repository.Open(ctx, cfg.DB, log)
	if err != nil {
		return err
	}
	defer repo.Close()

	migrator := migrations.New(repo.DB(), cfg.DB.Driver, log)
	if up, _ := opts.Bool("up"); up {
		n, err := migrator.Up(ctx)
		if err != nil {
			return err
		}
		log.WithField("applied", n).Info("schema is up to date")
		return nil
	}
	if down, _ := opts.Bool("down"); down {
		v, err := migrator.Down(ctx)
		if err != nil {
			return err
		}
		log.WithField("version", v).Info("rolled back")
		return nil
	}
	v, err := migrator.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Println(v)
	return nil
}

func serve(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	repo, err := repository.Open(ctx, cfg.DB, log)
	if err != nil {
		return err
	}
	defer repo.Close()

	if cfg.AutoMigrate {
		if _, err := migrations.New(repo.DB(), cfg.DB.Driver, log).Up(ctx); err != nil {
			return err
		}
	}
	if err := metricsMiddleware.RegisterDBStats(prometheus.DefaultRegisterer, repo.DB(), cfg.DB.DBName); err != nil {
		log.WithError(err).Warn("failed to register database metrics")
	}

	taskService := service.NewTaskService(repo)
	taskHandler := handlers.NewTaskHandler(taskService, log)

	docs, err := apidocs.Handler(version)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	taskHandler.Register(mux)
	mux.Handle("GET /metrics", metricsMiddleware.MetricsHandler())
	mux.Handle("GET /apidocs/openapi.yaml", docs)

	// Outermost last: request id is assigned before anything logs.
	var handler http.Handler = mux
	handler = middleware.RecoverMiddleware(log)(handler)
	handler = metricsMiddleware.SecurityHeadersMiddleware(handler)
	handler = metricsMiddleware.MetricsMiddleware(handler)
	handler = middleware.LoggingMiddleware(log)(handler)
	handler = middleware.RequestIDMiddleware(handler)

	srv := &http.Server{
		Addr:    ":" + cfg.TasksPort,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.TasksPort).Info("tasks service starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down tasks service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
