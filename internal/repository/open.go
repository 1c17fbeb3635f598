package repository

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Rawcherry/To-Do-App/internal/config"
)

// Open creates the connection pool described by cfg and pings it until it
// answers or cfg.ConnectAttempts is exhausted.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *logrus.Logger) (*SQLTaskRepository, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxConns)
	db.SetConnMaxIdleTime(cfg.IdleTimeout)

	if err := pingWithRetry(ctx, db, cfg.ConnectAttempts, cfg.ConnectDelay, logger); err != nil {
		db.Close()
		return nil, err
	}

	repo, err := NewSQLTaskRepository(db, cfg.Driver, cfg.QueryTimeout)
	if err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

type pinger interface {
	PingContext(ctx context.Context) error
}

func pingWithRetry(ctx context.Context, db pinger, attempts int, delay time.Duration, logger *logrus.Logger) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = db.PingContext(ctx); err == nil {
			logger.WithField("attempt", attempt).Info("connected to database")
			return nil
		}
		logger.WithError(err).WithFields(logrus.Fields{
			"attempt":      attempt,
			"max_attempts": attempts,
		}).Warn("database connect failed")

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "gave up connecting to database")
		case <-time.After(delay):
		}
	}
	return errors.Wrapf(err, "could not connect to database after %d attempts", attempts)
}
