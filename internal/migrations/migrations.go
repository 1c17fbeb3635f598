// Package migrations versions the tasks schema. Applied versions are
// recorded in the schema_migrations table.
package migrations

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Rawcherry/To-Do-App/internal/config"
)

// Migration is a single reversible schema change. Up and Down are keyed by
// driver name.
type Migration struct {
	Version int
	Name    string
	Up      map[string]string
	Down    map[string]string
}

var all = []Migration{
	{
		Version: 1,
		Name:    "create_tasks",
		Up: map[string]string{
			config.DriverPostgres: `CREATE TABLE IF NOT EXISTS tasks (
    id BIGSERIAL PRIMARY KEY,
    text VARCHAR(255) NOT NULL,
    done BOOLEAN NOT NULL DEFAULT FALSE
)`,
			config.DriverMySQL: `CREATE TABLE IF NOT EXISTS tasks (
    id BIGINT PRIMARY KEY AUTO_INCREMENT,
    text VARCHAR(255) NOT NULL,
    done BOOLEAN NOT NULL DEFAULT FALSE
)`,
		},
		Down: map[string]string{
			config.DriverPostgres: `DROP TABLE IF EXISTS tasks`,
			config.DriverMySQL:    `DROP TABLE IF EXISTS tasks`,
		},
	},
	{
		Version: 2,
		Name:    "add_task_description",
		Up: map[string]string{
			config.DriverPostgres: `ALTER TABLE tasks ADD COLUMN description TEXT NULL`,
			config.DriverMySQL:    `ALTER TABLE tasks ADD COLUMN description TEXT NULL`,
		},
		Down: map[string]string{
			config.DriverPostgres: `ALTER TABLE tasks DROP COLUMN description`,
			config.DriverMySQL:    `ALTER TABLE tasks DROP COLUMN description`,
		},
	},
}

// All returns the known migrations in version order.
func All() []Migration {
	return append([]Migration(nil), all...)
}

type Migrator struct {
	db         *sql.DB
	driver     string
	migrations []Migration
	logger     *logrus.Logger
}

func New(db *sql.DB, driver string, logger *logrus.Logger) *Migrator {
	return &Migrator{db: db, driver: driver, migrations: all, logger: logger}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    name VARCHAR(255) NOT NULL
)`)
	return errors.Wrap(err, "failed to create schema_migrations")
}

// Version returns the highest applied migration, 0 when none are.
func (m *Migrator) Version(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	var version sql.NullInt64
	err := m.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, errors.Wrap(err, "failed to read schema version")
	}
	return int(version.Int64), nil
}

// Up applies every pending migration, each in its own transaction, and
// returns how many were applied.
//
// MySQL commits DDL implicitly, so there the transaction only covers the
// version row. If recording the version fails after the schema change went
// through, Up returns an error naming the migration and the schema must be
// reconciled by hand before running Up again.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	current, err := m.Version(ctx)
	if err != nil {
		return 0, err
	}
	applied := 0
	for _, mg := range m.migrations {
		if mg.Version <= current {
			continue
		}
		stmt, ok := mg.Up[m.driver]
		if !ok {
			return applied, errors.Errorf("migration %d has no %s statement", mg.Version, m.driver)
		}
		err := m.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, name) VALUES (`+m.bind(1)+`, `+m.bind(2)+`)`,
				mg.Version, mg.Name)
			return err
		})
		if err != nil {
			return applied, errors.Wrapf(err, "migration %d (%s) failed", mg.Version, mg.Name)
		}
		m.logger.WithFields(logrus.Fields{
			"version": mg.Version,
			"name":    mg.Name,
		}).Info("migration applied")
		applied++
	}
	return applied, nil
}

// Down rolls back the latest applied migration. It returns the version that
// was rolled back, 0 when nothing was applied.
func (m *Migrator) Down(ctx context.Context) (int, error) {
	current, err := m.Version(ctx)
	if err != nil {
		return 0, err
	}
	if current == 0 {
		return 0, nil
	}
	var target *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == current {
			target = &m.migrations[i]
		}
	}
	if target == nil {
		return 0, errors.Errorf("unknown schema version %d", current)
	}
	stmt, ok := target.Down[m.driver]
	if !ok {
		return 0, errors.Errorf("migration %d has no %s rollback", target.Version, m.driver)
	}
	err = m.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = `+m.bind(1), target.Version)
		return err
	})
	if err != nil {
		return 0, errors.Wrapf(err, "rollback of migration %d (%s) failed", target.Version, target.Name)
	}
	m.logger.WithFields(logrus.Fields{
		"version": target.Version,
		"name":    target.Name,
	}).Info("migration rolled back")
	return target.Version, nil
}

func (m *Migrator) bind(n int) string {
	if m.driver == config.DriverPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func (m *Migrator) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
