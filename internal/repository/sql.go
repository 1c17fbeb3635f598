package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/Rawcherry/To-Do-App/internal/models"
)

const taskColumns = "id, text, done, description"

// SQLTaskRepository stores tasks in a single "tasks" table.
type SQLTaskRepository struct {
	db      *sql.DB
	dialect dialect
	timeout time.Duration
}

// NewSQLTaskRepository wraps an already opened pool. Every call runs under
// timeout, which also bounds how long a caller waits for a free connection.
func NewSQLTaskRepository(db *sql.DB, driver string, timeout time.Duration) (*SQLTaskRepository, error) {
	d, ok := dialectFor(driver)
	if !ok {
		return nil, errors.Errorf("unsupported database driver: %q", driver)
	}
	return &SQLTaskRepository{db: db, dialect: d, timeout: timeout}, nil
}

// DB exposes the underlying pool for migrations and metrics.
func (r *SQLTaskRepository) DB() *sql.DB {
	return r.db
}

func (r *SQLTaskRepository) Close() error {
	return r.db.Close()
}

func (r *SQLTaskRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	task := &models.Task{}
	var description sql.NullString
	if err := row.Scan(&task.ID, &task.Text, &task.Done, &description); err != nil {
		return nil, err
	}
	if description.Valid {
		task.Description = &description.String
	}
	return task, nil
}

func nullable(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func (r *SQLTaskRepository) Create(ctx context.Context, text string, description *string) (*models.Task, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	d := r.dialect
	query := `INSERT INTO tasks (text, description, done) VALUES (` + d.bind(1) + `, ` + d.bind(2) + `, FALSE)`

	if d.returning {
		task, err := scanTask(r.db.QueryRowContext(ctx, query+" RETURNING "+taskColumns, text, nullable(description)))
		if err != nil {
			return nil, classify(err, "failed to insert task")
		}
		return task, nil
	}

	result, err := r.db.ExecContext(ctx, query, text, nullable(description))
	if err != nil {
		return nil, classify(err, "failed to insert task")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, classify(err, "failed to read inserted task id")
	}
	return &models.Task{ID: id, Text: text, Done: false, Description: description}, nil
}

func (r *SQLTaskRepository) GetByID(ctx context.Context, id int64) (*models.Task, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ` + r.dialect.bind(1)
	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classify(err, "failed to get task")
	}
	return task, nil
}

func (r *SQLTaskRepository) List(ctx context.Context) ([]*models.Task, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY id ASC`)
	if err != nil {
		return nil, classify(err, "failed to list tasks")
	}
	defer rows.Close()

	tasks := make([]*models.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, classify(err, "failed to scan task")
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "failed to list tasks")
	}
	return tasks, nil
}

// Update overwrites only the columns present in patch. A patch without any
// usable field degrades to a lookup so callers still learn whether id exists.
func (r *SQLTaskRepository) Update(ctx context.Context, id int64, patch models.TaskPatch) (*models.Task, error) {
	d := r.dialect
	var sets []string
	var args []interface{}
	if patch.Text.Set && !patch.Text.Null {
		args = append(args, patch.Text.Value)
		sets = append(sets, "text = "+d.bind(len(args)))
	}
	if patch.Done.Set && !patch.Done.Null {
		args = append(args, patch.Done.Value)
		sets = append(sets, "done = "+d.bind(len(args)))
	}
	if patch.Description.Set {
		var v interface{}
		if !patch.Description.Null {
			v = patch.Description.Value
		}
		args = append(args, v)
		sets = append(sets, "description = "+d.bind(len(args)))
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	args = append(args, id)
	query := `UPDATE tasks SET ` + strings.Join(sets, ", ") + ` WHERE id = ` + d.bind(len(args))

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if d.returning {
		task, err := scanTask(r.db.QueryRowContext(ctx, query+" RETURNING "+taskColumns, args...))
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, classify(err, "failed to update task")
		}
		return task, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, "failed to update task")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, classify(err, "failed to update task")
	}
	if affected == 0 {
		return nil, ErrNotFound
	}
	task, err := scanTask(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = `+d.bind(1), id))
	if err != nil {
		return nil, classify(err, "failed to reload updated task")
	}
	if err := tx.Commit(); err != nil {
		return nil, classify(err, "failed to commit update")
	}
	return task, nil
}

func (r *SQLTaskRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = `+r.dialect.bind(1), id)
	if err != nil {
		return classify(err, "failed to delete task")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return classify(err, "failed to delete task")
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
