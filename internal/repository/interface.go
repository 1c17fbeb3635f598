package repository

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Rawcherry/To-Do-App/internal/models"
)

var (
	// ErrNotFound is returned when no task has the requested id.
	ErrNotFound = errors.New("task not found")
	// ErrUnavailable marks failures worth retrying later: the database is
	// unreachable or no pooled connection could be acquired in time.
	ErrUnavailable = errors.New("database unavailable")
)

type TaskRepository interface {
	Create(ctx context.Context, text string, description *string) (*models.Task, error)
	GetByID(ctx context.Context, id int64) (*models.Task, error)
	List(ctx context.Context) ([]*models.Task, error)
	Update(ctx context.Context, id int64, patch models.TaskPatch) (*models.Task, error)
	Delete(ctx context.Context, id int64) error
	Close() error
}
