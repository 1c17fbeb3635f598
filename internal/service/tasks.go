package service

import (
	"context"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/Rawcherry/To-Do-App/internal/models"
	"github.com/Rawcherry/To-Do-App/internal/repository"
)

// ErrValidation is the cause of every input error returned by TaskService.
var ErrValidation = errors.New("validation failed")

// MaxTextLength is the longest text, in characters, the tasks table holds.
const MaxTextLength = 255

// Messages returned to clients for rejected input.
const (
	MsgTextRequired  = "text is required"
	MsgTextTooLong   = "text must be at most 255 characters"
	MsgNoFields      = "no fields to update"
	MsgTextNotNull   = "text must not be null"
	MsgDoneNotNull   = "done must not be null"
	MsgBodyRequired  = "request body is required"
	MsgInvalidBody   = "invalid request body"
	MsgTaskNotFound  = "Task not found"
	MsgUnavailable   = "service temporarily unavailable"
	MsgInternalError = "internal server error"
)

type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Is(target error) bool { return target == ErrValidation }

// Invalid returns a validation error carrying msg as the client message.
func Invalid(msg string) error {
	return &validationError{msg: msg}
}

// ValidationMessage extracts the client message from a validation error.
func ValidationMessage(err error) (string, bool) {
	var ve *validationError
	if errors.As(err, &ve) {
		return ve.msg, true
	}
	return "", false
}

func checkLength(text string) error {
	if utf8.RuneCountInString(text) > MaxTextLength {
		return Invalid(MsgTextTooLong)
	}
	return nil
}

type TaskService struct {
	repo repository.TaskRepository
}

func NewTaskService(repo repository.TaskRepository) *TaskService {
	return &TaskService{
		repo: repo,
	}
}

func (s *TaskService) Create(ctx context.Context, text string, description *string) (*models.Task, error) {
	if text == "" {
		return nil, Invalid(MsgTextRequired)
	}
	if err := checkLength(text); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, text, description)
}

func (s *TaskService) GetByID(ctx context.Context, id int64) (*models.Task, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *TaskService) List(ctx context.Context) ([]*models.Task, error) {
	return s.repo.List(ctx)
}

// Update applies patch to the task with the given id. A missing task is
// reported before an empty patch.
func (s *TaskService) Update(ctx context.Context, id int64, patch models.TaskPatch) (*models.Task, error) {
	if patch.Text.Set && patch.Text.Null {
		return nil, Invalid(MsgTextNotNull)
	}
	if patch.Done.Set && patch.Done.Null {
		return nil, Invalid(MsgDoneNotNull)
	}
	if patch.Text.Set {
		if err := checkLength(patch.Text.Value); err != nil {
			return nil, err
		}
	}

	if patch.Empty() {
		if _, err := s.repo.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, Invalid(MsgNoFields)
	}
	return s.repo.Update(ctx, id, patch)
}

func (s *TaskService) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}
