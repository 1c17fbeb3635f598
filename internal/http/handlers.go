package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Rawcherry/To-Do-App/internal/models"
	"github.com/Rawcherry/To-Do-App/internal/repository"
	"github.com/Rawcherry/To-Do-App/internal/service"
	"github.com/Rawcherry/To-Do-App/shared/middleware"
)

const (
	// StatusText is served on GET /.
	StatusText = "all good, tasks API is up and running :)"

	maxBodyBytes = 1 << 20
)

type TaskHandler struct {
	taskService *service.TaskService
	logger      *logrus.Logger
}

func NewTaskHandler(ts *service.TaskService, logger *logrus.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: ts,
		logger:      logger,
	}
}

// Register mounts the task routes and the status page on mux.
func (h *TaskHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Index)
	mux.HandleFunc("GET /tasks", h.ListTasks)
	mux.HandleFunc("POST /tasks", h.CreateTask)
	mux.HandleFunc("GET /tasks/{id}", h.GetTask)
	mux.HandleFunc("PATCH /tasks/{id}", h.UpdateTask)
	mux.HandleFunc("DELETE /tasks/{id}", h.DeleteTask)
}

type createTaskRequest struct {
	Text        *string `json:"text"`
	Description *string `json:"description"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *TaskHandler) entry(r *http.Request, handler string) *logrus.Entry {
	return h.logger.WithFields(logrus.Fields{
		"component":  "http_handler",
		"handler":    handler,
		"request_id": middleware.GetRequestID(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":"internal server error"}`+"\n")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// fail maps err to a status code and body. Storage details only reach the
// log.
func (h *TaskHandler) fail(w http.ResponseWriter, logEntry *logrus.Entry, err error, action string) {
	if msg, ok := service.ValidationMessage(err); ok {
		logEntry.WithField("reason", msg).Warn("invalid request")
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	switch {
	case errors.Is(err, context.Canceled):
		logEntry.WithError(err).Debug("request canceled by client")
		writeError(w, http.StatusServiceUnavailable, service.MsgUnavailable)
	case errors.Is(err, repository.ErrNotFound):
		logEntry.Warn("task not found")
		writeError(w, http.StatusNotFound, service.MsgTaskNotFound)
	case errors.Is(err, repository.ErrUnavailable):
		logEntry.WithError(err).Error("failed to " + action + ": database unavailable")
		writeError(w, http.StatusServiceUnavailable, service.MsgUnavailable)
	default:
		logEntry.WithError(err).Error("failed to " + action)
		writeError(w, http.StatusInternalServerError, service.MsgInternalError)
	}
}

// taskID parses the {id} path segment. Anything that is not a positive
// integer cannot name a task.
func taskID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	return data, nil
}

// Index handles GET / with a plain-text status line.
func (h *TaskHandler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, StatusText)
}

// ListTasks handles GET /tasks.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	logEntry := h.entry(r, "ListTasks")

	tasks, err := h.taskService.List(r.Context())
	if err != nil {
		h.fail(w, logEntry, err, "list tasks")
		return
	}

	logEntry.WithField("count", len(tasks)).Debug("tasks listed")
	writeJSON(w, http.StatusOK, tasks)
}

// GetTask handles GET /tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	logEntry := h.entry(r, "GetTask").WithField("task_id", r.PathValue("id"))

	id, ok := taskID(r)
	if !ok {
		h.fail(w, logEntry, repository.ErrNotFound, "get task")
		return
	}

	task, err := h.taskService.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, logEntry, err, "get task")
		return
	}

	logEntry.Debug("task retrieved")
	writeJSON(w, http.StatusOK, task)
}

// CreateTask handles POST /tasks.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	logEntry := h.entry(r, "CreateTask")

	body, err := readBody(w, r)
	if err != nil {
		logEntry.WithError(err).Warn("failed to read request body")
		writeError(w, http.StatusBadRequest, service.MsgInvalidBody)
		return
	}
	if len(body) == 0 {
		h.fail(w, logEntry, service.Invalid(service.MsgTextRequired), "create task")
		return
	}

	var req createTaskRequest
	if err := json.Unmarshal(body, &req); err != nil {
		logEntry.WithError(err).Warn("invalid request body")
		writeError(w, http.StatusBadRequest, service.MsgInvalidBody)
		return
	}

	text := ""
	if req.Text != nil {
		text = *req.Text
	}
	task, err := h.taskService.Create(r.Context(), text, req.Description)
	if err != nil {
		h.fail(w, logEntry, err, "create task")
		return
	}

	logEntry.WithField("task_id", task.ID).Info("task created successfully")
	writeJSON(w, http.StatusCreated, task)
}

// UpdateTask handles PATCH /tasks/{id}.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	logEntry := h.entry(r, "UpdateTask").WithField("task_id", r.PathValue("id"))

	body, err := readBody(w, r)
	if err != nil {
		logEntry.WithError(err).Warn("failed to read request body")
		writeError(w, http.StatusBadRequest, service.MsgInvalidBody)
		return
	}

	var fields map[string]json.RawMessage
	if len(body) > 0 {
		if err := json.Unmarshal(body, &fields); err != nil {
			logEntry.WithError(err).Warn("invalid request body")
			writeError(w, http.StatusBadRequest, service.MsgInvalidBody)
			return
		}
	}
	if len(fields) == 0 {
		h.fail(w, logEntry, service.Invalid(service.MsgBodyRequired), "update task")
		return
	}

	id, ok := taskID(r)
	if !ok {
		h.fail(w, logEntry, repository.ErrNotFound, "update task")
		return
	}

	var patch models.TaskPatch
	if err := json.Unmarshal(body, &patch); err != nil {
		logEntry.WithError(err).Warn("invalid request body")
		writeError(w, http.StatusBadRequest, service.MsgInvalidBody)
		return
	}

	task, err := h.taskService.Update(r.Context(), id, patch)
	if err != nil {
		h.fail(w, logEntry, err, "update task")
		return
	}

	logEntry.Info("task updated successfully")
	writeJSON(w, http.StatusOK, task)
}

// DeleteTask handles DELETE /tasks/{id}.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	logEntry := h.entry(r, "DeleteTask").WithField("task_id", r.PathValue("id"))

	id, ok := taskID(r)
	if !ok {
		h.fail(w, logEntry, repository.ErrNotFound, "delete task")
		return
	}

	if err := h.taskService.Delete(r.Context(), id); err != nil {
		h.fail(w, logEntry, err, "delete task")
		return
	}

	logEntry.Info("task deleted successfully")
	w.WriteHeader(http.StatusNoContent)
}
