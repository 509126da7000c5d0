package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/tasktrek/internal/model"
	"github.com/dukerupert/tasktrek/internal/task"
	"github.com/dukerupert/tasktrek/internal/websocket"
)

type TaskHandler struct {
	svc    *task.Service
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewTaskHandler(svc *task.Service, hub *websocket.Hub, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{svc: svc, hub: hub, logger: logger}
}

func (h *TaskHandler) notify(userID int64, action string, taskID int64) {
	if h.hub != nil {
		h.hub.Send(userID, websocket.NewMessage("task", action, taskID))
	}
}

// fail maps a service error onto a status code. Unexpected errors are logged
// and the client only sees a generic message.
func (h *TaskHandler) fail(w http.ResponseWriter, op string, err error) {
	var ve *task.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Msg)
	case errors.Is(err, task.ErrNotFound):
		writeError(w, http.StatusNotFound, "Task not found or unauthorized")
	default:
		h.logger.Error(op, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

type createTaskRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	DueDate     string  `json:"dueDate"`
	Status      string  `json:"status"` // ignored: new tasks always start not-started
	Assignee    *string `json:"assignee"`
	UserID      ID      `json:"userId"`
}

// updateTaskRequest keeps title, dueDate and status as plain pointers because
// an empty value means "leave unchanged"; description and assignee use
// Optional because an empty value clears them.
type updateTaskRequest struct {
	ID          ID                     `json:"id"`
	UserID      ID                     `json:"userId"`
	Title       *string                `json:"title"`
	Description model.Optional[string] `json:"description"`
	DueDate     *string                `json:"dueDate"`
	Status      *string                `json:"status"`
	Assignee    model.Optional[string] `json:"assignee"`
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok, err := queryID(r, "userId")
	if !ok {
		writeError(w, http.StatusBadRequest, "User ID is required")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tasks, err := h.svc.List(r.Context(), userID)
	if err != nil {
		h.fail(w, "list tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Title == "" || req.DueDate == "" || req.UserID == 0 {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	due, err := parseDueDate(req.DueDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, err := h.svc.Create(r.Context(), int64(req.UserID), model.NewTask{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     due,
		Assignee:    req.Assignee,
	})
	if err != nil {
		h.fail(w, "create task", err)
		return
	}

	h.notify(t.UserID, "created", t.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"task": t})
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ID == 0 || req.UserID == 0 {
		writeError(w, http.StatusBadRequest, "Task ID and User ID are required")
		return
	}

	patch := model.TaskPatch{
		Description: req.Description,
		Assignee:    req.Assignee,
	}
	if req.Title != nil && *req.Title != "" {
		patch.Title = req.Title
	}
	if req.DueDate != nil && *req.DueDate != "" {
		due, err := parseDueDate(*req.DueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		patch.DueDate = &due
	}
	if req.Status != nil && *req.Status != "" {
		status := model.Status(*req.Status)
		patch.Status = &status
	}

	t, err := h.svc.Update(r.Context(), int64(req.UserID), int64(req.ID), patch)
	if err != nil {
		h.fail(w, "update task", err)
		return
	}

	h.notify(t.UserID, "updated", t.ID)
	writeJSON(w, http.StatusOK, map[string]any{"task": t})
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, idOK, idErr := queryID(r, "id")
	userID, userOK, userErr := queryID(r, "userId")
	if !idOK || !userOK {
		writeError(w, http.StatusBadRequest, "Task ID and User ID are required")
		return
	}
	if idErr != nil || userErr != nil {
		writeError(w, http.StatusBadRequest, errors.Join(idErr, userErr).Error())
		return
	}

	if err := h.svc.Delete(r.Context(), userID, id); err != nil {
		h.fail(w, "delete task", err)
		return
	}

	h.notify(userID, "deleted", id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Task deleted successfully"})
}
