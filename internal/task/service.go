// Package task implements per-user task operations. Every mutation is keyed
// on both the task id and the caller's user id, so a task owned by someone
// else is reported as ErrNotFound.
package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/tasktrek/internal/model"
	"github.com/dukerupert/tasktrek/internal/store"
)

var ErrNotFound = errors.New("task not found or unauthorized")

// ValidationError reports missing or malformed input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

type Service struct {
	tasks   *store.TaskStore
	timeout time.Duration
	logger  *slog.Logger
}

func NewService(tasks *store.TaskStore, storeTimeout time.Duration, logger *slog.Logger) *Service {
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &Service{tasks: tasks, timeout: storeTimeout, logger: logger}
}

// List returns the user's tasks, newest first. It never returns nil on success.
func (s *Service) List(ctx context.Context, userID int64) ([]model.Task, error) {
	if userID <= 0 {
		return nil, invalid("userId is required")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tasks, err := s.tasks.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// Create stores a new task. The status always starts as not-started.
func (s *Service) Create(ctx context.Context, userID int64, nt model.NewTask) (*model.Task, error) {
	nt.Title = strings.TrimSpace(nt.Title)
	switch {
	case userID <= 0:
		return nil, invalid("userId is required")
	case nt.Title == "":
		return nil, invalid("title is required")
	case nt.DueDate.IsZero():
		return nil, invalid("dueDate is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	t, err := s.tasks.Create(ctx, userID, nt)
	if errors.Is(err, store.ErrForeignKey) {
		return nil, invalid("user %d does not exist", userID)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Debug("task created", "task_id", t.ID, "user_id", userID)
	return t, nil
}

// Update applies the supplied fields only. An empty title, status, or due
// date counts as not supplied; an empty description or assignee clears it.
func (s *Service) Update(ctx context.Context, userID, taskID int64, p model.TaskPatch) (*model.Task, error) {
	if userID <= 0 || taskID <= 0 {
		return nil, invalid("Task ID and User ID are required")
	}

	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		p.Title = nil
	}
	if p.DueDate != nil && p.DueDate.IsZero() {
		p.DueDate = nil
	}
	if p.Status != nil {
		if *p.Status == "" {
			p.Status = nil
		} else if !p.Status.Valid() {
			return nil, invalid("status must be not-started, in-progress, or completed")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	t, err := s.tasks.Update(ctx, userID, taskID, p)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNotFound
	}

	s.logger.Debug("task updated", "task_id", taskID, "user_id", userID)
	return t, nil
}

// Delete removes the task. Deleting the same task twice returns ErrNotFound
// the second time.
func (s *Service) Delete(ctx context.Context, userID, taskID int64) error {
	if userID <= 0 || taskID <= 0 {
		return invalid("Task ID and User ID are required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ok, err := s.tasks.Delete(ctx, userID, taskID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}

	s.logger.Debug("task deleted", "task_id", taskID, "user_id", userID)
	return nil
}
