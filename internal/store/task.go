package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/tasktrek/internal/model"
)

type TaskStore struct {
	db *sqlx.DB
}

func NewTaskStore(db *sqlx.DB) *TaskStore {
	return &TaskStore{db: db}
}

const taskCols = `id, user_id, title, description, due_date, status, assignee, created_at, updated_at`

// ListByUser returns the user's tasks, newest first. Ties on created_at are
// broken by id so rows inserted within the same second keep their order.
func (s *TaskStore) ListByUser(ctx context.Context, userID int64) ([]model.Task, error) {
	tasks := []model.Task{}
	err := s.db.SelectContext(ctx, &tasks,
		s.db.Rebind(`SELECT `+taskCols+` FROM tasks WHERE user_id = ? ORDER BY created_at DESC, id DESC`),
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// GetByID returns the task only if userID owns it.
func (s *TaskStore) GetByID(ctx context.Context, userID, id int64) (*model.Task, error) {
	var t model.Task
	err := s.db.GetContext(ctx, &t,
		s.db.Rebind(`SELECT `+taskCols+` FROM tasks WHERE id = ? AND user_id = ?`),
		id, userID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &t, nil
}

// Create inserts a not-started task. It returns ErrForeignKey when userID
// does not exist.
func (s *TaskStore) Create(ctx context.Context, userID int64, nt model.NewTask) (*model.Task, error) {
	var assignee any
	if nt.Assignee != nil && *nt.Assignee != "" {
		assignee = *nt.Assignee
	}

	var id int64
	err := s.db.QueryRowxContext(ctx,
		s.db.Rebind(`INSERT INTO tasks (user_id, title, description, due_date, status, assignee)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		userID, nt.Title, nt.Description, nt.DueDate.UTC(), string(model.StatusNotStarted), assignee,
	).Scan(&id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrForeignKey
		}
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return s.GetByID(ctx, userID, id)
}

// Update applies the patch in one statement keyed on both id and user_id.
// It returns nil, nil when no row matched, so a task owned by someone else
// looks the same as a missing one.
func (s *TaskStore) Update(ctx context.Context, userID, id int64, p model.TaskPatch) (*model.Task, error) {
	var sets []string
	var args []any

	if p.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *p.Title)
	}
	if p.Description.Set {
		desc := ""
		if p.Description.Value != nil {
			desc = *p.Description.Value
		}
		sets = append(sets, "description = ?")
		args = append(args, desc)
	}
	if p.DueDate != nil {
		sets = append(sets, "due_date = ?")
		args = append(args, p.DueDate.UTC())
	}
	if p.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*p.Status))
	}
	if p.Assignee.Set {
		var assignee any
		if p.Assignee.Value != nil && *p.Assignee.Value != "" {
			assignee = *p.Assignee.Value
		}
		sets = append(sets, "assignee = ?")
		args = append(args, assignee)
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id, userID)

	query := `UPDATE tasks SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND user_id = ?`
	result, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return s.GetByID(ctx, userID, id)
}

// Delete removes the task if userID owns it and reports whether a row was
// removed.
func (s *TaskStore) Delete(ctx context.Context, userID, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind(`DELETE FROM tasks WHERE id = ? AND user_id = ?`),
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *TaskStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM tasks`); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}
