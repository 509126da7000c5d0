package model

import "time"

type Status string

const (
	StatusNotStarted Status = "not-started"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

type Task struct {
	ID          int64     `json:"id" db:"id"`
	UserID      int64     `json:"userId" db:"user_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	DueDate     time.Time `json:"dueDate" db:"due_date"`
	Status      Status    `json:"status" db:"status"`
	Assignee    *string   `json:"assignee" db:"assignee"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// NewTask holds the caller-supplied fields for a task insert. Status is not
// part of it: new tasks always start as not-started.
type NewTask struct {
	Title       string
	Description string
	DueDate     time.Time
	Assignee    *string
}

// TaskPatch describes a partial update. Nil pointers and unset Optionals
// leave the stored column untouched.
type TaskPatch struct {
	Title       *string
	Description Optional[string]
	DueDate     *time.Time
	Status      *Status
	Assignee    Optional[string]
}

// Empty reports whether the patch changes no columns.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.DueDate == nil && p.Status == nil && !p.Description.Set && !p.Assignee.Set
}
