package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/tasktrek/internal/model"
)

type UserStore struct {
	db *sqlx.DB
}

func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{db: db}
}

const userCols = `id, email, password_hash, role, created_at, updated_at`

// Create inserts a user. It returns ErrDuplicate when the email is taken.
func (s *UserStore) Create(ctx context.Context, email, passwordHash string, role model.Role) (*model.User, error) {
	var id int64
	err := s.db.QueryRowxContext(ctx,
		s.db.Rebind(`INSERT INTO users (email, password_hash, role) VALUES (?, ?, ?) RETURNING id`),
		email, passwordHash, string(role),
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u, s.db.Rebind(`SELECT `+userCols+` FROM users WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// GetByEmail matches the email exactly, case included.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u, s.db.Rebind(`SELECT `+userCols+` FROM users WHERE email = ?`), email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

func (s *UserStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// ListRecent returns up to limit users, newest first.
func (s *UserStore) ListRecent(ctx context.Context, limit int) ([]model.User, error) {
	users := []model.User{}
	err := s.db.SelectContext(ctx, &users,
		s.db.Rebind(`SELECT `+userCols+` FROM users ORDER BY created_at DESC, id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("list recent users: %w", err)
	}
	return users, nil
}
