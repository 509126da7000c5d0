package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/tasktrek/internal/database"
	"github.com/dukerupert/tasktrek/internal/model"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func setupUserTestDB(t *testing.T) *UserStore {
	t.Helper()
	return NewUserStore(openTestDB(t))
}

func TestUserCreate(t *testing.T) {
	us := setupUserTestDB(t)
	ctx := context.Background()

	u, err := us.Create(ctx, "alice@example.com", "hash", model.RoleStudent)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", u.Email, "alice@example.com")
	}
	if u.PasswordHash != "hash" {
		t.Errorf("password hash = %q, want %q", u.PasswordHash, "hash")
	}
	if u.Role != model.RoleStudent {
		t.Errorf("role = %q, want %q", u.Role, model.RoleStudent)
	}
	if u.CreatedAt.IsZero() || u.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	us := setupUserTestDB(t)
	ctx := context.Background()

	if _, err := us.Create(ctx, "alice@example.com", "hash", model.RoleStudent); err != nil {
		t.Fatalf("create user: %v", err)
	}
	_, err := us.Create(ctx, "alice@example.com", "other", model.RoleAdmin)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func TestUserGetByEmail(t *testing.T) {
	us := setupUserTestDB(t)
	ctx := context.Background()

	if _, err := us.Create(ctx, "alice@example.com", "hash", model.RoleAdmin); err != nil {
		t.Fatalf("create user: %v", err)
	}

	u, err := us.GetByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if u == nil {
		t.Fatal("expected user, got nil")
	}
	if u.Role != model.RoleAdmin {
		t.Errorf("role = %q, want %q", u.Role, model.RoleAdmin)
	}

	// Exact match only.
	u, err = us.GetByEmail(ctx, "ALICE@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if u != nil {
		t.Error("expected nil for differently cased email")
	}
}

func TestUserGetByIDNotFound(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.GetByID(context.Background(), 999)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if u != nil {
		t.Error("expected nil for nonexistent user")
	}
}

func TestUserCountAndListRecent(t *testing.T) {
	us := setupUserTestDB(t)
	ctx := context.Background()

	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		if _, err := us.Create(ctx, email, "hash", model.RoleStudent); err != nil {
			t.Fatalf("create %s: %v", email, err)
		}
	}

	n, err := us.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}

	recent, err := us.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("len = %d, want 2", len(recent))
	}
	if recent[0].Email != "c@example.com" || recent[1].Email != "b@example.com" {
		t.Errorf("recent = [%s %s], want [c@example.com b@example.com]", recent[0].Email, recent[1].Email)
	}
}
