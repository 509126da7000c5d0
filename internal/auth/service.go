package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/tasktrek/internal/model"
	"github.com/dukerupert/tasktrek/internal/store"
)

var (
	ErrInvalidInput       = errors.New("missing required fields")
	ErrEmailInUse         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type Config struct {
	BcryptCost   int
	StoreTimeout time.Duration
}

// Session is the result of a successful login.
type Session struct {
	User  *model.User
	Token string
}

// Service registers users and checks their credentials. It is the only
// writer of the users table.
type Service struct {
	users     *store.UserStore
	cost      int
	timeout   time.Duration
	dummyHash string
	now       func() time.Time
	logger    *slog.Logger
}

func NewService(users *store.UserStore, cfg Config, logger *slog.Logger) (*Service, error) {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cfg.BcryptCost)
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}

	// Compared against when the email is unknown so both failure paths
	// spend the same time in bcrypt.
	dummy, err := HashPassword("tasktrek-unknown-user", cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	return &Service{
		users:     users,
		cost:      cfg.BcryptCost,
		timeout:   cfg.StoreTimeout,
		dummyHash: dummy,
		now:       time.Now,
		logger:    logger,
	}, nil
}

// Register creates a user. An empty role defaults to student.
func (s *Service) Register(ctx context.Context, email, password string, role model.Role) (*model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrInvalidInput
	}
	if role == "" {
		role = model.RoleStudent
	}
	if !role.Valid() {
		return nil, ErrInvalidInput
	}

	hash, err := HashPassword(password, s.cost)
	if err != nil {
		if isPasswordTooLong(err) {
			return nil, ErrInvalidInput
		}
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.users.Create(ctx, email, hash, role)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, ErrEmailInUse
	}
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// Login checks the credentials and, when role is non-empty, that it matches
// the stored role. Every failure returns ErrInvalidCredentials so callers
// cannot tell which part was wrong.
func (s *Service) Login(ctx context.Context, email, password string, role model.Role) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrInvalidInput
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.users.GetByEmail(lookupCtx, email)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if user == nil {
		VerifyPassword(s.dummyHash, password)
		return nil, ErrInvalidCredentials
	}

	if !VerifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	if role != "" && role != user.Role {
		s.logger.Debug("login role mismatch", "user_id", user.ID, "requested", role)
		return nil, ErrInvalidCredentials
	}

	return &Session{
		User:  user,
		Token: NewToken(user.ID, s.now()),
	}, nil
}
