package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/tasktrek/internal/auth"
	"github.com/dukerupert/tasktrek/internal/model"
)

type AuthHandler struct {
	svc    *auth.Service
	logger *slog.Logger
}

func NewAuthHandler(svc *auth.Service, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

type credentialsRequest struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
}

type loginUser struct {
	ID    int64      `json:"id"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
	Token string     `json:"token"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	user, err := h.svc.Register(r.Context(), req.Email, req.Password, req.Role)
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "Invalid email, password, or role")
		return
	case errors.Is(err, auth.ErrEmailInUse):
		writeError(w, http.StatusConflict, "User already exists")
		return
	case err != nil:
		h.logger.Error("register", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User created successfully",
		"user":    user,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	sess, err := h.svc.Login(r.Context(), req.Email, req.Password, req.Role)
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	case err != nil:
		h.logger.Error("login", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"user": loginUser{
			ID:    sess.User.ID,
			Email: sess.User.Email,
			Role:  sess.User.Role,
			Token: sess.Token,
		},
	})
}
