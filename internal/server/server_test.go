package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/coder/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/tasktrek/internal/config"
	"github.com/dukerupert/tasktrek/internal/database"
)

func testConfig() config.Config {
	return config.Config{
		BcryptCost:     bcrypt.MinCost,
		StoreTimeout:   time.Second,
		AuthRateLimit:  100,
		AuthRateWindow: time.Minute,
	}
}

func setupServer(t *testing.T, cfg config.Config) http.Handler {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := New(db, cfg, logger)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv.Router()
}

func do(t *testing.T, h http.Handler, method, target string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, target, rec.Body.String(), err)
	}
	return rec.Code, out
}

func register(t *testing.T, h http.Handler, email string) int64 {
	t.Helper()
	code, body := do(t, h, "POST", "/api/auth/register", map[string]string{
		"email": email, "password": "pw1", "role": "student",
	})
	if code != http.StatusCreated {
		t.Fatalf("register %s: status = %d, body = %v", email, code, body)
	}
	user := body["user"].(map[string]any)
	return int64(user["id"].(float64))
}

func TestTaskLifecycle(t *testing.T) {
	h := setupServer(t, testConfig())

	aliceID := register(t, h, "alice@x.io")
	bobID := register(t, h, "bob@x.io")

	code, body := do(t, h, "POST", "/api/auth/login", map[string]string{
		"email": "alice@x.io", "password": "pw1", "role": "student",
	})
	if code != http.StatusOK {
		t.Fatalf("login status = %d, want 200", code)
	}
	if body["message"] != "Login successful" {
		t.Errorf("message = %v", body["message"])
	}
	user := body["user"].(map[string]any)
	token, _ := user["token"].(string)
	if !strings.HasPrefix(token, fmt.Sprintf("%d-", aliceID)) {
		t.Errorf("token = %q, want prefix %d-", token, aliceID)
	}
	if _, ok := user["passwordHash"]; ok {
		t.Error("login response leaks passwordHash")
	}

	code, body = do(t, h, "POST", "/api/tasks", map[string]any{
		"title": "Essay", "dueDate": "2025-11-10", "userId": aliceID,
	})
	if code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %v", code, body)
	}
	created := body["task"].(map[string]any)
	if created["status"] != "not-started" {
		t.Errorf("status = %v, want not-started", created["status"])
	}
	if created["description"] != "" {
		t.Errorf("description = %v, want empty", created["description"])
	}
	taskID := int64(created["id"].(float64))

	// IDs may arrive as strings.
	code, body = do(t, h, "PUT", "/api/tasks", map[string]any{
		"id": fmt.Sprint(taskID), "userId": fmt.Sprint(aliceID), "status": "completed",
	})
	if code != http.StatusOK {
		t.Fatalf("update status = %d, body = %v", code, body)
	}
	updated := body["task"].(map[string]any)
	if updated["status"] != "completed" || updated["title"] != "Essay" {
		t.Errorf("updated = %v", updated)
	}

	code, body = do(t, h, "DELETE", fmt.Sprintf("/api/tasks?id=%d&userId=%d", taskID, bobID), nil)
	if code != http.StatusNotFound {
		t.Errorf("delete as bob status = %d, want 404", code)
	}
	if body["error"] != "Task not found or unauthorized" {
		t.Errorf("error = %v", body["error"])
	}

	code, body = do(t, h, "DELETE", fmt.Sprintf("/api/tasks?id=%d&userId=%d", taskID, aliceID), nil)
	if code != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", code)
	}
	if body["message"] != "Task deleted successfully" {
		t.Errorf("message = %v", body["message"])
	}

	code, body = do(t, h, "GET", fmt.Sprintf("/api/tasks?userId=%d", aliceID), nil)
	if code != http.StatusOK {
		t.Fatalf("list status = %d", code)
	}
	if tasks := body["tasks"].([]any); len(tasks) != 0 {
		t.Errorf("tasks = %v, want empty", tasks)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	h := setupServer(t, testConfig())
	register(t, h, "alice@x.io")

	code, body := do(t, h, "POST", "/api/auth/register", map[string]string{
		"email": "alice@x.io", "password": "other", "role": "student",
	})
	if code != http.StatusConflict {
		t.Errorf("status = %d, want 409", code)
	}
	if body["error"] != "User already exists" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestLoginFailuresIndistinguishable(t *testing.T) {
	h := setupServer(t, testConfig())
	register(t, h, "alice@x.io")

	attempts := []map[string]string{
		{"email": "alice@x.io", "password": "wrong", "role": "student"},
		{"email": "nobody@x.io", "password": "pw1", "role": "student"},
		{"email": "alice@x.io", "password": "pw1", "role": "admin"},
	}
	for _, a := range attempts {
		code, body := do(t, h, "POST", "/api/auth/login", a)
		if code != http.StatusUnauthorized {
			t.Errorf("%v: status = %d, want 401", a, code)
		}
		if body["error"] != "Invalid credentials" {
			t.Errorf("%v: error = %v", a, body["error"])
		}
	}
}

func TestMissingFields(t *testing.T) {
	h := setupServer(t, testConfig())
	aliceID := register(t, h, "alice@x.io")

	tests := []struct {
		name    string
		method  string
		target  string
		body    any
		wantErr string
	}{
		{"register no password", "POST", "/api/auth/register", map[string]string{"email": "a@x.io"}, "Missing required fields"},
		{"login no email", "POST", "/api/auth/login", map[string]string{"password": "pw1"}, "Missing required fields"},
		{"create no title", "POST", "/api/tasks", map[string]any{"dueDate": "2025-11-10", "userId": aliceID}, "Missing required fields"},
		{"create no due date", "POST", "/api/tasks", map[string]any{"title": "x", "userId": aliceID}, "Missing required fields"},
		{"update no id", "PUT", "/api/tasks", map[string]any{"userId": aliceID, "title": "x"}, "Task ID and User ID are required"},
		{"list no user", "GET", "/api/tasks", nil, "User ID is required"},
		{"delete no id", "DELETE", fmt.Sprintf("/api/tasks?userId=%d", aliceID), nil, "Task ID and User ID are required"},
		{"malformed json", "POST", "/api/tasks", `{"title":`, "invalid JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, h, tt.method, tt.target, tt.body)
			if code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", code)
			}
			if body["error"] != tt.wantErr {
				t.Errorf("error = %v, want %q", body["error"], tt.wantErr)
			}
		})
	}
}

func TestAuthRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.AuthRateLimit = 2
	h := setupServer(t, cfg)

	creds := map[string]string{"email": "nobody@x.io", "password": "pw", "role": "student"}
	for i := 0; i < 2; i++ {
		if code, _ := do(t, h, "POST", "/api/auth/login", creds); code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status = %d, want 401", i+1, code)
		}
	}
	code, body := do(t, h, "POST", "/api/auth/login", creds)
	if code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", code)
	}
	if body["error"] != "Too many requests" {
		t.Errorf("error = %v", body["error"])
	}

	// Task routes are not limited.
	if code, _ := do(t, h, "GET", "/api/tasks?userId=1", nil); code != http.StatusOK {
		t.Errorf("list status = %d, want 200", code)
	}
}

func TestHealth(t *testing.T) {
	h := setupServer(t, testConfig())
	code, body := do(t, h, "GET", "/health", nil)
	if code != http.StatusOK {
		t.Errorf("status = %d, want 200", code)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
}

func TestWebSocketReceivesOwnTaskChanges(t *testing.T) {
	h := setupServer(t, testConfig())
	ts := httptest.NewServer(h)
	defer ts.Close()

	aliceID := register(t, h, "alice@x.io")
	bobID := register(t, h, "bob@x.io")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + fmt.Sprintf("/ws?userId=%d", aliceID)
	conn, _, err := ws.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	// Registration happens after the upgrade; give the handler a moment.
	time.Sleep(50 * time.Millisecond)

	// Bob's change must not reach alice.
	do(t, h, "POST", "/api/tasks", map[string]any{"title": "Bob's", "dueDate": "2025-11-10", "userId": bobID})
	_, body := do(t, h, "POST", "/api/tasks", map[string]any{"title": "Essay", "dueDate": "2025-11-10", "userId": aliceID})
	taskID := body["task"].(map[string]any)["id"].(float64)

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg["type"] != "task_created" || msg["entity"] != "task" || msg["action"] != "created" {
		t.Errorf("msg = %v", msg)
	}
	if msg["id"] != taskID {
		t.Errorf("id = %v, want %v", msg["id"], taskID)
	}
}

func TestWebSocketRequiresUserID(t *testing.T) {
	h := setupServer(t, testConfig())
	req := httptest.NewRequest("GET", "/ws", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
