package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adamscao/protocolreg/internal/app"
	"github.com/adamscao/protocolreg/internal/config"
	"github.com/adamscao/protocolreg/internal/logging"
)

const adminPassword = "admin-password"

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "api.db")
	cfg.Auth.JWTSecret = "0123456789abcdef0123456789abcdef"
	cfg.Auth.BcryptCost = 4
	cfg.Bootstrap.AdminPassword = adminPassword
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	clock := func() time.Time { return time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC) }
	a, err := app.Open(context.Background(), cfg, logging.Discard(), clock)
	if err != nil {
		t.Fatalf("app.Open() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	if _, err := a.EnsureAdmin(context.Background()); err != nil {
		t.Fatalf("EnsureAdmin() error = %v", err)
	}

	return NewServer(cfg, a.Registry, logging.Discard()).Router()
}

func do(r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func login(t *testing.T, r *gin.Engine, user, password string) string {
	t.Helper()
	w := do(r, "POST", "/v1/auth/login", "", gin.H{"login": user, "password": password})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: status %d, body %s", user, w.Code, w.Body.String())
	}
	return decode(t, w)["token"].(string)
}

func TestHealth(t *testing.T) {
	r := setupTestRouter(t)

	w := do(r, "GET", "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected an X-Request-ID header")
	}
}

func TestLoginAndSession(t *testing.T) {
	r := setupTestRouter(t)

	w := do(r, "POST", "/v1/auth/login", "", gin.H{"login": "admin", "password": "nope"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 for a wrong password, got %d", w.Code)
	}
	if decode(t, w)["error"] != "invalid_credentials" {
		t.Errorf("unexpected body %s", w.Body.String())
	}

	if w := do(r, "GET", "/v1/me", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without a token, got %d", w.Code)
	}

	token := login(t, r, "admin", adminPassword)
	w = do(r, "GET", "/v1/me", token, nil)
	if w.Code != http.StatusOK || decode(t, w)["login"] != "admin" {
		t.Fatalf("GET /v1/me: %d %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "password_hash") {
		t.Error("password hash leaked in /v1/me")
	}

	if w := do(r, "POST", "/v1/auth/logout", token, nil); w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204 on logout, got %d", w.Code)
	}
	if w := do(r, "GET", "/v1/me", token, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 after logout, got %d", w.Code)
	}
}

func TestProtocolWorkflow(t *testing.T) {
	r := setupTestRouter(t)
	admin := login(t, r, "admin", adminPassword)

	w := do(r, "POST", "/v1/users", admin, gin.H{"login": "bob", "password": "bob-password", "display_name": "Bob"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create user: %d %s", w.Code, w.Body.String())
	}
	if w := do(r, "POST", "/v1/users", admin, gin.H{"login": "bob", "password": "bob-password", "display_name": "Bob"}); w.Code != http.StatusConflict {
		t.Errorf("Expected status 409 for a duplicate login, got %d", w.Code)
	}

	bob := login(t, r, "bob", "bob-password")
	if w := do(r, "GET", "/v1/users", bob, nil); w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for a non-admin user listing, got %d", w.Code)
	}

	w = do(r, "POST", "/v1/requesters", bob, gin.H{"name": "Ana", "department": "HR"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create requester: %d %s", w.Code, w.Body.String())
	}
	requesterID := decode(t, w)["id"].(float64)

	w = do(r, "POST", "/v1/protocols", bob, gin.H{
		"title": "Vacation request", "document_type": "Memo", "requester_id": requesterID, "protocol_date": "10/01/2024",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for a malformed date, got %d", w.Code)
	}

	w = do(r, "POST", "/v1/protocols", bob, gin.H{
		"title": "Vacation request", "document_type": "Memo", "requester_id": requesterID, "protocol_date": "2024-01-10",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create protocol: %d %s", w.Code, w.Body.String())
	}
	created := decode(t, w)
	if created["protocol_number"] != "PROT-2024-0001" || created["status"] != "Pending" || created["can_edit"] != true {
		t.Errorf("created protocol = %v", created)
	}
	path := "/v1/protocols/" + jsonID(created["id"])

	w = do(r, "PUT", path, bob, gin.H{
		"title": "Vacation request", "document_type": "Memo", "requester_id": requesterID, "status": "Concluded",
	})
	if w.Code != http.StatusOK || decode(t, w)["status"] != "Concluded" {
		t.Fatalf("update protocol: %d %s", w.Code, w.Body.String())
	}

	if w := do(r, "DELETE", "/v1/requesters/"+jsonID(requesterID), bob, nil); w.Code != http.StatusConflict {
		t.Errorf("Expected status 409 deleting a referenced requester, got %d", w.Code)
	}
	if w := do(r, "DELETE", path, bob, nil); w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for a non-admin delete, got %d", w.Code)
	}
	if w := do(r, "DELETE", path, admin, nil); w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204 for an admin delete, got %d", w.Code)
	}
	if w := do(r, "GET", path, admin, nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 after delete, got %d", w.Code)
	}

	w = do(r, "GET", "/v1/audit?table=protocolos", admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("audit list: %d %s", w.Code, w.Body.String())
	}
	var entries []map[string]any
	json.Unmarshal(w.Body.Bytes(), &entries)
	if len(entries) != 3 {
		t.Fatalf("Expected 3 protocol audit entries, got %d", len(entries))
	}
	actions := []any{entries[0]["action"], entries[1]["action"], entries[2]["action"]}
	if actions[0] != "DELETE" || actions[1] != "UPDATE" || actions[2] != "CREATE" {
		t.Errorf("audit actions = %v", actions)
	}

	if w := do(r, "GET", "/v1/audit", bob, nil); w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for a non-admin audit read, got %d", w.Code)
	}
}

func TestReportDownloads(t *testing.T) {
	r := setupTestRouter(t)
	admin := login(t, r, "admin", adminPassword)

	w := do(r, "GET", "/v1/reports/protocols.xlsx?status=Pending", admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("xlsx report: %d %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Header().Get("Content-Type"), "spreadsheetml") {
		t.Errorf("Content-Type = %q", w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), ".xlsx") {
		t.Errorf("Content-Disposition = %q", w.Header().Get("Content-Disposition"))
	}

	w = do(r, "GET", "/v1/reports/protocols.csv", admin, nil)
	if w.Code != http.StatusOK || !bytes.HasPrefix(w.Body.Bytes(), []byte{0xEF, 0xBB, 0xBF}) {
		t.Errorf("csv report: %d", w.Code)
	}

	if w := do(r, "GET", "/v1/reports/protocols.csv?date_from=2024-02-01&date_to=2024-01-01", admin, nil); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for an inverted range, got %d", w.Code)
	}

	w = do(r, "GET", "/v1/audit?action=EXPORT", admin, nil)
	var entries []map[string]any
	json.Unmarshal(w.Body.Bytes(), &entries)
	if len(entries) != 2 {
		t.Errorf("Expected 2 EXPORT entries, got %d", len(entries))
	}
}

func jsonID(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
