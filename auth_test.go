package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/testutil"
)

func swapTestDB(t *testing.T) {
	t.Helper()
	oldDB := db
	db = testutil.SetupTestDB(t)
	t.Cleanup(func() { db.Close(); db = oldDB })
}

func TestLogin(t *testing.T) {
	swapTestDB(t)

	req := httptest.NewRequest("POST", "/auth/login", strings.NewReader(`{"username":"admin","password":"changeme"}`))
	w := httptest.NewRecorder()
	handleLogin(w, req)

	if w.Code != 200 {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		User UserResponse `json:"user"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.User.Username != "admin" || resp.User.Role != "admin" {
		t.Errorf("Unexpected user payload: %+v", resp.User)
	}

	var sessionCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "pepsi_session" {
			sessionCookie = c
		}
	}
	if sessionCookie == nil || sessionCookie.Value == "" {
		t.Fatal("Expected session cookie")
	}
	if !sessionCookie.HttpOnly {
		t.Error("Expected HttpOnly cookie")
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM sessions WHERE token = ?", sessionCookie.Value).Scan(&count)
	if count != 1 {
		t.Errorf("Expected session row, got %d", count)
	}

	var lastLogin string
	db.QueryRow("SELECT COALESCE(last_login, '') FROM users WHERE username = 'admin'").Scan(&lastLogin)
	if lastLogin == "" {
		t.Error("Expected last_login updated")
	}
}

func TestLogin_Rejections(t *testing.T) {
	swapTestDB(t)
	testutil.CreateTestUser(t, db, "inactive", "longenough1", "user", false)

	cases := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"wrong password", `{"username":"admin","password":"nope"}`, 401},
		{"unknown user", `{"username":"ghost","password":"whatever"}`, 401},
		{"deactivated", `{"username":"inactive","password":"longenough1"}`, 403},
		{"bad body", `{`, 400},
	}
	for _, tc := range cases {
		req := httptest.NewRequest("POST", "/auth/login", strings.NewReader(tc.body))
		w := httptest.NewRecorder()
		handleLogin(w, req)
		if w.Code != tc.wantCode {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.wantCode, w.Code)
		}
	}
}

func TestLogout(t *testing.T) {
	swapTestDB(t)
	token := testutil.LoginAdmin(t, db)

	req := testutil.AuthedRequest("POST", "/auth/logout", nil, token)
	w := httptest.NewRecorder()
	handleLogout(w, req)

	if w.Code != 200 {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var count int
	db.QueryRow("SELECT COUNT(*) FROM sessions WHERE token = ?", token).Scan(&count)
	if count != 0 {
		t.Error("Expected session deleted")
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == "pepsi_session" && c.MaxAge != -1 {
			t.Error("Expected cookie cleared")
		}
	}
}

func TestHandleMe(t *testing.T) {
	swapTestDB(t)
	token := testutil.LoginAdmin(t, db)

	w := httptest.NewRecorder()
	handleMe(w, testutil.AuthedRequest("GET", "/auth/me", nil, token))
	if w.Code != 200 {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp struct {
		User UserResponse `json:"user"`
	}
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.User.Username != "admin" {
		t.Errorf("Expected admin, got %s", resp.User.Username)
	}

	// No cookie
	w = httptest.NewRecorder()
	handleMe(w, httptest.NewRequest("GET", "/auth/me", nil))
	if w.Code != 401 {
		t.Errorf("Expected 401 without cookie, got %d", w.Code)
	}

	// Expired session
	db.Exec("UPDATE sessions SET expires_at = '2020-01-01 00:00:00' WHERE token = ?", token)
	w = httptest.NewRecorder()
	handleMe(w, testutil.AuthedRequest("GET", "/auth/me", nil, token))
	if w.Code != 401 {
		t.Errorf("Expected 401 for expired session, got %d", w.Code)
	}
}

func TestRequireAuth(t *testing.T) {
	swapTestDB(t)
	token := testutil.LoginAdmin(t, db)

	var gotRole string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRole, _ = r.Context().Value(ctxRole).(string)
		w.WriteHeader(200)
	})
	handler := requireAuth(next)

	// Protected path without a cookie
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/products", nil))
	if w.Code != 401 {
		t.Errorf("Expected 401 without cookie, got %d", w.Code)
	}

	// Exempt paths pass through unauthenticated
	for _, path := range []string{"/", "/auth/login", "/auth/me", "/ws"} {
		w = httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		if w.Code != 200 {
			t.Errorf("Expected %s exempt, got %d", path, w.Code)
		}
	}

	// Valid session reaches the handler with role in context
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, testutil.AuthedRequest("GET", "/api/v1/products", nil, token))
	if w.Code != 200 {
		t.Fatalf("Expected 200 with session, got %d", w.Code)
	}
	if gotRole != "admin" {
		t.Errorf("Expected admin role in context, got %q", gotRole)
	}
}

func TestRequireAuth_SlidingExpiry(t *testing.T) {
	swapTestDB(t)
	token := testutil.LoginAdmin(t, db)

	// Shrink the session to 1 hour, then hit a protected path
	soon := time.Now().Add(time.Hour).Format("2006-01-02 15:04:05")
	db.Exec("UPDATE sessions SET expires_at = ? WHERE token = ?", soon, token)

	handler := requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, testutil.AuthedRequest("GET", "/api/v1/products", nil, token))
	if w.Code != 200 {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var expiresAt string
	db.QueryRow("SELECT expires_at FROM sessions WHERE token = ?", token).Scan(&expiresAt)
	if expiresAt <= soon {
		t.Errorf("Expected expiry extended past %s, got %s", soon, expiresAt)
	}

	// Refreshed cookie rides along
	refreshed := false
	for _, c := range w.Result().Cookies() {
		if c.Name == "pepsi_session" && c.Value == token {
			refreshed = true
		}
	}
	if !refreshed {
		t.Error("Expected refreshed session cookie on response")
	}
}

func TestRequireAuth_DeactivatedAccount(t *testing.T) {
	swapTestDB(t)
	userID := testutil.CreateTestUser(t, db, "kasun", "longenough1", "user", true)
	token := testutil.CreateTestSessionSimple(t, db, userID)
	db.Exec("UPDATE users SET active = 0 WHERE id = ?", userID)

	handler := requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, testutil.AuthedRequest("GET", "/api/v1/products", nil, token))
	if w.Code != 403 {
		t.Errorf("Expected 403 for deactivated account, got %d", w.Code)
	}
}

func TestRequireRBAC(t *testing.T) {
	swapTestDB(t)
	adminToken := testutil.LoginAdmin(t, db)
	userToken := testutil.LoginUser(t, db, "kasun")

	handler := requireAuth(requireRBAC(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	})))

	cases := []struct {
		name     string
		token    string
		path     string
		wantCode int
	}{
		{"admin lists users", adminToken, "/api/v1/users", 200},
		{"admin reads audit", adminToken, "/api/v1/audit", 200},
		{"user blocked from users", userToken, "/api/v1/users", 403},
		{"user blocked from audit", userToken, "/api/v1/audit", 403},
		{"user reads products", userToken, "/api/v1/products", 200},
		{"user reads bills", userToken, "/api/v1/bills", 200},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, testutil.AuthedRequest("GET", tc.path, nil, tc.token))
		if w.Code != tc.wantCode {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.wantCode, w.Code)
		}
	}
}

func TestIsAdminOnly(t *testing.T) {
	cases := map[string]bool{
		"users":          true,
		"users/2":        true,
		"audit":          true,
		"products":       false,
		"bills/BILL-001": false,
	}
	for path, want := range cases {
		if got := isAdminOnly(path); got != want {
			t.Errorf("isAdminOnly(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestLoggingMiddleware_CORS(t *testing.T) {
	handler := logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(204)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/api/v1/products", nil))
	if w.Code != 200 {
		t.Errorf("Expected preflight 200, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS origin header")
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/products", nil))
	if w.Code != 204 {
		t.Errorf("Expected handler reached, got %d", w.Code)
	}
}
