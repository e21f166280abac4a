package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"lydistories/internal/app"
	"lydistories/internal/ratelimit"
	"lydistories/pkg/domain"
	"lydistories/pkg/store"
)

func newTestServer(t *testing.T, cfg Config) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	sessions, err := store.NewJWTSessionStore("test-secret-please-rotate", time.Hour, store.JWTOptions{})
	if err != nil {
		t.Fatalf("session store: %v", err)
	}
	cfg.App = app.New(st, sessions, nil)
	ts := httptest.NewServer(New(cfg).Router())
	t.Cleanup(ts.Close)
	return ts, st
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, payload)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("decode body %q: %v", raw, err)
		}
	}
	return resp, decoded
}

func registerUser(t *testing.T, baseURL, name, email string) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, baseURL+"/api/auth/register", "", map[string]any{
		"name": name, "email": email, "password": "hunter2x",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, body %v", resp.StatusCode, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("register returned no token: %v", body)
	}
	return token
}

func seedCatalog(t *testing.T, st *store.MemoryStore, title string, price float64) domain.Content {
	t.Helper()
	item := domain.Content{
		ID:        "content-1",
		Title:     title,
		Category:  domain.CategoryBook,
		FullText:  "the whole text",
		Price:     price,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := st.SaveContent(item); err != nil {
		t.Fatalf("seed content: %v", err)
	}
	return item
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t, Config{})
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/healthz", "", nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health = %d %v", resp.StatusCode, body)
	}
}

func TestAuthEndpoints(t *testing.T) {
	ts, _ := newTestServer(t, Config{})
	token := registerUser(t, ts.URL, "Aisha", "aisha@example.com")

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/auth/register", "", map[string]any{
		"name": "Dup", "email": "aisha@example.com", "password": "hunter2x",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register = %d %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", "", map[string]any{
		"email": "aisha@example.com", "password": "wrong-password",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login = %d %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/auth/me", token, nil)
	if resp.StatusCode != http.StatusOK || body["email"] != "aisha@example.com" {
		t.Fatalf("me = %d %v", resp.StatusCode, body)
	}
	if _, leaked := body["password_hash"]; leaked {
		t.Fatalf("me leaks password hash: %v", body)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/auth/me", "garbage-token", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token = %d", resp.StatusCode)
	}
}

func TestPaymentFlowOverHTTP(t *testing.T) {
	ts, st := newTestServer(t, Config{})
	token := registerUser(t, ts.URL, "Brian", "brian@example.com")
	item := seedCatalog(t, st, "Market Guide", 5000)

	// The detail view hides the full text before purchase.
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/content/"+item.ID, token, nil)
	if resp.StatusCode != http.StatusOK || body["has_access"] != false {
		t.Fatalf("detail before purchase = %d %v", resp.StatusCode, body)
	}
	if _, present := body["full_text"]; present {
		t.Fatalf("full text leaked before purchase: %v", body)
	}

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/payments/initiate", token, map[string]any{
		"content_id": item.ID, "phone_number": "0700000000",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("initiate = %d %v", resp.StatusCode, body)
	}
	paymentID, _ := body["payment_id"].(string)
	otp, _ := body["otp_hint"].(string)
	if paymentID == "" || len(otp) != 6 {
		t.Fatalf("quote = %v", body)
	}
	if body["amount"] != float64(5000) || body["currency"] != "UGX" {
		t.Fatalf("quote amount = %v %v", body["amount"], body["currency"])
	}

	wrong := "000000"
	if wrong == otp {
		wrong = "111111"
	}
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/payments/confirm", token, map[string]any{
		"payment_id": paymentID, "otp": wrong,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("wrong code = %d %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/payments/confirm", token, map[string]any{
		"payment_id": paymentID, "otp": otp,
	})
	if resp.StatusCode != http.StatusOK || body["content_id"] != item.ID {
		t.Fatalf("confirm = %d %v", resp.StatusCode, body)
	}

	// Confirming the same payment again reads as not found.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/payments/confirm", token, map[string]any{
		"payment_id": paymentID, "otp": otp,
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("double confirm = %d", resp.StatusCode)
	}

	// A second purchase of unlocked content conflicts.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/payments/initiate", token, map[string]any{
		"content_id": item.ID, "phone_number": "0700000000",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("re-initiate = %d", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/content/"+item.ID, token, nil)
	if resp.StatusCode != http.StatusOK || body["has_access"] != true || body["full_text"] != "the whole text" {
		t.Fatalf("detail after purchase = %d %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/payments/history", token, nil)
	if resp.StatusCode != http.StatusOK || body["count"] != float64(1) {
		t.Fatalf("history = %d %v", resp.StatusCode, body)
	}
	if _, ok := body["payments"].([]any); !ok {
		t.Fatalf("history envelope missing payments: %v", body)
	}
}

func TestAdminEndpointsRequireAdminRole(t *testing.T) {
	ts, st := newTestServer(t, Config{})
	token := registerUser(t, ts.URL, "Clare", "clare@example.com")

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/admin/stats", token, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("reader stats = %d, want 403", resp.StatusCode)
	}

	// Promote and retry.
	users, err := st.ListUsers()
	if err != nil || len(users) != 1 {
		t.Fatalf("list users: %v %v", users, err)
	}
	admin := users[0]
	admin.Role = domain.RoleAdmin
	if err := st.SaveUser(admin); err != nil {
		t.Fatalf("promote: %v", err)
	}
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/admin/stats", token, nil)
	if resp.StatusCode != http.StatusOK || body["currency"] != "UGX" {
		t.Fatalf("admin stats = %d %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/content", token, map[string]any{
		"title": "New Guide", "category": "guide", "price": 2000,
	})
	if resp.StatusCode != http.StatusCreated || body["title"] != "New Guide" {
		t.Fatalf("create content = %d %v", resp.StatusCode, body)
	}
}

func TestBookmarksAndProgressOverHTTP(t *testing.T) {
	ts, st := newTestServer(t, Config{})
	token := registerUser(t, ts.URL, "Denis", "denis@example.com")
	item := seedCatalog(t, st, "River Songs", 1000)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/bookmarks", token, map[string]any{"content_id": item.ID})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add bookmark = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/bookmarks", token, map[string]any{"content_id": item.ID})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate bookmark = %d", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodPut, ts.URL+"/api/reading-progress", token, map[string]any{
		"content_id": item.ID, "progress_percent": 45.5, "last_page": 12,
	})
	if resp.StatusCode != http.StatusOK || body["progress_percent"] != 45.5 {
		t.Fatalf("save progress = %d %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/reading-progress/"+item.ID, token, nil)
	if resp.StatusCode != http.StatusOK || body["last_page"] != float64(12) {
		t.Fatalf("get progress = %d %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/dashboard", token, nil)
	if resp.StatusCode != http.StatusOK || body["bookmark_count"] != float64(1) {
		t.Fatalf("dashboard = %d %v", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/api/bookmarks/"+item.ID, token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("remove bookmark = %d", resp.StatusCode)
	}
}

func TestLoginRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	limiter, err := ratelimit.NewRedisFixedWindowLimiter(mr.Addr(), "", "", 2, time.Minute)
	if err != nil {
		t.Fatalf("limiter: %v", err)
	}
	ts, _ := newTestServer(t, Config{LoginLimiter: limiter})

	for i := 0; i < 2; i++ {
		resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", "", map[string]any{
			"email": fmt.Sprintf("nobody%d@example.com", i), "password": "whatever42",
		})
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("attempt %d = %d, want 401", i, resp.StatusCode)
		}
	}
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", "", map[string]any{
		"email": "nobody@example.com", "password": "whatever42",
	})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("limited attempt = %d, want 429", resp.StatusCode)
	}
}
