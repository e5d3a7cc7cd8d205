package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"log/slog"

	"io"

	"github.com/gin-gonic/gin"
	"github.com/irongopher75/Techfest-Server/internal/rate"
	"github.com/irongopher75/Techfest-Server/internal/security"
)

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}, modify func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if modify != nil {
		modify(req)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func refreshCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == refreshCookieName {
			return cookie
		}
	}
	return nil
}

func signupBody(email, username string) map[string]interface{} {
	return map[string]interface{}{
		"name":     "Test User",
		"email":    email,
		"username": username,
		"password": "hunter22",
		"college":  "Test College",
	}
}

func TestSignup(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.router, http.MethodPost, "/api/auth/signup", signupBody("alice@example.com", "alice"), nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Token     string `json:"token"`
		ExpiresIn int64  `json:"expires_in"`
		User      struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	}
	decodeBody(t, rec, &resp)

	if resp.Token == "" {
		t.Fatal("no access token in response")
	}
	if resp.User.Role != "user" {
		t.Fatalf("role = %q, want user", resp.User.Role)
	}
	if resp.User.Email != "alice@example.com" {
		t.Fatalf("email = %q", resp.User.Email)
	}

	cookie := refreshCookie(rec)
	if cookie == nil {
		t.Fatal("no refresh cookie set")
	}
	if !cookie.HttpOnly {
		t.Fatal("refresh cookie must be HttpOnly")
	}
	if cookie.Path != "/api/auth" {
		t.Fatalf("cookie path = %q", cookie.Path)
	}

	// The access token is usable immediately.
	sub, err := env.tokens.VerifyAccess(resp.Token)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if sub == "" {
		t.Fatal("empty subject")
	}
}

func TestSignupDuplicateIdentity(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.router, http.MethodPost, "/api/auth/signup", signupBody("bob@example.com", "bob"), nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first signup: status = %d", rec.Code)
	}

	// Same email, different username.
	rec = doJSON(t, env.router, http.MethodPost, "/api/auth/signup", signupBody("bob@example.com", "bob2"), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp errorResponse
	decodeBody(t, rec, &resp)
	if resp.Code != "DUPLICATE_IDENTITY" {
		t.Fatalf("code = %q, want DUPLICATE_IDENTITY", resp.Code)
	}

	// Same username, different email.
	rec = doJSON(t, env.router, http.MethodPost, "/api/auth/signup", signupBody("bob2@example.com", "bob"), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.router, http.MethodPost, "/api/auth/signup", signupBody("carol@example.com", "carol"), nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup: status = %d", rec.Code)
	}

	rec = doJSON(t, env.router, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "carol@example.com",
		"password": "hunter22",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if refreshCookie(rec) == nil {
		t.Fatal("no refresh cookie set on login")
	}

	// Wrong password and unknown email produce the same response shape.
	rec = doJSON(t, env.router, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "carol@example.com",
		"password": "wrong",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("wrong password: status = %d", rec.Code)
	}
	var resp errorResponse
	decodeBody(t, rec, &resp)
	if resp.Code != "INVALID_CREDENTIALS" {
		t.Fatalf("code = %q, want INVALID_CREDENTIALS", resp.Code)
	}

	rec = doJSON(t, env.router, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "nobody@example.com",
		"password": "hunter22",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown email: status = %d", rec.Code)
	}
	decodeBody(t, rec, &resp)
	if resp.Code != "INVALID_CREDENTIALS" {
		t.Fatalf("code = %q, want INVALID_CREDENTIALS", resp.Code)
	}
}

func TestRefreshRotation(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.router, http.MethodPost, "/api/auth/signup", signupBody("dave@example.com", "dave"), nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup: status = %d", rec.Code)
	}
	first := refreshCookie(rec)
	if first == nil {
		t.Fatal("no refresh cookie")
	}

	// Advance the clock so the rotated token carries a later iat.
	env.clock.advance(time.Minute)

	rec = doJSON(t, env.router, http.MethodPost, "/api/auth/refresh-token", nil, func(req *http.Request) {
		req.AddCookie(first)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	second := refreshCookie(rec)
	if second == nil {
		t.Fatal("no rotated refresh cookie")
	}
	if second.Value == first.Value {
		t.Fatal("refresh token was not rotated")
	}

	// Replaying the consumed token must fail.
	rec = doJSON(t, env.router, http.MethodPost, "/api/auth/refresh-token", nil, func(req *http.Request) {
		req.AddCookie(first)
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("replay: status = %d, want 401", rec.Code)
	}
	var resp errorResponse
	decodeBody(t, rec, &resp)
	if resp.Code != "INVALID_TOKEN" {
		t.Fatalf("code = %q, want INVALID_TOKEN", resp.Code)
	}

	// The rotated token is still usable.
	env.clock.advance(time.Minute)
	rec = doJSON(t, env.router, http.MethodPost, "/api/auth/refresh-token", nil, func(req *http.Request) {
		req.AddCookie(second)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("rotated token: status = %d", rec.Code)
	}
}

func TestRefreshWithoutCookie(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.router, http.MethodPost, "/api/auth/refresh-token", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRefreshStoreFailureIsNotUnauthorized(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.router, http.MethodPost, "/api/auth/signup", signupBody("gail@example.com", "gail"), nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup: status = %d", rec.Code)
	}
	cookie := refreshCookie(rec)
	if cookie == nil {
		t.Fatal("no refresh cookie")
	}

	// A store outage during refresh is a server error, not a dead token.
	env.store.mu.Lock()
	env.store.getUserErr = errors.New("connection reset")
	env.store.mu.Unlock()

	rec = doJSON(t, env.router, http.MethodPost, "/api/auth/refresh-token", nil, func(req *http.Request) {
		req.AddCookie(cookie)
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var resp errorResponse
	decodeBody(t, rec, &resp)
	if resp.Code != "INTERNAL_ERROR" {
		t.Fatalf("code = %q, want INTERNAL_ERROR", resp.Code)
	}

	// The token survives the outage and rotates once the store is back.
	env.store.mu.Lock()
	env.store.getUserErr = nil
	env.store.mu.Unlock()

	rec = doJSON(t, env.router, http.MethodPost, "/api/auth/refresh-token", nil, func(req *http.Request) {
		req.AddCookie(cookie)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh after recovery: status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestRefreshExpiredToken(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.router, http.MethodPost, "/api/auth/signup", signupBody("erin@example.com", "erin"), nil)
	cookie := refreshCookie(rec)
	if cookie == nil {
		t.Fatal("no refresh cookie")
	}

	env.clock.advance(8 * 24 * time.Hour)

	rec = doJSON(t, env.router, http.MethodPost, "/api/auth/refresh-token", nil, func(req *http.Request) {
		req.AddCookie(cookie)
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.router, http.MethodPost, "/api/auth/signup", signupBody("frank@example.com", "frank"), nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup: status = %d", rec.Code)
	}
	var resp struct {
		Token string `json:"token"`
	}
	decodeBody(t, rec, &resp)
	cookie := refreshCookie(rec)

	rec = doJSON(t, env.router, http.MethodPost, "/api/auth/logout", nil, func(req *http.Request) {
		req.Header.Set("x-auth-token", resp.Token)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: status = %d", rec.Code)
	}
	cleared := refreshCookie(rec)
	if cleared == nil || cleared.Value != "" {
		t.Fatal("refresh cookie not cleared on logout")
	}

	// The revoked refresh token cannot rotate.
	env.clock.advance(time.Minute)
	rec = doJSON(t, env.router, http.MethodPost, "/api/auth/refresh-token", nil, func(req *http.Request) {
		req.AddCookie(cookie)
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: status = %d, want 401", rec.Code)
	}
}

func TestLogoutRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.router, http.MethodPost, "/api/auth/logout", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestLoginRateLimited(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := security.NewTokenService("a-secret", "r-secret", 15*time.Minute, 7*24*time.Hour, "techfest-test")
	store := newFakeStore()
	limiter := rate.NewMemory(2, time.Minute)

	handler := NewAuthHandler(store, tokens, logger, limiter, security.Argon2Params{
		Memory: 16 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	}, 7*24*time.Hour, "test")

	router := gin.New()
	router.POST("/api/auth/login", handler.Login)

	body := map[string]string{"email": "x@example.com", "password": "whatever"}
	for i := 0; i < 2; i++ {
		rec := doJSON(t, router, http.MethodPost, "/api/auth/login", body, nil)
		if rec.Code == http.StatusTooManyRequests {
			t.Fatalf("request %d rate limited too early", i)
		}
	}

	rec := doJSON(t, router, http.MethodPost, "/api/auth/login", body, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After header")
	}
}
