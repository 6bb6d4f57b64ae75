package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/application/query"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/profile"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/quest"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

// stubAuth is a canned Authenticator for handler tests.
type stubAuth struct {
	sessions map[string]shared.UserID
	profile  *profile.Profile
	revoked  []string
}

func newStubAuth() *stubAuth {
	return &stubAuth{sessions: make(map[string]shared.UserID)}
}

func (a *stubAuth) Login(ctx context.Context, email, password string) (*profile.Profile, string, error) {
	if a.profile == nil || email != string(a.profile.Email) || password != "correct horse" {
		return nil, "", shared.ErrInvalidCredentials
	}
	token := "tok-" + string(a.profile.ID)
	a.sessions[token] = a.profile.ID
	return a.profile, token, nil
}

func (a *stubAuth) Logout(ctx context.Context, token string) error {
	delete(a.sessions, token)
	a.revoked = append(a.revoked, token)
	return nil
}

func (a *stubAuth) Resolve(ctx context.Context, token string) (shared.UserID, error) {
	if id, ok := a.sessions[token]; ok {
		return id, nil
	}
	return "", shared.ErrSessionExpired
}

func testProfile(t *testing.T) *profile.Profile {
	t.Helper()

	email, err := shared.NewEmail("aigerim@example.com")
	require.NoError(t, err)

	p, err := profile.NewProfile(profile.NewProfileParams{
		ID:               shared.UserID("user1"),
		Email:            email,
		PasswordHash:     "$2a$10$notacheckedhashinthesetests",
		DisplayName:      "Aigerim",
		DailyGoalMinutes: 15,
	})
	require.NoError(t, err)
	return p
}

func newTestServer(t *testing.T, auth *stubAuth) *Server {
	t.Helper()

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0

	evaluator := quest.NewEvaluator(quest.DefaultCatalog())

	return NewServer(cfg, Dependencies{
		Auth:                auth,
		GetQuestPathHandler: query.NewGetQuestPathHandler(evaluator, nil, nil, nil, 0),
	})
}

func doRequest(s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) JSONResponse {
	t.Helper()
	var resp JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// ─────────────────────────────────────────────────────────────────────────────
// Auth
// ─────────────────────────────────────────────────────────────────────────────

func TestProtectedEndpointWithoutToken(t *testing.T) {
	s := newTestServer(t, newStubAuth())

	rec := doRequest(s, http.MethodGet, "/api/v1/progress", "", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "unauthorized", resp.Error.Code)
}

func TestProtectedEndpointWithStaleToken(t *testing.T) {
	s := newTestServer(t, newStubAuth())

	rec := doRequest(s, http.MethodGet, "/api/v1/progress", "stale-token", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "session_expired", resp.Error.Code)
}

func TestLoginSuccess(t *testing.T) {
	auth := newStubAuth()
	auth.profile = testProfile(t)
	s := newTestServer(t, auth)

	rec := doRequest(s, http.MethodPost, "/api/v1/auth/login", "",
		`{"email":"aigerim@example.com","password":"correct horse"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "tok-user1", data["token"])

	prof, ok := data["profile"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "user1", prof["id"])
	assert.Equal(t, float64(1), prof["phoenix_phase"])
}

func TestLoginWrongPassword(t *testing.T) {
	auth := newStubAuth()
	auth.profile = testProfile(t)
	s := newTestServer(t, auth)

	rec := doRequest(s, http.MethodPost, "/api/v1/auth/login", "",
		`{"email":"aigerim@example.com","password":"wrong"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid_credentials", resp.Error.Code)
}

func TestLogoutRevokesSession(t *testing.T) {
	auth := newStubAuth()
	auth.sessions["live-token"] = shared.UserID("user1")
	s := newTestServer(t, auth)

	rec := doRequest(s, http.MethodPost, "/api/v1/auth/logout", "live-token", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, auth.revoked, "live-token")

	// The same token no longer works.
	rec = doRequest(s, http.MethodPost, "/api/v1/auth/logout", "live-token", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Quest path
// ─────────────────────────────────────────────────────────────────────────────

func TestGuestPathWithoutToken(t *testing.T) {
	s := newTestServer(t, newStubAuth())

	rec := doRequest(s, http.MethodGet, "/api/v1/path", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, data["guest"])
	assert.Equal(t, float64(1), data["user_phase"])

	phases, ok := data["phases"].([]interface{})
	require.True(t, ok)
	assert.Len(t, phases, 4)
}

func TestPathRejectsStaleToken(t *testing.T) {
	s := newTestServer(t, newStubAuth())

	rec := doRequest(s, http.MethodGet, "/api/v1/path", "stale", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Error mapping & middleware
// ─────────────────────────────────────────────────────────────────────────────

func TestWriteDomainErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"quest not found", shared.ErrQuestNotFound, http.StatusNotFound, "not_found"},
		{"email taken", shared.ErrEmailTaken, http.StatusConflict, "already_exists"},
		{"quest locked", shared.ErrQuestLocked, http.StatusConflict, "invalid_state"},
		{"invalid mood", shared.ErrInvalidMood, http.StatusBadRequest, "invalid_request"},
		{"session expired", shared.ErrSessionExpired, http.StatusUnauthorized, "unauthorized"},
		{"gemini down", shared.ErrGeminiUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeDomainError(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)

			var resp JSONResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestDegradedRecommendationStatus(t *testing.T) {
	tests := []struct {
		name   string
		cause  error
		status int
		reason string
	}{
		{"quota exhausted", shared.ErrGeminiQuotaExhausted, http.StatusPaymentRequired, "quota_exhausted"},
		{"rate limited", shared.ErrGeminiRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{"anything else", shared.ErrGeminiUnavailable, http.StatusInternalServerError, "generation_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, reason := degradedRecommendationStatus(tt.cause)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	s := newTestServer(t, newStubAuth())

	rec := doRequest(s, http.MethodGet, "/health", "", "")

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAuthorizedResponsesAreNoStore(t *testing.T) {
	auth := newStubAuth()
	auth.sessions["live-token"] = shared.UserID("user1")
	s := newTestServer(t, auth)

	rec := doRequest(s, http.MethodPost, "/api/v1/auth/logout", "live-token", "")

	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
}

func TestLocalRateLimiterBlocksOverLimit(t *testing.T) {
	rl := newRateLimiter(3, time.Minute, nil)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow(ctx, "1.2.3.4"))
	}
	assert.False(t, rl.Allow(ctx, "1.2.3.4"))

	// Other keys are unaffected.
	assert.True(t, rl.Allow(ctx, "5.6.7.8"))
}
