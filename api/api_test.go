package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/gatehouse/api"
	"github.com/jmcleod/gatehouse/auth"
)

const testPassword = "correct horse battery staple"

type testEnv struct {
	srv   *httptest.Server
	audit *auth.AuditLog
}

func setupServer(t *testing.T, opts ...api.Option) *testEnv {
	t.Helper()

	hash, err := auth.HashPassword(testPassword)
	require.NoError(t, err)
	cred, err := auth.NewAdminCredential(hash)
	require.NoError(t, err)

	return setupServerWithCredential(t, cred, opts...)
}

func setupServerWithCredential(t *testing.T, cred *auth.AdminCredential, opts ...api.Option) *testEnv {
	t.Helper()

	audit := auth.NewAuditLog(slog.New(slog.NewTextHandler(io.Discard, nil)))
	sessions := auth.NewSessionStore(auth.DefaultSessionTTL, audit)
	csrf := auth.NewCSRFTokenStore(auth.DefaultCSRFTTL)
	limiter := auth.NewRateLimiter(auth.DefaultRateLimitMaxAttempts, auth.DefaultRateLimitWindow, auth.DefaultRateLimitBlock)

	opts = append([]api.Option{api.WithFailureDelay(0)}, opts...)
	a := api.New(cred, sessions, csrf, limiter, audit, opts...)

	r := chi.NewRouter()
	r.Mount("/", a.Router())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, audit: audit}
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, header map[string]string) *http.Response {
	t.Helper()
	var reqBody bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reqBody).Encode(body))
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, &reqBody)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func fetchCSRFToken(t *testing.T, client *http.Client, baseURL string) string {
	t.Helper()
	resp := doJSON(t, client, http.MethodGet, baseURL+"/auth/csrf", nil, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out api.CSRFResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.CSRFToken, 64)
	return out.CSRFToken
}

func login(t *testing.T, client *http.Client, baseURL, password string) *http.Response {
	t.Helper()
	token := fetchCSRFToken(t, client, baseURL)
	return doJSON(t, client, http.MethodPost, baseURL+"/auth", api.LoginRequest{
		Password:  password,
		CSRFToken: token,
	}, nil)
}

func TestLoginFlow(t *testing.T) {
	env := setupServer(t)
	client := newClient(t)

	// Before login, the status endpoint reports unauthenticated.
	resp := doJSON(t, client, http.MethodGet, env.srv.URL+"/auth", nil, nil)
	var status api.AuthStatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.False(t, status.Authenticated)

	resp = login(t, client, env.srv.URL, testPassword)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var loginOut api.LoginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&loginOut))
	assert.True(t, loginOut.Success)

	// The session cookie now authenticates the status check, which also
	// hands out a fresh CSRF token.
	resp = doJSON(t, client, http.MethodGet, env.srv.URL+"/auth", nil, nil)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.True(t, status.Authenticated)
	assert.Len(t, status.CSRFToken, 64)

	events := env.audit.ByType(auth.EventLoginSuccess)
	require.Len(t, events, 1)
	assert.Equal(t, "127.0.0.1", events[0].IP)
}

func TestLoginWrongPassword(t *testing.T) {
	env := setupServer(t)
	client := newClient(t)

	resp := login(t, client, env.srv.URL, "wrong password")
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var out api.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "invalid credentials", out.Error)

	require.Len(t, env.audit.ByType(auth.EventLoginFailure), 1)
}

func TestLoginCSRFRequired(t *testing.T) {
	env := setupServer(t)
	client := newClient(t)

	t.Run("missing token", func(t *testing.T) {
		resp := doJSON(t, client, http.MethodPost, env.srv.URL+"/auth", api.LoginRequest{
			Password: testPassword,
		}, nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("unknown token", func(t *testing.T) {
		resp := doJSON(t, client, http.MethodPost, env.srv.URL+"/auth", api.LoginRequest{
			Password:  testPassword,
			CSRFToken: strings.Repeat("ab", 32),
		}, nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("replayed token", func(t *testing.T) {
		token := fetchCSRFToken(t, client, env.srv.URL)

		resp := doJSON(t, client, http.MethodPost, env.srv.URL+"/auth", api.LoginRequest{
			Password:  testPassword,
			CSRFToken: token,
		}, nil)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		// Same token again: consumed on first use.
		resp = doJSON(t, client, http.MethodPost, env.srv.URL+"/auth", api.LoginRequest{
			Password:  testPassword,
			CSRFToken: token,
		}, nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	assert.NotEmpty(t, env.audit.ByType(auth.EventInvalidCSRFToken))
}

func TestLoginRejectsBadShape(t *testing.T) {
	env := setupServer(t)
	client := newClient(t)

	t.Run("empty password", func(t *testing.T) {
		resp := login(t, client, env.srv.URL, "")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("oversized password", func(t *testing.T) {
		resp := login(t, client, env.srv.URL, strings.Repeat("a", 300))
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("malformed body", func(t *testing.T) {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, env.srv.URL+"/auth", strings.NewReader("{not json"))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestLoginRateLimited(t *testing.T) {
	env := setupServer(t)
	client := newClient(t)

	// Drive the failure count over the threshold.
	for i := 0; i < auth.DefaultRateLimitMaxAttempts; i++ {
		resp := login(t, client, env.srv.URL, "wrong password")
		resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "attempt %d", i+1)
	}

	// The next attempt is blocked before credentials are even read.
	resp := login(t, client, env.srv.URL, testPassword)
	defer resp.Body.Close()
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	var out api.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Greater(t, out.RetryAfter, 3500)
	assert.LessOrEqual(t, out.RetryAfter, 3600)

	require.NotEmpty(t, env.audit.ByType(auth.EventLoginRateLimited))
}

func TestSessionBindingHijack(t *testing.T) {
	env := setupServer(t)
	client := newClient(t)

	resp := login(t, client, env.srv.URL, testPassword)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Same cookie presented with a different User-Agent.
	resp = doJSON(t, client, http.MethodGet, env.srv.URL+"/auth", nil, map[string]string{
		"User-Agent": "Stolen-Browser/1.0",
	})
	var status api.AuthStatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.False(t, status.Authenticated)

	// The mismatch destroyed the session; the original client is
	// logged out too.
	resp = doJSON(t, client, http.MethodGet, env.srv.URL+"/auth", nil, nil)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.False(t, status.Authenticated)

	require.Len(t, env.audit.ByType(auth.EventSessionHijack), 1)
}

func TestLogout(t *testing.T) {
	env := setupServer(t)
	client := newClient(t)

	resp := login(t, client, env.srv.URL, testPassword)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, client, http.MethodDelete, env.srv.URL+"/auth", nil, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status api.AuthStatusResponse
	resp = doJSON(t, client, http.MethodGet, env.srv.URL+"/auth", nil, nil)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.False(t, status.Authenticated)

	require.Len(t, env.audit.ByType(auth.EventLogout), 1)

	// Logging out again without a session still succeeds.
	resp = doJSON(t, client, http.MethodDelete, env.srv.URL+"/auth", nil, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMisconfiguredCredentialFailsClosed(t *testing.T) {
	env := setupServerWithCredential(t, nil)
	client := newClient(t)

	resp := login(t, client, env.srv.URL, testPassword)
	defer resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var out api.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "authentication unavailable", out.Error)

	require.Len(t, env.audit.ByType(auth.EventConfigurationError), 1)
}

func TestEventsEndpoint(t *testing.T) {
	env := setupServer(t)
	client := newClient(t)

	// Unauthenticated callers are rejected.
	resp := doJSON(t, client, http.MethodGet, env.srv.URL+"/auth/events", nil, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = login(t, client, env.srv.URL, testPassword)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, client, http.MethodGet, env.srv.URL+"/auth/events", nil, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out api.EventsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.Events)
	assert.Equal(t, auth.EventLoginSuccess, out.Events[0].Type, "newest first")

	// limit caps the result.
	resp = doJSON(t, client, http.MethodGet, env.srv.URL+"/auth/events?limit=1", nil, nil)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Len(t, out.Events, 1)

	resp = doJSON(t, client, http.MethodGet, env.srv.URL+"/auth/events?limit=bogus", nil, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSecurityHeaders(t *testing.T) {
	env := setupServer(t)
	client := newClient(t)

	resp := doJSON(t, client, http.MethodGet, env.srv.URL+"/auth", nil, nil)
	defer resp.Body.Close()

	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", resp.Header.Get("Referrer-Policy"))
	assert.NotEmpty(t, resp.Header.Get("Content-Security-Policy"))
	assert.NotEmpty(t, resp.Header.Get("Permissions-Policy"))
	assert.Empty(t, resp.Header.Get("Strict-Transport-Security"), "no HSTS on plain HTTP outside production")
}

func TestCSRFCookieSet(t *testing.T) {
	env := setupServer(t)
	client := newClient(t)

	resp := doJSON(t, client, http.MethodGet, env.srv.URL+"/auth/csrf", nil, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var found *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "csrf_token" {
			found = c
		}
	}
	require.NotNil(t, found, "csrf_token cookie should be set")
	assert.False(t, found.HttpOnly, "page script must be able to read the CSRF cookie")
	assert.Equal(t, http.SameSiteStrictMode, found.SameSite)
}
