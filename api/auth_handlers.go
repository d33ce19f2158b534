package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jmcleod/gatehouse/auth"
)

// Login handles POST /auth. The checks run cheapest-first; every failure
// path returns a generic message so responses never reveal which check
// tripped.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	ip := a.extractClientIP(r)
	userAgent := r.UserAgent()

	if allowed, retryAfter := a.limiter.Check(ip); !allowed {
		a.audit.Log(auth.EventLoginRateLimited, ip, userAgent, nil)
		writeRateLimited(w, retryAfter)
		return
	}

	req, ok := decodeJSON[LoginRequest](w, r, maxLoginBodySize)
	if !ok {
		return
	}

	if !a.csrf.Validate(req.CSRFToken) {
		a.audit.Log(auth.EventInvalidCSRFToken, ip, userAgent, nil)
		writeError(w, http.StatusForbidden, "invalid or expired CSRF token")
		return
	}

	if req.Password == "" || len(req.Password) > auth.MaxPasswordLen {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if a.credential == nil {
		a.audit.Log(auth.EventConfigurationError, ip, userAgent, map[string]string{
			"reason": "admin credential missing or not hashed",
		})
		writeError(w, http.StatusInternalServerError, "authentication unavailable")
		return
	}

	verified, err := a.credential.Verify(req.Password)
	if err != nil {
		a.audit.Log(auth.EventConfigurationError, ip, userAgent, map[string]string{
			"reason": err.Error(),
		})
		writeError(w, http.StatusInternalServerError, "authentication unavailable")
		return
	}

	if !verified {
		a.limiter.RecordFailure(ip)
		a.audit.Log(auth.EventLoginFailure, ip, userAgent, nil)
		// Slow down brute force. No lock is held here, so parallel
		// requests from other clients are unaffected.
		if a.failureDelay > 0 {
			time.Sleep(a.failureDelay)
		}
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	a.limiter.Reset(ip)
	token, err := a.sessions.Create(ip, userAgent)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "session creation failed")
		return
	}
	a.audit.Log(auth.EventLoginSuccess, ip, userAgent, nil)
	a.writeSessionCookie(w, r, token)
	writeJSON(w, http.StatusOK, LoginResponse{Success: true})
}

// AuthStatus handles GET /auth. An authenticated caller gets a fresh
// CSRF token alongside the status so the page can render a logout or
// admin form without a second round trip.
func (a *API) AuthStatus(w http.ResponseWriter, r *http.Request) {
	ip := a.extractClientIP(r)
	userAgent := r.UserAgent()

	cookie, err := r.Cookie(sessionCookieName)
	hadCookie := err == nil && cookie.Value != ""

	if !hadCookie || !a.sessions.Validate(cookie.Value, ip, userAgent) {
		if hadCookie {
			a.audit.Log(auth.EventUnauthorizedAccess, ip, userAgent, nil)
		}
		writeJSON(w, http.StatusOK, AuthStatusResponse{Authenticated: false})
		return
	}

	token, err := a.csrf.Generate()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token generation failed")
		return
	}
	a.writeCSRFCookie(w, r, token)
	writeJSON(w, http.StatusOK, AuthStatusResponse{Authenticated: true, CSRFToken: token})
}

// CSRFToken handles GET /auth/csrf, minting a token for the login form.
func (a *API) CSRFToken(w http.ResponseWriter, r *http.Request) {
	token, err := a.csrf.Generate()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token generation failed")
		return
	}
	a.writeCSRFCookie(w, r, token)
	writeJSON(w, http.StatusOK, CSRFResponse{CSRFToken: token})
}

// Logout handles DELETE /auth. It succeeds and clears cookies whether or
// not the presented session was live.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	ip := a.extractClientIP(r)
	userAgent := r.UserAgent()

	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		a.sessions.Revoke(cookie.Value)
		a.audit.Log(auth.EventLogout, ip, userAgent, nil)
	}
	a.clearSessionCookie(w, r)
	a.clearCSRFCookie(w, r)
	writeJSON(w, http.StatusOK, LoginResponse{Success: true})
}

// ListEvents handles GET /auth/events, a session-gated monitoring view
// over the in-memory audit ring.
func (a *API) ListEvents(w http.ResponseWriter, r *http.Request) {
	ip := a.extractClientIP(r)
	userAgent := r.UserAgent()

	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" || !a.sessions.Validate(cookie.Value, ip, userAgent) {
		if err == nil && cookie.Value != "" {
			a.audit.Log(auth.EventUnauthorizedAccess, ip, userAgent, map[string]string{
				"path": r.URL.Path,
			})
		}
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	events := a.audit.Recent(limit)
	if events == nil {
		events = []auth.Event{}
	}
	writeJSON(w, http.StatusOK, EventsResponse{Events: events})
}
