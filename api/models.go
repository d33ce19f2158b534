package api

import "github.com/jmcleod/gatehouse/auth"

// LoginRequest is the POST /auth body.
type LoginRequest struct {
	Password  string `json:"password"`
	CSRFToken string `json:"csrfToken"`
}

// LoginResponse acknowledges a successful login or logout.
type LoginResponse struct {
	Success bool `json:"success"`
}

// AuthStatusResponse is the GET /auth body. CSRFToken is present only
// when authenticated.
type AuthStatusResponse struct {
	Authenticated bool   `json:"authenticated"`
	CSRFToken     string `json:"csrfToken,omitempty"`
}

// CSRFResponse is the GET /auth/csrf body.
type CSRFResponse struct {
	CSRFToken string `json:"csrfToken"`
}

// EventsResponse is the GET /auth/events body.
type EventsResponse struct {
	Events []auth.Event `json:"events"`
}

// ErrorResponse is the uniform error body. RetryAfter is set only on
// rate-limited responses, in seconds.
type ErrorResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}
