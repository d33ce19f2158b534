package auth

import (
	"context"
	"sync"
	"time"
)

const DefaultSessionTTL = 7 * 24 * time.Hour

// Session is one authenticated admin login, bound to the client that
// created it.
type Session struct {
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
	IP        string
	UserAgent string
}

// SessionStore holds live admin sessions in memory. A session is valid
// only when presented from the exact IP and User-Agent it was created
// with; any mismatch destroys the session and records a suspected
// hijack.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	ttl      time.Duration
	audit    *AuditLog
}

func NewSessionStore(ttl time.Duration, audit *AuditLog) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		sessions: make(map[string]Session),
		ttl:      ttl,
		audit:    audit,
	}
}

// Create mints a session bound to ip and userAgent and returns its token.
func (s *SessionStore) Create(ip, userAgent string) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	now := time.Now()

	s.mu.Lock()
	s.sessions[token] = Session{
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
		IP:        ip,
		UserAgent: userAgent,
	}
	s.mu.Unlock()
	return token, nil
}

// Validate reports whether token names a live session presented by the
// client it was bound to. Expired sessions are removed on lookup. A
// binding mismatch removes the session immediately, so a stolen token
// is dead even for the original client.
func (s *SessionStore) Validate(token, ip, userAgent string) bool {
	if !validTokenFormat(token) {
		return false
	}

	s.mu.Lock()
	sess, ok := s.sessions[token]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if time.Now().After(sess.ExpiresAt) {
		delete(s.sessions, token)
		s.mu.Unlock()
		return false
	}
	if sess.IP != ip || sess.UserAgent != userAgent {
		delete(s.sessions, token)
		s.mu.Unlock()
		if s.audit != nil {
			// Details are not masked on emission, so mask the bound
			// address here.
			s.audit.Log(EventSessionHijack, ip, userAgent, map[string]string{
				"bound_ip": maskIP(sess.IP),
			})
		}
		return false
	}
	s.mu.Unlock()
	return true
}

// TTL reports the configured session lifetime.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

// Revoke removes a single session. Unknown tokens are a no-op.
func (s *SessionStore) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// RevokeAll drops every live session, for shutdown or incident response.
func (s *SessionStore) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]Session)
}

// Count reports the number of live sessions, expired or not yet swept
// included.
func (s *SessionStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes expired sessions every interval until ctx is done.
func (s *SessionStore) Sweep(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.sweep(time.Now())
		}
	}
}

func (s *SessionStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, token)
		}
	}
}
