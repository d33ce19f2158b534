package auth

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultCSRFTTL = time.Hour

	// csrfMaxLive caps the number of outstanding tokens. Generating past
	// the cap purges expired tokens first so an unauthenticated client
	// hammering the token endpoint cannot grow the map without bound.
	csrfMaxLive = 10_000
)

// CSRFTokenStore issues single-use anti-forgery tokens. A token is
// consumed on its first validation whatever the outcome, so a replayed
// form submission always fails.
type CSRFTokenStore struct {
	mu     sync.Mutex
	tokens map[string]time.Time
	ttl    time.Duration
}

func NewCSRFTokenStore(ttl time.Duration) *CSRFTokenStore {
	if ttl <= 0 {
		ttl = DefaultCSRFTTL
	}
	return &CSRFTokenStore{
		tokens: make(map[string]time.Time),
		ttl:    ttl,
	}
}

// Generate mints and registers a new token.
func (s *CSRFTokenStore) Generate() (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tokens) >= csrfMaxLive {
		s.purgeExpiredLocked(time.Now())
	}
	s.tokens[token] = time.Now().Add(s.ttl)
	return token, nil
}

// Validate consumes token and reports whether it was live. Expired and
// unknown tokens fail; either way the token is gone afterwards.
func (s *CSRFTokenStore) Validate(token string) bool {
	if !validTokenFormat(token) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.tokens[token]
	if !ok {
		return false
	}
	delete(s.tokens, token)
	return time.Now().Before(expiry)
}

// TTL reports the configured token lifetime.
func (s *CSRFTokenStore) TTL() time.Duration {
	return s.ttl
}

// Len reports the number of outstanding tokens.
func (s *CSRFTokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// Sweep purges expired tokens every interval until ctx is done.
func (s *CSRFTokenStore) Sweep(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.mu.Lock()
			s.purgeExpiredLocked(time.Now())
			s.mu.Unlock()
		}
	}
}

func (s *CSRFTokenStore) purgeExpiredLocked(now time.Time) {
	for token, expiry := range s.tokens {
		if now.After(expiry) {
			delete(s.tokens, token)
		}
	}
}
