package auth

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jmcleod/gatehouse/internal/uuid"
)

// EventType identifies a class of security-relevant event.
type EventType string

const (
	EventLoginSuccess       EventType = "login_success"
	EventLoginFailure       EventType = "login_failure"
	EventLoginRateLimited   EventType = "login_rate_limited"
	EventInvalidCSRFToken   EventType = "invalid_csrf_token"
	EventUnauthorizedAccess EventType = "unauthorized_access"
	EventLogout             EventType = "logout"
	EventSessionHijack      EventType = "session_hijack_suspected"
	EventConfigurationError EventType = "configuration_error"
)

// Severity ranks an event for log level and sink routing.
type Severity string

const (
	SeverityInfo   Severity = "info"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

var eventSeverity = map[EventType]Severity{
	EventLoginSuccess:       SeverityInfo,
	EventLogout:             SeverityInfo,
	EventLoginFailure:       SeverityMedium,
	EventLoginRateLimited:   SeverityMedium,
	EventInvalidCSRFToken:   SeverityMedium,
	EventUnauthorizedAccess: SeverityMedium,
	EventSessionHijack:      SeverityHigh,
	EventConfigurationError: SeverityHigh,
}

// SeverityOf returns the severity for t, defaulting unknown types to
// medium so a new event type is never silently dropped to info.
func SeverityOf(t EventType) Severity {
	if s, ok := eventSeverity[t]; ok {
		return s
	}
	return SeverityMedium
}

// Event is one recorded security event. IP is stored as captured; it is
// masked only on copies leaving the process.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Severity  Severity          `json:"severity"`
	Timestamp time.Time         `json:"timestamp"`
	IP        string            `json:"ip"`
	UserAgent string            `json:"userAgent,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// Masked returns a copy of e with the IP partially redacted, suitable
// for emission to external sinks.
func (e Event) Masked() Event {
	e.IP = maskIP(e.IP)
	return e
}

// Sink receives events that leave the process. Implementations must not
// block for long; Log calls Emit synchronously outside the ring lock.
type Sink interface {
	Emit(Event)
}

// AuditLog keeps the most recent events in a fixed-size ring and
// forwards a masked copy of each to slog and any configured sinks.
type AuditLog struct {
	mu     sync.Mutex
	events []Event
	next   int
	full   bool

	logger *slog.Logger
	sinks  []Sink
}

const DefaultAuditCapacity = 1000

type AuditOption func(*AuditLog)

// WithSink adds an external sink. Sinks receive masked copies.
func WithSink(s Sink) AuditOption {
	return func(a *AuditLog) { a.sinks = append(a.sinks, s) }
}

// WithCapacity overrides the ring size.
func WithCapacity(n int) AuditOption {
	return func(a *AuditLog) {
		if n > 0 {
			a.events = make([]Event, n)
		}
	}
}

func NewAuditLog(logger *slog.Logger, opts ...AuditOption) *AuditLog {
	if logger == nil {
		logger = slog.Default()
	}
	a := &AuditLog{
		events: make([]Event, DefaultAuditCapacity),
		logger: logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Log records an event and emits its masked form. The ring append holds
// the lock; emission does not, so a slow sink never stalls recording.
func (a *AuditLog) Log(t EventType, ip, userAgent string, details map[string]string) {
	e := Event{
		ID:        uuid.New(),
		Type:      t,
		Severity:  SeverityOf(t),
		Timestamp: time.Now().UTC(),
		IP:        ip,
		UserAgent: userAgent,
		Details:   details,
	}

	a.mu.Lock()
	a.events[a.next] = e
	a.next++
	if a.next == len(a.events) {
		a.next = 0
		a.full = true
	}
	a.mu.Unlock()

	a.emit(e.Masked())
}

func (a *AuditLog) emit(e Event) {
	level := slog.LevelInfo
	switch e.Severity {
	case SeverityMedium:
		level = slog.LevelWarn
	case SeverityHigh:
		level = slog.LevelError
	}
	attrs := []any{
		slog.String("event_id", e.ID),
		slog.String("event_type", string(e.Type)),
		slog.String("severity", string(e.Severity)),
		slog.String("ip", e.IP),
	}
	if e.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", e.UserAgent))
	}
	for k, v := range e.Details {
		attrs = append(attrs, slog.String(k, v))
	}
	a.logger.Log(context.Background(), level, "security event", attrs...)

	for _, s := range a.sinks {
		s.Emit(e)
	}
}

// Recent returns up to limit events, newest first. limit <= 0 returns
// everything retained.
func (a *AuditLog) Recent(limit int) []Event {
	a.mu.Lock()
	defer a.mu.Unlock()

	all := a.orderedLocked()
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

// ByType returns retained events of type t, newest first.
func (a *AuditLog) ByType(t EventType) []Event {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []Event
	for _, e := range a.orderedLocked() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// FailedLoginCount counts retained login failures from ip since the
// given time.
func (a *AuditLog) FailedLoginCount(ip string, since time.Time) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for _, e := range a.orderedLocked() {
		if e.Type == EventLoginFailure && e.IP == ip && !e.Timestamp.Before(since) {
			n++
		}
	}
	return n
}

// orderedLocked flattens the ring newest-first. Caller holds mu.
func (a *AuditLog) orderedLocked() []Event {
	n := a.next
	if a.full {
		n = len(a.events)
	}
	out := make([]Event, 0, n)
	for i := a.next - 1; i >= 0; i-- {
		out = append(out, a.events[i])
	}
	if a.full {
		for i := len(a.events) - 1; i >= a.next; i-- {
			out = append(out, a.events[i])
		}
	}
	return out
}

// maskIP redacts the last octet of an IPv4 address or the last segment
// of an IPv6 address. Anything unrecognizable is masked entirely.
func maskIP(ip string) string {
	if ip == "" {
		return ""
	}
	if i := strings.LastIndexByte(ip, '.'); i >= 0 {
		return ip[:i] + ".x"
	}
	if i := strings.LastIndexByte(ip, ':'); i >= 0 {
		return ip[:i] + ":x"
	}
	return "x"
}
