// Package ratelimit implements a process-local fixed-window counter keyed by
// arbitrary strings such as "login:<ip>" or "pwd:<userID>".
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Rule is a (limit, window) pair for one kind of action.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
}

var (
	Login          = Rule{Name: "login", Limit: 8, Window: time.Minute}
	PasswordChange = Rule{Name: "pwd", Limit: 6, Window: time.Minute}
	AdminReset     = Rule{Name: "admin-reset", Limit: 10, Window: time.Minute}
	AdminCreate    = Rule{Name: "admin-create", Limit: 6, Window: time.Minute}
)

// Key builds the limiter key for subject under r, e.g. "login:10.0.0.1".
func (r Rule) Key(subject string) string {
	return r.Name + ":" + subject
}

type Clock func() time.Time

type Result struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type entry struct {
	count   int
	resetAt time.Time
}

type Limiter struct {
	mu      sync.Mutex
	now     Clock
	entries map[string]*entry
}

func New(clock Clock) *Limiter {
	if clock == nil {
		clock = time.Now
	}
	return &Limiter{now: clock, entries: make(map[string]*entry)}
}

// Check records one event for key and reports whether it fits in the
// current window.
func (l *Limiter) Check(key string, limit int, window time.Duration) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok || !e.resetAt.After(now) {
		resetAt := now.Add(window)
		l.entries[key] = &entry{count: 1, resetAt: resetAt}
		return Result{Allowed: true, Remaining: limit - 1, ResetAt: resetAt, RetryAfter: window}
	}

	if e.count >= limit {
		return Result{Allowed: false, Remaining: 0, ResetAt: e.resetAt, RetryAfter: e.resetAt.Sub(now)}
	}

	e.count++
	return Result{Allowed: true, Remaining: limit - e.count, ResetAt: e.resetAt, RetryAfter: e.resetAt.Sub(now)}
}

// Allow is Check with the limits taken from rule.
func (l *Limiter) Allow(rule Rule, subject string) Result {
	return l.Check(rule.Key(subject), rule.Limit, rule.Window)
}

// Sweep drops entries whose window has already closed and returns how many
// were removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for k, e := range l.entries {
		if !e.resetAt.After(now) {
			delete(l.entries, k)
			removed++
		}
	}
	return removed
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// ClientIP takes the first X-Forwarded-For hop, then X-Real-IP, then the
// connection's remote host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		if r.RemoteAddr == "" {
			return "unknown"
		}
		return r.RemoteAddr
	}
	return host
}
