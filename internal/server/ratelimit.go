package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdle      = 10 * time.Minute
	limiterSweepSize = 10000
	// a client address may spread this many sessions' worth of traffic
	addressFactor = 4
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// sessionLimiter keeps one token bucket per chat session plus a wider bucket per
// client address. The address bucket is checked first, so rotating session ids
// neither escapes limiting nor grows the table faster than the address allows.
type sessionLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	entries map[string]*limiterEntry
}

// newSessionLimiter returns nil when perSecond is zero, which disables limiting.
func newSessionLimiter(perSecond float64, burst int) *sessionLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &sessionLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		entries: make(map[string]*limiterEntry),
	}
}

// Allow reports whether a request from addr for session sid may proceed. An empty
// sid limits on the address alone.
func (l *sessionLimiter) Allow(sid, addr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if len(l.entries) >= limiterSweepSize {
		for k, e := range l.entries {
			if now.Sub(e.lastSeen) > limiterIdle {
				delete(l.entries, k)
			}
		}
	}
	if !l.take("addr:"+addr, l.limit*addressFactor, l.burst*addressFactor, now) {
		return false
	}
	if sid == "" {
		return true
	}
	return l.take("sid:"+sid, l.limit, l.burst, now)
}

func (l *sessionLimiter) take(key string, limit rate.Limit, burst int, now time.Time) bool {
	e, ok := l.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(limit, burst)}
		l.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid, addr := getSessionID(r), clientAddr(r)
		if !s.limiter.Allow(sid, addr) {
			s.log.Warn().Str("session_id", sid).Str("addr", addr).Str("path", r.URL.Path).Msg("rate limit exceeded")
			w.Header().Set("Retry-After", "1")
			s.writeError(w, http.StatusTooManyRequests, "too many requests, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
