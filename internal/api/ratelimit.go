package api

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rateLimitConfig controls the per-IP token buckets. SweepEvery and IdleTTL
// bound how long buckets for idle clients survive before they are reaped.
type rateLimitConfig struct {
	RefillPerSec float64
	Burst        int
	SweepEvery   time.Duration
	IdleTTL      time.Duration
}

func (c rateLimitConfig) withDefaults() rateLimitConfig {
	if c.RefillPerSec <= 0 {
		c.RefillPerSec = 1.0
	}
	if c.Burst <= 0 {
		c.Burst = 60
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = 2 * time.Minute
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = 3 * c.SweepEvery
	}
	return c
}

// ipLimiter hands out one token bucket per client IP. Idle buckets are swept
// opportunistically while the lock is already held, so there is no background
// goroutine to stop on shutdown.
type ipLimiter struct {
	cfg rateLimitConfig

	mu        sync.Mutex
	buckets   map[string]*ipBucket
	nextSweep time.Time
}

type ipBucket struct {
	tokens   *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(cfg rateLimitConfig) *ipLimiter {
	cfg = cfg.withDefaults()
	return &ipLimiter{
		cfg:       cfg,
		buckets:   make(map[string]*ipBucket),
		nextSweep: time.Now().Add(cfg.SweepEvery),
	}
}

// allow reports whether a request from ip may proceed.
func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.After(l.nextSweep) {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > l.cfg.IdleTTL {
				delete(l.buckets, k)
			}
		}
		l.nextSweep = now.Add(l.cfg.SweepEvery)
	}

	b, ok := l.buckets[ip]
	if !ok {
		b = &ipBucket{tokens: rate.NewLimiter(rate.Limit(l.cfg.RefillPerSec), l.cfg.Burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = now
	return b.tokens.Allow()
}

// rateLimitMiddleware rejects requests that exhaust their IP's token bucket
// with 429 and a Retry-After hint.
func rateLimitMiddleware(l *ipLimiter, trustProxy bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trustProxy)
			if !l.allow(ip) {
				logger.Warn("rate limit exceeded",
					"ip", ip,
					"path", r.URL.Path,
					"method", r.Method,
				)
				w.Header().Set("Retry-After", "1")
				WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP resolves the address the limiter keys on. Proxy headers are only
// honored when trustProxy is set, and only when they parse as real IPs, so a
// client cannot mint fresh buckets by sending arbitrary header values.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		for _, h := range []string{"X-Real-IP", "X-Forwarded-For"} {
			v := r.Header.Get(h)
			if v == "" {
				continue
			}
			// X-Forwarded-For may carry a chain; the first hop is the client.
			if first, _, ok := strings.Cut(v, ","); ok {
				v = first
			}
			if ip := net.ParseIP(strings.TrimSpace(v)); ip != nil {
				return ip.String()
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
