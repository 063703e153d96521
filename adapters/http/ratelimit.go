package http

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/artpar/routekit/adapters/metrics"
	"github.com/artpar/routekit/core/endpoint"
	"github.com/artpar/routekit/ports"
)

// RateLimitConfig configures per-client token buckets.
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
	// IdleTTL evicts buckets of clients not seen for this long. Default 10m.
	IdleTTL time.Duration
}

// ClientLimiter keeps one token bucket per client address.
type ClientLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	clock   ports.Clock

	mu      sync.Mutex
	clients map[string]*client
	hits    uint64
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewClientLimiter returns nil when rps or burst is not positive.
func NewClientLimiter(cfg RateLimitConfig, clock ports.Clock) *ClientLimiter {
	if cfg.RPS <= 0 || cfg.Burst <= 0 {
		return nil
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	return &ClientLimiter{
		limit:   rate.Limit(cfg.RPS),
		burst:   cfg.Burst,
		idleTTL: cfg.IdleTTL,
		clock:   clock,
		clients: make(map[string]*client),
	}
}

// Allow consumes one token for key. A nil limiter allows everything.
func (l *ClientLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	allowed := c.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.clients {
			if v.lastSeen.Before(cutoff) {
				delete(l.clients, k)
			}
		}
	}
	return allowed
}

// RateLimitMiddleware rejects clients over their budget with 429. It is
// mounted inside the routed group, so the chi pattern is known.
func RateLimitMiddleware(l *ClientLimiter, m *metrics.Collector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.Allow(clientKey(r)) {
				next.ServeHTTP(w, r)
				return
			}
			if m != nil {
				m.ObserveRateLimited(routePattern(r))
			}
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, endpoint.ErrorBody{Message: "Too Many Requests"})
		})
	}
}

// clientKey is the client IP; RealIP runs earlier and rewrites RemoteAddr.
func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
