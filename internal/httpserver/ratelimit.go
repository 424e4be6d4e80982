package httpserver

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fdg312/meal-hub/internal/apperr"
	"github.com/fdg312/meal-hub/internal/config"
	"golang.org/x/time/rate"
)

// clientIdleTTL is how long a client's bucket survives without requests.
const clientIdleTTL = 5 * time.Minute

// routeCost charges routes that render files or rebuild a whole list more
// than one token. Costs are capped at the burst size.
var routeCost = map[string]int{
	"POST /v1/exports":                 5,
	"POST /v1/shopping-list/reconcile": 5,
}

type clientBucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

// clientLimiter keeps one token bucket per client address.
type clientLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*clientBucket
	limit     rate.Limit
	burst     int
	nextSweep time.Time
	now       func() time.Time
}

func newClientLimiter(rps, burst int) *clientLimiter {
	return &clientLimiter{
		buckets: make(map[string]*clientBucket),
		limit:   rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
	}
}

// allow charges cost tokens to client and reports whether the request may proceed.
func (l *clientLimiter) allow(client string, cost int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.After(l.nextSweep) {
		l.sweep(now)
		l.nextSweep = now.Add(clientIdleTTL)
	}

	b, ok := l.buckets[client]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[client] = b
	}
	b.seen = now
	return b.limiter.AllowN(now, min(cost, l.burst))
}

func (l *clientLimiter) sweep(now time.Time) {
	for client, b := range l.buckets {
		if now.Sub(b.seen) > clientIdleTTL {
			delete(l.buckets, client)
		}
	}
}

func requestCost(r *http.Request) int {
	if cost, ok := routeCost[r.Method+" "+r.URL.Path]; ok {
		return cost
	}
	return 1
}

// RateLimitMiddleware throttles each client address with a token bucket.
// Export and reconcile requests cost more. /healthz is never throttled.
// RateLimitRPS <= 0 disables the middleware.
func RateLimitMiddleware(cfg *config.Config, next http.Handler) http.Handler {
	if cfg.RateLimitRPS <= 0 {
		return next
	}

	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = cfg.RateLimitRPS
	}
	limiter := newClientLimiter(cfg.RateLimitRPS, burst)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		if !limiter.allow(clientAddr(r), requestCost(r)) {
			w.Header().Set("Retry-After", "1")
			apperr.WriteHTTP(w, apperr.Throttled("Too many requests"), "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientAddr returns the first X-Forwarded-For hop, or the peer host.
func clientAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if addr := strings.TrimSpace(first); addr != "" {
			return addr
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
