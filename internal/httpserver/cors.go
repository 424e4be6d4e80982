package httpserver

import (
	"net/http"
	"strings"

	"github.com/fdg312/meal-hub/internal/config"
)

var (
	corsMethods = []string{
		http.MethodGet, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions,
	}
	corsRequestHeaders = []string{"Authorization", "Content-Type", "Idempotency-Key"}
	// Export downloads carry a file name; throttled clients read Retry-After.
	corsExposedHeaders = []string{"Content-Disposition", "Retry-After"}
)

const corsMaxAge = "600"

// corsPolicy is the browser access policy of the API.
type corsPolicy struct {
	origins     map[string]bool
	credentials bool
}

func newCORSPolicy(cfg *config.Config) corsPolicy {
	p := corsPolicy{
		origins:     make(map[string]bool, len(cfg.CORSAllowedOrigins)),
		credentials: cfg.CORSAllowCredentials,
	}
	for _, o := range cfg.CORSAllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			p.origins[o] = true
		}
	}
	return p
}

func (p corsPolicy) allows(origin string) bool {
	return origin != "" && p.origins[origin]
}

func (p corsPolicy) grant(h http.Header, origin string) {
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Expose-Headers", strings.Join(corsExposedHeaders, ","))
	if p.credentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
}

// CORSMiddleware answers preflights itself and decorates other responses for
// allowed origins. Preflights from other origins get a bare 204.
func CORSMiddleware(cfg *config.Config, next http.Handler) http.Handler {
	policy := newCORSPolicy(cfg)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Add("Vary", "Origin")
		allowed := policy.allows(origin)
		if allowed {
			policy.grant(h, origin)
		}

		if r.Method != http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if allowed {
			h.Set("Access-Control-Allow-Methods", strings.Join(corsMethods, ","))
			h.Set("Access-Control-Allow-Headers", strings.Join(corsRequestHeaders, ","))
			h.Set("Access-Control-Max-Age", corsMaxAge)
		}
		w.WriteHeader(http.StatusNoContent)
	})
}
