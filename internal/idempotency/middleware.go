package idempotency

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/fdg312/meal-hub/internal/userctx"
)

const HeaderKey = "Idempotency-Key"

// Middleware rejects a repeated Idempotency-Key with 409 while the first
// request's reservation is alive. A 5xx response releases the key so the
// client may retry.
func Middleware(store Store, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(HeaderKey))
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		key := userctx.Scope(r, r.Method+":"+r.URL.Path+":"+raw)

		ok, err := store.Reserve(r.Context(), key)
		if err != nil {
			// Store unavailable: serve without protection.
			log.Printf("WARN idempotency: reserve failed: %v", err)
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			writeConflict(w)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if rec.status >= http.StatusInternalServerError {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := store.Release(ctx, key); err != nil {
				log.Printf("WARN idempotency: release failed: %v", err)
			}
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeConflict(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusConflict)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":    "duplicate_request",
			"message": "A request with this Idempotency-Key is already being processed or was completed",
		},
	})
}
