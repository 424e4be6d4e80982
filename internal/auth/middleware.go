package auth

import (
	"net/http"
	"strings"

	"github.com/fdg312/meal-hub/internal/config"
)

// Middleware: middleware для проверки авторизации
type Middleware struct {
	config  *config.Config
	service *Service
}

func NewMiddleware(cfg *config.Config, service *Service) *Middleware {
	return &Middleware{
		config:  cfg,
		service: service,
	}
}

// Authenticate puts the caller's user id into the request context.
// A Bearer token is always verified when present. Without one the request
// gets the default user, unless AUTH_REQUIRED is on.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
		if authHeader == "" {
			if m.config.AuthRequired || m.config.DefaultUserID == "" {
				writeErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), m.config.DefaultUserID)))
			return
		}

		userID, err := m.authenticateHeader(authHeader)
		if err != nil {
			writeErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

func (m *Middleware) authenticateHeader(authHeader string) (string, error) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrInvalidToken
	}

	return m.service.VerifyJWT(strings.TrimSpace(parts[1]))
}

func isPublicPath(path string) bool {
	return path == "/healthz" || strings.HasPrefix(path, "/v1/auth/")
}
