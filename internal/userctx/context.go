// Package userctx carries the authenticated user id through request contexts.
package userctx

import (
	"context"
	"net/http"
	"strings"
)

type contextKey struct{}

var userIDKey contextKey

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok
}

// FromRequest returns the user id of r. A blank id counts as missing.
func FromRequest(r *http.Request) (string, bool) {
	userID, ok := GetUserID(r.Context())
	if !ok || strings.TrimSpace(userID) == "" {
		return "", false
	}
	return userID, true
}

// Scope prefixes key with the request's user id so per-user keys never collide.
// Anonymous requests share the "anonymous" scope.
func Scope(r *http.Request, key string) string {
	userID, ok := FromRequest(r)
	if !ok {
		userID = "anonymous"
	}
	return userID + ":" + key
}
