// Package apperr defines the error kinds shared by services and handlers.
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrStore      = errors.New("store failure")
	ErrThrottled  = errors.New("throttled")
)

// Error carries a kind sentinel, a client-safe message and the underlying cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func Validation(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) error {
	return &Error{Kind: ErrForbidden, Message: fmt.Sprintf(format, args...)}
}

func Throttled(format string, args ...any) error {
	return &Error{Kind: ErrThrottled, Message: fmt.Sprintf(format, args...)}
}

// Store wraps a backend failure; the cause is logged, never sent to clients.
func Store(op string, err error) error {
	return &Error{Kind: ErrStore, Message: op, Err: err}
}

// Message returns the client-safe message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// Status maps err to an HTTP status and error code.
func Status(err error) (int, string) {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, ErrThrottled):
		return http.StatusTooManyRequests, "rate_limited"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// WriteHTTP writes err as {"error":{"code","message"}}. Internal errors are
// logged and replaced by fallback.
func WriteHTTP(w http.ResponseWriter, err error, fallback string) {
	status, code := Status(err)
	message := Message(err)
	if status == http.StatusInternalServerError {
		log.Printf("ERROR %s: %v", fallback, err)
		message = fallback
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
