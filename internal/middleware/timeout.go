package middleware

import (
	"net/http"
	"time"
)

// DefaultRequestTimeout leaves room for a full agent turn
const DefaultRequestTimeout = 90 * time.Second

// Timeout bounds a handler with a context deadline and answers 503 if it
// has not responded in time
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, `{"success":false,"error":"Service Unavailable","message":"request timed out"}`)
	}
}
