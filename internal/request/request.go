// Package request holds helpers shared by middleware and handlers for
// reading per-request metadata.
package request

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// RequestIDHeader carries the caller's correlation id
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLength = 128

// ClientIP extracts the client IP from the request, respecting X-Forwarded-For and X-Real-IP.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return r.RemoteAddr
}

// RequestID returns the caller-supplied request id, or a fresh one when it is
// missing or unreasonably long
func RequestID(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
	if id == "" || len(id) > maxRequestIDLength {
		return uuid.NewString()
	}
	return id
}
