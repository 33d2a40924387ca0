package simulator

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	identityKey
)

// RequestID returns the request ID from the context.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Identity returns the caller identity from the context.
func Identity(ctx context.Context) string {
	if v, ok := ctx.Value(identityKey).(string); ok {
		return v
	}
	return "anonymous"
}

// requestIDMiddleware generates a unique request ID, stores it in context
// and echoes it in the x-ms-request-id response header.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		w.Header().Set("x-ms-request-id", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs each request with zerolog.
func loggingMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: 200}

			next.ServeHTTP(sw, r)

			event := logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", sw.status).
				Dur("duration", time.Since(start)).
				Str("request_id", RequestID(r.Context()))
			if v := r.URL.Query().Get("api-version"); v != "" {
				event.Str("api_version", v)
			}
			event.Msg("request")
		})
	}
}

// authPassthroughMiddleware extracts a caller identity hint from the
// Authorization header without validating credentials. ARM requests carry
// a bearer token; blob data-plane requests carry a SharedKey signature.
func authPassthroughMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := "anonymous"
		auth := r.Header.Get("Authorization")
		switch {
		case strings.HasPrefix(auth, "Bearer "):
			identity = "azure-user"
		case strings.HasPrefix(auth, "SharedKey "):
			identity = strings.SplitN(strings.TrimPrefix(auth, "SharedKey "), ":", 2)[0]
		}
		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
