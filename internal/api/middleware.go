package api

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/erazemk/najdeno/internal/auth"
	"github.com/erazemk/najdeno/internal/model"
)

type contextKey string

const tokenKey contextKey = "token"

// AuthMiddleware validates the bearer token, rejects revoked tokens and
// adds the token claims to the request context.
func AuthMiddleware(v *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, err := auth.BearerToken(r.Header.Get("Authorization"))
			if err != nil {
				jsonError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}

			tc, err := v.Verify(r.Context(), tokenStr)
			switch {
			case errors.Is(err, auth.ErrRevoked):
				jsonError(w, http.StatusUnauthorized, "token has been revoked")
				return
			case errors.Is(err, auth.ErrInvalidToken):
				jsonError(w, http.StatusUnauthorized, "invalid token")
				return
			case err != nil:
				slog.Error("verifying token", "error", err)
				jsonError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
				return
			}

			ctx := context.WithValue(r.Context(), tokenKey, tc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole returns middleware that checks if the user has at least the given role.
func RequireRole(minimum string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tc := TokenFrom(r.Context())
			if tc == nil {
				jsonError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			if !model.RoleAtLeast(tc.Role, minimum) {
				jsonError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TokenFrom retrieves the caller's token claims from the context.
func TokenFrom(ctx context.Context) *auth.TokenClaims {
	tc, _ := ctx.Value(tokenKey).(*auth.TokenClaims)
	return tc
}

// actor returns the authenticated caller. Routes using it sit behind
// AuthMiddleware.
func actor(r *http.Request) model.Actor {
	if tc := TokenFrom(r.Context()); tc != nil {
		return tc.Actor()
	}
	return model.Actor{}
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack passes through to the underlying writer so the live endpoint can
// take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// LoggingMiddleware logs HTTP requests with method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.RequestURI(),
			"status", rec.status,
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}
