package handlers

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"student-chat/internal/models"
	"student-chat/internal/revocation"
	"student-chat/pkg/logger"
)

type ctxKey int

const (
	userKey ctxKey = iota
	tokenKey
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) revocation.Result
}

// RequireAuth rejects requests without a valid, unrevoked bearer token and
// stores the user and raw token on the request context.
func RequireAuth(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, models.ErrorAuth, "missing token")
				return
			}

			user, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				logger.Debug("Rejected request to %s: %v", r.URL.Path, err)
				writeError(w, http.StatusUnauthorized, models.ErrorAuth, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			ctx = context.WithValue(ctx, tokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimit applies a fixed-window limit per client IP. Run it behind
// chi's RealIP so proxies are accounted for.
func RateLimit(limiter RateLimiter, scope string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := limiter.Allow(r.Context(), scope+":"+clientIP(r), limit, window)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			if !res.Allowed {
				retry := int(res.RetryAfter.Round(time.Second) / time.Second)
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				writeError(w, http.StatusTooManyRequests, models.ErrorRateLimited, "too many requests, please try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func userFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey).(*models.User)
	return u, ok
}

func tokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey).(string)
	return t
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error writing response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, errType models.ErrorType, message string) {
	writeJSON(w, status, models.ErrorPayload{Type: errType, Message: message})
}
