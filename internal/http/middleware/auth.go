// Package middleware carries the HTTP concerns specific to this API:
// scanner session auth and the redis-backed scan rate limit.
package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mesalista/venue-checkin/internal/http/response"
	"github.com/mesalista/venue-checkin/internal/platform/cache"
	"github.com/mesalista/venue-checkin/pkg/auth"
	"github.com/mesalista/venue-checkin/pkg/logger"
)

type contextKey string

const claimsKey contextKey = "claims"

// RequireSession authenticates the bearer token and stashes the claims and
// business id on the request context. Scanner clients may also pass the
// token via ?session_token for QR-embedded links.
func RequireSession(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("Authorization")
			if strings.HasPrefix(token, "Bearer ") {
				token = strings.TrimPrefix(token, "Bearer ")
			} else {
				token = r.URL.Query().Get("session_token")
			}
			if token == "" {
				response.Error(w, http.StatusUnauthorized, "missing session token", response.CodeUnauthorized)
				return
			}

			claims, err := auth.Parse(token, secret)
			if err != nil {
				response.Error(w, http.StatusUnauthorized, "invalid session token", response.CodeUnauthorized)
				return
			}
			if claims.BusinessID == "" {
				response.Error(w, http.StatusUnauthorized, "session is not bound to a business", response.CodeUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = context.WithValue(ctx, logger.BusinessIDKey, claims.BusinessID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFrom retrieves the authenticated claims placed by RequireSession.
func ClaimsFrom(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(claimsKey).(*auth.Claims)
	return c
}

// BusinessIDFrom retrieves the tenant of the authenticated session.
func BusinessIDFrom(ctx context.Context) string {
	if c := ClaimsFrom(ctx); c != nil {
		return c.BusinessID
	}
	return ""
}

// RateLimit applies the shared token bucket per client IP and business.
func RateLimit(limiter *cache.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			if biz := BusinessIDFrom(r.Context()); biz != "" {
				key = biz + ":" + key
			}

			d := limiter.Allow(r.Context(), key)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Capacity()))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
			if !d.Allowed {
				secs := int(d.RetryAfter / time.Second)
				if d.RetryAfter%time.Second != 0 {
					secs++
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				response.Error(w, http.StatusTooManyRequests, "rate limit exceeded", response.CodeTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
