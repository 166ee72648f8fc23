package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/relife-project/technical-service/internal/auth"
)

// Authenticator resolves a bearer token to an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string, withRoles bool) (*auth.Identity, error)
}

// OptionalAuth lets anonymous requests through but rejects a token that
// fails every strategy.
func OptionalAuth(a Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return authMiddleware(a, false, false, logger)
}

// RequireAuth rejects requests without a valid token. withRoles also loads
// the caller's Keycloak realm roles.
func RequireAuth(a Authenticator, withRoles bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return authMiddleware(a, true, withRoles, logger)
}

func authMiddleware(a Authenticator, required, withRoles bool, logger *slog.Logger) func(http.Handler) http.Handler {
	mode := "optional"
	if required {
		mode = "required"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, present, err := auth.BearerToken(r)
			if !present {
				if required {
					authFailures.WithLabelValues(mode).Inc()
					w.Header().Set("WWW-Authenticate", "Bearer")
					writeError(w, http.StatusUnauthorized, "not authenticated")
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			if err == nil {
				var id *auth.Identity
				id, err = a.Authenticate(r.Context(), token, withRoles)
				if err == nil {
					setCaller(r, id.UserID)
					next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
					return
				}
			}
			authFailures.WithLabelValues(mode).Inc()
			logger.Debug("rejected bearer token", "path", r.URL.Path, "error", err)
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, err.Error())
		})
	}
}

func callerID(r *http.Request) string {
	if id, ok := auth.FromContext(r.Context()); ok {
		return id.UserID
	}
	return ""
}

// RequestLogger logs and records metrics for every request once the handler
// has finished, so the route pattern and caller are known.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			// Auth middleware further down derives a new context, so the
			// caller comes back through this holder.
			var caller string
			r = r.WithContext(context.WithValue(r.Context(), callerKey{}, &caller))
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)
			httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			httpDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration_ms", elapsed.Milliseconds(),
				"request_id", chiMiddleware.GetReqID(r.Context()),
				"caller", caller,
			)
		})
	}
}

type callerKey struct{}

func setCaller(r *http.Request, userID string) {
	if holder, ok := r.Context().Value(callerKey{}).(*string); ok {
		*holder = userID
	}
}

type rateLimiter struct {
	mu        sync.Mutex
	requests  map[string][]time.Time
	limit     int
	window    time.Duration
	lastSweep time.Time
}

func newRateLimiter(requestsPerMinute int) *rateLimiter {
	return &rateLimiter{
		requests: make(map[string][]time.Time),
		limit:    requestsPerMinute,
		window:   time.Minute,
	}
}

// allow records a request for key and reports whether it fits in the
// window. When it does not, retryAfter is how long until the oldest request
// expires.
func (rl *rateLimiter) allow(key string, now time.Time) (ok bool, retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-rl.window)
	if now.Sub(rl.lastSweep) >= rl.window {
		rl.sweep(cutoff)
		rl.lastSweep = now
	}

	var valid []time.Time
	for _, t := range rl.requests[key] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false, valid[0].Add(rl.window).Sub(now)
	}
	rl.requests[key] = append(valid, now)
	return true, 0
}

// sweep drops clients with no request newer than cutoff.
func (rl *rateLimiter) sweep(cutoff time.Time) {
	for key, times := range rl.requests {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(rl.requests, key)
		}
	}
}

func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.requests)
}

// RateLimitMiddleware limits each client address to requestsPerMinute. The
// key is r.RemoteAddr, so it only reflects forwarded headers when the router
// is configured to trust them.
func RateLimitMiddleware(requestsPerMinute int) func(http.Handler) http.Handler {
	return newRateLimiter(requestsPerMinute).middleware
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		key, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			key = r.RemoteAddr
		}
		ok, retryAfter := rl.allow(key, time.Now())
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
