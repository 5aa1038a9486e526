package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"ballotcore/internal/platform/middleware"
)

// Middleware enforces a per-voter limit on the wrapped handler. A failing
// store fails open: losing rate limiting is better than refusing votes.
type Middleware struct {
	store  Store
	logger *slog.Logger
	limit  int
	window time.Duration
}

func NewMiddleware(store Store, logger *slog.Logger, limit int, window time.Duration) *Middleware {
	return &Middleware{store: store, logger: logger, limit: limit, window: window}
}

func (m *Middleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key := middleware.GetVoterID(ctx)
		if key == "" {
			key = r.RemoteAddr
		}

		result, err := m.store.Allow(ctx, key, m.limit, m.window)
		if err != nil {
			m.logger.ErrorContext(ctx, "rate limit check failed, failing open",
				"error", err,
				"request_id", middleware.GetRequestID(ctx),
			)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			w.Header().Set("Retry-After", strconv.FormatInt(int64(time.Until(result.ResetAt).Seconds())+1, 10))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate_limited"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
