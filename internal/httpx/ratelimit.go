package httpx

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/NordCoder/posecoach/internal/domain"
	"go.uber.org/zap"
)

// Limiter counts hits for key inside a window and reports whether the caller
// is still under limit. Implementations keep their state outside the process.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, retryAfter time.Duration, err error)
}

// RateLimit rejects callers over limit per window, keyed by scope and client IP.
// When the limiter itself fails the request goes through.
func RateLimit(l Limiter, scope string, limit int, window time.Duration, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil || limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := scope + ":" + ClientIP(r)
			ok, retry, err := l.Allow(r.Context(), key, limit, window)
			if err != nil {
				log.Warn("rate limiter unavailable", zap.String("scope", scope), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				if retry > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(retry.Round(time.Second).Seconds())))
				}
				Fail(w, r, log, fmt.Errorf("rate limit exceeded: %w", domain.ErrRateLimited), "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
