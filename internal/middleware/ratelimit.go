package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/azimhamza/safe-replies-backend-sub001/pkg/clientip"
)

const (
	// WebhookRateLimitWindow is the fixed counting window.
	WebhookRateLimitWindow = 60 * time.Second
	// WebhookRateLimitMax is the maximum requests allowed per window per IP.
	// Platform webhook delivery batches comments, so this is generous.
	WebhookRateLimitMax = 600
	rateLimitKeyPrefix  = "ratelimit:webhook:"
)

// WebhookRateLimit limits webhook deliveries per source IP with a Redis
// fixed-window counter shared across instances. Fails open when Redis is
// unreachable; dropping real deliveries is worse than letting a burst through.
func WebhookRateLimit(rdb *redis.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientip.RealClientIP(r)
			key := rateLimitKeyPrefix + ip

			pipe := rdb.TxPipeline()
			incr := pipe.Incr(r.Context(), key)
			pipe.Expire(r.Context(), key, WebhookRateLimitWindow)
			if _, err := pipe.Exec(r.Context()); err != nil {
				next.ServeHTTP(w, r)
				return
			}

			count := int(incr.Val())
			if count > WebhookRateLimitMax {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(int(WebhookRateLimitWindow.Seconds())))
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprintf(w, `{"success":false,"message":"Rate limit exceeded.","retry_after":%d}`, int(WebhookRateLimitWindow.Seconds()))
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(WebhookRateLimitMax))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(WebhookRateLimitMax-count))

			next.ServeHTTP(w, r)
		})
	}
}
