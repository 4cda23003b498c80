package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/azimhamza/safe-replies-backend-sub001/pkg/clientip"
)

const (
	headerXContentTypeOptions     = "X-Content-Type-Options"
	headerXFrameOptions           = "X-Frame-Options"
	headerXXSSProtection          = "X-XSS-Protection"
	headerContentSecurityPolicy   = "Content-Security-Policy"
	headerStrictTransportSecurity = "Strict-Transport-Security"
)

// SecurityHeaders sets security-related response headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headerXContentTypeOptions, "nosniff")
		w.Header().Set(headerXFrameOptions, "DENY")
		w.Header().Set(headerXXSSProtection, "1; mode=block")
		w.Header().Set(headerContentSecurityPolicy, "default-src 'self'")
		w.Header().Set(headerStrictTransportSecurity, "max-age=31536000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}

// --- In-process per-IP rate limiting for the admin API ---

const (
	adminRateLimitRPS    = 5
	adminRateLimitBurst  = 20
	adminCleanupInterval = 5 * time.Minute
	adminLimiterTTL      = 30 * time.Minute
)

type limiterEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

var (
	adminEntries    = make(map[string]*limiterEntry)
	adminEntriesMu  sync.Mutex
	adminCleanupRun bool
)

func getAdminLimiter(ip string) *rate.Limiter {
	adminEntriesMu.Lock()
	defer adminEntriesMu.Unlock()
	startAdminCleanupOnce()
	e, ok := adminEntries[ip]
	if !ok {
		e = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(adminRateLimitRPS), adminRateLimitBurst),
			lastUse: time.Now(),
		}
		adminEntries[ip] = e
	}
	e.lastUse = time.Now()
	return e.limiter
}

func startAdminCleanupOnce() {
	if adminCleanupRun {
		return
	}
	adminCleanupRun = true
	go func() {
		ticker := time.NewTicker(adminCleanupInterval)
		defer ticker.Stop()
		for range ticker.C {
			adminEntriesMu.Lock()
			cutoff := time.Now().Add(-adminLimiterTTL)
			for ip, e := range adminEntries {
				if e.lastUse.Before(cutoff) {
					delete(adminEntries, ip)
				}
			}
			adminEntriesMu.Unlock()
		}
	}()
}

// AdminRateLimit limits admin API requests per client IP with an in-process
// token bucket. Tighter than the webhook limiter since admin calls are rare.
func AdminRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientip.RealClientIP(r)
		if !getAdminLimiter(ip).Allow() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"success":false,"message":"Rate limit exceeded. Please slow down."}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
