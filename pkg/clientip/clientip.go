// Package clientip extracts the caller's address for the admin API's rate
// limiter and audit logging.
package clientip

import (
	"net"
	"net/http"
	"strings"
)

// RealClientIP returns the peer address from r.RemoteAddr. Forwarding headers
// are deliberately ignored: a spoofed X-Forwarded-For must not let a caller
// rotate rate-limit buckets at will.
func RealClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return strings.TrimSpace(host)
}
