package middleware

import (
	"net/http"
	"strings"

	"github.com/azimhamza/safe-replies-backend-sub001/pkg/utils"
)

// AdminAuth requires a bearer token matching the configured Argon2 hash.
// When no hash is configured the admin API is disabled outright.
func AdminAuth(tokenHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenHash == "" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"success":false,"message":"Not found"}`))
				return
			}

			auth := r.Header.Get("Authorization")
			token := strings.TrimPrefix(auth, "Bearer ")
			if token == auth || token == "" {
				unauthorized(w)
				return
			}

			ok, err := utils.VerifyToken(token, tokenHash)
			if err != nil || !ok {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"success":false,"message":"Unauthorized"}`))
}
