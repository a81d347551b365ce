package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
)

// CORSOptions is the cross-origin policy for /api and /auth/session.
type CORSOptions struct {
	Origins     []string
	Credentials bool
	MaxAge      time.Duration
}

// CORS admits API clients on the configured origins. Only the methods the
// router mounts are allowed, and the bearer header is accepted so a client
// without cookies can still authenticate.
func CORS(o CORSOptions) func(http.Handler) http.Handler {
	maxAge := o.MaxAge
	if maxAge <= 0 {
		maxAge = 5 * time.Minute
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   o.Origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: o.Credentials,
		MaxAge:           int(maxAge / time.Second),
	})
}
