package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS returns a middleware allowing any origin to read the probe routes.
// Only safe methods are listed since every route is GET-only; preflights
// are answered here and never reach the router.
func CORS() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodHead,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"X-Request-Id",
			"traceparent",
		},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	})
}
