package gateway

import (
	"net/http"

	"github.com/rs/cors"
)

// CORSMiddleware allows browser clients from any origin to reach the gateway.
func CORSMiddleware(next http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Requested-With"},
		MaxAge:         86400,
	}).Handler(next)
}
