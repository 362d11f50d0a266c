package httpapi

import (
	"net/http"

	"github.com/rs/zerolog"
)

// NewRouter registers HTTP routes and returns the handler with middleware.
func NewRouter(api *API, metricsHandler http.Handler, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/prices", api.getPriceHandler)
	mux.HandleFunc("/v1/internal/publish", api.publishHandler)
	mux.HandleFunc("/healthz", api.healthHandler)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}
	return WithRequestID(WithLogging(logger, mux))
}
