package runtime

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Cleo-Systems/tbphylo/internal/service/config"
	phyloHTTP "github.com/Cleo-Systems/tbphylo/internal/service/phylo/adapters/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const healthPath = "/health"

func NewHTTPServer(config config.Config, server *phyloHTTP.Server, logger *zap.Logger) (*http.Server, error) {
	// --- router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// API Key auth middleware (checks header: X-API-Key)
	r.Use(apiKeyAuth(config.APIKey))

	// OpenAPI request validator + routes
	handler, err := phyloHTTP.Router(server, r)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:              ":" + config.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return srv, nil
}

// apiKeyAuth returns a middleware that validates X-API-Key if apiKey is non-empty.
// If API_KEY env var is unset, the middleware allows all requests (handy for local dev).
// The health check is always open.
func apiKeyAuth(expected string) func(http.Handler) http.Handler {
	const hdr = "X-API-Key"
	return func(next http.Handler) http.Handler {
		if expected == "" {
			// no API key configured, skip enforcement
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == healthPath {
				next.ServeHTTP(w, r)
				return
			}
			got := r.Header.Get(hdr)
			if got == "" || got != expected {
				w.Header().Set("WWW-Authenticate", fmt.Sprintf(`ApiKey header="%s"`, hdr))
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
