package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) router() chi.Router {
	r := chi.NewRouter()
	r.Use(
		loggerMiddleware(s.Log),
		middleware.Recoverer,
		headersMiddleware(http.Header{"X-Content-Type-Options": []string{"nosniff"}}),
		optionalAuthMiddleware(s.Config.AuthToken),
	)

	r.Get("/health", s.handleHealth)
	r.Get("/api", s.handleMeta)

	r.Group(func(r chi.Router) {
		if s.Config.RateLimitEnabled {
			r.Use(rateLimitMiddleware(s.RateLimiter, s.Config.RateLimitCapacity))
		}
		r.Post("/api/build/html", s.handleUpload("html"))
		r.Post("/api/build/zip", s.handleUpload("zip"))
	})

	r.Get("/api/build/{taskId}/status", s.handleStatus)
	r.Get("/api/build/{taskId}/download", s.handleDownload)
	r.Delete("/api/build/{taskId}", s.handleCancel)

	r.Handle("/metrics", promhttp.Handler())

	if s.Config.BuildsDir != "" {
		fileServer := http.FileServer(http.Dir(s.Config.BuildsDir))
		r.Handle("/downloads/*", http.StripPrefix("/downloads/", fileServer))
	}

	return r
}
