// Package routes exposes the conversion pipeline over HTTP.
package routes

import (
	"net/http"

	"fileflow/links"
	"fileflow/pipeline"
	"fileflow/records"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server holds what the handlers need. Records may be nil, which disables
// the record endpoints.
type Server struct {
	Orchestrator *pipeline.Orchestrator
	Pool         *pipeline.Pool
	Links        *links.Signer
	Records      *records.PebbleStore
}

// NewRouter registers every endpoint on a chi router.
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RealIP,
		requestID,
		accessLog,
		middleware.Recoverer,
	)

	r.Get("/health", s.health)
	r.Get("/version", s.version)

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", s.upload)
		r.Delete("/upload/{fileId}", s.release)
		r.Post("/convert", s.convert)
		r.Get("/conversions", s.conversionTypes)

		r.Get("/jobs", s.listJobs)
		r.Get("/jobs/{jobId}", s.jobStatus)
		r.Post("/jobs/{jobId}/run", s.runJob)

		r.Get("/download/{fileId}", s.download)

		r.Get("/records/success", s.successList)
		r.Get("/records/failures", s.failureList)
		r.Get("/records/{jobId}", s.recordQuery)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errorf(http.StatusNotFound, "not_found", "no route for %s %s", r.Method, r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errorf(http.StatusMethodNotAllowed, "method_not_allowed", "method %s not allowed on %s", r.Method, r.URL.Path))
	})
	return r
}
