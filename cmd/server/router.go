package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/manifold-api/internal/api"
	apiMiddleware "github.com/phrazzld/manifold-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all
// routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	extractionHandler := api.NewExtractionHandler(app.extractionService)
	jobsHandler := api.NewJobsHandler(app.jobsService, app.jobQueue)
	cacheHandler := api.NewCacheHandler(app.ocrCache)

	r.Route("/api", func(r chi.Router) {
		r.Use(apiMiddleware.Identity)

		// Extraction endpoints
		r.Post("/manifests/{id}/extract", extractionHandler.Extract)
		r.Post("/manifests/extract-bulk", extractionHandler.ExtractBulk)
		r.Post("/manifests/{id}/re-extract", extractionHandler.ReExtract)
		r.Post("/manifests/{id}/re-extract-field", extractionHandler.ReExtractField)
		r.Post("/manifests/{id}/ocr/refresh-job", extractionHandler.RefreshOCR)
		r.Post("/groups/{id}/extract-filtered", extractionHandler.ExtractFiltered)

		// Job inspection endpoints
		r.Get("/jobs/stats", jobsHandler.GetStats)
		r.Get("/jobs/{id}", jobsHandler.GetJob)
		r.Get("/jobs", jobsHandler.ListJobs)

		// Queue control endpoints
		r.Post("/queue/jobs/{id}/cancel", jobsHandler.CancelJob)
		r.Post("/queue/pause", jobsHandler.PauseQueue)
		r.Post("/queue/resume", jobsHandler.ResumeQueue)
		r.Get("/queue/history", jobsHandler.GetHistory)

		// OCR cache endpoints
		r.Get("/ocr-cache/stats", cacheHandler.GetStats)
		r.Post("/ocr-cache/warmup", cacheHandler.Warmup)
		r.Delete("/ocr-cache", cacheHandler.Clear)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
