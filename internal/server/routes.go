package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and metrics.
	mux.HandleFunc("GET /health", s.handleHealth)
	gather := s.gather
	if gather == nil {
		gather = prometheus.DefaultGatherer
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(gather, promhttp.HandlerOpts{}))

	// Stories collection.
	mux.HandleFunc("POST /v1/stories", s.handleCreateStory)
	mux.HandleFunc("GET /v1/stories", s.handleListStories)

	// Single story.
	mux.HandleFunc("GET /v1/stories/{id}", s.handleGetStory)
	mux.HandleFunc("DELETE /v1/stories/{id}", s.handleDeleteStory)

	// Story photos.
	mux.HandleFunc("PUT /v1/stories/{id}/photos", s.handleReplacePhotos)
	mux.HandleFunc("GET /v1/stories/{id}/photos", s.handleListPhotos)
	mux.HandleFunc("GET /v1/stories/{id}/photos/{photo_id}", s.handleGetPhoto)

	// Admin.
	mux.HandleFunc("POST /v1/admin/gc", s.handleAdminGC)

	return mux
}
