package rest

import (
	"context"
	"fmt"
	"net/http"

	core_port "flat-crawler-service/internal/core/port"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server - REST API сервер.
type Server struct {
	httpServer *http.Server
	logger     core_port.LoggerPort
}

// NewServer создает новый экземпляр сервера.
func NewServer(port string, handlers *CrawlerHandler, baseLogger core_port.LoggerPort) *Server {
	r := chi.NewRouter()

	// Middleware
	r.Use(LoggerMiddleware(baseLogger))
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/flats", handlers.GetFlats)
		r.Post("/flats/{flatID}/rate", handlers.RateFlat)

		r.Get("/locations", handlers.GetLocations)

		r.Post("/matching/run", handlers.RunMatching)
		r.Post("/matching/rematch", handlers.RematchPosts)
		r.Post("/matching/reset", handlers.ResetMatching)

		r.Post("/crawl", handlers.RunCrawl)
		r.Post("/crawl/all", handlers.RunCrawlAll)
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	return &Server{
		httpServer: srv,
		logger:     baseLogger,
	}
}

// Start запускает HTTP-сервер.
func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", core_port.Fields{"address": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("Could not start server", err, nil)
		return fmt.Errorf("could not start server: %w", err)
	}
	return nil
}

// Stop корректно останавливает сервер.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping REST API server...", nil)
	return s.httpServer.Shutdown(ctx)
}
