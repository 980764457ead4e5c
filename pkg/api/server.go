// Package api exposes trailer encoding, verification and the beacon journal
// over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"

	"github.com/ssargent/primefusion/pkg/sessionkey"
)

// Router returns the HTTP handler with all routes configured.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint (unprotected for scraping)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.metrics.InstrumentAuthMiddleware(apiKeyMiddleware(s.config.APIKey)))

		r.Get("/health", s.metrics.InstrumentHandler("GET", "/api/v1/health", s.handleHealth))

		// Trailer codec
		r.Post("/trailers", s.metrics.InstrumentHandler("POST", "/api/v1/trailers", s.handleEncodeTrailer))
		r.Post("/trailers/verify", s.metrics.InstrumentHandler("POST", "/api/v1/trailers/verify", s.handleVerifyTrailer))

		// Beacon journal
		r.Post("/beacons", s.metrics.InstrumentHandler("POST", "/api/v1/beacons", s.handleCreateBeacon))
		r.Get("/beacons", s.metrics.InstrumentHandler("GET", "/api/v1/beacons", s.handleListBeacons))
		r.Get("/beacons/{id}", s.metrics.InstrumentHandler("GET", "/api/v1/beacons/{id}", s.handleGetBeacon))
		r.Get("/beacons/{id}/verify", s.metrics.InstrumentHandler("GET", "/api/v1/beacons/{id}/verify", s.handleVerifyBeacon))
	})

	return r
}

// StartServer serves the API until ctx is cancelled, then shuts down gracefully.
func StartServer(ctx context.Context, store BeaconStore, keys sessionkey.Source, config ServerConfig) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	server := NewServer(store, keys, config, NewMetrics(reg))

	addr := net.JoinHostPort(config.Bind, strconv.Itoa(config.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("starting primefusion API server")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down primefusion API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
