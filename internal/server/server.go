// Package server provides the HTTP API and the live result stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ayusman/wandsign/internal/app"
	"github.com/ayusman/wandsign/internal/gesture"
	"github.com/ayusman/wandsign/internal/hook"
	"github.com/ayusman/wandsign/internal/server/api"
	"github.com/ayusman/wandsign/internal/store"
)

// Pipeline is the part of the recognition pipeline the API exposes.
type Pipeline interface {
	Set() string
	Library() *gesture.Library
	Stats() app.Stats
	IsEnabled() bool
	SetEnabled(enabled bool)
}

// HookStats reports hook dispatch counters.
type HookStats interface {
	Stats() hook.RunnerStats
}

// Config holds the server configuration.
type Config struct {
	Store    *store.Store // Enables /api/sets, /api/actions and /api/recognitions
	Pipeline Pipeline     // Enables /api/library, /api/stats and /api/enabled
	Hub      *Hub         // Enables /api/results
	Hooks    HookStats    // Adds hook counters to /api/stats
	Quiet    bool         // Disables request logging
}

// Server represents the HTTP server.
type Server struct {
	config Config
	router chi.Router
	start  time.Time
	http   *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		router: chi.NewRouter(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	r := s.router
	if !s.config.Quiet {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	r.Get("/api/health", s.handleHealth)

	if s.config.Pipeline != nil {
		r.Get("/api/library", s.handleLibrary)
		r.Get("/api/stats", s.handleStats)
		r.Get("/api/enabled", s.handleGetEnabled)
		r.Put("/api/enabled", s.handleSetEnabled)
	}

	if s.config.Hub != nil {
		r.Handle("/api/results", s.config.Hub)
	}

	if s.config.Store != nil {
		sets := api.NewSetHandler(s.config.Store)
		actions := api.NewActionHandler(s.config.Store)
		recognitions := api.NewRecognitionHandler(s.config.Store)

		r.Route("/api/sets", func(r chi.Router) {
			r.Get("/", sets.List)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", sets.Get)
				r.Delete("/", sets.Delete)
				r.Get("/actions", actions.List)
				r.Post("/actions", actions.Create)
			})
		})
		r.Route("/api/actions/{id}", func(r chi.Router) {
			r.Get("/", actions.Get)
			r.Put("/", actions.Update)
			r.Delete("/", actions.Delete)
		})
		r.Get("/api/recognitions", recognitions.Recent)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	})
}

type libraryResponse struct {
	Set                string          `json:"set"`
	SamplesPerTemplate int             `json:"samples_per_template"`
	Gestures           []api.LabelInfo `json:"gestures"`
}

// handleLibrary handles GET /api/library with the library in use.
func (s *Server) handleLibrary(w http.ResponseWriter, r *http.Request) {
	lib := s.config.Pipeline.Library()
	if lib == nil {
		api.WriteError(w, http.StatusNotFound, "No library loaded")
		return
	}
	api.WriteJSON(w, http.StatusOK, libraryResponse{
		Set:                s.config.Pipeline.Set(),
		SamplesPerTemplate: lib.SamplesPerTemplate(),
		Gestures:           api.DescribeLibrary(lib),
	})
}

type statsResponse struct {
	Pipeline app.Stats         `json:"pipeline"`
	Hooks    *hook.RunnerStats `json:"hooks,omitempty"`
	Clients  int               `json:"clients"`
}

// handleStats handles GET /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{Pipeline: s.config.Pipeline.Stats()}
	if s.config.Hooks != nil {
		hs := s.config.Hooks.Stats()
		resp.Hooks = &hs
	}
	if s.config.Hub != nil {
		resp.Clients = s.config.Hub.Clients()
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

type enabledRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) handleGetEnabled(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]bool{"enabled": s.config.Pipeline.IsEnabled()})
}

// handleSetEnabled handles PUT /api/enabled {"enabled": bool}.
func (s *Server) handleSetEnabled(w http.ResponseWriter, r *http.Request) {
	var req enabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		api.WriteError(w, http.StatusBadRequest, "enabled is required")
		return
	}
	s.config.Pipeline.SetEnabled(*req.Enabled)
	s.handleGetEnabled(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- s.http.ListenAndServe()
	}()
	log.Printf("HTTP server listening on %s", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.config.Hub != nil {
		s.config.Hub.Close()
	}
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
