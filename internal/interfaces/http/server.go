// Package http serves the read-only operational surface: liveness,
// engine status and Prometheus metrics. No endpoint mutates the core.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/optiondesk/internal/application"
	"github.com/sawpanic/optiondesk/internal/metrics"
)

// Server wraps the status HTTP listener.
type Server struct {
	engine *application.Engine
	mreg   *metrics.Registry
	srv    *http.Server
}

// NewServer builds the status server on addr.
func NewServer(addr string, engine *application.Engine, mreg *metrics.Registry) *Server {
	s := &Server{engine: engine, mreg: mreg}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	if mreg != nil {
		r.Handle("/metrics", mreg.Handler()).Methods(http.MethodGet)
	}

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving requests.
func (s *Server) ListenAndServe() error {
	log.Info().Str("addr", s.srv.Addr).Msg("status server listening")
	return s.srv.ListenAndServe()
}

// Shutdown drains the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("status response encode failed")
	}
}
