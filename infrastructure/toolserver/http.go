package toolserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/codescope/codescope/internal/log"
)

// HTTPServer serves the framed protocol over HTTP POST. Unlike the stdio
// transport, requests are handled concurrently.
type HTTPServer struct {
	registry   *Registry
	router     chi.Router
	httpServer *http.Server
	logger     *log.Logger
	addr       string
}

// NewHTTPServer creates an HTTPServer on addr.
func NewHTTPServer(registry *Registry, addr string, logger *log.Logger) *HTTPServer {
	if logger == nil {
		logger = log.Discard()
	}

	s := &HTTPServer{
		registry: registry,
		logger:   logger,
		addr:     addr,
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	router.Get("/healthz", s.handleHealthz)
	router.Get("/tools", s.handleList)
	router.Post("/", s.handleCall)
	router.Post("/tools/call", s.handleCall)

	s.router = router
	return s
}

// Router returns the chi router, for embedding under a larger server.
func (s *HTTPServer) Router() chi.Router { return s.router }

// Addr returns the configured listen address.
func (s *HTTPServer) Addr() string { return s.addr }

// Start runs the server until Shutdown or a listener error.
func (s *HTTPServer) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting tool server", "addr", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("tool server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down tool server")
	return s.httpServer.Shutdown(ctx)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.registry.Names()})
}

// handleCall decodes one framed request from the body and dispatches it.
// Parse failures use the same framing as the stdio transport.
func (s *HTTPServer) handleCall(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{
			OK:        false,
			Error:     "invalid request frame: " + err.Error(),
			ErrorType: string(KindParse),
		})
		return
	}

	resp := s.registry.Dispatch(r.Context(), req)
	s.logger.Debug("dispatched tool",
		"tool", req.Tool, "ok", resp.OK, "timing_ms", resp.TimingMS)

	// Tool failures are still well-formed protocol responses.
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
