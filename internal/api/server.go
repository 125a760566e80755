// Package api serves the SEU pipeline over HTTP/JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/pai-cube/go-controller/internal/logging"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/orchestrator"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/seu"
)

// ServiceName is reported by GET /.
const ServiceName = "PAI 8-Channel -> Meta Cube System"

// Server handles HTTP requests for the cube pipeline.
type Server struct {
	pipeline orchestrator.Pipeline
	logger   *zap.Logger
}

// New creates an API server over p. A nil logger discards output.
func New(p orchestrator.Pipeline, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{pipeline: p, logger: logger.Named("api")}
}

// Handler returns the routed handler with CORS and request logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Units and raws
	mux.HandleFunc("POST /seu", s.createSEU)
	mux.HandleFunc("POST /channel/raw", s.registerRaw)
	mux.HandleFunc("POST /channel/meta/{seu_id}/{channel_id}", s.computeMeta)

	// Cubes
	mux.HandleFunc("POST /cube/build", s.buildCube)
	mux.HandleFunc("GET /cube/{seu_id}", s.getCube)

	// Events
	mux.HandleFunc("GET /events", s.events)

	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("GET /{$}", s.root)

	return s.withLogging(withCORS(mux))
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// withCORS adds permissive CORS headers.
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withLogging(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(rec, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"service": ServiceName, "health": "/health"})
}

func (s *Server) createSEU(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.CreateSEURequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	resp, err := s.pipeline.CreateSEU(r.Context(), req)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) registerRaw(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.RegisterRawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	resp, err := s.pipeline.RegisterRaw(r.Context(), req)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) computeMeta(w http.ResponseWriter, r *http.Request) {
	resp, err := s.pipeline.ComputeMeta(r.Context(), r.PathValue("seu_id"), r.PathValue("channel_id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// BuildCubeRequest is the request body for POST /cube/build.
type BuildCubeRequest struct {
	SEUID string `json:"seu_id"`
}

func (s *Server) buildCube(w http.ResponseWriter, r *http.Request) {
	var req BuildCubeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	resp, err := s.pipeline.BuildCube(r.Context(), req.SEUID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getCube(w http.ResponseWriter, r *http.Request) {
	c, err := s.pipeline.GetCube(r.Context(), r.PathValue("seu_id"))
	if errors.Is(err, seu.ErrNotFound) {
		writeError(w, http.StatusNotFound, "cube not found")
		return
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// EventsResponse is the response for GET /events.
type EventsResponse struct {
	Events []logging.Event `json:"events"`
}

func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	limit := logging.DefaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	events, err := s.pipeline.Events(r.Context(), limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	if events == nil {
		events = []logging.Event{}
	}
	writeJSON(w, http.StatusOK, EventsResponse{Events: events})
}

// fail maps a pipeline error to a status code and writes it.
func (s *Server) fail(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeError(w, code, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, seu.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, seu.ErrMissingMeta),
		errors.Is(err, seu.ErrIncomplete),
		errors.Is(err, seu.ErrInvalidChannel),
		errors.Is(err, seu.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, seu.ErrInputsChanged):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"detail": message})
}
