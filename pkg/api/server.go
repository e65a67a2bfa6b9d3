// Package api exposes the store and the computation pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vjranagit/tsview/pkg/query"
	"github.com/vjranagit/tsview/pkg/types"
)

// SeriesWriter stores series under a project
type SeriesWriter interface {
	Write(ctx context.Context, project string, series []types.TimeSeries) error
}

// Options holds server settings
type Options struct {
	ListenAddr     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxMetricLimit int
}

// Server implements the HTTP API server
type Server struct {
	opts    Options
	store   SeriesWriter
	queries *query.Service
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a new API server
func NewServer(opts Options, store SeriesWriter, queries *query.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		opts:    opts,
		store:   store,
		queries: queries,
		logger:  logger,
	}
}

// writeRequest is the body of a series write
type writeRequest struct {
	Project string             `json:"project"`
	Series  []types.TimeSeries `json:"series"`
}

// computeRequest is the body of a computed series query
type computeRequest struct {
	Filter         types.FilterParams  `json:"filter"`
	Compute        types.ComputeParams `json:"compute"`
	MaxMetricLimit int                 `json:"max_metric_limit"`
}

// computeResponse adds the rendered message to a query response
type computeResponse struct {
	*query.Response
	Message string `json:"message"`
}

// Handler returns the routed handler of the server
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.HandleFunc("/series", s.handleWrite).Methods(http.MethodPost)
	apiRouter.HandleFunc("/series/computed", s.handleComputed).Methods(http.MethodPost)

	return router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.opts.ListenAddr,
		Handler:      s.Handler(),
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleWrite stores the series of one project
func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}

	if err := s.store.Write(r.Context(), req.Project, req.Series); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, types.ErrContractViolation) || req.Project == "" {
			status = http.StatusBadRequest
		}
		http.Error(w, fmt.Sprintf("Write failed: %v", err), status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"series": len(req.Series),
	})
}

// handleComputed runs the computation pipeline for a filter
func (s *Server) handleComputed(w http.ResponseWriter, r *http.Request) {
	req := computeRequest{
		Filter:  types.FilterParams{Start: -1, End: -1},
		Compute: types.DefaultComputeParams(),
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if req.Filter.Project.Name == "" {
		http.Error(w, "Missing project", http.StatusBadRequest)
		return
	}
	if req.MaxMetricLimit == 0 {
		req.MaxMetricLimit = s.opts.MaxMetricLimit
	}

	resp, err := s.queries.GetComputedTimeSeries(r.Context(), req.Filter, req.Compute, req.MaxMetricLimit)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, types.ErrContractViolation) {
			status = http.StatusUnprocessableEntity
		}
		s.logger.Warn("computed query failed", zap.Error(err))
		http.Error(w, fmt.Sprintf("Query failed: %v", err), status)
		return
	}

	status := http.StatusOK
	if resp.HasError() {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, computeResponse{Response: resp, Message: resp.Message()})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
