package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"NewsletterScanner/internal/domain"
	"NewsletterScanner/internal/links"
	"NewsletterScanner/internal/ports"
	"NewsletterScanner/internal/usecase"
)

const maxBodyBytes = 1 << 20

// JobService is the subset of the job runner the API drives.
type JobService interface {
	Create(ctx context.Context, id domain.JobID, params domain.JobParams) (domain.JobSnapshot, error)
	Get(ctx context.Context, id domain.JobID) (domain.JobSnapshot, error)
	Delete(ctx context.Context, id domain.JobID) error
}

// Deps wires the server.
type Deps struct {
	Jobs      JobService
	Validator ports.LinkValidator
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// NewID assigns an identifier when the client does not supply one.
	NewID  func() domain.JobID
	Logger *slog.Logger
}

// Server exposes job submission and polling over HTTP.
type Server struct {
	jobs      JobService
	validator ports.LinkValidator
	newID     func() domain.JobID
	validate  *validator.Validate
	logger    *slog.Logger
	mux       *http.ServeMux
	server    *http.Server
}

// NewServer builds the server and registers its routes.
func NewServer(addr string, deps Deps) (*Server, error) {
	if deps.Jobs == nil {
		return nil, errors.New("httpapi: job service is required")
	}
	if deps.Validator == nil {
		return nil, errors.New("httpapi: validator is required")
	}
	if deps.NewID == nil {
		return nil, errors.New("httpapi: id generator is required")
	}

	s := &Server{
		jobs:      deps.Jobs,
		validator: deps.Validator,
		newID:     deps.NewID,
		validate:  validator.New(),
		logger:    deps.Logger,
		mux:       http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/jobs", s.handleCreateJob)
	s.mux.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)
	s.mux.HandleFunc("DELETE /api/jobs/{id}", s.handleDeleteJob)
	s.mux.HandleFunc("POST /api/validate", s.handleValidate)
	if deps.Metrics != nil {
		s.mux.Handle("GET /metrics", deps.Metrics)
	}

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.middleware(s.mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s, nil
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// ListenAndServe blocks until the server stops. A graceful shutdown is not an error.
func (s *Server) ListenAndServe() error {
	if s.logger != nil {
		s.logger.Info("http server listening", "addr", s.server.Addr)
	}
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if s.logger != nil && r.URL.Path != "/health" && r.URL.Path != "/metrics" {
			s.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"elapsed", time.Since(start).String())
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().UTC(),
	})
}

// CreateJobRequest is the body of POST /api/jobs. Every field is optional.
type CreateJobRequest struct {
	JobID          string   `json:"job_id" validate:"omitempty,max=128"`
	TimeWindow     string   `json:"time_window" validate:"omitempty,max=32"`
	MaxNewsletters int      `json:"max_newsletters" validate:"gte=0,lte=1000"`
	SenderFilter   []string `json:"sender_filter" validate:"omitempty,max=50,dive,required,max=256"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	window, err := domain.ParseWindow(req.TimeWindow)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var id domain.JobID
	if req.JobID != "" {
		if id, err = domain.ParseJobID(req.JobID); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	} else {
		id = s.newID()
	}

	snap, err := s.jobs.Create(r.Context(), id, domain.JobParams{
		TimeWindow:     window,
		MaxNewsletters: req.MaxNewsletters,
		SenderFilter:   req.SenderFilter,
	})
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	w.Header().Set("Location", "/api/jobs/"+snap.JobID.String())
	respondJSON(w, http.StatusAccepted, snap)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	snap, err := s.jobs.Get(r.Context(), domain.JobID(r.PathValue("id")))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := s.jobs.Delete(r.Context(), domain.JobID(r.PathValue("id"))); err != nil {
		s.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ValidateRequest is the body of POST /api/validate.
type ValidateRequest struct {
	URL string `json:"url" validate:"required,max=4096"`
}

// ValidateResponse reports how a single link would be treated, without
// following any redirect.
type ValidateResponse struct {
	URL      string `json:"url"`
	Kind     string `json:"kind"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	decoded := links.Decode(req.URL)
	kind := links.Classify(decoded)
	resp := ValidateResponse{URL: decoded, Kind: kind.String()}
	if kind != domain.KindJunk {
		verdict := s.validator.Validate(decoded)
		resp.Accepted = verdict.Accepted
		resp.Reason = string(verdict.Reason)
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ports.ErrJobNotFound):
		respondError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, ports.ErrJobExists):
		respondError(w, http.StatusConflict, "job already exists")
	case errors.Is(err, usecase.ErrJobActive):
		respondError(w, http.StatusConflict, "job is still running")
	case errors.Is(err, domain.ErrInvalidJobID):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		if s.logger != nil {
			s.logger.Error("request failed", "error", err)
		}
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
