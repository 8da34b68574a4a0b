// Package chi exposes the answer pipeline over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/memrag/internal/domain"
	"github.com/kailas-cloud/memrag/internal/metrics"
	answeruc "github.com/kailas-cloud/memrag/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/memrag/internal/usecase/health"
	"github.com/kailas-cloud/memrag/internal/usecase/memory"
)

// Answerer composes an answer for one session.
type Answerer interface {
	Compose(ctx context.Context, mem answeruc.Memory, query string) (answeruc.Reply, error)
}

// AnswerRequest is the body of POST /v1/answer. An empty SessionID starts a new session.
type AnswerRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

// AnswerResponse is the body of a successful POST /v1/answer.
type AnswerResponse struct {
	SessionID string            `json:"session_id"`
	Answer    string            `json:"answer"`
	Sources   []answeruc.Source `json:"sources"`
}

// SessionResponse is the body of GET /v1/sessions/{id}.
type SessionResponse struct {
	SessionID string        `json:"session_id"`
	History   []domain.Turn `json:"history"`
}

// Server serves the HTTP API. Requests that touch sessions or the caches are serialized.
type Server struct {
	mu       sync.Mutex
	answerer Answerer
	sessions *memory.Registry
	health   *healthuc.Service
	logger   *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(answerer Answerer, sessions *memory.Registry, health *healthuc.Service, logger *zap.Logger) *Server {
	return &Server{answerer: answerer, sessions: sessions, health: health, logger: logger}
}

// Router builds the chi router with the middleware stack.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.Post("/v1/answer", s.Answer)
	r.Get("/v1/sessions/{id}", s.GetSession)
	r.Delete("/v1/sessions/{id}", s.DeleteSession)
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Answer handles POST /v1/answer.
func (s *Server) Answer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mem, err := s.sessions.Open(r.Context(), req.SessionID)
	if err != nil {
		s.handleDomainError(w, err, "")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	reply, err := s.answerer.Compose(ctx, mem, req.Query)
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, err, reply.Text)
		return
	}

	sources := reply.Sources
	if sources == nil {
		sources = []answeruc.Source{}
	}
	writeJSON(w, http.StatusOK, AnswerResponse{
		SessionID: mem.SessionID(),
		Answer:    reply.Text,
		Sources:   sources,
	})
}

// GetSession handles GET /v1/sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.sessions.History(id)
	if err != nil {
		s.handleDomainError(w, err, "")
		return
	}
	if history == nil {
		history = []domain.Turn{}
	}
	writeJSON(w, http.StatusOK, SessionResponse{SessionID: id, History: history})
}

// DeleteSession handles DELETE /v1/sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sessions.Delete(r.Context(), id); err != nil {
		s.handleDomainError(w, err, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func setUsageHeaders(w http.ResponseWriter, usage *domain.RequestUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.EmbeddingTokens))
		w.Header().Set("X-Completion-Tokens", strconv.Itoa(usage.CompletionTokens))
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error, degraded string) {
	status, code, msg := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	} else {
		s.logger.Warn("domain error", zap.Error(err))
	}
	writeJSON(w, status, ErrorResponse{Code: code, Message: msg, Answer: degraded})
}
