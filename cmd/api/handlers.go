package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/WessleyAI/pdfqa/engine/domain"
	"github.com/WessleyAI/pdfqa/engine/events"
	"github.com/WessleyAI/pdfqa/engine/rag"
	"github.com/WessleyAI/pdfqa/engine/semantic"
	"github.com/WessleyAI/pdfqa/pkg/metrics"
	"github.com/WessleyAI/pdfqa/pkg/mid"
)

// Asker answers one question.
type Asker interface {
	Query(ctx context.Context, question string) (*rag.Answer, error)
}

// AskRequest is the JSON body for POST /api/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the JSON response for POST /api/ask.
type AskResponse struct {
	Answer    string                  `json:"answer"`
	Sources   []semantic.SearchResult `json:"sources"`
	Model     string                  `json:"model"`
	RequestID string                  `json:"request_id,omitempty"`
}

// StatusResponse is the JSON response for GET /api/status.
type StatusResponse struct {
	Collection   string                  `json:"collection"`
	EmbeddingTag string                  `json:"embedding_tag"`
	LastIngest   *events.IngestCompleted `json:"last_ingest,omitempty"`
}

type server struct {
	asker        Asker
	collection   string
	embeddingTag string
	reg          *metrics.Registry
	inFlight     *metrics.Gauge
	ingests      *metrics.Counter
	lastIngest   atomic.Pointer[events.IngestCompleted]
	logger       *slog.Logger
}

func newServer(asker Asker, collection, tag string, reg *metrics.Registry, logger *slog.Logger) *server {
	return &server{
		asker:        asker,
		collection:   collection,
		embeddingTag: tag,
		reg:          reg,
		inFlight:     reg.Gauge("pdfqa_api_requests_in_flight", "Questions currently being answered"),
		ingests:      reg.Counter("pdfqa_api_ingest_events_total", "Ingest completion events received"),
		logger:       logger,
	}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/ask", s.handleAsk)
	mux.Handle("GET /metrics", s.reg.Handler())
	return mux
}

// onIngest records events from the ingest binary.
func (s *server) onIngest(_ context.Context, ev events.IngestCompleted) {
	s.ingests.Inc()
	if ev.Collection != s.collection {
		return
	}
	s.lastIngest.Store(&ev)
	s.logger.Info("api: collection re-ingested", "collection", ev.Collection, "chunks", ev.Chunks, "embedding_tag", ev.EmbeddingTag)
	if ev.EmbeddingTag != s.embeddingTag {
		s.logger.Warn("api: collection now uses a different embedding model; queries will fail until config matches",
			"stored", ev.EmbeddingTag, "configured", s.embeddingTag)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Collection:   s.collection,
		EmbeddingTag: s.embeddingTag,
		LastIngest:   s.lastIngest.Load(),
	})
}

func (s *server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.inFlight.Inc()
	defer s.inFlight.Dec()

	answer, err := s.asker.Query(r.Context(), req.Question)
	if err != nil {
		status, msg := classify(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("rag query failed", "err", err, "request_id", mid.RequestIDFrom(r.Context()))
		}
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, AskResponse{
		Answer:    answer.Text,
		Sources:   answer.Sources,
		Model:     answer.Model,
		RequestID: mid.RequestIDFrom(r.Context()),
	})
}

// classify maps query errors to a status and a message safe to return.
func classify(err error) (int, string) {
	var mismatch *domain.MismatchError
	switch {
	case errors.Is(err, domain.ErrEmptyQuestion):
		return http.StatusBadRequest, "question is required"
	case errors.Is(err, domain.ErrQuestionTooLong):
		return http.StatusRequestEntityTooLarge, "question is too long"
	case errors.As(err, &mismatch):
		return http.StatusConflict, mismatch.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request cancelled"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
