package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Server exposes the retrieval and answer-synthesis engine as a JSON HTTP
// API: GET /collections, POST /search, POST /answer.
type Server struct {
	registry  *Registry
	retriever *Retriever
	synth     *Synthesizer

	// Log receives one line per request. Defaults to io.Discard.
	Log io.Writer
}

// NewServer wires the API over an already-constructed engine.
func NewServer(registry *Registry, retriever *Retriever, synth *Synthesizer) *Server {
	return &Server{
		registry:  registry,
		retriever: retriever,
		synth:     synth,
		Log:       io.Discard,
	}
}

// SearchRequest is the body of POST /search and POST /answer.
type SearchRequest struct {
	CollectionID string `json:"collection_id"`
	Query        string `json:"query"`
	TopK         int    `json:"top_k"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /collections", s.handleCollections)
	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("POST /answer", s.handleAnswer)
	return s.withRequestID(mux)
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		next.ServeHTTP(w, r)
		fmt.Fprintf(s.Log, "%s %s %s (%s)\n", id, r.Method, r.URL.Path, time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCollections(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.registry.List(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"collections": summaries,
		"total":       len(summaries),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSearchRequest(w, r)
	if !ok {
		return
	}

	resp, err := s.retriever.Search(r.Context(), req.CollectionID, req.Query, req.TopK)
	if err != nil {
		s.writeSearchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSearchRequest(w, r)
	if !ok {
		return
	}

	search, err := s.retriever.Search(r.Context(), req.CollectionID, req.Query, req.TopK)
	if err != nil {
		s.writeSearchError(w, err)
		return
	}

	excerpts := make([]string, 0, len(search.Results))
	for _, result := range search.Results {
		excerpts = append(excerpts, result.Content)
	}

	answer, err := s.synth.Answer(r.Context(), req.Query, excerpts)
	if err != nil {
		var failure *AnswerFailure
		switch {
		case errors.As(err, &failure):
			writeJSON(w, http.StatusBadGateway, failure)
		case errors.Is(err, ErrNoExcerpts):
			writeJSON(w, http.StatusUnprocessableEntity, &AnswerFailure{
				Err:            ErrNoExcerpts.Error(),
				Details:        []string{},
				Query:          search.Query,
				ChunksProvided: 0,
			})
		default:
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) decodeSearchRequest(w http.ResponseWriter, r *http.Request) (SearchRequest, bool) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return req, false
	}
	if req.TopK == 0 {
		req.TopK = 5
	}
	return req, true
}

func (s *Server) writeSearchError(w http.ResponseWriter, err error) {
	var notFound *NotFoundError
	var corrupt *CorruptError
	switch {
	case errors.Is(err, ErrEmptyQuery), errors.Is(err, ErrInvalidTopK), errors.Is(err, ErrDimensionMismatch):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: notFound.Error()})
	case errors.As(err, &corrupt):
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: corrupt.Error()})
	default:
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
