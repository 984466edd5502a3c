// Package api serves the agent voiceprint endpoints over HTTP from an in-memory
// store, for local development and integration tests.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/voiceprint/internal/adapters/repository"
	"github.com/okian/voiceprint/internal/domain/model"
	"github.com/okian/voiceprint/pkg/logger"
)

const (
	defaultMaxUploadBytes = 10 << 20
	maxJSONBody           = 1 << 20
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	repository.Store
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithTokens sets the accepted bearer tokens.
func WithTokens(tokens ...string) Option {
	return func(s *Server) {
		s.tokens = append(s.tokens, tokens...)
	}
}

// WithMaxUploadBytes caps uploaded audio size.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server wires HTTP routes for the voiceprint API.
type Server struct {
	store          Dependencies
	tokens         []string
	maxUploadBytes int64
	logger         logger.Logger
}

// NewServer creates a server backed by store.
func NewServer(store Dependencies, opts ...Option) *Server {
	s := &Server{
		store:          store,
		maxUploadBytes: defaultMaxUploadBytes,
		logger:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the route tree. Health and metrics are public, everything
// under /agent requires a bearer token.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", MetricsMiddleware(s.HandleHealth, "healthz"))
	r.Get("/metrics", s.HandleMetrics)

	r.Route("/agent", func(r chi.Router) {
		r.Use(AuthMiddleware(s.tokens, s.logger))
		r.Get("/voice-print/list/{agentId}", MetricsMiddleware(s.HandleList, "voiceprint_list"))
		r.Post("/voice-print", MetricsMiddleware(s.HandleCreate, "voiceprint_create"))
		r.Put("/voice-print", MetricsMiddleware(s.HandleUpdate, "voiceprint_update"))
		r.Delete("/voice-print/{id}", MetricsMiddleware(s.HandleDelete, "voiceprint_delete"))
		r.Post("/voice-print/upload-audio", MetricsMiddleware(s.HandleUploadAudio, "voiceprint_upload"))
		r.Get("/{agentId}/chat-history/user", MetricsMiddleware(s.HandleChatHistory, "chat_history"))
	})
	return r
}

// HandleList handles GET /agent/voice-print/list/{agentId}.
func (s *Server) HandleList(w http.ResponseWriter, r *http.Request) {
	agentID := strings.TrimSpace(chi.URLParam(r, "agentId"))
	list, err := s.store.List(r.Context(), agentID)
	if err != nil {
		s.fail(w, r, codeInternal, err)
		return
	}
	ok(w, list)
}

// HandleChatHistory handles GET /agent/{agentId}/chat-history/user.
func (s *Server) HandleChatHistory(w http.ResponseWriter, r *http.Request) {
	agentID := strings.TrimSpace(chi.URLParam(r, "agentId"))
	history, err := s.store.ChatHistory(r.Context(), agentID)
	if err != nil {
		s.fail(w, r, codeInternal, err)
		return
	}
	ok(w, history)
}

// HandleCreate handles POST /agent/voice-print.
func (s *Server) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req model.CreateSpeakerData
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, codeBadRequest, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.fail(w, r, codeBadRequest, err)
		return
	}
	vp, err := s.store.Create(r.Context(), req)
	if err != nil {
		s.fail(w, r, codeFor(err, codeCreateFailed), err)
		return
	}
	s.logger.Info(r.Context(), "voiceprint created", logger.String("id", vp.ID), logger.String("agent_id", vp.AgentID))
	ok(w, nil)
}

// HandleUpdate handles PUT /agent/voice-print.
func (s *Server) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req model.VoicePrint
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, codeBadRequest, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.fail(w, r, codeBadRequest, err)
		return
	}
	if err := s.store.Update(r.Context(), req); err != nil {
		s.fail(w, r, codeFor(err, codeUpdateFailed), err)
		return
	}
	ok(w, nil)
}

// HandleDelete handles DELETE /agent/voice-print/{id}.
func (s *Server) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.fail(w, r, codeFor(err, codeDeleteFailed), err)
		return
	}
	s.logger.Info(r.Context(), "voiceprint deleted", logger.String("id", id))
	ok(w, nil)
}

// result is the response envelope.
type result struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeResult(w http.ResponseWriter, status, code int, msg string, data any) {
	writeJSON(w, status, result{Code: code, Msg: msg, Data: data})
}

func ok(w http.ResponseWriter, data any) {
	writeResult(w, http.StatusOK, model.CodeOK, "success", data)
}

// fail answers with HTTP 200 and a non-zero envelope code, the way the real
// backend reports business errors.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, code int, err error) {
	s.logger.Warn(r.Context(), "request rejected",
		logger.String("path", r.URL.Path),
		logger.Int("code", code),
		logger.Error(err),
	)
	writeResult(w, http.StatusOK, code, err.Error(), nil)
}

func codeFor(err error, fallback int) int {
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrAudioNotFound):
		return codeNotFound
	case errors.Is(err, repository.ErrForbidden):
		return codeUnauthorized
	default:
		return fallback
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}
