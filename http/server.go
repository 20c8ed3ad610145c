package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/sse"
	"github.com/rs/zerolog"
)

// TurnRunner runs one chat turn against a frame writer.
type TurnRunner interface {
	Run(ctx context.Context, turn relay.Turn, w relay.FrameWriter) (relay.Result, error)
}

// Interface compliance check.
var _ TurnRunner = (*relay.Relay)(nil)

// Server serves the relay API.
type Server struct {
	store          relay.ConversationStore
	runner         TurnRunner
	logger         zerolog.Logger
	basePath       string
	allowedOrigins []string
	systemPrompt   string
	now            func() time.Time
	handler        http.Handler
}

// ServerOption configures a [Server].
type ServerOption func(*Server)

// WithLogger sets the request logger.
func WithLogger(l zerolog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// WithBasePath sets the path prefix for all routes. An empty prefix mounts
// routes at the root.
func WithBasePath(p string) ServerOption {
	return func(s *Server) { s.basePath = strings.TrimSuffix(p, "/") }
}

// WithAllowedOrigins sets the CORS origin patterns. "*" allows any origin;
// other entries are glob patterns matched against the Origin header.
func WithAllowedOrigins(patterns ...string) ServerOption {
	return func(s *Server) { s.allowedOrigins = patterns }
}

// WithSystemPrompt sets the system prompt used when a chat request has none.
func WithSystemPrompt(p string) ServerOption {
	return func(s *Server) { s.systemPrompt = p }
}

// WithClock sets the time source for the health endpoint.
func WithClock(now func() time.Time) ServerOption {
	return func(s *Server) { s.now = now }
}

// NewServer returns a Server over the store and turn runner.
func NewServer(store relay.ConversationStore, runner TurnRunner, opts ...ServerOption) *Server {
	s := &Server{
		store:          store,
		runner:         runner,
		logger:         zerolog.Nop(),
		basePath:       DefaultBasePath,
		allowedOrigins: []string{"*"},
		now:            time.Now,
	}
	for _, o := range opts {
		o(s)
	}

	mux := http.NewServeMux()
	p := s.basePath
	mux.HandleFunc("POST "+p+"/chat", s.handleChat)
	mux.HandleFunc("GET "+p+"/messages", s.handleListMessages)
	mux.HandleFunc("POST "+p+"/sessions", s.handleCreateSession)
	mux.HandleFunc("GET "+p+"/sessions", s.handleListSessions)
	mux.HandleFunc("GET "+p+"/sessions/{id}", s.handleFindSession)
	mux.HandleFunc("DELETE "+p+"/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("GET "+p+"/health", s.handleHealth)

	s.handler = s.requestID(s.accessLog(s.cors(mux)))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	var req ChatRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, &Error{Status: http.StatusBadRequest, Message: "Invalid request body", Details: err.Error()})
		return
	}
	turn := req.Turn()
	if turn.SystemPrompt == "" {
		turn.SystemPrompt = s.systemPrompt
	}

	sw := sse.NewWriter(w)
	res, err := s.runner.Run(r.Context(), turn, sw)
	if err == nil {
		logger.Info().
			Str("session_id", turn.SessionID).
			Int("content_bytes", len(res.Content)).
			Msg("turn completed")
		return
	}

	if !sw.Started() {
		s.writeError(w, r, turnError(err))
		return
	}

	evt := logger.Warn()
	if errors.Is(err, relay.ErrClientGone) {
		evt = logger.Info()
	}
	evt.Err(err).
		Str("session_id", turn.SessionID).
		Str("state", res.State.String()).
		Str("failed_in", res.FailedIn.String()).
		Msg("turn ended in-band")
}

// turnError maps a failure reported before the event stream opened to a
// synchronous response.
func turnError(err error) *Error {
	switch {
	case errors.Is(err, relay.ErrMessageRequired):
		return &Error{Status: http.StatusBadRequest, Message: "Message is required"}
	case errors.Is(err, relay.ErrSessionIDRequired):
		return &Error{Status: http.StatusBadRequest, Message: "Session ID is required"}
	case errors.Is(err, relay.ErrValidation):
		return &Error{Status: http.StatusBadRequest, Message: "Invalid request", Details: err.Error()}
	case errors.Is(err, relay.ErrSessionNotFound):
		return &Error{Status: http.StatusNotFound, Message: "Session not found"}
	default:
		return &Error{Status: http.StatusInternalServerError, Message: relay.UpstreamErrorMessage, Details: err.Error()}
	}
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	var (
		msgs []relay.Message
		err  error
	)
	if id := r.URL.Query().Get("sessionId"); id != "" {
		msgs, err = s.store.ListMessages(r.Context(), id)
	} else {
		msgs, err = s.store.ListAllMessages(r.Context())
	}
	if err != nil {
		s.writeError(w, r, &Error{Status: http.StatusInternalServerError, Message: "Failed to fetch messages", Details: err.Error()})
		return
	}
	body := messageListBody{Messages: make([]messageBody, len(msgs)), Count: len(msgs)}
	for i, m := range msgs {
		body.Messages[i] = toMessageBody(m)
	}
	s.writeJSON(w, r, http.StatusOK, body)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionBody
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, &Error{Status: http.StatusBadRequest, Message: "Invalid request body", Details: err.Error()})
		return
	}
	sess, err := s.store.CreateSession(r.Context(), req.Title)
	if err != nil {
		s.writeError(w, r, &Error{Status: http.StatusInternalServerError, Message: "Failed to create session", Details: err.Error()})
		return
	}
	s.writeJSON(w, r, http.StatusOK, toSessionBody(sess))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListSessions(r.Context())
	if err != nil {
		s.writeError(w, r, &Error{Status: http.StatusInternalServerError, Message: "Failed to fetch sessions", Details: err.Error()})
		return
	}
	body := sessionListBody{Sessions: make([]sessionBody, len(sessions)), Count: len(sessions)}
	for i, sess := range sessions {
		body.Sessions[i] = toSessionBody(sess)
	}
	s.writeJSON(w, r, http.StatusOK, body)
}

func (s *Server) handleFindSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.FindSession(r.Context(), r.PathValue("id"))
	if errors.Is(err, relay.ErrSessionNotFound) {
		s.writeError(w, r, &Error{Status: http.StatusNotFound, Message: "Session not found"})
		return
	}
	if err != nil {
		s.writeError(w, r, &Error{Status: http.StatusInternalServerError, Message: "Failed to fetch session", Details: err.Error()})
		return
	}
	s.writeJSON(w, r, http.StatusOK, toSessionBody(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, &Error{Status: http.StatusInternalServerError, Message: "Failed to delete session", Details: err.Error()})
		return
	}
	s.writeJSON(w, r, http.StatusOK, deleteBody{Success: true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, healthBody{Status: "OK", Timestamp: sse.FormatTime(s.now())})
}

// decodeBody decodes a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("response write failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, e *Error) {
	evt := zerolog.Ctx(r.Context()).Debug()
	if e.Status >= http.StatusInternalServerError {
		evt = zerolog.Ctx(r.Context()).Error()
	}
	evt.Int("status", e.Status).Str("details", e.Details).Msg(e.Message)
	s.writeJSON(w, r, e.Status, errorBody{Error: e.Message, Details: e.Details})
}
