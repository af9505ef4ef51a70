// Package server exposes the assistant over HTTP: sessions are created with
// a document, questions run the grounding loop, and session settings are
// adjusted with JSON merge patches.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/model"
	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"

	"github.com/groundcheck/paperagent/agent"
	"github.com/groundcheck/paperagent/document"
)

const (
	askTimeout   = 120 * time.Second
	maxBodyBytes = 16 << 20
)

// Settings are the per-session knobs a client may adjust after creation via
// JSON merge patch.
type Settings struct {
	SuccessCriteria string `json:"success_criteria"`
	MaxCycles       int    `json:"max_cycles"`
	Registered      bool   `json:"registered"`
	Evaluate        bool   `json:"evaluate"`
}

type session struct {
	id    string
	flow  *agent.Flow
	state *agent.State
	doc   *document.Document

	// mu serializes questions within a session; cancel aborts an in-flight
	// ask when a new question or a delete arrives.
	mu       sync.Mutex
	cancelMu sync.Mutex
	cancel   context.CancelFunc

	settings Settings
}

func (s *session) setCancel(cancel context.CancelFunc) {
	s.cancelMu.Lock()
	s.cancel = cancel
	s.cancelMu.Unlock()
}

func (s *session) interrupt() {
	s.cancelMu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.cancelMu.Unlock()
}

type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
}

func newStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*session)}
}

func (s *sessionStore) set(id string, sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = sess
}

func (s *sessionStore) get(id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *sessionStore) delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

type Server struct {
	chatModel   model.ToolCallingChatModel
	checkpoints agent.CheckpointStore
	store       *sessionStore
	logger      *slog.Logger
}

type Option func(*Server)

// WithCheckpointStore persists session state across restarts.
func WithCheckpointStore(store agent.CheckpointStore) Option {
	return func(s *Server) { s.checkpoints = store }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

func New(chatModel model.ToolCallingChatModel, opts ...Option) (*Server, error) {
	if chatModel == nil {
		return nil, errors.New("chat model required")
	}
	s := &Server{
		chatModel: chatModel,
		store:     newStore(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sessions", s.handleSessionCreate)
	mux.HandleFunc("/api/sessions/", s.handleSessionByID)
	return s.logMiddleware(mux)
}

// --- Handlers ---

type sessionCreateReq struct {
	DocumentText    string             `json:"document_text"`
	Metadata        *document.Metadata `json:"metadata,omitempty"`
	SuccessCriteria string             `json:"success_criteria,omitempty"`
	MaxCycles       int                `json:"max_cycles,omitempty"`
	Registered      *bool              `json:"registered,omitempty"`
	Evaluate        *bool              `json:"evaluate,omitempty"`
}

type sessionResp struct {
	SessionID string   `json:"session_id"`
	Chunks    int      `json:"chunks"`
	Settings  Settings `json:"settings"`
}

type askReq struct {
	Question string `json:"question"`
}

type askResp struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`

	Accepted   bool `json:"accepted"`
	Forced     bool `json:"forced"`
	NeedsInput bool `json:"needs_input"`

	Cycles   int    `json:"cycles"`
	Feedback string `json:"feedback,omitempty"`
}

type statusResp struct {
	SessionID  string   `json:"session_id"`
	Question   string   `json:"question"`
	Cycle      int      `json:"cycle"`
	Accepted   bool     `json:"accepted"`
	Forced     bool     `json:"forced"`
	NeedsInput bool     `json:"needs_input"`
	Messages   int      `json:"messages"`
	Settings   Settings `json:"settings"`
}

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req sessionCreateReq
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	settings := Settings{
		SuccessCriteria: req.SuccessCriteria,
		MaxCycles:       req.MaxCycles,
		Registered:      true,
		Evaluate:        true,
	}
	if settings.MaxCycles <= 0 {
		settings.MaxCycles = agent.DefaultMaxCycles
	}
	if req.Registered != nil {
		settings.Registered = *req.Registered
	}
	if req.Evaluate != nil {
		settings.Evaluate = *req.Evaluate
	}

	var docOpts []document.Option
	if req.Metadata != nil {
		docOpts = append(docOpts, document.WithMetadata(*req.Metadata))
	}
	doc := document.New(req.DocumentText, docOpts...)

	id := uuid.New().String()
	sess := &session{
		id:       id,
		doc:      doc,
		state:    agent.NewState(),
		settings: settings,
	}
	if err := s.rebuildFlow(r.Context(), sess); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.applySettings(sess)

	if s.checkpoints != nil {
		if saved, ok, err := s.checkpoints.Load(r.Context(), id); err == nil && ok {
			sess.state = saved
		}
	}

	s.store.set(id, sess)
	writeJSON(w, http.StatusCreated, sessionResp{
		SessionID: id,
		Chunks:    doc.NumChunks(),
		Settings:  sess.settings,
	})
}

func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	if rest == "" {
		http.NotFound(w, r)
		return
	}
	id, action, _ := strings.Cut(rest, "/")
	sess, ok := s.store.get(id)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	switch {
	case action == "ask" && r.Method == http.MethodPost:
		s.handleAsk(w, r, sess)
	case action == "" && r.Method == http.MethodGet:
		s.handleStatus(w, sess)
	case action == "" && r.Method == http.MethodPatch:
		s.handlePatch(w, r, sess)
	case action == "" && r.Method == http.MethodDelete:
		s.handleDelete(w, r, sess)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request, sess *session) {
	var req askReq
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// A new question supersedes any in-flight one.
	sess.interrupt()
	sess.mu.Lock()
	defer sess.mu.Unlock()

	ctx, cancel := context.WithTimeout(r.Context(), askTimeout)
	defer cancel()
	sess.setCancel(cancel)
	ctx = agent.WithSessionID(ctx, sess.id)

	result, err := sess.flow.Ask(ctx, sess.state, req.Question)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			http.Error(w, "question superseded", http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, askResp{
		SessionID:  sess.id,
		Answer:     result.Message(),
		Accepted:   result.Accepted,
		Forced:     result.Forced,
		NeedsInput: result.NeedsInput,
		Cycles:     result.Cycles,
		Feedback:   result.Feedback,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, sess *session) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	writeJSON(w, http.StatusOK, statusResp{
		SessionID:  sess.id,
		Question:   sess.state.Question,
		Cycle:      sess.state.Cycle,
		Accepted:   sess.state.Accepted,
		Forced:     sess.state.Forced,
		NeedsInput: sess.state.NeedsUserInput,
		Messages:   len(sess.state.Messages),
		Settings:   sess.settings,
	})
}

// handlePatch applies an RFC 7386 merge patch to the session settings.
func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request, sess *session) {
	patch, err := readBody(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	original, err := sonic.Marshal(sess.settings)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	merged, err := jsonpatch.MergePatch(original, patch)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid merge patch: %v", err), http.StatusBadRequest)
		return
	}
	var next Settings
	if err := sonic.Unmarshal(merged, &next); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if next.MaxCycles < 1 {
		http.Error(w, "max_cycles must be at least 1", http.StatusBadRequest)
		return
	}

	rebuild := next.MaxCycles != sess.settings.MaxCycles || next.Evaluate != sess.settings.Evaluate
	sess.settings = next
	if rebuild {
		if err := s.rebuildFlow(r.Context(), sess); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	s.applySettings(sess)

	writeJSON(w, http.StatusOK, sessionResp{
		SessionID: sess.id,
		Chunks:    sess.doc.NumChunks(),
		Settings:  sess.settings,
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, sess *session) {
	sess.interrupt()
	s.store.delete(sess.id)
	if s.checkpoints != nil {
		if err := s.checkpoints.Delete(r.Context(), sess.id); err != nil {
			s.logger.Warn("delete checkpoint failed", "session", sess.id, "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Wiring ---

func (s *Server) rebuildFlow(ctx context.Context, sess *session) error {
	opts := []agent.Option{agent.WithMaxCycles(sess.settings.MaxCycles)}
	if s.checkpoints != nil {
		opts = append(opts, agent.WithCheckpointStore(s.checkpoints))
	}
	if !sess.settings.Evaluate {
		opts = append(opts, agent.WithoutEvaluator())
	}
	flow, err := agent.NewToolBasedFlow(ctx, sess.doc, s.chatModel, opts...)
	if err != nil {
		return fmt.Errorf("build flow: %w", err)
	}
	sess.flow = flow
	return nil
}

func (s *Server) applySettings(sess *session) {
	sess.state.SuccessCriteria = sess.settings.SuccessCriteria
	sess.state.NeedsRegistration = !sess.settings.Registered
}

// --- Helpers ---

func decodeBody(r *http.Request, v any) error {
	raw, err := readBody(r)
	if err != nil {
		return err
	}
	return sonic.Unmarshal(raw, v)
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	raw, err := sonic.Marshal(v)
	if err != nil {
		return
	}
	_, _ = w.Write(raw)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}
