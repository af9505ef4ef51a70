package agent

import (
	"context"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/groundcheck/paperagent/types"
)

// State is the unit of work threaded through one question's loop. It is
// exclusively owned by the run that holds it; independent sessions never
// share a State. Messages is append-only within a session and survives
// across questions for conversational context.
type State struct {
	Messages        []*schema.Message `json:"messages"`
	DocumentText    string            `json:"document_text"`
	Question        string            `json:"question"`
	SuccessCriteria string            `json:"success_criteria"`

	// Feedback from the most recent rejecting verdict; cleared on
	// acceptance, carried forward on rejection.
	Feedback string `json:"feedback,omitempty"`

	Accepted       bool `json:"accepted"`
	NeedsUserInput bool `json:"needs_user_input"`
	Forced         bool `json:"forced"`
	Cycle          int  `json:"cycle"`

	// NeedsRegistration blocks the loop until the session registers.
	NeedsRegistration bool `json:"needs_registration,omitempty"`
}

func NewState() *State {
	return &State{}
}

func (s *State) Append(msgs ...*schema.Message) {
	for _, m := range msgs {
		if m != nil {
			s.Messages = append(s.Messages, m)
		}
	}
}

// BeginQuestion resets the per-question fields for a fresh cycle while
// keeping the message history, and records the question as a user turn.
func (s *State) BeginQuestion(question, criteria string) {
	if strings.TrimSpace(question) == "" {
		question = types.DefaultQuestion
	}
	if strings.TrimSpace(criteria) == "" {
		criteria = types.DefaultSuccessCriteria
	}
	s.Question = question
	s.SuccessCriteria = criteria
	s.Feedback = ""
	s.Accepted = false
	s.NeedsUserInput = false
	s.Forced = false
	s.Cycle = 0
	s.Append(schema.UserMessage(question))
}

// LastAssistant returns the most recent assistant turn, or nil.
func (s *State) LastAssistant() *schema.Message {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if m := s.Messages[i]; m != nil && m.Role == schema.Assistant {
			return m
		}
	}
	return nil
}

type sessionIDContext struct{}

const defaultSessionID = "default"

// WithSessionID sets the routing key used by state and checkpoint stores.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDContext{}, id)
}

// SessionIDFromContext gets the routing key from the context.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	value := ctx.Value(sessionIDContext{})
	if value == nil {
		return "", false
	}
	id, ok := value.(string)
	return id, ok
}

func sessionIDOrDefault(ctx context.Context) string {
	if id, ok := SessionIDFromContext(ctx); ok && id != "" {
		return id
	}
	return defaultSessionID
}

// StateStore provides access to session state using the context for routing.
type StateStore interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, state *State) error
	Clear(ctx context.Context) error
}

// MemoryStateStore is an in-memory StateStore for local usage and tests.
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[string]*State
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]*State)}
}

func (m *MemoryStateStore) Load(ctx context.Context) (*State, error) {
	m.mu.RLock()
	state, ok := m.states[sessionIDOrDefault(ctx)]
	m.mu.RUnlock()
	if ok {
		return state, nil
	}
	return NewState(), nil
}

func (m *MemoryStateStore) Save(ctx context.Context, state *State) error {
	m.mu.Lock()
	m.states[sessionIDOrDefault(ctx)] = state
	m.mu.Unlock()
	return nil
}

func (m *MemoryStateStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	delete(m.states, sessionIDOrDefault(ctx))
	m.mu.Unlock()
	return nil
}
