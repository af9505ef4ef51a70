// Package paperagent answers questions about a document with a
// generator-evaluator loop: drafts are checked for grounding against the
// document text and regenerated with feedback until accepted, until the user
// must clarify, or until the iteration ceiling forces an answer out.
package paperagent

import (
	"context"

	"github.com/cloudwego/eino/components/model"

	"github.com/groundcheck/paperagent/agent"
	"github.com/groundcheck/paperagent/document"
)

// Re-exported so simple callers only import the root package.
type (
	Result   = agent.Result
	State    = agent.State
	Metadata = document.Metadata
)

// ResearchAgent is the high-level entry point: one document, one
// conversation state, questions answered through the grounding loop.
type ResearchAgent struct {
	flow  *agent.Flow
	state *agent.State
}

type Option func(*config)

type config struct {
	metadata     *document.Metadata
	flowOpts     []agent.Option
	unregistered bool
}

func WithMetadata(meta Metadata) Option {
	return func(c *config) { c.metadata = &meta }
}

// WithMaxCycles sets the iteration ceiling for the grounding loop.
func WithMaxCycles(n int) Option {
	return func(c *config) { c.flowOpts = append(c.flowOpts, agent.WithMaxCycles(n)) }
}

// WithoutEvaluator turns off grounding checks: the first final draft is
// returned as-is.
func WithoutEvaluator() Option {
	return func(c *config) { c.flowOpts = append(c.flowOpts, agent.WithoutEvaluator()) }
}

// WithCheckpointStore persists conversation state at cycle boundaries.
func WithCheckpointStore(store agent.CheckpointStore) Option {
	return func(c *config) { c.flowOpts = append(c.flowOpts, agent.WithCheckpointStore(store)) }
}

// WithRegistrationRequired gates questions until Register is called.
func WithRegistrationRequired() Option {
	return func(c *config) { c.unregistered = true }
}

// New builds an agent over the given document text.
func New(ctx context.Context, documentText string, chatModel model.ToolCallingChatModel, opts ...Option) (*ResearchAgent, error) {
	var c config
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}

	var docOpts []document.Option
	if c.metadata != nil {
		docOpts = append(docOpts, document.WithMetadata(*c.metadata))
	}
	doc := document.New(documentText, docOpts...)

	flow, err := agent.NewToolBasedFlow(ctx, doc, chatModel, c.flowOpts...)
	if err != nil {
		return nil, err
	}

	state := agent.NewState()
	state.NeedsRegistration = c.unregistered
	return &ResearchAgent{flow: flow, state: state}, nil
}

// Register marks the session as registered so questions are answered.
func (a *ResearchAgent) Register() {
	a.state.NeedsRegistration = false
}

// Ask runs one question through the loop. Conversation history accumulates
// across calls.
func (a *ResearchAgent) Ask(ctx context.Context, question string) (*Result, error) {
	return a.flow.Ask(ctx, a.state, question)
}

// State exposes the conversation state, e.g. for checkpoint restore.
func (a *ResearchAgent) State() *State {
	return a.state
}

// Flow exposes the underlying loop, e.g. to wrap it in an adk agent.
func (a *ResearchAgent) Flow() *agent.Flow {
	return a.flow
}
