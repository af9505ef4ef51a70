package agent

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
)

var _ adk.Agent = (*Agent)(nil)

// Agent adapts a Flow to the eino adk.Agent interface so the loop can be
// composed into larger agent graphs or driven by adk.NewRunner. Session state
// is looked up per run through the StateStore, keyed by the session ID on the
// context.
type Agent struct {
	name        string
	description string
	flow        *Flow
	states      StateStore
}

func NewAgent(name, description string, flow *Flow, states StateStore) *Agent {
	if states == nil {
		states = NewMemoryStateStore()
	}
	return &Agent{
		name:        name,
		description: description,
		flow:        flow,
		states:      states,
	}
}

func (a *Agent) Name(ctx context.Context) string {
	return a.name
}

func (a *Agent) Description(ctx context.Context) string {
	return a.description
}

func (a *Agent) Run(ctx context.Context, input *adk.AgentInput, options ...adk.AgentRunOption) *adk.AsyncIterator[*adk.AgentEvent] {
	iter, gen := adk.NewAsyncIteratorPair[*adk.AgentEvent]()
	go func() {
		defer func() {
			e := recover()
			if e != nil {
				gen.Send(&adk.AgentEvent{
					Err: fmt.Errorf("recover from panic: %v", e),
				})
			}
			gen.Close()
		}()
		if len(input.Messages) == 0 {
			gen.Send(&adk.AgentEvent{
				Err: fmt.Errorf("no messages in input"),
			})
			return
		}
		question := input.Messages[len(input.Messages)-1].Content

		state, err := a.states.Load(ctx)
		if err != nil {
			gen.Send(&adk.AgentEvent{
				Err: fmt.Errorf("load session state: %w", err),
			})
			return
		}
		result, err := a.flow.Ask(ctx, state, question)
		if err != nil {
			gen.Send(&adk.AgentEvent{
				Err: fmt.Errorf("ask failed: %w", err),
			})
			return
		}
		if err := a.states.Save(ctx, state); err != nil {
			gen.Send(&adk.AgentEvent{
				Err: fmt.Errorf("save session state: %w", err),
			})
			return
		}
		gen.Send(&adk.AgentEvent{
			Output: &adk.AgentOutput{
				MessageOutput: &adk.MessageVariant{
					IsStreaming: false,
					Message: &schema.Message{
						Role:    schema.Assistant,
						Content: result.Message(),
					},
					Role: schema.Assistant,
				},
			},
		})
	}()
	return iter
}
