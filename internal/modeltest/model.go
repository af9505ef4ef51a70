// Package modeltest provides a scripted ToolCallingChatModel for
// deterministic tests: each Generate call pops the next step.
package modeltest

import (
	"context"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type Step struct {
	Response *schema.Message
	Err      error
}

type ScriptedModel struct {
	mu    sync.Mutex
	steps []Step
	calls [][]*schema.Message
}

var _ model.ToolCallingChatModel = (*ScriptedModel)(nil)

func NewScriptedModel(steps ...Step) *ScriptedModel {
	return &ScriptedModel{steps: steps}
}

// Push appends more steps to the script.
func (m *ScriptedModel) Push(steps ...Step) {
	m.mu.Lock()
	m.steps = append(m.steps, steps...)
	m.mu.Unlock()
}

// Calls returns the prompts of every Generate invocation so far.
func (m *ScriptedModel) Calls() [][]*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]*schema.Message, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *ScriptedModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, input)
	if len(m.steps) == 0 {
		return nil, fmt.Errorf("scripted model exhausted after %d calls", len(m.calls))
	}
	step := m.steps[0]
	m.steps = m.steps[1:]
	if step.Err != nil {
		return nil, step.Err
	}
	return step.Response, nil
}

func (m *ScriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *ScriptedModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

// Text scripts a plain assistant reply.
func Text(content string) Step {
	return Step{Response: schema.AssistantMessage(content, nil)}
}

// Fail scripts a model error.
func Fail(err error) Step {
	return Step{Err: err}
}

// ToolCall scripts an assistant turn requesting one tool call.
func ToolCall(id, name, argsJSON string) Step {
	return Step{Response: schema.AssistantMessage("", []schema.ToolCall{{
		ID:       id,
		Function: schema.FunctionCall{Name: name, Arguments: argsJSON},
	}})}
}

// StructuredCall scripts the forced tool call a structured chain expects,
// encoding payload as the call arguments.
func StructuredCall(toolName string, payload any) Step {
	args, err := sonic.MarshalString(payload)
	if err != nil {
		panic(err)
	}
	return ToolCall("structured-call", toolName, args)
}
