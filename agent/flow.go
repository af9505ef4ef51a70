// Package agent implements the evaluation-and-refinement loop: a state
// machine that alternates between draft generation (with document-retrieval
// tool calls) and a grounding verdict, re-entering generation with feedback
// until acceptance, a request for user input, or the iteration ceiling.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/groundcheck/paperagent/document"
	"github.com/groundcheck/paperagent/evaluate"
	"github.com/groundcheck/paperagent/generate"
	"github.com/groundcheck/paperagent/tools"
	"github.com/groundcheck/paperagent/types"
)

// DefaultMaxCycles is the iteration ceiling: the number of evaluations after
// which the loop force-accepts the latest draft to guarantee termination.
const DefaultMaxCycles = 3

// defaultMaxToolRounds bounds tool round trips within one cycle so a model
// that keeps requesting tools cannot loop forever either.
const defaultMaxToolRounds = 8

// RegistrationMessage is returned when a session has not registered yet.
const RegistrationMessage = "Please register first before accessing the assistant."

// ForcedNotice is appended to user-facing output when the answer was
// accepted only because the iteration budget ran out.
const ForcedNotice = "Note: this answer could not be verified against the document before the iteration budget ran out; it may contain unverified claims."

// Result is the caller-facing outcome of one question.
type Result struct {
	Answer string `json:"answer"`

	// Accepted is true when the loop halted with an answer, including a
	// forced acceptance. Forced distinguishes budget exhaustion from a
	// genuine grounded acceptance.
	Accepted   bool `json:"accepted"`
	Forced     bool `json:"forced"`
	NeedsInput bool `json:"needs_input"`

	Cycles   int    `json:"cycles"`
	Feedback string `json:"feedback,omitempty"`
}

// Message renders the result for a user, flagging forced acceptance.
func (r *Result) Message() string {
	if r.Forced {
		return r.Answer + "\n\n" + ForcedNotice
	}
	return r.Answer
}

type Flow struct {
	doc       *document.Document
	registry  *tools.Registry
	generator generate.Generator
	evaluator evaluate.Evaluator

	trimmer       Trimmer
	checkpoints   CheckpointStore
	maxCycles     int
	maxToolRounds int
}

type Option func(*Flow)

// WithMaxCycles sets the iteration ceiling, clamped to at least 1.
func WithMaxCycles(n int) Option {
	return func(f *Flow) {
		if n >= 1 {
			f.maxCycles = n
		}
	}
}

func WithMaxToolRounds(n int) Option {
	return func(f *Flow) {
		if n >= 1 {
			f.maxToolRounds = n
		}
	}
}

func WithTrimmer(t Trimmer) Option {
	return func(f *Flow) { f.trimmer = t }
}

// WithCheckpointStore persists state at cycle boundaries.
func WithCheckpointStore(store CheckpointStore) Option {
	return func(f *Flow) { f.checkpoints = store }
}

// WithoutEvaluator disables the grounding loop: the first final draft is the
// answer. This is the plain assistant variant.
func WithoutEvaluator() Option {
	return func(f *Flow) { f.evaluator = nil }
}

// NewFlow builds a loop over a document with explicit components. A nil
// registry is built from the document; a nil evaluator means the plain
// variant.
func NewFlow(doc *document.Document, registry *tools.Registry, gen generate.Generator, eval evaluate.Evaluator, opts ...Option) (*Flow, error) {
	if doc == nil {
		return nil, errors.New("document required")
	}
	if gen == nil {
		return nil, errors.New("generator required")
	}
	if registry == nil {
		var err error
		registry, err = tools.NewRegistry(doc)
		if err != nil {
			return nil, fmt.Errorf("build tool registry: %w", err)
		}
	}
	f := &Flow{
		doc:           doc,
		registry:      registry,
		generator:     gen,
		evaluator:     eval,
		trimmer:       KeepLastNTrimmer{N: 40},
		maxCycles:     DefaultMaxCycles,
		maxToolRounds: defaultMaxToolRounds,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// NewToolBasedFlow wires the generator and evaluator to one chat model, with
// the document tool registry bound to the generator.
func NewToolBasedFlow(ctx context.Context, doc *document.Document, chatModel model.ToolCallingChatModel, opts ...Option) (*Flow, error) {
	registry, err := tools.NewRegistry(doc)
	if err != nil {
		return nil, fmt.Errorf("build tool registry: %w", err)
	}
	infos, err := registry.Infos(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect tool infos: %w", err)
	}
	gen := generate.NewToolBasedGenerator(chatModel, infos)
	eval, err := evaluate.NewToolBasedEvaluator(chatModel)
	if err != nil {
		return nil, fmt.Errorf("create evaluator: %w", err)
	}
	return NewFlow(doc, registry, gen, eval, opts...)
}

func (f *Flow) MaxCycles() int { return f.maxCycles }

func (f *Flow) Document() *document.Document { return f.doc }

// Ask runs the loop for one question against the flow's document. The state
// carries conversation history across questions; pass a fresh State for an
// independent session.
func (f *Flow) Ask(ctx context.Context, state *State, question string) (*Result, error) {
	ctx = callbacks.EnsureRunInfo(ctx, "ResearchFlow", "Agent")
	ctx = callbacks.OnStart(ctx, map[string]any{
		"question": question,
		"session":  sessionIDOrDefault(ctx),
	})

	result, err := f.runInternal(ctx, state, question)
	if err != nil {
		callbacks.OnError(ctx, err)
		return nil, err
	}

	callbacks.OnEnd(ctx, map[string]any{
		"accepted": result.Accepted,
		"forced":   result.Forced,
		"cycles":   result.Cycles,
	})
	return result, nil
}

func (f *Flow) runInternal(ctx context.Context, state *State, question string) (*Result, error) {
	if state == nil {
		return nil, errors.New("state required")
	}
	if state.NeedsRegistration {
		state.Accepted = false
		state.NeedsUserInput = true
		state.Append(schema.AssistantMessage(RegistrationMessage, nil))
		return &Result{Answer: RegistrationMessage, NeedsInput: true}, nil
	}

	state.DocumentText = f.doc.Text()
	if f.trimmer != nil {
		state.Messages = f.trimmer.Trim(state.Messages)
	}
	state.BeginQuestion(question, state.SuccessCriteria)
	runStart := len(state.Messages)

	phase := types.PhaseGenerating
	var draft *schema.Message
	var lastVerdict *evaluate.Verdict
	toolRounds := 0

	for !phase.Terminal() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch phase {
		case types.PhaseGenerating:
			msg, err := f.generator.GenerateDraft(ctx, &generate.Request{
				Document:        f.doc,
				Question:        state.Question,
				SuccessCriteria: state.SuccessCriteria,
				Feedback:        state.Feedback,
				History:         state.Messages[runStart:],
			})
			if err != nil {
				slog.Error("loop failed in generation", "session", sessionIDOrDefault(ctx), "cycle", state.Cycle, "error", err)
				return nil, err
			}
			state.Append(msg)
			phase = RouteAfterGenerate(msg)
			if phase == types.PhaseEvaluating {
				draft = msg
			}

		case types.PhaseAwaitingTool:
			toolRounds++
			if toolRounds > f.maxToolRounds {
				err := &types.GenerationError{Err: fmt.Errorf("tool round limit %d exceeded", f.maxToolRounds)}
				slog.Error("loop failed in tool resolution", "session", sessionIDOrDefault(ctx), "error", err)
				return nil, err
			}
			last := state.Messages[len(state.Messages)-1]
			results, err := f.registry.Resolve(ctx, last.ToolCalls)
			if err != nil {
				return nil, err
			}
			state.Append(results...)
			phase = types.PhaseGenerating

		case types.PhaseEvaluating:
			if f.evaluator == nil {
				state.Accepted = true
				phase = types.PhaseAccepted
				f.checkpoint(ctx, state)
				continue
			}
			state.Cycle++
			verdict, err := f.evaluator.Evaluate(ctx, &evaluate.Request{
				Document:        f.doc,
				Question:        state.Question,
				SuccessCriteria: state.SuccessCriteria,
				Draft:           contentOf(draft),
				PriorFeedback:   state.Feedback,
			})
			if err != nil {
				slog.Error("loop failed in evaluation", "session", sessionIDOrDefault(ctx), "cycle", state.Cycle, "error", err)
				return nil, err
			}
			lastVerdict = verdict
			state.Append(schema.AssistantMessage(verdictNote(verdict), nil))

			next := RouteAfterEvaluate(verdict, state.Cycle, f.maxCycles)
			switch next {
			case types.PhaseAccepted:
				state.Accepted = true
				state.Forced = !verdict.Grounded
				state.Feedback = ""
			case types.PhaseNeedsInput:
				state.NeedsUserInput = true
				state.Feedback = verdict.Feedback
			case types.PhaseGenerating:
				state.Feedback = verdict.Feedback
				toolRounds = 0
			}
			slog.Debug("evaluation routed",
				"session", sessionIDOrDefault(ctx),
				"cycle", state.Cycle,
				"grounded", verdict.Grounded,
				"next", string(next),
			)
			phase = next
			f.checkpoint(ctx, state)
		}
	}

	answer := contentOf(draft)
	if phase == types.PhaseNeedsInput && lastVerdict != nil && lastVerdict.Feedback != "" {
		answer = lastVerdict.Feedback
	}
	return &Result{
		Answer:     answer,
		Accepted:   state.Accepted,
		Forced:     state.Forced,
		NeedsInput: state.NeedsUserInput,
		Cycles:     state.Cycle,
		Feedback:   feedbackOf(lastVerdict),
	}, nil
}

func (f *Flow) checkpoint(ctx context.Context, state *State) {
	if f.checkpoints == nil {
		return
	}
	id := sessionIDOrDefault(ctx)
	if err := f.checkpoints.Save(ctx, id, state); err != nil {
		slog.Warn("checkpoint save failed", "session", id, "error", err)
	}
}

func verdictNote(v *evaluate.Verdict) string {
	if v.Grounded {
		return "Evaluation: the draft is grounded in the document."
	}
	return "Evaluation: " + v.Feedback
}

func contentOf(msg *schema.Message) string {
	if msg == nil {
		return ""
	}
	return msg.Content
}

func feedbackOf(v *evaluate.Verdict) string {
	if v == nil {
		return ""
	}
	return v.Feedback
}
