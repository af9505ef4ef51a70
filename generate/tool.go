package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/groundcheck/paperagent/types"
)

// NoContentMessage is the fixed draft returned when no document is loaded.
// The model is not called in that case; fabricating an answer from nothing is
// exactly the failure mode this library exists to prevent.
const NoContentMessage = "No document content is available. Please load a document before asking questions about it."

// DefaultGeneratorSystemPrompt instructs the model to stay inside the
// document. The single "%s" placeholder receives the success criteria.
const DefaultGeneratorSystemPrompt = `You are a research assistant analyzing a document on behalf of a user.

SUCCESS CRITERIA: %s

Rules:
- Your answer must be based SOLELY on the provided document content. Do not include information, assumptions, or knowledge not present in this specific document.
- If the document does not contain the information needed to answer the question, clearly state that limitation instead of guessing.
- You may call the provided tools to fetch additional chunks or metadata before answering.`

// maxGenerateAttempts bounds automatic retries: one retry, then the failure
// propagates.
const maxGenerateAttempts = 2

type ToolBasedGenerator struct {
	chatModel    model.ToolCallingChatModel
	tools        []*schema.ToolInfo
	systemPrompt string

	// maxInline is the largest document (in characters) embedded whole into
	// the prompt; larger documents get a leading excerpt plus the tools.
	maxInline int
}

type Option func(*ToolBasedGenerator)

// WithSystemPrompt overrides the grounding system prompt. A "%s" placeholder,
// if present, receives the success criteria.
func WithSystemPrompt(prompt string) Option {
	return func(g *ToolBasedGenerator) { g.systemPrompt = prompt }
}

func WithMaxInline(chars int) Option {
	return func(g *ToolBasedGenerator) {
		if chars > 0 {
			g.maxInline = chars
		}
	}
}

func NewToolBasedGenerator(chatModel model.ToolCallingChatModel, tools []*schema.ToolInfo, opts ...Option) *ToolBasedGenerator {
	g := &ToolBasedGenerator{
		chatModel:    chatModel,
		tools:        tools,
		systemPrompt: DefaultGeneratorSystemPrompt,
		maxInline:    12000,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

func (g *ToolBasedGenerator) GenerateDraft(ctx context.Context, req *Request) (*schema.Message, error) {
	if req.Document.Empty() {
		return schema.AssistantMessage(NoContentMessage, nil), nil
	}

	messages := g.buildPrompt(req)

	var lastErr error
	for attempt := 1; attempt <= maxGenerateAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		response, err := g.chatModel.Generate(ctx, messages, model.WithTools(g.tools))
		if err == nil {
			return response, nil
		}
		lastErr = err
		slog.Debug("draft generation attempt failed", "attempt", attempt, "error", err)
	}
	return nil, &types.GenerationError{Err: lastErr}
}

func (g *ToolBasedGenerator) buildPrompt(req *Request) []*schema.Message {
	criteria := req.SuccessCriteria
	if strings.TrimSpace(criteria) == "" {
		criteria = types.DefaultSuccessCriteria
	}
	question := req.Question
	if strings.TrimSpace(question) == "" {
		question = types.DefaultQuestion
	}

	system := g.systemPrompt
	if strings.Contains(system, "%s") {
		system = fmt.Sprintf(system, criteria)
	}
	if req.Feedback != "" {
		system = types.JoinSections(system, types.Section(
			"Previous evaluation feedback",
			req.Feedback+"\nAddress this feedback. You must not repeat the flagged error.",
		))
	}

	var contextSection string
	text := req.Document.Text()
	if len(text) <= g.maxInline {
		contextSection = types.Section("Full document content", text)
	} else {
		chunks := req.Document.Chunks()
		excerpt := chunks[0]
		if len(chunks) > 1 {
			excerpt += "\n" + chunks[1]
		}
		contextSection = types.JoinSections(
			types.Section("Document excerpt (beginning)", excerpt),
			types.Section("Note", fmt.Sprintf(
				"The document has %d chunks in total. Use the tools to fetch or search the rest before answering.",
				req.Document.NumChunks(),
			)),
		)
	}

	user := types.JoinSections(
		contextSection,
		types.Section("Question", question),
	)

	messages := []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	}
	return append(messages, req.History...)
}
