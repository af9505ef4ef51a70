package evaluate

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/groundcheck/paperagent/structured"
	"github.com/groundcheck/paperagent/types"
)

const (
	recordVerdictToolName        = "record_verdict"
	recordVerdictToolDescription = "Record whether the draft answer is grounded in the document content, with feedback when it is not."

	// sampleChars bounds how much document text is quoted in the
	// evaluation prompt.
	sampleChars = 3000
)

const evaluatorSystemPrompt = `You are an evaluator that determines whether a research analysis response is accurate and properly grounded in the provided document content.

Evaluate for:
1. ACCURACY: information matches what is actually in the document.
2. GROUNDING: no hallucinated information that is not present in the source. A claim that merely sounds plausible from general knowledge still counts as ungrounded if the document does not state it.
3. RELEVANCE: the response directly answers the question asked.
4. COMPLETENESS: the question is addressed adequately given the available content.
5. LIMITATIONS: a response that correctly states the document lacks the requested information is a valid grounded answer.

Be strict: if the response contains any factual claim not stated in the document content, mark grounded as false and describe the specific ungrounded claim in the feedback.
Set needs_user_input to true only when the question itself is too ambiguous to evaluate without clarification from the user; never use it for a draft that merely needs correction.

Record the result by calling the '` + recordVerdictToolName + `' tool.`

// ToolBasedEvaluator obtains verdicts through a forced tool call so the
// output is machine-parseable without free-text parsing.
type ToolBasedEvaluator struct {
	chain *structured.Chain[*Request, Verdict]
}

func NewToolBasedEvaluator(chatModel model.ToolCallingChatModel) (*ToolBasedEvaluator, error) {
	chain, err := structured.NewChain[*Request, Verdict](
		chatModel,
		buildEvaluatorPrompt,
		recordVerdictToolName,
		recordVerdictToolDescription,
	)
	if err != nil {
		return nil, err
	}
	chain.Validate = (*Verdict).Validate
	return &ToolBasedEvaluator{chain: chain}, nil
}

func (e *ToolBasedEvaluator) Evaluate(ctx context.Context, req *Request) (*Verdict, error) {
	verdict, err := e.chain.Invoke(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &types.EvaluationError{Reason: "verdict call", Err: err}
	}
	return verdict, nil
}

func buildEvaluatorPrompt(ctx context.Context, req *Request) ([]*schema.Message, error) {
	criteria := req.SuccessCriteria
	if strings.TrimSpace(criteria) == "" {
		criteria = types.DefaultSuccessCriteria
	}

	sections := []string{
		types.Section("Question asked", req.Question),
		types.Section("Success criteria", criteria),
		types.Section("Document content sample", req.Document.Sample(sampleChars)),
		types.Section("Assistant response to evaluate", req.Draft),
	}
	if req.PriorFeedback != "" {
		sections = append(sections, types.Section(
			"Previous feedback",
			req.PriorFeedback+"\nAlso judge whether this feedback has been resolved.",
		))
	}

	return []*schema.Message{
		schema.SystemMessage(evaluatorSystemPrompt),
		schema.UserMessage(types.JoinSections(sections...)),
	}, nil
}
