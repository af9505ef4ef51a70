package evaluate

import (
	"context"
	"errors"

	"github.com/groundcheck/paperagent/document"
)

// Verdict is the structured output of one evaluation. Done is derived, never
// stored: a verdict is final when it is grounded or needs user input; budget
// exhaustion is the loop controller's call, not the evaluator's.
type Verdict struct {
	Grounded       bool   `json:"grounded" jsonschema:"required,description=True only if every factual claim in the draft is traceable to the document content. A draft that correctly states the document lacks the requested information is grounded."`
	Feedback       string `json:"feedback" jsonschema:"description=Specific explanation of the ungrounded or missing element. Required whenever grounded is false."`
	NeedsUserInput bool   `json:"needs_user_input" jsonschema:"description=True only if the question itself cannot be answered without clarification from the user."`
}

// Done reports whether the loop should stop iterating on this verdict.
func (v *Verdict) Done() bool {
	return v.Grounded || v.NeedsUserInput
}

// Validate rejects verdicts that violate the schema contract. Violations are
// surfaced, never coerced.
func (v *Verdict) Validate() error {
	if !v.Grounded && !v.NeedsUserInput && v.Feedback == "" {
		return errors.New("rejecting verdict carries no feedback")
	}
	if v.Grounded && v.NeedsUserInput {
		return errors.New("verdict is both grounded and awaiting user input")
	}
	return nil
}

type Request struct {
	Document        *document.Document
	Question        string
	SuccessCriteria string

	// Draft is the answer under evaluation.
	Draft string

	// PriorFeedback is the feedback from the previous rejection, if any, so
	// the evaluator can check whether it was resolved.
	PriorFeedback string
}

type Evaluator interface {
	Evaluate(ctx context.Context, req *Request) (*Verdict, error)
}
