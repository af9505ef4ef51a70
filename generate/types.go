package generate

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/groundcheck/paperagent/document"
)

// Request carries everything one draft turn depends on. History holds the
// turns of the current run, including unresolved tool-call turns and their
// tool results; it is replayed to the model after every tool round trip.
type Request struct {
	Document        *document.Document
	Question        string
	SuccessCriteria string

	// Feedback from the most recent rejecting verdict. When present it is a
	// mandatory correction directive for this draft.
	Feedback string

	History []*schema.Message
}

// Generator produces exactly one new turn per invocation: either a final
// draft answer or a tool-call request.
type Generator interface {
	GenerateDraft(ctx context.Context, req *Request) (*schema.Message, error)
}
