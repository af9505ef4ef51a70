package types

type Phase string

const (
	PhaseGenerating   Phase = "generating"
	PhaseAwaitingTool Phase = "awaiting_tool"
	PhaseEvaluating   Phase = "evaluating"
	PhaseAccepted     Phase = "accepted"
	PhaseNeedsInput   Phase = "needs_input"
	PhaseFailed       Phase = "failed"
)

// Terminal reports whether the loop halts in this phase.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseAccepted, PhaseNeedsInput, PhaseFailed:
		return true
	default:
		return false
	}
}

// DefaultSuccessCriteria is used when the caller supplies none.
const DefaultSuccessCriteria = "Response must be accurate, based solely on the document content, directly answer the question, and contain no hallucinations"

// DefaultQuestion is substituted for an empty question.
const DefaultQuestion = "Summarize this paper"
