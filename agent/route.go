package agent

import (
	"github.com/cloudwego/eino/schema"

	"github.com/groundcheck/paperagent/evaluate"
	"github.com/groundcheck/paperagent/types"
)

// RouteAfterGenerate decides the edge out of the generating state: a turn
// with outstanding tool calls must be resolved before anything else; a final
// draft goes to evaluation.
func RouteAfterGenerate(msg *schema.Message) types.Phase {
	if msg != nil && len(msg.ToolCalls) > 0 {
		return types.PhaseAwaitingTool
	}
	return types.PhaseEvaluating
}

// RouteAfterEvaluate decides the edge out of the evaluating state. cycle is
// the number of completed evaluations including this one; maxCycles is the
// iteration ceiling. Reaching the ceiling forces acceptance regardless of
// grounding so the loop always terminates.
func RouteAfterEvaluate(verdict *evaluate.Verdict, cycle, maxCycles int) types.Phase {
	switch {
	case verdict.Grounded:
		return types.PhaseAccepted
	case verdict.NeedsUserInput:
		return types.PhaseNeedsInput
	case cycle >= maxCycles:
		return types.PhaseAccepted
	default:
		return types.PhaseGenerating
	}
}
