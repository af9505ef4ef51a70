package agent

import (
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/groundcheck/paperagent/evaluate"
	"github.com/groundcheck/paperagent/types"
)

func TestRouteAfterGenerate(t *testing.T) {
	t.Parallel()

	withCalls := schema.AssistantMessage("", []schema.ToolCall{
		{ID: "1", Function: schema.FunctionCall{Name: "fetch_chunk", Arguments: `{"index":0}`}},
	})
	if got := RouteAfterGenerate(withCalls); got != types.PhaseAwaitingTool {
		t.Fatalf("tool calls should route to awaiting tool, got %s", got)
	}

	final := schema.AssistantMessage("The paper proposes a transformer model.", nil)
	if got := RouteAfterGenerate(final); got != types.PhaseEvaluating {
		t.Fatalf("final draft should route to evaluating, got %s", got)
	}

	if got := RouteAfterGenerate(nil); got != types.PhaseEvaluating {
		t.Fatalf("nil message should route to evaluating, got %s", got)
	}
}

func TestRouteAfterEvaluate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		verdict   *evaluate.Verdict
		cycle     int
		maxCycles int
		want      types.Phase
	}{
		{
			name:    "grounded accepts",
			verdict: &evaluate.Verdict{Grounded: true},
			cycle:   1, maxCycles: 3,
			want: types.PhaseAccepted,
		},
		{
			name:    "rejection below ceiling regenerates",
			verdict: &evaluate.Verdict{Feedback: "the claim about datasets is unsupported"},
			cycle:   1, maxCycles: 3,
			want: types.PhaseGenerating,
		},
		{
			name:    "rejection at ceiling forces acceptance",
			verdict: &evaluate.Verdict{Feedback: "still unsupported"},
			cycle:   3, maxCycles: 3,
			want: types.PhaseAccepted,
		},
		{
			name:    "needs user input halts",
			verdict: &evaluate.Verdict{NeedsUserInput: true, Feedback: "which section do you mean?"},
			cycle:   1, maxCycles: 3,
			want: types.PhaseNeedsInput,
		},
		{
			name:    "needs user input wins over ceiling",
			verdict: &evaluate.Verdict{NeedsUserInput: true, Feedback: "which section do you mean?"},
			cycle:   3, maxCycles: 3,
			want: types.PhaseNeedsInput,
		},
		{
			name:    "grounded at ceiling is a normal acceptance",
			verdict: &evaluate.Verdict{Grounded: true},
			cycle:   3, maxCycles: 3,
			want: types.PhaseAccepted,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := RouteAfterEvaluate(tc.verdict, tc.cycle, tc.maxCycles); got != tc.want {
				t.Fatalf("want %s, got %s", tc.want, got)
			}
		})
	}
}
