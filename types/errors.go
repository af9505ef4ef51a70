package types

import (
	"errors"
	"fmt"
)

// ErrUnknownTool is wrapped by ToolError when a tool name is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// GenerationError reports a failed draft generation: the model call failed
// after the automatic retry, or returned output the generator could not use.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// EvaluationError reports a failed evaluation: the evaluator call failed, or
// the verdict violated its schema contract. It is never converted into an
// acceptance; the loop fails instead.
type EvaluationError struct {
	Reason string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("evaluation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("evaluation failed: %s", e.Reason)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// ToolError reports a failed tool invocation. It is surfaced to the
// generator as a tool-result turn rather than aborting the cycle.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %q: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }
