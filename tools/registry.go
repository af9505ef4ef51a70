package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/groundcheck/paperagent/document"
	"github.com/groundcheck/paperagent/types"
)

// Registry binds the fixed tool set to one document. Invoke dispatches by
// name; unknown names surface as *types.ToolError, as do failing executions.
type Registry struct {
	tools map[string]tool.InvokableTool
	order []string
}

func NewRegistry(doc *document.Document) (*Registry, error) {
	fetch, err := utils.InferTool(
		ToolFetchChunk,
		"Fetch one chunk of the active document by zero-based index.",
		fetchChunk(doc),
	)
	if err != nil {
		return nil, fmt.Errorf("build %s tool: %w", ToolFetchChunk, err)
	}
	info, err := utils.InferTool(
		ToolDocumentInfo,
		"Get metadata about the active document (title, author, pages, chunk count).",
		documentInfo(doc),
	)
	if err != nil {
		return nil, fmt.Errorf("build %s tool: %w", ToolDocumentInfo, err)
	}
	find, err := utils.InferTool(
		ToolFindInDocument,
		"Search the active document for a phrase and return the chunks that contain it.",
		findInDocument(doc),
	)
	if err != nil {
		return nil, fmt.Errorf("build %s tool: %w", ToolFindInDocument, err)
	}
	return &Registry{
		tools: map[string]tool.InvokableTool{
			ToolFetchChunk:     fetch,
			ToolDocumentInfo:   info,
			ToolFindInDocument: find,
		},
		order: []string{ToolFetchChunk, ToolDocumentInfo, ToolFindInDocument},
	}, nil
}

// Infos returns the tool schemas for binding to a chat model.
func (r *Registry) Infos(ctx context.Context) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(r.order))
	for _, name := range r.order {
		info, err := r.tools[name].Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get tool info for %s: %w", name, err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Invoke executes one registered tool with JSON-encoded arguments.
func (r *Registry) Invoke(ctx context.Context, name string, argsJSON string) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", &types.ToolError{Tool: name, Err: types.ErrUnknownTool}
	}
	out, err := t.InvokableRun(ctx, argsJSON)
	if err != nil {
		return "", &types.ToolError{Tool: name, Err: err}
	}
	return out, nil
}

// Resolve executes every tool call in the batch and returns one tool-result
// message per call, in order. A failing call yields its error text as the
// result content so the generator can adapt instead of the cycle aborting.
func (r *Registry) Resolve(ctx context.Context, calls []schema.ToolCall) ([]*schema.Message, error) {
	results := make([]*schema.Message, 0, len(calls))
	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := r.Invoke(ctx, call.Function.Name, call.Function.Arguments)
		if err != nil {
			slog.Debug("tool call failed", "tool", call.Function.Name, "error", err)
			out = fmt.Sprintf("Tool error: %v", err)
		}
		results = append(results, schema.ToolMessage(out, call.ID))
	}
	return results, nil
}
