package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/groundcheck/paperagent/document"
	"github.com/groundcheck/paperagent/types"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	doc := document.New(
		"We evaluate on ImageNet, CIFAR-10, and MNIST. "+strings.Repeat("Additional experimental details follow. ", 20),
		document.WithMetadata(document.Metadata{Title: "Eval Paper", Author: "Doe", Pages: 9}),
		document.WithChunkSize(200),
		document.WithOverlap(20),
	)
	reg, err := NewRegistry(doc)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return reg
}

func TestRegistryInfos(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry(t)
	infos, err := reg.Infos(context.Background())
	if err != nil {
		t.Fatalf("infos: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("expected 3 tool infos, got %d", len(infos))
	}
	if infos[0].Name != ToolFetchChunk {
		t.Errorf("expected %s first, got %s", ToolFetchChunk, infos[0].Name)
	}
}

func TestRegistryInvokeFetchChunk(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry(t)
	out, err := reg.Invoke(context.Background(), ToolFetchChunk, `{"index":0}`)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !strings.Contains(out, "ImageNet") {
		t.Errorf("chunk 0 should contain dataset names, got %q", out)
	}
}

func TestRegistryInvokeOutOfRange(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry(t)
	_, err := reg.Invoke(context.Background(), ToolFetchChunk, `{"index":99}`)
	var toolErr *types.ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected ToolError, got %v", err)
	}
	if toolErr.Tool != ToolFetchChunk {
		t.Errorf("wrong tool in error: %s", toolErr.Tool)
	}
}

func TestRegistryInvokeUnknownTool(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry(t)
	_, err := reg.Invoke(context.Background(), "send_push_notification", `{}`)
	var toolErr *types.ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected ToolError, got %v", err)
	}
	if !errors.Is(err, types.ErrUnknownTool) {
		t.Errorf("expected ErrUnknownTool, got %v", err)
	}
}

func TestRegistryInvokeDocumentInfo(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry(t)
	out, err := reg.Invoke(context.Background(), ToolDocumentInfo, `{}`)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !strings.Contains(out, "Eval Paper") || !strings.Contains(out, "Doe") {
		t.Errorf("metadata missing from output: %q", out)
	}
}

func TestRegistryInvokeFind(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry(t)
	out, err := reg.Invoke(context.Background(), ToolFindInDocument, `{"query":"cifar-10"}`)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !strings.Contains(out, "CIFAR-10") {
		t.Errorf("expected matching chunk, got %q", out)
	}

	out, err = reg.Invoke(context.Background(), ToolFindInDocument, `{"query":"BERT"}`)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !strings.Contains(out, "No occurrence") {
		t.Errorf("expected no-occurrence message, got %q", out)
	}
}

func TestRegistryResolveSurfacesToolErrors(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry(t)
	calls := []schema.ToolCall{
		{ID: "call-1", Function: schema.FunctionCall{Name: "bogus_tool", Arguments: `{}`}},
		{ID: "call-2", Function: schema.FunctionCall{Name: ToolFetchChunk, Arguments: `{"index":0}`}},
	}
	msgs, err := reg.Resolve(context.Background(), calls)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 tool results, got %d", len(msgs))
	}
	if msgs[0].Role != schema.Tool || msgs[0].ToolCallID != "call-1" {
		t.Errorf("first result not a tool turn for call-1: %+v", msgs[0])
	}
	if !strings.Contains(msgs[0].Content, "Tool error") {
		t.Errorf("tool error should be surfaced as content, got %q", msgs[0].Content)
	}
	if !strings.Contains(msgs[1].Content, "ImageNet") {
		t.Errorf("second result should carry chunk text, got %q", msgs[1].Content)
	}
}
