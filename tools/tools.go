// Package tools exposes the fixed set of document-retrieval tools the
// generator may call: chunk fetch, metadata lookup, and a substring scan.
// Tool names are drawn from a fixed registry; anything else is a ToolError.
package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/groundcheck/paperagent/document"
	"github.com/groundcheck/paperagent/types"
)

const (
	ToolFetchChunk     = "fetch_chunk"
	ToolDocumentInfo   = "document_info"
	ToolFindInDocument = "find_in_document"
)

type FetchChunkInput struct {
	Index int `json:"index" jsonschema:"required,description=Zero-based index of the document chunk to fetch"`
}

type DocumentInfoInput struct{}

type FindInDocumentInput struct {
	Query      string `json:"query" jsonschema:"required,description=Case-insensitive text to look for in the document"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"description=Maximum number of matching chunks to return (default 3)"`
}

func fetchChunk(doc *document.Document) func(ctx context.Context, in *FetchChunkInput) (string, error) {
	return func(ctx context.Context, in *FetchChunkInput) (string, error) {
		chunk, err := doc.Chunk(in.Index)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Chunk %d of %d:\n%s", in.Index+1, doc.NumChunks(), chunk), nil
	}
}

func documentInfo(doc *document.Document) func(ctx context.Context, in *DocumentInfoInput) (string, error) {
	return func(ctx context.Context, in *DocumentInfoInput) (string, error) {
		meta := doc.Metadata()
		rows := [][]string{
			{"Title", orUnknown(meta.Title)},
			{"Author", orUnknown(meta.Author)},
			{"Subject", orUnknown(meta.Subject)},
			{"Pages", strconv.Itoa(meta.Pages)},
			{"Chunks", strconv.Itoa(doc.NumChunks())},
			{"Characters", strconv.Itoa(len(doc.Text()))},
		}
		return types.MarkdownTable("Document information", []string{"Field", "Value"}, rows), nil
	}
}

func findInDocument(doc *document.Document) func(ctx context.Context, in *FindInDocumentInput) (string, error) {
	return func(ctx context.Context, in *FindInDocumentInput) (string, error) {
		query := strings.ToLower(strings.TrimSpace(in.Query))
		if query == "" {
			return "", fmt.Errorf("empty query")
		}
		limit := in.MaxResults
		if limit <= 0 {
			limit = 3
		}
		var hits []string
		for i, chunk := range doc.Chunks() {
			if strings.Contains(strings.ToLower(chunk), query) {
				hits = append(hits, fmt.Sprintf("Chunk %d:\n%s", i, chunk))
				if len(hits) >= limit {
					break
				}
			}
		}
		if len(hits) == 0 {
			return fmt.Sprintf("No occurrence of %q in the document.", in.Query), nil
		}
		return strings.Join(hits, "\n\n"), nil
	}
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}
