// Package document holds the extracted text of the active document and
// exposes it as overlapping chunks. A Document is immutable after creation;
// loading a new document means building a new Document and resetting the
// session that owned the old one.
package document

import (
	"fmt"
	"strings"
)

const (
	DefaultChunkSize = 12000
	DefaultOverlap   = 200
)

// Metadata carries the bibliographic fields extracted alongside the text.
type Metadata struct {
	Title   string `json:"title,omitempty"`
	Author  string `json:"author,omitempty"`
	Subject string `json:"subject,omitempty"`
	Pages   int    `json:"pages,omitempty"`
}

type Document struct {
	text   string
	meta   Metadata
	chunks []string
}

type Option func(*options)

type options struct {
	meta      Metadata
	chunkSize int
	overlap   int
}

func WithMetadata(meta Metadata) Option {
	return func(o *options) { o.meta = meta }
}

func WithChunkSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.chunkSize = size
		}
	}
}

func WithOverlap(overlap int) Option {
	return func(o *options) {
		if overlap >= 0 {
			o.overlap = overlap
		}
	}
}

func New(text string, opts ...Option) *Document {
	o := options{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultOverlap,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	text = strings.TrimSpace(text)
	return &Document{
		text:   text,
		meta:   o.meta,
		chunks: ChunkText(text, o.chunkSize, o.overlap),
	}
}

func (d *Document) Text() string { return d.text }

func (d *Document) Metadata() Metadata { return d.meta }

func (d *Document) Empty() bool { return d == nil || d.text == "" }

func (d *Document) NumChunks() int {
	if d == nil {
		return 0
	}
	return len(d.chunks)
}

// Chunk returns the zero-based chunk at index.
func (d *Document) Chunk(index int) (string, error) {
	if d == nil || index < 0 || index >= len(d.chunks) {
		return "", fmt.Errorf("chunk index %d out of range [0, %d)", index, d.NumChunks())
	}
	return d.chunks[index], nil
}

func (d *Document) Chunks() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.chunks))
	copy(out, d.chunks)
	return out
}

// Sample returns at most n leading characters of the text, for evaluation
// prompts that only need a representative slice.
func (d *Document) Sample(n int) string {
	if d == nil || n <= 0 || len(d.text) <= n {
		return d.Text()
	}
	return d.text[:n] + "..."
}

// ChunkText splits text into overlapping chunks. Chunk boundaries snap back
// to the last space inside the window so words are not cut mid-token.
func ChunkText(text string, size, overlap int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultOverlap % size
	}
	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			end = len(text)
		} else if i := strings.LastIndex(text[start:end], " "); i > 0 {
			end = start + i
		}
		if chunk := strings.TrimSpace(text[start:end]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= len(text) {
			break
		}
		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}
