package agent

import (
	"github.com/cloudwego/eino/schema"
)

type Trimmer interface {
	Trim(history []*schema.Message) []*schema.Message
}

// KeepLastNTrimmer keeps the last N messages, then drops any leading tool
// results so the kept window never starts with an orphaned tool turn.
// When N <= 0 the history is cleared.
type KeepLastNTrimmer struct {
	N int
}

func (t KeepLastNTrimmer) Trim(history []*schema.Message) []*schema.Message {
	if t.N <= 0 {
		return nil
	}
	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		if m != nil {
			out = append(out, m)
		}
	}
	if len(out) > t.N {
		out = out[len(out)-t.N:]
	}
	for len(out) > 0 && out[0].Role == schema.Tool {
		out = out[1:]
	}
	return out
}
