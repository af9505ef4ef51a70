package evaluate

import (
	"context"
	"fmt"
	"strings"

	"github.com/groundcheck/paperagent/types"
)

// absencePatterns mark a sentence as an acknowledgment that the document
// lacks the requested information, which is itself a grounded answer.
var absencePatterns = []string{
	"does not mention",
	"does not contain",
	"does not compare",
	"does not discuss",
	"does not provide",
	"doesn't mention",
	"no information",
	"no mention of",
	"not present in the document",
	"not covered in the document",
	"cannot be answered from the document",
	"no document content is available",
}

// LocalEvaluator is a deterministic, model-free grounding check: each
// sentence of the draft must either acknowledge an absence or have most of
// its content words present in the document text. It is intentionally crude;
// it exists as a failback and for offline use.
type LocalEvaluator struct {
	// MinWordCoverage is the fraction of a sentence's content words that
	// must appear in the document text. Zero means the default of 0.7.
	MinWordCoverage float64
}

func (e *LocalEvaluator) Evaluate(ctx context.Context, req *Request) (*Verdict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	threshold := e.MinWordCoverage
	if threshold <= 0 {
		threshold = 0.7
	}
	haystack := strings.ToLower(req.Document.Text())

	for _, sentence := range splitSentences(req.Draft) {
		lower := strings.ToLower(sentence)
		if matchesAbsence(lower) {
			continue
		}
		words := contentWords(lower)
		if len(words) == 0 {
			continue
		}
		found := 0
		for _, w := range words {
			if strings.Contains(haystack, w) {
				found++
			}
		}
		if float64(found)/float64(len(words)) < threshold {
			return &Verdict{
				Grounded: false,
				Feedback: fmt.Sprintf("The claim %q is not supported by the document text.", sentence),
			}, nil
		}
	}
	return &Verdict{Grounded: true}, nil
}

func matchesAbsence(sentence string) bool {
	for _, p := range absencePatterns {
		if strings.Contains(sentence, p) {
			return true
		}
	}
	return false
}

func splitSentences(text string) []string {
	var out []string
	var cur strings.Builder
	for _, r := range text {
		cur.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(cur.String()); s != "" {
				out = append(out, s)
			}
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// contentWords keeps lowercased tokens of four or more characters, stripped
// of surrounding punctuation. Short function words carry no grounding signal.
func contentWords(sentence string) []string {
	fields := strings.Fields(sentence)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.Trim(f, ".,;:!?()[]{}\"'")
		if len(w) >= 4 {
			out = append(out, w)
		}
	}
	return out
}

// FailbackEvaluator tries each evaluator in order until one succeeds.
type FailbackEvaluator struct {
	evaluators []Evaluator
}

func NewFailbackEvaluator(evaluators ...Evaluator) *FailbackEvaluator {
	return &FailbackEvaluator{evaluators: evaluators}
}

func (e *FailbackEvaluator) Evaluate(ctx context.Context, req *Request) (*Verdict, error) {
	var lastErr error
	for _, evaluator := range e.evaluators {
		verdict, err := evaluator.Evaluate(ctx, req)
		if err == nil {
			return verdict, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		lastErr = err
	}
	return nil, &types.EvaluationError{Reason: "all evaluators failed", Err: lastErr}
}
