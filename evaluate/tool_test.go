package evaluate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/groundcheck/paperagent/document"
	"github.com/groundcheck/paperagent/internal/modeltest"
	"github.com/groundcheck/paperagent/types"
)

func TestToolBasedEvaluatorDecodesVerdict(t *testing.T) {
	t.Parallel()
	m := modeltest.NewScriptedModel(modeltest.StructuredCall(recordVerdictToolName, Verdict{
		Grounded: false,
		Feedback: "The 10% improvement over BERT is not stated in the document.",
	}))
	e, err := NewToolBasedEvaluator(m)
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}

	verdict, err := e.Evaluate(context.Background(), &Request{
		Document: document.New("We evaluate on ImageNet."),
		Question: "How does this compare to BERT?",
		Draft:    "This approach outperforms BERT by 10%.",
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if verdict.Grounded {
		t.Error("expected rejection")
	}
	if !strings.Contains(verdict.Feedback, "BERT") {
		t.Errorf("feedback should name the claim, got %q", verdict.Feedback)
	}
}

func TestToolBasedEvaluatorRejectsSchemaViolation(t *testing.T) {
	t.Parallel()
	// A rejection without feedback violates the verdict contract and must
	// surface as EvaluationError, never as acceptance.
	m := modeltest.NewScriptedModel(modeltest.StructuredCall(recordVerdictToolName, Verdict{}))
	e, err := NewToolBasedEvaluator(m)
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}

	_, err = e.Evaluate(context.Background(), &Request{
		Document: document.New("text"),
		Draft:    "draft",
	})
	var evalErr *types.EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %v", err)
	}
}

func TestToolBasedEvaluatorModelFailure(t *testing.T) {
	t.Parallel()
	m := modeltest.NewScriptedModel(modeltest.Fail(errors.New("upstream 500")))
	e, err := NewToolBasedEvaluator(m)
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}

	_, err = e.Evaluate(context.Background(), &Request{
		Document: document.New("text"),
		Draft:    "draft",
	})
	var evalErr *types.EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %v", err)
	}
}

func TestEvaluatorPromptCarriesPriorFeedback(t *testing.T) {
	t.Parallel()
	m := modeltest.NewScriptedModel(modeltest.StructuredCall(recordVerdictToolName, Verdict{Grounded: true}))
	e, err := NewToolBasedEvaluator(m)
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}

	_, err = e.Evaluate(context.Background(), &Request{
		Document:      document.New("We evaluate on ImageNet."),
		Question:      "How does this compare to BERT?",
		Draft:         "The paper does not compare against BERT.",
		PriorFeedback: "The BERT improvement claim is unverified.",
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	user := m.Calls()[0][1]
	if !strings.Contains(user.Content, "Previous feedback") ||
		!strings.Contains(user.Content, "unverified") {
		t.Errorf("prior feedback missing from prompt:\n%s", user.Content)
	}
}
