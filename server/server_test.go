package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"

	"github.com/groundcheck/paperagent/agent"
	"github.com/groundcheck/paperagent/evaluate"
	"github.com/groundcheck/paperagent/internal/modeltest"
)

const paperText = "The paper introduces a transformer architecture. " +
	"Experiments were run on the WMT 2014 English-German translation task."

func newTestServer(t *testing.T, chat *modeltest.ScriptedModel, opts ...Option) *httptest.Server {
	t.Helper()
	srv, err := New(chat, opts...)
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, raw
}

func createSession(t *testing.T, ts *httptest.Server, body string) sessionResp {
	t.Helper()
	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/api/sessions", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d body %s", resp.StatusCode, raw)
	}
	var created sessionResp
	if err := sonic.Unmarshal(raw, &created); err != nil {
		t.Fatal(err)
	}
	return created
}

func TestCreateSessionDefaults(t *testing.T) {
	t.Parallel()

	chat := modeltest.NewScriptedModel()
	ts := newTestServer(t, chat)

	created := createSession(t, ts, `{"document_text":"`+paperText+`"}`)
	if created.SessionID == "" {
		t.Fatal("session ID missing")
	}
	if created.Chunks != 1 {
		t.Fatalf("want 1 chunk, got %d", created.Chunks)
	}
	if created.Settings.MaxCycles != agent.DefaultMaxCycles {
		t.Fatalf("want default max cycles, got %d", created.Settings.MaxCycles)
	}
	if !created.Settings.Registered || !created.Settings.Evaluate {
		t.Fatalf("want registered evaluated defaults, got %+v", created.Settings)
	}
}

func TestAskRunsTheLoop(t *testing.T) {
	t.Parallel()

	chat := modeltest.NewScriptedModel(
		modeltest.Text("The experiments use WMT 2014 English-German."),
		modeltest.StructuredCall("record_verdict", evaluate.Verdict{Grounded: true}),
	)
	ts := newTestServer(t, chat)
	created := createSession(t, ts, `{"document_text":"`+paperText+`"}`)

	resp, raw := doJSON(t, http.MethodPost,
		ts.URL+"/api/sessions/"+created.SessionID+"/ask",
		`{"question":"What task was evaluated?"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ask: status %d body %s", resp.StatusCode, raw)
	}
	var answer askResp
	if err := sonic.Unmarshal(raw, &answer); err != nil {
		t.Fatal(err)
	}
	if !answer.Accepted || answer.Forced || answer.NeedsInput {
		t.Fatalf("want clean acceptance, got %+v", answer)
	}
	if answer.Cycles != 1 {
		t.Fatalf("want one cycle, got %d", answer.Cycles)
	}
	if !strings.Contains(answer.Answer, "WMT 2014") {
		t.Fatalf("answer lost content: %q", answer.Answer)
	}
}

func TestAskUnknownSession(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, modeltest.NewScriptedModel())
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/sessions/nope/ask", `{"question":"q"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("want 404, got %d", resp.StatusCode)
	}
}

func TestPatchMergesSettings(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, modeltest.NewScriptedModel())
	created := createSession(t, ts,
		`{"document_text":"`+paperText+`","success_criteria":"cite sections"}`)

	resp, raw := doJSON(t, http.MethodPatch,
		ts.URL+"/api/sessions/"+created.SessionID, `{"max_cycles":5}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch: status %d body %s", resp.StatusCode, raw)
	}
	var patched sessionResp
	if err := sonic.Unmarshal(raw, &patched); err != nil {
		t.Fatal(err)
	}
	if patched.Settings.MaxCycles != 5 {
		t.Fatalf("want max cycles 5, got %d", patched.Settings.MaxCycles)
	}
	if patched.Settings.SuccessCriteria != "cite sections" {
		t.Fatalf("merge patch must keep untouched fields, got %q", patched.Settings.SuccessCriteria)
	}
}

func TestPatchRejectsBadCeiling(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, modeltest.NewScriptedModel())
	created := createSession(t, ts, `{"document_text":"`+paperText+`"}`)

	resp, _ := doJSON(t, http.MethodPatch,
		ts.URL+"/api/sessions/"+created.SessionID, `{"max_cycles":0}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", resp.StatusCode)
	}
}

func TestUnregisteredSessionIsGated(t *testing.T) {
	t.Parallel()

	chat := modeltest.NewScriptedModel()
	ts := newTestServer(t, chat)
	created := createSession(t, ts,
		`{"document_text":"`+paperText+`","registered":false}`)

	resp, raw := doJSON(t, http.MethodPost,
		ts.URL+"/api/sessions/"+created.SessionID+"/ask",
		`{"question":"Summarize this paper"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ask: status %d body %s", resp.StatusCode, raw)
	}
	var answer askResp
	if err := sonic.Unmarshal(raw, &answer); err != nil {
		t.Fatal(err)
	}
	if !answer.NeedsInput || answer.Accepted {
		t.Fatalf("want registration halt, got %+v", answer)
	}
	if answer.Answer != agent.RegistrationMessage {
		t.Fatalf("want registration message, got %q", answer.Answer)
	}
	if len(chat.Calls()) != 0 {
		t.Fatal("model must not run for unregistered sessions")
	}
}

func TestPlainVariantSkipsEvaluation(t *testing.T) {
	t.Parallel()

	chat := modeltest.NewScriptedModel(modeltest.Text("plain answer"))
	ts := newTestServer(t, chat)
	created := createSession(t, ts,
		`{"document_text":"`+paperText+`","evaluate":false}`)

	resp, raw := doJSON(t, http.MethodPost,
		ts.URL+"/api/sessions/"+created.SessionID+"/ask",
		`{"question":"Summarize this paper"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ask: status %d body %s", resp.StatusCode, raw)
	}
	var answer askResp
	if err := sonic.Unmarshal(raw, &answer); err != nil {
		t.Fatal(err)
	}
	if !answer.Accepted || answer.Cycles != 0 {
		t.Fatalf("plain variant must accept without cycles, got %+v", answer)
	}
	if len(chat.Calls()) != 1 {
		t.Fatalf("want one generation call, got %d", len(chat.Calls()))
	}
}

func TestStatusReflectsState(t *testing.T) {
	t.Parallel()

	chat := modeltest.NewScriptedModel(
		modeltest.Text("answer"),
		modeltest.StructuredCall("record_verdict", evaluate.Verdict{Grounded: true}),
	)
	ts := newTestServer(t, chat)
	created := createSession(t, ts, `{"document_text":"`+paperText+`"}`)

	doJSON(t, http.MethodPost,
		ts.URL+"/api/sessions/"+created.SessionID+"/ask",
		`{"question":"What task was evaluated?"}`)

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/api/sessions/"+created.SessionID, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d body %s", resp.StatusCode, raw)
	}
	var status statusResp
	if err := sonic.Unmarshal(raw, &status); err != nil {
		t.Fatal(err)
	}
	if status.Question != "What task was evaluated?" {
		t.Fatalf("status question %q", status.Question)
	}
	if !status.Accepted || status.Cycle != 1 {
		t.Fatalf("status must reflect the loop outcome, got %+v", status)
	}
	if status.Messages == 0 {
		t.Fatal("status must report conversation length")
	}
}

func TestDeleteSession(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, modeltest.NewScriptedModel())
	created := createSession(t, ts, `{"document_text":"`+paperText+`"}`)

	resp, _ := doJSON(t, http.MethodDelete, ts.URL+"/api/sessions/"+created.SessionID, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: want 204, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/sessions/"+created.SessionID, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted session must 404, got %d", resp.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, modeltest.NewScriptedModel())
	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/sessions", "")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("want 405, got %d", resp.StatusCode)
	}
}
