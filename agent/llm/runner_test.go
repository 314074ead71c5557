package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	contractx "github.com/superbryn/voice-agent/agent/contract"
)

type scriptedCompletion struct {
	content   string
	toolCalls []map[string]any
}

// newScriptedServer serves one canned chat completion per request, in
// order, and repeats the last one when the script runs out.
func newScriptedServer(t *testing.T, script []scriptedCompletion) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	var served int
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		idx := served
		if idx >= len(script) {
			idx = len(script) - 1
		}
		served++
		mu.Unlock()

		step := script[idx]
		message := map[string]any{"role": "assistant", "content": step.content}
		if len(step.toolCalls) > 0 {
			message["tool_calls"] = step.toolCalls
		}
		resp := map[string]any{
			"id":      "cmpl-test",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   "test-model",
			"choices": []map[string]any{{"index": 0, "message": message, "finish_reason": "stop"}},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
}

func toolCall(id, name, arguments string) map[string]any {
	return map[string]any{
		"id":   id,
		"type": "function",
		"function": map[string]any{
			"name":      name,
			"arguments": arguments,
		},
	}
}

type fakeExecutor struct {
	results map[string]contractx.ToolResult

	mu     sync.Mutex
	calls  []string
	phones []string
}

func (f *fakeExecutor) Execute(_ context.Context, name string, _ json.RawMessage, identifiedPhone string) contractx.ToolResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	f.phones = append(f.phones, identifiedPhone)
	if res, ok := f.results[name]; ok {
		return res
	}
	return contractx.ToolResult{Success: true, Message: "ok"}
}

func newTestRunner(t *testing.T, server *httptest.Server, executor contractx.ToolExecutor) *Runner {
	t.Helper()
	client := openaisdk.NewClient(
		option.WithAPIKey("test-key"),
		option.WithBaseURL(server.URL),
		option.WithMaxRetries(0),
	)
	runner, err := New(&client, executor, WithClock(func() time.Time {
		return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return runner
}

func TestRunTurnPlainReply(t *testing.T) {
	t.Parallel()
	server := newScriptedServer(t, []scriptedCompletion{
		{content: "Hello! How can I help you today?"},
	})
	defer server.Close()

	runner := newTestRunner(t, server, &fakeExecutor{})
	out, err := runner.RunTurn(context.Background(), []contractx.Turn{
		{Role: contractx.RoleUser, Text: "hi"},
	}, "")
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if out.Reply != "Hello! How can I help you today?" {
		t.Errorf("reply = %q", out.Reply)
	}
	if len(out.Executions) != 0 {
		t.Errorf("executions = %v, want none", out.Executions)
	}
}

func TestRunTurnExecutesToolsThenReplies(t *testing.T) {
	t.Parallel()
	server := newScriptedServer(t, []scriptedCompletion{
		{toolCalls: []map[string]any{
			toolCall("call_1", "identify_user", `{"phone_number":"555 123 4567"}`),
		}},
		{content: "Thanks, you're identified!"},
	})
	defer server.Close()

	executor := &fakeExecutor{results: map[string]contractx.ToolResult{
		"identify_user": {Success: true, PhoneNumber: "5551234567", Message: "User identified: 5551234567"},
	}}
	runner := newTestRunner(t, server, executor)

	out, err := runner.RunTurn(context.Background(), []contractx.Turn{
		{Role: contractx.RoleUser, Text: "my number is 555 123 4567"},
	}, "")
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if out.Reply != "Thanks, you're identified!" {
		t.Errorf("reply = %q", out.Reply)
	}
	if len(out.Executions) != 1 {
		t.Fatalf("executions = %v, want 1", out.Executions)
	}

	exec := out.Executions[0]
	if exec.Name != "identify_user" {
		t.Errorf("execution name = %q", exec.Name)
	}
	if !json.Valid([]byte(exec.Arguments)) || !json.Valid([]byte(exec.Output)) {
		t.Errorf("execution carries non-JSON payloads: %+v", exec)
	}
	var result contractx.ToolResult
	if err := json.Unmarshal([]byte(exec.Output), &result); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if !result.Success || result.PhoneNumber != "5551234567" {
		t.Errorf("decoded output = %+v", result)
	}
}

func TestRunTurnPropagatesIdentityWithinBatch(t *testing.T) {
	t.Parallel()
	server := newScriptedServer(t, []scriptedCompletion{
		{toolCalls: []map[string]any{
			toolCall("call_1", "identify_user", `{"phone_number":"5551234567"}`),
			toolCall("call_2", "retrieve_appointments", `{"phone_number":"5551234567"}`),
		}},
		{content: "You have no appointments."},
	})
	defer server.Close()

	executor := &fakeExecutor{results: map[string]contractx.ToolResult{
		"identify_user": {Success: true, PhoneNumber: "5551234567"},
	}}
	runner := newTestRunner(t, server, executor)

	if _, err := runner.RunTurn(context.Background(), []contractx.Turn{
		{Role: contractx.RoleUser, Text: "show my appointments, number 5551234567"},
	}, ""); err != nil {
		t.Fatalf("RunTurn: %v", err)
	}

	if len(executor.phones) != 2 || executor.phones[0] != "" || executor.phones[1] != "5551234567" {
		t.Fatalf("executor phones = %v, want identity to flow to the second call", executor.phones)
	}
}

func TestRunTurnStopsAfterRoundBudget(t *testing.T) {
	t.Parallel()
	// The model keeps asking for tools; the runner must still come back
	// with a text reply.
	server := newScriptedServer(t, []scriptedCompletion{
		{toolCalls: []map[string]any{toolCall("call_1", "fetch_slots", `{}`)}},
		{toolCalls: []map[string]any{toolCall("call_2", "fetch_slots", `{}`)}},
		{toolCalls: []map[string]any{toolCall("call_3", "fetch_slots", `{}`)}},
		{toolCalls: []map[string]any{toolCall("call_4", "fetch_slots", `{}`)}},
		{content: "Here are the available slots."},
	})
	defer server.Close()

	executor := &fakeExecutor{}
	runner := newTestRunner(t, server, executor)

	out, err := runner.RunTurn(context.Background(), []contractx.Turn{
		{Role: contractx.RoleUser, Text: "slots?"},
	}, "")
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if out.Reply != "Here are the available slots." {
		t.Errorf("reply = %q", out.Reply)
	}
	if len(out.Executions) != 4 {
		t.Errorf("executions = %d, want 4", len(out.Executions))
	}
}

func TestRunTurnWrapsTransportErrors(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	runner := newTestRunner(t, server, &fakeExecutor{})
	_, err := runner.RunTurn(context.Background(), []contractx.Turn{
		{Role: contractx.RoleUser, Text: "hi"},
	}, "")
	if err == nil {
		t.Fatal("expected error from failing backend")
	}
	if !errors.Is(err, contractx.ErrModelInvoke) {
		t.Errorf("error %v not wrapped with the model-invoke sentinel", err)
	}
}
