package ollama

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/voronkovm/diagramflow/internal/core/domain"
	"github.com/voronkovm/diagramflow/internal/infrastructure/resilience"
)

func testExecutor() *resilience.Executor {
	cfg := resilience.Config{
		Retry: resilience.RetryPolicy{
			MaxAttempts:    2,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     2 * time.Millisecond,
			Multiplier:     2.0,
		},
		Breaker: resilience.BreakerPolicy{Enabled: false},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return resilience.NewExecutor(cfg, logger)
}

func TestChatSendsConversationInJSONMode(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"  {\"ok\":true}  "}}`))
	}))
	defer server.Close()

	client := New(server.URL, "diagram-model", 0, testExecutor())
	got, err := client.Chat(context.Background(), []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: "contract"},
		{Role: domain.RoleUser, Content: "payload"},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if got != `{"ok":true}` {
		t.Fatalf("Chat() = %q, want trimmed assistant content", got)
	}
	if captured.Model != "diagram-model" {
		t.Fatalf("model = %q, want diagram-model", captured.Model)
	}
	if captured.Stream {
		t.Fatalf("expected stream disabled")
	}
	if captured.Format != "json" {
		t.Fatalf("format = %q, want json", captured.Format)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" || captured.Messages[1].Content != "payload" {
		t.Fatalf("unexpected messages: %+v", captured.Messages)
	}
}

func TestChatIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusNotFound)
	}))
	defer server.Close()

	client := New(server.URL, "diagram-model", 0, testExecutor())
	_, err := client.Chat(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model not loaded") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("404 must stay permanent, got temporary kind: %v", err)
	}
}

func TestChatMarksRetryableStatusTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, "diagram-model", 0, testExecutor())
	_, err := client.Chat(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("503 should carry the temporary kind, got %v", err)
	}
}

func TestChatRetriesTransientStatusOnce(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"recovered"}}`))
	}))
	defer server.Close()

	client := New(server.URL, "diagram-model", 0, testExecutor())
	got, err := client.Chat(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if got != "recovered" {
		t.Fatalf("Chat() = %q, want recovered", got)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestAnalyzerParsesModerationVerdict(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"Verdict: {\"decision\":\"APPROVE\",\"confidence\":1.4,\"reason\":\" looks fine \"}"}}`))
	}))
	defer server.Close()

	analyzer := NewAnalyzer(New(server.URL, "diagram-model", 0, testExecutor()))
	analysis, err := analyzer.Analyze(context.Background(), &domain.Diagram{
		Title:  "Order Flow",
		Tags:   []string{"orders", "payments"},
		Markup: "flowchart TD\n  A-->B",
		Format: domain.FormatMermaid,
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if analysis.Decision != domain.DecisionApprove {
		t.Fatalf("decision = %q, want approve", analysis.Decision)
	}
	if analysis.Confidence != 1 {
		t.Fatalf("confidence = %v, want clamp to 1", analysis.Confidence)
	}
	if analysis.Reason != "looks fine" {
		t.Fatalf("reason = %q, want trimmed", analysis.Reason)
	}

	if len(captured.Messages) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(captured.Messages))
	}
	userContent := captured.Messages[1].Content
	for _, want := range []string{"Order Flow", "orders, payments", "flowchart TD"} {
		if !strings.Contains(userContent, want) {
			t.Fatalf("user content missing %q: %s", want, userContent)
		}
	}
}

func TestAnalyzerRejectsMalformedVerdict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"no json here"}}`))
	}))
	defer server.Close()

	analyzer := NewAnalyzer(New(server.URL, "diagram-model", 0, testExecutor()))
	_, err := analyzer.Analyze(context.Background(), &domain.Diagram{Title: "x", Markup: "y"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrMalformedOutput) {
		t.Fatalf("expected malformed-output kind, got %v", err)
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("malformed output must not look retryable: %v", err)
	}
}

func TestExtractJSONObject(t *testing.T) {
	cases := map[string]string{
		`{"a":1}`:                  `{"a":1}`,
		"Sure! {\"a\":1} done":     `{"a":1}`,
		"no object at all":         "no object at all",
		"broken { start, no close": "broken { start, no close",
	}
	for raw, want := range cases {
		if got := extractJSONObject(raw); got != want {
			t.Fatalf("extractJSONObject(%q) = %q, want %q", raw, got, want)
		}
	}
}
