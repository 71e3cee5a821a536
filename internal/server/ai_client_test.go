package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pawdiary/backend/internal/analysis"
	"pawdiary/backend/internal/config"
)

func TestMockModelCallerEmitsParseableAnalysis(t *testing.T) {
	caller := MockModelCaller{Model: "mock-1"}
	raw, err := caller.CallModel(context.Background(), "reply mode prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := analysis.Normalize(analysis.ExtractObject(raw))
	if strings.TrimSpace(result.Reply) == "" {
		t.Fatalf("expected non-empty mock reply")
	}
	if result.Emotion == nil || *result.Emotion != analysis.EmotionCalm {
		t.Fatalf("expected calm emotion from mock, got %v", result.Emotion)
	}
	if result.ThemeScores == nil {
		t.Fatalf("expected theme scores from mock")
	}
}

func TestMockModelCallerRespectsAnalysisOnlyPrompt(t *testing.T) {
	caller := MockModelCaller{}
	persona := analysis.PersonaProfile{DisplayName: "Luna"}
	prompt := analysis.BuildPrompt("content", persona, true)

	raw, err := caller.CallModel(context.Background(), prompt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result := analysis.Normalize(analysis.ExtractObject(raw))
	if result.Reply != "" {
		t.Fatalf("expected empty reply for analysis-only prompt, got %q", result.Reply)
	}
}

func TestNewChatCompletionsClientRequiresConfig(t *testing.T) {
	cfg := config.Config{AIBaseURL: "https://example.com/v1", AIModel: "m"}
	if _, err := NewChatCompletionsClient(cfg); err == nil {
		t.Fatalf("expected missing api key to fail")
	}

	cfg = config.Config{AIAPIKey: "key", AIModel: "m"}
	if _, err := NewChatCompletionsClient(cfg); err == nil {
		t.Fatalf("expected missing base url to fail")
	}

	cfg = config.Config{AIAPIKey: "key", AIBaseURL: "https://example.com/v1"}
	if _, err := NewChatCompletionsClient(cfg); err == nil {
		t.Fatalf("expected missing model to fail")
	}
}

func TestChatCompletionsClientCallModel(t *testing.T) {
	var gotPath string
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{
			"id": "cmpl-1",
			"object": "chat.completion",
			"model": "test-model",
			"choices": [
				{"index": 0, "message": {"role": "assistant", "content": "{\"reply\":\"hi\"}"}, "finish_reason": "stop"}
			]
		}`))
	}))
	defer srv.Close()

	client, err := NewChatCompletionsClient(config.Config{
		AIAPIKey:          "test-key",
		AIBaseURL:         srv.URL,
		AIModel:           "test-model",
		AIMaxOutputTokens: 100,
		AITimeoutSeconds:  5,
	})
	if err != nil {
		t.Fatalf("client init failed: %v", err)
	}

	raw, err := client.CallModel(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if raw != `{"reply":"hi"}` {
		t.Fatalf("unexpected content: %q", raw)
	}
	if !strings.HasSuffix(gotPath, "/chat/completions") {
		t.Fatalf("unexpected request path: %q", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
}

func TestChatCompletionsClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error": {"message": "upstream exploded"}}`))
	}))
	defer srv.Close()

	client, err := NewChatCompletionsClient(config.Config{
		AIAPIKey:         "test-key",
		AIBaseURL:        srv.URL,
		AIModel:          "test-model",
		AITimeoutSeconds: 5,
	})
	if err != nil {
		t.Fatalf("client init failed: %v", err)
	}

	if _, err := client.CallModel(context.Background(), "prompt"); err == nil {
		t.Fatalf("expected upstream error to surface")
	}
}
