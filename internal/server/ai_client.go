package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"pawdiary/backend/internal/config"
)

// ModelCaller turns a fully rendered prompt into the model's raw text reply.
// Any transport, auth, or provider failure surfaces as a plain error; the
// caller decides how to degrade.
type ModelCaller interface {
	CallModel(ctx context.Context, prompt string) (string, error)
	ModelName() string
}

// ChatCompletionsClient calls an OpenAI-compatible chat-completions endpoint
// (SiliconFlow in the default configuration).
type ChatCompletionsClient struct {
	client          openai.Client
	model           string
	maxOutputTokens int
}

func NewChatCompletionsClient(cfg config.Config) (*ChatCompletionsClient, error) {
	apiKey := strings.TrimSpace(cfg.AIAPIKey)
	if apiKey == "" {
		return nil, errors.New("AI_API_KEY is not configured")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.AIBaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("AI_BASE_URL is not configured")
	}
	model := strings.TrimSpace(cfg.AIModel)
	if model == "" {
		return nil, errors.New("AI_MODEL is not configured")
	}

	timeoutSeconds := cfg.AITimeoutSeconds
	if timeoutSeconds <= 0 {
		timeoutSeconds = 60
	}
	maxTokens := cfg.AIMaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 600
	}

	return &ChatCompletionsClient{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(baseURL),
			option.WithRequestTimeout(time.Duration(timeoutSeconds)*time.Second),
		),
		model:           model,
		maxOutputTokens: maxTokens,
	}, nil
}

func (c *ChatCompletionsClient) ModelName() string {
	return c.model
}

func (c *ChatCompletionsClient) CallModel(ctx context.Context, prompt string) (string, error) {
	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You are a helpful AI assistant."),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0.6),
		MaxTokens:   openai.Int(int64(c.maxOutputTokens)),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	content := completion.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", errors.New("chat completion content is empty")
	}
	return content, nil
}

// MockModelCaller stands in for the real model in local mode and in tests.
// It always emits a well-formed analysis object so the full extraction and
// normalization path runs against it.
type MockModelCaller struct {
	Model string
}

func (m MockModelCaller) ModelName() string {
	model := strings.TrimSpace(m.Model)
	if model == "" {
		return "mock-model"
	}
	return model
}

func (m MockModelCaller) CallModel(_ context.Context, prompt string) (string, error) {
	reply := "Thank you for sharing this with me. It sounds like today carried real weight, and writing it down is already a kind step toward yourself."
	if strings.Contains(prompt, `MUST be exactly an empty string`) {
		reply = ""
	}
	return fmt.Sprintf(
		`{"reply": %q, "emotion": "calm", "intensity": 2, "theme_scores": {"work": 0.25, "hobbies": 0.25, "social": 0.25, "other": 0.25}, "primary_theme": null}`,
		reply,
	), nil
}
