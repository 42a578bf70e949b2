// Package openairefine rewrites raw transcriptions through an
// OpenAI-compatible chat completion endpoint.
package openairefine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"voicehold/internal/domain/engine"
	"voicehold/internal/platform/config"
	"voicehold/internal/platform/logging"

	openai "github.com/sashabaranov/go-openai"
)

var _ engine.Refiner = (*Engine)(nil)

func init() {
	engine.RegisterRefiner("openai", NewEngine)
}

// Engine wraps an OpenAI chat client for single-turn text cleanup.
type Engine struct {
	client      *openai.Client
	model       string
	temperature float64
	maxTokens   int
	logger      *logging.Logger
}

// NewEngine builds the engine from its provider config block.
func NewEngine(cfg *config.RefineConfig, logger *logging.Logger) (engine.Refiner, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing API key for openai refinement")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	e := &Engine{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.ModelName,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}
	if e.model == "" {
		e.model = openai.GPT4oMini
	}
	if e.maxTokens <= 0 {
		e.maxTokens = 1000
	}
	return e, nil
}

func (e *Engine) Name() string { return "openai/" + e.model }

// Refine sends the instruction as the system prompt and the raw text as the
// user turn. The model's reply is the refined text; anything else it might
// add is the model's problem, not parsed here.
func (e *Engine) Refine(ctx context.Context, text string, instruction string) (string, error) {
	start := time.Now()

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: float32(e.temperature),
		MaxTokens:   e.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instruction},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("refinement request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("refinement returned no choices")
	}

	refined := strings.TrimSpace(resp.Choices[0].Message.Content)
	if refined == "" {
		return "", fmt.Errorf("refinement returned empty text")
	}

	e.logger.InfoRefine("%d -> %d chars in %s", len(text), len(refined), time.Since(start).Round(time.Millisecond))
	return refined, nil
}

func (e *Engine) Close() error { return nil }
