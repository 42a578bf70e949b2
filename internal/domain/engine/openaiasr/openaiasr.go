// Package openaiasr transcribes sealed audio through the OpenAI-compatible
// audio transcription endpoint (Whisper and API-compatible local servers).
package openaiasr

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"voicehold/internal/domain/audio"
	"voicehold/internal/domain/engine"
	"voicehold/internal/platform/config"
	"voicehold/internal/platform/logging"

	openai "github.com/sashabaranov/go-openai"
)

var _ engine.Transcriber = (*Engine)(nil)

func init() {
	engine.RegisterTranscriber("openai", NewEngine)
}

// Engine wraps an OpenAI client configured for audio transcription.
type Engine struct {
	client   *openai.Client
	model    string
	language string
	logger   *logging.Logger
	ready    atomic.Bool
}

// NewEngine builds the engine from its provider config block. The client is
// constructed eagerly; Ready flips true once construction validates.
func NewEngine(cfg *config.ASRConfig, logger *logging.Logger) (engine.Transcriber, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing API key for openai transcription")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := cfg.ModelName
	if model == "" {
		model = openai.Whisper1
	}

	e := &Engine{
		client:   openai.NewClientWithConfig(clientConfig),
		model:    model,
		language: cfg.Language,
		logger:   logger,
	}
	e.ready.Store(true)
	return e, nil
}

func (e *Engine) Name() string { return "openai/" + e.model }

func (e *Engine) Ready() bool { return e.ready.Load() }

// Transcribe uploads the samples as an in-memory WAV and returns the text.
func (e *Engine) Transcribe(ctx context.Context, samples []float32) (string, error) {
	start := time.Now()

	resp, err := e.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    e.model,
		FilePath: "capture.wav",
		Reader:   bytes.NewReader(audio.EncodeWAV(samples)),
		Language: e.language,
	})
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	e.logger.InfoASR("%.2fs of audio -> %d chars in %s", audio.Duration(samples), len(text), time.Since(start).Round(time.Millisecond))
	return text, nil
}

func (e *Engine) Close() error {
	e.ready.Store(false)
	return nil
}
