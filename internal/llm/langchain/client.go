// Package langchain adapts a langchaingo model to the text completer contract.
package langchain

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/joseph-ayodele/pantry-receipts/internal/llm"
)

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
}

// Completer sends text requests through any llms.Model in JSON mode.
type Completer struct {
	model       llms.Model
	temperature float64
	logger      *slog.Logger
}

var _ llm.TextCompleter = (*Completer)(nil)

// New wraps an existing model, which keeps tests free of network access.
func New(model llms.Model, temperature float64, logger *slog.Logger) *Completer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Completer{model: model, temperature: temperature, logger: logger}
}

// NewOpenAI builds the OpenAI-backed langchaingo model.
func NewOpenAI(cfg Config, logger *slog.Logger) (*Completer, error) {
	opts := []openai.Option{openai.WithToken(cfg.APIKey)}
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	m, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("langchain: openai model: %w", err)
	}
	return New(m, cfg.Temperature, logger), nil
}

func (c *Completer) CompleteText(ctx context.Context, req llm.Request) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	sys := req.System
	if req.Schema != nil {
		b, _ := json.Marshal(req.Schema)
		sys += "\n\nJSON Schema:\n" + string(b)
	}
	msgs := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, sys),
		llms.TextParts(llms.ChatMessageTypeHuman, req.User),
	}

	c.logger.Info("llm.langchain.start", "req_id", rid, "text_len", len(req.User))
	resp, err := c.model.GenerateContent(ctx, msgs,
		llms.WithTemperature(c.temperature),
		llms.WithJSONMode(),
	)
	if err != nil {
		c.logger.Error("llm.langchain.generate_error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("langchain: generate: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", llm.ErrEmptyCompletion
	}
	content := strings.TrimSpace(resp.Choices[0].Content)
	if content == "" {
		return "", llm.ErrEmptyCompletion
	}

	c.logger.Info("llm.langchain.ok", "req_id", rid, "content_len", len(content),
		"stop_reason", resp.Choices[0].StopReason,
		"elapsed_ms", time.Since(start).Milliseconds())
	return content, nil
}
