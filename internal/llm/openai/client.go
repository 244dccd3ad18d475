package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/joseph-ayodele/pantry-receipts/internal/llm"
)

var (
	_ llm.TextCompleter  = (*Client)(nil)
	_ llm.ImageCompleter = (*Client)(nil)
)

// CompleteText implements llm.TextCompleter using chat/completions in JSON mode.
func (c *Client) CompleteText(ctx context.Context, req llm.Request) (string, error) {
	user := req.User + "\n\nReturn ONLY JSON that matches the provided schema."
	return c.complete(ctx, "text", req, user)
}

// CompleteImage implements llm.ImageCompleter. The image travels inline as a
// base64 data URL next to the instruction.
func (c *Client) CompleteImage(ctx context.Context, req llm.Request) (string, error) {
	if len(req.Image) == 0 {
		return "", fmt.Errorf("openai: image request without image")
	}
	mt := req.MIMEType
	if mt == "" {
		mt = "image/jpeg"
	}
	dataURL := "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(req.Image)
	user := []map[string]any{
		{"type": "text", "text": strings.TrimSpace(req.User + "\n\nReturn ONLY JSON that matches the provided schema.")},
		{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
	}
	return c.complete(ctx, "vision", req, user)
}

func (c *Client) complete(ctx context.Context, kind string, req llm.Request, userContent any) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.openai.start",
		"req_id", rid,
		"kind", kind,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"image_bytes", len(req.Image),
	)

	messages := []map[string]any{
		{"role": "system", "content": req.System},
		{"role": "user", "content": userContent},
	}
	if req.Schema != nil {
		messages = append(messages, map[string]any{"role": "system", "content": "JSON Schema:\n" + mustJSON(req.Schema)})
	}
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages":        messages,
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, status, err := llm.PostJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		c.logger.Error("llm.openai.http_error",
			"req_id", rid, "kind", kind, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		if msg := gjson.GetBytes(raw, "error.message").String(); msg != "" {
			return "", fmt.Errorf("openai status %d: %s: %w", status, msg, err)
		}
		return "", fmt.Errorf("openai: %w", err)
	}

	if !gjson.ValidBytes(raw) {
		c.logger.Error("llm.openai.decode_error", "req_id", rid, "raw_bytes", len(raw))
		return "", fmt.Errorf("decode openai response: invalid json")
	}
	if gjson.GetBytes(raw, "choices.#").Int() == 0 {
		c.logger.Error("llm.openai.no_choices", "req_id", rid, "raw", string(raw))
		return "", fmt.Errorf("no choices in openai response")
	}
	content := strings.TrimSpace(gjson.GetBytes(raw, "choices.0.message.content").String())
	if content == "" {
		return "", llm.ErrEmptyCompletion
	}

	c.logger.Info("llm.openai.ok",
		"req_id", rid,
		"kind", kind,
		"content_len", len(content),
		"finish_reason", gjson.GetBytes(raw, "choices.0.finish_reason").String(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
