// Package vertex serves the completer contracts with Gemini on Vertex AI.
package vertex

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/pantry-receipts/internal/llm"
)

type Config struct {
	ProjectID       string
	Location        string // e.g. "asia-northeast3"
	CredentialsFile string // optional, ADC otherwise
	Model           string // e.g. "gemini-1.5-flash"
	Temperature     float32
}

type Client struct {
	cfg    Config
	client *genai.Client
	logger *slog.Logger
}

var (
	_ llm.TextCompleter  = (*Client)(nil)
	_ llm.ImageCompleter = (*Client)(nil)
)

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("vertex: project id is required")
	}
	if cfg.Location == "" {
		cfg.Location = "us-central1"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Location, opts...)
	if err != nil {
		return nil, fmt.Errorf("vertex: create client: %w", err)
	}
	return &Client{cfg: cfg, client: client, logger: logger}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) CompleteText(ctx context.Context, req llm.Request) (string, error) {
	return c.generate(ctx, "text", req, genai.Text(req.User))
}

func (c *Client) CompleteImage(ctx context.Context, req llm.Request) (string, error) {
	if len(req.Image) == 0 {
		return "", fmt.Errorf("vertex: image request without image")
	}
	mt := req.MIMEType
	if mt == "" {
		mt = "image/jpeg"
	}
	return c.generate(ctx, "vision", req, genai.Blob{MIMEType: mt, Data: req.Image}, genai.Text(req.User))
}

func (c *Client) generate(ctx context.Context, kind string, req llm.Request, parts ...genai.Part) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	model := c.client.GenerativeModel(c.cfg.Model)
	model.SetTemperature(c.cfg.Temperature)
	model.ResponseMIMEType = "application/json"
	sys := req.System
	if req.Schema != nil {
		b, _ := json.Marshal(req.Schema)
		sys += "\n\nJSON Schema:\n" + string(b)
	}
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(sys)}}

	c.logger.Info("llm.vertex.start", "req_id", rid, "kind", kind, "model", c.cfg.Model, "image_bytes", len(req.Image))

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		c.logger.Error("llm.vertex.generate_error", "req_id", rid, "kind", kind, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("vertex: generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", llm.ErrEmptyCompletion
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	content := strings.TrimSpace(b.String())
	if content == "" {
		return "", llm.ErrEmptyCompletion
	}

	c.logger.Info("llm.vertex.ok", "req_id", rid, "kind", kind, "content_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds())
	return content, nil
}
