package openai

import (
	"log/slog"
	"os"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/joseph-ayodele/pantry-receipts/internal/llm"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
)

// Config for the chat/completions client.
type Config struct {
	APIKey      string // falls back to OPENAI_API_KEY
	BaseURL     string
	Model       string
	Temperature float32
	// Transport is passed to llm.NewHTTPClient. A zero value means one
	// attempt with a 30s ceiling; the stage deadline usually fires first.
	Transport llm.HTTPConfig
}

// Client serves both completer contracts from one chat/completions endpoint.
type Client struct {
	cfg    Config
	http   *retryablehttp.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Transport.Timeout <= 0 {
		cfg.Transport.Timeout = 30 * time.Second
	}
	return &Client{cfg: cfg, http: llm.NewHTTPClient(cfg.Transport, logger), logger: logger}
}

// Configured reports whether the client has credentials to call the API.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}
