package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
)

// maxResponseBytes caps how much of a provider answer is read.
const maxResponseBytes = 8 << 20

// HTTPConfig tunes the transport shared by the HTTP-based providers.
type HTTPConfig struct {
	Timeout      time.Duration // per attempt
	Retries      int           // extra attempts on connection errors, 429 and 5xx
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// NewHTTPClient returns a retrying client. Backoff honours Retry-After and
// stops as soon as the request context is done, so a stage deadline always
// wins over the retry budget.
func NewHTTPClient(cfg HTTPConfig, logger *slog.Logger) *retryablehttp.Client {
	if logger == nil {
		logger = slog.Default()
	}
	rc := retryablehttp.NewClient()
	rc.Logger = httpLogger{logger}
	rc.RetryMax = max(cfg.Retries, 0)
	if cfg.Timeout > 0 {
		rc.HTTPClient.Timeout = cfg.Timeout
	}
	if cfg.RetryWaitMin > 0 {
		rc.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		rc.RetryWaitMax = cfg.RetryWaitMax
	}
	// Hand the last response back instead of a bare "giving up" error so the
	// caller can read the provider's error body.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return rc
}

// httpLogger demotes retryablehttp's per-attempt chatter to debug.
type httpLogger struct{ l *slog.Logger }

func (h httpLogger) Error(msg string, kv ...interface{}) { h.l.Warn("llm.http."+msg, kv...) }
func (h httpLogger) Warn(msg string, kv ...interface{})  { h.l.Warn("llm.http."+msg, kv...) }
func (h httpLogger) Info(msg string, kv ...interface{})  { h.l.Debug("llm.http."+msg, kv...) }
func (h httpLogger) Debug(msg string, kv ...interface{}) { h.l.Debug("llm.http."+msg, kv...) }

// PostJSON posts body as JSON and returns the raw answer with its status.
// A non-2xx answer is an error but its body is still returned.
func PostJSON(ctx context.Context, client *retryablehttp.Client, url string, body any, headers map[string]string, logger *slog.Logger) ([]byte, int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = NewHTTPClient(HTTPConfig{Timeout: 30 * time.Second}, logger)
	}

	reqID := uuid.New().String()
	start := time.Now()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("encode json: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, "POST", url, payload)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	logger.Debug("llm.http.request", "req_id", reqID, "url", url, "content_length", len(payload))

	resp, err := client.Do(req)
	if err != nil {
		logger.Error("llm.http.send_error", "req_id", reqID, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	logger.Info("llm.http.response", "req_id", reqID, "status", resp.StatusCode,
		"bytes", len(raw), "elapsed_ms", time.Since(start).Milliseconds())

	if resp.StatusCode/100 != 2 {
		return raw, resp.StatusCode, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return raw, resp.StatusCode, nil
}
