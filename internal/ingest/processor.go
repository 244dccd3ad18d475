package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/pantry-receipts/internal/pipeline"
)

// Scanner is the orchestrator entry point used for inbox files.
type Scanner interface {
	Scan(ctx context.Context, req pipeline.ScanRequest) (pipeline.ScanResult, error)
}

// Sidecar is the JSON document written next to every processed image.
type Sidecar struct {
	Path      string               `json:"path"`
	ScannedAt time.Time            `json:"scannedAt"`
	Result    *pipeline.ScanResult `json:"result,omitempty"`
	Error     *SidecarError        `json:"error,omitempty"`
}

type SidecarError struct {
	Code    pipeline.Code `json:"code"`
	Message string        `json:"message"`
}

// ScanProcessor scans an inbox file for a fixed user and records the result
// in a sidecar. Files that already have a sidecar are skipped, so a rewrite
// event for a processed file never consumes quota twice.
type ScanProcessor struct {
	scanner      Scanner
	userID       string
	preferVision bool
	logger       *slog.Logger
}

func NewScanProcessor(scanner Scanner, userID string, preferVision bool, logger *slog.Logger) *ScanProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScanProcessor{scanner: scanner, userID: userID, preferVision: preferVision, logger: logger}
}

func (p *ScanProcessor) Process(ctx context.Context, job Job) error {
	out := resultPath(job.Path)
	if _, err := os.Stat(out); err == nil {
		p.logger.Info("ingest.process.already_done", "path", job.Path)
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat sidecar: %w", err)
	}

	image, err := os.ReadFile(job.Path)
	if err != nil {
		return fmt.Errorf("read %s: %w", job.Path, err)
	}

	res, scanErr := p.scanner.Scan(ctx, pipeline.ScanRequest{
		UserID:       p.userID,
		Image:        image,
		PreferVision: p.preferVision,
	})

	sc := Sidecar{Path: job.Path, ScannedAt: time.Now().UTC()}
	if scanErr != nil {
		code := pipeline.CodeOf(scanErr)
		// transient failures leave no sidecar so the next event retries the
		// file; a quota rejection clears when the daily window resets
		switch code {
		case pipeline.CodeServiceUnavailable, pipeline.CodeInternal, pipeline.CodeQuotaExceeded:
			return scanErr
		}
		sc.Error = &SidecarError{Code: code, Message: pipeline.Message(code)}
	} else {
		sc.Result = &res
	}

	doc, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sidecar: %w", err)
	}
	if err := os.WriteFile(out, doc, 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	if scanErr != nil {
		p.logger.Info("ingest.process.rejected", "path", job.Path, "code", sc.Error.Code)
		return nil
	}
	p.logger.Info("ingest.process.ok", "path", job.Path, "mode", res.Mode, "items", len(res.Items))
	return nil
}

// Queue is what Run feeds.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Run pumps watcher events into the queue until ctx is done, then drains
// the queue within drainTimeout.
func Run(ctx context.Context, cfg WatchConfig, q Queue, drainTimeout time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	events, errs, err := StartWatcher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		q.Shutdown(dctx)
	}()

	for {
		select {
		case path, ok := <-events:
			if !ok {
				return nil
			}
			if err := q.Enqueue(ctx, Job{Path: path}); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Warn("ingest.enqueue.failed", "path", path, "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("ingest.watch.error", "error", err)
		case <-ctx.Done():
			return nil
		}
	}
}
