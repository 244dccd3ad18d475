package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/pantry-receipts/internal/entity"
	"github.com/joseph-ayodele/pantry-receipts/internal/ocr"
	"github.com/joseph-ayodele/pantry-receipts/internal/quota"
	"github.com/joseph-ayodele/pantry-receipts/internal/vision"
)

const (
	DefaultStageTimeout  = 20 * time.Second
	DefaultMaxImageBytes = 10 << 20
)

type VisionAnalyzer interface {
	AnalyzeImage(ctx context.Context, image []byte, mimeType string) (vision.Result, error)
}

type TextParser interface {
	ParseText(ctx context.Context, rawText string) ([]entity.ExtractedItem, error)
}

type DeterministicParser interface {
	Parse(rawText string) []entity.ExtractedItem
}

type EventRecorder interface {
	AppendScanEvent(ctx context.Context, ev entity.ScanEvent) error
}

type QuotaLedger interface {
	CheckAndReserve(ctx context.Context, userID string, tier quota.Tier) (quota.Reservation, error)
	Usage(ctx context.Context, userID string, tier quota.Tier) (quota.State, error)
}

type TierResolver interface {
	Tier(ctx context.Context, userID string) (quota.Tier, error)
}

// Observer receives per-stage and per-scan signals, typically metrics.
type Observer interface {
	StageDone(stage, result string, elapsed time.Duration)
	ScanDone(mode entity.ScanMode, outcome entity.ScanOutcome)
	ScanRejected(code Code, tier quota.Tier)
}

type nopObserver struct{}

func (nopObserver) StageDone(string, string, time.Duration)      {}
func (nopObserver) ScanDone(entity.ScanMode, entity.ScanOutcome) {}
func (nopObserver) ScanRejected(Code, quota.Tier)                {}

type Config struct {
	StageTimeout  time.Duration
	MaxImageBytes int
}

// Deps are the collaborators. Vision, OCR and Assist may be nil when the
// corresponding service is not configured.
type Deps struct {
	Vision        VisionAnalyzer
	OCR           ocr.Extractor
	Assist        TextParser
	Deterministic DeterministicParser
	Events        EventRecorder
	Ledger        QuotaLedger
	Tiers         TierResolver
	Observer      Observer
}

type ScanRequest struct {
	UserID       string
	Image        []byte
	PreferVision bool
}

type ScanResult struct {
	EventID uuid.UUID              `json:"eventId"`
	Items   []entity.ExtractedItem `json:"items"`
	Mode    entity.ScanMode        `json:"mode"`
	Outcome entity.ScanOutcome     `json:"outcome"`
	Usage   quota.State            `json:"usage"`
}

// Orchestrator sequences quota admission, the extraction chain and the
// recording of the scan event.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(cfg Config, deps Deps, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = DefaultStageTimeout
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = DefaultMaxImageBytes
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	o := &Orchestrator{cfg: cfg, deps: deps, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Scan runs one receipt through the chain. Every returned error is a
// *ScanError.
func (o *Orchestrator) Scan(ctx context.Context, req ScanRequest) (ScanResult, error) {
	start := o.now()
	log := o.logger.With("user_id", req.UserID)

	mimeType, err := o.validate(req)
	if err != nil {
		o.deps.Observer.ScanRejected(CodeInvalidRequest, "")
		log.Info("pipeline.scan.invalid_request", "error", err, "bytes", len(req.Image))
		return ScanResult{}, newScanError(CodeInvalidRequest, err)
	}

	useVision := req.PreferVision && o.deps.Vision != nil
	if !useVision && o.deps.OCR == nil {
		o.deps.Observer.ScanRejected(CodeServiceUnavailable, "")
		log.Error("pipeline.scan.no_extraction_path", "prefer_vision", req.PreferVision)
		return ScanResult{}, newScanError(CodeServiceUnavailable, fmt.Errorf("neither vision nor ocr is configured"))
	}

	tier, err := o.deps.Tiers.Tier(ctx, req.UserID)
	if err != nil {
		log.Error("pipeline.scan.tier_failed", "error", err)
		return ScanResult{}, newScanError(CodeInternal, err)
	}
	resv, err := o.deps.Ledger.CheckAndReserve(ctx, req.UserID, tier)
	if err != nil {
		log.Error("pipeline.scan.quota_failed", "error", err)
		return ScanResult{}, newScanError(CodeInternal, err)
	}
	if !resv.Admitted {
		o.deps.Observer.ScanRejected(CodeQuotaExceeded, tier)
		log.Info("pipeline.scan.quota_exceeded", "tier", tier, "used", resv.State.Used, "effective_limit", resv.State.EffectiveLimit)
		return ScanResult{}, newScanError(CodeQuotaExceeded, nil).withUsage(resv.State)
	}

	a := &attempt{req: req, mimeType: mimeType}
	out, err := o.fold(ctx, a, o.stages(useVision), log)
	if err != nil {
		return ScanResult{}, err
	}

	ev := entity.ScanEvent{
		ID:        uuid.New(),
		UserID:    req.UserID,
		Timestamp: o.now(),
		Mode:      out.mode,
		Outcome:   out.outcome,
		RawText:   out.rawText,
		Items:     out.items,
	}
	if err := o.deps.Events.AppendScanEvent(ctx, ev); err != nil {
		log.Error("pipeline.scan.record_failed", "error", err, "mode", out.mode)
		return ScanResult{}, newScanError(CodeInternal, fmt.Errorf("record scan event: %w", err))
	}
	o.deps.Observer.ScanDone(out.mode, out.outcome)

	usage, err := o.deps.Ledger.Usage(ctx, req.UserID, tier)
	if err != nil {
		log.Warn("pipeline.scan.usage_refresh_failed", "error", err)
		usage = resv.State
		usage.Used++
		if usage.Remaining > 0 {
			usage.Remaining--
		}
	}

	log.Info("pipeline.scan.done",
		"mode", out.mode,
		"outcome", out.outcome,
		"items", len(out.items),
		"remaining", usage.Remaining,
		"elapsed_ms", o.now().Sub(start).Milliseconds(),
	)

	if out.invalid != "" {
		return ScanResult{}, newScanError(codeForReason(out.invalid), nil).withUsage(usage)
	}
	return ScanResult{
		EventID: ev.ID,
		Items:   out.items,
		Mode:    out.mode,
		Outcome: out.outcome,
		Usage:   usage,
	}, nil
}

// Usage reports the caller's quota position without admitting anything.
func (o *Orchestrator) Usage(ctx context.Context, userID string) (quota.State, error) {
	if userID == "" {
		return quota.State{}, newScanError(CodeInvalidRequest, fmt.Errorf("user id is required"))
	}
	tier, err := o.deps.Tiers.Tier(ctx, userID)
	if err != nil {
		return quota.State{}, newScanError(CodeInternal, err)
	}
	st, err := o.deps.Ledger.Usage(ctx, userID, tier)
	if err != nil {
		return quota.State{}, newScanError(CodeInternal, err)
	}
	return st, nil
}

func (o *Orchestrator) validate(req ScanRequest) (string, error) {
	if req.UserID == "" {
		return "", fmt.Errorf("user id is required")
	}
	if len(req.Image) == 0 {
		return "", fmt.Errorf("image is empty")
	}
	if len(req.Image) > o.cfg.MaxImageBytes {
		return "", fmt.Errorf("image is %d bytes, limit is %d", len(req.Image), o.cfg.MaxImageBytes)
	}
	mt, ok := ocr.DetectImage(req.Image)
	if !ok {
		return "", fmt.Errorf("content type %q is not an image", mt)
	}
	return mt, nil
}
