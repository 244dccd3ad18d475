package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/pantry-receipts/internal/entity"
	"github.com/joseph-ayodele/pantry-receipts/internal/ocr"
	"github.com/joseph-ayodele/pantry-receipts/internal/vision"
)

const (
	StageVision        = "vision"
	StageOCR           = "ocr"
	StageAssisted      = "assisted"
	StageDeterministic = "deterministic"
)

var errNoRawText = errors.New("no recognized text to parse")

// attempt carries what earlier stages learned to later ones.
type attempt struct {
	req      ScanRequest
	mimeType string
	rawText  string
	hasText  bool
}

// outcome is a terminal result. invalid is set for a vision classification
// that ends the scan without items.
type outcome struct {
	mode    entity.ScanMode
	outcome entity.ScanOutcome
	items   []entity.ExtractedItem
	rawText *string
	invalid vision.Reason
}

// stageFunc returns a terminal outcome, nil to continue with the next stage,
// or an error, which is a stage failure and also continues.
type stageFunc func(ctx context.Context, a *attempt) (*outcome, error)

type stage struct {
	name     string
	external bool
	run      stageFunc
}

func (o *Orchestrator) stages(useVision bool) []stage {
	var out []stage
	if useVision {
		out = append(out, stage{name: StageVision, external: true, run: o.visionStage})
	}
	if o.deps.OCR != nil {
		out = append(out, stage{name: StageOCR, external: true, run: o.ocrStage})
		if o.deps.Assist != nil {
			out = append(out, stage{name: StageAssisted, external: true, run: o.assistedStage})
		}
		out = append(out, stage{name: StageDeterministic, run: o.deterministicStage})
	}
	return out
}

// fold runs the stages in order and stops at the first outcome.
func (o *Orchestrator) fold(ctx context.Context, a *attempt, stages []stage, log *slog.Logger) (*outcome, error) {
	var lastErr error
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			log.Info("pipeline.scan.cancelled", "stage", st.name, "error", err)
			return nil, newScanError(CodeInternal, fmt.Errorf("scan cancelled: %w", err))
		}

		sctx, cancel := ctx, context.CancelFunc(func() {})
		if st.external {
			sctx, cancel = context.WithTimeout(ctx, o.cfg.StageTimeout)
		}
		begin := time.Now()
		out, err := st.run(sctx, a)
		cancel()
		elapsed := time.Since(begin)

		switch {
		case errors.Is(err, errNoRawText):
			// OCR already failed; its error stays the cause
			o.deps.Observer.StageDone(st.name, "skipped", elapsed)
			log.Debug("pipeline.stage.skipped", "stage", st.name)
		case err != nil:
			result := "error"
			if errors.Is(err, context.DeadlineExceeded) {
				result = "timeout"
			}
			o.deps.Observer.StageDone(st.name, result, elapsed)
			log.Warn("pipeline.stage.failed", "stage", st.name, "result", result, "error", err, "elapsed_ms", elapsed.Milliseconds())
			lastErr = err
		case out == nil:
			o.deps.Observer.StageDone(st.name, "continue", elapsed)
			log.Info("pipeline.stage.continue", "stage", st.name, "elapsed_ms", elapsed.Milliseconds())
		default:
			o.deps.Observer.StageDone(st.name, "ok", elapsed)
			log.Info("pipeline.stage.ok", "stage", st.name, "outcome", out.outcome, "items", len(out.items), "elapsed_ms", elapsed.Milliseconds())
			return out, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, newScanError(CodeInternal, fmt.Errorf("scan cancelled: %w", err))
	}
	if o.deps.OCR == nil {
		log.Error("pipeline.scan.exhausted", "reason", "ocr_unconfigured", "error", lastErr)
		return nil, newScanError(CodeServiceUnavailable, lastErr)
	}
	log.Error("pipeline.scan.exhausted", "reason", "ocr_failed", "error", lastErr)
	return nil, newScanError(CodeInternal, lastErr)
}

func (o *Orchestrator) visionStage(ctx context.Context, a *attempt) (*outcome, error) {
	res, err := o.deps.Vision.AnalyzeImage(ctx, a.req.Image, a.mimeType)
	if err != nil {
		return nil, err
	}
	switch r := res.(type) {
	case vision.Valid:
		out := &outcome{mode: entity.ModeVision, outcome: entity.OutcomeOK, items: r.Items}
		if r.RawText != "" {
			raw := r.RawText
			out.rawText = &raw
		}
		return out, nil
	case vision.Invalid:
		return &outcome{
			mode:    entity.ModeVision,
			outcome: entity.ScanOutcome(r.Reason),
			items:   []entity.ExtractedItem{},
			invalid: r.Reason,
		}, nil
	default:
		return nil, fmt.Errorf("vision: unexpected result %T", res)
	}
}

func (o *Orchestrator) ocrStage(ctx context.Context, a *attempt) (*outcome, error) {
	res, err := o.deps.OCR.ExtractText(ctx, a.req.Image)
	if errors.Is(err, ocr.ErrNoText) {
		// a readable photo with nothing on it still reaches the parser and
		// ends as an empty result
		a.hasText = true
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.rawText = res.Text
	a.hasText = true
	return nil, nil
}

func (o *Orchestrator) assistedStage(ctx context.Context, a *attempt) (*outcome, error) {
	if !a.hasText {
		return nil, errNoRawText
	}
	if strings.TrimSpace(a.rawText) == "" {
		return nil, nil
	}
	items, err := o.deps.Assist.ParseText(ctx, a.rawText)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	raw := a.rawText
	return &outcome{mode: entity.ModeAssisted, outcome: entity.OutcomeOK, items: items, rawText: &raw}, nil
}

// deterministicStage always produces an outcome once text exists.
func (o *Orchestrator) deterministicStage(_ context.Context, a *attempt) (*outcome, error) {
	if !a.hasText {
		return nil, errNoRawText
	}
	items := o.deps.Deterministic.Parse(a.rawText)
	oc := entity.OutcomeOK
	if len(items) == 0 {
		oc = entity.OutcomeEmpty
	}
	raw := a.rawText
	return &outcome{mode: entity.ModeDeterministic, outcome: oc, items: items, rawText: &raw}, nil
}
