package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/pantry-receipts/internal/entity"
	"github.com/joseph-ayodele/pantry-receipts/internal/llm"
	"github.com/joseph-ayodele/pantry-receipts/internal/taxonomy"
)

// Reason is why an image was judged to have no extractable receipt content.
type Reason string

const (
	ReasonNotReceipt  Reason = "not_receipt"
	ReasonUnreadable  Reason = "unreadable"
	ReasonNoFoodItems Reason = "no_food_items"
)

// Result is either Valid or Invalid. Callers switch on the concrete type.
type Result interface {
	isResult()
}

type Valid struct {
	RawText string
	Items   []entity.ExtractedItem
}

type Invalid struct {
	Reason Reason
}

func (Valid) isResult()   {}
func (Invalid) isResult() {}

// ErrMalformed marks an answer that could not be decoded into the schema.
var ErrMalformed = errors.New("vision: malformed answer")

type Analyzer struct {
	completer llm.ImageCompleter
	tax       *taxonomy.Taxonomy
	schema    map[string]any
	logger    *slog.Logger
}

func NewAnalyzer(completer llm.ImageCompleter, tax *taxonomy.Taxonomy, logger *slog.Logger) *Analyzer {
	if tax == nil {
		tax = taxonomy.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		completer: completer,
		tax:       tax,
		schema:    llm.BuildVisionJSONSchema(),
		logger:    logger,
	}
}

type answer struct {
	Valid   bool               `json:"valid"`
	Reason  string             `json:"reason"`
	RawText string             `json:"raw_text"`
	Items   []taxonomy.RawItem `json:"items"`
}

// AnalyzeImage classifies the image and extracts items in one call. A
// transport error, timeout or undecodable answer is returned as an error;
// Invalid is reserved for answers that classify the image.
func (a *Analyzer) AnalyzeImage(ctx context.Context, image []byte, mimeType string) (Result, error) {
	start := time.Now()
	content, err := a.completer.CompleteImage(ctx, llm.Request{
		System:   llm.BuildVisionSystemPrompt(),
		User:     "Analyze the attached receipt image.",
		Schema:   a.schema,
		Image:    image,
		MIMEType: mimeType,
	})
	if err != nil {
		return nil, fmt.Errorf("vision: complete: %w", err)
	}

	doc, err := llm.DecodeStructured(a.schema, content, a.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var ans answer
	if err := json.Unmarshal(doc, &ans); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if !ans.Valid {
		reason := parseReason(ans.Reason)
		a.logger.Info("vision.analyze.invalid", "reason", reason, "stated", ans.Reason,
			"elapsed_ms", time.Since(start).Milliseconds())
		return Invalid{Reason: reason}, nil
	}

	items := a.tax.NormalizeAll(ans.Items)
	if len(items) == 0 {
		a.logger.Info("vision.analyze.invalid", "reason", ReasonNoFoodItems, "stated", "valid_without_items",
			"elapsed_ms", time.Since(start).Milliseconds())
		return Invalid{Reason: ReasonNoFoodItems}, nil
	}

	a.logger.Info("vision.analyze.ok", "items", len(items), "raw_text_len", len(ans.RawText),
		"elapsed_ms", time.Since(start).Milliseconds())
	return Valid{RawText: strings.TrimSpace(ans.RawText), Items: items}, nil
}

// parseReason maps a stated reason onto the closed set. Unknown reasons are
// treated as unreadable.
func parseReason(s string) Reason {
	switch Reason(strings.ToLower(strings.TrimSpace(s))) {
	case ReasonNotReceipt:
		return ReasonNotReceipt
	case ReasonNoFoodItems:
		return ReasonNoFoodItems
	default:
		return ReasonUnreadable
	}
}
