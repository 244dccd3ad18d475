package assist

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

// Parser asks a text-understanding service for the food lines in
// recognized receipt text.
type Parser struct {
	completer llm.TextCompleter
	tax       *taxonomy.Taxonomy
	schema    map[string]any
	logger    *slog.Logger
}

func NewParser(completer llm.TextCompleter, tax *taxonomy.Taxonomy, logger *slog.Logger) *Parser {
	if tax == nil {
		tax = taxonomy.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		completer: completer,
		tax:       tax,
		schema:    llm.BuildItemsJSONSchema(),
		logger:    logger,
	}
}

// ParseText returns the normalized items. A service that answers but finds
// nothing yields an empty list and a nil error.
func (p *Parser) ParseText(ctx context.Context, rawText string) ([]entity.ExtractedItem, error) {
	if strings.TrimSpace(rawText) == "" {
		return []entity.ExtractedItem{}, nil
	}
	start := time.Now()

	content, err := p.completer.CompleteText(ctx, llm.Request{
		System: llm.BuildAssistSystemPrompt(),
		User:   llm.BuildAssistUserPrompt(rawText),
		Schema: p.schema,
	})
	if errors.Is(err, llm.ErrEmptyCompletion) {
		p.logger.Info("assist.parse.empty", "elapsed_ms", time.Since(start).Milliseconds())
		return []entity.ExtractedItem{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("assist: complete: %w", err)
	}

	doc, err := llm.DecodeStructured(p.schema, content, p.logger)
	if err != nil {
		return nil, fmt.Errorf("assist: decode: %w", err)
	}
	var ans struct {
		Items []taxonomy.RawItem `json:"items"`
	}
	if err := json.Unmarshal(doc, &ans); err != nil {
		return nil, fmt.Errorf("assist: unmarshal items: %w", err)
	}

	items := p.tax.NormalizeAll(ans.Items)
	p.logger.Info("assist.parse.ok",
		"reported", len(ans.Items),
		"items", len(items),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return items, nil
}
