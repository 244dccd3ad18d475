package ocr

import (
	"regexp"
	"strings"
)

// receiptSignal is one textual hint that the OCR output really is a receipt.
type receiptSignal struct {
	re     *regexp.Regexp
	weight float32
}

const baseConfidence = 0.2

// Weighted hints: purchase date, currency, amounts, total line, packed
// quantities.
var receiptSignals = []receiptSignal{
	{regexp.MustCompile(`\b20\d{2}[-./]\d{1,2}[-./]\d{1,2}\b`), 0.2},
	{regexp.MustCompile(`원|₩|\bkrw\b|[$£€]`), 0.15},
	{regexp.MustCompile(`\b\d{1,3}(,\d{3})+\b|\b\d+\.\d{2}\b`), 0.15},
	{regexp.MustCompile(`합\s*계|총\s*액|\btotal\b`), 0.1},
	{regexp.MustCompile(`\d\s*(kg|g|ml|l|개|입|봉|팩|병)(\s|$)`), 0.1},
}

// heuristicConfidence scores text when the engine reports no confidence of
// its own. Longer texts earn a small bonus.
func heuristicConfidence(txt string) float32 {
	lower := strings.ToLower(txt)
	score := float32(baseConfidence)
	for _, s := range receiptSignals {
		if s.re.MatchString(lower) {
			score += s.weight
		}
	}
	if len(txt) > 120 {
		score += 0.1
	}
	return min(score, 1)
}
