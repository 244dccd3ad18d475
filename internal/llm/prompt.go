package llm

import (
	"strings"
)

const maxPromptText = 3000

// BuildVisionSystemPrompt instructs the multimodal service to classify the
// image and list food items in one answer.
func BuildVisionSystemPrompt() string {
	parts := []string{
		"You analyze photos of grocery receipts. Return ONLY JSON that matches the provided JSON Schema.",
		"First decide whether the image is a readable receipt that lists food or ingredient purchases.",
		"If it is not, set valid=false and reason to exactly one of: " + strings.Join(InvalidReasons, ", ") + ".",
		"Use not_receipt when the image is not a receipt, unreadable when it is too blurry or cropped, and no_food_items when it lists no food.",
		"If it is, set valid=true, copy the recognized receipt text into raw_text and list every food or ingredient line under items.",
		itemRules(),
	}
	return strings.Join(parts, " ")
}

// BuildAssistSystemPrompt instructs the text service to pull food items out
// of recognized receipt text.
func BuildAssistSystemPrompt() string {
	parts := []string{
		"You are a grocery receipt parser. Return ONLY JSON that matches the provided JSON Schema.",
		"The input is noisy OCR text from a Korean or English receipt.",
		"Emit only food and ingredient line items. Skip totals, tax, payment, discounts, store details, dates and bags.",
		"If nothing qualifies, return {\"items\": []}.",
		itemRules(),
	}
	return strings.Join(parts, " ")
}

// BuildAssistUserPrompt packages the recognized text, truncated to keep the
// request bounded.
func BuildAssistUserPrompt(rawText string) string {
	text := strings.TrimSpace(rawText)
	var b strings.Builder
	b.WriteString("Receipt text:\n")
	if r := []rune(text); len(r) > maxPromptText {
		b.WriteString(string(r[:maxPromptText]))
		b.WriteString("\n…(truncated)")
	} else {
		b.WriteString(text)
	}
	return b.String()
}

func itemRules() string {
	return "For each item: name is the product name without brand, price or size; " +
		"quantity is a positive number (default 1); " +
		"unit is one of: " + strings.Join(allowedUnits(), ", ") + "; " +
		"category is one of: " + strings.Join(allowedCategories(), ", ") + "; " +
		"confidence is between 0 and 1; expiry_days is an optional positive shelf-life estimate. " +
		"Never output null. If a field is unknown, omit it."
}
