package llm

import "github.com/joseph-ayodele/pantry-receipts/constants"

// InvalidReasons are the classifications a vision answer may declare.
var InvalidReasons = []string{"not_receipt", "unreadable", "no_food_items"}

// BuildItemsJSONSchema returns a JSON-Schema (draft 2020-12 subset) for
// {"items":[...]}. Category and unit are deliberately not enum-constrained:
// out-of-enum values are clamped after validation rather than rejected.
func BuildItemsJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"items": itemsProp(),
		},
		"required": []string{"items"},
	}
}

// BuildVisionJSONSchema adds the validity classification to the items shape.
func BuildVisionJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"valid":    map[string]any{"type": "boolean"},
			"reason":   map[string]any{"type": "string"},
			"raw_text": map[string]any{"type": "string"},
			"items":    itemsProp(),
		},
		"required": []string{"valid"},
	}
}

func itemsProp() map[string]any {
	return map[string]any{
		"type": "array",
		"items": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"name":        map[string]any{"type": "string", "minLength": 1},
				"quantity":    map[string]any{"type": "number"},
				"unit":        map[string]any{"type": "string"},
				"category":    map[string]any{"type": "string"},
				"confidence":  map[string]any{"type": "number"},
				"expiry_days": map[string]any{"type": "integer"},
			},
			"required": []string{"name"},
		},
	}
}

// allowedUnits and allowedCategories feed the prompts, not the schema.
func allowedUnits() []string      { return constants.UnitsAsStrings() }
func allowedCategories() []string { return constants.CategoriesAsStrings() }
