package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// DecodeStructured turns a completion into a schema-valid JSON document.
// It validates strictly first; on failure it applies the lenient sanitize
// pass and validates again.
func DecodeStructured(schema map[string]any, content string, logger *slog.Logger) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	raw := []byte(StripCodeFences(content))
	if len(raw) == 0 {
		return nil, ErrEmptyCompletion
	}

	err := ValidateJSONAgainstSchema(schema, raw)
	if err == nil {
		return raw, nil
	}

	cleaned, dropped, sErr := SanitizeItemsPayload(raw)
	if sErr != nil {
		logger.Error("llm.decode.sanitize_failed", "error", sErr, "content_len", len(raw))
		return nil, fmt.Errorf("sanitize failed: %w", sErr)
	}
	if vErr := ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
		logger.Error("llm.decode.schema_validation_failed", "error", vErr, "content", string(raw))
		return nil, fmt.Errorf("schema validation failed: %w", vErr)
	}
	logger.Warn("llm.decode.lenient_sanitize_applied", "dropped", dropped, "first_error", err)
	return cleaned, nil
}
