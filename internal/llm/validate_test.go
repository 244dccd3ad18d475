package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateJSONAgainstSchema(t *testing.T) {
	schema := BuildItemsJSONSchema()
	assert.NoError(t, ValidateJSONAgainstSchema(schema, []byte(`{"items":[{"name":"milk","quantity":1}]}`)))
	assert.Error(t, ValidateJSONAgainstSchema(schema, []byte(`{"items":[{"quantity":1}]}`)))
	assert.Error(t, ValidateJSONAgainstSchema(schema, []byte(`{"items":[],"total":3}`)))
	assert.Error(t, ValidateJSONAgainstSchema(schema, []byte(`{}`)))
}

func TestDecodeStructured(t *testing.T) {
	schema := BuildItemsJSONSchema()

	t.Run("strict", func(t *testing.T) {
		doc, err := DecodeStructured(schema, "```json\n{\"items\":[{\"name\":\"egg\"}]}\n```", nil)
		require.NoError(t, err)
		assert.JSONEq(t, `{"items":[{"name":"egg"}]}`, string(doc))
	})

	t.Run("lenient", func(t *testing.T) {
		doc, err := DecodeStructured(schema, `[{"name":"egg","quantity":"10","brand":"x"}]`, nil)
		require.NoError(t, err)
		assert.JSONEq(t, `{"items":[{"name":"egg","quantity":10}]}`, string(doc))
	})

	t.Run("empty", func(t *testing.T) {
		_, err := DecodeStructured(schema, "  ", nil)
		assert.ErrorIs(t, err, ErrEmptyCompletion)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := DecodeStructured(schema, "I could not read the receipt.", nil)
		assert.Error(t, err)
	})

	t.Run("vision invalid", func(t *testing.T) {
		doc, err := DecodeStructured(BuildVisionJSONSchema(), `{"valid":false,"reason":"not_receipt"}`, nil)
		require.NoError(t, err)
		assert.JSONEq(t, `{"valid":false,"reason":"not_receipt"}`, string(doc))
	})
}
