package llm

import (
	"context"
	"errors"
)

// ErrEmptyCompletion is returned when a provider answers without any content.
var ErrEmptyCompletion = errors.New("llm: empty completion")

// Request is one structured-output completion. Schema is the JSON Schema the
// answer must satisfy; providers embed it in the instruction.
type Request struct {
	System string
	User   string
	Schema map[string]any

	// Image and MIMEType are set for multimodal requests only.
	Image    []byte
	MIMEType string
}

// TextCompleter is a text-only structured-output service.
type TextCompleter interface {
	CompleteText(ctx context.Context, req Request) (string, error)
}

// ImageCompleter is a multimodal structured-output service.
type ImageCompleter interface {
	CompleteImage(ctx context.Context, req Request) (string, error)
}
