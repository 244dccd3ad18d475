package vertex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/pantry-receipts/internal/llm"
)

func TestNewClient_RequiresProject(t *testing.T) {
	c, err := NewClient(context.Background(), Config{Location: "asia-northeast3"}, nil)
	assert.Nil(t, c)
	assert.ErrorContains(t, err, "project id is required")
}

func TestCompleteImage_RequiresImage(t *testing.T) {
	// the image check runs before any remote call
	c := &Client{cfg: Config{Model: "gemini-1.5-flash"}}
	_, err := c.CompleteImage(context.Background(), llm.Request{User: "describe"})
	assert.ErrorContains(t, err, "image request without image")
}
