package assist

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/pantry-receipts/constants"
	"github.com/joseph-ayodele/pantry-receipts/internal/llm"
)

type fakeCompleter struct {
	content string
	err     error
	calls   int
}

func (f *fakeCompleter) CompleteText(context.Context, llm.Request) (string, error) {
	f.calls++
	return f.content, f.err
}

func TestParseText(t *testing.T) {
	fc := &fakeCompleter{content: `{"items":[{"name":"두부","quantity":"2","unit":"개","category":"채소"},{"name":"계란","unit":"egg-ish"}]}`}
	items, err := NewParser(fc, nil, nil).ParseText(context.Background(), "두부 2개\n계란")
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "두부", items[0].Name)
	assert.Equal(t, 2.0, items[0].Quantity)
	assert.Equal(t, constants.Each, items[0].Unit)
	assert.Equal(t, constants.Vegetables, items[0].Category)

	assert.Equal(t, constants.Each, items[1].Unit)
}

func TestParseText_EmptyInputSkipsService(t *testing.T) {
	fc := &fakeCompleter{}
	items, err := NewParser(fc, nil, nil).ParseText(context.Background(), "  \n ")
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, fc.calls)
}

func TestParseText_EmptyCompletionIsNoItems(t *testing.T) {
	items, err := NewParser(&fakeCompleter{err: llm.ErrEmptyCompletion}, nil, nil).ParseText(context.Background(), "x")
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestParseText_Errors(t *testing.T) {
	boom := errors.New("unavailable")
	_, err := NewParser(&fakeCompleter{err: boom}, nil, nil).ParseText(context.Background(), "x")
	assert.ErrorIs(t, err, boom)

	_, err = NewParser(&fakeCompleter{content: "<html>"}, nil, nil).ParseText(context.Background(), "x")
	assert.Error(t, err)
}
