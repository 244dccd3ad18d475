package vision

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
	got     llm.Request
}

func (f *fakeCompleter) CompleteImage(_ context.Context, req llm.Request) (string, error) {
	f.got = req
	return f.content, f.err
}

func TestAnalyzeImage_Valid(t *testing.T) {
	fc := &fakeCompleter{content: `{"valid":true,"raw_text":" 우유 1L ","items":[
		{"name":"우유","quantity":1,"unit":"L","category":"dairy","confidence":0.95,"expiry_days":7},
		{"name":"","quantity":1}
	]}`}
	a := NewAnalyzer(fc, nil, nil)

	res, err := a.AnalyzeImage(context.Background(), []byte("img"), "image/jpeg")
	require.NoError(t, err)
	v, ok := res.(Valid)
	require.True(t, ok)
	assert.Equal(t, "우유 1L", v.RawText)
	require.Len(t, v.Items, 1)
	assert.Equal(t, constants.Dairy, v.Items[0].Category)
	assert.Equal(t, constants.Liter, v.Items[0].Unit)
	assert.Equal(t, 7, v.Items[0].EstimatedExpiryDays)

	assert.Equal(t, []byte("img"), fc.got.Image)
	assert.Equal(t, "image/jpeg", fc.got.MIMEType)
	assert.NotNil(t, fc.got.Schema)
}

func TestAnalyzeImage_Invalid(t *testing.T) {
	tests := []struct {
		content string
		want    Reason
	}{
		{`{"valid":false,"reason":"not_receipt"}`, ReasonNotReceipt},
		{`{"valid":false,"reason":"NO_FOOD_ITEMS"}`, ReasonNoFoodItems},
		{`{"valid":false,"reason":"blurry"}`, ReasonUnreadable},
		{`{"valid":false}`, ReasonUnreadable},
		{`{"valid":true,"items":[]}`, ReasonNoFoodItems},
	}
	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			res, err := NewAnalyzer(&fakeCompleter{content: tt.content}, nil, nil).AnalyzeImage(context.Background(), []byte("x"), "")
			require.NoError(t, err)
			assert.Equal(t, Invalid{Reason: tt.want}, res)
		})
	}
}

func TestAnalyzeImage_Errors(t *testing.T) {
	boom := errors.New("timeout")
	_, err := NewAnalyzer(&fakeCompleter{err: boom}, nil, nil).AnalyzeImage(context.Background(), []byte("x"), "")
	assert.ErrorIs(t, err, boom)

	_, err = NewAnalyzer(&fakeCompleter{content: "sorry"}, nil, nil).AnalyzeImage(context.Background(), []byte("x"), "")
	assert.ErrorIs(t, err, ErrMalformed)
}
