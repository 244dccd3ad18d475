package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/pantry-receipts/internal/entity"
	"github.com/joseph-ayodele/pantry-receipts/internal/quota"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestParseCommand_Stdin(t *testing.T) {
	out, err := run(t, "양파 1kg 3,000원\n합계 3,000원\n", "parse")
	require.NoError(t, err)

	var items []entity.ExtractedItem
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "양파", items[0].Name)
}

func TestUsageCommand_InMemory(t *testing.T) {
	out, err := run(t, "", "usage", "--inmem", "-u", "cli-user")
	require.NoError(t, err)

	var st quota.State
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, quota.TierFree, st.Tier)
	assert.Equal(t, st.EffectiveLimit, st.Remaining)
}
