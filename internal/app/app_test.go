package app

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/pantry-receipts/internal/common"
	"github.com/joseph-ayodele/pantry-receipts/internal/entity"
	"github.com/joseph-ayodele/pantry-receipts/internal/quota"
)

func offlineConfig(t *testing.T) *common.Config {
	t.Helper()
	v := viper.New()
	common.SetDefaults(v)
	cfg := common.LoadConfig(v)
	cfg.Database.DSN = "sqlite:" + filepath.Join(t.TempDir(), "pantry.db")
	cfg.Vision.Provider = "none"
	cfg.Assist.Provider = "none"
	cfg.OCR.Provider = "tesseract"
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestNew_OfflineWiring(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, offlineConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.DB.Migrate(ctx))

	st, err := a.Orchestrator.Usage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, quota.TierFree, st.Tier)
	assert.Equal(t, 5, st.Remaining)

	require.NoError(t, a.Subscriptions.Save(ctx, entity.Subscription{UserID: "u1", Active: true}))
	st, err = a.Orchestrator.Usage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, quota.TierPremium, st.Tier)
	assert.Equal(t, 50, st.EffectiveLimit)

	_, err = a.Rewards.Grant(ctx, "u1", "")
	require.NoError(t, err)
	st, err = a.Orchestrator.Usage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 51, st.EffectiveLimit)
}

func TestOpenStore_BadDSN(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.Database.DSN = "postgres://%zz"
	_, err := OpenStore(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Equal(t, common.CodeDatabase, common.AppErrorCode(err))
	assert.ErrorIs(t, err, common.ErrDatabase)
}

func TestPolicyFromConfig(t *testing.T) {
	p, err := PolicyFromConfig(common.QuotaConfig{FreeDailyLimit: 3, PremiumDailyLimit: 30, BonusCredit: 2, MaxBonusEvents: 1, Timezone: "UTC"})
	require.NoError(t, err)
	assert.Equal(t, 3, p.FreeDailyLimit)
	assert.Equal(t, time.UTC, p.Location)

	_, err = PolicyFromConfig(common.QuotaConfig{Timezone: "Nowhere/Land"})
	assert.Error(t, err)

	_, err = PolicyFromConfig(common.QuotaConfig{Timezone: "UTC", FreeDailyLimit: -1})
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(common.LogConfig{Level: "warn"}, &buf)
	l.Info("hidden")
	l.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "level=WARN msg=shown k=v")
	assert.NotContains(t, buf.String(), "time=")

	buf.Reset()
	NewLogger(common.LogConfig{Level: "debug", Format: "json"}, &buf).Debug("d")
	assert.Contains(t, buf.String(), `"msg":"d"`)
	assert.Contains(t, buf.String(), `"time"`)
}
