package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	c := LoadConfig(v)
	c.Database.DSN = "sqlite:file::memory:"
	c.LLM.APIKey = "sk-test"
	return c
}

func TestLoadConfig_Defaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	c := LoadConfig(v)

	assert.Equal(t, ":8080", c.Server.GRPCAddr)
	assert.Equal(t, ":8081", c.Server.HTTPAddr)
	assert.Equal(t, "tesseract", c.OCR.Provider)
	assert.Equal(t, "openai", c.Vision.Provider)
	assert.Equal(t, "langchain", c.Assist.Provider)
	assert.Equal(t, 5, c.Quota.FreeDailyLimit)
	assert.Equal(t, 50, c.Quota.PremiumDailyLimit)
	assert.Equal(t, "Asia/Seoul", c.Quota.Timezone)
	assert.Equal(t, 20*time.Second, c.Pipeline.StageTimeout)
	assert.Zero(t, c.LLM.Retries, "a failed provider call falls through without retrying")
	assert.Equal(t, 10<<20, c.Pipeline.MaxImageBytes)
	assert.True(t, c.Ingest.PreferVision)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("FREE_DAILY_LIMIT", "7")
	t.Setenv("OCR_PROVIDER", "GCV")
	t.Setenv("STAGE_TIMEOUT", "5s")

	v := viper.New()
	SetDefaults(v)
	c := LoadConfig(v)
	assert.Equal(t, 7, c.Quota.FreeDailyLimit)
	assert.Equal(t, "gcv", c.OCR.Provider)
	assert.Equal(t, 5*time.Second, c.Pipeline.StageTimeout)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pantry.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db_url: sqlite:/tmp/p.db\npremium_daily_limit: 99\n"), 0o600))

	c, err := Load(viper.New(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, "sqlite:/tmp/p.db", c.Database.DSN)
	assert.Equal(t, 99, c.Quota.PremiumDailyLimit)

	_, err = Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
	assert.Equal(t, CodeConfig, AppErrorCode(err))
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := map[string]func(c *Config){
		"missing dsn":      func(c *Config) { c.Database.DSN = "" },
		"unknown ocr":      func(c *Config) { c.OCR.Provider = "paddle" },
		"unknown vision":   func(c *Config) { c.Vision.Provider = "claude" },
		"bad timezone":     func(c *Config) { c.Quota.Timezone = "Mars/Olympus" },
		"negative limit":   func(c *Config) { c.Quota.FreeDailyLimit = -1 },
		"zero image limit": func(c *Config) { c.Pipeline.MaxImageBytes = 0 },
		"missing api key":  func(c *Config) { c.LLM.APIKey = "" },
		"vertex project":   func(c *Config) { c.Vision.Provider = "vertex"; c.Assist.Provider = "none" },
		"no extraction":    func(c *Config) { c.Vision.Provider = "none"; c.OCR.Provider = "none" },
		"heic converter":   func(c *Config) { c.OCR.HeicConverter = "paint" },
		"negative retries": func(c *Config) { c.LLM.Retries = -1 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := validConfig()
			mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, 2, ExitCode(err))
		})
	}
}

func TestValidate_OfflineNeedsNoKey(t *testing.T) {
	c := validConfig()
	c.LLM.APIKey = ""
	c.Vision.Provider = "none"
	c.Assist.Provider = "none"
	assert.NoError(t, c.Validate())
}

func TestValidateStore(t *testing.T) {
	c := validConfig()
	c.LLM.APIKey = ""
	c.Vision.Provider = "bogus"
	assert.NoError(t, c.ValidateStore())

	c.Database.DSN = ""
	assert.Error(t, c.ValidateStore())
}
