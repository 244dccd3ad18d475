package common

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Vertex   VertexConfig
	Vision   VisionConfig
	Assist   AssistConfig
	Quota    QuotaConfig
	Pipeline PipelineConfig
	Ingest   IngestConfig
	Log      LogConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr        string
	HTTPAddr        string
	ShutdownTimeout time.Duration
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Provider           string // tesseract | gcv | none
	TesseractBinary    string
	TesseractLang      string
	TessdataDir        string
	PSM                int
	HeicConverter      string
	TSVConfidence      bool
	GCVCredentialsFile string
	GCVAPIKey          string
}

// LLMConfig holds the OpenAI settings shared by the openai and langchain providers.
type LLMConfig struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
	Retries     int // opt-in; 0 means one failure falls through to the next stage
}

type VertexConfig struct {
	ProjectID       string
	Location        string
	CredentialsFile string
	Model           string
}

type VisionConfig struct {
	Provider string // openai | vertex | none
}

type AssistConfig struct {
	Provider string // langchain | openai | vertex | none
}

type QuotaConfig struct {
	FreeDailyLimit       int
	PremiumDailyLimit    int
	BonusCredit          int
	MaxBonusEvents       int
	Timezone             string
	SubscriptionCacheTTL time.Duration
}

type PipelineConfig struct {
	StageTimeout  time.Duration
	MaxImageBytes int
}

type IngestConfig struct {
	InboxDir     string
	UserID       string
	Workers      int
	QueueSize    int
	PreferVision bool
}

type LogConfig struct {
	Level  string
	Format string // text | json
}

var defaults = map[string]any{
	"db_url":                 "",
	"db_max_conns":           20,
	"db_min_conns":           2,
	"db_max_conn_lifetime":   30 * time.Minute,
	"db_max_conn_idle_time":  5 * time.Minute,
	"db_dial_timeout":        3 * time.Second,
	"db_statement_timeout":   time.Duration(0),
	"grpc_addr":              ":8080",
	"http_addr":              ":8081",
	"shutdown_timeout":       10 * time.Second,
	"ocr_provider":           "tesseract",
	"tesseract_binary":       "tesseract",
	"tesseract_lang":         "kor+eng",
	"tessdata_prefix":        "",
	"tesseract_psm":          6,
	"heic_converter":         "magick",
	"ocr_tsv_confidence":     false,
	"gcv_credentials_file":   "",
	"gcv_api_key":            "",
	"openai_model":           "gpt-4o-mini",
	"openai_api_key":         "",
	"openai_base_url":        "",
	"openai_temperature":     0.0,
	"openai_timeout":         30 * time.Second,
	"openai_retries":         0,
	"vertex_project_id":      "",
	"vertex_location":        "asia-northeast3",
	"vertex_credentials":     "",
	"vertex_model":           "gemini-1.5-flash",
	"vision_provider":        "openai",
	"assist_provider":        "langchain",
	"free_daily_limit":       5,
	"premium_daily_limit":    50,
	"bonus_credit":           1,
	"max_bonus_events":       3,
	"quota_timezone":         "Asia/Seoul",
	"subscription_cache_ttl": time.Minute,
	"stage_timeout":          20 * time.Second,
	"max_image_bytes":        10 << 20,
	"inbox_dir":              "",
	"inbox_user_id":          "",
	"inbox_workers":          2,
	"inbox_queue_size":       32,
	"inbox_prefer_vision":    true,
	"log_level":              "info",
	"log_format":             "text",
}

// SetDefaults registers every key so AutomaticEnv can resolve it.
func SetDefaults(v *viper.Viper) {
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// LoadDotEnv loads .env files if present. A missing file is not an error.
func LoadDotEnv(logger *slog.Logger, files ...string) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("config.dotenv.load_failed", "error", err)
	}
}

// ReadConfigFile reads cfgFile, or $HOME/.pantry.yaml when cfgFile is empty.
// A missing default file is not an error.
func ReadConfigFile(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}
		v.AddConfigPath(home)
		v.SetConfigName(".pantry")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return NewAppError(CodeConfig, "read config file", err)
	}
	return nil
}

// Load is the full sequence used by both binaries: .env, defaults and
// environment, then the optional config file.
func Load(v *viper.Viper, cfgFile string, logger *slog.Logger) (*Config, error) {
	LoadDotEnv(logger)
	SetDefaults(v)
	if err := ReadConfigFile(v, cfgFile); err != nil {
		return nil, err
	}
	return LoadConfig(v), nil
}

// LoadConfig resolves configuration from defaults, the optional config file
// and the environment, in increasing precedence.
func LoadConfig(v *viper.Viper) *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              v.GetString("db_url"),
			MaxConns:         v.GetInt32("db_max_conns"),
			MinConns:         v.GetInt32("db_min_conns"),
			MaxConnLifetime:  v.GetDuration("db_max_conn_lifetime"),
			MaxConnIdleTime:  v.GetDuration("db_max_conn_idle_time"),
			DialTimeout:      v.GetDuration("db_dial_timeout"),
			StatementTimeout: v.GetDuration("db_statement_timeout"),
		},
		Server: ServerConfig{
			GRPCAddr:        v.GetString("grpc_addr"),
			HTTPAddr:        v.GetString("http_addr"),
			ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		},
		OCR: OCRConfig{
			Provider:           strings.ToLower(v.GetString("ocr_provider")),
			TesseractBinary:    v.GetString("tesseract_binary"),
			TesseractLang:      v.GetString("tesseract_lang"),
			TessdataDir:        v.GetString("tessdata_prefix"),
			PSM:                v.GetInt("tesseract_psm"),
			HeicConverter:      v.GetString("heic_converter"),
			TSVConfidence:      v.GetBool("ocr_tsv_confidence"),
			GCVCredentialsFile: v.GetString("gcv_credentials_file"),
			GCVAPIKey:          v.GetString("gcv_api_key"),
		},
		LLM: LLMConfig{
			Model:       v.GetString("openai_model"),
			APIKey:      v.GetString("openai_api_key"),
			BaseURL:     v.GetString("openai_base_url"),
			Temperature: float32(v.GetFloat64("openai_temperature")),
			Timeout:     v.GetDuration("openai_timeout"),
			Retries:     v.GetInt("openai_retries"),
		},
		Vertex: VertexConfig{
			ProjectID:       v.GetString("vertex_project_id"),
			Location:        v.GetString("vertex_location"),
			CredentialsFile: v.GetString("vertex_credentials"),
			Model:           v.GetString("vertex_model"),
		},
		Vision: VisionConfig{Provider: strings.ToLower(v.GetString("vision_provider"))},
		Assist: AssistConfig{Provider: strings.ToLower(v.GetString("assist_provider"))},
		Quota: QuotaConfig{
			FreeDailyLimit:       v.GetInt("free_daily_limit"),
			PremiumDailyLimit:    v.GetInt("premium_daily_limit"),
			BonusCredit:          v.GetInt("bonus_credit"),
			MaxBonusEvents:       v.GetInt("max_bonus_events"),
			Timezone:             v.GetString("quota_timezone"),
			SubscriptionCacheTTL: v.GetDuration("subscription_cache_ttl"),
		},
		Pipeline: PipelineConfig{
			StageTimeout:  v.GetDuration("stage_timeout"),
			MaxImageBytes: v.GetInt("max_image_bytes"),
		},
		Ingest: IngestConfig{
			InboxDir:     v.GetString("inbox_dir"),
			UserID:       v.GetString("inbox_user_id"),
			Workers:      v.GetInt("inbox_workers"),
			QueueSize:    v.GetInt("inbox_queue_size"),
			PreferVision: v.GetBool("inbox_prefer_vision"),
		},
		Log: LogConfig{
			Level:  v.GetString("log_level"),
			Format: v.GetString("log_format"),
		},
	}
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	val := NewValidator().
		Field("DB_URL", c.Database.DSN, Required).
		Field("OCR_PROVIDER", c.OCR.Provider, OneOf("tesseract", "gcv", "none")).
		Field("VISION_PROVIDER", c.Vision.Provider, OneOf("openai", "vertex", "none")).
		Field("ASSIST_PROVIDER", c.Assist.Provider, OneOf("langchain", "openai", "vertex", "none")).
		Field("QUOTA_TIMEZONE", c.Quota.Timezone, Required, Timezone).
		Field("FREE_DAILY_LIMIT", c.Quota.FreeDailyLimit, NonNegative).
		Field("PREMIUM_DAILY_LIMIT", c.Quota.PremiumDailyLimit, NonNegative).
		Field("BONUS_CREDIT", c.Quota.BonusCredit, NonNegative).
		Field("MAX_BONUS_EVENTS", c.Quota.MaxBonusEvents, NonNegative).
		Field("MAX_IMAGE_BYTES", c.Pipeline.MaxImageBytes, Positive).
		Field("OPENAI_RETRIES", c.LLM.Retries, NonNegative)

	if c.usesOpenAI() {
		val.Field("OPENAI_API_KEY", c.LLM.APIKey, Required)
	}
	if c.OCR.Provider == "tesseract" {
		val.Field("OCR_HEIC_CONVERTER", c.OCR.HeicConverter, OneOf("heif-convert", "magick", "sips"))
	}
	if c.Vision.Provider == "vertex" || c.Assist.Provider == "vertex" {
		val.Field("VERTEX_PROJECT_ID", c.Vertex.ProjectID, Required)
	}
	if c.Vision.Provider == "none" && c.OCR.Provider == "none" {
		val.Field("OCR_PROVIDER", c.OCR.Provider, func(field string, value any) *ValidationError {
			return &ValidationError{Field: field, Value: value, Message: "at least one of vision or ocr must be configured"}
		})
	}

	if val.HasErrors() {
		return NewAppError(CodeConfig, val.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}

// ValidateStore checks only what store-only commands need.
func (c *Config) ValidateStore() error {
	val := NewValidator().
		Field("DB_URL", c.Database.DSN, Required).
		Field("QUOTA_TIMEZONE", c.Quota.Timezone, Required, Timezone)
	if val.HasErrors() {
		return NewAppError(CodeConfig, val.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}

func (c *Config) usesOpenAI() bool {
	return c.Vision.Provider == "openai" || c.Assist.Provider == "openai" || c.Assist.Provider == "langchain"
}
