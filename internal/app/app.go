// Package app assembles stores, providers and the orchestrator from config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/pantry-receipts/internal/assist"
	"github.com/joseph-ayodele/pantry-receipts/internal/common"
	"github.com/joseph-ayodele/pantry-receipts/internal/export"
	"github.com/joseph-ayodele/pantry-receipts/internal/llm"
	"github.com/joseph-ayodele/pantry-receipts/internal/llm/langchain"
	"github.com/joseph-ayodele/pantry-receipts/internal/llm/openai"
	"github.com/joseph-ayodele/pantry-receipts/internal/llm/vertex"
	"github.com/joseph-ayodele/pantry-receipts/internal/metrics"
	"github.com/joseph-ayodele/pantry-receipts/internal/ocr"
	"github.com/joseph-ayodele/pantry-receipts/internal/parser"
	"github.com/joseph-ayodele/pantry-receipts/internal/pipeline"
	"github.com/joseph-ayodele/pantry-receipts/internal/quota"
	"github.com/joseph-ayodele/pantry-receipts/internal/repository"
	"github.com/joseph-ayodele/pantry-receipts/internal/taxonomy"
	"github.com/joseph-ayodele/pantry-receipts/internal/vision"
)

// Store is the persistence half: enough for usage, rewards, subscriptions,
// export and migrations without any extraction provider.
type Store struct {
	DB            *repository.DB
	Scans         repository.ScanEventRepository
	Policy        quota.Policy
	Ledger        *quota.Ledger
	Subscriptions *quota.SubscriptionCache
	Rewards       *quota.Rewards
	Exporter      *export.Service
}

// App is the fully wired service.
type App struct {
	*Store
	Orchestrator *pipeline.Orchestrator
	Metrics      *metrics.Metrics

	closers []func() error
	logger  *slog.Logger
}

// PolicyFromConfig builds the quota policy, resolving the time zone.
func PolicyFromConfig(qc common.QuotaConfig) (quota.Policy, error) {
	loc, err := time.LoadLocation(qc.Timezone)
	if err != nil {
		return quota.Policy{}, fmt.Errorf("quota timezone %q: %w", qc.Timezone, err)
	}
	p := quota.Policy{
		FreeDailyLimit:    qc.FreeDailyLimit,
		PremiumDailyLimit: qc.PremiumDailyLimit,
		BonusCredit:       qc.BonusCredit,
		MaxBonusEvents:    qc.MaxBonusEvents,
		Location:          loc,
	}
	return p, p.Validate()
}

// OpenStore connects to the database and builds the quota collaborators.
func OpenStore(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	policy, err := PolicyFromConfig(cfg.Quota)
	if err != nil {
		return nil, common.NewAppError(common.CodeConfig, "invalid quota policy", fmt.Errorf("%w: %w", common.ErrInvalidInput, err))
	}

	db, err := repository.Open(ctx, repository.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, common.NewAppError(common.CodeDatabase, "open database", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	return newStore(db, policy, cfg.Quota.SubscriptionCacheTTL, logger), nil
}

func newStore(db *repository.DB, policy quota.Policy, subTTL time.Duration, logger *slog.Logger) *Store {
	scans := repository.NewScanEventRepository(db, logger)
	rewards := repository.NewRewardRepository(db, logger)
	subs := repository.NewSubscriptionRepository(db, logger)
	return &Store{
		DB:            db,
		Scans:         scans,
		Policy:        policy,
		Ledger:        quota.NewLedger(scans, rewards, policy, logger),
		Subscriptions: quota.NewSubscriptionCache(subs, subTTL, time.Now),
		Rewards:       quota.NewRewards(rewards, policy, time.Now),
		Exporter:      export.NewService(scans, policy.Location, logger),
	}
}

func (s *Store) Close() {
	s.DB.Close()
}

// New builds the store, every configured provider and the orchestrator.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a := &App{Store: store, Metrics: metrics.New(), logger: logger}

	deps, err := a.providers(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, common.NewAppError(common.CodeProvider, "build providers", err)
	}
	deps.Deterministic = parser.New(taxonomy.Default())
	deps.Events = store.Scans
	deps.Ledger = store.Ledger
	deps.Tiers = store.Subscriptions
	deps.Observer = a.Metrics

	a.Orchestrator = pipeline.New(pipeline.Config{
		StageTimeout:  cfg.Pipeline.StageTimeout,
		MaxImageBytes: cfg.Pipeline.MaxImageBytes,
	}, deps, logger)
	return a, nil
}

func (a *App) providers(ctx context.Context, cfg *common.Config) (pipeline.Deps, error) {
	var deps pipeline.Deps
	tax := taxonomy.Default()

	var oa *openai.Client
	openAI := func() *openai.Client {
		if oa == nil {
			oa = openai.NewClient(openai.Config{
				APIKey:      cfg.LLM.APIKey,
				BaseURL:     cfg.LLM.BaseURL,
				Model:       cfg.LLM.Model,
				Temperature: cfg.LLM.Temperature,
				Transport: llm.HTTPConfig{
					Timeout: cfg.LLM.Timeout,
					Retries: cfg.LLM.Retries,
				},
			}, a.logger)
		}
		return oa
	}
	var vx *vertex.Client
	vertexAI := func() (*vertex.Client, error) {
		if vx != nil {
			return vx, nil
		}
		c, err := vertex.NewClient(ctx, vertex.Config{
			ProjectID:       cfg.Vertex.ProjectID,
			Location:        cfg.Vertex.Location,
			CredentialsFile: cfg.Vertex.CredentialsFile,
			Model:           cfg.Vertex.Model,
			Temperature:     cfg.LLM.Temperature,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, c.Close)
		vx = c
		return c, nil
	}

	var imageCompleter llm.ImageCompleter
	switch cfg.Vision.Provider {
	case "openai":
		imageCompleter = openAI()
	case "vertex":
		c, err := vertexAI()
		if err != nil {
			return deps, err
		}
		imageCompleter = c
	}
	if imageCompleter != nil {
		deps.Vision = vision.NewAnalyzer(imageCompleter, tax, a.logger)
	}

	var textCompleter llm.TextCompleter
	switch cfg.Assist.Provider {
	case "langchain":
		c, err := langchain.NewOpenAI(langchain.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: float64(cfg.LLM.Temperature),
		}, a.logger)
		if err != nil {
			return deps, err
		}
		textCompleter = c
	case "openai":
		textCompleter = openAI()
	case "vertex":
		c, err := vertexAI()
		if err != nil {
			return deps, err
		}
		textCompleter = c
	}
	if textCompleter != nil {
		deps.Assist = assist.NewParser(textCompleter, tax, a.logger)
	}

	switch cfg.OCR.Provider {
	case "tesseract":
		deps.OCR = ocr.NewTesseract(ocr.TesseractConfig{
			Binary:              cfg.OCR.TesseractBinary,
			Lang:                cfg.OCR.TesseractLang,
			TessdataDir:         cfg.OCR.TessdataDir,
			PSM:                 cfg.OCR.PSM,
			HeicConverter:       cfg.OCR.HeicConverter,
			EnableTSVConfidence: cfg.OCR.TSVConfidence,
		}, a.logger)
	case "gcv":
		g, err := ocr.NewGCV(ctx, ocr.GCVConfig{
			CredentialsFile: cfg.OCR.GCVCredentialsFile,
			APIKey:          cfg.OCR.GCVAPIKey,
		}, a.logger)
		if err != nil {
			return deps, err
		}
		deps.OCR = g
	}

	a.logger.Info("app.providers",
		"vision", cfg.Vision.Provider,
		"assist", cfg.Assist.Provider,
		"ocr", cfg.OCR.Provider,
	)
	return deps, nil
}

func (a *App) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn("app.close.failed", "error", err)
		}
	}
	a.Store.Close()
}
