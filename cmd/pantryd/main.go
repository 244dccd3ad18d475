package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/pantry-receipts/internal/app"
	"github.com/joseph-ayodele/pantry-receipts/internal/common"
	"github.com/joseph-ayodele/pantry-receipts/internal/httpapi"
	"github.com/joseph-ayodele/pantry-receipts/internal/ingest"
	"github.com/joseph-ayodele/pantry-receipts/internal/server"
)

func main() {
	cfgFile := flag.String("config", "", "config file (default is $HOME/.pantry.yaml)")
	migrate := flag.Bool("migrate", false, "create tables before serving")
	flag.Parse()

	cfg, err := common.Load(viper.New(), *cfgFile, slog.Default())
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(common.ExitCode(err))
	}
	logger := app.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(common.ExitCode(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build application", "code", common.AppErrorCode(err), "error", err)
		os.Exit(common.ExitCode(err))
	}
	defer a.Close()

	if err := a.DB.HealthCheck(ctx, 5*time.Second); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	if *migrate {
		if err := a.DB.Migrate(ctx); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	// gRPC server
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer, health := server.NewGRPCServer(a.Orchestrator, server.Options{
		MaxRecvBytes: cfg.Pipeline.MaxImageBytes*4/3 + (1 << 20),
	}, logger)

	// HTTP server
	httpServer := &http.Server{
		Addr: cfg.Server.HTTPAddr,
		Handler: httpapi.NewRouter(&httpapi.App{
			Scanner:       a.Orchestrator,
			Exporter:      a.Exporter,
			Health:        a.DB,
			Metrics:       a.Metrics.Handler(),
			MaxImageBytes: cfg.Pipeline.MaxImageBytes,
			Logger:        logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("grpc listening", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("http listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var inboxDone chan struct{}
	if cfg.Ingest.InboxDir != "" && cfg.Ingest.UserID != "" {
		queue := ingest.NewScanQueue(
			ingest.NewScanProcessor(a.Orchestrator, cfg.Ingest.UserID, cfg.Ingest.PreferVision, logger),
			logger,
			ingest.WithWorkers(cfg.Ingest.Workers),
			ingest.WithQueueSize(cfg.Ingest.QueueSize),
			ingest.WithProcessTimeout(4*cfg.Pipeline.StageTimeout),
			ingest.WithObserver(a.Metrics),
		)
		inboxDone = make(chan struct{})
		go func() {
			defer close(inboxDone)
			err := ingest.Run(ctx, ingest.WatchConfig{
				Roots:       []string{cfg.Ingest.InboxDir},
				InitialScan: true,
				Debounce:    500 * time.Millisecond,
			}, queue, cfg.Server.ShutdownTimeout, logger)
			if err != nil {
				logger.Error("inbox watcher stopped", "error", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server error", "error", err)
	}

	logger.Info("shutting down")
	health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	stop()

	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(sctx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	grpcServer.GracefulStop()
	if inboxDone != nil {
		<-inboxDone
	}
	logger.Info("stopped")
}
