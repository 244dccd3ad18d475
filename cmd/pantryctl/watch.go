package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/pantry-receipts/internal/ingest"
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Scan every image dropped into a directory, writing a .scan.json sidecar per file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := userID()
		if err != nil {
			return err
		}
		preferVision, _ := cmd.Flags().GetBool("prefer-vision")
		workers, _ := cmd.Flags().GetInt("workers")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		cfg := config()
		queue := ingest.NewScanQueue(
			ingest.NewScanProcessor(a.Orchestrator, user, preferVision, logger),
			logger,
			ingest.WithWorkers(workers),
			ingest.WithQueueSize(cfg.Ingest.QueueSize),
			ingest.WithProcessTimeout(4*cfg.Pipeline.StageTimeout),
			ingest.WithObserver(a.Metrics),
		)
		return ingest.Run(ctx, ingest.WatchConfig{
			Roots:       []string{args[0]},
			InitialScan: true,
			Debounce:    500 * time.Millisecond,
		}, queue, cfg.Server.ShutdownTimeout, logger)
	},
}

func init() {
	watchCmd.Flags().Bool("prefer-vision", true, "try the vision analyzer before OCR")
	watchCmd.Flags().Int("workers", 2, "concurrent scans")
}
