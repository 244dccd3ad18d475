package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joseph-ayodele/pantry-receipts/internal/server"
)

// Exporter renders a user's scan history as an XLSX workbook.
type Exporter interface {
	ExportScansXLSX(ctx context.Context, userID string, from, to *time.Time) ([]byte, error)
}

// HealthChecker reports store reachability for /healthz.
type HealthChecker interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

type App struct {
	Scanner       server.Scanner
	Exporter      Exporter
	Health        HealthChecker
	Metrics       http.Handler
	MaxImageBytes int
	Logger        *slog.Logger
}

func NewRouter(app *App) http.Handler {
	if app.Logger == nil {
		app.Logger = slog.Default()
	}
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		app.requestLog,
	)

	r.Get("/healthz", app.Healthz)
	if app.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", app.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(app.requireUser)
		r.Post("/scans", app.CreateScan)
		r.Get("/usage", app.GetUsage)
		if app.Exporter != nil {
			r.Get("/scans/export.xlsx", app.ExportScans)
		}
	})
	return r
}
