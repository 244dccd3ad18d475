package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/joseph-ayodele/pantry-receipts/internal/common"
	"github.com/joseph-ayodele/pantry-receipts/internal/entity"
	"github.com/joseph-ayodele/pantry-receipts/internal/pipeline"
	"github.com/joseph-ayodele/pantry-receipts/internal/quota"
)

const (
	defaultMaxImageBytes = pipeline.DefaultMaxImageBytes
	multipartOverhead    = 1 << 20
)

type scanResponse struct {
	EventID string                 `json:"eventId"`
	Items   []entity.ExtractedItem `json:"items"`
	Mode    entity.ScanMode        `json:"mode"`
	Outcome entity.ScanOutcome     `json:"outcome"`
	Usage   quota.State            `json:"usage"`
}

type errorResponse struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Usage   *quota.State `json:"usage,omitempty"`
}

var httpStatus = map[pipeline.Code]int{
	pipeline.CodeInvalidRequest:     http.StatusBadRequest,
	pipeline.CodeQuotaExceeded:      http.StatusTooManyRequests,
	pipeline.CodeNotAReceipt:        http.StatusUnprocessableEntity,
	pipeline.CodeUnreadableImage:    http.StatusUnprocessableEntity,
	pipeline.CodeNoFoodItems:        http.StatusUnprocessableEntity,
	pipeline.CodeServiceUnavailable: http.StatusServiceUnavailable,
	pipeline.CodeInternal:           http.StatusInternalServerError,
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorResponse{Code: errCode, Message: message})
}

func (a *App) scanError(w http.ResponseWriter, err error) {
	var se *pipeline.ScanError
	if !errors.As(err, &se) {
		a.error(w, http.StatusInternalServerError, string(pipeline.CodeInternal), pipeline.Message(pipeline.CodeInternal))
		return
	}
	code, ok := httpStatus[se.Code]
	if !ok {
		code = http.StatusInternalServerError
	}
	a.json(w, code, errorResponse{Code: string(se.Code), Message: se.Message, Usage: se.Usage})
}

func (a *App) maxImageBytes() int {
	if a.MaxImageBytes > 0 {
		return a.MaxImageBytes
	}
	return defaultMaxImageBytes
}

func (a *App) Healthz(w http.ResponseWriter, r *http.Request) {
	if a.Health != nil {
		if err := a.Health.HealthCheck(r.Context(), 2*time.Second); err != nil {
			a.Logger.Warn("http.healthz.unhealthy", "error", err)
			a.json(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateScan accepts a multipart upload with an "image" file part and an
// optional "prefer_vision" form field (default true).
func (a *App) CreateScan(w http.ResponseWriter, r *http.Request) {
	userID := common.UserIDFromContext(r.Context())
	limit := a.maxImageBytes()
	r.Body = http.MaxBytesReader(w, r.Body, int64(limit+multipartOverhead))

	if err := r.ParseMultipartForm(int64(limit)); err != nil {
		a.error(w, http.StatusBadRequest, string(pipeline.CodeInvalidRequest), "expected multipart form with an image part")
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		a.error(w, http.StatusBadRequest, string(pipeline.CodeInvalidRequest), "image part is required")
		return
	}
	defer file.Close()

	// one byte past the limit lets the orchestrator reject oversize uploads
	image, err := io.ReadAll(io.LimitReader(file, int64(limit)+1))
	if err != nil {
		a.error(w, http.StatusBadRequest, string(pipeline.CodeInvalidRequest), "could not read image")
		return
	}

	preferVision := true
	if v := r.FormValue("prefer_vision"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			a.error(w, http.StatusBadRequest, string(pipeline.CodeInvalidRequest), "prefer_vision must be a boolean")
			return
		}
		preferVision = b
	}

	res, err := a.Scanner.Scan(r.Context(), pipeline.ScanRequest{
		UserID:       userID,
		Image:        image,
		PreferVision: preferVision,
	})
	if err != nil {
		a.scanError(w, err)
		return
	}
	a.json(w, http.StatusOK, scanResponse{
		EventID: res.EventID.String(),
		Items:   res.Items,
		Mode:    res.Mode,
		Outcome: res.Outcome,
		Usage:   res.Usage,
	})
}

func (a *App) GetUsage(w http.ResponseWriter, r *http.Request) {
	st, err := a.Scanner.Usage(r.Context(), common.UserIDFromContext(r.Context()))
	if err != nil {
		a.scanError(w, err)
		return
	}
	a.json(w, http.StatusOK, st)
}

// ExportScans streams the caller's history. from/to are YYYY-MM-DD and optional.
func (a *App) ExportScans(w http.ResponseWriter, r *http.Request) {
	userID := common.UserIDFromContext(r.Context())
	from, err := parseDate(r.URL.Query().Get("from"))
	if err != nil {
		a.error(w, http.StatusBadRequest, string(pipeline.CodeInvalidRequest), err.Error())
		return
	}
	to, err := parseDate(r.URL.Query().Get("to"))
	if err != nil {
		a.error(w, http.StatusBadRequest, string(pipeline.CodeInvalidRequest), err.Error())
		return
	}

	buf, err := a.Exporter.ExportScansXLSX(r.Context(), userID, from, to)
	if err != nil {
		common.LoggerFromContext(r.Context(), a.Logger).Error("http.export.failed", "error", err)
		a.error(w, http.StatusInternalServerError, string(pipeline.CodeInternal), "export failed")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="scans.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf)
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q (YYYY-MM-DD)", s)
	}
	return &t, nil
}
