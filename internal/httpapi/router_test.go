package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/pantry-receipts/internal/entity"
	"github.com/joseph-ayodele/pantry-receipts/internal/pipeline"
	"github.com/joseph-ayodele/pantry-receipts/internal/quota"
)

type fakeScanner struct {
	res    pipeline.ScanResult
	err    error
	usage  quota.State
	gotReq pipeline.ScanRequest
}

func (f *fakeScanner) Scan(_ context.Context, req pipeline.ScanRequest) (pipeline.ScanResult, error) {
	f.gotReq = req
	return f.res, f.err
}

func (f *fakeScanner) Usage(context.Context, string) (quota.State, error) {
	return f.usage, f.err
}

type fakeExporter struct {
	from, to *time.Time
	user     string
}

func (f *fakeExporter) ExportScansXLSX(_ context.Context, userID string, from, to *time.Time) ([]byte, error) {
	f.user, f.from, f.to = userID, from, to
	return []byte("PK\x03\x04xlsx"), nil
}

type fakeHealth struct{ err error }

func (f fakeHealth) HealthCheck(context.Context, time.Duration) error { return f.err }

func multipartBody(t *testing.T, image []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "receipt.jpg")
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateScan_OK(t *testing.T) {
	id := uuid.New()
	fs := &fakeScanner{res: pipeline.ScanResult{EventID: id, Mode: entity.ModeVision, Outcome: entity.OutcomeOK,
		Items: []entity.ExtractedItem{{Name: "우유"}}, Usage: quota.State{Remaining: 4}}}
	h := NewRouter(&App{Scanner: fs})

	body, ct := multipartBody(t, []byte("imagebytes"), nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/scans", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set(UserIDHeader, "u1")
	rec := do(t, h, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, id.String(), got["eventId"])
	assert.Equal(t, "vision", got["mode"])

	assert.Equal(t, "u1", fs.gotReq.UserID)
	assert.Equal(t, []byte("imagebytes"), fs.gotReq.Image)
	assert.True(t, fs.gotReq.PreferVision)
}

func TestCreateScan_PreferVisionField(t *testing.T) {
	fs := &fakeScanner{}
	h := NewRouter(&App{Scanner: fs})

	body, ct := multipartBody(t, []byte("x"), map[string]string{"prefer_vision": "false"})
	req := httptest.NewRequest(http.MethodPost, "/v1/scans", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set(UserIDHeader, "u1")
	require.Equal(t, http.StatusOK, do(t, h, req).Code)
	assert.False(t, fs.gotReq.PreferVision)

	body, ct = multipartBody(t, []byte("x"), map[string]string{"prefer_vision": "maybe"})
	req = httptest.NewRequest(http.MethodPost, "/v1/scans", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set(UserIDHeader, "u1")
	assert.Equal(t, http.StatusBadRequest, do(t, h, req).Code)
}

func TestCreateScan_BadRequests(t *testing.T) {
	h := NewRouter(&App{Scanner: &fakeScanner{}})

	req := httptest.NewRequest(http.MethodPost, "/v1/scans", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(UserIDHeader, "u1")
	assert.Equal(t, http.StatusBadRequest, do(t, h, req).Code)

	body, ct := multipartBody(t, nil, map[string]string{"note": "no image"})
	req = httptest.NewRequest(http.MethodPost, "/v1/scans", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set(UserIDHeader, "u1")
	assert.Equal(t, http.StatusBadRequest, do(t, h, req).Code)
}

func TestRequireUser(t *testing.T) {
	h := NewRouter(&App{Scanner: &fakeScanner{}})
	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/v1/usage", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var got errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "UNAUTHORIZED", got.Code)
}

func TestScanErrorStatus(t *testing.T) {
	usage := quota.State{Used: 5, EffectiveLimit: 5}
	tests := []struct {
		err    error
		status int
	}{
		{&pipeline.ScanError{Code: pipeline.CodeInvalidRequest}, http.StatusBadRequest},
		{&pipeline.ScanError{Code: pipeline.CodeQuotaExceeded, Usage: &usage}, http.StatusTooManyRequests},
		{&pipeline.ScanError{Code: pipeline.CodeNotAReceipt}, http.StatusUnprocessableEntity},
		{&pipeline.ScanError{Code: pipeline.CodeUnreadableImage}, http.StatusUnprocessableEntity},
		{&pipeline.ScanError{Code: pipeline.CodeNoFoodItems}, http.StatusUnprocessableEntity},
		{&pipeline.ScanError{Code: pipeline.CodeServiceUnavailable}, http.StatusServiceUnavailable},
		{&pipeline.ScanError{Code: pipeline.CodeInternal}, http.StatusInternalServerError},
		{errors.New("foreign"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			h := NewRouter(&App{Scanner: &fakeScanner{err: tt.err}})
			req := httptest.NewRequest(http.MethodGet, "/v1/usage", nil)
			req.Header.Set(UserIDHeader, "u1")
			rec := do(t, h, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestQuotaExceededCarriesUsage(t *testing.T) {
	usage := quota.State{Used: 5, EffectiveLimit: 5}
	h := NewRouter(&App{Scanner: &fakeScanner{err: &pipeline.ScanError{Code: pipeline.CodeQuotaExceeded, Message: "limit", Usage: &usage}}})
	req := httptest.NewRequest(http.MethodGet, "/v1/usage", nil)
	req.Header.Set(UserIDHeader, "u1")
	rec := do(t, h, req)

	var got errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "QUOTA_EXCEEDED", got.Code)
	require.NotNil(t, got.Usage)
	assert.Equal(t, 5, got.Usage.Used)
}

func TestExportScans(t *testing.T) {
	ex := &fakeExporter{}
	h := NewRouter(&App{Scanner: &fakeScanner{}, Exporter: ex})

	req := httptest.NewRequest(http.MethodGet, "/v1/scans/export.xlsx?from=2024-03-01&to=2024-03-31", nil)
	req.Header.Set(UserIDHeader, "u1")
	rec := do(t, h, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.Equal(t, "u1", ex.user)
	require.NotNil(t, ex.from)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *ex.from)
	require.NotNil(t, ex.to)

	req = httptest.NewRequest(http.MethodGet, "/v1/scans/export.xlsx?from=March", nil)
	req.Header.Set(UserIDHeader, "u1")
	assert.Equal(t, http.StatusBadRequest, do(t, h, req).Code)
}

func TestHealthzAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("# metrics")) })
	h := NewRouter(&App{Scanner: &fakeScanner{}, Health: fakeHealth{}, Metrics: metrics})
	assert.Equal(t, http.StatusOK, do(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	assert.Equal(t, "# metrics", do(t, h, httptest.NewRequest(http.MethodGet, "/metrics", nil)).Body.String())

	h = NewRouter(&App{Scanner: &fakeScanner{}, Health: fakeHealth{err: errors.New("down")}})
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
}
