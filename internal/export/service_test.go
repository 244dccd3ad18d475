package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/pantry-receipts/constants"
	"github.com/joseph-ayodele/pantry-receipts/internal/entity"
)

type fakeLister struct {
	events   []entity.ScanEvent
	from, to time.Time
}

func (f *fakeLister) ListScanEvents(_ context.Context, _ string, from, to time.Time) ([]entity.ScanEvent, error) {
	f.from, f.to = from, to
	return f.events, nil
}

func TestExportScansXLSX(t *testing.T) {
	raw := "양파 1kg\n우유 1L"
	id := uuid.New()
	lister := &fakeLister{events: []entity.ScanEvent{
		{ID: id, UserID: "u1", Timestamp: time.Date(2024, 3, 15, 5, 0, 0, 0, time.UTC), Mode: entity.ModeDeterministic, Outcome: entity.OutcomeOK, RawText: &raw,
			Items: []entity.ExtractedItem{
				{Name: "양파", Quantity: 1, Unit: constants.Kilogram, Category: constants.Vegetables, Confidence: 1, EstimatedExpiryDays: 7},
				{Name: "우유", Quantity: 1, Unit: constants.Liter, Category: constants.Dairy, Confidence: 1, EstimatedExpiryDays: 10},
			}},
		{ID: uuid.New(), UserID: "u1", Timestamp: time.Date(2024, 3, 15, 6, 0, 0, 0, time.UTC), Mode: entity.ModeVision, Outcome: entity.OutcomeNotReceipt},
	}}
	svc := NewService(lister, time.FixedZone("KST", 9*60*60), nil)

	buf, err := svc.ExportScansXLSX(context.Background(), "u1", nil, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(buf))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Scans", "Items"}, f.GetSheetList())

	scans, err := f.GetRows(scansSheet)
	require.NoError(t, err)
	require.Len(t, scans, 3)
	assert.Equal(t, []string{"Scan ID", "Scanned At", "Mode", "Outcome", "Items", "Raw Text"}, scans[0])
	assert.Equal(t, id.String(), scans[1][0])
	assert.Equal(t, "2024-03-15 14:00", scans[1][1])
	assert.Equal(t, "2", scans[1][4])
	assert.Equal(t, "not_receipt", scans[2][3])

	items, err := f.GetRows(itemsSheet)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "양파", items[1][2])
	assert.Equal(t, "kg", items[1][4])
	assert.Equal(t, "dairy", items[2][5])
}

func TestWindow(t *testing.T) {
	loc := time.FixedZone("KST", 9*60*60)
	svc := NewService(&fakeLister{}, loc, nil)
	svc.now = func() time.Time { return time.Date(2024, 3, 20, 1, 0, 0, 0, time.UTC) }

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	lo, hi := svc.window(&from, &to)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, loc), lo)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, loc), hi, "to is inclusive")

	lo, hi = svc.window(nil, nil)
	assert.Equal(t, time.Unix(0, 0).UTC(), lo)
	assert.Equal(t, time.Date(2024, 3, 21, 0, 0, 0, 0, loc), hi, "defaults to the end of today")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "우유…", truncate("우유우유", 3))
	assert.Equal(t, "x", truncate("xyz", 1))
}
