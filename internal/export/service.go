package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/pantry-receipts/internal/entity"
)

const (
	scansSheet = "Scans"
	itemsSheet = "Items"
)

// ScanLister reads recorded scan events for a user in [from, to).
type ScanLister interface {
	ListScanEvents(ctx context.Context, userID string, from, to time.Time) ([]entity.ScanEvent, error)
}

// Service produces XLSX bytes of a user's scan history.
type Service struct {
	scans  ScanLister
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

// NewService builds an exporter. Dates are interpreted in loc, which should
// be the quota location so a day in the export is the same day quota counts.
func NewService(scans ScanLister, loc *time.Location, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{scans: scans, loc: loc, now: time.Now, logger: logger}
}

// ExportScansXLSX returns a workbook with one row per scan and one row per item.
// If only from is provided -> from..today (inclusive).
// If only to is provided   -> beginning..to (inclusive).
// If neither is provided   -> the whole history.
func (s *Service) ExportScansXLSX(ctx context.Context, userID string, from, to *time.Time) ([]byte, error) {
	start := time.Now()
	lo, hi := s.window(from, to)

	events, err := s.scans.ListScanEvents(ctx, userID, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("query scan events: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// rename the default sheet rather than leaving an empty Sheet1
	if err := f.SetSheetName(f.GetSheetName(0), scansSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, err
	}
	if idx, err := f.GetSheetIndex(scansSheet); err == nil {
		f.SetActiveSheet(idx)
	}

	writeRow(f, scansSheet, 1, "Scan ID", "Scanned At", "Mode", "Outcome", "Items", "Raw Text")
	writeRow(f, itemsSheet, 1, "Scan ID", "Scanned At", "Name", "Quantity", "Unit", "Category", "Confidence", "Est. Expiry (days)")

	itemRow := 2
	for i, ev := range events {
		at := ev.Timestamp.In(s.loc).Format("2006-01-02 15:04")
		raw := ""
		if ev.RawText != nil {
			raw = truncate(*ev.RawText, 500)
		}
		writeRow(f, scansSheet, i+2, ev.ID.String(), at, string(ev.Mode), string(ev.Outcome), len(ev.Items), raw)

		for _, it := range ev.Items {
			writeRow(f, itemsSheet, itemRow,
				ev.ID.String(), at, it.Name, it.Quantity, string(it.Unit),
				string(it.Category), it.Confidence, it.EstimatedExpiryDays,
			)
			itemRow++
		}
	}

	// Widen a few columns
	_ = f.SetColWidth(scansSheet, "A", "A", 38) // id
	_ = f.SetColWidth(scansSheet, "B", "B", 18) // timestamp
	_ = f.SetColWidth(scansSheet, "C", "D", 14)
	_ = f.SetColWidth(scansSheet, "F", "F", 60) // raw text
	_ = f.SetColWidth(itemsSheet, "A", "A", 38)
	_ = f.SetColWidth(itemsSheet, "B", "B", 18)
	_ = f.SetColWidth(itemsSheet, "C", "C", 28) // name
	_ = f.SetColWidth(itemsSheet, "F", "F", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"user_id", userID,
		"scans", len(events),
		"items", itemRow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// window turns inclusive calendar dates into a half-open instant range.
func (s *Service) window(from, to *time.Time) (time.Time, time.Time) {
	day := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.loc)
	}
	lo := time.Unix(0, 0).UTC()
	if from != nil {
		lo = day(*from)
	}
	hi := day(s.now().In(s.loc)).AddDate(0, 0, 1)
	if to != nil {
		hi = day(*to).AddDate(0, 0, 1)
	}
	return lo, hi
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
