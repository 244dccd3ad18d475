package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/pantry-receipts/internal/entity"
)

const tableScanEvents = "scan_events"

type ScanEventRepository interface {
	AppendScanEvent(ctx context.Context, ev entity.ScanEvent) error
	CountScans(ctx context.Context, userID string, from, to time.Time) (int, error)
	ListScanEvents(ctx context.Context, userID string, from, to time.Time) ([]entity.ScanEvent, error)
}

type scanEventRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewScanEventRepository(db *DB, logger *slog.Logger) ScanEventRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &scanEventRepository{db: db, logger: logger}
}

func (r *scanEventRepository) AppendScanEvent(ctx context.Context, ev entity.ScanEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	items := ev.Items
	if items == nil {
		items = []entity.ExtractedItem{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	var raw any
	if ev.RawText != nil {
		raw = *ev.RawText
	}

	q, args := r.db.builder().Insert(tableScanEvents).
		Columns("id", "user_id", "ts_ms", "mode", "outcome", "raw_text", "items").
		Values(ev.ID.String(), ev.UserID, toMillis(ev.Timestamp), string(ev.Mode), string(ev.Outcome), raw, string(itemsJSON)).
		Query()
	if err := r.db.exec(ctx, q, args); err != nil {
		r.logger.Error("repository.scan_event.append_failed", "user_id", ev.UserID, "error", err)
		return fmt.Errorf("append scan event: %w", err)
	}
	return nil
}

func (r *scanEventRepository) CountScans(ctx context.Context, userID string, from, to time.Time) (int, error) {
	sel := r.db.builder().Select(entsql.Count("*")).
		From(r.db.builder().Table(tableScanEvents)).
		Where(inWindow(userID, from, to))
	n, err := r.db.count(ctx, sel)
	if err != nil {
		return 0, fmt.Errorf("count scans: %w", err)
	}
	return n, nil
}

func (r *scanEventRepository) ListScanEvents(ctx context.Context, userID string, from, to time.Time) ([]entity.ScanEvent, error) {
	q, args := r.db.builder().
		Select("id", "user_id", "ts_ms", "mode", "outcome", "raw_text", "items").
		From(r.db.builder().Table(tableScanEvents)).
		Where(inWindow(userID, from, to)).
		OrderBy("ts_ms").
		Query()
	rows, err := r.db.query(ctx, q, args)
	if err != nil {
		return nil, fmt.Errorf("list scan events: %w", err)
	}
	defer rows.Close()

	out := make([]entity.ScanEvent, 0)
	for rows.Next() {
		var (
			id, user, mode, outcome, items string
			ts                             int64
			raw                            entsql.NullString
		)
		if err := rows.Scan(&id, &user, &ts, &mode, &outcome, &raw, &items); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		ev := entity.ScanEvent{
			UserID:    user,
			Timestamp: fromMillis(ts),
			Mode:      entity.ScanMode(mode),
			Outcome:   entity.ScanOutcome(outcome),
		}
		if ev.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse id %q: %w", id, err)
		}
		if raw.Valid {
			s := raw.String
			ev.RawText = &s
		}
		if err := json.Unmarshal([]byte(items), &ev.Items); err != nil {
			return nil, fmt.Errorf("decode items for %s: %w", id, err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scan events: %w", err)
	}
	return out, nil
}

// inWindow matches a user's rows with from <= ts < to.
func inWindow(userID string, from, to time.Time) *entsql.Predicate {
	return entsql.And(
		entsql.EQ("user_id", userID),
		entsql.GTE("ts_ms", toMillis(from)),
		entsql.LT("ts_ms", toMillis(to)),
	)
}
