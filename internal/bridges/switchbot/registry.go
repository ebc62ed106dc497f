package switchbot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/device"
	"github.com/nerrad567/gray-logic-switchbot/internal/infrastructure/database"
)

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// defaultHistoryLimit is the number of flushes kept per device.
const defaultHistoryLimit = 50

// AccessoryRecord is a cached accessory.
type AccessoryRecord struct {
	ID        string
	Name      string
	Type      device.Type
	HubID     string
	Transport string
	BotMode   string
	FirstSeen time.Time
	LastSeen  time.Time
}

// Spec returns the device description of the record.
func (r AccessoryRecord) Spec() device.Spec {
	return device.Spec{ID: r.ID, Name: r.Name, Type: r.Type, HubID: r.HubID}
}

// FlushRecord is one stored write flush outcome.
type FlushRecord struct {
	RequestID   string
	DeviceID    string
	Transport   string
	Desired     bool
	Noop        bool
	Attempts    int
	Duration    time.Duration
	Error       string
	CompletedAt time.Time
}

// Registry persists accessories and flush history in SQLite.
//
// Thread Safety: safe for concurrent use; SQLite serialises writers.
type Registry struct {
	db           *database.DB
	historyLimit int
}

// NewRegistry creates a registry over a migrated database.
func NewRegistry(db *database.DB) *Registry {
	return &Registry{db: db, historyLimit: defaultHistoryLimit}
}

// Upsert inserts or refreshes an accessory. FirstSeen is kept from the
// original insert.
func (r *Registry) Upsert(ctx context.Context, rec AccessoryRecord) error {
	now := rec.LastSeen
	if now.IsZero() {
		now = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accessories (id, name, device_type, hub_id, transport, bot_mode, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			device_type = excluded.device_type,
			hub_id = excluded.hub_id,
			transport = excluded.transport,
			bot_mode = excluded.bot_mode,
			last_seen = excluded.last_seen`,
		rec.ID, rec.Name, string(rec.Type), rec.HubID, rec.Transport, rec.BotMode,
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("upsert accessory %s: %w", rec.ID, err)
	}
	return nil
}

// Get returns one accessory, or sql.ErrNoRows.
func (r *Registry) Get(ctx context.Context, id string) (AccessoryRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, device_type, hub_id, transport, bot_mode, first_seen, last_seen
		FROM accessories WHERE id = ?`, id)
	rec, err := scanAccessory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return AccessoryRecord{}, err
	}
	if err != nil {
		return AccessoryRecord{}, fmt.Errorf("get accessory %s: %w", id, err)
	}
	return rec, nil
}

// List returns all cached accessories ordered by ID.
func (r *Registry) List(ctx context.Context) ([]AccessoryRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, device_type, hub_id, transport, bot_mode, first_seen, last_seen
		FROM accessories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list accessories: %w", err)
	}
	defer rows.Close()

	var out []AccessoryRecord
	for rows.Next() {
		rec, err := scanAccessory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan accessory: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accessories: %w", err)
	}
	return out, nil
}

// Remove deletes an accessory and its flush history.
func (r *Registry) Remove(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM flush_history WHERE device_id = ?", id); err != nil {
		return fmt.Errorf("remove flush history %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM accessories WHERE id = ?", id); err != nil {
		return fmt.Errorf("remove accessory %s: %w", id, err)
	}
	return tx.Commit()
}

// RecordFlush stores a flush outcome and trims the device's history.
func (r *Registry) RecordFlush(ctx context.Context, f FlushRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO flush_history
			(request_id, device_id, transport, desired, noop, attempts, duration_ms, error, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.RequestID, f.DeviceID, f.Transport, f.Desired, f.Noop, f.Attempts,
		f.Duration.Milliseconds(), f.Error, formatTime(f.CompletedAt),
	); err != nil {
		return fmt.Errorf("record flush %s: %w", f.RequestID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM flush_history
		WHERE device_id = ? AND request_id NOT IN (
			SELECT request_id FROM flush_history
			WHERE device_id = ?
			ORDER BY completed_at DESC
			LIMIT ?
		)`, f.DeviceID, f.DeviceID, r.historyLimit,
	); err != nil {
		return fmt.Errorf("trim flush history %s: %w", f.DeviceID, err)
	}

	return tx.Commit()
}

// RecentFlushes returns up to limit flushes for a device, newest first.
func (r *Registry) RecentFlushes(ctx context.Context, deviceID string, limit int) ([]FlushRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT request_id, device_id, transport, desired, noop, attempts, duration_ms, error, completed_at
		FROM flush_history
		WHERE device_id = ?
		ORDER BY completed_at DESC
		LIMIT ?`, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("query flush history: %w", err)
	}
	defer rows.Close()

	var out []FlushRecord
	for rows.Next() {
		var (
			f          FlushRecord
			durationMS int64
			completed  string
		)
		if err := rows.Scan(&f.RequestID, &f.DeviceID, &f.Transport, &f.Desired, &f.Noop,
			&f.Attempts, &durationMS, &f.Error, &completed); err != nil {
			return nil, fmt.Errorf("scan flush: %w", err)
		}
		f.Duration = time.Duration(durationMS) * time.Millisecond
		f.CompletedAt = parseTime(completed)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flush history: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccessory(row rowScanner) (AccessoryRecord, error) {
	var (
		rec         AccessoryRecord
		typ         string
		first, last string
	)
	if err := row.Scan(&rec.ID, &rec.Name, &typ, &rec.HubID, &rec.Transport, &rec.BotMode, &first, &last); err != nil {
		return AccessoryRecord{}, err
	}
	rec.Type = device.Type(typ)
	rec.FirstSeen = parseTime(first)
	rec.LastSeen = parseTime(last)
	return rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s) //nolint:errcheck // written by formatTime
	return t
}
