package switchbot

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-switchbot/internal/device"
	"github.com/nerrad567/gray-logic-switchbot/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-switchbot/internal/infrastructure/database"
	_ "github.com/nerrad567/gray-logic-switchbot/migrations"
)

// newTestRegistry opens a migrated database in a temporary directory.
func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "switchbot.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate(context.Background()))
	return NewRegistry(db)
}

func TestRegistry_UpsertKeepsFirstSeen(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, r.Upsert(ctx, AccessoryRecord{
		ID: botID, Name: "Kettle", Type: device.TypeBot, Transport: "remote", BotMode: "press", LastSeen: first,
	}))
	require.NoError(t, r.Upsert(ctx, AccessoryRecord{
		ID: botID, Name: "Kettle 2", Type: device.TypeBot, Transport: "local", BotMode: "switch", LastSeen: first.Add(time.Hour),
	}))

	rec, err := r.Get(ctx, botID)
	require.NoError(t, err)
	assert.Equal(t, "Kettle 2", rec.Name)
	assert.Equal(t, "local", rec.Transport)
	assert.Equal(t, "switch", rec.BotMode)
	assert.True(t, rec.FirstSeen.Equal(first), "first_seen = %v", rec.FirstSeen)
	assert.True(t, rec.LastSeen.Equal(first.Add(time.Hour)), "last_seen = %v", rec.LastSeen)
	assert.Equal(t, device.Spec{ID: botID, Name: "Kettle 2", Type: device.TypeBot}, rec.Spec())
}

func TestRegistry_GetMissing(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRegistry_RemoveDeletesHistory(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, AccessoryRecord{ID: contactID, Name: "Door", Type: device.TypeContact, Transport: "remote"}))
	require.NoError(t, r.RecordFlush(ctx, FlushRecord{RequestID: "r1", DeviceID: contactID, Transport: "remote", CompletedAt: time.Now()}))

	require.NoError(t, r.Remove(ctx, contactID))

	list, err := r.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	flushes, err := r.RecentFlushes(ctx, contactID, 10)
	require.NoError(t, err)
	assert.Empty(t, flushes)
}

func TestRegistry_FlushHistoryIsBounded(t *testing.T) {
	r := newTestRegistry(t)
	r.historyLimit = 3
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, r.RecordFlush(ctx, FlushRecord{
			RequestID:   fmt.Sprintf("req-%d", i),
			DeviceID:    botID,
			Transport:   "local",
			Desired:     i%2 == 0,
			Attempts:    i + 1,
			Duration:    time.Duration(i) * 100 * time.Millisecond,
			CompletedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, r.RecordFlush(ctx, FlushRecord{
		RequestID: "other", DeviceID: contactID, Transport: "remote", Error: "remote send_command: offline", CompletedAt: base,
	}))

	flushes, err := r.RecentFlushes(ctx, botID, 10)
	require.NoError(t, err)
	require.Len(t, flushes, 3)
	assert.Equal(t, "req-4", flushes[0].RequestID)
	assert.Equal(t, "req-2", flushes[2].RequestID)
	assert.True(t, flushes[0].Desired)
	assert.Equal(t, 5, flushes[0].Attempts)
	assert.Equal(t, 400*time.Millisecond, flushes[0].Duration)

	other, err := r.RecentFlushes(ctx, contactID, 10)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "remote send_command: offline", other[0].Error)
}
