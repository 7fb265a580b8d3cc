package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/crew-engine/domain"
	"github.com/warp/crew-engine/store/sqlite"
)

func pendingShift(id string, start time.Time) domain.PendingSync {
	end := start.Add(6 * time.Hour)
	breakEnd := start.Add(3*time.Hour + 30*time.Minute)
	return domain.PendingSync{
		Shift: domain.Shift{
			ID: domain.ShiftID(id), WorkerID: "w1", ProjectID: "p1", Type: domain.ShiftRegular,
			Start: start, End: &end, SyncStatus: domain.SyncPending,
			Breaks: []domain.Break{{Start: start.Add(3 * time.Hour), End: &breakEnd}},
		},
		Entry: domain.TimeSheetEntry{
			ID: domain.EntryID("e-" + id), WorkerID: "w1", ProjectID: "p1", ShiftID: domain.ShiftID(id),
			WorkDate: domain.DateOf(start), Hours: decimal.RequireFromString("5.5"), SyncStatus: domain.SyncPending,
		},
		Attempts:  1,
		LastError: "connection refused",
		LastTry:   end,
	}
}

func TestJournal_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "crew.db.pending")
	t0 := time.Date(2024, 3, 4, 7, 0, 0, 0, time.UTC)

	// GIVEN: Two pending shifts written before a restart
	j, err := sqlite.OpenJournal(path)
	require.NoError(t, err)
	require.NoError(t, j.SavePending(ctx, pendingShift("s2", t0.Add(24*time.Hour))))
	require.NoError(t, j.SavePending(ctx, pendingShift("s1", t0)))
	require.NoError(t, j.Close())

	// WHEN
	j, err = sqlite.OpenJournal(path)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	items, err := j.ListPending(ctx)

	// THEN: Oldest first, with the real end time and hours
	require.NoError(t, err)
	require.Len(t, items, 2)
	got := items[0]
	assert.Equal(t, domain.ShiftID("s1"), got.Shift.ID)
	require.NotNil(t, got.Shift.End)
	assert.True(t, got.Shift.End.Equal(t0.Add(6*time.Hour)))
	require.Len(t, got.Shift.Breaks, 1)
	assert.True(t, got.Entry.Hours.Equal(decimal.RequireFromString("5.5")))
	assert.Equal(t, "2024-03-04", got.Entry.WorkDate.String())
	assert.Equal(t, domain.SyncPending, got.Entry.SyncStatus)
	assert.Equal(t, "connection refused", got.LastError)
}

func TestJournal_UpdateDeleteClear(t *testing.T) {
	ctx := context.Background()
	j, err := sqlite.OpenJournal(filepath.Join(t.TempDir(), "pending.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	t0 := time.Date(2024, 3, 4, 7, 0, 0, 0, time.UTC)

	p := pendingShift("s1", t0)
	require.NoError(t, j.SavePending(ctx, p))
	p.Attempts = 2
	p.Shift.SyncStatus = domain.SyncFailed
	require.NoError(t, j.SavePending(ctx, p))
	require.NoError(t, j.SavePending(ctx, pendingShift("s2", t0.Add(time.Hour))))

	items, err := j.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 2, items[0].Attempts)
	assert.Equal(t, domain.SyncFailed, items[0].Shift.SyncStatus)

	require.NoError(t, j.DeletePending(ctx, "s1"))
	require.NoError(t, j.DeletePending(ctx, "missing"))
	items, err = j.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.NoError(t, j.ClearPending(ctx))
	items, err = j.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}
