package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/crew-engine/domain"
	"github.com/warp/crew-engine/domain/store"
)

func TestMemory_RatesStayOrdered(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	require.NoError(t, m.SaveRate(ctx, domain.WorkerRate{ID: "r-2", WorkerID: "w", EffectiveDate: domain.NewDate(2024, 6, 1)}))
	require.NoError(t, m.SaveRate(ctx, domain.WorkerRate{ID: "r-1", WorkerID: "w", EffectiveDate: domain.NewDate(2024, 1, 1)}))

	rates, err := m.ListRates(ctx, "w")
	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.Equal(t, domain.RateID("r-1"), rates[0].ID)

	// Closing a rate replaces it in place
	end := domain.NewDate(2024, 5, 31)
	closed := rates[0]
	closed.EndDate = &end
	require.NoError(t, m.SaveRate(ctx, closed))

	rates, _ = m.ListRates(ctx, "w")
	require.Len(t, rates, 2)
	require.NotNil(t, rates[0].EndDate)
}

func TestMemory_ActiveShiftAndCopies(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	start := time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC)
	end := start.Add(8 * time.Hour)

	require.NoError(t, m.PersistShift(ctx, domain.Shift{ID: "old", WorkerID: "w", Start: start.AddDate(0, 0, -1), End: &end}))
	require.NoError(t, m.PersistShift(ctx, domain.Shift{ID: "live", WorkerID: "w", Start: start,
		Breaks: []domain.Break{{Start: start.Add(time.Hour)}}}))

	active, err := m.ActiveShift(ctx, "w")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, domain.ShiftID("live"), active.ID)

	// Mutating the returned copy does not leak into the store
	active.Breaks[0].End = &end
	again, _ := m.GetShift(ctx, "live")
	assert.Nil(t, again.Breaks[0].End)

	none, err := m.ActiveShift(ctx, "other")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = m.GetShift(ctx, "missing")
	assert.True(t, domain.IsNotFound(err))
}

func TestMemory_TimeSheetWindow(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	for i, day := range []int{5, 1, 3, 10} {
		require.NoError(t, m.PersistTimeSheetEntry(ctx, domain.TimeSheetEntry{
			ID:       domain.EntryID(fmt.Sprintf("e-%d", i)),
			WorkerID: "w",
			WorkDate: domain.NewDate(2024, 3, day),
			Hours:    decimal.NewFromInt(8),
		}))
	}

	entries, err := m.ListTimeSheetEntries(ctx, "w", domain.NewDate(2024, 3, 1), domain.NewDate(2024, 3, 5))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, 1, entries[0].WorkDate.Day())
	assert.Equal(t, 5, entries[2].WorkDate.Day())
}
