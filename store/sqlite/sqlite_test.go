package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/crew-engine/domain"
	"github.com/warp/crew-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_Rates(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	// GIVEN: A closed hourly rate and an open one
	end := domain.NewDate(2024, 1, 31)
	require.NoError(t, s.SaveRate(ctx, domain.WorkerRate{
		ID: "r1", WorkerID: "w1", PaymentType: domain.PaymentHourly,
		HourlyRate: decimal.RequireFromString("22.50"), EffectiveDate: domain.NewDate(2024, 1, 1), EndDate: &end,
	}))
	require.NoError(t, s.SaveRate(ctx, domain.WorkerRate{
		ID: "r2", WorkerID: "w1", PaymentType: domain.PaymentHourly,
		HourlyRate: decimal.NewFromInt(25), EffectiveDate: domain.NewDate(2024, 2, 1),
	}))

	// WHEN
	rates, err := s.ListRates(ctx, "w1")

	// THEN: Ordered by effective date, decimals and dates survive
	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.Equal(t, domain.RateID("r1"), rates[0].ID)
	assert.True(t, rates[0].HourlyRate.Equal(decimal.RequireFromString("22.5")))
	require.NotNil(t, rates[0].EndDate)
	assert.Equal(t, "2024-01-31", rates[0].EndDate.String())
	assert.Nil(t, rates[1].EndDate)

	none, err := s.ListRates(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_ShiftCheckpoints(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	start := time.Date(2024, 3, 4, 7, 0, 0, 0, time.UTC)
	breakStart := start.Add(3 * time.Hour)
	sh := domain.Shift{
		ID: "s1", OrgID: "o1", WorkerID: "w1", Type: domain.ShiftRegular,
		Start: start, Breaks: []domain.Break{{Start: breakStart}}, SyncStatus: domain.SyncPending,
	}
	require.NoError(t, s.PersistShift(ctx, sh))

	// Active shift comes back with its open break
	active, err := s.ActiveShift(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.True(t, active.Start.Equal(start))
	require.Len(t, active.Breaks, 1)
	assert.Nil(t, active.Breaks[0].End)

	// Ending the shift removes it from the active lookup
	breakEnd := breakStart.Add(30 * time.Minute)
	end := start.Add(8 * time.Hour)
	sh.Breaks[0].End = &breakEnd
	sh.End = &end
	sh.SyncStatus = domain.SyncSynced
	require.NoError(t, s.PersistShift(ctx, sh))

	active, err = s.ActiveShift(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, active)

	got, err := s.GetShift(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got.End)
	assert.True(t, got.End.Equal(end))
	assert.True(t, got.Breaks[0].End.Equal(breakEnd))
	assert.Equal(t, domain.SyncSynced, got.SyncStatus)

	_, err = s.GetShift(ctx, "missing")
	assert.True(t, domain.IsNotFound(err))
}

func TestStore_TimeSheetRange(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for i, day := range []int{3, 4, 5, 11} {
		require.NoError(t, s.PersistTimeSheetEntry(ctx, domain.TimeSheetEntry{
			ID:         domain.EntryID(string(rune('a' + i))),
			WorkerID:   "w1",
			WorkDate:   domain.NewDate(2024, 3, day),
			Hours:      decimal.RequireFromString("7.5"),
			SyncStatus: domain.SyncSynced,
		}))
	}

	week := domain.WeekOf(domain.NewDate(2024, 3, 6))
	entries, err := s.ListTimeSheetEntries(ctx, "w1", week.Start, week.End)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "2024-03-04", entries[0].WorkDate.String())
	assert.True(t, entries[1].Hours.Equal(decimal.RequireFromString("7.5")))
}

func TestStore_PhasesAndCostLines(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.SaveProject(ctx, domain.Project{ID: "p1", Name: "Tower"}))
	start, end := domain.NewDate(2024, 3, 4), domain.NewDate(2024, 3, 15)
	budget := decimal.NewFromInt(5000)
	require.NoError(t, s.SavePhase(ctx, domain.Phase{ID: "undated", ProjectID: "p1", Name: "Snagging", Status: domain.PhaseNotStarted}))
	require.NoError(t, s.SavePhase(ctx, domain.Phase{
		ID: "ph1", ProjectID: "p1", Name: "Foundation", Status: domain.PhaseInProgress,
		StartDate: &start, EndDate: &end, Progress: 40, Budget: &budget,
	}))

	phases, err := s.ListPhases(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, phases, 2)
	assert.Equal(t, domain.PhaseID("ph1"), phases[0].ID, "dated phases first")
	require.NotNil(t, phases[0].Budget)
	assert.True(t, phases[0].Budget.Equal(budget))
	assert.Nil(t, phases[1].Budget)
	assert.False(t, phases[1].IsDated())

	require.NoError(t, s.SaveMaterial(ctx, domain.MaterialLine{
		ID: "m1", PhaseID: "ph1", Name: "Concrete", Unit: "m3",
		Quantity: decimal.NewFromInt(10), UnitCost: decimal.NewFromInt(100), Status: domain.MaterialDelivered,
	}))
	require.NoError(t, s.SaveLabor(ctx, domain.LaborLine{
		ID: "l1", PhaseID: "ph1", WorkerID: "w1", WorkDate: start, PricingType: domain.PricingHourly,
		HoursPlanned: decimal.NewFromInt(8), HoursActual: decimal.NewFromInt(9), HourlyRate: decimal.NewFromInt(25),
	}))
	require.NoError(t, s.SaveExpense(ctx, domain.ExpenseLine{
		ID: "e1", PhaseID: "ph1", Description: "Skip hire", Amount: decimal.NewFromInt(250), Status: domain.ExpenseApproved,
	}))

	materials, err := s.ListMaterials(ctx, "ph1")
	require.NoError(t, err)
	require.Len(t, materials, 1)
	assert.True(t, materials[0].TotalCost().Equal(decimal.NewFromInt(1000)))

	labor, err := s.ListLabor(ctx, "ph1")
	require.NoError(t, err)
	require.Len(t, labor, 1)
	assert.True(t, labor[0].ActualCost().Equal(decimal.NewFromInt(225)))
	assert.Equal(t, "2024-03-04", labor[0].WorkDate.String())

	expenses, err := s.ListExpenses(ctx, "ph1")
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.True(t, expenses[0].Date.IsZero())

	_, err = s.GetPhase(ctx, "nope")
	assert.True(t, domain.IsNotFound(err))
}

func TestStore_OvertimePolicyVersioning(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.GetOvertimePolicy(ctx, "org-1")
	assert.True(t, domain.IsNotFound(err))

	require.NoError(t, s.SaveOvertimePolicy(ctx, "org-1", `{"weekly_threshold_hours":38}`))
	require.NoError(t, s.SaveOvertimePolicy(ctx, "org-1", `{"weekly_threshold_hours":39}`))

	rec, err := s.GetOvertimePolicyRecord(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Version)
	assert.Equal(t, `{"weekly_threshold_hours":39}`, rec.ConfigJSON)
}

func TestStore_Reset(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.SaveWorker(ctx, domain.Worker{ID: "w1", Name: "Ada"}))
	require.NoError(t, s.Reset(ctx))

	workers, err := s.ListWorkers(ctx)
	require.NoError(t, err)
	assert.Empty(t, workers)
}

func TestStore_CorruptDecimalIsAnError(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "crew.db")
	s, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.SaveRate(ctx, domain.WorkerRate{
		ID: "r1", WorkerID: "w1", PaymentType: domain.PaymentHourly,
		HourlyRate: decimal.NewFromInt(20), EffectiveDate: domain.NewDate(2024, 1, 1),
	}))
	require.NoError(t, s.SaveExpense(ctx, domain.ExpenseLine{ID: "x1", PhaseID: "ph1", Amount: decimal.NewFromInt(100)}))

	// GIVEN: Amounts damaged outside the store
	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer raw.Close()
	_, err = raw.ExecContext(ctx, "UPDATE worker_rates SET hourly_rate = '2O.00' WHERE id = 'r1'")
	require.NoError(t, err)
	_, err = raw.ExecContext(ctx, "UPDATE expense_lines SET amount = '' WHERE id = 'x1'")
	require.NoError(t, err)

	// THEN: Reads fail instead of returning zero
	_, err = s.ListRates(ctx, "w1")
	assert.ErrorContains(t, err, "corrupt decimal")
	_, err = s.ListExpenses(ctx, "ph1")
	assert.ErrorContains(t, err, "corrupt decimal")
}
