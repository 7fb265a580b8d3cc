/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Workers and rate supersession
- The shift lifecycle over HTTP, with live earnings
- Sync pending (202) and force sync
- Payroll, cost rollups and the exports of a loaded scenario
- Error to status mapping
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/warp/crew-engine/domain"
	"github.com/warp/crew-engine/domain/store"
	"github.com/warp/crew-engine/report"
	"github.com/warp/crew-engine/shift"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type testServer struct {
	t      *testing.T
	now    time.Time
	router http.Handler
	h      *Handler
}

func newTestServer(t *testing.T, st Store) *testServer {
	t.Helper()
	ts := &testServer{t: t, now: time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)}
	ts.h = NewHandler(st, Options{Clock: func() time.Time { return ts.now }})
	ts.router = NewRouter(ts.h, RouterOptions{
		AllowedOrigins: []string{"http://localhost:5173"},
		AdminLogin:     "admin",
		AdminPassword:  "secret",
	})
	return ts
}

func (ts *testServer) advance(d time.Duration) { ts.now = ts.now.Add(d) }

func (ts *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if method == http.MethodPost && (path == "/api/reset" || path == "/api/scenarios/load") {
		req.SetBasicAuth("admin", "secret")
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (ts *testServer) seedWorker(id string, rate string) {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/workers", CreateWorkerRequest{ID: id, Name: "Marta"})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	if rate == "" {
		return
	}
	rec = ts.do(http.MethodPost, "/api/workers/"+id+"/rates", CreateRateRequest{
		PaymentType: "hourly", HourlyRate: dec(rate), EffectiveDate: "2024-01-01",
	})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
}

// flakyStore fails time-sheet writes on demand.
type flakyStore struct {
	*store.Memory
	mock.Mock
}

func (s *flakyStore) PersistTimeSheetEntry(ctx context.Context, e domain.TimeSheetEntry) error {
	if err := s.Called(e.WorkerID).Error(0); err != nil {
		return err
	}
	return s.Memory.PersistTimeSheetEntry(ctx, e)
}

// =============================================================================
// WORKERS & RATES
// =============================================================================

func TestWorkersAndRates(t *testing.T) {
	ts := newTestServer(t, store.NewMemory())
	ts.seedWorker("w1", "20")

	// WHEN: A new rate starts on March 1st
	rec := ts.do(http.MethodPost, "/api/workers/w1/rates", CreateRateRequest{
		PaymentType: "hourly", HourlyRate: dec("25"), EffectiveDate: "2024-03-01",
	})

	// THEN: The January rate is closed the day before
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[CreateRateResponse](t, rec)
	require.NotNil(t, created.Superseded)
	require.NotNil(t, created.Superseded.EndDate)
	assert.Equal(t, "2024-02-29", *created.Superseded.EndDate)

	rec = ts.do(http.MethodGet, "/api/workers/w1/rates/effective?date=2024-02-15", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[RateDTO](t, rec).HourlyRate.Equal(dec("20")))

	rec = ts.do(http.MethodGet, "/api/workers/w1/rates/effective?date=2023-12-31", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodGet, "/api/workers/w1/rates", nil)
	assert.Len(t, decode[[]RateDTO](t, rec), 2)

	workers := decode[[]WorkerDTO](t, ts.do(http.MethodGet, "/api/workers", nil))
	assert.Len(t, workers, 1)
}

func TestCreateRate_Invalid(t *testing.T) {
	ts := newTestServer(t, store.NewMemory())
	ts.seedWorker("w1", "")

	tests := map[string]CreateRateRequest{
		"unknown type":   {PaymentType: "daily", HourlyRate: dec("20"), EffectiveDate: "2024-01-01"},
		"zero amount":    {PaymentType: "hourly", EffectiveDate: "2024-01-01"},
		"bad date":       {PaymentType: "hourly", HourlyRate: dec("20"), EffectiveDate: "01/01/2024"},
		"end before eff": {PaymentType: "hourly", HourlyRate: dec("20"), EffectiveDate: "2024-02-01", EndDate: "2024-01-01"},
	}
	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, "/api/workers/w1/rates", req)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	rec := ts.do(http.MethodPost, "/api/workers/nobody/rates", tests["zero amount"])
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// SHIFTS
// =============================================================================

func TestShiftLifecycle(t *testing.T) {
	ts := newTestServer(t, store.NewMemory())
	ts.seedWorker("w1", "20")

	// GIVEN: No running shift
	rec := ts.do(http.MethodGet, "/api/workers/w1/shift", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "not_started", decode[ShiftDTO](t, rec).State)

	// WHEN: Starting, taking a 30 minute break, and working 8 hours
	rec = ts.do(http.MethodPost, "/api/workers/w1/shift/start", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "active", decode[ShiftDTO](t, rec).State)

	rec = ts.do(http.MethodPost, "/api/workers/w1/shift/start", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = ts.do(http.MethodPost, "/api/workers/w1/shift/break/end", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	ts.advance(2 * time.Hour)
	rec = ts.do(http.MethodPost, "/api/workers/w1/shift/break/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "on_break", decode[ShiftDTO](t, rec).State)

	ts.advance(30 * time.Minute)
	rec = ts.do(http.MethodPost, "/api/workers/w1/shift/break/end", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ts.advance(6 * time.Hour)

	// THEN: Live hours exclude the break and earnings use the rate
	live := decode[ShiftDTO](t, ts.do(http.MethodGet, "/api/workers/w1/shift", nil))
	assert.True(t, live.WorkedHours.Equal(dec("8")), live.WorkedHours.String())
	assert.Equal(t, int64(30), live.BreakMinutes)
	require.NotNil(t, live.Earnings)
	assert.True(t, live.Earnings.GrossPay.Equal(dec("160")))
	assert.Equal(t, "€160.00", live.Earnings.Display)

	rec = ts.do(http.MethodPost, "/api/workers/w1/shift/end", EndShiftRequest{Note: "Slab poured"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ended := decode[EndShiftResponse](t, rec)
	assert.False(t, ended.SyncPending)
	assert.Equal(t, "ended", ended.Shift.State)
	assert.True(t, ended.Entry.Hours.Equal(dec("8")))
	assert.Equal(t, "2024-03-04", ended.Entry.WorkDate)

	// The entry is on the time sheet and the worker can start again
	entries := decode[[]TimeSheetEntryDTO](t, ts.do(http.MethodGet, "/api/workers/w1/timesheets?from=2024-03-04&to=2024-03-10", nil))
	require.Len(t, entries, 1)
	assert.Equal(t, "Slab poured", entries[0].Note)
	assert.Equal(t, "not_started", decode[ShiftDTO](t, ts.do(http.MethodGet, "/api/workers/w1/shift", nil)).State)
	assert.Equal(t, http.StatusConflict, ts.do(http.MethodPost, "/api/workers/w1/shift/end", nil).Code)
}

func TestShift_EarningsUnavailable(t *testing.T) {
	ts := newTestServer(t, store.NewMemory())
	ts.seedWorker("w1", "")

	// GIVEN: A worker without any rate
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/api/workers/w1/shift/start", nil).Code)
	ts.advance(time.Hour)

	// THEN: Hours are tracked, earnings are flagged instead of zero
	live := decode[ShiftDTO](t, ts.do(http.MethodGet, "/api/workers/w1/shift", nil))
	assert.True(t, live.WorkedHours.Equal(dec("1")))
	assert.Nil(t, live.Earnings)
	assert.True(t, live.EarningsUnavailable)

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPost, "/api/workers/nobody/shift/start", nil).Code)
}

func TestEndShift_SyncPending(t *testing.T) {
	st := &flakyStore{Memory: store.NewMemory()}
	st.On("PersistTimeSheetEntry", domain.WorkerID("w1")).Return(errors.New("disk full")).Once()
	st.On("PersistTimeSheetEntry", domain.WorkerID("w1")).Return(nil)

	ts := newTestServer(t, st)
	ts.seedWorker("w1", "20")
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/api/workers/w1/shift/start", nil).Code)
	ts.advance(4 * time.Hour)

	// WHEN: Storage fails while ending
	rec := ts.do(http.MethodPost, "/api/workers/w1/shift/end", nil)

	// THEN: 202, the data is kept and listed as pending
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	ended := decode[EndShiftResponse](t, rec)
	assert.True(t, ended.SyncPending)
	assert.Equal(t, "pending", ended.Entry.SyncStatus)

	pending := decode[[]PendingDTO](t, ts.do(http.MethodGet, "/api/sync/pending", nil))
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Contains(t, pending[0].LastError, "disk full")

	// The stale checkpoint does not block a new shift
	assert.Equal(t, string(shift.StateNotStarted), decode[ShiftDTO](t, ts.do(http.MethodGet, "/api/workers/w1/shift", nil)).State)

	// WHEN: Forcing a sync once storage is back
	rec = ts.do(http.MethodPost, "/api/sync", nil)

	// THEN
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[SyncResultDTO](t, rec)
	assert.Equal(t, []string{ended.Shift.ID}, res.Synced)
	assert.Empty(t, res.Failed)
	assert.Empty(t, decode[[]PendingDTO](t, ts.do(http.MethodGet, "/api/sync/pending", nil)))
	st.AssertNumberOfCalls(t, "PersistTimeSheetEntry", 2)
}

// storeDown fails time-sheet writes and reads, as an unreachable database does.
type storeDown struct {
	*store.Memory
	down bool
}

func (s *storeDown) PersistTimeSheetEntry(ctx context.Context, e domain.TimeSheetEntry) error {
	if s.down {
		return errors.New("connection refused")
	}
	return s.Memory.PersistTimeSheetEntry(ctx, e)
}

func (s *storeDown) ListTimeSheetEntries(ctx context.Context, id domain.WorkerID, from, to domain.Date) ([]domain.TimeSheetEntry, error) {
	if s.down {
		return nil, errors.New("connection refused")
	}
	return s.Memory.ListTimeSheetEntries(ctx, id, from, to)
}

func TestEndShift_SyncPendingWhenReadsFailToo(t *testing.T) {
	st := &storeDown{Memory: store.NewMemory()}
	ts := newTestServer(t, st)
	ts.seedWorker("w1", "20")
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/api/workers/w1/shift/start", nil).Code)
	ts.advance(4 * time.Hour)

	// WHEN: The database goes away before the shift ends
	st.down = true
	rec := ts.do(http.MethodPost, "/api/workers/w1/shift/end", nil)

	// THEN: Still 202 with the ended shift, only earnings are missing
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	ended := decode[EndShiftResponse](t, rec)
	assert.True(t, ended.SyncPending)
	assert.Equal(t, string(shift.StateEnded), ended.Shift.State)
	assert.True(t, ended.Shift.EarningsUnavailable)
	assert.Nil(t, ended.Shift.Earnings)
	assert.True(t, ended.Entry.Hours.Equal(dec("4")))
	assert.Len(t, ts.h.Tracker.Pending(), 1)

	// A retried end is a state conflict, not a second entry
	assert.Equal(t, http.StatusConflict, ts.do(http.MethodPost, "/api/workers/w1/shift/end", nil).Code)

	// Once the database is back the shift syncs
	st.down = false
	rec = ts.do(http.MethodPost, "/api/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{ended.Shift.ID}, decode[SyncResultDTO](t, rec).Synced)
}

// =============================================================================
// TIME SHEETS
// =============================================================================

func TestTimeSheetEntries(t *testing.T) {
	ts := newTestServer(t, store.NewMemory())
	ts.seedWorker("w1", "20")

	rec := ts.do(http.MethodPost, "/api/workers/w1/timesheets", CreateTimeSheetEntryRequest{WorkDate: "2024-03-05", Hours: dec("-1")})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/workers/w1/timesheets", CreateTimeSheetEntryRequest{WorkDate: "2024-03-05", Hours: dec("7.5")})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Default range is the current week (clock is Monday 2024-03-04)
	entries := decode[[]TimeSheetEntryDTO](t, ts.do(http.MethodGet, "/api/workers/w1/timesheets", nil))
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Hours.Equal(dec("7.5")))

	rec = ts.do(http.MethodGet, "/api/workers/w1/timesheets?from=2024-03-10&to=2024-03-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// SCENARIO, PAYROLL & COSTS
// =============================================================================

func TestScenario_PayrollAndCosts(t *testing.T) {
	ts := newTestServer(t, store.NewMemory())

	// GIVEN: Loading needs the admin credentials
	req := httptest.NewRequest(http.MethodPost, "/api/scenarios/load", bytes.NewBufferString(`{"scenario_id":"crew-week"}`))
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "crew-week"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "crew-week", decode[ScenarioDTO](t, ts.do(http.MethodGet, "/api/scenarios/current", nil)).ID)

	// WHEN: Reading the payroll of the scenario week
	rec = ts.do(http.MethodGet, "/api/workers/w-marta/payroll?date=2024-03-06", nil)

	// THEN: 45 hours, 5 of them at 1.5x
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p := decode[PayrollDTO](t, rec)
	assert.Equal(t, "2024-W10", p.Week)
	assert.Len(t, p.Lines, 5)
	assert.True(t, p.Totals.GrossPay.Equal(dec("1187.5")))
	assert.True(t, p.Totals.OvertimeHours.Equal(dec("5")))

	rec = ts.do(http.MethodGet, "/api/workers/w-marta/payroll.xlsx?date=2024-03-06", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, report.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "payroll-w-marta-2024-W10.xlsx")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	// Costs: the foundation is under budget, the rollup only counts budgeted phases
	costs := decode[ProjectCostDTO](t, ts.do(http.MethodGet, "/api/projects/p-tower/costs", nil))
	require.Len(t, costs.Phases, 3)
	require.NotNil(t, costs.Variance)
	assert.True(t, costs.Variance.Equal(dec("-3295")))

	phase := decode[PhaseCostDTO](t, ts.do(http.MethodGet, "/api/phases/ph-foundation/costs", nil))
	assert.True(t, phase.TotalCommitted.Equal(dec("8705")))
	assert.False(t, phase.OverBudget)

	rec = ts.do(http.MethodGet, "/api/projects/p-tower/calendar.ics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/calendar")
	assert.Contains(t, rec.Body.String(), "BEGIN:VCALENDAR")
	assert.Contains(t, rec.Body.String(), "UID:phase-ph-foundation-p-tower@")

	rec = ts.do(http.MethodGet, "/api/projects/p-tower/costs.xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/projects/nope/costs", nil).Code)

	// WHEN: Resetting
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/reset", nil).Code)

	// THEN
	assert.Empty(t, decode[[]WorkerDTO](t, ts.do(http.MethodGet, "/api/workers", nil)))
	assert.Equal(t, "null", string(bytes.TrimSpace(ts.do(http.MethodGet, "/api/scenarios/current", nil).Body.Bytes())))
}

func TestCalendar_NoExportableData(t *testing.T) {
	ts := newTestServer(t, store.NewMemory())
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "rate-change"}).Code)

	rec := ts.do(http.MethodGet, "/api/projects/p-survey/calendar.ics", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPhasesAndCostLines(t *testing.T) {
	ts := newTestServer(t, store.NewMemory())
	rec := ts.do(http.MethodPost, "/api/projects", CreateProjectRequest{ID: "p1", Name: "Depot"})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Invalid phases are rejected
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/projects/p1/phases", CreatePhaseRequest{Name: "X", Status: "paused"}).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/projects/p1/phases",
		CreatePhaseRequest{Name: "X", StartDate: "2024-04-10", EndDate: "2024-04-01"}).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPost, "/api/projects/p2/phases", CreatePhaseRequest{Name: "X"}).Code)

	budget := dec("1000")
	rec = ts.do(http.MethodPost, "/api/projects/p1/phases", CreatePhaseRequest{ID: "ph1", Name: "Slab", Budget: &budget})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "not_started", decode[PhaseDTO](t, rec).Status)

	// WHEN: Adding one line of each kind
	rec = ts.do(http.MethodPost, "/api/phases/ph1/materials", CreateMaterialRequest{Name: "Concrete", Quantity: dec("4"), UnitCost: dec("110")})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = ts.do(http.MethodPost, "/api/phases/ph1/labor", CreateLaborRequest{
		WorkDate: "2024-03-04", HoursPlanned: dec("10"), HoursActual: dec("12"), HourlyRate: dec("25"),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = ts.do(http.MethodPost, "/api/phases/ph1/expenses", CreateExpenseRequest{Description: "Skip", Amount: dec("280")})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// THEN: 440 + 300 + 280 committed against 1000
	sum := decode[PhaseCostDTO](t, rec)
	assert.True(t, sum.MaterialCost.Equal(dec("440")))
	assert.True(t, sum.LaborCostActual.Equal(dec("300")))
	assert.True(t, sum.TotalCommitted.Equal(dec("1020")))
	assert.True(t, sum.OverBudget)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/phases/ph1/labor", CreateLaborRequest{WorkDate: "2024-03-04", HoursActual: dec("-1")}).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPost, "/api/phases/nope/expenses", CreateExpenseRequest{Amount: dec("1")}).Code)

	// Undated phase: nothing to put on a calendar
	assert.Equal(t, http.StatusUnprocessableEntity, ts.do(http.MethodGet, "/api/projects/p1/calendar.ics", nil).Code)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&domain.NotFoundError{Kind: "worker", ID: "w1"}, http.StatusNotFound},
		{&shift.TransitionError{Op: "end", State: shift.StateNotStarted, Err: domain.ErrNotActive}, http.StatusConflict},
		{domain.ErrNotOnBreak, http.StatusConflict},
		{domain.ErrRateOverlap, http.StatusBadRequest},
		{domain.ErrInvalidHours, http.StatusBadRequest},
		{&domain.RateNotFoundError{WorkerID: "w1"}, http.StatusUnprocessableEntity},
		{domain.ErrNoExportableData, http.StatusUnprocessableEntity},
		{&domain.SyncPendingError{ShiftID: "s1", Cause: errors.New("down")}, http.StatusAccepted},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
