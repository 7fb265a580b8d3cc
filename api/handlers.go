/*
handlers.go - HTTP API handlers for the crew pay and cost engine

PURPOSE:
  Exposes shift tracking, rates, payroll and phase costs via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to the
  compute packages.

ENDPOINTS:
  Workers:
    GET    /api/workers                         List workers
    POST   /api/workers                         Create worker
    GET    /api/workers/{id}                    Get worker
    GET    /api/workers/{id}/rates              Rate history
    POST   /api/workers/{id}/rates              Add rate (closes the previous one)
    GET    /api/workers/{id}/rates/effective    Rate on ?date=

  Shifts:
    GET    /api/workers/{id}/shift              Live state, hours, earnings
    POST   /api/workers/{id}/shift/start        Start a shift
    POST   /api/workers/{id}/shift/break/start  Start a break
    POST   /api/workers/{id}/shift/break/end    End a break
    POST   /api/workers/{id}/shift/end          End the shift

  Time sheets and payroll:
    GET    /api/workers/{id}/timesheets         Entries in ?from=&to=
    POST   /api/workers/{id}/timesheets         Manual entry
    GET    /api/workers/{id}/payroll            Week containing ?date=
    GET    /api/workers/{id}/payroll.xlsx       Same as a workbook
    GET    /api/sync/pending                    Shifts waiting for storage
    POST   /api/sync                            Force sync

  Projects, phases and costs: see projects.go
  Scenarios and reset: see scenarios.go

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Repository plus policy storage and reset
  - Rates, Tracker, Earnings, Costs: the compute services
  - Policies: per-organization overtime policy registry

ERROR HANDLING:
  Errors are returned as JSON with a status picked by statusFor:
  - 202: Shift ended but not stored yet (sync pending)
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Shift state conflict (already active, not active, not on break)
  - 422: No rate for the date, nothing to export
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - projects.go: Project, phase and cost handlers
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/warp/crew-engine/calendar"
	"github.com/warp/crew-engine/costs"
	"github.com/warp/crew-engine/domain"
	"github.com/warp/crew-engine/earnings"
	"github.com/warp/crew-engine/factory"
	"github.com/warp/crew-engine/rates"
	"github.com/warp/crew-engine/report"
	"github.com/warp/crew-engine/scenario"
	"github.com/warp/crew-engine/shift"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the persistence the API needs. Both domain/store.Memory and
// store/sqlite.Store implement it.
type Store interface {
	domain.Repository
	factory.PolicyStore
	scenario.PolicySaver
	Reset(ctx context.Context) error
}

// Options configures a Handler. Zero values fall back to defaults.
type Options struct {
	// Fallback is the overtime policy of organizations without their own.
	Fallback       earnings.Policy
	Calendar       calendar.Options
	CurrencySymbol string
	// Journal keeps shifts that could not be stored across restarts.
	// Nil keeps them in memory only.
	Journal        domain.SyncJournal
	Logger         *slog.Logger
	Clock          func() time.Time
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    Store
	Rates    *rates.Resolver
	Tracker  *shift.Tracker
	Earnings *earnings.Service
	Costs    *costs.Service
	Policies *factory.Registry

	calendar calendar.Options
	currency string
	logger   *slog.Logger
	now      func() time.Time

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires the compute services on top of store.
func NewHandler(store Store, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Fallback.WeeklyThreshold.IsZero() {
		opts.Fallback = earnings.DefaultPolicy()
	}
	if opts.CurrencySymbol == "" {
		opts.CurrencySymbol = domain.DefaultCurrencySymbol
	}
	if opts.Calendar.CurrencySymbol == "" {
		opts.Calendar.CurrencySymbol = opts.CurrencySymbol
	}

	trackerOpts := []shift.Option{shift.WithClock(opts.Clock), shift.WithLogger(opts.Logger)}
	if opts.Journal != nil {
		trackerOpts = append(trackerOpts, shift.WithJournal(opts.Journal))
	}

	resolver := rates.NewResolver(store)
	registry := factory.NewRegistry(store, opts.Fallback)
	return &Handler{
		Store:    store,
		Rates:    resolver,
		Tracker:  shift.NewTracker(store, store, trackerOpts...),
		Earnings: earnings.NewService(resolver, store, registry, opts.Logger),
		Costs:    costs.NewService(store),
		Policies: registry,
		calendar: opts.Calendar,
		currency: opts.CurrencySymbol,
		logger:   opts.Logger,
		now:      opts.Clock,
	}
}

func (h *Handler) today() domain.Date { return domain.DateOf(h.now()) }

// =============================================================================
// WORKER HANDLERS
// =============================================================================

// ListWorkers returns all workers.
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := h.Store.ListWorkers(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list workers", err)
		return
	}

	dtos := make([]WorkerDTO, len(workers))
	for i, wk := range workers {
		dtos[i] = toWorkerDTO(wk)
	}
	writeJSON(w, r, http.StatusOK, dtos)
}

// GetWorker returns a single worker.
func (h *Handler) GetWorker(w http.ResponseWriter, r *http.Request) {
	worker, err := h.Store.GetWorker(r.Context(), workerParam(r))
	if err != nil {
		h.fail(w, r, "Failed to get worker", err)
		return
	}
	writeJSON(w, r, http.StatusOK, toWorkerDTO(worker))
}

// CreateWorker creates or replaces a worker.
func (h *Handler) CreateWorker(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkerRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "name is required", nil)
		return
	}

	worker := domain.Worker{
		ID:        domain.WorkerID(orNew(req.ID)),
		OrgID:     domain.OrgID(req.OrgID),
		Name:      req.Name,
		Email:     req.Email,
		CreatedAt: h.now().UTC(),
	}
	if err := h.Store.SaveWorker(r.Context(), worker); err != nil {
		h.fail(w, r, "Failed to create worker", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toWorkerDTO(worker))
}

// =============================================================================
// RATE HANDLERS
// =============================================================================

// ListRates returns the rate history of a worker.
func (h *Handler) ListRates(w http.ResponseWriter, r *http.Request) {
	worker, err := h.Store.GetWorker(r.Context(), workerParam(r))
	if err != nil {
		h.fail(w, r, "Failed to get worker", err)
		return
	}
	list, err := h.Store.ListRates(r.Context(), worker.ID)
	if err != nil {
		h.fail(w, r, "Failed to list rates", err)
		return
	}

	dtos := make([]RateDTO, len(list))
	for i, rt := range list {
		dtos[i] = toRateDTO(rt)
	}
	writeJSON(w, r, http.StatusOK, dtos)
}

// CreateRate adds a rate. An open rate of the same payment type that starts
// earlier is closed the day before the new one.
func (h *Handler) CreateRate(w http.ResponseWriter, r *http.Request) {
	worker, err := h.Store.GetWorker(r.Context(), workerParam(r))
	if err != nil {
		h.fail(w, r, "Failed to get worker", err)
		return
	}

	var req CreateRateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	from, err := domain.ParseDate(req.EffectiveDate)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid effective_date format (use YYYY-MM-DD)", err)
		return
	}
	until, err := optionalDate(req.EndDate)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
		return
	}

	rate := domain.WorkerRate{
		ID:            domain.RateID(orNew(req.ID)),
		WorkerID:      worker.ID,
		PaymentType:   domain.PaymentType(req.PaymentType),
		HourlyRate:    req.HourlyRate,
		MonthlySalary: req.MonthlySalary,
		EffectiveDate: from,
		EndDate:       until,
		CreatedAt:     h.now().UTC(),
	}
	if err := rates.Validate(rate); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid rate", err)
		return
	}

	closed, err := h.Rates.Add(r.Context(), rate)
	if err != nil {
		h.fail(w, r, "Failed to add rate", err)
		return
	}

	resp := CreateRateResponse{Rate: toRateDTO(rate)}
	if closed != nil {
		dto := toRateDTO(*closed)
		resp.Superseded = &dto
	}
	writeJSON(w, r, http.StatusCreated, resp)
}

// GetEffectiveRate returns the rate that applies on ?date= (default today).
func (h *Handler) GetEffectiveRate(w http.ResponseWriter, r *http.Request) {
	day, err := h.dateQuery(r, "date")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	rate, err := h.Rates.Resolve(r.Context(), workerParam(r), day)
	if errors.Is(err, domain.ErrRateNotFound) {
		writeError(w, r, http.StatusNotFound, "No rate on "+day.String(), err)
		return
	}
	if err != nil {
		h.fail(w, r, "Failed to resolve rate", err)
		return
	}
	writeJSON(w, r, http.StatusOK, toRateDTO(rate))
}

// =============================================================================
// SHIFT HANDLERS
// =============================================================================

// GetShift returns the running shift with live hours and earnings. A worker
// without a running shift gets state "not_started", not an error.
func (h *Handler) GetShift(w http.ResponseWriter, r *http.Request) {
	workerID := workerParam(r)
	st, err := h.Tracker.Current(r.Context(), workerID)
	if errors.Is(err, domain.ErrNotActive) {
		writeJSON(w, r, http.StatusOK, ShiftDTO{
			WorkerID: string(workerID),
			State:    string(shift.StateNotStarted),
			Breaks:   []BreakDTO{},
		})
		return
	}
	if err != nil {
		h.fail(w, r, "Failed to get shift", err)
		return
	}

	dto, err := h.shiftDTO(r.Context(), st)
	if err != nil {
		h.fail(w, r, "Failed to compute earnings", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

// StartShift starts a shift. The body is optional; the organization
// defaults to the worker's.
func (h *Handler) StartShift(w http.ResponseWriter, r *http.Request) {
	worker, err := h.Store.GetWorker(r.Context(), workerParam(r))
	if err != nil {
		h.fail(w, r, "Failed to get worker", err)
		return
	}

	var req StartShiftRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	orgID := domain.OrgID(req.OrgID)
	if orgID == "" {
		orgID = worker.OrgID
	}

	st, err := h.Tracker.StartShift(r.Context(), shift.StartRequest{
		OrgID:     orgID,
		WorkerID:  worker.ID,
		ProjectID: domain.ProjectID(req.ProjectID),
		Type:      domain.ShiftType(req.Type),
	})
	if err != nil {
		h.fail(w, r, "Failed to start shift", err)
		return
	}
	h.writeShift(w, r, http.StatusCreated, st)
}

func (h *Handler) StartBreak(w http.ResponseWriter, r *http.Request) {
	st, err := h.Tracker.StartBreak(r.Context(), workerParam(r))
	if err != nil {
		h.fail(w, r, "Failed to start break", err)
		return
	}
	h.writeShift(w, r, http.StatusOK, st)
}

func (h *Handler) EndBreak(w http.ResponseWriter, r *http.Request) {
	st, err := h.Tracker.EndBreak(r.Context(), workerParam(r))
	if err != nil {
		h.fail(w, r, "Failed to end break", err)
		return
	}
	h.writeShift(w, r, http.StatusOK, st)
}

// EndShift ends the shift and books its time-sheet entry. When storage
// fails the shift is kept for a force sync and 202 is returned.
func (h *Handler) EndShift(w http.ResponseWriter, r *http.Request) {
	var req EndShiftRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	done, err := h.Tracker.EndShift(r.Context(), workerParam(r), req.Note, req.Location)
	pending := errors.Is(err, domain.ErrSyncPending)
	if err != nil && !pending {
		h.fail(w, r, "Failed to end shift", err)
		return
	}

	dto, derr := h.shiftDTO(r.Context(), done.Status)
	switch {
	case derr != nil && pending:
		// The store is likely down for reads too; the shift is still ended.
		h.logger.Warn("earnings unavailable for pending shift",
			slog.String("shift_id", string(done.Shift.ID)),
			slog.Any("error", derr))
		dto = toShiftDTO(done.Status)
		dto.EarningsUnavailable = true
	case derr != nil:
		h.fail(w, r, "Failed to compute earnings", derr)
		return
	}
	resp := EndShiftResponse{Shift: dto, Entry: toEntryDTO(done.Entry), SyncPending: pending}
	if pending {
		writeJSON(w, r, http.StatusAccepted, resp)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (h *Handler) writeShift(w http.ResponseWriter, r *http.Request, status int, st shift.Status) {
	dto, err := h.shiftDTO(r.Context(), st)
	if err != nil {
		h.fail(w, r, "Failed to compute earnings", err)
		return
	}
	writeJSON(w, r, status, dto)
}

// shiftDTO attaches live earnings. A missing rate is not an error here.
func (h *Handler) shiftDTO(ctx context.Context, st shift.Status) (ShiftDTO, error) {
	dto := toShiftDTO(st)
	se, err := h.Earnings.ForShift(ctx, st.Shift, st.WorkedHours)
	switch {
	case errors.Is(err, domain.ErrRateNotFound):
		dto.EarningsUnavailable = true
	case err != nil:
		return ShiftDTO{}, err
	default:
		e := toEarningsDTO(se.Result, h.currency)
		dto.Earnings = &e
	}
	return dto, nil
}

// =============================================================================
// TIME SHEET & PAYROLL HANDLERS
// =============================================================================

// ListTimeSheets returns entries in [from, to], by default the current week.
func (h *Handler) ListTimeSheets(w http.ResponseWriter, r *http.Request) {
	week := domain.WeekOf(h.today())
	from, to := week.Start, week.End
	var err error
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = domain.ParseDate(v); err != nil {
			writeError(w, r, http.StatusBadRequest, "Invalid from format (use YYYY-MM-DD)", err)
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = domain.ParseDate(v); err != nil {
			writeError(w, r, http.StatusBadRequest, "Invalid to format (use YYYY-MM-DD)", err)
			return
		}
	}
	if err := (domain.Period{Start: from, End: to}).Validate(); err != nil {
		h.fail(w, r, "Invalid range", err)
		return
	}

	entries, err := h.Store.ListTimeSheetEntries(r.Context(), workerParam(r), from, to)
	if err != nil {
		h.fail(w, r, "Failed to list time sheets", err)
		return
	}
	dtos := make([]TimeSheetEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	writeJSON(w, r, http.StatusOK, dtos)
}

// CreateTimeSheetEntry books hours that were not tracked with a shift.
func (h *Handler) CreateTimeSheetEntry(w http.ResponseWriter, r *http.Request) {
	worker, err := h.Store.GetWorker(r.Context(), workerParam(r))
	if err != nil {
		h.fail(w, r, "Failed to get worker", err)
		return
	}

	var req CreateTimeSheetEntryRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	day, err := domain.ParseDate(req.WorkDate)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid work_date format (use YYYY-MM-DD)", err)
		return
	}
	if req.Hours.IsNegative() {
		h.fail(w, r, "Invalid hours", domain.ErrInvalidHours)
		return
	}

	entry := domain.TimeSheetEntry{
		ID:         domain.EntryID(uuid.NewString()),
		WorkerID:   worker.ID,
		ProjectID:  domain.ProjectID(req.ProjectID),
		WorkDate:   day,
		Hours:      req.Hours,
		Note:       req.Note,
		Location:   req.Location,
		SyncStatus: domain.SyncSynced,
		CreatedAt:  h.now().UTC(),
	}
	if err := h.Store.PersistTimeSheetEntry(r.Context(), entry); err != nil {
		h.fail(w, r, "Failed to save time sheet entry", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toEntryDTO(entry))
}

// GetPayroll returns the payroll of the week containing ?date=.
func (h *Handler) GetPayroll(w http.ResponseWriter, r *http.Request) {
	_, p, ok := h.payroll(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, toPayrollDTO(p, h.currency))
}

// GetPayrollWorkbook returns the same payroll as an xlsx file.
func (h *Handler) GetPayrollWorkbook(w http.ResponseWriter, r *http.Request) {
	worker, p, ok := h.payroll(w, r)
	if !ok {
		return
	}
	data, err := report.Payroll(p, worker.Name)
	if err != nil {
		h.fail(w, r, "Failed to build workbook", err)
		return
	}
	writeFile(w, report.ContentType, fmt.Sprintf("payroll-%s-%s.xlsx", worker.ID, p.Label), data)
}

func (h *Handler) payroll(w http.ResponseWriter, r *http.Request) (domain.Worker, earnings.Payroll, bool) {
	worker, err := h.Store.GetWorker(r.Context(), workerParam(r))
	if err != nil {
		h.fail(w, r, "Failed to get worker", err)
		return domain.Worker{}, earnings.Payroll{}, false
	}
	day, err := h.dateQuery(r, "date")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return domain.Worker{}, earnings.Payroll{}, false
	}
	p, err := h.Earnings.Weekly(r.Context(), worker.OrgID, worker.ID, day)
	if err != nil {
		h.fail(w, r, "Failed to compute payroll", err)
		return domain.Worker{}, earnings.Payroll{}, false
	}
	return worker, p, true
}

// =============================================================================
// SYNC HANDLERS
// =============================================================================

// ListPending returns ended shifts that have not reached the store.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	pending := h.Tracker.Pending()
	dtos := make([]PendingDTO, len(pending))
	for i, p := range pending {
		dtos[i] = PendingDTO{
			ShiftID:   string(p.Shift.ID),
			WorkerID:  string(p.Shift.WorkerID),
			Attempts:  p.Attempts,
			LastError: p.LastError,
			LastTry:   p.LastTry.Format(time.RFC3339),
			Status:    string(p.Shift.SyncStatus),
		}
	}
	writeJSON(w, r, http.StatusOK, dtos)
}

// ForceSync retries every pending shift once. 202 means some are still
// pending.
func (h *Handler) ForceSync(w http.ResponseWriter, r *http.Request) {
	res, err := h.Tracker.ForceSync(r.Context())
	if err != nil && !errors.Is(err, domain.ErrSyncPending) {
		h.fail(w, r, "Failed to sync", err)
		return
	}

	dto := SyncResultDTO{Synced: make([]string, len(res.Synced)), Failed: make([]string, len(res.Failed))}
	for i, id := range res.Synced {
		dto.Synced[i] = string(id)
	}
	for i, id := range res.Failed {
		dto.Failed[i] = string(id)
	}
	if len(dto.Failed) > 0 {
		writeJSON(w, r, http.StatusAccepted, dto)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	render.Status(r, status)
	render.JSON(w, r, data)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, r, status, resp)
}

func writeFile(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// fail writes err with the status statusFor picks. Server errors are logged.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(message,
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
	writeError(w, r, status, message, err)
}

// statusFor maps domain errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSyncPending):
		return http.StatusAccepted
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsConflict(err):
		return http.StatusConflict
	case domain.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoExportableData), errors.Is(err, domain.ErrRateNotFound):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func workerParam(r *http.Request) domain.WorkerID {
	return domain.WorkerID(chi.URLParam(r, "id"))
}

// dateQuery parses a YYYY-MM-DD query parameter, defaulting to today.
func (h *Handler) dateQuery(r *http.Request, key string) (domain.Date, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return h.today(), nil
	}
	return domain.ParseDate(v)
}

// decodeOptional decodes a JSON body that may be absent.
func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := render.DecodeJSON(r.Body, v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func optionalDate(s string) (*domain.Date, error) {
	if s == "" {
		return nil, nil
	}
	d, err := domain.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func orNew(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}
