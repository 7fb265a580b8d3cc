/*
tracker.go - Per-worker shift sessions

PURPOSE:
  Holds the running shift of every worker the server is serving, drives the
  Accumulator, and turns a finished shift into a time-sheet entry.

PERSISTENCE:
  - Every transition checkpoints the shift to the ShiftStore. A failed
    checkpoint is only logged: the in-memory session stays authoritative.
  - Ending a shift persists the shift and its TimeSheetEntry. When that
    fails, both are kept in the pending queue with sync status "pending" and
    the caller gets the ended result together with a *SyncPendingError.
  - ForceSync retries the queue on explicit request only. A failed retry
    marks the item "failed"; it stays in the queue and can be retried again.
    There is no automatic retry, backoff or retry limit.
  - With WithJournal the queue is mirrored to a domain.SyncJournal and
    reloaded by NewTracker, so a restart keeps the real end time and hours
    of a shift instead of resuming its stale active checkpoint.

CURRENT SHIFT:
  When a worker has no session in memory (e.g. after a restart), the last
  checkpoint from ActiveShift is restored through Restore().

SEE ALSO:
  - accumulator.go: The state machine
  - earnings/service.go: Live earnings for a running shift
*/
package shift

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/crew-engine/domain"
)

// Status is a read-only view of a shift at a point in time.
type Status struct {
	Shift       domain.Shift
	State       State
	AsOf        time.Time
	Worked      time.Duration
	WorkedHours decimal.Decimal
	BreakTime   time.Duration
}

// Completed is returned by EndShift.
type Completed struct {
	Status
	Entry domain.TimeSheetEntry
}

// Pending is a finished shift that has not reached the store yet.
type Pending = domain.PendingSync

// SyncReport summarizes a ForceSync run.
type SyncReport struct {
	Synced []domain.ShiftID
	Failed []domain.ShiftID
}

// StartRequest carries the explicit context of a new shift.
type StartRequest struct {
	OrgID     domain.OrgID
	WorkerID  domain.WorkerID
	ProjectID domain.ProjectID
	Type      domain.ShiftType
}

type session struct {
	shift domain.Shift
	acc   *Accumulator
}

type Tracker struct {
	mu      sync.Mutex
	shifts  domain.ShiftStore
	entries domain.TimeSheetStore
	journal domain.SyncJournal
	logger  *slog.Logger
	now     func() time.Time
	active  map[domain.WorkerID]*session
	pending map[domain.ShiftID]*Pending
}

type Option func(*Tracker)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// WithJournal keeps the pending queue in j across restarts.
func WithJournal(j domain.SyncJournal) Option {
	return func(t *Tracker) { t.journal = j }
}

func NewTracker(shifts domain.ShiftStore, entries domain.TimeSheetStore, opts ...Option) *Tracker {
	t := &Tracker{
		shifts:  shifts,
		entries: entries,
		logger:  slog.Default(),
		now:     time.Now,
		active:  make(map[domain.WorkerID]*session),
		pending: make(map[domain.ShiftID]*Pending),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.loadJournal(context.Background())
	return t
}

// =============================================================================
// TRANSITIONS
// =============================================================================

func (t *Tracker) StartShift(ctx context.Context, req StartRequest) (Status, error) {
	const op = "shift.StartShift"

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.active[req.WorkerID]; ok {
		return Status{}, &TransitionError{Op: "start", State: StateActive, Err: domain.ErrAlreadyActive}
	}
	stored, err := t.storedActive(ctx, req.WorkerID)
	if err != nil {
		return Status{}, fmt.Errorf("%s: %w", op, err)
	}
	if stored != nil {
		return Status{}, &TransitionError{Op: "start", State: StateActive, Err: domain.ErrAlreadyActive}
	}

	shiftType := req.Type
	if shiftType == "" {
		shiftType = domain.ShiftRegular
	}
	now := t.now()
	acc := New()
	if err := acc.Start(now); err != nil {
		return Status{}, err
	}
	s := &session{
		shift: domain.Shift{
			ID:         domain.ShiftID(uuid.NewString()),
			OrgID:      req.OrgID,
			WorkerID:   req.WorkerID,
			ProjectID:  req.ProjectID,
			Type:       shiftType,
			SyncStatus: domain.SyncPending,
		},
		acc: acc,
	}
	t.active[req.WorkerID] = s
	t.checkpoint(ctx, s, now)

	t.logger.Info("shift started",
		slog.String("worker_id", string(req.WorkerID)),
		slog.String("shift_id", string(s.shift.ID)))
	return s.status(now), nil
}

func (t *Tracker) StartBreak(ctx context.Context, workerID domain.WorkerID) (Status, error) {
	return t.transition(ctx, workerID, "start break", (*Accumulator).StartBreak)
}

func (t *Tracker) EndBreak(ctx context.Context, workerID domain.WorkerID) (Status, error) {
	return t.transition(ctx, workerID, "end break", (*Accumulator).EndBreak)
}

func (t *Tracker) transition(ctx context.Context, workerID domain.WorkerID, op string, step func(*Accumulator, time.Time) error) (Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.session(ctx, workerID, op)
	if err != nil {
		return Status{}, err
	}
	now := t.now()
	if err := step(s.acc, now); err != nil {
		return Status{}, err
	}
	t.checkpoint(ctx, s, now)
	return s.status(now), nil
}

// EndShift stops the worker's shift and records a time-sheet entry for it.
// A non-nil Completed is returned even when err is a *SyncPendingError.
func (t *Tracker) EndShift(ctx context.Context, workerID domain.WorkerID, note, location string) (*Completed, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.session(ctx, workerID, "end")
	if err != nil {
		return nil, err
	}
	now := t.now()
	if err := s.acc.End(now); err != nil {
		return nil, err
	}
	delete(t.active, workerID)

	s.shift = s.acc.Snapshot(s.shift)
	s.shift.UpdatedAt = now
	entry := domain.TimeSheetEntry{
		ID:         domain.EntryID(uuid.NewString()),
		WorkerID:   s.shift.WorkerID,
		ProjectID:  s.shift.ProjectID,
		ShiftID:    s.shift.ID,
		WorkDate:   domain.DateOf(s.shift.Start),
		Hours:      s.acc.WorkedHours(now),
		Note:       note,
		Location:   location,
		SyncStatus: domain.SyncSynced,
		CreatedAt:  now,
	}
	s.shift.SyncStatus = domain.SyncSynced

	done := &Completed{Status: s.status(now), Entry: entry}
	if err := t.persist(ctx, s.shift, entry); err != nil {
		p := &Pending{Shift: s.shift, Entry: entry, Attempts: 1, LastError: err.Error(), LastTry: now}
		p.Shift.SyncStatus = domain.SyncPending
		p.Entry.SyncStatus = domain.SyncPending
		t.pending[s.shift.ID] = p
		t.journalSave(ctx, p)

		done.Shift.SyncStatus = domain.SyncPending
		done.Entry.SyncStatus = domain.SyncPending
		t.logger.Warn("shift ended locally, sync pending",
			slog.String("shift_id", string(s.shift.ID)),
			slog.Any("error", err))
		return done, &domain.SyncPendingError{ShiftID: s.shift.ID, Attempts: 1, At: now, Cause: err}
	}

	t.logger.Info("shift ended",
		slog.String("worker_id", string(workerID)),
		slog.String("shift_id", string(s.shift.ID)),
		slog.String("hours", entry.Hours.StringFixed(2)))
	return done, nil
}

// Current returns the running shift of a worker.
func (t *Tracker) Current(ctx context.Context, workerID domain.WorkerID) (Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.session(ctx, workerID, "current")
	if err != nil {
		return Status{}, err
	}
	return s.status(t.now()), nil
}

// =============================================================================
// SYNC
// =============================================================================

// Pending lists finished shifts waiting for a force sync, oldest first.
func (t *Tracker) Pending() []Pending {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Pending, 0, len(t.pending))
	for _, p := range t.pending {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Shift.Start.Before(out[j].Shift.Start) })
	return out
}

// ForceSync retries every pending shift once. The returned error joins one
// *SyncPendingError per shift that still could not be stored.
func (t *Tracker) ForceSync(ctx context.Context) (SyncReport, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var (
		report SyncReport
		errs   []error
	)
	ids := make([]domain.ShiftID, 0, len(t.pending))
	for id := range t.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		p := t.pending[id]
		now := t.now()

		shift, entry := p.Shift, p.Entry
		shift.SyncStatus, entry.SyncStatus = domain.SyncSynced, domain.SyncSynced
		shift.UpdatedAt = now
		err := t.persist(ctx, shift, entry)
		p.Attempts++
		p.LastTry = now
		if err != nil {
			p.LastError = err.Error()
			p.Shift.SyncStatus, p.Entry.SyncStatus = domain.SyncFailed, domain.SyncFailed
			report.Failed = append(report.Failed, id)
			errs = append(errs, &domain.SyncPendingError{ShiftID: id, Attempts: p.Attempts, At: now, Cause: err})
			t.logger.Warn("force sync failed",
				slog.String("shift_id", string(id)),
				slog.Int("attempts", p.Attempts),
				slog.Any("error", err))
			t.journalSave(ctx, p)
			continue
		}
		delete(t.pending, id)
		if t.journal != nil {
			if err := t.journal.DeletePending(ctx, id); err != nil {
				t.logger.Warn("pending journal delete failed",
					slog.String("shift_id", string(id)),
					slog.Any("error", err))
			}
		}
		report.Synced = append(report.Synced, id)
	}

	t.logger.Info("force sync finished",
		slog.Int("synced", len(report.Synced)),
		slog.Int("failed", len(report.Failed)))
	return report, errors.Join(errs...)
}

// Reset forgets every session and pending shift, journaled ones included.
func (t *Tracker) Reset(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = make(map[domain.WorkerID]*session)
	t.pending = make(map[domain.ShiftID]*Pending)
	if t.journal != nil {
		if err := t.journal.ClearPending(ctx); err != nil {
			return fmt.Errorf("shift.Reset: clear pending journal: %w", err)
		}
	}
	return nil
}

// =============================================================================
// INTERNALS (callers hold t.mu)
// =============================================================================

func (t *Tracker) session(ctx context.Context, workerID domain.WorkerID, op string) (*session, error) {
	if s, ok := t.active[workerID]; ok {
		return s, nil
	}
	stored, err := t.storedActive(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, &TransitionError{Op: op, State: StateNotStarted, Err: domain.ErrNotActive}
	}
	acc, err := Restore(*stored)
	if err != nil {
		return nil, err
	}
	s := &session{shift: *stored, acc: acc}
	t.active[workerID] = s
	return s, nil
}

// storedActive returns the last active checkpoint of a worker. A checkpoint
// of a shift that already ended locally and waits in the pending queue is
// stale and ignored.
func (t *Tracker) storedActive(ctx context.Context, workerID domain.WorkerID) (*domain.Shift, error) {
	stored, err := t.shifts.ActiveShift(ctx, workerID)
	if err != nil {
		return nil, fmt.Errorf("load active shift for worker %s: %w", workerID, err)
	}
	if stored != nil {
		if _, ended := t.pending[stored.ID]; ended {
			return nil, nil
		}
	}
	return stored, nil
}

// loadJournal restores the pending queue of a previous run. It runs before
// the tracker is shared, so it takes no lock.
func (t *Tracker) loadJournal(ctx context.Context) {
	if t.journal == nil {
		return
	}
	items, err := t.journal.ListPending(ctx)
	if err != nil {
		t.logger.Error("load pending journal failed", slog.Any("error", err))
		return
	}
	for i := range items {
		p := items[i]
		t.pending[p.Shift.ID] = &p
	}
	if len(items) > 0 {
		t.logger.Info("pending shifts restored", slog.Int("pending", len(items)))
	}
}

// journalSave is best effort: the in-memory queue stays authoritative while
// the process runs.
func (t *Tracker) journalSave(ctx context.Context, p *Pending) {
	if t.journal == nil {
		return
	}
	if err := t.journal.SavePending(ctx, *p); err != nil {
		t.logger.Error("pending journal write failed",
			slog.String("shift_id", string(p.Shift.ID)),
			slog.Any("error", err))
	}
}

// checkpoint is best effort: the session in memory stays authoritative.
func (t *Tracker) checkpoint(ctx context.Context, s *session, now time.Time) {
	snap := s.acc.Snapshot(s.shift)
	snap.UpdatedAt = now
	if err := t.shifts.PersistShift(ctx, snap); err != nil {
		t.logger.Warn("shift checkpoint failed",
			slog.String("shift_id", string(snap.ID)),
			slog.Any("error", err))
	}
}

// persist writes the entry first so a stored ended shift always has its entry.
func (t *Tracker) persist(ctx context.Context, s domain.Shift, e domain.TimeSheetEntry) error {
	if err := t.entries.PersistTimeSheetEntry(ctx, e); err != nil {
		return fmt.Errorf("persist time sheet entry: %w", err)
	}
	if err := t.shifts.PersistShift(ctx, s); err != nil {
		return fmt.Errorf("persist shift: %w", err)
	}
	return nil
}

func (s *session) status(now time.Time) Status {
	return Status{
		Shift:       s.acc.Snapshot(s.shift),
		State:       s.acc.State(),
		AsOf:        now,
		Worked:      s.acc.Worked(now),
		WorkedHours: s.acc.WorkedHours(now),
		BreakTime:   s.acc.BreakTime(now),
	}
}
