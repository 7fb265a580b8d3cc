/*
store.go - Repository interfaces between the compute logic and persistence

PURPOSE:
  The compute packages (rates, shift, earnings, costs, calendar) never talk
  to a database. They depend on the small interfaces below so they can be
  tested against the in-memory repository and run against SQLite in
  production.

KEY INTERFACES:
  RateStore:      pay rates per worker (rates are superseded, never deleted)
  ShiftStore:     shift checkpoints and active-shift recovery
  TimeSheetStore: hours worked, the input of payroll
  PhaseStore:     projects and their phases
  CostLineStore:  material, labor and expense lines per phase
  WorkerStore:    worker records
  Repository:     all of the above
  SyncJournal:    ended shifts that did not reach the Repository yet

NOT-FOUND CONTRACT:
  Single-item getters return an error matching ErrEntityNotFound when the
  item does not exist. List methods return an empty slice, never an error,
  for "nothing there".

IMPLEMENTATIONS:
  - domain/store/memory.go: In-memory for tests and the CLI dry runs
  - store/sqlite/sqlite.go: SQLite for the server
  - store/sqlite/journal.go: SQLite SyncJournal in its own file

SEE ALSO:
  - errors.go: ErrEntityNotFound, NotFoundError
*/
package domain

import (
	"context"
	"time"
)

// RateStore persists worker rates.
type RateStore interface {
	// ListRates returns every rate of a worker ordered by EffectiveDate.
	ListRates(ctx context.Context, workerID WorkerID) ([]WorkerRate, error)

	// SaveRate inserts or replaces a rate (replacement only closes EndDate).
	SaveRate(ctx context.Context, rate WorkerRate) error
}

// ShiftStore persists shift checkpoints.
type ShiftStore interface {
	// PersistShift writes the current state of a shift (insert or update).
	PersistShift(ctx context.Context, shift Shift) error

	// GetShift returns a shift by id.
	GetShift(ctx context.Context, id ShiftID) (Shift, error)

	// ActiveShift returns the worker's unended shift, or nil when there is none.
	ActiveShift(ctx context.Context, workerID WorkerID) (*Shift, error)
}

// TimeSheetStore persists time-sheet entries.
type TimeSheetStore interface {
	PersistTimeSheetEntry(ctx context.Context, entry TimeSheetEntry) error

	// ListTimeSheetEntries returns entries with WorkDate in [from, to],
	// ordered by WorkDate then CreatedAt.
	ListTimeSheetEntries(ctx context.Context, workerID WorkerID, from, to Date) ([]TimeSheetEntry, error)
}

// PhaseStore persists projects and phases.
type PhaseStore interface {
	SaveProject(ctx context.Context, project Project) error
	GetProject(ctx context.Context, id ProjectID) (Project, error)
	ListProjects(ctx context.Context) ([]Project, error)

	SavePhase(ctx context.Context, phase Phase) error
	GetPhase(ctx context.Context, id PhaseID) (Phase, error)
	ListPhases(ctx context.Context, projectID ProjectID) ([]Phase, error)
}

// CostLineStore persists the cost lines of a phase.
type CostLineStore interface {
	SaveMaterial(ctx context.Context, line MaterialLine) error
	SaveLabor(ctx context.Context, line LaborLine) error
	SaveExpense(ctx context.Context, line ExpenseLine) error

	ListMaterials(ctx context.Context, phaseID PhaseID) ([]MaterialLine, error)
	ListLabor(ctx context.Context, phaseID PhaseID) ([]LaborLine, error)
	ListExpenses(ctx context.Context, phaseID PhaseID) ([]ExpenseLine, error)
}

// WorkerStore persists workers.
type WorkerStore interface {
	SaveWorker(ctx context.Context, worker Worker) error
	GetWorker(ctx context.Context, id WorkerID) (Worker, error)
	ListWorkers(ctx context.Context) ([]Worker, error)
}

// Repository is everything the API needs from persistence.
type Repository interface {
	RateStore
	ShiftStore
	TimeSheetStore
	PhaseStore
	CostLineStore
	WorkerStore
}

// PendingSync is an ended shift whose shift record and time-sheet entry
// could not be persisted yet.
type PendingSync struct {
	Shift     Shift
	Entry     TimeSheetEntry
	Attempts  int
	LastError string
	LastTry   time.Time
}

// SyncJournal keeps PendingSync items across restarts. It must not share
// failure modes with the Repository it backs up, e.g. a local file next to
// a remote database.
type SyncJournal interface {
	// SavePending inserts or replaces the item of p.Shift.ID.
	SavePending(ctx context.Context, p PendingSync) error

	// DeletePending removes an item; deleting a missing item is not an error.
	DeletePending(ctx context.Context, id ShiftID) error

	// ListPending returns every item ordered by shift start.
	ListPending(ctx context.Context) ([]PendingSync, error)

	// ClearPending removes every item.
	ClearPending(ctx context.Context) error
}
