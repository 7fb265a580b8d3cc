/*
Package domain holds the core types shared by every crew-engine package.

PURPOSE:
  Workers, rates, shifts, time-sheet entries, projects, phases and cost lines
  live here together with the repository interfaces the compute packages
  depend on. Nothing in this package talks to a database or the network.

KEY CONCEPTS IN THIS FILE (types.go):
  - Identifiers: type-safe ids (WorkerID, PhaseID, ...) so they cannot be mixed
  - WorkerRate: hourly or salaried pay rate valid over a date range
  - Shift: the persisted form of a work session (state machine lives in shift/)
  - TimeSheetEntry: hours worked on a date, produced by a shift or entered by hand
  - Material/Labor/Expense lines: cost items recorded against a phase

DESIGN PRINCIPLES:
  1. Precision: money and hours are decimal.Decimal, never float64
  2. Derived totals: line totals are computed from their components, never stored
  3. Explicit context: worker and org ids are always passed in, never looked up

SEE ALSO:
  - time.go: Date and week arithmetic
  - errors.go: Sentinel and structured errors
  - store.go: Repository interfaces
*/
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type OrgID string
type WorkerID string
type ProjectID string
type PhaseID string
type ShiftID string
type EntryID string
type RateID string

// =============================================================================
// WORKERS & RATES
// =============================================================================

type Worker struct {
	ID        WorkerID
	OrgID     OrgID
	Name      string
	Email     string
	CreatedAt time.Time
}

type PaymentType string

const (
	PaymentHourly PaymentType = "hourly"
	PaymentSalary PaymentType = "salary"
)

func (p PaymentType) Valid() bool { return p == PaymentHourly || p == PaymentSalary }

// WorkerRate is a pay rate valid from EffectiveDate until EndDate (inclusive).
// A nil EndDate means the rate is open-ended. Rates are never deleted: a new
// row with a later EffectiveDate supersedes the old one.
type WorkerRate struct {
	ID            RateID
	WorkerID      WorkerID
	PaymentType   PaymentType
	HourlyRate    decimal.Decimal // used when PaymentType == PaymentHourly
	MonthlySalary decimal.Decimal // used when PaymentType == PaymentSalary
	EffectiveDate Date
	EndDate       *Date
	CreatedAt     time.Time
}

// Covers reports whether the rate applies on the given date.
func (r WorkerRate) Covers(on Date) bool {
	if r.EffectiveDate.After(on) {
		return false
	}
	return r.EndDate == nil || r.EndDate.AfterOrEqual(on)
}

// Span returns the rate's validity range. Open-ended rates end at MaxDate.
func (r WorkerRate) Span() Period {
	end := MaxDate
	if r.EndDate != nil {
		end = *r.EndDate
	}
	return Period{Start: r.EffectiveDate, End: end}
}

// =============================================================================
// SHIFTS & TIME SHEETS
// =============================================================================

type ShiftType string

const (
	ShiftRegular  ShiftType = "regular"
	ShiftOvertime ShiftType = "overtime"
	ShiftNight    ShiftType = "night"
	ShiftWeekend  ShiftType = "weekend"
)

type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

// Break is one pause inside a shift. End is nil while the break is running.
type Break struct {
	Start time.Time
	End   *time.Time
}

// Shift is the stored form of a work session. It carries no behaviour:
// the only way to move a shift between states is shift.Accumulator.
type Shift struct {
	ID         ShiftID
	OrgID      OrgID
	WorkerID   WorkerID
	ProjectID  ProjectID // empty when the shift is not booked to a project
	Type       ShiftType
	Start      time.Time
	End        *time.Time
	Breaks     []Break
	SyncStatus SyncStatus
	UpdatedAt  time.Time
}

// IsActive reports whether the shift has not been ended yet.
func (s Shift) IsActive() bool { return s.End == nil }

type TimeSheetEntry struct {
	ID         EntryID
	WorkerID   WorkerID
	ProjectID  ProjectID
	ShiftID    ShiftID // empty for manual entries
	WorkDate   Date
	Hours      decimal.Decimal
	Note       string
	Location   string
	SyncStatus SyncStatus
	CreatedAt  time.Time
}

// =============================================================================
// PROJECTS & PHASES
// =============================================================================

type Project struct {
	ID        ProjectID
	OrgID     OrgID
	Name      string
	CreatedAt time.Time
}

type PhaseStatus string

const (
	PhaseNotStarted PhaseStatus = "not_started"
	PhaseInProgress PhaseStatus = "in_progress"
	PhaseCompleted  PhaseStatus = "completed"
	PhaseBlocked    PhaseStatus = "blocked"
)

func (s PhaseStatus) Valid() bool {
	switch s {
	case PhaseNotStarted, PhaseInProgress, PhaseCompleted, PhaseBlocked:
		return true
	}
	return false
}

// Phase is a named subdivision of a project. Dates are optional: phases
// without both dates cannot be placed on a calendar.
type Phase struct {
	ID        PhaseID
	ProjectID ProjectID
	Name      string
	Status    PhaseStatus
	StartDate *Date
	EndDate   *Date
	Progress  int              // percent, 0-100
	Budget    *decimal.Decimal // nil = no budget set
}

// IsDated reports whether both start and end dates are set.
func (p Phase) IsDated() bool { return p.StartDate != nil && p.EndDate != nil }

// =============================================================================
// COST LINES
// =============================================================================

type MaterialStatus string

const (
	MaterialPlanned   MaterialStatus = "planned"
	MaterialOrdered   MaterialStatus = "ordered"
	MaterialDelivered MaterialStatus = "delivered"
	MaterialUsed      MaterialStatus = "used"
)

type MaterialLine struct {
	ID       string
	PhaseID  PhaseID
	Name     string
	Unit     string
	Quantity decimal.Decimal
	UnitCost decimal.Decimal
	Status   MaterialStatus
}

// TotalCost is always quantity x unit cost.
func (m MaterialLine) TotalCost() decimal.Decimal { return m.Quantity.Mul(m.UnitCost) }

type PricingType string

const (
	PricingHourly PricingType = "hourly"
	PricingFixed  PricingType = "fixed"
)

type LaborLine struct {
	ID           string
	PhaseID      PhaseID
	WorkerID     WorkerID
	WorkDate     Date
	PricingType  PricingType
	HoursPlanned decimal.Decimal
	HoursActual  decimal.Decimal
	HourlyRate   decimal.Decimal
	FixedPrice   decimal.Decimal
}

// ActualCost is hours_actual x rate for hourly work and the fixed price otherwise.
func (l LaborLine) ActualCost() decimal.Decimal {
	if l.PricingType == PricingFixed {
		return l.FixedPrice
	}
	return l.HoursActual.Mul(l.HourlyRate)
}

// PlannedCost mirrors ActualCost using the planned hours.
func (l LaborLine) PlannedCost() decimal.Decimal {
	if l.PricingType == PricingFixed {
		return l.FixedPrice
	}
	return l.HoursPlanned.Mul(l.HourlyRate)
}

type ExpenseStatus string

const (
	ExpensePending  ExpenseStatus = "pending"
	ExpenseApproved ExpenseStatus = "approved"
	ExpenseRejected ExpenseStatus = "rejected"
	ExpensePaid     ExpenseStatus = "paid"
)

type ExpenseLine struct {
	ID          string
	PhaseID     PhaseID
	Description string
	Amount      decimal.Decimal
	Date        Date
	Status      ExpenseStatus
}
