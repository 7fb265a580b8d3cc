/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

NUMBERS:
  Money and hours are decimal.Decimal, which marshals as a JSON string
  ("312.5"). Optional amounts (budget, variance) are pointers and marshal
  as null when absent, never as 0.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/crew-engine/costs"
	"github.com/warp/crew-engine/domain"
	"github.com/warp/crew-engine/earnings"
	"github.com/warp/crew-engine/shift"
)

// =============================================================================
// WORKERS & RATES
// =============================================================================

type WorkerDTO struct {
	ID        string `json:"id"`
	OrgID     string `json:"org_id,omitempty"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type CreateWorkerRequest struct {
	ID    string `json:"id"`
	OrgID string `json:"org_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type RateDTO struct {
	ID            string          `json:"id"`
	WorkerID      string          `json:"worker_id"`
	PaymentType   string          `json:"payment_type"`
	HourlyRate    decimal.Decimal `json:"hourly_rate"`
	MonthlySalary decimal.Decimal `json:"monthly_salary"`
	EffectiveDate string          `json:"effective_date"`
	EndDate       *string         `json:"end_date"`
}

type CreateRateRequest struct {
	ID            string          `json:"id"`
	PaymentType   string          `json:"payment_type"`
	HourlyRate    decimal.Decimal `json:"hourly_rate"`
	MonthlySalary decimal.Decimal `json:"monthly_salary"`
	EffectiveDate string          `json:"effective_date"`
	EndDate       string          `json:"end_date,omitempty"`
}

// CreateRateResponse also reports the rate that was closed to make room.
type CreateRateResponse struct {
	Rate       RateDTO  `json:"rate"`
	Superseded *RateDTO `json:"superseded,omitempty"`
}

// =============================================================================
// SHIFTS & TIME SHEETS
// =============================================================================

type StartShiftRequest struct {
	OrgID     string `json:"org_id"`
	ProjectID string `json:"project_id"`
	Type      string `json:"type"`
}

type EndShiftRequest struct {
	Note     string `json:"note"`
	Location string `json:"location"`
}

type BreakDTO struct {
	Start string  `json:"start"`
	End   *string `json:"end"`
}

// ShiftDTO is the live view of a shift. Earnings is nil and
// EarningsUnavailable true when no rate covers the shift date.
type ShiftDTO struct {
	ID                  string          `json:"id,omitempty"`
	WorkerID            string          `json:"worker_id"`
	ProjectID           string          `json:"project_id,omitempty"`
	Type                string          `json:"type,omitempty"`
	State               string          `json:"state"`
	Start               string          `json:"start,omitempty"`
	End                 *string         `json:"end,omitempty"`
	Breaks              []BreakDTO      `json:"breaks"`
	AsOf                string          `json:"as_of,omitempty"`
	WorkedHours         decimal.Decimal `json:"worked_hours"`
	BreakMinutes        int64           `json:"break_minutes"`
	SyncStatus          string          `json:"sync_status,omitempty"`
	Earnings            *EarningsDTO    `json:"earnings,omitempty"`
	EarningsUnavailable bool            `json:"earnings_unavailable,omitempty"`
}

// EndShiftResponse carries the ended shift and its time-sheet entry.
// SyncPending is true when the data is only held by the server.
type EndShiftResponse struct {
	Shift       ShiftDTO          `json:"shift"`
	Entry       TimeSheetEntryDTO `json:"entry"`
	SyncPending bool              `json:"sync_pending"`
}

type TimeSheetEntryDTO struct {
	ID         string          `json:"id"`
	WorkerID   string          `json:"worker_id"`
	ProjectID  string          `json:"project_id,omitempty"`
	ShiftID    string          `json:"shift_id,omitempty"`
	WorkDate   string          `json:"work_date"`
	Hours      decimal.Decimal `json:"hours"`
	Note       string          `json:"note,omitempty"`
	Location   string          `json:"location,omitempty"`
	SyncStatus string          `json:"sync_status"`
}

type CreateTimeSheetEntryRequest struct {
	ProjectID string          `json:"project_id"`
	WorkDate  string          `json:"work_date"`
	Hours     decimal.Decimal `json:"hours"`
	Note      string          `json:"note"`
	Location  string          `json:"location"`
}

type PendingDTO struct {
	ShiftID   string `json:"shift_id"`
	WorkerID  string `json:"worker_id"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error"`
	LastTry   string `json:"last_try"`
	Status    string `json:"status"`
}

type SyncResultDTO struct {
	Synced []string `json:"synced"`
	Failed []string `json:"failed"`
}

// =============================================================================
// EARNINGS
// =============================================================================

type EarningsDTO struct {
	PaymentType   string          `json:"payment_type"`
	RegularHours  decimal.Decimal `json:"regular_hours"`
	OvertimeHours decimal.Decimal `json:"overtime_hours"`
	RegularPay    decimal.Decimal `json:"regular_pay"`
	OvertimePay   decimal.Decimal `json:"overtime_pay"`
	GrossPay      decimal.Decimal `json:"gross_pay"`
	IsOvertime    bool            `json:"is_overtime"`
	Display       string          `json:"display"`
}

type PayrollLineDTO struct {
	Entry       TimeSheetEntryDTO `json:"entry"`
	RateID      string            `json:"rate_id,omitempty"`
	Earnings    *EarningsDTO      `json:"earnings"`
	Unavailable bool              `json:"earnings_unavailable,omitempty"`
}

type PayrollDTO struct {
	WorkerID           string           `json:"worker_id"`
	Week               string           `json:"week"`
	From               string           `json:"from"`
	To                 string           `json:"to"`
	WeeklyThreshold    decimal.Decimal  `json:"weekly_threshold_hours"`
	OvertimeMultiplier decimal.Decimal  `json:"overtime_multiplier"`
	Lines              []PayrollLineDTO `json:"lines"`
	Totals             EarningsDTO      `json:"totals"`
	Unavailable        int              `json:"unavailable_lines"`
}

// =============================================================================
// PROJECTS, PHASES & COSTS
// =============================================================================

type ProjectDTO struct {
	ID    string `json:"id"`
	OrgID string `json:"org_id,omitempty"`
	Name  string `json:"name"`
}

type CreateProjectRequest struct {
	ID    string `json:"id"`
	OrgID string `json:"org_id"`
	Name  string `json:"name"`
}

type PhaseDTO struct {
	ID        string           `json:"id"`
	ProjectID string           `json:"project_id"`
	Name      string           `json:"name"`
	Status    string           `json:"status"`
	StartDate *string          `json:"start_date"`
	EndDate   *string          `json:"end_date"`
	Progress  int              `json:"progress"`
	Budget    *decimal.Decimal `json:"budget"`
}

type CreatePhaseRequest struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Status    string           `json:"status"`
	StartDate string           `json:"start_date"`
	EndDate   string           `json:"end_date"`
	Progress  int              `json:"progress"`
	Budget    *decimal.Decimal `json:"budget"`
}

type PhaseCostDTO struct {
	PhaseID          string           `json:"phase_id"`
	Budget           *decimal.Decimal `json:"budget"`
	MaterialCost     decimal.Decimal  `json:"material_cost"`
	LaborCostPlanned decimal.Decimal  `json:"labor_cost_planned"`
	LaborCostActual  decimal.Decimal  `json:"labor_cost_actual"`
	ExpenseCost      decimal.Decimal  `json:"expense_cost"`
	TotalCommitted   decimal.Decimal  `json:"total_committed"`
	TotalPlanned     decimal.Decimal  `json:"total_planned"`
	Variance         *decimal.Decimal `json:"variance"`
	LaborHours       decimal.Decimal  `json:"labor_hours"`
	OverBudget       bool             `json:"over_budget"`
}

type ProjectCostDTO struct {
	ProjectID      string           `json:"project_id"`
	Phases         []PhaseCostDTO   `json:"phases"`
	Budget         *decimal.Decimal `json:"budget"`
	TotalCommitted decimal.Decimal  `json:"total_committed"`
	TotalPlanned   decimal.Decimal  `json:"total_planned"`
	Variance       *decimal.Decimal `json:"variance"`
}

type CreateMaterialRequest struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Unit     string          `json:"unit"`
	Quantity decimal.Decimal `json:"quantity"`
	UnitCost decimal.Decimal `json:"unit_cost"`
	Status   string          `json:"status"`
}

type CreateLaborRequest struct {
	ID           string          `json:"id"`
	WorkerID     string          `json:"worker_id"`
	WorkDate     string          `json:"work_date"`
	PricingType  string          `json:"pricing_type"`
	HoursPlanned decimal.Decimal `json:"hours_planned"`
	HoursActual  decimal.Decimal `json:"hours_actual"`
	HourlyRate   decimal.Decimal `json:"hourly_rate"`
	FixedPrice   decimal.Decimal `json:"fixed_price"`
}

type CreateExpenseRequest struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
	Status      string          `json:"status"`
}

// =============================================================================
// SCENARIOS & ERRORS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toWorkerDTO(w domain.Worker) WorkerDTO {
	dto := WorkerDTO{ID: string(w.ID), OrgID: string(w.OrgID), Name: w.Name, Email: w.Email}
	if !w.CreatedAt.IsZero() {
		dto.CreatedAt = w.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toRateDTO(r domain.WorkerRate) RateDTO {
	return RateDTO{
		ID:            string(r.ID),
		WorkerID:      string(r.WorkerID),
		PaymentType:   string(r.PaymentType),
		HourlyRate:    r.HourlyRate,
		MonthlySalary: r.MonthlySalary,
		EffectiveDate: r.EffectiveDate.String(),
		EndDate:       datePtr(r.EndDate),
	}
}

func toShiftDTO(st shift.Status) ShiftDTO {
	s := st.Shift
	dto := ShiftDTO{
		ID:           string(s.ID),
		WorkerID:     string(s.WorkerID),
		ProjectID:    string(s.ProjectID),
		Type:         string(s.Type),
		State:        string(st.State),
		Start:        s.Start.Format(time.RFC3339),
		Breaks:       make([]BreakDTO, len(s.Breaks)),
		AsOf:         st.AsOf.Format(time.RFC3339),
		WorkedHours:  st.WorkedHours,
		BreakMinutes: int64(st.BreakTime / time.Minute),
		SyncStatus:   string(s.SyncStatus),
	}
	if s.End != nil {
		end := s.End.Format(time.RFC3339)
		dto.End = &end
	}
	for i, b := range s.Breaks {
		dto.Breaks[i].Start = b.Start.Format(time.RFC3339)
		if b.End != nil {
			end := b.End.Format(time.RFC3339)
			dto.Breaks[i].End = &end
		}
	}
	return dto
}

func toEntryDTO(e domain.TimeSheetEntry) TimeSheetEntryDTO {
	return TimeSheetEntryDTO{
		ID:         string(e.ID),
		WorkerID:   string(e.WorkerID),
		ProjectID:  string(e.ProjectID),
		ShiftID:    string(e.ShiftID),
		WorkDate:   e.WorkDate.String(),
		Hours:      e.Hours,
		Note:       e.Note,
		Location:   e.Location,
		SyncStatus: string(e.SyncStatus),
	}
}

func toEarningsDTO(r earnings.Result, symbol string) EarningsDTO {
	return EarningsDTO{
		PaymentType:   string(r.PaymentType),
		RegularHours:  r.RegularHours,
		OvertimeHours: r.OvertimeHours,
		RegularPay:    r.RegularPay,
		OvertimePay:   r.OvertimePay,
		GrossPay:      r.GrossPay,
		IsOvertime:    r.IsOvertime,
		Display:       domain.FormatMoney(r.GrossPay, symbol),
	}
}

func toPayrollDTO(p earnings.Payroll, symbol string) PayrollDTO {
	dto := PayrollDTO{
		WorkerID:           string(p.WorkerID),
		Week:               p.Label,
		From:               p.Week.Start.String(),
		To:                 p.Week.End.String(),
		WeeklyThreshold:    p.Policy.WeeklyThreshold,
		OvertimeMultiplier: p.Policy.OvertimeMultiplier,
		Lines:              make([]PayrollLineDTO, len(p.Lines)),
		Totals:             toEarningsDTO(p.Totals, symbol),
		Unavailable:        p.Unavailable,
	}
	for i, l := range p.Lines {
		line := PayrollLineDTO{Entry: toEntryDTO(l.Entry), Unavailable: l.Unavailable()}
		if l.Rate != nil {
			line.RateID = string(l.Rate.ID)
		}
		if l.Result != nil {
			e := toEarningsDTO(*l.Result, symbol)
			line.Earnings = &e
		}
		dto.Lines[i] = line
	}
	return dto
}

func toProjectDTO(p domain.Project) ProjectDTO {
	return ProjectDTO{ID: string(p.ID), OrgID: string(p.OrgID), Name: p.Name}
}

func toPhaseDTO(p domain.Phase) PhaseDTO {
	return PhaseDTO{
		ID:        string(p.ID),
		ProjectID: string(p.ProjectID),
		Name:      p.Name,
		Status:    string(p.Status),
		StartDate: datePtr(p.StartDate),
		EndDate:   datePtr(p.EndDate),
		Progress:  p.Progress,
		Budget:    p.Budget,
	}
}

func toPhaseCostDTO(s costs.PhaseCostSummary) PhaseCostDTO {
	return PhaseCostDTO{
		PhaseID:          string(s.PhaseID),
		Budget:           s.Budget,
		MaterialCost:     s.MaterialCost,
		LaborCostPlanned: s.LaborCostPlanned,
		LaborCostActual:  s.LaborCostActual,
		ExpenseCost:      s.ExpenseCost,
		TotalCommitted:   s.TotalCommitted,
		TotalPlanned:     s.TotalPlanned,
		Variance:         s.Variance,
		LaborHours:       s.LaborHours,
		OverBudget:       s.OverBudget(),
	}
}

func toProjectCostDTO(p costs.ProjectCostSummary) ProjectCostDTO {
	dto := ProjectCostDTO{
		ProjectID:      string(p.ProjectID),
		Phases:         make([]PhaseCostDTO, len(p.Phases)),
		Budget:         p.Budget,
		TotalCommitted: p.TotalCommitted,
		TotalPlanned:   p.TotalPlanned,
		Variance:       p.Variance,
	}
	for i, s := range p.Phases {
		dto.Phases[i] = toPhaseCostDTO(s)
	}
	return dto
}

func datePtr(d *domain.Date) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
