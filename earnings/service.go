package earnings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/warp/crew-engine/domain"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// RateResolver is satisfied by *rates.Resolver.
type RateResolver interface {
	Resolve(ctx context.Context, workerID domain.WorkerID, on domain.Date) (domain.WorkerRate, error)
}

// PolicyProvider returns the overtime policy of an organization.
type PolicyProvider interface {
	PolicyFor(ctx context.Context, orgID domain.OrgID) (Policy, error)
}

// StaticPolicy uses one policy for every organization.
type StaticPolicy Policy

func (s StaticPolicy) PolicyFor(context.Context, domain.OrgID) (Policy, error) {
	return Policy(s), nil
}

type Service struct {
	Rates    RateResolver
	Entries  domain.TimeSheetStore
	Policies PolicyProvider
	Logger   *slog.Logger
}

func NewService(resolver RateResolver, entries domain.TimeSheetStore, policies PolicyProvider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Rates: resolver, Entries: entries, Policies: policies, Logger: logger}
}

// =============================================================================
// LIVE EARNINGS
// =============================================================================

// ShiftEarnings is the pay of one shift so far.
type ShiftEarnings struct {
	Rate       domain.WorkerRate
	PriorHours decimal.Decimal
	Result
}

// ForShift prices the hours of a (possibly running) shift. The rate is the
// one effective on the shift's start date. Entries recorded earlier in the
// same week count as prior hours; the shift's own entry never does.
//
// When the worker has no rate the error matches domain.ErrRateNotFound.
func (s *Service) ForShift(ctx context.Context, sh domain.Shift, workedHours decimal.Decimal) (ShiftEarnings, error) {
	const op = "earnings.ForShift"

	day := domain.DateOf(sh.Start)
	rate, err := s.Rates.Resolve(ctx, sh.WorkerID, day)
	if err != nil {
		return ShiftEarnings{}, err
	}
	policy, err := s.Policies.PolicyFor(ctx, sh.OrgID)
	if err != nil {
		return ShiftEarnings{}, fmt.Errorf("%s: %w", op, err)
	}
	prior, err := s.PriorWeekHours(ctx, sh.WorkerID, day, sh.ID)
	if err != nil {
		return ShiftEarnings{}, fmt.Errorf("%s: %w", op, err)
	}
	res, err := policy.Compute(prior, workedHours, rate)
	if err != nil {
		return ShiftEarnings{}, fmt.Errorf("%s: %w", op, err)
	}
	return ShiftEarnings{Rate: rate, PriorHours: prior, Result: res}, nil
}

// PriorWeekHours sums the worker's entries from Monday of day's week up to
// and including day, skipping the entry of shift exclude.
func (s *Service) PriorWeekHours(ctx context.Context, workerID domain.WorkerID, day domain.Date, exclude domain.ShiftID) (decimal.Decimal, error) {
	week := domain.WeekOf(day)
	entries, err := s.Entries.ListTimeSheetEntries(ctx, workerID, week.Start, day)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load time sheet entries: %w", err)
	}
	total := decimal.Zero
	for _, e := range entries {
		if exclude != "" && e.ShiftID == exclude {
			continue
		}
		total = total.Add(e.Hours)
	}
	return total, nil
}

// =============================================================================
// WEEKLY PAYROLL
// =============================================================================

// PayrollLine is one time-sheet entry priced in week order. Result is nil
// when no rate covered the entry's date.
type PayrollLine struct {
	Entry  domain.TimeSheetEntry
	Rate   *domain.WorkerRate
	Result *Result
}

func (l PayrollLine) Unavailable() bool { return l.Result == nil }

type Payroll struct {
	WorkerID    domain.WorkerID
	Week        domain.Period
	Label       string
	Policy      Policy
	Lines       []PayrollLine
	Totals      Result
	Unavailable int // lines without a rate, excluded from Totals
}

// Weekly prices every entry of the ISO week containing day. Entries are
// walked in work-date order so overtime starts once the running total
// passes the threshold. A line whose date has no rate is reported as
// unavailable and its hours still count towards the threshold.
func (s *Service) Weekly(ctx context.Context, orgID domain.OrgID, workerID domain.WorkerID, day domain.Date) (Payroll, error) {
	const op = "earnings.Weekly"

	week := domain.WeekOf(day)
	policy, err := s.Policies.PolicyFor(ctx, orgID)
	if err != nil {
		return Payroll{}, fmt.Errorf("%s: %w", op, err)
	}
	entries, err := s.Entries.ListTimeSheetEntries(ctx, workerID, week.Start, week.End)
	if err != nil {
		return Payroll{}, fmt.Errorf("%s: load time sheet entries: %w", op, err)
	}

	p := Payroll{
		WorkerID: workerID,
		Week:     week,
		Label:    domain.WeekLabel(day),
		Policy:   policy,
		Totals: Result{
			RegularHours: decimal.Zero, OvertimeHours: decimal.Zero,
			RegularPay: decimal.Zero, OvertimePay: decimal.Zero, GrossPay: decimal.Zero,
		},
	}
	prior := decimal.Zero
	for _, e := range entries {
		line := PayrollLine{Entry: e}
		rate, err := s.Rates.Resolve(ctx, workerID, e.WorkDate)
		switch {
		case errors.Is(err, domain.ErrRateNotFound):
			p.Unavailable++
			s.Logger.Warn("earnings unavailable",
				slog.String("op", op),
				slog.String("worker_id", string(workerID)),
				slog.String("date", e.WorkDate.String()))
		case err != nil:
			return Payroll{}, fmt.Errorf("%s: %w", op, err)
		default:
			res, err := policy.Compute(prior, e.Hours, rate)
			if err != nil {
				return Payroll{}, fmt.Errorf("%s: entry %s: %w", op, e.ID, err)
			}
			line.Rate = &rate
			line.Result = &res
			if p.Totals.PaymentType == "" {
				p.Totals.PaymentType = res.PaymentType
			}
			p.Totals = p.Totals.Add(res)
		}
		prior = prior.Add(e.Hours)
		p.Lines = append(p.Lines, line)
	}
	return p, nil
}
