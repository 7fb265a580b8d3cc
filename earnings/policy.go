/*
policy.go - Regular / overtime split and gross pay

PURPOSE:
  Turns worked hours and an effective rate into regular pay, overtime pay
  and gross pay.

KEY CONCEPTS:
  - Weekly threshold: hours in the same ISO week (Monday start) up to the
    threshold are regular, the rest is overtime. The default is 40.
  - Multiplier: overtime hours are paid rate x multiplier. Default 1.5.
  - Prior hours: hours already worked that week before this shift. They
    use up regular capacity but are not paid again here.

HOURLY:
  regularCapacity = max(0, threshold - prior)
  regular         = min(hours, regularCapacity)
  overtime        = hours - regular
  gross           = regular x rate + overtime x rate x multiplier

SALARY:
  The weekly portion is monthly / 4 and there is no overtime. The portion is
  earned over the threshold hours:
      paid  = min(hours, regularCapacity)
      gross = (monthly / 4) x paid / threshold
  so a full week earns exactly the weekly portion and zero hours earn zero.

PRECISION:
  Nothing is rounded here. domain.FormatMoney rounds for display.
*/
package earnings

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/crew-engine/domain"
)

// WeeksPerMonth converts a monthly salary into its weekly portion.
var WeeksPerMonth = decimal.NewFromInt(4)

type Policy struct {
	WeeklyThreshold    decimal.Decimal
	OvertimeMultiplier decimal.Decimal
}

// DefaultPolicy is 40 hours per week, overtime at 1.5x.
func DefaultPolicy() Policy {
	return Policy{
		WeeklyThreshold:    decimal.NewFromInt(40),
		OvertimeMultiplier: decimal.RequireFromString("1.5"),
	}
}

func (p Policy) Validate() error {
	if !p.WeeklyThreshold.IsPositive() {
		return fmt.Errorf("overtime policy: weekly threshold must be positive, got %s", p.WeeklyThreshold)
	}
	if p.OvertimeMultiplier.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("overtime policy: multiplier must be at least 1, got %s", p.OvertimeMultiplier)
	}
	return nil
}

// Result is the pay for one block of hours.
type Result struct {
	PaymentType   domain.PaymentType
	RegularHours  decimal.Decimal
	OvertimeHours decimal.Decimal
	RegularPay    decimal.Decimal
	OvertimePay   decimal.Decimal
	GrossPay      decimal.Decimal
	IsOvertime    bool
}

// Add sums two results. The payment type of the receiver wins.
func (r Result) Add(o Result) Result {
	r.RegularHours = r.RegularHours.Add(o.RegularHours)
	r.OvertimeHours = r.OvertimeHours.Add(o.OvertimeHours)
	r.RegularPay = r.RegularPay.Add(o.RegularPay)
	r.OvertimePay = r.OvertimePay.Add(o.OvertimePay)
	r.GrossPay = r.GrossPay.Add(o.GrossPay)
	r.IsOvertime = r.IsOvertime || o.IsOvertime
	return r
}

// Compute splits hours into regular and overtime given the hours already
// worked this week and prices them with rate.
func (p Policy) Compute(priorWeekHours, hours decimal.Decimal, rate domain.WorkerRate) (Result, error) {
	if priorWeekHours.IsNegative() || hours.IsNegative() {
		return Result{}, domain.ErrInvalidHours
	}
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	capacity := decimal.Max(decimal.Zero, p.WeeklyThreshold.Sub(priorWeekHours))
	regular := decimal.Min(hours, capacity)
	res := Result{PaymentType: rate.PaymentType}

	switch rate.PaymentType {
	case domain.PaymentHourly:
		overtime := hours.Sub(regular)
		res.RegularHours = regular
		res.OvertimeHours = overtime
		res.RegularPay = regular.Mul(rate.HourlyRate)
		res.OvertimePay = overtime.Mul(rate.HourlyRate).Mul(p.OvertimeMultiplier)
		res.IsOvertime = overtime.IsPositive()
	case domain.PaymentSalary:
		weekly := rate.MonthlySalary.Div(WeeksPerMonth)
		res.RegularHours = hours
		res.OvertimeHours = decimal.Zero
		res.RegularPay = weekly.Mul(regular).Div(p.WeeklyThreshold)
		res.OvertimePay = decimal.Zero
	default:
		return Result{}, fmt.Errorf("compute earnings: unknown payment type %q", rate.PaymentType)
	}
	res.GrossPay = res.RegularPay.Add(res.OvertimePay)
	return res, nil
}
