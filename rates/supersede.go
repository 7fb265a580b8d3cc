package rates

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/crew-engine/domain"
)

// =============================================================================
// SUPERSEDE - Rates are never deleted, only closed and followed
// =============================================================================

// Validate checks the fields of a single rate.
func Validate(r domain.WorkerRate) error {
	if r.WorkerID == "" {
		return fmt.Errorf("rate: worker id is required")
	}
	if !r.PaymentType.Valid() {
		return fmt.Errorf("rate: unknown payment type %q", r.PaymentType)
	}
	amount := r.HourlyRate
	if r.PaymentType == domain.PaymentSalary {
		amount = r.MonthlySalary
	}
	if !amount.GreaterThan(decimal.Zero) {
		return fmt.Errorf("rate: %s amount must be positive", r.PaymentType)
	}
	if r.EffectiveDate.IsZero() {
		return fmt.Errorf("rate: effective date is required")
	}
	if r.EndDate != nil && r.EndDate.Before(r.EffectiveDate) {
		return fmt.Errorf("rate: %w", domain.ErrInvalidPeriod)
	}
	return nil
}

// Supersede places next on top of the existing rates of the same worker.
//
// The open-ended rate of the same payment type that started before next is
// closed the day before next takes effect and returned so the caller can
// store it. Any other overlap with a same-type rate is rejected with
// ErrRateOverlap: supersession only ever moves forward in time.
func Supersede(existing []domain.WorkerRate, next domain.WorkerRate) (*domain.WorkerRate, error) {
	if err := Validate(next); err != nil {
		return nil, err
	}

	var closed *domain.WorkerRate
	for _, r := range existing {
		if r.WorkerID != next.WorkerID || r.PaymentType != next.PaymentType || r.ID == next.ID {
			continue
		}
		if !r.Span().Overlaps(next.Span()) {
			continue
		}
		if r.EndDate == nil && r.EffectiveDate.Before(next.EffectiveDate) && closed == nil {
			c := r
			end := next.EffectiveDate.AddDays(-1)
			c.EndDate = &end
			closed = &c
			continue
		}
		return nil, &domain.RateOverlapError{WorkerID: next.WorkerID, Existing: r.ID, Span: r.Span()}
	}
	return closed, nil
}

// Add validates next against the worker's stored rates, closes the rate it
// supersedes and saves both.
func (r *Resolver) Add(ctx context.Context, next domain.WorkerRate) (*domain.WorkerRate, error) {
	existing, err := r.Store.ListRates(ctx, next.WorkerID)
	if err != nil {
		return nil, fmt.Errorf("load rates for worker %s: %w", next.WorkerID, err)
	}

	closed, err := Supersede(existing, next)
	if err != nil {
		return nil, err
	}
	if closed != nil {
		if err := r.Store.SaveRate(ctx, *closed); err != nil {
			return nil, fmt.Errorf("close rate %s: %w", closed.ID, err)
		}
	}
	if err := r.Store.SaveRate(ctx, next); err != nil {
		return nil, fmt.Errorf("save rate %s: %w", next.ID, err)
	}
	return closed, nil
}
