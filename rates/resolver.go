/*
resolver.go - Effective pay rate lookup

PURPOSE:
  Answers "what was this worker paid on this day?". Every earnings figure
  starts here.

SELECTION RULE:
  Candidates are the worker's rates with
      effective_date <= on  AND  (end_date is nil OR end_date >= on)
  and the winner is the one with the latest effective_date. Two rows on the
  same effective date (an hourly and a salary row) are ordered by CreatedAt,
  then by id, so the answer is stable.

NOT FOUND:
  No candidate means earnings cannot be computed. The error matches
  domain.ErrRateNotFound; callers show "earnings unavailable" instead of a
  zero amount.

SEE ALSO:
  - supersede.go: Adding a new rate on top of existing ones
  - earnings/service.go: Main consumer
*/
package rates

import (
	"context"
	"fmt"

	"github.com/warp/crew-engine/domain"
)

// Resolve picks the effective rate among rates for workerID on the given day.
// Rates belonging to other workers are ignored.
func Resolve(rates []domain.WorkerRate, workerID domain.WorkerID, on domain.Date) (domain.WorkerRate, error) {
	var (
		best  domain.WorkerRate
		found bool
	)
	for _, r := range rates {
		if r.WorkerID != workerID || !r.Covers(on) {
			continue
		}
		if !found || newer(r, best) {
			best, found = r, true
		}
	}
	if !found {
		return domain.WorkerRate{}, &domain.RateNotFoundError{WorkerID: workerID, On: on}
	}
	return best, nil
}

func newer(a, b domain.WorkerRate) bool {
	if !a.EffectiveDate.Equal(b.EffectiveDate) {
		return a.EffectiveDate.After(b.EffectiveDate)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// =============================================================================
// RESOLVER - Store-backed lookup
// =============================================================================

// Resolver resolves rates from a RateStore.
type Resolver struct {
	Store domain.RateStore
}

func NewResolver(store domain.RateStore) *Resolver {
	return &Resolver{Store: store}
}

// Resolve loads the worker's rates and applies the selection rule.
func (r *Resolver) Resolve(ctx context.Context, workerID domain.WorkerID, on domain.Date) (domain.WorkerRate, error) {
	rates, err := r.Store.ListRates(ctx, workerID)
	if err != nil {
		return domain.WorkerRate{}, fmt.Errorf("load rates for worker %s: %w", workerID, err)
	}
	return Resolve(rates, workerID, on)
}
