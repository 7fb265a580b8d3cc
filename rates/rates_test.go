package rates_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/crew-engine/domain"
	"github.com/warp/crew-engine/domain/store"
	"github.com/warp/crew-engine/rates"
)

func day(y int, m time.Month, d int) domain.Date { return domain.NewDate(y, m, d) }

func hourly(id string, amount int64, from domain.Date, to *domain.Date) domain.WorkerRate {
	return domain.WorkerRate{
		ID:            domain.RateID(id),
		WorkerID:      "w-1",
		PaymentType:   domain.PaymentHourly,
		HourlyRate:    decimal.NewFromInt(amount),
		EffectiveDate: from,
		EndDate:       to,
	}
}

// =============================================================================
// RESOLVE
// =============================================================================

func TestResolve_PicksLatestEffectiveRate(t *testing.T) {
	// GIVEN: €20 from January, €25 from March
	jan := hourly("r-jan", 20, day(2024, 1, 1), nil)
	mar := hourly("r-mar", 25, day(2024, 3, 1), nil)
	all := []domain.WorkerRate{mar, jan}

	// WHEN/THEN: February resolves to the January rate, April to the March one
	got, err := rates.Resolve(all, "w-1", day(2024, 2, 15))
	require.NoError(t, err)
	assert.Equal(t, domain.RateID("r-jan"), got.ID)

	got, err = rates.Resolve(all, "w-1", day(2024, 4, 1))
	require.NoError(t, err)
	assert.Equal(t, domain.RateID("r-mar"), got.ID)

	// Effective date is inclusive
	got, err = rates.Resolve(all, "w-1", day(2024, 3, 1))
	require.NoError(t, err)
	assert.Equal(t, domain.RateID("r-mar"), got.ID)
}

func TestResolve_EndDateIsInclusive(t *testing.T) {
	end := day(2024, 6, 30)
	closed := hourly("r-1", 20, day(2024, 1, 1), &end)

	_, err := rates.Resolve([]domain.WorkerRate{closed}, "w-1", day(2024, 6, 30))
	require.NoError(t, err)

	_, err = rates.Resolve([]domain.WorkerRate{closed}, "w-1", day(2024, 7, 1))
	assert.ErrorIs(t, err, domain.ErrRateNotFound)
}

func TestResolve_NotFound(t *testing.T) {
	// GIVEN: A rate starting after the query date and a rate for someone else
	future := hourly("r-future", 20, day(2025, 1, 1), nil)
	other := hourly("r-other", 30, day(2020, 1, 1), nil)
	other.WorkerID = "w-2"

	// WHEN
	_, err := rates.Resolve([]domain.WorkerRate{future, other}, "w-1", day(2024, 6, 1))

	// THEN: No zero/default rate is invented
	require.Error(t, err)
	var notFound *domain.RateNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, domain.WorkerID("w-1"), notFound.WorkerID)

	_, err = rates.Resolve(nil, "w-1", day(2024, 6, 1))
	assert.ErrorIs(t, err, domain.ErrRateNotFound)
}

func TestResolve_SameDayTieBreak(t *testing.T) {
	// GIVEN: An hourly and a salary row on the same effective date
	created := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	a := hourly("r-a", 20, day(2024, 1, 1), nil)
	a.CreatedAt = created
	b := domain.WorkerRate{
		ID: "r-b", WorkerID: "w-1", PaymentType: domain.PaymentSalary,
		MonthlySalary: decimal.NewFromInt(4000), EffectiveDate: day(2024, 1, 1),
		CreatedAt: created.Add(time.Minute),
	}

	// THEN: The most recently created wins regardless of input order
	for _, in := range [][]domain.WorkerRate{{a, b}, {b, a}} {
		got, err := rates.Resolve(in, "w-1", day(2024, 2, 1))
		require.NoError(t, err)
		assert.Equal(t, domain.RateID("r-b"), got.ID)
	}
}

// =============================================================================
// SUPERSEDE
// =============================================================================

func TestSupersede_ClosesOpenRate(t *testing.T) {
	existing := []domain.WorkerRate{hourly("r-1", 20, day(2024, 1, 1), nil)}

	closed, err := rates.Supersede(existing, hourly("r-2", 25, day(2024, 3, 1), nil))
	require.NoError(t, err)
	require.NotNil(t, closed)
	assert.Equal(t, domain.RateID("r-1"), closed.ID)
	assert.Equal(t, "2024-02-29", closed.EndDate.String())
}

func TestSupersede_RejectsBackdatedOverlap(t *testing.T) {
	end := day(2024, 6, 30)
	existing := []domain.WorkerRate{hourly("r-1", 20, day(2024, 1, 1), &end)}

	_, err := rates.Supersede(existing, hourly("r-2", 25, day(2024, 3, 1), nil))
	assert.ErrorIs(t, err, domain.ErrRateOverlap)

	// A different payment type may share the window
	salary := domain.WorkerRate{ID: "r-3", WorkerID: "w-1", PaymentType: domain.PaymentSalary,
		MonthlySalary: decimal.NewFromInt(3000), EffectiveDate: day(2024, 3, 1)}
	closed, err := rates.Supersede(existing, salary)
	require.NoError(t, err)
	assert.Nil(t, closed)
}

func TestValidate(t *testing.T) {
	bad := hourly("r", 0, day(2024, 1, 1), nil)
	assert.Error(t, rates.Validate(bad))

	end := day(2023, 12, 1)
	inverted := hourly("r", 20, day(2024, 1, 1), &end)
	assert.ErrorIs(t, rates.Validate(inverted), domain.ErrInvalidPeriod)

	unknown := hourly("r", 20, day(2024, 1, 1), nil)
	unknown.PaymentType = "weekly"
	assert.Error(t, rates.Validate(unknown))
}

func TestResolver_AddThenResolve(t *testing.T) {
	ctx := context.Background()
	r := rates.NewResolver(store.NewMemory())

	_, err := r.Add(ctx, hourly("r-1", 20, day(2024, 1, 1), nil))
	require.NoError(t, err)
	closed, err := r.Add(ctx, hourly("r-2", 25, day(2024, 3, 1), nil))
	require.NoError(t, err)
	require.NotNil(t, closed)

	got, err := r.Resolve(ctx, "w-1", day(2024, 2, 1))
	require.NoError(t, err)
	assert.True(t, got.HourlyRate.Equal(decimal.NewFromInt(20)))

	got, err = r.Resolve(ctx, "w-1", day(2024, 3, 5))
	require.NoError(t, err)
	assert.True(t, got.HourlyRate.Equal(decimal.NewFromInt(25)))
}
