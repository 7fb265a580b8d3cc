package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/crew-engine/domain"
)

func date(year int, month time.Month, day int) domain.Date {
	return domain.NewDate(year, month, day)
}

// =============================================================================
// DATES & WEEKS
// =============================================================================

func TestWeekOf_MondayToSunday(t *testing.T) {
	tests := []struct {
		name string
		day  domain.Date
	}{
		{"monday", date(2024, time.February, 26)},
		{"friday", date(2024, time.March, 1)},
		{"sunday", date(2024, time.March, 3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			week := domain.WeekOf(tt.day)
			assert.Equal(t, "2024-02-26", week.Start.String())
			assert.Equal(t, "2024-03-03", week.End.String())
			assert.True(t, week.Contains(tt.day))
		})
	}
}

func TestDateOf_UsesUTCDay(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)

	// 01:30 in Tokyo is still the previous day in UTC
	local := time.Date(2024, 3, 5, 1, 30, 0, 0, tokyo)
	assert.Equal(t, "2024-03-04", domain.DateOf(local).String())
	assert.True(t, domain.DateOf(local).Equal(domain.DateOf(local.UTC())))

	// A Monday 00:30 in Tokyo belongs to the previous ISO week
	monday := time.Date(2024, 3, 4, 0, 30, 0, 0, tokyo)
	assert.Equal(t, "2024-W09", domain.WeekLabel(domain.DateOf(monday)))
}

func TestWeekLabel(t *testing.T) {
	assert.Equal(t, "2024-W09", domain.WeekLabel(date(2024, time.March, 1)))
}

func TestParseDate(t *testing.T) {
	d, err := domain.ParseDate("2024-03-01")
	require.NoError(t, err)
	assert.True(t, d.Equal(date(2024, time.March, 1)))
	assert.Equal(t, "20240301", d.Compact())

	_, err = domain.ParseDate("01/03/2024")
	assert.Error(t, err)
}

func TestHoursOf(t *testing.T) {
	assert.True(t, domain.HoursOf(90*time.Minute).Equal(decimal.RequireFromString("1.5")))
	assert.True(t, domain.HoursOf(0).IsZero())
}

// =============================================================================
// PERIODS & RATES
// =============================================================================

func TestPeriod_OverlapsAndValidate(t *testing.T) {
	jan := domain.Period{Start: date(2024, 1, 1), End: date(2024, 1, 31)}
	feb := domain.Period{Start: date(2024, 2, 1), End: date(2024, 2, 29)}
	lateJan := domain.Period{Start: date(2024, 1, 31), End: date(2024, 2, 10)}

	assert.False(t, jan.Overlaps(feb))
	assert.True(t, jan.Overlaps(lateJan))
	assert.Len(t, feb.Days(), 29)

	bad := domain.Period{Start: date(2024, 2, 1), End: date(2024, 1, 1)}
	assert.ErrorIs(t, bad.Validate(), domain.ErrInvalidPeriod)
}

func TestWorkerRate_Covers(t *testing.T) {
	end := date(2024, 6, 30)
	r := domain.WorkerRate{EffectiveDate: date(2024, 1, 1), EndDate: &end}

	assert.False(t, r.Covers(date(2023, 12, 31)))
	assert.True(t, r.Covers(date(2024, 1, 1)))
	assert.True(t, r.Covers(date(2024, 6, 30)))
	assert.False(t, r.Covers(date(2024, 7, 1)))

	open := domain.WorkerRate{EffectiveDate: date(2024, 1, 1)}
	assert.True(t, open.Covers(date(2030, 1, 1)))
}

// =============================================================================
// COST LINES & MONEY
// =============================================================================

func TestLaborLine_Costs(t *testing.T) {
	hourly := domain.LaborLine{
		PricingType:  domain.PricingHourly,
		HoursPlanned: decimal.NewFromInt(10),
		HoursActual:  decimal.NewFromInt(12),
		HourlyRate:   decimal.NewFromInt(30),
	}
	assert.True(t, hourly.ActualCost().Equal(decimal.NewFromInt(360)))
	assert.True(t, hourly.PlannedCost().Equal(decimal.NewFromInt(300)))

	fixed := domain.LaborLine{PricingType: domain.PricingFixed, FixedPrice: decimal.NewFromInt(900), HoursActual: decimal.NewFromInt(50)}
	assert.True(t, fixed.ActualCost().Equal(decimal.NewFromInt(900)))
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "€0.00", domain.FormatMoney(decimal.Zero, "€"))
	assert.Equal(t, "€312.50", domain.FormatMoney(decimal.RequireFromString("312.5"), "€"))
	assert.Equal(t, "€1,234,567.89", domain.FormatMoney(decimal.RequireFromString("1234567.891"), "€"))
	assert.Equal(t, "-$1,000.00", domain.FormatMoney(decimal.NewFromInt(-1000), "$"))
	assert.Equal(t, "-€3,295.00", domain.FormatMoney(decimal.RequireFromString("-3295"), "€"))
	assert.Equal(t, "€0.00", domain.FormatMoney(decimal.RequireFromString("-0.001"), "€"))
	assert.Equal(t, "€1,187.50", domain.FormatMoney(decimal.RequireFromString("1187.495"), "€"))
}

// =============================================================================
// ERRORS
// =============================================================================

func TestErrorHelpers(t *testing.T) {
	notFound := &domain.RateNotFoundError{WorkerID: "w-1", On: date(2024, 3, 1)}
	assert.ErrorIs(t, notFound, domain.ErrRateNotFound)

	cause := errors.New("connection refused")
	pending := &domain.SyncPendingError{ShiftID: "s-1", Attempts: 1, Cause: cause}
	assert.ErrorIs(t, pending, domain.ErrSyncPending)
	assert.ErrorIs(t, pending, cause)

	assert.True(t, domain.IsNotFound(&domain.NotFoundError{Kind: "phase", ID: "p"}))
	assert.True(t, domain.IsConflict(domain.ErrAlreadyActive))
	assert.True(t, domain.IsClientError(&domain.RateOverlapError{}))
	assert.False(t, domain.IsClientError(cause))
}
