package calendar_test

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/crew-engine/calendar"
	"github.com/warp/crew-engine/costs"
	"github.com/warp/crew-engine/domain"
)

var opts = calendar.Options{Domain: "crew.test", Now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}

func datedPhase(id string, status domain.PhaseStatus) domain.Phase {
	start := domain.NewDate(2024, 3, 4)
	end := domain.NewDate(2024, 3, 15)
	return domain.Phase{
		ID: domain.PhaseID(id), ProjectID: "p-1", Name: "Foundation",
		Status: status, StartDate: &start, EndDate: &end, Progress: 40,
	}
}

func TestFormat_NoExportableData(t *testing.T) {
	_, err := calendar.Format(nil, nil, opts)
	assert.ErrorIs(t, err, domain.ErrNoExportableData)

	start := domain.NewDate(2024, 3, 4)
	undated := []domain.Phase{{ID: "a", ProjectID: "p"}, {ID: "b", ProjectID: "p", StartDate: &start}}
	_, err = calendar.Format(undated, nil, opts)
	assert.ErrorIs(t, err, domain.ErrNoExportableData)
}

func TestFormat_SingleEvent(t *testing.T) {
	// GIVEN: One dated phase next to an undated one
	phases := []domain.Phase{datedPhase("ph-1", domain.PhaseInProgress), {ID: "ph-2", ProjectID: "p-1", Name: "Roof"}}

	// WHEN
	out, err := calendar.Format(phases, nil, opts)

	// THEN: A single VEVENT with whole-day dates and an exclusive end
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "BEGIN:VEVENT"))
	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR\r\n"))
	assert.True(t, strings.HasSuffix(out, "END:VCALENDAR\r\n"))
	assert.Contains(t, out, "UID:phase-ph-1-p-1@crew.test\r\n")
	assert.Contains(t, out, "DTSTART;VALUE=DATE:20240304\r\n")
	assert.Contains(t, out, "DTEND;VALUE=DATE:20240316\r\n")
	assert.Contains(t, out, "DTSTAMP:20240301T120000Z\r\n")
	assert.Contains(t, out, "STATUS:CONFIRMED\r\n")
	assert.NotContains(t, out, "Roof")
	assert.Contains(t, out, "METHOD:PUBLISH\r\n")
	assert.Contains(t, out, "PRODID:-//crew-engine//phases//EN\r\n")

	// Every line ends with CRLF
	assert.NotContains(t, strings.ReplaceAll(out, "\r\n", ""), "\n")
}

func TestFormat_StatusMapping(t *testing.T) {
	tests := map[domain.PhaseStatus]string{
		domain.PhaseNotStarted: "TENTATIVE",
		domain.PhaseInProgress: "CONFIRMED",
		domain.PhaseCompleted:  "CONFIRMED",
		domain.PhaseBlocked:    "CANCELLED",
	}
	for status, want := range tests {
		out, err := calendar.Format([]domain.Phase{datedPhase("x", status)}, nil, opts)
		require.NoError(t, err)
		assert.Contains(t, out, "STATUS:"+want+"\r\n", string(status))
	}
}

func TestFormat_UIDStableWhenCostsChange(t *testing.T) {
	phase := datedPhase("ph-1", domain.PhaseInProgress)
	budget := decimal.NewFromInt(1000)
	before := costs.Aggregate("ph-1", nil, nil, nil, &budget)
	after := costs.Aggregate("ph-1", nil, nil, []domain.ExpenseLine{{Amount: decimal.NewFromInt(250)}}, &budget)

	first, err := calendar.Format([]domain.Phase{phase}, costs.ByPhase([]costs.PhaseCostSummary{before}), opts)
	require.NoError(t, err)
	second, err := calendar.Format([]domain.Phase{phase}, costs.ByPhase([]costs.PhaseCostSummary{after}), opts)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, uidOf(t, first), uidOf(t, second))
	assert.Contains(t, unfold(second), `Total committed: €250.00\nVariance: -€750.00`)
}

func TestFormat_EscapingAndFolding(t *testing.T) {
	phase := datedPhase("ph-1", domain.PhaseNotStarted)
	phase.Name = "Site prep; grading, drainage and a very long name that will need folding €€€"

	out, err := calendar.Format([]domain.Phase{phase}, nil, opts)
	require.NoError(t, err)

	// The long summary is folded onto a continuation line
	assert.NotContains(t, out, phase.Name)
	assert.Contains(t, out, "\r\n ")
	assert.Contains(t, unfold(out), `SUMMARY:Site prep\; grading\, drainage and a very long name that will need folding €€€`)
}

func TestFilename(t *testing.T) {
	day := domain.NewDate(2024, 3, 1)
	assert.Equal(t, "north-tower-block-b-phases-2024-03-01.ics", calendar.Filename("North Tower / Block B", day))
	assert.Equal(t, "project-phases-2024-03-01.ics", calendar.Filename("!!!", day))
}

func unfold(s string) string { return strings.ReplaceAll(s, "\r\n ", "") }

func uidOf(t *testing.T, ics string) string {
	t.Helper()
	for _, line := range strings.Split(unfold(ics), "\r\n") {
		if strings.HasPrefix(line, "UID:") {
			return line
		}
	}
	t.Fatal("no UID line")
	return ""
}
