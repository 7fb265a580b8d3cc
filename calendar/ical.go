/*
Package calendar exports project phases as an iCalendar document.

PURPOSE:
  One all-day VEVENT per phase that has both a start and an end date, so a
  project schedule can be imported into any calendar client.

OUTPUT RULES:
  - Exactly one VCALENDAR, CRLF line endings, even with a single event
  - UID is phase-<phase id>-<project id>@<domain>: re-importing an export
    updates the same events instead of duplicating them
  - DTSTART/DTEND are VALUE=DATE; DTEND is exclusive (end date + 1 day)
  - STATUS: not_started -> TENTATIVE, in_progress/completed -> CONFIRMED,
    blocked -> CANCELLED
  - DESCRIPTION lists name, status, progress and the cost summary when one
    is supplied for the phase
  - Text escaping, CRLF line endings and line folding are left to
    golang-ical

  Phases missing a date are skipped. If none is left the export fails with
  domain.ErrNoExportableData.
*/
package calendar

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/warp/crew-engine/costs"
	"github.com/warp/crew-engine/domain"
)

// ContentType is the MIME type of Format's output.
const ContentType = "text/calendar; charset=utf-8"

type Options struct {
	// Domain is the right-hand side of every UID.
	Domain string
	// ProductID goes into PRODID.
	ProductID string
	// Name sets X-WR-CALNAME when not empty.
	Name           string
	CurrencySymbol string
	// Now is used for DTSTAMP; zero means time.Now().
	Now time.Time
}

func (o Options) withDefaults() Options {
	if o.Domain == "" {
		o.Domain = "crew-engine.local"
	}
	if o.ProductID == "" {
		o.ProductID = "-//crew-engine//phases//EN"
	}
	if o.CurrencySymbol == "" {
		o.CurrencySymbol = domain.DefaultCurrencySymbol
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	return o
}

// UID is stable across exports of the same phase.
func UID(p domain.Phase, uidDomain string) string {
	return fmt.Sprintf("phase-%s-%s@%s", p.ID, p.ProjectID, uidDomain)
}

// Format renders phases as a VCALENDAR. summaries may be nil.
func Format(phases []domain.Phase, summaries map[domain.PhaseID]costs.PhaseCostSummary, opts Options) (string, error) {
	opts = opts.withDefaults()

	cal := ics.NewCalendar()
	cal.SetProductId(opts.ProductID)
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ics.MethodPublish)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	events := 0
	for _, p := range phases {
		if !p.IsDated() {
			continue
		}
		events++

		var sum *costs.PhaseCostSummary
		if s, ok := summaries[p.ID]; ok {
			sum = &s
		}
		ev := cal.AddEvent(UID(p, opts.Domain))
		ev.SetDtStampTime(opts.Now)
		ev.SetAllDayStartAt(p.StartDate.Time)
		ev.SetAllDayEndAt(p.EndDate.AddDays(1).Time)
		ev.SetSummary(p.Name)
		ev.SetStatus(eventStatus(p.Status))
		ev.SetDescription(describe(p, sum, opts.CurrencySymbol))
	}
	if events == 0 {
		return "", domain.ErrNoExportableData
	}
	return cal.Serialize(), nil
}

func eventStatus(s domain.PhaseStatus) ics.ObjectStatus {
	switch s {
	case domain.PhaseInProgress, domain.PhaseCompleted:
		return ics.ObjectStatusConfirmed
	case domain.PhaseBlocked:
		return ics.ObjectStatusCancelled
	default:
		return ics.ObjectStatusTentative
	}
}

func describe(p domain.Phase, s *costs.PhaseCostSummary, symbol string) string {
	lines := []string{
		"Phase: " + p.Name,
		"Status: " + strings.ReplaceAll(string(p.Status), "_", " "),
		fmt.Sprintf("Progress: %d%%", p.Progress),
	}
	if s != nil {
		if s.Budget != nil {
			lines = append(lines, "Budget: "+domain.FormatMoney(*s.Budget, symbol))
		}
		lines = append(lines,
			"Materials: "+domain.FormatMoney(s.MaterialCost, symbol),
			"Labor: "+domain.FormatMoney(s.LaborCostActual, symbol),
			"Expenses: "+domain.FormatMoney(s.ExpenseCost, symbol),
			"Total committed: "+domain.FormatMoney(s.TotalCommitted, symbol),
		)
		if s.Variance != nil {
			lines = append(lines, "Variance: "+domain.FormatMoney(*s.Variance, symbol))
		}
	}
	return strings.Join(lines, "\n")
}

// =============================================================================
// FILE NAME
// =============================================================================

var unsafeChars = regexp.MustCompile(`[^a-z0-9]+`)

// Filename returns "<project>-phases-<yyyy-mm-dd>.ics" with the project name
// lowercased and reduced to letters, digits and single hyphens.
func Filename(projectName string, day domain.Date) string {
	name := strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(projectName), "-"), "-")
	if name == "" {
		name = "project"
	}
	return fmt.Sprintf("%s-phases-%s.ics", name, day)
}
