/*
aggregate.go - Planned vs. actual cost per phase

PURPOSE:
  Rolls up the material, labor and expense lines of one phase into a
  PhaseCostSummary. Pure projection: nothing is written back.

FORMULAS:
  material_cost       = sum(quantity x unit_cost)
  labor_cost_actual   = sum(hours_actual x hourly_rate | fixed_price)
  labor_cost_planned  = sum(hours_planned x hourly_rate | fixed_price)
  expense_cost        = sum(amount), every status counts as committed
  total_committed     = material + labor actual + expense
  total_planned       = material + labor planned + expense
  variance            = total_committed - budget, nil when there is no budget

  "No budget" (nil variance) and "on budget" (zero variance) are different
  answers and are never conflated.

SEE ALSO:
  - service.go: Loading the lines and project rollups
  - calendar/ical.go: Cost lines in event descriptions
*/
package costs

import (
	"github.com/shopspring/decimal"

	"github.com/warp/crew-engine/domain"
)

type PhaseCostSummary struct {
	PhaseID          domain.PhaseID
	Budget           *decimal.Decimal
	MaterialCost     decimal.Decimal
	LaborCostPlanned decimal.Decimal
	LaborCostActual  decimal.Decimal
	ExpenseCost      decimal.Decimal
	TotalCommitted   decimal.Decimal
	TotalPlanned     decimal.Decimal
	Variance         *decimal.Decimal
	LaborHours       decimal.Decimal // actual hours of hourly lines
}

// OverBudget is false when no budget is set.
func (s PhaseCostSummary) OverBudget() bool {
	return s.Variance != nil && s.Variance.IsPositive()
}

// Aggregate computes the summary of one phase. Any list may be empty.
func Aggregate(phaseID domain.PhaseID, materials []domain.MaterialLine, labor []domain.LaborLine, expenses []domain.ExpenseLine, budget *decimal.Decimal) PhaseCostSummary {
	s := PhaseCostSummary{
		PhaseID:          phaseID,
		MaterialCost:     decimal.Zero,
		LaborCostPlanned: decimal.Zero,
		LaborCostActual:  decimal.Zero,
		ExpenseCost:      decimal.Zero,
		LaborHours:       decimal.Zero,
	}
	for _, m := range materials {
		s.MaterialCost = s.MaterialCost.Add(m.TotalCost())
	}
	for _, l := range labor {
		s.LaborCostActual = s.LaborCostActual.Add(l.ActualCost())
		s.LaborCostPlanned = s.LaborCostPlanned.Add(l.PlannedCost())
		if l.PricingType != domain.PricingFixed {
			s.LaborHours = s.LaborHours.Add(l.HoursActual)
		}
	}
	for _, e := range expenses {
		s.ExpenseCost = s.ExpenseCost.Add(e.Amount)
	}

	s.TotalCommitted = s.MaterialCost.Add(s.LaborCostActual).Add(s.ExpenseCost)
	s.TotalPlanned = s.MaterialCost.Add(s.LaborCostPlanned).Add(s.ExpenseCost)

	if budget != nil {
		b := *budget
		v := s.TotalCommitted.Sub(b)
		s.Budget = &b
		s.Variance = &v
	}
	return s
}

// =============================================================================
// PROJECT ROLLUP
// =============================================================================

type ProjectCostSummary struct {
	ProjectID      domain.ProjectID
	Phases         []PhaseCostSummary
	Budget         *decimal.Decimal // nil when no phase has a budget
	TotalCommitted decimal.Decimal
	TotalPlanned   decimal.Decimal
	Variance       *decimal.Decimal
}

// Rollup totals phase summaries. Budget and variance only cover phases that
// have a budget; phases without one add to the totals but not the variance.
func Rollup(projectID domain.ProjectID, phases []PhaseCostSummary) ProjectCostSummary {
	p := ProjectCostSummary{
		ProjectID:      projectID,
		Phases:         phases,
		TotalCommitted: decimal.Zero,
		TotalPlanned:   decimal.Zero,
	}
	budgeted := decimal.Zero
	var budget *decimal.Decimal
	for _, s := range phases {
		p.TotalCommitted = p.TotalCommitted.Add(s.TotalCommitted)
		p.TotalPlanned = p.TotalPlanned.Add(s.TotalPlanned)
		if s.Budget != nil {
			sum := decimal.Zero
			if budget != nil {
				sum = *budget
			}
			sum = sum.Add(*s.Budget)
			budget = &sum
			budgeted = budgeted.Add(s.TotalCommitted)
		}
	}
	if budget != nil {
		v := budgeted.Sub(*budget)
		p.Budget = budget
		p.Variance = &v
	}
	return p
}
