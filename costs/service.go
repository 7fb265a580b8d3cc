package costs

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/warp/crew-engine/domain"
)

// Store is everything the cost service reads.
type Store interface {
	domain.PhaseStore
	domain.CostLineStore
}

type Service struct {
	store Store
	// parallel bounds the number of phases summarized at once.
	parallel int
}

func NewService(store Store) *Service {
	return &Service{store: store, parallel: 4}
}

// PhaseSummary loads a phase and its lines and aggregates them.
func (s *Service) PhaseSummary(ctx context.Context, phaseID domain.PhaseID) (PhaseCostSummary, error) {
	const op = "costs.PhaseSummary"

	phase, err := s.store.GetPhase(ctx, phaseID)
	if err != nil {
		return PhaseCostSummary{}, fmt.Errorf("%s: %w", op, err)
	}
	sum, err := s.summarize(ctx, phase)
	if err != nil {
		return PhaseCostSummary{}, fmt.Errorf("%s: %w", op, err)
	}
	return sum, nil
}

func (s *Service) summarize(ctx context.Context, phase domain.Phase) (PhaseCostSummary, error) {
	var (
		materials []domain.MaterialLine
		labor     []domain.LaborLine
		expenses  []domain.ExpenseLine
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		materials, err = s.store.ListMaterials(gCtx, phase.ID)
		if err != nil {
			return fmt.Errorf("materials: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		labor, err = s.store.ListLabor(gCtx, phase.ID)
		if err != nil {
			return fmt.Errorf("labor: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		expenses, err = s.store.ListExpenses(gCtx, phase.ID)
		if err != nil {
			return fmt.Errorf("expenses: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return PhaseCostSummary{}, err
	}

	return Aggregate(phase.ID, materials, labor, expenses, phase.Budget), nil
}

// ProjectSummary summarizes every phase of a project, in phase order.
func (s *Service) ProjectSummary(ctx context.Context, projectID domain.ProjectID) (ProjectCostSummary, error) {
	const op = "costs.ProjectSummary"

	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return ProjectCostSummary{}, fmt.Errorf("%s: %w", op, err)
	}
	phases, err := s.store.ListPhases(ctx, projectID)
	if err != nil {
		return ProjectCostSummary{}, fmt.Errorf("%s: %w", op, err)
	}

	summaries := make([]PhaseCostSummary, len(phases))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallel)
	for i, phase := range phases {
		g.Go(func() error {
			sum, err := s.summarize(gCtx, phase)
			if err != nil {
				return fmt.Errorf("phase %s: %w", phase.ID, err)
			}
			summaries[i] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ProjectCostSummary{}, fmt.Errorf("%s: %w", op, err)
	}
	return Rollup(projectID, summaries), nil
}

// ByPhase indexes summaries for the calendar export.
func ByPhase(summaries []PhaseCostSummary) map[domain.PhaseID]PhaseCostSummary {
	out := make(map[domain.PhaseID]PhaseCostSummary, len(summaries))
	for _, s := range summaries {
		out[s.PhaseID] = s
	}
	return out
}
