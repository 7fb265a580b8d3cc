package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/crew-engine/domain"
	"github.com/warp/crew-engine/earnings"
	"github.com/warp/crew-engine/factory"
	"github.com/warp/crew-engine/rates"
)

// PolicySaver stores per-organization overtime policies. Repositories that
// do not implement it skip the scenario's policies.
type PolicySaver interface {
	SaveOvertimePolicy(ctx context.Context, orgID domain.OrgID, configJSON string) error
}

// Counts reports what Load wrote.
type Counts struct {
	Policies  int `json:"policies"`
	Workers   int `json:"workers"`
	Rates     int `json:"rates"`
	Entries   int `json:"entries"`
	Projects  int `json:"projects"`
	Phases    int `json:"phases"`
	CostLines int `json:"cost_lines"`
}

// Load writes a scenario into repo. It stops at the first invalid record;
// records written before that stay written.
func Load(ctx context.Context, repo domain.Repository, sc Scenario) (Counts, error) {
	l := loader{repo: repo, now: time.Now(), resolver: rates.NewResolver(repo)}
	if err := l.policies(ctx, sc.Policies); err != nil {
		return l.counts, fmt.Errorf("scenario %s: %w", sc.ID, err)
	}
	for _, w := range sc.Workers {
		if err := l.worker(ctx, w); err != nil {
			return l.counts, fmt.Errorf("scenario %s: worker %s: %w", sc.ID, w.ID, err)
		}
	}
	for _, p := range sc.Projects {
		if err := l.project(ctx, p); err != nil {
			return l.counts, fmt.Errorf("scenario %s: project %s: %w", sc.ID, p.ID, err)
		}
	}
	return l.counts, nil
}

type loader struct {
	repo     domain.Repository
	resolver *rates.Resolver
	now      time.Time
	counts   Counts
}

func (l *loader) policies(ctx context.Context, docs []PolicyDoc) error {
	saver, ok := l.repo.(PolicySaver)
	if !ok || len(docs) == 0 {
		return nil
	}
	f := factory.NewPolicyFactory()
	def := earnings.DefaultPolicy()
	for _, d := range docs {
		if d.OrgID == "" {
			return fmt.Errorf("policy %s: org_id is required", d.ID)
		}
		threshold, multiplier := def.WeeklyThreshold, def.OvertimeMultiplier
		if d.WeeklyThresholdHours != nil {
			threshold = *d.WeeklyThresholdHours
		}
		if d.OvertimeMultiplier != nil {
			multiplier = *d.OvertimeMultiplier
		}
		raw := factory.OvertimeJSON(d.ID, d.Name, threshold, multiplier)
		if _, err := f.ParsePolicy(raw); err != nil {
			return fmt.Errorf("policy %s: %w", d.ID, err)
		}
		if err := saver.SaveOvertimePolicy(ctx, domain.OrgID(d.OrgID), raw); err != nil {
			return err
		}
		l.counts.Policies++
	}
	return nil
}

func (l *loader) worker(ctx context.Context, d WorkerDoc) error {
	if d.ID == "" || d.Name == "" {
		return fmt.Errorf("id and name are required")
	}
	workerID := domain.WorkerID(d.ID)
	err := l.repo.SaveWorker(ctx, domain.Worker{
		ID: workerID, OrgID: domain.OrgID(d.OrgID), Name: d.Name, Email: d.Email, CreatedAt: l.now,
	})
	if err != nil {
		return err
	}
	l.counts.Workers++

	for i, r := range d.Rates {
		rate, err := l.rate(workerID, i, r)
		if err != nil {
			return err
		}
		if _, err := l.resolver.Add(ctx, rate); err != nil {
			return fmt.Errorf("rate %s: %w", rate.ID, err)
		}
		l.counts.Rates++
	}

	for _, e := range d.Timesheets {
		day, err := domain.ParseDate(e.Date)
		if err != nil {
			return fmt.Errorf("time sheet entry %s: %w", e.ID, err)
		}
		if e.Hours.IsNegative() {
			return fmt.Errorf("time sheet entry %s: %w", e.ID, domain.ErrInvalidHours)
		}
		err = l.repo.PersistTimeSheetEntry(ctx, domain.TimeSheetEntry{
			ID:         domain.EntryID(orNew(e.ID)),
			WorkerID:   workerID,
			ProjectID:  domain.ProjectID(e.Project),
			WorkDate:   day,
			Hours:      e.Hours,
			Note:       e.Note,
			Location:   e.Location,
			SyncStatus: domain.SyncSynced,
			CreatedAt:  l.now,
		})
		if err != nil {
			return err
		}
		l.counts.Entries++
	}
	return nil
}

func (l *loader) rate(workerID domain.WorkerID, i int, d RateDoc) (domain.WorkerRate, error) {
	from, err := domain.ParseDate(d.From)
	if err != nil {
		return domain.WorkerRate{}, fmt.Errorf("rate %d: from: %w", i, err)
	}
	until, err := optionalDate(d.Until)
	if err != nil {
		return domain.WorkerRate{}, fmt.Errorf("rate %d: until: %w", i, err)
	}
	id := d.ID
	if id == "" {
		id = fmt.Sprintf("%s-rate-%d", workerID, i+1)
	}
	return domain.WorkerRate{
		ID:            domain.RateID(id),
		WorkerID:      workerID,
		PaymentType:   domain.PaymentType(d.Type),
		HourlyRate:    d.HourlyRate,
		MonthlySalary: d.MonthlySalary,
		EffectiveDate: from,
		EndDate:       until,
		// Spread creation times so same-day ties resolve in document order.
		CreatedAt: l.now.Add(time.Duration(i) * time.Millisecond),
	}, nil
}

func (l *loader) project(ctx context.Context, d ProjectDoc) error {
	if d.ID == "" || d.Name == "" {
		return fmt.Errorf("id and name are required")
	}
	projectID := domain.ProjectID(d.ID)
	err := l.repo.SaveProject(ctx, domain.Project{ID: projectID, OrgID: domain.OrgID(d.OrgID), Name: d.Name, CreatedAt: l.now})
	if err != nil {
		return err
	}
	l.counts.Projects++

	for _, p := range d.Phases {
		if err := l.phase(ctx, projectID, p); err != nil {
			return fmt.Errorf("phase %s: %w", p.ID, err)
		}
	}
	return nil
}

func (l *loader) phase(ctx context.Context, projectID domain.ProjectID, d PhaseDoc) error {
	status := domain.PhaseStatus(d.Status)
	if d.Status == "" {
		status = domain.PhaseNotStarted
	}
	if !status.Valid() {
		return fmt.Errorf("unknown status %q", d.Status)
	}
	if d.Progress < 0 || d.Progress > 100 {
		return fmt.Errorf("progress %d outside 0-100", d.Progress)
	}
	start, err := optionalDate(d.Start)
	if err != nil {
		return err
	}
	end, err := optionalDate(d.End)
	if err != nil {
		return err
	}
	if start != nil && end != nil && end.Before(*start) {
		return domain.ErrInvalidPeriod
	}

	phaseID := domain.PhaseID(orNew(d.ID))
	err = l.repo.SavePhase(ctx, domain.Phase{
		ID: phaseID, ProjectID: projectID, Name: d.Name, Status: status,
		StartDate: start, EndDate: end, Progress: d.Progress, Budget: d.Budget,
	})
	if err != nil {
		return err
	}
	l.counts.Phases++

	for _, m := range d.Materials {
		status := domain.MaterialStatus(m.Status)
		if status == "" {
			status = domain.MaterialPlanned
		}
		if err := l.repo.SaveMaterial(ctx, domain.MaterialLine{
			ID: orNew(m.ID), PhaseID: phaseID, Name: m.Name, Unit: m.Unit,
			Quantity: m.Quantity, UnitCost: m.UnitCost, Status: status,
		}); err != nil {
			return err
		}
		l.counts.CostLines++
	}
	for _, lb := range d.Labor {
		line, err := laborLine(phaseID, lb)
		if err != nil {
			return err
		}
		if err := l.repo.SaveLabor(ctx, line); err != nil {
			return err
		}
		l.counts.CostLines++
	}
	for _, e := range d.Expenses {
		day, err := optionalDate(e.Date)
		if err != nil {
			return fmt.Errorf("expense %s: %w", e.ID, err)
		}
		status := domain.ExpenseStatus(e.Status)
		if status == "" {
			status = domain.ExpensePending
		}
		line := domain.ExpenseLine{
			ID: orNew(e.ID), PhaseID: phaseID, Description: e.Description, Amount: e.Amount, Status: status,
		}
		if day != nil {
			line.Date = *day
		}
		if err := l.repo.SaveExpense(ctx, line); err != nil {
			return err
		}
		l.counts.CostLines++
	}
	return nil
}

func laborLine(phaseID domain.PhaseID, d LaborDoc) (domain.LaborLine, error) {
	pricing := domain.PricingType(d.Pricing)
	switch pricing {
	case "":
		pricing = domain.PricingHourly
	case domain.PricingHourly, domain.PricingFixed:
	default:
		return domain.LaborLine{}, fmt.Errorf("labor %s: unknown pricing %q", d.ID, d.Pricing)
	}
	day, err := optionalDate(d.Date)
	if err != nil {
		return domain.LaborLine{}, fmt.Errorf("labor %s: %w", d.ID, err)
	}
	for _, h := range []decimal.Decimal{d.HoursPlanned, d.HoursActual} {
		if h.IsNegative() {
			return domain.LaborLine{}, fmt.Errorf("labor %s: %w", d.ID, domain.ErrInvalidHours)
		}
	}
	line := domain.LaborLine{
		ID: orNew(d.ID), PhaseID: phaseID, WorkerID: domain.WorkerID(d.Worker), PricingType: pricing,
		HoursPlanned: d.HoursPlanned, HoursActual: d.HoursActual, HourlyRate: d.HourlyRate, FixedPrice: d.FixedPrice,
	}
	if day != nil {
		line.WorkDate = *day
	}
	return line, nil
}

func optionalDate(s string) (*domain.Date, error) {
	if s == "" {
		return nil, nil
	}
	d, err := domain.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func orNew(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}
