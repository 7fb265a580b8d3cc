// Package store provides in-memory Repository implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/crew-engine/domain"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	workers   map[domain.WorkerID]domain.Worker
	rates     map[domain.WorkerID][]domain.WorkerRate
	shifts    map[domain.ShiftID]domain.Shift
	entries   map[domain.WorkerID][]domain.TimeSheetEntry
	projects  map[domain.ProjectID]domain.Project
	phases    map[domain.PhaseID]domain.Phase
	materials map[domain.PhaseID][]domain.MaterialLine
	labor     map[domain.PhaseID][]domain.LaborLine
	expenses  map[domain.PhaseID][]domain.ExpenseLine
	policies  map[domain.OrgID]string
}

var _ domain.Repository = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		workers:   make(map[domain.WorkerID]domain.Worker),
		rates:     make(map[domain.WorkerID][]domain.WorkerRate),
		shifts:    make(map[domain.ShiftID]domain.Shift),
		entries:   make(map[domain.WorkerID][]domain.TimeSheetEntry),
		projects:  make(map[domain.ProjectID]domain.Project),
		phases:    make(map[domain.PhaseID]domain.Phase),
		materials: make(map[domain.PhaseID][]domain.MaterialLine),
		labor:     make(map[domain.PhaseID][]domain.LaborLine),
		expenses:  make(map[domain.PhaseID][]domain.ExpenseLine),
		policies:  make(map[domain.OrgID]string),
	}
}

// =============================================================================
// WORKERS
// =============================================================================

func (m *Memory) SaveWorker(_ context.Context, w domain.Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workers[w.ID] = w
	return nil
}

func (m *Memory) GetWorker(_ context.Context, id domain.WorkerID) (domain.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.workers[id]
	if !ok {
		return domain.Worker{}, &domain.NotFoundError{Kind: "worker", ID: string(id)}
	}
	return w, nil
}

func (m *Memory) ListWorkers(_ context.Context) ([]domain.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]domain.Worker, 0, len(m.workers))
	for _, w := range m.workers {
		result = append(result, w)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// =============================================================================
// RATES
// =============================================================================

// SaveRate replaces a rate with the same id or inserts it, keeping the
// worker's rates ordered by effective date.
func (m *Memory) SaveRate(_ context.Context, r domain.WorkerRate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rates := m.rates[r.WorkerID]
	for i := range rates {
		if rates[i].ID == r.ID {
			rates[i] = r
			return nil
		}
	}

	i := sort.Search(len(rates), func(i int) bool {
		return rates[i].EffectiveDate.After(r.EffectiveDate)
	})
	rates = append(rates, domain.WorkerRate{})
	copy(rates[i+1:], rates[i:])
	rates[i] = r
	m.rates[r.WorkerID] = rates
	return nil
}

func (m *Memory) ListRates(_ context.Context, workerID domain.WorkerID) ([]domain.WorkerRate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]domain.WorkerRate, len(m.rates[workerID]))
	copy(result, m.rates[workerID])
	return result, nil
}

// =============================================================================
// SHIFTS
// =============================================================================

func (m *Memory) PersistShift(_ context.Context, s domain.Shift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shifts[s.ID] = cloneShift(s)
	return nil
}

func (m *Memory) GetShift(_ context.Context, id domain.ShiftID) (domain.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.shifts[id]
	if !ok {
		return domain.Shift{}, &domain.NotFoundError{Kind: "shift", ID: string(id)}
	}
	return cloneShift(s), nil
}

func (m *Memory) ActiveShift(_ context.Context, workerID domain.WorkerID) (*domain.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *domain.Shift
	for _, s := range m.shifts {
		if s.WorkerID != workerID || !s.IsActive() {
			continue
		}
		if latest == nil || s.Start.After(latest.Start) {
			c := cloneShift(s)
			latest = &c
		}
	}
	return latest, nil
}

func cloneShift(s domain.Shift) domain.Shift {
	s.Breaks = append([]domain.Break(nil), s.Breaks...)
	return s
}

// =============================================================================
// TIME SHEETS
// =============================================================================

func (m *Memory) PersistTimeSheetEntry(_ context.Context, e domain.TimeSheetEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.entries[e.WorkerID]
	for i := range entries {
		if entries[i].ID == e.ID {
			entries[i] = e
			return nil
		}
	}
	m.entries[e.WorkerID] = append(entries, e)
	return nil
}

func (m *Memory) ListTimeSheetEntries(_ context.Context, workerID domain.WorkerID, from, to domain.Date) ([]domain.TimeSheetEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	window := domain.Period{Start: from, End: to}
	var result []domain.TimeSheetEntry
	for _, e := range m.entries[workerID] {
		if window.Contains(e.WorkDate) {
			result = append(result, e)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].WorkDate.Equal(result[j].WorkDate) {
			return result[i].WorkDate.Before(result[j].WorkDate)
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// =============================================================================
// PROJECTS & PHASES
// =============================================================================

func (m *Memory) SaveProject(_ context.Context, p domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = p
	return nil
}

func (m *Memory) GetProject(_ context.Context, id domain.ProjectID) (domain.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return domain.Project{}, &domain.NotFoundError{Kind: "project", ID: string(id)}
	}
	return p, nil
}

func (m *Memory) ListProjects(_ context.Context) ([]domain.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]domain.Project, 0, len(m.projects))
	for _, p := range m.projects {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *Memory) SavePhase(_ context.Context, p domain.Phase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phases[p.ID] = p
	return nil
}

func (m *Memory) GetPhase(_ context.Context, id domain.PhaseID) (domain.Phase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.phases[id]
	if !ok {
		return domain.Phase{}, &domain.NotFoundError{Kind: "phase", ID: string(id)}
	}
	return p, nil
}

// ListPhases orders phases by start date; undated phases go last.
func (m *Memory) ListPhases(_ context.Context, projectID domain.ProjectID) ([]domain.Phase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []domain.Phase
	for _, p := range m.phases {
		if p.ProjectID == projectID {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		switch {
		case a.StartDate == nil && b.StartDate == nil:
			return a.ID < b.ID
		case a.StartDate == nil:
			return false
		case b.StartDate == nil:
			return true
		case !a.StartDate.Equal(*b.StartDate):
			return a.StartDate.Before(*b.StartDate)
		}
		return a.ID < b.ID
	})
	return result, nil
}

// =============================================================================
// COST LINES
// =============================================================================

func (m *Memory) SaveMaterial(_ context.Context, l domain.MaterialLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.materials[l.PhaseID] = upsert(m.materials[l.PhaseID], l, func(x domain.MaterialLine) string { return x.ID })
	return nil
}

func (m *Memory) SaveLabor(_ context.Context, l domain.LaborLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.labor[l.PhaseID] = upsert(m.labor[l.PhaseID], l, func(x domain.LaborLine) string { return x.ID })
	return nil
}

func (m *Memory) SaveExpense(_ context.Context, l domain.ExpenseLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expenses[l.PhaseID] = upsert(m.expenses[l.PhaseID], l, func(x domain.ExpenseLine) string { return x.ID })
	return nil
}

func (m *Memory) ListMaterials(_ context.Context, phaseID domain.PhaseID) ([]domain.MaterialLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.MaterialLine(nil), m.materials[phaseID]...), nil
}

func (m *Memory) ListLabor(_ context.Context, phaseID domain.PhaseID) ([]domain.LaborLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.LaborLine(nil), m.labor[phaseID]...), nil
}

func (m *Memory) ListExpenses(_ context.Context, phaseID domain.PhaseID) ([]domain.ExpenseLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.ExpenseLine(nil), m.expenses[phaseID]...), nil
}

func upsert[T any](lines []T, line T, id func(T) string) []T {
	for i := range lines {
		if id(lines[i]) == id(line) {
			lines[i] = line
			return lines
		}
	}
	return append(lines, line)
}

// =============================================================================
// OVERTIME POLICIES
// =============================================================================

func (m *Memory) SaveOvertimePolicy(_ context.Context, orgID domain.OrgID, configJSON string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[orgID] = configJSON
	return nil
}

func (m *Memory) GetOvertimePolicy(_ context.Context, orgID domain.OrgID) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.policies[orgID]
	if !ok {
		return "", &domain.NotFoundError{Kind: "overtime policy", ID: string(orgID)}
	}
	return raw, nil
}

// Reset drops everything.
func (m *Memory) Reset(_ context.Context) error {
	fresh := NewMemory()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workers, m.rates, m.shifts, m.entries = fresh.workers, fresh.rates, fresh.shifts, fresh.entries
	m.projects, m.phases = fresh.projects, fresh.phases
	m.materials, m.labor, m.expenses = fresh.materials, fresh.labor, fresh.expenses
	m.policies = fresh.policies
	return nil
}
