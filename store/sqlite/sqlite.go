/*
Package sqlite provides a SQLite-backed implementation of the repository interfaces.

PURPOSE:
  Implements domain.Repository (workers, rates, shifts, time sheets,
  projects, phases, cost lines) plus the per-organization overtime policy
  table using SQLite.

KEY TABLES:
  workers:            Worker records
  worker_rates:       Pay rates (never deleted, closed by end_date)
  shifts:             Shift checkpoints and ended shifts, breaks as JSON
  timesheet_entries:  Hours per work date
  projects / phases:  Project schedule
  material_lines, labor_lines, expense_lines: Phase cost items
  overtime_policies:  JSON overtime policy per organization (versioned)

STORAGE FORMATS:
  - Money and hours are decimal strings, never REAL
  - Dates are YYYY-MM-DD, instants are fixed-width UTC timestamps so that
    string order is time order

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection: SQLite has
  one writer anyway, and ":memory:" databases exist per connection.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/crew.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - domain/store.go: Interface definitions
  - domain/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/crew-engine/domain"
)

// tsLayout is fixed width so lexical order equals time order.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements all repository interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ domain.Repository = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS workers (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		email TEXT,
		created_at TEXT NOT NULL
	);

	-- Rates are superseded, never deleted
	CREATE TABLE IF NOT EXISTS worker_rates (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		payment_type TEXT NOT NULL,
		hourly_rate TEXT NOT NULL DEFAULT '0',
		monthly_salary TEXT NOT NULL DEFAULT '0',
		effective_date TEXT NOT NULL,
		end_date TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rates_worker_effective
		ON worker_rates(worker_id, effective_date);

	CREATE TABLE IF NOT EXISTS shifts (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL DEFAULT '',
		worker_id TEXT NOT NULL,
		project_id TEXT,
		shift_type TEXT NOT NULL,
		start_at TEXT NOT NULL,
		end_at TEXT,
		breaks_json TEXT NOT NULL DEFAULT '[]',
		sync_status TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Active shift lookup (hot path for every transition)
	CREATE INDEX IF NOT EXISTS idx_shifts_worker_active
		ON shifts(worker_id, start_at DESC) WHERE end_at IS NULL;

	CREATE TABLE IF NOT EXISTS timesheet_entries (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		project_id TEXT,
		shift_id TEXT,
		work_date TEXT NOT NULL,
		hours TEXT NOT NULL,
		note TEXT,
		location TEXT,
		sync_status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Weekly hours (hot path for overtime)
	CREATE INDEX IF NOT EXISTS idx_timesheet_worker_date
		ON timesheet_entries(worker_id, work_date);

	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS phases (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		start_date TEXT,
		end_date TEXT,
		progress INTEGER NOT NULL DEFAULT 0,
		budget TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_phases_project
		ON phases(project_id);

	CREATE TABLE IF NOT EXISTS material_lines (
		id TEXT PRIMARY KEY,
		phase_id TEXT NOT NULL,
		name TEXT NOT NULL,
		unit TEXT,
		quantity TEXT NOT NULL,
		unit_cost TEXT NOT NULL,
		status TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS labor_lines (
		id TEXT PRIMARY KEY,
		phase_id TEXT NOT NULL,
		worker_id TEXT,
		work_date TEXT,
		pricing_type TEXT NOT NULL,
		hours_planned TEXT NOT NULL DEFAULT '0',
		hours_actual TEXT NOT NULL DEFAULT '0',
		hourly_rate TEXT NOT NULL DEFAULT '0',
		fixed_price TEXT NOT NULL DEFAULT '0'
	);

	CREATE TABLE IF NOT EXISTS expense_lines (
		id TEXT PRIMARY KEY,
		phase_id TEXT NOT NULL,
		description TEXT,
		amount TEXT NOT NULL,
		expense_date TEXT,
		status TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_material_phase ON material_lines(phase_id);
	CREATE INDEX IF NOT EXISTS idx_labor_phase ON labor_lines(phase_id);
	CREATE INDEX IF NOT EXISTS idx_expense_phase ON expense_lines(phase_id);

	-- Overtime policies (one per organization, versioned)
	CREATE TABLE IF NOT EXISTS overtime_policies (
		org_id TEXT PRIMARY KEY,
		config_json TEXT NOT NULL,
		version INTEGER DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// WORKER STORE
// =============================================================================

func (s *Store) SaveWorker(ctx context.Context, w domain.Worker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO workers (id, org_id, name, email, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			org_id = excluded.org_id,
			name = excluded.name,
			email = excluded.email
	`
	created := w.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx, query, w.ID, w.OrgID, w.Name, nullString(w.Email), formatTime(created))
	if err != nil {
		return fmt.Errorf("failed to save worker: %w", err)
	}
	return nil
}

func (s *Store) GetWorker(ctx context.Context, id domain.WorkerID) (domain.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, org_id, name, email, created_at FROM workers WHERE id = ?", id)
	w, err := scanWorker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Worker{}, &domain.NotFoundError{Kind: "worker", ID: string(id)}
	}
	return w, err
}

func (s *Store) ListWorkers(ctx context.Context) ([]domain.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, org_id, name, email, created_at FROM workers ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query workers: %w", err)
	}
	defer rows.Close()

	var workers []domain.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

func scanWorker(row scanner) (domain.Worker, error) {
	var (
		w         domain.Worker
		email     sql.NullString
		createdAt string
	)
	if err := row.Scan(&w.ID, &w.OrgID, &w.Name, &email, &createdAt); err != nil {
		return w, err
	}
	w.Email = email.String
	w.CreatedAt = parseTime(createdAt)
	return w, nil
}

// =============================================================================
// RATE STORE
// =============================================================================

func (s *Store) SaveRate(ctx context.Context, r domain.WorkerRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO worker_rates
		(id, worker_id, payment_type, hourly_rate, monthly_salary, effective_date, end_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payment_type = excluded.payment_type,
			hourly_rate = excluded.hourly_rate,
			monthly_salary = excluded.monthly_salary,
			effective_date = excluded.effective_date,
			end_date = excluded.end_date
	`
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.WorkerID, r.PaymentType,
		r.HourlyRate.String(), r.MonthlySalary.String(),
		r.EffectiveDate.String(), nullDate(r.EndDate),
		formatTime(created),
	)
	if err != nil {
		return fmt.Errorf("failed to save rate: %w", err)
	}
	return nil
}

func (s *Store) ListRates(ctx context.Context, workerID domain.WorkerID) ([]domain.WorkerRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, worker_id, payment_type, hourly_rate, monthly_salary, effective_date, end_date, created_at
		FROM worker_rates
		WHERE worker_id = ?
		ORDER BY effective_date ASC, created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rates: %w", err)
	}
	defer rows.Close()

	var rates []domain.WorkerRate
	for rows.Next() {
		var (
			r                     domain.WorkerRate
			hourly, monthly, from string
			end                   sql.NullString
			createdAt             string
		)
		if err := rows.Scan(&r.ID, &r.WorkerID, &r.PaymentType, &hourly, &monthly, &from, &end, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan rate: %w", err)
		}
		if r.HourlyRate, err = parseDecimal(hourly); err != nil {
			return nil, err
		}
		if r.MonthlySalary, err = parseDecimal(monthly); err != nil {
			return nil, err
		}
		r.EffectiveDate = parseDate(from)
		r.EndDate = parseNullDate(end)
		r.CreatedAt = parseTime(createdAt)
		rates = append(rates, r)
	}
	return rates, rows.Err()
}

// =============================================================================
// SHIFT STORE
// =============================================================================

// breakJSON is the stored form of a break.
type breakJSON struct {
	Start string  `json:"start"`
	End   *string `json:"end,omitempty"`
}

func (s *Store) PersistShift(ctx context.Context, sh domain.Shift) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	breaks := make([]breakJSON, len(sh.Breaks))
	for i, b := range sh.Breaks {
		breaks[i].Start = formatTime(b.Start)
		if b.End != nil {
			e := formatTime(*b.End)
			breaks[i].End = &e
		}
	}
	breaksJSON, err := json.Marshal(breaks)
	if err != nil {
		return fmt.Errorf("failed to encode breaks: %w", err)
	}

	var endAt sql.NullString
	if sh.End != nil {
		endAt = sql.NullString{String: formatTime(*sh.End), Valid: true}
	}
	updated := sh.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	query := `
		INSERT INTO shifts
		(id, org_id, worker_id, project_id, shift_type, start_at, end_at, breaks_json, sync_status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			shift_type = excluded.shift_type,
			start_at = excluded.start_at,
			end_at = excluded.end_at,
			breaks_json = excluded.breaks_json,
			sync_status = excluded.sync_status,
			updated_at = excluded.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		sh.ID, sh.OrgID, sh.WorkerID, nullString(string(sh.ProjectID)), sh.Type,
		formatTime(sh.Start), endAt, string(breaksJSON), sh.SyncStatus, formatTime(updated),
	)
	if err != nil {
		return fmt.Errorf("failed to persist shift: %w", err)
	}
	return nil
}

const shiftColumns = `id, org_id, worker_id, project_id, shift_type, start_at, end_at, breaks_json, sync_status, updated_at`

func (s *Store) GetShift(ctx context.Context, id domain.ShiftID) (domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sh, err := scanShift(s.db.QueryRowContext(ctx, "SELECT "+shiftColumns+" FROM shifts WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Shift{}, &domain.NotFoundError{Kind: "shift", ID: string(id)}
	}
	return sh, err
}

// ActiveShift returns the latest unended shift of the worker, or nil.
func (s *Store) ActiveShift(ctx context.Context, workerID domain.WorkerID) (*domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + shiftColumns + ` FROM shifts
		WHERE worker_id = ? AND end_at IS NULL
		ORDER BY start_at DESC
		LIMIT 1`
	sh, err := scanShift(s.db.QueryRowContext(ctx, query, workerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

func scanShift(row scanner) (domain.Shift, error) {
	var (
		sh         domain.Shift
		projectID  sql.NullString
		startAt    string
		endAt      sql.NullString
		breaksJSON string
		updatedAt  string
	)
	err := row.Scan(&sh.ID, &sh.OrgID, &sh.WorkerID, &projectID, &sh.Type,
		&startAt, &endAt, &breaksJSON, &sh.SyncStatus, &updatedAt)
	if err != nil {
		return sh, err
	}
	sh.ProjectID = domain.ProjectID(projectID.String)
	sh.Start = parseTime(startAt)
	if endAt.Valid {
		e := parseTime(endAt.String)
		sh.End = &e
	}
	sh.UpdatedAt = parseTime(updatedAt)

	var breaks []breakJSON
	if err := json.Unmarshal([]byte(breaksJSON), &breaks); err != nil {
		return sh, fmt.Errorf("failed to decode breaks of shift %s: %w", sh.ID, err)
	}
	for _, b := range breaks {
		br := domain.Break{Start: parseTime(b.Start)}
		if b.End != nil {
			e := parseTime(*b.End)
			br.End = &e
		}
		sh.Breaks = append(sh.Breaks, br)
	}
	return sh, nil
}

// =============================================================================
// TIME SHEET STORE
// =============================================================================

func (s *Store) PersistTimeSheetEntry(ctx context.Context, e domain.TimeSheetEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO timesheet_entries
		(id, worker_id, project_id, shift_id, work_date, hours, note, location, sync_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			work_date = excluded.work_date,
			hours = excluded.hours,
			note = excluded.note,
			location = excluded.location,
			sync_status = excluded.sync_status
	`
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.WorkerID, nullString(string(e.ProjectID)), nullString(string(e.ShiftID)),
		e.WorkDate.String(), e.Hours.String(), nullString(e.Note), nullString(e.Location),
		e.SyncStatus, formatTime(created),
	)
	if err != nil {
		return fmt.Errorf("failed to persist time sheet entry: %w", err)
	}
	return nil
}

func (s *Store) ListTimeSheetEntries(ctx context.Context, workerID domain.WorkerID, from, to domain.Date) ([]domain.TimeSheetEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, worker_id, project_id, shift_id, work_date, hours, note, location, sync_status, created_at
		FROM timesheet_entries
		WHERE worker_id = ? AND work_date >= ? AND work_date <= ?
		ORDER BY work_date ASC, created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, workerID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query time sheet entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.TimeSheetEntry
	for rows.Next() {
		var (
			e                                  domain.TimeSheetEntry
			projectID, shiftID, note, location sql.NullString
			workDate, hours, createdAt         string
		)
		if err := rows.Scan(&e.ID, &e.WorkerID, &projectID, &shiftID, &workDate, &hours,
			&note, &location, &e.SyncStatus, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan time sheet entry: %w", err)
		}
		e.ProjectID = domain.ProjectID(projectID.String)
		e.ShiftID = domain.ShiftID(shiftID.String)
		e.WorkDate = parseDate(workDate)
		if e.Hours, err = parseDecimal(hours); err != nil {
			return nil, err
		}
		e.Note = note.String
		e.Location = location.String
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// PHASE STORE
// =============================================================================

func (s *Store) SaveProject(ctx context.Context, p domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO projects (id, org_id, name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			org_id = excluded.org_id,
			name = excluded.name
	`
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx, query, p.ID, p.OrgID, p.Name, formatTime(created))
	if err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}
	return nil
}

func (s *Store) GetProject(ctx context.Context, id domain.ProjectID) (domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := scanProject(s.db.QueryRowContext(ctx,
		"SELECT id, org_id, name, created_at FROM projects WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Project{}, &domain.NotFoundError{Kind: "project", ID: string(id)}
	}
	return p, err
}

func (s *Store) ListProjects(ctx context.Context) ([]domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, org_id, name, created_at FROM projects ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func scanProject(row scanner) (domain.Project, error) {
	var (
		p         domain.Project
		createdAt string
	)
	if err := row.Scan(&p.ID, &p.OrgID, &p.Name, &createdAt); err != nil {
		return p, err
	}
	p.CreatedAt = parseTime(createdAt)
	return p, nil
}

func (s *Store) SavePhase(ctx context.Context, p domain.Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO phases (id, project_id, name, status, start_date, end_date, progress, budget)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			name = excluded.name,
			status = excluded.status,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			progress = excluded.progress,
			budget = excluded.budget
	`
	var budget sql.NullString
	if p.Budget != nil {
		budget = sql.NullString{String: p.Budget.String(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.ProjectID, p.Name, p.Status,
		nullDate(p.StartDate), nullDate(p.EndDate), p.Progress, budget,
	)
	if err != nil {
		return fmt.Errorf("failed to save phase: %w", err)
	}
	return nil
}

const phaseColumns = `id, project_id, name, status, start_date, end_date, progress, budget`

func (s *Store) GetPhase(ctx context.Context, id domain.PhaseID) (domain.Phase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := scanPhase(s.db.QueryRowContext(ctx, "SELECT "+phaseColumns+" FROM phases WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Phase{}, &domain.NotFoundError{Kind: "phase", ID: string(id)}
	}
	return p, err
}

// ListPhases orders phases by start date; undated phases go last.
func (s *Store) ListPhases(ctx context.Context, projectID domain.ProjectID) ([]domain.Phase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + phaseColumns + ` FROM phases
		WHERE project_id = ?
		ORDER BY start_date IS NULL, start_date, id`
	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query phases: %w", err)
	}
	defer rows.Close()

	var phases []domain.Phase
	for rows.Next() {
		p, err := scanPhase(rows)
		if err != nil {
			return nil, err
		}
		phases = append(phases, p)
	}
	return phases, rows.Err()
}

func scanPhase(row scanner) (domain.Phase, error) {
	var (
		p          domain.Phase
		start, end sql.NullString
		budget     sql.NullString
	)
	if err := row.Scan(&p.ID, &p.ProjectID, &p.Name, &p.Status, &start, &end, &p.Progress, &budget); err != nil {
		return p, err
	}
	p.StartDate = parseNullDate(start)
	p.EndDate = parseNullDate(end)
	if budget.Valid {
		b, err := parseDecimal(budget.String)
		if err != nil {
			return p, err
		}
		p.Budget = &b
	}
	return p, nil
}

// =============================================================================
// COST LINE STORE
// =============================================================================

func (s *Store) SaveMaterial(ctx context.Context, l domain.MaterialLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO material_lines (id, phase_id, name, unit, quantity, unit_cost, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			unit = excluded.unit,
			quantity = excluded.quantity,
			unit_cost = excluded.unit_cost,
			status = excluded.status
	`
	_, err := s.db.ExecContext(ctx, query,
		l.ID, l.PhaseID, l.Name, nullString(l.Unit), l.Quantity.String(), l.UnitCost.String(), l.Status)
	if err != nil {
		return fmt.Errorf("failed to save material line: %w", err)
	}
	return nil
}

func (s *Store) ListMaterials(ctx context.Context, phaseID domain.PhaseID) ([]domain.MaterialLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, phase_id, name, unit, quantity, unit_cost, status FROM material_lines WHERE phase_id = ? ORDER BY rowid",
		phaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query material lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.MaterialLine
	for rows.Next() {
		var (
			l              domain.MaterialLine
			unit           sql.NullString
			quantity, cost string
		)
		if err := rows.Scan(&l.ID, &l.PhaseID, &l.Name, &unit, &quantity, &cost, &l.Status); err != nil {
			return nil, fmt.Errorf("failed to scan material line: %w", err)
		}
		l.Unit = unit.String
		if l.Quantity, err = parseDecimal(quantity); err != nil {
			return nil, err
		}
		if l.UnitCost, err = parseDecimal(cost); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (s *Store) SaveLabor(ctx context.Context, l domain.LaborLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO labor_lines
		(id, phase_id, worker_id, work_date, pricing_type, hours_planned, hours_actual, hourly_rate, fixed_price)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			worker_id = excluded.worker_id,
			work_date = excluded.work_date,
			pricing_type = excluded.pricing_type,
			hours_planned = excluded.hours_planned,
			hours_actual = excluded.hours_actual,
			hourly_rate = excluded.hourly_rate,
			fixed_price = excluded.fixed_price
	`
	var workDate sql.NullString
	if !l.WorkDate.IsZero() {
		workDate = sql.NullString{String: l.WorkDate.String(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query,
		l.ID, l.PhaseID, nullString(string(l.WorkerID)), workDate, l.PricingType,
		l.HoursPlanned.String(), l.HoursActual.String(), l.HourlyRate.String(), l.FixedPrice.String())
	if err != nil {
		return fmt.Errorf("failed to save labor line: %w", err)
	}
	return nil
}

func (s *Store) ListLabor(ctx context.Context, phaseID domain.PhaseID) ([]domain.LaborLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, phase_id, worker_id, work_date, pricing_type, hours_planned, hours_actual, hourly_rate, fixed_price
		FROM labor_lines WHERE phase_id = ? ORDER BY rowid
	`
	rows, err := s.db.QueryContext(ctx, query, phaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query labor lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.LaborLine
	for rows.Next() {
		var (
			l                                domain.LaborLine
			workerID, workDate               sql.NullString
			planned, actual, rate, fixedCost string
		)
		if err := rows.Scan(&l.ID, &l.PhaseID, &workerID, &workDate, &l.PricingType,
			&planned, &actual, &rate, &fixedCost); err != nil {
			return nil, fmt.Errorf("failed to scan labor line: %w", err)
		}
		l.WorkerID = domain.WorkerID(workerID.String)
		if d := parseNullDate(workDate); d != nil {
			l.WorkDate = *d
		}
		if l.HoursPlanned, err = parseDecimal(planned); err != nil {
			return nil, err
		}
		if l.HoursActual, err = parseDecimal(actual); err != nil {
			return nil, err
		}
		if l.HourlyRate, err = parseDecimal(rate); err != nil {
			return nil, err
		}
		if l.FixedPrice, err = parseDecimal(fixedCost); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (s *Store) SaveExpense(ctx context.Context, l domain.ExpenseLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO expense_lines (id, phase_id, description, amount, expense_date, status)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			description = excluded.description,
			amount = excluded.amount,
			expense_date = excluded.expense_date,
			status = excluded.status
	`
	var day sql.NullString
	if !l.Date.IsZero() {
		day = sql.NullString{String: l.Date.String(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query,
		l.ID, l.PhaseID, nullString(l.Description), l.Amount.String(), day, l.Status)
	if err != nil {
		return fmt.Errorf("failed to save expense line: %w", err)
	}
	return nil
}

func (s *Store) ListExpenses(ctx context.Context, phaseID domain.PhaseID) ([]domain.ExpenseLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, phase_id, description, amount, expense_date, status FROM expense_lines WHERE phase_id = ? ORDER BY rowid",
		phaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query expense lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.ExpenseLine
	for rows.Next() {
		var (
			l                domain.ExpenseLine
			description, day sql.NullString
			amount           string
		)
		if err := rows.Scan(&l.ID, &l.PhaseID, &description, &amount, &day, &l.Status); err != nil {
			return nil, fmt.Errorf("failed to scan expense line: %w", err)
		}
		l.Description = description.String
		if l.Amount, err = parseDecimal(amount); err != nil {
			return nil, err
		}
		if d := parseNullDate(day); d != nil {
			l.Date = *d
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// =============================================================================
// OVERTIME POLICY STORE (factory.PolicyStore interface)
// =============================================================================

// PolicyRecord is a stored overtime policy with its JSON config.
type PolicyRecord struct {
	OrgID      domain.OrgID
	ConfigJSON string
	Version    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SaveOvertimePolicy stores the policy of an organization, bumping its version.
func (s *Store) SaveOvertimePolicy(ctx context.Context, orgID domain.OrgID, configJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO overtime_policies (org_id, config_json, version, created_at, updated_at)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(org_id) DO UPDATE SET
			config_json = excluded.config_json,
			version = overtime_policies.version + 1,
			updated_at = excluded.updated_at
	`
	now := formatTime(time.Now())
	if _, err := s.db.ExecContext(ctx, query, orgID, configJSON, now, now); err != nil {
		return fmt.Errorf("failed to save overtime policy: %w", err)
	}
	return nil
}

func (s *Store) GetOvertimePolicy(ctx context.Context, orgID domain.OrgID) (string, error) {
	rec, err := s.GetOvertimePolicyRecord(ctx, orgID)
	if err != nil {
		return "", err
	}
	return rec.ConfigJSON, nil
}

func (s *Store) GetOvertimePolicyRecord(ctx context.Context, orgID domain.OrgID) (*PolicyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		p                    PolicyRecord
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT org_id, config_json, version, created_at, updated_at FROM overtime_policies WHERE org_id = ?",
		orgID,
	).Scan(&p.OrgID, &p.ConfigJSON, &p.Version, &createdAt, &updatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Kind: "overtime policy", ID: string(orgID)}
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"workers", "worker_rates", "shifts", "timesheet_entries", "projects", "phases",
		"material_lines", "labor_lines", "expense_lines", "overtime_policies",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDate(d *domain.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func formatTime(t time.Time) string { return t.UTC().Format(tsLayout) }

func parseTime(s string) time.Time {
	t, err := time.Parse(tsLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func parseDate(s string) domain.Date {
	d, _ := domain.ParseDate(strings.TrimSpace(s))
	return d
}

func parseNullDate(s sql.NullString) *domain.Date {
	if !s.Valid || s.String == "" {
		return nil
	}
	d := parseDate(s.String)
	return &d
}

// parseDecimal fails on corrupt values; reading them as zero would
// understate pay and cost totals.
func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("corrupt decimal %q: %w", s, err)
	}
	return d, nil
}
