/*
Package scenario seeds a repository with demo and fixture data.

PURPOSE:
  Populates workers, rates, time sheets, projects, phases, cost lines and
  overtime policies from a YAML document, so the API and crewctl can be
  demonstrated and tested against realistic data.

AVAILABLE SCENARIOS (builtin/*.yaml):
  crew-week:    Hourly carpenter crossing 40h, salaried foreman, a project
                with a budgeted and an unbudgeted phase
  rate-change:  Hourly rate raised mid-week, entries before the first rate
                (earnings unavailable), a project without dated phases

HOW SCENARIOS WORK:
 1. Parse YAML (Parse / LoadFile) or pick a built-in (Get)
 2. Load writes policies, workers, rates (through rates.Resolver.Add so
    supersession and overlap checks apply), entries and projects
 3. Callers reset the repository first when they want a clean slate

YAML SCHEMA:
  See builtin/crew-week.yaml. Amounts and hours are decimals, dates are
  quoted "YYYY-MM-DD" strings.

SEE ALSO:
  - load.go: Load
  - api/scenarios.go: HTTP endpoints
  - cmd/crewctl: seed command
*/
package scenario

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// YAML DOCUMENT
// =============================================================================

// Scenario is one seed document.
type Scenario struct {
	ID          string       `yaml:"id" json:"id"`
	Name        string       `yaml:"name" json:"name"`
	Description string       `yaml:"description" json:"description"`
	Category    string       `yaml:"category" json:"category"`
	Policies    []PolicyDoc  `yaml:"policies" json:"-"`
	Workers     []WorkerDoc  `yaml:"workers" json:"-"`
	Projects    []ProjectDoc `yaml:"projects" json:"-"`
}

type PolicyDoc struct {
	OrgID                string           `yaml:"org_id"`
	ID                   string           `yaml:"id"`
	Name                 string           `yaml:"name"`
	WeeklyThresholdHours *decimal.Decimal `yaml:"weekly_threshold_hours"`
	OvertimeMultiplier   *decimal.Decimal `yaml:"overtime_multiplier"`
}

type WorkerDoc struct {
	ID         string     `yaml:"id"`
	OrgID      string     `yaml:"org_id"`
	Name       string     `yaml:"name"`
	Email      string     `yaml:"email"`
	Rates      []RateDoc  `yaml:"rates"`
	Timesheets []EntryDoc `yaml:"timesheets"`
}

type RateDoc struct {
	ID            string          `yaml:"id"`
	Type          string          `yaml:"type"`
	HourlyRate    decimal.Decimal `yaml:"hourly_rate"`
	MonthlySalary decimal.Decimal `yaml:"monthly_salary"`
	From          string          `yaml:"from"`
	Until         string          `yaml:"until"`
}

type EntryDoc struct {
	ID       string          `yaml:"id"`
	Date     string          `yaml:"date"`
	Hours    decimal.Decimal `yaml:"hours"`
	Project  string          `yaml:"project"`
	Note     string          `yaml:"note"`
	Location string          `yaml:"location"`
}

type ProjectDoc struct {
	ID     string     `yaml:"id"`
	OrgID  string     `yaml:"org_id"`
	Name   string     `yaml:"name"`
	Phases []PhaseDoc `yaml:"phases"`
}

type PhaseDoc struct {
	ID        string           `yaml:"id"`
	Name      string           `yaml:"name"`
	Status    string           `yaml:"status"`
	Start     string           `yaml:"start"`
	End       string           `yaml:"end"`
	Progress  int              `yaml:"progress"`
	Budget    *decimal.Decimal `yaml:"budget"`
	Materials []MaterialDoc    `yaml:"materials"`
	Labor     []LaborDoc       `yaml:"labor"`
	Expenses  []ExpenseDoc     `yaml:"expenses"`
}

type MaterialDoc struct {
	ID       string          `yaml:"id"`
	Name     string          `yaml:"name"`
	Unit     string          `yaml:"unit"`
	Quantity decimal.Decimal `yaml:"quantity"`
	UnitCost decimal.Decimal `yaml:"unit_cost"`
	Status   string          `yaml:"status"`
}

type LaborDoc struct {
	ID           string          `yaml:"id"`
	Worker       string          `yaml:"worker"`
	Date         string          `yaml:"date"`
	Pricing      string          `yaml:"pricing"`
	HoursPlanned decimal.Decimal `yaml:"hours_planned"`
	HoursActual  decimal.Decimal `yaml:"hours_actual"`
	HourlyRate   decimal.Decimal `yaml:"hourly_rate"`
	FixedPrice   decimal.Decimal `yaml:"fixed_price"`
}

type ExpenseDoc struct {
	ID          string          `yaml:"id"`
	Description string          `yaml:"description"`
	Amount      decimal.Decimal `yaml:"amount"`
	Date        string          `yaml:"date"`
	Status      string          `yaml:"status"`
}

// =============================================================================
// PARSING
// =============================================================================

// Parse decodes a YAML scenario. Unknown fields are rejected so a typo in
// a fixture fails loudly instead of silently seeding zeros.
func Parse(data []byte) (Scenario, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Scenario{}, fmt.Errorf("scenario: document is empty")
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return Scenario{}, fmt.Errorf("scenario: decode: %w", err)
	}
	if sc.ID == "" {
		return Scenario{}, fmt.Errorf("scenario: id is required")
	}
	return sc, nil
}

// LoadFile reads and parses a YAML scenario from disk.
func LoadFile(filePath string) (Scenario, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Scenario{}, fmt.Errorf("scenario: read %s: %w", filePath, err)
	}
	sc, err := Parse(data)
	if err != nil {
		return Scenario{}, fmt.Errorf("%s: %w", filePath, err)
	}
	return sc, nil
}

// =============================================================================
// BUILT-INS
// =============================================================================

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Builtins returns the embedded scenarios sorted by id.
func Builtins() ([]Scenario, error) {
	files, err := builtinFS.ReadDir("builtin")
	if err != nil {
		return nil, err
	}
	out := make([]Scenario, 0, len(files))
	for _, f := range files {
		data, err := builtinFS.ReadFile(path.Join("builtin", f.Name()))
		if err != nil {
			return nil, err
		}
		sc, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("builtin %s: %w", f.Name(), err)
		}
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Get returns the built-in scenario with the given id.
func Get(id string) (Scenario, bool) {
	all, err := Builtins()
	if err != nil {
		return Scenario{}, false
	}
	for _, sc := range all {
		if sc.ID == id {
			return sc, true
		}
	}
	return Scenario{}, false
}
