/*
Package factory provides JSON to Go overtime policy conversion.

PURPOSE:
  Converts JSON overtime policy definitions into earnings.Policy values, and
  serves them per organization. Payroll rules differ between jurisdictions
  and collective agreements; storing them as JSON lets an administrator
  change them without a release.

JSON SCHEMA:
  {
    "id": "eu-38h",
    "name": "38 hour week, double time",
    "weekly_threshold_hours": 38,
    "overtime_multiplier": 2
  }

  Numbers may also be given as strings ("1.5"). Missing fields fall back to
  the default policy (40 hours, 1.5x).

USAGE:
  f := NewPolicyFactory()
  p, err := f.ParsePolicy(StandardOvertimeJSON("std", "Standard"))

  // Per organization, backed by the store
  reg := NewRegistry(store, earnings.DefaultPolicy())
  policy, err := reg.PolicyFor(ctx, orgID)

SEE ALSO:
  - earnings/policy.go: Policy and Compute
  - store/sqlite/sqlite.go: overtime_policies table
*/
package factory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/warp/crew-engine/domain"
	"github.com/warp/crew-engine/earnings"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PolicyJSON is the JSON representation of an overtime policy.
type PolicyJSON struct {
	ID                   string           `json:"id"`
	Name                 string           `json:"name"`
	WeeklyThresholdHours *decimal.Decimal `json:"weekly_threshold_hours,omitempty"`
	OvertimeMultiplier   *decimal.Decimal `json:"overtime_multiplier,omitempty"`
}

// OvertimePolicy is a parsed, validated policy with its identity.
type OvertimePolicy struct {
	ID   string
	Name string
	earnings.Policy
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts JSON policies to Go structs.
type PolicyFactory struct {
	defaults earnings.Policy
}

func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{defaults: earnings.DefaultPolicy()}
}

// ParsePolicy parses and validates a JSON policy.
func (f *PolicyFactory) ParsePolicy(jsonStr string) (*OvertimePolicy, error) {
	var pj PolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, fmt.Errorf("failed to parse overtime policy JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON fills missing fields from the defaults and validates the result.
func (f *PolicyFactory) FromJSON(pj PolicyJSON) (*OvertimePolicy, error) {
	p := &OvertimePolicy{ID: pj.ID, Name: pj.Name, Policy: f.defaults}
	if pj.WeeklyThresholdHours != nil {
		p.WeeklyThreshold = *pj.WeeklyThresholdHours
	}
	if pj.OvertimeMultiplier != nil {
		p.OvertimeMultiplier = *pj.OvertimeMultiplier
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// ToJSON converts a policy back to its JSON form.
func (f *PolicyFactory) ToJSON(p OvertimePolicy) PolicyJSON {
	threshold, multiplier := p.WeeklyThreshold, p.OvertimeMultiplier
	return PolicyJSON{
		ID:                   p.ID,
		Name:                 p.Name,
		WeeklyThresholdHours: &threshold,
		OvertimeMultiplier:   &multiplier,
	}
}

// StandardOvertimeJSON is the 40h / 1.5x preset.
func StandardOvertimeJSON(id, name string) string {
	return OvertimeJSON(id, name, decimal.NewFromInt(40), decimal.RequireFromString("1.5"))
}

// OvertimeJSON renders a policy definition.
func OvertimeJSON(id, name string, thresholdHours, multiplier decimal.Decimal) string {
	b, _ := json.Marshal(PolicyJSON{
		ID:                   id,
		Name:                 name,
		WeeklyThresholdHours: &thresholdHours,
		OvertimeMultiplier:   &multiplier,
	})
	return string(b)
}

// =============================================================================
// REGISTRY - Per-organization lookup
// =============================================================================

// PolicyStore returns the raw JSON policy of an organization. A missing
// policy is reported with an error matching domain.ErrEntityNotFound.
type PolicyStore interface {
	GetOvertimePolicy(ctx context.Context, orgID domain.OrgID) (string, error)
}

// Registry implements earnings.PolicyProvider. Parsed policies are cached
// by their JSON text so an edit in the store is picked up on the next call.
type Registry struct {
	store    PolicyStore
	factory  *PolicyFactory
	fallback earnings.Policy

	mu     sync.Mutex
	parsed map[string]earnings.Policy
}

var _ earnings.PolicyProvider = (*Registry)(nil)

func NewRegistry(store PolicyStore, fallback earnings.Policy) *Registry {
	return &Registry{
		store:    store,
		factory:  NewPolicyFactory(),
		fallback: fallback,
		parsed:   make(map[string]earnings.Policy),
	}
}

// PolicyFor returns the organization's policy, or the fallback when the
// organization has none.
func (r *Registry) PolicyFor(ctx context.Context, orgID domain.OrgID) (earnings.Policy, error) {
	if orgID == "" || r.store == nil {
		return r.fallback, nil
	}
	raw, err := r.store.GetOvertimePolicy(ctx, orgID)
	if domain.IsNotFound(err) {
		return r.fallback, nil
	}
	if err != nil {
		return earnings.Policy{}, fmt.Errorf("load overtime policy for org %s: %w", orgID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.parsed[raw]; ok {
		return p, nil
	}
	p, err := r.factory.ParsePolicy(raw)
	if err != nil {
		return earnings.Policy{}, fmt.Errorf("org %s: %w", orgID, err)
	}
	r.parsed[raw] = p.Policy
	return p.Policy, nil
}
