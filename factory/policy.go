/*
Package factory provides JSON to Go leave policy conversion.

PURPOSE:
  Converts JSON policy definitions into generic.LeavePolicy values. HR can
  define policies in JSON (admin API, scenario files, database rows) and the
  factory produces validated Go structs.

JSON SCHEMA:
  {
    "id": "vl-standard",
    "leave_type_id": "vl",
    "leave_type": "Vacation Leave",
    "cycle_length_years": 1,
    "annual_entitlement": 15,
    "carry_limit": 10,
    "is_active": true,
    "eligibility": {
      "min_tenure_months": 6,
      "allowed_statuses": ["REGULAR", "PROBATIONARY"]
    }
  }

KEY FEATURES:
  - Numbers may be JSON numbers or strings ("15.5"); both decode exactly
  - cycle_length_years defaults to 1 when omitted
  - is_active defaults to true when omitted
  - Statuses are normalized and rejected when unknown
  - The result passes LeavePolicy.Validate

USAGE:
  f := factory.NewPolicyFactory()
  policy, err := f.ParsePolicy(leave.VacationLeaveJSON("vl-2024", "vl", "Vacation Leave", 15, 10, 1))

SEE ALSO:
  - generic/policy.go: LeavePolicy definition
  - leave/policies.go: Preset policy definitions
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/entitlement-engine/generic"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PolicyJSON is the JSON representation of a leave policy.
type PolicyJSON struct {
	ID                string           `json:"id"`
	LeaveTypeID       string           `json:"leave_type_id"`
	LeaveType         string           `json:"leave_type"`
	CycleLengthYears  *int             `json:"cycle_length_years,omitempty"` // 1 when omitted
	AnnualEntitlement decimal.Decimal  `json:"annual_entitlement"`
	CarryLimit        decimal.Decimal  `json:"carry_limit"`
	IsActive          *bool            `json:"is_active,omitempty"`
	Eligibility       *EligibilityJSON `json:"eligibility,omitempty"`
}

// EligibilityJSON represents eligibility rules.
type EligibilityJSON struct {
	MinTenureMonths int      `json:"min_tenure_months,omitempty"`
	AllowedStatuses []string `json:"allowed_statuses,omitempty"`
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts JSON policies to Go structs.
type PolicyFactory struct{}

func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{}
}

// ParsePolicy parses and validates a JSON policy definition.
func (f *PolicyFactory) ParsePolicy(jsonStr string) (*generic.LeavePolicy, error) {
	var pj PolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, fmt.Errorf("failed to parse policy JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts PolicyJSON to a validated generic.LeavePolicy.
func (f *PolicyFactory) FromJSON(pj PolicyJSON) (*generic.LeavePolicy, error) {
	if pj.ID == "" {
		return nil, fmt.Errorf("policy id is required")
	}

	policy := &generic.LeavePolicy{
		ID:                generic.PolicyID(pj.ID),
		LeaveTypeID:       generic.LeaveTypeID(pj.LeaveTypeID),
		LeaveType:         pj.LeaveType,
		CycleLengthYears:  1,
		AnnualEntitlement: pj.AnnualEntitlement,
		CarryLimit:        pj.CarryLimit,
		IsActive:          pj.IsActive == nil || *pj.IsActive,
	}
	if pj.CycleLengthYears != nil {
		policy.CycleLengthYears = *pj.CycleLengthYears
	}

	if pj.Eligibility != nil {
		rules, err := parseEligibility(*pj.Eligibility)
		if err != nil {
			return nil, fmt.Errorf("policy %s: %w", pj.ID, err)
		}
		policy.Eligibility = rules
	}

	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return policy, nil
}

// ToJSON converts a LeavePolicy to PolicyJSON.
func (f *PolicyFactory) ToJSON(policy *generic.LeavePolicy) PolicyJSON {
	active := policy.IsActive
	cycleLength := policy.CycleLengthYears
	pj := PolicyJSON{
		ID:                string(policy.ID),
		LeaveTypeID:       string(policy.LeaveTypeID),
		LeaveType:         policy.LeaveType,
		CycleLengthYears:  &cycleLength,
		AnnualEntitlement: policy.AnnualEntitlement,
		CarryLimit:        policy.CarryLimit,
		IsActive:          &active,
	}

	rules := policy.Eligibility
	if rules.MinTenureMonths > 0 || len(rules.AllowedStatuses) > 0 {
		pj.Eligibility = &EligibilityJSON{MinTenureMonths: rules.MinTenureMonths}
		for _, s := range rules.AllowedStatuses {
			pj.Eligibility.AllowedStatuses = append(pj.Eligibility.AllowedStatuses, string(s))
		}
	}
	return pj
}

// Marshal renders a policy as indented JSON.
func (f *PolicyFactory) Marshal(policy *generic.LeavePolicy) (string, error) {
	b, err := json.MarshalIndent(f.ToJSON(policy), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal policy %s: %w", policy.ID, err)
	}
	return string(b), nil
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseEligibility(ej EligibilityJSON) (generic.EligibilityRules, error) {
	rules := generic.EligibilityRules{MinTenureMonths: ej.MinTenureMonths}
	for _, raw := range ej.AllowedStatuses {
		status, err := generic.ParseEmployeeStatus(raw)
		if err != nil {
			return generic.EligibilityRules{}, err
		}
		rules.AllowedStatuses = append(rules.AllowedStatuses, status)
	}
	return rules, nil
}
