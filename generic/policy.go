/*
policy.go - Leave policies and the eligibility evaluator

PURPOSE:
  Defines the rules that govern one leave type: how many days are earned
  per leave year, how many unused days may carry forward, how long an
  entitlement cycle lasts, and who is eligible at all. A LeavePolicy is
  looked up fresh for every run and never mutated during evaluation.

KEY CONCEPTS:
  - LeavePolicy: The complete ruleset for a leave type
  - EligibilityRules: Minimum tenure and allowed employee statuses
  - EligibilityResult: Eligible flag plus a human-readable reason

ELIGIBILITY:
  IsEmployeeEligible is a pure predicate. Checks run in this order and the
  first failing check wins:
  1. The status string must be a known employee status
  2. The anchor date must not be after the reference date (not yet tenured)
  3. The status must be allowed by the policy
  4. Completed months of tenure must reach MinTenureMonths

EXAMPLE:
  policy := LeavePolicy{
      LeaveType:         "Vacation Leave",
      CycleLengthYears:  1,
      CarryLimit:        NewDays(10),
      AnnualEntitlement: NewDays(15),
      Eligibility:       EligibilityRules{MinTenureMonths: 6},
  }
  res := policy.IsEmployeeEligible(hireDate, "REGULAR", cutoffStart)
*/
package generic

import (
	"fmt"
	"strings"
)

// =============================================================================
// LEAVE POLICY
// =============================================================================

type LeavePolicy struct {
	ID          PolicyID
	LeaveTypeID LeaveTypeID
	LeaveType   string // leave type name, denormalized for messages

	// Length of one entitlement cycle in years (>= 1)
	CycleLengthYears int

	// Maximum days carried from the previous leave year (>= 0)
	CarryLimit Days

	// Days earned per leave year (>= 0)
	AnnualEntitlement Days

	IsActive bool

	Eligibility EligibilityRules
}

// EligibilityRules restrict who may receive the policy's entitlement.
type EligibilityRules struct {
	// Completed months between anchor date and reference date
	MinTenureMonths int

	// Empty means every valid status except separated employees
	AllowedStatuses []EmployeeStatus
}

// Validate checks the numeric bounds of the policy.
func (p LeavePolicy) Validate() error {
	if p.LeaveTypeID == "" {
		return fmt.Errorf("policy %s: leave type is required", p.ID)
	}
	if p.CycleLengthYears < 1 {
		return fmt.Errorf("policy %s: %w", p.ID, ErrInvalidCycleLength)
	}
	if p.CarryLimit.IsNegative() {
		return fmt.Errorf("policy %s: carry limit must not be negative", p.ID)
	}
	if p.AnnualEntitlement.IsNegative() {
		return fmt.Errorf("policy %s: annual entitlement must not be negative", p.ID)
	}
	if p.Eligibility.MinTenureMonths < 0 {
		return fmt.Errorf("policy %s: minimum tenure must not be negative", p.ID)
	}
	return nil
}

// =============================================================================
// ELIGIBILITY EVALUATOR
// =============================================================================

type EligibilityResult struct {
	Eligible bool
	Reason   string
}

func eligible() EligibilityResult { return EligibilityResult{Eligible: true} }

func ineligible(format string, args ...any) EligibilityResult {
	return EligibilityResult{Eligible: false, Reason: fmt.Sprintf(format, args...)}
}

// IsEmployeeEligible decides whether an employee with the given anchor date
// and status qualifies for this policy as of referenceDate. It performs no
// I/O and is deterministic.
func (p LeavePolicy) IsEmployeeEligible(anchorDate TimePoint, status string, referenceDate TimePoint) EligibilityResult {
	parsed, err := ParseEmployeeStatus(status)
	if err != nil {
		return ineligible("invalid employee status %q", status)
	}

	if anchorDate.IsZero() {
		return ineligible("no hire or regularization date on record")
	}

	if anchorDate.After(referenceDate) {
		return ineligible("not yet tenured: anchor date %s is after reference date %s",
			anchorDate, referenceDate)
	}

	if !p.statusAllowed(parsed) {
		return ineligible("employee status %s is not eligible for %s (allowed: %s)",
			parsed, p.LeaveType, p.allowedStatusList())
	}

	if min := p.Eligibility.MinTenureMonths; min > 0 {
		tenure := MonthsBetween(anchorDate, referenceDate)
		if tenure < min {
			return ineligible("tenure of %d month(s) as of %s is below the required %d",
				tenure, referenceDate, min)
		}
	}

	return eligible()
}

func (p LeavePolicy) statusAllowed(status EmployeeStatus) bool {
	if len(p.Eligibility.AllowedStatuses) == 0 {
		return !status.IsSeparated()
	}
	for _, allowed := range p.Eligibility.AllowedStatuses {
		if allowed == status {
			return true
		}
	}
	return false
}

func (p LeavePolicy) allowedStatusList() string {
	statuses := p.Eligibility.AllowedStatuses
	if len(statuses) == 0 {
		for _, s := range knownStatuses {
			if !s.IsSeparated() {
				statuses = append(statuses, s)
			}
		}
	}
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
