package generic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/entitlement-engine/generic"
)

func vacationPolicy() generic.LeavePolicy {
	return generic.LeavePolicy{
		ID:                "vl-standard",
		LeaveTypeID:       "vl",
		LeaveType:         "Vacation Leave",
		CycleLengthYears:  1,
		CarryLimit:        generic.NewDays(10),
		AnnualEntitlement: generic.NewDays(15),
		IsActive:          true,
		Eligibility: generic.EligibilityRules{
			MinTenureMonths: 6,
			AllowedStatuses: []generic.EmployeeStatus{generic.StatusRegular, generic.StatusProbationary},
		},
	}
}

// =============================================================================
// ELIGIBILITY EVALUATOR
// =============================================================================

func TestIsEmployeeEligible_AnchorAfterReferenceIsNotYetTenured(t *testing.T) {
	// GIVEN: an employee hired 2024-06-01
	// WHEN: evaluated against the 2024 cutoff start 2024-01-01
	// THEN: ineligible, because the employee was not yet hired

	policy := vacationPolicy()
	res := policy.IsEmployeeEligible(
		generic.NewTimePoint(2024, time.June, 1), "REGULAR", generic.NewTimePoint(2024, time.January, 1))

	assert.False(t, res.Eligible)
	assert.Contains(t, res.Reason, "not yet tenured")
}

func TestIsEmployeeEligible_UnknownAnchorIsIneligible(t *testing.T) {
	// GIVEN: a regular employee with neither hire nor regularization date
	emp := generic.Employee{ID: "emp-x", Status: generic.StatusRegular, IsActive: true}
	policy := vacationPolicy()
	policy.Eligibility.MinTenureMonths = 12

	// WHEN: evaluated against 2025-01-01
	res := policy.IsEmployeeEligible(emp.AnchorDate(), string(emp.Status), generic.NewTimePoint(2025, time.January, 1))

	// THEN: tenure cannot be known, so the employee is not eligible
	assert.False(t, res.Eligible)
	assert.Contains(t, res.Reason, "no hire or regularization date")

	// AND: the same holds for a policy without a tenure rule
	policy.Eligibility.MinTenureMonths = 0
	assert.False(t, policy.IsEmployeeEligible(emp.AnchorDate(), "REGULAR", generic.NewTimePoint(2025, time.January, 1)).Eligible)
}

func TestIsEmployeeEligible(t *testing.T) {
	ref := generic.NewTimePoint(2024, time.January, 1)

	tests := []struct {
		name       string
		policy     func(p *generic.LeavePolicy)
		anchor     generic.TimePoint
		status     string
		want       bool
		wantReason string
	}{
		{
			name:   "regular with enough tenure",
			anchor: generic.NewTimePoint(2020, time.March, 1),
			status: "REGULAR",
			want:   true,
		},
		{
			name:   "status is case insensitive",
			anchor: generic.NewTimePoint(2020, time.March, 1),
			status: " probationary ",
			want:   true,
		},
		{
			name:       "unknown status",
			anchor:     generic.NewTimePoint(2020, time.March, 1),
			status:     "INTERN",
			wantReason: "invalid employee status",
		},
		{
			name:       "empty status",
			anchor:     generic.NewTimePoint(2020, time.March, 1),
			status:     "",
			wantReason: "invalid employee status",
		},
		{
			name:       "status not allowed",
			anchor:     generic.NewTimePoint(2020, time.March, 1),
			status:     "CONTRACTUAL",
			wantReason: "not eligible",
		},
		{
			name:       "tenure one day short",
			anchor:     generic.NewTimePoint(2023, time.July, 2),
			status:     "REGULAR",
			wantReason: "below the required 6",
		},
		{
			name:   "tenure exactly reached",
			anchor: generic.NewTimePoint(2023, time.July, 1),
			status: "REGULAR",
			want:   true,
		},
		{
			name:   "anchor on reference date without tenure rule",
			policy: func(p *generic.LeavePolicy) { p.Eligibility = generic.EligibilityRules{} },
			anchor: ref,
			status: "CONTRACTUAL",
			want:   true,
		},
		{
			name:       "separated employees excluded by default",
			policy:     func(p *generic.LeavePolicy) { p.Eligibility = generic.EligibilityRules{} },
			anchor:     generic.NewTimePoint(2020, time.March, 1),
			status:     "RESIGNED",
			wantReason: "RESIGNED",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := vacationPolicy()
			if tt.policy != nil {
				tt.policy(&policy)
			}

			res := policy.IsEmployeeEligible(tt.anchor, tt.status, ref)

			assert.Equal(t, tt.want, res.Eligible, res.Reason)
			if tt.want {
				assert.Empty(t, res.Reason)
			} else {
				assert.Contains(t, res.Reason, tt.wantReason)
			}
		})
	}
}

func TestIsEmployeeEligible_IsDeterministic(t *testing.T) {
	policy := vacationPolicy()
	anchor := generic.NewTimePoint(2023, time.September, 1)
	ref := generic.NewTimePoint(2024, time.January, 1)

	first := policy.IsEmployeeEligible(anchor, "REGULAR", ref)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, policy.IsEmployeeEligible(anchor, "REGULAR", ref))
	}
}

func TestLeavePolicy_Validate(t *testing.T) {
	require.NoError(t, vacationPolicy().Validate())

	p := vacationPolicy()
	p.CycleLengthYears = 0
	assert.ErrorIs(t, p.Validate(), generic.ErrInvalidCycleLength)

	p = vacationPolicy()
	p.CarryLimit = generic.NewDays(-1)
	assert.Error(t, p.Validate())

	p = vacationPolicy()
	p.AnnualEntitlement = generic.NewDays(-0.5)
	assert.Error(t, p.Validate())

	p = vacationPolicy()
	p.LeaveTypeID = ""
	assert.Error(t, p.Validate())
}

func TestEmployee_AnchorDatePrefersRegularization(t *testing.T) {
	hire := generic.NewTimePoint(2012, time.June, 1)
	reg := generic.NewTimePoint(2013, time.January, 1)

	emp := generic.Employee{HireDate: hire}
	assert.Equal(t, hire, emp.AnchorDate())

	emp.RegularizationDate = &reg
	assert.Equal(t, reg, emp.AnchorDate())
}
