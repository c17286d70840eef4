package leave

import (
	"encoding/json"
)

// Preset policy definitions. They produce JSON rather than LeavePolicy values
// so they go through factory.ParsePolicy like any policy an admin would post:
//
//	jsonStr := leave.VacationLeaveJSON("vl-2024", "vl", "Vacation Leave", 15, 10, 1)
//	policy, err := factory.NewPolicyFactory().ParsePolicy(jsonStr)

// VacationLeaveJSON returns JSON for a vacation leave policy open to regular
// and probationary employees after six months.
func VacationLeaveJSON(id, leaveTypeID, name string, annualDays, carryLimit float64, cycleYears int) string {
	return presetJSON(map[string]interface{}{
		"id":                 id,
		"leave_type_id":      leaveTypeID,
		"leave_type":         name,
		"cycle_length_years": cycleYears,
		"annual_entitlement": annualDays,
		"carry_limit":        carryLimit,
		"is_active":          true,
		"eligibility": map[string]interface{}{
			"min_tenure_months": 6,
			"allowed_statuses":  []string{"REGULAR", "PROBATIONARY"},
		},
	})
}

// SickLeaveJSON returns JSON for a sick leave policy. Unused sick days do not
// carry over and every non-separated employee is eligible from day one.
func SickLeaveJSON(id, leaveTypeID, name string, annualDays float64) string {
	return presetJSON(map[string]interface{}{
		"id":                 id,
		"leave_type_id":      leaveTypeID,
		"leave_type":         name,
		"cycle_length_years": 1,
		"annual_entitlement": annualDays,
		"carry_limit":        0,
		"is_active":          true,
	})
}

// ServiceIncentiveLeaveJSON returns JSON for the statutory five-day service
// incentive leave: one year of service required, up to five days carried.
func ServiceIncentiveLeaveJSON(id, leaveTypeID, name string) string {
	return presetJSON(map[string]interface{}{
		"id":                 id,
		"leave_type_id":      leaveTypeID,
		"leave_type":         name,
		"cycle_length_years": 1,
		"annual_entitlement": 5,
		"carry_limit":        5,
		"is_active":          true,
		"eligibility": map[string]interface{}{
			"min_tenure_months": 12,
		},
	})
}

func presetJSON(pj map[string]interface{}) string {
	b, _ := json.MarshalIndent(pj, "", "  ")
	return string(b)
}
