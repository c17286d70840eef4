package leave_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/warp/entitlement-engine/generic"
	"github.com/warp/entitlement-engine/generic/store"
	"github.com/warp/entitlement-engine/leave"
)

// =============================================================================
// TEST INFRASTRUCTURE
// =============================================================================
//
// Fixture:
//   emp-1 Ana Reyes  hired 2012-06-01, regularized 2013-01-01, REGULAR
//   emp-2 Ben Cruz   hired 2023-10-01, PROBATIONARY
//
//   vl-policy  Vacation Leave  5-year cycles, 15 days, carry 10,
//              6 months tenure, REGULAR or PROBATIONARY
//   sl-policy  Sick Leave      1-year cycles, 10 days, no carry, no rules
//
//   Leave years 2023, 2024, 2025 with January 1 cutoffs.
//   Clock fixed at 2025-03-01.
// =============================================================================

var fixedToday = generic.NewTimePoint(2025, time.March, 1)

func fixedClock() generic.TimePoint { return fixedToday }

func date(y int, m time.Month, d int) generic.TimePoint { return generic.NewTimePoint(y, m, d) }

func days(n float64) generic.Days { return generic.NewDays(n) }

func intPtr(v int) *int { return &v }

func vacationPolicy() generic.LeavePolicy {
	return generic.LeavePolicy{
		ID:                "vl-policy",
		LeaveTypeID:       "vl",
		LeaveType:         "Vacation Leave",
		CycleLengthYears:  5,
		CarryLimit:        days(10),
		AnnualEntitlement: days(15),
		IsActive:          true,
		Eligibility: generic.EligibilityRules{
			MinTenureMonths: 6,
			AllowedStatuses: []generic.EmployeeStatus{generic.StatusRegular, generic.StatusProbationary},
		},
	}
}

func sickPolicy() generic.LeavePolicy {
	return generic.LeavePolicy{
		ID:                "sl-policy",
		LeaveTypeID:       "sl",
		LeaveType:         "Sick Leave",
		CycleLengthYears:  1,
		CarryLimit:        days(0),
		AnnualEntitlement: days(10),
		IsActive:          true,
	}
}

func newFixture() *store.Memory {
	mem := store.NewMemory()

	reg := date(2013, time.January, 1)
	mem.SaveEmployee(generic.Employee{
		ID: "emp-1", Name: "Ana Reyes", HireDate: date(2012, time.June, 1),
		RegularizationDate: &reg, Status: generic.StatusRegular, IsActive: true,
	})
	mem.SaveEmployee(generic.Employee{
		ID: "emp-2", Name: "Ben Cruz", HireDate: date(2023, time.October, 1),
		Status: generic.StatusProbationary, IsActive: true,
	})

	mem.SaveLeaveType(generic.LeaveType{ID: "vl", Name: "Vacation Leave", IsActive: true})
	mem.SaveLeaveType(generic.LeaveType{ID: "sl", Name: "Sick Leave", IsActive: true})
	mem.SavePolicy(vacationPolicy())
	mem.SavePolicy(sickPolicy())

	for _, y := range []int{2023, 2024, 2025} {
		mem.SaveLeaveYear(generic.LeaveYear{
			Year:            yearLabel(y),
			CutoffStartDate: generic.StartOfYear(y),
			CutoffEndDate:   generic.EndOfYear(y),
		})
	}
	return mem
}

func yearLabel(y int) string { return strconv.Itoa(y) }

// recordingAudit keeps every entry it receives.
type recordingAudit struct {
	mu      sync.Mutex
	entries []generic.AuditEntry
	err     error
}

func (a *recordingAudit) Record(_ context.Context, e generic.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return a.err
}

func (a *recordingAudit) last() generic.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.entries[len(a.entries)-1]
}

func newCycleManager(mem *store.Memory, audit generic.AuditLog) *leave.CycleManager {
	return leave.NewCycleManager(mem, audit, nil).WithClock(fixedClock)
}

func newBalanceGenerator(mem *store.Memory, audit generic.AuditLog) *leave.BalanceGenerator {
	return leave.NewBalanceGenerator(mem, audit, nil).WithClock(fixedClock)
}

var errDiskFull = errors.New("disk full")

// balancesFor filters stored balances by employee, leave type and year.
func balancesFor(mem *store.Memory, emp generic.EmployeeID, lt generic.LeaveTypeID, year string) []generic.LeaveBalance {
	var out []generic.LeaveBalance
	for _, b := range mem.Balances() {
		if b.EmployeeID == emp && b.LeaveTypeID == lt && b.Year == year {
			out = append(out, b)
		}
	}
	return out
}

func skipReasons(entries []leave.SkipEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Reason
	}
	return out
}
