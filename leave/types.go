// Package leave implements the leave entitlement orchestrators: the cycle
// manager and the balance generator. Both run every public operation inside
// a single transaction and iterate bulk work sequentially.
package leave

import (
	"time"

	"github.com/google/uuid"
	"github.com/warp/entitlement-engine/generic"
)

// =============================================================================
// INPUTS
// =============================================================================

type CreateCycleInput struct {
	EmployeeID generic.EmployeeID
	LeaveType  string // leave type name
	Year       *int   // base year; current year when nil
}

type SetupCyclesInput struct {
	BaseYear        *int
	ForceRegenerate bool
}

type CreateBalanceInput struct {
	EmployeeID generic.EmployeeID
	LeaveType  string
	PolicyID   generic.PolicyID // optional; the leave type's active policy when empty
	Year       string
}

type GenerateBalancesInput struct {
	Year            string
	ForceRegenerate bool
}

// =============================================================================
// RESULTS
// =============================================================================

// Skip reasons reported by bulk runs.
const (
	SkipIneligible        = generic.ReasonIneligible
	SkipBalanceExists     = generic.ReasonDuplicateBalance
	SkipActiveCycleExists = "active_cycle_exists"
	SkipCycleOverlap      = generic.ReasonOverlappingCycle
)

// SkipEntry explains why an employee/policy pair produced no new record.
// Skips are expected outcomes, not errors.
type SkipEntry struct {
	EmployeeID   generic.EmployeeID
	EmployeeName string
	LeaveType    string
	Reason       string
	Details      string
}

type GenerationResult struct {
	Year             string
	GeneratedCount   int
	RegeneratedCount int // subset of GeneratedCount rewritten in place
	SkippedCount     int
	SkippedEmployees []SkipEntry
}

func (r *GenerationResult) skip(e SkipEntry) {
	r.SkippedEmployees = append(r.SkippedEmployees, e)
	r.SkippedCount++
}

type CycleSetupResult struct {
	BaseYear     int
	CreatedCount int
	SkippedCount int
	Skipped      []SkipEntry
}

func (r *CycleSetupResult) skip(e SkipEntry) {
	r.Skipped = append(r.Skipped, e)
	r.SkippedCount++
}

// =============================================================================
// DEFAULTS
// =============================================================================

func defaultNow() generic.TimePoint { return generic.Today() }

func defaultID() string { return uuid.NewString() }

func wallClock() time.Time { return time.Now().UTC() }
