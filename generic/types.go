/*
Package generic provides the core leave entitlement engine.

PURPOSE:
  This package contains the storage-agnostic types and pure calculations
  behind leave entitlements: who is eligible for a leave policy, which
  multi-year cycle window an employee falls into, and how many unused days
  carry forward into the next leave year.

KEY CONCEPTS IN THIS FILE (types.go):
  - Days: A decimal quantity of leave days
  - Employee: The read-only employee view the engine needs (anchor date, status)
  - LeaveType: A named kind of leave (Vacation, Sick, ...)
  - LeaveCycle / LeaveBalance: The records the engine generates

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point drift on balances
  2. Type Safety: Strong typing for IDs prevents mixing employee/policy IDs
  3. Purity: Calculators in this package never perform I/O
  4. Auditability: Generated rows never disappear; closure is a status change

USAGE:
  emp := generic.Employee{
      ID:       "emp-001",
      HireDate: generic.NewTimePoint(2013, time.March, 1),
      Status:   generic.StatusRegular,
  }
  window, _ := generic.CycleWindowFor(emp.AnchorDate().Year(), 5, 2025)

SEE ALSO:
  - policy.go: LeavePolicy and the eligibility evaluator
  - period.go: Cycle window calculator
  - balance.go: Carry-over calculator
  - store.go: Repository interfaces consumed by the orchestrators
*/
package generic

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DAYS - Decimal quantity of leave
// =============================================================================

// Days is an amount of leave in days.
type Days = decimal.Decimal

func NewDays(value float64) Days { return decimal.NewFromFloat(value) }

func NewDaysFromInt(value int) Days { return decimal.NewFromInt(int64(value)) }

func MustParseDays(s string) Days {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type LeaveTypeID string
type PolicyID string
type CycleID string
type BalanceID string

// =============================================================================
// EMPLOYEE - External entity, read-only to the engine
// =============================================================================

type EmployeeStatus string

const (
	StatusRegular      EmployeeStatus = "REGULAR"
	StatusProbationary EmployeeStatus = "PROBATIONARY"
	StatusContractual  EmployeeStatus = "CONTRACTUAL"
	StatusProjectBased EmployeeStatus = "PROJECT_BASED"
	StatusResigned     EmployeeStatus = "RESIGNED"
	StatusTerminated   EmployeeStatus = "TERMINATED"
)

var knownStatuses = []EmployeeStatus{
	StatusRegular,
	StatusProbationary,
	StatusContractual,
	StatusProjectBased,
	StatusResigned,
	StatusTerminated,
}

// ParseEmployeeStatus normalizes a raw status string. Unknown values are
// rejected so the eligibility evaluator can report them.
func ParseEmployeeStatus(s string) (EmployeeStatus, error) {
	normalized := EmployeeStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range knownStatuses {
		if normalized == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("invalid employee status %q", s)
}

// IsSeparated reports whether the status means the employee has left.
func (s EmployeeStatus) IsSeparated() bool {
	return s == StatusResigned || s == StatusTerminated
}

type Employee struct {
	ID                 EmployeeID
	Name               string
	HireDate           TimePoint
	RegularizationDate *TimePoint
	Status             EmployeeStatus
	IsActive           bool
}

// AnchorDate is the date cycle arithmetic is seeded from: the
// regularization date when the employee has one, otherwise the hire date.
func (e Employee) AnchorDate() TimePoint {
	if e.RegularizationDate != nil && !e.RegularizationDate.IsZero() {
		return *e.RegularizationDate
	}
	return e.HireDate
}

// =============================================================================
// LEAVE TYPE
// =============================================================================

type LeaveType struct {
	ID       LeaveTypeID
	Name     string
	IsActive bool
}

// =============================================================================
// LEAVE CYCLE - Multi-year entitlement window
// =============================================================================

type CycleStatus string

const (
	CycleActive CycleStatus = "ACTIVE"
	CycleClosed CycleStatus = "CLOSED"
)

// LeaveCycle covers the half-open year range [CycleStartYear, CycleEndYear).
type LeaveCycle struct {
	ID             CycleID
	EmployeeID     EmployeeID
	LeaveTypeID    LeaveTypeID
	CycleStartYear int
	CycleEndYear   int
	Status         CycleStatus
	TotalCarried   Days
	CreatedAt      TimePoint
}

// Window returns the cycle's year range.
func (c LeaveCycle) Window() CycleWindow {
	return CycleWindow{StartYear: c.CycleStartYear, EndYear: c.CycleEndYear}
}

// =============================================================================
// LEAVE BALANCE - One row per employee, leave type and leave year
// =============================================================================

type BalanceStatus string

const (
	BalanceOpen   BalanceStatus = "OPEN"
	BalanceClosed BalanceStatus = "CLOSED"
)

type LeaveBalance struct {
	ID               BalanceID
	EmployeeID       EmployeeID
	LeaveTypeID      LeaveTypeID
	PolicyID         PolicyID
	Year             string
	BeginningBalance Days // Earned + CarriedOver
	Earned           Days
	Used             Days
	CarriedOver      Days
	Encashed         Days
	Remaining        Days
	Status           BalanceStatus

	LastTransactionDate TimePoint
}
