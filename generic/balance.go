/*
balance.go - Carry-over and opening balance calculation

PURPOSE:
  Computes the opening figures of a new leave balance: how many unused days
  move forward from the previous leave year and what the new beginning
  balance is.

CARRY-OVER:
  carryOver = clamp(previous.Remaining, 0, policy.CarryLimit)

  - No previous balance     -> 0
  - Negative remaining      -> 0 (never a negative carry-over)
  - Remaining above limit   -> limit

OPENING BALANCE:
  Earned           = policy.AnnualEntitlement
  CarriedOver      = carryOver
  BeginningBalance = Earned + CarriedOver
  Remaining        = BeginningBalance - Used - Encashed

EXAMPLE:
  Entitlement 15, previous remaining 20, carry limit 10:
  CarriedOver = 10, BeginningBalance = Remaining = 25

SEE ALSO:
  - leave/balances.go: Uses these to persist balances
*/
package generic

import "github.com/shopspring/decimal"

// =============================================================================
// CARRY-OVER CALCULATOR
// =============================================================================

// CarryOver returns the days carried from previous into the next leave year,
// clamped to [0, carryLimit]. A nil previous balance carries nothing.
func CarryOver(previous *LeaveBalance, carryLimit Days) Days {
	if previous == nil {
		return decimal.Zero
	}
	return ClampCarry(previous.Remaining, carryLimit)
}

// ClampCarry is min(max(remaining, 0), carryLimit). A negative limit is
// treated as zero.
func ClampCarry(remaining, carryLimit Days) Days {
	if carryLimit.IsNegative() {
		carryLimit = decimal.Zero
	}
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(remaining, carryLimit)
}

// =============================================================================
// OPENING BALANCE
// =============================================================================

// Opening holds the computed figures for a new or regenerated balance.
type Opening struct {
	Earned           Days
	CarriedOver      Days
	BeginningBalance Days
}

// OpeningBalance computes the opening figures for policy given the previous
// leave year's balance (nil when there is none).
func OpeningBalance(policy LeavePolicy, previous *LeaveBalance) Opening {
	carried := CarryOver(previous, policy.CarryLimit)
	return Opening{
		Earned:           policy.AnnualEntitlement,
		CarriedOver:      carried,
		BeginningBalance: policy.AnnualEntitlement.Add(carried),
	}
}

// NewOpenBalance builds a fresh OPEN balance for one employee and leave year.
func NewOpenBalance(id BalanceID, emp EmployeeID, policy LeavePolicy, year string, previous *LeaveBalance, asOf TimePoint) LeaveBalance {
	o := OpeningBalance(policy, previous)
	return LeaveBalance{
		ID:                  id,
		EmployeeID:          emp,
		LeaveTypeID:         policy.LeaveTypeID,
		PolicyID:            policy.ID,
		Year:                year,
		BeginningBalance:    o.BeginningBalance,
		Earned:              o.Earned,
		Used:                decimal.Zero,
		CarriedOver:         o.CarriedOver,
		Encashed:            decimal.Zero,
		Remaining:           o.BeginningBalance,
		Status:              BalanceOpen,
		LastTransactionDate: asOf,
	}
}

// Regenerate recomputes an existing balance in place. Used and encashed
// days are kept, so Remaining = BeginningBalance - Used - Encashed.
func (b LeaveBalance) Regenerate(policy LeavePolicy, previous *LeaveBalance, asOf TimePoint) LeaveBalance {
	o := OpeningBalance(policy, previous)
	b.PolicyID = policy.ID
	b.Earned = o.Earned
	b.CarriedOver = o.CarriedOver
	b.BeginningBalance = o.BeginningBalance
	b.Remaining = o.BeginningBalance.Sub(b.Used).Sub(b.Encashed)
	b.LastTransactionDate = asOf
	return b
}
