/*
balances.go - Leave balance generator

PURPOSE:
  Creates the yearly leave balance rows: one per employee, leave type and
  leave year. Each new row opens with the policy's annual entitlement plus
  the days carried from the previous configured leave year.

FLOW (single):
  1. Employee, leave type, active policy must exist
  2. The leave year configuration must exist; its cutoff start date is the
     eligibility reference date
  3. The employee must be eligible
  4. No balance may exist yet for (employee, leave type, year)
  5. Carry-over comes from the predecessor leave year's balance
  6. Persist an OPEN balance

FLOW (bulk):
  Prerequisites (active policies, active employees, year configuration,
  predecessor year) are resolved once. Each active employee x active policy
  pair then either produces a balance or a SkipEntry (ineligible,
  balance_already_exists). With ForceRegenerate an existing row is
  recomputed in place instead of skipped.

TRANSACTIONS:
  One transaction per call; iteration is sequential so duplicate checks
  observe rows written earlier in the same run. Any unexpected error rolls
  the whole run back.
*/
package leave

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/warp/entitlement-engine/generic"
)

type BalanceGenerator struct {
	Store generic.Store
	Audit generic.AuditLog

	logger *zap.Logger
	now    func() generic.TimePoint
	newID  func() string
}

func NewBalanceGenerator(store generic.Store, audit generic.AuditLog, logger *zap.Logger) *BalanceGenerator {
	if audit == nil {
		audit = generic.NopAuditLog{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BalanceGenerator{
		Store:  store,
		Audit:  audit,
		logger: logger.Named("balances"),
		now:    defaultNow,
		newID:  defaultID,
	}
}

// WithClock overrides the date stamped as LastTransactionDate.
func (g *BalanceGenerator) WithClock(now func() generic.TimePoint) *BalanceGenerator {
	g.now = now
	return g
}

func (g *BalanceGenerator) auditor() auditor {
	return auditor{log: g.Audit, logger: g.logger, newID: g.newID}
}

// CreateBalance creates one leave balance.
func (g *BalanceGenerator) CreateBalance(ctx context.Context, in CreateBalanceInput) (created *generic.LeaveBalance, err error) {
	defer func() {
		g.auditor().record(ctx, generic.AuditBalanceCreated, "leave_balance", in, created, err,
			fmt.Sprintf("create %s %s balance for employee %s", in.Year, in.LeaveType, in.EmployeeID))
	}()

	tx, err := g.Store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create balance: %w", err)
	}
	defer tx.Rollback()

	emp, err := findEmployee(ctx, tx, in.EmployeeID)
	if err != nil {
		return nil, err
	}
	lt, policy, err := resolveLeaveType(ctx, tx, in.LeaveType)
	if err != nil {
		return nil, err
	}
	if in.PolicyID != "" {
		if policy, err = g.requestedPolicy(ctx, tx, in.PolicyID, lt); err != nil {
			return nil, err
		}
	}

	leaveYear, err := findLeaveYear(ctx, tx, in.Year)
	if err != nil {
		return nil, err
	}

	verdict := policy.IsEmployeeEligible(emp.AnchorDate(), string(emp.Status), leaveYear.CutoffStartDate)
	if !verdict.Eligible {
		return nil, generic.NewBadRequest(generic.ReasonIneligible,
			"employee %s is not eligible for %s in %s: %s", emp.ID, lt.Name, in.Year, verdict.Reason)
	}

	existing, err := tx.Balances().FindByLeaveType(ctx, emp.ID, lt.ID, in.Year)
	if err != nil {
		return nil, fmt.Errorf("check existing balance for employee %s: %w", emp.ID, err)
	}
	if existing != nil {
		return nil, generic.NewBadRequest(generic.ReasonDuplicateBalance,
			"employee %s already has a %s balance for %s", emp.ID, lt.Name, in.Year)
	}

	prevYear, err := previousYear(ctx, tx, in.Year)
	if err != nil {
		return nil, err
	}
	prev, err := previousBalance(ctx, tx, emp.ID, lt.ID, prevYear)
	if err != nil {
		return nil, err
	}

	balance := generic.NewOpenBalance(generic.BalanceID(g.newID()), emp.ID, *policy, in.Year, prev, g.now())
	if err := tx.Balances().Create(ctx, balance); err != nil {
		return nil, fmt.Errorf("create balance for employee %s: %w", emp.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create balance: %w", err)
	}

	g.logger.Info("leave balance created",
		zap.String("employee_id", string(emp.ID)),
		zap.String("leave_type", lt.Name),
		zap.String("year", in.Year),
		zap.Stringer("carried_over", balance.CarriedOver),
		zap.Stringer("beginning_balance", balance.BeginningBalance))
	return &balance, nil
}

// requestedPolicy loads an explicitly requested policy and checks that it is
// active and belongs to the leave type.
func (g *BalanceGenerator) requestedPolicy(ctx context.Context, tx generic.Tx, id generic.PolicyID, lt *generic.LeaveType) (*generic.LeavePolicy, error) {
	p, err := tx.Policies().FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load policy %s: %w", id, err)
	}
	if p == nil {
		return nil, generic.NewNotFound("leave policy", string(id))
	}
	if !p.IsActive {
		return nil, generic.NewBadRequest(generic.ReasonNoActivePolicy, "leave policy %s is inactive", id)
	}
	if p.LeaveTypeID != lt.ID {
		return nil, generic.NewBadRequest(generic.ReasonInvalidInput,
			"leave policy %s does not belong to leave type %s", id, lt.Name)
	}
	return p, nil
}

// GenerateAnnualBalances creates balances for every active employee and
// active policy for one leave year.
func (g *BalanceGenerator) GenerateAnnualBalances(ctx context.Context, in GenerateBalancesInput) (result *GenerationResult, err error) {
	defer func() {
		g.auditor().record(ctx, generic.AuditBalancesGenerated, "leave_balance", in, result, err,
			fmt.Sprintf("generate %s leave balances", in.Year))
	}()

	tx, err := g.Store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin balance generation: %w", err)
	}
	defer tx.Rollback()

	employees, policies, err := activeWorkforce(ctx, tx)
	if err != nil {
		return nil, err
	}
	leaveYear, err := findLeaveYear(ctx, tx, in.Year)
	if err != nil {
		return nil, err
	}
	// Resolved once for the whole batch.
	prevYear, err := previousYear(ctx, tx, in.Year)
	if err != nil {
		return nil, err
	}

	asOf := g.now()
	res := &GenerationResult{Year: in.Year}
	for _, emp := range employees {
		for _, policy := range policies {
			skip := SkipEntry{EmployeeID: emp.ID, EmployeeName: emp.Name, LeaveType: policy.LeaveType}

			verdict := policy.IsEmployeeEligible(emp.AnchorDate(), string(emp.Status), leaveYear.CutoffStartDate)
			if !verdict.Eligible {
				skip.Reason = SkipIneligible
				skip.Details = verdict.Reason
				res.skip(skip)
				continue
			}

			existing, err := tx.Balances().FindByLeaveType(ctx, emp.ID, policy.LeaveTypeID, in.Year)
			if err != nil {
				return nil, fmt.Errorf("check existing balance for employee %s: %w", emp.ID, err)
			}
			if existing != nil && !in.ForceRegenerate {
				skip.Reason = SkipBalanceExists
				skip.Details = fmt.Sprintf("%s balance for %s already exists", policy.LeaveType, in.Year)
				res.skip(skip)
				continue
			}

			prev, err := previousBalance(ctx, tx, emp.ID, policy.LeaveTypeID, prevYear)
			if err != nil {
				return nil, err
			}

			if existing != nil {
				if err := tx.Balances().Update(ctx, existing.Regenerate(policy, prev, asOf)); err != nil {
					return nil, fmt.Errorf("regenerate balance for employee %s: %w", emp.ID, err)
				}
				res.RegeneratedCount++
			} else {
				balance := generic.NewOpenBalance(generic.BalanceID(g.newID()), emp.ID, policy, in.Year, prev, asOf)
				if err := tx.Balances().Create(ctx, balance); err != nil {
					return nil, fmt.Errorf("create balance for employee %s: %w", emp.ID, err)
				}
			}
			res.GeneratedCount++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit balance generation: %w", err)
	}
	g.logger.Info("annual leave balances generated",
		zap.String("year", in.Year),
		zap.Int("generated", res.GeneratedCount),
		zap.Int("regenerated", res.RegeneratedCount),
		zap.Int("skipped", res.SkippedCount))
	return res, nil
}
