/*
cycles.go - Leave cycle manager

PURPOSE:
  Creates multi-year entitlement cycles for employees. A cycle covers the
  half-open year range computed by generic.CycleWindowFor from the
  employee's anchor year and the policy's cycle length.

INVARIANT:
  For one employee and leave type, no two cycles overlap. Creation checks
  for any overlapping cycle (ACTIVE or CLOSED) inside the same transaction
  and refuses with a BadRequestError naming the conflict.

BULK SETUP:
  SetupCyclesForAllEmployees walks active employees x active policies in
  order. A pair with an ACTIVE cycle is skipped unless ForceRegenerate is
  set; a computed window that would overlap an existing cycle is skipped
  with reason cycle_overlap. Any other error aborts and rolls back the
  whole batch.
*/
package leave

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/entitlement-engine/generic"
)

type CycleManager struct {
	Store generic.Store
	Audit generic.AuditLog

	logger *zap.Logger
	now    func() generic.TimePoint
	newID  func() string
}

func NewCycleManager(store generic.Store, audit generic.AuditLog, logger *zap.Logger) *CycleManager {
	if audit == nil {
		audit = generic.NopAuditLog{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CycleManager{
		Store:  store,
		Audit:  audit,
		logger: logger.Named("cycles"),
		now:    defaultNow,
		newID:  defaultID,
	}
}

// WithClock overrides the current date. Used by tests and scenarios.
func (m *CycleManager) WithClock(now func() generic.TimePoint) *CycleManager {
	m.now = now
	return m
}

func (m *CycleManager) auditor() auditor {
	return auditor{log: m.Audit, logger: m.logger, newID: m.newID}
}

// CreateCycle creates the cycle containing the base year (current year when
// in.Year is nil) for one employee and leave type.
func (m *CycleManager) CreateCycle(ctx context.Context, in CreateCycleInput) (created *generic.LeaveCycle, err error) {
	defer func() {
		m.auditor().record(ctx, generic.AuditCycleCreated, "leave_cycle", in, created, err,
			fmt.Sprintf("create %s cycle for employee %s", in.LeaveType, in.EmployeeID))
	}()

	tx, err := m.Store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create cycle: %w", err)
	}
	defer tx.Rollback()

	_, policy, err := resolveLeaveType(ctx, tx, in.LeaveType)
	if err != nil {
		return nil, err
	}
	emp, err := findEmployee(ctx, tx, in.EmployeeID)
	if err != nil {
		return nil, err
	}

	baseYear := m.now().Year()
	if in.Year != nil {
		baseYear = *in.Year
	}

	cycle, err := m.createCycle(ctx, tx, *emp, *policy, baseYear)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create cycle: %w", err)
	}
	return cycle, nil
}

// SetupCyclesForAllEmployees creates cycles for every active employee and
// active policy in one transaction.
func (m *CycleManager) SetupCyclesForAllEmployees(ctx context.Context, in SetupCyclesInput) (result *CycleSetupResult, err error) {
	defer func() {
		m.auditor().record(ctx, generic.AuditCyclesSetup, "leave_cycle", in, result, err,
			"set up leave cycles for all active employees")
	}()

	baseYear := m.now().Year()
	if in.BaseYear != nil {
		baseYear = *in.BaseYear
	}

	tx, err := m.Store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin cycle setup: %w", err)
	}
	defer tx.Rollback()

	employees, policies, err := activeWorkforce(ctx, tx)
	if err != nil {
		return nil, err
	}

	res := &CycleSetupResult{BaseYear: baseYear}
	for _, emp := range employees {
		for _, policy := range policies {
			skip := SkipEntry{EmployeeID: emp.ID, EmployeeName: emp.Name, LeaveType: policy.LeaveType}

			active, err := tx.Cycles().GetActive(ctx, emp.ID, policy.LeaveTypeID)
			if err != nil {
				return nil, fmt.Errorf("load active cycle for employee %s: %w", emp.ID, err)
			}
			if active != nil && !in.ForceRegenerate {
				skip.Reason = SkipActiveCycleExists
				skip.Details = fmt.Sprintf("active cycle %d-%d", active.CycleStartYear, active.CycleEndYear)
				res.skip(skip)
				continue
			}

			_, err = m.createCycle(ctx, tx, emp, policy, baseYear)
			var bad *generic.BadRequestError
			if errors.As(err, &bad) && bad.Reason == generic.ReasonOverlappingCycle {
				skip.Reason = SkipCycleOverlap
				skip.Details = bad.Message
				res.skip(skip)
				continue
			}
			if err != nil {
				return nil, err
			}
			res.CreatedCount++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit cycle setup: %w", err)
	}
	m.logger.Info("leave cycles set up",
		zap.Int("base_year", baseYear),
		zap.Int("created", res.CreatedCount),
		zap.Int("skipped", res.SkippedCount))
	return res, nil
}

// anchorYear prefers the regularization date, then the hire date, then the
// base year itself.
func anchorYear(emp generic.Employee, baseYear int) int {
	anchor := emp.AnchorDate()
	if anchor.IsZero() {
		return baseYear
	}
	return anchor.Year()
}

func (m *CycleManager) createCycle(ctx context.Context, tx generic.Tx, emp generic.Employee, policy generic.LeavePolicy, baseYear int) (*generic.LeaveCycle, error) {
	window, err := generic.CycleWindowFor(anchorYear(emp, baseYear), policy.CycleLengthYears, baseYear)
	if err != nil {
		return nil, generic.NewBadRequest(generic.ReasonInvalidInput, "policy %s: %v", policy.ID, err)
	}

	conflict, err := tx.Cycles().FindOverlapping(ctx, emp.ID, policy.LeaveTypeID, window)
	if err != nil {
		return nil, fmt.Errorf("check overlapping cycles for employee %s: %w", emp.ID, err)
	}
	if conflict != nil {
		return nil, generic.NewBadRequest(generic.ReasonOverlappingCycle,
			"employee %s already has a %s cycle %d-%d (%s) overlapping %s",
			emp.ID, policy.LeaveType, conflict.CycleStartYear, conflict.CycleEndYear,
			conflict.Status, window)
	}

	cycle := generic.LeaveCycle{
		ID:             generic.CycleID(m.newID()),
		EmployeeID:     emp.ID,
		LeaveTypeID:    policy.LeaveTypeID,
		CycleStartYear: window.StartYear,
		CycleEndYear:   window.EndYear,
		Status:         generic.CycleActive,
		TotalCarried:   decimal.Zero,
		CreatedAt:      m.now(),
	}
	if err := tx.Cycles().Create(ctx, cycle); err != nil {
		return nil, fmt.Errorf("create cycle for employee %s: %w", emp.ID, err)
	}

	m.logger.Debug("leave cycle created",
		zap.String("employee_id", string(emp.ID)),
		zap.String("leave_type", policy.LeaveType),
		zap.Stringer("window", window))
	return &cycle, nil
}
