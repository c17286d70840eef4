package leave

import (
	"context"
	"fmt"

	"github.com/warp/entitlement-engine/generic"
)

// Each lookup is independent; callers compose them and decide what a
// missing row means.

func findEmployee(ctx context.Context, tx generic.Tx, id generic.EmployeeID) (*generic.Employee, error) {
	emp, err := tx.Employees().FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load employee %s: %w", id, err)
	}
	if emp == nil {
		return nil, generic.NewNotFound("employee", string(id))
	}
	return emp, nil
}

// resolveLeaveType returns the active leave type with the given name and its
// active policy.
func resolveLeaveType(ctx context.Context, tx generic.Tx, name string) (*generic.LeaveType, *generic.LeavePolicy, error) {
	lt, err := tx.LeaveTypes().FindByName(ctx, name)
	if err != nil {
		return nil, nil, fmt.Errorf("load leave type %q: %w", name, err)
	}
	if lt == nil || !lt.IsActive {
		return nil, nil, generic.NewNotFound("leave type", name)
	}

	policy, err := tx.Policies().GetActivePolicy(ctx, lt.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("load active policy for %q: %w", name, err)
	}
	if policy == nil {
		return nil, nil, generic.NewBadRequest(generic.ReasonNoActivePolicy,
			"no active leave policy for leave type %s", lt.Name)
	}
	return lt, policy, nil
}

func findLeaveYear(ctx context.Context, tx generic.Tx, year string) (*generic.LeaveYear, error) {
	ly, err := tx.LeaveYears().FindByYear(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("load leave year %s: %w", year, err)
	}
	if ly == nil {
		return nil, generic.NewNotFound("leave year configuration", year)
	}
	return ly, nil
}

func loadCalendar(ctx context.Context, tx generic.Tx) (*generic.LeaveYearCalendar, error) {
	years, err := tx.LeaveYears().FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load leave years: %w", err)
	}
	return generic.NewLeaveYearCalendar(years), nil
}

// previousYear resolves the label of the leave year preceding year in
// calendar order. Empty when year is the earliest configured one.
func previousYear(ctx context.Context, tx generic.Tx, year string) (string, error) {
	calendar, err := loadCalendar(ctx, tx)
	if err != nil {
		return "", err
	}
	prev, ok := calendar.PredecessorOf(year)
	if !ok {
		return "", nil
	}
	return prev.Year, nil
}

// previousBalance loads the prevYear balance for the same employee and leave
// type. Nil when prevYear is empty or there is no row.
func previousBalance(ctx context.Context, tx generic.Tx, emp generic.EmployeeID, lt generic.LeaveTypeID, prevYear string) (*generic.LeaveBalance, error) {
	if prevYear == "" {
		return nil, nil
	}
	b, err := tx.Balances().FindByLeaveType(ctx, emp, lt, prevYear)
	if err != nil {
		return nil, fmt.Errorf("load %s balance for employee %s: %w", prevYear, emp, err)
	}
	return b, nil
}

func activeWorkforce(ctx context.Context, tx generic.Tx) ([]generic.Employee, []generic.LeavePolicy, error) {
	policies, err := tx.Policies().RetrieveActive(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load active policies: %w", err)
	}
	if len(policies) == 0 {
		return nil, nil, generic.NewBadRequest(generic.ReasonNoActivePolicy, "no active leave policies configured")
	}

	employees, err := tx.Employees().RetrieveActive(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load active employees: %w", err)
	}
	if len(employees) == 0 {
		return nil, nil, generic.NewNotFound("active employees", "none")
	}
	return employees, policies, nil
}
