/*
store.go - Repository interfaces consumed by the orchestrators

PURPOSE:
  Defines the narrow interface between the entitlement logic and the
  database. Different implementations can use SQLite or in-memory storage;
  the orchestrators only ever see these interfaces.

KEY INTERFACES:
  Store: Opens a transaction (the only entry point)
  Tx:    A transaction handle exposing every repository
  EmployeeRepository, PolicyRepository, LeaveTypeRepository,
  LeaveYearRepository, CycleRepository, BalanceRepository
  AuditLog: Structured success/failure sink

TRANSACTIONS:
  Every public operation acquires exactly one Tx and releases it on every
  exit path:

    tx, err := store.Begin(ctx)
    if err != nil {
        return err
    }
    defer tx.Rollback() // no-op after Commit

    ... reads and writes through tx ...

    return tx.Commit()

  Reads made through a Tx observe writes made earlier through the same Tx,
  which the bulk generators rely on.

LOOKUPS:
  FindXxx methods return (nil, nil) when the row does not exist. Errors are
  reserved for infrastructure failures; the caller decides whether a
  missing row is a NotFoundError.

NO DELETES:
  Cycles and balances are never deleted. Regeneration updates a balance in
  place and closure is a status change.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - leave/cycles.go, leave/balances.go: Orchestrators using these interfaces
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// STORE / TX
// =============================================================================

// Store opens transactions.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a transaction-scoped handle to every repository.
type Tx interface {
	Employees() EmployeeRepository
	Policies() PolicyRepository
	LeaveTypes() LeaveTypeRepository
	LeaveYears() LeaveYearRepository
	Cycles() CycleRepository
	Balances() BalanceRepository

	Commit() error
	// Rollback discards the transaction. Calling it after Commit is a no-op.
	Rollback() error
}

// =============================================================================
// REPOSITORIES
// =============================================================================

type EmployeeRepository interface {
	FindByID(ctx context.Context, id EmployeeID) (*Employee, error)
	// RetrieveActive returns active employees ordered by ID.
	RetrieveActive(ctx context.Context) ([]Employee, error)
}

type PolicyRepository interface {
	FindByID(ctx context.Context, id PolicyID) (*LeavePolicy, error)
	// GetActivePolicy returns the active policy for a leave type, if any.
	GetActivePolicy(ctx context.Context, leaveTypeID LeaveTypeID) (*LeavePolicy, error)
	// RetrieveActive returns active policies ordered by ID.
	RetrieveActive(ctx context.Context) ([]LeavePolicy, error)
}

type LeaveTypeRepository interface {
	FindByName(ctx context.Context, name string) (*LeaveType, error)
}

type LeaveYearRepository interface {
	FindByYear(ctx context.Context, year string) (*LeaveYear, error)
	// FindAll returns every configuration in chronological order.
	FindAll(ctx context.Context) ([]LeaveYear, error)
}

type CycleRepository interface {
	// FindOverlapping returns any cycle of any status whose window
	// intersects window.
	FindOverlapping(ctx context.Context, emp EmployeeID, leaveType LeaveTypeID, window CycleWindow) (*LeaveCycle, error)
	GetActive(ctx context.Context, emp EmployeeID, leaveType LeaveTypeID) (*LeaveCycle, error)
	Create(ctx context.Context, cycle LeaveCycle) error
	ListByEmployee(ctx context.Context, emp EmployeeID) ([]LeaveCycle, error)
}

type BalanceRepository interface {
	FindByLeaveType(ctx context.Context, emp EmployeeID, leaveType LeaveTypeID, year string) (*LeaveBalance, error)
	Create(ctx context.Context, balance LeaveBalance) error
	// Update rewrites an existing balance row identified by ID.
	Update(ctx context.Context, balance LeaveBalance) error
	ListByEmployee(ctx context.Context, emp EmployeeID) ([]LeaveBalance, error)
}

// =============================================================================
// AUDIT LOG - Observability only, never affects the computation
// =============================================================================

type AuditAction string

const (
	AuditCycleCreated       AuditAction = "create_leave_cycle"
	AuditCyclesSetup        AuditAction = "setup_leave_cycles"
	AuditBalanceCreated     AuditAction = "create_leave_balance"
	AuditBalancesGenerated  AuditAction = "generate_annual_leave_balances"
	AuditPolicyConfigured   AuditAction = "configure_leave_policy"
	AuditLeaveYearConfigure AuditAction = "configure_leave_year"
)

// AuditEntry records who did what, with what outcome.
type AuditEntry struct {
	ID          string
	Timestamp   time.Time
	Action      AuditAction
	Entity      string // e.g. "leave_cycle", "leave_balance"
	ActorID     string
	Before      any
	After       any
	Description string
	StatusCode  int
	Error       string
}

// Succeeded reports whether the entry records a successful operation.
func (e AuditEntry) Succeeded() bool { return e.StatusCode < 400 }

type AuditLog interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// NopAuditLog discards entries.
type NopAuditLog struct{}

func (NopAuditLog) Record(context.Context, AuditEntry) error { return nil }

// =============================================================================
// ACTOR - Who triggered an operation, carried on the context
// =============================================================================

type actorKey struct{}

// WithActor attaches the acting user's ID to ctx.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

// ActorFrom returns the actor on ctx, or "system".
func ActorFrom(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok && v != "" {
		return v
	}
	return "system"
}
