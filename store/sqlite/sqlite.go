/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements generic.Store (transactions plus every repository) and
  generic.AuditLog using SQLite. In production, the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  generic.Store:    Transaction-scoped repositories
  generic.AuditLog: Structured operation log

KEY TABLES:
  employees:       Read-only to the engine, seeded by HR/scenarios
  leave_types:     Named leave types
  leave_policies:  Policy definitions stored as factory JSON (versioned)
  leave_years:     Leave year configurations with cutoff dates
  leave_cycles:    Multi-year entitlement cycles
  leave_balances:  One row per employee, leave type and year
  audit_log:       One entry per orchestrator operation

STORAGE-LEVEL BACKSTOPS:
  The orchestrators check for duplicates and overlaps before writing, and
  the schema enforces the same rules in case of concurrent writers:
  - idx_leave_balances_unique: UNIQUE(employee_id, leave_type_id, year)
  - trg_leave_cycles_no_overlap: aborts an insert whose [start, end) window
    intersects an existing cycle for the same employee and leave type

CONCURRENCY:
  Begin holds the store's write lock until Commit or Rollback, so runs are
  serialized. The pool is limited to one connection; SQLite has a single
  writer anyway and ":memory:" databases are per connection.

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  balances := leave.NewBalanceGenerator(store, store, logger)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/entitlement-engine/factory"
	"github.com/warp/entitlement-engine/generic"
)

// Store implements generic.Store and generic.AuditLog using SQLite.
type Store struct {
	db       *sql.DB
	mu       sync.RWMutex
	policies *factory.PolicyFactory
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, policies: factory.NewPolicyFactory()}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		hire_date TEXT,
		regularization_date TEXT,
		status TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_active
		ON employees(is_active);

	CREATE TABLE IF NOT EXISTS leave_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	-- Policies keep the factory JSON so the definition round-trips exactly
	CREATE TABLE IF NOT EXISTS leave_policies (
		id TEXT PRIMARY KEY,
		leave_type_id TEXT NOT NULL,
		config_json TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		version INTEGER DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leave_policies_type_active
		ON leave_policies(leave_type_id, is_active);

	CREATE TABLE IF NOT EXISTS leave_years (
		year TEXT PRIMARY KEY,
		cutoff_start_date TEXT NOT NULL,
		cutoff_end_date TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leave_years_cutoff
		ON leave_years(cutoff_start_date, year);

	CREATE TABLE IF NOT EXISTS leave_cycles (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		cycle_start_year INTEGER NOT NULL,
		cycle_end_year INTEGER NOT NULL,
		status TEXT NOT NULL,
		total_carried TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		CHECK (cycle_end_year > cycle_start_year)
	);

	CREATE INDEX IF NOT EXISTS idx_leave_cycles_employee_type
		ON leave_cycles(employee_id, leave_type_id, cycle_start_year);

	-- CRITICAL: no two cycles for one employee and leave type may overlap
	CREATE TRIGGER IF NOT EXISTS trg_leave_cycles_no_overlap
	BEFORE INSERT ON leave_cycles
	FOR EACH ROW WHEN EXISTS (
		SELECT 1 FROM leave_cycles c
		WHERE c.employee_id = NEW.employee_id
		  AND c.leave_type_id = NEW.leave_type_id
		  AND c.cycle_start_year < NEW.cycle_end_year
		  AND NEW.cycle_start_year < c.cycle_end_year
	)
	BEGIN
		SELECT RAISE(ABORT, 'leave cycle window overlaps an existing cycle');
	END;

	CREATE TABLE IF NOT EXISTS leave_balances (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		policy_id TEXT NOT NULL,
		year TEXT NOT NULL,
		beginning_balance TEXT NOT NULL,
		earned TEXT NOT NULL,
		used TEXT NOT NULL,
		carried_over TEXT NOT NULL,
		encashed TEXT NOT NULL,
		remaining TEXT NOT NULL,
		status TEXT NOT NULL,
		last_transaction_date TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: at most one balance per employee, leave type and year
	CREATE UNIQUE INDEX IF NOT EXISTS idx_leave_balances_unique
		ON leave_balances(employee_id, leave_type_id, year);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		action TEXT NOT NULL,
		entity TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		before_json TEXT,
		after_json TEXT,
		description TEXT,
		status_code INTEGER NOT NULL,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp
		ON audit_log(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_log_action
		ON audit_log(action);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTIONS (generic.Store interface)
// =============================================================================

// Begin opens a database transaction and holds the store's write lock until
// the returned Tx is committed or rolled back.
func (s *Store) Begin(ctx context.Context) (generic.Tx, error) {
	s.mu.Lock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &txStore{tx: sqlTx, parent: s}, nil
}

type txStore struct {
	tx     *sql.Tx
	parent *Store
	done   bool
}

func (ts *txStore) Commit() error {
	if ts.done {
		return generic.ErrTxDone
	}
	ts.done = true
	defer ts.parent.mu.Unlock()
	return ts.tx.Commit()
}

func (ts *txStore) Rollback() error {
	if ts.done {
		return nil
	}
	ts.done = true
	defer ts.parent.mu.Unlock()
	if err := ts.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

func (ts *txStore) Employees() generic.EmployeeRepository   { return employeeRepo{ts.tx} }
func (ts *txStore) Policies() generic.PolicyRepository      { return policyRepo{ts.tx, ts.parent.policies} }
func (ts *txStore) LeaveTypes() generic.LeaveTypeRepository { return leaveTypeRepo{ts.tx} }
func (ts *txStore) LeaveYears() generic.LeaveYearRepository { return leaveYearRepo{ts.tx} }
func (ts *txStore) Cycles() generic.CycleRepository         { return cycleRepo{ts.tx} }
func (ts *txStore) Balances() generic.BalanceRepository     { return balanceRepo{ts.tx} }

// =============================================================================
// EMPLOYEES
// =============================================================================

const employeeColumns = `id, name, hire_date, regularization_date, status, is_active`

type employeeRepo struct{ q querier }

func (r employeeRepo) FindByID(ctx context.Context, id generic.EmployeeID) (*generic.Employee, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT "+employeeColumns+" FROM employees WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query employee: %w", err)
	}
	emps, err := scanEmployees(rows)
	if err != nil || len(emps) == 0 {
		return nil, err
	}
	return &emps[0], nil
}

func (r employeeRepo) RetrieveActive(ctx context.Context) ([]generic.Employee, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT "+employeeColumns+" FROM employees WHERE is_active ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	return scanEmployees(rows)
}

func scanEmployees(rows *sql.Rows) ([]generic.Employee, error) {
	defer rows.Close()

	var employees []generic.Employee
	for rows.Next() {
		var emp generic.Employee
		var hireDate, reg sql.NullString
		var status string
		if err := rows.Scan(&emp.ID, &emp.Name, &hireDate, &reg, &status, &emp.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		emp.Status = generic.EmployeeStatus(status)
		emp.HireDate = parseDate(hireDate)
		if reg.Valid && reg.String != "" {
			d := parseDate(reg)
			emp.RegularizationDate = &d
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

// SaveEmployee inserts or replaces an employee. Employees are managed
// outside the engine; this is used by scenarios and tests.
func (s *Store) SaveEmployee(ctx context.Context, emp generic.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO employees (id, name, hire_date, regularization_date, status, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			hire_date = excluded.hire_date,
			regularization_date = excluded.regularization_date,
			status = excluded.status,
			is_active = excluded.is_active
	`

	var reg sql.NullString
	if emp.RegularizationDate != nil {
		reg = formatDate(*emp.RegularizationDate)
	}
	_, err := s.db.ExecContext(ctx, query,
		emp.ID, emp.Name, formatDate(emp.HireDate), reg, string(emp.Status), emp.IsActive, now(),
	)
	return err
}

// ListEmployees returns every employee, active or not, ordered by ID.
func (s *Store) ListEmployees(ctx context.Context) ([]generic.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+employeeColumns+" FROM employees ORDER BY id")
	if err != nil {
		return nil, err
	}
	return scanEmployees(rows)
}

// =============================================================================
// LEAVE TYPES
// =============================================================================

type leaveTypeRepo struct{ q querier }

func (r leaveTypeRepo) FindByName(ctx context.Context, name string) (*generic.LeaveType, error) {
	var lt generic.LeaveType
	err := r.q.QueryRowContext(ctx,
		"SELECT id, name, is_active FROM leave_types WHERE name = ?", name,
	).Scan(&lt.ID, &lt.Name, &lt.IsActive)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query leave type: %w", err)
	}
	return &lt, nil
}

// SaveLeaveType inserts or updates a leave type.
func (s *Store) SaveLeaveType(ctx context.Context, lt generic.LeaveType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leave_types (id, name, is_active) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, is_active = excluded.is_active
	`, lt.ID, lt.Name, lt.IsActive)
	return err
}

// =============================================================================
// POLICIES
// =============================================================================

const policyColumns = `config_json, is_active`

type policyRepo struct {
	q       querier
	factory *factory.PolicyFactory
}

func (r policyRepo) FindByID(ctx context.Context, id generic.PolicyID) (*generic.LeavePolicy, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT "+policyColumns+" FROM leave_policies WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query policy: %w", err)
	}
	policies, err := scanPolicies(rows, r.factory)
	if err != nil || len(policies) == 0 {
		return nil, err
	}
	return &policies[0], nil
}

func (r policyRepo) GetActivePolicy(ctx context.Context, leaveTypeID generic.LeaveTypeID) (*generic.LeavePolicy, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+policyColumns+` FROM leave_policies
		WHERE leave_type_id = ? AND is_active
		ORDER BY id
		LIMIT 1
	`, leaveTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active policy: %w", err)
	}
	policies, err := scanPolicies(rows, r.factory)
	if err != nil || len(policies) == 0 {
		return nil, err
	}
	return &policies[0], nil
}

func (r policyRepo) RetrieveActive(ctx context.Context) ([]generic.LeavePolicy, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT "+policyColumns+" FROM leave_policies WHERE is_active ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query policies: %w", err)
	}
	return scanPolicies(rows, r.factory)
}

func scanPolicies(rows *sql.Rows, f *factory.PolicyFactory) ([]generic.LeavePolicy, error) {
	defer rows.Close()

	var policies []generic.LeavePolicy
	for rows.Next() {
		var configJSON string
		var active bool
		if err := rows.Scan(&configJSON, &active); err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		p, err := f.ParsePolicy(configJSON)
		if err != nil {
			return nil, fmt.Errorf("stored policy is invalid: %w", err)
		}
		p.IsActive = active
		policies = append(policies, *p)
	}
	return policies, rows.Err()
}

// SavePolicy inserts a policy or replaces its definition, bumping the
// version.
func (s *Store) SavePolicy(ctx context.Context, policy generic.LeavePolicy) error {
	configJSON, err := s.policies.Marshal(&policy)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO leave_policies (id, leave_type_id, config_json, is_active, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			leave_type_id = excluded.leave_type_id,
			config_json = excluded.config_json,
			is_active = excluded.is_active,
			version = leave_policies.version + 1,
			updated_at = excluded.updated_at
	`

	ts := now()
	_, err = s.db.ExecContext(ctx, query, policy.ID, policy.LeaveTypeID, configJSON, policy.IsActive, ts, ts)
	return err
}

// ListPolicies returns every policy, active or not, ordered by ID.
func (s *Store) ListPolicies(ctx context.Context) ([]generic.LeavePolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+policyColumns+" FROM leave_policies ORDER BY id")
	if err != nil {
		return nil, err
	}
	return scanPolicies(rows, s.policies)
}

// =============================================================================
// LEAVE YEARS
// =============================================================================

type leaveYearRepo struct{ q querier }

func (r leaveYearRepo) FindByYear(ctx context.Context, year string) (*generic.LeaveYear, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT year, cutoff_start_date, cutoff_end_date FROM leave_years WHERE year = ?", year)
	if err != nil {
		return nil, fmt.Errorf("failed to query leave year: %w", err)
	}
	years, err := scanLeaveYears(rows)
	if err != nil || len(years) == 0 {
		return nil, err
	}
	return &years[0], nil
}

func (r leaveYearRepo) FindAll(ctx context.Context) ([]generic.LeaveYear, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT year, cutoff_start_date, cutoff_end_date FROM leave_years ORDER BY cutoff_start_date, year")
	if err != nil {
		return nil, fmt.Errorf("failed to query leave years: %w", err)
	}
	return scanLeaveYears(rows)
}

func scanLeaveYears(rows *sql.Rows) ([]generic.LeaveYear, error) {
	defer rows.Close()

	var years []generic.LeaveYear
	for rows.Next() {
		var y generic.LeaveYear
		var start, end sql.NullString
		if err := rows.Scan(&y.Year, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan leave year: %w", err)
		}
		y.CutoffStartDate = parseDate(start)
		y.CutoffEndDate = parseDate(end)
		years = append(years, y)
	}
	return years, rows.Err()
}

// SaveLeaveYear inserts or updates a leave year configuration.
func (s *Store) SaveLeaveYear(ctx context.Context, y generic.LeaveYear) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leave_years (year, cutoff_start_date, cutoff_end_date) VALUES (?, ?, ?)
		ON CONFLICT(year) DO UPDATE SET
			cutoff_start_date = excluded.cutoff_start_date,
			cutoff_end_date = excluded.cutoff_end_date
	`, y.Year, formatDate(y.CutoffStartDate), formatDate(y.CutoffEndDate))
	return err
}

// ListLeaveYears returns every configuration in chronological order.
func (s *Store) ListLeaveYears(ctx context.Context) ([]generic.LeaveYear, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return leaveYearRepo{s.db}.FindAll(ctx)
}

// =============================================================================
// CYCLES
// =============================================================================

const cycleColumns = `id, employee_id, leave_type_id, cycle_start_year, cycle_end_year, status, total_carried, created_at`

type cycleRepo struct{ q querier }

func (r cycleRepo) FindOverlapping(ctx context.Context, emp generic.EmployeeID, lt generic.LeaveTypeID, window generic.CycleWindow) (*generic.LeaveCycle, error) {
	return r.one(ctx, `
		SELECT `+cycleColumns+` FROM leave_cycles
		WHERE employee_id = ? AND leave_type_id = ?
		  AND cycle_start_year < ? AND ? < cycle_end_year
		ORDER BY cycle_start_year
		LIMIT 1
	`, emp, lt, window.EndYear, window.StartYear)
}

func (r cycleRepo) GetActive(ctx context.Context, emp generic.EmployeeID, lt generic.LeaveTypeID) (*generic.LeaveCycle, error) {
	return r.one(ctx, `
		SELECT `+cycleColumns+` FROM leave_cycles
		WHERE employee_id = ? AND leave_type_id = ? AND status = ?
		ORDER BY cycle_start_year DESC
		LIMIT 1
	`, emp, lt, string(generic.CycleActive))
}

func (r cycleRepo) one(ctx context.Context, query string, args ...any) (*generic.LeaveCycle, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}
	cycles, err := scanCycles(rows)
	if err != nil || len(cycles) == 0 {
		return nil, err
	}
	return &cycles[0], nil
}

func (r cycleRepo) Create(ctx context.Context, c generic.LeaveCycle) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = generic.Today()
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO leave_cycles (`+cycleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.EmployeeID, c.LeaveTypeID, c.CycleStartYear, c.CycleEndYear,
		string(c.Status), c.TotalCarried, formatDate(c.CreatedAt))

	if isOverlapTriggerError(err) {
		return generic.NewBadRequest(generic.ReasonOverlappingCycle,
			"employee %s already has a cycle overlapping %s", c.EmployeeID, c.Window())
	}
	if err != nil {
		return fmt.Errorf("failed to insert cycle: %w", err)
	}
	return nil
}

func (r cycleRepo) ListByEmployee(ctx context.Context, emp generic.EmployeeID) ([]generic.LeaveCycle, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+cycleColumns+` FROM leave_cycles
		WHERE employee_id = ?
		ORDER BY leave_type_id, cycle_start_year
	`, emp)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}
	return scanCycles(rows)
}

func scanCycles(rows *sql.Rows) ([]generic.LeaveCycle, error) {
	defer rows.Close()

	var cycles []generic.LeaveCycle
	for rows.Next() {
		var c generic.LeaveCycle
		var status string
		var createdAt sql.NullString
		if err := rows.Scan(&c.ID, &c.EmployeeID, &c.LeaveTypeID, &c.CycleStartYear, &c.CycleEndYear,
			&status, &c.TotalCarried, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		c.Status = generic.CycleStatus(status)
		c.CreatedAt = parseDate(createdAt)
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

// SaveCycle inserts a cycle outside of an orchestrator run. The overlap
// trigger still applies.
func (s *Store) SaveCycle(ctx context.Context, c generic.LeaveCycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return cycleRepo{s.db}.Create(ctx, c)
}

// =============================================================================
// BALANCES
// =============================================================================

const balanceColumns = `id, employee_id, leave_type_id, policy_id, year,
	beginning_balance, earned, used, carried_over, encashed, remaining,
	status, last_transaction_date`

type balanceRepo struct{ q querier }

func (r balanceRepo) FindByLeaveType(ctx context.Context, emp generic.EmployeeID, lt generic.LeaveTypeID, year string) (*generic.LeaveBalance, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+balanceColumns+` FROM leave_balances
		WHERE employee_id = ? AND leave_type_id = ? AND year = ?
	`, emp, lt, year)
	if err != nil {
		return nil, fmt.Errorf("failed to query balance: %w", err)
	}
	balances, err := scanBalances(rows)
	if err != nil || len(balances) == 0 {
		return nil, err
	}
	return &balances[0], nil
}

func (r balanceRepo) Create(ctx context.Context, b generic.LeaveBalance) error {
	ts := now()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO leave_balances (`+balanceColumns+`, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.EmployeeID, b.LeaveTypeID, b.PolicyID, b.Year,
		b.BeginningBalance, b.Earned, b.Used, b.CarriedOver, b.Encashed, b.Remaining,
		string(b.Status), formatDate(b.LastTransactionDate), ts, ts)

	if isUniqueConstraintError(err) {
		return generic.NewBadRequest(generic.ReasonDuplicateBalance,
			"employee %s already has a balance for leave type %s in %s", b.EmployeeID, b.LeaveTypeID, b.Year)
	}
	if err != nil {
		return fmt.Errorf("failed to insert balance: %w", err)
	}
	return nil
}

func (r balanceRepo) Update(ctx context.Context, b generic.LeaveBalance) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE leave_balances SET
			policy_id = ?, beginning_balance = ?, earned = ?, used = ?,
			carried_over = ?, encashed = ?, remaining = ?, status = ?,
			last_transaction_date = ?, updated_at = ?
		WHERE id = ?
	`, b.PolicyID, b.BeginningBalance, b.Earned, b.Used,
		b.CarriedOver, b.Encashed, b.Remaining, string(b.Status),
		formatDate(b.LastTransactionDate), now(), b.ID)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.NewNotFound("leave balance", string(b.ID))
	}
	return nil
}

func (r balanceRepo) ListByEmployee(ctx context.Context, emp generic.EmployeeID) ([]generic.LeaveBalance, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+balanceColumns+` FROM leave_balances
		WHERE employee_id = ?
		ORDER BY year, leave_type_id
	`, emp)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", err)
	}
	return scanBalances(rows)
}

func scanBalances(rows *sql.Rows) ([]generic.LeaveBalance, error) {
	defer rows.Close()

	var balances []generic.LeaveBalance
	for rows.Next() {
		var b generic.LeaveBalance
		var status string
		var lastTx sql.NullString
		if err := rows.Scan(&b.ID, &b.EmployeeID, &b.LeaveTypeID, &b.PolicyID, &b.Year,
			&b.BeginningBalance, &b.Earned, &b.Used, &b.CarriedOver, &b.Encashed, &b.Remaining,
			&status, &lastTx); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		b.Status = generic.BalanceStatus(status)
		b.LastTransactionDate = parseDate(lastTx)
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

// SaveBalance inserts or replaces the balance for (employee, leave type,
// year). Used to seed history, e.g. a previous year's closing balance.
func (s *Store) SaveBalance(ctx context.Context, b generic.LeaveBalance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leave_balances (`+balanceColumns+`, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, leave_type_id, year) DO UPDATE SET
			policy_id = excluded.policy_id,
			beginning_balance = excluded.beginning_balance,
			earned = excluded.earned,
			used = excluded.used,
			carried_over = excluded.carried_over,
			encashed = excluded.encashed,
			remaining = excluded.remaining,
			status = excluded.status,
			last_transaction_date = excluded.last_transaction_date,
			updated_at = excluded.updated_at
	`, b.ID, b.EmployeeID, b.LeaveTypeID, b.PolicyID, b.Year,
		b.BeginningBalance, b.Earned, b.Used, b.CarriedOver, b.Encashed, b.Remaining,
		string(b.Status), formatDate(b.LastTransactionDate), ts, ts)
	return err
}

// =============================================================================
// AUDIT LOG (generic.AuditLog interface)
// =============================================================================

// Record appends an audit entry. Payloads are stored as JSON.
func (s *Store) Record(ctx context.Context, e generic.AuditEntry) error {
	before, err := marshalPayload(e.Before)
	if err != nil {
		return err
	}
	after, err := marshalPayload(e.After)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, timestamp, action, entity, actor_id, before_json, after_json, description, status_code, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Timestamp.UTC().Format(auditTimeLayout), string(e.Action), e.Entity, e.ActorID,
		before, after, e.Description, e.StatusCode, nullString(e.Error))
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

// ListAuditEntries returns the most recent entries first. Before and After
// are returned as json.RawMessage.
func (s *Store) ListAuditEntries(ctx context.Context, limit int) ([]generic.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, action, entity, actor_id, before_json, after_json, description, status_code, error
		FROM audit_log
		ORDER BY timestamp DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []generic.AuditEntry
	for rows.Next() {
		var e generic.AuditEntry
		var ts, action string
		var before, after, description, errText sql.NullString
		if err := rows.Scan(&e.ID, &ts, &action, &e.Entity, &e.ActorID,
			&before, &after, &description, &e.StatusCode, &errText); err != nil {
			return nil, err
		}
		e.Timestamp, _ = time.Parse(auditTimeLayout, ts)
		e.Action = generic.AuditAction(action)
		e.Description = description.String
		e.Error = errText.String
		if before.Valid {
			e.Before = json.RawMessage(before.String)
		}
		if after.Valid {
			e.After = json.RawMessage(after.String)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func marshalPayload(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode audit payload: %w", err)
	}
	if string(b) == "null" {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"leave_balances", "leave_cycles", "leave_years", "leave_policies", "leave_types", "employees", "audit_log"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

// auditTimeLayout is fixed width so text ordering matches time ordering.
const auditTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func now() string { return time.Now().UTC().Format(time.RFC3339) }

func formatDate(tp generic.TimePoint) sql.NullString {
	if tp.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: tp.String(), Valid: true}
}

func parseDate(s sql.NullString) generic.TimePoint {
	if !s.Valid || s.String == "" {
		return generic.TimePoint{}
	}
	tp, _ := generic.ParseDate(s.String)
	return tp
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isOverlapTriggerError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "overlaps an existing cycle")
}
