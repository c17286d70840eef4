// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/entitlement-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps every table in maps. A transaction holds the write lock for
// its whole lifetime, so runs are serialized like a single-writer database.
type Memory struct {
	mu   sync.Mutex
	data memoryData

	// FailBalanceWrite, when set, is called before every balance write inside
	// a transaction. A non-nil result aborts the write. Tests use it to
	// simulate storage failures.
	FailBalanceWrite func(generic.LeaveBalance) error
}

type memoryData struct {
	employees  map[generic.EmployeeID]generic.Employee
	leaveTypes map[generic.LeaveTypeID]generic.LeaveType
	policies   map[generic.PolicyID]generic.LeavePolicy
	leaveYears map[string]generic.LeaveYear
	cycles     []generic.LeaveCycle
	balances   []generic.LeaveBalance
}

func NewMemory() *Memory {
	return &Memory{data: memoryData{
		employees:  make(map[generic.EmployeeID]generic.Employee),
		leaveTypes: make(map[generic.LeaveTypeID]generic.LeaveType),
		policies:   make(map[generic.PolicyID]generic.LeavePolicy),
		leaveYears: make(map[string]generic.LeaveYear),
	}}
}

// =============================================================================
// SEEDING - Reference data managed outside the engine
// =============================================================================

func (m *Memory) SaveEmployee(e generic.Employee) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.employees[e.ID] = e
}

func (m *Memory) SaveLeaveType(lt generic.LeaveType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.leaveTypes[lt.ID] = lt
}

func (m *Memory) SavePolicy(p generic.LeavePolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.policies[p.ID] = p
}

func (m *Memory) SaveLeaveYear(y generic.LeaveYear) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.leaveYears[y.Year] = y
}

// SaveBalance inserts or replaces a balance outside of any transaction.
func (m *Memory) SaveBalance(b generic.LeaveBalance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.data.balances {
		if m.data.balances[i].ID == b.ID {
			m.data.balances[i] = b
			return
		}
	}
	m.data.balances = append(m.data.balances, b)
}

// SaveCycle inserts a cycle outside of any transaction.
func (m *Memory) SaveCycle(c generic.LeaveCycle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.cycles = append(m.data.cycles, c)
}

// Balances returns a copy of every stored balance.
func (m *Memory) Balances() []generic.LeaveBalance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]generic.LeaveBalance{}, m.data.balances...)
}

// Cycles returns a copy of every stored cycle.
func (m *Memory) Cycles() []generic.LeaveCycle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]generic.LeaveCycle{}, m.data.cycles...)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// Begin locks the store and snapshots it. Rollback restores the snapshot.
func (m *Memory) Begin(ctx context.Context) (generic.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	return &memoryTx{parent: m, snapshot: m.data.clone()}, nil
}

func (d memoryData) clone() memoryData {
	c := memoryData{
		employees:  make(map[generic.EmployeeID]generic.Employee, len(d.employees)),
		leaveTypes: make(map[generic.LeaveTypeID]generic.LeaveType, len(d.leaveTypes)),
		policies:   make(map[generic.PolicyID]generic.LeavePolicy, len(d.policies)),
		leaveYears: make(map[string]generic.LeaveYear, len(d.leaveYears)),
		cycles:     append([]generic.LeaveCycle{}, d.cycles...),
		balances:   append([]generic.LeaveBalance{}, d.balances...),
	}
	for k, v := range d.employees {
		c.employees[k] = v
	}
	for k, v := range d.leaveTypes {
		c.leaveTypes[k] = v
	}
	for k, v := range d.policies {
		c.policies[k] = v
	}
	for k, v := range d.leaveYears {
		c.leaveYears[k] = v
	}
	return c
}

type memoryTx struct {
	parent   *Memory
	snapshot memoryData
	done     bool
}

func (tx *memoryTx) Commit() error {
	if tx.done {
		return generic.ErrTxDone
	}
	tx.done = true
	tx.parent.mu.Unlock()
	return nil
}

func (tx *memoryTx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.done = true
	tx.parent.data = tx.snapshot
	tx.parent.mu.Unlock()
	return nil
}

func (tx *memoryTx) Employees() generic.EmployeeRepository   { return memEmployees{tx} }
func (tx *memoryTx) Policies() generic.PolicyRepository      { return memPolicies{tx} }
func (tx *memoryTx) LeaveTypes() generic.LeaveTypeRepository { return memLeaveTypes{tx} }
func (tx *memoryTx) LeaveYears() generic.LeaveYearRepository { return memLeaveYears{tx} }
func (tx *memoryTx) Cycles() generic.CycleRepository         { return memCycles{tx} }
func (tx *memoryTx) Balances() generic.BalanceRepository     { return memBalances{tx} }

func (tx *memoryTx) data() (*memoryData, error) {
	if tx.done {
		return nil, generic.ErrTxDone
	}
	return &tx.parent.data, nil
}

// =============================================================================
// REPOSITORY VIEWS
// =============================================================================

type memEmployees struct{ tx *memoryTx }

func (r memEmployees) FindByID(_ context.Context, id generic.EmployeeID) (*generic.Employee, error) {
	d, err := r.tx.data()
	if err != nil {
		return nil, err
	}
	e, ok := d.employees[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (r memEmployees) RetrieveActive(_ context.Context) ([]generic.Employee, error) {
	d, err := r.tx.data()
	if err != nil {
		return nil, err
	}
	var out []generic.Employee
	for _, e := range d.employees {
		if e.IsActive {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memPolicies struct{ tx *memoryTx }

func (r memPolicies) FindByID(_ context.Context, id generic.PolicyID) (*generic.LeavePolicy, error) {
	d, err := r.tx.data()
	if err != nil {
		return nil, err
	}
	p, ok := d.policies[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r memPolicies) GetActivePolicy(ctx context.Context, leaveTypeID generic.LeaveTypeID) (*generic.LeavePolicy, error) {
	active, err := r.RetrieveActive(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range active {
		if p.LeaveTypeID == leaveTypeID {
			return &p, nil
		}
	}
	return nil, nil
}

func (r memPolicies) RetrieveActive(_ context.Context) ([]generic.LeavePolicy, error) {
	d, err := r.tx.data()
	if err != nil {
		return nil, err
	}
	var out []generic.LeavePolicy
	for _, p := range d.policies {
		if p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memLeaveTypes struct{ tx *memoryTx }

func (r memLeaveTypes) FindByName(_ context.Context, name string) (*generic.LeaveType, error) {
	d, err := r.tx.data()
	if err != nil {
		return nil, err
	}
	for _, lt := range d.leaveTypes {
		if lt.Name == name {
			return &lt, nil
		}
	}
	return nil, nil
}

type memLeaveYears struct{ tx *memoryTx }

func (r memLeaveYears) FindByYear(_ context.Context, year string) (*generic.LeaveYear, error) {
	d, err := r.tx.data()
	if err != nil {
		return nil, err
	}
	y, ok := d.leaveYears[year]
	if !ok {
		return nil, nil
	}
	return &y, nil
}

func (r memLeaveYears) FindAll(_ context.Context) ([]generic.LeaveYear, error) {
	d, err := r.tx.data()
	if err != nil {
		return nil, err
	}
	years := make([]generic.LeaveYear, 0, len(d.leaveYears))
	for _, y := range d.leaveYears {
		years = append(years, y)
	}
	return generic.NewLeaveYearCalendar(years).Years(), nil
}

type memCycles struct{ tx *memoryTx }

func (r memCycles) FindOverlapping(_ context.Context, emp generic.EmployeeID, lt generic.LeaveTypeID, window generic.CycleWindow) (*generic.LeaveCycle, error) {
	d, err := r.tx.data()
	if err != nil {
		return nil, err
	}
	for _, c := range d.cycles {
		if c.EmployeeID == emp && c.LeaveTypeID == lt && c.Window().Overlaps(window) {
			return &c, nil
		}
	}
	return nil, nil
}

func (r memCycles) GetActive(_ context.Context, emp generic.EmployeeID, lt generic.LeaveTypeID) (*generic.LeaveCycle, error) {
	d, err := r.tx.data()
	if err != nil {
		return nil, err
	}
	for i := len(d.cycles) - 1; i >= 0; i-- {
		c := d.cycles[i]
		if c.EmployeeID == emp && c.LeaveTypeID == lt && c.Status == generic.CycleActive {
			return &c, nil
		}
	}
	return nil, nil
}

func (r memCycles) Create(_ context.Context, cycle generic.LeaveCycle) error {
	d, err := r.tx.data()
	if err != nil {
		return err
	}
	d.cycles = append(d.cycles, cycle)
	return nil
}

func (r memCycles) ListByEmployee(_ context.Context, emp generic.EmployeeID) ([]generic.LeaveCycle, error) {
	d, err := r.tx.data()
	if err != nil {
		return nil, err
	}
	var out []generic.LeaveCycle
	for _, c := range d.cycles {
		if c.EmployeeID == emp {
			out = append(out, c)
		}
	}
	return out, nil
}

type memBalances struct{ tx *memoryTx }

func (r memBalances) FindByLeaveType(_ context.Context, emp generic.EmployeeID, lt generic.LeaveTypeID, year string) (*generic.LeaveBalance, error) {
	d, err := r.tx.data()
	if err != nil {
		return nil, err
	}
	for _, b := range d.balances {
		if b.EmployeeID == emp && b.LeaveTypeID == lt && b.Year == year {
			return &b, nil
		}
	}
	return nil, nil
}

func (r memBalances) Create(_ context.Context, balance generic.LeaveBalance) error {
	d, err := r.tx.data()
	if err != nil {
		return err
	}
	if hook := r.tx.parent.FailBalanceWrite; hook != nil {
		if err := hook(balance); err != nil {
			return err
		}
	}
	d.balances = append(d.balances, balance)
	return nil
}

func (r memBalances) Update(_ context.Context, balance generic.LeaveBalance) error {
	d, err := r.tx.data()
	if err != nil {
		return err
	}
	if hook := r.tx.parent.FailBalanceWrite; hook != nil {
		if err := hook(balance); err != nil {
			return err
		}
	}
	for i := range d.balances {
		if d.balances[i].ID == balance.ID {
			d.balances[i] = balance
			return nil
		}
	}
	return generic.NewNotFound("leave balance", string(balance.ID))
}

func (r memBalances) ListByEmployee(_ context.Context, emp generic.EmployeeID) ([]generic.LeaveBalance, error) {
	d, err := r.tx.data()
	if err != nil {
		return nil, err
	}
	var out []generic.LeaveBalance
	for _, b := range d.balances {
		if b.EmployeeID == emp {
			out = append(out, b)
		}
	}
	return out, nil
}
