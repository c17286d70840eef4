package leave_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/entitlement-engine/generic"
	"github.com/warp/entitlement-engine/leave"
)

// =============================================================================
// CREATE BALANCE
// =============================================================================

func TestCreateBalance_CarriesCappedRemainingFromPreviousYear(t *testing.T) {
	// GIVEN: Ana's 2024 vacation balance has 20 days remaining
	// AND: the policy grants 15 days and carries at most 10
	// WHEN: creating her 2025 vacation balance
	// THEN: carriedOver = 10 and beginningBalance = remaining = 25

	mem := newFixture()
	mem.SaveBalance(generic.LeaveBalance{
		ID: "bal-2024", EmployeeID: "emp-1", LeaveTypeID: "vl", PolicyID: "vl-policy",
		Year: "2024", Remaining: days(20), Status: generic.BalanceClosed,
	})
	gen := newBalanceGenerator(mem, nil)

	b, err := gen.CreateBalance(context.Background(), leave.CreateBalanceInput{
		EmployeeID: "emp-1", LeaveType: "Vacation Leave", Year: "2025",
	})
	require.NoError(t, err)

	assert.True(t, b.CarriedOver.Equal(days(10)), "carried %s", b.CarriedOver)
	assert.True(t, b.Earned.Equal(days(15)))
	assert.True(t, b.BeginningBalance.Equal(days(25)))
	assert.True(t, b.Remaining.Equal(days(25)))
	assert.True(t, b.Used.IsZero())
	assert.True(t, b.Encashed.IsZero())
	assert.Equal(t, generic.BalanceOpen, b.Status)
	assert.Equal(t, generic.PolicyID("vl-policy"), b.PolicyID)
	assert.Equal(t, fixedToday, b.LastTransactionDate)
	assert.Len(t, balancesFor(mem, "emp-1", "vl", "2025"), 1)
}

func TestCreateBalance_PreviousYearFollowsConfiguredOrder(t *testing.T) {
	// GIVEN: a leave year labelled "FY-2026" configured after 2025
	// WHEN: creating the FY-2026 balance
	// THEN: carry-over comes from the 2025 row, found by cutoff order

	mem := newFixture()
	mem.SaveLeaveYear(generic.LeaveYear{
		Year:            "FY-2026",
		CutoffStartDate: date(2026, time.January, 1),
		CutoffEndDate:   date(2026, time.December, 31),
	})
	mem.SaveBalance(generic.LeaveBalance{
		ID: "bal-2025", EmployeeID: "emp-1", LeaveTypeID: "vl", Year: "2025", Remaining: days(7),
	})

	b, err := newBalanceGenerator(mem, nil).CreateBalance(context.Background(), leave.CreateBalanceInput{
		EmployeeID: "emp-1", LeaveType: "Vacation Leave", Year: "FY-2026",
	})
	require.NoError(t, err)

	assert.True(t, b.CarriedOver.Equal(days(7)))
	assert.True(t, b.BeginningBalance.Equal(days(22)))
}

func TestCreateBalance_NegativeRemainingCarriesNothing(t *testing.T) {
	mem := newFixture()
	mem.SaveBalance(generic.LeaveBalance{
		ID: "bal-2024", EmployeeID: "emp-1", LeaveTypeID: "vl", Year: "2024", Remaining: days(-2),
	})

	b, err := newBalanceGenerator(mem, nil).CreateBalance(context.Background(), leave.CreateBalanceInput{
		EmployeeID: "emp-1", LeaveType: "Vacation Leave", Year: "2025",
	})
	require.NoError(t, err)

	assert.True(t, b.CarriedOver.IsZero())
	assert.True(t, b.BeginningBalance.Equal(days(15)))
}

func TestCreateBalance_HiredAfterCutoffIsIneligible(t *testing.T) {
	// GIVEN: an employee hired 2024-06-01
	// WHEN: creating the 2024 balance (cutoff start 2024-01-01)
	// THEN: BadRequest with the evaluator's reason; nothing written

	mem := newFixture()
	mem.SaveEmployee(generic.Employee{
		ID: "emp-4", Name: "Cara Lim", HireDate: date(2024, time.June, 1),
		Status: generic.StatusRegular, IsActive: true,
	})

	_, err := newBalanceGenerator(mem, nil).CreateBalance(context.Background(), leave.CreateBalanceInput{
		EmployeeID: "emp-4", LeaveType: "Sick Leave", Year: "2024",
	})

	var bad *generic.BadRequestError
	require.ErrorAs(t, err, &bad)
	assert.Equal(t, generic.ReasonIneligible, bad.Reason)
	assert.Contains(t, bad.Message, "not yet tenured")
	assert.Empty(t, mem.Balances())
}

func TestGenerateAnnualBalances_EmployeeWithoutDatesIsSkipped(t *testing.T) {
	// GIVEN: an active regular employee with no hire or regularization date
	mem := newFixture()
	mem.SaveEmployee(generic.Employee{ID: "emp-5", Name: "Dee Santos", Status: generic.StatusRegular, IsActive: true})

	// WHEN: generating 2025 balances
	res, err := newBalanceGenerator(mem, nil).GenerateAnnualBalances(context.Background(), leave.GenerateBalancesInput{Year: "2025"})
	require.NoError(t, err)

	// THEN: both of the employee's policies are skipped as ineligible
	var skipped []leave.SkipEntry
	for _, s := range res.SkippedEmployees {
		if s.EmployeeID == "emp-5" {
			skipped = append(skipped, s)
		}
	}
	require.Len(t, skipped, 2)
	for _, s := range skipped {
		assert.Equal(t, leave.SkipIneligible, s.Reason)
		assert.Contains(t, s.Details, "no hire or regularization date")
	}
	assert.Empty(t, balancesFor(mem, "emp-5", "vl", "2025"))
	assert.Empty(t, balancesFor(mem, "emp-5", "sl", "2025"))
}

func TestCreateBalance_DuplicateIsRejected(t *testing.T) {
	// GIVEN: a 2025 sick leave balance for Ana
	// WHEN: creating it again
	// THEN: BadRequest balance_already_exists and still exactly one row

	ctx := context.Background()
	mem := newFixture()
	gen := newBalanceGenerator(mem, nil)
	in := leave.CreateBalanceInput{EmployeeID: "emp-1", LeaveType: "Sick Leave", Year: "2025"}

	_, err := gen.CreateBalance(ctx, in)
	require.NoError(t, err)

	_, err = gen.CreateBalance(ctx, in)

	var bad *generic.BadRequestError
	require.ErrorAs(t, err, &bad)
	assert.Equal(t, generic.ReasonDuplicateBalance, bad.Reason)
	assert.Len(t, balancesFor(mem, "emp-1", "sl", "2025"), 1)
}

func TestCreateBalance_Failures(t *testing.T) {
	tests := []struct {
		name       string
		input      leave.CreateBalanceInput
		wantStatus int
		wantReason string
	}{
		{
			name:       "unknown employee",
			input:      leave.CreateBalanceInput{EmployeeID: "emp-404", LeaveType: "Sick Leave", Year: "2025"},
			wantStatus: 404,
		},
		{
			name:       "unknown leave type",
			input:      leave.CreateBalanceInput{EmployeeID: "emp-1", LeaveType: "Study Leave", Year: "2025"},
			wantStatus: 404,
		},
		{
			name:       "missing leave year configuration",
			input:      leave.CreateBalanceInput{EmployeeID: "emp-1", LeaveType: "Sick Leave", Year: "2030"},
			wantStatus: 404,
		},
		{
			name:       "unknown policy",
			input:      leave.CreateBalanceInput{EmployeeID: "emp-1", LeaveType: "Sick Leave", PolicyID: "nope", Year: "2025"},
			wantStatus: 404,
		},
		{
			name:       "policy of another leave type",
			input:      leave.CreateBalanceInput{EmployeeID: "emp-1", LeaveType: "Vacation Leave", PolicyID: "sl-policy", Year: "2025"},
			wantStatus: 400,
			wantReason: generic.ReasonInvalidInput,
		},
		{
			name:       "inactive policy",
			input:      leave.CreateBalanceInput{EmployeeID: "emp-1", LeaveType: "Vacation Leave", PolicyID: "vl-legacy", Year: "2025"},
			wantStatus: 400,
			wantReason: generic.ReasonNoActivePolicy,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := newFixture()
			legacy := vacationPolicy()
			legacy.ID = "vl-legacy"
			legacy.IsActive = false
			mem.SavePolicy(legacy)
			audit := &recordingAudit{}

			_, err := newBalanceGenerator(mem, audit).CreateBalance(context.Background(), tt.input)

			require.Error(t, err)
			assert.Equal(t, tt.wantStatus, generic.StatusCode(err), err.Error())
			if tt.wantReason != "" {
				var bad *generic.BadRequestError
				require.ErrorAs(t, err, &bad)
				assert.Equal(t, tt.wantReason, bad.Reason)
			}
			assert.Empty(t, mem.Balances())
			assert.Equal(t, tt.wantStatus, audit.last().StatusCode)
		})
	}
}

func TestCreateBalance_ExplicitPolicyIsUsed(t *testing.T) {
	mem := newFixture()
	custom := vacationPolicy()
	custom.ID = "vl-senior"
	custom.AnnualEntitlement = days(20)
	mem.SavePolicy(custom)

	b, err := newBalanceGenerator(mem, nil).CreateBalance(context.Background(), leave.CreateBalanceInput{
		EmployeeID: "emp-1", LeaveType: "Vacation Leave", PolicyID: "vl-senior", Year: "2025",
	})
	require.NoError(t, err)

	assert.Equal(t, generic.PolicyID("vl-senior"), b.PolicyID)
	assert.True(t, b.Earned.Equal(days(20)))
}

func TestCreateBalance_AuditFailureDoesNotFailOperation(t *testing.T) {
	mem := newFixture()
	audit := &recordingAudit{err: errors.New("audit sink down")}

	_, err := newBalanceGenerator(mem, audit).CreateBalance(context.Background(), leave.CreateBalanceInput{
		EmployeeID: "emp-1", LeaveType: "Sick Leave", Year: "2025",
	})

	require.NoError(t, err)
	assert.Len(t, mem.Balances(), 1)
	assert.Equal(t, generic.AuditBalanceCreated, audit.last().Action)
}

func TestCreateBalance_CancelledContext(t *testing.T) {
	mem := newFixture()
	audit := &recordingAudit{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newBalanceGenerator(mem, audit).CreateBalance(ctx, leave.CreateBalanceInput{
		EmployeeID: "emp-1", LeaveType: "Sick Leave", Year: "2025",
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 500, audit.last().StatusCode)
	assert.Empty(t, mem.Balances())
}

// =============================================================================
// BULK GENERATION
// =============================================================================

func TestGenerateAnnualBalances_SkipsIneligiblePair(t *testing.T) {
	// GIVEN: two active employees and two active policies
	// AND: Ben has three months of tenure on 2024-01-01, below vacation's six
	// WHEN: generating 2024 balances
	// THEN: three balances are generated and Ben's vacation is skipped

	mem := newFixture()
	audit := &recordingAudit{}

	res, err := newBalanceGenerator(mem, audit).GenerateAnnualBalances(context.Background(), leave.GenerateBalancesInput{Year: "2024"})
	require.NoError(t, err)

	assert.Equal(t, "2024", res.Year)
	assert.Equal(t, 3, res.GeneratedCount)
	assert.Equal(t, 1, res.SkippedCount)
	require.Len(t, res.SkippedEmployees, 1)

	skip := res.SkippedEmployees[0]
	assert.Equal(t, generic.EmployeeID("emp-2"), skip.EmployeeID)
	assert.Equal(t, "Ben Cruz", skip.EmployeeName)
	assert.Equal(t, "Vacation Leave", skip.LeaveType)
	assert.Equal(t, leave.SkipIneligible, skip.Reason)
	assert.Contains(t, skip.Details, "tenure")

	assert.Len(t, mem.Balances(), 3)
	assert.Empty(t, balancesFor(mem, "emp-2", "vl", "2024"))

	entry := audit.last()
	assert.Equal(t, generic.AuditBalancesGenerated, entry.Action)
	assert.True(t, entry.Succeeded())
}

func TestGenerateAnnualBalances_SecondRunIsIdempotent(t *testing.T) {
	// GIVEN: 2025 balances generated for every pair
	// WHEN: generating 2025 again without force
	// THEN: nothing is generated and every pair reports balance_already_exists

	ctx := context.Background()
	mem := newFixture()
	gen := newBalanceGenerator(mem, nil)

	first, err := gen.GenerateAnnualBalances(ctx, leave.GenerateBalancesInput{Year: "2025"})
	require.NoError(t, err)
	require.Equal(t, 4, first.GeneratedCount)

	second, err := gen.GenerateAnnualBalances(ctx, leave.GenerateBalancesInput{Year: "2025"})
	require.NoError(t, err)

	assert.Zero(t, second.GeneratedCount)
	assert.Equal(t, 4, second.SkippedCount)
	for _, s := range second.SkippedEmployees {
		assert.Equal(t, leave.SkipBalanceExists, s.Reason)
	}
	assert.Len(t, mem.Balances(), 4, "no duplicate rows")
}

func TestGenerateAnnualBalances_ChainsCarryOverAcrossRuns(t *testing.T) {
	ctx := context.Background()
	mem := newFixture()
	gen := newBalanceGenerator(mem, nil)

	_, err := gen.GenerateAnnualBalances(ctx, leave.GenerateBalancesInput{Year: "2024"})
	require.NoError(t, err)
	res, err := gen.GenerateAnnualBalances(ctx, leave.GenerateBalancesInput{Year: "2025"})
	require.NoError(t, err)
	assert.Equal(t, 4, res.GeneratedCount)

	anaVL := balancesFor(mem, "emp-1", "vl", "2025")
	require.Len(t, anaVL, 1)
	assert.True(t, anaVL[0].CarriedOver.Equal(days(10)), "15 remaining capped at 10")
	assert.True(t, anaVL[0].BeginningBalance.Equal(days(25)))

	anaSL := balancesFor(mem, "emp-1", "sl", "2025")
	require.Len(t, anaSL, 1)
	assert.True(t, anaSL[0].CarriedOver.IsZero(), "sick leave does not carry")

	benVL := balancesFor(mem, "emp-2", "vl", "2025")
	require.Len(t, benVL, 1)
	assert.True(t, benVL[0].CarriedOver.IsZero(), "no 2024 vacation row to carry from")
}

func TestGenerateAnnualBalances_ForceRegeneratesInPlace(t *testing.T) {
	// GIVEN: 2025 balances with 3 days already used by Ana
	// AND: the vacation entitlement raised to 20
	// WHEN: regenerating with force
	// THEN: rows are recomputed in place, consumption kept, no duplicates

	ctx := context.Background()
	mem := newFixture()
	gen := newBalanceGenerator(mem, nil)

	_, err := gen.GenerateAnnualBalances(ctx, leave.GenerateBalancesInput{Year: "2025"})
	require.NoError(t, err)

	before := balancesFor(mem, "emp-1", "vl", "2025")[0]
	before.Used = days(3)
	before.Remaining = before.Remaining.Sub(days(3))
	mem.SaveBalance(before)

	raised := vacationPolicy()
	raised.AnnualEntitlement = days(20)
	mem.SavePolicy(raised)

	res, err := gen.GenerateAnnualBalances(ctx, leave.GenerateBalancesInput{Year: "2025", ForceRegenerate: true})
	require.NoError(t, err)

	assert.Equal(t, 4, res.GeneratedCount)
	assert.Equal(t, 4, res.RegeneratedCount)
	assert.Zero(t, res.SkippedCount)
	assert.Len(t, mem.Balances(), 4)

	after := balancesFor(mem, "emp-1", "vl", "2025")
	require.Len(t, after, 1)
	assert.Equal(t, before.ID, after[0].ID)
	assert.True(t, after[0].Earned.Equal(days(20)))
	assert.True(t, after[0].Used.Equal(days(3)))
	assert.True(t, after[0].Remaining.Equal(days(17)))
}

func TestGenerateAnnualBalances_ForceStillSkipsIneligible(t *testing.T) {
	mem := newFixture()

	res, err := newBalanceGenerator(mem, nil).GenerateAnnualBalances(context.Background(),
		leave.GenerateBalancesInput{Year: "2024", ForceRegenerate: true})
	require.NoError(t, err)

	assert.Equal(t, []string{leave.SkipIneligible}, skipReasons(res.SkippedEmployees))
}

func TestGenerateAnnualBalances_StorageFailureRollsBackEverything(t *testing.T) {
	// GIVEN: storage that fails on the third balance write
	// WHEN: generating 2025 balances
	// THEN: the run errors with the storage error and no row is kept

	mem := newFixture()
	writes := 0
	mem.FailBalanceWrite = func(generic.LeaveBalance) error {
		writes++
		if writes == 3 {
			return errDiskFull
		}
		return nil
	}
	audit := &recordingAudit{}

	res, err := newBalanceGenerator(mem, audit).GenerateAnnualBalances(context.Background(), leave.GenerateBalancesInput{Year: "2025"})

	assert.Nil(t, res)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, 500, generic.StatusCode(err))
	assert.Empty(t, mem.Balances(), "whole run is one transaction")

	entry := audit.last()
	assert.Equal(t, 500, entry.StatusCode)
	assert.Contains(t, entry.Error, "disk full")
}

func TestGenerateAnnualBalances_PrerequisitesFailFast(t *testing.T) {
	t.Run("missing year configuration", func(t *testing.T) {
		mem := newFixture()
		_, err := newBalanceGenerator(mem, nil).GenerateAnnualBalances(context.Background(), leave.GenerateBalancesInput{Year: "1999"})
		assert.True(t, generic.IsNotFound(err))
	})

	t.Run("no active policies", func(t *testing.T) {
		mem := newFixture()
		for _, p := range []generic.LeavePolicy{vacationPolicy(), sickPolicy()} {
			p.IsActive = false
			mem.SavePolicy(p)
		}
		_, err := newBalanceGenerator(mem, nil).GenerateAnnualBalances(context.Background(), leave.GenerateBalancesInput{Year: "2025"})
		assert.True(t, generic.IsBadRequest(err))
	})

	t.Run("no active employees", func(t *testing.T) {
		mem := newFixture()
		mem.SaveEmployee(generic.Employee{ID: "emp-1", Name: "Ana Reyes", Status: generic.StatusResigned})
		mem.SaveEmployee(generic.Employee{ID: "emp-2", Name: "Ben Cruz", Status: generic.StatusResigned})
		_, err := newBalanceGenerator(mem, nil).GenerateAnnualBalances(context.Background(), leave.GenerateBalancesInput{Year: "2025"})
		assert.True(t, generic.IsNotFound(err))
	})
}

// countingStore counts how often a transaction loads the leave-year
// configurations.
type countingStore struct {
	generic.Store
	yearLoads int
}

func (s *countingStore) Begin(ctx context.Context) (generic.Tx, error) {
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return countingTx{Tx: tx, store: s}, nil
}

type countingTx struct {
	generic.Tx
	store *countingStore
}

func (t countingTx) LeaveYears() generic.LeaveYearRepository {
	return countingYears{LeaveYearRepository: t.Tx.LeaveYears(), store: t.store}
}

type countingYears struct {
	generic.LeaveYearRepository
	store *countingStore
}

func (r countingYears) FindAll(ctx context.Context) ([]generic.LeaveYear, error) {
	r.store.yearLoads++
	return r.LeaveYearRepository.FindAll(ctx)
}

func TestGenerateAnnualBalances_ResolvesPreviousYearOncePerBatch(t *testing.T) {
	// GIVEN: 2024 vacation balances for both employees
	mem := newFixture()
	mem.SaveBalance(generic.LeaveBalance{ID: "b1", EmployeeID: "emp-1", LeaveTypeID: "vl", Year: "2024", Remaining: days(4)})
	mem.SaveBalance(generic.LeaveBalance{ID: "b2", EmployeeID: "emp-2", LeaveTypeID: "vl", Year: "2024", Remaining: days(30)})
	counting := &countingStore{Store: mem}
	gen := leave.NewBalanceGenerator(counting, nil, nil).WithClock(fixedClock)

	// WHEN: generating 2025 for every employee and policy
	res, err := gen.GenerateAnnualBalances(context.Background(), leave.GenerateBalancesInput{Year: "2025"})
	require.NoError(t, err)
	require.Positive(t, res.GeneratedCount)

	// THEN: the calendar was read once, and each carry-over came from 2024
	assert.Equal(t, 1, counting.yearLoads)
	ana := balancesFor(mem, "emp-1", "vl", "2025")
	require.Len(t, ana, 1)
	assert.True(t, ana[0].CarriedOver.Equal(days(4)))
	ben := balancesFor(mem, "emp-2", "vl", "2025")
	if assert.Len(t, ben, 1) {
		assert.True(t, ben[0].CarriedOver.Equal(days(10)))
	}
}
