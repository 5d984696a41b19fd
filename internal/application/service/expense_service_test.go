package service

import (
	"context"
	"testing"
	"time"

	"github.com/briceletutour/AlcomV4-sub001/internal/apperror"
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createExpense(t *testing.T, f *fixture, requester *entity.User, amount string) *entity.Expense {
	t.Helper()
	created, err := f.expenseSvc.Create(context.Background(), requester.ID, CreateExpenseInput{
		Category:    "MAINTENANCE",
		Description: "Pump 3 nozzle replacement",
		Amount:      decimal.RequireFromString(amount),
	})
	require.NoError(t, err)
	return created.Expense
}

func TestExpenseService_ChainFollowsLineManagerSnapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("small expense goes to the line manager", func(t *testing.T) {
		f := newFixture()
		manager := f.addUser(entity.RoleStationManager, nil)
		employee := f.addUser(entity.RoleShiftSupervisor, &manager.ID)

		exp := createExpense(t, f, employee, "20000")
		require.NotNil(t, exp.ApproverLineManagerID)
		assert.Equal(t, manager.ID, *exp.ApproverLineManagerID)

		detail, err := f.expenseSvc.Get(ctx, exp.ID, manager.ID)
		require.NoError(t, err)
		assert.Equal(t, []entity.Role{entity.RoleLineManager}, detail.RequiredApprovers)
		assert.True(t, detail.CanApprove)

		// Another station manager is not this employee's manager
		other := f.addUser(entity.RoleStationManager, nil)
		_, err = f.expenseSvc.Approve(ctx, exp.ID, other.ID, "")
		assert.Equal(t, apperror.CodeForbidden, apperror.CodeOf(err))

		result, err := f.expenseSvc.Approve(ctx, exp.ID, manager.ID, "")
		require.NoError(t, err)
		assert.Equal(t, entity.StatusApproved, result.Status)
	})

	t.Run("no manager falls back to the finance director", func(t *testing.T) {
		f := newFixture()
		employee := f.addUser(entity.RoleLogistics, nil)
		fd := f.addUser(entity.RoleFinanceDirector, nil)

		exp := createExpense(t, f, employee, "20000")
		assert.Nil(t, exp.ApproverLineManagerID)

		detail, err := f.expenseSvc.Get(ctx, exp.ID, fd.ID)
		require.NoError(t, err)
		assert.Equal(t, []entity.Role{entity.RoleFinanceDirector}, detail.RequiredApprovers)
	})

	t.Run("inactive manager is not snapshotted", func(t *testing.T) {
		f := newFixture()
		manager := f.addUser(entity.RoleStationManager, nil)
		f.users.users[manager.ID].IsActive = false
		employee := f.addUser(entity.RolePumpAttendant, &manager.ID)

		exp := createExpense(t, f, employee, "600000")
		assert.Nil(t, exp.ApproverLineManagerID)

		detail, err := f.expenseSvc.Get(ctx, exp.ID, employee.ID)
		require.NoError(t, err)
		assert.Equal(t, []entity.Role{entity.RoleFinanceDirector}, detail.RequiredApprovers)
		assert.False(t, detail.CanApprove, "requester never sees approve")
	})

	t.Run("mid-range expense needs manager then finance director", func(t *testing.T) {
		f := newFixture()
		manager := f.addUser(entity.RoleStationManager, nil)
		employee := f.addUser(entity.RoleShiftSupervisor, &manager.ID)
		fd := f.addUser(entity.RoleFinanceDirector, nil)

		exp := createExpense(t, f, employee, "500000")

		_, err := f.expenseSvc.Approve(ctx, exp.ID, fd.ID, "")
		assert.Equal(t, apperror.CodeForbidden, apperror.CodeOf(err), "finance director cannot jump the manager")

		result, err := f.expenseSvc.Approve(ctx, exp.ID, manager.ID, "")
		require.NoError(t, err)
		assert.Equal(t, "PENDING_FINANCE_DIRECTOR", result.Status)
		assert.Equal(t, MessageAwaitingApprovals, result.Message)

		result, err = f.expenseSvc.Approve(ctx, exp.ID, fd.ID, "")
		require.NoError(t, err)
		assert.Equal(t, entity.StatusApproved, result.Status)
	})
}

func TestExpenseService_AlreadyApproved(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	employee := f.addUser(entity.RoleOperationsManager, nil)
	cfo := f.addUser(entity.RoleCFO, nil)

	exp := createExpense(t, f, employee, "5000000")

	result, err := f.expenseSvc.Approve(ctx, exp.ID, cfo.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "PENDING_CEO", result.Status)

	_, err = f.expenseSvc.Approve(ctx, exp.ID, cfo.ID, "")
	require.Error(t, err)
	assert.Equal(t, apperror.CodeAlreadyApproved, apperror.CodeOf(err))

	steps, _ := f.steps.ListByRequest(ctx, entity.RequestTypeExpense, exp.ID)
	assert.Len(t, steps, 1)
}

func TestExpenseService_LineManagerWhoIsFinanceDirector(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	fd := f.addUser(entity.RoleFinanceDirector, nil)
	employee := f.addUser(entity.RoleAccountant, &fd.ID)
	otherFD := f.addUser(entity.RoleFinanceDirector, nil)

	exp := createExpense(t, f, employee, "600000")
	require.NotNil(t, exp.ApproverLineManagerID)
	assert.Equal(t, fd.ID, *exp.ApproverLineManagerID)

	result, err := f.expenseSvc.Approve(ctx, exp.ID, fd.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "PENDING_FINANCE_DIRECTOR", result.Status)

	_, err = f.expenseSvc.Approve(ctx, exp.ID, fd.ID, "")
	assert.Equal(t, apperror.CodeAlreadyApproved, apperror.CodeOf(err), "one person fills one tier")

	result, err = f.expenseSvc.Approve(ctx, exp.ID, otherFD.ID, "")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, result.Status)

	steps, _ := f.steps.ListByRequest(ctx, entity.RequestTypeExpense, exp.ID)
	require.Len(t, steps, 2)
	assert.NotEqual(t, steps[0].ActorID, steps[1].ActorID)
}

func TestExpenseService_BackupApprover(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	employee := f.addUser(entity.RoleAccountant, nil)
	fd := f.addUser(entity.RoleFinanceDirector, nil)
	backup := f.addUser(entity.RoleAccountant, nil)

	exp := createExpense(t, f, employee, "20000")

	_, err := f.expenseSvc.Approve(ctx, exp.ID, backup.ID, "")
	assert.Equal(t, apperror.CodeForbidden, apperror.CodeOf(err), "before delegation")

	now := f.clock.Now()
	_, err = f.userSvc.Delegate(ctx, fd.ID, fd.ID, entity.Delegation{
		BackupApproverID: backup.ID,
		Start:            now.Add(-time.Hour),
		End:              now.Add(time.Hour),
	})
	require.NoError(t, err)

	result, err := f.expenseSvc.Approve(ctx, exp.ID, backup.ID, "covering")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, result.Status)
	assert.Equal(t, backup.ID, result.Step.ActorID)
	assert.Equal(t, entity.RoleFinanceDirector, result.Step.TierRole)
	require.NotNil(t, result.Step.OnBehalfOfID)
	assert.Equal(t, fd.ID, *result.Step.OnBehalfOfID)
}

func TestExpenseService_Disburse(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	employee := f.addUser(entity.RoleLogistics, nil)
	fd := f.addUser(entity.RoleFinanceDirector, nil)
	accountant := f.addUser(entity.RoleAccountant, nil)

	exp := createExpense(t, f, employee, "15000")

	_, err := f.expenseSvc.Disburse(ctx, exp.ID, accountant.ID, entity.DisbursementBankTransfer)
	assert.Equal(t, apperror.CodeInvalidStatus, apperror.CodeOf(err))

	_, err = f.expenseSvc.Approve(ctx, exp.ID, fd.ID, "")
	require.NoError(t, err)

	_, err = f.expenseSvc.Disburse(ctx, exp.ID, accountant.ID, entity.DisbursementMethod("CHEQUE"))
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))

	detail, err := f.expenseSvc.Get(ctx, exp.ID, accountant.ID)
	require.NoError(t, err)
	assert.True(t, detail.CanDisburse)

	result, err := f.expenseSvc.Disburse(ctx, exp.ID, accountant.ID, entity.DisbursementPettyCash)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusDisbursed, result.Status)

	stored := f.expenses.expenses[exp.ID]
	require.NotNil(t, stored.DisbursementMethod)
	assert.Equal(t, entity.DisbursementPettyCash, *stored.DisbursementMethod)
	assert.NotNil(t, stored.DisbursedAt)

	_, err = f.expenseSvc.Disburse(ctx, exp.ID, accountant.ID, entity.DisbursementPettyCash)
	assert.Equal(t, apperror.CodeInvalidStatus, apperror.CodeOf(err))
}

func TestExpenseService_IdempotencyKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	employee := f.addUser(entity.RoleLogistics, nil)

	in := CreateExpenseInput{Category: "FUEL", Amount: decimal.NewFromInt(100), IdempotencyKey: "exp-1"}
	first, err := f.expenseSvc.Create(ctx, employee.ID, in)
	require.NoError(t, err)

	second, err := f.expenseSvc.Create(ctx, employee.ID, in)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Expense.ID, second.Expense.ID)
	assert.Len(t, f.expenses.expenses, 1)
}
