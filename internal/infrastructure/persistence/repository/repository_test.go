package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/briceletutour/AlcomV4-sub001/internal/application/port"
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/entity"
	"github.com/briceletutour/AlcomV4-sub001/internal/infrastructure/persistence/sqldb"
	"github.com/briceletutour/AlcomV4-sub001/pkg/database"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDB(t *testing.T) *sqldb.DB {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{Driver: database.DriverSQLite, Path: filepath.Join(t.TempDir(), "repo.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).Migrate())
	return sqldb.NewDB(db.DB, sqldb.DialectSQLite, logger)
}

func seedUser(t *testing.T, repo *UserRepository, email string, role entity.Role) *entity.User {
	t.Helper()
	u := &entity.User{Email: email, FullName: email, Role: role, IsActive: true}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t), zap.NewNop())

	cfo := seedUser(t, repo, "cfo@alcom.test", entity.RoleCFO)
	backup := seedUser(t, repo, "ops@alcom.test", entity.RoleOperationsManager)
	clerk := &entity.User{Email: "clerk@alcom.test", FullName: "Clerk", Role: entity.RoleAccountant, IsActive: true, LineManagerID: &cfo.ID}
	require.NoError(t, repo.Create(ctx, clerk))

	t.Run("get by id", func(t *testing.T) {
		got, err := repo.GetByID(ctx, clerk.ID)
		require.NoError(t, err)
		assert.Equal(t, "clerk@alcom.test", got.Email)
		assert.Equal(t, entity.RoleAccountant, got.Role)
		assert.True(t, got.IsActive)
		require.NotNil(t, got.LineManagerID)
		assert.Equal(t, cfo.ID, *got.LineManagerID)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := repo.GetByID(ctx, 9999)
		assert.ErrorIs(t, err, port.ErrNotFound)
	})

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		err := repo.Create(ctx, &entity.User{Email: "cfo@alcom.test", FullName: "x", Role: entity.RoleCFO, IsActive: true})
		assert.ErrorIs(t, err, port.ErrConflict)
	})

	t.Run("list by role", func(t *testing.T) {
		users, err := repo.ListByRole(ctx, entity.RoleCFO)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, cfo.ID, users[0].ID)
	})

	t.Run("set and clear delegation", func(t *testing.T) {
		start := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
		end := start.Add(72 * time.Hour)

		require.NoError(t, repo.SetDelegation(ctx, cfo.ID, &entity.Delegation{BackupApproverID: backup.ID, Start: start, End: end}))

		got, err := repo.GetByID(ctx, cfo.ID)
		require.NoError(t, err)
		require.NotNil(t, got.BackupApproverID)
		assert.Equal(t, backup.ID, *got.BackupApproverID)
		assert.True(t, got.DelegationStart.Equal(start))
		assert.True(t, got.DelegationEnd.Equal(end))
		assert.True(t, got.DelegationActive(start.Add(time.Hour)))

		require.NoError(t, repo.SetDelegation(ctx, cfo.ID, nil))
		got, err = repo.GetByID(ctx, cfo.ID)
		require.NoError(t, err)
		assert.Nil(t, got.BackupApproverID)
		assert.Nil(t, got.DelegationStart)
	})

	t.Run("delegation for unknown user", func(t *testing.T) {
		assert.ErrorIs(t, repo.SetDelegation(ctx, 4242, nil), port.ErrNotFound)
	})

	t.Run("list pages", func(t *testing.T) {
		users, err := repo.List(ctx, port.ListFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, users, 2)

		users, err = repo.List(ctx, port.ListFilter{Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.Len(t, users, 1)
	})
}

func TestInvoiceRepository(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewUserRepository(db, zap.NewNop())
	repo := NewInvoiceRepository(db, zap.NewNop())

	creator := seedUser(t, users, "acct@alcom.test", entity.RoleAccountant)
	key := "idem-1"
	inv := &entity.Invoice{
		SupplierName:   "Total Energies",
		InvoiceNumber:  "INV-2026-001",
		Amount:         decimal.RequireFromString("1250000.50"),
		InvoiceDate:    time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
		Status:         entity.StatusSubmitted,
		CreatedByID:    creator.ID,
		IdempotencyKey: &key,
	}
	require.NoError(t, repo.Create(ctx, inv))
	require.NotZero(t, inv.ID)
	assert.Equal(t, int64(1), inv.Version)

	t.Run("round trip keeps exact amount", func(t *testing.T) {
		got, err := repo.GetByID(ctx, inv.ID)
		require.NoError(t, err)
		assert.True(t, got.Amount.Equal(decimal.RequireFromString("1250000.50")), got.Amount.String())
		assert.Equal(t, "2026-04-02", got.InvoiceDate.Format("2006-01-02"))
		assert.Nil(t, got.PaidAt)
		require.NotNil(t, got.IdempotencyKey)
		assert.Equal(t, key, *got.IdempotencyKey)
	})

	t.Run("lookup by idempotency key", func(t *testing.T) {
		got, err := repo.GetByIdempotencyKey(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, inv.ID, got.ID)

		_, err = repo.GetByIdempotencyKey(ctx, "unknown")
		assert.ErrorIs(t, err, port.ErrNotFound)
	})

	t.Run("count by number", func(t *testing.T) {
		n, err := repo.CountByInvoiceNumber(ctx, "INV-2026-001")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("versioned update", func(t *testing.T) {
		current, err := repo.GetByID(ctx, inv.ID)
		require.NoError(t, err)
		stale := *current

		proof := "https://files.alcom.test/proof.pdf"
		now := time.Now().UTC()
		current.Status = entity.StatusPaid
		current.ProofOfPaymentURL = &proof
		current.PaidAt = &now
		current.PaidByID = &creator.ID
		require.NoError(t, repo.Update(ctx, current))
		assert.Equal(t, int64(2), current.Version)

		stale.Status = entity.StatusRejected
		assert.ErrorIs(t, repo.Update(ctx, &stale), port.ErrConflict)

		got, err := repo.GetByID(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusPaid, got.Status)
		require.NotNil(t, got.ProofOfPaymentURL)
		assert.Equal(t, proof, *got.ProofOfPaymentURL)
	})

	t.Run("list filters by status", func(t *testing.T) {
		paid, err := repo.List(ctx, port.ListFilter{Status: entity.StatusPaid})
		require.NoError(t, err)
		assert.Len(t, paid, 1)

		submitted, err := repo.List(ctx, port.ListFilter{Status: entity.StatusSubmitted})
		require.NoError(t, err)
		assert.Empty(t, submitted)
	})
}

func TestExpenseRepository(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewUserRepository(db, zap.NewNop())
	repo := NewExpenseRepository(db, zap.NewNop())

	manager := seedUser(t, users, "mgr@alcom.test", entity.RoleStationManager)
	requester := seedUser(t, users, "att@alcom.test", entity.RolePumpAttendant)

	exp := &entity.Expense{
		RequesterID:           requester.ID,
		Category:              "MAINTENANCE",
		Description:           "Pump 3 nozzle replacement",
		Amount:                decimal.NewFromInt(75000),
		Status:                entity.StatusSubmitted,
		ApproverLineManagerID: &manager.ID,
	}
	require.NoError(t, repo.Create(ctx, exp))

	got, err := repo.GetForUpdate(ctx, exp.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ApproverLineManagerID)
	assert.Equal(t, manager.ID, *got.ApproverLineManagerID)
	assert.Nil(t, got.DisbursementMethod)

	method := entity.DisbursementPettyCash
	now := time.Now().UTC()
	got.Status = entity.StatusDisbursed
	got.DisbursementMethod = &method
	got.DisbursedAt = &now
	got.DisbursedByID = &manager.ID
	require.NoError(t, repo.Update(ctx, got))

	reloaded, err := repo.GetByID(ctx, exp.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.DisbursementMethod)
	assert.Equal(t, entity.DisbursementPettyCash, *reloaded.DisbursementMethod)
	assert.Equal(t, int64(2), reloaded.Version)
}

func TestFuelPriceRepository(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewUserRepository(db, zap.NewNop())
	repo := NewFuelPriceRepository(db, zap.NewNop())
	creator := seedUser(t, users, "ops@alcom.test", entity.RoleOperationsManager)

	day := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	newPrice := func(fuel entity.FuelType, date time.Time, status string) *entity.FuelPrice {
		p := &entity.FuelPrice{FuelType: fuel, Price: decimal.NewFromInt(840), EffectiveDate: date, CreatedByID: creator.ID, Status: status}
		require.NoError(t, repo.Create(ctx, p))
		return p
	}

	open := newPrice(entity.FuelSuper, day, entity.StatusSubmitted)
	newPrice(entity.FuelGasoil, day, entity.StatusRejected)
	due := newPrice(entity.FuelGasoil, day.AddDate(0, 0, -1), entity.StatusApproved)
	newPrice(entity.FuelPetrole, day.AddDate(0, 0, 5), entity.StatusApproved)

	t.Run("find open proposal", func(t *testing.T) {
		got, err := repo.FindOpen(ctx, entity.FuelSuper, day)
		require.NoError(t, err)
		assert.Equal(t, open.ID, got.ID)

		_, err = repo.FindOpen(ctx, entity.FuelGasoil, day)
		assert.ErrorIs(t, err, port.ErrNotFound, "rejected proposals do not block")
	})

	t.Run("due for activation", func(t *testing.T) {
		prices, err := repo.ListDueForActivation(ctx, day, 10)
		require.NoError(t, err)
		require.Len(t, prices, 1)
		assert.Equal(t, due.ID, prices[0].ID)
	})

	t.Run("single active price per fuel", func(t *testing.T) {
		now := time.Now().UTC()
		due.IsActive, due.ActivatedAt, due.Status = true, &now, entity.StatusActive
		require.NoError(t, repo.Update(ctx, due))

		active, err := repo.GetActive(ctx, entity.FuelGasoil)
		require.NoError(t, err)
		assert.Equal(t, due.ID, active.ID)

		other := newPrice(entity.FuelGasoil, day.AddDate(0, 0, 1), entity.StatusApproved)
		other.IsActive, other.ActivatedAt = true, &now
		assert.ErrorIs(t, repo.Update(ctx, other), port.ErrConflict)
	})
}

func TestApprovalStepRepository(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewUserRepository(db, zap.NewNop())
	repo := NewApprovalStepRepository(db, zap.NewNop())

	cfo := seedUser(t, users, "cfo@alcom.test", entity.RoleCFO)
	ceo := seedUser(t, users, "ceo@alcom.test", entity.RoleCEO)

	first := &entity.ApprovalStep{RequestType: entity.RequestTypeInvoice, RequestID: 7, TierIndex: 0, TierRole: entity.RoleCFO, ActorID: cfo.ID, Action: entity.ActionApprove}
	require.NoError(t, repo.Append(ctx, first))
	assert.NotZero(t, first.ID)
	assert.False(t, first.ActedAt.IsZero())

	t.Run("second step on the same tier conflicts", func(t *testing.T) {
		dup := &entity.ApprovalStep{RequestType: entity.RequestTypeInvoice, RequestID: 7, TierIndex: 0, TierRole: entity.RoleCFO, ActorID: ceo.ID, Action: entity.ActionApprove}
		assert.ErrorIs(t, repo.Append(ctx, dup), port.ErrConflict)
	})

	t.Run("same tier index on another request type is independent", func(t *testing.T) {
		other := &entity.ApprovalStep{RequestType: entity.RequestTypeExpense, RequestID: 7, TierIndex: 0, TierRole: entity.RoleCFO, ActorID: cfo.ID, Action: entity.ActionApprove}
		require.NoError(t, repo.Append(ctx, other))
	})

	onBehalf := cfo.ID
	require.NoError(t, repo.Append(ctx, &entity.ApprovalStep{
		RequestType: entity.RequestTypeInvoice, RequestID: 7, TierIndex: 1, TierRole: entity.RoleCEO,
		ActorID: ceo.ID, Action: entity.ActionApprove, OnBehalfOfID: &onBehalf, ViaOverride: true, Comment: "ok",
	}))

	steps, err := repo.ListByRequest(ctx, entity.RequestTypeInvoice, 7)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, 0, steps[0].TierIndex)
	assert.Equal(t, 1, steps[1].TierIndex)
	assert.True(t, steps[1].ViaOverride)
	require.NotNil(t, steps[1].OnBehalfOfID)
	assert.Equal(t, cfo.ID, *steps[1].OnBehalfOfID)

	all, err := repo.ListByType(ctx, entity.RequestTypeExpense)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestTransactionRollsBackRepositoryWrites(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewUserRepository(db, zap.NewNop())

	err := db.WithTransaction(ctx, func(txCtx context.Context) error {
		u := &entity.User{Email: "temp@alcom.test", FullName: "Temp", Role: entity.RoleLogistics, IsActive: true}
		require.NoError(t, users.Create(txCtx, u))
		return port.ErrConflict
	})
	assert.ErrorIs(t, err, port.ErrConflict)

	_, err = users.GetByEmail(ctx, "temp@alcom.test")
	assert.ErrorIs(t, err, port.ErrNotFound)
}
