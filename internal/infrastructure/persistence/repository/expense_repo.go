package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/briceletutour/AlcomV4-sub001/internal/application/port"
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/entity"
	"github.com/briceletutour/AlcomV4-sub001/internal/infrastructure/persistence/sqldb"
	"go.uber.org/zap"
)

const expenseColumns = `id, requester_id, station_id, category, description, amount, status,
	approver_line_manager_id, disbursement_method, disbursed_at, disbursed_by_id,
	idempotency_key, version, created_at, updated_at`

// ExpenseRepository implements port.ExpenseRepository
type ExpenseRepository struct {
	base
	logger *zap.Logger
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db *sqldb.DB, logger *zap.Logger) *ExpenseRepository {
	return &ExpenseRepository{
		base:   base{db: db},
		logger: logger,
	}
}

// Create inserts an expense at version 1
func (r *ExpenseRepository) Create(ctx context.Context, exp *entity.Expense) error {
	now := time.Now().UTC()
	exp.CreatedAt, exp.UpdatedAt, exp.Version = now, now, 1

	id, err := r.insertReturningID(ctx, `
		INSERT INTO expenses (
			requester_id, station_id, category, description, amount, status,
			approver_line_manager_id, idempotency_key, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		exp.RequesterID,
		nullableInt64(exp.StationID),
		exp.Category,
		exp.Description,
		exp.Amount,
		exp.Status,
		nullableInt64(exp.ApproverLineManagerID),
		nullableString(exp.IdempotencyKey),
		exp.Version,
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create expense", zap.Int64("requester_id", exp.RequesterID), zap.Error(err))
		return fmt.Errorf("failed to create expense: %w", err)
	}

	exp.ID = id
	return nil
}

// GetByID retrieves an expense by ID
func (r *ExpenseRepository) GetByID(ctx context.Context, id int64) (*entity.Expense, error) {
	return r.getOne(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
}

// GetForUpdate retrieves an expense and locks its row inside a transaction
func (r *ExpenseRepository) GetForUpdate(ctx context.Context, id int64) (*entity.Expense, error) {
	return r.getOne(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`+r.db.ForUpdate(ctx), id)
}

// GetByIdempotencyKey retrieves the expense created with key
func (r *ExpenseRepository) GetByIdempotencyKey(ctx context.Context, key string) (*entity.Expense, error) {
	return r.getOne(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE idempotency_key = ?`, key)
}

// List returns expenses newest first, optionally filtered by status
func (r *ExpenseRepository) List(ctx context.Context, filter port.ListFilter) ([]*entity.Expense, error) {
	limit, offset := normalizePage(filter)

	query := `SELECT ` + expenseColumns + ` FROM expenses`
	args := []interface{}{}
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.exec(ctx).QueryContext(ctx, r.q(query), args...)
	if err != nil {
		r.logger.Error("Failed to list expenses", zap.Error(err))
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*entity.Expense
	for rows.Next() {
		exp, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, exp)
	}
	return expenses, rows.Err()
}

// Update writes status and disbursement fields under optimistic locking
func (r *ExpenseRepository) Update(ctx context.Context, exp *entity.Expense) error {
	now := time.Now().UTC()

	var method interface{}
	if exp.DisbursementMethod != nil {
		method = string(*exp.DisbursementMethod)
	}

	err := r.updateVersioned(ctx, `
		UPDATE expenses
		SET status = ?, disbursement_method = ?, disbursed_at = ?, disbursed_by_id = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		exp.Status,
		method,
		nullableTime(exp.DisbursedAt),
		nullableInt64(exp.DisbursedByID),
		now,
		exp.ID,
		exp.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update expense", zap.Int64("id", exp.ID), zap.Int64("version", exp.Version), zap.Error(err))
		return fmt.Errorf("failed to update expense %d: %w", exp.ID, err)
	}

	exp.Version++
	exp.UpdatedAt = now
	return nil
}

func (r *ExpenseRepository) getOne(ctx context.Context, query string, arg interface{}) (*entity.Expense, error) {
	exp, err := scanExpense(r.exec(ctx).QueryRowContext(ctx, r.q(query), arg))
	if err != nil {
		if !errors.Is(err, port.ErrNotFound) {
			r.logger.Error("Failed to get expense", zap.Any("key", arg), zap.Error(err))
		}
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return exp, nil
}

func scanExpense(row rowScanner) (*entity.Expense, error) {
	var (
		exp            entity.Expense
		stationID      sql.NullInt64
		lineManager    sql.NullInt64
		method         sql.NullString
		disbursedAt    sql.NullTime
		disbursedBy    sql.NullInt64
		idempotencyKey sql.NullString
	)

	err := row.Scan(
		&exp.ID,
		&exp.RequesterID,
		&stationID,
		&exp.Category,
		&exp.Description,
		&exp.Amount,
		&exp.Status,
		&lineManager,
		&method,
		&disbursedAt,
		&disbursedBy,
		&idempotencyKey,
		&exp.Version,
		&exp.CreatedAt,
		&exp.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}

	exp.StationID = int64Ptr(stationID)
	exp.ApproverLineManagerID = int64Ptr(lineManager)
	if method.Valid {
		m := entity.DisbursementMethod(method.String)
		exp.DisbursementMethod = &m
	}
	exp.DisbursedAt = timePtr(disbursedAt)
	exp.DisbursedByID = int64Ptr(disbursedBy)
	exp.IdempotencyKey = stringPtr(idempotencyKey)
	return &exp, nil
}

// Verify interface compliance
var _ port.ExpenseRepository = (*ExpenseRepository)(nil)
