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

const invoiceColumns = `id, supplier_name, invoice_number, amount, invoice_date, due_date,
	file_url, status, created_by_id, proof_of_payment_url, paid_at, paid_by_id,
	idempotency_key, version, created_at, updated_at`

// InvoiceRepository implements port.InvoiceRepository
type InvoiceRepository struct {
	base
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sqldb.DB, logger *zap.Logger) *InvoiceRepository {
	return &InvoiceRepository{
		base:   base{db: db},
		logger: logger,
	}
}

// Create inserts an invoice at version 1
func (r *InvoiceRepository) Create(ctx context.Context, inv *entity.Invoice) error {
	now := time.Now().UTC()
	inv.CreatedAt, inv.UpdatedAt, inv.Version = now, now, 1

	id, err := r.insertReturningID(ctx, `
		INSERT INTO invoices (
			supplier_name, invoice_number, amount, invoice_date, due_date, file_url,
			status, created_by_id, idempotency_key, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		inv.SupplierName,
		inv.InvoiceNumber,
		inv.Amount,
		dateParam(inv.InvoiceDate),
		nullableDate(inv.DueDate),
		inv.FileURL,
		inv.Status,
		inv.CreatedByID,
		nullableString(inv.IdempotencyKey),
		inv.Version,
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create invoice", zap.String("invoice_number", inv.InvoiceNumber), zap.Error(err))
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	inv.ID = id
	return nil
}

// GetByID retrieves an invoice by ID
func (r *InvoiceRepository) GetByID(ctx context.Context, id int64) (*entity.Invoice, error) {
	return r.getOne(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id)
}

// GetForUpdate retrieves an invoice and locks its row inside a transaction
func (r *InvoiceRepository) GetForUpdate(ctx context.Context, id int64) (*entity.Invoice, error) {
	return r.getOne(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`+r.db.ForUpdate(ctx), id)
}

// GetByIdempotencyKey retrieves the invoice created with key
func (r *InvoiceRepository) GetByIdempotencyKey(ctx context.Context, key string) (*entity.Invoice, error) {
	return r.getOne(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE idempotency_key = ?`, key)
}

// CountByInvoiceNumber counts invoices already recorded under a number
func (r *InvoiceRepository) CountByInvoiceNumber(ctx context.Context, invoiceNumber string) (int, error) {
	var n int
	err := r.exec(ctx).QueryRowContext(ctx,
		r.q(`SELECT COUNT(*) FROM invoices WHERE invoice_number = ?`), invoiceNumber).Scan(&n)
	if err != nil {
		r.logger.Error("Failed to count invoices by number", zap.String("invoice_number", invoiceNumber), zap.Error(err))
		return 0, fmt.Errorf("failed to count invoices: %w", err)
	}
	return n, nil
}

// List returns invoices newest first, optionally filtered by status
func (r *InvoiceRepository) List(ctx context.Context, filter port.ListFilter) ([]*entity.Invoice, error) {
	limit, offset := normalizePage(filter)

	query := `SELECT ` + invoiceColumns + ` FROM invoices`
	args := []interface{}{}
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.exec(ctx).QueryContext(ctx, r.q(query), args...)
	if err != nil {
		r.logger.Error("Failed to list invoices", zap.Error(err))
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*entity.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// Update writes status and settlement fields under optimistic locking
func (r *InvoiceRepository) Update(ctx context.Context, inv *entity.Invoice) error {
	now := time.Now().UTC()

	err := r.updateVersioned(ctx, `
		UPDATE invoices
		SET status = ?, proof_of_payment_url = ?, paid_at = ?, paid_by_id = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		inv.Status,
		nullableString(inv.ProofOfPaymentURL),
		nullableTime(inv.PaidAt),
		nullableInt64(inv.PaidByID),
		now,
		inv.ID,
		inv.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update invoice", zap.Int64("id", inv.ID), zap.Int64("version", inv.Version), zap.Error(err))
		return fmt.Errorf("failed to update invoice %d: %w", inv.ID, err)
	}

	inv.Version++
	inv.UpdatedAt = now
	return nil
}

func (r *InvoiceRepository) getOne(ctx context.Context, query string, arg interface{}) (*entity.Invoice, error) {
	inv, err := scanInvoice(r.exec(ctx).QueryRowContext(ctx, r.q(query), arg))
	if err != nil {
		if !errors.Is(err, port.ErrNotFound) {
			r.logger.Error("Failed to get invoice", zap.Any("key", arg), zap.Error(err))
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return inv, nil
}

func scanInvoice(row rowScanner) (*entity.Invoice, error) {
	var (
		inv            entity.Invoice
		dueDate        sql.NullTime
		proof          sql.NullString
		paidAt         sql.NullTime
		paidBy         sql.NullInt64
		idempotencyKey sql.NullString
	)

	err := row.Scan(
		&inv.ID,
		&inv.SupplierName,
		&inv.InvoiceNumber,
		&inv.Amount,
		&inv.InvoiceDate,
		&dueDate,
		&inv.FileURL,
		&inv.Status,
		&inv.CreatedByID,
		&proof,
		&paidAt,
		&paidBy,
		&idempotencyKey,
		&inv.Version,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}

	inv.DueDate = timePtr(dueDate)
	inv.ProofOfPaymentURL = stringPtr(proof)
	inv.PaidAt = timePtr(paidAt)
	inv.PaidByID = int64Ptr(paidBy)
	inv.IdempotencyKey = stringPtr(idempotencyKey)
	return &inv, nil
}

// Verify interface compliance
var _ port.InvoiceRepository = (*InvoiceRepository)(nil)
