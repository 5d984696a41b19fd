package port

import (
	"context"
	"errors"
	"time"

	"github.com/briceletutour/AlcomV4-sub001/internal/domain/entity"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a write lost a race with a concurrent
	// transaction: a stale version, a busy database or a unique-key clash.
	// The whole unit of work may be retried.
	ErrConflict = errors.New("concurrent modification")
)

// ListFilter narrows list queries
type ListFilter struct {
	Status string
	Limit  int
	Offset int
}

// UserRepository defines persistence operations for the user directory
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	ListByRole(ctx context.Context, role entity.Role) ([]*entity.User, error)
	List(ctx context.Context, filter ListFilter) ([]*entity.User, error)

	// SetDelegation stores a backup approver window; nil clears it
	SetDelegation(ctx context.Context, userID int64, delegation *entity.Delegation) error
}

// InvoiceRepository defines persistence operations for Invoice
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *entity.Invoice) error
	GetByID(ctx context.Context, id int64) (*entity.Invoice, error)

	// GetForUpdate loads the invoice and locks its row until the
	// surrounding transaction ends
	GetForUpdate(ctx context.Context, id int64) (*entity.Invoice, error)

	GetByIdempotencyKey(ctx context.Context, key string) (*entity.Invoice, error)
	CountByInvoiceNumber(ctx context.Context, invoiceNumber string) (int, error)
	List(ctx context.Context, filter ListFilter) ([]*entity.Invoice, error)

	// Update writes mutable fields when the stored version matches
	// invoice.Version and bumps it; a mismatch yields ErrConflict
	Update(ctx context.Context, invoice *entity.Invoice) error
}

// ExpenseRepository defines persistence operations for Expense
type ExpenseRepository interface {
	Create(ctx context.Context, expense *entity.Expense) error
	GetByID(ctx context.Context, id int64) (*entity.Expense, error)
	GetForUpdate(ctx context.Context, id int64) (*entity.Expense, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*entity.Expense, error)
	List(ctx context.Context, filter ListFilter) ([]*entity.Expense, error)
	Update(ctx context.Context, expense *entity.Expense) error
}

// FuelPriceRepository defines persistence operations for FuelPrice
type FuelPriceRepository interface {
	Create(ctx context.Context, price *entity.FuelPrice) error
	GetByID(ctx context.Context, id int64) (*entity.FuelPrice, error)
	GetForUpdate(ctx context.Context, id int64) (*entity.FuelPrice, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*entity.FuelPrice, error)

	// FindOpen returns a not yet activated, not rejected price for the
	// same fuel type and effective date
	FindOpen(ctx context.Context, fuelType entity.FuelType, effectiveDate time.Time) (*entity.FuelPrice, error)

	// GetActive returns the active price of a fuel type
	GetActive(ctx context.Context, fuelType entity.FuelType) (*entity.FuelPrice, error)

	// ListDueForActivation returns approved prices whose effective date is
	// on or before asOf and that are not active yet
	ListDueForActivation(ctx context.Context, asOf time.Time, limit int) ([]*entity.FuelPrice, error)

	List(ctx context.Context, filter ListFilter) ([]*entity.FuelPrice, error)
	Update(ctx context.Context, price *entity.FuelPrice) error
}

// ApprovalStepRepository is the append-only approval ledger
type ApprovalStepRepository interface {
	// Append records a step; a second step for the same tier yields ErrConflict
	Append(ctx context.Context, step *entity.ApprovalStep) error

	// ListByRequest returns the steps of one request in tier order
	ListByRequest(ctx context.Context, requestType entity.RequestType, requestID int64) ([]*entity.ApprovalStep, error)

	// ListByType returns all steps of a request type ordered by request and tier
	ListByType(ctx context.Context, requestType entity.RequestType) ([]*entity.ApprovalStep, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
