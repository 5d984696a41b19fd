package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is a supplier invoice awaiting approval and payment
type Invoice struct {
	ID            int64           `json:"id"`
	SupplierName  string          `json:"supplierName"`
	InvoiceNumber string          `json:"invoiceNumber"`
	Amount        decimal.Decimal `json:"amount"`
	InvoiceDate   time.Time       `json:"invoiceDate"`
	DueDate       *time.Time      `json:"dueDate,omitempty"`
	FileURL       string          `json:"fileUrl,omitempty"`
	Status        string          `json:"status"`
	CreatedByID   int64           `json:"createdById"`

	// Settlement
	ProofOfPaymentURL *string    `json:"proofOfPaymentUrl,omitempty"`
	PaidAt            *time.Time `json:"paidAt,omitempty"`
	PaidByID          *int64     `json:"paidById,omitempty"`

	IdempotencyKey *string `json:"-"`
	Version        int64   `json:"version"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
