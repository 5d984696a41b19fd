package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is an internal spending request raised by an employee
type Expense struct {
	ID          int64           `json:"id"`
	RequesterID int64           `json:"requesterId"`
	StationID   *int64          `json:"stationId,omitempty"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`

	// Snapshot of the requester's line manager when the expense was created.
	// The approval chain is derived from it, never from the live directory.
	ApproverLineManagerID *int64 `json:"approverLineManagerId,omitempty"`

	// Settlement
	DisbursementMethod *DisbursementMethod `json:"disbursementMethod,omitempty"`
	DisbursedAt        *time.Time          `json:"disbursedAt,omitempty"`
	DisbursedByID      *int64              `json:"disbursedById,omitempty"`

	IdempotencyKey *string `json:"-"`
	Version        int64   `json:"version"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
