package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// FuelPrice is a proposed or active per-litre price for one fuel type
type FuelPrice struct {
	ID            int64           `json:"id"`
	FuelType      FuelType        `json:"fuelType"`
	Price         decimal.Decimal `json:"price"`
	EffectiveDate time.Time       `json:"effectiveDate"`
	Comment       string          `json:"comment,omitempty"`
	CreatedByID   int64           `json:"createdById"`
	Status        string          `json:"status"`

	IsActive      bool       `json:"isActive"`
	ActivatedAt   *time.Time `json:"activatedAt,omitempty"`
	DeactivatedAt *time.Time `json:"deactivatedAt,omitempty"`

	IdempotencyKey *string `json:"-"`
	Version        int64   `json:"version"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
