package entity

import "github.com/shopspring/decimal"

// The methods below let each request entity satisfy approval.Approvable.

func (i *Invoice) RequestType() RequestType        { return RequestTypeInvoice }
func (i *Invoice) RequestID() int64                { return i.ID }
func (i *Invoice) Requester() int64                { return i.CreatedByID }
func (i *Invoice) ApprovalAmount() decimal.Decimal { return i.Amount }
func (i *Invoice) LineManager() *int64             { return nil }
func (i *Invoice) Settled() bool                   { return i.PaidAt != nil }

func (e *Expense) RequestType() RequestType        { return RequestTypeExpense }
func (e *Expense) RequestID() int64                { return e.ID }
func (e *Expense) Requester() int64                { return e.RequesterID }
func (e *Expense) ApprovalAmount() decimal.Decimal { return e.Amount }
func (e *Expense) LineManager() *int64             { return e.ApproverLineManagerID }
func (e *Expense) Settled() bool                   { return e.DisbursedAt != nil }

func (p *FuelPrice) RequestType() RequestType { return RequestTypePrice }
func (p *FuelPrice) RequestID() int64         { return p.ID }
func (p *FuelPrice) Requester() int64         { return p.CreatedByID }

// ApprovalAmount is zero: a price change needs one non-creator approval
// whatever its value.
func (p *FuelPrice) ApprovalAmount() decimal.Decimal { return decimal.Zero }
func (p *FuelPrice) LineManager() *int64             { return nil }
func (p *FuelPrice) Settled() bool                   { return p.ActivatedAt != nil }
