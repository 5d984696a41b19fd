package approval

import (
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// Approvable is what the engine needs to know about a request. Invoice,
// Expense and FuelPrice implement it.
type Approvable interface {
	RequestType() entity.RequestType
	RequestID() int64
	Requester() int64
	ApprovalAmount() decimal.Decimal
	LineManager() *int64
	Settled() bool
}

var (
	_ Approvable = (*entity.Invoice)(nil)
	_ Approvable = (*entity.Expense)(nil)
	_ Approvable = (*entity.FuelPrice)(nil)
)

// ChainFor derives the approval chain of a request
func (p Policy) ChainFor(req Approvable) (Chain, error) {
	return p.RequiredChain(req.RequestType(), req.ApprovalAmount(), req.LineManager())
}
