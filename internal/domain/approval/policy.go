package approval

import (
	"fmt"

	"github.com/briceletutour/AlcomV4-sub001/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// Tier is one position in a request's approval chain
type Tier struct {
	Index int         `json:"index"`
	Role  entity.Role `json:"role"`

	// UserID pins the tier to a single nominal holder (line manager tiers)
	UserID *int64 `json:"user_id,omitempty"`
}

// Chain is the ordered list of tiers a request must satisfy
type Chain []Tier

// Roles returns the tier roles in order
func (c Chain) Roles() []entity.Role {
	roles := make([]entity.Role, len(c))
	for i, t := range c {
		roles[i] = t.Role
	}
	return roles
}

// RoleAfter reports whether role holds a tier strictly after index
func (c Chain) RoleAfter(index int, role entity.Role) bool {
	for _, t := range c {
		if t.Index > index && t.Role == role {
			return true
		}
	}
	return false
}

// Policy holds the amount thresholds that shape approval chains
type Policy struct {
	CFOThreshold     decimal.Decimal
	FinanceThreshold decimal.Decimal
}

// DefaultPolicy returns the thresholds used when configuration omits them
func DefaultPolicy() Policy {
	return Policy{
		CFOThreshold:     decimal.NewFromInt(5_000_000),
		FinanceThreshold: decimal.NewFromInt(500_000),
	}
}

// NewPolicy validates and builds a policy from threshold strings
func NewPolicy(cfoThreshold, financeThreshold string) (Policy, error) {
	cfo, err := decimal.NewFromString(cfoThreshold)
	if err != nil {
		return Policy{}, fmt.Errorf("invalid cfo threshold %q: %w", cfoThreshold, err)
	}
	finance, err := decimal.NewFromString(financeThreshold)
	if err != nil {
		return Policy{}, fmt.Errorf("invalid finance threshold %q: %w", financeThreshold, err)
	}

	if !finance.IsPositive() {
		return Policy{}, fmt.Errorf("finance threshold must be positive")
	}
	if !finance.LessThan(cfo) {
		return Policy{}, fmt.Errorf("finance threshold %s must be below cfo threshold %s", finance, cfo)
	}

	return Policy{CFOThreshold: cfo, FinanceThreshold: finance}, nil
}

// RequiredChain derives the approval chain for a request. It is pure: the same
// type, amount and line manager snapshot always give the same chain. A nil
// lineManagerID drops the line-manager tier.
func (p Policy) RequiredChain(requestType entity.RequestType, amount decimal.Decimal, lineManagerID *int64) (Chain, error) {
	var roles []Tier

	switch requestType {
	case entity.RequestTypeInvoice:
		if amount.GreaterThanOrEqual(p.CFOThreshold) {
			roles = []Tier{{Role: entity.RoleCFO}, {Role: entity.RoleCEO}}
		} else {
			roles = []Tier{{Role: entity.RoleFinanceDirector}}
		}

	case entity.RequestTypeExpense:
		switch {
		case amount.GreaterThanOrEqual(p.CFOThreshold):
			roles = []Tier{{Role: entity.RoleCFO}, {Role: entity.RoleCEO}}
		case amount.GreaterThanOrEqual(p.FinanceThreshold):
			if lineManagerID != nil {
				roles = append(roles, lineManagerTier(*lineManagerID))
			}
			roles = append(roles, Tier{Role: entity.RoleFinanceDirector})
		case lineManagerID != nil:
			roles = []Tier{lineManagerTier(*lineManagerID)}
		default:
			roles = []Tier{{Role: entity.RoleFinanceDirector}}
		}

	case entity.RequestTypePrice:
		roles = []Tier{{Role: entity.RoleAnyApprover}}

	default:
		return nil, fmt.Errorf("unknown request type %q", requestType)
	}

	for i := range roles {
		roles[i].Index = i
	}
	return Chain(roles), nil
}

func lineManagerTier(managerID int64) Tier {
	id := managerID
	return Tier{Role: entity.RoleLineManager, UserID: &id}
}
