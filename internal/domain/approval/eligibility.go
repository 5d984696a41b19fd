package approval

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/briceletutour/AlcomV4-sub001/internal/domain/entity"
)

// MinRejectReasonLength is the minimum trimmed length of a rejection reason
const MinRejectReasonLength = 10

// Reason identifies why an action was denied. Values match the error codes
// surfaced to API clients.
type Reason string

const (
	ReasonInvalidStatus   Reason = "INVALID_STATUS"
	ReasonSelfApproval    Reason = "BIZ_SELF_APPROVAL"
	ReasonAlreadyApproved Reason = "ALREADY_APPROVED"
	ReasonForbidden       Reason = "FORBIDDEN"
	ReasonValidation      Reason = "VALIDATION_ERROR"
)

// Denial is returned by Checker.Check when an action is not allowed
type Denial struct {
	Reason  Reason
	Message string
}

func (d *Denial) Error() string {
	return fmt.Sprintf("%s: %s", d.Reason, d.Message)
}

func deny(reason Reason, format string, args ...interface{}) *Denial {
	return &Denial{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Decision describes how an allowed action is recorded
type Decision struct {
	Tier        Tier
	OnBehalfOf  *int64
	ViaOverride bool
}

// Input gathers everything needed to judge one action
type Input struct {
	Request Approvable
	Chain   Chain
	Ledger  Ledger
	Actor   *entity.User
	Action  entity.Action
	Comment string
}

// Checker decides whether an actor may approve or reject a request now
type Checker struct {
	resolver *DelegationResolver
}

// NewChecker creates a checker backed by the delegation resolver
func NewChecker(resolver *DelegationResolver) *Checker {
	return &Checker{resolver: resolver}
}

// Check runs the eligibility rules in order; the first failing rule wins.
// It returns a *Denial for business refusals and a plain error when the
// directory cannot be read.
func (c *Checker) Check(ctx context.Context, in Input, now time.Time) (*Decision, error) {
	verb := "approve"
	if in.Action == entity.ActionReject {
		verb = "reject"
	}

	if in.Ledger.Rejected() || in.Request.Settled() {
		return nil, deny(ReasonInvalidStatus, "request is closed and cannot be modified")
	}

	if in.Actor.ID == in.Request.Requester() {
		return nil, deny(ReasonSelfApproval, "you cannot %s your own request", verb)
	}

	if !in.Actor.IsActive {
		return nil, deny(ReasonForbidden, "inactive users cannot %s requests", verb)
	}

	tier, ok := in.Ledger.PendingTier(in.Chain)
	if !ok {
		return nil, deny(ReasonInvalidStatus, "request is already fully approved")
	}

	// One person fills at most one tier, even when they hold the role of a later one
	if in.Action == entity.ActionApprove && in.Ledger.HasApprovalBy(in.Actor.ID) {
		return nil, deny(ReasonAlreadyApproved, "you have already approved this request")
	}

	decision, err := c.authorize(ctx, in, tier, now)
	if err != nil {
		return nil, err
	}
	if decision == nil {
		return nil, deny(ReasonForbidden, "cannot %s: waiting for %s", verb, tier.Role)
	}

	if in.Action == entity.ActionReject {
		if utf8.RuneCountInString(strings.TrimSpace(in.Comment)) < MinRejectReasonLength {
			return nil, deny(ReasonValidation, "rejection reason must be at least %d characters", MinRejectReasonLength)
		}
	}

	return decision, nil
}

// CanAct reports whether the actor passes the checks for action. Directory
// errors count as not allowed.
func (c *Checker) CanAct(ctx context.Context, in Input, now time.Time) bool {
	if in.Action == entity.ActionReject && in.Comment == "" {
		in.Comment = strings.Repeat("x", MinRejectReasonLength)
	}
	_, err := c.Check(ctx, in, now)
	return err == nil
}

func (c *Checker) authorize(ctx context.Context, in Input, tier Tier, now time.Time) (*Decision, error) {
	// Four-eyes tier: anyone but the creator, which was already ruled out
	if tier.Role == entity.RoleAnyApprover {
		return &Decision{Tier: tier}, nil
	}

	actors, err := c.resolver.EffectiveActors(ctx, tier, now)
	if err != nil {
		return nil, err
	}
	if a, ok := actors[in.Actor.ID]; ok {
		return &Decision{Tier: tier, OnBehalfOf: a.OnBehalfOf}, nil
	}

	// Override satisfies the current tier only, and not a tier that precedes
	// the holder's own slot in the chain.
	if HasOverride(in.Actor.Role) && !in.Chain.RoleAfter(tier.Index, in.Actor.Role) {
		return &Decision{Tier: tier, ViaOverride: true}, nil
	}

	return nil, nil
}
