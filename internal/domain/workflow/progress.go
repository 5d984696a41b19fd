package workflow

import (
	"context"
	"fmt"
	"sync"
)

// Progress is everything needed to know where a request stands: the length
// of its derived chain and what its ledger and settlement fields say.
type Progress struct {
	TiersTotal    int
	TiersApproved int
	Rejected      bool
	Settled       bool
}

// Remaining returns how many tiers still need an approval
func (p Progress) Remaining() int {
	if r := p.TiersTotal - p.TiersApproved; r > 0 {
		return r
	}
	return 0
}

func (p Progress) after(trigger Trigger) Progress {
	switch trigger {
	case TriggerApprove:
		p.TiersApproved++
	case TriggerReject:
		p.Rejected = true
	case TriggerSettle:
		p.Settled = true
	}
	return p
}

// Derive computes the current state from a request's progress. It is the
// single source of status; persisted status columns are only a cache of it.
func Derive(p Progress) (State, error) {
	if p.TiersTotal <= 0 || p.TiersApproved < 0 || p.TiersApproved > p.TiersTotal {
		return "", fmt.Errorf("%w: %d of %d tiers approved", ErrInconsistentProgress, p.TiersApproved, p.TiersTotal)
	}

	switch {
	case p.Rejected:
		if p.Settled {
			return "", fmt.Errorf("%w: rejected request cannot be settled", ErrInconsistentProgress)
		}
		return StateRejected, nil
	case p.TiersApproved == p.TiersTotal && p.Settled:
		return StateSettled, nil
	case p.Settled:
		return "", fmt.Errorf("%w: settled before full approval", ErrInconsistentProgress)
	case p.TiersApproved == p.TiersTotal:
		return StateApproved, nil
	case p.TiersApproved == 0:
		return StateSubmitted, nil
	default:
		return StatePending, nil
	}
}

// requestTransitions is built on first use, after the state tables exist
var requestTransitions = sync.OnceValue(newRequestBuilder)

// newRequestBuilder wires the transition table of an approvable request
func newRequestBuilder() StateMachineBuilder {
	moreTiersAfterThis := func(_ context.Context, p Progress) bool {
		return p.Remaining() > 1
	}
	lastTier := func(_ context.Context, p Progress) bool {
		return p.Remaining() == 1
	}

	b := NewBuilder()
	for _, pending := range []State{StateSubmitted, StatePending} {
		b.Configure(pending).
			PermitIf(TriggerApprove, StatePending, moreTiersAfterThis).
			PermitIf(TriggerApprove, StateApproved, lastTier).
			Permit(TriggerReject, StateRejected)
	}
	b.Configure(StateApproved).
		Permit(TriggerSettle, StateSettled)

	return b
}

// NewRequestMachine returns the request state machine positioned at p
func NewRequestMachine(p Progress) (StateMachine, error) {
	return requestTransitions().Build(p)
}
