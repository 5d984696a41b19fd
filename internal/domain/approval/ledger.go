package approval

import (
	"errors"
	"fmt"

	"github.com/briceletutour/AlcomV4-sub001/internal/domain/entity"
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/workflow"
)

// ErrCorruptLedger is returned when recorded steps break a ledger invariant
var ErrCorruptLedger = errors.New("corrupt approval ledger")

// Ledger is the ordered list of steps recorded for one request
type Ledger []*entity.ApprovalStep

// Rejected reports whether a REJECT step has been recorded
func (l Ledger) Rejected() bool {
	for _, s := range l {
		if s.Action == entity.ActionReject {
			return true
		}
	}
	return false
}

// ApprovedTiers returns how many tiers hold an APPROVE step
func (l Ledger) ApprovedTiers() int {
	n := 0
	for _, s := range l {
		if s.Action == entity.ActionApprove {
			n++
		}
	}
	return n
}

// PendingTier returns the first tier of chain without an APPROVE step. The
// second result is false when the chain is fully approved or the request was
// rejected.
func (l Ledger) PendingTier(chain Chain) (Tier, bool) {
	if l.Rejected() {
		return Tier{}, false
	}

	approved := l.ApprovedTiers()
	if approved >= len(chain) {
		return Tier{}, false
	}
	return chain[approved], true
}

// HasApprovalBy reports whether actorID already approved any tier
func (l Ledger) HasApprovalBy(actorID int64) bool {
	for _, s := range l {
		if s.ActorID == actorID && s.Action == entity.ActionApprove {
			return true
		}
	}
	return false
}

// Approvers returns the distinct actor ids that recorded an APPROVE, in order
func (l Ledger) Approvers() []int64 {
	var ids []int64
	for _, s := range l {
		if s.Action == entity.ActionApprove {
			ids = append(ids, s.ActorID)
		}
	}
	return ids
}

// Validate checks the recorded steps against the chain: no step by the
// requester, tiers consumed in order, at most one APPROVE per tier and nothing
// after a REJECT.
func (l Ledger) Validate(chain Chain, requesterID int64) error {
	next := 0
	for i, s := range l {
		if s.ActorID == requesterID {
			return fmt.Errorf("%w: step %d recorded by the requester", ErrCorruptLedger, s.ID)
		}
		if s.TierIndex != next {
			return fmt.Errorf("%w: step %d targets tier %d, expected %d", ErrCorruptLedger, s.ID, s.TierIndex, next)
		}
		if next >= len(chain) {
			return fmt.Errorf("%w: step %d beyond chain of %d tiers", ErrCorruptLedger, s.ID, len(chain))
		}

		switch s.Action {
		case entity.ActionApprove:
			next++
		case entity.ActionReject:
			if i != len(l)-1 {
				return fmt.Errorf("%w: steps recorded after rejection", ErrCorruptLedger)
			}
		default:
			return fmt.Errorf("%w: unknown action %q", ErrCorruptLedger, s.Action)
		}
	}
	return nil
}

// Progress summarizes the ledger for the request state machine
func (l Ledger) Progress(chain Chain, settled bool) workflow.Progress {
	return workflow.Progress{
		TiersTotal:    len(chain),
		TiersApproved: l.ApprovedTiers(),
		Rejected:      l.Rejected(),
		Settled:       settled,
	}
}

// StatusLabel derives the status label persisted on the request row
func StatusLabel(chain Chain, ledger Ledger, settled bool, settledLabel string) (string, workflow.State, error) {
	state, err := workflow.Derive(ledger.Progress(chain, settled))
	if err != nil {
		return "", "", err
	}

	var pendingRole entity.Role
	if tier, ok := ledger.PendingTier(chain); ok {
		pendingRole = tier.Role
	}
	return workflow.Label(state, pendingRole, settledLabel), state, nil
}
