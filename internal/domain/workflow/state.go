package workflow

import (
	"strings"

	"github.com/briceletutour/AlcomV4-sub001/internal/domain/entity"
)

// State is a position in the generic approval lifecycle shared by invoices,
// expenses and fuel prices. Entities render it with their own labels.
type State string

const (
	StateSubmitted State = "SUBMITTED"
	StatePending   State = "PENDING"
	StateApproved  State = "APPROVED"
	StateSettled   State = "SETTLED"
	StateRejected  State = "REJECTED"
)

var validStates = map[State]bool{
	StateSubmitted: true,
	StatePending:   true,
	StateApproved:  true,
	StateSettled:   true,
	StateRejected:  true,
}

var terminalStates = map[State]bool{
	StateRejected: true,
	StateSettled:  true,
}

// IsTerminal returns true if no ledger-mutating action is permitted from the state
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// AwaitsApproval returns true while a tier is still pending
func (s State) AwaitsApproval() bool {
	return s == StateSubmitted || s == StatePending
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid workflow state
func (s State) IsValid() bool {
	return validStates[s]
}

// Label renders a state as the status persisted on an entity row.
// Pending states are named after the tier they wait on, e.g. PENDING_CFO.
func Label(s State, pendingRole entity.Role, settledLabel string) string {
	switch s {
	case StatePending:
		return entity.StatusPendingPrefix + pendingRole.String()
	case StateSettled:
		return settledLabel
	default:
		return s.String()
	}
}

// IsPendingLabel reports whether a persisted status is a pending-tier label
func IsPendingLabel(status string) bool {
	return strings.HasPrefix(status, entity.StatusPendingPrefix)
}
