package event

// Type identifies the type of domain event
type Type string

const (
	TypeRequestCreated    Type = "request.created"
	TypeStepApproved      Type = "request.step_approved"
	TypeRequestApproved   Type = "request.approved"
	TypeRequestRejected   Type = "request.rejected"
	TypeRequestSettled    Type = "request.settled"
	TypePriceActivated    Type = "price.activated"
	TypeDelegationChanged Type = "user.delegation_changed"
)

// AllTypes lists every event type the engine emits
func AllTypes() []Type {
	return []Type{
		TypeRequestCreated,
		TypeStepApproved,
		TypeRequestApproved,
		TypeRequestRejected,
		TypeRequestSettled,
		TypePriceActivated,
		TypeDelegationChanged,
	}
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	for _, known := range AllTypes() {
		if t == known {
			return true
		}
	}
	return false
}
