package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrGuardFailed is returned when a guard condition fails
	ErrGuardFailed = errors.New("guard condition failed")

	// ErrInconsistentProgress is returned when ledger counts cannot describe a request
	ErrInconsistentProgress = errors.New("inconsistent approval progress")
)
