package workflow

import (
	"context"
	"fmt"
)

// StateMachine tracks one request's state and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// Progress returns the ledger counts the machine is positioned at
	Progress() Progress

	// CanFire returns true if some transition for the trigger would pass its guard
	CanFire(ctx context.Context, trigger Trigger) bool

	// Fire executes the trigger and advances progress accordingly
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns the triggers that would currently succeed
	PermittedTriggers(ctx context.Context) []Trigger
}

type stateMachine struct {
	currentState   State
	progress       Progress
	configurations map[State]*stateConfig
}

func (m *stateMachine) State() State {
	return m.currentState
}

func (m *stateMachine) Progress() Progress {
	return m.progress
}

func (m *stateMachine) CanFire(ctx context.Context, trigger Trigger) bool {
	_, ok := m.resolve(ctx, trigger)
	return ok
}

// Fire attempts to execute the trigger, transitioning to the new state if allowed
func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	config, exists := m.configurations[m.currentState]
	if !exists {
		return fmt.Errorf("%w: cannot fire trigger %s from state %s (no configuration)", ErrInvalidTransition, trigger, m.currentState)
	}

	if len(config.transitions[trigger]) == 0 {
		return fmt.Errorf("%w: cannot fire trigger %s from state %s", ErrInvalidTransition, trigger, m.currentState)
	}

	next, ok := m.resolve(ctx, trigger)
	if !ok {
		return fmt.Errorf("%w: trigger %s from state %s", ErrGuardFailed, trigger, m.currentState)
	}

	m.progress = m.progress.after(trigger)
	m.currentState = next
	return nil
}

func (m *stateMachine) PermittedTriggers(ctx context.Context) []Trigger {
	config, exists := m.configurations[m.currentState]
	if !exists {
		return []Trigger{}
	}

	triggers := make([]Trigger, 0, len(config.transitions))
	for trigger := range config.transitions {
		if m.CanFire(ctx, trigger) {
			triggers = append(triggers, trigger)
		}
	}

	return triggers
}

// resolve returns the target of the first transition whose guard passes
func (m *stateMachine) resolve(ctx context.Context, trigger Trigger) (State, bool) {
	config, exists := m.configurations[m.currentState]
	if !exists {
		return "", false
	}

	for _, t := range config.transitions[trigger] {
		if t.guard == nil || t.guard(ctx, m.progress) {
			return t.toState, true
		}
	}

	return "", false
}
