// Package workflow implements the NCR status state machine.
package workflow

import (
	"context"
	"fmt"

	"github.com/garyjia/ncr-tracker/internal/domain/entity"
)

// GuardFunc decides whether a configured transition may fire
type GuardFunc func(ctx context.Context) bool

// StateMachine tracks the current status of one report and validates transitions
type StateMachine interface {
	// State returns the current status
	State() entity.Status

	// CanFire reports whether trigger has at least one transition from the current status
	CanFire(trigger Trigger) bool

	// Fire executes trigger, moving to the first transition whose guard passes
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers lists the triggers configured for the current status
	PermittedTriggers() []Trigger
}

// Builder configures transitions and builds independent machines from them
type Builder struct {
	transitions map[entity.Status]map[Trigger][]transition
}

type transition struct {
	to    entity.Status
	guard GuardFunc
}

// NewBuilder creates an empty builder
func NewBuilder() *Builder {
	return &Builder{transitions: make(map[entity.Status]map[Trigger][]transition)}
}

// Permit allows trigger to move from -> to unconditionally
func (b *Builder) Permit(from entity.Status, trigger Trigger, to entity.Status) *Builder {
	return b.PermitIf(from, trigger, to, nil)
}

// PermitIf allows trigger to move from -> to when guard passes.
// Panics on a status outside the lifecycle; this is a programming error.
func (b *Builder) PermitIf(from entity.Status, trigger Trigger, to entity.Status, guard GuardFunc) *Builder {
	mustBeValid(from)
	mustBeValid(to)

	byTrigger, ok := b.transitions[from]
	if !ok {
		byTrigger = make(map[Trigger][]transition)
		b.transitions[from] = byTrigger
	}
	byTrigger[trigger] = append(byTrigger[trigger], transition{to: to, guard: guard})
	return b
}

// Build creates a machine positioned at initial. Machines never share
// transition tables with the builder or each other.
func (b *Builder) Build(initial entity.Status) (StateMachine, error) {
	if !IsValid(initial) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, initial)
	}

	table := make(map[entity.Status]map[Trigger][]transition, len(b.transitions))
	for from, byTrigger := range b.transitions {
		copied := make(map[Trigger][]transition, len(byTrigger))
		for trig, ts := range byTrigger {
			copied[trig] = append([]transition(nil), ts...)
		}
		table[from] = copied
	}

	return &machine{current: initial, table: table}, nil
}

type machine struct {
	current entity.Status
	table   map[entity.Status]map[Trigger][]transition
}

func (m *machine) State() entity.Status {
	return m.current
}

func (m *machine) CanFire(trigger Trigger) bool {
	return len(m.table[m.current][trigger]) > 0
}

func (m *machine) Fire(ctx context.Context, trigger Trigger) error {
	ts := m.table[m.current][trigger]
	if len(ts) == 0 {
		return fmt.Errorf("%w: %s from %q", ErrInvalidTransition, trigger, m.current)
	}

	for _, t := range ts {
		if t.guard == nil || t.guard(ctx) {
			m.current = t.to
			return nil
		}
	}
	return fmt.Errorf("%w: %s from %q", ErrGuardFailed, trigger, m.current)
}

func (m *machine) PermittedTriggers() []Trigger {
	byTrigger := m.table[m.current]
	triggers := make([]Trigger, 0, len(byTrigger))
	for trig := range byTrigger {
		triggers = append(triggers, trig)
	}
	return triggers
}

// IsValid reports whether s is one of the persisted lifecycle statuses
func IsValid(s entity.Status) bool {
	for _, st := range entity.Statuses {
		if st == s {
			return true
		}
	}
	return false
}

func mustBeValid(s entity.Status) {
	if !IsValid(s) {
		panic(fmt.Sprintf("invalid status: %q", s))
	}
}
