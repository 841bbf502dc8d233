package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/garyjia/ncr-tracker/internal/domain/entity"
)

func TestTriggerFor(t *testing.T) {
	tests := []struct {
		status entity.Status
		want   Trigger
	}{
		{entity.StatusOpen, "MOVE_TO_OPEN"},
		{entity.StatusInProgress, "MOVE_TO_IN_PROGRESS"},
		{entity.StatusWaitingForVerification, "MOVE_TO_WAITING_FOR_VERIFICATION"},
		{entity.StatusClosed, "MOVE_TO_CLOSED"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := TriggerFor(tt.status); got != tt.want {
				t.Errorf("TriggerFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name   string
		status entity.Status
		want   bool
	}{
		{"open", entity.StatusOpen, true},
		{"closed", entity.StatusClosed, true},
		{"overdue is derived", entity.Status("Overdue"), false},
		{"empty", entity.Status(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValid(tt.status); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuilder_PermitPanicsOnInvalidStatus(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("PermitIf() should panic on invalid target status")
		}
	}()

	NewBuilder().Permit(entity.StatusOpen, "X", entity.Status("Archived"))
}

func TestBuilder_BuildRejectsInvalidInitialStatus(t *testing.T) {
	_, err := NewBuilder().Build(entity.Status("Archived"))
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("Build() error = %v, want %v", err, ErrInvalidState)
	}
}

func TestMachine_FireUnconfigured(t *testing.T) {
	m, err := NewBuilder().
		Permit(entity.StatusOpen, TriggerFor(entity.StatusInProgress), entity.StatusInProgress).
		Build(entity.StatusOpen)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	err = m.Fire(context.Background(), TriggerFor(entity.StatusClosed))
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire() error = %v, want %v", err, ErrInvalidTransition)
	}
	if m.State() != entity.StatusOpen {
		t.Errorf("State after failed Fire() = %v, want %v", m.State(), entity.StatusOpen)
	}
}

func TestMachine_Independence(t *testing.T) {
	b := NewBuilder().Permit(entity.StatusOpen, TriggerFor(entity.StatusClosed), entity.StatusClosed)

	m1, _ := b.Build(entity.StatusOpen)
	m2, _ := b.Build(entity.StatusOpen)

	if err := m1.Fire(context.Background(), TriggerFor(entity.StatusClosed)); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if m2.State() != entity.StatusOpen {
		t.Errorf("m2 state = %v, want %v (machines should be independent)", m2.State(), entity.StatusOpen)
	}
}

func TestStatusMachine_AnyToAny(t *testing.T) {
	for _, from := range entity.Statuses {
		for _, to := range entity.Statuses {
			m, err := NewStatusMachine(from, nil)
			if err != nil {
				t.Fatalf("NewStatusMachine(%q) failed: %v", from, err)
			}
			if err := m.Fire(context.Background(), TriggerFor(to)); err != nil {
				t.Errorf("%q -> %q: Fire() failed: %v", from, to, err)
			}
			if m.State() != to {
				t.Errorf("%q -> %q: state = %v", from, to, m.State())
			}
		}
	}
}

func TestStatusMachine_Guard(t *testing.T) {
	onlyClosedBlocked := func(ctx context.Context, target entity.Status) bool {
		return target != entity.StatusClosed
	}

	m, err := NewStatusMachine(entity.StatusWaitingForVerification, onlyClosedBlocked)
	if err != nil {
		t.Fatalf("NewStatusMachine() failed: %v", err)
	}

	err = m.Fire(context.Background(), TriggerFor(entity.StatusClosed))
	if !errors.Is(err, ErrGuardFailed) {
		t.Errorf("Fire() error = %v, want %v", err, ErrGuardFailed)
	}
	if m.State() != entity.StatusWaitingForVerification {
		t.Errorf("State after guarded Fire() = %v, want unchanged", m.State())
	}

	if err := m.Fire(context.Background(), TriggerFor(entity.StatusInProgress)); err != nil {
		t.Errorf("Fire() failed: %v", err)
	}
	if len(m.PermittedTriggers()) != len(entity.Statuses) {
		t.Errorf("PermittedTriggers() = %d, want %d", len(m.PermittedTriggers()), len(entity.Statuses))
	}
	if !m.CanFire(TriggerFor(entity.StatusOpen)) {
		t.Error("CanFire() should be true for a configured trigger")
	}
}
