package workflow

import (
	"context"

	"github.com/garyjia/ncr-tracker/internal/domain/entity"
)

// TargetGuard decides whether the caller in ctx may move a report into target
type TargetGuard func(ctx context.Context, target entity.Status) bool

// NewStatusMachine builds the NCR lifecycle positioned at current.
//
// The nominal flow is Open -> In Progress -> Waiting for Verification -> Closed,
// but every status may move to every other status (including itself, which
// re-stamps the record). guard gates each move by target; a nil guard
// permits all moves.
func NewStatusMachine(current entity.Status, guard TargetGuard) (StateMachine, error) {
	b := NewBuilder()
	for _, from := range entity.Statuses {
		for _, to := range entity.Statuses {
			b.PermitIf(from, TriggerFor(to), to, guardFor(guard, to))
		}
	}
	return b.Build(current)
}

func guardFor(guard TargetGuard, target entity.Status) GuardFunc {
	if guard == nil {
		return nil
	}
	return func(ctx context.Context) bool {
		return guard(ctx, target)
	}
}
