package workflow

import (
	"strings"

	"github.com/garyjia/ncr-tracker/internal/domain/entity"
)

// Trigger names an event that can move a report between statuses
type Trigger string

// TriggerFor returns the trigger that moves a report into target,
// e.g. "MOVE_TO_WAITING_FOR_VERIFICATION".
func TriggerFor(target entity.Status) Trigger {
	name := strings.ToUpper(strings.ReplaceAll(string(target), " ", "_"))
	return Trigger("MOVE_TO_" + name)
}

func (t Trigger) String() string {
	return string(t)
}
