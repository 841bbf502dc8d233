package event

// Type identifies the type of domain event
type Type string

const (
	TypeNCRCreated       Type = "ncr.created"
	TypeNCRUpdated       Type = "ncr.updated"
	TypeNCRStatusChanged Type = "ncr.status_changed"
	TypeNCRDeleted       Type = "ncr.deleted"
	TypeNCROverdue       Type = "ncr.overdue"
	TypeRejectionCreated Type = "rejection.created"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeNCRCreated,
		TypeNCRUpdated,
		TypeNCRStatusChanged,
		TypeNCRDeleted,
		TypeNCROverdue,
		TypeRejectionCreated:
		return true
	default:
		return false
	}
}
