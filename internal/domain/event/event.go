// Package event defines the domain events raised by the NCR services.
package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/ncr-tracker/internal/domain/entity"
)

// Event is an immutable notice that something happened to one or more
// records. Snapshots are copies; handlers may keep them.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// Actor is the principal that caused the event; nil for system events
	Actor *entity.Principal `json:"actor,omitempty"`

	Report         *entity.NonConformanceReport   `json:"report,omitempty"`
	PreviousStatus entity.Status                  `json:"previous_status,omitempty"`
	Reports        []*entity.NonConformanceReport `json:"reports,omitempty"`
	Rejection      *entity.Rejection              `json:"rejection,omitempty"`
}

// NewReportEvent creates an event about a single report
func NewReportEvent(t Type, actor *entity.Principal, report *entity.NonConformanceReport, at time.Time) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: at,
		Actor:     actor,
		Report:    report.Clone(),
	}
}

// NewStatusChangedEvent records a transition from previous to report.Status
func NewStatusChangedEvent(actor *entity.Principal, report *entity.NonConformanceReport, previous entity.Status, at time.Time) *Event {
	e := NewReportEvent(TypeNCRStatusChanged, actor, report, at)
	e.PreviousStatus = previous
	return e
}

// NewOverdueEvent carries a digest of overdue reports
func NewOverdueEvent(reports []*entity.NonConformanceReport, at time.Time) *Event {
	copies := make([]*entity.NonConformanceReport, len(reports))
	for i, r := range reports {
		copies[i] = r.Clone()
	}
	return &Event{
		ID:        uuid.NewString(),
		Type:      TypeNCROverdue,
		Timestamp: at,
		Reports:   copies,
	}
}

// NewRejectionEvent creates an event about a material rejection
func NewRejectionEvent(actor *entity.Principal, rejection *entity.Rejection, at time.Time) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      TypeRejectionCreated,
		Timestamp: at,
		Actor:     actor,
		Rejection: rejection.Clone(),
	}
}

// ReportID returns the id of the single report the event is about, or 0
func (e *Event) ReportID() int64 {
	if e.Report == nil {
		return 0
	}
	return e.Report.ID
}
