package port

import (
	"context"
	"time"

	"github.com/garyjia/ncr-tracker/internal/domain/entity"
)

// IdentityProvider validates bearer tokens and issues them on login
type IdentityProvider interface {
	// Authenticate resolves a token to the principal it was issued for
	Authenticate(ctx context.Context, token string) (*entity.Principal, error)

	// Issue signs a token for principal
	Issue(ctx context.Context, principal *entity.Principal) (string, time.Time, error)
}

// PasswordHasher hashes and verifies user passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

// Notifier tells the quality team about report activity.
// Callers never pass a nil report.
type Notifier interface {
	NotifyCreated(ctx context.Context, report *entity.NonConformanceReport) error
	NotifyStatusChanged(ctx context.Context, report *entity.NonConformanceReport, from entity.Status) error
	NotifyOverdue(ctx context.Context, reports []*entity.NonConformanceReport) error
}

// TabularExporter renders rows under fixed column definitions
type TabularExporter interface {
	// Format is the short name callers select the exporter by ("csv", "xlsx")
	Format() string
	MimeType() string
	Extension() string
	Write(columns []Column, rows [][]Cell) ([]byte, error)
}

// CellKind tells an exporter how to render a value
type CellKind int

const (
	CellText CellKind = iota
	CellDate
	CellDateTime
)

// Column describes one exported column
type Column struct {
	Key    string
	Header string
	Width  float64
	Kind   CellKind
}

// Cell is one exported value. A nil Time or empty Text renders as "".
type Cell struct {
	Text string
	Time *time.Time
}

// Clock supplies "now" so derived status is testable
type Clock interface {
	Now() time.Time
}
