package port

import (
	"context"
	"time"

	"github.com/garyjia/ncr-tracker/internal/domain/entity"
)

// NCRRepository persists non-conformance reports.
// Lookups of an absent id return (nil, nil).
type NCRRepository interface {
	// Create inserts report and assigns its ID
	Create(ctx context.Context, report *entity.NonConformanceReport) error

	// GetByID retrieves a report by surrogate id
	GetByID(ctx context.Context, id int64) (*entity.NonConformanceReport, error)

	// GetByReportNumber retrieves a report by its human-readable number
	GetByReportNumber(ctx context.Context, number string) (*entity.NonConformanceReport, error)

	// List returns reports matching filter, newest created_at first
	List(ctx context.Context, filter entity.NCRFilter) ([]*entity.NonConformanceReport, error)

	// Update writes every client-mutable column plus updated_at
	Update(ctx context.Context, report *entity.NonConformanceReport) error

	// UpdateStatus writes status, closure_date and updated_at
	UpdateStatus(ctx context.Context, id int64, status entity.Status, closureDate *time.Time, updatedAt time.Time) error

	// Delete removes a report; it reports whether a row was removed
	Delete(ctx context.Context, id int64) (bool, error)
}

// SequenceRepository hands out per-year report counters
type SequenceRepository interface {
	// Next atomically creates or increments the counter for year and
	// returns the new value. Concurrent callers never see the same value.
	Next(ctx context.Context, year int) (int, error)
}

// RejectionRepository persists material rejections
type RejectionRepository interface {
	Create(ctx context.Context, rejection *entity.Rejection) error
	GetByID(ctx context.Context, id int64) (*entity.Rejection, error)
	List(ctx context.Context) ([]*entity.Rejection, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// UserRepository persists registered identities
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	List(ctx context.Context) ([]*entity.User, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
