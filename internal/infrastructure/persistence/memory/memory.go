// Package memory provides in-process implementations of the repository
// ports. They back tests and single-process deployments without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/ncr-tracker/internal/application/port"
	"github.com/garyjia/ncr-tracker/internal/domain/entity"
)

type txMarker struct{}

// TxManager serializes transactional blocks. It provides isolation between
// blocks but no rollback; repositories here never fail half way.
type TxManager struct {
	mu sync.Mutex
}

// NewTxManager creates a transaction manager
func NewTxManager() *TxManager {
	return &TxManager{}
}

// WithTransaction runs fn while holding the manager's lock. Nested calls join.
func (m *TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txMarker{}) != nil {
		return fn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(context.WithValue(ctx, txMarker{}, true))
}

// SequenceRepository keeps per-year counters in a map
type SequenceRepository struct {
	mu       sync.Mutex
	counters map[int]int
}

// NewSequenceRepository creates an empty counter set
func NewSequenceRepository() *SequenceRepository {
	return &SequenceRepository{counters: make(map[int]int)}
}

// Next increments and returns the counter for year
func (r *SequenceRepository) Next(ctx context.Context, year int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[year]++
	return r.counters[year], nil
}

// NCRRepository stores reports in a map keyed by id
type NCRRepository struct {
	mu      sync.RWMutex
	nextID  int64
	reports map[int64]*entity.NonConformanceReport
}

// NewNCRRepository creates an empty report store
func NewNCRRepository() *NCRRepository {
	return &NCRRepository{reports: make(map[int64]*entity.NonConformanceReport)}
}

func (r *NCRRepository) Create(ctx context.Context, report *entity.NonConformanceReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.reports {
		if existing.ReportNumber == report.ReportNumber {
			return errDuplicate("report_number", report.ReportNumber)
		}
	}

	r.nextID++
	report.ID = r.nextID
	stored := report.Clone()
	stored.ComputedStatus = ""
	r.reports[report.ID] = stored
	return nil
}

func (r *NCRRepository) GetByID(ctx context.Context, id int64) (*entity.NonConformanceReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	report, ok := r.reports[id]
	if !ok {
		return nil, nil
	}
	return report.Clone(), nil
}

func (r *NCRRepository) GetByReportNumber(ctx context.Context, number string) (*entity.NonConformanceReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, report := range r.reports {
		if report.ReportNumber == number {
			return report.Clone(), nil
		}
	}
	return nil, nil
}

func (r *NCRRepository) List(ctx context.Context, filter entity.NCRFilter) ([]*entity.NonConformanceReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entity.NonConformanceReport, 0, len(r.reports))
	for _, report := range r.reports {
		if filter.Matches(report) {
			out = append(out, report.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *NCRRepository) Update(ctx context.Context, report *entity.NonConformanceReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.reports[report.ID]
	if !ok {
		return nil
	}

	// only client-mutable columns are written, matching the SQL backend
	stored := report.Clone()
	stored.ReportNumber = existing.ReportNumber
	stored.CreatedBy = existing.CreatedBy
	stored.CreatedAt = existing.CreatedAt
	stored.Status = existing.Status
	stored.ClosureDate = existing.ClosureDate
	stored.ComputedStatus = ""
	r.reports[report.ID] = stored
	return nil
}

func (r *NCRRepository) UpdateStatus(ctx context.Context, id int64, status entity.Status, closureDate *time.Time, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.reports[id]
	if !ok {
		return nil
	}
	existing.Status = status
	existing.ClosureDate = nil
	if closureDate != nil {
		t := *closureDate
		existing.ClosureDate = &t
	}
	existing.UpdatedAt = updatedAt
	return nil
}

func (r *NCRRepository) Delete(ctx context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.reports[id]; !ok {
		return false, nil
	}
	delete(r.reports, id)
	return true, nil
}

// RejectionRepository stores rejections in a map keyed by id
type RejectionRepository struct {
	mu         sync.RWMutex
	nextID     int64
	rejections map[int64]*entity.Rejection
}

// NewRejectionRepository creates an empty rejection store
func NewRejectionRepository() *RejectionRepository {
	return &RejectionRepository{rejections: make(map[int64]*entity.Rejection)}
}

func (r *RejectionRepository) Create(ctx context.Context, rejection *entity.Rejection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	rejection.ID = r.nextID
	r.rejections[rejection.ID] = rejection.Clone()
	return nil
}

func (r *RejectionRepository) GetByID(ctx context.Context, id int64) (*entity.Rejection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rejection, ok := r.rejections[id]
	if !ok {
		return nil, nil
	}
	return rejection.Clone(), nil
}

func (r *RejectionRepository) List(ctx context.Context) ([]*entity.Rejection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entity.Rejection, 0, len(r.rejections))
	for _, rejection := range r.rejections {
		out = append(out, rejection.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *RejectionRepository) Delete(ctx context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rejections[id]; !ok {
		return false, nil
	}
	delete(r.rejections, id)
	return true, nil
}

// UserRepository stores users in a map keyed by id
type UserRepository struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]*entity.User
}

// NewUserRepository creates an empty user store
func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[int64]*entity.User)}
}

func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := entity.NormalizeEmail(user.Email)
	for _, existing := range r.users {
		if existing.Email == email {
			return errDuplicate("email", email)
		}
	}

	r.nextID++
	user.ID = r.nextID
	user.Email = email
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	c := *user
	return &c, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	email = entity.NormalizeEmail(email)
	for _, user := range r.users {
		if user.Email == email {
			c := *user
			return &c, nil
		}
	}
	return nil, nil
}

func (r *UserRepository) List(ctx context.Context) ([]*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entity.User, 0, len(r.users))
	for _, user := range r.users {
		c := *user
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Verify interface compliance
var (
	_ port.TransactionManager  = (*TxManager)(nil)
	_ port.SequenceRepository  = (*SequenceRepository)(nil)
	_ port.NCRRepository       = (*NCRRepository)(nil)
	_ port.RejectionRepository = (*RejectionRepository)(nil)
	_ port.UserRepository      = (*UserRepository)(nil)
)
