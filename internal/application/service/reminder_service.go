package service

import (
	"context"

	"github.com/garyjia/ncr-tracker/internal/application/dispatcher"
	"github.com/garyjia/ncr-tracker/internal/application/port"
	"github.com/garyjia/ncr-tracker/internal/domain/apperr"
	"github.com/garyjia/ncr-tracker/internal/domain/entity"
	"github.com/garyjia/ncr-tracker/internal/domain/event"
)

// ReminderService raises the overdue digest
type ReminderService interface {
	// RemindOverdue publishes one digest of every overdue report and
	// returns how many it contained. Nothing is published when none are overdue.
	RemindOverdue(ctx context.Context) (int, error)
}

type reminderServiceImpl struct {
	ncrRepo port.NCRRepository
	events  dispatcher.Publisher
	clock   port.Clock
	logger  Logger
}

// NewReminderService creates a new ReminderService
func NewReminderService(ncrRepo port.NCRRepository, events dispatcher.Publisher, clock port.Clock, logger Logger) ReminderService {
	return &reminderServiceImpl{
		ncrRepo: ncrRepo,
		events:  events,
		clock:   clock,
		logger:  logger,
	}
}

func (s *reminderServiceImpl) RemindOverdue(ctx context.Context) (int, error) {
	now := s.clock.Now()
	reports, err := s.ncrRepo.List(ctx, entity.NCRFilter{Overdue: true, Now: now})
	if err != nil {
		s.logger.Error("Failed to list overdue NCRs", "error", err)
		return 0, apperr.Storage("list overdue reports", err)
	}
	if len(reports) == 0 {
		return 0, nil
	}

	for _, r := range reports {
		r.WithComputedStatus(now)
	}
	if s.events != nil {
		s.events.Publish(ctx, event.NewOverdueEvent(reports, now))
	}

	s.logger.Info("Overdue reminder raised", "count", len(reports))
	return len(reports), nil
}
