package service

import (
	"context"
	"strings"

	"github.com/garyjia/ncr-tracker/internal/application/dispatcher"
	"github.com/garyjia/ncr-tracker/internal/application/port"
	"github.com/garyjia/ncr-tracker/internal/domain/apperr"
	"github.com/garyjia/ncr-tracker/internal/domain/entity"
	"github.com/garyjia/ncr-tracker/internal/domain/event"
	"github.com/garyjia/ncr-tracker/internal/domain/policy"
)

// CreateRejectionInput carries a new material rejection
type CreateRejectionInput struct {
	MaterialType      string
	MaterialName      string
	SupplierName      string
	DefectCategory    string
	DefectDescription string
	QuantityRejected  int
	Shift             string
	ProcessArea       string
	Images            []Upload
}

// RejectionService manages the material rejection log
type RejectionService interface {
	Create(ctx context.Context, principal *entity.Principal, input CreateRejectionInput) (*entity.Rejection, error)
	Get(ctx context.Context, id int64) (*entity.Rejection, error)
	List(ctx context.Context) ([]*entity.Rejection, error)
	Delete(ctx context.Context, principal *entity.Principal, id int64) (*entity.Rejection, error)
}

type rejectionServiceImpl struct {
	repo        port.RejectionRepository
	attachments port.AttachmentStore
	policy      *policy.Policy
	events      dispatcher.Publisher
	clock       port.Clock
	logger      Logger
}

// NewRejectionService creates a new RejectionService
func NewRejectionService(
	repo port.RejectionRepository,
	attachments port.AttachmentStore,
	pol *policy.Policy,
	events dispatcher.Publisher,
	clock port.Clock,
	logger Logger,
) RejectionService {
	return &rejectionServiceImpl{
		repo:        repo,
		attachments: attachments,
		policy:      pol,
		events:      events,
		clock:       clock,
		logger:      logger,
	}
}

func (s *rejectionServiceImpl) Create(ctx context.Context, principal *entity.Principal, input CreateRejectionInput) (*entity.Rejection, error) {
	if err := s.policy.Authorize(principal, policy.OpCreate, nil); err != nil {
		return nil, err
	}

	var missing []string
	if strings.TrimSpace(input.MaterialName) == "" {
		missing = append(missing, "material_name")
	}
	if input.QuantityRejected <= 0 {
		missing = append(missing, "quantity_rejected")
	}
	if len(missing) > 0 {
		return nil, apperr.Validation(
			"material_name and a positive quantity_rejected are required", missing...)
	}

	images := make([]string, 0, len(input.Images))
	for i := range input.Images {
		if s.attachments == nil {
			return nil, apperr.Validation("attachments are not enabled", "images")
		}
		ref, err := s.attachments.Save(ctx, input.Images[i].Filename, input.Images[i].Content)
		if err != nil {
			s.discard(ctx, images)
			if apperr.Is(err, apperr.KindValidation) {
				return nil, err
			}
			return nil, apperr.Storage("store image", err)
		}
		images = append(images, ref)
	}

	rejection := &entity.Rejection{
		MaterialType:      input.MaterialType,
		MaterialName:      strings.TrimSpace(input.MaterialName),
		SupplierName:      input.SupplierName,
		DefectCategory:    input.DefectCategory,
		DefectDescription: input.DefectDescription,
		QuantityRejected:  input.QuantityRejected,
		Shift:             input.Shift,
		ProcessArea:       input.ProcessArea,
		Images:            images,
		CreatedBy:         principal.ID,
		CreatedAt:         s.clock.Now(),
	}

	if err := s.repo.Create(ctx, rejection); err != nil {
		s.logger.Error("Failed to create rejection", "error", err, "material_name", rejection.MaterialName)
		s.discard(ctx, images)
		return nil, apperr.Storage("create rejection", err)
	}

	s.logger.Info("Rejection created",
		"id", rejection.ID,
		"material_name", rejection.MaterialName,
		"quantity", rejection.QuantityRejected)

	if s.events != nil {
		s.events.Publish(ctx, event.NewRejectionEvent(principal, rejection, rejection.CreatedAt))
	}
	return rejection, nil
}

func (s *rejectionServiceImpl) Get(ctx context.Context, id int64) (*entity.Rejection, error) {
	rejection, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to load rejection", "error", err, "id", id)
		return nil, apperr.Storage("load rejection", err)
	}
	if rejection == nil {
		return nil, apperr.NotFound("rejection", id)
	}
	return rejection, nil
}

func (s *rejectionServiceImpl) List(ctx context.Context) ([]*entity.Rejection, error) {
	rejections, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list rejections", "error", err)
		return nil, apperr.Storage("list rejections", err)
	}
	return rejections, nil
}

func (s *rejectionServiceImpl) Delete(ctx context.Context, principal *entity.Principal, id int64) (*entity.Rejection, error) {
	if err := s.policy.Authorize(principal, policy.OpDelete, nil); err != nil {
		return nil, err
	}

	rejection, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		s.logger.Error("Failed to delete rejection", "error", err, "id", id)
		return nil, apperr.Storage("delete rejection", err)
	}
	if !deleted {
		return nil, apperr.NotFound("rejection", id)
	}

	s.discard(ctx, rejection.Images)
	s.logger.Info("Rejection deleted", "id", id, "deleted_by", principal.ID)
	return rejection, nil
}

func (s *rejectionServiceImpl) discard(ctx context.Context, refs []string) {
	if s.attachments == nil {
		return
	}
	for _, ref := range refs {
		if err := s.attachments.Delete(ctx, ref); err != nil {
			s.logger.Error("Failed to delete rejection image", "error", err, "ref", ref)
		}
	}
}
