package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/garyjia/ncr-tracker/internal/application/dispatcher"
	"github.com/garyjia/ncr-tracker/internal/application/port"
	"github.com/garyjia/ncr-tracker/internal/domain/apperr"
	"github.com/garyjia/ncr-tracker/internal/domain/entity"
	"github.com/garyjia/ncr-tracker/internal/domain/event"
	"github.com/garyjia/ncr-tracker/internal/domain/policy"
	"github.com/garyjia/ncr-tracker/internal/domain/workflow"
)

// CreateNCRInput carries the client-supplied fields of a new report.
// Raised-by fields are not here: they come from the principal.
type CreateNCRInput struct {
	ReportDate *time.Time

	Severity   string
	SourceType string
	NCRType    string
	Department string
	Area       string
	Line       string

	ProductName string
	ProductCode string

	Description          string
	RequirementReference string
	ImmediateAction      string
	RootCause            string
	RootCauseCategory    string
	CorrectiveAction     string
	PreventiveAction     string
	Remarks              string

	ResponsiblePerson string
	TargetDate        *time.Time

	Attachment *Upload
}

// UpdateNCRInput is a partial update plus an optional replacement attachment
type UpdateNCRInput struct {
	Fields     entity.NCRUpdate
	Attachment *Upload
}

// ExportResult is a rendered export ready to be sent to a client
type ExportResult struct {
	Content  []byte
	MimeType string
	Filename string
}

// NCRServiceConfig holds the behavioural switches of the NCR service
type NCRServiceConfig struct {
	// RequireDepartmentFields additionally requires department and source type at creation
	RequireDepartmentFields bool

	// DefaultExportFormat is used when Export is called without a format
	DefaultExportFormat string

	// ExportBaseName names export files, e.g. "ncr_reports"
	ExportBaseName string
}

// NCRService manages non-conformance reports
type NCRService interface {
	// Create validates input, assigns the next report number and persists the report
	Create(ctx context.Context, principal *entity.Principal, input CreateNCRInput) (*entity.NonConformanceReport, error)

	// Get returns one report with its computed status
	Get(ctx context.Context, id int64) (*entity.NonConformanceReport, error)

	// List returns reports matching filter, newest first
	List(ctx context.Context, filter entity.NCRFilter) ([]*entity.NonConformanceReport, error)

	// Update applies the client-mutable fields in input
	Update(ctx context.Context, principal *entity.Principal, id int64, input UpdateNCRInput) (*entity.NonConformanceReport, error)

	// ChangeStatus moves a report to target, maintaining closure_date
	ChangeStatus(ctx context.Context, principal *entity.Principal, id int64, target string, closureDate *time.Time) (*entity.NonConformanceReport, error)

	// Delete hard-deletes a report and returns its last state
	Delete(ctx context.Context, principal *entity.Principal, id int64) (*entity.NonConformanceReport, error)

	// Summarize aggregates counts over every report
	Summarize(ctx context.Context) (*Summary, error)

	// Export renders the reports matching filter in format ("csv" or "xlsx")
	Export(ctx context.Context, filter entity.NCRFilter, format string) (*ExportResult, error)

	// Attachment returns the stored attachment of a report
	Attachment(ctx context.Context, id int64) (string, []byte, error)
}

type ncrServiceImpl struct {
	cfg         NCRServiceConfig
	ncrRepo     port.NCRRepository
	seqRepo     port.SequenceRepository
	txManager   port.TransactionManager
	attachments port.AttachmentStore
	exporters   map[string]port.TabularExporter
	policy      *policy.Policy
	events      dispatcher.Publisher
	clock       port.Clock
	logger      Logger
}

// NewNCRService creates a new NCRService
func NewNCRService(
	cfg NCRServiceConfig,
	ncrRepo port.NCRRepository,
	seqRepo port.SequenceRepository,
	txManager port.TransactionManager,
	attachments port.AttachmentStore,
	exporters []port.TabularExporter,
	pol *policy.Policy,
	events dispatcher.Publisher,
	clock port.Clock,
	logger Logger,
) NCRService {
	byFormat := make(map[string]port.TabularExporter, len(exporters))
	for _, e := range exporters {
		byFormat[strings.ToLower(e.Format())] = e
	}
	if cfg.DefaultExportFormat == "" {
		cfg.DefaultExportFormat = "xlsx"
	}
	if cfg.ExportBaseName == "" {
		cfg.ExportBaseName = "ncr_reports"
	}
	return &ncrServiceImpl{
		cfg:         cfg,
		ncrRepo:     ncrRepo,
		seqRepo:     seqRepo,
		txManager:   txManager,
		attachments: attachments,
		exporters:   byFormat,
		policy:      pol,
		events:      events,
		clock:       clock,
		logger:      logger,
	}
}

func (s *ncrServiceImpl) Create(ctx context.Context, principal *entity.Principal, input CreateNCRInput) (*entity.NonConformanceReport, error) {
	if err := s.policy.Authorize(principal, policy.OpCreate, nil); err != nil {
		return nil, err
	}

	severity, err := s.validateCreate(input)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	reportDate := now
	if input.ReportDate != nil {
		reportDate = input.ReportDate.UTC()
	}

	report := &entity.NonConformanceReport{
		ReportDate:           reportDate,
		Severity:             severity,
		SourceType:           strings.TrimSpace(input.SourceType),
		NCRType:              strings.TrimSpace(input.NCRType),
		Department:           strings.TrimSpace(input.Department),
		Area:                 strings.TrimSpace(input.Area),
		Line:                 strings.TrimSpace(input.Line),
		ProductName:          input.ProductName,
		ProductCode:          input.ProductCode,
		Description:          input.Description,
		RequirementReference: input.RequirementReference,
		ImmediateAction:      input.ImmediateAction,
		RootCause:            input.RootCause,
		RootCauseCategory:    input.RootCauseCategory,
		CorrectiveAction:     input.CorrectiveAction,
		PreventiveAction:     input.PreventiveAction,
		Remarks:              input.Remarks,
		RaisedByName:         principal.Name,
		RaisedByID:           principal.EmployeeID,
		ResponsiblePerson:    input.ResponsiblePerson,
		TargetDate:           utcPtr(input.TargetDate),
		Status:               entity.StatusOpen,
		CreatedBy:            principal.ID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if input.Attachment != nil {
		ref, err := s.saveAttachment(ctx, input.Attachment)
		if err != nil {
			return nil, err
		}
		report.AttachmentRef = ref
	}

	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		counter, err := s.seqRepo.Next(ctx, now.Year())
		if err != nil {
			return fmt.Errorf("next report number: %w", err)
		}
		report.ReportNumber = entity.FormatReportNumber(now.Year(), counter)
		return s.ncrRepo.Create(ctx, report)
	})
	if err != nil {
		s.logger.Error("Failed to create NCR", "error", err, "created_by", principal.ID)
		s.discardAttachment(ctx, report.AttachmentRef)
		return nil, apperr.Storage("create report", err)
	}

	s.logger.Info("NCR created",
		"id", report.ID,
		"report_number", report.ReportNumber,
		"severity", report.Severity,
		"created_by", principal.ID)

	report.WithComputedStatus(now)
	s.publish(ctx, event.NewReportEvent(event.TypeNCRCreated, principal, report, now))
	return report, nil
}

func (s *ncrServiceImpl) validateCreate(input CreateNCRInput) (entity.Severity, error) {
	var missing []string
	if strings.TrimSpace(input.Severity) == "" {
		missing = append(missing, "severity")
	}
	if strings.TrimSpace(input.Description) == "" {
		missing = append(missing, "description")
	}
	if s.cfg.RequireDepartmentFields {
		if strings.TrimSpace(input.Department) == "" {
			missing = append(missing, "department")
		}
		if strings.TrimSpace(input.SourceType) == "" {
			missing = append(missing, "source_type")
		}
	}
	if len(missing) > 0 {
		return "", apperr.MissingFields(missing)
	}

	severity, ok := entity.ParseSeverity(input.Severity)
	if !ok {
		return "", invalidSeverity(input.Severity)
	}
	return severity, nil
}

func (s *ncrServiceImpl) Get(ctx context.Context, id int64) (*entity.NonConformanceReport, error) {
	report, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return report.WithComputedStatus(s.clock.Now()), nil
}

func (s *ncrServiceImpl) List(ctx context.Context, filter entity.NCRFilter) ([]*entity.NonConformanceReport, error) {
	now := s.clock.Now()
	filter.Now = now

	if filter.ReportNumber != "" {
		return s.findByNumber(ctx, filter)
	}

	reports, err := s.ncrRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list NCRs", "error", err)
		return nil, apperr.Storage("list reports", err)
	}
	for _, r := range reports {
		r.WithComputedStatus(now)
	}
	return reports, nil
}

// findByNumber serves a report-number lookup; the other constraints still apply
func (s *ncrServiceImpl) findByNumber(ctx context.Context, filter entity.NCRFilter) ([]*entity.NonConformanceReport, error) {
	report, err := s.ncrRepo.GetByReportNumber(ctx, filter.ReportNumber)
	if err != nil {
		s.logger.Error("Failed to get NCR by number", "error", err, "report_number", filter.ReportNumber)
		return nil, apperr.Storage("list reports", err)
	}
	if report == nil || !filter.Matches(report) {
		return []*entity.NonConformanceReport{}, nil
	}
	return []*entity.NonConformanceReport{report.WithComputedStatus(filter.Now)}, nil
}

func (s *ncrServiceImpl) Update(ctx context.Context, principal *entity.Principal, id int64, input UpdateNCRInput) (*entity.NonConformanceReport, error) {
	if principal == nil {
		return nil, apperr.Unauthenticated("authentication required")
	}

	report, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	owner := report.CreatedBy
	if err := s.policy.Authorize(principal, policy.OpUpdate, &owner); err != nil {
		return nil, err
	}

	fields := input.Fields
	if fields.Severity != nil {
		sev, ok := entity.ParseSeverity(string(*fields.Severity))
		if !ok {
			return nil, invalidSeverity(string(*fields.Severity))
		}
		fields.Severity = &sev
	}

	previousRef := report.AttachmentRef
	if input.Attachment != nil {
		ref, err := s.saveAttachment(ctx, input.Attachment)
		if err != nil {
			return nil, err
		}
		fields.AttachmentRef = &ref
	}

	now := s.clock.Now()
	if fields.IsEmpty() {
		return report.WithComputedStatus(now), nil
	}

	fields.ApplyTo(report)
	report.ReportDate = report.ReportDate.UTC()
	report.TargetDate = utcPtr(report.TargetDate)
	report.UpdatedAt = now

	if err := s.ncrRepo.Update(ctx, report); err != nil {
		s.logger.Error("Failed to update NCR", "error", err, "id", id)
		if input.Attachment != nil {
			s.discardAttachment(ctx, report.AttachmentRef)
		}
		return nil, apperr.Storage("update report", err)
	}

	if report.AttachmentRef != previousRef {
		s.discardAttachment(ctx, previousRef)
	}

	s.logger.Info("NCR updated", "id", id, "updated_by", principal.ID)

	report.WithComputedStatus(now)
	s.publish(ctx, event.NewReportEvent(event.TypeNCRUpdated, principal, report, now))
	return report, nil
}

func (s *ncrServiceImpl) ChangeStatus(ctx context.Context, principal *entity.Principal, id int64, target string, closureDate *time.Time) (*entity.NonConformanceReport, error) {
	if err := s.policy.Authorize(principal, policy.OpChangeStatus, nil); err != nil {
		return nil, err
	}

	status, ok := entity.ParseStatus(target)
	if !ok {
		return nil, apperr.Validation(
			fmt.Sprintf("invalid status %q; valid values: %s", target, strings.Join(entity.StatusNames(), ", ")),
			"status")
	}

	report, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	machine, err := workflow.NewStatusMachine(report.Status, func(ctx context.Context, to entity.Status) bool {
		return s.policy.CanMoveTo(principal, to)
	})
	if err != nil {
		return nil, apperr.Storage("load report status", err)
	}

	if err := machine.Fire(ctx, workflow.TriggerFor(status)); err != nil {
		if errors.Is(err, workflow.ErrGuardFailed) {
			return nil, s.policy.ForbiddenTarget(status)
		}
		return nil, apperr.Validation(err.Error(), "status")
	}

	now := s.clock.Now()
	previous := report.Status
	report.Status = machine.State()
	report.ClosureDate = nil
	if report.Status == entity.StatusClosed {
		closed := now
		if closureDate != nil {
			closed = closureDate.UTC()
		}
		report.ClosureDate = &closed
	}
	report.UpdatedAt = now

	if err := s.ncrRepo.UpdateStatus(ctx, id, report.Status, report.ClosureDate, now); err != nil {
		s.logger.Error("Failed to change NCR status", "error", err, "id", id, "status", status)
		return nil, apperr.Storage("change status", err)
	}

	s.logger.Info("NCR status changed",
		"id", id,
		"from", previous,
		"to", report.Status,
		"changed_by", principal.ID)

	report.WithComputedStatus(now)
	s.publish(ctx, event.NewStatusChangedEvent(principal, report, previous, now))
	return report, nil
}

func (s *ncrServiceImpl) Delete(ctx context.Context, principal *entity.Principal, id int64) (*entity.NonConformanceReport, error) {
	if err := s.policy.Authorize(principal, policy.OpDelete, nil); err != nil {
		return nil, err
	}

	report, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	deleted, err := s.ncrRepo.Delete(ctx, id)
	if err != nil {
		s.logger.Error("Failed to delete NCR", "error", err, "id", id)
		return nil, apperr.Storage("delete report", err)
	}
	if !deleted {
		return nil, apperr.NotFound("report", id)
	}

	s.discardAttachment(ctx, report.AttachmentRef)
	s.logger.Info("NCR deleted", "id", id, "report_number", report.ReportNumber, "deleted_by", principal.ID)

	now := s.clock.Now()
	report.WithComputedStatus(now)
	s.publish(ctx, event.NewReportEvent(event.TypeNCRDeleted, principal, report, now))
	return report, nil
}

func (s *ncrServiceImpl) Summarize(ctx context.Context) (*Summary, error) {
	reports, err := s.ncrRepo.List(ctx, entity.NCRFilter{})
	if err != nil {
		s.logger.Error("Failed to load NCRs for summary", "error", err)
		return nil, apperr.Storage("summarize reports", err)
	}
	return Summarize(reports, s.clock.Now()), nil
}

func (s *ncrServiceImpl) Export(ctx context.Context, filter entity.NCRFilter, format string) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = s.cfg.DefaultExportFormat
	}
	exporter, ok := s.exporters[format]
	if !ok {
		return nil, apperr.Validation(
			fmt.Sprintf("unsupported export format %q; valid values: %s", format, strings.Join(s.formats(), ", ")),
			"format")
	}

	reports, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	content, err := exporter.Write(ExportColumns, ExportRows(reports))
	if err != nil {
		s.logger.Error("Failed to render export", "error", err, "format", format)
		return nil, apperr.Storage("render export", err)
	}

	s.logger.Info("NCRs exported", "format", format, "rows", len(reports))
	return &ExportResult{
		Content:  content,
		MimeType: exporter.MimeType(),
		Filename: s.cfg.ExportBaseName + exporter.Extension(),
	}, nil
}

func (s *ncrServiceImpl) Attachment(ctx context.Context, id int64) (string, []byte, error) {
	report, err := s.load(ctx, id)
	if err != nil {
		return "", nil, err
	}
	if report.AttachmentRef == "" || s.attachments == nil {
		return "", nil, apperr.NotFound("attachment for report", id)
	}

	content, err := s.attachments.Open(ctx, report.AttachmentRef)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return "", nil, err
		}
		return "", nil, apperr.Storage("open attachment", err)
	}
	return report.AttachmentRef, content, nil
}

func (s *ncrServiceImpl) load(ctx context.Context, id int64) (*entity.NonConformanceReport, error) {
	report, err := s.ncrRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to load NCR", "error", err, "id", id)
		return nil, apperr.Storage("load report", err)
	}
	if report == nil {
		return nil, apperr.NotFound("report", id)
	}
	return report, nil
}

func (s *ncrServiceImpl) saveAttachment(ctx context.Context, upload *Upload) (string, error) {
	if s.attachments == nil {
		return "", apperr.Validation("attachments are not enabled", "attachment")
	}
	ref, err := s.attachments.Save(ctx, upload.Filename, upload.Content)
	if err != nil {
		if apperr.Is(err, apperr.KindValidation) {
			return "", err
		}
		s.logger.Error("Failed to store attachment", "error", err, "filename", upload.Filename)
		return "", apperr.Storage("store attachment", err)
	}
	return ref, nil
}

// discardAttachment removes a file no record points at any more
func (s *ncrServiceImpl) discardAttachment(ctx context.Context, ref string) {
	if ref == "" || s.attachments == nil {
		return
	}
	if err := s.attachments.Delete(ctx, ref); err != nil {
		s.logger.Error("Failed to delete attachment", "error", err, "ref", ref)
	}
}

func (s *ncrServiceImpl) publish(ctx context.Context, evt *event.Event) {
	if s.events != nil {
		s.events.Publish(ctx, evt)
	}
}

func (s *ncrServiceImpl) formats() []string {
	names := make([]string, 0, len(s.exporters))
	for name := range s.exporters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func invalidSeverity(value string) error {
	names := make([]string, len(entity.Severities))
	for i, sv := range entity.Severities {
		names[i] = string(sv)
	}
	return apperr.Validation(
		fmt.Sprintf("invalid severity %q; valid values: %s", value, strings.Join(names, ", ")),
		"severity")
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
