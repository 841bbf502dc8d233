package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/ncr-tracker/internal/application/port"
	"github.com/garyjia/ncr-tracker/internal/domain/entity"
	"github.com/garyjia/ncr-tracker/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const ncrColumns = `
	id, report_number, report_date, severity, ncr_source, ncr_type,
	department, area, line, product_name, product_code,
	description, requirement_reference, immediate_action, root_cause,
	root_cause_category, corrective_action, preventive_action, remarks,
	raised_by_name, raised_by_id, responsible_person,
	target_date, closure_date, status, attachment_ref, created_by,
	created_at, updated_at`

// NCRRepository implements port.NCRRepository on SQLite
type NCRRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNCRRepository creates a new NCR repository
func NewNCRRepository(db *sql.DB, logger *zap.Logger) port.NCRRepository {
	return &NCRRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a report. ReportNumber must already be assigned.
func (r *NCRRepository) Create(ctx context.Context, report *entity.NonConformanceReport) error {
	query := `
		INSERT INTO ncr_reports (
			report_number, report_date, severity, ncr_source, ncr_type,
			department, area, line, product_name, product_code,
			description, requirement_reference, immediate_action, root_cause,
			root_cause_category, corrective_action, preventive_action, remarks,
			raised_by_name, raised_by_id, responsible_person,
			target_date, closure_date, status, attachment_ref, created_by,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		report.ReportNumber,
		report.ReportDate.UTC(),
		string(report.Severity),
		report.SourceType,
		report.NCRType,
		report.Department,
		report.Area,
		report.Line,
		report.ProductName,
		report.ProductCode,
		report.Description,
		report.RequirementReference,
		report.ImmediateAction,
		report.RootCause,
		report.RootCauseCategory,
		report.CorrectiveAction,
		report.PreventiveAction,
		report.Remarks,
		report.RaisedByName,
		report.RaisedByID,
		report.ResponsiblePerson,
		nullTime(report.TargetDate),
		nullTime(report.ClosureDate),
		string(report.Status),
		report.AttachmentRef,
		report.CreatedBy,
		report.CreatedAt.UTC(),
		report.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create NCR",
			zap.String("report_number", report.ReportNumber),
			zap.Error(err))
		return fmt.Errorf("failed to create NCR: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	report.ID = id
	return nil
}

// GetByID retrieves a report by its ID
func (r *NCRRepository) GetByID(ctx context.Context, id int64) (*entity.NonConformanceReport, error) {
	query := `SELECT ` + ncrColumns + ` FROM ncr_reports WHERE id = ?`

	report, err := scanNCR(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get NCR by ID",
			zap.Int64("id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get NCR: %w", err)
	}
	return report, nil
}

// GetByReportNumber retrieves a report by its report number
func (r *NCRRepository) GetByReportNumber(ctx context.Context, number string) (*entity.NonConformanceReport, error) {
	query := `SELECT ` + ncrColumns + ` FROM ncr_reports WHERE report_number = ?`

	report, err := scanNCR(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, number))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get NCR by report number",
			zap.String("report_number", number),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get NCR: %w", err)
	}
	return report, nil
}

// List returns reports matching filter ordered by created_at, newest first
func (r *NCRRepository) List(ctx context.Context, filter entity.NCRFilter) ([]*entity.NonConformanceReport, error) {
	where, args := buildNCRWhere(filter)
	query := `SELECT ` + ncrColumns + ` FROM ncr_reports` + where + ` ORDER BY created_at DESC, id DESC`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list NCRs", zap.Error(err))
		return nil, fmt.Errorf("failed to list NCRs: %w", err)
	}
	defer rows.Close()

	reports := make([]*entity.NonConformanceReport, 0)
	for rows.Next() {
		report, err := scanNCR(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan NCR: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// Update writes all client-mutable columns and updated_at
func (r *NCRRepository) Update(ctx context.Context, report *entity.NonConformanceReport) error {
	query := `
		UPDATE ncr_reports SET
			report_date = ?, severity = ?, ncr_source = ?, ncr_type = ?,
			department = ?, area = ?, line = ?, product_name = ?, product_code = ?,
			description = ?, requirement_reference = ?, immediate_action = ?, root_cause = ?,
			root_cause_category = ?, corrective_action = ?, preventive_action = ?, remarks = ?,
			raised_by_name = ?, raised_by_id = ?, responsible_person = ?,
			target_date = ?, attachment_ref = ?, updated_at = ?
		WHERE id = ?
	`

	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		report.ReportDate.UTC(),
		string(report.Severity),
		report.SourceType,
		report.NCRType,
		report.Department,
		report.Area,
		report.Line,
		report.ProductName,
		report.ProductCode,
		report.Description,
		report.RequirementReference,
		report.ImmediateAction,
		report.RootCause,
		report.RootCauseCategory,
		report.CorrectiveAction,
		report.PreventiveAction,
		report.Remarks,
		report.RaisedByName,
		report.RaisedByID,
		report.ResponsiblePerson,
		nullTime(report.TargetDate),
		report.AttachmentRef,
		report.UpdatedAt.UTC(),
		report.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update NCR",
			zap.Int64("id", report.ID),
			zap.Error(err))
		return fmt.Errorf("failed to update NCR: %w", err)
	}
	return nil
}

// UpdateStatus writes status and closure date together
func (r *NCRRepository) UpdateStatus(ctx context.Context, id int64, status entity.Status, closureDate *time.Time, updatedAt time.Time) error {
	query := `UPDATE ncr_reports SET status = ?, closure_date = ?, updated_at = ? WHERE id = ?`

	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query, string(status), nullTime(closureDate), updatedAt.UTC(), id)
	if err != nil {
		r.logger.Error("Failed to update NCR status",
			zap.Int64("id", id),
			zap.String("status", string(status)),
			zap.Error(err))
		return fmt.Errorf("failed to update NCR status: %w", err)
	}
	return nil
}

// Delete removes a report
func (r *NCRRepository) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM ncr_reports WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete NCR",
			zap.Int64("id", id),
			zap.Error(err))
		return false, fmt.Errorf("failed to delete NCR: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

func buildNCRWhere(f entity.NCRFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	add := func(cond string, arg ...interface{}) {
		conds = append(conds, cond)
		args = append(args, arg...)
	}

	if f.ReportNumber != "" {
		add("report_number = ?", f.ReportNumber)
	}
	if f.Overdue {
		add("status != ? AND target_date IS NOT NULL AND target_date < ?", string(entity.StatusClosed), f.Now.UTC())
	}
	if f.Status != "" {
		add("status = ?", string(f.Status))
	}
	if f.Severity != "" {
		add("severity = ?", string(f.Severity))
	}
	if f.Department != "" {
		add("department = ?", f.Department)
	}
	if f.SourceType != "" {
		add("ncr_source = ?", f.SourceType)
	}
	if f.NCRType != "" {
		add("ncr_type = ?", f.NCRType)
	}
	if f.Area != "" {
		add("instr(lower(area), lower(?)) > 0", f.Area)
	}
	if f.From != nil {
		add("report_date >= ?", f.From.UTC())
	}
	if f.To != nil {
		add("report_date <= ?", f.To.UTC())
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNCR(row rowScanner) (*entity.NonConformanceReport, error) {
	var report entity.NonConformanceReport
	var severity, status string
	var targetDate, closureDate sql.NullTime

	err := row.Scan(
		&report.ID,
		&report.ReportNumber,
		&report.ReportDate,
		&severity,
		&report.SourceType,
		&report.NCRType,
		&report.Department,
		&report.Area,
		&report.Line,
		&report.ProductName,
		&report.ProductCode,
		&report.Description,
		&report.RequirementReference,
		&report.ImmediateAction,
		&report.RootCause,
		&report.RootCauseCategory,
		&report.CorrectiveAction,
		&report.PreventiveAction,
		&report.Remarks,
		&report.RaisedByName,
		&report.RaisedByID,
		&report.ResponsiblePerson,
		&targetDate,
		&closureDate,
		&status,
		&report.AttachmentRef,
		&report.CreatedBy,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	report.Severity = entity.Severity(severity)
	report.Status = entity.Status(status)
	report.TargetDate = timePtr(targetDate)
	report.ClosureDate = timePtr(closureDate)
	report.ReportDate = report.ReportDate.UTC()
	report.CreatedAt = report.CreatedAt.UTC()
	report.UpdatedAt = report.UpdatedAt.UTC()
	return &report, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

// Verify interface compliance
var _ port.NCRRepository = (*NCRRepository)(nil)
