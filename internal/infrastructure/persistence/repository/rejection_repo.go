package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/garyjia/ncr-tracker/internal/application/port"
	"github.com/garyjia/ncr-tracker/internal/domain/entity"
	"github.com/garyjia/ncr-tracker/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const rejectionColumns = `
	id, material_type, material_name, supplier_name, defect_category,
	defect_description, quantity_rejected, shift, process_area, images,
	created_by, created_at`

// RejectionRepository implements port.RejectionRepository
type RejectionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRejectionRepository creates a new rejection repository
func NewRejectionRepository(db *sql.DB, logger *zap.Logger) port.RejectionRepository {
	return &RejectionRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a rejection; images are stored as a JSON array
func (r *RejectionRepository) Create(ctx context.Context, rejection *entity.Rejection) error {
	images := rejection.Images
	if images == nil {
		images = []string{}
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return fmt.Errorf("failed to marshal images: %w", err)
	}

	query := `
		INSERT INTO rejections (
			material_type, material_name, supplier_name, defect_category,
			defect_description, quantity_rejected, shift, process_area, images,
			created_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		rejection.MaterialType,
		rejection.MaterialName,
		rejection.SupplierName,
		rejection.DefectCategory,
		rejection.DefectDescription,
		rejection.QuantityRejected,
		rejection.Shift,
		rejection.ProcessArea,
		string(imagesJSON),
		rejection.CreatedBy,
		rejection.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create rejection",
			zap.String("material_name", rejection.MaterialName),
			zap.Error(err))
		return fmt.Errorf("failed to create rejection: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	rejection.ID = id
	return nil
}

// GetByID retrieves a rejection by its ID
func (r *RejectionRepository) GetByID(ctx context.Context, id int64) (*entity.Rejection, error) {
	query := `SELECT ` + rejectionColumns + ` FROM rejections WHERE id = ?`

	rejection, err := scanRejection(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get rejection by ID",
			zap.Int64("id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get rejection: %w", err)
	}
	return rejection, nil
}

// List returns all rejections, newest first
func (r *RejectionRepository) List(ctx context.Context) ([]*entity.Rejection, error) {
	query := `SELECT ` + rejectionColumns + ` FROM rejections ORDER BY created_at DESC, id DESC`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list rejections", zap.Error(err))
		return nil, fmt.Errorf("failed to list rejections: %w", err)
	}
	defer rows.Close()

	rejections := make([]*entity.Rejection, 0)
	for rows.Next() {
		rejection, err := scanRejection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rejection: %w", err)
		}
		rejections = append(rejections, rejection)
	}
	return rejections, rows.Err()
}

// Delete removes a rejection
func (r *RejectionRepository) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM rejections WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete rejection",
			zap.Int64("id", id),
			zap.Error(err))
		return false, fmt.Errorf("failed to delete rejection: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

func scanRejection(row rowScanner) (*entity.Rejection, error) {
	var rejection entity.Rejection
	var imagesJSON string

	err := row.Scan(
		&rejection.ID,
		&rejection.MaterialType,
		&rejection.MaterialName,
		&rejection.SupplierName,
		&rejection.DefectCategory,
		&rejection.DefectDescription,
		&rejection.QuantityRejected,
		&rejection.Shift,
		&rejection.ProcessArea,
		&imagesJSON,
		&rejection.CreatedBy,
		&rejection.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(imagesJSON), &rejection.Images); err != nil {
		return nil, fmt.Errorf("failed to unmarshal images: %w", err)
	}
	rejection.CreatedAt = rejection.CreatedAt.UTC()
	return &rejection, nil
}

// Verify interface compliance
var _ port.RejectionRepository = (*RejectionRepository)(nil)
