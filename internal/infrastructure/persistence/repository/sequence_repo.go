package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/ncr-tracker/internal/application/port"
	"github.com/garyjia/ncr-tracker/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// SequenceRepository implements port.SequenceRepository on the ncr_counters table
type SequenceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSequenceRepository creates a new sequence repository
func NewSequenceRepository(db *sql.DB, logger *zap.Logger) port.SequenceRepository {
	return &SequenceRepository{
		db:     db,
		logger: logger,
	}
}

// Next increments the counter for year in a single upsert statement
func (r *SequenceRepository) Next(ctx context.Context, year int) (int, error) {
	query := `
		INSERT INTO ncr_counters (year, counter) VALUES (?, 1)
		ON CONFLICT (year) DO UPDATE SET counter = counter + 1
		RETURNING counter
	`

	var counter int
	if err := sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, year).Scan(&counter); err != nil {
		r.logger.Error("Failed to advance NCR counter",
			zap.Int("year", year),
			zap.Error(err))
		return 0, fmt.Errorf("failed to advance NCR counter: %w", err)
	}
	return counter, nil
}

// Verify interface compliance
var _ port.SequenceRepository = (*SequenceRepository)(nil)
