package repository

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/hookmanager/internal/application/port"
	"github.com/garyjia/hookmanager/internal/domain/entity"
	"github.com/garyjia/hookmanager/pkg/database"
)

// FailureRepository implements port.FailureRepository on sqlite
type FailureRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewFailureRepository creates a new failure repository
func NewFailureRepository(db *database.DB, logger *zap.Logger) *FailureRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FailureRepository{
		db:     db,
		logger: logger,
	}
}

// Record inserts a failure and sets its ID
func (r *FailureRepository) Record(ctx context.Context, record *entity.FailureRecord) error {
	query := `
		INSERT INTO handler_failures (handler_id, event, mode, error, occurred_at)
		VALUES (?, ?, ?, ?, ?)
	`

	if record.OccurredAt.IsZero() {
		record.OccurredAt = time.Now()
	}
	record.OccurredAt = record.OccurredAt.UTC()

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		record.HandlerID,
		record.Event,
		record.Mode,
		record.Error,
		record.OccurredAt,
	)
	if err != nil {
		r.logger.Error("Failed to record handler failure",
			zap.String("handler_id", record.HandlerID),
			zap.String("event", record.Event),
			zap.Error(err))
		return fmt.Errorf("failed to record handler failure: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	record.ID = id
	return nil
}

// Recent returns up to limit failures, newest first
func (r *FailureRepository) Recent(ctx context.Context, limit int) ([]*entity.FailureRecord, error) {
	if limit <= 0 {
		return []*entity.FailureRecord{}, nil
	}

	query := `
		SELECT id, handler_id, event, mode, error, occurred_at
		FROM handler_failures
		ORDER BY occurred_at DESC, id DESC
		LIMIT ?
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, limit)
	if err != nil {
		r.logger.Error("Failed to query recent failures", zap.Error(err))
		return nil, fmt.Errorf("failed to query recent failures: %w", err)
	}
	defer rows.Close()

	records := make([]*entity.FailureRecord, 0, limit)
	for rows.Next() {
		var record entity.FailureRecord
		if err := rows.Scan(
			&record.ID,
			&record.HandlerID,
			&record.Event,
			&record.Mode,
			&record.Error,
			&record.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate failures: %w", err)
	}
	return records, nil
}

// CountByHandler returns the number of recorded failures per handler
func (r *FailureRepository) CountByHandler(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT handler_id, COUNT(*)
		FROM handler_failures
		GROUP BY handler_id
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to count failures", zap.Error(err))
		return nil, fmt.Errorf("failed to count failures: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var handlerID string
		var count int
		if err := rows.Scan(&handlerID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan failure count: %w", err)
		}
		counts[handlerID] = count
	}
	return counts, rows.Err()
}

// Purge deletes failures that occurred before the given time
func (r *FailureRepository) Purge(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM handler_failures WHERE occurred_at < ?`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, before.UTC())
	if err != nil {
		r.logger.Error("Failed to purge failures",
			zap.Time("before", before),
			zap.Error(err))
		return 0, fmt.Errorf("failed to purge failures: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// Verify interface compliance
var _ port.FailureRepository = (*FailureRepository)(nil)
