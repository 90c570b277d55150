package repository

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/hookmanager/internal/application/port"
	"github.com/garyjia/hookmanager/internal/domain/entity"
	"github.com/garyjia/hookmanager/internal/domain/hook"
)

const journalWriteTimeout = 2 * time.Second

// JournalRecorder writes dispatcher failures to a FailureRepository.
// Write errors are logged and dropped; they never reach the dispatch caller.
type JournalRecorder struct {
	repo   port.FailureRepository
	logger *zap.Logger
}

// NewJournalRecorder creates a recorder backed by repo
func NewJournalRecorder(repo port.FailureRepository, logger *zap.Logger) *JournalRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JournalRecorder{repo: repo, logger: logger}
}

// RecordFailure implements port.FailureRecorder
func (j *JournalRecorder) RecordFailure(ctx context.Context, failure hook.Failure) {
	// The journal write must outlive a cancelled dispatch context
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalWriteTimeout)
	defer cancel()

	record := &entity.FailureRecord{
		HandlerID:  failure.HandlerID,
		Event:      failure.Event,
		Mode:       failure.Mode.String(),
		Error:      failure.Message(),
		OccurredAt: failure.At,
	}
	if err := j.repo.Record(ctx, record); err != nil {
		j.logger.Warn("Failed to journal handler failure",
			zap.String("handler_id", failure.HandlerID),
			zap.String("event", failure.Event),
			zap.Error(err))
	}
}

// Verify interface compliance
var _ port.FailureRecorder = (*JournalRecorder)(nil)
