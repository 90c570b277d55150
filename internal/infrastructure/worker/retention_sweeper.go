package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/hookmanager/internal/application/port"
)

// RetentionSweeper periodically purges journaled failures older than the
// retention window
type RetentionSweeper struct {
	repo      port.FailureRepository
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewRetentionSweeper creates a sweeper that runs every interval
func NewRetentionSweeper(repo port.FailureRepository, retention, interval time.Duration, logger *zap.Logger) *RetentionSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetentionSweeper{
		repo:      repo,
		retention: retention,
		interval:  interval,
		now:       time.Now,
		logger:    logger,
	}
}

// Name implements Worker
func (s *RetentionSweeper) Name() string {
	return "journal-retention"
}

// Run implements Worker
func (s *RetentionSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep purges once; errors are logged and the next tick retries
func (s *RetentionSweeper) Sweep(ctx context.Context) int64 {
	cutoff := s.now().Add(-s.retention)
	purged, err := s.repo.Purge(ctx, cutoff)
	if err != nil {
		s.logger.Warn("Journal retention sweep failed", zap.Error(err))
		return 0
	}
	if purged > 0 {
		s.logger.Info("Purged expired handler failures",
			zap.Int64("count", purged),
			zap.Time("before", cutoff))
	}
	return purged
}
