package port

import (
	"context"
	"time"

	"github.com/garyjia/hookmanager/internal/domain/entity"
	"github.com/garyjia/hookmanager/internal/domain/hook"
)

// Catalog gives read access to handler definitions.
// Iteration order of Definitions is the catalog's registration order; the
// dispatcher imposes its own priority ordering on top of it.
type Catalog interface {
	Definition(id string) (hook.Definition, bool)
	Definitions() []hook.Definition
}

// InstanceFactory constructs handler instances by id.
// Failures wrap hook.ErrInstantiation.
type InstanceFactory interface {
	CreateInstance(id string) (hook.Handler, error)
}

// FailureRecorder receives handler failures absorbed by the dispatcher
type FailureRecorder interface {
	RecordFailure(ctx context.Context, failure hook.Failure)
}

// DispatchTracker observes dispatch calls and individual handler calls
type DispatchTracker interface {
	// Begin starts tracking a dispatch call; end is called once with the
	// number of handlers that were resolved
	Begin(ctx context.Context, mode hook.Mode, event string) (tracked context.Context, end func(handlers int))

	// Handler records one handler call
	Handler(ctx context.Context, mode hook.Mode, event, handlerID string, status hook.Status, elapsed time.Duration)
}

// FailureRepository persists handler failures
type FailureRepository interface {
	Record(ctx context.Context, record *entity.FailureRecord) error
	Recent(ctx context.Context, limit int) ([]*entity.FailureRecord, error)
	CountByHandler(ctx context.Context) (map[string]int, error)
	Purge(ctx context.Context, before time.Time) (int64, error)
}
