// Package catalog holds the in-memory handler catalog. Handlers are added
// through an explicit registration step at startup; the registry then
// serves both as the dispatcher's catalog and as its instance factory.
package catalog

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/garyjia/hookmanager/internal/application/port"
	"github.com/garyjia/hookmanager/internal/domain/hook"
)

// Constructor builds a fresh handler instance
type Constructor func() (hook.Handler, error)

type entry struct {
	def  hook.Definition
	ctor Constructor
}

// Registry is a catalog of handler definitions and their constructors.
// Iteration order is registration order. Registering an id twice replaces
// the earlier entry (last registration wins) and moves it to the end.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]entry
	frozen  bool
	logger  *zap.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		entries: make(map[string]entry),
		logger:  logger,
	}
}

// Register adds a handler definition with its constructor
func (r *Registry) Register(def hook.Definition, ctor Constructor) error {
	if err := def.Validate(); err != nil {
		return err
	}
	if ctor == nil {
		return fmt.Errorf("%w: handler %s has no constructor", hook.ErrInvalidDefinition, def.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("%w: cannot register %s", hook.ErrCatalogFrozen, def.ID)
	}

	if _, exists := r.entries[def.ID]; exists {
		r.logger.Warn("Duplicate handler id, last registration wins",
			zap.String("handler_id", def.ID))
		r.removeFromOrder(def.ID)
	}

	r.entries[def.ID] = entry{def: def.Clone(), ctor: ctor}
	r.order = append(r.order, def.ID)

	r.logger.Debug("Handler registered",
		zap.String("handler_id", def.ID),
		zap.Strings("events", def.Events()))

	return nil
}

// MustRegister is Register that panics on error, for static registration tables
func (r *Registry) MustRegister(def hook.Definition, ctor Constructor) {
	if err := r.Register(def, ctor); err != nil {
		panic(err)
	}
}

// Freeze makes the registry read-only
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.frozen {
		r.frozen = true
		r.logger.Info("Handler catalog frozen", zap.Int("handler_count", len(r.order)))
	}
}

// Frozen reports whether the registry is read-only
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Definition returns the definition registered under id.
// The returned value is shared and must not be modified.
func (r *Registry) Definition(id string) (hook.Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return hook.Definition{}, false
	}
	return e.def, true
}

// Definitions returns every definition in registration order
func (r *Registry) Definitions() []hook.Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]hook.Definition, 0, len(r.order))
	for _, id := range r.order {
		defs = append(defs, r.entries[id].def)
	}
	return defs
}

// CreateInstance constructs a new instance of handler id
func (r *Registry) CreateInstance(id string) (hook.Handler, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", hook.ErrUnknownHandler, id)
	}

	instance, err := e.ctor()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", hook.ErrInstantiation, id, err)
	}
	if instance == nil {
		return nil, fmt.Errorf("%w: %s: constructor returned nil", hook.ErrInstantiation, id)
	}
	return instance, nil
}

// IDs returns the registered ids in registration order
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Len returns the number of registered handlers
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Snapshot returns a frozen copy of the registry
func (r *Registry) Snapshot() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := &Registry{
		order:   make([]string, len(r.order)),
		entries: make(map[string]entry, len(r.entries)),
		frozen:  true,
		logger:  r.logger,
	}
	copy(snap.order, r.order)
	for id, e := range r.entries {
		snap.entries[id] = e
	}
	return snap
}

func (r *Registry) removeFromOrder(id string) {
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

// Verify interface compliance
var (
	_ port.Catalog         = (*Registry)(nil)
	_ port.InstanceFactory = (*Registry)(nil)
)
