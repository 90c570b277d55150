// Package dispatcher resolves event names to the handlers that declare
// them and calls those handlers in priority order.
package dispatcher

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/hookmanager/internal/application/port"
	"github.com/garyjia/hookmanager/internal/domain/hook"
)

// Dispatcher routes events to the handlers declared in a catalog.
//
// Three modes are supported: Invoke calls one handler by id, InvokeAll
// broadcasts to every implementer and deep-merges the results, and Alter
// passes shared values through an ordered chain of mutators. A failing
// handler never reaches the caller: it contributes nothing and is reported
// to the configured recorders instead.
type Dispatcher struct {
	mu        sync.RWMutex
	catalog   port.Catalog
	factory   port.InstanceFactory
	cache     *implementationCache
	memoize   bool
	logger    *zap.Logger
	recorders []port.FailureRecorder
	tracker   port.DispatchTracker
	now       func() time.Time
}

// Option configures the dispatcher
type Option func(*Dispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithRecorder adds a recorder for absorbed handler failures.
// May be given more than once.
func WithRecorder(recorder port.FailureRecorder) Option {
	return func(d *Dispatcher) {
		if recorder != nil {
			d.recorders = append(d.recorders, recorder)
		}
	}
}

// WithTracker sets the tracker notified of every dispatch and handler call
func WithTracker(tracker port.DispatchTracker) Option {
	return func(d *Dispatcher) {
		if tracker != nil {
			d.tracker = tracker
		}
	}
}

// WithMemoization turns the per-event resolution cache on or off (default on)
func WithMemoization(enabled bool) Option {
	return func(d *Dispatcher) {
		d.memoize = enabled
	}
}

// WithClock overrides the time source used for failure timestamps and timings
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// New creates a dispatcher over a catalog and an instance factory
func New(catalog port.Catalog, factory port.InstanceFactory, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		catalog: catalog,
		factory: factory,
		cache:   newImplementationCache(),
		memoize: true,
		logger:  zap.NewNop(),
		tracker: noopTracker{},
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Invoke calls the handler id for the event name and returns its result.
// The second return value is false when there is nothing to return: empty
// name, unknown handler, undeclared event, unbound method, nil result, or
// a failed call.
func (d *Dispatcher) Invoke(ctx context.Context, id, name string, args ...any) (any, bool) {
	canonical, ok := hook.Canonical(name)
	if !ok {
		return nil, false
	}

	ctx, end := d.tracker.Begin(ctx, hook.ModeInvoke, canonical)

	catalog, factory := d.view()
	def, found := catalog.Definition(id)
	if !found || !def.Implements(canonical) {
		end(0)
		d.logger.Debug("No implementation for invoke",
			zap.String("handler_id", id),
			zap.String("event", canonical))
		return nil, false
	}

	out := d.invokeHandler(ctx, factory, hook.ModeInvoke, canonical, id, args)
	end(1)

	return out.value, out.present
}

// InvokeAll calls every handler declaring the event name, highest priority
// first, and folds their results into an aggregate: mappings are deep-merged,
// other non-nil results are appended. The aggregate is never nil.
func (d *Dispatcher) InvokeAll(ctx context.Context, name string, args ...any) *hook.Aggregate {
	result := hook.NewAggregate()

	canonical, ok := hook.Canonical(name)
	if !ok {
		return result
	}

	ctx, end := d.tracker.Begin(ctx, hook.ModeInvokeAll, canonical)

	impls := d.implementations(canonical)
	_, factory := d.view()

	d.logger.Debug("Dispatching event",
		zap.String("mode", hook.ModeInvokeAll.String()),
		zap.String("event", canonical),
		zap.Int("handler_count", len(impls)))

	for _, impl := range impls {
		out := d.invokeHandler(ctx, factory, hook.ModeInvokeAll, canonical, impl.ID, args)
		if out.present {
			result.Fold(out.value)
		}
	}
	end(len(impls))

	return result
}

// Alter passes data through the alter chain of each name in order.
// contexts carries up to two extra values handed to every handler; values
// beyond the second are ignored. Handlers mutate data in place, so data
// (and the context values) should be pointers or maps. A failing handler
// is skipped; mutations made before it are kept.
func (d *Dispatcher) Alter(ctx context.Context, names []string, data any, contexts ...any) {
	var context1, context2 any
	if len(contexts) > 0 {
		context1 = contexts[0]
	}
	if len(contexts) > 1 {
		context2 = contexts[1]
	}

	_, factory := d.view()

	for _, name := range names {
		canonical, ok := hook.CanonicalAlter(name)
		if !ok {
			continue
		}

		tracked, end := d.tracker.Begin(ctx, hook.ModeAlter, canonical)
		impls := d.implementations(canonical)

		d.logger.Debug("Dispatching event",
			zap.String("mode", hook.ModeAlter.String()),
			zap.String("event", canonical),
			zap.Int("handler_count", len(impls)))

		for _, impl := range impls {
			d.alterHandler(tracked, factory, canonical, impl.ID, data, context1, context2)
		}
		end(len(impls))
	}
}

// AlterOne is Alter for a single event name
func (d *Dispatcher) AlterOne(ctx context.Context, name string, data any, contexts ...any) {
	d.Alter(ctx, []string{name}, data, contexts...)
}

// Implementations returns the handlers that InvokeAll would call for name,
// in call order
func (d *Dispatcher) Implementations(name string) []hook.Implementation {
	canonical, ok := hook.Canonical(name)
	if !ok {
		return nil
	}
	return cloneImplementations(d.implementations(canonical))
}

// AlterImplementations returns the alter chain for name, in call order
func (d *Dispatcher) AlterImplementations(name string) []hook.Implementation {
	canonical, ok := hook.CanonicalAlter(name)
	if !ok {
		return nil
	}
	return cloneImplementations(d.implementations(canonical))
}

// Invalidate drops every memoized resolution. Call it whenever the
// catalog's contents change.
func (d *Dispatcher) Invalidate() {
	d.cache.reset()
	d.logger.Debug("Implementation cache invalidated")
}

// Reload swaps the catalog (and, when non-nil, the factory) and invalidates
// the cache
func (d *Dispatcher) Reload(catalog port.Catalog, factory port.InstanceFactory) {
	d.mu.Lock()
	if catalog != nil {
		d.catalog = catalog
	}
	if factory != nil {
		d.factory = factory
	}
	d.mu.Unlock()

	d.cache.reset()
	d.logger.Info("Dispatcher catalog reloaded")
}

// view returns the current catalog and factory
func (d *Dispatcher) view() (port.Catalog, port.InstanceFactory) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.catalog, d.factory
}

// implementations resolves the ordered handlers for a canonical name,
// through the cache when memoization is on. The returned slice is shared
// and must not be modified.
func (d *Dispatcher) implementations(canonical string) []hook.Implementation {
	fill := func() []hook.Implementation {
		catalog, _ := d.view()
		impls := resolve(catalog.Definitions(), canonical)
		d.logger.Debug("Resolved implementations",
			zap.String("event", canonical),
			zap.Int("handler_count", len(impls)))
		return impls
	}

	if !d.memoize {
		return fill()
	}
	return d.cache.get(canonical, fill)
}

func cloneImplementations(impls []hook.Implementation) []hook.Implementation {
	out := make([]hook.Implementation, len(impls))
	copy(out, impls)
	return out
}

type noopTracker struct{}

func (noopTracker) Begin(ctx context.Context, _ hook.Mode, _ string) (context.Context, func(int)) {
	return ctx, func(int) {}
}

func (noopTracker) Handler(context.Context, hook.Mode, string, string, hook.Status, time.Duration) {}
