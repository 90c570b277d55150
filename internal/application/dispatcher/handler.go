package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/hookmanager/internal/application/port"
	"github.com/garyjia/hookmanager/internal/domain/hook"
)

// outcome is the result of calling one handler. Failures are carried as
// values and folded to "absent" by the caller.
type outcome struct {
	value   any
	present bool
	err     error
}

func (o outcome) status() hook.Status {
	switch {
	case o.err != nil:
		return hook.StatusFailed
	case o.present:
		return hook.StatusOK
	default:
		return hook.StatusAbsent
	}
}

// invokeHandler constructs handler id and calls its method for the event
func (d *Dispatcher) invokeHandler(ctx context.Context, factory port.InstanceFactory, mode hook.Mode, canonical, id string, args []any) outcome {
	start := d.now()

	out := func() outcome {
		methods, err := instantiate(factory, id)
		if err != nil {
			return outcome{err: err}
		}

		fn, ok := methods.Invoker(hook.MethodName(canonical))
		if !ok {
			return outcome{}
		}

		value, err := safeInvoke(fn, args)
		if err != nil {
			return outcome{err: err}
		}
		return outcome{value: value, present: value != nil}
	}()

	d.observe(ctx, mode, canonical, id, out, start)
	return out
}

// alterHandler constructs handler id and runs its alter method for the event
func (d *Dispatcher) alterHandler(ctx context.Context, factory port.InstanceFactory, canonical, id string, data, context1, context2 any) {
	start := d.now()

	out := func() outcome {
		methods, err := instantiate(factory, id)
		if err != nil {
			return outcome{err: err}
		}

		fn, ok := methods.Alterer(hook.MethodName(canonical))
		if !ok {
			return outcome{}
		}

		if err := safeAlter(fn, data, context1, context2); err != nil {
			return outcome{err: err}
		}
		return outcome{present: true}
	}()

	d.observe(ctx, hook.ModeAlter, canonical, id, out, start)
}

// observe reports a handler call to the tracker and, on failure, to the
// logger and every recorder
func (d *Dispatcher) observe(ctx context.Context, mode hook.Mode, canonical, id string, out outcome, start time.Time) {
	at := d.now()
	d.tracker.Handler(ctx, mode, canonical, id, out.status(), at.Sub(start))

	if out.err == nil {
		return
	}

	d.logger.Warn("Handler failed",
		zap.String("handler_id", id),
		zap.String("event", canonical),
		zap.String("mode", mode.String()),
		zap.Error(out.err))

	failure := hook.Failure{
		HandlerID: id,
		Event:     canonical,
		Mode:      mode,
		Err:       out.err,
		At:        at,
	}
	for _, recorder := range d.recorders {
		recordSafely(ctx, recorder, failure, d.logger)
	}
}

// instantiate obtains a handler's method table. Panics in the factory or
// constructor are converted to instantiation errors.
func instantiate(factory port.InstanceFactory, id string) (methods *hook.Methods, err error) {
	defer func() {
		if r := recover(); r != nil {
			methods = nil
			err = fmt.Errorf("%w: handler %s panicked during construction: %v", hook.ErrInstantiation, id, r)
		}
	}()

	if factory == nil {
		return nil, fmt.Errorf("%w: no instance factory", hook.ErrInstantiation)
	}

	instance, err := factory.CreateInstance(id)
	if err != nil {
		if !errors.Is(err, hook.ErrInstantiation) {
			err = fmt.Errorf("%w: %w", hook.ErrInstantiation, err)
		}
		return nil, err
	}
	if instance == nil {
		return nil, fmt.Errorf("%w: factory returned no instance for %s", hook.ErrInstantiation, id)
	}

	return instance.Methods(), nil
}

// safeInvoke runs an invoke method with panic recovery
func safeInvoke(fn hook.InvokeFunc, args []any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: %v", hook.ErrHandlerPanic, r)
		}
	}()

	result, err = fn(args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", hook.ErrInvocation, err)
	}
	return result, nil
}

// safeAlter runs an alter method with panic recovery
func safeAlter(fn hook.AlterFunc, data, context1, context2 any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", hook.ErrHandlerPanic, r)
		}
	}()

	if err := fn(data, context1, context2); err != nil {
		return fmt.Errorf("%w: %w", hook.ErrInvocation, err)
	}
	return nil
}

// recordSafely keeps a misbehaving recorder from breaking the dispatch
func recordSafely(ctx context.Context, recorder port.FailureRecorder, failure hook.Failure, logger *zap.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Failure recorder panic recovered",
				zap.String("handler_id", failure.HandlerID),
				zap.Any("panic", r))
		}
	}()

	recorder.RecordFailure(ctx, failure)
}
