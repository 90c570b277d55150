// Package host is the host-side dispatch surface. It runs natively
// registered module hooks and forwards to the plugin dispatcher, merging
// both result sets.
package host

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/garyjia/hookmanager/internal/application/port"
	"github.com/garyjia/hookmanager/internal/domain/hook"
)

// Dispatcher is the part of the plugin dispatcher the host uses
type Dispatcher interface {
	Invoke(ctx context.Context, id, name string, args ...any) (any, bool)
	InvokeAll(ctx context.Context, name string, args ...any) *hook.Aggregate
	Alter(ctx context.Context, names []string, data any, contexts ...any)
	Reload(catalog port.Catalog, factory port.InstanceFactory)
}

type nativeHooks struct {
	invoke map[string]hook.InvokeFunc
	alter  map[string]hook.AlterFunc
}

// ModuleHandler dispatches to native module hooks first, then to plugins
type ModuleHandler struct {
	mu         sync.RWMutex
	modules    []string
	hooks      map[string]*nativeHooks
	dispatcher Dispatcher
	logger     *zap.Logger
}

// NewModuleHandler creates a module handler backed by dispatcher
func NewModuleHandler(dispatcher Dispatcher, logger *zap.Logger) *ModuleHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModuleHandler{
		hooks:      make(map[string]*nativeHooks),
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Implement registers module's implementation of hookName
func (h *ModuleHandler) Implement(module, hookName string, fn hook.InvokeFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.module(module).invoke[hookName] = fn
}

// ImplementAlter registers module's alter implementation for alterType
func (h *ModuleHandler) ImplementAlter(module, alterType string, fn hook.AlterFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.module(module).alter[alterType] = fn
}

// module returns the hook tables for name, adding it in registration order.
// Callers hold the write lock.
func (h *ModuleHandler) module(name string) *nativeHooks {
	if n, ok := h.hooks[name]; ok {
		return n
	}
	n := &nativeHooks{
		invoke: make(map[string]hook.InvokeFunc),
		alter:  make(map[string]hook.AlterFunc),
	}
	h.hooks[name] = n
	h.modules = append(h.modules, name)
	return n
}

// ModuleImplements lists the modules implementing hookName, in registration order
func (h *ModuleHandler) ModuleImplements(hookName string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []string
	for _, m := range h.modules {
		if _, ok := h.hooks[m].invoke[hookName]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Invoke calls one module's native hook. Native hooks take no context,
// so the call runs to completion even when ctx is already done.
func (h *ModuleHandler) Invoke(_ context.Context, module, hookName string, args ...any) (any, bool) {
	h.mu.RLock()
	n, ok := h.hooks[module]
	var fn hook.InvokeFunc
	if ok {
		fn, ok = n.invoke[hookName]
	}
	h.mu.RUnlock()
	if !ok {
		return nil, false
	}

	result, err := h.callNative(module, hookName, fn, args)
	if err != nil || result == nil {
		return nil, false
	}
	return result, true
}

// InvokePlugin calls one plugin handler through the dispatcher
func (h *ModuleHandler) InvokePlugin(ctx context.Context, id, name string, args ...any) (any, bool) {
	return h.dispatcher.Invoke(ctx, id, name, args...)
}

// InvokeAll runs every native implementation of hookName, then every plugin
// handler, and folds all results into one aggregate
func (h *ModuleHandler) InvokeAll(ctx context.Context, hookName string, args ...any) *hook.Aggregate {
	result := hook.NewAggregate()

	for _, module := range h.ModuleImplements(hookName) {
		h.mu.RLock()
		fn := h.hooks[module].invoke[hookName]
		h.mu.RUnlock()

		value, err := h.callNative(module, hookName, fn, args)
		if err != nil {
			continue
		}
		result.Fold(value)
	}

	result.Fold(h.dispatcher.InvokeAll(ctx, hookName, args...))
	return result
}

// Alter runs the native alter chain for each type, then the plugin chain
func (h *ModuleHandler) Alter(ctx context.Context, types []string, data any, contexts ...any) {
	var context1, context2 any
	if len(contexts) > 0 {
		context1 = contexts[0]
	}
	if len(contexts) > 1 {
		context2 = contexts[1]
	}

	h.mu.RLock()
	type step struct {
		module, alterType string
		fn                hook.AlterFunc
	}
	var chain []step
	for _, t := range types {
		for _, m := range h.modules {
			if fn, ok := h.hooks[m].alter[t]; ok {
				chain = append(chain, step{module: m, alterType: t, fn: fn})
			}
		}
	}
	h.mu.RUnlock()

	for _, s := range chain {
		h.alterNative(s.module, s.alterType, s.fn, data, context1, context2)
	}

	h.dispatcher.Alter(ctx, types, data, contexts...)
}

// Reload points the dispatcher at a new catalog
func (h *ModuleHandler) Reload(catalog port.Catalog, factory port.InstanceFactory) {
	h.dispatcher.Reload(catalog, factory)
	h.logger.Info("Plugin catalog reloaded")
}

func (h *ModuleHandler) callNative(module, hookName string, fn hook.InvokeFunc, args []any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", hook.ErrHandlerPanic, r)
		}
		if err != nil {
			h.logger.Warn("Module hook failed",
				zap.String("module", module),
				zap.String("hook", hookName),
				zap.Error(err))
		}
	}()
	return fn(args...)
}

func (h *ModuleHandler) alterNative(module, alterType string, fn hook.AlterFunc, data, context1, context2 any) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Warn("Module alter hook failed",
				zap.String("module", module),
				zap.String("type", alterType),
				zap.Error(fmt.Errorf("%w: %v", hook.ErrHandlerPanic, r)))
		}
	}()
	if err := fn(data, context1, context2); err != nil {
		h.logger.Warn("Module alter hook failed",
			zap.String("module", module),
			zap.String("type", alterType),
			zap.Error(err))
	}
}
