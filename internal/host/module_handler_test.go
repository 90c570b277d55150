package host

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/garyjia/hookmanager/internal/application/dispatcher"
	"github.com/garyjia/hookmanager/internal/infrastructure/catalog"
	"github.com/garyjia/hookmanager/internal/plugins/examples"
)

func newTestHandler(t *testing.T, logger *zap.Logger) *ModuleHandler {
	t.Helper()
	reg := catalog.NewRegistry(zap.NewNop())
	require.NoError(t, examples.Register(reg))
	reg.Freeze()
	return NewModuleHandler(dispatcher.New(reg, reg), logger)
}

func TestModuleHandler_HooksInvocation(t *testing.T) {
	h := newTestHandler(t, nil)
	ctx := context.Background()

	result, ok := h.InvokePlugin(ctx, examples.HookManagerTest, "hook_manager_test_invoke")
	require.True(t, ok)
	assert.Equal(t, examples.TestResult(), result)

	agg := h.InvokeAll(ctx, "hook_manager_test_invoke_all")
	assert.Equal(t, examples.TestResult(), agg.Fields)

	data := map[string]any{}
	h.Alter(ctx, []string{"hook_manager_test"}, data)
	assert.Equal(t, "ok", data["ok"])
}

func TestModuleHandler_Invoke(t *testing.T) {
	h := newTestHandler(t, nil)
	ctx := context.Background()

	h.Implement("system", "help", func(args ...any) (any, error) {
		return "help for " + args[0].(string), nil
	})
	h.Implement("system", "quiet", func(...any) (any, error) { return nil, nil })

	result, ok := h.Invoke(ctx, "system", "help", "node")
	require.True(t, ok)
	assert.Equal(t, "help for node", result)

	_, ok = h.Invoke(ctx, "system", "quiet")
	assert.False(t, ok)
	_, ok = h.Invoke(ctx, "system", "missing")
	assert.False(t, ok)
	_, ok = h.Invoke(ctx, "nope", "help")
	assert.False(t, ok)

	done, cancel := context.WithCancel(ctx)
	cancel()
	result, ok = h.Invoke(done, "system", "help", "page")
	require.True(t, ok)
	assert.Equal(t, "help for page", result)
}

func TestModuleHandler_InvokeAllMergesNativeThenPlugins(t *testing.T) {
	h := newTestHandler(t, nil)

	h.Implement("system", "theme", func(...any) (any, error) {
		return map[string]any{
			"theme1": map[string]any{"template": "page"},
			"theme2": map[string]any{"variables": []any{"a"}},
		}, nil
	})
	h.Implement("node", "theme", func(...any) (any, error) { return "node-theme", nil })

	assert.Equal(t, []string{"system", "node"}, h.ModuleImplements("theme"))

	agg := h.InvokeAll(context.Background(), "theme")
	assert.Equal(t, map[string]any{
		"theme1": map[string]any{"template": "page"},
		"theme2": map[string]any{"variables": []any{"a"}},
	}, agg.Fields)
	assert.Equal(t, []any{"node-theme"}, agg.Items)
}

func TestModuleHandler_NativeFailureIsolation(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	h := newTestHandler(t, zap.New(core))

	h.Implement("broken", "theme", func(...any) (any, error) { return nil, errors.New("boom") })
	h.Implement("panicky", "theme", func(...any) (any, error) { panic("kaboom") })
	h.Implement("good", "theme", func(...any) (any, error) {
		return map[string]any{"good": true}, nil
	})

	agg := h.InvokeAll(context.Background(), "theme")
	assert.Equal(t, true, agg.Fields["good"])
	assert.Contains(t, agg.Fields, "theme2")
	assert.Len(t, logs.FilterMessage("Module hook failed").All(), 2)
}

func TestModuleHandler_Alter(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	h := newTestHandler(t, zap.New(core))

	var order []string
	h.ImplementAlter("system", "form", func(data, context1, _ any) error {
		order = append(order, "system")
		data.(map[string]any)["native"] = context1
		return nil
	})
	h.ImplementAlter("broken", "form", func(any, any, any) error { panic("bad alter") })
	h.ImplementAlter("node", "form", func(data, _, _ any) error {
		order = append(order, "node")
		data.(map[string]any)["foo"] = "native-first"
		return nil
	})

	form := map[string]any{}
	h.Alter(context.Background(), []string{"form"}, form, "state")

	assert.Equal(t, []string{"system", "node"}, order)
	assert.Equal(t, "state", form["native"])
	// the plugin chain runs after the native one
	assert.Equal(t, "bar", form["foo"])
	assert.Len(t, logs.FilterMessage("Module alter hook failed").All(), 1)
}

func TestModuleHandler_Reload(t *testing.T) {
	reg := catalog.NewRegistry(zap.NewNop())
	d := dispatcher.New(reg, reg)
	h := NewModuleHandler(d, nil)

	_, ok := h.InvokePlugin(context.Background(), examples.HookManagerTest, "hook_manager_test_invoke")
	assert.False(t, ok)

	next := catalog.NewRegistry(zap.NewNop())
	require.NoError(t, examples.Register(next))
	h.Reload(next.Snapshot(), next)

	_, ok = h.InvokePlugin(context.Background(), examples.HookManagerTest, "hook_manager_test_invoke")
	assert.True(t, ok)
}
