// Package examples holds the handlers shipped with hookmanager. They are
// registered at startup and double as fixtures for the host tests.
package examples

import (
	"fmt"

	"github.com/garyjia/hookmanager/internal/domain/hook"
	"github.com/garyjia/hookmanager/internal/infrastructure/catalog"
)

// Handler ids
const (
	ExampleHooks1   = "example_hooks_1"
	ExampleHooks2   = "example_hooks2"
	HookManager     = "hook_manager"
	HookManagerTest = "hook_manager_test"
)

// Definitions returns the code defaults for every example handler,
// in registration order
func Definitions() []hook.Definition {
	return []hook.Definition{
		hook.NewDefinition(ExampleHooks1, map[string]any{
			"event_theme":      0,
			"event_form_alter": 0,
			"event_token_info": 0,
		}),
		hook.NewDefinition(ExampleHooks2, map[string]any{
			"event_theme": 5,
		}),
		hook.NewDefinition(HookManager, map[string]any{
			"event_theme":      0,
			"event_form_alter": 0,
			"event_token_info": 0,
		}),
		hook.NewDefinition(HookManagerTest, map[string]any{
			"event_hook_manager_test_invoke":     0,
			"event_hook_manager_test_invoke_all": 0,
			"event_hook_manager_test_alter":      0,
		}),
	}
}

// Constructors maps every example id to its constructor
func Constructors() map[string]catalog.Constructor {
	return map[string]catalog.Constructor{
		ExampleHooks1:   newExampleHooks1,
		ExampleHooks2:   newExampleHooks2,
		HookManager:     newHookManager,
		HookManagerTest: newHookManagerTest,
	}
}

// Register adds every example handler to reg with its code defaults
func Register(reg *catalog.Registry) error {
	ctors := Constructors()
	for _, def := range Definitions() {
		if err := reg.Register(def, ctors[def.ID]); err != nil {
			return fmt.Errorf("failed to register %s: %w", def.ID, err)
		}
	}
	return nil
}

// TestResult is what hook_manager_test returns from its invoke hooks
func TestResult() map[string]any {
	return map[string]any{"ok": "ok"}
}

func newExampleHooks1() (hook.Handler, error) {
	return hook.Bind(hook.NewMethods().
		On("tokenInfo", func(...any) (any, error) { return nil, nil }).
		On("theme", func(...any) (any, error) {
			return map[string]any{"theme2": map[string]any{}}, nil
		}).
		OnAlter("formAlter", func(data, _, _ any) error {
			form, err := formData(data)
			if err != nil {
				return err
			}
			form["foo"] = "bar"
			return nil
		})), nil
}

// example_hooks2 declares event_theme but only binds "menu", so it never
// contributes to theme broadcasts
func newExampleHooks2() (hook.Handler, error) {
	return hook.Bind(hook.NewMethods().
		On("menu", func(...any) (any, error) {
			return map[string]any{"theme2": map[string]any{}}, nil
		})), nil
}

func newHookManager() (hook.Handler, error) {
	noop := func(...any) (any, error) { return nil, nil }
	return hook.Bind(hook.NewMethods().
		On("tokenInfo", noop).
		On("theme", noop).
		OnAlter("formAlter", func(_, _, _ any) error { return nil })), nil
}

func newHookManagerTest() (hook.Handler, error) {
	result := func(...any) (any, error) { return TestResult(), nil }
	return hook.Bind(hook.NewMethods().
		On("hookManagerTestInvoke", result).
		On("hookManagerTestInvokeAll", result).
		OnAlter("hookManagerTestAlter", func(data, _, _ any) error {
			m, err := formData(data)
			if err != nil {
				return err
			}
			m["ok"] = "ok"
			return nil
		})), nil
}

func formData(data any) (map[string]any, error) {
	switch d := data.(type) {
	case map[string]any:
		if d != nil {
			return d, nil
		}
	case *map[string]any:
		if d != nil {
			if *d == nil {
				*d = make(map[string]any)
			}
			return *d, nil
		}
	}
	return nil, fmt.Errorf("expected a mapping to alter, got %T", data)
}
