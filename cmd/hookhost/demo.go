package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/hookmanager/internal/host"
	"github.com/garyjia/hookmanager/internal/plugins/examples"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run each dispatch mode against the bundled handlers",
	RunE:  runDemo,
}

type demoResult struct {
	Invoke    any            `json:"invoke"`
	InvokeAll map[string]any `json:"invoke_all"`
	Theme     map[string]any `json:"theme"`
	Form      map[string]any `json:"form"`
}

func runDemo(cmd *cobra.Command, _ []string) error {
	a, err := startApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	h := a.container.Host()
	registerSystemModule(h)

	ctx := cmd.Context()
	var result demoResult

	result.Invoke, _ = h.InvokePlugin(ctx, examples.HookManagerTest, "hook_manager_test_invoke")
	result.InvokeAll = h.InvokeAll(ctx, "hook_manager_test_invoke_all").Map()
	result.Theme = h.InvokeAll(ctx, "theme").Map()

	result.Form = map[string]any{"title": "Demo"}
	h.Alter(ctx, []string{"form", "hook_manager_test"}, result.Form, "form-state", "demo_form")

	if jsonOutput {
		return printJSON(result)
	}

	fmt.Printf("invoke      %v\n", result.Invoke)
	fmt.Printf("invoke_all  %v\n", result.InvokeAll)
	fmt.Printf("theme       %v\n", result.Theme)
	fmt.Printf("form        %v\n", result.Form)
	return nil
}

// registerSystemModule adds native module hooks that run ahead of plugins
func registerSystemModule(h *host.ModuleHandler) {
	h.Implement("system", "theme", func(...any) (any, error) {
		return map[string]any{"page": map[string]any{"template": "page"}}, nil
	})
	h.ImplementAlter("system", "form", func(data, _, context2 any) error {
		if form, ok := data.(map[string]any); ok {
			form["form_id"] = context2
		}
		return nil
	})
}
