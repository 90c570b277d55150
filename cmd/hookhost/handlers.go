package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/hookmanager/internal/domain/hook"
)

var handlersAlter bool

var handlersCmd = &cobra.Command{
	Use:   "handlers [event]",
	Short: "List registered handlers, or the resolved order for one event",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHandlers,
}

func init() {
	handlersCmd.Flags().BoolVar(&handlersAlter, "alter", false, "Resolve the alter form of the event")
}

func runHandlers(cmd *cobra.Command, args []string) error {
	a, err := startApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	if len(args) == 0 {
		defs := a.container.Registry().Definitions()
		if jsonOutput {
			return printJSON(defs)
		}
		for _, def := range defs {
			fmt.Printf("%-20s %v\n", def.ID, def.Events())
		}
		return nil
	}

	d := a.container.Dispatcher()
	var impls []hook.Implementation
	if handlersAlter {
		impls = d.AlterImplementations(args[0])
	} else {
		impls = d.Implementations(args[0])
	}

	if jsonOutput {
		return printJSON(impls)
	}
	if len(impls) == 0 {
		fmt.Println("no handlers")
		return nil
	}
	for i, impl := range impls {
		fmt.Printf("%d. %-20s priority %d\n", i+1, impl.ID, impl.Priority)
	}
	return nil
}
