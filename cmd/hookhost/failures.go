package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var failuresLimit int

var failuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "Show handler failures recorded in the journal",
	RunE:  runFailures,
}

func init() {
	failuresCmd.Flags().IntVarP(&failuresLimit, "limit", "n", 10, "Maximum number of failures to show")
}

func runFailures(cmd *cobra.Command, _ []string) error {
	a, err := startApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	repo := a.container.Failures()
	if repo == nil {
		return fmt.Errorf("the failure journal is disabled; set journal.enabled")
	}

	ctx := cmd.Context()
	recent, err := repo.Recent(ctx, failuresLimit)
	if err != nil {
		return err
	}
	counts, err := repo.CountByHandler(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(map[string]any{"recent": recent, "counts": counts})
	}

	for handlerID, n := range counts {
		fmt.Printf("%-20s %d\n", handlerID, n)
	}
	for _, f := range recent {
		fmt.Printf("%s  %-10s %-20s %-30s %s\n",
			f.OccurredAt.Format("2006-01-02 15:04:05"), f.Mode, f.HandlerID, f.Event, f.Error)
	}
	return nil
}
