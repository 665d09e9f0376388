package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pario-ai/promptlab/pkg/budget"
)

func newBudgetCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Inspect token budgets",
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show budget usage vs limits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			out := cmd.OutOrStdout()
			if !a.cfg.Budget.Enabled {
				fmt.Fprintln(out, "Budget enforcement is disabled.")
				return nil
			}
			if len(a.cfg.Budget.Policies) == 0 {
				fmt.Fprintln(out, "No budget policies configured.")
				return nil
			}

			tr, err := a.openTracker()
			if err != nil {
				return err
			}
			statuses, err := budget.New(a.cfg.Budget.Policies, tr, nil).Status(cmd.Context())
			if err != nil {
				return err
			}

			w := newTable(out)
			fmt.Fprintln(w, "MODEL\tPERIOD\tMAX TOKENS\tUSED\tREMAINING")
			for _, s := range statuses {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n",
					s.Policy.Model, s.Policy.Period, s.Policy.MaxTokens, s.Used, s.Remaining)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(statusCmd)
	return cmd
}
