package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (a *app) validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <workflow.yaml>",
		Short: "Check a workflow without running it",
		Long: `Parse and wire a workflow, check every required input is bound and the
graph has no cycle, then print the plan hash.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, plan, err := loadPlan(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "ok: %d tasks, %d edges, plan %s\n", plan.Len(), len(plan.Edges()), plan.Hash())
			return nil
		},
	}
}

func (a *app) idsCommand() *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "ids <workflow.yaml>",
		Short: "Print the identity of every task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, _, err := loadPlan(args[0])
			if err != nil {
				return err
			}
			entries, err := w.Entries()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "TASK\tTYPE\tID\tKEY\n")
			for _, e := range entries {
				id := e.Identity.Short()
				if full {
					id = e.Identity.Hash()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Name, e.Type, id, e.Identity.String())
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "print full hashes")
	return cmd
}
