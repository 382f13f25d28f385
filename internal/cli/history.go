package cli

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"taskweave/internal/state"
)

func (a *app) historyCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			hs, err := state.NewStore(cfg.StateDir)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				return a.showRun(hs, args[0])
			}
			runs, err := hs.ListRuns()
			if err != nil {
				return err
			}
			if limit > 0 && len(runs) > limit {
				runs = runs[:limit]
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "RUN\tSTARTED\tSTATUS\tTASKS\tRAN\tSKIPPED\tFAILED\tWORKFLOW\n")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
					r.RunID, r.StartTime.Format(time.RFC3339), r.Status,
					r.Counts.Total, r.Counts.Executed, r.Counts.Skipped, r.Counts.Failed+r.Counts.Cascaded, r.Workflow)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "show at most this many runs (0 for all)")
	return cmd
}

func (a *app) showRun(hs *state.Store, runID string) error {
	r, err := hs.LoadRun(runID)
	if err != nil {
		return invalidInvocationf("run %q: %v", runID, err)
	}
	out := a.stdout
	fmt.Fprintf(out, "run:        %s\n", r.RunID)
	fmt.Fprintf(out, "workflow:   %s\n", r.Workflow)
	fmt.Fprintf(out, "status:     %s\n", r.Status)
	fmt.Fprintf(out, "started:    %s\n", r.StartTime.Format(time.RFC3339))
	if r.EndTime != nil {
		fmt.Fprintf(out, "finished:   %s\n", r.EndTime.Format(time.RFC3339))
	}
	if r.GraphHash != "" {
		fmt.Fprintf(out, "plan:       %s\n", r.GraphHash)
	}
	if r.TraceHash != "" {
		fmt.Fprintf(out, "trace:      %s\n", r.TraceHash)
	}
	if r.PreviousRunID != nil {
		fmt.Fprintf(out, "previous:   %s\n", *r.PreviousRunID)
	}
	c := r.Counts
	fmt.Fprintf(out, "tasks:      %d total, %d ran, %d skipped, %d failed, %d cascaded, %d pending, %d cancelled\n",
		c.Total, c.Executed, c.Skipped, c.Failed, c.Cascaded, c.Pending, c.Cancelled)

	if r.Status == state.RunStatusSucceeded || r.Status == state.RunStatusRunning {
		return nil
	}
	f, err := hs.LoadFailure(runID)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "failure:    %s %s\n", f.FailureClass, f.ErrorCode)
	if f.TaskID != nil {
		fmt.Fprintf(out, "task:       %s (%s)\n", *f.TaskID, f.TaskType)
	}
	fmt.Fprintf(out, "message:    %s\n", f.ErrorMessage)
	return nil
}
