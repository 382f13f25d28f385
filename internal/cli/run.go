package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"taskweave/internal/builtin"
	"taskweave/internal/config"
	"taskweave/internal/core"
	"taskweave/internal/dag"
	"taskweave/internal/log"
	"taskweave/internal/state"
	"taskweave/internal/trace"
	"taskweave/internal/workflow"
)

type runFlags struct {
	concurrency int
	backend     string
	storeDir    string
	tracePath   string
	noHistory   bool
}

func (a *app) runCommand() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run <workflow.yaml>",
		Short: "Execute a workflow",
		Long: `Execute a workflow against the completion store.

Tasks already recorded in the store are skipped. Exit status is 0 when every
task completed, 1 when a task failed or the run was interrupted, 3 for an
invalid workflow or config and 4 for internal errors.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := f.apply(cmd, cfg); err != nil {
				return err
			}
			return a.run(cmd.Context(), cfg, args[0], !f.noHistory)
		},
	}
	fl := cmd.Flags()
	fl.IntVarP(&f.concurrency, "concurrency", "j", 0, "maximum tasks running at once")
	fl.StringVar(&f.backend, "store", "", "completion store backend: memory, file, s3, postgres")
	fl.StringVar(&f.storeDir, "store-dir", "", "directory of the file store")
	fl.StringVar(&f.tracePath, "trace", "", "write the canonical execution trace to this file")
	fl.BoolVar(&f.noHistory, "no-history", false, "do not record the run in the state directory")
	return cmd
}

func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("concurrency") {
		cfg.Concurrency = f.concurrency
	}
	if flags.Changed("store") {
		cfg.Store.Backend = f.backend
	}
	if flags.Changed("store-dir") {
		cfg.Store.Dir = f.storeDir
	}
	if flags.Changed("trace") {
		cfg.Trace = f.tracePath
	}
	return cfg.Validate()
}

// run executes the workflow at path and records it in the run history.
func (a *app) run(ctx context.Context, cfg *config.Config, path string, history bool) (err error) {
	logger := a.logger(cfg).With("workflow", path)

	var (
		rec *state.Recorder
		r   state.Run
		out state.Outcome
	)
	if history {
		hs, serr := state.NewStore(cfg.StateDir)
		if serr != nil {
			return serr
		}
		rec = state.NewRecorder(hs)
		if r, serr = rec.Begin(path, cfg.Concurrency); serr != nil {
			return fmt.Errorf("record run: %w", serr)
		}
		logger = logger.With("run", r.RunID)
		defer func() {
			out.Err = err
			var ee *ExitError
			if errors.As(err, &ee) {
				out.Err = ee.Err
			}
			if errors.Is(out.Err, workflow.ErrInvalidWorkflow) {
				out.Err = state.ConfigFailure("InvalidWorkflow", out.Err)
			}
			if _, ferr := rec.Finish(r, out); ferr != nil {
				logger.WithError(ferr).Warn("could not record run outcome")
			}
		}()
	}

	w, plan, err := loadPlan(path)
	if err != nil {
		return err
	}
	out.GraphHash = plan.Hash()

	cs, closer, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closer.Close()

	tr := trace.NewRecorder()
	exec, err := dag.NewExecutor(cs,
		dag.WithConcurrency(cfg.Concurrency),
		dag.WithObserver(tr),
		dag.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	report, execErr := exec.Execute(ctx, plan)
	out.Report = report

	if report != nil {
		t := tr.Trace(plan.Hash())
		if h, herr := t.Hash(); herr == nil {
			out.TraceHash = h
		} else {
			logger.WithError(herr).Warn("could not hash trace")
		}
		if cfg.Trace != "" {
			if werr := trace.WriteFile(cfg.Trace, t); werr != nil {
				return werr
			}
		}
		if perr := printReport(a.stdout, w, plan, report); perr != nil {
			logger.WithError(perr).Warn("could not print report")
		}
	}

	if execErr != nil {
		if errors.Is(execErr, context.Canceled) || errors.Is(execErr, context.DeadlineExceeded) {
			return &ExitError{Code: ExitGraphFailure, Err: execErr}
		}
		return execErr
	}
	if !report.Succeeded() {
		logFailures(logger, w, plan, report)
		return &ExitError{Code: ExitGraphFailure}
	}
	return nil
}

// loadPlan parses, builds and validates the workflow at path.
func loadPlan(path string) (*workflow.Workflow, *dag.Plan, error) {
	f, err := workflow.Load(path)
	if err != nil {
		return nil, nil, err
	}
	reg, err := workflow.NewRegistry(builtin.All()...)
	if err != nil {
		return nil, nil, err
	}
	w, err := f.Build(reg)
	if err != nil {
		return nil, nil, err
	}
	plan, err := w.Plan()
	if err != nil {
		return nil, nil, err
	}
	return w, plan, nil
}

// declaredNames maps plan identities to the workflow names that declare
// them. Identical declarations share one identity.
func declaredNames(w *workflow.Workflow, p *dag.Plan) map[core.Identity]string {
	entries := w.PlanEntries(p)
	names := make(map[core.Identity][]string, len(entries))
	for _, e := range entries {
		names[e.Identity] = append(names[e.Identity], e.Name)
	}
	out := make(map[core.Identity]string, len(names))
	for id, ns := range names {
		sort.Strings(ns)
		out[id] = strings.Join(ns, ",")
	}
	return out
}

func outcome(t dag.TaskReport) string {
	switch {
	case t.Skipped:
		return "skipped"
	case t.State == dag.TaskComplete:
		return "executed"
	case t.State == dag.TaskFailed && t.Cause == dag.CauseUpstream:
		return "cascaded"
	case t.State == dag.TaskFailed && t.Cause == dag.CauseCancelled:
		return "cancelled"
	case t.State == dag.TaskFailed:
		return "failed (" + string(t.Cause) + ")"
	}
	return strings.ToLower(string(t.State))
}

// printReport writes one line per plan node in canonical order, then the
// summary counts.
func printReport(out io.Writer, w *workflow.Workflow, p *dag.Plan, r *dag.Report) error {
	names := declaredNames(w, p)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "TASK\tTYPE\tID\tOUTCOME\n")
	for _, t := range r.Tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", names[t.Identity], t.Type, t.Identity.Short(), outcome(t))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	s := r.Summary()
	_, err := fmt.Fprintf(out, "\n%d tasks: %d ran, %d skipped, %d failed, %d cascaded, %d pending, %d cancelled\n",
		s.Total, s.Executed, s.Skipped, s.Failed, s.Cascaded, s.Pending, s.Cancelled)
	return err
}

func logFailures(logger *log.Logger, w *workflow.Workflow, p *dag.Plan, r *dag.Report) {
	names := declaredNames(w, p)
	for _, id := range r.Failed() {
		t, _ := r.Task(id)
		logger.WithError(t.Err).Error("task failed", "task", names[id], "type", t.Type, "cause", string(t.Cause))
	}
}
