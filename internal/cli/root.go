// Package cli implements the taskweave command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"taskweave/internal/config"
	"taskweave/internal/log"
)

// globals are the persistent flags shared by every subcommand.
type globals struct {
	configPath string
	envFile    string
	logLevel   string
	logFormat  string
	stateDir   string
}

type app struct {
	globals
	stdout io.Writer
	stderr io.Writer
	// parsed is set once cobra accepted the flags and arguments.
	parsed bool
}

// NewRootCommand builds the command tree writing to stdout and stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	return newApp(stdout, stderr).root()
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr}
}

func (a *app) root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taskweave",
		Short: "Deterministic task-graph execution with memoized results",
		Long: `taskweave runs workflows of typed tasks wired output-to-input.

Every task has a content identity derived from its type, parameters and the
identities of its producers. Tasks whose identity is already recorded in the
completion store are skipped; failures cascade to consumers while
independent branches keep running.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			a.parsed = true
			return nil
		},
	}
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	f := cmd.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "config file (default $TASKWEAVE_CONFIG or ./"+config.DefaultFile+")")
	f.StringVar(&a.envFile, "env-file", "", "dotenv file (default ./.env if present)")
	f.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	f.StringVar(&a.logFormat, "log-format", "", "log format: text or json")
	f.StringVar(&a.stateDir, "state-dir", "", "directory for run history")

	cmd.AddCommand(a.runCommand(), a.validateCommand(), a.idsCommand(), a.historyCommand())
	return cmd
}

// loadConfig reads the config and applies the persistent flags.
func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(config.Options{ConfigPath: a.configPath, EnvFile: a.envFile})
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = a.logFormat
	}
	if flags.Changed("state-dir") {
		cfg.StateDir = a.stateDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (a *app) logger(cfg *config.Config) *log.Logger {
	return log.New(cfg.LoggerConfig(a.stderr))
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return execute(ctx, newApp(stdout, stderr), args)
}

func execute(ctx context.Context, a *app, args []string) int {
	cmd := a.root()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	var ee *ExitError
	isExit := errors.As(err, &ee)
	if !a.parsed && !isExit {
		// Unknown command, bad flag or wrong argument count.
		err = &ExitError{Code: ExitInvalidInvocation, Err: err}
	}
	if ee == nil || ee.Err != nil {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
	}
	return ExitCode(err)
}
