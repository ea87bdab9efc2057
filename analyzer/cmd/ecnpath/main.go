// Command ecnpath runs the ECN connectivity analysis stages over NDJSON
// observation streams.
//
//	ecnpath stable  [files...]   raw ECN results -> per-vantage summaries
//	ecnpath super   [files...]   raw or stable connectivity -> super conditions
//	ecnpath pathdep [files...]   super conditions -> path dependency
//
// Observations are read from the named files (stdin when none) and the
// verdicts are written to stdout. With --interest a stage reads set metadata
// from stdin and only answers whether it would run on that set.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ecnpath/ecnpath/analyzer/internal/config"
	"github.com/ecnpath/ecnpath/analyzer/internal/pipeline"
)

// Exit statuses of the interest check.
const (
	exitInterested    = 0
	exitNotInterested = 1
	exitInternal      = -1
)

// exitError carries a specific process exit status. A nil err exits
// silently.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// app holds the process streams and the state shared by every subcommand.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	logger, err := cfg.Log.NewLogger(a.verbose)
	if err != nil {
		return err
	}
	a.cfg, a.logger = cfg, logger
	return nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "ecnpath",
		Short: "ECN connectivity super-condition and path-dependency analyzer",
		Long: `ecnpath classifies ECN connectivity observations.

The optional stable stage summarizes what each vantage point saw of each
target. The super stage folds the per-connection results of each target into
one super condition. The pathdep stage combines super conditions seen from
several vantage points into a path or site dependency verdict.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(); err != nil {
				// interest callers read exit status 1 as "not applicable"
				if interest, _ := cmd.Flags().GetBool("interest"); interest {
					return &exitError{code: exitInternal, err: err}
				}
				return err
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to config file (defaults apply when empty)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	for _, s := range pipeline.Stages {
		root.AddCommand(newStageCmd(a, s))
	}

	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	return root
}

// run executes the command line and returns the process exit status.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	root := newRootCmd(a)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, "ecnpath: %v\n", ee.err)
		}
		return ee.code
	}
	fmt.Fprintf(stderr, "ecnpath: %v\n", err)
	return 1
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}
