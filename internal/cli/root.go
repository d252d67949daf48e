// Package cli wires the habitlab commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/sadopc/habitlab/internal/tui"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

// NewRootCmd builds the command tree. Running it without a subcommand
// starts the terminal UI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	var e *env

	root := &cobra.Command{
		Use:   "habitlab",
		Short: "Run small habit experiments and see what works",
		Long: `habitlab runs one habit experiment at a time: pick a behavior-change
strategy and an action, record each day whether you did it and how it went,
and compare the results by time of day.

Examples:
  habitlab                      # open the terminal UI
  habitlab status               # current experiment and today's record
  habitlab export --format json # export the current experiment
  habitlab serve                # HTTP endpoints and hourly reminders`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// the TUI owns the terminal, so only subcommands log to stderr
			var err error
			e, err = openEnv(opts.configPath, opts.verbose && cmd.HasParent())
			return err
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if e == nil {
				return nil
			}
			return e.Close()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
				return errors.New("the interactive UI needs a terminal; see 'habitlab --help' for commands")
			}
			s, err := e.session(cmd.Context())
			if err != nil {
				return err
			}
			defer s.SignOut()
			err = tui.Run(cmd.Context(), s)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/habitlab/config.yaml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")

	envFn := func() *env { return e }
	root.AddCommand(
		newStatusCmd(envFn),
		newExportCmd(envFn),
		newNotifyCmd(envFn),
		newServeCmd(envFn),
	)
	return root
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
