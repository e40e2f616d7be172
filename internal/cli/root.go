package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pywiz/internal/budget"
	"github.com/ppiankov/pywiz/internal/config"
)

// Process exit codes.
const (
	ExitOK        = 0
	ExitError     = 1
	ExitCompile   = 2
	ExitException = 3
	ExitBudget    = 4
)

// ExitCodeError ends the process with Code after its message, if any, has
// been printed.
type ExitCodeError struct {
	Code int
	Err  error
}

func (e *ExitCodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitCodeError) Unwrap() error { return e.Err }

var configPath string

var rootCmd = &cobra.Command{
	Use:           "pywiz",
	Short:         "Execution tracer for a Python subset",
	Long:          "Runs small Python programs in a sandbox and records every call, line,\nreturn and exception with frame lineage, variable diffs and output.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML (default ~/.pywiz/config.yaml)")
}

// Execute runs the root command.
func Execute() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if err == nil {
		return ExitOK
	}
	var exit *ExitCodeError
	if errors.As(err, &exit) {
		if exit.Err != nil {
			fmt.Fprintf(rootCmd.ErrOrStderr(), "error: %v\n", exit.Err)
		}
		return exit.Code
	}
	fmt.Fprintf(rootCmd.ErrOrStderr(), "error: %v\n", err)
	return ExitError
}

// loadLimits reads the config file and applies flag overrides.
func loadLimits(override budget.Limits) (budget.Limits, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return budget.Limits{}, err
	}
	return cfg.Limits.Merge(override), nil
}
