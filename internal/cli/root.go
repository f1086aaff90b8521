package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// Process exit codes.
const (
	ExitSuccess          = 0
	ExitGenericError     = 1
	ExitConfigInvalid    = 2
	ExitRootInaccessible = 3
	ExitBindFailure      = 4
)

// GlobalFlags holds flags shared across all commands.
type GlobalFlags struct {
	Root       string
	ConfigPath string
	StateFile  string
	Verbose    bool
	JSON       bool
}

// exitError carries the process exit code up to Execute.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitWith(code int, err error) error {
	return &exitError{code: code, err: err}
}

type app struct {
	flags  GlobalFlags
	stdout io.Writer
	stderr io.Writer
}

// NewRootCommand builds the command tree writing to the given streams.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "ctxview",
		Short: "Share file views, selections and navigation between a browser and an agent",
		Long: "ctxview serves a browser viewer over a directory and exposes it to agents over MCP.\n" +
			"The human selects text in the viewer; the agent reads the selection and can steer the viewer.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.Root, "root", ".", "directory the viewer and tools may access")
	pf.StringVar(&a.flags.ConfigPath, "config", "", "config.toml path (default: user config dir)")
	pf.StringVar(&a.flags.StateFile, "state-file", "", "shared state document (default: ~/.ctxview/state.json)")
	pf.BoolVar(&a.flags.Verbose, "verbose", false, "debug logging")
	pf.BoolVar(&a.flags.JSON, "json", false, "machine-readable output")

	root.AddCommand(
		a.mcpCmd(),
		a.serveCmd(),
		a.statusCmd(),
		a.watchCmd(),
		a.historyCmd(),
		a.clearCmd(),
		a.configCmd(),
		a.versionCmd(),
	)
	return root
}

// Execute runs the CLI with os.Args and returns the process exit code.
func Execute() int {
	return run(NewRootCommand(os.Stdout, os.Stderr), os.Stderr)
}

func run(cmd *cobra.Command, stderr io.Writer) int {
	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}
	st := newStyles(stderr, false)
	_, _ = fmt.Fprintln(stderr, st.errPrefix(), strings.TrimPrefix(err.Error(), "ERROR: "))

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if strings.HasPrefix(err.Error(), "CONFIG_INVALID") {
		return ExitConfigInvalid
	}
	return ExitGenericError
}
