// Package main provides the obacore command line: it runs LDAP operations
// through the in-process engine and manages its configuration.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Command streams; tests replace them.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
	stdin  io.Reader = os.Stdin
)

func main() {
	os.Exit(run(os.Args))
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "obacore",
		Short: "LDAP operation engine",
		Long: `obacore runs LDAP operations through the operation lifecycle engine:
plugins, cancellation, workflow routing, the local badger backend and
persistent-search notification, all in process.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetIn(stdin)

	root.AddCommand(newSearchCmd())
	root.AddCommand(newAddCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newPasswdCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// run executes the CLI and returns an exit code.
func run(args []string) int {
	root := newRootCmd()
	if len(args) < 2 {
		_ = root.Usage()
		return 1
	}

	root.SetArgs(args[1:])
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}
