package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// verbose is a persistent flag declared directly against pflag (rather
// than through cobra's wrapper) so subcommands can check it without
// threading it through RunE signatures.
var verbose bool

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "btreedb-repl",
		Short: "Demonstrator shell and maintenance commands for a btreedb database file",
	}

	flags := pflag.NewFlagSet("btreedb-repl", pflag.ExitOnError)
	flags.BoolVarP(&verbose, "verbose", "v", false, "print extra diagnostic output")
	root.PersistentFlags().AddFlagSet(flags)

	root.AddCommand(newReplCmd())
	root.AddCommand(newBackupCmd())
	root.AddCommand(newRestoreCmd())
	root.AddCommand(newDumpCmd())
	return root
}

// sessionID tags one invocation of the tool for .stats output, the way a
// multi-tenant manager would distinguish concurrently open handles.
var sessionID = uuid.New()
